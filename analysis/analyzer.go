package analysis

import (
	"context"
	"math"
	"strings"

	"chat-sentiment-demo/backend/pkg/config"
	"chat-sentiment-demo/backend/pkg/logger"
	"chat-sentiment-demo/backend/shared/observability"
)

// Classifier scores a text against a named model
type Classifier interface {
	Classify(ctx context.Context, model, text string) ([]LabelScore, error)
}

// Analyzer scores individual messages by combining a sentiment classifier
// with an irony classifier. Irony can override the surface sentiment when
// the irony model is clearly more confident.
type Analyzer struct {
	client  Classifier
	metrics *observability.Metrics
	log     *logger.Logger
}

// NewAnalyzer creates a message analyzer
func NewAnalyzer(client Classifier, metrics *observability.Metrics, log *logger.Logger) *Analyzer {
	return &Analyzer{
		client:  client,
		metrics: metrics,
		log:     log,
	}
}

// AnalyzeMessage scores a single message. Blank messages are neutral and
// never reach the classifiers.
func (a *Analyzer) AnalyzeMessage(ctx context.Context, text string) (MessageAnalysis, error) {
	if strings.TrimSpace(text) == "" {
		return MessageAnalysis{
			Sentiment:  SentimentNeutral,
			Compound:   0,
			Confidence: 1,
		}, nil
	}

	cfg := config.Get()

	sentScores, err := a.client.Classify(ctx, cfg.Inference.SentimentModel, text)
	if err != nil {
		return MessageAnalysis{}, err
	}

	ironyScores, err := a.client.Classify(ctx, cfg.Inference.IronyModel, text)
	if err != nil {
		return MessageAnalysis{}, err
	}

	sentiment, compound, sentConf := mapSentiment(sentScores)
	ironyDetected, ironyConf := mapIrony(ironyScores)

	result := MessageAnalysis{
		Sentiment:     sentiment,
		Compound:      compound,
		Confidence:    sentConf,
		IronyDetected: ironyDetected,
		IronyScore:    ironyConf,
	}

	if ironyDetected {
		result = a.arbitrate(result)
	}

	if a.metrics != nil {
		a.metrics.MessagesAnalyzed.Add(ctx, 1)
		if result.Flipped {
			a.metrics.SentimentFlips.Add(ctx, 1)
		}
	}

	return result, nil
}

// arbitrate decides whether detected irony overrides the surface sentiment.
// A positive message flips when the irony model is more confident than the
// sentiment model by more than the flip margin. A neutral message flips
// only when the irony model is very sure and the sentiment model is not.
func (a *Analyzer) arbitrate(in MessageAnalysis) MessageAnalysis {
	cfg := config.Get().Analysis
	out := in

	switch in.Sentiment {
	case SentimentPositive:
		if in.IronyScore-in.Confidence > cfg.FlipMargin {
			out.Sentiment = SentimentNegative
			out.Compound = -math.Abs(in.Compound) * cfg.FlipDamping
			out.Flipped = true
		}

	case SentimentNeutral:
		if in.IronyScore > cfg.NeutralIronyMin && in.Confidence < cfg.NeutralSentMax {
			out.Sentiment = SentimentNegative
			out.Compound = cfg.NeutralFlipCompound
			out.Flipped = true
		}
	}

	if out.Flipped {
		a.log.Debug("Irony flipped sentiment",
			"from", string(in.Sentiment),
			"irony_score", in.IronyScore,
			"sentiment_confidence", in.Confidence,
		)
	}

	return out
}

// mapSentiment converts raw classifier scores into a label, a signed
// compound score and the winning confidence. Positive maps to +confidence,
// negative to -confidence, neutral to zero.
func mapSentiment(scores []LabelScore) (Sentiment, float64, float64) {
	top := topScore(scores)
	if top == nil {
		return SentimentNeutral, 0, 0
	}

	switch strings.ToLower(top.Label) {
	case "positive", "label_2":
		return SentimentPositive, top.Score, top.Score
	case "negative", "label_0":
		return SentimentNegative, -top.Score, top.Score
	default:
		return SentimentNeutral, 0, top.Score
	}
}

// mapIrony reports whether the top irony label is ironic and its confidence
func mapIrony(scores []LabelScore) (bool, float64) {
	top := topScore(scores)
	if top == nil {
		return false, 0
	}

	label := strings.ToLower(top.Label)
	if label == "irony" || label == "label_1" {
		return true, top.Score
	}
	return false, top.Score
}

func topScore(scores []LabelScore) *LabelScore {
	if len(scores) == 0 {
		return nil
	}
	top := &scores[0]
	for i := range scores[1:] {
		if scores[i+1].Score > top.Score {
			top = &scores[i+1]
		}
	}
	return top
}
