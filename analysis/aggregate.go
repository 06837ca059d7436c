package analysis

import (
	"fmt"
	"math"

	"chat-sentiment-demo/backend/pkg/config"
)

// Aggregate summarizes a conversation from its stored per-message scores.
// It never calls the classifiers, so the summary is deterministic for a
// given transcript.
func Aggregate(scores []Score) ConversationAnalysis {
	if len(scores) == 0 {
		return ConversationAnalysis{
			Sentiment:     SentimentNeutral,
			Label:         string(SentimentNeutral),
			Compound:      0,
			Trajectory:    TrajectoryStable,
			Summary:       "No customer messages yet.",
			MoodNarrative: "Not enough messages to detect a mood shift.",
			MessageCount:  0,
		}
	}

	cfg := config.Get().Analysis

	compounds := make([]float64, len(scores))
	for i, s := range scores {
		compounds[i] = s.Compound
	}

	trajectory, shift := trajectoryOf(compounds, cfg.ShiftThreshold)
	compound := weightedCompound(compounds)

	// A conversation that ends on a clearly positive note should not be
	// dragged negative by its early messages
	final := compounds[len(compounds)-1]
	if trajectory == TrajectoryImproving && final > 0.1 {
		compound = math.Max(compound, final*0.8)
	}

	sentiment := classifyCompound(compound, cfg.ClassifyThreshold)

	return ConversationAnalysis{
		Sentiment:       sentiment,
		Label:           decorateLabel(sentiment, trajectory),
		Compound:        compound,
		Trajectory:      trajectory,
		TrajectoryShift: shift,
		Summary:         summarize(sentiment, compound, trajectory),
		MoodNarrative:   moodNarrative(compounds, cfg.ClassifyThreshold),
		MessageCount:    len(scores),
	}
}

// trajectoryOf compares the average of the first half of the conversation
// with the average of the second half
func trajectoryOf(compounds []float64, shiftThreshold float64) (Trajectory, float64) {
	if len(compounds) < 2 {
		return TrajectoryStable, 0
	}

	mid := len(compounds) / 2
	firstAvg := mean(compounds[:mid])
	secondAvg := mean(compounds[mid:])
	shift := secondAvg - firstAvg

	switch {
	case shift > shiftThreshold:
		return TrajectoryImproving, shift
	case shift < -shiftThreshold:
		return TrajectoryDeclining, shift
	default:
		return TrajectoryStable, shift
	}
}

// weightedCompound averages compound scores with a linear recency weight,
// so later messages count up to twice as much as the first
func weightedCompound(compounds []float64) float64 {
	n := float64(len(compounds))
	var weightedSum, weightTotal float64
	for i, c := range compounds {
		w := 1 + float64(i)/n
		weightedSum += c * w
		weightTotal += w
	}
	return weightedSum / weightTotal
}

func classifyCompound(compound, threshold float64) Sentiment {
	switch {
	case compound >= threshold:
		return SentimentPositive
	case compound <= -threshold:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// decorateLabel annotates the overall label when the trajectory tells a
// clearer story than the score alone
func decorateLabel(sentiment Sentiment, trajectory Trajectory) string {
	if sentiment == SentimentPositive && trajectory == TrajectoryImproving {
		return "Positive (Resolved)"
	}
	if sentiment == SentimentNegative && trajectory == TrajectoryDeclining {
		return "Negative (Escalating)"
	}
	return string(sentiment)
}

func summarize(sentiment Sentiment, compound float64, trajectory Trajectory) string {
	intensity := "slightly"
	switch {
	case math.Abs(compound) > 0.5:
		intensity = "strongly"
	case math.Abs(compound) > 0.2:
		intensity = "moderately"
	}

	var tone string
	switch sentiment {
	case SentimentPositive:
		tone = fmt.Sprintf("The customer sounds %s positive overall.", intensity)
	case SentimentNegative:
		tone = fmt.Sprintf("The customer sounds %s negative overall.", intensity)
	default:
		tone = "The customer sounds neutral overall."
	}

	switch trajectory {
	case TrajectoryImproving:
		return tone + " The mood improved as the conversation went on."
	case TrajectoryDeclining:
		return tone + " The mood declined as the conversation went on."
	default:
		return tone + " The mood stayed steady throughout."
	}
}

// moodNarrative describes how the customer's mood moved message by message
func moodNarrative(compounds []float64, threshold float64) string {
	if len(compounds) < 2 {
		return "Not enough messages to detect a mood shift."
	}

	var positives, negatives, neutrals int
	labels := make([]Sentiment, len(compounds))
	for i, c := range compounds {
		labels[i] = classifyCompound(c, threshold)
		switch labels[i] {
		case SentimentPositive:
			positives++
		case SentimentNegative:
			negatives++
		default:
			neutrals++
		}
	}

	first := labels[0]
	last := labels[len(labels)-1]

	if first == SentimentNegative && last == SentimentPositive {
		return fmt.Sprintf("The customer started out negative but turned positive around message %d.",
			firstCrossing(labels, SentimentPositive)+1)
	}
	if first == SentimentPositive && last == SentimentNegative {
		return fmt.Sprintf("The customer started out positive but turned negative around message %d.",
			firstCrossing(labels, SentimentNegative)+1)
	}

	switch {
	case positives == len(labels):
		return "The customer stayed consistently positive."
	case negatives == len(labels):
		return "The customer stayed consistently negative."
	case neutrals == len(labels):
		return "The customer stayed consistently neutral."
	}

	return fmt.Sprintf("The customer's mood fluctuated: %d positive, %d neutral and %d negative messages.",
		positives, neutrals, negatives)
}

// firstCrossing returns the index of the first message carrying the target
// sentiment
func firstCrossing(labels []Sentiment, target Sentiment) int {
	for i, l := range labels {
		if l == target {
			return i
		}
	}
	return len(labels) - 1
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
