package analysis

// Sentiment is the label assigned to a message or a whole conversation
type Sentiment string

// Sentiment labels
const (
	SentimentPositive Sentiment = "Positive"
	SentimentNegative Sentiment = "Negative"
	SentimentNeutral  Sentiment = "Neutral"
)

// Trajectory describes how the mood of a conversation moved over time
type Trajectory string

// Trajectory values
const (
	TrajectoryImproving Trajectory = "improving"
	TrajectoryDeclining Trajectory = "declining"
	TrajectoryStable    Trajectory = "stable"
)

// MessageAnalysis is the per-message result of running the sentiment and
// irony classifiers and arbitrating between them
type MessageAnalysis struct {
	Sentiment     Sentiment `json:"sentiment"`
	Compound      float64   `json:"compound"`
	Confidence    float64   `json:"confidence"`
	IronyDetected bool      `json:"irony_detected"`
	IronyScore    float64   `json:"irony_score"`
	Flipped       bool      `json:"flipped"`
}

// ConversationAnalysis summarizes a whole conversation from its stored
// per-message compound scores
type ConversationAnalysis struct {
	Sentiment       Sentiment  `json:"sentiment"`
	Label           string     `json:"label"`
	Compound        float64    `json:"compound"`
	Trajectory      Trajectory `json:"trajectory"`
	TrajectoryShift float64    `json:"trajectory_shift"`
	Summary         string     `json:"summary"`
	MoodNarrative   string     `json:"mood_narrative"`
	MessageCount    int        `json:"message_count"`
}

// Score is one stored per-message data point used for conversation-level
// aggregation
type Score struct {
	Compound  float64
	Sentiment Sentiment
}
