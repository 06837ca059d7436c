package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func scoresFrom(compounds ...float64) []Score {
	scores := make([]Score, len(compounds))
	for i, c := range compounds {
		scores[i] = Score{Compound: c}
	}
	return scores
}

func TestAggregate_EmptyConversation(t *testing.T) {
	result := Aggregate(nil)

	assert.Equal(t, SentimentNeutral, result.Sentiment)
	assert.Equal(t, "Neutral", result.Label)
	assert.InDelta(t, 0, result.Compound, 1e-9)
	assert.Equal(t, TrajectoryStable, result.Trajectory)
	assert.Equal(t, 0, result.MessageCount)
	assert.NotEmpty(t, result.Summary)
}

func TestAggregate_SingleMessage(t *testing.T) {
	result := Aggregate(scoresFrom(0.8))

	assert.Equal(t, SentimentPositive, result.Sentiment)
	assert.Equal(t, TrajectoryStable, result.Trajectory)
	assert.Equal(t, 1, result.MessageCount)
}

func TestAggregate_ImprovingConversation(t *testing.T) {
	result := Aggregate(scoresFrom(-0.8, -0.6, 0.5, 0.9))

	assert.Equal(t, TrajectoryImproving, result.Trajectory)
	assert.Greater(t, result.TrajectoryShift, 0.3)
	assert.Equal(t, SentimentPositive, result.Sentiment)
	assert.Equal(t, "Positive (Resolved)", result.Label)
}

func TestAggregate_ImprovingBoostLiftsCompound(t *testing.T) {
	// Recency weighting alone would leave this barely positive; the
	// resolved ending should pull the compound up to 80% of the final score
	result := Aggregate(scoresFrom(-0.9, -0.9, 0.2, 0.9))

	assert.Equal(t, TrajectoryImproving, result.Trajectory)
	assert.GreaterOrEqual(t, result.Compound, 0.9*0.8-1e-9)
}

func TestAggregate_DecliningConversation(t *testing.T) {
	result := Aggregate(scoresFrom(0.8, 0.6, -0.5, -0.9))

	assert.Equal(t, TrajectoryDeclining, result.Trajectory)
	assert.Equal(t, SentimentNegative, result.Sentiment)
	assert.Equal(t, "Negative (Escalating)", result.Label)
}

func TestAggregate_StableNeutral(t *testing.T) {
	result := Aggregate(scoresFrom(0.01, -0.02, 0.0, 0.02))

	assert.Equal(t, TrajectoryStable, result.Trajectory)
	assert.Equal(t, SentimentNeutral, result.Sentiment)
	assert.Equal(t, "Neutral", result.Label)
}

func TestAggregate_RecencyWeighting(t *testing.T) {
	// Same magnitudes, later message dominates
	early := Aggregate(scoresFrom(0.6, -0.6))
	assert.Less(t, early.Compound, 0.0)

	late := Aggregate(scoresFrom(-0.6, 0.6))
	assert.Greater(t, late.Compound, 0.0)
}

func TestMoodNarrative(t *testing.T) {
	tests := []struct {
		name      string
		compounds []float64
		want      string
	}{
		{
			"too short",
			[]float64{0.5},
			"Not enough messages to detect a mood shift.",
		},
		{
			"negative to positive",
			[]float64{-0.7, -0.3, 0.4, 0.8},
			"The customer started out negative but turned positive around message 3.",
		},
		{
			"positive to negative",
			[]float64{0.8, 0.1, -0.6},
			"The customer started out positive but turned negative around message 3.",
		},
		{
			"consistently positive",
			[]float64{0.4, 0.6, 0.9},
			"The customer stayed consistently positive.",
		},
		{
			"consistently negative",
			[]float64{-0.4, -0.6, -0.9},
			"The customer stayed consistently negative.",
		},
		{
			"consistently neutral",
			[]float64{0.0, 0.01, -0.02},
			"The customer stayed consistently neutral.",
		},
		{
			"fluctuating",
			[]float64{0.5, -0.5, 0.0, 0.5},
			"The customer's mood fluctuated: 2 positive, 1 neutral and 1 negative messages.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, moodNarrative(tt.compounds, 0.05))
		})
	}
}

func TestSummarizeIntensity(t *testing.T) {
	assert.Contains(t, summarize(SentimentPositive, 0.7, TrajectoryStable), "strongly positive")
	assert.Contains(t, summarize(SentimentPositive, 0.3, TrajectoryStable), "moderately positive")
	assert.Contains(t, summarize(SentimentNegative, -0.1, TrajectoryStable), "slightly negative")
	assert.Contains(t, summarize(SentimentNeutral, 0.0, TrajectoryImproving), "improved")
}
