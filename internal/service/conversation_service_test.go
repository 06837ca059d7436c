package service

import (
	"context"
	"errors"
	"testing"

	"chat-sentiment-demo/backend/analysis"
	"chat-sentiment-demo/backend/bot"
	"chat-sentiment-demo/backend/internal/models"
	"chat-sentiment-demo/backend/pkg/logger"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type stubAnalyzer struct {
	result analysis.MessageAnalysis
	err    error
	calls  int
}

func (s *stubAnalyzer) AnalyzeMessage(_ context.Context, _ string) (analysis.MessageAnalysis, error) {
	s.calls++
	if s.err != nil {
		return analysis.MessageAnalysis{}, s.err
	}
	return s.result, nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Session{}, &models.Turn{}))

	return db
}

func newTestService(t *testing.T, analyzer Analyzer) *ConversationService {
	t.Helper()
	if analyzer == nil {
		analyzer = &stubAnalyzer{result: analysis.MessageAnalysis{
			Sentiment:  analysis.SentimentNeutral,
			Confidence: 0.9,
		}}
	}
	return NewConversationService(
		setupTestDB(t),
		analyzer,
		bot.NewEngine(1),
		logger.New(logger.Config{Level: "error"}),
	)
}

func TestCreateAndListSessions(t *testing.T) {
	svc := newTestService(t, nil)

	session, err := svc.CreateSession(1, "Billing question")
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, models.SessionStatusActive, session.Status)

	_, err = svc.CreateSession(2, "")
	require.NoError(t, err)

	sessions, err := svc.ListSessions(1)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "Billing question", sessions[0].Title)
}

func TestGetSession_OtherUsersSessionIsNotFound(t *testing.T) {
	svc := newTestService(t, nil)

	session, err := svc.CreateSession(1, "")
	require.NoError(t, err)

	_, err = svc.GetSession(2, session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSendMessage_StoresBothTurns(t *testing.T) {
	analyzer := &stubAnalyzer{result: analysis.MessageAnalysis{
		Sentiment:  analysis.SentimentNegative,
		Compound:   -0.8,
		Confidence: 0.8,
	}}
	svc := newTestService(t, analyzer)

	session, err := svc.CreateSession(1, "")
	require.NoError(t, err)

	resp, err := svc.SendMessage(context.Background(), 1, session.ID, "my delivery is late")
	require.NoError(t, err)

	assert.Equal(t, models.SenderUser, resp.UserTurn.Sender)
	assert.Equal(t, "my delivery is late", resp.UserTurn.Content)
	assert.Equal(t, string(analysis.SentimentNegative), resp.UserTurn.Sentiment)
	assert.InDelta(t, -0.8, resp.UserTurn.Compound, 1e-9)
	assert.Equal(t, models.SenderBot, resp.BotTurn.Sender)
	assert.NotEmpty(t, resp.BotTurn.Content)

	turns, err := svc.GetTurns(1, session.ID, 50, 0)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, models.SenderUser, turns[0].Sender)
	assert.Equal(t, models.SenderBot, turns[1].Sender)
}

func TestSendMessage_EndedSessionRejected(t *testing.T) {
	svc := newTestService(t, nil)

	session, err := svc.CreateSession(1, "")
	require.NoError(t, err)

	_, err = svc.EndSession(1, session.ID)
	require.NoError(t, err)

	_, err = svc.SendMessage(context.Background(), 1, session.ID, "hello?")
	assert.ErrorIs(t, err, ErrSessionEnded)
}

func TestSendMessage_EmptyContentRejected(t *testing.T) {
	svc := newTestService(t, nil)

	session, err := svc.CreateSession(1, "")
	require.NoError(t, err)

	_, err = svc.SendMessage(context.Background(), 1, session.ID, "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestSendMessage_AnalyzerFailureIsInferenceUnavailable(t *testing.T) {
	analyzer := &stubAnalyzer{err: errors.New("upstream 503")}
	svc := newTestService(t, analyzer)

	session, err := svc.CreateSession(1, "")
	require.NoError(t, err)

	_, err = svc.SendMessage(context.Background(), 1, session.ID, "hello")
	assert.ErrorIs(t, err, ErrInferenceUnavailable)

	// Nothing should be stored when analysis fails
	turns, err := svc.GetTurns(1, session.ID, 50, 0)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestSummary_UsesStoredScoresOnly(t *testing.T) {
	analyzer := &stubAnalyzer{result: analysis.MessageAnalysis{
		Sentiment:  analysis.SentimentPositive,
		Compound:   0.7,
		Confidence: 0.7,
	}}
	svc := newTestService(t, analyzer)

	session, err := svc.CreateSession(1, "")
	require.NoError(t, err)

	_, err = svc.SendMessage(context.Background(), 1, session.ID, "this is great")
	require.NoError(t, err)
	_, err = svc.SendMessage(context.Background(), 1, session.ID, "really great")
	require.NoError(t, err)

	callsAfterSend := analyzer.calls

	summary, err := svc.Summary(1, session.ID)
	require.NoError(t, err)

	assert.Equal(t, analysis.SentimentPositive, summary.Sentiment)
	assert.Equal(t, 2, summary.MessageCount)
	// Summary never re-runs the classifiers
	assert.Equal(t, callsAfterSend, analyzer.calls)
}

func TestSummary_EmptySessionIsNeutral(t *testing.T) {
	svc := newTestService(t, nil)

	session, err := svc.CreateSession(1, "")
	require.NoError(t, err)

	summary, err := svc.Summary(1, session.ID)
	require.NoError(t, err)

	assert.Equal(t, analysis.SentimentNeutral, summary.Sentiment)
	assert.Equal(t, 0, summary.MessageCount)
}

func TestEndSession_Idempotent(t *testing.T) {
	svc := newTestService(t, nil)

	session, err := svc.CreateSession(1, "")
	require.NoError(t, err)

	ended, err := svc.EndSession(1, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusEnded, ended.Status)
	require.NotNil(t, ended.EndedAt)
	firstEndedAt := *ended.EndedAt

	again, err := svc.EndSession(1, session.ID)
	require.NoError(t, err)
	assert.Equal(t, firstEndedAt.Unix(), again.EndedAt.Unix())
}

func TestExportImport_RoundTripPreservesScores(t *testing.T) {
	analyzer := &stubAnalyzer{result: analysis.MessageAnalysis{
		Sentiment:     analysis.SentimentNegative,
		Compound:      -0.42,
		Confidence:    0.6,
		IronyDetected: true,
		IronyScore:    0.9,
		Flipped:       true,
	}}
	svc := newTestService(t, analyzer)

	session, err := svc.CreateSession(1, "Ironic complaint")
	require.NoError(t, err)

	_, err = svc.SendMessage(context.Background(), 1, session.ID, "oh great, broken again")
	require.NoError(t, err)

	doc, err := svc.Export(1, session.ID)
	require.NoError(t, err)
	require.Len(t, doc.Turns, 2)
	assert.Equal(t, "Ironic complaint", doc.Session.Title)
	assert.False(t, doc.ExportedAt.IsZero())

	imported, err := svc.Import(7, doc)
	require.NoError(t, err)
	assert.NotEqual(t, session.ID, imported.ID)
	assert.Equal(t, uint(7), imported.UserID)

	turns, err := svc.GetTurns(7, imported.ID, 50, 0)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "oh great, broken again", turns[0].Content)
	assert.InDelta(t, -0.42, turns[0].Compound, 1e-9)
	assert.True(t, turns[0].Flipped)
	assert.True(t, turns[0].IronyDetected)

	// The imported session summarizes identically
	original, err := svc.Summary(1, session.ID)
	require.NoError(t, err)
	copied, err := svc.Summary(7, imported.ID)
	require.NoError(t, err)
	assert.Equal(t, original, copied)
}
