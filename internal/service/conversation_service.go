package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chat-sentiment-demo/backend/analysis"
	"chat-sentiment-demo/backend/bot"
	"chat-sentiment-demo/backend/internal/models"
	"chat-sentiment-demo/backend/pkg/config"
	"chat-sentiment-demo/backend/pkg/logger"

	"gorm.io/gorm"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionEnded         = errors.New("session has ended")
	ErrSessionLimit         = errors.New("active session limit reached")
	ErrMessageLimit         = errors.New("message limit reached for this session")
	ErrMessageTooLong       = errors.New("message exceeds the maximum length")
	ErrEmptyMessage         = errors.New("message content is empty")
	ErrInferenceUnavailable = errors.New("sentiment analysis is temporarily unavailable")
)

// Analyzer scores a single message
type Analyzer interface {
	AnalyzeMessage(ctx context.Context, text string) (analysis.MessageAnalysis, error)
}

// ConversationService owns the chat session lifecycle: it stores turns,
// scores user messages and produces the bot's replies
type ConversationService struct {
	db       *gorm.DB
	analyzer Analyzer
	engine   *bot.Engine
	log      *logger.Logger
}

// NewConversationService creates a conversation service
func NewConversationService(db *gorm.DB, analyzer Analyzer, engine *bot.Engine, log *logger.Logger) *ConversationService {
	return &ConversationService{
		db:       db,
		analyzer: analyzer,
		engine:   engine,
		log:      log,
	}
}

// CreateSession opens a new session for a user
func (s *ConversationService) CreateSession(userID uint, title string) (*models.Session, error) {
	cfg := config.Get()

	var active int64
	if err := s.db.Model(&models.Session{}).
		Where("user_id = ? AND status = ?", userID, models.SessionStatusActive).
		Count(&active).Error; err != nil {
		return nil, err
	}
	if int(active) >= cfg.Features.MaxSessionsPerUser {
		return nil, ErrSessionLimit
	}

	if title == "" {
		title = "Support chat " + time.Now().Format("2006-01-02 15:04")
	}

	session := models.Session{
		UserID: userID,
		Title:  title,
		Status: models.SessionStatusActive,
	}
	if err := s.db.Create(&session).Error; err != nil {
		return nil, err
	}

	s.log.WithSessionID(session.ID).Info("Session created", "user_id", userID)

	return &session, nil
}

// ListSessions returns a user's sessions, newest first
func (s *ConversationService) ListSessions(userID uint) ([]models.Session, error) {
	var sessions []models.Session
	err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&sessions).Error
	return sessions, err
}

// GetSession fetches a session owned by the given user. Sessions owned by
// other users are reported as not found.
func (s *ConversationService) GetSession(userID uint, sessionID string) (*models.Session, error) {
	var session models.Session
	result := s.db.Where("id = ? AND user_id = ?", sessionID, userID).First(&session)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, result.Error
	}
	return &session, nil
}

// GetTurns returns a page of a session's transcript in chronological order
func (s *ConversationService) GetTurns(userID uint, sessionID string, limit, offset int) ([]models.Turn, error) {
	if _, err := s.GetSession(userID, sessionID); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var turns []models.Turn
	err := s.db.Where("session_id = ?", sessionID).
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&turns).Error
	return turns, err
}

// SendMessage appends a user message to a session, scores it and replies.
// Both turns are stored in one transaction.
func (s *ConversationService) SendMessage(ctx context.Context, userID uint, sessionID, content string) (*models.SendMessageResponse, error) {
	cfg := config.Get()

	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyMessage
	}
	if len(content) > cfg.Features.MaxMessageLength {
		return nil, ErrMessageTooLong
	}

	session, err := s.GetSession(userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsEnded() {
		return nil, ErrSessionEnded
	}

	var total int64
	if err := s.db.Model(&models.Turn{}).
		Where("session_id = ?", sessionID).
		Count(&total).Error; err != nil {
		return nil, err
	}
	if int(total) >= cfg.Features.MaxMessagesPerSession {
		return nil, ErrMessageLimit
	}

	result, err := s.analyzer.AnalyzeMessage(ctx, content)
	if err != nil {
		s.log.WithSessionID(sessionID).LogError(err, "Message analysis failed")
		return nil, fmt.Errorf("%w: %v", ErrInferenceUnavailable, err)
	}

	var userTurns int64
	if err := s.db.Model(&models.Turn{}).
		Where("session_id = ? AND sender = ?", sessionID, models.SenderUser).
		Count(&userTurns).Error; err != nil {
		return nil, err
	}

	reply := s.engine.Reply(content, result.Sentiment, int(userTurns)+1)

	userTurn := models.Turn{
		SessionID:     sessionID,
		Sender:        models.SenderUser,
		Content:       content,
		Sentiment:     string(result.Sentiment),
		Compound:      result.Compound,
		Confidence:    result.Confidence,
		IronyDetected: result.IronyDetected,
		IronyScore:    result.IronyScore,
		Flipped:       result.Flipped,
	}
	botTurn := models.Turn{
		SessionID: sessionID,
		Sender:    models.SenderBot,
		Content:   reply,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&userTurn).Error; err != nil {
			return err
		}
		if err := tx.Create(&botTurn).Error; err != nil {
			return err
		}
		return tx.Model(session).Update("updated_at", time.Now()).Error
	})
	if err != nil {
		return nil, err
	}

	return &models.SendMessageResponse{
		UserTurn: userTurn,
		BotTurn:  botTurn,
		Analysis: result,
	}, nil
}

// Summary computes the conversation-level analysis from the stored scores
// of the session's user turns
func (s *ConversationService) Summary(userID uint, sessionID string) (*analysis.ConversationAnalysis, error) {
	if _, err := s.GetSession(userID, sessionID); err != nil {
		return nil, err
	}

	scores, err := s.userScores(sessionID)
	if err != nil {
		return nil, err
	}

	summary := analysis.Aggregate(scores)
	return &summary, nil
}

// EndSession closes a session. Ending an already ended session is a no-op.
func (s *ConversationService) EndSession(userID uint, sessionID string) (*models.Session, error) {
	session, err := s.GetSession(userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsEnded() {
		return session, nil
	}

	now := time.Now()
	session.Status = models.SessionStatusEnded
	session.EndedAt = &now
	if err := s.db.Save(session).Error; err != nil {
		return nil, err
	}

	s.log.WithSessionID(sessionID).Info("Session ended")

	return session, nil
}

// Export packages a session, its full transcript and its summary into a
// portable document
func (s *ConversationService) Export(userID uint, sessionID string) (*models.SessionExport, error) {
	session, err := s.GetSession(userID, sessionID)
	if err != nil {
		return nil, err
	}

	var turns []models.Turn
	if err := s.db.Where("session_id = ?", sessionID).
		Order("id ASC").
		Find(&turns).Error; err != nil {
		return nil, err
	}

	scores := userScoresFromTurns(turns)
	summary := analysis.Aggregate(scores)

	return &models.SessionExport{
		Session:    *session,
		Turns:      turns,
		Summary:    summary,
		ExportedAt: time.Now().UTC(),
	}, nil
}

// Import recreates a session from an exported document. The transcript and
// its stored scores are preserved verbatim; the session gets a fresh ID and
// is owned by the importing user.
func (s *ConversationService) Import(userID uint, doc *models.SessionExport) (*models.Session, error) {
	session := models.Session{
		UserID:  userID,
		Title:   doc.Session.Title,
		Status:  doc.Session.Status,
		EndedAt: doc.Session.EndedAt,
	}
	if session.Status == "" {
		session.Status = models.SessionStatusActive
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&session).Error; err != nil {
			return err
		}
		for i := range doc.Turns {
			turn := doc.Turns[i]
			turn.ID = 0
			turn.SessionID = session.ID
			if err := tx.Create(&turn).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithSessionID(session.ID).Info("Session imported",
		"turns", len(doc.Turns),
		"user_id", userID,
	)

	return &session, nil
}

// userScores loads the stored compound scores of a session's user turns
func (s *ConversationService) userScores(sessionID string) ([]analysis.Score, error) {
	var turns []models.Turn
	if err := s.db.Where("session_id = ? AND sender = ?", sessionID, models.SenderUser).
		Order("id ASC").
		Find(&turns).Error; err != nil {
		return nil, err
	}
	return userScoresFromTurns(turns), nil
}

func userScoresFromTurns(turns []models.Turn) []analysis.Score {
	var scores []analysis.Score
	for _, t := range turns {
		if t.Sender != models.SenderUser {
			continue
		}
		scores = append(scores, analysis.Score{
			Compound:  t.Compound,
			Sentiment: analysis.Sentiment(t.Sentiment),
		})
	}
	return scores
}
