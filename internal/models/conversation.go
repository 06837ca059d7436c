package models

import (
	"time"

	"chat-sentiment-demo/backend/analysis"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Session statuses
const (
	SessionStatusActive = "active"
	SessionStatusEnded  = "ended"
)

// Turn senders
const (
	SenderUser = "user"
	SenderBot  = "bot"
)

// Session represents one support conversation between a user and the bot
type Session struct {
	ID        string     `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"index" json:"user_id"`
	Title     string     `json:"title"`
	Status    string     `gorm:"index;default:active" json:"status"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Turns     []Turn     `gorm:"foreignKey:SessionID" json:"turns,omitempty"`
}

// BeforeCreate is a GORM hook to assign a session ID
func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// IsEnded reports whether the session no longer accepts messages
func (s *Session) IsEnded() bool {
	return s.Status == SessionStatusEnded
}

// Turn is one message in a session together with its stored analysis.
// Bot turns carry no scores.
type Turn struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	SessionID     string    `gorm:"index" json:"session_id"`
	Sender        string    `json:"sender"`
	Content       string    `json:"content"`
	Sentiment     string    `json:"sentiment,omitempty"`
	Compound      float64   `json:"compound"`
	Confidence    float64   `json:"confidence"`
	IronyDetected bool      `json:"irony_detected"`
	IronyScore    float64   `json:"irony_score"`
	Flipped       bool      `json:"flipped"`
	CreatedAt     time.Time `json:"created_at"`
}

// Analysis reconstructs the stored per-message analysis of a user turn
func (t *Turn) Analysis() analysis.MessageAnalysis {
	return analysis.MessageAnalysis{
		Sentiment:     analysis.Sentiment(t.Sentiment),
		Compound:      t.Compound,
		Confidence:    t.Confidence,
		IronyDetected: t.IronyDetected,
		IronyScore:    t.IronyScore,
		Flipped:       t.Flipped,
	}
}

// SendMessageRequest is the request structure for posting a message
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// SendMessageResponse returns the stored user turn, its analysis and the
// bot's reply
type SendMessageResponse struct {
	UserTurn Turn                     `json:"user_turn"`
	BotTurn  Turn                     `json:"bot_turn"`
	Analysis analysis.MessageAnalysis `json:"analysis"`
}

// CreateSessionRequest is the request structure for opening a session
type CreateSessionRequest struct {
	Title string `json:"title,omitempty"`
}

// SessionExport is the portable representation of a whole session. Importing
// the document recreates the session losslessly, scores included.
type SessionExport struct {
	Session    Session                       `json:"session"`
	Turns      []Turn                        `json:"turns"`
	Summary    analysis.ConversationAnalysis `json:"summary"`
	ExportedAt time.Time                     `json:"exported_at"`
}
