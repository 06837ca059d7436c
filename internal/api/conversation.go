package api

import (
	"errors"
	"net/http"
	"strconv"

	"chat-sentiment-demo/backend/internal/models"
	"chat-sentiment-demo/backend/internal/service"
	"chat-sentiment-demo/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ConversationHandler handles chat session requests
type ConversationHandler struct {
	service *service.ConversationService
	logger  *logger.Logger
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(service *service.ConversationService, logger *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutesV1 registers the session routes on the authenticated group
func (h *ConversationHandler) RegisterRoutesV1(rg *gin.RouterGroup) {
	sessions := rg.Group("/sessions")
	{
		sessions.POST("", h.CreateSession)
		sessions.GET("", h.ListSessions)
		sessions.POST("/import", h.ImportSession)
		sessions.GET("/:id", h.GetSession)
		sessions.POST("/:id/messages", h.SendMessage)
		sessions.GET("/:id/messages", h.GetTranscript)
		sessions.GET("/:id/summary", h.GetSummary)
		sessions.POST("/:id/end", h.EndSession)
		sessions.GET("/:id/export", h.ExportSession)
	}
}

// CreateSession opens a new chat session
func (h *ConversationHandler) CreateSession(c *gin.Context) {
	var req models.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	session, err := h.service.CreateSession(currentUserID(c), req.Title)
	if err != nil {
		if errors.Is(err, service.ErrSessionLimit) {
			c.JSON(http.StatusConflict, gin.H{"error": "Too many active sessions, end one first"})
			return
		}
		h.logger.Error("Error creating session", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	c.JSON(http.StatusCreated, session)
}

// ListSessions returns the caller's sessions
func (h *ConversationHandler) ListSessions(c *gin.Context) {
	sessions, err := h.service.ListSessions(currentUserID(c))
	if err != nil {
		h.logger.Error("Error listing sessions", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list sessions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// GetSession returns a single session
func (h *ConversationHandler) GetSession(c *gin.Context) {
	session, err := h.service.GetSession(currentUserID(c), c.Param("id"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// SendMessage appends a user message, scores it and returns the bot's reply
func (h *ConversationHandler) SendMessage(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	resp, err := h.service.SendMessage(c.Request.Context(), currentUserID(c), c.Param("id"), req.Content)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// GetTranscript returns a page of the session's messages
func (h *ConversationHandler) GetTranscript(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	turns, err := h.service.GetTurns(currentUserID(c), c.Param("id"), limit, offset)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"turns":  turns,
		"limit":  limit,
		"offset": offset,
	})
}

// GetSummary returns the conversation-level sentiment summary
func (h *ConversationHandler) GetSummary(c *gin.Context) {
	summary, err := h.service.Summary(currentUserID(c), c.Param("id"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// EndSession closes a session
func (h *ConversationHandler) EndSession(c *gin.Context) {
	session, err := h.service.EndSession(currentUserID(c), c.Param("id"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// ExportSession returns the portable session document
func (h *ConversationHandler) ExportSession(c *gin.Context) {
	doc, err := h.service.Export(currentUserID(c), c.Param("id"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

// ImportSession recreates a session from an exported document
func (h *ConversationHandler) ImportSession(c *gin.Context) {
	var doc models.SessionExport
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid export document"})
		return
	}

	session, err := h.service.Import(currentUserID(c), &doc)
	if err != nil {
		h.logger.Error("Error importing session", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to import session"})
		return
	}

	c.JSON(http.StatusCreated, session)
}

// respondServiceError maps conversation service errors to HTTP responses
func (h *ConversationHandler) respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
	case errors.Is(err, service.ErrSessionEnded):
		c.JSON(http.StatusConflict, gin.H{"error": "Session has ended"})
	case errors.Is(err, service.ErrMessageLimit):
		c.JSON(http.StatusConflict, gin.H{"error": "This session has reached its message limit"})
	case errors.Is(err, service.ErrEmptyMessage), errors.Is(err, service.ErrMessageTooLong):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInferenceUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Sentiment analysis is temporarily unavailable",
			"code":  "INFERENCE_UNAVAILABLE",
		})
	default:
		h.logger.Error("Conversation request failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// currentUserID reads the authenticated user ID set by the JWT middleware
func currentUserID(c *gin.Context) uint {
	if id, exists := c.Get("userId"); exists {
		if uid, ok := id.(uint); ok {
			return uid
		}
	}
	return 0
}
