package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chat-sentiment-demo/backend/analysis"
	"chat-sentiment-demo/backend/bot"
	"chat-sentiment-demo/backend/internal/models"
	"chat-sentiment-demo/backend/internal/service"
	"chat-sentiment-demo/backend/pkg/errors"
	"chat-sentiment-demo/backend/pkg/jwt"
	"chat-sentiment-demo/backend/pkg/logger"
	"chat-sentiment-demo/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type stubAnalyzer struct {
	result analysis.MessageAnalysis
	err    error
}

func (s *stubAnalyzer) AnalyzeMessage(_ context.Context, _ string) (analysis.MessageAnalysis, error) {
	if s.err != nil {
		return analysis.MessageAnalysis{}, s.err
	}
	return s.result, nil
}

type apiFixture struct {
	engine *gin.Engine
	token  string
	userID uint
}

func setupAPI(t *testing.T, analyzer service.Analyzer) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Session{}, &models.Turn{}))

	log := logger.New(logger.Config{Level: "error"})
	jwtService := jwt.NewService("test-secret", time.Hour)
	userService := service.NewUserService(db, jwtService)

	if analyzer == nil {
		analyzer = &stubAnalyzer{result: analysis.MessageAnalysis{
			Sentiment:  analysis.SentimentNeutral,
			Confidence: 0.9,
		}}
	}
	conversationService := service.NewConversationService(db, analyzer, bot.NewEngine(1), log)

	engine := gin.New()
	engine.Use(logger.Middleware(log))
	engine.Use(errors.ErrorHandler())

	jwtAuth := middleware.JWTAuthMiddleware(jwtService, log)

	authHandler := NewAuthHandler(userService, jwtService, log)
	conversationHandler := NewConversationHandler(conversationService, log)

	v1 := engine.Group("/api/v1")
	v1.POST("/auth/signup", authHandler.Signup)
	v1.POST("/auth/login", authHandler.Login)
	v1.GET("/auth/me", jwtAuth, authHandler.Me)

	protected := v1.Group("/")
	protected.Use(jwtAuth)
	conversationHandler.RegisterRoutesV1(protected)

	user, token, err := userService.CreateUser(&models.CreateUserRequest{
		Name:     "Dana",
		Email:    "dana@example.com",
		Password: "supersecret",
	})
	require.NoError(t, err)

	return &apiFixture{engine: engine, token: token, userID: user.ID}
}

func (f *apiFixture) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.token)

	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) createSession(t *testing.T) string {
	t.Helper()

	w := f.request(t, http.MethodPost, "/api/v1/sessions", models.CreateSessionRequest{Title: "Test chat"})
	require.Equal(t, http.StatusCreated, w.Code)

	var session models.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	return session.ID
}

func TestAuthFlow(t *testing.T) {
	f := setupAPI(t, nil)

	// Signup
	w := f.request(t, http.MethodPost, "/api/v1/auth/signup", models.CreateUserRequest{
		Name:     "Sam",
		Email:    "sam@example.com",
		Password: "password123",
	})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "token")

	// Duplicate signup
	w = f.request(t, http.MethodPost, "/api/v1/auth/signup", models.CreateUserRequest{
		Name:     "Sam",
		Email:    "sam@example.com",
		Password: "password123",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Login
	w = f.request(t, http.MethodPost, "/api/v1/auth/login", models.LoginRequest{
		Email:    "sam@example.com",
		Password: "password123",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	// Me
	w = f.request(t, http.MethodGet, "/api/v1/auth/me", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "dana@example.com")
}

func TestSessionsRequireAuth(t *testing.T) {
	f := setupAPI(t, nil)

	req, _ := http.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSendMessageFlow(t *testing.T) {
	f := setupAPI(t, &stubAnalyzer{result: analysis.MessageAnalysis{
		Sentiment:  analysis.SentimentNegative,
		Compound:   -0.7,
		Confidence: 0.7,
	}})

	sessionID := f.createSession(t)

	w := f.request(t, http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/messages", sessionID),
		models.SendMessageRequest{Content: "my delivery is late"})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp models.SendMessageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, analysis.SentimentNegative, resp.Analysis.Sentiment)
	assert.NotEmpty(t, resp.BotTurn.Content)

	// Transcript contains both turns
	w = f.request(t, http.MethodGet, fmt.Sprintf("/api/v1/sessions/%s/messages", sessionID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var transcript struct {
		Turns []models.Turn `json:"turns"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &transcript))
	assert.Len(t, transcript.Turns, 2)

	// Summary reflects the stored score
	w = f.request(t, http.MethodGet, fmt.Sprintf("/api/v1/sessions/%s/summary", sessionID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summary analysis.ConversationAnalysis
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, analysis.SentimentNegative, summary.Sentiment)
	assert.Equal(t, 1, summary.MessageCount)
}

func TestSendMessage_UnknownSessionIs404(t *testing.T) {
	f := setupAPI(t, nil)

	w := f.request(t, http.MethodPost, "/api/v1/sessions/no-such-id/messages",
		models.SendMessageRequest{Content: "hello"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSendMessage_EndedSessionIs409(t *testing.T) {
	f := setupAPI(t, nil)

	sessionID := f.createSession(t)

	w := f.request(t, http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/end", sessionID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.request(t, http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/messages", sessionID),
		models.SendMessageRequest{Content: "hello"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSendMessage_InferenceFailureIs502(t *testing.T) {
	f := setupAPI(t, &stubAnalyzer{err: fmt.Errorf("upstream down")})

	sessionID := f.createSession(t)

	w := f.request(t, http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/messages", sessionID),
		models.SendMessageRequest{Content: "hello"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "INFERENCE_UNAVAILABLE")
}

func TestExportImportRoundTrip(t *testing.T) {
	f := setupAPI(t, &stubAnalyzer{result: analysis.MessageAnalysis{
		Sentiment:  analysis.SentimentPositive,
		Compound:   0.8,
		Confidence: 0.8,
	}})

	sessionID := f.createSession(t)

	w := f.request(t, http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/messages", sessionID),
		models.SendMessageRequest{Content: "great service"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.request(t, http.MethodGet, fmt.Sprintf("/api/v1/sessions/%s/export", sessionID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var doc models.SessionExport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Len(t, doc.Turns, 2)

	w = f.request(t, http.MethodPost, "/api/v1/sessions/import", doc)
	require.Equal(t, http.StatusCreated, w.Code)

	var imported models.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &imported))
	assert.NotEqual(t, sessionID, imported.ID)

	w = f.request(t, http.MethodGet, fmt.Sprintf("/api/v1/sessions/%s/summary", imported.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summary analysis.ConversationAnalysis
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, analysis.SentimentPositive, summary.Sentiment)
}
