package router

import (
	"time"

	"chat-sentiment-demo/backend/internal/api"
	"chat-sentiment-demo/backend/internal/ws"
	"chat-sentiment-demo/backend/pkg/config"
	"chat-sentiment-demo/backend/pkg/di"
	"chat-sentiment-demo/backend/pkg/errors"
	"chat-sentiment-demo/backend/pkg/logger"
	"chat-sentiment-demo/backend/pkg/middleware"
	"chat-sentiment-demo/backend/pkg/validator"

	"github.com/gin-gonic/gin"
)

// Track server start time for uptime calculations
var startTime = time.Now()

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	Hub       *ws.Hub
	Config    *config.Config
}

// New creates a new router with the given container
func New(container *di.Container) *Router {
	logger.SetGlobal(container.Logger)

	cfg := config.Get()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Request ID first, then the logger so every request gets a scoped logger
	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())

	rateLimiter := middleware.NewRateLimiter(container.Logger)
	engine.Use(rateLimiter.Middleware())

	hub := ws.NewHub(container.ConversationService)
	go hub.Run()

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Hub:       hub,
		Config:    cfg,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	r.Engine.Use(corsMiddleware())

	jwtAuth := middleware.JWTAuthMiddleware(r.Container.JWTService, r.Logger)

	authHandler := api.NewAuthHandler(r.Container.UserService, r.Container.JWTService, r.Logger)
	conversationHandler := api.NewConversationHandler(r.Container.ConversationService, r.Logger)

	// Health also lives at the root for load balancers
	r.Engine.GET("/health", r.healthCheckHandler())

	// API version 1 routes
	v1 := r.Engine.Group("/api/v1")

	// Public routes (no auth required)
	publicRoutes := v1.Group("/")
	{
		publicRoutes.GET("/health", r.healthCheckHandler())

		authRoutes := publicRoutes.Group("/auth")
		{
			authRoutes.POST("/signup", authHandler.Signup)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.GET("/me", jwtAuth, authHandler.Me)
		}
	}

	// Protected routes (require authentication)
	protectedRoutes := v1.Group("/")
	protectedRoutes.Use(jwtAuth)
	{
		conversationHandler.RegisterRoutesV1(protectedRoutes)
	}

	// WebSocket route authenticates via query token
	if r.Config.Features.EnableWebSockets {
		r.Engine.GET("/ws", func(c *gin.Context) {
			ws.ServeWs(r.Hub, r.Container.JWTService, c)
		})
	}
}

// AddOpenAPIValidation validates incoming requests against the schema file.
// Missing schema files are tolerated so development setups keep working.
func (r *Router) AddOpenAPIValidation(schemaPath string) error {
	v, err := validator.NewOpenAPIValidator(schemaPath)
	if err != nil {
		return err
	}
	r.Engine.Use(v.Middleware())
	return nil
}

// healthCheckHandler returns a simple health check handler
func (r *Router) healthCheckHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
			"env":    r.Config.Server.Env,
			"uptime": time.Since(startTime).String(),
			"time":   time.Now().Format(time.RFC3339),
		})
	}
}

// corsMiddleware allows browser clients, including websocket upgrades
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Accept-Encoding, X-CSRF-Token, Authorization, Origin, Upgrade, Connection, Cache-Control")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Upgrade, Connection")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
