package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-sentiment-demo/backend/internal/models"
	"chat-sentiment-demo/backend/pkg/config"
	"chat-sentiment-demo/backend/pkg/di"
	"chat-sentiment-demo/backend/pkg/health"
	"chat-sentiment-demo/backend/pkg/logger"
	"chat-sentiment-demo/backend/pkg/router"
	"chat-sentiment-demo/backend/pkg/secrets"
	"chat-sentiment-demo/backend/shared/observability"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize structured logger
	logConfig := logger.DefaultConfig()
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		logConfig.Level = level
	}
	logConfig.JSON = os.Getenv("LOG_FORMAT") != "text"

	appLog := logger.New(logConfig)
	logger.SetGlobal(appLog)

	appLog.Info("Starting application", "version", os.Getenv("APP_VERSION"))

	// Initialize secrets manager (Vault with environment fallback)
	if err := secrets.Init(appLog); err != nil {
		appLog.LogError(err, "Failed to initialize secrets manager")
		os.Exit(1)
	}

	// Tracing and metrics
	shutdownTracing := observability.SetupTracing("chat-sentiment-backend")
	defer shutdownTracing()
	observability.SetupPrometheusMetrics()

	// Initialize database
	db, err := config.NewDB()
	if err != nil {
		appLog.LogError(err, "Failed to initialize database")
		os.Exit(1)
	}

	// Auto-migrate the schema
	if err := db.AutoMigrate(&models.User{}, &models.Session{}, &models.Turn{}); err != nil {
		appLog.LogError(err, "Failed to migrate database")
		os.Exit(1)
	}

	// Create indexes for better query performance
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_turns_session_sender ON turns(session_id, sender)").Error; err != nil {
		appLog.LogError(err, "Failed to create turn index", "index", "idx_turns_session_sender")
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_sessions_user_status ON sessions(user_id, status)").Error; err != nil {
		appLog.LogError(err, "Failed to create session index", "index", "idx_sessions_user_status")
	}

	// Initialize dependency injection container
	diConfig := di.DefaultConfig()
	diConfig.LoggerConfig = logConfig
	diConfig.JWTSecret = secrets.GetSecretWithDefault(context.Background(), "JWT_SECRET", os.Getenv("JWT_SECRET"))
	if expiry := os.Getenv("JWT_EXPIRY_HOURS"); expiry != "" {
		if val, err := time.ParseDuration(expiry + "h"); err == nil {
			diConfig.JWTExpiryHours = int(val.Hours())
		}
	}

	container, err := di.New(db, diConfig)
	if err != nil {
		appLog.LogError(err, "Failed to initialize dependency container")
		os.Exit(1)
	}

	// Background health checks
	checker := health.NewChecker(appLog, 30*time.Second)
	checker.RegisterDatabaseCheck(func() error {
		return config.TestConnection(db)
	})
	cfg := config.Get()
	checker.RegisterAPICheck("inference", cfg.Inference.BaseURL+"/"+cfg.Inference.SentimentModel, &http.Client{Timeout: 5 * time.Second})
	checker.Start()

	// Detailed component health lives on the metrics port
	http.Handle("/healthz", checker.HTTPHandler())

	// Initialize and setup router
	r := router.New(container)
	r.SetupRoutes()

	// Add OpenAPI validation if schema file is available
	schemaPath := os.Getenv("OPENAPI_SCHEMA_PATH")
	if schemaPath != "" {
		if err := r.AddOpenAPIValidation(schemaPath); err != nil {
			appLog.LogError(err, "Failed to enable OpenAPI validation", "schema", schemaPath)
		}
	}

	port := cfg.Server.Port

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r.Engine,
	}

	go func() {
		appLog.Info("Server starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.LogError(err, "Server failed to start")
			os.Exit(1)
		}
	}()

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	appLog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLog.LogError(err, "Server forced to shutdown")
	}

	appLog.Info("Server exited gracefully")
}
