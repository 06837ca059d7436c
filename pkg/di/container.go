package di

import (
	"time"

	"chat-sentiment-demo/backend/analysis"
	"chat-sentiment-demo/backend/bot"
	"chat-sentiment-demo/backend/internal/service"
	"chat-sentiment-demo/backend/pkg/config"
	"chat-sentiment-demo/backend/pkg/jwt"
	"chat-sentiment-demo/backend/pkg/logger"
	"chat-sentiment-demo/backend/shared/observability"
	redisclient "chat-sentiment-demo/backend/shared/redis"

	"gorm.io/gorm"
)

// Container holds all the dependencies for the application
type Container struct {
	DB                  *gorm.DB
	Logger              *logger.Logger
	JWTService          *jwt.Service
	UserService         *service.UserService
	ConversationService *service.ConversationService
	InferenceClient     *analysis.InferenceClient
	Analyzer            *analysis.Analyzer
	BotEngine           *bot.Engine
	Metrics             *observability.Metrics
	Redis               *redisclient.Client
}

// Config holds the configuration for the container
type Config struct {
	LoggerConfig   logger.Config
	JWTSecret      string
	JWTExpiryHours int
	BotSeed        int64
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		LoggerConfig:   logger.DefaultConfig(),
		JWTSecret:      "",
		JWTExpiryHours: 0, // Use default
		BotSeed:        time.Now().UnixNano(),
	}
}

// New creates a new dependency injection container
func New(db *gorm.DB, cfg *Config) (*Container, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	log := logger.New(cfg.LoggerConfig)

	jwtService := jwt.NewService(cfg.JWTSecret, time.Duration(cfg.JWTExpiryHours)*time.Hour)

	metrics, err := observability.NewMetrics()
	if err != nil {
		return nil, err
	}

	appCfg := config.Get()

	var redis *redisclient.Client
	inferenceOpts := []analysis.InferenceOption{analysis.WithMetrics(metrics)}
	if appCfg.Redis.Enabled {
		redis = redisclient.NewClient()
		inferenceOpts = append(inferenceOpts, analysis.WithRedis(redis))
	}

	inferenceClient := analysis.NewInferenceClient(log, inferenceOpts...)
	analyzer := analysis.NewAnalyzer(inferenceClient, metrics, log)
	engine := bot.NewEngine(cfg.BotSeed)

	userService := service.NewUserService(db, jwtService)
	conversationService := service.NewConversationService(db, analyzer, engine, log)

	return &Container{
		DB:                  db,
		Logger:              log,
		JWTService:          jwtService,
		UserService:         userService,
		ConversationService: conversationService,
		InferenceClient:     inferenceClient,
		Analyzer:            analyzer,
		BotEngine:           engine,
		Metrics:             metrics,
		Redis:               redis,
	}, nil
}
