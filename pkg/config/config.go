package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port    string
		Env     string
		Timeout time.Duration
		BaseURL string
	}

	// Database configuration
	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
		Timeout  time.Duration
	}

	// Redis configuration (classifier result cache)
	Redis struct {
		Addr     string
		Password string
		DB       int
		Enabled  bool
	}

	// JWT configuration
	JWT struct {
		Secret      string
		ExpiryHours time.Duration
	}

	// Inference holds the hosted model inference endpoints
	Inference struct {
		BaseURL        string
		SentimentModel string
		IronyModel     string
		Token          string
		Timeout        time.Duration
	}

	// Analysis holds the arbitration and aggregation thresholds
	Analysis struct {
		// FlipMargin is how much more confident the irony model must be
		// before a positive message is flipped to negative
		FlipMargin float64
		// FlipDamping scales the compound score of a flipped message
		FlipDamping float64
		// NeutralIronyMin is the irony confidence needed to flip a neutral message
		NeutralIronyMin float64
		// NeutralSentMax is the maximum sentiment confidence allowed for a neutral flip
		NeutralSentMax float64
		// NeutralFlipCompound is the compound assigned to a flipped neutral message
		NeutralFlipCompound float64
		// ClassifyThreshold separates positive/negative from neutral compounds
		ClassifyThreshold float64
		// ShiftThreshold is the half-to-half average delta that counts as a mood shift
		ShiftThreshold float64
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		AllowedOrigins []string
		MaxBodySize    int64
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Feature flags
	Features struct {
		EnableWebSockets      bool
		MaxMessagesPerSession int
		MaxSessionsPerUser    int
		MaxMessageLength      int
	}

	// Cache settings
	Cache struct {
		Enabled     bool
		TTL         time.Duration
		MaxSize     int
		PurgeWindow time.Duration
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables
// Uses singleton pattern to ensure only one instance exists
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		godotenv.Load()

		instance = &Config{}

		// Server config
		instance.Server.Port = getEnvString("PORT", "8081")
		instance.Server.Env = getEnvString("APP_ENV", "development")
		instance.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)
		instance.Server.BaseURL = getEnvString("BASE_URL", "http://localhost:"+instance.Server.Port)

		// Database config
		instance.Database.Host = getEnvString("DB_HOST", "localhost")
		instance.Database.Port = getEnvString("DB_PORT", "5432")
		instance.Database.User = getEnvString("DB_USER", "postgres")
		instance.Database.Password = getEnvString("DB_PASSWORD", "postgres")
		instance.Database.Name = getEnvString("DB_NAME", "chat_sentiment")
		instance.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
		instance.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
		instance.Database.Timeout = getEnvDuration("DB_TIMEOUT", 5*time.Second)

		// Redis config
		instance.Redis.Addr = getEnvString("REDIS_URL", "localhost:6379")
		instance.Redis.Password = getEnvString("REDIS_PASSWORD", "")
		instance.Redis.DB = getEnvInt("REDIS_DB", 0)
		instance.Redis.Enabled = getEnvBool("REDIS_ENABLED", false)

		// JWT config
		instance.JWT.Secret = getEnvString("JWT_SECRET", "default-jwt-secret-do-not-use-in-production")
		instance.JWT.ExpiryHours = getEnvDuration("JWT_EXPIRY", 24*time.Hour)

		// Inference config
		instance.Inference.BaseURL = getEnvString("INFERENCE_BASE_URL", "https://api-inference.huggingface.co/models")
		instance.Inference.SentimentModel = getEnvString("SENTIMENT_MODEL", "cardiffnlp/twitter-roberta-base-sentiment-latest")
		instance.Inference.IronyModel = getEnvString("IRONY_MODEL", "cardiffnlp/twitter-roberta-base-irony")
		instance.Inference.Token = getEnvString("HUGGINGFACE_API_TOKEN", "")
		instance.Inference.Timeout = getEnvDuration("INFERENCE_TIMEOUT", 30*time.Second)

		// Analysis thresholds
		instance.Analysis.FlipMargin = getEnvFloat("ANALYSIS_FLIP_MARGIN", 0.05)
		instance.Analysis.FlipDamping = getEnvFloat("ANALYSIS_FLIP_DAMPING", 0.7)
		instance.Analysis.NeutralIronyMin = getEnvFloat("ANALYSIS_NEUTRAL_IRONY_MIN", 0.80)
		instance.Analysis.NeutralSentMax = getEnvFloat("ANALYSIS_NEUTRAL_SENT_MAX", 0.70)
		instance.Analysis.NeutralFlipCompound = getEnvFloat("ANALYSIS_NEUTRAL_FLIP_COMPOUND", -0.5)
		instance.Analysis.ClassifyThreshold = getEnvFloat("ANALYSIS_CLASSIFY_THRESHOLD", 0.05)
		instance.Analysis.ShiftThreshold = getEnvFloat("ANALYSIS_SHIFT_THRESHOLD", 0.3)

		// Security config
		instance.Security.RateLimit = float64(getEnvInt("RATE_LIMIT", 5))
		instance.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
		instance.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})
		instance.Security.MaxBodySize = getEnvInt64("MAX_BODY_SIZE", 1<<20) // 1MB

		// Logging config
		instance.Logging.Level = getEnvString("LOG_LEVEL", "info")
		instance.Logging.Format = getEnvString("LOG_FORMAT", "json")

		// Feature flags
		instance.Features.EnableWebSockets = getEnvBool("ENABLE_WEBSOCKETS", true)
		instance.Features.MaxMessagesPerSession = getEnvInt("MAX_MESSAGES_PER_SESSION", 1000)
		instance.Features.MaxSessionsPerUser = getEnvInt("MAX_SESSIONS_PER_USER", 20)
		instance.Features.MaxMessageLength = getEnvInt("MAX_MESSAGE_LENGTH", 2048)

		// Cache settings
		instance.Cache.Enabled = getEnvBool("CACHE_ENABLED", true)
		instance.Cache.TTL = getEnvDuration("CACHE_TTL", 5*time.Minute)
		instance.Cache.MaxSize = getEnvInt("CACHE_MAX_SIZE", 1000)
		instance.Cache.PurgeWindow = getEnvDuration("CACHE_PURGE_WINDOW", 10*time.Minute)
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
