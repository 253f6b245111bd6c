package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

// Backend names.
const (
	QueueLocal  = "local"
	QueuePubsub = "pubsub"

	TokenStoreSQL       = "sql"
	TokenStoreFirestore = "firestore"
)

const (
	defaultListenAddr  = ":8080"
	defaultPushTimeout = 10 * time.Second
	defaultBulkWorkers = 4
	defaultCacheTTL    = 24 * time.Hour
)

type DatabaseConfig struct {
	Driver      string
	DSN         string
	AutoMigrate bool
}

type TokenStoreConfig struct {
	Backend    string
	Collection string
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type QueueConfig struct {
	Backend                string
	TopicID                string
	SubscriptionID         string
	SubscriptionDLQTopicID string
	NumPipelineWorkers     int
	LocalWorkers           int
	LocalBuffer            int
}

type ExpoConfig struct {
	Endpoint    string
	AccessToken string
	Timeout     time.Duration
}

type FCMConfig struct {
	CredentialsFile string
	ProjectID       string
	BaseURL         string
	LegacyServerKey string
	LegacyEndpoint  string
	APNSTopic       string
	AndroidIcon     string
	AndroidColor    string
	Timeout         time.Duration
}

type DeliveryConfig struct {
	BulkWorkers    int
	PersistWorkers int
}

// Config defines the *single*, authoritative configuration.
type Config struct {
	ProjectID   string
	ListenAddr  string
	IdentityURL string

	CorsConfig middleware.CorsConfig
	Database   DatabaseConfig
	TokenStore TokenStoreConfig
	Redis      RedisConfig
	Queue      QueueConfig
	Expo       ExpoConfig
	FCM        FCMConfig
	Delivery   DeliveryConfig

	PubsubConsumerConfig *messagepipeline.GooglePubsubConsumerConfig
}

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	// 1. Apply Environment Overrides
	overrideString(logger, "PROJECT_ID", &cfg.ProjectID)
	if val := os.Getenv("PORT"); val != "" {
		logger.Debug("Overriding config value", "key", "PORT", "source", "env")
		cfg.ListenAddr = ":" + val
	}
	overrideString(logger, "IDENTITY_SERVICE_URL", &cfg.IdentityURL)

	// Database
	overrideString(logger, "DATABASE_DRIVER", &cfg.Database.Driver)
	overrideString(logger, "DATABASE_URL", &cfg.Database.DSN)
	overrideBool(logger, "DATABASE_AUTO_MIGRATE", &cfg.Database.AutoMigrate)
	overrideString(logger, "TOKEN_STORE_BACKEND", &cfg.TokenStore.Backend)

	// Redis Overrides
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		cfg.Redis.Addr = val
		cfg.Redis.Enabled = true
	}
	overrideString(logger, "REDIS_PASSWORD", &cfg.Redis.Password)
	overrideInt(logger, "REDIS_DB", &cfg.Redis.DB)
	overrideBool(logger, "REDIS_ENABLED", &cfg.Redis.Enabled)

	// Queue
	overrideString(logger, "QUEUE_BACKEND", &cfg.Queue.Backend)
	overrideString(logger, "TOPIC_ID", &cfg.Queue.TopicID)
	if val := os.Getenv("SUBSCRIPTION_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "SUBSCRIPTION_ID", "source", "env")
		cfg.Queue.SubscriptionID = val
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(val)
	}
	overrideString(logger, "SUBSCRIPTION_DLQ_TOPIC_ID", &cfg.Queue.SubscriptionDLQTopicID)
	overrideInt(logger, "NUM_PIPELINE_WORKERS", &cfg.Queue.NumPipelineWorkers)

	// Push providers
	overrideString(logger, "EXPO_ACCESS_TOKEN", &cfg.Expo.AccessToken)
	overrideString(logger, "FCM_CREDENTIALS_FILE", &cfg.FCM.CredentialsFile)
	overrideString(logger, "FCM_PROJECT_ID", &cfg.FCM.ProjectID)
	overrideString(logger, "FCM_SERVER_KEY", &cfg.FCM.LegacyServerKey)
	overrideString(logger, "APNS_TOPIC", &cfg.FCM.APNSTopic)
	if val := os.Getenv("PUSH_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			logger.Debug("Overriding config value", "key", "PUSH_TIMEOUT", "source", "env")
			cfg.Expo.Timeout = d
			cfg.FCM.Timeout = d
		}
	}
	overrideInt(logger, "BULK_WORKERS", &cfg.Delivery.BulkWorkers)

	// CORS Overrides
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		logger.Debug("Overriding config value", "key", "CORS_ALLOWED_ORIGINS", "source", "env")
		rawOrigins := strings.Split(corsOrigins, ",")
		var cleanOrigins []string
		for _, o := range rawOrigins {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				cleanOrigins = append(cleanOrigins, trimmed)
			}
		}
		cfg.CorsConfig.AllowedOrigins = cleanOrigins
	}

	// 2. Defaults
	applyDefaults(cfg)

	// 3. Final Validation
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database dsn is required (set via YAML or DATABASE_URL env var)")
	}

	switch cfg.TokenStore.Backend {
	case TokenStoreSQL:
	case TokenStoreFirestore:
		if cfg.ProjectID == "" {
			return nil, fmt.Errorf("project_id is required for the firestore token store")
		}
	default:
		return nil, fmt.Errorf("unknown token store backend %q", cfg.TokenStore.Backend)
	}

	switch cfg.Queue.Backend {
	case QueueLocal:
	case QueuePubsub:
		if cfg.ProjectID == "" {
			return nil, fmt.Errorf("project_id is required (set via YAML or PROJECT_ID env var)")
		}
		if cfg.Queue.TopicID == "" {
			return nil, fmt.Errorf("topic_id is required for the pubsub queue (set via YAML or TOPIC_ID env var)")
		}
		if cfg.Queue.SubscriptionID == "" {
			return nil, fmt.Errorf("subscription_id is required for the pubsub queue (set via YAML or SUBSCRIPTION_ID env var)")
		}
		if cfg.PubsubConsumerConfig == nil {
			cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.Queue.SubscriptionID)
		}
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Queue.Backend)
	}

	if cfg.FCM.LegacyServerKey == "" {
		logger.Warn("FCM legacy server key missing; bulk sends will skip FCM devices")
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.TokenStore.Backend == "" {
		cfg.TokenStore.Backend = TokenStoreSQL
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = defaultCacheTTL
	}
	if cfg.Queue.Backend == "" {
		cfg.Queue.Backend = QueueLocal
	}
	if cfg.Queue.NumPipelineWorkers <= 0 {
		cfg.Queue.NumPipelineWorkers = 1
	}
	if cfg.Expo.Timeout <= 0 {
		cfg.Expo.Timeout = defaultPushTimeout
	}
	if cfg.FCM.Timeout <= 0 {
		cfg.FCM.Timeout = defaultPushTimeout
	}
	if cfg.Delivery.BulkWorkers <= 0 {
		cfg.Delivery.BulkWorkers = defaultBulkWorkers
	}
}

func overrideString(logger *slog.Logger, key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		logger.Debug("Overriding config value", "key", key, "source", "env")
		*dst = val
	}
}

func overrideInt(logger *slog.Logger, key string, dst *int) {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n >= 0 {
			logger.Debug("Overriding config value", "key", key, "source", "env")
			*dst = n
		}
	}
}

func overrideBool(logger *slog.Logger, key string, dst *bool) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			logger.Debug("Overriding config value", "key", key, "source", "env")
			*dst = b
		}
	}
}
