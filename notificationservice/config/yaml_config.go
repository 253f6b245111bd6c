package config

import (
	"log/slog"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

type YamlCorsConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	Role           string   `yaml:"role"`
}

type YamlDatabaseConfig struct {
	Driver      string `yaml:"driver"`
	DSN         string `yaml:"dsn"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

type YamlTokenStoreConfig struct {
	Backend    string `yaml:"backend"`
	Collection string `yaml:"collection"`
}

type YamlRedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Enabled  bool          `yaml:"enabled"`
	TTL      time.Duration `yaml:"ttl"`
}

type YamlQueueConfig struct {
	Backend                string `yaml:"backend"`
	TopicID                string `yaml:"topic_id"`
	SubscriptionID         string `yaml:"subscription_id"`
	SubscriptionDLQTopicID string `yaml:"subscription_dlq_topic_id"`
	NumPipelineWorkers     int    `yaml:"num_pipeline_workers"`
	LocalWorkers           int    `yaml:"local_workers"`
	LocalBuffer            int    `yaml:"local_buffer"`
}

type YamlExpoConfig struct {
	Endpoint    string        `yaml:"endpoint"`
	AccessToken string        `yaml:"access_token"`
	Timeout     time.Duration `yaml:"timeout"`
}

type YamlFCMConfig struct {
	CredentialsFile string        `yaml:"credentials_file"`
	ProjectID       string        `yaml:"project_id"`
	BaseURL         string        `yaml:"base_url"`
	LegacyServerKey string        `yaml:"legacy_server_key"`
	LegacyEndpoint  string        `yaml:"legacy_endpoint"`
	APNSTopic       string        `yaml:"apns_topic"`
	AndroidIcon     string        `yaml:"android_icon"`
	AndroidColor    string        `yaml:"android_color"`
	Timeout         time.Duration `yaml:"timeout"`
}

type YamlDeliveryConfig struct {
	BulkWorkers    int `yaml:"bulk_workers"`
	PersistWorkers int `yaml:"persist_workers"`
}

// YamlConfig is the structure that mirrors the raw config.yaml file.
type YamlConfig struct {
	ProjectID   string               `yaml:"project_id"`
	ListenAddr  string               `yaml:"listen_addr"`
	IdentityURL string               `yaml:"identity_url"`
	CorsConfig  YamlCorsConfig       `yaml:"cors"`
	Database    YamlDatabaseConfig   `yaml:"database"`
	TokenStore  YamlTokenStoreConfig `yaml:"token_store"`
	RedisConfig YamlRedisConfig      `yaml:"redis"`
	Queue       YamlQueueConfig      `yaml:"queue"`
	Expo        YamlExpoConfig       `yaml:"expo"`
	FCM         YamlFCMConfig        `yaml:"fcm"`
	Delivery    YamlDeliveryConfig   `yaml:"delivery"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	cfg := &Config{
		ProjectID:   baseCfg.ProjectID,
		ListenAddr:  baseCfg.ListenAddr,
		IdentityURL: baseCfg.IdentityURL,
		CorsConfig: middleware.CorsConfig{
			AllowedOrigins: baseCfg.CorsConfig.AllowedOrigins,
			Role:           middleware.CorsRole(baseCfg.CorsConfig.Role),
		},
		Database: DatabaseConfig(baseCfg.Database),
		TokenStore: TokenStoreConfig{
			Backend:    baseCfg.TokenStore.Backend,
			Collection: baseCfg.TokenStore.Collection,
		},
		Redis: RedisConfig{
			Addr:     baseCfg.RedisConfig.Addr,
			Password: baseCfg.RedisConfig.Password,
			DB:       baseCfg.RedisConfig.DB,
			Enabled:  baseCfg.RedisConfig.Enabled,
			TTL:      baseCfg.RedisConfig.TTL,
		},
		Queue: QueueConfig(baseCfg.Queue),
		Expo:  ExpoConfig(baseCfg.Expo),
		FCM:   FCMConfig(baseCfg.FCM),
		Delivery: DeliveryConfig{
			BulkWorkers:    baseCfg.Delivery.BulkWorkers,
			PersistWorkers: baseCfg.Delivery.PersistWorkers,
		},
	}

	if cfg.Queue.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.Queue.SubscriptionID)
	}

	logger.Debug("YAML config mapping complete",
		"project_id", cfg.ProjectID,
		"listen_addr", cfg.ListenAddr,
		"queue_backend", cfg.Queue.Backend,
		"token_store", cfg.TokenStore.Backend,
	)

	return cfg, nil
}
