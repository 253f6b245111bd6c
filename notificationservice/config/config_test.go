package config_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samuelzanatto/petapp-notification-service/notificationservice/config"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUpdateConfigWithEnvOverrides(t *testing.T) {
	logger := newTestLogger()

	baseConfig := func() *config.Config {
		return &config.Config{
			ProjectID:  "base-project",
			ListenAddr: ":8080",
			Database:   config.DatabaseConfig{DSN: "postgres://base"},
			Queue: config.QueueConfig{
				Backend:            config.QueuePubsub,
				TopicID:            "base-topic",
				SubscriptionID:     "base-sub",
				NumPipelineWorkers: 2,
			},
			FCM: config.FCMConfig{LegacyServerKey: "base-key"},
		}
	}

	t.Run("Success - All overrides applied", func(t *testing.T) {
		cfg := baseConfig()

		t.Setenv("PROJECT_ID", "env-project")
		t.Setenv("PORT", "9090")
		t.Setenv("SUBSCRIPTION_ID", "env-sub")
		t.Setenv("DATABASE_URL", "postgres://env")
		t.Setenv("FCM_SERVER_KEY", "env-key")
		t.Setenv("FCM_CREDENTIALS_FILE", "/secrets/sa.json")
		t.Setenv("EXPO_ACCESS_TOKEN", "expo-env")
		t.Setenv("PUSH_TIMEOUT", "3s")
		t.Setenv("BULK_WORKERS", "7")
		t.Setenv("REDIS_ADDR", "redis:6379")
		t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.app, https://b.app,")

		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.Equal(t, "env-project", finalCfg.ProjectID)
		assert.Equal(t, ":9090", finalCfg.ListenAddr)
		assert.Equal(t, "env-sub", finalCfg.Queue.SubscriptionID)
		assert.Equal(t, "env-sub", finalCfg.PubsubConsumerConfig.SubscriptionID)
		assert.Equal(t, "postgres://env", finalCfg.Database.DSN)
		assert.Equal(t, "env-key", finalCfg.FCM.LegacyServerKey)
		assert.Equal(t, "/secrets/sa.json", finalCfg.FCM.CredentialsFile)
		assert.Equal(t, "expo-env", finalCfg.Expo.AccessToken)
		assert.Equal(t, 3*time.Second, finalCfg.Expo.Timeout)
		assert.Equal(t, 3*time.Second, finalCfg.FCM.Timeout)
		assert.Equal(t, 7, finalCfg.Delivery.BulkWorkers)
		assert.True(t, finalCfg.Redis.Enabled)
		assert.Equal(t, []string{"https://a.app", "https://b.app"}, finalCfg.CorsConfig.AllowedOrigins)
	})

	t.Run("Success - Defaults applied", func(t *testing.T) {
		cfg := &config.Config{Database: config.DatabaseConfig{DSN: "postgres://base"}}
		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.Equal(t, ":8080", finalCfg.ListenAddr)
		assert.Equal(t, config.QueueLocal, finalCfg.Queue.Backend)
		assert.Equal(t, config.TokenStoreSQL, finalCfg.TokenStore.Backend)
		assert.Equal(t, "postgres", finalCfg.Database.Driver)
		assert.Equal(t, 10*time.Second, finalCfg.Expo.Timeout)
		assert.Equal(t, 10*time.Second, finalCfg.FCM.Timeout)
		assert.Equal(t, 4, finalCfg.Delivery.BulkWorkers)
		assert.Equal(t, 24*time.Hour, finalCfg.Redis.TTL)
	})

	t.Run("Validation Failure - Missing database", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Database.DSN = ""
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.ErrorContains(t, err, "database dsn")
	})

	t.Run("Validation Failure - Pubsub without subscription", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Queue.SubscriptionID = ""
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.ErrorContains(t, err, "subscription_id")
	})

	t.Run("Validation Failure - Unknown backend", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Queue.Backend = "kafka"
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.ErrorContains(t, err, "unknown queue backend")
	})
}
