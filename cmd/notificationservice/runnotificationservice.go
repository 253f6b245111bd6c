package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/samuelzanatto/petapp-notification-service/internal/credentials"
	"github.com/samuelzanatto/petapp-notification-service/internal/delivery"
	"github.com/samuelzanatto/petapp-notification-service/internal/metrics"
	"github.com/samuelzanatto/petapp-notification-service/internal/payload"
	"github.com/samuelzanatto/petapp-notification-service/internal/pipeline"
	"github.com/samuelzanatto/petapp-notification-service/internal/platform/expo"
	"github.com/samuelzanatto/petapp-notification-service/internal/platform/fcm"
	"github.com/samuelzanatto/petapp-notification-service/internal/queue"
	"github.com/samuelzanatto/petapp-notification-service/internal/storage/cache"
	fsStore "github.com/samuelzanatto/petapp-notification-service/internal/storage/firestore"
	sqlstore "github.com/samuelzanatto/petapp-notification-service/internal/storage/sql"
	"github.com/samuelzanatto/petapp-notification-service/notificationservice"
	"github.com/samuelzanatto/petapp-notification-service/notificationservice/config"
	"github.com/samuelzanatto/petapp-notification-service/pkg/dispatch"
)

//go:embed local.yaml
var configFile []byte

const shutdownTimeout = 30 * time.Second

func main() {
	_ = godotenv.Load()

	var logLevel slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug", "DEBUG":
		logLevel = slog.LevelDebug
	case "info", "INFO":
		logLevel = slog.LevelInfo
	case "warn", "WARN":
		logLevel = slog.LevelWarn
	case "error", "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})).With("service", "petapp-notification-service")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Config Loading ---
	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(configFile, &yamlCfg); err != nil {
		logger.Error("Failed to unmarshal embedded yaml config", "err", err)
		os.Exit(1)
	}
	baseCfg, _ := config.NewConfigFromYaml(&yamlCfg, logger)
	cfg, err := config.UpdateConfigWithEnvOverrides(baseCfg, logger)
	if err != nil {
		logger.Error("Config failed", "err", err)
		os.Exit(1)
	}

	// --- Database ---
	db, err := sqlstore.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		logger.Error("Database connection failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = sqlstore.Close(db) }()

	if cfg.Database.AutoMigrate {
		if err := sqlstore.Migrate(ctx, db, logger); err != nil {
			logger.Error("Database migration failed", "err", err)
			os.Exit(1)
		}
	}
	records := sqlstore.NewNotificationStore(db)

	// --- Token Store (Decorated) ---
	tokenStore, closeTokenStore, err := newTokenStore(ctx, cfg, db, logger)
	if err != nil {
		logger.Error("TokenStore initialization failed", "err", err)
		os.Exit(1)
	}
	defer closeTokenStore()

	// --- Metrics ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	deliveryMetrics := metrics.NewDelivery(registry)

	// --- Providers ---
	builder := payload.NewBuilder(payload.Options{
		APNSTopic:    cfg.FCM.APNSTopic,
		AndroidIcon:  cfg.FCM.AndroidIcon,
		AndroidColor: cfg.FCM.AndroidColor,
	}, nil)

	expoClient := expo.NewClient(expo.Config{
		Endpoint:    cfg.Expo.Endpoint,
		AccessToken: cfg.Expo.AccessToken,
		Timeout:     cfg.Expo.Timeout,
	}, builder, logger)

	credsPath := credentials.ResolvePath(cfg.FCM.CredentialsFile)
	creds := credentials.NewProvider(credsPath, cfg.FCM.ProjectID, logger)
	if _, err := creds.Init(ctx); err != nil {
		// Only the per-token FCM channel depends on the service account.
		logger.Warn("FCM service account unavailable; single-user FCM delivery disabled", "path", credsPath, "err", err)
	}
	fcmClient := fcm.NewV1Client(fcm.V1Config{BaseURL: cfg.FCM.BaseURL, Timeout: cfg.FCM.Timeout}, creds, builder, logger)
	legacyClient := fcm.NewLegacyClient(fcm.LegacyConfig{
		Endpoint:  cfg.FCM.LegacyEndpoint,
		ServerKey: cfg.FCM.LegacyServerKey,
		Timeout:   cfg.FCM.Timeout,
	}, builder, logger)

	// --- Delivery ---
	dispatcher := delivery.NewDispatcher(tokenStore, expoClient, fcmClient, deliveryMetrics, logger)
	orchestrator := delivery.NewOrchestrator(tokenStore, expoClient, legacyClient, cfg.Delivery.BulkWorkers, deliveryMetrics, logger)
	jobs := pipeline.NewJobHandler(dispatcher, orchestrator, logger.With("component", "JobHandler"))

	// --- Queue ---
	deps := notificationservice.Dependencies{
		Tokens:   tokenStore,
		Records:  records,
		Gatherer: registry,
	}
	var jobQueue dispatch.Queue

	switch cfg.Queue.Backend {
	case config.QueuePubsub:
		psClient, err := pubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			logger.Error("PubSub client failed", "err", err)
			os.Exit(1)
		}
		defer func() { _ = psClient.Close() }()

		consumer, err := newIngestionConsumer(ctx, cfg, psClient, logger)
		if err != nil {
			logger.Error("PubSub consumer failed", "err", err)
			os.Exit(1)
		}
		publisher := queue.NewPubsubQueue(psClient, cfg.Queue.TopicID, logger)
		jobQueue = publisher
		deps.Queue = publisher
		deps.Consumer = consumer
		deps.Jobs = jobs
	default:
		local := queue.NewLocalQueue(cfg.Queue.LocalWorkers, cfg.Queue.LocalBuffer, jobs, logger)
		jobQueue = local
		deps.Queue = local
	}
	logger.Info("Dispatch queue initialized", "backend", cfg.Queue.Backend)

	deps.Notifier = notificationservice.NewNotifier(records, jobQueue, cfg.Delivery.PersistWorkers, logger)

	// --- Auth ---
	identityURL := cfg.IdentityURL
	if identityURL == "" {
		identityURL = "http://localhost:3000"
	}
	jwksURL, err := middleware.DiscoverAndValidateJWTConfig(identityURL, middleware.RSA256, logger)
	if err != nil {
		logger.Error("JWT config discovery failed", "identity_url", identityURL, "err", err)
		os.Exit(1)
	}
	authMiddleware, err := middleware.NewJWKSAuthMiddleware(jwksURL, logger)
	if err != nil {
		logger.Error("Auth middleware creation failed", "err", err)
		os.Exit(1)
	}

	// --- Service ---
	service, err := notificationservice.New(cfg, deps, authMiddleware, logger)
	if err != nil {
		logger.Error("Service creation failed", "err", err)
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting service...", "addr", cfg.ListenAddr)
		errCh <- service.Start(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Service shutdown with error", "err", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := service.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown incomplete", "err", err)
	}
}

// newTokenStore builds the configured registry backend, optionally behind the
// Redis read-aside cache. The returned func releases its clients.
func newTokenStore(ctx context.Context, cfg *config.Config, db *gorm.DB, logger *slog.Logger) (dispatch.TokenStore, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var tokenStore dispatch.TokenStore
	switch cfg.TokenStore.Backend {
	case config.TokenStoreFirestore:
		fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, closeAll, fmt.Errorf("firestore client: %w", err)
		}
		closers = append(closers, func() { _ = fsClient.Close() })
		tokenStore = fsStore.NewFirestoreStore(fsClient, cfg.TokenStore.Collection)
	default:
		tokenStore = sqlstore.NewTokenStore(db)
	}
	logger.Info("TokenStore initialized", "type", cfg.TokenStore.Backend)

	if cfg.Redis.Enabled {
		logger.Info("Initializing Redis Cache layer...", "addr", cfg.Redis.Addr)
		redisClient, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		tokenStore = cache.NewCachedTokenStore(tokenStore, redisClient, cfg.Redis.TTL, logger)
		logger.Info("TokenStore upgraded", "type", "redis_cached_"+cfg.TokenStore.Backend)
	}
	return tokenStore, closeAll, nil
}

func newIngestionConsumer(ctx context.Context, cfg *config.Config, psClient *pubsub.Client, logger *slog.Logger) (messagepipeline.MessageConsumer, error) {
	sub := convertPubsub(cfg.ProjectID, cfg.Queue.SubscriptionID, "subscriptions")
	topicID := convertPubsub(cfg.ProjectID, cfg.Queue.TopicID, "topics")

	subConfig := &pubsubpb.Subscription{
		Name:               sub,
		Topic:              topicID,
		AckDeadlineSeconds: 30,
	}
	if cfg.Queue.SubscriptionDLQTopicID != "" {
		subConfig.DeadLetterPolicy = &pubsubpb.DeadLetterPolicy{
			DeadLetterTopic:     convertPubsub(cfg.ProjectID, cfg.Queue.SubscriptionDLQTopicID, "topics"),
			MaxDeliveryAttempts: 5,
		}
	}
	logger.Debug("Ensuring subscription exists", "sub", subConfig.Name, "topic", subConfig.Topic)
	_, err := psClient.SubscriptionAdminClient.CreateSubscription(ctx, subConfig)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			logger.Debug("Subscription already exists, skipping creation", "sub", subConfig.Name)
		} else {
			logger.Error("Failed to create subscription", "sub", subConfig.Name, "err", err)
			return nil, fmt.Errorf("could not create sub: %s", sub)
		}
	}

	return messagepipeline.NewGooglePubsubConsumer(cfg.PubsubConsumerConfig, psClient, logger)
}

type PS string

func convertPubsub(project, id string, ps PS) string {
	return fmt.Sprintf("projects/%s/%s/%s", project, ps, id)
}
