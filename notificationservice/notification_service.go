package notificationservice

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"go.uber.org/multierr"

	"github.com/samuelzanatto/petapp-notification-service/internal/api"
	"github.com/samuelzanatto/petapp-notification-service/internal/pipeline"
	"github.com/samuelzanatto/petapp-notification-service/notificationservice/config"
	"github.com/samuelzanatto/petapp-notification-service/pkg/dispatch"
	"github.com/samuelzanatto/petapp-notification-service/pkg/notification"
)

// Closer is a component that must be drained on shutdown, e.g. the local
// dispatch queue or the Pub/Sub publisher.
type Closer interface {
	Close(ctx context.Context) error
}

// Dependencies are the assembled components the service routes to.
type Dependencies struct {
	Tokens   api.DeviceRegistry
	Records  notification.Store
	Notifier api.Notifier

	// Consumer and Jobs are only set for the Pub/Sub queue backend; the
	// local backend runs its own workers.
	Consumer messagepipeline.MessageConsumer
	Jobs     pipeline.JobHandler

	Queue    Closer
	Gatherer prometheus.Gatherer
}

type Wrapper struct {
	*microservice.BaseServer
	pipelineService *messagepipeline.StreamingService[dispatch.Job]
	queue           Closer
	logger          *slog.Logger
}

// New assembles the service.
func New(
	cfg *config.Config,
	deps Dependencies,
	authMiddleware func(http.Handler) http.Handler,
	logger *slog.Logger,
) (*Wrapper, error) {

	// 1. Base Server
	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)

	// 2. Pipeline (Pub/Sub backend only)
	var streamingService *messagepipeline.StreamingService[dispatch.Job]
	if deps.Consumer != nil {
		if deps.Jobs == nil {
			return nil, fmt.Errorf("a job handler is required when a consumer is configured")
		}
		processor := pipeline.NewProcessor(deps.Jobs, logger.With("component", "processor"))

		var err error
		streamingService, err = messagepipeline.NewStreamingService(
			messagepipeline.StreamingServiceConfig{NumWorkers: cfg.Queue.NumPipelineWorkers},
			deps.Consumer,
			pipeline.DispatchJobTransformer,
			processor,
			logger,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create streaming service: %w", err)
		}
	}

	// 3. APIs
	tokenAPI := api.NewTokenAPI(deps.Tokens, logger)
	listAPI := api.NewNotificationsAPI(deps.Records, logger)
	sendAPI := api.NewSendAPI(deps.Notifier, logger)

	// Register Routes
	mux := baseServer.Mux()
	corsMiddleware := middleware.NewCorsMiddleware(cfg.CorsConfig, logger)

	handle := func(pattern string, handlerFunc http.HandlerFunc) {
		mux.Handle(pattern, corsMiddleware(authMiddleware(handlerFunc)))
	}

	// 1. Devices
	handle("POST /api/v1/devices", tokenAPI.RegisterDevice)
	handle("POST /api/v1/devices/unregister", tokenAPI.UnregisterDevice)

	// 2. In-app notification list
	handle("GET /api/v1/notifications", listAPI.List)
	handle("POST /api/v1/notifications/read-all", listAPI.MarkAllRead)
	handle("POST /api/v1/notifications/{id}/read", listAPI.MarkRead)
	handle("DELETE /api/v1/notifications/{id}", listAPI.Delete)

	// 3. Feature handler entry points
	mux.Handle("POST /internal/v1/notifications", authMiddleware(http.HandlerFunc(sendAPI.Send)))
	mux.Handle("POST /internal/v1/notifications/bulk", authMiddleware(http.HandlerFunc(sendAPI.SendBulk)))

	// 4. Global OPTIONS for the API namespace (CORS preflight)
	mux.Handle("OPTIONS /api/v1/", corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Just returns 200 OK with CORS headers handled by middleware
	})))

	if deps.Gatherer != nil {
		mux.Handle("GET /metrics/push", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	return &Wrapper{
		BaseServer:      baseServer,
		pipelineService: streamingService,
		queue:           deps.Queue,
		logger:          logger,
	}, nil
}

func (w *Wrapper) Start(ctx context.Context) error {
	if w.pipelineService != nil {
		w.logger.Info("Core processing pipeline starting...")
		if err := w.pipelineService.Start(ctx); err != nil {
			return fmt.Errorf("failed to start processing service: %w", err)
		}
	}
	w.SetReady(true)
	w.logger.Info("Service is now ready.")
	return w.BaseServer.Start()
}

// Shutdown stops taking requests first, then drains queued dispatch work.
func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service components...")
	var finalErr error
	if err := w.BaseServer.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		finalErr = multierr.Append(finalErr, err)
	}
	if w.queue != nil {
		if err := w.queue.Close(ctx); err != nil {
			w.logger.Error("Dispatch queue drain failed.", "err", err)
			finalErr = multierr.Append(finalErr, err)
		}
	}
	if w.pipelineService != nil {
		if err := w.pipelineService.Stop(ctx); err != nil {
			w.logger.Error("Processing pipeline shutdown failed.", "err", err)
			finalErr = multierr.Append(finalErr, err)
		}
	}
	w.logger.Info("Service shutdown complete.")
	return finalErr
}
