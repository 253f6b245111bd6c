package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samuelzanatto/petapp-notification-service/internal/metrics"
	"github.com/samuelzanatto/petapp-notification-service/internal/payload"
	"github.com/samuelzanatto/petapp-notification-service/pkg/dispatch"
)

// DefaultBulkWorkers bounds the concurrent chunk requests of one bulk send.
const DefaultBulkWorkers = 4

// Orchestrator delivers one notification to many users using the batch APIs.
// Batch responses cannot be attributed to a token, so it never evicts.
type Orchestrator struct {
	store   dispatch.TokenStore
	expo    dispatch.ProviderClient
	legacy  dispatch.ProviderClient
	workers int
	metrics *metrics.Delivery
	logger  *slog.Logger
}

// NewOrchestrator creates the bulk sender. workers <= 0 uses DefaultBulkWorkers.
func NewOrchestrator(store dispatch.TokenStore, expo, legacy dispatch.ProviderClient, workers int, m *metrics.Delivery, logger *slog.Logger) *Orchestrator {
	if workers <= 0 {
		workers = DefaultBulkWorkers
	}
	return &Orchestrator{
		store:   store,
		expo:    expo,
		legacy:  legacy,
		workers: workers,
		metrics: m,
		logger:  logger.With("component", "BulkOrchestrator"),
	}
}

// SendBulkPushNotifications performs a single batched token lookup and sends
// chunked requests on both channels.
func (o *Orchestrator) SendBulkPushNotifications(ctx context.Context, userIDs []string, title, body string, data map[string]any) (*dispatch.Report, error) {
	start := time.Now()
	report, err := o.send(ctx, userIDs, dispatch.Message{Title: title, Body: body, Data: data})
	o.metrics.ObserveDispatch(string(dispatch.JobBulk), time.Since(start), err)
	return report, err
}

func (o *Orchestrator) send(ctx context.Context, userIDs []string, msg dispatch.Message) (*dispatch.Report, error) {
	log := o.logger.With("recipients", len(userIDs), "type", msg.Type())
	report := &dispatch.Report{
		Recipients: len(userIDs),
		Expo:       dispatch.ChannelReport{Channel: dispatch.ChannelExpo},
		FCM:        dispatch.ChannelReport{Channel: dispatch.ChannelFCM},
	}
	if len(userIDs) == 0 {
		return report, nil
	}

	tokens, err := o.store.TokensForUsers(ctx, userIDs)
	if err != nil {
		log.Error("Failed to load device tokens", "err", err)
		return report, fmt.Errorf("failed to load tokens for %d users: %w", len(userIDs), err)
	}

	expoTokens, fcmTokens := payload.Partition(tokens)
	report.Tokens = len(expoTokens) + len(fcmTokens)
	if report.Tokens == 0 {
		log.Debug("No devices registered for recipients; nothing to send")
		return report, nil
	}

	report.Expo = sendChunks(ctx, o.expo, expoTokens, msg, o.workers, o.metrics, log)
	report.FCM = sendChunks(ctx, o.legacy, fcmTokens, msg, o.workers, o.metrics, log)

	log.Info("Bulk push dispatched",
		"tokens", report.Tokens,
		"expo_requests", report.Expo.Requests, "expo_sent", report.Expo.Sent,
		"fcm_requests", report.FCM.Requests, "fcm_sent", report.FCM.Sent, "fcm_skipped", report.FCM.Skipped)
	return report, nil
}
