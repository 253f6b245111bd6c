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

// Dispatcher delivers a notification to every device of a single user. FCM
// tokens are sent one at a time so a dead token can be identified and evicted.
type Dispatcher struct {
	store   dispatch.TokenStore
	expo    dispatch.ProviderClient
	fcm     dispatch.ProviderClient
	metrics *metrics.Delivery
	logger  *slog.Logger
}

// NewDispatcher creates the single-recipient dispatcher.
func NewDispatcher(store dispatch.TokenStore, expo, fcm dispatch.ProviderClient, m *metrics.Delivery, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:   store,
		expo:    expo,
		fcm:     fcm,
		metrics: m,
		logger:  logger.With("component", "Dispatcher"),
	}
}

// SendPushNotification delivers to all of userID's devices. The only error
// returned is a failed token lookup; delivery failures are logged and
// reflected in the report.
func (d *Dispatcher) SendPushNotification(ctx context.Context, userID, title, body string, data map[string]any) (*dispatch.Report, error) {
	start := time.Now()
	report, err := d.send(ctx, userID, dispatch.Message{Title: title, Body: body, Data: data})
	d.metrics.ObserveDispatch(string(dispatch.JobSingle), time.Since(start), err)
	return report, err
}

func (d *Dispatcher) send(ctx context.Context, userID string, msg dispatch.Message) (*dispatch.Report, error) {
	log := d.logger.With("user_id", userID, "type", msg.Type())
	report := &dispatch.Report{
		Recipients: 1,
		Expo:       dispatch.ChannelReport{Channel: dispatch.ChannelExpo},
		FCM:        dispatch.ChannelReport{Channel: dispatch.ChannelFCM},
	}

	tokens, err := d.store.TokensForUsers(ctx, []string{userID})
	if err != nil {
		log.Error("Failed to load device tokens", "err", err)
		return report, fmt.Errorf("failed to load tokens for user %s: %w", userID, err)
	}
	if len(tokens) == 0 {
		log.Debug("No devices registered for user; nothing to send")
		return report, nil
	}

	expoTokens, fcmTokens := payload.Partition(tokens)
	report.Tokens = len(expoTokens) + len(fcmTokens)

	report.Expo = sendChunks(ctx, d.expo, expoTokens, msg, 1, d.metrics, log)
	report.FCM = d.sendFCM(ctx, fcmTokens, msg, log)

	log.Info("Push dispatched",
		"expo_sent", report.Expo.Sent, "expo_failed", report.Expo.Failed,
		"fcm_sent", report.FCM.Sent, "fcm_failed", report.FCM.Failed,
		"evicted", len(report.FCM.Evicted))
	return report, nil
}

// sendFCM walks the tokens sequentially. An unregistered token is evicted
// using the token carried by that request's own error. The walk stops once
// ctx is done; the remaining tokens are left untouched.
func (d *Dispatcher) sendFCM(ctx context.Context, tokens []string, msg dispatch.Message, log *slog.Logger) dispatch.ChannelReport {
	report := dispatch.ChannelReport{Channel: dispatch.ChannelFCM, Tokens: len(tokens)}

	for i, token := range tokens {
		if err := ctx.Err(); err != nil {
			log.Warn("FCM dispatch interrupted", "remaining", len(tokens)-i, "err", err)
			break
		}
		resp, err := d.fcm.SendOne(ctx, token, msg)
		report.Record(1, resp, err)
		d.metrics.ObserveRequest(dispatch.ChannelFCM, 1, err)
		if err == nil {
			continue
		}

		if dead, ok := dispatch.InvalidToken(err); ok {
			if evictErr := d.store.Evict(ctx, dead); evictErr != nil {
				log.Warn("Failed to evict unregistered token", "err", evictErr)
				continue
			}
			log.Info("Evicted unregistered device token")
			report.Evicted = append(report.Evicted, dead)
			d.metrics.IncEviction(dispatch.ChannelFCM)
			continue
		}

		if dispatch.IsConfiguration(err) {
			log.Error("FCM not configured; aborting channel for this dispatch", "err", err)
			report.Skipped = true
			break
		}

		log.Warn("FCM delivery failed", "err", err)
	}
	return report
}
