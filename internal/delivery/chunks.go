// Package delivery fans a logical notification out to every registered device
// of its recipients across the Expo and FCM channels.
package delivery

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/samuelzanatto/petapp-notification-service/internal/metrics"
	"github.com/samuelzanatto/petapp-notification-service/internal/payload"
	"github.com/samuelzanatto/petapp-notification-service/pkg/dispatch"
)

// Configurable is implemented by providers that know up front whether they
// can send at all.
type Configurable interface {
	Configured() bool
}

type chunkOutcome struct {
	tokens int
	resp   *dispatch.Response
	err    error
}

// sendChunks splits tokens at the provider's batch limit and sends one request
// per chunk on at most workers goroutines. A failed chunk never stops the
// others. Chunk results keep their input order.
func sendChunks(
	ctx context.Context,
	client dispatch.ProviderClient,
	tokens []string,
	msg dispatch.Message,
	workers int,
	m *metrics.Delivery,
	logger *slog.Logger,
) dispatch.ChannelReport {
	report := dispatch.ChannelReport{Channel: client.Channel(), Tokens: len(tokens)}
	if len(tokens) == 0 {
		return report
	}
	if c, ok := client.(Configurable); ok && !c.Configured() {
		logger.Warn("Provider not configured; skipping channel", "channel", client.Channel(), "tokens", len(tokens))
		report.Skipped = true
		return report
	}

	chunks := payload.Chunk(tokens, client.MaxBatch())
	outcomes := make([]chunkOutcome, len(chunks))

	var g errgroup.Group
	g.SetLimit(max(workers, 1))
	for i, chunk := range chunks {
		g.Go(func() error {
			resp, err := client.SendBatch(ctx, chunk, msg)
			outcomes[i] = chunkOutcome{tokens: len(chunk), resp: resp, err: err}
			m.ObserveRequest(client.Channel(), len(chunk), err)
			if err != nil {
				logger.Error("Chunk delivery failed", "channel", client.Channel(), "chunk", i, "tokens", len(chunk), "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		report.Record(o.tokens, o.resp, o.err)
		if dispatch.IsConfiguration(o.err) {
			report.Skipped = true
		}
	}
	return report
}
