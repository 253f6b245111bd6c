package fcm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/samuelzanatto/petapp-notification-service/internal/payload"
	"github.com/samuelzanatto/petapp-notification-service/internal/platform"
	"github.com/samuelzanatto/petapp-notification-service/pkg/dispatch"
)

// DefaultLegacyEndpoint is the key-authenticated batch send API.
const DefaultLegacyEndpoint = "https://fcm.googleapis.com/fcm/send"

// LegacyConfig holds the batch endpoint settings.
type LegacyConfig struct {
	Endpoint  string
	ServerKey string
	Timeout   time.Duration
}

// LegacyClient sends one request per chunk of up to 500 registration ids.
// The batch response is not attributable per token, so its errors never
// carry a token and never cause eviction.
type LegacyClient struct {
	endpoint   string
	serverKey  string
	httpClient *http.Client
	builder    *payload.Builder
	logger     *slog.Logger
}

// NewLegacyClient creates the batch strategy. An empty server key leaves the
// client unconfigured; every send then fails with dispatch.ErrNotConfigured
// without touching the network.
func NewLegacyClient(cfg LegacyConfig, builder *payload.Builder, logger *slog.Logger) *LegacyClient {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultLegacyEndpoint
	}
	return &LegacyClient{
		endpoint:   endpoint,
		serverKey:  cfg.ServerKey,
		httpClient: platform.NewHTTPClient(cfg.Timeout),
		builder:    builder,
		logger:     logger.With("component", "FCMLegacyClient"),
	}
}

func (c *LegacyClient) Channel() dispatch.Channel { return dispatch.ChannelFCM }

// Configured reports whether a server key is set.
func (c *LegacyClient) Configured() bool { return c.serverKey != "" }

func (c *LegacyClient) MaxBatch() int { return payload.LegacyMaxBatch }

func (c *LegacyClient) SendOne(ctx context.Context, token string, msg dispatch.Message) (*dispatch.Response, error) {
	return c.SendBatch(ctx, []string{token}, msg)
}

func (c *LegacyClient) SendBatch(ctx context.Context, tokens []string, msg dispatch.Message) (*dispatch.Response, error) {
	if c.serverKey == "" {
		return nil, &dispatch.DeliveryError{Kind: dispatch.ErrorConfiguration, Channel: dispatch.ChannelFCM, Err: dispatch.ErrNotConfigured}
	}
	if len(tokens) == 0 {
		return nil, nil
	}
	if len(tokens) > payload.LegacyMaxBatch {
		return nil, fmt.Errorf("fcm legacy batch of %d exceeds limit %d", len(tokens), payload.LegacyMaxBatch)
	}

	headers := map[string]string{"Authorization": "key=" + c.serverKey}
	resp, err := platform.PostJSON(ctx, c.httpClient, c.endpoint, headers, c.builder.Legacy(tokens, msg))
	if err != nil {
		return nil, &dispatch.DeliveryError{Kind: dispatch.ErrorTransient, Channel: dispatch.ChannelFCM, Err: err}
	}
	if !platform.IsSuccess(resp.StatusCode) {
		return resp, &dispatch.DeliveryError{
			Kind:       platform.KindForStatus(resp.StatusCode),
			Channel:    dispatch.ChannelFCM,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("fcm legacy endpoint rejected batch: %s", string(resp.Body)),
		}
	}

	c.logger.Debug("FCM legacy batch accepted", "tokens", len(tokens))
	return resp, nil
}
