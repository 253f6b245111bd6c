// Package expo provides the client for the Expo push gateway, which accepts a
// batch of ExponentPushToken[...] recipients per request.
package expo

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

// DefaultEndpoint is the Expo push send API.
const DefaultEndpoint = "https://exp.host/--/api/v2/push/send"

// Config holds the gateway settings.
type Config struct {
	Endpoint string
	// AccessToken is optional; it is only required when the Expo project
	// enforces push security.
	AccessToken string
	Timeout     time.Duration
}

type Client struct {
	endpoint    string
	accessToken string
	httpClient  *http.Client
	builder     *payload.Builder
	logger      *slog.Logger
}

// NewClient creates an Expo client.
func NewClient(cfg Config, builder *payload.Builder, logger *slog.Logger) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint:    endpoint,
		accessToken: cfg.AccessToken,
		httpClient:  platform.NewHTTPClient(cfg.Timeout),
		builder:     builder,
		logger:      logger.With("component", "ExpoClient"),
	}
}

func (c *Client) Channel() dispatch.Channel { return dispatch.ChannelExpo }

func (c *Client) MaxBatch() int { return payload.ExpoMaxBatch }

func (c *Client) SendOne(ctx context.Context, token string, msg dispatch.Message) (*dispatch.Response, error) {
	return c.SendBatch(ctx, []string{token}, msg)
}

// SendBatch posts one message addressed to every token. The gateway's JSON
// answer is passed through untouched; per-ticket errors are not interpreted.
func (c *Client) SendBatch(ctx context.Context, tokens []string, msg dispatch.Message) (*dispatch.Response, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	if len(tokens) > payload.ExpoMaxBatch {
		return nil, fmt.Errorf("expo batch of %d exceeds limit %d", len(tokens), payload.ExpoMaxBatch)
	}

	headers := map[string]string{}
	if c.accessToken != "" {
		headers["Authorization"] = "Bearer " + c.accessToken
	}

	resp, err := platform.PostJSON(ctx, c.httpClient, c.endpoint, headers, c.builder.Expo(tokens, msg))
	if err != nil {
		return nil, &dispatch.DeliveryError{Kind: dispatch.ErrorTransient, Channel: dispatch.ChannelExpo, Err: err}
	}
	if !platform.IsSuccess(resp.StatusCode) {
		return resp, &dispatch.DeliveryError{
			Kind:       platform.KindForStatus(resp.StatusCode),
			Channel:    dispatch.ChannelExpo,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("expo gateway rejected request: %s", string(resp.Body)),
		}
	}

	c.logger.Debug("Expo batch accepted", "tokens", len(tokens), "status", resp.StatusCode)
	return resp, nil
}
