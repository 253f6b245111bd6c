// Package fcm provides the two Firebase Cloud Messaging delivery strategies:
// the OAuth-authenticated HTTP v1 API (one token per request) and the legacy
// server-key batch API.
package fcm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/samuelzanatto/petapp-notification-service/internal/payload"
	"github.com/samuelzanatto/petapp-notification-service/internal/platform"
	"github.com/samuelzanatto/petapp-notification-service/pkg/dispatch"
)

// DefaultBaseURL is the FCM API host.
const DefaultBaseURL = "https://fcm.googleapis.com"

// TokenSource supplies bearer credentials for the v1 API. The credential
// provider satisfies it; tests substitute a fake.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
	ProjectID(ctx context.Context) (string, error)
}

// V1Config holds the v1 endpoint settings.
type V1Config struct {
	BaseURL string
	Timeout time.Duration
}

// V1Client sends one message per registration token.
type V1Client struct {
	baseURL    string
	creds      TokenSource
	httpClient *http.Client
	builder    *payload.Builder
	logger     *slog.Logger
}

// NewV1Client creates the per-token strategy.
func NewV1Client(cfg V1Config, creds TokenSource, builder *payload.Builder, logger *slog.Logger) *V1Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &V1Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		creds:      creds,
		httpClient: platform.NewHTTPClient(cfg.Timeout),
		builder:    builder,
		logger:     logger.With("component", "FCMV1Client"),
	}
}

func (c *V1Client) Channel() dispatch.Channel { return dispatch.ChannelFCM }

// MaxBatch is 1: the v1 API has no multicast endpoint.
func (c *V1Client) MaxBatch() int { return 1 }

// SendOne requests a fresh bearer token, renders the token's own payload and
// sends it. A failure is returned as a DeliveryError carrying that token.
func (c *V1Client) SendOne(ctx context.Context, token string, msg dispatch.Message) (*dispatch.Response, error) {
	project, err := c.creds.ProjectID(ctx)
	if err != nil {
		return nil, c.credentialError(token, err)
	}
	bearer, err := c.creds.AccessToken(ctx)
	if err != nil {
		return nil, c.credentialError(token, err)
	}

	url := fmt.Sprintf("%s/v1/projects/%s/messages:send", c.baseURL, project)
	headers := map[string]string{"Authorization": "Bearer " + bearer}
	body := payload.FCMRequest{Message: c.builder.FCM(token, msg)}

	resp, err := platform.PostJSON(ctx, c.httpClient, url, headers, body)
	if err != nil {
		return nil, &dispatch.DeliveryError{Kind: dispatch.ErrorTransient, Channel: dispatch.ChannelFCM, Token: body.Message.Token, Err: err}
	}
	if platform.IsSuccess(resp.StatusCode) {
		return resp, nil
	}

	kind, reason := classify(resp.StatusCode, resp.Body)
	return resp, &dispatch.DeliveryError{
		Kind:       kind,
		Channel:    dispatch.ChannelFCM,
		Token:      body.Message.Token,
		StatusCode: resp.StatusCode,
		Err:        fmt.Errorf("fcm rejected message: %s", reason),
	}
}

// SendBatch sends sequentially, one request per token. Errors are combined;
// each one still carries its own token.
func (c *V1Client) SendBatch(ctx context.Context, tokens []string, msg dispatch.Message) (*dispatch.Response, error) {
	var last *dispatch.Response
	var errs error
	for _, token := range tokens {
		resp, err := c.SendOne(ctx, token, msg)
		if resp != nil {
			last = resp
		}
		errs = multierr.Append(errs, err)
		if dispatch.IsConfiguration(err) {
			break
		}
	}
	return last, errs
}

func (c *V1Client) credentialError(token string, err error) error {
	kind := dispatch.ErrorTransient
	if dispatch.IsConfiguration(err) {
		kind = dispatch.ErrorConfiguration
	}
	return &dispatch.DeliveryError{Kind: kind, Channel: dispatch.ChannelFCM, Token: token, Err: err}
}
