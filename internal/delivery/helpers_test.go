package delivery_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/samuelzanatto/petapp-notification-service/pkg/dispatch"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockTokenStore struct {
	mock.Mock
}

func (m *mockTokenStore) Register(ctx context.Context, reg dispatch.Registration) error {
	return m.Called(ctx, reg).Error(0)
}

func (m *mockTokenStore) Unregister(ctx context.Context, userID, token string) error {
	return m.Called(ctx, userID, token).Error(0)
}

func (m *mockTokenStore) TokensForUsers(ctx context.Context, userIDs []string) ([]dispatch.DeviceToken, error) {
	args := m.Called(ctx, userIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dispatch.DeviceToken), args.Error(1)
}

func (m *mockTokenStore) Evict(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

// fakeProvider records every request and fails the ones errFor selects.
type fakeProvider struct {
	mu         sync.Mutex
	channel    dispatch.Channel
	maxBatch   int
	configured bool
	batches    [][]string
	errFor     func(tokens []string) error
}

func newFakeProvider(channel dispatch.Channel, maxBatch int) *fakeProvider {
	return &fakeProvider{channel: channel, maxBatch: maxBatch, configured: true}
}

func (f *fakeProvider) Channel() dispatch.Channel { return f.channel }
func (f *fakeProvider) MaxBatch() int             { return f.maxBatch }
func (f *fakeProvider) Configured() bool          { return f.configured }

func (f *fakeProvider) SendOne(ctx context.Context, token string, msg dispatch.Message) (*dispatch.Response, error) {
	return f.SendBatch(ctx, []string{token}, msg)
}

func (f *fakeProvider) SendBatch(_ context.Context, tokens []string, _ dispatch.Message) (*dispatch.Response, error) {
	f.mu.Lock()
	f.batches = append(f.batches, append([]string(nil), tokens...))
	f.mu.Unlock()
	if f.errFor != nil {
		if err := f.errFor(tokens); err != nil {
			return &dispatch.Response{StatusCode: 500}, err
		}
	}
	return &dispatch.Response{StatusCode: 200, Body: []byte(`{}`)}, nil
}

func (f *fakeProvider) requests() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batches
}

func deviceTokens(userID string, tokens ...string) []dispatch.DeviceToken {
	out := make([]dispatch.DeviceToken, 0, len(tokens))
	for i, tok := range tokens {
		out = append(out, dispatch.DeviceToken{
			ID:       fmt.Sprintf("%s-%d", userID, i),
			Token:    tok,
			UserID:   userID,
			Platform: dispatch.PlatformAndroid,
		})
	}
	return out
}

func expoTokens(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("ExponentPushToken[%04d]", i)
	}
	return out
}
