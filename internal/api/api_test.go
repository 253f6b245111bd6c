package api_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/samuelzanatto/petapp-notification-service/pkg/dispatch"
	"github.com/samuelzanatto/petapp-notification-service/pkg/notification"
)

// --- Mocks ---

type MockRegistry struct {
	mock.Mock
}

func (m *MockRegistry) Register(ctx context.Context, reg dispatch.Registration) error {
	return m.Called(ctx, reg).Error(0)
}

func (m *MockRegistry) Unregister(ctx context.Context, userID, token string) error {
	return m.Called(ctx, userID, token).Error(0)
}

type MockRecordStore struct {
	mock.Mock
}

func (m *MockRecordStore) Create(ctx context.Context, rec *notification.Record) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *MockRecordStore) List(ctx context.Context, userID string, limit int, before time.Time) ([]notification.Record, error) {
	args := m.Called(ctx, userID, limit, before)
	recs, _ := args.Get(0).([]notification.Record)
	return recs, args.Error(1)
}

func (m *MockRecordStore) UnreadCount(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRecordStore) MarkRead(ctx context.Context, userID, id string) error {
	return m.Called(ctx, userID, id).Error(0)
}

func (m *MockRecordStore) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRecordStore) Delete(ctx context.Context, userID, id string) error {
	return m.Called(ctx, userID, id).Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) CreateNotification(ctx context.Context, p notification.Params) (*notification.Record, error) {
	args := m.Called(ctx, p)
	rec, _ := args.Get(0).(*notification.Record)
	return rec, args.Error(1)
}

func (m *MockNotifier) SendFullNotification(ctx context.Context, p notification.Params) (*notification.Record, error) {
	args := m.Called(ctx, p)
	rec, _ := args.Get(0).(*notification.Record)
	return rec, args.Error(1)
}

func (m *MockNotifier) SendBulkFullNotifications(ctx context.Context, p notification.BulkParams) ([]notification.Record, error) {
	args := m.Called(ctx, p)
	recs, _ := args.Get(0).([]notification.Record)
	return recs, args.Error(1)
}

// --- Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// withUser injects the user id the auth middleware would normally supply.
func withUser(req *http.Request, userID string) *http.Request {
	ctx := middleware.ContextWithUserID(req.Context(), userID)
	return req.WithContext(ctx)
}

func jsonBody(s string) io.Reader {
	return strings.NewReader(s)
}
