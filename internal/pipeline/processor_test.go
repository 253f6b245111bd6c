package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/samuelzanatto/petapp-notification-service/internal/pipeline"
	"github.com/samuelzanatto/petapp-notification-service/pkg/dispatch"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Typed Mocks ---

type mockSingle struct {
	mock.Mock
}

func (m *mockSingle) SendPushNotification(ctx context.Context, userID, title, body string, data map[string]any) (*dispatch.Report, error) {
	args := m.Called(ctx, userID, title, body, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dispatch.Report), args.Error(1)
}

type mockBulk struct {
	mock.Mock
}

func (m *mockBulk) SendBulkPushNotifications(ctx context.Context, userIDs []string, title, body string, data map[string]any) (*dispatch.Report, error) {
	args := m.Called(ctx, userIDs, title, body, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dispatch.Report), args.Error(1)
}

func TestProcessor_Routing(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	msg := dispatch.Message{Title: "Hello", Body: "World", Data: map[string]any{"type": "SYSTEM"}}

	t.Run("Routes single jobs to the dispatcher", func(t *testing.T) {
		single, bulk := new(mockSingle), new(mockBulk)
		single.On("SendPushNotification", mock.Anything, "u1", "Hello", "World", msg.Data).Return(&dispatch.Report{}, nil)

		processor := pipeline.NewProcessor(pipeline.NewJobHandler(single, bulk, logger), logger)
		err := processor(ctx, messagepipeline.Message{}, &dispatch.Job{ID: "j1", Kind: dispatch.JobSingle, UserIDs: []string{"u1"}, Message: msg})

		require.NoError(t, err)
		single.AssertExpectations(t)
		bulk.AssertNotCalled(t, "SendBulkPushNotifications", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Routes bulk jobs to the orchestrator", func(t *testing.T) {
		single, bulk := new(mockSingle), new(mockBulk)
		users := []string{"u1", "u2", "u3"}
		bulk.On("SendBulkPushNotifications", mock.Anything, users, "Hello", "World", msg.Data).Return(&dispatch.Report{Recipients: 3}, nil)

		processor := pipeline.NewProcessor(pipeline.NewJobHandler(single, bulk, logger), logger)
		err := processor(ctx, messagepipeline.Message{}, &dispatch.Job{ID: "j2", Kind: dispatch.JobBulk, UserIDs: users, Message: msg})

		require.NoError(t, err)
		bulk.AssertExpectations(t)
	})

	t.Run("Token lookup failure is retryable", func(t *testing.T) {
		single, bulk := new(mockSingle), new(mockBulk)
		single.On("SendPushNotification", mock.Anything, "u1", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("db down"))

		processor := pipeline.NewProcessor(pipeline.NewJobHandler(single, bulk, logger), logger)
		err := processor(ctx, messagepipeline.Message{}, &dispatch.Job{ID: "j3", Kind: dispatch.JobSingle, UserIDs: []string{"u1"}, Message: msg})

		assert.ErrorContains(t, err, "db down")
	})
}
