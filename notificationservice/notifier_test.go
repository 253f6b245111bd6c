package notificationservice_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/samuelzanatto/petapp-notification-service/notificationservice"
	"github.com/samuelzanatto/petapp-notification-service/pkg/dispatch"
	"github.com/samuelzanatto/petapp-notification-service/pkg/notification"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockRecordStore struct {
	mock.Mock
}

func (m *mockRecordStore) Create(ctx context.Context, rec *notification.Record) error {
	return m.Called(ctx, rec).Error(0)
}
func (m *mockRecordStore) List(ctx context.Context, userID string, limit int, before time.Time) ([]notification.Record, error) {
	args := m.Called(ctx, userID, limit, before)
	return args.Get(0).([]notification.Record), args.Error(1)
}
func (m *mockRecordStore) UnreadCount(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}
func (m *mockRecordStore) MarkRead(ctx context.Context, userID, id string) error {
	return m.Called(ctx, userID, id).Error(0)
}
func (m *mockRecordStore) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}
func (m *mockRecordStore) Delete(ctx context.Context, userID, id string) error {
	return m.Called(ctx, userID, id).Error(0)
}

type mockQueue struct {
	mock.Mock
}

func (m *mockQueue) Enqueue(ctx context.Context, job dispatch.Job) error {
	return m.Called(ctx, job).Error(0)
}

func likeParams(userID string) notification.Params {
	sender := "alice"
	return notification.Params{
		UserID:   userID,
		Type:     notification.TypeLike,
		Title:    "Nova curtida",
		Message:  "Alice curtiu sua postagem",
		Data:     map[string]any{"postId": "p1"},
		SenderID: &sender,
	}
}

func TestNotifier_SendFullNotification(t *testing.T) {
	ctx := context.Background()

	t.Run("Record persists even when push hand-off fails", func(t *testing.T) {
		store, q := new(mockRecordStore), new(mockQueue)
		store.On("Create", ctx, mock.AnythingOfType("*notification.Record")).Return(nil).Once()
		q.On("Enqueue", ctx, mock.Anything).Return(errors.New("queue full")).Once()

		n := notificationservice.NewNotifier(store, q, 2, newTestLogger())
		rec, err := n.SendFullNotification(ctx, likeParams("u1"))

		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.NotEmpty(t, rec.ID)
		assert.Equal(t, "u1", rec.UserID)
		store.AssertExpectations(t)
		q.AssertExpectations(t)
	})

	t.Run("Push data is enriched for client routing", func(t *testing.T) {
		store, q := new(mockRecordStore), new(mockQueue)
		store.On("Create", ctx, mock.Anything).Return(nil)
		var job dispatch.Job
		q.On("Enqueue", ctx, mock.Anything).Run(func(args mock.Arguments) {
			job = args.Get(1).(dispatch.Job)
		}).Return(nil)

		n := notificationservice.NewNotifier(store, q, 2, newTestLogger())
		params := likeParams("u1")
		rec, err := n.SendFullNotification(ctx, params)

		require.NoError(t, err)
		assert.Equal(t, dispatch.JobSingle, job.Kind)
		assert.Equal(t, []string{"u1"}, job.UserIDs)
		assert.Equal(t, "Nova curtida", job.Message.Title)
		assert.Equal(t, "Alice curtiu sua postagem", job.Message.Body)
		assert.Equal(t, "LIKE", job.Message.Data["type"])
		assert.Equal(t, rec.ID, job.Message.Data["notificationId"])
		assert.Equal(t, "alice", job.Message.Data["senderId"])
		assert.Equal(t, "p1", job.Message.Data["postId"])
		// The caller's map is not mutated.
		assert.NotContains(t, params.Data, "type")
	})

	t.Run("Persistence failure propagates and nothing is queued", func(t *testing.T) {
		store, q := new(mockRecordStore), new(mockQueue)
		store.On("Create", ctx, mock.Anything).Return(errors.New("db down"))

		n := notificationservice.NewNotifier(store, q, 2, newTestLogger())
		_, err := n.SendFullNotification(ctx, likeParams("u1"))

		assert.ErrorContains(t, err, "db down")
		q.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
	})

	t.Run("Invalid params are rejected before persistence", func(t *testing.T) {
		store, q := new(mockRecordStore), new(mockQueue)
		n := notificationservice.NewNotifier(store, q, 2, newTestLogger())

		_, err := n.SendFullNotification(ctx, notification.Params{UserID: "u1", Type: "BOGUS", Title: "t"})

		assert.Error(t, err)
		store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestNotifier_CreateNotification(t *testing.T) {
	ctx := context.Background()
	store, q := new(mockRecordStore), new(mockQueue)
	store.On("Create", ctx, mock.Anything).Return(nil).Once()

	n := notificationservice.NewNotifier(store, q, 2, newTestLogger())
	_, err := n.CreateNotification(ctx, likeParams("u1"))

	require.NoError(t, err)
	q.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

func TestNotifier_SendBulkFullNotifications(t *testing.T) {
	ctx := context.Background()
	bulk := notification.BulkParams{
		UserIDs: []string{"u1", "u2", "u3", "u2", ""},
		Type:    notification.TypeLostPet,
		Title:   "Pet perdido perto de você",
		Message: "Rex sumiu no parque",
		Data:    map[string]any{"petId": "rex"},
	}

	t.Run("One record per distinct recipient and a single bulk job", func(t *testing.T) {
		store, q := new(mockRecordStore), new(mockQueue)
		store.On("Create", ctx, mock.Anything).Return(nil).Times(3)
		var job dispatch.Job
		q.On("Enqueue", ctx, mock.Anything).Run(func(args mock.Arguments) {
			job = args.Get(1).(dispatch.Job)
		}).Return(nil).Once()

		n := notificationservice.NewNotifier(store, q, 2, newTestLogger())
		records, err := n.SendBulkFullNotifications(ctx, bulk)

		require.NoError(t, err)
		require.Len(t, records, 3)
		owners := []string{records[0].UserID, records[1].UserID, records[2].UserID}
		assert.Equal(t, []string{"u1", "u2", "u3"}, owners)
		assert.Equal(t, dispatch.JobBulk, job.Kind)
		assert.Equal(t, []string{"u1", "u2", "u3"}, job.UserIDs)
		assert.Equal(t, "LOST_PET", job.Message.Data["type"])
		assert.NotContains(t, job.Message.Data, "notificationId")
		store.AssertExpectations(t)
	})

	t.Run("Any persistence failure aborts the push", func(t *testing.T) {
		store, q := new(mockRecordStore), new(mockQueue)
		store.On("Create", ctx, mock.MatchedBy(func(r *notification.Record) bool { return r.UserID == "u2" })).Return(errors.New("constraint"))
		store.On("Create", ctx, mock.Anything).Return(nil)

		n := notificationservice.NewNotifier(store, q, 2, newTestLogger())
		_, err := n.SendBulkFullNotifications(ctx, bulk)

		assert.ErrorContains(t, err, "constraint")
		q.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
	})

	t.Run("Empty recipient list is a no-op", func(t *testing.T) {
		store, q := new(mockRecordStore), new(mockQueue)
		n := notificationservice.NewNotifier(store, q, 2, newTestLogger())

		records, err := n.SendBulkFullNotifications(ctx, notification.BulkParams{Type: notification.TypeSystem, Title: "t"})

		require.NoError(t, err)
		assert.Empty(t, records)
		store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}
