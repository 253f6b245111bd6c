package notificationservice

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/samuelzanatto/petapp-notification-service/pkg/dispatch"
	"github.com/samuelzanatto/petapp-notification-service/pkg/notification"
)

// DefaultPersistWorkers bounds concurrent record writes of a bulk send.
const DefaultPersistWorkers = 8

// Notifier is the entry point feature handlers call. The in-app record is
// always written first; push delivery is handed to the queue afterwards and
// can never undo or fail the write.
type Notifier struct {
	records notification.Store
	queue   dispatch.Queue
	workers int
	logger  *slog.Logger
	now     func() time.Time
}

func NewNotifier(records notification.Store, queue dispatch.Queue, workers int, logger *slog.Logger) *Notifier {
	if workers <= 0 {
		workers = DefaultPersistWorkers
	}
	return &Notifier{
		records: records,
		queue:   queue,
		workers: workers,
		logger:  logger.With("component", "Notifier"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateNotification persists a record without sending a push.
func (n *Notifier) CreateNotification(ctx context.Context, p notification.Params) (*notification.Record, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	rec := n.newRecord(p)
	if err := n.records.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// SendFullNotification persists the record and queues a push to its owner.
func (n *Notifier) SendFullNotification(ctx context.Context, p notification.Params) (*notification.Record, error) {
	rec, err := n.CreateNotification(ctx, p)
	if err != nil {
		return nil, err
	}

	data := pushData(p.Type, p.Data, p.SenderID, p.ImageURL)
	data["notificationId"] = rec.ID
	n.enqueue(ctx, dispatch.JobSingle, []string{p.UserID}, p.Title, p.Message, data)
	return rec, nil
}

// SendBulkFullNotifications persists one record per distinct recipient, then
// queues a single bulk push. Any persistence failure is returned and nothing
// is sent.
func (n *Notifier) SendBulkFullNotifications(ctx context.Context, p notification.BulkParams) ([]notification.Record, error) {
	recipients := dedupe(p.UserIDs)
	if len(recipients) == 0 {
		return nil, nil
	}
	for _, userID := range recipients {
		if err := p.ForUser(userID).Validate(); err != nil {
			return nil, err
		}
	}

	records := make([]notification.Record, len(recipients))
	var mu sync.Mutex
	var errs error

	var g errgroup.Group
	g.SetLimit(n.workers)
	for i, userID := range recipients {
		g.Go(func() error {
			rec := n.newRecord(p.ForUser(userID))
			if err := n.records.Create(ctx, rec); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
				return nil
			}
			records[i] = *rec
			return nil
		})
	}
	_ = g.Wait()
	if errs != nil {
		return nil, fmt.Errorf("failed to persist bulk notification: %w", errs)
	}

	data := pushData(p.Type, p.Data, p.SenderID, p.ImageURL)
	n.enqueue(ctx, dispatch.JobBulk, recipients, p.Title, p.Message, data)
	return records, nil
}

func (n *Notifier) newRecord(p notification.Params) *notification.Record {
	return &notification.Record{
		ID:        uuid.NewString(),
		UserID:    p.UserID,
		Type:      p.Type,
		Title:     p.Title,
		Message:   p.Message,
		Data:      p.Data,
		ImageURL:  p.ImageURL,
		SenderID:  p.SenderID,
		CreatedAt: n.now(),
	}
}

func (n *Notifier) enqueue(ctx context.Context, kind dispatch.JobKind, userIDs []string, title, body string, data map[string]any) {
	job := dispatch.Job{
		ID:         uuid.NewString(),
		Kind:       kind,
		UserIDs:    userIDs,
		Message:    dispatch.Message{Title: title, Body: body, Data: data},
		EnqueuedAt: n.now(),
	}
	if err := n.queue.Enqueue(ctx, job); err != nil {
		n.logger.Error("Failed to enqueue push dispatch", "job_id", job.ID, "kind", kind, "recipients", len(userIDs), "err", err)
	}
}

// pushData copies the caller's data map and merges in the fields every
// client screen routes on.
func pushData(t notification.Type, in map[string]any, senderID, imageURL *string) map[string]any {
	data := make(map[string]any, len(in)+4)
	maps.Copy(data, in)
	data["type"] = string(t)
	if senderID != nil && *senderID != "" {
		data["senderId"] = *senderID
	}
	if imageURL != nil && *imageURL != "" {
		data["imageUrl"] = *imageURL
	}
	return data
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
