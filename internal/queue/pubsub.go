package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"cloud.google.com/go/pubsub/v2"

	"github.com/samuelzanatto/petapp-notification-service/pkg/dispatch"
)

// PubsubQueue publishes jobs as JSON to a topic. The service's streaming
// pipeline consumes them on the other side.
type PubsubQueue struct {
	publisher *pubsub.Publisher
	logger    *slog.Logger
}

func NewPubsubQueue(client *pubsub.Client, topicID string, logger *slog.Logger) *PubsubQueue {
	return &PubsubQueue{
		publisher: client.Publisher(topicID),
		logger:    logger.With("component", "PubsubQueue", "topic", topicID),
	}
}

// Enqueue blocks until Pub/Sub acknowledges the publish.
func (q *PubsubQueue) Enqueue(ctx context.Context, job dispatch.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal dispatch job: %w", err)
	}

	result := q.publisher.Publish(ctx, &pubsub.Message{
		Data:       payload,
		Attributes: map[string]string{"kind": string(job.Kind)},
	})
	serverID, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to publish dispatch job %s: %w", job.ID, err)
	}
	q.logger.Debug("Dispatch job published", "job_id", job.ID, "server_id", serverID)
	return nil
}

// Close flushes pending publishes.
func (q *PubsubQueue) Close(_ context.Context) error {
	q.publisher.Stop()
	return nil
}
