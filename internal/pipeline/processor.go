package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/samuelzanatto/petapp-notification-service/pkg/dispatch"
)

// SingleSender delivers to every device of one user.
type SingleSender interface {
	SendPushNotification(ctx context.Context, userID, title, body string, data map[string]any) (*dispatch.Report, error)
}

// BulkSender delivers to every device of many users.
type BulkSender interface {
	SendBulkPushNotifications(ctx context.Context, userIDs []string, title, body string, data map[string]any) (*dispatch.Report, error)
}

// JobHandler executes one dispatch job.
type JobHandler func(ctx context.Context, job dispatch.Job) error

// NewJobHandler routes jobs to the single or bulk path. Delivery failures are
// best effort and already logged by the senders; only a failed token lookup
// comes back as an error, which makes the job retryable.
func NewJobHandler(single SingleSender, bulk BulkSender, logger *slog.Logger) JobHandler {
	return func(ctx context.Context, job dispatch.Job) error {
		jobLogger := logger.With("job_id", job.ID, "kind", job.Kind, "recipients", len(job.UserIDs))
		msg := job.Message

		var report *dispatch.Report
		var err error
		switch job.Kind {
		case dispatch.JobSingle:
			report, err = single.SendPushNotification(ctx, job.UserIDs[0], msg.Title, msg.Body, msg.Data)
		case dispatch.JobBulk:
			report, err = bulk.SendBulkPushNotifications(ctx, job.UserIDs, msg.Title, msg.Body, msg.Data)
		default:
			jobLogger.Warn("Dropping job with unknown kind")
			return nil
		}
		if err != nil {
			jobLogger.Error("Dispatch job failed", "err", err)
			return fmt.Errorf("dispatch job %s: %w", job.ID, err)
		}

		jobLogger.Debug("Dispatch job complete", "tokens", report.Tokens)
		return nil
	}
}

// NewProcessor adapts a JobHandler to the streaming pipeline.
func NewProcessor(handle JobHandler, logger *slog.Logger) messagepipeline.StreamProcessor[dispatch.Job] {
	return func(ctx context.Context, original messagepipeline.Message, job *dispatch.Job) error {
		if err := handle(ctx, *job); err != nil {
			logger.Warn("Job will be redelivered", "pubsub_msg_id", original.ID, "err", err)
			return err
		}
		return nil
	}
}
