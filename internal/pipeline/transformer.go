// Package pipeline contains the message processing components that turn
// queued dispatch jobs into push deliveries.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/samuelzanatto/petapp-notification-service/pkg/dispatch"
)

// DispatchJobTransformer is a dataflow Transformer that unmarshals and
// validates a raw message payload into a dispatch.Job.
//
// Malformed or unroutable payloads return an error with skip=true; the
// StreamingService nacks them and the subscription's dead-letter policy moves
// them to the DLQ topic.
func DispatchJobTransformer(
	_ context.Context,
	msg *messagepipeline.Message,
) (*dispatch.Job, bool, error) {
	var job dispatch.Job
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		return nil, true, fmt.Errorf("failed to unmarshal dispatch job from message %s: %w", msg.ID, err)
	}
	if err := job.Validate(); err != nil {
		return nil, true, fmt.Errorf("invalid dispatch job in message %s: %w", msg.ID, err)
	}
	if job.ID == "" {
		job.ID = msg.ID
	}
	return &job, false, nil
}
