package pipeline_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samuelzanatto/petapp-notification-service/internal/pipeline"
	"github.com/samuelzanatto/petapp-notification-service/pkg/dispatch"
)

func TestDispatchJobTransformer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	valid, err := json.Marshal(dispatch.Job{
		Kind:    dispatch.JobSingle,
		UserIDs: []string{"user-123"},
		Message: dispatch.Message{Title: "Nova curtida", Body: "Alice curtiu", Data: map[string]any{"type": "LIKE"}},
	})
	require.NoError(t, err)

	noRecipients, err := json.Marshal(dispatch.Job{ID: "job-2", Kind: dispatch.JobBulk})
	require.NoError(t, err)

	testCases := []struct {
		name                  string
		inputMessage          *messagepipeline.Message
		expectError           bool
		expectedErrorContains string
	}{
		{
			name: "Happy Path - Valid Job",
			inputMessage: &messagepipeline.Message{
				MessageData: messagepipeline.MessageData{ID: "msg-1", Payload: valid},
			},
		},
		{
			name: "Failure - Malformed JSON",
			inputMessage: &messagepipeline.Message{
				MessageData: messagepipeline.MessageData{ID: "msg-2", Payload: []byte("not-json")},
			},
			expectError:           true,
			expectedErrorContains: "failed to unmarshal dispatch job",
		},
		{
			name: "Failure - Bulk Job Without Recipients",
			inputMessage: &messagepipeline.Message{
				MessageData: messagepipeline.MessageData{ID: "msg-3", Payload: noRecipients},
			},
			expectError:           true,
			expectedErrorContains: "invalid dispatch job",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			job, skip, err := pipeline.DispatchJobTransformer(ctx, tc.inputMessage)

			if tc.expectError {
				require.Error(t, err)
				assert.True(t, skip)
				assert.Nil(t, job)
				assert.Contains(t, err.Error(), tc.expectedErrorContains)
				return
			}
			require.NoError(t, err)
			assert.False(t, skip)
			require.NotNil(t, job)
			assert.Equal(t, "msg-1", job.ID)
			assert.Equal(t, []string{"user-123"}, job.UserIDs)
			assert.Equal(t, "LIKE", job.Message.Type())
		})
	}
}
