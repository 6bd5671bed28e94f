package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumedesk/internal/errcode"
	"resumedesk/internal/tasks"
)

type stubNotifier struct {
	err   error
	calls []int64
}

func (s *stubNotifier) NotifySubmission(_ context.Context, userID int64) error {
	s.calls = append(s.calls, userID)
	return s.err
}

func notifyTask(t *testing.T, userID int64) *asynq.Task {
	t.Helper()
	task, err := tasks.NewNotifySubmissionTask(userID, "1")
	require.NoError(t, err)
	return task
}

func TestNotifyTaskHandler(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantErr   bool
		skipRetry bool
	}{
		{name: "delivered"},
		{name: "record gone", err: fmt.Errorf("resume 5: %w", errcode.ErrNotFound)},
		{name: "all recipients failed", err: fmt.Errorf("%w: nobody", errcode.ErrTransport), wantErr: true, skipRetry: true},
		{name: "database error", err: fmt.Errorf("%w: down", errcode.ErrPersistence), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &stubNotifier{err: tt.err}
			h := NewNotifyTaskHandler(n, nil)

			err := h.ProcessTask(context.Background(), notifyTask(t, 5))
			assert.Equal(t, []int64{5}, n.calls)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.skipRetry, errors.Is(err, asynq.SkipRetry))
		})
	}
}

func TestNotifyTaskHandlerBadPayload(t *testing.T) {
	n := &stubNotifier{}
	h := NewNotifyTaskHandler(n, nil)

	err := h.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeNotifySubmission, []byte("{")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	assert.Empty(t, n.calls)
}

func TestNotifyTaskIDIsPerSubmission(t *testing.T) {
	task, err := tasks.NewNotifySubmissionTask(5, "100")
	require.NoError(t, err)

	var payload tasks.NotifySubmissionPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, int64(5), payload.UserID)
	assert.Equal(t, "notify:5:100", tasks.NotifyTaskID(5, "100"))
	assert.NotEqual(t, tasks.NotifyTaskID(5, "100"), tasks.NotifyTaskID(5, "101"))
}
