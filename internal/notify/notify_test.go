package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumedesk/internal/database/dbtest"
	"resumedesk/internal/errcode"
	"resumedesk/internal/fields"
	"resumedesk/internal/resume"
	"resumedesk/internal/store"
	"resumedesk/internal/tasks"
	"resumedesk/internal/transport"
)

type recordingMessenger struct {
	mu     sync.Mutex
	sent   map[int64][]transport.Message
	broken map[int64]bool
}

func newRecordingMessenger(broken ...int64) *recordingMessenger {
	m := &recordingMessenger{sent: make(map[int64][]transport.Message), broken: make(map[int64]bool)}
	for _, id := range broken {
		m.broken[id] = true
	}
	return m
}

func (m *recordingMessenger) Send(_ context.Context, chatID int64, msg transport.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.broken[chatID] {
		return fmt.Errorf("%w: chat %d unreachable", errcode.ErrTransport, chatID)
	}
	m.sent[chatID] = append(m.sent[chatID], msg)
	return nil
}

func (m *recordingMessenger) SendDocument(context.Context, int64, transport.Document) error {
	return nil
}

func seededStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New(dbtest.Open(t), fields.Default())
	at := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveIntake(context.Background(), 42, resume.Intake{
		FullName: "Ali Rezaei", Username: "ali_rz", Major: "Surveying", RegisterDate: &at,
	}))
	return s
}

func TestFanoutSendsOneMessagePerOperator(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)
	m := newRecordingMessenger()

	require.NoError(t, NewFanout(m, s, []int64{100, 200}, nil).NotifySubmission(ctx, 42))

	for _, op := range []int64{100, 200} {
		require.Len(t, m.sent[op], 1)
		msg := m.sent[op][0]
		assert.Contains(t, msg.Text, "Ali Rezaei")
		assert.Contains(t, msg.Text, "@ali_rz")
		require.Len(t, msg.Buttons, 1)
		assert.Equal(t, "adm:view:42", msg.Buttons[0][0].Data)
	}
	assert.Empty(t, m.sent[42], "the applicant is not notified")

	rec, err := s.Get(ctx, 42)
	require.NoError(t, err)
	assert.True(t, rec.IsAdminNotified)
}

func TestFanoutContinuesPastFailedRecipient(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)
	m := newRecordingMessenger(100)

	require.NoError(t, NewFanout(m, s, []int64{100, 200, 300}, nil).NotifySubmission(ctx, 42))
	assert.Empty(t, m.sent[100])
	assert.Len(t, m.sent[200], 1)
	assert.Len(t, m.sent[300], 1)
}

func TestFanoutAllRecipientsFail(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)
	m := newRecordingMessenger(100, 200)

	err := NewFanout(m, s, []int64{100, 200}, nil).NotifySubmission(ctx, 42)
	assert.True(t, errors.Is(err, errcode.ErrTransport))

	rec, err := s.Get(ctx, 42)
	require.NoError(t, err)
	assert.False(t, rec.IsAdminNotified)
}

func TestFanoutMissingRecord(t *testing.T) {
	s := store.New(dbtest.Open(t), fields.Default())
	err := NewFanout(newRecordingMessenger(), s, []int64{100}, nil).NotifySubmission(context.Background(), 7)
	assert.True(t, errors.Is(err, errcode.ErrNotFound))
}

type fakeEnqueuer struct {
	seen map[string]bool
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	var payload tasks.NotifySubmissionPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return nil, err
	}
	id := tasks.NotifyTaskID(payload.UserID, payload.SubmissionID)
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	if f.seen[id] {
		return nil, asynq.ErrTaskIDConflict
	}
	f.seen[id] = true
	return &asynq.TaskInfo{ID: id, Type: task.Type()}, nil
}

func TestQueueDropsDuplicateSubmission(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)
	q := &fakeEnqueuer{}
	queue := NewQueue(q, s, nil)

	require.NoError(t, queue.NotifySubmission(ctx, 42))
	require.NoError(t, queue.NotifySubmission(ctx, 42), "a duplicate of the same submission is not an error")
	assert.Len(t, q.seen, 1)
}
