package activity

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumedesk/internal/database"
)

type memorySink struct {
	entries []database.ActivityEntry
	err     error
}

func (m *memorySink) AppendActivity(_ context.Context, e database.ActivityEntry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *memorySink) RecentActivity(_ context.Context, limit int) ([]database.ActivityEntry, error) {
	if limit < len(m.entries) {
		return m.entries[len(m.entries)-limit:], nil
	}
	return m.entries, nil
}

func TestRecorderPersistsAndTails(t *testing.T) {
	sink := &memorySink{}
	var buf bytes.Buffer
	r := NewRecorder(sink, slog.New(slog.NewTextHandler(&buf, nil)))
	r.now = func() time.Time { return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC) }

	ctx := context.Background()
	r.Info(ctx, "intake finished", slog.Int64("user_id", 42))
	r.Error(ctx, "send failed")

	require.Len(t, sink.entries, 2)
	assert.Equal(t, "intake finished user_id=42", sink.entries[0].Message)
	assert.Equal(t, "ERROR", sink.entries[1].Level)
	assert.Contains(t, buf.String(), "intake finished")

	out, err := r.Tail(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-18T12:00:00Z ERROR send failed\n", out)
}

func TestRecorderSurvivesSinkFailure(t *testing.T) {
	var buf bytes.Buffer
	r := NewRecorder(&memorySink{err: errors.New("db down")}, slog.New(slog.NewTextHandler(&buf, nil)))

	r.Warn(context.Background(), "upload rejected")
	assert.Contains(t, buf.String(), "persist activity failed")
}
