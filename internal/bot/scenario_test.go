package bot

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumedesk/internal/activity"
	"resumedesk/internal/admin"
	"resumedesk/internal/database/dbtest"
	"resumedesk/internal/fields"
	"resumedesk/internal/intake"
	"resumedesk/internal/notify"
	"resumedesk/internal/storage"
	"resumedesk/internal/store"
	"resumedesk/internal/transport"
	"resumedesk/internal/upload"
)

type inbox struct {
	mu   sync.Mutex
	sent map[int64][]transport.Message
}

func (b *inbox) Send(_ context.Context, chatID int64, msg transport.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sent == nil {
		b.sent = map[int64][]transport.Message{}
	}
	b.sent[chatID] = append(b.sent[chatID], msg)
	return nil
}

func (b *inbox) SendDocument(context.Context, int64, transport.Document) error { return nil }

func (b *inbox) messages(chatID int64) []transport.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]transport.Message(nil), b.sent[chatID]...)
}

func TestSubmissionReachesEveryOperatorOnce(t *testing.T) {
	ctx := context.Background()
	operators := []int64{900, 901}
	registry := fields.Default()
	records := store.New(dbtest.Open(t), registry)
	objects := storage.NewLocalFs(afero.NewMemMapFs())
	recorder := activity.NewRecorder(records, nil)
	out := &inbox{}

	engine := intake.NewEngine(intake.Config{
		Registry:  registry,
		Sessions:  intake.NewMemorySessions(),
		Records:   records,
		Uploads:   upload.NewHandler(objects, upload.DefaultMaxBytes, nil, nil),
		Messenger: out,
		Notifier:  notify.NewFanout(out, records, operators, nil),
		Activity:  recorder,
	})
	service := admin.NewService(admin.Options{
		Registry:  registry,
		Records:   records,
		Objects:   objects,
		Activity:  recorder,
		Operators: operators,
	})
	console := admin.NewConsole(service, out, 0, nil)
	d := NewDispatcher(engine, console, records, service.IsOperator, nil)

	const uid = 42
	text := func(s string) transport.Event { return transport.Event{UserID: uid, Text: s} }
	press := func(s string) transport.Event { return transport.Event{UserID: uid, Data: s} }
	for _, ev := range []transport.Event{
		text("/start"),
		press("consent:accept"),
		text("@ali_rz"),
		text("Ali Rezaei"),
		press("choice:Studying"),
		press("choice:Bachelor"),
		press("choice:Geomatics"),
		text("University of Tehran"),
		text("17.5"),
		press("choice:intermediate"),
		text("Tehran"),
		text("09121234567"),
		text("09127654321"),
		press("skill:GIS"),
		press("level:advanced"),
		press("skill:continue"),
		press("upload:skip"),
		press("choice:No"),
		press("choice:Regular specialist"),
		text("-"),
		press("choice:No"),
		press("confirm:yes"),
	} {
		require.NoError(t, d.Dispatch(ctx, ev), "event %+v", ev)
	}

	for _, op := range operators {
		got := out.messages(op)
		require.Len(t, got, 1, "operator %d", op)
		assert.Contains(t, got[0].Text, "Ali Rezaei")
		require.NotEmpty(t, got[0].Buttons)
		assert.Equal(t, notify.ViewData(uid), got[0].Buttons[0][0].Data)
	}

	rec, err := records.Get(ctx, uid)
	require.NoError(t, err)
	assert.True(t, rec.IsAdminNotified)
	assert.Equal(t, "No", rec.WorkHistory)

	require.NoError(t, d.Dispatch(ctx, transport.Event{UserID: 900, Data: notify.ViewData(uid)}))
	got := out.messages(900)
	require.Len(t, got, 2)
	assert.True(t, strings.HasPrefix(got[1].Text, "Record 42"))
	assert.Equal(t, admin.StateViewing, console.State(900))
}
