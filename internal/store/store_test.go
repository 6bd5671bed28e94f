package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumedesk/internal/database"
	"resumedesk/internal/database/dbtest"
	"resumedesk/internal/errcode"
	"resumedesk/internal/fields"
	"resumedesk/internal/resume"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(dbtest.Open(t), fields.Default())
}

func seed(t *testing.T, s *Store, id int64, name, handle, major string, registered time.Time) {
	t.Helper()
	in := resume.Intake{FullName: name, Username: handle, Major: major, StudyStatus: "Studying", Degree: "Bachelor", RegisterDate: &registered}
	require.NoError(t, s.SaveIntake(context.Background(), id, in))
}

func TestSaveIntakeUpsertKeepsModeration(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

	seed(t, s, 7, "Sara Ahmadi", "sara_a", "Geomatics", now)
	require.NoError(t, s.SetBlocked(ctx, 7, 1, true, now))

	in := resume.Intake{FullName: "Sara Ahmadi", Username: "sara_a", PhoneMain: "09121234567", RegisterDate: &now}
	in.UpsertSkill(resume.Skill{Name: "GIS", Level: resume.LevelAdvanced})
	require.NoError(t, s.SaveIntake(ctx, 7, in))

	rec, err := s.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "09121234567", rec.PhoneMain)
	assert.Equal(t, "GIS: advanced", rec.Text(resume.KeySkills))
	assert.Empty(t, rec.Major, "upsert writes the whole intake group")
	assert.True(t, rec.IsBlocked, "intake upsert must not reset moderation flags")
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), 404)
	assert.True(t, errors.Is(err, errcode.ErrNotFound))
}

func TestSoftDeleteRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)
	seed(t, s, 1, "Ali Rezaei", "ali_rz", "Surveying", now)

	before, err := s.Get(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, s.SoftDelete(ctx, 1, 99, now))
	require.NoError(t, s.SoftDelete(ctx, 1, 99, now), "soft delete is idempotent")

	items, total, err := s.Search(ctx, Query{Term: "ali"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)

	items, total, err = s.Search(ctx, Query{Term: "ali", IncludeDeleted: true})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	assert.True(t, items[0].IsDeleted)
	require.NotNil(t, items[0].DeletedBy)
	assert.EqualValues(t, 99, *items[0].DeletedBy)

	require.NoError(t, s.Restore(ctx, 1, 99, now))
	after, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, after.IsDeleted)
	assert.Nil(t, after.DeletedAt)
	assert.Nil(t, after.DeletedBy)
	assert.Equal(t, before.Intake.Text(resume.KeyFullName), after.Intake.Text(resume.KeyFullName))
	assert.Equal(t, before.Major, after.Major)

	audit, err := s.ListAudit(ctx, 1)
	require.NoError(t, err)
	require.Len(t, audit, 3)
	assert.Equal(t, []string{ActionSoftDelete, ActionSoftDelete, ActionRestore},
		[]string{audit[0].Action, audit[1].Action, audit[2].Action})
}

func TestSearchMatchesAndOrders(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	day := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	seed(t, s, 1, "Ali Rezaei", "ali_rz", "Surveying", day)
	seed(t, s, 2, "Maryam Karimi", "m_karimi", "Geomatics", day.Add(time.Hour))
	seed(t, s, 3, "Reza Alavi", "rezaal", "Architecture", day.Add(2*time.Hour))
	seed(t, s, 4, "Nima Mohseni", "nima_m", "Geomatics", day.Add(2*time.Hour))

	items, total, err := s.Search(ctx, Query{Term: "ALI"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	assert.EqualValues(t, 1, items[0].UserID)

	items, total, err = s.Search(ctx, Query{Term: "geomat"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, items, 2)
	assert.EqualValues(t, 4, items[0].UserID)
	assert.EqualValues(t, 2, items[1].UserID)

	items, total, err = s.Search(ctx, Query{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	require.Len(t, items, 2)
	assert.EqualValues(t, 3, items[0].UserID, "ties on register_date break by user_id desc")
	assert.EqualValues(t, 2, items[1].UserID)

	items, _, err = s.Search(ctx, Query{Term: "%"})
	require.NoError(t, err)
	assert.Empty(t, items, "LIKE wildcards in the term are literal")
}

func TestSearchFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	day := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	seed(t, s, 1, "Ali Rezaei", "ali_rz", "Surveying", day)
	require.NoError(t, s.SaveIntake(ctx, 2, resume.Intake{FullName: "Sima Jafari", Degree: "Master", StudyStatus: "Graduated", RegisterDate: &day}))

	items, total, err := s.Search(ctx, Query{Filters: map[string]string{resume.KeyDegree: "Master"}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	assert.EqualValues(t, 2, items[0].UserID)

	_, _, err = s.Search(ctx, Query{Filters: map[string]string{resume.KeyPhoneMain: "0912"}})
	assert.True(t, errors.Is(err, errcode.ErrValidation))
}

func TestUpdateFieldAppendsOneAuditPerEdit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)
	seed(t, s, 5, "Ali Rezaei", "ali_rz", "Surveying", now)

	rec, err := s.Get(ctx, 5)
	require.NoError(t, err)
	rec.Intake.PhoneMain = "09120000001"
	require.NoError(t, s.UpdateField(ctx, 5, resume.KeyPhoneMain, rec.Intake, database.AuditEntry{
		OperatorID: 1, TargetUserID: 5, Action: ActionEdit, Field: resume.KeyPhoneMain, NewValue: "09120000001",
	}))
	rec.Intake.PhoneMain = "09120000002"
	rec.Intake.Major = "ignored"
	require.NoError(t, s.UpdateField(ctx, 5, resume.KeyPhoneMain, rec.Intake, database.AuditEntry{
		OperatorID: 1, TargetUserID: 5, Action: ActionEdit, Field: resume.KeyPhoneMain,
		OldValue: "09120000001", NewValue: "09120000002",
	}))

	got, err := s.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "09120000002", got.PhoneMain)
	assert.Equal(t, "Surveying", got.Major, "only the selected column is written")

	audit, err := s.ListAudit(ctx, 5)
	require.NoError(t, err)
	require.Len(t, audit, 2)
	assert.Equal(t, "09120000001", audit[1].OldValue)

	err = s.UpdateField(ctx, 404, resume.KeyPhoneMain, rec.Intake, database.AuditEntry{Action: ActionEdit})
	assert.True(t, errors.Is(err, errcode.ErrNotFound))
	audit, err = s.ListAudit(ctx, 404)
	require.NoError(t, err)
	assert.Empty(t, audit, "failed update must not leave an audit entry")
}

func TestHardDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)
	seed(t, s, 8, "Ali Rezaei", "ali_rz", "Surveying", now)

	require.NoError(t, s.HardDelete(ctx, 8, 1, now))
	_, err := s.Get(ctx, 8)
	assert.True(t, errors.Is(err, errcode.ErrNotFound))
	assert.True(t, errors.Is(s.HardDelete(ctx, 8, 1, now), errcode.ErrNotFound))

	audit, err := s.ListAudit(ctx, 8)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, ActionHardDelete, audit[0].Action)
	assert.Empty(t, audit[0].OldValue)
}

func TestIsBlockedAndStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	today := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
	seed(t, s, 1, "Ali Rezaei", "ali_rz", "Surveying", today)
	seed(t, s, 2, "Sara Ahmadi", "sara_a", "Geomatics", today.Add(-24*time.Hour))
	seed(t, s, 3, "Reza Alavi", "rezaal", "Geography", today.Add(3*time.Hour))

	blocked, err := s.IsBlocked(ctx, 1)
	require.NoError(t, err)
	assert.False(t, blocked)
	require.NoError(t, s.SetBlocked(ctx, 1, 9, true, today))
	blocked, err = s.IsBlocked(ctx, 1)
	require.NoError(t, err)
	assert.True(t, blocked)
	blocked, err = s.IsBlocked(ctx, 404)
	require.NoError(t, err)
	assert.False(t, blocked)

	require.NoError(t, s.SoftDelete(ctx, 3, 9, today))
	st, err := s.CountStats(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 3, OnDay: 2, Deleted: 1, Blocked: 1}, st)
}

func TestRecentActivityReturnsTailInOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	for _, msg := range []string{"one", "two", "three"} {
		require.NoError(t, s.AppendActivity(ctx, database.ActivityEntry{Level: "INFO", Message: msg}))
	}

	entries, err := s.RecentActivity(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "two", entries[0].Message)
	assert.Equal(t, "three", entries[1].Message)
}
