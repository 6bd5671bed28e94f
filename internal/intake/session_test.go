package intake

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumedesk/internal/resume"
)

type fakeKV struct {
	data map[string]string
}

func (f *fakeKV) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeKV) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	f.data[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeKV) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(f.data, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestSessionStores(t *testing.T) {
	stores := map[string]SessionStore{
		"memory": NewMemorySessions(),
		"redis":  NewRedisSessions(&fakeKV{data: map[string]string{}}),
	}
	for name, st := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, ok, err := st.Get(ctx, 1)
			require.NoError(t, err)
			assert.False(t, ok)

			s := &Session{UserID: 1, State: StateSkillLevel, PendingSkill: "GIS"}
			s.Intake.UpsertSkill(resume.Skill{Name: "AutoCAD", Level: resume.LevelBeginner})
			require.NoError(t, st.Put(ctx, s))

			s.Intake.UpsertSkill(resume.Skill{Name: "AutoCAD", Level: resume.LevelAdvanced})

			got, ok, err := st.Get(ctx, 1)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, StateSkillLevel, got.State)
			assert.Equal(t, "GIS", got.PendingSkill)
			assert.Equal(t, "AutoCAD: beginner", got.Intake.Text(resume.KeySkills), "stored copy is isolated from the caller")

			require.NoError(t, st.Delete(ctx, 1))
			_, ok, err = st.Get(ctx, 1)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}
