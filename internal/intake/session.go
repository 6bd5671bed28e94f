package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"resumedesk/internal/resume"
)

// State 是会话所处的步骤。字段步骤直接使用字段键。
type State string

const (
	StateConsent            State = "consent"
	StateSkillOther         State = "skill_other"
	StateSkillLevel         State = "skill_level"
	StateUploads            State = "uploads"
	StateWorkHistoryDetails State = "work_history_details"
	StateConfirm            State = "confirm"
	StateEditMenu           State = "edit_menu"
	StateFinished           State = "finished"
)

// Session 是单个用户的进行中表单。
type Session struct {
	UserID       int64         `json:"user_id"`
	State        State         `json:"state"`
	Intake       resume.Intake `json:"intake"`
	Editing      bool          `json:"editing,omitempty"`
	EditTarget   string        `json:"edit_target,omitempty"`
	PendingSkill string        `json:"pending_skill,omitempty"`
}

// Clone 返回可独立修改的副本。
func (s *Session) Clone() *Session {
	cp := *s
	cp.Intake = s.Intake.Clone()
	return &cp
}

// SessionStore 保存进行中的会话，不做过期处理。
type SessionStore interface {
	Get(ctx context.Context, userID int64) (*Session, bool, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, userID int64) error
}

// MemorySessions 是进程内会话存储。
type MemorySessions struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewMemorySessions 创建空的进程内存储。
func NewMemorySessions() *MemorySessions {
	return &MemorySessions{sessions: make(map[int64]*Session)}
}

// Get 返回会话副本。
func (m *MemorySessions) Get(_ context.Context, userID int64) (*Session, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	if !ok {
		return nil, false, nil
	}
	return s.Clone(), true, nil
}

// Put 保存会话副本。
func (m *MemorySessions) Put(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.UserID] = s.Clone()
	return nil
}

// Delete 删除会话。
func (m *MemorySessions) Delete(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}

// redisKV 是 go-redis 客户端的键值子集。
type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisSessions 把会话保存在 Redis 中，多实例部署时共享。
type RedisSessions struct {
	client redisKV
}

// NewRedisSessions 创建 Redis 会话存储。
func NewRedisSessions(client redisKV) *RedisSessions {
	return &RedisSessions{client: client}
}

func sessionKey(userID int64) string {
	return fmt.Sprintf("intake_session:%d", userID)
}

// Get 实现 SessionStore。
func (r *RedisSessions) Get(ctx context.Context, userID int64) (*Session, bool, error) {
	raw, err := r.client.Get(ctx, sessionKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load session %d: %w", userID, err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false, fmt.Errorf("decode session %d: %w", userID, err)
	}
	return &s, true, nil
}

// Put 实现 SessionStore。
func (r *RedisSessions) Put(ctx context.Context, s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %d: %w", s.UserID, err)
	}
	if err := r.client.Set(ctx, sessionKey(s.UserID), raw, 0).Err(); err != nil {
		return fmt.Errorf("save session %d: %w", s.UserID, err)
	}
	return nil
}

// Delete 实现 SessionStore。
func (r *RedisSessions) Delete(ctx context.Context, userID int64) error {
	if err := r.client.Del(ctx, sessionKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete session %d: %w", userID, err)
	}
	return nil
}
