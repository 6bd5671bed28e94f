// Package store 封装简历记录、审计与活动日志的持久化。
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"resumedesk/internal/database"
	"resumedesk/internal/errcode"
	"resumedesk/internal/fields"
	"resumedesk/internal/resume"
)

// 审计动作。
const (
	ActionEdit         = "edit"
	ActionEditOverride = "edit_override"
	ActionSoftDelete   = "soft_delete"
	ActionRestore      = "restore"
	ActionHardDelete   = "hard_delete"
	ActionBlock        = "block"
	ActionUnblock      = "unblock"
)

// Query 描述一次分页搜索。IncludeDeleted 由调用方逐次显式传入。
type Query struct {
	Term           string
	Filters        map[string]string
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// Stats 是记录数统计。
type Stats struct {
	Total   int64 `json:"total"`
	OnDay   int64 `json:"on_day"`
	Deleted int64 `json:"deleted"`
	Blocked int64 `json:"blocked"`
}

// Store 基于 GORM 实现记录读写。
type Store struct {
	db       *gorm.DB
	registry *fields.Registry
	columns  []string
}

// New 创建 Store；intake 列集合取自字段表。
func New(db *gorm.DB, registry *fields.Registry) *Store {
	columns := append(registry.Keys(), "updated_at")
	return &Store{db: db, registry: registry, columns: columns}
}

func persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", errcode.ErrPersistence, op, err)
}

// SaveIntake 以 user_id 为键 upsert intake 字段组，不触碰运营标记。
func (s *Store) SaveIntake(ctx context.Context, userID int64, in resume.Intake) error {
	rec := database.Resume{UserID: userID, Intake: in}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns(s.columns),
	}).Create(&rec).Error
	if err != nil {
		return persistence("save intake", err)
	}
	return nil
}

// Get 按用户标识读取记录（包括已软删除的）。
func (s *Store) Get(ctx context.Context, userID int64) (*database.Resume, error) {
	var rec database.Resume
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("resume %d: %w", userID, errcode.ErrNotFound)
		}
		return nil, persistence("get resume", err)
	}
	return &rec, nil
}

// Search 在可搜索字段上做大小写不敏感的子串匹配，并应用精确过滤。
func (s *Store) Search(ctx context.Context, q Query) ([]database.Resume, int64, error) {
	for key := range q.Filters {
		if !s.registry.IsFilterable(key) {
			return nil, 0, fmt.Errorf("filter %q: %w", key, errcode.ErrValidation)
		}
	}
	scope := func(tx *gorm.DB) *gorm.DB {
		if !q.IncludeDeleted {
			tx = tx.Where("is_deleted = ?", false)
		}
		if term := strings.TrimSpace(q.Term); term != "" {
			pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
			var conds []string
			var args []any
			for _, key := range s.registry.Searchable() {
				conds = append(conds, fmt.Sprintf("LOWER(%s) LIKE ? ESCAPE '\\'", key))
				args = append(args, pattern)
			}
			tx = tx.Where("("+strings.Join(conds, " OR ")+")", args...)
		}
		for key, value := range q.Filters {
			tx = tx.Where(clause.Eq{Column: clause.Column{Name: key}, Value: value})
		}
		return tx
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&database.Resume{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, persistence("count resumes", err)
	}

	var items []database.Resume
	find := s.db.WithContext(ctx).Scopes(scope).Order("register_date DESC").Order("user_id DESC")
	if q.Offset > 0 {
		find = find.Offset(q.Offset)
	}
	if q.Limit > 0 {
		find = find.Limit(q.Limit)
	}
	if err := find.Find(&items).Error; err != nil {
		return nil, 0, persistence("search resumes", err)
	}
	return items, total, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// UpdateField 写入单个 intake 字段并在同一事务中追加审计。
func (s *Store) UpdateField(ctx context.Context, userID int64, key string, in resume.Intake, audit database.AuditEntry) error {
	if _, ok := s.registry.Lookup(key); !ok {
		return fmt.Errorf("field %q: %w", key, errcode.ErrValidation)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&database.Resume{}).Where("user_id = ?", userID).
			Select(key, "updated_at").
			Updates(&database.Resume{Intake: in, UpdatedAt: time.Now()})
		if res.Error != nil {
			return persistence("update field", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("resume %d: %w", userID, errcode.ErrNotFound)
		}
		return appendAudit(tx, audit)
	})
}

// UpdateModeration 更新运营标记组；audit 为 nil 时不记审计。
func (s *Store) UpdateModeration(ctx context.Context, userID int64, values map[string]any, audit *database.AuditEntry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&database.Resume{}).Where("user_id = ?", userID).Updates(values)
		if res.Error != nil {
			return persistence("update moderation", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("resume %d: %w", userID, errcode.ErrNotFound)
		}
		if audit == nil {
			return nil
		}
		return appendAudit(tx, *audit)
	})
}

// SoftDelete 隐藏记录，重复调用保持幂等。
func (s *Store) SoftDelete(ctx context.Context, userID, operatorID int64, at time.Time) error {
	return s.UpdateModeration(ctx, userID, map[string]any{
		"is_deleted": true,
		"deleted_at": at,
		"deleted_by": operatorID,
	}, &database.AuditEntry{Timestamp: at, OperatorID: operatorID, TargetUserID: userID, Action: ActionSoftDelete})
}

// Restore 取消软删除。
func (s *Store) Restore(ctx context.Context, userID, operatorID int64, at time.Time) error {
	return s.UpdateModeration(ctx, userID, map[string]any{
		"is_deleted": false,
		"deleted_at": nil,
		"deleted_by": nil,
	}, &database.AuditEntry{Timestamp: at, OperatorID: operatorID, TargetUserID: userID, Action: ActionRestore})
}

// SetBlocked 设置拉黑标记。
func (s *Store) SetBlocked(ctx context.Context, userID, operatorID int64, blocked bool, at time.Time) error {
	action := ActionUnblock
	if blocked {
		action = ActionBlock
	}
	return s.UpdateModeration(ctx, userID, map[string]any{"is_blocked": blocked},
		&database.AuditEntry{Timestamp: at, OperatorID: operatorID, TargetUserID: userID, Action: action})
}

// MarkNotified 记录已通知运营。
func (s *Store) MarkNotified(ctx context.Context, userID int64) error {
	return s.UpdateModeration(ctx, userID, map[string]any{"is_admin_notified": true}, nil)
}

// IsBlocked 查询拉黑标记；不存在的记录视为未拉黑。
func (s *Store) IsBlocked(ctx context.Context, userID int64) (bool, error) {
	var flags []bool
	err := s.db.WithContext(ctx).Model(&database.Resume{}).
		Where("user_id = ?", userID).Limit(1).Pluck("is_blocked", &flags).Error
	if err != nil {
		return false, persistence("check blocked", err)
	}
	return len(flags) > 0 && flags[0], nil
}

// HardDelete 物理删除记录，审计只记录动作本身。
func (s *Store) HardDelete(ctx context.Context, userID, operatorID int64, at time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ?", userID).Delete(&database.Resume{})
		if res.Error != nil {
			return persistence("hard delete", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("resume %d: %w", userID, errcode.ErrNotFound)
		}
		return appendAudit(tx, database.AuditEntry{
			Timestamp: at, OperatorID: operatorID, TargetUserID: userID, Action: ActionHardDelete,
		})
	})
}

// ListForExport 返回导出所需的全部记录，顺序与搜索一致。
func (s *Store) ListForExport(ctx context.Context, includeDeleted bool) ([]database.Resume, error) {
	items, _, err := s.Search(ctx, Query{IncludeDeleted: includeDeleted})
	return items, err
}

// CountStats 统计总数与 day 所在自然日的登记数。
func (s *Store) CountStats(ctx context.Context, day time.Time) (Stats, error) {
	var st Stats
	base := s.db.WithContext(ctx).Model(&database.Resume{})

	if err := base.Session(&gorm.Session{}).Count(&st.Total).Error; err != nil {
		return Stats{}, persistence("count total", err)
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	if err := base.Session(&gorm.Session{}).
		Where("register_date >= ? AND register_date < ?", start, start.AddDate(0, 0, 1)).
		Count(&st.OnDay).Error; err != nil {
		return Stats{}, persistence("count day", err)
	}
	if err := base.Session(&gorm.Session{}).Where("is_deleted = ?", true).Count(&st.Deleted).Error; err != nil {
		return Stats{}, persistence("count deleted", err)
	}
	if err := base.Session(&gorm.Session{}).Where("is_blocked = ?", true).Count(&st.Blocked).Error; err != nil {
		return Stats{}, persistence("count blocked", err)
	}
	return st, nil
}

func appendAudit(tx *gorm.DB, entry database.AuditEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if err := tx.Create(&entry).Error; err != nil {
		return persistence("append audit", err)
	}
	return nil
}

// ListAudit 按时间先后返回某条记录的审计。
func (s *Store) ListAudit(ctx context.Context, userID int64) ([]database.AuditEntry, error) {
	var entries []database.AuditEntry
	if err := s.db.WithContext(ctx).Where("target_user_id = ?", userID).Order("id ASC").Find(&entries).Error; err != nil {
		return nil, persistence("list audit", err)
	}
	return entries, nil
}

// AppendActivity 追加一行活动日志。
func (s *Store) AppendActivity(ctx context.Context, entry database.ActivityEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return persistence("append activity", err)
	}
	return nil
}

// RecentActivity 返回最近 limit 行，按时间先后排列。
func (s *Store) RecentActivity(ctx context.Context, limit int) ([]database.ActivityEntry, error) {
	var entries []database.ActivityEntry
	if err := s.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, persistence("recent activity", err)
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}
