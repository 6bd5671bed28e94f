// Package admin 实现运营控制台：受白名单保护的查询、审核、修正与导出操作。
package admin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"resumedesk/internal/database"
	"resumedesk/internal/errcode"
	"resumedesk/internal/fields"
	"resumedesk/internal/metrics"
	"resumedesk/internal/resume"
	"resumedesk/internal/storage"
	"resumedesk/internal/store"
	"resumedesk/internal/transport"
	"resumedesk/internal/upload"
)

// DefaultLogLimit 是活动日志导出的默认行数。
const DefaultLogLimit = 500

// Records 是控制台使用的记录存储。
type Records interface {
	Get(ctx context.Context, userID int64) (*database.Resume, error)
	Search(ctx context.Context, q store.Query) ([]database.Resume, int64, error)
	UpdateField(ctx context.Context, userID int64, key string, in resume.Intake, audit database.AuditEntry) error
	SoftDelete(ctx context.Context, userID, operatorID int64, at time.Time) error
	Restore(ctx context.Context, userID, operatorID int64, at time.Time) error
	SetBlocked(ctx context.Context, userID, operatorID int64, blocked bool, at time.Time) error
	HardDelete(ctx context.Context, userID, operatorID int64, at time.Time) error
	ListForExport(ctx context.Context, includeDeleted bool) ([]database.Resume, error)
	CountStats(ctx context.Context, day time.Time) (store.Stats, error)
	ListAudit(ctx context.Context, userID int64) ([]database.AuditEntry, error)
}

// Activity 是活动日志的写入与读取端。
type Activity interface {
	Info(ctx context.Context, msg string, attrs ...slog.Attr)
	Tail(ctx context.Context, limit int) (string, error)
}

// Summary 是搜索结果中的一行。
type Summary struct {
	UserID       int64      `json:"id"`
	FullName     string     `json:"name"`
	Username     string     `json:"handle"`
	RegisteredAt *time.Time `json:"registered_at,omitempty"`
	IsDeleted    bool       `json:"is_deleted"`
}

// Page 是一页搜索结果。
type Page struct {
	Items []Summary `json:"items"`
	Total int64     `json:"total"`
}

// EditResult 描述一次字段修正。
type EditResult struct {
	Key      string `json:"key"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
	Override bool   `json:"override"`
}

// Options 是 Service 的依赖。
type Options struct {
	Registry  *fields.Registry
	Records   Records
	Objects   storage.ObjectStore
	Activity  Activity
	Operators []int64
	LogLimit  int
	Logger    *slog.Logger
}

// Service 是控制台操作的入口，每个操作先校验运营白名单。
type Service struct {
	registry  *fields.Registry
	records   Records
	objects   storage.ObjectStore
	activity  Activity
	operators map[int64]struct{}
	logLimit  int
	logger    *slog.Logger
	now       func() time.Time
}

// NewService 创建 Service。
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ops := make(map[int64]struct{}, len(opts.Operators))
	for _, id := range opts.Operators {
		ops[id] = struct{}{}
	}
	limit := opts.LogLimit
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	return &Service{
		registry:  opts.Registry,
		records:   opts.Records,
		objects:   opts.Objects,
		activity:  opts.Activity,
		operators: ops,
		logLimit:  limit,
		logger:    logger.With(slog.String("component", "admin")),
		now:       time.Now,
	}
}

// IsOperator 判断 id 是否在运营白名单内。
func (s *Service) IsOperator(id int64) bool {
	_, ok := s.operators[id]
	return ok
}

// Registry 返回字段表。
func (s *Service) Registry() *fields.Registry { return s.registry }

func (s *Service) guard(operatorID int64, operation string) error {
	if s.IsOperator(operatorID) {
		return nil
	}
	metrics.ObserveAdminOperation(operation, metrics.ResultRejected)
	s.logger.Warn("operation refused", slog.Int64("operator_id", operatorID), slog.String("operation", operation))
	return fmt.Errorf("operator %d: %w", operatorID, errcode.ErrNotPermitted)
}

func (s *Service) observe(operation string, err error) {
	switch {
	case err == nil:
		metrics.ObserveAdminOperation(operation, metrics.ResultOK)
	case errcode.Recoverable(err):
		metrics.ObserveAdminOperation(operation, metrics.ResultInvalid)
	default:
		metrics.ObserveAdminOperation(operation, metrics.ResultError)
	}
}

func (s *Service) record(ctx context.Context, msg string, attrs ...slog.Attr) {
	if s.activity != nil {
		s.activity.Info(ctx, msg, attrs...)
	}
}

// Search 分页搜索记录；IncludeDeleted 每次由调用方显式给出。
func (s *Service) Search(ctx context.Context, operatorID int64, q store.Query) (Page, error) {
	if err := s.guard(operatorID, "search"); err != nil {
		return Page{}, err
	}
	items, total, err := s.records.Search(ctx, q)
	s.observe("search", err)
	if err != nil {
		return Page{}, err
	}
	page := Page{Items: make([]Summary, 0, len(items)), Total: total}
	for _, rec := range items {
		page.Items = append(page.Items, Summary{
			UserID:       rec.UserID,
			FullName:     rec.FullName,
			Username:     rec.Username,
			RegisteredAt: rec.RegisterDate,
			IsDeleted:    rec.IsDeleted,
		})
	}
	return page, nil
}

// View 读取单条记录，已软删除的记录同样可见。
func (s *Service) View(ctx context.Context, operatorID, userID int64) (*database.Resume, error) {
	if err := s.guard(operatorID, "view"); err != nil {
		return nil, err
	}
	rec, err := s.records.Get(ctx, userID)
	s.observe("view", err)
	return rec, err
}

// Edit 修改一个可编辑字段。校验失败时返回 errcode.ErrOverrideRequired，
// 只有 override 为 true 才会跳过校验写入原值，并以 edit_override 记入审计。
func (s *Service) Edit(ctx context.Context, operatorID, userID int64, key, value string, override bool) (EditResult, error) {
	if err := s.guard(operatorID, "edit"); err != nil {
		return EditResult{}, err
	}
	res, err := s.edit(ctx, operatorID, userID, key, value, override)
	s.observe("edit", err)
	return res, err
}

func (s *Service) edit(ctx context.Context, operatorID, userID int64, key, value string, override bool) (EditResult, error) {
	if !s.registry.IsEditable(key) {
		return EditResult{}, fmt.Errorf("field %q is not editable: %w", key, errcode.ErrValidation)
	}
	field, _ := s.registry.Lookup(key)

	action := store.ActionEdit
	newValue, verr := field.Validate(value)
	if verr != nil {
		if !override {
			return EditResult{}, fmt.Errorf("%w: %s", errcode.ErrOverrideRequired, verr.Error())
		}
		action = store.ActionEditOverride
		newValue = strings.TrimSpace(value)
	}

	rec, err := s.records.Get(ctx, userID)
	if err != nil {
		return EditResult{}, err
	}
	oldValue := rec.Intake.Text(key)
	in := rec.Intake.Clone()
	if err := in.SetText(key, newValue); err != nil {
		return EditResult{}, fmt.Errorf("%w: %w", errcode.ErrValidation, err)
	}
	newValue = in.Text(key)

	audit := database.AuditEntry{
		Timestamp:    s.now(),
		OperatorID:   operatorID,
		TargetUserID: userID,
		Action:       action,
		Field:        key,
		OldValue:     oldValue,
		NewValue:     newValue,
	}
	if err := s.records.UpdateField(ctx, userID, key, in, audit); err != nil {
		return EditResult{}, err
	}
	s.record(ctx, "resume field edited",
		slog.Int64("operator_id", operatorID),
		slog.Int64("user_id", userID),
		slog.String("field", key),
		slog.String("action", action),
	)
	return EditResult{Key: key, OldValue: oldValue, NewValue: newValue, Override: action == store.ActionEditOverride}, nil
}

// SoftDelete 隐藏记录；重复调用幂等，每次都记审计。
func (s *Service) SoftDelete(ctx context.Context, operatorID, userID int64) error {
	return s.moderate(ctx, operatorID, userID, store.ActionSoftDelete, func(at time.Time) error {
		return s.records.SoftDelete(ctx, userID, operatorID, at)
	})
}

// Restore 恢复软删除的记录。
func (s *Service) Restore(ctx context.Context, operatorID, userID int64) error {
	return s.moderate(ctx, operatorID, userID, store.ActionRestore, func(at time.Time) error {
		return s.records.Restore(ctx, userID, operatorID, at)
	})
}

// Block 拉黑用户，之后其输入被丢弃。
func (s *Service) Block(ctx context.Context, operatorID, userID int64) error {
	return s.moderate(ctx, operatorID, userID, store.ActionBlock, func(at time.Time) error {
		return s.records.SetBlocked(ctx, userID, operatorID, true, at)
	})
}

// Unblock 取消拉黑。
func (s *Service) Unblock(ctx context.Context, operatorID, userID int64) error {
	return s.moderate(ctx, operatorID, userID, store.ActionUnblock, func(at time.Time) error {
		return s.records.SetBlocked(ctx, userID, operatorID, false, at)
	})
}

// HardDelete 物理删除记录及其上传文件；文件清理失败只记录日志。
func (s *Service) HardDelete(ctx context.Context, operatorID, userID int64) error {
	err := s.moderate(ctx, operatorID, userID, store.ActionHardDelete, func(at time.Time) error {
		return s.records.HardDelete(ctx, userID, operatorID, at)
	})
	if err != nil || s.objects == nil {
		return err
	}
	if derr := s.objects.DeletePrefix(ctx, upload.UserPrefix(userID)); derr != nil {
		s.logger.Warn("remove uploads after hard delete failed",
			slog.Int64("user_id", userID),
			slog.Any("error", derr),
		)
	}
	return nil
}

func (s *Service) moderate(ctx context.Context, operatorID, userID int64, action string, apply func(at time.Time) error) error {
	if err := s.guard(operatorID, action); err != nil {
		return err
	}
	err := apply(s.now())
	s.observe(action, err)
	if err != nil {
		return err
	}
	s.record(ctx, "resume moderated",
		slog.Int64("operator_id", operatorID),
		slog.Int64("user_id", userID),
		slog.String("action", action),
	)
	return nil
}

// ExportTo 把记录写成 xlsx 到 buf，返回数据行数。
func (s *Service) ExportTo(ctx context.Context, operatorID int64, includeDeleted bool, buf *bytes.Buffer) (int, error) {
	if err := s.guard(operatorID, "export"); err != nil {
		return 0, err
	}
	rows, err := s.exportTo(ctx, includeDeleted, buf)
	s.observe("export", err)
	if err != nil {
		return 0, err
	}
	s.record(ctx, "resumes exported",
		slog.Int64("operator_id", operatorID),
		slog.Int("rows", rows),
		slog.Bool("include_deleted", includeDeleted),
	)
	return rows, nil
}

func (s *Service) exportTo(ctx context.Context, includeDeleted bool, buf *bytes.Buffer) (int, error) {
	records, err := s.records.ListForExport(ctx, includeDeleted)
	if err != nil {
		return 0, err
	}
	book, err := BuildWorkbook(s.registry, records)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := book.Close(); cerr != nil {
			s.logger.Warn("close workbook failed", slog.Any("error", cerr))
		}
	}()
	if err := book.Write(buf); err != nil {
		return 0, fmt.Errorf("write workbook: %w", err)
	}
	return len(records), nil
}

// Export 生成 xlsx 并存入对象存储，返回可直接发送的文件消息。
func (s *Service) Export(ctx context.Context, operatorID int64, includeDeleted bool) (transport.Document, error) {
	var buf bytes.Buffer
	rows, err := s.ExportTo(ctx, operatorID, includeDeleted, &buf)
	if err != nil {
		return transport.Document{}, err
	}
	stamp := s.now().UTC().Format("20060102_150405")
	doc := transport.Document{
		Name:    fmt.Sprintf("resumes_%s.xlsx", stamp),
		Caption: fmt.Sprintf("Export: %d records", rows),
	}
	doc.Key = fmt.Sprintf("exports/%d/%s", operatorID, doc.Name)
	if err := s.objects.Put(ctx, doc.Key, &buf, int64(buf.Len()), xlsxContentType); err != nil {
		return transport.Document{}, fmt.Errorf("store export: %w", err)
	}
	return doc, nil
}

// Stats 返回总数与 asOf 当天的登记数。
func (s *Service) Stats(ctx context.Context, operatorID int64, asOf time.Time) (store.Stats, error) {
	if err := s.guard(operatorID, "stats"); err != nil {
		return store.Stats{}, err
	}
	st, err := s.records.CountStats(ctx, asOf)
	s.observe("stats", err)
	return st, err
}

// Logs 把最近 limit 行活动日志存为文本文件；limit 非正时使用默认值。
func (s *Service) Logs(ctx context.Context, operatorID int64, limit int) (transport.Document, error) {
	if err := s.guard(operatorID, "logs"); err != nil {
		return transport.Document{}, err
	}
	doc, err := s.logs(ctx, operatorID, limit)
	s.observe("logs", err)
	return doc, err
}

func (s *Service) logs(ctx context.Context, operatorID int64, limit int) (transport.Document, error) {
	if limit <= 0 {
		limit = s.logLimit
	}
	if s.activity == nil {
		return transport.Document{}, errors.New("activity log not configured")
	}
	text, err := s.activity.Tail(ctx, limit)
	if err != nil {
		return transport.Document{}, err
	}
	if text == "" {
		text = "no activity recorded\n"
	}
	stamp := s.now().UTC().Format("20060102_150405")
	doc := transport.Document{
		Name:    fmt.Sprintf("activity_%s.log", stamp),
		Caption: fmt.Sprintf("Last %d activity entries", limit),
	}
	doc.Key = fmt.Sprintf("logs/%d/%s", operatorID, doc.Name)
	if err := s.objects.Put(ctx, doc.Key, strings.NewReader(text), int64(len(text)), "text/plain; charset=utf-8"); err != nil {
		return transport.Document{}, fmt.Errorf("store activity log: %w", err)
	}
	return doc, nil
}

// AuditTrail 返回记录的审计历史，按时间先后排列。
func (s *Service) AuditTrail(ctx context.Context, operatorID, userID int64) ([]database.AuditEntry, error) {
	if err := s.guard(operatorID, "audit"); err != nil {
		return nil, err
	}
	entries, err := s.records.ListAudit(ctx, userID)
	s.observe("audit", err)
	return entries, err
}
