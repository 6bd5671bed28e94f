// Package activity 维护运行期事件日志：同时写入 slog 与数据库，供运营导出最近记录。
package activity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"resumedesk/internal/database"
)

// Sink 是活动日志的持久化端。
type Sink interface {
	AppendActivity(ctx context.Context, entry database.ActivityEntry) error
	RecentActivity(ctx context.Context, limit int) ([]database.ActivityEntry, error)
}

// Recorder 记录活动日志。持久化失败只写 slog，不影响调用方流程。
type Recorder struct {
	sink   Sink
	logger *slog.Logger
	now    func() time.Time
}

// NewRecorder 创建 Recorder。
func NewRecorder(sink Sink, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{sink: sink, logger: logger, now: time.Now}
}

// Info 记录一条普通事件。
func (r *Recorder) Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	r.record(ctx, slog.LevelInfo, msg, attrs)
}

// Warn 记录一条告警事件。
func (r *Recorder) Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	r.record(ctx, slog.LevelWarn, msg, attrs)
}

// Error 记录一条错误事件。
func (r *Recorder) Error(ctx context.Context, msg string, attrs ...slog.Attr) {
	r.record(ctx, slog.LevelError, msg, attrs)
}

func (r *Recorder) record(ctx context.Context, level slog.Level, msg string, attrs []slog.Attr) {
	r.logger.LogAttrs(ctx, level, msg, attrs...)
	if r.sink == nil {
		return
	}
	entry := database.ActivityEntry{
		Timestamp: r.now(),
		Level:     level.String(),
		Message:   formatMessage(msg, attrs),
	}
	if err := r.sink.AppendActivity(ctx, entry); err != nil {
		r.logger.Warn("persist activity failed", slog.Any("error", err))
	}
}

// Tail 返回最近 limit 行并渲染为文本，每行 "时间 级别 消息"。
func (r *Recorder) Tail(ctx context.Context, limit int) (string, error) {
	if r.sink == nil {
		return "", nil
	}
	entries, err := r.sink.RecentActivity(ctx, limit)
	if err != nil {
		return "", fmt.Errorf("load activity: %w", err)
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s %s %s\n", e.Timestamp.UTC().Format(time.RFC3339), e.Level, e.Message)
	}
	return b.String(), nil
}

func formatMessage(msg string, attrs []slog.Attr) string {
	if len(attrs) == 0 {
		return msg
	}
	var b strings.Builder
	b.WriteString(msg)
	for _, a := range attrs {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value.Any())
	}
	return b.String()
}
