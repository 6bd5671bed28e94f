// Package notify 在简历提交后通知全部运营，每人一条带“查看”按钮的消息。
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"resumedesk/internal/database"
	"resumedesk/internal/errcode"
	"resumedesk/internal/metrics"
	"resumedesk/internal/transport"
)

// ViewData 返回运营控制台中打开记录的回调数据。
func ViewData(userID int64) string {
	return fmt.Sprintf("adm:view:%d", userID)
}

// Records 是通知需要的记录读写子集。
type Records interface {
	Get(ctx context.Context, userID int64) (*database.Resume, error)
	MarkNotified(ctx context.Context, userID int64) error
}

// Fanout 直接向运营逐个发送通知。
type Fanout struct {
	messenger transport.Messenger
	records   Records
	operators []int64
	logger    *slog.Logger
}

// NewFanout 创建 Fanout。
func NewFanout(messenger transport.Messenger, records Records, operators []int64, logger *slog.Logger) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{
		messenger: messenger,
		records:   records,
		operators: append([]int64(nil), operators...),
		logger:    logger.With(slog.String("component", "notify")),
	}
}

// NotifySubmission 给每个运营发送一条消息；单个收件人失败只记录日志，其余照常发送。
// 至少一人收到后设置 is_admin_notified；全部失败时返回 errcode.ErrTransport。
func (f *Fanout) NotifySubmission(ctx context.Context, userID int64) error {
	rec, err := f.records.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("load submission %d: %w", userID, err)
	}

	msg := Message(rec)
	delivered := 0
	for _, op := range f.operators {
		if err := f.messenger.Send(ctx, op, msg); err != nil {
			metrics.ObserveNotification(metrics.ResultError)
			f.logger.Error("notify operator failed",
				slog.Int64("operator_id", op),
				slog.Int64("user_id", userID),
				slog.Any("error", err),
			)
			continue
		}
		metrics.ObserveNotification(metrics.ResultOK)
		delivered++
	}

	if delivered == 0 && len(f.operators) > 0 {
		return fmt.Errorf("%w: no operator reached for submission %d", errcode.ErrTransport, userID)
	}
	if err := f.records.MarkNotified(ctx, userID); err != nil {
		return fmt.Errorf("mark notified %d: %w", userID, err)
	}
	f.logger.Info("operators notified", slog.Int64("user_id", userID), slog.Int("delivered", delivered))
	return nil
}

// Message 渲染提交通知。
func Message(rec *database.Resume) transport.Message {
	var b strings.Builder
	b.WriteString("New resume submitted\n\n")
	fmt.Fprintf(&b, "Name: %s\n", orDash(rec.FullName))
	fmt.Fprintf(&b, "Handle: %s\n", handle(rec.Username))
	fmt.Fprintf(&b, "Major: %s\n", orDash(rec.Major))
	fmt.Fprintf(&b, "User ID: %d", rec.UserID)
	return transport.Message{
		Text:    b.String(),
		Buttons: [][]transport.Button{transport.Row(transport.Button{Text: "View resume", Data: ViewData(rec.UserID)})},
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func handle(username string) string {
	if username == "" {
		return "-"
	}
	return "@" + username
}
