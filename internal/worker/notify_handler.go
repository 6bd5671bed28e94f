package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"resumedesk/internal/errcode"
	"resumedesk/internal/tasks"
)

// Notifier 是执行实际推送的通知器。
type Notifier interface {
	NotifySubmission(ctx context.Context, userID int64) error
}

// NotifyTaskHandler 负责消费提交通知任务。
type NotifyTaskHandler struct {
	notifier Notifier
	logger   *slog.Logger
}

// NewNotifyTaskHandler 创建任务处理器。
func NewNotifyTaskHandler(notifier Notifier, logger *slog.Logger) *NotifyTaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotifyTaskHandler{notifier: notifier, logger: logger}
}

// ProcessTask 实现 asynq.Handler。收件人投递失败不重试，记录缺失直接丢弃。
func (h *NotifyTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	log := h.logger

	var payload tasks.NotifySubmissionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal task payload failed", slog.Any("error", err))
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	log = log.With(
		slog.Int64("user_id", payload.UserID),
		slog.String("submission_id", payload.SubmissionID),
	)

	defer func() {
		if retErr == nil || errors.Is(retErr, asynq.SkipRetry) {
			return
		}
		if isFinalAsynqAttempt(ctx) {
			log.Error("notify task abandoned after final attempt", slog.Any("error", retErr))
		}
	}()

	err := h.notifier.NotifySubmission(ctx, payload.UserID)
	switch {
	case err == nil:
		log.Info("notify task done")
		return nil
	case errors.Is(err, errcode.ErrNotFound):
		log.Warn("submission not found, skipping task")
		return nil
	case errors.Is(err, errcode.ErrTransport):
		log.Error("no operator reached", slog.Any("error", err))
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	default:
		log.Error("notify submission failed", slog.Any("error", err))
		return err
	}
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
