package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/hibiken/asynq"

	"resumedesk/internal/tasks"
)

// Enqueuer 是 asynq.Client 的入队子集。
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Queue 把通知交给 worker 异步发送。
type Queue struct {
	client  Enqueuer
	records Records
	logger  *slog.Logger
}

// NewQueue 创建 Queue。
func NewQueue(client Enqueuer, records Records, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{client: client, records: records, logger: logger.With(slog.String("component", "notify"))}
}

// NotifySubmission 以记录的最后更新时间作为提交标识入队，同一次提交重复入队视为成功。
func (q *Queue) NotifySubmission(ctx context.Context, userID int64) error {
	rec, err := q.records.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("load submission %d: %w", userID, err)
	}
	submissionID := strconv.FormatInt(rec.UpdatedAt.UnixNano(), 10)

	task, err := tasks.NewNotifySubmissionTask(userID, submissionID)
	if err != nil {
		return fmt.Errorf("build notify task: %w", err)
	}
	info, err := q.client.EnqueueContext(ctx, task)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			q.logger.Info("notify task already queued", slog.Int64("user_id", userID), slog.String("submission_id", submissionID))
			return nil
		}
		return fmt.Errorf("enqueue notify task: %w", err)
	}
	q.logger.Info("notify task queued", slog.Int64("user_id", userID), slog.String("task_id", info.ID))
	return nil
}
