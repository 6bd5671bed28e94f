package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeNotifySubmission = "notify:submission"
)

// QueueNotify 是提交通知使用的队列名。
const QueueNotify = "notify"

// NotifySubmissionPayload 描述一次提交通知。
type NotifySubmissionPayload struct {
	UserID       int64  `json:"user_id"`
	SubmissionID string `json:"submission_id"`
}

// NewNotifySubmissionTask 构造提交通知任务。TaskID 按提交去重，同一次提交重复入队会被丢弃；
// 收件人失败不重试，因此 MaxRetry 只覆盖读取记录等系统错误。
func NewNotifySubmissionTask(userID int64, submissionID string) (*asynq.Task, error) {
	payload, err := json.Marshal(NotifySubmissionPayload{
		UserID:       userID,
		SubmissionID: submissionID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeNotifySubmission, payload,
		asynq.TaskID(NotifyTaskID(userID, submissionID)),
		asynq.Queue(QueueNotify),
		asynq.MaxRetry(3),
	), nil
}

// NotifyTaskID 返回提交通知的去重键。
func NotifyTaskID(userID int64, submissionID string) string {
	return fmt.Sprintf("notify:%d:%s", userID, submissionID)
}
