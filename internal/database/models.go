package database

import (
	"time"

	"resumedesk/internal/resume"
)

// Resume 是每个用户唯一的一条简历记录，主键为消息通道中的用户标识。
type Resume struct {
	UserID int64 `gorm:"column:user_id;primaryKey;autoIncrement:false" json:"user_id"`
	resume.Intake
	resume.Moderation
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AuditEntry 记录一次运营操作，只追加不修改。
type AuditEntry struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Timestamp    time.Time `gorm:"not null;index" json:"timestamp"`
	OperatorID   int64     `gorm:"not null;index" json:"operator_id"`
	TargetUserID int64     `gorm:"not null;index" json:"target_user_id"`
	Action       string    `gorm:"size:32;not null" json:"action"`
	Field        string    `gorm:"size:64" json:"field,omitempty"`
	OldValue     string    `gorm:"type:text" json:"old_value,omitempty"`
	NewValue     string    `gorm:"type:text" json:"new_value,omitempty"`
}

// ActivityEntry 是运行期事件日志的一行。
type ActivityEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
	Level     string    `gorm:"size:16;not null" json:"level"`
	Message   string    `gorm:"type:text;not null" json:"message"`
}

// Models 返回需要自动迁移的全部模型。
func Models() []any {
	return []any{&Resume{}, &AuditEntry{}, &ActivityEntry{}}
}
