package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	intakeStepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resumedesk",
			Subsystem: "intake",
			Name:      "steps_total",
			Help:      "收集流程中处理的输入总数，按步骤与结果区分。",
		},
		[]string{"step", "result"},
	)

	intakeSubmissionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "resumedesk",
			Subsystem: "intake",
			Name:      "submissions_total",
			Help:      "完成提交的简历数量。",
		},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resumedesk",
			Subsystem: "intake",
			Name:      "uploads_total",
			Help:      "附件处理结果统计。",
		},
		[]string{"result"},
	)

	adminOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resumedesk",
			Subsystem: "admin",
			Name:      "operations_total",
			Help:      "运营操作总数，按操作与结果区分。",
		},
		[]string{"operation", "result"},
	)

	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resumedesk",
			Subsystem: "notify",
			Name:      "messages_total",
			Help:      "发给运营的提交通知数量。",
		},
		[]string{"result"},
	)
)

// 结果标签取值。
const (
	ResultOK       = "ok"
	ResultInvalid  = "invalid"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// ObserveIntakeStep 记录一次收集步骤的处理结果。
func ObserveIntakeStep(step, result string) {
	intakeStepsTotal.WithLabelValues(step, result).Inc()
}

// ObserveSubmission 记录一次完成的提交。
func ObserveSubmission() {
	intakeSubmissionsTotal.Inc()
}

// ObserveUpload 记录附件处理结果，拒收时 result 为拒收原因。
func ObserveUpload(result string) {
	uploadsTotal.WithLabelValues(result).Inc()
}

// ObserveAdminOperation 记录一次运营操作。
func ObserveAdminOperation(operation, result string) {
	adminOperationsTotal.WithLabelValues(operation, result).Inc()
}

// ObserveNotification 记录一次通知投递结果。
func ObserveNotification(result string) {
	notificationsTotal.WithLabelValues(result).Inc()
}
