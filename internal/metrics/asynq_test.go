package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestAsynqMetricsMiddleware(t *testing.T) {
	errs := []error{nil, fmt.Errorf("bad payload: %w", asynq.SkipRetry), errors.New("db down")}
	results := []string{ResultOK, "skipped", "retry"}

	for i, want := range errs {
		before := testutil.ToFloat64(taskProcessedTotal.WithLabelValues("test:task", results[i]))
		h := AsynqMetricsMiddleware()(asynq.HandlerFunc(func(context.Context, *asynq.Task) error { return want }))

		err := h.ProcessTask(context.Background(), asynq.NewTask("test:task", nil))
		assert.Equal(t, want, err)
		assert.Equal(t, before+1, testutil.ToFloat64(taskProcessedTotal.WithLabelValues("test:task", results[i])))
	}
	assert.Zero(t, testutil.ToFloat64(taskInProgress.WithLabelValues("test:task")))
}
