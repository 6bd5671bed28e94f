package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestDomainCounters(t *testing.T) {
	before := testutil.ToFloat64(intakeStepsTotal.WithLabelValues("phone_main", ResultInvalid))
	ObserveIntakeStep("phone_main", ResultInvalid)
	assert.Equal(t, before+1, testutil.ToFloat64(intakeStepsTotal.WithLabelValues("phone_main", ResultInvalid)))

	before = testutil.ToFloat64(adminOperationsTotal.WithLabelValues("edit", ResultOK))
	ObserveAdminOperation("edit", ResultOK)
	assert.Equal(t, before+1, testutil.ToFloat64(adminOperationsTotal.WithLabelValues("edit", ResultOK)))

	before = testutil.ToFloat64(intakeSubmissionsTotal)
	ObserveSubmission()
	assert.Equal(t, before+1, testutil.ToFloat64(intakeSubmissionsTotal))
}
