package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordCacheState(t *testing.T) {
	before := testutil.ToFloat64(resultCacheTotal.WithLabelValues("fresh"))

	RecordCacheState("fresh")
	RecordCacheState("fresh")

	assert.Equal(t, before+2, testutil.ToFloat64(resultCacheTotal.WithLabelValues("fresh")))
}

func TestRecordVerifierCall(t *testing.T) {
	before := testutil.ToFloat64(verifierCallsTotal.WithLabelValues("semantic", "accepted"))

	RecordVerifierCall("semantic", "accepted")

	assert.Equal(t, before+1, testutil.ToFloat64(verifierCallsTotal.WithLabelValues("semantic", "accepted")))
	assert.Equal(t, 0.0, testutil.ToFloat64(verifierCallsTotal.WithLabelValues("semantic", "never-used")))
}
