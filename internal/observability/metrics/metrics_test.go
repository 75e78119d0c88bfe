package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestDialogMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDialogMetrics(reg)

	m.ObserveStep("booking", "choose_clinic")
	m.ObserveStep("booking", "choose_clinic")
	m.ObserveOutcome("booking", "confirmed")
	m.ObserveIntent("book_appointment")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.stepsTotal.WithLabelValues("booking", "choose_clinic")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.outcomesTotal.WithLabelValues("booking", "confirmed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.intentsTotal.WithLabelValues("book_appointment")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var dm *DialogMetrics
	var bm *BackendMetrics

	assert.NotPanics(t, func() {
		dm.ObserveStep("booking", "choose_clinic")
		dm.ObserveOutcome("booking", "cancelled")
		dm.ObserveIntent("unknown")
		bm.ObserveRequest("GET", "ClinicCards", "200", 0.1)
	})
}

func TestBackendMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBackendMetrics(reg)

	m.ObserveRequest("GET", "ClinicCards", "200", 0.05)

	count := testutil.CollectAndCount(m.requestDuration)
	assert.Equal(t, 1, count)
}
