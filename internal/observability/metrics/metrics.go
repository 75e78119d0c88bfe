package metrics

import "github.com/prometheus/client_golang/prometheus"

// DialogMetrics exposes counters for the conversation flows.
type DialogMetrics struct {
	stepsTotal    *prometheus.CounterVec
	outcomesTotal *prometheus.CounterVec
	intentsTotal  *prometheus.CounterVec
}

func NewDialogMetrics(reg prometheus.Registerer) *DialogMetrics {
	m := &DialogMetrics{
		stepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medbot",
			Subsystem: "dialog",
			Name:      "steps_total",
			Help:      "Total step transitions per flow",
		}, []string{"flow", "step"}),
		outcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medbot",
			Subsystem: "dialog",
			Name:      "outcomes_total",
			Help:      "Terminal flow outcomes",
		}, []string{"flow", "outcome"}),
		intentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medbot",
			Subsystem: "dialog",
			Name:      "intents_total",
			Help:      "Classified intents for free-text messages",
		}, []string{"intent"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.stepsTotal, m.outcomesTotal, m.intentsTotal)
	return m
}

func (m *DialogMetrics) ObserveStep(flow, step string) {
	if m == nil {
		return
	}
	m.stepsTotal.WithLabelValues(flow, step).Inc()
}

func (m *DialogMetrics) ObserveOutcome(flow, outcome string) {
	if m == nil {
		return
	}
	m.outcomesTotal.WithLabelValues(flow, outcome).Inc()
}

func (m *DialogMetrics) ObserveIntent(intent string) {
	if m == nil {
		return
	}
	m.intentsTotal.WithLabelValues(intent).Inc()
}

// BackendMetrics tracks latency and status of clinic backend calls.
type BackendMetrics struct {
	requestDuration *prometheus.HistogramVec
}

func NewBackendMetrics(reg prometheus.Registerer) *BackendMetrics {
	m := &BackendMetrics{
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "medbot",
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "Latency of clinic backend API calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestDuration)
	return m
}

func (m *BackendMetrics) ObserveRequest(method, path, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, path, status).Observe(seconds)
}
