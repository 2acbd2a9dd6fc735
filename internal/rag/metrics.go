package rag

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Stage labels.
const (
	StageRetrieval = "retrieval"
	StagePrimary   = "primary"
	StageMealPlan  = "meal_plan"
	StageSummary   = "summary"
	StageCalendar  = "calendar"
)

// Metrics exposes Prometheus collectors that report orchestrator activity.
type Metrics struct {
	stageDuration *prometheus.HistogramVec
	stageFailures *prometheus.CounterVec
	planReplies   prometheus.Counter
	activeReplies prometheus.Gauge
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Collectors that are already registered are reused, so repeated
// construction against one registry is safe. Any other registration error
// panics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nutribot",
			Subsystem: "rag",
			Name:      "stage_duration_seconds",
			Help:      "Duration spent in each orchestrator stage.",
			Buckets:   []float64{0.01, 0.05, 0.25, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"stage", "status"},
	)
	stageFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nutribot",
			Subsystem: "rag",
			Name:      "stage_failures_total",
			Help:      "Stage executions that failed, by error kind.",
		},
		[]string{"stage", "reason"},
	)
	planReplies := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "nutribot",
			Subsystem: "rag",
			Name:      "plan_replies_total",
			Help:      "Replies long enough to trigger the summary and calendar stage.",
		},
	)
	activeReplies := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "nutribot",
			Subsystem: "rag",
			Name:      "replies_active",
			Help:      "Replies currently being generated.",
		},
	)

	collectors := []prometheus.Collector{stageDuration, stageFailures, planReplies, activeReplies}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				switch collector {
				case stageDuration:
					stageDuration = already.ExistingCollector.(*prometheus.HistogramVec)
				case stageFailures:
					stageFailures = already.ExistingCollector.(*prometheus.CounterVec)
				case planReplies:
					planReplies = already.ExistingCollector.(prometheus.Counter)
				case activeReplies:
					activeReplies = already.ExistingCollector.(prometheus.Gauge)
				}
				continue
			}
			panic(err)
		}
	}

	return &Metrics{
		stageDuration: stageDuration,
		stageFailures: stageFailures,
		planReplies:   planReplies,
		activeReplies: activeReplies,
	}
}

// ObserveStage records the time spent in a stage with the provided status label.
func (m *Metrics) ObserveStage(stage, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage, status).Observe(d.Seconds())
}

// IncStageFailure increments the failure counter for the given stage and reason.
func (m *Metrics) IncStageFailure(stage, reason string) {
	if m == nil {
		return
	}
	m.stageFailures.WithLabelValues(stage, reason).Inc()
}

func (m *Metrics) incPlanReply() {
	if m == nil {
		return
	}
	m.planReplies.Inc()
}

func (m *Metrics) trackActive() func() {
	if m == nil {
		return func() {}
	}
	m.activeReplies.Inc()
	return m.activeReplies.Dec
}
