package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the orchestrator's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	DispatchAttempts *prometheus.CounterVec
	JobTransitions   *prometheus.CounterVec
	PollOutcomes     *prometheus.CounterVec
	PollLatency      prometheus.Histogram
	DispatchPoolBusy prometheus.Gauge
	LeaderboardWrite *prometheus.CounterVec
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DispatchAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "judge_dispatch_attempts_total",
			Help: "Submission attempts against execution backends",
		}, []string{"endpoint", "outcome"}),
		JobTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "judge_job_transitions_total",
			Help: "Job state transitions by target state",
		}, []string{"state"}),
		PollOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "judge_poll_outcomes_total",
			Help: "Backend status polls by outcome",
		}, []string{"outcome"}),
		PollLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "judge_poll_latency_seconds",
			Help:    "Latency of a single job poll",
			Buckets: prometheus.DefBuckets,
		}),
		DispatchPoolBusy: f.NewGauge(prometheus.GaugeOpts{
			Name: "judge_dispatch_pool_busy",
			Help: "Dispatch worker slots in use",
		}),
		LeaderboardWrite: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leaderboard_updates_total",
			Help: "Leaderboard aggregation runs by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncDispatchAttempt(endpoint, outcome string) {
	if m == nil {
		return
	}
	m.DispatchAttempts.WithLabelValues(endpoint, outcome).Inc()
}

func (m *Metrics) IncTransition(state string) {
	if m == nil {
		return
	}
	m.JobTransitions.WithLabelValues(state).Inc()
}

func (m *Metrics) ObservePoll(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.PollOutcomes.WithLabelValues(outcome).Inc()
	m.PollLatency.Observe(elapsed.Seconds())
}

func (m *Metrics) SetPoolBusy(n int) {
	if m == nil {
		return
	}
	m.DispatchPoolBusy.Set(float64(n))
}

func (m *Metrics) IncLeaderboardWrite(outcome string) {
	if m == nil {
		return
	}
	m.LeaderboardWrite.WithLabelValues(outcome).Inc()
}
