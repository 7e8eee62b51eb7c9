package sink

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tendant/simple-brief/internal/process"
)

const (
	outcomeCompleted = "completed"
	outcomeFailed    = "failed"
	outcomeTimedOut  = "timed_out"
)

// Metrics counts progress updates and terminal outcomes.
type Metrics struct {
	progress prometheus.Counter
	outcomes *prometheus.CounterVec
}

// NewMetrics registers the brief counters with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		progress: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brief_progress_total",
			Help: "Progress updates received while polling brief generation.",
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brief_outcomes_total",
			Help: "Terminal outcomes of tracked brief jobs.",
		}, []string{"outcome"}),
	}
	for _, c := range []prometheus.Collector{m.progress, m.outcomes} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) OnProgress(process.EntityKey, string) { m.progress.Inc() }

func (m *Metrics) OnCompleted(process.EntityKey, string) {
	m.outcomes.WithLabelValues(outcomeCompleted).Inc()
}

func (m *Metrics) OnFailed(process.EntityKey, string) {
	m.outcomes.WithLabelValues(outcomeFailed).Inc()
}

func (m *Metrics) OnTimedOut(process.EntityKey) {
	m.outcomes.WithLabelValues(outcomeTimedOut).Inc()
}
