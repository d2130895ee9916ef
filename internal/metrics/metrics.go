package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/VatsalSy/MPTimer/internal/tick"
	"github.com/VatsalSy/MPTimer/internal/timer"
)

// Collector observes a tracker and exports its activity.
type Collector struct {
	Cycles        *prometheus.CounterVec
	TimeSteps     prometheus.Counter
	Throttled     prometheus.Counter
	ContextResets prometheus.Counter
	ResyncGap     prometheus.Histogram
	ResourceValue prometheus.Gauge

	lastResync tick.Result
	hasResync  bool
}

// NewCollector registers the collector's metrics with reg. A nil reg uses
// the default registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Collector{
		Cycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mptimer",
			Subsystem: "estimator",
			Name:      "cycles_total",
			Help:      "Total estimator cycles by outcome",
		}, []string{"outcome"}),

		TimeSteps: f.NewCounter(prometheus.CounterOpts{
			Namespace: "mptimer",
			Subsystem: "estimator",
			Name:      "time_steps_total",
			Help:      "Total whole periods advanced by time-based inference",
		}),

		Throttled: f.NewCounter(prometheus.CounterOpts{
			Namespace: "mptimer",
			Subsystem: "tracker",
			Name:      "throttled_total",
			Help:      "Total frames skipped by the update throttle",
		}),

		ContextResets: f.NewCounter(prometheus.CounterOpts{
			Namespace: "mptimer",
			Subsystem: "tracker",
			Name:      "context_resets_total",
			Help:      "Total zone or session transitions",
		}),

		ResyncGap: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mptimer",
			Subsystem: "estimator",
			Name:      "resync_gap_seconds",
			Help:      "Host time between consecutive value resyncs",
			Buckets:   []float64{2.5, 2.9, 3, 3.05, 3.1, 3.25, 3.5, 6, 9, 15, 30, 60},
		}),

		ResourceValue: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "mptimer",
			Subsystem: "tracker",
			Name:      "resource_value",
			Help:      "Last resource value seen by an estimator cycle",
		}),
	}
}

// ObserveCycle implements timer.Observer.
func (c *Collector) ObserveCycle(res tick.Result, s timer.Sample) {
	c.Cycles.WithLabelValues(res.Outcome.String()).Inc()
	c.ResourceValue.Set(float64(s.ResourceValue))

	switch res.Outcome {
	case tick.OutcomeStepped:
		c.TimeSteps.Add(float64(res.Steps))
	case tick.OutcomeResync:
		if c.hasResync {
			c.ResyncGap.Observe((res.LastTick - c.lastResync.LastTick).Seconds())
		}
		c.lastResync = res
		c.hasResync = true
	}
}

// ObserveThrottled implements timer.Observer.
func (c *Collector) ObserveThrottled() {
	c.Throttled.Inc()
}

// ObserveContextReset implements timer.Observer.
func (c *Collector) ObserveContextReset() {
	c.ContextResets.Inc()
	c.hasResync = false
}

var _ timer.Observer = (*Collector)(nil)
