package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VatsalSy/MPTimer/internal/tick"
	"github.com/VatsalSy/MPTimer/internal/timer"
	"github.com/VatsalSy/MPTimer/internal/visibility"
)

func TestCollectorObservesTracker(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	opts := timer.DefaultOptions()
	opts.Observer = c
	tr := timer.NewTracker(opts)

	cond := visibility.Conditions{Role: visibility.SupportedRole, InCombat: true}
	feed := func(now time.Duration, value int, status timer.StatusFlags) {
		tr.OnUpdate(timer.Sample{Now: now, ResourceValue: value, Status: status, Conditions: cond})
	}

	feed(time.Second, 100, timer.StatusFlags{})
	feed(2*time.Second, 200, timer.StatusFlags{})
	feed(2*time.Second+time.Millisecond, 200, timer.StatusFlags{})
	feed(3*time.Second, 900, timer.StatusFlags{RegenSuppressed: true})
	feed(9*time.Second, 900, timer.StatusFlags{})
	feed(11*time.Second, 1000, timer.StatusFlags{})
	tr.OnContextChanged()

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Cycles.WithLabelValues("baseline")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Cycles.WithLabelValues("resync")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Cycles.WithLabelValues("suppressed_gain")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Cycles.WithLabelValues("stepped")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.TimeSteps))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Throttled))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ContextResets))
	assert.Equal(t, 1000.0, testutil.ToFloat64(c.ResourceValue))
	assert.Equal(t, uint64(1), histogramCount(t, reg, "mptimer_estimator_resync_gap_seconds"))
}

func TestCollectorResyncGapResetsOnContextChange(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveCycle(tick.Result{Outcome: tick.OutcomeResync, LastTick: time.Second}, timer.Sample{})
	c.ObserveContextReset()
	c.ObserveCycle(tick.Result{Outcome: tick.OutcomeResync, LastTick: 40 * time.Second}, timer.Sample{})

	assert.Equal(t, uint64(0), histogramCount(t, reg, "mptimer_estimator_resync_gap_seconds"))
}

func histogramCount(t *testing.T, reg *prometheus.Registry, name string) uint64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	t.Fatalf("metric %s not gathered", name)
	return 0
}
