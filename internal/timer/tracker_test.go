package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VatsalSy/MPTimer/internal/threshold"
	"github.com/VatsalSy/MPTimer/internal/tick"
	"github.com/VatsalSy/MPTimer/internal/visibility"
)

type recordingObserver struct {
	cycles    []tick.Result
	throttled int
	resets    int
}

func (r *recordingObserver) ObserveCycle(res tick.Result, _ Sample) {
	r.cycles = append(r.cycles, res)
}

func (r *recordingObserver) ObserveThrottled() { r.throttled++ }

func (r *recordingObserver) ObserveContextReset() { r.resets++ }

type recordingLogger struct {
	messages []string
}

func (l *recordingLogger) Debug(msg string, _ ...interface{}) {
	l.messages = append(l.messages, msg)
}

var inCombat = visibility.Conditions{Role: visibility.SupportedRole, InCombat: true}

func sample(now time.Duration, value int, status StatusFlags) Sample {
	return Sample{Now: now, ResourceValue: value, Status: status, Conditions: inCombat}
}

func TestStatusFromEffects(t *testing.T) {
	tests := []struct {
		name     string
		ids      []uint16
		phase    GaugePhase
		expected StatusFlags
	}{
		{"nothing", nil, PhaseNeutral, StatusFlags{}},
		{"lucid", []uint16{50, EffectLucidDreaming}, PhaseNeutral, StatusFlags{LucidLike: true}},
		{"ley lines in ice", []uint16{EffectCircleOfPower}, PhaseUmbralIce,
			StatusFlags{Accelerant: true, RegenFavorable: true}},
		{"fire", nil, PhaseAstralFire, StatusFlags{RegenSuppressed: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StatusFromEffects(tt.ids, tt.phase))
		})
	}
}

func TestGaugePhaseString(t *testing.T) {
	assert.Equal(t, "neutral", PhaseNeutral.String())
	assert.Equal(t, "astral_fire", PhaseAstralFire.String())
	assert.Equal(t, "umbral_ice", PhaseUmbralIce.String())
}

func TestTrackerResyncAndProgress(t *testing.T) {
	tr := NewTracker(DefaultOptions())

	out := tr.OnUpdate(sample(time.Second, 5000, StatusFlags{}))
	require.True(t, out.Updated)
	assert.Equal(t, tick.OutcomeBaseline, out.Outcome)
	assert.True(t, out.AwaitingResync)

	out = tr.OnUpdate(sample(2*time.Second, 5200, StatusFlags{}))
	assert.Equal(t, tick.OutcomeResync, out.Outcome)
	assert.Equal(t, 2*time.Second, out.LastTick)
	assert.False(t, out.AwaitingResync)
	assert.Equal(t, 0.0, out.Progress)

	out = tr.OnUpdate(sample(3500*time.Millisecond, 5200, StatusFlags{}))
	assert.InDelta(t, 0.5, out.Progress, 1e-9)
}

func TestTrackerThrottle(t *testing.T) {
	obs := &recordingObserver{}
	opts := DefaultOptions()
	opts.Observer = obs
	tr := NewTracker(opts)

	tr.OnUpdate(sample(time.Second, 5000, StatusFlags{}))
	out := tr.OnUpdate(sample(time.Second+5*time.Millisecond, 9000, StatusFlags{}))

	assert.False(t, out.Updated)
	assert.Equal(t, 5000, tr.Estimator().State().LastObservedValue)
	assert.Len(t, obs.cycles, 1)
	assert.Equal(t, 1, obs.throttled)

	out = tr.OnUpdate(sample(time.Second+100*time.Millisecond, 9000, StatusFlags{}))
	assert.True(t, out.Updated)
	assert.Equal(t, tick.OutcomeResync, out.Outcome)
}

func TestTrackerAdvancesWhileHidden(t *testing.T) {
	tr := NewTracker(DefaultOptions())
	hidden := visibility.Conditions{Role: 1}

	tr.OnUpdate(Sample{Now: time.Second, ResourceValue: 100, Conditions: hidden})
	out := tr.OnUpdate(Sample{Now: 2 * time.Second, ResourceValue: 200, Conditions: hidden})

	assert.False(t, out.Visible)
	assert.Equal(t, 2*time.Second, out.LastTick)
}

func TestTrackerCommitOffset(t *testing.T) {
	opts := DefaultOptions()
	opts.ShowThreshold = true
	tr := NewTracker(opts)

	out := tr.OnUpdate(sample(time.Second, 100, StatusFlags{RegenFavorable: true}))
	assert.Equal(t, time.Second, out.CommitOffset)

	out = tr.OnUpdate(sample(2*time.Second, 100, StatusFlags{RegenFavorable: true, Accelerant: true}))
	assert.Equal(t, 1225*time.Millisecond, out.CommitOffset)

	// Throttled frames keep the last prediction.
	out = tr.OnUpdate(sample(2*time.Second+time.Millisecond, 100, StatusFlags{}))
	assert.False(t, out.Updated)
	assert.Equal(t, 1225*time.Millisecond, out.CommitOffset)

	out = tr.OnUpdate(sample(3*time.Second, 100, StatusFlags{RegenSuppressed: true}))
	assert.Equal(t, threshold.None, out.CommitOffset)

	tr.SetPreferences(visibility.Preferences{Enabled: true}, false)
	out = tr.OnUpdate(sample(4*time.Second, 100, StatusFlags{RegenFavorable: true}))
	assert.Equal(t, threshold.None, out.CommitOffset)
}

func TestTrackerCommitOffsetHiddenWhenInvisible(t *testing.T) {
	opts := DefaultOptions()
	opts.ShowThreshold = true
	tr := NewTracker(opts)

	out := tr.OnUpdate(Sample{
		Now:        time.Second,
		Status:     StatusFlags{RegenFavorable: true},
		Conditions: visibility.Conditions{Role: 7},
	})

	assert.False(t, out.Visible)
	assert.Equal(t, threshold.None, out.CommitOffset)
}

func TestTrackerContextChanged(t *testing.T) {
	obs := &recordingObserver{}
	log := &recordingLogger{}
	opts := DefaultOptions()
	opts.Observer = obs
	opts.Logger = log
	tr := NewTracker(opts)

	tr.OnUpdate(sample(time.Second, 5000, StatusFlags{}))
	tr.OnUpdate(sample(2*time.Second, 5100, StatusFlags{}))

	tr.OnContextChanged()
	tr.OnContextChanged()

	out := tr.OnUpdate(sample(2500*time.Millisecond, 9000, StatusFlags{}))
	assert.Equal(t, tick.OutcomeBaseline, out.Outcome)
	assert.Equal(t, 2*time.Second, out.LastTick)
	assert.True(t, out.AwaitingResync)
	assert.Equal(t, 2, obs.resets)
	assert.Contains(t, log.messages, "Context changed, value baseline discarded")
}

func TestTrackerCustomPeriod(t *testing.T) {
	opts := DefaultOptions()
	opts.Period = 4 * time.Second
	opts.ShowThreshold = true
	tr := NewTracker(opts)

	assert.Equal(t, 4*time.Second, tr.Estimator().Period())
	assert.Equal(t, 4*time.Second, tr.Predictor().Params().Period)

	out := tr.OnUpdate(sample(time.Second, 0, StatusFlags{RegenFavorable: true}))
	assert.Equal(t, 2*time.Second, out.CommitOffset)
}
