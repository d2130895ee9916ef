/**
 * Tick Tracker
 *
 * The in-process contract between the host loop and the estimator core.
 * The host calls OnUpdate once per frame and OnContextChanged on zone or
 * session transitions; the tracker throttles, advances the estimator,
 * recomputes the commit threshold and evaluates visibility.
 *
 * Author: MPTimer Team
 * Update History:
 * - 2025-02-03: Initial implementation
 * - 2025-02-05: Observer hook and resync hint
 */

package timer

import (
	"time"

	"github.com/VatsalSy/MPTimer/internal/threshold"
	"github.com/VatsalSy/MPTimer/internal/throttle"
	"github.com/VatsalSy/MPTimer/internal/tick"
	"github.com/VatsalSy/MPTimer/internal/visibility"
)

// Sample is one host observation.
type Sample struct {
	Now           time.Duration
	ResourceValue int
	Status        StatusFlags
	Conditions    visibility.Conditions
}

// Output is what the presentation layer renders for one frame.
type Output struct {
	// Visible gates whether presentation should run at all.
	Visible bool

	// Progress is the elapsed fraction of the current tick window.
	Progress float64

	// CommitOffset is the safe-commit point measured from the tick
	// boundary, or threshold.None.
	CommitOffset time.Duration

	// LastTick is the current tick boundary estimate.
	LastTick time.Duration

	// Updated is true when this call ran an estimator cycle.
	Updated bool

	// Outcome is the estimator branch taken, valid when Updated.
	Outcome tick.Outcome

	// AwaitingResync is true from a context reset (or start) until the
	// first value-driven resync.
	AwaitingResync bool
}

// Observer receives every estimator cycle and context reset.
type Observer interface {
	ObserveCycle(res tick.Result, sample Sample)
	ObserveThrottled()
	ObserveContextReset()
}

// Logger is the subset of the application logger the tracker uses.
type Logger interface {
	Debug(msg string, fields ...interface{})
}

// Options configures a Tracker.
type Options struct {
	Period        time.Duration
	PollInterval  time.Duration
	Threshold     threshold.Params
	Preferences   visibility.Preferences
	ShowThreshold bool
	Observer      Observer
	Logger        Logger
}

// DefaultOptions returns the reference tuning with the feature enabled.
func DefaultOptions() Options {
	return Options{
		Period:       tick.DefaultPeriod,
		PollInterval: throttle.DefaultInterval,
		Threshold:    threshold.DefaultParams(),
		Preferences:  visibility.Preferences{Enabled: true},
	}
}

// Tracker owns one session's estimator state. It is not safe for
// concurrent use.
type Tracker struct {
	estimator     *tick.Estimator
	predictor     *threshold.Predictor
	limiter       *throttle.Limiter
	observer      Observer
	logger        Logger
	prefs         visibility.Preferences
	showThreshold bool
	commitOffset  time.Duration
	lastOutcome   tick.Outcome
	awaiting      bool
}

// NewTracker creates a tracker for one host session.
func NewTracker(opts Options) *Tracker {
	params := opts.Threshold
	if params.Period == 0 {
		params = threshold.DefaultParams()
	}
	period := opts.Period
	if period <= 0 {
		period = params.Period
	}
	params.Period = period

	return &Tracker{
		estimator:     tick.NewEstimator(period),
		predictor:     threshold.NewPredictor(params),
		limiter:       throttle.NewLimiter(opts.PollInterval),
		observer:      opts.Observer,
		logger:        opts.Logger,
		prefs:         opts.Preferences,
		showThreshold: opts.ShowThreshold,
		commitOffset:  threshold.None,
		lastOutcome:   tick.OutcomeUnchanged,
		awaiting:      true,
	}
}

// SetPreferences applies changed display preferences.
func (t *Tracker) SetPreferences(prefs visibility.Preferences, showThreshold bool) {
	t.prefs = prefs
	t.showThreshold = showThreshold
}

// Estimator exposes the underlying estimator.
func (t *Tracker) Estimator() *tick.Estimator {
	return t.estimator
}

// Predictor exposes the underlying predictor.
func (t *Tracker) Predictor() *threshold.Predictor {
	return t.predictor
}

// OnContextChanged discards the value baseline. It must be called on every
// zone or session transition, before the next OnUpdate.
func (t *Tracker) OnContextChanged() {
	t.estimator.Reset()
	t.awaiting = true

	if t.observer != nil {
		t.observer.ObserveContextReset()
	}
	t.debug("Context changed, value baseline discarded")
}

// OnUpdate processes one host frame.
func (t *Tracker) OnUpdate(s Sample) Output {
	visible := visibility.IsVisible(s.Conditions, t.prefs)

	updated := t.limiter.AllowAt(s.Now)
	if updated {
		res := t.estimator.Advance(s.Now, s.ResourceValue, s.Status.LucidLike, s.Status.RegenSuppressed)
		t.lastOutcome = res.Outcome
		if res.Outcome == tick.OutcomeResync {
			t.awaiting = false
		}

		t.commitOffset = t.predictor.Predict(t.showThreshold, !s.Status.RegenFavorable, s.Status.Accelerant)

		if t.observer != nil {
			t.observer.ObserveCycle(res, s)
		}
		if res.Outcome != tick.OutcomeUnchanged {
			t.debug("Estimator cycle",
				"outcome", res.Outcome.String(),
				"steps", res.Steps,
				"last_tick", res.LastTick,
				"value", s.ResourceValue,
			)
		}
	} else if t.observer != nil {
		t.observer.ObserveThrottled()
	}

	out := Output{
		Visible:        visible,
		Progress:       t.estimator.ElapsedFraction(s.Now),
		CommitOffset:   t.commitOffset,
		LastTick:       t.estimator.State().LastTickTime,
		Updated:        updated,
		Outcome:        t.lastOutcome,
		AwaitingResync: t.awaiting,
	}
	if !visible {
		out.CommitOffset = threshold.None
	}

	return out
}

func (t *Tracker) debug(msg string, fields ...interface{}) {
	if t.logger != nil {
		t.logger.Debug(msg, fields...)
	}
}
