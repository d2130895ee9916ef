/**
 * Tick Estimator
 *
 * Infers the boundary of the hidden, fixed-period regeneration tick from
 * polled resource values. A genuine value increase is taken as the tick
 * itself; when the value signal is masked or flat the estimate is carried
 * forward one whole period at a time.
 *
 * Author: MPTimer Team
 * Update History:
 * - 2025-02-03: Initial implementation
 */

package tick

import "time"

// DefaultPeriod is the server regeneration interval.
const DefaultPeriod = 3 * time.Second

// NoSample marks that no resource value has been observed since construction
// or the last context reset.
const NoSample = -1

// Outcome names the branch an Advance call took.
type Outcome int

const (
	// OutcomeBaseline means the sample only established the value baseline.
	OutcomeBaseline Outcome = iota

	// OutcomeResync means a value increase was taken as a fresh tick boundary.
	OutcomeResync

	// OutcomeSuppressedGain means a value increase was attributed to an
	// out-of-band source and ignored for timing.
	OutcomeSuppressedGain

	// OutcomeStepped means the estimate was carried forward by whole periods.
	OutcomeStepped

	// OutcomeUnchanged means nothing moved.
	OutcomeUnchanged
)

// String returns the string representation of Outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeBaseline:
		return "baseline"
	case OutcomeResync:
		return "resync"
	case OutcomeSuppressedGain:
		return "suppressed_gain"
	case OutcomeStepped:
		return "stepped"
	default:
		return "unchanged"
	}
}

// Result describes the effect of one Advance call.
type Result struct {
	Outcome  Outcome
	Steps    int
	LastTick time.Duration
}

// State is the estimator's owned state for one host session.
type State struct {
	// LastTickTime is the best estimate of the most recent tick boundary.
	LastTickTime time.Duration

	// LastObservedValue is the previous sample, or NoSample.
	LastObservedValue int
}

// HasBaseline reports whether a prior sample exists.
func (s State) HasBaseline() bool {
	return s.LastObservedValue != NoSample
}

// Estimator tracks the most recent tick boundary. It is not safe for
// concurrent use; the host loop owns it.
type Estimator struct {
	state  State
	period time.Duration
}

// NewEstimator creates an estimator. A non-positive period selects DefaultPeriod.
// The initial tick estimate lies one period in the past so the elapsed
// fraction starts complete.
func NewEstimator(period time.Duration) *Estimator {
	if period <= 0 {
		period = DefaultPeriod
	}

	return &Estimator{
		period: period,
		state: State{
			LastTickTime:      -period,
			LastObservedValue: NoSample,
		},
	}
}

// Period returns the fixed tick period.
func (e *Estimator) Period() time.Duration {
	return e.period
}

// State returns a snapshot of the estimator state.
func (e *Estimator) State() State {
	return e.state
}

// Restore replaces the estimator state.
func (e *Estimator) Restore(s State) {
	e.state = s
}

// Reset discards the value baseline after a context change. The tick
// estimate itself is kept; the next sample only re-establishes the baseline.
func (e *Estimator) Reset() {
	e.state.LastObservedValue = NoSample
}

// Advance consumes one observation.
func (e *Estimator) Advance(now time.Duration, resourceValue int, lucidLike, regenSuppressed bool) Result {
	if !e.state.HasBaseline() {
		e.state.LastObservedValue = resourceValue
		return Result{Outcome: OutcomeBaseline, LastTick: e.state.LastTickTime}
	}

	increased := resourceValue > e.state.LastObservedValue
	e.state.LastObservedValue = resourceValue

	if !lucidLike && increased {
		if regenSuppressed {
			return Result{Outcome: OutcomeSuppressedGain, LastTick: e.state.LastTickTime}
		}
		if now > e.state.LastTickTime {
			e.state.LastTickTime = now
		}
		return Result{Outcome: OutcomeResync, LastTick: e.state.LastTickTime}
	}

	steps := 0
	for e.state.LastTickTime+e.period <= now {
		e.state.LastTickTime += e.period
		steps++
	}

	if steps == 0 {
		return Result{Outcome: OutcomeUnchanged, LastTick: e.state.LastTickTime}
	}
	return Result{Outcome: OutcomeStepped, Steps: steps, LastTick: e.state.LastTickTime}
}

// ElapsedFraction returns the progress through the current tick window,
// clamped to [0, 1].
func (e *Estimator) ElapsedFraction(now time.Duration) float64 {
	fraction := float64(now-e.state.LastTickTime) / float64(e.period)
	if fraction < 0 {
		return 0
	}
	if fraction > 1 {
		return 1
	}
	return fraction
}
