package main

import (
	"fmt"
	"io"
	"time"

	"github.com/VatsalSy/MPTimer/internal/state"
	"github.com/VatsalSy/MPTimer/internal/tick"
	"github.com/VatsalSy/MPTimer/internal/timer"
	"github.com/VatsalSy/MPTimer/pkg/progress"
)

// driver feeds host frames through one tracker and folds the outputs into
// replay statistics.
type driver struct {
	tracker *timer.Tracker
	stats   *progress.MetricsCollector
	trace   io.Writer
}

func newDriver(opts timer.Options, trace io.Writer) *driver {
	tr := timer.NewTracker(opts)
	period := tr.Estimator().Period()
	return &driver{
		tracker: tr,
		stats:   progress.NewMetricsCollector(period, opts.PollInterval, 30*time.Second),
		trace:   trace,
	}
}

// step processes one frame. trueTick is negative when unknown.
func (d *driver) step(s timer.Sample, contextChanged bool, trueTick time.Duration) timer.Output {
	if contextChanged {
		d.tracker.OnContextChanged()
	}
	out := d.tracker.OnUpdate(s)

	d.stats.Add(progress.FrameResult{
		Now:            s.Now,
		Output:         out,
		ContextChanged: contextChanged,
		TrueTick:       trueTick,
		HasTrueTick:    trueTick >= 0,
	})

	if d.trace != nil && out.Updated && out.Outcome != tick.OutcomeUnchanged {
		fmt.Fprintf(d.trace, "%10s  %-16s value=%-6d last_tick=%s\n",
			state.FormatHostTime(s.Now), outcomeColor(out.Outcome),
			s.ResourceValue, state.FormatHostTime(out.LastTick))
	}
	return out
}

// stepObservation processes one journal record.
func (d *driver) stepObservation(obs *state.Observation) timer.Output {
	trueTick := time.Duration(-1)
	if tt, ok := obs.TrueTick(); ok {
		trueTick = tt
	}
	return d.step(obs.Sample(), obs.ContextChanged, trueTick)
}
