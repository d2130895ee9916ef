/**
 * Replay Metrics Tests
 *
 * Author: MPTimer Team
 * Update History:
 * - 2025-02-07: Initial implementation
 */

package progress

import (
	"math"
	"testing"
	"time"

	"github.com/VatsalSy/MPTimer/internal/tick"
	"github.com/VatsalSy/MPTimer/internal/timer"
)

func TestCircularBuffer(t *testing.T) {
	cb := NewCircularBuffer(3)

	if cb.GetAll() != nil {
		t.Error("expected nil for empty buffer")
	}

	for i := 1; i <= 5; i++ {
		cb.Add(Sample{HostTime: time.Duration(i) * time.Second, Error: time.Duration(i)})
	}

	all := cb.GetAll()
	if len(all) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(all))
	}
	if all[0].HostTime != 3*time.Second || all[2].HostTime != 5*time.Second {
		t.Errorf("unexpected order: %v", all)
	}

	recent := cb.GetRecent(1500 * time.Millisecond)
	if len(recent) != 2 {
		t.Errorf("expected 2 recent samples, got %d", len(recent))
	}

	cb.Clear()
	if cb.Len() != 0 {
		t.Errorf("expected empty buffer after clear, got %d", cb.Len())
	}
}

func TestPhaseError(t *testing.T) {
	p := 3 * time.Second
	tests := []struct {
		est, truth, want time.Duration
	}{
		{3020 * time.Millisecond, 3 * time.Second, 20 * time.Millisecond},
		{20 * time.Millisecond, 3 * time.Second, 20 * time.Millisecond},
		{2980 * time.Millisecond, 3 * time.Second, -20 * time.Millisecond},
		{6 * time.Second, 3 * time.Second, 0},
	}
	for _, tt := range tests {
		if got := PhaseError(tt.est, tt.truth, p); got != tt.want {
			t.Errorf("PhaseError(%v, %v) = %v, want %v", tt.est, tt.truth, got, tt.want)
		}
	}
}

func updated(outcome tick.Outcome, lastTick time.Duration) timer.Output {
	return timer.Output{Visible: true, Updated: true, Outcome: outcome, LastTick: lastTick}
}

func TestMetricsCollector(t *testing.T) {
	mc := NewMetricsCollector(3*time.Second, 50*time.Millisecond, 10*time.Second)

	frames := []FrameResult{
		{Now: 0, Output: updated(tick.OutcomeBaseline, -3*time.Second)},
		{Now: time.Second, Output: updated(tick.OutcomeResync, time.Second),
			TrueTick: 990 * time.Millisecond, HasTrueTick: true},
		{Now: 1010 * time.Millisecond, Output: timer.Output{Visible: false}},
		{Now: 4 * time.Second, Output: updated(tick.OutcomeResync, 4020*time.Millisecond),
			TrueTick: 3990 * time.Millisecond, HasTrueTick: true},
		{Now: 7100 * time.Millisecond, Output: updated(tick.OutcomeStepped, 7020*time.Millisecond),
			TrueTick: 6990 * time.Millisecond, HasTrueTick: true},
		// A context change drops the resync baseline: the next resync is
		// not an interval and drift is not measured before it.
		{Now: 8 * time.Second, ContextChanged: true, Output: updated(tick.OutcomeBaseline, 7020*time.Millisecond),
			TrueTick: 7500 * time.Millisecond, HasTrueTick: true},
		{Now: 9 * time.Second, Output: updated(tick.OutcomeResync, 9*time.Second),
			TrueTick: 8900 * time.Millisecond, HasTrueTick: true},
	}
	for _, f := range frames {
		mc.Add(f)
	}

	stats := mc.GetStats()

	if stats.Frames != 7 {
		t.Errorf("expected 7 frames, got %d", stats.Frames)
	}
	if stats.Updates != 6 {
		t.Errorf("expected 6 updates, got %d", stats.Updates)
	}
	if stats.VisibleFrames != 6 {
		t.Errorf("expected 6 visible frames, got %d", stats.VisibleFrames)
	}
	if stats.ContextResets != 1 {
		t.Errorf("expected 1 context reset, got %d", stats.ContextResets)
	}
	if stats.Resyncs() != 3 {
		t.Errorf("expected 3 resyncs, got %d", stats.Resyncs())
	}
	if stats.HostSeconds != 9 {
		t.Errorf("expected 9 host seconds, got %v", stats.HostSeconds)
	}

	if stats.Intervals.Count != 1 || stats.Intervals.MeanMS != 3020 {
		t.Errorf("unexpected intervals: %+v", stats.Intervals)
	}

	if stats.Drift == nil {
		t.Fatal("expected drift statistics")
	}
	// Errors: 10ms, 30ms, 30ms, 100ms.
	if stats.Drift.Measured != 4 {
		t.Errorf("expected 4 drift measurements, got %d", stats.Drift.Measured)
	}
	if math.Abs(stats.Drift.MeanAbsMS-42.5) > 1e-9 {
		t.Errorf("expected mean drift 42.5ms, got %v", stats.Drift.MeanAbsMS)
	}
	if stats.Drift.MaxAbsMS != 100 {
		t.Errorf("expected max drift 100ms, got %v", stats.Drift.MaxAbsMS)
	}
	if stats.Drift.WithinPoll != 0.75 {
		t.Errorf("expected 75%% within poll, got %v", stats.Drift.WithinPoll)
	}
}

func TestMetricsCollectorWithoutTruth(t *testing.T) {
	mc := NewMetricsCollector(0, 0, 0)
	mc.Add(FrameResult{Now: time.Second, Output: updated(tick.OutcomeResync, time.Second)})

	stats := mc.GetStats()
	if stats.Drift != nil {
		t.Errorf("expected no drift without true ticks, got %+v", stats.Drift)
	}
	if stats.Resyncs() != 1 {
		t.Errorf("expected 1 resync, got %d", stats.Resyncs())
	}
}

func TestRunningStat(t *testing.T) {
	var r runningStat
	for _, x := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		r.add(x)
	}
	if math.Abs(r.mean-5) > 1e-9 {
		t.Errorf("expected mean 5, got %v", r.mean)
	}
	if r.min != 2 || r.max != 9 {
		t.Errorf("expected range [2, 9], got [%v, %v]", r.min, r.max)
	}
	if math.Abs(r.stddev()-2.138089935) > 1e-6 {
		t.Errorf("unexpected stddev %v", r.stddev())
	}
}

func BenchmarkMetricsAdd(b *testing.B) {
	mc := NewMetricsCollector(3*time.Second, 33*time.Millisecond, 30*time.Second)
	out := updated(tick.OutcomeStepped, 0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mc.Add(FrameResult{Now: time.Duration(i) * time.Millisecond, Output: out, HasTrueTick: true})
	}
}
