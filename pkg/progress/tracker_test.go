/**
 * Replay Progress Tracker Tests
 *
 * Author: MPTimer Team
 * Update History:
 * - 2025-02-07: Initial implementation
 */

package progress

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNewTracker(t *testing.T) {
	t.Run("create tracker with default batch size", func(t *testing.T) {
		tracker := NewTracker(0)
		if tracker == nil {
			t.Fatal("expected tracker to be created")
		}
		if tracker.progress.batchSize != 100 {
			t.Errorf("expected default batch size 100, got %d",
				tracker.progress.batchSize)
		}
	})

	t.Run("create tracker with custom batch size", func(t *testing.T) {
		tracker := NewTracker(200)
		if tracker.progress.batchSize != 200 {
			t.Errorf("expected batch size 200, got %d",
				tracker.progress.batchSize)
		}
	})
}

func TestTrackerStartStop(t *testing.T) {
	tracker := NewTracker(100)

	tracker.Start()
	if tracker.progress.state != StateRunning {
		t.Errorf("expected state Running, got %v", tracker.progress.state)
	}
	if tracker.progress.startTime.IsZero() {
		t.Error("expected start time to be set")
	}

	tracker.Stop()
	if tracker.progress.state != StateCompleted {
		t.Errorf("expected state Completed, got %v", tracker.progress.state)
	}

	// Stop is idempotent.
	tracker.Stop()
}

func TestTrackerStopWithErrors(t *testing.T) {
	tracker := NewTracker(10)
	tracker.Start()
	tracker.AddError(errors.New("line 3: malformed"))
	tracker.Stop()

	snapshot := tracker.GetSnapshot()
	if snapshot.State != StateError {
		t.Errorf("expected state Error, got %v", snapshot.State)
	}
	if snapshot.ErrorCount != 1 {
		t.Errorf("expected 1 error, got %d", snapshot.ErrorCount)
	}
}

func TestTrackerFrames(t *testing.T) {
	tracker := NewTracker(10)
	tracker.SetTotal(100)
	tracker.Start()

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				tracker.AddFrame(time.Duration(g*25+i)*time.Second/60, i%10 == 0)
			}
		}(g)
	}
	wg.Wait()
	tracker.Stop()

	snapshot := tracker.GetSnapshot()
	if snapshot.ProcessedFrames != 100 {
		t.Errorf("expected 100 frames, got %d", snapshot.ProcessedFrames)
	}
	if snapshot.Resyncs != 12 {
		t.Errorf("expected 12 resyncs, got %d", snapshot.Resyncs)
	}
	if snapshot.PercentComplete() != 100 {
		t.Errorf("expected 100%% complete, got %.1f", snapshot.PercentComplete())
	}
}

func TestTrackerSubscriptions(t *testing.T) {
	tracker := NewTracker(1)
	updates := tracker.Subscribe()
	tracker.Start()

	tracker.AddFrame(time.Second, true)

	select {
	case update := <-updates:
		if update.Type != UpdateTypeResync {
			t.Errorf("expected resync update, got %v", update.Type)
		}
		if update.HostTime != time.Second {
			t.Errorf("expected host time 1s, got %v", update.HostTime)
		}
	case <-time.After(time.Second):
		t.Fatal("no update delivered")
	}

	tracker.Unsubscribe(updates)
	if _, ok := <-updates; ok {
		t.Error("expected channel to be closed")
	}

	tracker.Stop()
}

func TestProgressSnapshot(t *testing.T) {
	snapshot := ProgressSnapshot{
		TotalFrames:     1000,
		ProcessedFrames: 250,
		HostTime:        10 * time.Second,
		ElapsedTime:     time.Second,
	}

	if got := snapshot.PercentComplete(); got != 25 {
		t.Errorf("expected 25%%, got %.1f", got)
	}
	if got := snapshot.FramesPerSecond(); got != 250 {
		t.Errorf("expected 250 fps, got %.1f", got)
	}
	if got := snapshot.Speedup(); got != 10 {
		t.Errorf("expected 10x, got %.1f", got)
	}
	if got := snapshot.ETA(); got != 3*time.Second {
		t.Errorf("expected 3s ETA, got %v", got)
	}

	empty := ProgressSnapshot{}
	if empty.PercentComplete() != 0 || empty.FramesPerSecond() != 0 || empty.ETA() != 0 {
		t.Error("expected zero values for an empty snapshot")
	}
}

func TestStateString(t *testing.T) {
	states := map[State]string{
		StateIdle:      "idle",
		StateRunning:   "running",
		StateCompleted: "completed",
		StateError:     "error",
		State(42):      "unknown",
	}
	for state, want := range states {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}

func BenchmarkTrackerAddFrame(b *testing.B) {
	tracker := NewTracker(1000)
	tracker.Start()
	defer tracker.Stop()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tracker.AddFrame(time.Duration(i)*time.Millisecond, false)
	}
}
