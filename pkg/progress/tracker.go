/**
 * Replay Progress Tracker
 * Progress tracking for replaying recorded host sessions through the
 * estimator
 *
 * Features:
 * - Thread-safe frame counters
 * - Host time covered alongside wall time spent
 * - Batched update delivery to subscribers
 *
 * Author: MPTimer Team
 * Update History:
 * - 2025-02-07: Initial implementation
 */

package progress

import (
	"sync"
	"sync/atomic"
	"time"
)

// State represents the current state of a replay.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateError
)

// String returns the string representation of a State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Progress holds the counters of one replay.
type Progress struct {
	startTime       time.Time
	lastFlush       time.Time
	errors          []error
	pendingUpdates  []Update
	state           State
	totalFrames     atomic.Int64
	processedFrames atomic.Int64
	resyncs         atomic.Int64
	hostTime        atomic.Int64
	batchSize       int
	mu              sync.RWMutex
	batchMu         sync.Mutex
}

// Update represents a progress update.
type Update struct {
	Timestamp time.Time
	Error     error
	Type      UpdateType
	Frames    int64
	HostTime  time.Duration
}

// UpdateType defines the type of progress update.
type UpdateType int

const (
	UpdateTypeFrame UpdateType = iota
	UpdateTypeResync
	UpdateTypeError
	UpdateTypeState
)

// Tracker manages progress tracking for a replay.
type Tracker struct {
	progress    *Progress
	done        chan struct{}
	listeners   []chan Update
	wg          sync.WaitGroup
	listenersMu sync.RWMutex
	stopOnce    sync.Once
}

// NewTracker creates a new progress tracker.
func NewTracker(batchSize int) *Tracker {
	if batchSize <= 0 {
		batchSize = 100
	}

	return &Tracker{
		progress: &Progress{
			state:          StateIdle,
			batchSize:      batchSize,
			pendingUpdates: make([]Update, 0, batchSize),
		},
		listeners: make([]chan Update, 0),
		done:      make(chan struct{}),
	}
}

// Start begins tracking progress.
func (t *Tracker) Start() {
	t.progress.mu.Lock()
	defer t.progress.mu.Unlock()

	if t.progress.state != StateIdle {
		return
	}

	t.progress.state = StateRunning
	t.progress.startTime = time.Now()
	t.progress.lastFlush = time.Now()

	t.wg.Add(1)
	go t.processBatches()
}

// Stop stops tracking progress. A replay with errors ends in StateError.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() {
		t.progress.mu.Lock()
		if len(t.progress.errors) > 0 {
			t.progress.state = StateError
		} else {
			t.progress.state = StateCompleted
		}
		t.progress.mu.Unlock()

		close(t.done)
		t.wg.Wait()

		t.notifyListeners([]Update{{Type: UpdateTypeState, Timestamp: time.Now()}})
	})
}

// SetTotal sets the number of frames to replay.
func (t *Tracker) SetTotal(frames int64) {
	t.progress.totalFrames.Store(frames)
}

// AddFrame records one replayed frame at host time now.
func (t *Tracker) AddFrame(now time.Duration, resync bool) {
	t.progress.processedFrames.Add(1)
	t.progress.hostTime.Store(int64(now))

	updateType := UpdateTypeFrame
	if resync {
		t.progress.resyncs.Add(1)
		updateType = UpdateTypeResync
	}

	t.addUpdate(Update{
		Type:      updateType,
		Frames:    1,
		HostTime:  now,
		Timestamp: time.Now(),
	})
}

// AddError records a frame that could not be replayed.
func (t *Tracker) AddError(err error) {
	t.progress.mu.Lock()
	t.progress.errors = append(t.progress.errors, err)
	t.progress.mu.Unlock()

	t.notifyListeners([]Update{{
		Type:      UpdateTypeError,
		Error:     err,
		Timestamp: time.Now(),
	}})
}

// GetSnapshot returns a snapshot of the current progress.
func (t *Tracker) GetSnapshot() ProgressSnapshot {
	t.progress.mu.RLock()
	defer t.progress.mu.RUnlock()

	return ProgressSnapshot{
		TotalFrames:     t.progress.totalFrames.Load(),
		ProcessedFrames: t.progress.processedFrames.Load(),
		Resyncs:         t.progress.resyncs.Load(),
		HostTime:        time.Duration(t.progress.hostTime.Load()),
		State:           t.progress.state,
		StartTime:       t.progress.startTime,
		ElapsedTime:     t.calculateElapsed(),
		ErrorCount:      len(t.progress.errors),
	}
}

// Subscribe creates a new listener channel for progress updates.
func (t *Tracker) Subscribe() <-chan Update {
	t.listenersMu.Lock()
	defer t.listenersMu.Unlock()

	ch := make(chan Update, 100)
	t.listeners = append(t.listeners, ch)
	return ch
}

// Unsubscribe removes a listener channel.
func (t *Tracker) Unsubscribe(ch <-chan Update) {
	t.listenersMu.Lock()
	defer t.listenersMu.Unlock()

	for i, listener := range t.listeners {
		if listener == ch {
			close(listener)
			t.listeners = append(t.listeners[:i], t.listeners[i+1:]...)
			break
		}
	}
}

// addUpdate adds an update to the batch.
func (t *Tracker) addUpdate(update Update) {
	t.progress.batchMu.Lock()
	defer t.progress.batchMu.Unlock()

	t.progress.pendingUpdates = append(t.progress.pendingUpdates, update)

	if len(t.progress.pendingUpdates) >= t.progress.batchSize ||
		time.Since(t.progress.lastFlush) > 100*time.Millisecond {

		t.flushUpdates()
	}
}

// flushUpdates sends pending updates to listeners. Callers hold batchMu.
func (t *Tracker) flushUpdates() {
	if len(t.progress.pendingUpdates) == 0 {
		return
	}

	updates := make([]Update, len(t.progress.pendingUpdates))
	copy(updates, t.progress.pendingUpdates)
	t.progress.pendingUpdates = t.progress.pendingUpdates[:0]
	t.progress.lastFlush = time.Now()

	t.notifyListeners(updates)
}

// notifyListeners sends updates to all listeners without blocking.
func (t *Tracker) notifyListeners(updates []Update) {
	t.listenersMu.RLock()
	defer t.listenersMu.RUnlock()

	for _, listener := range t.listeners {
		for _, update := range updates {
			select {
			case listener <- update:
			default:
			}
		}
	}
}

// processBatches handles batch processing in the background.
func (t *Tracker) processBatches() {
	defer t.wg.Done()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.progress.batchMu.Lock()
			t.flushUpdates()
			t.progress.batchMu.Unlock()
		case <-t.done:
			t.progress.batchMu.Lock()
			t.flushUpdates()
			t.progress.batchMu.Unlock()
			return
		}
	}
}

// calculateElapsed returns the wall time spent since Start.
func (t *Tracker) calculateElapsed() time.Duration {
	if t.progress.startTime.IsZero() {
		return 0
	}
	return time.Since(t.progress.startTime)
}

// ProgressSnapshot represents a point-in-time view of progress.
type ProgressSnapshot struct {
	StartTime       time.Time
	TotalFrames     int64
	ProcessedFrames int64
	Resyncs         int64
	HostTime        time.Duration
	State           State
	ElapsedTime     time.Duration
	ErrorCount      int
}

// PercentComplete returns the percentage of completion.
func (ps ProgressSnapshot) PercentComplete() float64 {
	if ps.TotalFrames == 0 {
		return 0
	}
	return float64(ps.ProcessedFrames) / float64(ps.TotalFrames) * 100
}

// FramesPerSecond returns the average replay speed in wall time.
func (ps ProgressSnapshot) FramesPerSecond() float64 {
	if ps.ElapsedTime == 0 {
		return 0
	}
	return float64(ps.ProcessedFrames) / ps.ElapsedTime.Seconds()
}

// Speedup returns host time replayed per unit of wall time.
func (ps ProgressSnapshot) Speedup() float64 {
	if ps.ElapsedTime == 0 {
		return 0
	}
	return float64(ps.HostTime) / float64(ps.ElapsedTime)
}

// ETA returns the estimated time to completion.
func (ps ProgressSnapshot) ETA() time.Duration {
	fps := ps.FramesPerSecond()
	if ps.ProcessedFrames == 0 || fps == 0 {
		return 0
	}

	remaining := ps.TotalFrames - ps.ProcessedFrames
	if remaining <= 0 {
		return 0
	}
	return time.Duration(float64(remaining) / fps * float64(time.Second))
}
