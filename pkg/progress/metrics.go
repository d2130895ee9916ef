/**
 * Replay Metrics
 * Estimator quality statistics gathered while replaying a session
 *
 * Features:
 * - Outcome counts and context resets
 * - Interval statistics between consecutive value resyncs
 * - Drift of the estimated tick against the recorded true tick
 * - Windowed recent drift on a circular buffer
 *
 * Author: MPTimer Team
 * Update History:
 * - 2025-02-07: Initial implementation
 */

package progress

import (
	"math"
	"sync"
	"time"

	"github.com/VatsalSy/MPTimer/internal/tick"
	"github.com/VatsalSy/MPTimer/internal/timer"
)

// FrameResult is one replayed frame and the tracker's answer to it.
type FrameResult struct {
	Now            time.Duration
	Output         timer.Output
	ContextChanged bool

	// TrueTick is only meaningful when HasTrueTick is set.
	TrueTick    time.Duration
	HasTrueTick bool
}

// Sample is one drift measurement.
type Sample struct {
	HostTime time.Duration
	Error    time.Duration
}

// CircularBuffer implements a fixed-size circular buffer for samples
type CircularBuffer struct {
	buffer []Sample
	size   int
	head   int
	tail   int
	count  int
	mu     sync.RWMutex
}

// NewCircularBuffer creates a new circular buffer
func NewCircularBuffer(size int) *CircularBuffer {
	if size < 1 {
		size = 1
	}
	return &CircularBuffer{
		buffer: make([]Sample, size),
		size:   size,
	}
}

// Add adds a sample to the circular buffer
func (cb *CircularBuffer) Add(sample Sample) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.buffer[cb.head] = sample
	cb.head = (cb.head + 1) % cb.size

	if cb.count < cb.size {
		cb.count++
	} else {
		cb.tail = (cb.tail + 1) % cb.size
	}
}

// GetRecent returns the samples within duration of the newest one.
func (cb *CircularBuffer) GetRecent(duration time.Duration) []Sample {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	if cb.count == 0 {
		return nil
	}

	newest := cb.buffer[(cb.head-1+cb.size)%cb.size]
	cutoff := newest.HostTime - duration
	samples := make([]Sample, 0, cb.count)

	for i := 0; i < cb.count; i++ {
		sample := cb.buffer[(cb.tail+i)%cb.size]
		if sample.HostTime > cutoff {
			samples = append(samples, sample)
		}
	}

	return samples
}

// GetAll returns all samples in chronological order
func (cb *CircularBuffer) GetAll() []Sample {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	if cb.count == 0 {
		return nil
	}

	samples := make([]Sample, cb.count)
	for i := 0; i < cb.count; i++ {
		samples[i] = cb.buffer[(cb.tail+i)%cb.size]
	}

	return samples
}

// Len returns the number of buffered samples.
func (cb *CircularBuffer) Len() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.count
}

// Clear clears the buffer
func (cb *CircularBuffer) Clear() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.head = 0
	cb.tail = 0
	cb.count = 0
}

// runningStat accumulates mean and variance in one pass.
type runningStat struct {
	n    int64
	mean float64
	m2   float64
	min  float64
	max  float64
}

func (r *runningStat) add(x float64) {
	r.n++
	if r.n == 1 {
		r.min, r.max = x, x
	} else {
		r.min = math.Min(r.min, x)
		r.max = math.Max(r.max, x)
	}
	delta := x - r.mean
	r.mean += delta / float64(r.n)
	r.m2 += delta * (x - r.mean)
}

func (r *runningStat) stddev() float64 {
	if r.n < 2 {
		return 0
	}
	return math.Sqrt(r.m2 / float64(r.n-1))
}

// MetricsCollector gathers estimator statistics over a replay.
type MetricsCollector struct {
	mu           sync.RWMutex
	period       time.Duration
	pollInterval time.Duration
	window       time.Duration
	recent       *CircularBuffer

	frames        int64
	updates       int64
	visible       int64
	contextResets int64
	outcomes      map[string]int64
	firstNow      time.Duration
	lastNow       time.Duration

	lastResync time.Duration
	hasResync  bool
	intervals  runningStat

	drift      runningStat
	withinPoll int64
}

// NewMetricsCollector creates a collector. window bounds the recent drift
// figure in host time.
func NewMetricsCollector(period, pollInterval, window time.Duration) *MetricsCollector {
	if period <= 0 {
		period = tick.DefaultPeriod
	}
	if window <= 0 {
		window = 30 * time.Second
	}

	bufferSize := 1024
	if pollInterval > 0 {
		bufferSize = int(window/pollInterval) + 1
	}

	return &MetricsCollector{
		period:       period,
		pollInterval: pollInterval,
		window:       window,
		recent:       NewCircularBuffer(bufferSize),
		outcomes:     make(map[string]int64),
	}
}

// Add folds one frame into the statistics.
func (mc *MetricsCollector) Add(f FrameResult) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.frames == 0 {
		mc.firstNow = f.Now
	}
	mc.frames++
	mc.lastNow = f.Now

	if f.ContextChanged {
		mc.contextResets++
		mc.hasResync = false
	}
	if f.Output.Visible {
		mc.visible++
	}
	if !f.Output.Updated {
		return
	}

	mc.updates++
	mc.outcomes[f.Output.Outcome.String()]++

	if f.Output.Outcome == tick.OutcomeResync {
		if mc.hasResync {
			mc.intervals.add(float64(f.Output.LastTick-mc.lastResync) / float64(time.Millisecond))
		}
		mc.lastResync = f.Output.LastTick
		mc.hasResync = true
	}

	if !f.HasTrueTick || !mc.hasResync {
		return
	}

	err := PhaseError(f.Output.LastTick, f.TrueTick, mc.period)
	abs := err
	if abs < 0 {
		abs = -abs
	}
	mc.drift.add(float64(abs) / float64(time.Millisecond))
	if mc.pollInterval > 0 && abs <= mc.pollInterval {
		mc.withinPoll++
	}
	mc.recent.Add(Sample{HostTime: f.Now, Error: abs})
}

// PhaseError returns est-truth folded into [-period/2, period/2).
func PhaseError(est, truth, period time.Duration) time.Duration {
	n := (est - truth) % period
	if n < 0 {
		n += period
	}
	if n >= period/2 {
		n -= period
	}
	return n
}

// IntervalStats summarizes host time between consecutive resyncs.
type IntervalStats struct {
	Count    int64   `json:"count" yaml:"count"`
	MeanMS   float64 `json:"mean_ms" yaml:"mean_ms"`
	MinMS    float64 `json:"min_ms" yaml:"min_ms"`
	MaxMS    float64 `json:"max_ms" yaml:"max_ms"`
	StdDevMS float64 `json:"stddev_ms" yaml:"stddev_ms"`
}

// DriftStats summarizes the estimate's error against the true tick.
type DriftStats struct {
	Measured        int64   `json:"measured" yaml:"measured"`
	MeanAbsMS       float64 `json:"mean_abs_ms" yaml:"mean_abs_ms"`
	MaxAbsMS        float64 `json:"max_abs_ms" yaml:"max_abs_ms"`
	RecentMeanAbsMS float64 `json:"recent_mean_abs_ms" yaml:"recent_mean_abs_ms"`
	WithinPoll      float64 `json:"within_poll" yaml:"within_poll"`
}

// Stats represents the statistics of one replay.
type Stats struct {
	Frames        int64            `json:"frames" yaml:"frames"`
	Updates       int64            `json:"updates" yaml:"updates"`
	VisibleFrames int64            `json:"visible_frames" yaml:"visible_frames"`
	ContextResets int64            `json:"context_resets" yaml:"context_resets"`
	HostSeconds   float64          `json:"host_seconds" yaml:"host_seconds"`
	Outcomes      map[string]int64 `json:"outcomes" yaml:"outcomes"`
	Intervals     IntervalStats    `json:"resync_intervals" yaml:"resync_intervals"`
	Drift         *DriftStats      `json:"drift,omitempty" yaml:"drift,omitempty"`
}

// Resyncs returns the number of value resyncs.
func (s Stats) Resyncs() int64 {
	return s.Outcomes[tick.OutcomeResync.String()]
}

// GetStats returns the statistics so far.
func (mc *MetricsCollector) GetStats() Stats {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	stats := Stats{
		Frames:        mc.frames,
		Updates:       mc.updates,
		VisibleFrames: mc.visible,
		ContextResets: mc.contextResets,
		HostSeconds:   (mc.lastNow - mc.firstNow).Seconds(),
		Outcomes:      make(map[string]int64, len(mc.outcomes)),
		Intervals: IntervalStats{
			Count:    mc.intervals.n,
			MeanMS:   mc.intervals.mean,
			MinMS:    mc.intervals.min,
			MaxMS:    mc.intervals.max,
			StdDevMS: mc.intervals.stddev(),
		},
	}
	for k, v := range mc.outcomes {
		stats.Outcomes[k] = v
	}

	if mc.drift.n > 0 {
		drift := &DriftStats{
			Measured:  mc.drift.n,
			MeanAbsMS: mc.drift.mean,
			MaxAbsMS:  mc.drift.max,
		}
		if mc.pollInterval > 0 {
			drift.WithinPoll = float64(mc.withinPoll) / float64(mc.drift.n)
		}

		recent := mc.recent.GetRecent(mc.window)
		if len(recent) > 0 {
			var sum time.Duration
			for _, s := range recent {
				sum += s.Error
			}
			drift.RecentMeanAbsMS = float64(sum) / float64(len(recent)) / float64(time.Millisecond)
		}
		stats.Drift = drift
	}

	return stats
}
