package throttle

import (
	"time"

	"golang.org/x/time/rate"
)

/**
 * Update Throttle for the tick tracker
 *
 * Features:
 * - Token bucket keyed off the host's monotonic clock, not the wall clock
 * - Decouples inference cadence from the host callback rate
 *
 * Author: MPTimer Team
 * Updated: 2025-02-03
 */

const (
	// DefaultInterval is the minimum spacing between estimator updates.
	DefaultInterval = time.Second / 30
)

// epoch anchors host clock offsets onto time.Time for the rate limiter.
var epoch = time.Unix(0, 0)

// Limiter gates estimator work to at most one update per interval of host time.
type Limiter struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// NewLimiter creates a limiter. A non-positive interval selects DefaultInterval.
func NewLimiter(interval time.Duration) *Limiter {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Limiter{
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
	}
}

// Interval returns the configured minimum spacing.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}

// AllowAt reports whether an update may run at host time now.
func (l *Limiter) AllowAt(now time.Duration) bool {
	return l.limiter.AllowN(epoch.Add(now), 1)
}
