/**
 * Retry Logic with Exponential Backoff
 *
 * Retries transient journal writes, such as SQLite busy errors while
 * another process holds the write lock.
 *
 * Author: MPTimer Team
 * Created: 2025-02-06
 */

package errors

import (
	"context"
	"math/rand"
	"time"
)

// BackoffConfig configures the exponential backoff behavior.
type BackoffConfig struct {
	// InitialInterval is the initial retry interval
	InitialInterval time.Duration

	// MaxInterval is the maximum retry interval
	MaxInterval time.Duration

	// Multiplier is the factor by which the retry interval increases
	Multiplier float64

	// MaxAttempts bounds the number of attempts; zero means unbounded
	MaxAttempts int

	// RandomizationFactor adds jitter
	RandomizationFactor float64
}

// DefaultBackoffConfig suits journal writes.
var DefaultBackoffConfig = &BackoffConfig{
	InitialInterval:     50 * time.Millisecond,
	MaxInterval:         2 * time.Second,
	Multiplier:          2.0,
	MaxAttempts:         5,
	RandomizationFactor: 0.25,
}

// ExponentialBackoff implements exponential backoff with jitter.
type ExponentialBackoff struct {
	config          *BackoffConfig
	rand            *rand.Rand
	currentInterval time.Duration
	attempt         int
}

// NewExponentialBackoff creates a new exponential backoff instance.
func NewExponentialBackoff(config *BackoffConfig) *ExponentialBackoff {
	if config == nil {
		config = DefaultBackoffConfig
	}
	cfg := *config
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}

	return &ExponentialBackoff{
		config:          &cfg,
		currentInterval: cfg.InitialInterval,
		rand:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Reset resets the backoff to initial state.
func (eb *ExponentialBackoff) Reset() {
	eb.currentInterval = eb.config.InitialInterval
	eb.attempt = 0
}

// NextBackOff returns the next backoff duration, or -1 when the attempt
// budget is spent.
func (eb *ExponentialBackoff) NextBackOff() time.Duration {
	if eb.config.MaxAttempts > 0 && eb.attempt >= eb.config.MaxAttempts-1 {
		return -1
	}

	interval := eb.jittered()

	eb.currentInterval = time.Duration(float64(eb.currentInterval) * eb.config.Multiplier)
	if eb.config.MaxInterval > 0 && eb.currentInterval > eb.config.MaxInterval {
		eb.currentInterval = eb.config.MaxInterval
	}
	eb.attempt++

	return interval
}

// GetAttempt returns the number of backoffs handed out so far.
func (eb *ExponentialBackoff) GetAttempt() int {
	return eb.attempt
}

func (eb *ExponentialBackoff) jittered() time.Duration {
	if eb.config.RandomizationFactor == 0 {
		return eb.currentInterval
	}

	delta := eb.config.RandomizationFactor * float64(eb.currentInterval)
	lo := float64(eb.currentInterval) - delta
	hi := float64(eb.currentInterval) + delta

	return time.Duration(lo + eb.rand.Float64()*(hi-lo))
}

// RetryOperation executes an operation with exponential backoff retry.
// The last error is returned annotated with retry information when it is
// one of ours.
func RetryOperation(
	ctx context.Context,
	operation func() error,
	config *BackoffConfig,
	shouldRetry func(error) bool,
) error {

	backoff := NewExponentialBackoff(config)

	for {
		err := operation()
		if err == nil {
			return nil
		}

		if !shouldRetry(err) {
			return err
		}

		interval := backoff.NextBackOff()
		if interval < 0 {
			var typed *Error
			if AsError(err, &typed) {
				typed.WithRetry(backoff.GetAttempt()+1, backoff.config.MaxAttempts, 0)
			}
			return err
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
