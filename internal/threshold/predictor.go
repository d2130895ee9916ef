// Package threshold predicts the latest point in a tick window at which a
// timed action can still be started and land before the next tick.
package threshold

import (
	"fmt"
	"math"
	"time"
)

// None is returned when no threshold should be displayed.
const None time.Duration = -1

// Reference tuning.
const (
	DefaultPeriod             = 3 * time.Second
	DefaultCastTime           = 1500 * time.Millisecond
	DefaultGracePeriod        = 500 * time.Millisecond
	DefaultAccelerationFactor = 0.85
)

// Params holds the fixed timing constants.
type Params struct {
	Period             time.Duration
	CastTime           time.Duration
	GracePeriod        time.Duration
	AccelerationFactor float64
}

// DefaultParams returns the reference tuning.
func DefaultParams() Params {
	return Params{
		Period:             DefaultPeriod,
		CastTime:           DefaultCastTime,
		GracePeriod:        DefaultGracePeriod,
		AccelerationFactor: DefaultAccelerationFactor,
	}
}

// Validate checks that the constants describe a usable window.
func (p Params) Validate() error {
	if p.Period <= 0 {
		return fmt.Errorf("period must be positive, got %s", p.Period)
	}
	if p.CastTime < 0 {
		return fmt.Errorf("cast time must not be negative, got %s", p.CastTime)
	}
	if p.GracePeriod < 0 {
		return fmt.Errorf("grace period must not be negative, got %s", p.GracePeriod)
	}
	if p.AccelerationFactor <= 0 || p.AccelerationFactor > 1 {
		return fmt.Errorf("acceleration factor must be in (0, 1], got %g", p.AccelerationFactor)
	}
	if p.threshold(false) <= 0 {
		return fmt.Errorf("cast time %s plus grace %s leaves no room in a %s window",
			p.CastTime, p.GracePeriod, p.Period)
	}
	return nil
}

func (p Params) threshold(accelerated bool) time.Duration {
	cast := p.CastTime
	if accelerated {
		cast = time.Duration(math.Round(float64(p.CastTime) * p.AccelerationFactor))
	}
	return p.Period - cast - p.GracePeriod
}

// Predictor computes the commit offset. It holds no state between calls.
type Predictor struct {
	params Params
}

// NewPredictor creates a predictor with the given constants.
func NewPredictor(params Params) *Predictor {
	return &Predictor{params: params}
}

// Params returns the predictor's constants.
func (p *Predictor) Params() Params {
	return p.params
}

// Predict returns the commit offset measured from the tick boundary, or None
// when the feature is disabled or the entity is not in the mode where the
// threshold is meaningful.
func (p *Predictor) Predict(showEnabled, suppressedByMode, acceleration bool) time.Duration {
	if !showEnabled || suppressedByMode {
		return None
	}
	return p.params.threshold(acceleration)
}

// Fraction maps a commit offset onto the tick window. None maps to -1.
func (p *Predictor) Fraction(offset time.Duration) float64 {
	if offset < 0 {
		return -1
	}
	return float64(offset) / float64(p.params.Period)
}
