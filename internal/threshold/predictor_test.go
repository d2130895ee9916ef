package threshold

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPredict(t *testing.T) {
	p := NewPredictor(DefaultParams())

	tests := []struct {
		name        string
		show        bool
		suppressed  bool
		accelerated bool
		expected    time.Duration
	}{
		{"plain", true, false, false, 1000 * time.Millisecond},
		{"accelerated", true, false, true, 1225 * time.Millisecond},
		{"disabled", false, false, false, None},
		{"disabled accelerated", false, false, true, None},
		{"wrong mode", true, true, false, None},
		{"wrong mode accelerated", true, true, true, None},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, p.Predict(tt.show, tt.suppressed, tt.accelerated))
		})
	}
}

func TestPredictIsPure(t *testing.T) {
	p := NewPredictor(DefaultParams())

	first := p.Predict(true, false, true)
	p.Predict(false, true, false)
	second := p.Predict(true, false, true)

	assert.Equal(t, first, second)
}

func TestFraction(t *testing.T) {
	p := NewPredictor(DefaultParams())

	assert.InDelta(t, 1.0/3.0, p.Fraction(time.Second), 1e-9)
	assert.Equal(t, -1.0, p.Fraction(None))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Params)
		wantErr bool
	}{
		{"reference", func(*Params) {}, false},
		{"zero period", func(p *Params) { p.Period = 0 }, true},
		{"negative cast", func(p *Params) { p.CastTime = -time.Second }, true},
		{"negative grace", func(p *Params) { p.GracePeriod = -time.Second }, true},
		{"zero factor", func(p *Params) { p.AccelerationFactor = 0 }, true},
		{"factor above one", func(p *Params) { p.AccelerationFactor = 1.2 }, true},
		{"no room", func(p *Params) { p.CastTime = 2500 * time.Millisecond }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := DefaultParams()
			tt.mutate(&params)
			err := params.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
