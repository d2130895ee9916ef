/**
 * Host Simulator
 *
 * Generates a deterministic stream of host frames from a hidden server
 * tick: a fixed-period regeneration with a random phase, jittered frame
 * timing, alternating fire/ice gauge phases, out-of-band gains during fire,
 * an optional lucid-style regeneration on its own schedule, accelerant
 * windows and zone changes that re-roll the server phase.
 *
 * Author: MPTimer Team
 * Update History:
 * - 2025-02-04: Initial implementation
 */

package sim

import (
	"math/rand"
	"time"

	"github.com/VatsalSy/MPTimer/internal/timer"
	"github.com/VatsalSy/MPTimer/internal/visibility"
)

const outOfBandGuard = 250 * time.Millisecond

// Config controls the simulated session.
type Config struct {
	Seed          int64
	Period        time.Duration
	FrameInterval time.Duration
	FrameJitter   time.Duration

	MaxResource   int
	StartResource int
	NeutralRegen  int
	IceRegen      int

	IcePhase   time.Duration
	FirePhase  time.Duration
	SpendEvery time.Duration
	SpendCost  int

	// OutOfBandChance is the per-frame probability of a non-periodic gain
	// while in the fire phase.
	OutOfBandChance float64
	OutOfBandGain   int

	// LucidEvery starts a lucid window this often; zero disables it.
	LucidEvery    time.Duration
	LucidDuration time.Duration
	LucidRegen    int

	// AccelerantEvery starts an accelerant window this often; zero disables it.
	AccelerantEvery    time.Duration
	AccelerantDuration time.Duration

	// ZoneChangeEvery re-rolls the server phase this often; zero disables it.
	ZoneChangeEvery time.Duration

	Role visibility.Role
}

// DefaultConfig returns a session resembling a steady fire/ice rotation.
func DefaultConfig() Config {
	return Config{
		Seed:               1,
		Period:             3 * time.Second,
		FrameInterval:      time.Second / 60,
		FrameJitter:        2 * time.Millisecond,
		MaxResource:        10000,
		StartResource:      10000,
		NeutralRegen:       200,
		IceRegen:           3200,
		IcePhase:           6 * time.Second,
		FirePhase:          15 * time.Second,
		SpendEvery:         2500 * time.Millisecond,
		SpendCost:          1600,
		OutOfBandChance:    0.002,
		OutOfBandGain:      2500,
		LucidEvery:         60 * time.Second,
		LucidDuration:      21 * time.Second,
		LucidRegen:         550,
		AccelerantEvery:    90 * time.Second,
		AccelerantDuration: 30 * time.Second,
		Role:               visibility.SupportedRole,
	}
}

// Frame is one simulated host frame.
type Frame struct {
	Sample timer.Sample

	// ContextChanged is true when the host signals a zone change before
	// delivering this frame's sample.
	ContextChanged bool

	// TrueTick is the most recent real server tick at this frame.
	TrueTick time.Duration

	Phase timer.GaugePhase
}

// Simulator produces frames. It is not safe for concurrent use.
type Simulator struct {
	cfg Config
	rng *rand.Rand

	now       time.Duration
	value     int
	phase     timer.GaugePhase
	phaseEnd  time.Duration
	nextSpend time.Duration

	trueTick time.Duration
	nextTick time.Duration

	lucidStart    time.Duration
	nextLucidTick time.Duration

	nextZone time.Duration
}

// New creates a simulator.
func New(cfg Config) *Simulator {
	if cfg.Period <= 0 {
		cfg.Period = 3 * time.Second
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = time.Second / 60
	}
	if cfg.MaxResource <= 0 {
		cfg.MaxResource = 10000
	}

	s := &Simulator{
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(cfg.Seed)),
		value: clamp(cfg.StartResource, 0, cfg.MaxResource),
		phase: timer.PhaseUmbralIce,
	}
	s.phaseEnd = cfg.IcePhase
	s.nextTick = s.randomOffset()
	s.trueTick = s.nextTick - cfg.Period
	s.lucidStart = -1
	if cfg.ZoneChangeEvery > 0 {
		s.nextZone = cfg.ZoneChangeEvery
	}

	return s
}

// Config returns the simulator configuration.
func (s *Simulator) Config() Config {
	return s.cfg
}

func (s *Simulator) randomOffset() time.Duration {
	return s.now + time.Duration(s.rng.Int63n(int64(s.cfg.Period)))
}

// Next advances to the next frame.
func (s *Simulator) Next() Frame {
	step := s.cfg.FrameInterval
	if s.cfg.FrameJitter > 0 {
		step += time.Duration(s.rng.Int63n(int64(2*s.cfg.FrameJitter))) - s.cfg.FrameJitter
	}
	if step <= 0 {
		step = time.Millisecond
	}
	s.now += step

	contextChanged := false
	if s.cfg.ZoneChangeEvery > 0 && s.now >= s.nextZone {
		contextChanged = true
		s.nextZone += s.cfg.ZoneChangeEvery
		s.nextTick = s.randomOffset()
		s.trueTick = s.nextTick - s.cfg.Period
		s.lucidStart = -1
	}

	s.advancePhase()
	s.serverTicks()
	s.lucidTicks()
	s.spend()

	// No out-of-band gains in the last moments of fire, so the first ice
	// poll never sees one.
	if s.phase == timer.PhaseAstralFire && s.cfg.OutOfBandChance > 0 &&
		s.now+outOfBandGuard < s.phaseEnd &&
		s.rng.Float64() < s.cfg.OutOfBandChance {
		s.value = clamp(s.value+s.cfg.OutOfBandGain, 0, s.cfg.MaxResource)
	}

	return Frame{
		Sample: timer.Sample{
			Now:           s.now,
			ResourceValue: s.value,
			Status: timer.StatusFlags{
				LucidLike:       s.lucidActive(),
				RegenSuppressed: s.phase == timer.PhaseAstralFire,
				Accelerant:      s.accelerantActive(),
				RegenFavorable:  s.phase == timer.PhaseUmbralIce,
			},
			Conditions: visibility.Conditions{
				Role:        s.cfg.Role,
				InCombat:    true,
				BoundByDuty: true,
			},
		},
		ContextChanged: contextChanged,
		TrueTick:       s.trueTick,
		Phase:          s.phase,
	}
}

// Run produces frames covering the given span of host time.
func (s *Simulator) Run(span time.Duration) []Frame {
	end := s.now + span
	frames := make([]Frame, 0, int(span/s.cfg.FrameInterval)+1)
	for s.now < end {
		frames = append(frames, s.Next())
	}
	return frames
}

func (s *Simulator) advancePhase() {
	if s.cfg.IcePhase <= 0 || s.cfg.FirePhase <= 0 {
		return
	}
	for s.now >= s.phaseEnd {
		if s.phase == timer.PhaseUmbralIce {
			s.phase = timer.PhaseAstralFire
			s.phaseEnd += s.cfg.FirePhase
			s.nextSpend = s.now
		} else {
			s.phase = timer.PhaseUmbralIce
			s.phaseEnd += s.cfg.IcePhase
		}
	}
}

func (s *Simulator) serverTicks() {
	for s.nextTick <= s.now {
		switch s.phase {
		case timer.PhaseUmbralIce:
			s.value += s.cfg.IceRegen
		case timer.PhaseNeutral:
			s.value += s.cfg.NeutralRegen
		}
		s.value = clamp(s.value, 0, s.cfg.MaxResource)
		s.trueTick = s.nextTick
		s.nextTick += s.cfg.Period
	}
}

func (s *Simulator) lucidTicks() {
	if s.cfg.LucidEvery <= 0 {
		return
	}
	if s.lucidStart < 0 || s.now-s.lucidStart >= s.cfg.LucidEvery {
		if s.now >= s.cfg.LucidEvery/2 {
			s.lucidStart = s.now
			s.nextLucidTick = s.randomOffset()
		}
	}
	for s.lucidActive() && s.nextLucidTick <= s.now {
		s.value = clamp(s.value+s.cfg.LucidRegen, 0, s.cfg.MaxResource)
		s.nextLucidTick += s.cfg.Period
	}
}

func (s *Simulator) lucidActive() bool {
	return s.lucidStart >= 0 && s.now-s.lucidStart < s.cfg.LucidDuration
}

func (s *Simulator) accelerantActive() bool {
	if s.cfg.AccelerantEvery <= 0 {
		return false
	}
	return s.now%s.cfg.AccelerantEvery < s.cfg.AccelerantDuration
}

func (s *Simulator) spend() {
	if s.phase != timer.PhaseAstralFire || s.cfg.SpendEvery <= 0 {
		return
	}
	for s.nextSpend <= s.now {
		s.value = clamp(s.value-s.cfg.SpendCost, 0, s.cfg.MaxResource)
		s.nextSpend += s.cfg.SpendEvery
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
