/**
 * Data Models for the MPTimer Journal
 *
 * Features:
 * - Struct definitions matching database schema
 * - Conversion between observations and tracker samples
 *
 * Author: MPTimer Team
 * Update History:
 * - 2025-02-06: Sessions and observations
 */

package state

import (
	"database/sql"
	"time"

	"github.com/VatsalSy/MPTimer/internal/timer"
	"github.com/VatsalSy/MPTimer/internal/visibility"
)

// Session statuses
const (
	SessionStatusRecording = "recording"
	SessionStatusCompleted = "completed"
	SessionStatusFailed    = "failed"
)

// Session sources
const (
	SourceSimulate = "simulate"
	SourceImport   = "import"
)

// Session is one recorded host session.
type Session struct {
	ID          string         `db:"id" json:"id" yaml:"id"`
	Label       sql.NullString `db:"label" json:"-" yaml:"-"`
	Source      string         `db:"source" json:"source" yaml:"source"`
	Seed        sql.NullInt64  `db:"seed" json:"-" yaml:"-"`
	PeriodNanos int64          `db:"period_ns" json:"period_ns" yaml:"period_ns"`
	Status      string         `db:"status" json:"status" yaml:"status"`
	SampleCount int64          `db:"sample_count" json:"sample_count" yaml:"sample_count"`
	StartTime   time.Time      `db:"start_time" json:"start_time" yaml:"start_time"`
	EndTime     sql.NullTime   `db:"end_time" json:"-" yaml:"-"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at" yaml:"-"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at" yaml:"-"`
}

// Period returns the regeneration period the session was recorded with.
func (s *Session) Period() time.Duration {
	return time.Duration(s.PeriodNanos)
}

// IsRecording returns true while observations are still being appended.
func (s *Session) IsRecording() bool {
	return s.Status == SessionStatusRecording
}

// Duration returns the wall-clock recording duration.
func (s *Session) Duration() time.Duration {
	if s.EndTime.Valid {
		return s.EndTime.Time.Sub(s.StartTime)
	}
	return time.Since(s.StartTime)
}

// DisplayLabel returns the label, or the short id when unlabelled.
func (s *Session) DisplayLabel() string {
	if s.Label.Valid {
		return s.Label.String
	}
	if len(s.ID) > 8 {
		return s.ID[:8]
	}
	return s.ID
}

// SessionOptions describes a session about to be recorded.
type SessionOptions struct {
	Label  string
	Source string
	Seed   *int64
	Period time.Duration
}

// Observation is one raw host frame. It is also the JSON-lines record of
// exported and imported journals.
type Observation struct {
	ID              int64  `db:"id" json:"-"`
	SessionID       string `db:"session_id" json:"-"`
	Seq             int64  `db:"seq" json:"seq"`
	NowNanos        int64  `db:"now_ns" json:"now_ns"`
	ResourceValue   int    `db:"resource_value" json:"resource_value"`
	LucidLike       bool   `db:"lucid_like" json:"lucid_like,omitempty"`
	RegenSuppressed bool   `db:"regen_suppressed" json:"regen_suppressed,omitempty"`
	Accelerant      bool   `db:"accelerant" json:"accelerant,omitempty"`
	RegenFavorable  bool   `db:"regen_favorable" json:"regen_favorable,omitempty"`
	Role            int64  `db:"role" json:"role"`
	InCombat        bool   `db:"in_combat" json:"in_combat,omitempty"`
	BoundByDuty     bool   `db:"bound_by_duty" json:"bound_by_duty,omitempty"`
	HostileTarget   bool   `db:"hostile_target" json:"hostile_target,omitempty"`
	ContextChanged  bool   `db:"context_changed" json:"context_changed,omitempty"`
	TrueTickNanos   *int64 `db:"true_tick_ns" json:"true_tick_ns,omitempty"`
}

// NewObservation captures a tracker sample. trueTick is only known for
// simulated sessions; pass a negative value when it is unknown.
func NewObservation(seq int64, s timer.Sample, contextChanged bool, trueTick time.Duration) *Observation {
	obs := &Observation{
		Seq:             seq,
		NowNanos:        int64(s.Now),
		ResourceValue:   s.ResourceValue,
		LucidLike:       s.Status.LucidLike,
		RegenSuppressed: s.Status.RegenSuppressed,
		Accelerant:      s.Status.Accelerant,
		RegenFavorable:  s.Status.RegenFavorable,
		Role:            int64(s.Conditions.Role),
		InCombat:        s.Conditions.InCombat,
		BoundByDuty:     s.Conditions.BoundByDuty,
		HostileTarget:   s.Conditions.HostileTarget,
		ContextChanged:  contextChanged,
	}
	if trueTick >= 0 {
		obs.TrueTickNanos = durationPtr(trueTick)
	}
	return obs
}

// Now returns the host clock offset of the observation.
func (o *Observation) Now() time.Duration {
	return time.Duration(o.NowNanos)
}

// TrueTick returns the recorded real tick, if known.
func (o *Observation) TrueTick() (time.Duration, bool) {
	if o.TrueTickNanos == nil {
		return 0, false
	}
	return time.Duration(*o.TrueTickNanos), true
}

// Sample converts the observation back into a tracker sample.
func (o *Observation) Sample() timer.Sample {
	return timer.Sample{
		Now:           o.Now(),
		ResourceValue: o.ResourceValue,
		Status: timer.StatusFlags{
			LucidLike:       o.LucidLike,
			RegenSuppressed: o.RegenSuppressed,
			Accelerant:      o.Accelerant,
			RegenFavorable:  o.RegenFavorable,
		},
		Conditions: visibility.Conditions{
			Role:          visibility.Role(o.Role),
			InCombat:      o.InCombat,
			BoundByDuty:   o.BoundByDuty,
			HostileTarget: o.HostileTarget,
		},
	}
}

// SessionStats summarizes a session's observations.
type SessionStats struct {
	SessionID        string  `db:"session_id" json:"session_id" yaml:"session_id"`
	Observations     int64   `db:"observations" json:"observations" yaml:"observations"`
	FirstNanos       int64   `db:"first_ns" json:"first_ns" yaml:"first_ns"`
	LastNanos        int64   `db:"last_ns" json:"last_ns" yaml:"last_ns"`
	ContextChanges   int64   `db:"context_changes" json:"context_changes" yaml:"context_changes"`
	LucidFrames      int64   `db:"lucid_frames" json:"lucid_frames" yaml:"lucid_frames"`
	SuppressedFrames int64   `db:"suppressed_frames" json:"suppressed_frames" yaml:"suppressed_frames"`
	MinValue         int64   `db:"min_value" json:"min_value" yaml:"min_value"`
	MaxValue         int64   `db:"max_value" json:"max_value" yaml:"max_value"`
	MeanFrameMillis  float64 `db:"mean_frame_ms" json:"mean_frame_ms" yaml:"mean_frame_ms"`
}

// Span returns the host time covered by the session.
func (s *SessionStats) Span() time.Duration {
	return time.Duration(s.LastNanos - s.FirstNanos)
}
