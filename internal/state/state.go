/**
 * State Package - Main entry point
 *
 * Features:
 * - Package documentation
 * - Journal interface
 * - Formatting helpers for session listings
 *
 * Author: MPTimer Team
 * Update History:
 * - 2025-02-06: Observation journal
 */

// Package state provides the SQLite journal of recorded host sessions.
// A session is a sequence of raw observations that can be replayed through
// a fresh tracker. The estimator's running state is never persisted.
package state

import (
	"context"
	"fmt"
	"time"
)

// DefaultDatabasePath is the default location for the SQLite database.
const DefaultDatabasePath = "mptimer.db"

// DefaultBatchSize is how many observations are buffered before a write.
const DefaultBatchSize = 500

// Journal provides the main interface for session recording and replay.
type Journal interface {
	// Recording
	StartSession(ctx context.Context, opts SessionOptions) (*Session, error)
	Record(ctx context.Context, sessionID string, obs []*Observation) error
	FinishSession(ctx context.Context, sessionID, status string) error

	// Reading
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context, limit, offset int) ([]*Session, error)
	LoadObservations(ctx context.Context, sessionID string) ([]*Observation, error)
	GetSessionStats(ctx context.Context, sessionID string) (*SessionStats, error)

	// Maintenance
	DeleteSession(ctx context.Context, id string) error
	Close() error
	HealthCheck(ctx context.Context) error
	Vacuum(ctx context.Context) error
}

// Ensure Manager implements Journal interface.
var _ Journal = (*Manager)(nil)

// New creates a new journal with default configuration.
func New(databasePath string) (Journal, error) {
	cfg := DefaultConfig()
	cfg.Path = databasePath
	return NewManager(cfg)
}

// FormatHostTime formats a host clock offset as seconds with millisecond
// precision.
func FormatHostTime(d time.Duration) string {
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// FormatDuration formats a duration into human readable format.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		secs := int(d.Seconds())
		if secs == 1 {
			return "1 second"
		}
		return fmt.Sprintf("%d seconds", secs)
	}

	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	minUnit := "minutes"
	if mins == 1 {
		minUnit = "minute"
	}
	if secs == 0 {
		return fmt.Sprintf("%d %s", mins, minUnit)
	}
	secUnit := "seconds"
	if secs == 1 {
		secUnit = "second"
	}
	return fmt.Sprintf("%d %s %d %s", mins, minUnit, secs, secUnit)
}
