/**
 * Journal Manager for MPTimer
 *
 * Features:
 * - Unified interface for recording and reading sessions
 * - Batched, transactional appends
 * - Session statistics
 *
 * Author: MPTimer Team
 * Update History:
 * - 2025-02-06: Journal manager
 */

package state

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Manager provides a unified interface for the journal.
type Manager struct {
	db           *DB
	sessions     *SessionStore
	observations *ObservationStore
	queries      *QueryBuilder
}

// NewManager creates a new journal manager.
func NewManager(cfg DBConfig) (*Manager, error) {
	db, err := NewDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	return &Manager{
		db:           db,
		sessions:     NewSessionStore(db),
		observations: NewObservationStore(db),
		queries:      NewQueryBuilder(db),
	}, nil
}

// Close closes the journal.
func (m *Manager) Close() error {
	return m.db.Close()
}

// DB returns the underlying database connection.
func (m *Manager) DB() *DB {
	return m.db
}

// Sessions returns the session store.
func (m *Manager) Sessions() *SessionStore {
	return m.sessions
}

// Observations returns the observation store.
func (m *Manager) Observations() *ObservationStore {
	return m.observations
}

// StartSession creates a session in the recording state.
func (m *Manager) StartSession(ctx context.Context, opts SessionOptions) (*Session, error) {
	if opts.Period <= 0 {
		return nil, fmt.Errorf("invalid session period: %s", opts.Period)
	}
	if opts.Source == "" {
		opts.Source = SourceSimulate
	}

	session := &Session{
		Label:       NewNullString(opts.Label),
		Source:      opts.Source,
		PeriodNanos: int64(opts.Period),
		Status:      SessionStatusRecording,
	}
	if opts.Seed != nil {
		session.Seed = NewNullInt64(*opts.Seed)
	}

	if err := m.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	return session, nil
}

// Record appends observations and bumps the session's sample counter
// atomically.
func (m *Manager) Record(ctx context.Context, sessionID string, obs []*Observation) error {
	if len(obs) == 0 {
		return nil
	}

	return m.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := m.observations.WithTx(tx).AppendBatch(ctx, sessionID, obs); err != nil {
			return err
		}
		return m.sessions.WithTx(tx).AddSamples(ctx, sessionID, int64(len(obs)))
	})
}

// FinishSession closes a recording session.
func (m *Manager) FinishSession(ctx context.Context, sessionID, status string) error {
	switch status {
	case SessionStatusCompleted, SessionStatusFailed:
	default:
		return fmt.Errorf("invalid final session status: %s", status)
	}
	return m.sessions.Finish(ctx, sessionID, status)
}

// GetSession retrieves a session by full id or unique id prefix.
func (m *Manager) GetSession(ctx context.Context, id string) (*Session, error) {
	id = strings.TrimSpace(id)
	if len(id) < 36 {
		return m.sessions.FindByPrefix(ctx, id)
	}
	return m.sessions.Get(ctx, id)
}

// LatestSession returns the most recently started session.
func (m *Manager) LatestSession(ctx context.Context) (*Session, error) {
	return m.sessions.Latest(ctx)
}

// ListSessions lists sessions, newest first.
func (m *Manager) ListSessions(ctx context.Context, limit, offset int) ([]*Session, error) {
	if limit <= 0 {
		limit = 20
	}
	return m.sessions.List(ctx, limit, offset)
}

// LoadObservations returns a session's observations in recording order.
func (m *Manager) LoadObservations(ctx context.Context, sessionID string) ([]*Observation, error) {
	return m.observations.ListBySession(ctx, sessionID)
}

// EachObservation streams a session's observations in recording order.
func (m *Manager) EachObservation(ctx context.Context, sessionID string, fn func(*Observation) error) error {
	return m.observations.Each(ctx, sessionID, fn)
}

// GetSessionStats aggregates a session's observations.
func (m *Manager) GetSessionStats(ctx context.Context, sessionID string) (*SessionStats, error) {
	return m.queries.GetSessionStats(ctx, sessionID)
}

// DeleteSession removes a session and its observations.
func (m *Manager) DeleteSession(ctx context.Context, id string) error {
	return m.sessions.Delete(ctx, id)
}

// HealthCheck verifies the database is reachable.
func (m *Manager) HealthCheck(ctx context.Context) error {
	return m.db.HealthCheck(ctx)
}

// Vacuum compacts the database file.
func (m *Manager) Vacuum(ctx context.Context) error {
	return m.db.Vacuum(ctx)
}

// Recorder buffers observations for one session and writes them in
// batches. It is not safe for concurrent use.
type Recorder struct {
	manager   *Manager
	sessionID string
	batchSize int
	buf       []*Observation
	seq       int64
}

// NewRecorder creates a recorder for an open session.
func (m *Manager) NewRecorder(sessionID string, batchSize int) *Recorder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Recorder{
		manager:   m,
		sessionID: sessionID,
		batchSize: batchSize,
		buf:       make([]*Observation, 0, batchSize),
	}
}

// SessionID returns the id of the session being recorded.
func (r *Recorder) SessionID() string {
	return r.sessionID
}

// NextSeq returns the sequence number for the next observation.
func (r *Recorder) NextSeq() int64 {
	return r.seq
}

// Add buffers an observation, flushing when the batch is full.
func (r *Recorder) Add(ctx context.Context, obs *Observation) error {
	obs.Seq = r.seq
	r.seq++
	r.buf = append(r.buf, obs)
	if len(r.buf) >= r.batchSize {
		return r.Flush(ctx)
	}
	return nil
}

// Flush writes buffered observations.
func (r *Recorder) Flush(ctx context.Context) error {
	if len(r.buf) == 0 {
		return nil
	}
	if err := r.manager.Record(ctx, r.sessionID, r.buf); err != nil {
		return err
	}
	r.buf = r.buf[:0]
	return nil
}

// Close flushes and finishes the session as completed, or as failed when
// the flush fails.
func (r *Recorder) Close(ctx context.Context) error {
	if err := r.Flush(ctx); err != nil {
		if finErr := r.manager.FinishSession(ctx, r.sessionID, SessionStatusFailed); finErr != nil {
			return fmt.Errorf("flush failed: %w, finish failed: %w", err, finErr)
		}
		return err
	}
	return r.manager.FinishSession(ctx, r.sessionID, SessionStatusCompleted)
}
