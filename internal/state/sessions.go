/**
 * Session Operations for the MPTimer Journal
 *
 * Features:
 * - Create, read, finish and delete recorded sessions
 * - Sample counters maintained with each batch
 *
 * Author: MPTimer Team
 * Update History:
 * - 2025-02-06: Journal sessions
 */

package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ErrSessionNotFound is returned when a session id matches no row.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore handles session-related database operations.
type SessionStore struct {
	db DBInterface
}

// NewSessionStore creates a new session store.
func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

// WithTx returns a SessionStore that uses the given transaction.
func (s *SessionStore) WithTx(tx *sqlx.Tx) *SessionStore {
	return &SessionStore{db: WrapTx(tx)}
}

// Create inserts a session, assigning an id and timestamps when unset.
func (s *SessionStore) Create(ctx context.Context, session *Session) error {
	now := time.Now().UTC()
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.Status == "" {
		session.Status = SessionStatusRecording
	}
	if session.StartTime.IsZero() {
		session.StartTime = now
	}
	session.CreatedAt = now
	session.UpdatedAt = now

	query := `
    INSERT INTO sessions (
      id, label, source, seed, period_ns, status,
      sample_count, start_time, end_time, created_at, updated_at
    ) VALUES (
      :id, :label, :source, :seed, :period_ns, :status,
      :sample_count, :start_time, :end_time, :created_at, :updated_at
    )`

	if _, err := s.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// Get retrieves a session by id.
func (s *SessionStore) Get(ctx context.Context, id string) (*Session, error) {
	var session Session
	query := `SELECT * FROM sessions WHERE id = $1`

	err := s.db.GetContext(ctx, &session, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &session, nil
}

// FindByPrefix resolves an id prefix to a single session.
func (s *SessionStore) FindByPrefix(ctx context.Context, prefix string) (*Session, error) {
	var sessions []*Session
	query := `SELECT * FROM sessions WHERE id LIKE $1 || '%' ORDER BY start_time DESC LIMIT 2`

	if err := s.db.SelectContext(ctx, &sessions, query, prefix); err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	switch len(sessions) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, prefix)
	case 1:
		return sessions[0], nil
	default:
		return nil, fmt.Errorf("session id prefix %q is ambiguous", prefix)
	}
}

// Latest returns the most recently started session.
func (s *SessionStore) Latest(ctx context.Context) (*Session, error) {
	var session Session
	query := `SELECT * FROM sessions ORDER BY start_time DESC LIMIT 1`

	err := s.db.GetContext(ctx, &session, query)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get latest session: %w", err)
	}

	return &session, nil
}

// List retrieves sessions with pagination, newest first.
func (s *SessionStore) List(ctx context.Context, limit, offset int) ([]*Session, error) {
	var sessions []*Session
	query := `SELECT * FROM sessions ORDER BY start_time DESC LIMIT $1 OFFSET $2`

	if err := s.db.SelectContext(ctx, &sessions, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	return sessions, nil
}

// AddSamples increments the session's sample counter.
func (s *SessionStore) AddSamples(ctx context.Context, id string, n int64) error {
	query := `UPDATE sessions SET sample_count = sample_count + $1, updated_at = $2 WHERE id = $3`

	result, err := s.db.ExecContext(ctx, query, n, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update sample count: %w", err)
	}

	return requireRow(result, id)
}

// Finish closes a recording session with a final status.
func (s *SessionStore) Finish(ctx context.Context, id, status string) error {
	query := `
    UPDATE sessions
    SET status = $1, end_time = $2, updated_at = $2
    WHERE id = $3 AND status = $4`

	result, err := s.db.ExecContext(ctx, query, status, time.Now().UTC(), id, SessionStatusRecording)
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w or not recording: %s", ErrSessionNotFound, id)
	}

	return nil
}

// Delete deletes a session and its observations.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return requireRow(result, id)
}

func requireRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}
