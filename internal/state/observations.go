/**
 * Observation Operations for the MPTimer Journal
 *
 * Features:
 * - Batched inserts through a prepared named statement
 * - Ordered reads and streaming iteration for replay
 *
 * Author: MPTimer Team
 * Update History:
 * - 2025-02-06: Journal observations
 */

package state

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ObservationStore handles observation-related database operations.
type ObservationStore struct {
	db DBInterface
}

// NewObservationStore creates a new observation store.
func NewObservationStore(db *DB) *ObservationStore {
	return &ObservationStore{db: db}
}

// WithTx returns an ObservationStore that uses the given transaction.
func (s *ObservationStore) WithTx(tx *sqlx.Tx) *ObservationStore {
	return &ObservationStore{db: WrapTx(tx)}
}

// AppendBatch inserts observations for one session in a single transaction.
func (s *ObservationStore) AppendBatch(ctx context.Context, sessionID string, obs []*Observation) error {
	if len(obs) == 0 {
		return nil
	}

	return s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
      INSERT INTO observations (
        session_id, seq, now_ns, resource_value,
        lucid_like, regen_suppressed, accelerant, regen_favorable,
        role, in_combat, bound_by_duty, hostile_target,
        context_changed, true_tick_ns
      ) VALUES (
        :session_id, :seq, :now_ns, :resource_value,
        :lucid_like, :regen_suppressed, :accelerant, :regen_favorable,
        :role, :in_combat, :bound_by_duty, :hostile_target,
        :context_changed, :true_tick_ns
      )`

		stmt, err := tx.PrepareNamedContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, o := range obs {
			o.SessionID = sessionID
			result, err := stmt.ExecContext(ctx, o)
			if err != nil {
				return fmt.Errorf("failed to append observation %d: %w", o.Seq, err)
			}
			if id, err := result.LastInsertId(); err == nil {
				o.ID = id
			}
		}

		return nil
	})
}

// ListBySession returns a session's observations in recording order.
func (s *ObservationStore) ListBySession(ctx context.Context, sessionID string) ([]*Observation, error) {
	var obs []*Observation
	query := `SELECT * FROM observations WHERE session_id = $1 ORDER BY seq`

	if err := s.db.SelectContext(ctx, &obs, query, sessionID); err != nil {
		return nil, fmt.Errorf("failed to list observations: %w", err)
	}

	return obs, nil
}

// Each streams a session's observations in recording order. Iteration
// stops at the first error returned by fn.
func (s *ObservationStore) Each(ctx context.Context, sessionID string, fn func(*Observation) error) error {
	rows, err := s.db.QueryxContext(ctx, `SELECT * FROM observations WHERE session_id = $1 ORDER BY seq`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var o Observation
		if err := rows.StructScan(&o); err != nil {
			return fmt.Errorf("failed to scan observation: %w", err)
		}
		if err := fn(&o); err != nil {
			return err
		}
	}

	return rows.Err()
}

// Count returns the number of observations stored for a session.
func (s *ObservationStore) Count(ctx context.Context, sessionID string) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM observations WHERE session_id = $1`, sessionID); err != nil {
		return 0, fmt.Errorf("failed to count observations: %w", err)
	}
	return n, nil
}
