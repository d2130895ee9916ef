package state

import (
	"context"
	"fmt"
)

// QueryBuilder provides cross-row analytics over the journal.
type QueryBuilder struct {
	db DBInterface
}

// NewQueryBuilder creates a new query builder.
func NewQueryBuilder(db *DB) *QueryBuilder {
	return &QueryBuilder{db: db}
}

// GetSessionStats aggregates a session's observations.
func (q *QueryBuilder) GetSessionStats(ctx context.Context, sessionID string) (*SessionStats, error) {
	query := `
    SELECT
      $1 AS session_id,
      COUNT(*) AS observations,
      COALESCE(MIN(now_ns), 0) AS first_ns,
      COALESCE(MAX(now_ns), 0) AS last_ns,
      COALESCE(SUM(CASE WHEN context_changed THEN 1 ELSE 0 END), 0) AS context_changes,
      COALESCE(SUM(CASE WHEN lucid_like THEN 1 ELSE 0 END), 0) AS lucid_frames,
      COALESCE(SUM(CASE WHEN regen_suppressed THEN 1 ELSE 0 END), 0) AS suppressed_frames,
      COALESCE(MIN(resource_value), 0) AS min_value,
      COALESCE(MAX(resource_value), 0) AS max_value,
      CASE
        WHEN COUNT(*) > 1 THEN (MAX(now_ns) - MIN(now_ns)) / 1e6 / (COUNT(*) - 1)
        ELSE 0
      END AS mean_frame_ms
    FROM observations
    WHERE session_id = $1`

	var stats SessionStats
	if err := q.db.GetContext(ctx, &stats, query, sessionID); err != nil {
		return nil, fmt.Errorf("failed to get session stats: %w", err)
	}

	return &stats, nil
}
