// Helper Functions for the MPTimer State Package
//
// Features:
// - Null type helpers for database operations
//
// Author: MPTimer Team
// Updated: 2025-02-06

package state

import (
	"database/sql"
	"time"
)

// NewNullString creates a sql.NullString that is NULL for "".
func NewNullString(s string) sql.NullString {
	return sql.NullString{
		String: s,
		Valid:  s != "",
	}
}

// NewNullInt64 creates a valid sql.NullInt64.
func NewNullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: true}
}

func durationPtr(d time.Duration) *int64 {
	v := int64(d)
	return &v
}
