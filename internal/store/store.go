package store

import (
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	sqlx.QueryerContext
	Rebind(query string) string
}

const postgresDriver = "postgres"

// forUpdate returns the row lock suffix for drivers that have one. SQLite
// serializes writers through immediate transactions instead.
func forUpdate(db *sqlx.DB) string {
	if db.DriverName() == postgresDriver {
		return " FOR UPDATE"
	}
	return ""
}

// IsConflict reports whether err came from lock contention or a serialization
// failure, in which case the whole transaction can be retried.
func IsConflict(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01", "55P03":
			return true
		}
		return false
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}
	return false
}
