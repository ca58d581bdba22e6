package store

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// busyRetries bounds write retries when a concurrent connection holds the
// database lock past the driver's busy timeout.
const busyRetries = 3

// isBusyError checks if the error is a SQLITE_BUSY or "database is locked"
// error. These are SQLite concurrency errors that warrant a retry.
func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// execRetry runs a write statement, retrying on lock contention with a
// short linear backoff.
func (s *SQLiteStore) execRetry(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	var res sql.Result
	var err error
	for attempt := 0; attempt < busyRetries; attempt++ {
		res, err = s.db.ExecContext(ctx, query, args...)
		if err == nil || !isBusyError(err) {
			return res, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 50 * time.Millisecond):
		}
	}
	return res, err
}
