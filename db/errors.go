package db

import (
	"database/sql"
	"strings"

	"github.com/teranos/batchwatch/errors"
)

// ErrDatabaseClosed marks reads attempted after the job database was closed,
// as happens when the daemon stops during a scheduled run.
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed reports whether err comes from a closed database or
// connection. database/sql returns a plain error for a closed *sql.DB, so
// its message is matched as well.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.IsAny(err, ErrDatabaseClosed, sql.ErrConnDone) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}
