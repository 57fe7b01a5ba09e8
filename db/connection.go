package db

import (
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/teranos/batchwatch/errors"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// SQLiteBusyTimeoutMS is how long SQLite waits on a locked database.
const SQLiteBusyTimeoutMS = 5000

// Open opens the job database. SQLite databases get WAL mode, foreign keys
// and a busy timeout; postgres connections are pinged so a bad DSN fails
// here rather than on the first query.
// If logger is provided, logs database operations; otherwise operates silently.
func Open(driver, dsn string, logger *zap.SugaredLogger) (*sqlx.DB, error) {
	switch driver {
	case DriverSQLite:
		return openSQLite(dsn, logger)
	case DriverPostgres:
		return openPostgres(dsn, logger)
	}
	return nil, errors.WithHint(
		errors.Newf("unsupported database driver %q", driver),
		"use sqlite3 or postgres")
}

func openSQLite(path string, logger *zap.SugaredLogger) (*sqlx.DB, error) {
	if logger != nil {
		logger.Debugw("Opening database", "driver", DriverSQLite, "path", path)
	}
	db, err := sqlx.Open(DriverSQLite, path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	// Enable WAL mode for concurrent reads during writes
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to enable WAL mode")
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to enable foreign keys")
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to set busy timeout")
	}

	if logger != nil {
		logger.Infow("Database opened successfully",
			"driver", DriverSQLite,
			"path", path,
			"wal_mode", true,
			"foreign_keys", true,
		)
	}
	return db, nil
}

func openPostgres(dsn string, logger *zap.SugaredLogger) (*sqlx.DB, error) {
	db, err := sqlx.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.WithHint(
			errors.Wrap(err, "failed to connect to database"),
			"check database.dsn in am.toml or BATCHWATCH_DATABASE_DSN")
	}

	if logger != nil {
		logger.Infow("Database opened successfully",
			"driver", DriverPostgres,
			"host", hostOf(dsn),
		)
	}
	return db, nil
}

// hostOf extracts the host of a postgres DSN for logging without the
// credentials.
func hostOf(dsn string) string {
	if i := strings.LastIndex(dsn, "@"); i >= 0 {
		rest := dsn[i+1:]
		if j := strings.IndexAny(rest, "/?"); j >= 0 {
			rest = rest[:j]
		}
		return rest
	}
	for _, kv := range strings.Fields(dsn) {
		if v, ok := strings.CutPrefix(kv, "host="); ok {
			return v
		}
	}
	return ""
}

// OpenWithMigrations opens a SQLite database and applies pending migrations.
func OpenWithMigrations(path string, logger *zap.SugaredLogger) (*sqlx.DB, error) {
	db, err := Open(DriverSQLite, path, logger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database at %s", path)
	}
	if err := Migrate(db.DB, logger); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to migrate database at %s", path)
	}
	return db, nil
}
