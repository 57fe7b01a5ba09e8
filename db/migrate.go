package db

import (
	"database/sql"
	"embed"
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/batchwatch/errors"
)

//go:embed sqlite/migrations/*.sql
var migrations embed.FS

const migrationsDir = "sqlite/migrations"

// migration is one embedded schema file, named <version>_<description>.sql.
type migration struct {
	version string
	file    string
}

func embeddedMigrations() ([]migration, error) {
	entries, err := migrations.ReadDir(migrationsDir)
	if err != nil {
		return nil, errors.Wrap(err, "read migrations")
	}

	var out []migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		version, _, _ := strings.Cut(e.Name(), "_")
		out = append(out, migration{version: version, file: e.Name()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].file < out[j].file })
	return out, nil
}

// appliedVersions returns the recorded versions. A missing schema_migrations
// table means a fresh database and yields an empty set.
func appliedVersions(db *sql.DB) (map[string]bool, error) {
	var n int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_migrations'").Scan(&n)
	if err != nil {
		return nil, errors.Wrap(err, "inspect schema")
	}
	applied := make(map[string]bool)
	if n == 0 {
		return applied, nil
	}

	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, errors.Wrap(err, "read schema_migrations")
	}
	defer rows.Close()
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Wrap(err, "scan schema_migrations")
		}
		applied[v] = true
	}
	return applied, errors.Wrap(rows.Err(), "read schema_migrations")
}

// Migrate applies the embedded SQLite migrations that have not run yet.
// Each migration runs in its own transaction together with its
// schema_migrations record. Postgres databases are managed outside
// batchwatch and are not migrated.
// If logger is provided, logs migration progress; otherwise operates silently.
func Migrate(db *sql.DB, logger *zap.SugaredLogger) error {
	all, err := embeddedMigrations()
	if err != nil {
		return err
	}
	applied, err := appliedVersions(db)
	if err != nil {
		return err
	}

	pending := 0
	for _, m := range all {
		if applied[m.version] {
			continue
		}
		if len(applied) == 0 && pending == 0 && m.version != "000" {
			return errors.Newf("schema_migrations table missing, but first migration is %s", m.file)
		}
		if err := apply(db, m, logger); err != nil {
			return err
		}
		pending++
	}

	if logger != nil {
		logger.Infow("Migrations complete",
			"applied", pending,
			"total_migrations", len(all),
		)
	}
	return nil
}

func apply(db *sql.DB, m migration, logger *zap.SugaredLogger) error {
	body, err := migrations.ReadFile(path.Join(migrationsDir, m.file))
	if err != nil {
		return errors.Wrapf(err, "read %s", m.file)
	}
	if logger != nil {
		logger.Infow("Applying migration", "migration", m.file, "version", m.version)
	}

	tx, err := db.Begin()
	if err != nil {
		return errors.Wrapf(err, "begin tx for %s", m.file)
	}
	if _, err := tx.Exec(string(body)); err != nil {
		tx.Rollback()
		return errors.Wrapf(err, "execute %s", m.file)
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
		tx.Rollback()
		return errors.Wrapf(err, "record %s", m.file)
	}
	return errors.Wrapf(tx.Commit(), "commit %s", m.file)
}
