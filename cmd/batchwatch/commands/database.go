package commands

import (
	"github.com/jmoiron/sqlx"

	"github.com/teranos/batchwatch/am"
	"github.com/teranos/batchwatch/db"
	"github.com/teranos/batchwatch/errors"
	"github.com/teranos/batchwatch/logger"
)

// openDatabase opens the configured job database. SQLite databases are
// migrated on open; postgres schemas are managed outside batchwatch.
func openDatabase(cfg *am.Config) (*sqlx.DB, error) {
	driver, source := cfg.Database.Driver, cfg.Database.DataSource()

	database, err := db.Open(driver, source, logger.Logger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s database", driver)
	}

	if driver == db.DriverSQLite {
		if err := db.Migrate(database.DB, logger.Logger); err != nil {
			database.Close()
			return nil, errors.Wrapf(err, "failed to run migrations on %s", source)
		}
	}
	return database, nil
}

// tracksHistory reports whether the database carries pulse_executions
func tracksHistory(cfg *am.Config) bool {
	return cfg.Database.Driver == db.DriverSQLite
}
