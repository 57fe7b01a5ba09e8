package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/batchwatch/am"
	"github.com/teranos/batchwatch/db"
	"github.com/teranos/batchwatch/errors"
)

// DbCmd represents the db (database) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the job database",
	Long: `Manage the ICM job database.

SQLite databases carry the icm_* schema as embedded migrations and are
migrated whenever batchwatch opens them; "db migrate" does it explicitly.
Postgres schemas are owned by ICM and never migrated.

Examples:
  batchwatch db migrate`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending sqlite migrations",
	Args:  cobra.NoArgs,
	RunE:  runDbMigrate,
}

func init() {
	DbCmd.AddCommand(dbMigrateCmd)
}

func runDbMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if cfg.Database.Driver != db.DriverSQLite {
		return errors.WithHint(
			errors.Newf("%s databases are not migrated by batchwatch", cfg.Database.Driver),
			"apply the ICM schema with the database's own tooling")
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	var version string
	if err := database.Get(&version, "SELECT MAX(version) FROM schema_migrations"); err != nil {
		return errors.Wrap(err, "failed to read schema version")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Database %s is at schema version %s\n", cfg.Database.DataSource(), version)
	return nil
}
