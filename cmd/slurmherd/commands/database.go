package commands

import (
	"database/sql"

	"github.com/hollandm/slurmherd/config"
	"github.com/hollandm/slurmherd/db"
	"github.com/hollandm/slurmherd/errors"
	"github.com/hollandm/slurmherd/logger"
)

// openDatabase opens and migrates the run history database. If dbPath is
// empty the configured path is used.
func openDatabase(cfg *config.Config, dbPath string) (*sql.DB, error) {
	if dbPath == "" {
		dbPath = cfg.Database.Path
	}
	if dbPath == "" {
		dbPath = "slurmherd.db"
	}

	database, err := db.Open(dbPath, logger.Logger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database at %s", dbPath)
	}

	if err := db.Migrate(database, logger.Logger); err != nil {
		database.Close()
		return nil, errors.Wrapf(err, "failed to run migrations on %s", dbPath)
	}

	return database, nil
}
