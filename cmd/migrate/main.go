// Command migrate applies or reverts the PostgreSQL schema. SQLite databases
// create their schema on open and need no migration step.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/noah-isme/fabric-pricing/internal/db"
	"github.com/noah-isme/fabric-pricing/internal/obs"
)

func main() {
	_ = godotenv.Load()

	var (
		databaseURL = flag.String("database", os.Getenv("DATABASE_URL"), "database url; defaults to DATABASE_URL")
		steps       = flag.Int("steps", 0, "number of migrations to revert with down; 0 reverts all")
		logFormat   = flag.String("log-format", "console", "json or console")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: migrate [flags] up|down|version\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := obs.NewLogger(*logFormat, "info").With().Str("component", "migrate").Logger()
	if err := run(flag.Arg(0), *databaseURL, *steps, logger); err != nil {
		logger.Fatal().Err(err).Msg("migrate failed")
	}
}

func run(command, databaseURL string, steps int, logger zerolog.Logger) error {
	dialect, dsn, err := db.Parse(databaseURL)
	if err != nil {
		return err
	}
	if dialect != db.DialectPostgres {
		logger.Info().Str("dialect", string(dialect)).Msg("schema is created on open; nothing to migrate")
		return nil
	}

	switch strings.ToLower(strings.TrimSpace(command)) {
	case "", "up":
		return db.MigratePostgres(dsn, logger)
	case "down":
		return db.RollbackPostgres(dsn, steps, logger)
	case "version":
		version, dirty, err := db.PostgresVersion(dsn, logger)
		if err != nil {
			return err
		}
		logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("schema version")
		return nil
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}
