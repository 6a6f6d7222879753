// Package main is the schema migration CLI. Without -path it applies the
// migrations compiled into the binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/amora/dating-service/internal/config"
	"github.com/amora/dating-service/internal/database"
	"github.com/amora/dating-service/internal/observability"
	"github.com/amora/dating-service/migrations"
)

// action is one migration command chosen on the command line.
type action struct {
	name string
	run  func(m *database.Migrator) error
}

var errNoAction = errors.New("no action specified")

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	up := flag.Bool("up", false, "Apply all pending migrations")
	down := flag.Bool("down", false, "Roll back every migration")
	steps := flag.Int("steps", 0, "Apply N steps (negative rolls back)")
	version := flag.Bool("version", false, "Print the current schema version")
	force := flag.Int("force", -1, "Mark version V as applied without running it (recovers a dirty schema)")
	path := flag.String("path", "", "Read migrations from this directory instead of the embedded set")
	flag.Parse()

	act, err := chooseAction(*up, *down, *steps, *version, *force)
	if err != nil {
		if errors.Is(err, errNoAction) {
			flag.Usage()
			fmt.Fprintln(os.Stderr, "\nPlease specify one of: -up, -down, -steps N, -version, -force V")
		}
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(config.LoggingConfig{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}).With().Str("component", "migrate").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	var migrator *database.Migrator
	if *path != "" {
		logger.Info().Str("path", *path).Msg("reading migrations from directory")
		migrator, err = database.NewMigrator(db, *path, logger)
	} else {
		migrator, err = database.NewMigratorFS(db, migrations.FS, logger)
	}
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	if err := act.run(migrator); err != nil {
		return fmt.Errorf("%s: %w", act.name, err)
	}
	printVersion(migrator, logger)
	return nil
}

// chooseAction maps the flags to exactly one action.
func chooseAction(up, down bool, steps int, version bool, force int) (action, error) {
	var chosen []action
	if up {
		chosen = append(chosen, action{name: "migrate up", run: func(m *database.Migrator) error {
			return m.Up()
		}})
	}
	if down {
		chosen = append(chosen, action{name: "migrate down", run: func(m *database.Migrator) error {
			return m.Down()
		}})
	}
	if steps != 0 {
		chosen = append(chosen, action{name: "migrate steps", run: func(m *database.Migrator) error {
			return m.Steps(steps)
		}})
	}
	if version {
		chosen = append(chosen, action{name: "version", run: func(*database.Migrator) error {
			return nil
		}})
	}
	if force >= 0 {
		chosen = append(chosen, action{name: "force version", run: func(m *database.Migrator) error {
			return m.Force(force)
		}})
	}

	switch len(chosen) {
	case 0:
		return action{}, errNoAction
	case 1:
		return chosen[0], nil
	default:
		return action{}, fmt.Errorf("specify only one action at a time")
	}
}

func printVersion(migrator *database.Migrator, logger zerolog.Logger) {
	v, dirty, err := migrator.Version()
	if err != nil {
		logger.Warn().Err(err).Msg("could not determine migration version")
		return
	}
	logger.Info().
		Uint("version", v).
		Bool("dirty", dirty).
		Msg("current migration version")
}
