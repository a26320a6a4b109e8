// Package main provides a CLI tool for the feedback and comparison log schema.
//
// Usage:
//
//	migrate [-path DIR] up|down|status
//	migrate [-path DIR] steps N
//	migrate [-path DIR] force VERSION
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/helixir/feedback-dedup-service/internal/config"
	"github.com/helixir/feedback-dedup-service/internal/database"
	"github.com/helixir/feedback-dedup-service/internal/observability"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// command is a parsed CLI invocation.
type command struct {
	action string
	arg    int
}

func parseCommand(args []string) (command, error) {
	if len(args) == 0 {
		return command{}, fmt.Errorf("no action specified: want one of up, down, status, steps N, force VERSION")
	}

	cmd := command{action: args[0]}
	switch cmd.action {
	case "up", "down", "status":
		if len(args) != 1 {
			return command{}, fmt.Errorf("%s takes no arguments", cmd.action)
		}
	case "steps", "force":
		if len(args) != 2 {
			return command{}, fmt.Errorf("%s requires exactly one integer argument", cmd.action)
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return command{}, fmt.Errorf("%s argument %q is not an integer", cmd.action, args[1])
		}
		if cmd.action == "steps" && n == 0 {
			return command{}, fmt.Errorf("steps must be non-zero")
		}
		if cmd.action == "force" && n < 0 {
			return command{}, fmt.Errorf("force version must not be negative")
		}
		cmd.arg = n
	default:
		return command{}, fmt.Errorf("unknown action %q", cmd.action)
	}
	return cmd, nil
}

func run(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	migrationsPath := fs.String("path", "", "Override the migrations directory path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd, err := parseCommand(fs.Args())
	if err != nil {
		return err
	}

	// Load configuration (database settings from env/config file).
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logCfg := observability.DefaultLoggingConfig()
	logCfg.Format = "console"
	logCfg.Output = "stderr"
	logger := observability.NewLogger(logCfg)
	logger = logger.With().Str("component", "migrate").Logger()

	migrationDir := cfg.Database.MigrationPath
	if *migrationsPath != "" {
		migrationDir = *migrationsPath
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	migrator, err := database.NewMigrator(db, migrationDir, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	switch cmd.action {
	case "up":
		err = migrator.Up()
	case "down":
		logger.Warn().Msg("rolling back all migrations")
		err = migrator.Down()
	case "steps":
		err = migrator.Steps(cmd.arg)
	case "force":
		logger.Warn().Int("version", cmd.arg).Msg("forcing migration version")
		err = migrator.Force(cmd.arg)
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", cmd.action, err)
	}

	status, err := migrator.Status()
	if err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(status)
}
