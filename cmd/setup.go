package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/tunesync/internal/shared"
	"github.com/urfave/cli/v3"
)

// loadOrCreateConfig loads the config at path, creating it from the embedded
// template when missing.
func (r *Runner) loadOrCreateConfig(path string) *shared.Config {
	if _, err := os.Stat(path); err == nil {
		config, err := shared.LoadConfig(path)
		if err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
			return shared.DefaultConfig()
		}
		return config
	}

	r.logger.Info("config file not found, creating from template", "path", path)
	if err := shared.CreateConfigFile(path); err != nil {
		r.logger.Warn("failed to create config file, using defaults", "error", err)
		return shared.DefaultConfig()
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		r.logger.Warn("failed to load created config, using defaults", "error", err)
		return shared.DefaultConfig()
	}
	return config
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	config := r.loadOrCreateConfig(cmd.String("config"))

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return nil
}

// SetupConfig writes the config template for the user to edit.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")

	if err := shared.CreateConfigFile(path); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	r.writePlain("✓ Config written to %s\n", path)
	r.writePlain("Fill in credentials.spotify.client_id and client_secret, then run: tunesync auth spotify\n")
	return nil
}
