package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/tunesync/internal/formatter"
	"github.com/desertthunder/tunesync/internal/match"
	"github.com/desertthunder/tunesync/internal/queue"
	"github.com/desertthunder/tunesync/internal/repositories"
	"github.com/desertthunder/tunesync/internal/resolve"
	"github.com/desertthunder/tunesync/internal/services"
	"github.com/desertthunder/tunesync/internal/shared"
	"github.com/desertthunder/tunesync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// pipeline bundles the collaborators one sync run needs.
type pipeline struct {
	config   *shared.Config
	db       *sql.DB
	manager  *queue.Manager
	engine   *tasks.Engine
	outcomes *repositories.OutcomeRepository
}

func (p *pipeline) Close() {
	if p.db != nil {
		p.db.Close()
	}
}

// buildPipeline wires the matcher, resolver, queue, repositories, and sync
// engine from the config file.
func (r *Runner) buildPipeline(configPath string) (*pipeline, error) {
	config := r.loadOrCreateConfig(configPath)

	var library services.Library
	switch config.General.Service {
	case "apple_music":
		apple, err := services.NewAppleMusicService(config.Credentials.AppleMusic.Map())
		if err != nil {
			return nil, fmt.Errorf("%w: run 'tunesync auth apple' first", shared.ErrNotAuthenticated)
		}
		library = apple
	default:
		spotify := r.spotify
		if spotify == nil {
			svc, err := services.NewSpotifyService(config.Credentials.Spotify.Map())
			if err != nil {
				return nil, fmt.Errorf("%w: run 'tunesync auth spotify' first", shared.ErrNotAuthenticated)
			}
			spotify = svc
		}
		library = spotify
	}

	youtube := r.youtube
	if youtube == nil {
		youtube = services.NewYouTubeService(config.Credentials.YouTube.ProxyURL)
	}

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	backpressure := queue.BackpressureReject
	if config.Queue.Backpressure == string(queue.BackpressureBlock) {
		backpressure = queue.BackpressureBlock
	}

	manager := queue.NewManager(youtube, queue.Options{
		Workers:      config.Queue.Workers,
		Capacity:     config.Queue.Capacity,
		Backpressure: backpressure,
		MaxRetries:   config.Queue.MaxRetries,
		Logger:       r.logger,
	})

	matcher := match.New(config.Matcher)
	resolver := resolve.New(youtube, matcher, config.Resolver)

	trackRepo := repositories.NewTrackRepository(db)
	outcomeRepo := repositories.NewOutcomeRepository(db)

	engine := tasks.NewEngine(library, resolver, manager, outcomeRepo, tasks.EngineOpts{
		Cache:        trackRepo,
		Logger:       r.logger,
		SaveLocation: config.General.SaveLocation,
		Quality:      config.General.Quality,
		Duplicates:   shared.DuplicateStrategy(config.General.DuplicateHandling),
	})

	return &pipeline{
		config:   config,
		db:       db,
		manager:  manager,
		engine:   engine,
		outcomes: outcomeRepo,
	}, nil
}

// SyncRun executes the full sync pipeline and prints a summary.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	dryRun := cmd.Bool("dry-run")

	p, err := r.buildPipeline(cmd.String("config"))
	if err != nil {
		return err
	}
	defer p.Close()

	if !dryRun {
		p.manager.Start(ctx)
		defer p.manager.Shutdown()
	}

	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.writePlain("%s\n", update.Message)
		}
	}()

	result, runErr := p.engine.Run(ctx, progress, tasks.SyncOptions{
		IncludeLiked: cmd.Bool("liked"),
		PlaylistIDs:  cmd.StringSlice("playlist"),
		DryRun:       dryRun,
	})
	close(progress)
	<-done

	if runErr != nil {
		return runErr
	}

	if !dryRun && result.Queued > 0 {
		r.writePlain("\nWaiting for %d downloads...\n", result.Queued)
		if err := p.manager.Drain(ctx); err != nil {
			return fmt.Errorf("interrupted while draining queue: %w", err)
		}
		r.writePlain("%s", formatter.QueueTable(p.manager.List()))
	}

	r.writePlain("%s", formatter.ReportToText(result))

	if base := cmd.String("report"); base != "" {
		path, err := formatter.WriteReport(result, base, cmd.String("format"))
		if err != nil {
			return err
		}
		r.writePlain("\nReport written to %s\n", path)
	}

	return nil
}

// ListOutcomes prints recorded sync outcomes, optionally filtered by status.
func (r *Runner) ListOutcomes(ctx context.Context, cmd *cli.Command) error {
	config := r.loadOrCreateConfig(cmd.String("config"))

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	criteria := map[string]any{}
	if status := cmd.String("status"); status != "" {
		criteria["status"] = status
	}

	outcomes, err := repositories.NewOutcomeRepository(db).List(criteria)
	if err != nil {
		return err
	}

	if len(outcomes) == 0 {
		return r.writePlain("No outcomes recorded.\n")
	}

	r.writePlain("Found %d outcomes:\n\n", len(outcomes))
	for i, o := range outcomes {
		r.writePlain("%d. [%s] %s - %s", i+1, o.Status, o.Artist, o.Title)
		if o.Confidence > 0 {
			r.writePlain(" (%.0f%%)", o.Confidence*100)
		}
		if o.Detail != "" {
			r.writePlain("\n   %s", o.Detail)
		}
		r.writePlain("\n")
	}

	return nil
}
