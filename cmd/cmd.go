// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// setupCommand handles database and configuration setup.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
			{
				Name:   "config",
				Usage:  "Write a config.toml template to edit",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
		},
	}
}

// authCommand handles streaming-service authentication.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authentication commands",
		Commands: []*cli.Command{
			{
				Name:   "spotify",
				Usage:  "Authenticate with Spotify using OAuth2",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SpotifyAuth,
			},
			{
				Name:   "apple",
				Usage:  "Authorize Apple Music via MusicKit",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AppleMusicAuth,
			},
		},
	}
}

// resolveCommand resolves a single track for debugging the matcher.
func resolveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "resolve",
		Usage: "Resolve one track against the search proxy and print scored candidates",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:     "title",
				Usage:    "Track title",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "artist",
				Usage: "Artist name",
			},
			&cli.IntFlag{
				Name:  "duration",
				Usage: "Track duration in seconds",
			},
			&cli.StringFlag{
				Name:  "isrc",
				Usage: "ISRC code if known",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.ResolveTrack,
	}
}

// syncCommand runs the full library sync pipeline.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Fetch the streaming library, resolve tracks, and download matches",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringSliceFlag{
				Name:    "playlist",
				Aliases: []string{"p"},
				Usage:   "Playlist ID to sync (repeatable, default all)",
			},
			&cli.BoolFlag{
				Name:  "liked",
				Usage: "Include liked tracks",
				Value: true,
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Resolve and report without downloading",
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "Base path for the sync report file",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Report format: text, csv, markdown, json",
				Value: "text",
			},
		},
		Action: r.SyncRun,
	}
}

// queueCommand lists persisted per-track outcomes.
func queueCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "outcomes",
		Usage:  "List recorded sync outcomes",
		Flags:  []cli.Flag{configFlag(), &cli.StringFlag{Name: "status", Usage: "Filter by status"}},
		Action: r.ListOutcomes,
	}
}

// tuiCommand runs a sync with the interactive queue monitor.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Run a sync with the interactive queue monitor",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringSliceFlag{
				Name:    "playlist",
				Aliases: []string{"p"},
				Usage:   "Playlist ID to sync (repeatable, default all)",
			},
			&cli.BoolFlag{
				Name:  "liked",
				Usage: "Include liked tracks",
				Value: true,
			},
		},
		Action: r.TUI,
	}
}

// statusCommand checks proxy health.
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Check search/download proxy health",
		Action: r.ProxyStatus,
	}
}
