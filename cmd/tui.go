package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tunesync/internal/shared"
	"github.com/desertthunder/tunesync/internal/tasks"
	"github.com/desertthunder/tunesync/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI runs a sync with the interactive queue monitor.
//
// The engine runs in the background while the monitor renders queue
// snapshots; pause, resume, and cancel act on the selected download.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/tunesync-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	p, err := r.buildPipeline(cmd.String("config"))
	if err != nil {
		return err
	}
	defer p.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.manager.Start(runCtx)
	defer p.manager.Shutdown()

	go func() {
		_, runErr := p.engine.Run(runCtx, nil, tasks.SyncOptions{
			IncludeLiked: cmd.Bool("liked"),
			PlaylistIDs:  cmd.StringSlice("playlist"),
		})
		if runErr != nil {
			fileLogger.Error("sync run failed", "error", runErr)
		}
	}()

	model := ui.NewModel(p.manager)
	program := tea.NewProgram(model)

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
