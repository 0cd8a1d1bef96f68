package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/plexsync/internal/shared"
	"github.com/desertthunder/plexsync/internal/tasks"
	"github.com/desertthunder/plexsync/internal/ui"
)

// HistoryUI launches the interactive sync history browser.
//
// Runs can be started from the browser when the sync configuration is complete.
func (r *Runner) HistoryUI(ctx context.Context, cmd *cli.Command) error {
	h, err := r.openHistory()
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/plexsync-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	fileLogger.SetLevel(r.logger.GetLevel())
	r.SetLogger(fileLogger)

	var sync ui.SyncFunc
	if r.canSync() {
		sync = func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.SyncResult, error) {
			result, _, err := r.runSync(ctx, progress)
			return result, err
		}
	} else {
		r.logger.Info("sync disabled in the browser, configuration incomplete")
	}

	model := ui.NewModel(ctx, h, sync)
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

// canSync reports whether a run could start with the current services and configuration.
func (r *Runner) canSync() bool {
	if r.catalog != nil && r.library != nil {
		return len(r.config.Sync.URIs) > 0
	}
	return shared.ValidateSyncConfig(r.config) == nil
}
