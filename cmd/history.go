package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/plexsync/internal/formatter"
	"github.com/desertthunder/plexsync/internal/models"
	"github.com/desertthunder/plexsync/internal/shared"
	"github.com/desertthunder/plexsync/internal/ui"
)

// HistoryRuns lists recorded sync runs, newest first.
func (r *Runner) HistoryRuns(ctx context.Context, cmd *cli.Command) error {
	h, err := r.openHistory()
	if err != nil {
		return err
	}

	criteria := map[string]any{"limit": int(cmd.Int("limit"))}
	if status := cmd.String("status"); status != "" {
		criteria["status"] = status
	}

	runs, err := h.runs.List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("csv") {
		data, err := formatter.ExportRunsToCSV(runs)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	}

	if len(runs) == 0 {
		return r.writePlain("No sync runs recorded in %s\n", r.config.Database.Path)
	}

	r.writePlainHeader(fmt.Sprintf("Sync runs (%d)", len(runs)))
	for _, run := range runs {
		c := run.Counts()
		status := string(run.Status())
		switch run.Status() {
		case models.RunCompleted:
			status = ui.Success(status)
		case models.RunFailed:
			status = ui.Failure(status)
		default:
			status = ui.Warning(status)
		}

		r.writePlain("#%-4d %s  %s  %s\n",
			run.Sequence(),
			run.CreatedAt().Local().Format(time.DateTime),
			status,
			ui.Muted(run.Duration().Round(time.Second).String()),
		)
		r.writePlain("      %d playlists (%d created, %d updated, %d skipped, %d failed), %d matched, %d unresolved\n",
			c.Playlists, c.Created, c.Updated, c.Skipped, c.Failed, c.Matched, c.Unresolved)
		if run.Error() != "" {
			r.writePlain("      %s\n", ui.Failure(run.Error()))
		}
	}
	return nil
}

// HistoryUnresolved exports the unresolved tracks of one run.
func (r *Runner) HistoryUnresolved(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	h, err := r.openHistory()
	if err != nil {
		return err
	}

	var run *models.SyncRun
	if seq := int(cmd.Int("run")); seq > 0 {
		run, err = h.runs.GetBySequence(seq)
	} else {
		run, err = h.runs.Latest()
	}
	if errors.Is(err, shared.ErrRunNotFound) {
		return fmt.Errorf("%w: run a sync first or pass an existing --run", err)
	}
	if err != nil {
		return err
	}

	tracks, err := h.unresolved.ListByRun(ctx, run.ID())
	if err != nil {
		return err
	}
	export := &formatter.UnresolvedExport{Run: run, Tracks: tracks}

	if path := cmd.String("output"); path != "" {
		written, err := formatter.WriteExport(export, format, path)
		if err != nil {
			return err
		}
		r.logger.Info("exported unresolved tracks", "run", run.Sequence(), "count", len(tracks), "path", written)
		return nil
	}

	data, err := formatter.Export(export, format)
	if err != nil {
		return err
	}
	return r.writePlain("%s", data)
}
