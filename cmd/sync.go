package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/plexsync/internal/models"
	"github.com/desertthunder/plexsync/internal/repositories"
	"github.com/desertthunder/plexsync/internal/server"
	"github.com/desertthunder/plexsync/internal/shared"
	"github.com/desertthunder/plexsync/internal/tasks"
	"github.com/desertthunder/plexsync/internal/ui"
)

// runSummary is the JSON form of a finished run.
type runSummary struct {
	Run        int              `json:"run,omitempty"`
	Duration   string           `json:"duration"`
	Counts     models.RunCounts `json:"counts"`
	Playlists  []playlistJSON   `json:"playlists"`
	SourceErrs []string         `json:"source_errors,omitempty"`
	Ignored    []string         `json:"ignored,omitempty"`
}

type playlistJSON struct {
	Name         string `json:"name"`
	Action       string `json:"action"`
	Total        int    `json:"total"`
	Matched      int    `json:"matched"`
	Unresolved   int    `json:"unresolved"`
	SearchFailed int    `json:"search_failed"`
	Error        string `json:"error,omitempty"`
}

// runSync performs one complete run: it records the run in the history database,
// mirrors every configured source and stores the final counts.
//
// History is best effort. A database that cannot be opened is logged and the run proceeds.
func (r *Runner) runSync(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.SyncResult, *models.SyncRun, error) {
	refs := models.ParseSourceURIList(r.config.Sync.URIs)
	if len(refs) == 0 {
		return nil, nil, shared.ErrNoSources
	}

	catalog, err := r.catalogService(ctx)
	if err != nil {
		return nil, nil, err
	}
	library, err := r.libraryService()
	if err != nil {
		return nil, nil, err
	}

	var sinks tasks.MultiSink
	if path := r.config.Sync.MissingTracksPath; path != "" {
		sinks = append(sinks, repositories.NewUnresolvedFileSink(path))
	}

	h, run := r.beginRun(refs)
	if run != nil {
		sinks = append(sinks, h.unresolved.SinkForRun(run.ID()))
	}

	result := r.engine(catalog, library, sinks).Run(ctx, refs, progress)

	if run != nil {
		run.Finish(result.Counts(), result.Errors())
		if err := h.runs.Update(run); err != nil {
			r.logger.Warn("failed to record sync run", "run", run.Sequence(), "error", err)
		}
	}
	return result, run, nil
}

func (r *Runner) beginRun(refs []models.SourceURIRef) (*history, *models.SyncRun) {
	h, err := r.openHistory()
	if err != nil {
		r.logger.Warn("sync history disabled", "error", err)
		return nil, nil
	}

	sources := make([]string, len(refs))
	for i, ref := range refs {
		sources[i] = ref.Raw
	}

	run := models.NewSyncRun(0, sources)
	if err := h.runs.Create(run); err != nil {
		r.logger.Warn("sync history disabled", "error", err)
		return nil, nil
	}
	r.logger.Debug("recording sync run", "run", run.Sequence(), "id", run.ID())
	return h, run
}

// Sync runs a single sync and prints the outcome.
//
// Failed playlists are reported but do not fail the command; only an interrupted run does.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	verbose := cmd.Bool("verbose")
	asJSON := cmd.Bool("json")

	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			switch {
			case asJSON:
				r.logger.Debug(update.Message, "phase", update.Phase)
			case verbose || update.Phase == tasks.PlaylistDone:
				r.writePlain("%s\n", update.Message)
			}
		}
	}()

	result, run, err := r.runSync(ctx, progress)
	close(progress)
	<-done

	if err != nil {
		return err
	}

	if asJSON {
		if err := r.writeJSON(summarize(result, run), cmd.Bool("pretty")); err != nil {
			return err
		}
	} else {
		r.printResult(result, run)
	}
	return result.Err
}

func summarize(result *tasks.SyncResult, run *models.SyncRun) runSummary {
	s := runSummary{
		Duration: result.Duration().Round(time.Millisecond).String(),
		Counts:   result.Counts(),
	}
	if run != nil {
		s.Run = run.Sequence()
	}
	for _, p := range result.Playlists {
		pj := playlistJSON{
			Name:         p.Name,
			Action:       p.Action.String(),
			Total:        p.Total,
			Matched:      p.Matched,
			Unresolved:   p.Unresolved,
			SearchFailed: p.SearchFailed,
		}
		if p.Err != nil {
			pj.Error = p.Err.Error()
		}
		s.Playlists = append(s.Playlists, pj)
	}
	for _, e := range result.SourceErrors {
		s.SourceErrs = append(s.SourceErrs, e.Error())
	}
	for _, ref := range result.Ignored {
		s.Ignored = append(s.Ignored, ref.Raw)
	}
	return s
}

func (r *Runner) printResult(result *tasks.SyncResult, run *models.SyncRun) {
	title := "Sync complete"
	if run != nil {
		title = fmt.Sprintf("Sync complete (run #%d)", run.Sequence())
	}
	r.writePlainln("")
	r.writePlainHeader(title)

	for _, p := range result.Playlists {
		switch {
		case p.Err != nil:
			r.writePlain("%s\n", ui.Failure(fmt.Sprintf("✗ %s: %v", p.Name, p.Err)))
		case p.Action == tasks.ActionSkipped:
			r.writePlain("%s\n", ui.Warning(fmt.Sprintf("- %s: skipped, no track matched (%d tracks)", p.Name, p.Total)))
		default:
			r.writePlain("%s\n", ui.Success(fmt.Sprintf("✓ %s: %s, %d/%d matched", p.Name, p.Action, p.Matched, p.Total)))
		}
	}
	for _, e := range result.SourceErrors {
		r.writePlain("%s\n", ui.Failure(fmt.Sprintf("✗ %v", e)))
	}
	for _, ref := range result.Ignored {
		r.writePlain("%s\n", ui.Muted(fmt.Sprintf("ignored %q (no user)", ref.Raw)))
	}

	r.writePlainln("%s in %s", result.Summary(), result.Duration().Round(time.Millisecond))
	if result.Counts().Unresolved > 0 && r.config.Sync.MissingTracksPath != "" {
		r.writePlain("Unresolved tracks appended to %s\n", r.config.Sync.MissingTracksPath)
	}
	if result.Err != nil {
		r.writePlain("%s\n", ui.Failure(fmt.Sprintf("Run stopped early: %v", result.Err)))
	}
}

// Serve runs a sync at startup and then on every interval, serving /healthz, /metrics and /sync until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if cmd.IsSet("host") {
		r.config.Server.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		r.config.Server.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("interval") || r.config.Server.Interval.Duration == 0 {
		r.config.Server.Interval.Duration = cmd.Duration("interval")
	}

	if r.catalog == nil || r.library == nil {
		if err := shared.ValidateServerConfig(r.config); err != nil {
			return err
		}
	}

	scheduler := server.NewScheduler(func(ctx context.Context) (*tasks.SyncResult, error) {
		result, _, err := r.runSync(ctx, nil)
		return result, err
	}, shared.WithLogger(r.logger, "component", "scheduler"))

	router := server.NewServeRouter(ctx, server.RouterOpts{
		Scheduler: scheduler,
		Registry:  r.registry,
		Logger:    shared.WithLogger(r.logger, "component", "http"),
	})

	go scheduler.Start(ctx, r.config.Server.Interval.Duration)

	addr := server.Addr(r.config.Server.Host, r.config.Server.Port)
	err := server.ListenAndServe(ctx, addr, router, r.logger)
	scheduler.Wait()
	return err
}

// Resolve runs the track resolver for a single title and prints the match.
func (r *Runner) Resolve(ctx context.Context, cmd *cli.Command) error {
	library, err := r.libraryService()
	if err != nil {
		return err
	}

	track := models.SourceTrack{Name: cmd.String("title")}
	for _, name := range cmd.StringSlice("artist") {
		track.Artists = append(track.Artists, models.SourceArtist{Name: name})
	}

	var sink tasks.UnresolvedSink
	if cmd.Bool("record") {
		if path := r.config.Sync.MissingTracksPath; path != "" {
			sink = repositories.NewUnresolvedFileSink(path)
		} else {
			r.logger.Warn("--record ignored, no missing tracks file configured")
		}
	}

	resolver := r.resolver(library, sink)
	if name := cmd.String("playlist"); name != "" {
		resolver = resolver.ForPlaylist(name)
	}

	res := resolver.Resolve(ctx, track)

	if cmd.Bool("json") {
		out := map[string]any{
			"status":  res.Status.String(),
			"title":   res.Track.Name,
			"cleaned": res.Cleaned,
		}
		if res.Match != nil {
			out["match"] = map[string]string{
				"key":    res.Match.Key,
				"title":  res.Match.Title,
				"artist": res.Match.ArtistIdentity(),
				"album":  res.Match.Album,
			}
		}
		if res.Err != nil {
			out["error"] = res.Err.Error()
		}
		return r.writeJSON(out, true)
	}

	searched := res.Track.Name
	if res.Cleaned {
		searched = fmt.Sprintf("%s (cleaned from %q)", res.Track.Name, track.Name)
	}
	r.writePlain("Searched: %s\n", searched)

	switch res.Status {
	case tasks.StatusMatched:
		r.writePlain("%s\n", ui.Success(fmt.Sprintf("✓ %s - %s [%s]", res.Match.ArtistIdentity(), res.Match.Title, res.Match.Key)))
		if res.Match.Album != "" {
			r.writePlain("Album: %s\n", res.Match.Album)
		}
	case tasks.StatusSearchFailed:
		r.writePlain("%s\n", ui.Failure(fmt.Sprintf("✗ library search failed: %v", res.Err)))
		return errors.Join(shared.ErrServiceUnavailable, res.Err)
	default:
		r.writePlain("%s\n", ui.Warning("✗ no acceptable match in the library"))
	}
	return nil
}
