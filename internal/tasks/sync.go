package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plexsync/internal/models"
	"github.com/desertthunder/plexsync/internal/shared"
)

// SourceError records a source URI that could not be expanded into playlists.
type SourceError struct {
	Ref models.SourceURIRef
	Err error
}

func (e SourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Ref.Raw, e.Err)
}

func (e SourceError) Unwrap() error { return e.Err }

// PlaylistResult is the outcome of one queued playlist.
type PlaylistResult struct {
	Name         string
	Action       ReconcileAction
	Total        int
	Matched      int
	Unresolved   int
	SearchFailed int
	Err          error
}

// SyncResult contains all data from a full sync run.
type SyncResult struct {
	StartedAt    time.Time
	FinishedAt   time.Time
	Sources      []models.SourceURIRef // refs given to Run
	Ignored      []models.SourceURIRef // refs without a user
	SourceErrors []SourceError         // refs whose expansion failed
	Playlists    []PlaylistResult      // one per queued playlist, in queue order
	Err          error                 // set when the run was cancelled
}

// Duration is the wall time of the run.
func (r *SyncResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failed counts playlists and sources that ended in an error.
func (r *SyncResult) Failed() int {
	n := len(r.SourceErrors)
	for _, p := range r.Playlists {
		if p.Err != nil {
			n++
		}
	}
	return n
}

// Counts summarises the run for persistence.
func (r *SyncResult) Counts() models.RunCounts {
	c := models.RunCounts{Playlists: len(r.Playlists), Failed: r.Failed()}
	for _, p := range r.Playlists {
		c.Matched += p.Matched
		c.Unresolved += p.Unresolved
		if p.Err != nil {
			continue
		}
		switch p.Action {
		case ActionCreated:
			c.Created++
		case ActionUpdated:
			c.Updated++
		default:
			c.Skipped++
		}
	}
	return c
}

// Errors joins every playlist and source error of the run.
func (r *SyncResult) Errors() error {
	errs := make([]error, 0, len(r.SourceErrors)+1)
	for _, e := range r.SourceErrors {
		errs = append(errs, e)
	}
	for _, p := range r.Playlists {
		if p.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name, p.Err))
		}
	}
	if r.Err != nil {
		errs = append(errs, r.Err)
	}
	return errors.Join(errs...)
}

// Summary is a one-line description of the run.
func (r *SyncResult) Summary() string {
	c := r.Counts()
	return fmt.Sprintf(
		"%d playlists: %d created, %d updated, %d skipped, %d failed; %d tracks matched, %d unresolved",
		c.Playlists, c.Created, c.Updated, c.Skipped, c.Failed, c.Matched, c.Unresolved,
	)
}

// EngineOpts configures a [SyncEngine].
type EngineOpts struct {
	Catalog    *CatalogReader
	Reconciler *PlaylistReconciler
	Logger     *log.Logger
	Metrics    *Metrics
}

// SyncEngine expands source URIs into playlists and reconciles each of them.
type SyncEngine struct {
	catalog    *CatalogReader
	reconciler *PlaylistReconciler
	logger     *log.Logger
	metrics    *Metrics
}

// NewSyncEngine creates a new SyncEngine.
func NewSyncEngine(opts EngineOpts) *SyncEngine {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &SyncEngine{
		catalog:    opts.Catalog,
		reconciler: opts.Reconciler,
		logger:     logger,
		metrics:    opts.Metrics,
	}
}

// Run syncs every playlist selected by refs.
//
// A failing source or playlist is recorded in the result and the run moves on; only cancellation of ctx
// stops it early.
func (e *SyncEngine) Run(ctx context.Context, refs []models.SourceURIRef, progress chan<- ProgressUpdate) *SyncResult {
	result := &SyncResult{StartedAt: time.Now(), Sources: refs}
	defer func() {
		result.FinishedAt = time.Now()
		e.metrics.observeRun(result)
		sendProgress(progress, syncDoneUpdate(result))
	}()

	queue := e.expand(ctx, refs, result, progress)

	for i, pl := range queue {
		if err := ctx.Err(); err != nil {
			result.Err = err
			e.logger.Warn("sync cancelled", "remaining", len(queue)-i)
			return result
		}

		res := e.reconcile(ctx, pl, progress)
		result.Playlists = append(result.Playlists, res)
		sendProgress(progress, playlistDoneUpdate(i+1, len(queue), res))
	}

	e.logger.Info("sync finished", "summary", result.Summary())
	return result
}

// expand turns refs into the ordered playlist queue.
func (e *SyncEngine) expand(ctx context.Context, refs []models.SourceURIRef, result *SyncResult, progress chan<- ProgressUpdate) []models.SourcePlaylist {
	var queue []models.SourcePlaylist

	for i, ref := range refs {
		if ctx.Err() != nil {
			break
		}
		sendProgress(progress, expandSourceUpdate(i+1, len(refs), ref))
		logger := shared.WithLogger(e.logger, "uri", ref.Raw)

		switch ref.Shape() {
		case models.ShapeUser:
			logger.Info("syncing all playlists of user", "user", ref.User)
			playlists, err := e.catalog.FetchUserPlaylists(ctx, ref.User)
			if err != nil {
				logger.Error("failed to expand user", "err", err)
				result.SourceErrors = append(result.SourceErrors, SourceError{Ref: ref, Err: err})
				continue
			}
			queue = append(queue, playlists...)

		case models.ShapeUserPlaylist:
			logger.Info("syncing playlist", "user", ref.User, "playlist", ref.Playlist)
			pl, err := e.catalog.FetchPlaylist(ctx, ref.User, ref.Playlist)
			if err != nil {
				logger.Error("failed to fetch playlist", "err", err)
				result.SourceErrors = append(result.SourceErrors, SourceError{Ref: ref, Err: err})
				continue
			}
			queue = append(queue, *pl)

		default:
			logger.Debug("ignoring uri without a user", "extra", ref.Extra)
			result.Ignored = append(result.Ignored, ref)
		}
	}

	return queue
}

// reconcile runs one playlist, converting an error or a panic into the result.
func (e *SyncEngine) reconcile(ctx context.Context, pl models.SourcePlaylist, progress chan<- ProgressUpdate) (res PlaylistResult) {
	res.Name = pl.DisplayName()
	logger := shared.WithLogger(e.logger, "playlist", res.Name)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("playlist sync panicked", "panic", r, "stack", string(debug.Stack()))
			res.Err = fmt.Errorf("panic: %v", r)
		}
	}()

	out, err := e.reconciler.Reconcile(ctx, pl, progress)
	if out != nil {
		res.Action = out.Action
		res.Total = out.Total()
		res.Matched = len(out.Matched)
		res.Unresolved = out.Unresolved
		res.SearchFailed = out.SearchFailed
	}
	if err != nil {
		logger.Error("playlist sync failed", "err", err)
		res.Err = err
	}
	return res
}
