package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plexsync/internal/models"
	"github.com/desertthunder/plexsync/internal/services"
	"github.com/desertthunder/plexsync/internal/shared"
)

// ReconcileAction is what happened to the library playlist.
type ReconcileAction int

const (
	ActionSkipped ReconcileAction = iota
	ActionUpdated
	ActionCreated
)

func (a ReconcileAction) String() string {
	switch a {
	case ActionUpdated:
		return "updated"
	case ActionCreated:
		return "created"
	default:
		return "skipped"
	}
}

// Verb is the progress-message form of the action.
func (a ReconcileAction) Verb() string {
	switch a {
	case ActionUpdated:
		return "Updating"
	case ActionCreated:
		return "Creating"
	default:
		return "Skipping"
	}
}

// ReconcileResult contains all data from reconciling one playlist.
type ReconcileResult struct {
	Name         string                // Library playlist name
	Action       ReconcileAction       // Write performed on the library
	Playlist     *models.LocalPlaylist // Library playlist, nil when skipped
	Resolutions  []Resolution          // One per source track, in source order
	Matched      []models.LocalMediaItem
	Unresolved   int
	SearchFailed int
}

// Total is the number of source tracks considered.
func (r *ReconcileResult) Total() int { return len(r.Resolutions) }

// ReconcilerOpts configures a [PlaylistReconciler].
type ReconcilerOpts struct {
	Catalog  *CatalogReader
	Resolver *TrackResolver
	Library  services.Library
	Logger   *log.Logger
	Metrics  *Metrics
	// StrictLookup skips the playlist when the library lookup fails for a reason other than not found.
	// Otherwise such failures fall through to creating the playlist.
	StrictLookup bool
}

// PlaylistReconciler mirrors one source playlist into the library.
type PlaylistReconciler struct {
	catalog  *CatalogReader
	resolver *TrackResolver
	library  services.Library
	logger   *log.Logger
	metrics  *Metrics
	strict   bool
}

// NewPlaylistReconciler creates a reconciler.
func NewPlaylistReconciler(opts ReconcilerOpts) *PlaylistReconciler {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &PlaylistReconciler{
		catalog:  opts.Catalog,
		resolver: opts.Resolver,
		library:  opts.Library,
		logger:   logger,
		metrics:  opts.Metrics,
		strict:   opts.StrictLookup,
	}
}

// Reconcile resolves every track of playlist and writes the matches to the library playlist named
// after [models.SourcePlaylist.DisplayName].
//
// Order and duplicates are preserved. An existing playlist is appended to; a missing one is created.
// Nothing is written when no track matched.
func (p *PlaylistReconciler) Reconcile(ctx context.Context, playlist models.SourcePlaylist, progress chan<- ProgressUpdate) (*ReconcileResult, error) {
	name := playlist.DisplayName()
	logger := shared.WithLogger(p.logger, "playlist", name)
	result := &ReconcileResult{Name: name}

	sendProgress(progress, fetchPlaylistUpdate(1, 1, name))
	tracks, err := p.catalog.FetchPlaylistTracks(ctx, &playlist)
	if err != nil {
		return result, err
	}
	logger.Info("syncing playlist", "tracks", len(tracks))

	resolver := p.resolver.ForPlaylist(name)
	result.Resolutions = make([]Resolution, 0, len(tracks))
	for i, track := range tracks {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		sendProgress(progress, resolveTrackUpdate(i+1, len(tracks), track))

		res := resolver.Resolve(ctx, track)
		result.Resolutions = append(result.Resolutions, res)

		switch res.Status {
		case StatusMatched:
			result.Matched = append(result.Matched, *res.Match)
		case StatusUnresolved:
			result.Unresolved++
		case StatusSearchFailed:
			result.SearchFailed++
		}
	}

	if len(result.Matched) == 0 {
		logger.Warn("no tracks matched, skipping playlist")
		result.Action = ActionSkipped
		p.metrics.observePlaylist(result.Action.String())
		return result, nil
	}

	existing, err := p.library.PlaylistByName(ctx, name)
	switch {
	case err == nil:
		result.Action = ActionUpdated
		sendProgress(progress, writePlaylistUpdate(name, result.Action, len(result.Matched)))
		if err := p.library.AddItems(ctx, existing, result.Matched); err != nil {
			return result, fmt.Errorf("failed to update playlist %q: %w", name, err)
		}
		result.Playlist = existing
		logger.Info("updated playlist", "added", len(result.Matched))

	case errors.Is(err, shared.ErrPlaylistNotFound):
		logger.Info("playlist not found, creating")
		if err := p.create(ctx, result, progress); err != nil {
			return result, err
		}

	default:
		logger.Error("playlist lookup failed", "err", err)
		if p.strict {
			return result, fmt.Errorf("lookup of playlist %q failed: %w", name, err)
		}
		logger.Warn("creating playlist after failed lookup")
		if err := p.create(ctx, result, progress); err != nil {
			return result, err
		}
	}

	p.metrics.observePlaylist(result.Action.String())
	return result, nil
}

func (p *PlaylistReconciler) create(ctx context.Context, result *ReconcileResult, progress chan<- ProgressUpdate) error {
	result.Action = ActionCreated
	sendProgress(progress, writePlaylistUpdate(result.Name, result.Action, len(result.Matched)))
	created, err := p.library.CreatePlaylist(ctx, result.Name, result.Matched)
	if err != nil {
		return fmt.Errorf("failed to create playlist %q: %w", result.Name, err)
	}
	result.Playlist = created
	p.logger.Info("created playlist", "playlist", result.Name, "tracks", len(result.Matched))
	return nil
}
