package tasks

import (
	"fmt"

	"github.com/desertthunder/plexsync/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	ExpandSources Phase = iota
	FetchPlaylist
	ResolveTracks
	WritePlaylist
	PlaylistDone
	SyncDone
)

func (p Phase) String() string {
	switch p {
	case ExpandSources:
		return "expand_sources"
	case FetchPlaylist:
		return "fetch_playlist"
	case ResolveTracks:
		return "resolve_tracks"
	case WritePlaylist:
		return "write_playlist"
	case PlaylistDone:
		return "playlist_done"
	case SyncDone:
		return "sync_done"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func expandSourceUpdate(step, total int, ref models.SourceURIRef) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExpandSources,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Expanding %s...", step, total, ref.Raw),
	}
}

func fetchPlaylistUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Fetching tracks of %s...", name),
	}
}

func resolveTrackUpdate(step, total int, tr models.SourceTrack) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s - %s", step, total, tr.FirstArtist(), tr.Name),
	}
}

func writePlaylistUpdate(name string, action ReconcileAction, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WritePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("%s %s with %d tracks", action.Verb(), name, count),
	}
}

func playlistDoneUpdate(step, total int, res PlaylistResult) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] ✓ %s (%s)", step, total, res.Name, res.Action)
	if res.Err != nil {
		msg = fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, res.Name, res.Err)
	}
	return ProgressUpdate{
		Phase:   PlaylistDone,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    res,
	}
}

func syncDoneUpdate(res *SyncResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SyncDone,
		Step:    1,
		Total:   1,
		Message: res.Summary(),
		Data:    res,
	}
}
