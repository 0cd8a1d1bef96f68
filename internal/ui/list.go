package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/plexsync/internal/models"
)

var (
	_ list.Item = runItem{}
	_ list.Item = unresolvedItem{}
)

// runItem wraps [models.SyncRun] to implement [list.Item].
type runItem struct {
	run *models.SyncRun
}

func (i runItem) FilterValue() string { return string(i.run.Status()) }
func (i runItem) Title() string {
	return fmt.Sprintf("#%d %s • %s", i.run.Sequence(), i.run.CreatedAt().Local().Format(time.DateTime), i.run.Status())
}
func (i runItem) Description() string {
	c := i.run.Counts()
	desc := fmt.Sprintf("%d playlists • %d matched • %d unresolved", c.Playlists, c.Matched, c.Unresolved)
	if c.Failed > 0 {
		desc = fmt.Sprintf("%s • %d failed", desc, c.Failed)
	}
	return desc
}

// unresolvedItem wraps [models.UnresolvedTrack] to implement [list.Item].
type unresolvedItem struct {
	track *models.UnresolvedTrack
}

func (i unresolvedItem) FilterValue() string { return i.track.Record().TrackName }
func (i unresolvedItem) Title() string       { return i.track.Record().TrackName }
func (i unresolvedItem) Description() string {
	rec := i.track.Record()
	desc := rec.ArtistName
	if rec.Playlist != "" {
		desc = fmt.Sprintf("%s • %s", desc, rec.Playlist)
	}
	return desc
}
