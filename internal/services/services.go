// package services defines the catalog and library collaborators used by sync
//
// Spotify (catalog), Plex (library)
package services

import (
	"context"

	"github.com/desertthunder/plexsync/internal/models"
)

// Page is one page of a cursor-paginated listing.
//
// An empty Next marks the last page.
type Page[T any] struct {
	Items []T
	Next  string
}

// Catalog is the read-only source of playlists and tracks.
type Catalog interface {
	// Playlist retrieves one playlist with the first page of its tracks embedded.
	Playlist(ctx context.Context, ownerID, playlistID string) (*models.SourcePlaylist, error)

	// UserPlaylists retrieves one page of the playlists visible on a user's profile.
	// An empty cursor requests the first page.
	UserPlaylists(ctx context.Context, ownerID, cursor string) (*Page[models.PlaylistSummary], error)

	// PlaylistTracks retrieves the page of tracks addressed by cursor.
	PlaylistTracks(ctx context.Context, playlistID, cursor string) (*Page[models.SourceTrack], error)
}

// Library is the local media library that playlists are mirrored into.
type Library interface {
	// SearchTracks runs a free-text search restricted to track media and returns the tracks in library order.
	SearchTracks(ctx context.Context, title string) ([]models.LocalMediaItem, error)

	// PlaylistByName finds a playlist by exact title.
	// Returns an error wrapping [shared.ErrPlaylistNotFound] when there is none.
	PlaylistByName(ctx context.Context, name string) (*models.LocalPlaylist, error)

	// CreatePlaylist creates a playlist holding items in order.
	CreatePlaylist(ctx context.Context, name string, items []models.LocalMediaItem) (*models.LocalPlaylist, error)

	// AddItems appends items to an existing playlist. Items already present are added again.
	AddItems(ctx context.Context, playlist *models.LocalPlaylist, items []models.LocalMediaItem) error
}
