package tasks

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plexsync/internal/models"
	"github.com/desertthunder/plexsync/internal/services"
	"github.com/desertthunder/plexsync/internal/shared"
)

// CatalogReader reads playlists and their full track lists from a [services.Catalog].
type CatalogReader struct {
	catalog services.Catalog
	logger  *log.Logger
}

// NewCatalogReader creates a reader over catalog.
func NewCatalogReader(catalog services.Catalog, logger *log.Logger) *CatalogReader {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &CatalogReader{catalog: catalog, logger: logger}
}

// FetchPlaylist retrieves one playlist with the first page of its tracks.
func (c *CatalogReader) FetchPlaylist(ctx context.Context, ownerID, playlistID string) (*models.SourcePlaylist, error) {
	if c.catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}
	return c.catalog.Playlist(ctx, ownerID, playlistID)
}

// FetchUserPlaylists retrieves every playlist owned by ownerID.
//
// Followed playlists owned by someone else are listed by the catalog and dropped here.
func (c *CatalogReader) FetchUserPlaylists(ctx context.Context, ownerID string) ([]models.SourcePlaylist, error) {
	if c.catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}

	var owned []models.PlaylistSummary
	err := paginate("", func(cursor string) (string, error) {
		page, err := c.catalog.UserPlaylists(ctx, ownerID, cursor)
		if err != nil {
			return "", err
		}
		for _, s := range page.Items {
			if s.OwnerID == ownerID {
				owned = append(owned, s)
			} else {
				c.logger.Debug("skipping playlist not owned by user", "playlist", s.Name, "owner", s.OwnerID, "user", ownerID)
			}
		}
		return page.Next, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists of %s: %w", ownerID, err)
	}

	playlists := make([]models.SourcePlaylist, 0, len(owned))
	for _, s := range owned {
		pl, err := c.FetchPlaylist(ctx, ownerID, s.ID)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, *pl)
	}
	return playlists, nil
}

// FetchPlaylistTracks returns the embedded first page of tracks followed by every remaining page.
func (c *CatalogReader) FetchPlaylistTracks(ctx context.Context, playlist *models.SourcePlaylist) ([]models.SourceTrack, error) {
	tracks := append([]models.SourceTrack(nil), playlist.Tracks...)
	if playlist.TracksNext == "" {
		return tracks, nil
	}
	if c.catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}

	err := paginate(playlist.TracksNext, func(cursor string) (string, error) {
		page, err := c.catalog.PlaylistTracks(ctx, playlist.ID, cursor)
		if err != nil {
			return "", err
		}
		tracks = append(tracks, page.Items...)
		return page.Next, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tracks of %s: %w", playlist.Name, err)
	}
	return tracks, nil
}

// paginate calls fetch with start and then with each cursor it returns until the cursor is empty.
// A cursor seen twice stops the loop with an error.
func paginate(start string, fetch func(cursor string) (string, error)) error {
	seen := map[string]bool{start: true}
	cursor := start
	for {
		next, err := fetch(cursor)
		if err != nil {
			return err
		}
		if next == "" {
			return nil
		}
		if seen[next] {
			return fmt.Errorf("%w: pagination cursor repeated: %s", shared.ErrAPIRequest, next)
		}
		seen[next] = true
		cursor = next
	}
}
