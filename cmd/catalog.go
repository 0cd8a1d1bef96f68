package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/plexsync/internal/models"
	"github.com/desertthunder/plexsync/internal/tasks"
)

type playlistListing struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	LocalName  string   `json:"local_name"`
	TrackTotal int      `json:"track_total"`
	Tracks     []string `json:"tracks,omitempty"`
}

// CatalogPlaylists lists the playlists a user owns, as the sync would queue them.
func (r *Runner) CatalogPlaylists(ctx context.Context, cmd *cli.Command) error {
	user := cmd.String("user")
	withTracks := cmd.Bool("tracks")

	catalog, err := r.catalogService(ctx)
	if err != nil {
		return err
	}
	reader := tasks.NewCatalogReader(catalog, r.logger)

	r.logger.Infof("listing playlists owned by %v", user)
	playlists, err := reader.FetchUserPlaylists(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to list playlists: %w", err)
	}

	listings := make([]playlistListing, 0, len(playlists))
	for i := range playlists {
		pl := &playlists[i]
		listing := playlistListing{
			ID:         pl.ID,
			Name:       pl.Name,
			LocalName:  pl.DisplayName(),
			TrackTotal: pl.TrackTotal,
		}
		if withTracks {
			tracks, err := reader.FetchPlaylistTracks(ctx, pl)
			if err != nil {
				return fmt.Errorf("failed to fetch tracks of %s: %w", pl.Name, err)
			}
			listing.Tracks = trackLines(tracks)
		}
		listings = append(listings, listing)
	}

	if cmd.Bool("json") {
		return r.writeJSON(listings, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Playlists owned by %s (%d)", user, len(listings)))
	for i, l := range listings {
		r.writePlain("%d. %s (%d tracks)\n   → %s\n", i+1, l.Name, l.TrackTotal, l.LocalName)
		for _, t := range l.Tracks {
			r.writePlain("     • %s\n", t)
		}
	}
	return nil
}

func trackLines(tracks []models.SourceTrack) []string {
	lines := make([]string, len(tracks))
	for i, t := range tracks {
		lines[i] = fmt.Sprintf("%s - %s", t.FirstArtist(), t.Name)
	}
	return lines
}
