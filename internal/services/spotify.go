// Spotify Web API implementation of [Catalog]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plexsync/internal/models"
	"github.com/desertthunder/plexsync/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	userPlaylistsLimit  = 50
	playlistTracksLimit = 100
)

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyTrack represents a Spotify track or episode.
type SpotifyTrack struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Type    string          `json:"type"`
	Artists []SpotifyArtist `json:"artists"`
	Album   SpotifyAlbum    `json:"album"`
}

// Owner is the user a playlist belongs to.
type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
//
// Track is nil for items that are no longer available.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPaginatedTracks is a page of playlist items.
type SpotifyPaginatedTracks struct {
	Items []SpotifyPlaylistTrack `json:"items"`
	Total int                    `json:"total"`
	Next  *string                `json:"next"`
}

// SpotifyPlaylist represents a Spotify playlist.
type SpotifyPlaylist struct {
	ID     string                 `json:"id"`
	Name   string                 `json:"name"`
	Owner  Owner                  `json:"owner"`
	Tracks SpotifyPaginatedTracks `json:"tracks"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Owner Owner  `json:"owner"`
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items []SpotifySimplePlaylist `json:"items"`
	Total int                     `json:"total"`
	Next  *string                 `json:"next"`
}

// SpotifyOpts configures a [SpotifyService].
type SpotifyOpts struct {
	ClientID          string
	ClientSecret      string
	BaseURL           string // defaults to the public Web API
	TokenURL          string // defaults to the Spotify accounts service
	Timeout           time.Duration
	RequestsPerSecond float64
	MaxRetries        int
	Logger            *log.Logger
}

// SpotifyService implements [Catalog] for the Spotify Web API.
// Uses the [clientcredentials] flow, so only public playlists are visible.
type SpotifyService struct {
	api    *APIService
	logger *log.Logger
}

var _ Catalog = (*SpotifyService)(nil)

// NewSpotifyService creates a Spotify catalog client.
func NewSpotifyService(ctx context.Context, opts SpotifyOpts) (*SpotifyService, error) {
	if opts.ClientID == "" {
		return nil, fmt.Errorf("%w: spotify client_id", shared.ErrMissingCredentials)
	}
	if opts.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_secret", shared.ErrMissingCredentials)
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = spotifyBaseURL
	}
	tokenURL := opts.TokenURL
	if tokenURL == "" {
		tokenURL = spotifyTokenURL
	}

	config := &clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     tokenURL,
	}

	base := &http.Client{Timeout: opts.Timeout}
	client := config.Client(context.WithValue(ctx, oauth2.HTTPClient, base))
	client.Timeout = opts.Timeout

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	api := NewAPIService(APIOpts{
		BaseURL:           baseURL,
		Client:            client,
		Header:            http.Header{"Accept": {"application/json"}},
		RequestsPerSecond: opts.RequestsPerSecond,
		MaxRetries:        opts.MaxRetries,
		Logger:            logger,
	})

	return &SpotifyService{api: api, logger: logger}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

func (s *SpotifyService) getJSON(ctx context.Context, rawURL string, result any) error {
	return s.api.Do(ctx, http.MethodGet, rawURL, func(r io.Reader) error {
		return json.NewDecoder(r).Decode(result)
	})
}

// Playlist retrieves a playlist by ID.
//
// ownerID is not needed by the Web API and only used for logging.
func (s *SpotifyService) Playlist(ctx context.Context, ownerID, playlistID string) (*models.SourcePlaylist, error) {
	var sp SpotifyPlaylist
	endpoint := s.api.Endpoint("/playlists/"+url.PathEscape(playlistID), nil)
	if err := s.getJSON(ctx, endpoint, &sp); err != nil {
		return nil, fmt.Errorf("failed to fetch playlist %s of %s: %w", playlistID, ownerID, err)
	}

	playlist := &models.SourcePlaylist{
		ID:               sp.ID,
		Name:             sp.Name,
		OwnerID:          sp.Owner.ID,
		OwnerDisplayName: sp.Owner.DisplayName,
		TrackTotal:       sp.Tracks.Total,
		Tracks:           convertPlaylistItems(sp.Tracks.Items),
		TracksNext:       deref(sp.Tracks.Next),
	}
	if playlist.OwnerDisplayName == "" {
		playlist.OwnerDisplayName = playlist.OwnerID
	}
	return playlist, nil
}

// UserPlaylists retrieves one page of a user's public playlists.
func (s *SpotifyService) UserPlaylists(ctx context.Context, ownerID, cursor string) (*Page[models.PlaylistSummary], error) {
	endpoint := cursor
	if endpoint == "" {
		endpoint = s.api.Endpoint("/users/"+url.PathEscape(ownerID)+"/playlists", url.Values{
			"limit": {strconv.Itoa(userPlaylistsLimit)},
		})
	}

	var response SpotifyPaginatedPlaylists
	if err := s.getJSON(ctx, endpoint, &response); err != nil {
		return nil, fmt.Errorf("failed to list playlists of %s: %w", ownerID, err)
	}

	page := &Page[models.PlaylistSummary]{Next: deref(response.Next)}
	for _, sp := range response.Items {
		page.Items = append(page.Items, models.PlaylistSummary{
			ID:      sp.ID,
			Name:    sp.Name,
			OwnerID: sp.Owner.ID,
		})
	}
	return page, nil
}

// PlaylistTracks retrieves one page of a playlist's items.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID, cursor string) (*Page[models.SourceTrack], error) {
	endpoint := cursor
	if endpoint == "" {
		endpoint = s.api.Endpoint("/playlists/"+url.PathEscape(playlistID)+"/tracks", url.Values{
			"limit": {strconv.Itoa(playlistTracksLimit)},
		})
	}

	var response SpotifyPaginatedTracks
	if err := s.getJSON(ctx, endpoint, &response); err != nil {
		return nil, fmt.Errorf("failed to fetch tracks of playlist %s: %w", playlistID, err)
	}

	return &Page[models.SourceTrack]{
		Items: convertPlaylistItems(response.Items),
		Next:  deref(response.Next),
	}, nil
}

// convertPlaylistItems drops unavailable items and podcast episodes.
func convertPlaylistItems(items []SpotifyPlaylistTrack) []models.SourceTrack {
	tracks := make([]models.SourceTrack, 0, len(items))
	for _, item := range items {
		if item.Track == nil || (item.Track.Type != "" && item.Track.Type != "track") {
			continue
		}
		track := models.SourceTrack{
			ID:    item.Track.ID,
			Name:  item.Track.Name,
			Album: item.Track.Album.Name,
		}
		for _, a := range item.Track.Artists {
			track.Artists = append(track.Artists, models.SourceArtist{ID: a.ID, Name: a.Name})
		}
		tracks = append(tracks, track)
	}
	return tracks
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
