// Plex Media Server implementation of [Library]
//
// Response types follow the XML MediaContainer documents returned by PMS.
package services

import (
	"context"
	"crypto/tls"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plexsync/internal/models"
	"github.com/desertthunder/plexsync/internal/shared"
)

// maxItemsPerRequest bounds the number of keys put in one playlist URI.
const maxItemsPerRequest = 200

// PlexMetadata is a library item inside a search hub.
type PlexMetadata struct {
	RatingKey        string `xml:"ratingKey,attr"`
	Type             string `xml:"type,attr"`
	Title            string `xml:"title,attr"`
	GrandparentTitle string `xml:"grandparentTitle,attr"` // album artist for tracks
	OriginalTitle    string `xml:"originalTitle,attr"`    // track artist on compilations
	ParentTitle      string `xml:"parentTitle,attr"`      // album for tracks
}

// PlexHub groups search results of one media type.
type PlexHub struct {
	Type        string         `xml:"type,attr"`
	Tracks      []PlexMetadata `xml:"Track"`
	Directories []PlexMetadata `xml:"Directory"`
	Videos      []PlexMetadata `xml:"Video"`
}

// PlexPlaylist represents a Plex playlist.
type PlexPlaylist struct {
	RatingKey    string `xml:"ratingKey,attr"`
	Title        string `xml:"title,attr"`
	PlaylistType string `xml:"playlistType,attr"`
	LeafCount    int    `xml:"leafCount,attr"`
}

// PlexMediaContainer is the root element of every PMS response.
type PlexMediaContainer struct {
	XMLName           xml.Name       `xml:"MediaContainer"`
	MachineIdentifier string         `xml:"machineIdentifier,attr"`
	FriendlyName      string         `xml:"friendlyName,attr"`
	Hubs              []PlexHub      `xml:"Hub"`
	Playlists         []PlexPlaylist `xml:"Playlist"`
}

// PlexOpts configures a [PlexService].
type PlexOpts struct {
	URL                string
	Token              string
	InsecureSkipVerify bool
	Timeout            time.Duration
	RequestsPerSecond  float64
	MaxRetries         int
	Logger             *log.Logger
}

// PlexService implements [Library] against a Plex Media Server.
type PlexService struct {
	api    *APIService
	logger *log.Logger

	mu        sync.Mutex
	machineID string
}

var _ Library = (*PlexService)(nil)

// NewPlexService creates a Plex library client.
func NewPlexService(opts PlexOpts) (*PlexService, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("%w: plex url", shared.ErrMissingCredentials)
	}
	if opts.Token == "" {
		return nil, fmt.Errorf("%w: plex token", shared.ErrMissingCredentials)
	}
	if _, err := url.ParseRequestURI(opts.URL); err != nil {
		return nil, fmt.Errorf("%w: plex url %q: %v", shared.ErrInvalidConfig, opts.URL, err)
	}

	client := &http.Client{Timeout: opts.Timeout}
	if opts.InsecureSkipVerify {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed servers
		client.Transport = transport
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	api := NewAPIService(APIOpts{
		BaseURL: strings.TrimRight(opts.URL, "/"),
		Client:  client,
		Header: http.Header{
			"Accept":                   {"application/xml"},
			"X-Plex-Token":             {opts.Token},
			"X-Plex-Product":           {"plexsync"},
			"X-Plex-Client-Identifier": {"plexsync"},
		},
		RequestsPerSecond: opts.RequestsPerSecond,
		MaxRetries:        opts.MaxRetries,
		Logger:            logger,
	})

	return &PlexService{api: api, logger: logger}, nil
}

func (p *PlexService) Name() string {
	return "Plex"
}

func (p *PlexService) doXML(ctx context.Context, method, rawURL string) (*PlexMediaContainer, error) {
	var container PlexMediaContainer
	err := p.api.Do(ctx, method, rawURL, func(r io.Reader) error {
		body, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		if len(strings.TrimSpace(string(body))) == 0 {
			return nil
		}
		return xml.Unmarshal(body, &container)
	})
	if err != nil {
		return nil, err
	}
	return &container, nil
}

// MachineID returns the server's machine identifier, fetched once.
func (p *PlexService) MachineID(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.machineID != "" {
		return p.machineID, nil
	}

	container, err := p.doXML(ctx, http.MethodGet, p.api.Endpoint("/", nil))
	if err != nil {
		return "", fmt.Errorf("failed to fetch server identity: %w", err)
	}
	if container.MachineIdentifier == "" {
		return "", fmt.Errorf("%w: server did not report a machine identifier", shared.ErrAPIRequest)
	}

	p.machineID = container.MachineIdentifier
	return p.machineID, nil
}

// SearchTracks queries the library hubs for title and keeps only track items.
//
// Albums, artists and videos share the hub search endpoint; they are dropped here so an
// empty result always means no track carries the title.
func (p *PlexService) SearchTracks(ctx context.Context, title string) ([]models.LocalMediaItem, error) {
	endpoint := p.api.Endpoint("/hubs/search", url.Values{"query": {title}})
	container, err := p.doXML(ctx, http.MethodGet, endpoint)
	if err != nil {
		return nil, fmt.Errorf("search for %q failed: %w", title, err)
	}

	var items []models.LocalMediaItem
	dropped := 0
	for _, hub := range container.Hubs {
		for _, group := range [][]PlexMetadata{hub.Tracks, hub.Directories, hub.Videos} {
			for _, m := range group {
				item := m.toLocal(hub.Type)
				if item.Kind != models.KindTrack {
					dropped++
					continue
				}
				items = append(items, item)
			}
		}
	}

	p.logger.Debug("library search", "query", title, "results", len(items), "dropped", dropped)
	return items, nil
}

func (m PlexMetadata) toLocal(hubType string) models.LocalMediaItem {
	kind := m.Type
	if kind == "" {
		kind = hubType
	}
	return models.LocalMediaItem{
		Key:               m.RatingKey,
		Kind:              models.ParseMediaKind(kind),
		Title:             m.Title,
		PrimaryArtist:     m.GrandparentTitle,
		CompilationArtist: m.OriginalTitle,
		Album:             m.ParentTitle,
	}
}

// PlaylistByName finds an audio playlist whose title equals name.
func (p *PlexService) PlaylistByName(ctx context.Context, name string) (*models.LocalPlaylist, error) {
	endpoint := p.api.Endpoint("/playlists", url.Values{"playlistType": {"audio"}})
	container, err := p.doXML(ctx, http.MethodGet, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}

	for _, pl := range container.Playlists {
		if pl.Title == name {
			return pl.toLocal(), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, name)
}

func (pl PlexPlaylist) toLocal() *models.LocalPlaylist {
	return &models.LocalPlaylist{Key: pl.RatingKey, Title: pl.Title, TrackCount: pl.LeafCount}
}

// CreatePlaylist creates an audio playlist holding items.
//
// Lists longer than one request allows are created with the first batch and extended with [PlexService.AddItems].
func (p *PlexService) CreatePlaylist(ctx context.Context, name string, items []models.LocalMediaItem) (*models.LocalPlaylist, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: playlist %q needs at least one item", shared.ErrInvalidInput, name)
	}

	first, rest := items, []models.LocalMediaItem(nil)
	if len(items) > maxItemsPerRequest {
		first, rest = items[:maxItemsPerRequest], items[maxItemsPerRequest:]
	}

	uri, err := p.itemsURI(ctx, first)
	if err != nil {
		return nil, err
	}

	endpoint := p.api.Endpoint("/playlists", url.Values{
		"type":  {"audio"},
		"title": {name},
		"smart": {"0"},
		"uri":   {uri},
	})
	container, err := p.doXML(ctx, http.MethodPost, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist %q: %w", name, err)
	}

	playlist := &models.LocalPlaylist{Title: name, TrackCount: len(first)}
	if len(container.Playlists) > 0 {
		playlist = container.Playlists[0].toLocal()
	}

	if len(rest) > 0 {
		if err := p.AddItems(ctx, playlist, rest); err != nil {
			return playlist, err
		}
	}
	return playlist, nil
}

// AddItems appends items to playlist in batches.
func (p *PlexService) AddItems(ctx context.Context, playlist *models.LocalPlaylist, items []models.LocalMediaItem) error {
	if playlist == nil || playlist.Key == "" {
		return fmt.Errorf("%w: playlist has no key", shared.ErrInvalidInput)
	}

	for start := 0; start < len(items); start += maxItemsPerRequest {
		end := min(start+maxItemsPerRequest, len(items))

		uri, err := p.itemsURI(ctx, items[start:end])
		if err != nil {
			return err
		}

		endpoint := p.api.Endpoint("/playlists/"+url.PathEscape(playlist.Key)+"/items", url.Values{"uri": {uri}})
		if _, err := p.doXML(ctx, http.MethodPut, endpoint); err != nil {
			return fmt.Errorf("failed to add items to playlist %q: %w", playlist.Title, err)
		}
		playlist.TrackCount += end - start
	}
	return nil
}

// itemsURI builds the server:// URI Plex uses to reference library items.
func (p *PlexService) itemsURI(ctx context.Context, items []models.LocalMediaItem) (string, error) {
	machineID, err := p.MachineID(ctx)
	if err != nil {
		return "", err
	}

	keys := make([]string, len(items))
	for i, item := range items {
		keys[i] = item.Key
	}
	return fmt.Sprintf("server://%s/com.plexapp.plugins.library/library/metadata/%s", machineID, strings.Join(keys, ",")), nil
}
