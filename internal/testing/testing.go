// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/plexsync/internal/models"
	"github.com/desertthunder/plexsync/internal/services"
	"github.com/desertthunder/plexsync/internal/shared"
)

// FakeCatalog is a test double for [services.Catalog]
//
// Pages are keyed by cursor; the first page has the empty cursor.
type FakeCatalog struct {
	mu sync.Mutex

	Playlists   map[string]*models.SourcePlaylist                            // by playlist ID
	UserPages   map[string]map[string]*services.Page[models.PlaylistSummary] // owner -> cursor -> page
	TrackPages  map[string]map[string]*services.Page[models.SourceTrack]     // playlist ID -> cursor -> page
	PlaylistErr map[string]error                                             // by playlist ID
	UserErr     map[string]error                                             // by owner
	Calls       []string
}

var _ services.Catalog = (*FakeCatalog)(nil)

func (c *FakeCatalog) record(call string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, call)
}

func (c *FakeCatalog) Playlist(ctx context.Context, ownerID, playlistID string) (*models.SourcePlaylist, error) {
	c.record("playlist:" + playlistID)
	if err := c.PlaylistErr[playlistID]; err != nil {
		return nil, err
	}
	pl, ok := c.Playlists[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown playlist %s", shared.ErrAPIRequest, playlistID)
	}
	cp := *pl
	return &cp, nil
}

func (c *FakeCatalog) UserPlaylists(ctx context.Context, ownerID, cursor string) (*services.Page[models.PlaylistSummary], error) {
	c.record("user:" + ownerID + ":" + cursor)
	if err := c.UserErr[ownerID]; err != nil {
		return nil, err
	}
	page, ok := c.UserPages[ownerID][cursor]
	if !ok {
		return &services.Page[models.PlaylistSummary]{}, nil
	}
	return page, nil
}

func (c *FakeCatalog) PlaylistTracks(ctx context.Context, playlistID, cursor string) (*services.Page[models.SourceTrack], error) {
	c.record("tracks:" + playlistID + ":" + cursor)
	page, ok := c.TrackPages[playlistID][cursor]
	if !ok {
		return nil, fmt.Errorf("%w: unknown cursor %s", shared.ErrAPIRequest, cursor)
	}
	return page, nil
}

// CreatedPlaylist is a call recorded by [FakeLibrary.CreatePlaylist]
type CreatedPlaylist struct {
	Name  string
	Items []models.LocalMediaItem
}

// AddedItems is a call recorded by [FakeLibrary.AddItems]
type AddedItems struct {
	Playlist string
	Items    []models.LocalMediaItem
}

// FakeLibrary is a test double for [services.Library]
type FakeLibrary struct {
	mu sync.Mutex

	Results    map[string][]models.LocalMediaItem // search results by exact query
	SearchErrs map[string][]error                 // errors returned, in order, before results for a query
	Playlists  map[string]*models.LocalPlaylist   // existing playlists by title
	LookupErr  error
	CreateErr  error
	AddErr     error
	OnSearch   func(title string) // called before every search

	Searches []string
	Created  []CreatedPlaylist
	Added    []AddedItems
}

var _ services.Library = (*FakeLibrary)(nil)

func (l *FakeLibrary) SearchTracks(ctx context.Context, title string) ([]models.LocalMediaItem, error) {
	if l.OnSearch != nil {
		l.OnSearch(title)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.Searches = append(l.Searches, title)
	if errs := l.SearchErrs[title]; len(errs) > 0 {
		l.SearchErrs[title] = errs[1:]
		return nil, errs[0]
	}
	return l.Results[title], nil
}

func (l *FakeLibrary) PlaylistByName(ctx context.Context, name string) (*models.LocalPlaylist, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.LookupErr != nil {
		return nil, l.LookupErr
	}
	if pl, ok := l.Playlists[name]; ok {
		return pl, nil
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, name)
}

func (l *FakeLibrary) CreatePlaylist(ctx context.Context, name string, items []models.LocalMediaItem) (*models.LocalPlaylist, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.CreateErr != nil {
		return nil, l.CreateErr
	}
	l.Created = append(l.Created, CreatedPlaylist{Name: name, Items: items})

	pl := &models.LocalPlaylist{Key: fmt.Sprintf("created-%d", len(l.Created)), Title: name, TrackCount: len(items)}
	if l.Playlists == nil {
		l.Playlists = make(map[string]*models.LocalPlaylist)
	}
	l.Playlists[name] = pl
	return pl, nil
}

func (l *FakeLibrary) AddItems(ctx context.Context, playlist *models.LocalPlaylist, items []models.LocalMediaItem) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.AddErr != nil {
		return l.AddErr
	}
	l.Added = append(l.Added, AddedItems{Playlist: playlist.Title, Items: items})
	playlist.TrackCount += len(items)
	return nil
}

// MemorySink collects unresolved records in memory
type MemorySink struct {
	mu      sync.Mutex
	Records []models.UnresolvedRecord
	Err     error
}

func (s *MemorySink) Append(ctx context.Context, rec models.UnresolvedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Records = append(s.Records, rec)
	return nil
}

// Track builds a source track credited to artists.
func Track(name string, artists ...string) models.SourceTrack {
	t := models.SourceTrack{ID: name, Name: name}
	for _, a := range artists {
		t.Artists = append(t.Artists, models.SourceArtist{ID: a, Name: a})
	}
	return t
}

// LibraryTrack builds a library track item.
func LibraryTrack(key, title, artist string) models.LocalMediaItem {
	return models.LocalMediaItem{Key: key, Kind: models.KindTrack, Title: title, PrimaryArtist: artist}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
