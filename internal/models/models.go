// package models defines the data model for playlist sync
package models

import (
	"strings"
	"time"
)

// Model defines the base interface for all persistent models.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// SourceArtist is an artist credited on a catalog track.
type SourceArtist struct {
	ID   string
	Name string
}

// SourceTrack is a track as described by the source catalog.
type SourceTrack struct {
	ID      string
	Name    string
	Artists []SourceArtist
	Album   string
}

// FirstArtist returns the name of the first credited artist, or "" when there is none.
func (t SourceTrack) FirstArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0].Name
}

// ArtistNames returns every credited artist name in order.
func (t SourceTrack) ArtistNames() []string {
	names := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		names[i] = a.Name
	}
	return names
}

// SourcePlaylist is a catalog playlist with the first page of its tracks.
//
// TracksNext is the cursor for the following page, empty when Tracks is complete.
type SourcePlaylist struct {
	ID               string
	Name             string
	OwnerID          string
	OwnerDisplayName string
	TrackTotal       int
	Tracks           []SourceTrack
	TracksNext       string
}

// DisplayName is the name of the local playlist this playlist is mirrored into.
func (p SourcePlaylist) DisplayName() string {
	return p.OwnerDisplayName + " - " + p.Name
}

// PlaylistSummary is an entry in a user's playlist listing.
type PlaylistSummary struct {
	ID      string
	Name    string
	OwnerID string
}

// MediaKind distinguishes tracks from other media returned by a library search.
type MediaKind int

const (
	KindOther MediaKind = iota
	KindTrack
)

func (k MediaKind) String() string {
	switch k {
	case KindTrack:
		return "track"
	default:
		return "other"
	}
}

// ParseMediaKind maps a library type name onto a [MediaKind].
func ParseMediaKind(s string) MediaKind {
	if strings.EqualFold(s, "track") {
		return KindTrack
	}
	return KindOther
}

// LocalMediaItem is an item held by the local library.
//
// CompilationArtist is the per-track artist on "Various Artists" style albums, empty otherwise.
type LocalMediaItem struct {
	Key               string
	Kind              MediaKind
	Title             string
	PrimaryArtist     string
	CompilationArtist string
	Album             string
}

// ArtistIdentity returns the artist a source track must be credited to for this item to match.
func (i LocalMediaItem) ArtistIdentity() string {
	if i.CompilationArtist != "" {
		return i.CompilationArtist
	}
	return i.PrimaryArtist
}

// LocalPlaylist is a playlist held by the local library.
type LocalPlaylist struct {
	Key        string
	Title      string
	TrackCount int
}

// UnresolvedRecord is a source track that had no acceptable local match.
type UnresolvedRecord struct {
	TrackName  string
	ArtistName string
	Playlist   string
}
