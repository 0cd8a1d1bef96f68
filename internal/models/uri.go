package models

import (
	"strings"
)

const uriScheme = "spotify:"

// URIShape classifies what a [SourceURIRef] asks to be synced.
type URIShape int

const (
	ShapeInvalid      URIShape = iota // no user, skipped
	ShapeUser                         // every playlist owned by User
	ShapeUserPlaylist                 // one playlist
)

func (s URIShape) String() string {
	switch s {
	case ShapeUser:
		return "user"
	case ShapeUserPlaylist:
		return "user_playlist"
	default:
		return "invalid"
	}
}

// SourceURIRef is the decoded form of a source URI such as "spotify:user:alice:playlist:37i9dQ".
type SourceURIRef struct {
	Raw         string
	User        string
	Playlist    string
	HasUser     bool
	HasPlaylist bool
	Extra       map[string]string
}

// Shape reports which sync branch the reference selects.
func (r SourceURIRef) Shape() URIShape {
	switch {
	case r.HasUser && r.HasPlaylist:
		return ShapeUserPlaylist
	case r.HasUser:
		return ShapeUser
	default:
		return ShapeInvalid
	}
}

// ParseSourceURI decodes "scheme:key1:val1:key2:val2" into a [SourceURIRef].
//
// Segments pair up as key/value, a repeated key keeps its last value and a trailing unpaired segment is dropped.
// Malformed input yields a partial or empty reference, never an error.
func ParseSourceURI(s string) SourceURIRef {
	ref := SourceURIRef{Raw: s}

	segments := strings.Split(strings.TrimPrefix(strings.TrimSpace(s), uriScheme), ":")
	for i := 0; i+1 < len(segments); i += 2 {
		key, value := segments[i], segments[i+1]
		switch key {
		case "user":
			ref.User, ref.HasUser = value, true
		case "playlist":
			ref.Playlist, ref.HasPlaylist = value, true
		default:
			if ref.Extra == nil {
				ref.Extra = make(map[string]string)
			}
			ref.Extra[key] = value
		}
	}

	return ref
}

// ParseSourceURIs parses a comma-separated URI list, ignoring blank entries.
func ParseSourceURIs(list string) []SourceURIRef {
	return ParseSourceURIList(strings.Split(list, ","))
}

// ParseSourceURIList parses each URI, ignoring blank entries.
func ParseSourceURIList(uris []string) []SourceURIRef {
	refs := make([]SourceURIRef, 0, len(uris))
	for _, u := range uris {
		if strings.TrimSpace(u) == "" {
			continue
		}
		refs = append(refs, ParseSourceURI(u))
	}
	return refs
}
