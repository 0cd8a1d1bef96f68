package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/plexsync/internal/shared"
)

func newTestSpotify(t *testing.T, mux *http.ServeMux) (*SpotifyService, *httptest.Server) {
	t.Helper()

	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"test_token","token_type":"bearer","expires_in":3600}`)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	srv, err := NewSpotifyService(context.Background(), SpotifyOpts{
		ClientID:     "test_client_id",
		ClientSecret: "test_client_secret",
		BaseURL:      server.URL,
		TokenURL:     server.URL + "/token",
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return srv, server
}

func TestSpotifyService(t *testing.T) {
	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("Missing Client ID", func(t *testing.T) {
			_, err := NewSpotifyService(context.Background(), SpotifyOpts{ClientSecret: "secret"})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Missing Client Secret", func(t *testing.T) {
			_, err := NewSpotifyService(context.Background(), SpotifyOpts{ClientID: "id"})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Name", func(t *testing.T) {
			srv, err := NewSpotifyService(context.Background(), SpotifyOpts{ClientID: "id", ClientSecret: "secret"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if srv.Name() != "Spotify" {
				t.Errorf("expected service name 'Spotify', got %s", srv.Name())
			}
		})
	})

	t.Run("Playlist", func(t *testing.T) {
		mux := http.NewServeMux()
		var auth string
		mux.HandleFunc("GET /playlists/pl1", func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			_, _ = io.WriteString(w, `{
				"id": "pl1",
				"name": "Chill",
				"owner": {"id": "alice", "display_name": "Alice"},
				"tracks": {
					"total": 4,
					"next": "https://api.spotify.com/v1/playlists/pl1/tracks?offset=100",
					"items": [
						{"track": {"id": "t1", "name": "Sunset", "type": "track", "artists": [{"id": "a1", "name": "Amy"}], "album": {"name": "Dusk"}}},
						{"track": null},
						{"track": {"id": "e1", "name": "Episode", "type": "episode", "artists": []}},
						{"track": {"id": "t2", "name": "Dawn", "type": "track", "artists": [{"id": "a2", "name": "Bob"}, {"id": "a3", "name": "Cat"}]}}
					]
				}
			}`)
		})
		srv, _ := newTestSpotify(t, mux)

		playlist, err := srv.Playlist(context.Background(), "alice", "pl1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if auth != "Bearer test_token" {
			t.Errorf("expected bearer token from client credentials, got %q", auth)
		}
		if playlist.DisplayName() != "Alice - Chill" {
			t.Errorf("unexpected display name %q", playlist.DisplayName())
		}
		if playlist.OwnerID != "alice" || playlist.TrackTotal != 4 {
			t.Errorf("unexpected playlist %+v", playlist)
		}
		if len(playlist.Tracks) != 2 {
			t.Fatalf("expected unavailable items and episodes to be dropped, got %d tracks", len(playlist.Tracks))
		}
		if playlist.Tracks[0].Album != "Dusk" || playlist.Tracks[1].FirstArtist() != "Bob" {
			t.Errorf("unexpected tracks %+v", playlist.Tracks)
		}
		if playlist.TracksNext == "" {
			t.Error("expected next cursor for the track listing")
		}
	})

	t.Run("Playlist Not Found", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /playlists/missing", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		srv, _ := newTestSpotify(t, mux)

		_, err := srv.Playlist(context.Background(), "alice", "missing")
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("UserPlaylists", func(t *testing.T) {
		mux := http.NewServeMux()
		var server *httptest.Server
		mux.HandleFunc("GET /users/alice/playlists", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("limit") != "50" {
				t.Errorf("expected limit=50, got %s", r.URL.RawQuery)
			}
			if r.URL.Query().Get("offset") == "50" {
				_, _ = io.WriteString(w, `{"items": [{"id": "p3", "name": "Three", "owner": {"id": "alice"}}], "next": null}`)
				return
			}
			fmt.Fprintf(w, `{"items": [
				{"id": "p1", "name": "One", "owner": {"id": "alice"}},
				{"id": "p2", "name": "Two", "owner": {"id": "bob"}}
			], "next": "%s/users/alice/playlists?limit=50&offset=50"}`, server.URL)
		})
		srv, s := newTestSpotify(t, mux)
		server = s

		page, err := srv.UserPlaylists(context.Background(), "alice", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(page.Items) != 2 || page.Items[1].OwnerID != "bob" {
			t.Errorf("unexpected first page %+v", page.Items)
		}
		if page.Next == "" {
			t.Fatal("expected a next cursor")
		}

		page, err = srv.UserPlaylists(context.Background(), "alice", page.Next)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(page.Items) != 1 || page.Next != "" {
			t.Errorf("unexpected last page %+v", page)
		}
	})

	t.Run("PlaylistTracks", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /playlists/pl1/tracks", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"items": [
				{"track": {"id": "t9", "name": "Late", "type": "track", "artists": [{"id": "a9", "name": "Zed"}]}}
			], "next": null}`)
		})
		srv, _ := newTestSpotify(t, mux)

		page, err := srv.PlaylistTracks(context.Background(), "pl1", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(page.Items) != 1 || page.Items[0].Name != "Late" || page.Next != "" {
			t.Errorf("unexpected page %+v", page)
		}
	})
}
