package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./plexsync.db" {
			t.Errorf("expected database path ./plexsync.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Server.Interval.Duration != 6*time.Hour {
			t.Errorf("expected interval 6h, got %v", config.Server.Interval.Duration)
		}

		if config.HTTP.Timeout.Duration != 30*time.Second {
			t.Errorf("expected http timeout 30s, got %v", config.HTTP.Timeout.Duration)
		}

		if config.Credentials.Plex.URL != "http://127.0.0.1:32400" {
			t.Errorf("expected plex URL http://127.0.0.1:32400, got %s", config.Credentials.Plex.URL)
		}

		if config.Sync.MissingTracksPath != "missing_tracks.csv" {
			t.Errorf("expected missing tracks path missing_tracks.csv, got %s", config.Sync.MissingTracksPath)
		}

		if len(config.Matching.SuffixMarkers) != 3 {
			t.Fatalf("expected 3 suffix markers, got %d", len(config.Matching.SuffixMarkers))
		}
		if config.Matching.SuffixMarkers[0] != " - Remastered" {
			t.Errorf("expected first marker ' - Remastered', got %q", config.Matching.SuffixMarkers[0])
		}

		if got := config.Matching.Substitutions["α"]; got != "alpha" {
			t.Errorf("expected α substitution alpha, got %q", got)
		}
		if got := config.Matching.Substitutions["✝✝✝"]; got != "crosses" {
			t.Errorf("expected ✝✝✝ substitution crosses, got %q", got)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
path = "/custom/path.db"

[server]
port = 8080
interval = "15m"

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"

[credentials.plex]
url = "https://plex.local:32400"
token = "plex-token"
insecure_skip_verify = true

[sync]
uris = ["spotify:user:alice", "spotify:user:bob:playlist:123"]
strict_playlist_lookup = true

[matching]
suffix_markers = [" - Radio Edit"]
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 8080 {
			t.Errorf("expected server port 8080, got %d", config.Server.Port)
		}

		if config.Server.Interval.Duration != 15*time.Minute {
			t.Errorf("expected interval 15m, got %v", config.Server.Interval.Duration)
		}

		if config.Credentials.Spotify.ClientID != "test_client_id" {
			t.Errorf("expected spotify client_id test_client_id, got %s", config.Credentials.Spotify.ClientID)
		}

		if !config.Credentials.Plex.InsecureSkipVerify {
			t.Error("expected insecure_skip_verify to be true")
		}

		if len(config.Sync.URIs) != 2 {
			t.Errorf("expected 2 uris, got %d", len(config.Sync.URIs))
		}

		if !config.Sync.StrictPlaylistLookup {
			t.Error("expected strict_playlist_lookup to be true")
		}

		if len(config.Matching.SuffixMarkers) != 1 || config.Matching.SuffixMarkers[0] != " - Radio Edit" {
			t.Errorf("expected suffix markers to be replaced, got %v", config.Matching.SuffixMarkers)
		}

		if config.HTTP.MaxRetries != 3 {
			t.Errorf("expected default max_retries 3 to survive, got %d", config.HTTP.MaxRetries)
		}
	})

	t.Run("LoadConfig invalid duration", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[http]\ntimeout = \"soon\"\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		_, err := LoadConfig(configPath)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("LoadConfigOrDefault missing file", func(t *testing.T) {
		config, err := LoadConfigOrDefault(filepath.Join(t.TempDir(), "nope.toml"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if config.Database.Path != DefaultConfig().Database.Path {
			t.Error("expected defaults when config file is missing")
		}
	})
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		c := DefaultConfig()
		c.Credentials.Spotify.ClientID = "id"
		c.Credentials.Spotify.ClientSecret = "secret"
		c.Credentials.Plex.Token = "token"
		c.Sync.URIs = []string{"spotify:user:alice"}
		return c
	}

	t.Run("valid sync config", func(t *testing.T) {
		if err := ValidateSyncConfig(valid()); err != nil {
			t.Errorf("expected valid config, got %v", err)
		}
	})

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing spotify id", mutate: func(c *Config) { c.Credentials.Spotify.ClientID = "" }},
		{name: "missing plex token", mutate: func(c *Config) { c.Credentials.Plex.Token = "" }},
		{name: "bad plex url", mutate: func(c *Config) { c.Credentials.Plex.URL = "not a url" }},
		{name: "no uris", mutate: func(c *Config) { c.Sync.URIs = nil }},
		{name: "empty uri", mutate: func(c *Config) { c.Sync.URIs = []string{""} }},
		{name: "negative retries", mutate: func(c *Config) { c.HTTP.MaxRetries = -1 }},
		{name: "unknown log level", mutate: func(c *Config) { c.Log.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := ValidateSyncConfig(c)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}

	t.Run("catalog config ignores plex", func(t *testing.T) {
		c := valid()
		c.Credentials.Plex.Token = ""
		c.Sync.URIs = nil
		if err := ValidateCatalogConfig(c); err != nil {
			t.Errorf("expected catalog config to be valid, got %v", err)
		}
	})

	t.Run("library config ignores spotify", func(t *testing.T) {
		c := valid()
		c.Credentials.Spotify = SpotifyConfig{}
		if err := ValidateLibraryConfig(c); err != nil {
			t.Errorf("expected library config to be valid, got %v", err)
		}
	})

	t.Run("server port out of range", func(t *testing.T) {
		c := valid()
		c.Server.Port = 70000
		if err := ValidateServerConfig(c); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}
