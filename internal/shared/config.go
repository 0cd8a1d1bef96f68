package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Sync        SyncConfig        `toml:"sync"`
	Matching    MatchingConfig    `toml:"matching"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	HTTP        HTTPConfig        `toml:"http"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	Plex    PlexConfig    `toml:"plex"`
}

// SpotifyConfig contains Spotify client-credentials settings.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id" validate:"required"`
	ClientSecret string `toml:"client_secret" validate:"required"`
}

// PlexConfig contains the Plex server address and access token.
type PlexConfig struct {
	URL                string `toml:"url" validate:"required,url"`
	Token              string `toml:"token" validate:"required"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

// SyncConfig lists the sources to mirror and where unresolved tracks are reported.
type SyncConfig struct {
	URIs                 []string `toml:"uris" validate:"required,min=1,dive,required"`
	MissingTracksPath    string   `toml:"missing_tracks_path"`
	StrictPlaylistLookup bool     `toml:"strict_playlist_lookup"`
}

// MatchingConfig tunes the title-cleaning fallback and the artist glyph substitutions used for reports.
type MatchingConfig struct {
	SuffixMarkers []string          `toml:"suffix_markers"`
	Substitutions map[string]string `toml:"substitutions"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains settings for serve mode.
type ServerConfig struct {
	Host     string   `toml:"host"`
	Port     int      `toml:"port" validate:"gte=0,lte=65535"`
	Interval Duration `toml:"interval"`
}

// HTTPConfig controls timeouts, throttling and retries for outbound API calls.
type HTTPConfig struct {
	Timeout           Duration `toml:"timeout"`
	RequestsPerSecond float64  `toml:"requests_per_second" validate:"gte=0"`
	MaxRetries        int      `toml:"max_retries" validate:"gte=0,lte=10"`
}

// LogConfig sets the default log level.
type LogConfig struct {
	Level string `toml:"level" validate:"omitempty,oneof=debug info warn error"`
}

// Duration wraps [time.Duration] so it can be written as "30s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// LoadConfigOrDefault loads path when it exists and falls back to [DefaultConfig] otherwise.
func LoadConfigOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return DefaultConfig(), nil
	}
	return LoadConfig(path)
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
