package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/plexsync/internal/models"
	"github.com/desertthunder/plexsync/internal/services"
	"github.com/desertthunder/plexsync/internal/shared"
	tu "github.com/desertthunder/plexsync/internal/testing"
)

type runnerFixture struct {
	runner  *Runner
	output  *bytes.Buffer
	config  *shared.Config
	catalog *tu.FakeCatalog
	library *tu.FakeLibrary
}

func aliceCatalog() *tu.FakeCatalog {
	return &tu.FakeCatalog{
		Playlists: map[string]*models.SourcePlaylist{
			"chill": {
				ID: "chill", Name: "Chill", OwnerID: "alice", OwnerDisplayName: "alice", TrackTotal: 1,
				Tracks: []models.SourceTrack{tu.Track("Sunset - Remastered", "Amy")},
			},
		},
		UserPages: map[string]map[string]*services.Page[models.PlaylistSummary]{
			"alice": {"": {Items: []models.PlaylistSummary{
				{ID: "chill", Name: "Chill", OwnerID: "alice"},
				{ID: "followed", Name: "Followed", OwnerID: "bob"},
			}}},
		},
	}
}

func newRunnerFixture(t *testing.T, library *tu.FakeLibrary) runnerFixture {
	t.Helper()
	dir := t.TempDir()

	config := shared.DefaultConfig()
	config.Sync.URIs = []string{"spotify:user:alice:playlist:chill"}
	config.Sync.MissingTracksPath = filepath.Join(dir, "missing_tracks.csv")
	config.Database.Path = filepath.Join(dir, "history.db")

	catalog := aliceCatalog()
	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config:  config,
		Catalog: catalog,
		Library: library,
		Logger:  log.New(io.Discard),
		Output:  output,
	})

	return runnerFixture{runner: runner, output: output, config: config, catalog: catalog, library: library}
}

// run executes args against the full command tree.
func (f runnerFixture) run(args ...string) error {
	app := &cli.Command{
		Name:     "plexsync",
		Flags:    globalFlags(),
		Before:   f.runner.Before,
		After:    f.runner.After,
		Commands: f.runner.register(),
	}
	return app.Run(context.Background(), append([]string{"plexsync"}, args...))
}

func matchingLibrary() *tu.FakeLibrary {
	return &tu.FakeLibrary{Results: map[string][]models.LocalMediaItem{
		"Sunset": {tu.LibraryTrack("42", "Sunset", "Amy")},
	}}
}

func mismatchedLibrary() *tu.FakeLibrary {
	return &tu.FakeLibrary{Results: map[string][]models.LocalMediaItem{
		"Sunset": {tu.LibraryTrack("42", "Sunset", "Bob")},
	}}
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			catalog := &tu.FakeCatalog{}
			library := &tu.FakeLibrary{}

			runner := NewRunner(RunnerOpts{
				Config:  config,
				Logger:  logger,
				Output:  output,
				Catalog: catalog,
				Library: library,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.loadConfig {
				t.Error("expected provided config not to be reloaded")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.catalog != catalog || runner.library != library {
				t.Error("expected services to be set")
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil || !runner.loadConfig {
				t.Error("expected default config to be set and the config file to be loaded later")
			}
			if runner.logger == nil || runner.output == nil {
				t.Error("expected default logger and output")
			}
			if runner.registry == nil || runner.metrics == nil {
				t.Error("expected a metrics registry")
			}
		})
	})

	t.Run("Before", func(t *testing.T) {
		t.Run("loads config file", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := shared.CreateConfigFile(path); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			runner := NewRunner(RunnerOpts{Logger: log.New(io.Discard), Output: &bytes.Buffer{}})
			f := runnerFixture{runner: runner}
			if err := f.run("--config", path, "--log-level", "debug", "setup", "config", "-o", filepath.Join(t.TempDir(), "copy.toml")); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if runner.loadConfig {
				t.Error("expected config to be loaded")
			}
			if runner.config.Log.Level != "debug" || runner.logger.GetLevel() != log.DebugLevel {
				t.Errorf("expected debug level, got %q", runner.config.Log.Level)
			}
		})

		t.Run("environment overrides", func(t *testing.T) {
			t.Setenv("SPOTIFY_URIS", "spotify:user:bob, spotify:user:carol:playlist:x,")
			t.Setenv("SPOTIPY_CLIENT_ID", "id-from-alias")
			t.Setenv("PLEX_URL", "https://plex.local:32400")
			t.Setenv("PLEX_TOKEN", "secret")

			f := newRunnerFixture(t, matchingLibrary())
			if err := f.run("history", "runs"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			c := f.runner.config
			if len(c.Sync.URIs) != 2 || c.Sync.URIs[1] != "spotify:user:carol:playlist:x" {
				t.Errorf("unexpected uris %v", c.Sync.URIs)
			}
			if c.Credentials.Spotify.ClientID != "id-from-alias" {
				t.Errorf("expected SPOTIPY_ alias to apply, got %q", c.Credentials.Spotify.ClientID)
			}
			if c.Credentials.Plex.URL != "https://plex.local:32400" || c.Credentials.Plex.Token != "secret" {
				t.Errorf("unexpected plex credentials %+v", c.Credentials.Plex)
			}
		})

		t.Run("invalid log level", func(t *testing.T) {
			f := newRunnerFixture(t, matchingLibrary())
			if err := f.run("--log-level", "loud", "history", "runs"); !errors.Is(err, shared.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	})
}

func TestSyncCommand(t *testing.T) {
	t.Run("creates playlist and records run", func(t *testing.T) {
		f := newRunnerFixture(t, matchingLibrary())

		if err := f.run("sync"); err != nil {
			t.Fatalf("sync failed: %v", err)
		}

		if len(f.library.Created) != 1 || f.library.Created[0].Name != "alice - Chill" {
			t.Fatalf("expected alice - Chill to be created, got %+v", f.library.Created)
		}
		out := f.output.String()
		if !strings.Contains(out, "alice - Chill: created, 1/1 matched") {
			t.Errorf("unexpected output:\n%s", out)
		}
		if !strings.Contains(out, "run #1") {
			t.Errorf("expected run number in output:\n%s", out)
		}

		f.output.Reset()
		if err := f.run("history", "runs", "--csv"); err != nil {
			t.Fatalf("history runs failed: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(f.output.String()), "\n")
		if len(lines) != 2 || !strings.HasPrefix(lines[1], "1,") || !strings.Contains(lines[1], ",completed,") {
			t.Errorf("unexpected history:\n%s", f.output.String())
		}
	})

	t.Run("rerun updates existing playlist", func(t *testing.T) {
		f := newRunnerFixture(t, matchingLibrary())

		for range 2 {
			if err := f.run("sync"); err != nil {
				t.Fatalf("sync failed: %v", err)
			}
		}
		if len(f.library.Created) != 1 || len(f.library.Added) != 1 {
			t.Errorf("expected one create and one update, got %d and %d", len(f.library.Created), len(f.library.Added))
		}
	})

	t.Run("records unresolved tracks", func(t *testing.T) {
		f := newRunnerFixture(t, mismatchedLibrary())

		if err := f.run("sync"); err != nil {
			t.Fatalf("sync failed: %v", err)
		}
		if len(f.library.Created) != 0 {
			t.Errorf("expected no playlist writes, got %+v", f.library.Created)
		}

		tu.AssertFileExists(t, f.config.Sync.MissingTracksPath)
		if got := tu.MustReadFile(t, f.config.Sync.MissingTracksPath); got != "Sunset, Amy\n" {
			t.Errorf("unexpected missing tracks file %q", got)
		}

		f.output.Reset()
		if err := f.run("history", "unresolved", "--format", "txt"); err != nil {
			t.Fatalf("history unresolved failed: %v", err)
		}
		if !strings.Contains(f.output.String(), "1. Amy - Sunset [alice - Chill]") {
			t.Errorf("unexpected export:\n%s", f.output.String())
		}
	})

	t.Run("json summary", func(t *testing.T) {
		f := newRunnerFixture(t, matchingLibrary())

		if err := f.run("sync", "--json"); err != nil {
			t.Fatalf("sync failed: %v", err)
		}

		var summary runSummary
		if err := json.Unmarshal(f.output.Bytes(), &summary); err != nil {
			t.Fatalf("invalid JSON output: %v\n%s", err, f.output.String())
		}
		if summary.Run != 1 || summary.Counts.Created != 1 || len(summary.Playlists) != 1 {
			t.Errorf("unexpected summary %+v", summary)
		}
		if summary.Playlists[0].Action != "created" {
			t.Errorf("unexpected action %q", summary.Playlists[0].Action)
		}
	})

	t.Run("no sources", func(t *testing.T) {
		f := newRunnerFixture(t, matchingLibrary())
		f.config.Sync.URIs = nil

		if err := f.run("sync"); !errors.Is(err, shared.ErrNoSources) {
			t.Errorf("expected ErrNoSources, got %v", err)
		}
	})

	t.Run("missing credentials abort before syncing", func(t *testing.T) {
		dir := t.TempDir()
		config := shared.DefaultConfig()
		config.Sync.URIs = []string{"spotify:user:alice"}
		config.Database.Path = filepath.Join(dir, "history.db")

		runner := NewRunner(RunnerOpts{Config: config, Logger: log.New(io.Discard), Output: &bytes.Buffer{}})
		f := runnerFixture{runner: runner}

		if err := f.run("sync"); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestResolveCommand(t *testing.T) {
	t.Run("matched after cleaning", func(t *testing.T) {
		f := newRunnerFixture(t, matchingLibrary())

		if err := f.run("resolve", "--title", "Sunset - Remastered", "--artist", "Amy"); err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		out := f.output.String()
		if !strings.Contains(out, `Sunset (cleaned from "Sunset - Remastered")`) || !strings.Contains(out, "Amy - Sunset [42]") {
			t.Errorf("unexpected output:\n%s", out)
		}
		if len(f.library.Created) != 0 {
			t.Error("resolve must not write playlists")
		}
	})

	t.Run("unresolved is only recorded on request", func(t *testing.T) {
		f := newRunnerFixture(t, mismatchedLibrary())

		if err := f.run("resolve", "-t", "Sunset", "-a", "Amy"); err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if strings.Contains(f.output.String(), "✓") {
			t.Errorf("expected no match:\n%s", f.output.String())
		}

		if err := f.run("resolve", "-t", "Sunset", "-a", "Amy", "--record"); err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if got := tu.MustReadFile(t, f.config.Sync.MissingTracksPath); got != "Sunset, Amy\n" {
			t.Errorf("expected a single recorded line, got %q", got)
		}
	})

	t.Run("search failure", func(t *testing.T) {
		lib := &tu.FakeLibrary{SearchErrs: map[string][]error{"Sunset": {shared.ErrAPIRequest}}}
		f := newRunnerFixture(t, lib)

		if err := f.run("resolve", "-t", "Sunset", "-a", "Amy"); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

func TestCatalogCommand(t *testing.T) {
	f := newRunnerFixture(t, matchingLibrary())

	if err := f.run("catalog", "playlists", "--user", "alice", "--tracks", "--json"); err != nil {
		t.Fatalf("catalog playlists failed: %v", err)
	}

	var listings []playlistListing
	if err := json.Unmarshal(f.output.Bytes(), &listings); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if len(listings) != 1 {
		t.Fatalf("expected only owned playlists, got %+v", listings)
	}
	if listings[0].LocalName != "alice - Chill" || len(listings[0].Tracks) != 1 || listings[0].Tracks[0] != "Amy - Sunset - Remastered" {
		t.Errorf("unexpected listing %+v", listings[0])
	}
}

func TestHistoryCommands(t *testing.T) {
	t.Run("empty history", func(t *testing.T) {
		f := newRunnerFixture(t, matchingLibrary())

		if err := f.run("history", "runs"); err != nil {
			t.Fatalf("history runs failed: %v", err)
		}
		if !strings.Contains(f.output.String(), "No sync runs recorded") {
			t.Errorf("unexpected output:\n%s", f.output.String())
		}

		if err := f.run("history", "unresolved"); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("export to file", func(t *testing.T) {
		f := newRunnerFixture(t, mismatchedLibrary())
		if err := f.run("sync"); err != nil {
			t.Fatalf("sync failed: %v", err)
		}

		path := filepath.Join(t.TempDir(), "missing.md")
		if err := f.run("history", "unresolved", "--run", "1", "--format", "md", "-o", path); err != nil {
			t.Fatalf("export failed: %v", err)
		}
		if content := tu.MustReadFile(t, path); !strings.Contains(content, "## alice - Chill") {
			t.Errorf("unexpected export:\n%s", content)
		}
	})

	t.Run("invalid format", func(t *testing.T) {
		f := newRunnerFixture(t, matchingLibrary())
		if err := f.run("history", "unresolved", "--format", "xml"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestSetupCommands(t *testing.T) {
	t.Run("database", func(t *testing.T) {
		f := newRunnerFixture(t, matchingLibrary())
		if err := f.run("setup", "database"); err != nil {
			t.Fatalf("setup database failed: %v", err)
		}
		tu.AssertFileExists(t, f.config.Database.Path)
	})

	t.Run("config", func(t *testing.T) {
		f := newRunnerFixture(t, matchingLibrary())
		path := filepath.Join(t.TempDir(), "config.toml")

		if err := f.run("setup", "config", "--output", path); err != nil {
			t.Fatalf("setup config failed: %v", err)
		}
		if _, err := shared.LoadConfig(path); err != nil {
			t.Errorf("written config does not load: %v", err)
		}
		if err := f.run("setup", "config", "--output", path); err == nil {
			t.Error("expected an error when the file already exists")
		}
	})
}

func TestApplyFlagsHelpers(t *testing.T) {
	got := splitList(" a , ,b,")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("splitList() = %v", got)
	}
}

func TestWriteHelpers(t *testing.T) {
	t.Run("write failure", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Config: shared.DefaultConfig(), Output: &tu.FWriter{}, Logger: log.New(io.Discard)})

		if err := runner.writeJSON(map[string]int{"run": 1}, false); err == nil {
			t.Error("expected writeJSON to fail")
		}
		if err := runner.writePlain("hello %s", "world"); err == nil {
			t.Error("expected writePlain to fail")
		}
	})

	t.Run("newline failure", func(t *testing.T) {
		buf := &bytes.Buffer{}
		w := tu.NewLimitedWriter(1, 0, buf)
		runner := NewRunner(RunnerOpts{Config: shared.DefaultConfig(), Output: &w, Logger: log.New(io.Discard)})

		err := runner.writeJSON(map[string]int{"run": 1}, true)
		if err == nil || !strings.Contains(err.Error(), "newline") {
			t.Errorf("expected newline write error, got %v", err)
		}
		if !strings.Contains(buf.String(), `"run": 1`) {
			t.Errorf("expected indented JSON, got %q", buf.String())
		}
	})

	t.Run("unmarshalable value", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Config: shared.DefaultConfig(), Output: &bytes.Buffer{}, Logger: log.New(io.Discard)})
		if err := runner.writeJSON(make(chan int), false); err == nil {
			t.Error("expected marshal error")
		}
	})
}
