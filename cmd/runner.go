package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/plexsync/internal/models"
	"github.com/desertthunder/plexsync/internal/repositories"
	"github.com/desertthunder/plexsync/internal/services"
	"github.com/desertthunder/plexsync/internal/shared"
	"github.com/desertthunder/plexsync/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	loadConfig bool
	catalog    services.Catalog
	library    services.Library
	db         *sql.DB
	registry   *prometheus.Registry
	metrics    *tasks.Metrics
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Catalog, Library and DB are built from the configuration on first use when nil.
type RunnerOpts struct {
	Config   *shared.Config
	Catalog  services.Catalog
	Library  services.Library
	DB       *sql.DB
	Registry *prometheus.Registry
	Logger   *log.Logger
	Output   io.Writer
}

// NewRunner creates a new Runner with the provided configuration
//
// Without a Config the file named by --config is loaded before the first command runs.
func NewRunner(opts RunnerOpts) *Runner {
	loadConfig := opts.Config == nil
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
		opts.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return &Runner{
		config:     opts.Config,
		loadConfig: loadConfig,
		catalog:    opts.Catalog,
		library:    opts.Library,
		db:         opts.DB,
		registry:   opts.Registry,
		metrics:    tasks.NewMetrics(opts.Registry),
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		syncCommand, serveCommand, resolveCommand, catalogCommand, historyCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads the configuration file, applies flag and environment overrides and sets the log level.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if r.loadConfig {
		config, err := shared.LoadConfigOrDefault(cmd.String("config"))
		if err != nil {
			return ctx, err
		}
		r.config = config
		r.loadConfig = false
	}

	applyFlags(r.config, cmd)

	level, err := shared.ParseLogLevel(r.config.Log.Level)
	if err != nil {
		return ctx, err
	}
	shared.SetLogLevel(r.logger, level)
	return ctx, nil
}

// After closes the history database when a command opened it.
func (r *Runner) After(ctx context.Context, cmd *cli.Command) error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// SetLogger replaces the logger used by the runner and every component it builds afterwards.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// applyFlags copies explicitly set flags (or their environment variables) over the file configuration.
func applyFlags(c *shared.Config, cmd *cli.Command) {
	if cmd.IsSet("spotify-uris") {
		c.Sync.URIs = splitList(cmd.String("spotify-uris"))
	}
	if cmd.IsSet("spotify-client-id") {
		c.Credentials.Spotify.ClientID = cmd.String("spotify-client-id")
	}
	if cmd.IsSet("spotify-client-secret") {
		c.Credentials.Spotify.ClientSecret = cmd.String("spotify-client-secret")
	}
	if cmd.IsSet("plex-url") {
		c.Credentials.Plex.URL = cmd.String("plex-url")
	}
	if cmd.IsSet("plex-token") {
		c.Credentials.Plex.Token = cmd.String("plex-token")
	}
	if cmd.IsSet("insecure") {
		c.Credentials.Plex.InsecureSkipVerify = cmd.Bool("insecure")
	}
	if cmd.IsSet("missing-tracks") {
		c.Sync.MissingTracksPath = cmd.String("missing-tracks")
	}
	if cmd.IsSet("strict-lookup") {
		c.Sync.StrictPlaylistLookup = cmd.Bool("strict-lookup")
	}
	if cmd.IsSet("database") {
		c.Database.Path = cmd.String("database")
	}
	if cmd.IsSet("log-level") {
		c.Log.Level = cmd.String("log-level")
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// catalogService returns the injected catalog or builds a Spotify client from the configuration.
func (r *Runner) catalogService(ctx context.Context) (services.Catalog, error) {
	if r.catalog != nil {
		return r.catalog, nil
	}
	if err := shared.ValidateCatalogConfig(r.config); err != nil {
		return nil, err
	}

	svc, err := services.NewSpotifyService(ctx, services.SpotifyOpts{
		ClientID:          r.config.Credentials.Spotify.ClientID,
		ClientSecret:      r.config.Credentials.Spotify.ClientSecret,
		Timeout:           r.config.HTTP.Timeout.Duration,
		RequestsPerSecond: r.config.HTTP.RequestsPerSecond,
		MaxRetries:        r.config.HTTP.MaxRetries,
		Logger:            shared.WithLogger(r.logger, "service", "spotify"),
	})
	if err != nil {
		return nil, err
	}
	r.catalog = svc
	return svc, nil
}

// libraryService returns the injected library or builds a Plex client from the configuration.
func (r *Runner) libraryService() (services.Library, error) {
	if r.library != nil {
		return r.library, nil
	}
	if err := shared.ValidateLibraryConfig(r.config); err != nil {
		return nil, err
	}

	svc, err := services.NewPlexService(services.PlexOpts{
		URL:                r.config.Credentials.Plex.URL,
		Token:              r.config.Credentials.Plex.Token,
		InsecureSkipVerify: r.config.Credentials.Plex.InsecureSkipVerify,
		Timeout:            r.config.HTTP.Timeout.Duration,
		RequestsPerSecond:  r.config.HTTP.RequestsPerSecond,
		MaxRetries:         r.config.HTTP.MaxRetries,
		Logger:             shared.WithLogger(r.logger, "service", "plex"),
	})
	if err != nil {
		return nil, err
	}
	r.library = svc
	return svc, nil
}

// history bundles the repositories backed by the history database.
type history struct {
	runs       *repositories.SyncRunRepository
	unresolved *repositories.UnresolvedRepository
}

// Runs implements ui.History.
func (h *history) Runs(ctx context.Context, limit int) ([]*models.SyncRun, error) {
	return h.runs.List(map[string]any{"limit": limit})
}

// Unresolved implements ui.History.
func (h *history) Unresolved(ctx context.Context, runID string) ([]*models.UnresolvedTrack, error) {
	return h.unresolved.ListByRun(ctx, runID)
}

// openHistory opens the history database on first use and applies migrations.
func (r *Runner) openHistory() (*history, error) {
	if r.db == nil {
		db, err := shared.OpenHistory(r.config.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to open history database %s: %w", r.config.Database.Path, err)
		}
		r.db = db
	}
	return &history{
		runs:       repositories.NewSyncRunRepository(r.db),
		unresolved: repositories.NewUnresolvedRepository(r.db),
	}, nil
}

// resolver builds a track resolver from the matching configuration.
func (r *Runner) resolver(library services.Library, sink tasks.UnresolvedSink) *tasks.TrackResolver {
	return tasks.NewTrackResolver(tasks.ResolverOpts{
		Library:       library,
		Sink:          sink,
		Logger:        r.logger,
		Metrics:       r.metrics,
		SuffixMarkers: r.config.Matching.SuffixMarkers,
		Substitutions: r.config.Matching.Substitutions,
	})
}

// engine wires the catalog reader, resolver and reconciler into a sync engine.
func (r *Runner) engine(catalog services.Catalog, library services.Library, sink tasks.UnresolvedSink) *tasks.SyncEngine {
	reader := tasks.NewCatalogReader(catalog, r.logger)
	reconciler := tasks.NewPlaylistReconciler(tasks.ReconcilerOpts{
		Catalog:      reader,
		Resolver:     r.resolver(library, sink),
		Library:      library,
		Logger:       r.logger,
		Metrics:      r.metrics,
		StrictLookup: r.config.Sync.StrictPlaylistLookup,
	})

	return tasks.NewSyncEngine(tasks.EngineOpts{
		Catalog:    reader,
		Reconciler: reconciler,
		Logger:     r.logger,
		Metrics:    r.metrics,
	})
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
