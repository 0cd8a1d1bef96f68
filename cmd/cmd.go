// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

// globalFlags are accepted by every command; each one overrides the matching config.toml value.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
			Sources: cli.EnvVars("PLEXSYNC_CONFIG"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "spotify-uris",
			Usage:   "Comma separated source URIs (spotify:user:<id>[:playlist:<id>])",
			Sources: cli.EnvVars("SPOTIFY_URIS"),
		},
		&cli.StringFlag{
			Name:    "spotify-client-id",
			Usage:   "Spotify application client ID",
			Sources: cli.EnvVars("SPOTIFY_CLIENT_ID", "SPOTIPY_CLIENT_ID"),
		},
		&cli.StringFlag{
			Name:    "spotify-client-secret",
			Usage:   "Spotify application client secret",
			Sources: cli.EnvVars("SPOTIFY_CLIENT_SECRET", "SPOTIPY_CLIENT_SECRET"),
		},
		&cli.StringFlag{
			Name:    "plex-url",
			Usage:   "Base URL of the Plex Media Server",
			Sources: cli.EnvVars("PLEX_URL"),
		},
		&cli.StringFlag{
			Name:    "plex-token",
			Usage:   "Plex access token",
			Sources: cli.EnvVars("PLEX_TOKEN"),
		},
		&cli.BoolFlag{
			Name:    "insecure",
			Usage:   "Skip TLS certificate verification for the Plex server",
			Sources: cli.EnvVars("PLEX_INSECURE_SKIP_VERIFY"),
		},
		&cli.StringFlag{
			Name:    "missing-tracks",
			Usage:   "File unresolved tracks are appended to (empty disables the report)",
			Sources: cli.EnvVars("MISSING_TRACKS_PATH"),
		},
		&cli.BoolFlag{
			Name:    "strict-lookup",
			Usage:   "Skip a playlist when the library lookup fails instead of creating a new one",
			Sources: cli.EnvVars("STRICT_PLAYLIST_LOOKUP"),
		},
		&cli.StringFlag{
			Name:    "database",
			Usage:   "Path to the sync history database",
			Sources: cli.EnvVars("PLEXSYNC_DATABASE"),
		},
	}
}

// syncCommand runs a single sync
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Mirror every configured source playlist into the library once",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Print every progress update",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the run summary as JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.Sync,
	}
}

// serveCommand runs syncs on an interval and exposes the HTTP endpoints
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Sync periodically and serve /healthz, /metrics and /sync",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "host",
				Usage:   "Interface to listen on",
				Sources: cli.EnvVars("PLEXSYNC_HOST"),
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on",
				Sources: cli.EnvVars("PLEXSYNC_PORT"),
			},
			&cli.DurationFlag{
				Name:    "interval",
				Usage:   "Time between scheduled runs (0 runs once at startup)",
				Value:   6 * time.Hour,
				Sources: cli.EnvVars("SYNC_INTERVAL"),
			},
		},
		Action: r.Serve,
	}
}

// resolveCommand matches a single track against the library
func resolveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "resolve",
		Usage: "Resolve one track against the library without writing playlists",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "title",
				Aliases:  []string{"t"},
				Usage:    "Track title as listed in the catalog",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:     "artist",
				Aliases:  []string{"a"},
				Usage:    "Credited artist (repeat for several)",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "playlist",
				Usage: "Playlist name to tag an unresolved record with",
			},
			&cli.BoolFlag{
				Name:  "record",
				Usage: "Append the track to the missing tracks file when unresolved",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Resolve,
	}
}

// catalogCommand handles read-only catalog operations
func catalogCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "Catalog (Spotify) operations",
		Commands: []*cli.Command{
			{
				Name:  "playlists",
				Usage: "List the playlists a user owns",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "user",
						Aliases:  []string{"u"},
						Usage:    "Catalog user ID",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "tracks",
						Usage: "Also list the tracks of each playlist",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.CatalogPlaylists,
			},
		},
	}
}

// historyCommand handles sync history operations
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Inspect recorded sync runs",
		Commands: []*cli.Command{
			{
				Name:  "runs",
				Usage: "List recent sync runs",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of runs to list",
						Value:   20,
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only list runs with this status (running, completed, failed)",
					},
					&cli.BoolFlag{
						Name:  "csv",
						Usage: "Output CSV",
					},
				},
				Action: r.HistoryRuns,
			},
			{
				Name:  "unresolved",
				Usage: "Export the unresolved tracks of a run",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "run",
						Usage: "Run number (defaults to the latest run)",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format (csv, md, txt)",
						Value:   "csv",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to this file instead of stdout",
					},
				},
				Action: r.HistoryUnresolved,
			},
			{
				Name:   "ui",
				Usage:  "Browse sync history interactively",
				Action: r.HistoryUI,
			},
		},
	}
}

// setupCommand handles setup operations for database and configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize the history database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write an example configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Path of the file to create (defaults to --config)",
					},
				},
				Action: r.SetupConfig,
			},
		},
	}
}
