// Package tasks implements the sync engine that mirrors catalog playlists into the local library.
//
// # Components
//
//  1. [CatalogReader] : reads playlists and follows track pagination
//  2. [TrackResolver] : finds the library item for one source track
//     - exact title search, then a cleaned-title search when a suffix marker is present
//     - candidates filtered by kind, title and artist identity, first survivor wins
//     - tracks without a match go to an [UnresolvedSink]
//  3. [PlaylistReconciler] : resolves a whole playlist and creates or appends to the library playlist
//  4. [SyncEngine] : expands source URIs into a playlist queue and reconciles each one in isolation
//
// # Progress Reporting
//
// Operations take a send-only [ProgressUpdate] channel. Updates use select with default to prevent blocking,
// so a slow or absent reader only loses updates.
//
// # Metrics
//
// [Metrics] registers Prometheus counters for runs, playlists, tracks and library searches.
// Every component accepts a nil *Metrics.
package tasks
