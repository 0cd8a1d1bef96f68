// Package models defines domain entities and persistence interfaces for plexsync.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects: lightweight structs describing the catalog and the library
//   - [SourceTrack], [SourcePlaylist], [PlaylistSummary] : catalog data
//   - [LocalMediaItem], [LocalPlaylist] : Plex library data
//   - [UnresolvedRecord] : a catalog track with no library match
//   - [SourceURIRef] : a parsed source URI, see [ParseSourceURI]
//
// 2. Persistent Entities: sync history rows
//   - [SyncRun] : one orchestrator run with its counts
//   - [UnresolvedTrack] : an unresolved record tied to the run that produced it
//
// Persistent entities implement [Model]; [Repository] defines the CRUD contract the repositories package fulfils.
package models
