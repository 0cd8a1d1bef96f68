// Package repositories implements persistence for sync history and unresolved track reports.
//
// Key Implementations:
//   - [SyncRunRepository] : sync run history with soft deletes, implements models.Repository
//   - [UnresolvedRepository] : unresolved tracks keyed by run, see [UnresolvedRepository.SinkForRun]
//   - [UnresolvedFileSink] : plain "{track}, {artist}" report file, one line per record
//
// Sequence numbers provide stable, human-readable ordering (run #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
