// Package server runs plexsync as a long-lived process.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Scheduling
//
// [Scheduler] owns the single in-flight sync run. The interval loop ([Scheduler.Start]) and
// the HTTP trigger ([SyncHandler]) both go through it, so a second request while a run is
// active is rejected with shared.ErrSyncInProgress (409 over HTTP).
//
// # Endpoints
//
//	GET  /healthz  liveness
//	GET  /metrics  Prometheus metrics from the sync engine registry
//	GET  /sync     scheduler state and last run summary
//	POST /sync     start a run in the background
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
