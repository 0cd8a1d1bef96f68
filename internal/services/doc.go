// Package services implements the remote collaborators of a sync: the [Catalog] that playlists are read from
// and the [Library] they are mirrored into.
//
// # Catalog
//
// [SpotifyService] reads public playlists with the OAuth2 client-credentials flow.
// Listings are cursor paginated through [Page]; the cursor is the "next" URL returned by the Web API.
// Unavailable items and podcast episodes are dropped while converting to [models.SourceTrack].
//
// # Library
//
// [PlexService] talks to a Plex Media Server over its XML API:
//   - /hubs/search : free-text search across every hub, non-track results included
//   - /playlists : lookup by title, creation from a server:// item URI
//   - /playlists/{key}/items : additive append
//
// # Transport
//
// Both clients share [APIService], which throttles with a token bucket and retries
// transport failures, 429 and 5xx responses with exponential backoff.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrAPIRequest] : request failed or returned an unexpected status
//   - [shared.ErrRateLimited] : retries exhausted on 429
//   - [shared.ErrServiceUnavailable] : retries exhausted on 5xx
//   - [shared.ErrNotAuthenticated] : credentials rejected
//   - [shared.ErrPlaylistNotFound] : no library playlist with the requested title
package services
