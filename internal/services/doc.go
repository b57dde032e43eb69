// Package services defines the [Library] interface for the Spotify Web API and implements it on top of
// github.com/zmb3/spotify/v2.
//
// # Spotify Implementation
//
// [SpotifyService] owns an [oauth2.Config] built from the client credentials and the spotifyauth endpoints.
// Once authenticated, requests flow through this transport stack:
//
//	oauth2.Transport → TraceTransport (--trace) → rate limiter → http.DefaultTransport
//
// The token source is wrapped so that refreshed tokens are reported through
// [SpotifyService.SetTokenRefreshCallback]; the CLI uses this to keep the [TokenCache] current.
//
// # Pagination
//
// Every paginated endpoint is exposed as a [pager.Source]. Fetch requests the first page with the largest page size
// the endpoint allows and Follow resolves the page's next URL through [spotify.Client.NextPage].
//
// # Error Handling
//
// API failures are wrapped with sentinel errors from the shared package:
//   - [shared.ErrNotAuthenticated] : Authenticate() not called
//   - [shared.ErrTokenExpired] : 401, reauthorization needed
//   - [shared.ErrPlaylistNotFound], [shared.ErrArtistNotFound] : 404 on the respective resource
//   - [shared.ErrServiceUnavailable] : 503, also transient
//   - [shared.ErrAPIRequest] : any other failure; 429 and 5xx responses are additionally marked
//     [shared.ErrTransient] so the pager retries them
package services
