// Package server provides the local HTTP plumbing behind `discog auth`.
//
// # Routing
//
// [CallbackRouter] mounts a [Handler]'s routes as GET patterns on an [http.ServeMux] and runs every request through
// its [Middleware] chain, outermost first.
//
// # OAuth Callback Handler
//
// [OAuthHandler] completes the authorization code flow with PKCE. It validates the state parameter, redeems the code
// through an [Exchanger] and sends exactly one [OAuthResult] through its channel. Later callbacks are rejected.
//
// [Listen] and [Server.Serve] run the handler on the host and port of the configured redirect URI until the CLI
// cancels the context.
package server
