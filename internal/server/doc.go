// Package server provides the loopback HTTP infrastructure for the Spotify
// OAuth flow.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// [Middleware] wraps handlers in reverse order (last added executes first),
// following the standard Go pattern. The [BasicRouter] implementation uses
// [http.ServeMux] internally with method filtering.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the OAuth2 authorization code callback flow. The
// handler validates the state parameter (CSRF protection), exchanges the
// authorization code for tokens, and sends the result through a channel. It
// only processes one callback to prevent replay attacks.
//
// # Usage
//
// When the user runs the auth command, [CallbackServer] starts a temporary
// HTTP server on the loopback address from the configured redirect URI,
// serves the callback page, and shuts down after receiving the OAuth token
// or timing out.
package server
