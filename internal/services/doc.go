// Package services defines the external capabilities the sync core consumes and implements them for Spotify and the YouTube proxy.
//
// # Capability Interfaces
//
// Three narrow interfaces keep the core decoupled from providers:
//   - [Library] : streaming-service library enumeration with auth lifecycle
//   - [Searcher] : candidate search on the video platform
//   - [Downloader] : audio download/transcode with cooperative pause/cancel
//
// # Spotify Implementation
//
// [SpotifyService] uses OAuth2 for authentication with automatic token refresh.
//
// The [oauth2] client transparently refreshes expired tokens using the refresh token, and
// library pagination is paced with a [rate.Limiter] so large libraries stay under API rate limits.
//
// # YouTube Implementation
//
// [YouTubeService] communicates with the local proxy wrapping ytmusicapi (search) and yt-dlp (download).
//
// Downloads are streamed in fixed-size chunks with [Control] flags polled at
// each chunk boundary, which bounds how long pause and cancel take to land.
// Partial artifacts (.part files) are discarded on cancellation.
//
// # Error Handling
//
// Services use typed errors from the shared package:
//   - [shared.ErrNotAuthenticated] : Authenticate() not called
//   - [shared.ErrTokenExpired] : OAuth token expired, reauthorization needed
//   - [shared.ErrSearchFailed] : transient search failure (network, rate limit)
//   - [shared.ErrDownloadFailed] : download or transcode failure
//   - [shared.ErrCancelled] : download stopped at a control checkpoint
package services
