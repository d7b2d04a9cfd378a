// package services defines the external capabilities consumed by the sync
// core: streaming libraries, candidate search, and audio download.
package services

import (
	"context"

	"github.com/desertthunder/tunesync/internal/models"
)

// Library is the streaming-service capability (Spotify, Apple Music).
// Token lifecycle is the implementation's responsibility; callers refresh
// before fetching and surface auth failures without retrying.
type Library interface {
	// Authenticate establishes a session from stored credentials or an OAuth
	// exchange. Returns an error wrapping [shared.ErrAuthFailed] on failure.
	Authenticate(ctx context.Context, credentials map[string]string) error

	// RefreshToken renews the access token using the stored refresh token.
	RefreshToken(ctx context.Context) error

	// FetchLibrary returns a snapshot of playlists and liked tracks.
	FetchLibrary(ctx context.Context, opts LibraryOptions) (*models.LibrarySnapshot, error)

	// Name returns the service name (e.g., "spotify")
	Name() string
}

// LibraryOptions narrows what FetchLibrary pulls.
type LibraryOptions struct {
	IncludeLiked bool
	PlaylistIDs  []string // empty means all playlists
}

// Searcher is the video-platform search capability.
type Searcher interface {
	// Search returns up to limit candidates for the query. Failures are
	// network or rate-limit errors wrapping [shared.ErrSearchFailed].
	Search(ctx context.Context, query string, limit int) ([]models.Candidate, error)
}

// Control is polled by a download at its checkpoints (after each data
// chunk). Cooperative, not preemptive: the queue guarantees the signal is
// visible as soon as practical, not an instantaneous halt.
type Control interface {
	Paused() bool
	Cancelled() bool
}

// DownloadPhase labels the stage reported by a progress callback.
type DownloadPhase string

const (
	PhaseDownloading DownloadPhase = "downloading"
	PhaseProcessing  DownloadPhase = "processing"
)

// DownloadProgress is the payload delivered to progress callbacks.
type DownloadProgress struct {
	Phase      DownloadPhase
	BytesDone  int64
	BytesTotal int64   // 0 when unknown
	Speed      float64 // bytes per second
	ETASec     int     // -1 when unknown
}

// DownloadRequest describes one download job.
type DownloadRequest struct {
	SourceRef  string // opaque candidate handle (video id or URL)
	OutputPath string
	Bitrate    int // kbps
	Metadata   map[string]string
}

// ProgressFunc receives progress updates during a download.
type ProgressFunc func(DownloadProgress)

// Downloader is the download/transcode capability.
//
// Whether pause resumes a partial transfer or restarts from zero is a
// property of the implementation, not of the queue that drives it.
type Downloader interface {
	// Download fetches and transcodes audio for the source reference,
	// polling control between chunks and reporting progress. Returns
	// [shared.ErrCancelled] (wrapped) when control requested cancellation.
	Download(ctx context.Context, req DownloadRequest, control Control, progress ProgressFunc) error
}
