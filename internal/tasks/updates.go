package tasks

import (
	"fmt"

	"github.com/desertthunder/tunesync/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	RefreshAuth Phase = iota
	FetchLibrary
	ResolveTracks
	EnqueueTracks
	RecordOutcomes
)

func (p Phase) String() string {
	switch p {
	case RefreshAuth:
		return "refresh_auth"
	case FetchLibrary:
		return "fetch_library"
	case ResolveTracks:
		return "resolve_tracks"
	case EnqueueTracks:
		return "enqueue_tracks"
	case RecordOutcomes:
		return "record_outcomes"
	default:
		return ""
	}
}

func refreshAuthUpdate(service string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RefreshAuth,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Refreshing %s session...", service),
	}
}

func fetchLibraryUpdate(service string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchLibrary,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching library from %s...", service),
	}
}

func libraryFetchedUpdate(snapshot *models.LibrarySnapshot) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchLibrary,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetched %d playlists, %d liked tracks", len(snapshot.Playlists), len(snapshot.LikedTracks)),
		Data:    snapshot,
	}
}

func resolveTrackUpdate(step, total int, track models.StreamingTrack) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s - %s", step, total, track.DisplayArtist(), track.Title),
	}
}

func trackQueuedUpdate(step, total int, track models.StreamingTrack, confidence float64) ProgressUpdate {
	return ProgressUpdate{
		Phase:   EnqueueTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s - %s (%.0f%%)", step, total, track.DisplayArtist(), track.Title, confidence*100),
	}
}

func trackSkippedUpdate(step, total int, track models.StreamingTrack, why string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   EnqueueTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ↷ %s - %s (%s)", step, total, track.DisplayArtist(), track.Title, why),
	}
}

func trackAmbiguousUpdate(step, total int, track models.StreamingTrack, contenders []models.ScoredCandidate) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ? %s - %s (%d contenders)", step, total, track.DisplayArtist(), track.Title, len(contenders)),
		Data:    contenders,
	}
}

func trackUnresolvedUpdate(step, total int, track models.StreamingTrack) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s - %s (no match)", step, total, track.DisplayArtist(), track.Title),
	}
}
