// package tasks implements the library sync pipeline: fetch, resolve, enqueue.
//
// The core abstraction is SyncEngine, which walks a streaming library,
// resolves each track to a downloadable source, and hands matched tracks to
// the download queue. Operations emit progress updates via channels for
// non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/queue"
	"github.com/desertthunder/tunesync/internal/services"
	"github.com/desertthunder/tunesync/internal/shared"
)

// TrackResolver maps one streaming track to a classified resolution.
type TrackResolver interface {
	Resolve(ctx context.Context, track models.StreamingTrack) models.ResolutionResult
}

// Enqueuer is the slice of the queue manager the engine needs.
type Enqueuer interface {
	Enqueue(job queue.Job) (string, error)
	Subscribe(l queue.Listener)
}

// OutcomeStore persists per-track sync outcomes. The (service, track id) key
// makes re-runs idempotent: completed rows are skipped, everything else is
// retried and the row replaced.
type OutcomeStore interface {
	GetByKey(service, trackID string) (*models.SyncOutcome, error)
	Upsert(outcome *models.SyncOutcome) error
	SetStatus(service, trackID string, status models.OutcomeStatus, detail string) error
}

// TrackCacher stores fetched tracks for cross-service lookups.
// This abstraction allows for easier testing and decoupling from the
// concrete repository.
type TrackCacher interface {
	Cache(track models.StreamingTrack) error
}

// SyncOptions narrows one sync run.
type SyncOptions struct {
	IncludeLiked bool
	PlaylistIDs  []string // empty means all playlists
	DryRun       bool     // resolve and record, but enqueue nothing
}

// AmbiguousTrack pairs a track with the contenders the matcher could not
// separate; surfaced for manual selection.
type AmbiguousTrack struct {
	Track      models.StreamingTrack
	Contenders []models.ScoredCandidate
}

// UnresolvedTrack pairs a track with the reason no source was found.
type UnresolvedTrack struct {
	Track models.StreamingTrack
	Cause string
}

// SyncRunResult contains all data from a full sync run.
type SyncRunResult struct {
	Service     string
	TotalTracks int // every track in the snapshot, duplicates included
	Unique      int // tracks after (service, track id) dedup
	Queued      int
	Skipped     int // already complete or present on disk
	Ambiguous   int
	Unresolved  int

	Resolved         []models.ResolvedTrack
	AmbiguousTracks  []AmbiguousTrack
	UnresolvedTracks []UnresolvedTrack
}

// SyncEngine defines the library sync operations.
type SyncEngine interface {
	// Run performs a full sync: fetch the library, resolve every track, and
	// enqueue downloads for matched tracks.
	Run(ctx context.Context, progress chan<- ProgressUpdate, opts SyncOptions) (*SyncRunResult, error)
}

// Engine implements SyncEngine against a streaming library, a resolver, a
// download queue, and the outcome store.
type Engine struct {
	library  services.Library
	resolver TrackResolver
	queue    Enqueuer
	outcomes OutcomeStore
	cache    TrackCacher
	logger   *log.Logger

	saveLocation string
	bitrate      int
	duplicates   shared.DuplicateStrategy

	subscribed bool
}

// EngineOpts carries optional engine collaborators and settings.
type EngineOpts struct {
	Cache        TrackCacher
	Logger       *log.Logger
	SaveLocation string
	Quality      string // label from shared.QualityOptions
	Duplicates   shared.DuplicateStrategy
}

// NewEngine creates an Engine. The track cache is optional; everything else
// is required.
func NewEngine(library services.Library, resolver TrackResolver, q Enqueuer, outcomes OutcomeStore, opts EngineOpts) *Engine {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.SaveLocation == "" {
		opts.SaveLocation = "."
	}
	if opts.Duplicates == "" {
		opts.Duplicates = shared.DuplicateRename
	}

	return &Engine{
		library:      library,
		resolver:     resolver,
		queue:        q,
		outcomes:     outcomes,
		cache:        opts.Cache,
		logger:       shared.WithLogger(opts.Logger, "component", "sync"),
		saveLocation: opts.SaveLocation,
		bitrate:      shared.QualityBitrate(opts.Quality),
		duplicates:   opts.Duplicates,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full or closed, skip this update
	}
}

// Run performs a full library sync.
func (e *Engine) Run(ctx context.Context, progress chan<- ProgressUpdate, opts SyncOptions) (*SyncRunResult, error) {
	if e.library == nil {
		return nil, fmt.Errorf("%w: library service not initialized", shared.ErrServiceUnavailable)
	}
	if e.resolver == nil || e.queue == nil || e.outcomes == nil {
		return nil, fmt.Errorf("%w: sync engine missing collaborators", shared.ErrServiceUnavailable)
	}

	if !opts.DryRun {
		e.watchQueue()
	}

	e.sendProgress(progress, refreshAuthUpdate(e.library.Name()))
	if err := e.library.RefreshToken(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrNotAuthenticated, err)
	}

	e.sendProgress(progress, fetchLibraryUpdate(e.library.Name()))
	snapshot, err := e.library.FetchLibrary(ctx, services.LibraryOptions{
		IncludeLiked: opts.IncludeLiked,
		PlaylistIDs:  opts.PlaylistIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch library: %v", shared.ErrAPIRequest, err)
	}
	e.sendProgress(progress, libraryFetchedUpdate(snapshot))

	tracks := dedupTracks(snapshot)
	result := &SyncRunResult{
		Service:     e.library.Name(),
		TotalTracks: snapshot.TotalTracks(),
		Unique:      len(tracks),
	}

	total := len(tracks)
	for i, track := range tracks {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		step := i + 1
		e.sendProgress(progress, resolveTrackUpdate(step, total, track))

		if e.cache != nil {
			if err := e.cache.Cache(track); err != nil {
				e.logger.Warn("track cache write failed", "track", track.Key(), "error", err)
			}
		}

		if skipped, why := e.alreadyDone(track); skipped {
			result.Skipped++
			e.sendProgress(progress, trackSkippedUpdate(step, total, track, why))
			continue
		}

		resolution := e.resolver.Resolve(ctx, track)
		switch resolution.Kind {
		case models.ResolutionMatched:
			e.handleMatched(progress, result, track, resolution, step, total, opts.DryRun)
		case models.ResolutionAmbiguous:
			result.Ambiguous++
			result.AmbiguousTracks = append(result.AmbiguousTracks, AmbiguousTrack{
				Track:      track,
				Contenders: resolution.Contenders,
			})
			e.recordOutcome(track, models.OutcomeAmbiguous, 0, "", fmt.Sprintf("%d contenders", len(resolution.Contenders)))
			e.sendProgress(progress, trackAmbiguousUpdate(step, total, track, resolution.Contenders))
		default:
			cause := "no candidate above threshold"
			if resolution.Cause != nil {
				cause = resolution.Cause.Error()
			}
			result.Unresolved++
			result.UnresolvedTracks = append(result.UnresolvedTracks, UnresolvedTrack{Track: track, Cause: cause})
			e.recordOutcome(track, models.OutcomeUnresolved, 0, "", cause)
			e.sendProgress(progress, trackUnresolvedUpdate(step, total, track))
		}
	}

	e.logger.Info("sync run finished",
		"service", result.Service,
		"unique", result.Unique,
		"queued", result.Queued,
		"skipped", result.Skipped,
		"ambiguous", result.Ambiguous,
		"unresolved", result.Unresolved,
	)

	return result, nil
}

// handleMatched enqueues one matched track and records its outcome.
func (e *Engine) handleMatched(progress chan<- ProgressUpdate, result *SyncRunResult, track models.StreamingTrack, resolution models.ResolutionResult, step, total int, dryRun bool) {
	best := *resolution.Best
	resolved := models.ResolvedTrack{
		Track:      track,
		Candidate:  best.Candidate,
		Confidence: best.Confidence,
		MatchedBy:  matchedBy(best),
	}
	result.Resolved = append(result.Resolved, resolved)

	path, skip := shared.ResolveDuplicatePath(e.outputPath(track), e.duplicates)
	if skip {
		result.Skipped++
		e.recordOutcome(track, models.OutcomeComplete, best.Confidence, best.Candidate.SourceID, "file already on disk")
		e.sendProgress(progress, trackSkippedUpdate(step, total, track, "exists"))
		return
	}

	if dryRun {
		result.Queued++
		e.sendProgress(progress, trackQueuedUpdate(step, total, track, best.Confidence))
		return
	}

	// the queued row goes in before the job is handed over; queue events can
	// fire synchronously and must find the row to overwrite, never the reverse
	e.recordOutcome(track, models.OutcomeQueued, best.Confidence, best.Candidate.SourceID, "")

	_, err := e.queue.Enqueue(queue.Job{
		SourceRef:  best.Candidate.SourceID,
		Title:      track.Title,
		Artist:     track.DisplayArtist(),
		OutputPath: path,
		Bitrate:    e.bitrate,
		TrackKey:   track.Key(),
		Metadata: map[string]string{
			"title":  track.Title,
			"artist": track.DisplayArtist(),
			"album":  track.Album,
		},
	})
	if err != nil {
		result.Unresolved++
		result.UnresolvedTracks = append(result.UnresolvedTracks, UnresolvedTrack{Track: track, Cause: err.Error()})
		e.recordOutcome(track, models.OutcomeFailed, best.Confidence, best.Candidate.SourceID, err.Error())
		e.logger.Warn("enqueue failed", "track", track.Key(), "error", err)
		return
	}

	result.Queued++
	e.sendProgress(progress, trackQueuedUpdate(step, total, track, best.Confidence))
}

// alreadyDone reports whether a prior run completed this track.
func (e *Engine) alreadyDone(track models.StreamingTrack) (bool, string) {
	existing, err := e.outcomes.GetByKey(track.Service, track.TrackID)
	if err != nil {
		e.logger.Warn("outcome lookup failed", "track", track.Key(), "error", err)
		return false, ""
	}
	if existing != nil && existing.Status == models.OutcomeComplete {
		return true, "already synced"
	}
	return false, ""
}

// recordOutcome writes the outcome row, logging instead of failing the run.
func (e *Engine) recordOutcome(track models.StreamingTrack, status models.OutcomeStatus, confidence float64, sourceRef, detail string) {
	outcome := &models.SyncOutcome{
		Service:    track.Service,
		TrackID:    track.TrackID,
		Title:      track.Title,
		Artist:     track.DisplayArtist(),
		Status:     status,
		Confidence: confidence,
		SourceRef:  sourceRef,
		Detail:     detail,
	}
	if err := e.outcomes.Upsert(outcome); err != nil {
		e.logger.Warn("outcome write failed", "track", track.Key(), "error", err)
	}
}

// watchQueue registers the listener that folds queue terminal events back
// into the outcome store. Registered once per engine.
func (e *Engine) watchQueue() {
	if e.subscribed {
		return
	}
	e.subscribed = true

	e.queue.Subscribe(func(ev queue.Event) {
		if ev.Item.TrackKey == "" {
			return
		}
		service, trackID, ok := strings.Cut(ev.Item.TrackKey, ":")
		if !ok {
			return
		}

		var status models.OutcomeStatus
		detail := ""
		switch ev.Kind {
		case queue.EventCompleted:
			status = models.OutcomeComplete
			detail = ev.Item.OutputPath
		case queue.EventFailed:
			status = models.OutcomeFailed
			detail = ev.Item.Error
		case queue.EventCancelled:
			status = models.OutcomeFailed
			detail = "download cancelled"
		default:
			return
		}

		if err := e.outcomes.SetStatus(service, trackID, status, detail); err != nil {
			e.logger.Warn("outcome status update failed", "track", ev.Item.TrackKey, "error", err)
		}
	})
}

// outputPath builds the destination file path for one track.
func (e *Engine) outputPath(track models.StreamingTrack) string {
	name := shared.SanitizeFilename(fmt.Sprintf("%s - %s", track.DisplayArtist(), track.Title)) + ".mp3"
	return filepath.Join(e.saveLocation, name)
}

// dedupTracks flattens a snapshot into a unique track list, first occurrence
// wins, playlist order preserved.
func dedupTracks(snapshot *models.LibrarySnapshot) []models.StreamingTrack {
	seen := map[string]bool{}
	var out []models.StreamingTrack

	add := func(tracks []models.StreamingTrack) {
		for _, track := range tracks {
			key := track.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, track)
		}
	}

	for _, pl := range snapshot.Playlists {
		add(pl.Tracks)
	}
	add(snapshot.LikedTracks)

	return out
}

// matchedBy labels how a match was decided for outcome bookkeeping.
func matchedBy(best models.ScoredCandidate) string {
	if best.Reason == "isrc match" {
		return "isrc"
	}
	return "heuristic"
}
