package tasks

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/queue"
	"github.com/desertthunder/tunesync/internal/shared"
	ts "github.com/desertthunder/tunesync/internal/testing/mocks"
)

// stubResolver returns canned results keyed by track key.
type stubResolver struct {
	results map[string]models.ResolutionResult
	calls   []string
}

func (s *stubResolver) Resolve(ctx context.Context, track models.StreamingTrack) models.ResolutionResult {
	s.calls = append(s.calls, track.Key())
	if res, ok := s.results[track.Key()]; ok {
		return res
	}
	return models.ResolutionResult{Kind: models.ResolutionNotFound}
}

// stubQueue records jobs and lets tests fire queue events at the listener.
type stubQueue struct {
	jobs     []queue.Job
	listener queue.Listener
	err      error
}

func (s *stubQueue) Enqueue(job queue.Job) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.jobs = append(s.jobs, job)
	return fmt.Sprintf("item-%d", len(s.jobs)), nil
}

func (s *stubQueue) Subscribe(l queue.Listener) { s.listener = l }

// instantQueue completes every job synchronously inside Enqueue, modelling a
// download that finishes before the enqueue call returns.
type instantQueue struct {
	listener queue.Listener
}

func (q *instantQueue) Enqueue(job queue.Job) (string, error) {
	if q.listener != nil {
		q.listener(queue.Event{
			Kind: queue.EventCompleted,
			Item: queue.Item{TrackKey: job.TrackKey, OutputPath: job.OutputPath},
		})
	}
	return "item-1", nil
}

func (q *instantQueue) Subscribe(l queue.Listener) { q.listener = l }

// memOutcomes is an in-memory OutcomeStore.
type memOutcomes struct {
	rows map[string]*models.SyncOutcome
}

func newMemOutcomes() *memOutcomes {
	return &memOutcomes{rows: map[string]*models.SyncOutcome{}}
}

func (m *memOutcomes) GetByKey(service, trackID string) (*models.SyncOutcome, error) {
	return m.rows[service+":"+trackID], nil
}

func (m *memOutcomes) Upsert(outcome *models.SyncOutcome) error {
	m.rows[outcome.Key()] = outcome
	return nil
}

func (m *memOutcomes) SetStatus(service, trackID string, status models.OutcomeStatus, detail string) error {
	row, ok := m.rows[service+":"+trackID]
	if !ok {
		return errors.New("outcome not found")
	}
	row.Status = status
	row.Detail = detail
	return nil
}

func track(id, title string) models.StreamingTrack {
	return models.StreamingTrack{
		Service: "spotify",
		TrackID: id,
		Title:   title,
		Artists: []string{"Artist"},
	}
}

func matched(sourceID string, confidence float64) models.ResolutionResult {
	return models.ResolutionResult{
		Kind: models.ResolutionMatched,
		Best: &models.ScoredCandidate{
			Candidate:  models.Candidate{SourceID: sourceID, Title: "video"},
			Confidence: confidence,
			Reason:     "title similarity",
		},
	}
}

func snapshot(playlistTracks, liked []models.StreamingTrack) *models.LibrarySnapshot {
	return &models.LibrarySnapshot{
		Service: "spotify",
		Playlists: []models.Playlist{
			{ID: "pl-1", Name: "Mix", Tracks: playlistTracks},
		},
		LikedTracks: liked,
	}
}

func newTestEngine(lib *ts.MockLibrary, res *stubResolver, q *stubQueue, store *memOutcomes, t *testing.T) *Engine {
	t.Helper()
	return NewEngine(lib, res, q, store, EngineOpts{
		SaveLocation: t.TempDir(),
		Quality:      "Best",
		Duplicates:   shared.DuplicateRename,
	})
}

func TestEngineRunQueuesMatchedTracks(t *testing.T) {
	lib := &ts.MockLibrary{Snapshot: snapshot(
		[]models.StreamingTrack{track("t1", "One"), track("t2", "Two")},
		[]models.StreamingTrack{track("t3", "Three")},
	)}
	res := &stubResolver{results: map[string]models.ResolutionResult{
		"spotify:t1": matched("vid-1", 0.95),
		"spotify:t2": matched("vid-2", 0.81),
		"spotify:t3": matched("vid-3", 0.88),
	}}
	q := &stubQueue{}
	store := newMemOutcomes()

	result, err := newTestEngine(lib, res, q, store, t).Run(context.Background(), nil, SyncOptions{IncludeLiked: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Queued != 3 {
		t.Errorf("Queued = %d, want 3", result.Queued)
	}
	if len(q.jobs) != 3 {
		t.Fatalf("enqueued %d jobs, want 3", len(q.jobs))
	}
	if q.jobs[0].SourceRef != "vid-1" {
		t.Errorf("first job SourceRef = %q, want vid-1", q.jobs[0].SourceRef)
	}
	if q.jobs[0].Bitrate != 320 {
		t.Errorf("Bitrate = %d, want 320 for Best quality", q.jobs[0].Bitrate)
	}

	row, _ := store.GetByKey("spotify", "t1")
	if row == nil || row.Status != models.OutcomeQueued {
		t.Errorf("outcome for t1 = %+v, want queued", row)
	}
	if row.Confidence != 0.95 {
		t.Errorf("outcome confidence = %v, want 0.95", row.Confidence)
	}
}

func TestEngineRunDeduplicatesTracks(t *testing.T) {
	dup := track("t1", "One")
	lib := &ts.MockLibrary{Snapshot: snapshot(
		[]models.StreamingTrack{dup, track("t2", "Two")},
		[]models.StreamingTrack{dup},
	)}
	res := &stubResolver{results: map[string]models.ResolutionResult{
		"spotify:t1": matched("vid-1", 0.9),
		"spotify:t2": matched("vid-2", 0.9),
	}}
	q := &stubQueue{}

	result, err := newTestEngine(lib, res, q, newMemOutcomes(), t).Run(context.Background(), nil, SyncOptions{IncludeLiked: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.TotalTracks != 3 {
		t.Errorf("TotalTracks = %d, want 3", result.TotalTracks)
	}
	if result.Unique != 2 {
		t.Errorf("Unique = %d, want 2", result.Unique)
	}
	if len(q.jobs) != 2 {
		t.Errorf("enqueued %d jobs, want 2", len(q.jobs))
	}
}

func TestEngineRunSkipsCompletedOutcomes(t *testing.T) {
	lib := &ts.MockLibrary{Snapshot: snapshot([]models.StreamingTrack{track("t1", "One")}, nil)}
	res := &stubResolver{results: map[string]models.ResolutionResult{
		"spotify:t1": matched("vid-1", 0.9),
	}}
	q := &stubQueue{}
	store := newMemOutcomes()
	store.Upsert(&models.SyncOutcome{
		Service: "spotify", TrackID: "t1", Title: "One", Artist: "Artist",
		Status: models.OutcomeComplete,
	})

	result, err := newTestEngine(lib, res, q, store, t).Run(context.Background(), nil, SyncOptions{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", result.Skipped)
	}
	if len(res.calls) != 0 {
		t.Errorf("resolver called %d times for completed track, want 0", len(res.calls))
	}
	if len(q.jobs) != 0 {
		t.Errorf("enqueued %d jobs, want 0", len(q.jobs))
	}
}

func TestEngineRunRecordsAmbiguousAndUnresolved(t *testing.T) {
	lib := &ts.MockLibrary{Snapshot: snapshot(
		[]models.StreamingTrack{track("t1", "One"), track("t2", "Two")}, nil,
	)}
	res := &stubResolver{results: map[string]models.ResolutionResult{
		"spotify:t1": {
			Kind: models.ResolutionAmbiguous,
			Contenders: []models.ScoredCandidate{
				{Candidate: models.Candidate{SourceID: "vid-a"}, Confidence: 0.8},
				{Candidate: models.Candidate{SourceID: "vid-b"}, Confidence: 0.78},
			},
		},
		"spotify:t2": {Kind: models.ResolutionNotFound, Cause: errors.New("search timed out")},
	}}
	q := &stubQueue{}
	store := newMemOutcomes()

	result, err := newTestEngine(lib, res, q, store, t).Run(context.Background(), nil, SyncOptions{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Ambiguous != 1 || result.Unresolved != 1 {
		t.Errorf("Ambiguous = %d, Unresolved = %d, want 1 and 1", result.Ambiguous, result.Unresolved)
	}
	if len(result.AmbiguousTracks) != 1 || len(result.AmbiguousTracks[0].Contenders) != 2 {
		t.Errorf("AmbiguousTracks = %+v", result.AmbiguousTracks)
	}

	row, _ := store.GetByKey("spotify", "t1")
	if row == nil || row.Status != models.OutcomeAmbiguous {
		t.Errorf("outcome for t1 = %+v, want ambiguous", row)
	}
	row, _ = store.GetByKey("spotify", "t2")
	if row == nil || row.Status != models.OutcomeUnresolved {
		t.Errorf("outcome for t2 = %+v, want unresolved", row)
	}
	if row != nil && row.Detail != "search timed out" {
		t.Errorf("unresolved detail = %q", row.Detail)
	}
}

func TestEngineQueueEventsUpdateOutcomes(t *testing.T) {
	lib := &ts.MockLibrary{Snapshot: snapshot([]models.StreamingTrack{track("t1", "One")}, nil)}
	res := &stubResolver{results: map[string]models.ResolutionResult{
		"spotify:t1": matched("vid-1", 0.9),
	}}
	q := &stubQueue{}
	store := newMemOutcomes()

	if _, err := newTestEngine(lib, res, q, store, t).Run(context.Background(), nil, SyncOptions{}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if q.listener == nil {
		t.Fatal("engine did not subscribe to queue events")
	}

	q.listener(queue.Event{
		Kind: queue.EventCompleted,
		Item: queue.Item{TrackKey: "spotify:t1", OutputPath: "/music/Artist - One.mp3"},
	})

	row, _ := store.GetByKey("spotify", "t1")
	if row.Status != models.OutcomeComplete {
		t.Errorf("Status = %q, want complete", row.Status)
	}
	if row.Detail != "/music/Artist - One.mp3" {
		t.Errorf("Detail = %q", row.Detail)
	}

	q.listener(queue.Event{
		Kind: queue.EventFailed,
		Item: queue.Item{TrackKey: "spotify:t1", Error: "socket reset"},
	})
	row, _ = store.GetByKey("spotify", "t1")
	if row.Status != models.OutcomeFailed || row.Detail != "socket reset" {
		t.Errorf("after failure: %+v", row)
	}
}

func TestEngineKeepsTerminalOutcomeFromInstantCompletion(t *testing.T) {
	lib := &ts.MockLibrary{Snapshot: snapshot([]models.StreamingTrack{track("t1", "One")}, nil)}
	res := &stubResolver{results: map[string]models.ResolutionResult{
		"spotify:t1": matched("vid-1", 0.9),
	}}
	store := newMemOutcomes()
	q := &instantQueue{}

	engine := NewEngine(lib, res, q, store, EngineOpts{
		SaveLocation: t.TempDir(),
		Quality:      "Best",
		Duplicates:   shared.DuplicateRename,
	})
	if _, err := engine.Run(context.Background(), nil, SyncOptions{}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// the completion event fired inside Enqueue; the queued row must not win
	row, _ := store.GetByKey("spotify", "t1")
	if row == nil || row.Status != models.OutcomeComplete {
		t.Errorf("outcome = %+v, want complete", row)
	}
}

func TestEngineAmbiguousProgressCarriesContenders(t *testing.T) {
	contenders := []models.ScoredCandidate{
		{Candidate: models.Candidate{SourceID: "vid-a"}, Confidence: 0.8},
		{Candidate: models.Candidate{SourceID: "vid-b"}, Confidence: 0.78},
	}
	lib := &ts.MockLibrary{Snapshot: snapshot([]models.StreamingTrack{track("t1", "One")}, nil)}
	res := &stubResolver{results: map[string]models.ResolutionResult{
		"spotify:t1": {Kind: models.ResolutionAmbiguous, Contenders: contenders},
	}}

	progress := make(chan ProgressUpdate, 32)
	_, err := newTestEngine(lib, res, &stubQueue{}, newMemOutcomes(), t).Run(context.Background(), progress, SyncOptions{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	close(progress)

	var carried []models.ScoredCandidate
	for update := range progress {
		if c, ok := update.Data.([]models.ScoredCandidate); ok {
			carried = c
		}
	}
	if len(carried) != 2 {
		t.Fatalf("contenders on progress update = %d, want 2", len(carried))
	}
	if carried[0].Candidate.SourceID != "vid-a" || carried[1].Candidate.SourceID != "vid-b" {
		t.Errorf("contenders = %+v", carried)
	}
}

func TestEngineRunDryRunEnqueuesNothing(t *testing.T) {
	lib := &ts.MockLibrary{Snapshot: snapshot([]models.StreamingTrack{track("t1", "One")}, nil)}
	res := &stubResolver{results: map[string]models.ResolutionResult{
		"spotify:t1": matched("vid-1", 0.9),
	}}
	q := &stubQueue{}

	result, err := newTestEngine(lib, res, q, newMemOutcomes(), t).Run(context.Background(), nil, SyncOptions{DryRun: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Queued != 1 {
		t.Errorf("Queued = %d, want 1 (dry run still tallies)", result.Queued)
	}
	if len(q.jobs) != 0 {
		t.Errorf("enqueued %d jobs during dry run, want 0", len(q.jobs))
	}
}

func TestEngineRunAuthFailure(t *testing.T) {
	lib := &ts.MockLibrary{RefreshErr: errors.New("refresh token revoked")}

	_, err := newTestEngine(lib, &stubResolver{}, &stubQueue{}, newMemOutcomes(), t).Run(context.Background(), nil, SyncOptions{})
	if !errors.Is(err, shared.ErrNotAuthenticated) {
		t.Errorf("err = %v, want ErrNotAuthenticated", err)
	}
}

func TestEngineRunProgressUpdates(t *testing.T) {
	lib := &ts.MockLibrary{Snapshot: snapshot([]models.StreamingTrack{track("t1", "One")}, nil)}
	res := &stubResolver{results: map[string]models.ResolutionResult{
		"spotify:t1": matched("vid-1", 0.9),
	}}

	progress := make(chan ProgressUpdate, 32)
	_, err := newTestEngine(lib, res, &stubQueue{}, newMemOutcomes(), t).Run(context.Background(), progress, SyncOptions{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	close(progress)

	phases := map[Phase]bool{}
	for update := range progress {
		phases[update.Phase] = true
	}
	for _, want := range []Phase{RefreshAuth, FetchLibrary, ResolveTracks, EnqueueTracks} {
		if !phases[want] {
			t.Errorf("no progress update for phase %s", want)
		}
	}
}
