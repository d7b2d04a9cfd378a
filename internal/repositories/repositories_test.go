package repositories

import (
	"database/sql"
	"testing"

	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/shared"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db
}

func sampleTrack(service, id string) models.StreamingTrack {
	return models.StreamingTrack{
		Service:  service,
		TrackID:  id,
		Title:    "Paranoid Android",
		Artists:  []string{"Radiohead"},
		Album:    "OK Computer",
		Duration: 386,
		ISRC:     "GBAYE9700124",
	}
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "tracks")
		if err != nil {
			t.Fatalf("NextSequence failed: %v", err)
		}
		if got != want {
			t.Errorf("NextSequence = %d, want %d", got, want)
		}
	}
}

func TestTrackRepositoryCreateAndGet(t *testing.T) {
	repo := NewTrackRepository(setupTestDB(t))

	cached := models.NewCachedTrack(sampleTrack("spotify", "track-1"))
	if err := repo.Create(cached); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if cached.ID() == "" {
		t.Error("Create did not assign an ID")
	}
	if cached.Sequence() != 1 {
		t.Errorf("Sequence = %d, want 1", cached.Sequence())
	}

	got, err := repo.Get(cached.ID())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Track.Title != "Paranoid Android" {
		t.Errorf("Title = %q, want %q", got.Track.Title, "Paranoid Android")
	}
	if got.Track.ISRC != "GBAYE9700124" {
		t.Errorf("ISRC = %q, want %q", got.Track.ISRC, "GBAYE9700124")
	}
}

func TestTrackRepositoryGetByISRC(t *testing.T) {
	repo := NewTrackRepository(setupTestDB(t))

	if err := repo.Create(models.NewCachedTrack(sampleTrack("spotify", "track-1"))); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := repo.GetByISRC("GBAYE9700124")
	if err != nil {
		t.Fatalf("GetByISRC failed: %v", err)
	}
	if got.Track.Service != "spotify" || got.Track.TrackID != "track-1" {
		t.Errorf("GetByISRC returned wrong track: %s:%s", got.Track.Service, got.Track.TrackID)
	}
}

func TestTrackRepositoryCacheDeduplicates(t *testing.T) {
	repo := NewTrackRepository(setupTestDB(t))

	track := sampleTrack("spotify", "track-1")
	if err := repo.Cache(track); err != nil {
		t.Fatalf("Cache failed: %v", err)
	}
	if err := repo.Cache(track); err != nil {
		t.Fatalf("Cache of duplicate failed: %v", err)
	}

	tracks, err := repo.List(map[string]any{"service": "spotify"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(tracks) != 1 {
		t.Errorf("List returned %d tracks, want 1", len(tracks))
	}
}

func TestTrackRepositorySoftDelete(t *testing.T) {
	repo := NewTrackRepository(setupTestDB(t))

	cached := models.NewCachedTrack(sampleTrack("spotify", "track-1"))
	if err := repo.Create(cached); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := repo.Delete(cached.ID()); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := repo.Get(cached.ID()); err == nil {
		t.Error("Get returned a soft-deleted track")
	}
	if err := repo.Delete(cached.ID()); err == nil {
		t.Error("Second delete should report not found")
	}
}

func sampleOutcome(trackID string, status models.OutcomeStatus) *models.SyncOutcome {
	return &models.SyncOutcome{
		Service:    "spotify",
		TrackID:    trackID,
		Title:      "Karma Police",
		Artist:     "Radiohead",
		Status:     status,
		Confidence: 0.91,
		SourceRef:  "vid-abc",
	}
}

func TestOutcomeRepositoryCreateAndGetByKey(t *testing.T) {
	repo := NewOutcomeRepository(setupTestDB(t))

	if err := repo.Create(sampleOutcome("track-1", models.OutcomeQueued)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := repo.GetByKey("spotify", "track-1")
	if err != nil {
		t.Fatalf("GetByKey failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetByKey returned nil for existing outcome")
	}
	if got.Status != models.OutcomeQueued {
		t.Errorf("Status = %q, want %q", got.Status, models.OutcomeQueued)
	}

	missing, err := repo.GetByKey("spotify", "nope")
	if err != nil {
		t.Fatalf("GetByKey for missing row failed: %v", err)
	}
	if missing != nil {
		t.Error("GetByKey should return nil for a missing row")
	}
}

func TestOutcomeRepositoryUpsertReplacesRow(t *testing.T) {
	repo := NewOutcomeRepository(setupTestDB(t))

	if err := repo.Upsert(sampleOutcome("track-1", models.OutcomeQueued)); err != nil {
		t.Fatalf("First upsert failed: %v", err)
	}

	updated := sampleOutcome("track-1", models.OutcomeComplete)
	updated.Confidence = 0.97
	if err := repo.Upsert(updated); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	outcomes, err := repo.List(map[string]any{"service": "spotify"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("List returned %d outcomes, want 1", len(outcomes))
	}
	if outcomes[0].Status != models.OutcomeComplete {
		t.Errorf("Status = %q, want %q", outcomes[0].Status, models.OutcomeComplete)
	}
	if outcomes[0].Confidence != 0.97 {
		t.Errorf("Confidence = %v, want 0.97", outcomes[0].Confidence)
	}
}

func TestOutcomeRepositorySetStatus(t *testing.T) {
	repo := NewOutcomeRepository(setupTestDB(t))

	if err := repo.Create(sampleOutcome("track-1", models.OutcomeQueued)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := repo.SetStatus("spotify", "track-1", models.OutcomeFailed, "transcode exited 1"); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}

	got, err := repo.GetByKey("spotify", "track-1")
	if err != nil {
		t.Fatalf("GetByKey failed: %v", err)
	}
	if got.Status != models.OutcomeFailed {
		t.Errorf("Status = %q, want %q", got.Status, models.OutcomeFailed)
	}
	if got.Detail != "transcode exited 1" {
		t.Errorf("Detail = %q", got.Detail)
	}

	if err := repo.SetStatus("spotify", "nope", models.OutcomeFailed, ""); err == nil {
		t.Error("SetStatus on missing row should fail")
	}
}

func TestOutcomeRepositoryCountByStatus(t *testing.T) {
	repo := NewOutcomeRepository(setupTestDB(t))

	for i, status := range []models.OutcomeStatus{
		models.OutcomeComplete,
		models.OutcomeComplete,
		models.OutcomeAmbiguous,
		models.OutcomeUnresolved,
	} {
		if err := repo.Create(sampleOutcome(string(rune('a'+i)), status)); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	counts, err := repo.CountByStatus("spotify")
	if err != nil {
		t.Fatalf("CountByStatus failed: %v", err)
	}
	if counts[models.OutcomeComplete] != 2 {
		t.Errorf("complete count = %d, want 2", counts[models.OutcomeComplete])
	}
	if counts[models.OutcomeAmbiguous] != 1 {
		t.Errorf("ambiguous count = %d, want 1", counts[models.OutcomeAmbiguous])
	}
}

func TestOutcomeRepositoryValidatesStatus(t *testing.T) {
	repo := NewOutcomeRepository(setupTestDB(t))

	bad := sampleOutcome("track-1", models.OutcomeStatus("bogus"))
	if err := repo.Create(bad); err == nil {
		t.Error("Create should reject an invalid status")
	}
}
