package repositories

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/shared"
)

// TrackRepository implements models.Repository[*models.CachedTrack].
//
// Every fetched track is cached here so cross-service ISRC lookups work
// without refetching the source library. Soft deletes keep history.
type TrackRepository struct {
	db *sql.DB
}

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// Create inserts a new [models.CachedTrack] into the database with generated ID and sequence
func (r *TrackRepository) Create(track *models.CachedTrack) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "tracks")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	track.SetID(shared.GenerateID())
	track.SetSequence(sequence)
	track.Touch(time.Now())

	query := `
		INSERT INTO tracks (id, sequence, service, service_id, title, artist, album, duration, isrc, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		track.ID(),
		track.Sequence(),
		track.Track.Service,
		track.Track.TrackID,
		track.Track.Title,
		track.Track.DisplayArtist(),
		track.Track.Album,
		track.Track.Duration,
		track.Track.ISRC,
		track.CreatedAt(),
		track.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}

	return nil
}

// Get retrieves a track by ID, excluding soft-deleted tracks
func (r *TrackRepository) Get(id string) (*models.CachedTrack, error) {
	query := `
		SELECT id, sequence, service, service_id, title, artist, album, duration, isrc, created_at, updated_at
		FROM tracks
		WHERE id = ? AND deleted_at IS NULL
	`

	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByServiceID retrieves a track by service and service-native id
func (r *TrackRepository) GetByServiceID(service, serviceID string) (*models.CachedTrack, error) {
	query := `
		SELECT id, sequence, service, service_id, title, artist, album, duration, isrc, created_at, updated_at
		FROM tracks
		WHERE service = ? AND service_id = ? AND deleted_at IS NULL
	`

	return r.scanOne(r.db.QueryRow(query, service, serviceID))
}

// GetByISRC retrieves a track by ISRC code across any service
func (r *TrackRepository) GetByISRC(isrc string) (*models.CachedTrack, error) {
	query := `
		SELECT id, sequence, service, service_id, title, artist, album, duration, isrc, created_at, updated_at
		FROM tracks
		WHERE isrc = ? AND deleted_at IS NULL
		LIMIT 1
	`

	return r.scanOne(r.db.QueryRow(query, isrc))
}

// Update modifies an existing track in the database
func (r *TrackRepository) Update(track *models.CachedTrack) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	track.Touch(now)

	query := `
		UPDATE tracks
		SET title = ?, artist = ?, album = ?, duration = ?, isrc = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		track.Track.Title,
		track.Track.DisplayArtist(),
		track.Track.Album,
		track.Track.Duration,
		track.Track.ISRC,
		now,
		track.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update track: %w", err)
	}

	return requireRowAffected(result, "track")
}

// Delete soft-deletes a track by setting deleted_at
func (r *TrackRepository) Delete(id string) error {
	query := `UPDATE tracks SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}

	return requireRowAffected(result, "track")
}

// List retrieves tracks matching the given criteria (service, isrc)
func (r *TrackRepository) List(criteria map[string]any) ([]*models.CachedTrack, error) {
	query := `
		SELECT id, sequence, service, service_id, title, artist, album, duration, isrc, created_at, updated_at
		FROM tracks
		WHERE deleted_at IS NULL
	`
	args := []any{}

	if service, ok := criteria["service"]; ok {
		query += " AND service = ?"
		args = append(args, service)
	}
	if isrc, ok := criteria["isrc"]; ok {
		query += " AND isrc = ?"
		args = append(args, isrc)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}
	defer rows.Close()

	tracks := []*models.CachedTrack{}
	for rows.Next() {
		track, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}

	return tracks, rows.Err()
}

// Cache stores a fetched track, silently skipping duplicates.
// Only actual failures surface; UNIQUE constraint violations do not.
func (r *TrackRepository) Cache(track models.StreamingTrack) error {
	existing, err := r.GetByServiceID(track.Service, track.TrackID)
	if err == nil && existing != nil {
		return nil
	}

	if err := r.Create(models.NewCachedTrack(track)); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil
		}
		return fmt.Errorf("failed to cache track: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *TrackRepository) scanOne(row *sql.Row) (*models.CachedTrack, error) {
	track, err := r.scan(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("track not found")
	}
	return track, err
}

func (r *TrackRepository) scan(row rowScanner) (*models.CachedTrack, error) {
	var (
		track     models.CachedTrack
		id        string
		sequence  int
		artist    string
		album     sql.NullString
		duration  sql.NullInt64
		isrc      sql.NullString
		createdAt time.Time
		updatedAt time.Time
	)

	err := row.Scan(
		&id,
		&sequence,
		&track.Track.Service,
		&track.Track.TrackID,
		&track.Track.Title,
		&artist,
		&album,
		&duration,
		&isrc,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}

	track.SetID(id)
	track.SetSequence(sequence)
	track.SetTimestamps(createdAt, updatedAt)
	track.Track.Artists = []string{artist}
	track.Track.Album = album.String
	track.Track.Duration = int(duration.Int64)
	track.Track.ISRC = isrc.String

	return &track, nil
}

func requireRowAffected(result sql.Result, entity string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s not found", entity)
	}
	return nil
}
