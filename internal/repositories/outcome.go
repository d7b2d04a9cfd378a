package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/shared"
)

// OutcomeRepository implements models.Repository[*models.SyncOutcome].
//
// One row per (service, track_id) holds the latest sync outcome for that
// track. The UNIQUE constraint backs the idempotence guarantee: a re-run
// reads completed rows and skips their tracks instead of reprocessing.
type OutcomeRepository struct {
	db *sql.DB
}

// NewOutcomeRepository creates a new OutcomeRepository with the given database connection
func NewOutcomeRepository(db *sql.DB) *OutcomeRepository {
	return &OutcomeRepository{db: db}
}

// Create inserts a new [models.SyncOutcome] with generated ID and sequence
func (r *OutcomeRepository) Create(outcome *models.SyncOutcome) error {
	if err := outcome.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "sync_outcomes")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	outcome.SetID(shared.GenerateID())
	outcome.SetSequence(sequence)
	outcome.Touch(time.Now())

	query := `
		INSERT INTO sync_outcomes (id, sequence, service, track_id, title, artist, status, confidence, source_ref, detail, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		outcome.ID(),
		outcome.Sequence(),
		outcome.Service,
		outcome.TrackID,
		outcome.Title,
		outcome.Artist,
		string(outcome.Status),
		outcome.Confidence,
		outcome.SourceRef,
		outcome.Detail,
		outcome.CreatedAt(),
		outcome.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert outcome: %w", err)
	}

	return nil
}

// Get retrieves an outcome by ID, excluding soft-deleted rows
func (r *OutcomeRepository) Get(id string) (*models.SyncOutcome, error) {
	query := outcomeSelect + ` WHERE id = ? AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByKey retrieves the outcome for a (service, track id) pair.
// Returns nil without error when no row exists.
func (r *OutcomeRepository) GetByKey(service, trackID string) (*models.SyncOutcome, error) {
	query := outcomeSelect + ` WHERE service = ? AND track_id = ? AND deleted_at IS NULL`

	outcome, err := r.scan(r.db.QueryRow(query, service, trackID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return outcome, err
}

// Upsert records an outcome, replacing any prior row for the same track.
// This is the write path the sync run uses; the idempotence key is the
// UNIQUE(service, track_id) constraint.
func (r *OutcomeRepository) Upsert(outcome *models.SyncOutcome) error {
	existing, err := r.GetByKey(outcome.Service, outcome.TrackID)
	if err != nil {
		return err
	}
	if existing == nil {
		return r.Create(outcome)
	}

	outcome.SetID(existing.ID())
	outcome.SetSequence(existing.Sequence())
	return r.Update(outcome)
}

// Update modifies an existing outcome row
func (r *OutcomeRepository) Update(outcome *models.SyncOutcome) error {
	if err := outcome.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	outcome.Touch(now)

	query := `
		UPDATE sync_outcomes
		SET title = ?, artist = ?, status = ?, confidence = ?, source_ref = ?, detail = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		outcome.Title,
		outcome.Artist,
		string(outcome.Status),
		outcome.Confidence,
		outcome.SourceRef,
		outcome.Detail,
		now,
		outcome.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update outcome: %w", err)
	}

	return requireRowAffected(result, "outcome")
}

// SetStatus transitions the outcome for a (service, track id) pair, appending
// detail. Used when a queued download finishes or fails.
func (r *OutcomeRepository) SetStatus(service, trackID string, status models.OutcomeStatus, detail string) error {
	query := `
		UPDATE sync_outcomes
		SET status = ?, detail = ?, updated_at = ?
		WHERE service = ? AND track_id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, string(status), detail, time.Now(), service, trackID)
	if err != nil {
		return fmt.Errorf("failed to update outcome status: %w", err)
	}

	return requireRowAffected(result, "outcome")
}

// Delete soft-deletes an outcome by setting deleted_at
func (r *OutcomeRepository) Delete(id string) error {
	query := `UPDATE sync_outcomes SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete outcome: %w", err)
	}

	return requireRowAffected(result, "outcome")
}

// List retrieves outcomes matching the given criteria (service, status)
func (r *OutcomeRepository) List(criteria map[string]any) ([]*models.SyncOutcome, error) {
	query := outcomeSelect + ` WHERE deleted_at IS NULL`
	args := []any{}

	if service, ok := criteria["service"]; ok {
		query += " AND service = ?"
		args = append(args, service)
	}
	if status, ok := criteria["status"]; ok {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := []*models.SyncOutcome{}
	for rows.Next() {
		outcome, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, rows.Err()
}

// CountByStatus tallies outcomes per status for a service.
func (r *OutcomeRepository) CountByStatus(service string) (map[models.OutcomeStatus]int, error) {
	query := `
		SELECT status, COUNT(*)
		FROM sync_outcomes
		WHERE service = ? AND deleted_at IS NULL
		GROUP BY status
	`

	rows, err := r.db.Query(query, service)
	if err != nil {
		return nil, fmt.Errorf("failed to count outcomes: %w", err)
	}
	defer rows.Close()

	counts := map[models.OutcomeStatus]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[models.OutcomeStatus(status)] = n
	}

	return counts, rows.Err()
}

const outcomeSelect = `
	SELECT id, sequence, service, track_id, title, artist, status, confidence, source_ref, detail, created_at, updated_at
	FROM sync_outcomes
`

func (r *OutcomeRepository) scanOne(row *sql.Row) (*models.SyncOutcome, error) {
	outcome, err := r.scan(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("outcome not found")
	}
	return outcome, err
}

func (r *OutcomeRepository) scan(row rowScanner) (*models.SyncOutcome, error) {
	var (
		outcome   models.SyncOutcome
		id        string
		sequence  int
		status    string
		sourceRef sql.NullString
		detail    sql.NullString
		createdAt time.Time
		updatedAt time.Time
	)

	err := row.Scan(
		&id,
		&sequence,
		&outcome.Service,
		&outcome.TrackID,
		&outcome.Title,
		&outcome.Artist,
		&status,
		&outcome.Confidence,
		&sourceRef,
		&detail,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan outcome: %w", err)
	}

	outcome.SetID(id)
	outcome.SetSequence(sequence)
	outcome.SetTimestamps(createdAt, updatedAt)
	outcome.Status = models.OutcomeStatus(status)
	outcome.SourceRef = sourceRef.String
	outcome.Detail = detail.String

	return &outcome, nil
}
