// Package repositories implements SQLite persistence for the sync domain.
//
// Two repositories back the pipeline:
//   - [TrackRepository] : track caching with ISRC-based cross-service lookups
//   - [OutcomeRepository] : per-track sync outcomes keyed by (service, track id)
//
// The outcome table's UNIQUE(service, track_id) constraint is what makes
// repeated sync runs idempotent: a completed row is read back and its track
// skipped instead of reprocessed.
//
// All repositories support soft deletes via deleted_at timestamps and exclude
// deleted records from queries by default. Sequence numbers provide stable,
// human-readable ordering independent of UUIDs and creation timestamps; the
// [NextSequence] function atomically increments per-table sequence counters
// in dedicated sequence tables.
package repositories
