package models

import (
	"fmt"
	"strings"
	"time"
)

// Model defines the base interface for all persistent entities.
// Implementations include CachedTrack and SyncOutcome.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// StreamingTrack is the canonical representation of a track sourced from a
// streaming service. Immutable once fetched; identity is (Service, TrackID).
type StreamingTrack struct {
	Service     string
	TrackID     string
	Title       string
	Artists     []string
	Album       string
	AlbumArtist string
	TrackNumber int
	DiscNumber  int
	Duration    int    // Duration in seconds
	ISRC        string // International Standard Recording Code for matching
	ArtworkURL  string
	ReleaseDate string
}

// Key returns the identity key used for idempotent sync bookkeeping.
func (t StreamingTrack) Key() string {
	return t.Service + ":" + t.TrackID
}

// DisplayArtist returns a human readable artist string.
func (t StreamingTrack) DisplayArtist() string {
	if len(t.Artists) > 0 {
		return strings.Join(t.Artists, ", ")
	}
	if t.AlbumArtist != "" {
		return t.AlbumArtist
	}
	return "Unknown"
}

// CanonicalQuery builds the primary search query: artist + title.
func (t StreamingTrack) CanonicalQuery() string {
	pieces := []string{}
	if artist := t.DisplayArtist(); artist != "Unknown" {
		pieces = append(pieces, artist)
	}
	pieces = append(pieces, t.Title)
	return strings.Join(pieces, " ")
}

// RelaxedQuery builds the fallback query with the artist dropped.
// Compensates for search-engine query sensitivity.
func (t StreamingTrack) RelaxedQuery() string {
	return t.Title
}

// Candidate represents a search result considered as a possible match for a
// streaming track. Produced transiently per resolution attempt; not persisted.
type Candidate struct {
	SourceID  string // Opaque handle usable by the download capability
	URL       string
	Title     string
	Channel   string
	Duration  int // Duration in seconds
	ViewCount int64
	Official  bool
	ISRC      string // Rarely present; authoritative when it is
}

// ScoredCandidate pairs a candidate with its matcher confidence.
type ScoredCandidate struct {
	Candidate  Candidate
	Confidence float64
	Reason     string
}

// ResolutionKind enumerates resolver outcomes.
type ResolutionKind int

const (
	ResolutionNotFound ResolutionKind = iota
	ResolutionMatched
	ResolutionAmbiguous
)

func (k ResolutionKind) String() string {
	switch k {
	case ResolutionMatched:
		return "matched"
	case ResolutionAmbiguous:
		return "ambiguous"
	default:
		return "not_found"
	}
}

// ResolutionResult is the outcome of resolving one streaming track.
//
// Matched carries exactly one best candidate; Ambiguous carries two or more
// contenders within the ambiguity margin of each other; NotFound may carry
// the underlying cause when the search capability failed.
type ResolutionResult struct {
	Kind       ResolutionKind
	Best       *ScoredCandidate
	Contenders []ScoredCandidate
	Cause      error
}

// ResolvedTrack is the final mapping between a streaming track and its source.
type ResolvedTrack struct {
	Track      StreamingTrack
	Candidate  Candidate
	Confidence float64
	MatchedBy  string // isrc, heuristic, or manual
}

// Playlist represents a playlist or library collection.
type Playlist struct {
	ID          string
	Name        string
	Description string
	Owner       string
	TrackCount  int
	Public      bool
	Tracks      []StreamingTrack
}

// LibrarySnapshot is the result of one library fetch: playlists plus liked
// tracks, taken at a point in time.
type LibrarySnapshot struct {
	Service     string
	FetchedAt   time.Time
	Playlists   []Playlist
	LikedTracks []StreamingTrack
}

// TotalTracks counts every track in the snapshot, playlists and likes.
func (s LibrarySnapshot) TotalTracks() int {
	total := len(s.LikedTracks)
	for _, pl := range s.Playlists {
		total += len(pl.Tracks)
	}
	return total
}

// OutcomeStatus enumerates recorded per-track sync outcomes.
type OutcomeStatus string

const (
	OutcomeQueued     OutcomeStatus = "queued"
	OutcomeComplete   OutcomeStatus = "complete"
	OutcomeAmbiguous  OutcomeStatus = "ambiguous"
	OutcomeUnresolved OutcomeStatus = "unresolved"
	OutcomeFailed     OutcomeStatus = "failed"
)

// meta holds the persistence bookkeeping shared by database-backed entities.
type meta struct {
	id        string
	sequence  int
	createdAt time.Time
	updatedAt time.Time
}

func (m *meta) ID() string           { return m.id }
func (m *meta) Sequence() int        { return m.sequence }
func (m *meta) CreatedAt() time.Time { return m.createdAt }
func (m *meta) UpdatedAt() time.Time { return m.updatedAt }

// SetID assigns the generated identifier (repositories call this on create).
func (m *meta) SetID(id string) { m.id = id }

// SetSequence assigns the table sequence number.
func (m *meta) SetSequence(seq int) { m.sequence = seq }

// Touch updates the timestamps, setting createdAt on first call.
func (m *meta) Touch(now time.Time) {
	if m.createdAt.IsZero() {
		m.createdAt = now
	}
	m.updatedAt = now
}

// SetTimestamps restores persisted timestamps when scanning rows.
func (m *meta) SetTimestamps(createdAt, updatedAt time.Time) {
	m.createdAt = createdAt
	m.updatedAt = updatedAt
}

// CachedTrack is a database-backed copy of a fetched track, kept so ISRC
// lookups work across services without refetching.
type CachedTrack struct {
	meta
	Track StreamingTrack
}

// NewCachedTrack wraps a streaming track for persistence.
func NewCachedTrack(track StreamingTrack) *CachedTrack {
	return &CachedTrack{Track: track}
}

func (c *CachedTrack) Validate() error {
	if c.Track.Service == "" || c.Track.TrackID == "" {
		return fmt.Errorf("cached track requires service and track id")
	}
	if c.Track.Title == "" {
		return fmt.Errorf("cached track requires a title")
	}
	return nil
}

// SyncOutcome records the terminal state of one track within a sync run.
type SyncOutcome struct {
	meta
	Service    string
	TrackID    string
	Title      string
	Artist     string
	Status     OutcomeStatus
	Confidence float64
	SourceRef  string
	Detail     string
}

func (o *SyncOutcome) Validate() error {
	if o.Service == "" || o.TrackID == "" {
		return fmt.Errorf("sync outcome requires service and track id")
	}
	switch o.Status {
	case OutcomeQueued, OutcomeComplete, OutcomeAmbiguous, OutcomeUnresolved, OutcomeFailed:
		return nil
	default:
		return fmt.Errorf("invalid outcome status: %q", o.Status)
	}
}

// Key returns the idempotence key (service, service-native track id).
func (o *SyncOutcome) Key() string {
	return o.Service + ":" + o.TrackID
}
