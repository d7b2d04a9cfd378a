package queue

import "time"

// Status represents the lifecycle state of a queue item.
type Status string

const (
	// StatusQueued means the item is accepted but no worker has picked it up
	StatusQueued Status = "queued"

	// StatusDownloading means a worker is transferring audio data
	StatusDownloading Status = "downloading"

	// StatusProcessing means the transfer finished and post-processing is running
	StatusProcessing Status = "processing"

	// StatusPaused means the item is held at a checkpoint until resumed
	StatusPaused Status = "paused"

	// StatusComplete means the item finished successfully
	StatusComplete Status = "complete"

	// StatusError means the item failed after exhausting its retry budget
	StatusError Status = "error"

	// StatusCancelled means the item was cancelled before or during execution
	StatusCancelled Status = "cancelled"
)

func (s Status) String() string {
	return string(s)
}

// Active reports whether a worker currently owns the item.
func (s Status) Active() bool {
	return s == StatusDownloading || s == StatusProcessing
}

// Terminal reports whether the item has reached a final state. Terminal items
// stay in the active set until explicitly cleared; they are never silently
// dropped.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError || s == StatusCancelled
}

// Job describes one download to enqueue.
type Job struct {
	SourceRef  string // opaque handle for the download capability
	Title      string
	Artist     string
	OutputPath string
	Bitrate    int
	Metadata   map[string]string
	TrackKey   string // optional (service, track id) linkage for sync bookkeeping
}

// Item is a read-only snapshot of a queue entry. Mutable state lives inside
// the manager; callers only ever see copies.
type Item struct {
	ID         string
	SourceRef  string
	Title      string
	Artist     string
	OutputPath string
	Bitrate    int
	TrackKey   string

	Status   Status
	Progress float64 // fraction in [0,1]
	Speed    float64 // bytes per second
	ETASec   int     // -1 when unknown
	Error    string  // populated iff Status == StatusError
	Attempts int

	EnqueuedAt time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

// EventKind labels queue lifecycle events.
type EventKind string

const (
	EventQueued    EventKind = "queued"
	EventStarted   EventKind = "started"
	EventProgress  EventKind = "progress"
	EventPaused    EventKind = "paused"
	EventResumed   EventKind = "resumed"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
	EventCancelled EventKind = "cancelled"
	EventRetried   EventKind = "retried"
)

// Event pairs an [EventKind] with the item snapshot taken at emission time.
type Event struct {
	Kind EventKind
	Item Item
}

// Listener receives queue events. Listeners run synchronously on worker
// goroutines and must not block; hand off to a channel for slow consumers.
type Listener func(Event)
