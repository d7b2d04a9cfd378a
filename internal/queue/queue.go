// Package queue implements the bounded-concurrency download worker pool with
// cooperative pause, resume, and cancel.
//
// The active-item set is the single shared mutable structure; every mutation
// goes through one mutex, and callers only ever receive snapshots. Workers
// pull queued item ids from a channel, so at most Workers items run at any
// instant. One item's failure never stops the pool.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunesync/internal/services"
	"github.com/desertthunder/tunesync/internal/shared"
)

// Backpressure selects the enqueue behavior when the active set is full.
type Backpressure string

const (
	// BackpressureBlock makes Enqueue wait for a free slot
	BackpressureBlock Backpressure = "block"

	// BackpressureReject makes Enqueue return [shared.ErrCapacityExceeded]
	BackpressureReject Backpressure = "reject"
)

// drainPollInterval bounds how often Drain rechecks for idleness.
const drainPollInterval = 50 * time.Millisecond

// Options configures a Manager.
type Options struct {
	Workers      int          // concurrent downloads, default 3
	Capacity     int          // max non-terminal items, default 100
	Backpressure Backpressure // default reject
	MaxRetries   int          // extra attempts after a failed download, default 0
	Logger       *log.Logger
}

// itemState is the manager-owned mutable record behind each snapshot.
// All field access is serialized by Manager.mu; the control flags are read
// by in-flight downloads through the control view.
type itemState struct {
	snapshot Item

	paused    bool
	cancelled bool
	running   bool // a worker currently owns the item
	dropped   bool // a worker consumed the pending entry without running it
	job       Job
}

// control adapts one item's flags to [services.Control] for the downloader.
type control struct {
	m  *Manager
	id string
}

func (c control) Paused() bool {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if st, ok := c.m.items[c.id]; ok {
		return st.paused
	}
	return false
}

func (c control) Cancelled() bool {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if st, ok := c.m.items[c.id]; ok {
		return st.cancelled
	}
	return true
}

// Manager executes download jobs on a bounded worker pool.
type Manager struct {
	downloader services.Downloader
	logger     *log.Logger

	workers    int
	capacity   int
	policy     Backpressure
	maxRetries int

	mu        sync.Mutex
	slotFree  *sync.Cond // signalled when a non-terminal item leaves the active set
	items     map[string]*itemState
	order     []string
	listeners []Listener
	started   bool
	closed    bool

	pending chan string
	wg      sync.WaitGroup
}

// NewManager creates a Manager driving the given download capability.
func NewManager(downloader services.Downloader, opts Options) *Manager {
	if opts.Workers <= 0 {
		opts.Workers = 3
	}
	if opts.Capacity <= 0 {
		opts.Capacity = 100
	}
	if opts.Backpressure == "" {
		opts.Backpressure = BackpressureReject
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	m := &Manager{
		downloader: downloader,
		logger:     shared.WithLogger(opts.Logger, "component", "queue"),
		workers:    opts.Workers,
		capacity:   opts.Capacity,
		policy:     opts.Backpressure,
		maxRetries: opts.MaxRetries,
		items:      make(map[string]*itemState),
		pending:    make(chan string, opts.Capacity+opts.Workers+1),
	}
	m.slotFree = sync.NewCond(&m.mu)

	return m
}

// Subscribe registers a listener for queue events. Listeners registered
// before Start see every event.
func (m *Manager) Subscribe(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Start activates the worker pool. Workers run until Shutdown is called or
// the context is cancelled; calling Start twice is a no-op.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started || m.closed {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	for i := 0; i < m.workers; i++ {
		m.wg.Add(1)
		go m.worker(ctx, i)
	}

	m.logger.Info("worker pool started", "workers", m.workers, "capacity", m.capacity)
}

// Enqueue accepts a job, assigns it a unique id, and appends it to the
// active set in the queued state. Returns immediately under the reject
// policy; under the block policy it waits for a free slot.
func (m *Manager) Enqueue(job Job) (string, error) {
	m.mu.Lock()

	for m.activeLocked() >= m.capacity {
		if m.closed {
			m.mu.Unlock()
			return "", shared.ErrQueueClosed
		}
		if m.policy == BackpressureReject {
			m.mu.Unlock()
			return "", fmt.Errorf("%w: %d items active", shared.ErrCapacityExceeded, m.capacity)
		}
		m.slotFree.Wait()
	}

	if m.closed {
		m.mu.Unlock()
		return "", shared.ErrQueueClosed
	}

	id := shared.GenerateID()
	st := &itemState{
		job: job,
		snapshot: Item{
			ID:         id,
			SourceRef:  job.SourceRef,
			Title:      job.Title,
			Artist:     job.Artist,
			OutputPath: job.OutputPath,
			Bitrate:    job.Bitrate,
			TrackKey:   job.TrackKey,
			Status:     StatusQueued,
			ETASec:     -1,
			EnqueuedAt: time.Now().UTC(),
		},
	}
	m.items[id] = st
	m.order = append(m.order, id)
	snap := st.snapshot
	// the channel buffer covers the full capacity, so this never blocks; the
	// send happens under the mutex so Shutdown cannot close the channel first
	m.pending <- id
	m.mu.Unlock()

	m.emit(Event{Kind: EventQueued, Item: snap})
	return id, nil
}

// Pause holds an item at its next checkpoint. Items that have not started
// move directly to paused without running. Whether resuming continues a
// partial transfer or restarts it is a property of the download capability,
// not of the queue.
func (m *Manager) Pause(id string) error {
	m.mu.Lock()
	st, ok := m.items[id]
	if !ok {
		m.mu.Unlock()
		return shared.ErrItemNotFound
	}
	if st.snapshot.Status.Terminal() || st.paused {
		m.mu.Unlock()
		return nil
	}

	st.paused = true
	st.snapshot.Status = StatusPaused
	snap := st.snapshot
	m.mu.Unlock()

	m.emit(Event{Kind: EventPaused, Item: snap})
	return nil
}

// Resume releases a paused item. In-flight items pick up from their
// checkpoint; items whose pending entry a worker already dropped are put
// back on the pending channel.
func (m *Manager) Resume(id string) error {
	m.mu.Lock()
	st, ok := m.items[id]
	if !ok {
		m.mu.Unlock()
		return shared.ErrItemNotFound
	}
	if !st.paused || st.cancelled {
		m.mu.Unlock()
		return nil
	}

	st.paused = false
	if st.running {
		st.snapshot.Status = StatusDownloading
	} else {
		st.snapshot.Status = StatusQueued
	}
	if st.dropped && !m.closed {
		st.dropped = false
		m.pending <- id
	}
	snap := st.snapshot
	m.mu.Unlock()

	m.emit(Event{Kind: EventResumed, Item: snap})
	return nil
}

// Cancel stops an item. Queued items are removed before they ever run;
// in-flight items are signalled and stop at their next checkpoint, and the
// download capability discards any partial artifact.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	st, ok := m.items[id]
	if !ok {
		m.mu.Unlock()
		return shared.ErrItemNotFound
	}
	if st.snapshot.Status.Terminal() {
		m.mu.Unlock()
		return nil
	}

	st.cancelled = true
	st.paused = false
	// items without a worker attached finish here; in-flight items stop at
	// their next checkpoint and the worker finalizes them
	idle := !st.running
	if idle {
		m.finishLocked(st, StatusCancelled, "")
	}
	snap := st.snapshot
	m.mu.Unlock()

	if idle {
		m.emit(Event{Kind: EventCancelled, Item: snap})
	}
	return nil
}

// Status returns a read-only snapshot of one item.
func (m *Manager) Status(id string) (Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.items[id]
	if !ok {
		return Item{}, shared.ErrItemNotFound
	}
	return st.snapshot, nil
}

// List returns snapshots of every item in enqueue order.
func (m *Manager) List() []Item {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Item, 0, len(m.order))
	for _, id := range m.order {
		if st, ok := m.items[id]; ok {
			out = append(out, st.snapshot)
		}
	}
	return out
}

// Clear evicts terminal items from the active set.
func (m *Manager) Clear() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.order[:0]
	removed := 0
	for _, id := range m.order {
		st := m.items[id]
		if st != nil && st.snapshot.Status.Terminal() {
			delete(m.items, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	return removed
}

// Drain blocks until every item in the active set is terminal.
func (m *Manager) Drain(ctx context.Context) error {
	for {
		m.mu.Lock()
		idle := m.activeLocked() == 0
		m.mu.Unlock()
		if idle {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(drainPollInterval):
		}
	}
}

// Shutdown stops accepting work and waits for in-flight downloads to finish.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.slotFree.Broadcast()
	m.mu.Unlock()

	close(m.pending)
	m.wg.Wait()
	m.logger.Info("worker pool stopped")
}

// activeLocked counts non-terminal items. Callers hold m.mu.
func (m *Manager) activeLocked() int {
	n := 0
	for _, st := range m.items {
		if !st.snapshot.Status.Terminal() {
			n++
		}
	}
	return n
}

// finishLocked moves an item to a terminal state. Callers hold m.mu.
func (m *Manager) finishLocked(st *itemState, status Status, errDetail string) {
	st.running = false
	st.snapshot.Status = status
	st.snapshot.Error = errDetail
	st.snapshot.FinishedAt = time.Now().UTC()
	m.slotFree.Broadcast()
}

// emit delivers an event to every listener. Runs outside the mutex; the
// snapshot was taken while it was held.
func (m *Manager) emit(ev Event) {
	m.mu.Lock()
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, l := range listeners {
		l(ev)
	}
}

// worker pulls queued ids and executes them until the pending channel closes
// or the context is cancelled.
func (m *Manager) worker(ctx context.Context, n int) {
	defer m.wg.Done()
	logger := shared.WithLogger(m.logger, "worker", n)

	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-m.pending:
			if !ok {
				return
			}
			m.run(ctx, logger, id)
		}
	}
}

// run executes one item, honoring pause/cancel before and during the job.
func (m *Manager) run(ctx context.Context, logger *log.Logger, id string) {
	m.mu.Lock()
	st, ok := m.items[id]
	if !ok || st.snapshot.Status.Terminal() {
		m.mu.Unlock()
		return
	}
	if st.paused {
		// drop the entry instead of parking the worker; Resume requeues it
		st.dropped = true
		m.mu.Unlock()
		return
	}
	st.running = true
	st.snapshot.Status = StatusDownloading
	if st.snapshot.StartedAt.IsZero() {
		st.snapshot.StartedAt = time.Now().UTC()
	}
	st.snapshot.Attempts++
	req := services.DownloadRequest{
		SourceRef:  st.job.SourceRef,
		OutputPath: st.job.OutputPath,
		Bitrate:    st.job.Bitrate,
		Metadata:   st.job.Metadata,
	}
	snap := st.snapshot
	m.mu.Unlock()

	m.emit(Event{Kind: EventStarted, Item: snap})
	logger.Info("download started", "item", id, "title", snap.Title)

	err := m.downloader.Download(ctx, req, control{m: m, id: id}, func(p services.DownloadProgress) {
		m.onProgress(id, p)
	})

	switch {
	case err == nil:
		m.complete(id)
		logger.Info("download complete", "item", id)
	case errors.Is(err, shared.ErrCancelled) || errors.Is(err, context.Canceled):
		m.markCancelled(id)
		logger.Info("download cancelled", "item", id)
	default:
		if m.retry(id) {
			logger.Warn("download failed, retrying", "item", id, "error", err)
			return
		}
		m.fail(id, err)
		logger.Error("download failed", "item", id, "error", err)
	}
}

// onProgress folds a downloader progress report into the item snapshot.
// Paused items keep their paused status; the downloader is stalled at a
// checkpoint in that case anyway.
func (m *Manager) onProgress(id string, p services.DownloadProgress) {
	m.mu.Lock()
	st, ok := m.items[id]
	if !ok || st.snapshot.Status.Terminal() {
		m.mu.Unlock()
		return
	}

	if p.BytesTotal > 0 {
		st.snapshot.Progress = float64(p.BytesDone) / float64(p.BytesTotal)
	}
	st.snapshot.Speed = p.Speed
	st.snapshot.ETASec = p.ETASec
	if !st.paused {
		switch p.Phase {
		case services.PhaseProcessing:
			st.snapshot.Status = StatusProcessing
		default:
			st.snapshot.Status = StatusDownloading
		}
	}
	snap := st.snapshot
	m.mu.Unlock()

	m.emit(Event{Kind: EventProgress, Item: snap})
}

// complete finalizes a successful item, passing through processing so the
// status sequence never skips a phase.
func (m *Manager) complete(id string) {
	m.mu.Lock()
	st, ok := m.items[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	if st.cancelled {
		m.finishLocked(st, StatusCancelled, "")
		snap := st.snapshot
		m.mu.Unlock()
		m.emit(Event{Kind: EventCancelled, Item: snap})
		return
	}

	if st.snapshot.Status != StatusProcessing {
		st.snapshot.Status = StatusProcessing
		snap := st.snapshot
		m.mu.Unlock()
		m.emit(Event{Kind: EventProgress, Item: snap})
		m.mu.Lock()
		st, ok = m.items[id]
		if !ok {
			m.mu.Unlock()
			return
		}
	}

	st.snapshot.Progress = 1.0
	st.snapshot.Speed = 0
	st.snapshot.ETASec = 0
	m.finishLocked(st, StatusComplete, "")
	snap := st.snapshot
	m.mu.Unlock()

	m.emit(Event{Kind: EventCompleted, Item: snap})
}

// retry requeues a failed item when attempts remain. Returns true when the
// item went back to queued.
func (m *Manager) retry(id string) bool {
	m.mu.Lock()
	st, ok := m.items[id]
	if !ok || st.cancelled || m.closed || st.snapshot.Attempts > m.maxRetries {
		m.mu.Unlock()
		return false
	}

	st.running = false
	st.snapshot.Status = StatusQueued
	st.snapshot.Progress = 0
	st.snapshot.Speed = 0
	st.snapshot.ETASec = -1
	snap := st.snapshot
	m.pending <- id
	m.mu.Unlock()

	m.emit(Event{Kind: EventRetried, Item: snap})
	return true
}

func (m *Manager) fail(id string, cause error) {
	m.mu.Lock()
	st, ok := m.items[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	m.finishLocked(st, StatusError, cause.Error())
	snap := st.snapshot
	m.mu.Unlock()

	m.emit(Event{Kind: EventFailed, Item: snap})
}

func (m *Manager) markCancelled(id string) {
	m.mu.Lock()
	st, ok := m.items[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	if st.snapshot.Status.Terminal() {
		m.mu.Unlock()
		return
	}
	m.finishLocked(st, StatusCancelled, "")
	snap := st.snapshot
	m.mu.Unlock()

	m.emit(Event{Kind: EventCancelled, Item: snap})
}
