package events

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/isdelr/schedpanel/internal/metrics"
	"github.com/isdelr/schedpanel/internal/models"
)

// SharedStore is a persistence medium shared by every node of a cluster. It assigns event ids.
type SharedStore interface {
	// Append stores e and returns the id the store assigned to it.
	Append(ctx context.Context, e models.Event) (int64, error)
	// ListFrom returns events with id >= fromID stamped after cutoff, ascending.
	ListFrom(ctx context.Context, fromID int64, cutoff int64) ([]models.Event, error)
	// EvictOlderThan deletes events stamped at or before cutoff and reports how many went.
	EvictOlderThan(ctx context.Context, cutoff int64) (int64, error)
	// EvictOverCapacity deletes all but the newest max events and reports how many went.
	EvictOverCapacity(ctx context.Context, max int) (int64, error)
}

// sharedEvictionGrace keeps shared rows a little longer than the retention window so that
// nodes with slightly skewed clocks do not delete each other's fresh events.
const sharedEvictionGrace = 10 * time.Second

type localBackend struct {
	mu    sync.Mutex
	seq   int64
	store *Store
	max   int
	sink  metrics.Sink
}

func newLocalBackend(store *Store, max int, sink metrics.Sink) *localBackend {
	return &localBackend{store: store, max: max, sink: sink}
}

func (b *localBackend) Mode() string { return metrics.ModeLocal }

// Append takes the id and stores the event under one lock so the log never holds a gap that a
// slower producer fills later.
func (b *localBackend) Append(ctx context.Context, e models.Event) (models.Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	e.ID = b.seq
	b.sink.EventsEvicted(metrics.EvictCapacity, b.store.Ingest(e, b.max))
	return e, nil
}

func (b *localBackend) List(ctx context.Context, sinceID int64, cutoff int64) ([]models.Event, error) {
	return afterCursor(newerThan(b.store.Snapshot(), cutoff), sinceID), nil
}

func (b *localBackend) Evict(ctx context.Context, cutoff int64) error {
	b.EvictLocal(cutoff)
	return nil
}

func (b *localBackend) EvictLocal(cutoff int64) {
	b.sink.EventsEvicted(metrics.EvictRetention, b.store.EvictOlderThan(cutoff))
}

type clusterBackend struct {
	mu      sync.Mutex
	shared  SharedStore
	local   *Store
	max     int
	timeout time.Duration
	sink    metrics.Sink
	lastID  int64

	// pending holds events the shared store has not accepted yet, under provisional ids.
	pending []models.Event
	// retired are provisional ids the shared store re-stamped. As a cursor such an id no
	// longer names a known event.
	retired map[int64]bool
}

func newClusterBackend(shared SharedStore, local *Store, max int, timeout time.Duration, sink metrics.Sink) *clusterBackend {
	return &clusterBackend{
		shared:  shared,
		local:   local,
		max:     max,
		timeout: timeout,
		sink:    sink,
		retired: make(map[int64]bool),
	}
}

func (b *clusterBackend) Mode() string { return metrics.ModeCluster }

// Append hands pending events to the shared store, then e. When the store cannot be reached
// e gets a provisional id after the highest one this node has seen and waits in pending.
func (b *clusterBackend) Append(ctx context.Context, e models.Event) (models.Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	err := b.flushLocked(sctx)
	if err == nil {
		var id int64
		if id, err = b.shared.Append(sctx, e); err == nil {
			e.ID = id
			b.observeLocked(id)
			b.sink.EventsEvicted(metrics.EvictCapacity, b.local.Ingest(e, b.max))
			return e, nil
		}
	}

	b.lastID++
	e.ID = b.lastID
	b.pending = append(b.pending, e)
	b.trimLocked()
	return e, fmt.Errorf("%w: append: %v", ErrDegraded, err)
}

// flushLocked re-appends pending events oldest first. A provisional id is retired unless the
// shared store handed out the same id again.
func (b *clusterBackend) flushLocked(ctx context.Context) error {
	for len(b.pending) > 0 {
		e := b.pending[0]
		provisional := e.ID
		id, err := b.shared.Append(ctx, e)
		if err != nil {
			return err
		}
		if id != provisional {
			b.retireLocked(provisional)
		}
		e.ID = id
		b.observeLocked(id)
		b.pending = b.pending[1:]
		b.sink.EventsEvicted(metrics.EvictCapacity, b.local.Ingest(e, b.max))
	}
	b.pending = nil
	return nil
}

func (b *clusterBackend) retireLocked(id int64) {
	b.retired[id] = true
	for len(b.retired) > b.max {
		oldest := id
		for r := range b.retired {
			oldest = min(oldest, r)
		}
		delete(b.retired, oldest)
	}
}

// trimLocked keeps the local log and pending together within max events. Local events are
// older than pending ones and go first.
func (b *clusterBackend) trimLocked() {
	over := b.local.Len() + len(b.pending) - b.max
	if over <= 0 {
		return
	}
	n := min(over, b.local.Len())
	evicted := b.local.EvictOverCapacity(b.local.Len() - n)
	if rest := over - evicted; rest > 0 {
		clear(b.pending[:rest])
		b.pending = b.pending[rest:]
		evicted += rest
	}
	b.sink.EventsEvicted(metrics.EvictCapacity, evicted)
}

func (b *clusterBackend) Evict(ctx context.Context, cutoff int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.evictLocalLocked(cutoff)

	sctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	grace := sharedEvictionGrace.Milliseconds()
	if _, err := b.shared.EvictOlderThan(sctx, cutoff-grace); err != nil {
		return fmt.Errorf("%w: evict: %v", ErrDegraded, err)
	}
	if _, err := b.shared.EvictOverCapacity(sctx, b.max); err != nil {
		return fmt.Errorf("%w: evict: %v", ErrDegraded, err)
	}
	return nil
}

func (b *clusterBackend) EvictLocal(cutoff int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.evictLocalLocked(cutoff)
}

func (b *clusterBackend) evictLocalLocked(cutoff int64) {
	n := b.local.EvictOlderThan(cutoff)
	i := 0
	for i < len(b.pending) && b.pending[i].Date <= cutoff {
		i++
	}
	if i > 0 {
		clear(b.pending[:i])
		b.pending = b.pending[i:]
	}
	b.sink.EventsEvicted(metrics.EvictRetention, n+i)
}

func (b *clusterBackend) List(ctx context.Context, sinceID int64, cutoff int64) ([]models.Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if err := b.flushLocked(sctx); err != nil {
		return b.localViewLocked(sinceID, cutoff), fmt.Errorf("%w: flush: %v", ErrDegraded, err)
	}
	local := newerThan(b.local.Snapshot(), cutoff)

	from := sinceID
	if from < 0 || b.retired[sinceID] {
		from = 0
	}
	rows, err := b.shared.ListFrom(sctx, from, cutoff)
	if err != nil {
		return b.localViewLocked(sinceID, cutoff), fmt.Errorf("%w: list: %v", ErrDegraded, err)
	}
	merged := b.mergeLocked(rows, local, from)
	switch {
	case len(merged) > b.max:
		// More than max events follow the cursor, so it is no longer in the log.
		return b.wholeLogLocked(merged), nil
	case from == 0:
		return b.wholeLogLocked(merged), nil
	case len(merged) > 0 && merged[0].ID == sinceID:
		return merged[1:], nil
	}

	// The cursor is not in the log: replay everything.
	rows, err = b.shared.ListFrom(sctx, 0, cutoff)
	if err != nil {
		return b.localViewLocked(sinceID, cutoff), fmt.Errorf("%w: list: %v", ErrDegraded, err)
	}
	return b.wholeLogLocked(b.mergeLocked(rows, local, 0)), nil
}

// wholeLogLocked caps an ascending view of the complete log to its newest max events and
// forgets retired ids older than what is left.
func (b *clusterBackend) wholeLogLocked(events []models.Event) []models.Event {
	if len(events) > b.max {
		events = events[len(events)-b.max:]
	}
	if len(events) > 0 {
		for id := range b.retired {
			if id < events[0].ID {
				delete(b.retired, id)
			}
		}
	}
	return events
}

// localViewLocked is the log as this node alone knows it: local and pending events.
func (b *clusterBackend) localViewLocked(sinceID int64, cutoff int64) []models.Event {
	view := append(b.local.Snapshot(), b.pending...)
	view = newerThan(view, cutoff)
	sort.Slice(view, func(i, j int) bool { return view[i].ID < view[j].ID })
	if len(view) > b.max {
		view = view[len(view)-b.max:]
	}
	if b.retired[sinceID] {
		return view
	}
	return afterCursor(view, sinceID)
}

// mergeLocked combines shared rows with local events whose id >= from. Shared copies win on
// duplicate ids; local events only ever carry ids the shared store assigned.
func (b *clusterBackend) mergeLocked(shared, local []models.Event, from int64) []models.Event {
	byID := make(map[int64]models.Event, len(shared)+len(local))
	for _, e := range local {
		if e.ID >= from {
			byID[e.ID] = e
		}
	}
	for _, e := range shared {
		byID[e.ID] = e
		b.observeLocked(e.ID)
	}
	out := make([]models.Event, 0, len(byID))
	for _, e := range byID {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (b *clusterBackend) observeLocked(id int64) {
	if id > b.lastID {
		b.lastID = id
	}
}
