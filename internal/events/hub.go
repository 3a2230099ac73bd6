package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/isdelr/schedpanel/internal/engine"
	"github.com/isdelr/schedpanel/internal/metrics"
	"github.com/isdelr/schedpanel/internal/models"
)

// ErrDegraded marks a push or list that could not reach the shared event store. The event is
// still visible through the local log.
var ErrDegraded = errors.New("shared event store unavailable")

// Backend is where the hub keeps its events.
type Backend interface {
	// Append assigns the next id to e, stores it and enforces the capacity limit.
	Append(ctx context.Context, e models.Event) (models.Event, error)
	// List returns events with id > sinceID stamped after cutoff, ascending. An unknown
	// sinceID yields every stored event stamped after cutoff.
	List(ctx context.Context, sinceID int64, cutoff int64) ([]models.Event, error)
	// Evict removes events stamped at or before cutoff from every medium the backend owns and
	// enforces the capacity limit on shared storage.
	Evict(ctx context.Context, cutoff int64) error
	// EvictLocal applies the cutoff to this process's events only.
	EvictLocal(cutoff int64)
	Mode() string
}

// Publisher receives every event after it has been stored.
type Publisher interface {
	Publish(e models.Event)
}

// Options configures a Hub.
type Options struct {
	MaxCapacity int
	Retention   time.Duration

	// Shared selects clustered mode when non-nil.
	Shared  SharedStore
	Timeout time.Duration // bound on each shared store call, clustered mode only

	Metrics   metrics.Sink
	Publisher Publisher
	Now       func() time.Time
}

// Hub is the scheduler event hub: a bounded, time-windowed log of scheduler events with
// cursor-based retrieval.
type Hub struct {
	backend   Backend
	local     *Store
	retention time.Duration
	metrics   metrics.Sink
	publisher Publisher
	now       func() time.Time
	warn      *rate.Limiter
}

// NewHub builds a hub in single-node mode, or clustered mode when opts.Shared is set.
func NewHub(opts Options) (*Hub, error) {
	if opts.MaxCapacity <= 0 {
		return nil, fmt.Errorf("events: max capacity must be positive, got %d", opts.MaxCapacity)
	}
	if opts.Retention <= 0 {
		return nil, fmt.Errorf("events: retention must be positive, got %s", opts.Retention)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNoopSink()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}

	local := NewStore(opts.MaxCapacity)
	h := &Hub{
		local:     local,
		retention: opts.Retention,
		metrics:   opts.Metrics,
		publisher: opts.Publisher,
		now:       opts.Now,
		warn:      rate.NewLimiter(rate.Every(time.Second), 5),
	}
	if opts.Shared != nil {
		h.backend = newClusterBackend(opts.Shared, local, opts.MaxCapacity, opts.Timeout, opts.Metrics)
	} else {
		h.backend = newLocalBackend(local, opts.MaxCapacity, opts.Metrics)
	}
	return h, nil
}

// Mode reports "local" or "cluster".
func (h *Hub) Mode() string { return h.backend.Mode() }

// Retention is the configured time window.
func (h *Hub) Retention() time.Duration { return h.retention }

// Push records a scheduler notification. A non-nil error wraps ErrDegraded and means the event
// waits on this node, under a provisional id, until the shared store accepts it. The returned
// event is valid in both cases.
func (h *Hub) Push(ctx context.Context, n engine.Notification, exec *engine.ExecutionContext) (models.Event, error) {
	now := h.now()
	ev, err := h.backend.Append(ctx, Transform(0, n, exec, now))
	if err == nil {
		err = h.backend.Evict(ctx, h.cutoff(now))
	} else {
		// The shared store just failed; do not wait on it a second time.
		h.backend.EvictLocal(h.cutoff(now))
	}

	h.metrics.EventIngested(h.backend.Mode())
	h.metrics.EventLogSize(h.local.Len())
	if err != nil {
		h.metrics.IngestDegraded()
	}
	if h.publisher != nil {
		h.publisher.Publish(ev)
	}
	return ev, err
}

// Notify implements engine.Listener. Degraded pushes are logged and never reach the scheduler.
func (h *Hub) Notify(ctx context.Context, n engine.Notification, exec *engine.ExecutionContext) {
	ev, err := h.Push(ctx, n, exec)
	if err != nil && h.warn.Allow() {
		log.Warn().Err(err).
			Int64("event_id", ev.ID).
			Str("kind", string(n.Kind)).
			Str("item_key", n.Key).
			Msg("Event hub: degraded ingestion, event queued for the shared store")
	}
}

// List returns the events after sinceID in ascending id order. A cursor that is not in the log
// returns the whole log. With a shared store that cannot be reached, the local events are
// returned together with an error wrapping ErrDegraded.
func (h *Hub) List(ctx context.Context, sinceID int64) ([]models.Event, error) {
	return h.backend.List(ctx, sinceID, h.cutoff(h.now()))
}

// Sweep applies the retention window without waiting for the next push.
func (h *Hub) Sweep(ctx context.Context) error {
	err := h.backend.Evict(ctx, h.cutoff(h.now()))
	h.metrics.EventLogSize(h.local.Len())
	return err
}

func (h *Hub) cutoff(now time.Time) int64 {
	return now.Add(-h.retention).UnixMilli()
}

// afterCursor applies the cursor rule to an ascending event slice.
func afterCursor(events []models.Event, sinceID int64) []models.Event {
	for i, e := range events {
		if e.ID == sinceID {
			return events[i+1:]
		}
		if e.ID > sinceID {
			break
		}
	}
	return events
}

func newerThan(events []models.Event, cutoff int64) []models.Event {
	out := events[:0]
	for _, e := range events {
		if e.Date > cutoff {
			out = append(out, e)
		}
	}
	return out
}
