package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/isdelr/schedpanel/internal/engine"
	"github.com/isdelr/schedpanel/internal/models"
	"github.com/isdelr/schedpanel/internal/testutil"
)

var started = engine.Notification{Kind: engine.SchedulerStarted}

func newTestHub(t *testing.T, opts Options) *Hub {
	t.Helper()
	h, err := NewHub(opts)
	if err != nil {
		t.Fatalf("NewHub: %v", err)
	}
	return h
}

// memShared is an in-memory SharedStore standing in for a database shared by several nodes.
type memShared struct {
	mu     sync.Mutex
	seq    int64
	events []models.Event
	fail   bool
}

var errUnreachable = errors.New("connection refused")

func (m *memShared) setFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

func (m *memShared) Append(ctx context.Context, e models.Event) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return 0, errUnreachable
	}
	m.seq++
	e.ID = m.seq
	m.events = append(m.events, e)
	return e.ID, nil
}

func (m *memShared) ListFrom(ctx context.Context, fromID, cutoff int64) ([]models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, errUnreachable
	}
	var out []models.Event
	for _, e := range m.events {
		if e.ID >= fromID && e.Date > cutoff {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memShared) EvictOlderThan(ctx context.Context, cutoff int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return 0, errUnreachable
	}
	kept := m.events[:0]
	var n int64
	for _, e := range m.events {
		if e.Date > cutoff {
			kept = append(kept, e)
		} else {
			n++
		}
	}
	m.events = kept
	return n, nil
}

func (m *memShared) EvictOverCapacity(ctx context.Context, max int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return 0, errUnreachable
	}
	over := len(m.events) - max
	if over <= 0 {
		return 0, nil
	}
	m.events = append([]models.Event(nil), m.events[over:]...)
	return int64(over), nil
}

func (m *memShared) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.Event
}

func (p *recordingPublisher) Publish(e models.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func TestNewHub_RejectsBadLimits(t *testing.T) {
	t.Parallel()
	if _, err := NewHub(Options{MaxCapacity: 0, Retention: time.Hour}); err == nil {
		t.Error("expected error for zero capacity")
	}
	if _, err := NewHub(Options{MaxCapacity: 10, Retention: 0}); err == nil {
		t.Error("expected error for zero retention")
	}
}

func TestHub_IDsAscendFromOne(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)
	pub := &recordingPublisher{}
	h := newTestHub(t, Options{MaxCapacity: 10, Retention: time.Hour, Publisher: pub})

	for want := int64(1); want <= 3; want++ {
		ev, err := h.Push(ctx, started, nil)
		if err != nil {
			t.Fatalf("Push: %v", err)
		}
		if ev.ID != want {
			t.Errorf("id = %d, want %d", ev.ID, want)
		}
	}
	if len(pub.events) != 3 {
		t.Errorf("published %d events, want 3", len(pub.events))
	}
	if h.Mode() != "local" {
		t.Errorf("Mode = %q", h.Mode())
	}
}

func TestHub_BoundedGrowth(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)
	h := newTestHub(t, Options{MaxCapacity: 5, Retention: time.Hour})

	for i := 0; i < 12; i++ {
		h.Push(ctx, started, nil)
	}
	got, err := h.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !equalIDs(ids(got), 8, 9, 10, 11, 12) {
		t.Errorf("ids = %v, want the newest five", ids(got))
	}
}

func TestHub_AgeEviction(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)
	clock := testutil.NewFakeClock(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC))
	h := newTestHub(t, Options{MaxCapacity: 100, Retention: time.Minute, Now: clock.Now})

	h.Push(ctx, started, nil)
	clock.Advance(30 * time.Second)
	h.Push(ctx, started, nil)
	clock.Advance(31 * time.Second)

	// Nothing pushed since; listing alone must hide the expired event.
	got, _ := h.List(ctx, 0)
	if !equalIDs(ids(got), 2) {
		t.Fatalf("ids = %v, want [2]", ids(got))
	}

	clock.Advance(time.Minute)
	h.Push(ctx, started, nil)
	got, _ = h.List(ctx, 0)
	if !equalIDs(ids(got), 3) {
		t.Errorf("ids = %v, want [3]", ids(got))
	}
	if h.local.Len() != 1 {
		t.Errorf("store holds %d events, want 1", h.local.Len())
	}
}

func TestHub_SweepEvictsWithoutPush(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)
	clock := testutil.NewFakeClock(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC))
	h := newTestHub(t, Options{MaxCapacity: 100, Retention: time.Minute, Now: clock.Now})

	h.Push(ctx, started, nil)
	h.Push(ctx, started, nil)
	clock.Advance(2 * time.Minute)

	if err := h.Sweep(ctx); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if h.local.Len() != 0 {
		t.Fatalf("store holds %d events after sweep, want 0", h.local.Len())
	}

	ev, _ := h.Push(ctx, started, nil)
	if ev.ID != 3 {
		t.Errorf("id after sweep = %d, want 3", ev.ID)
	}
}

func TestHub_ConcurrentPushesKeepOrder(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)
	h := newTestHub(t, Options{MaxCapacity: 1000, Retention: time.Hour})

	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 125; i++ {
				h.Push(ctx, started, nil)
			}
		}()
	}
	wg.Wait()

	got, _ := h.List(ctx, 0)
	if len(got) != 1000 {
		t.Fatalf("len = %d, want 1000", len(got))
	}
	for i, e := range got {
		if e.ID != int64(i+1) {
			t.Fatalf("got[%d].ID = %d, want %d", i, e.ID, i+1)
		}
	}
}

func TestHub_ConcurrentPollersSeeNoGaps(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)
	h := newTestHub(t, Options{MaxCapacity: 10000, Retention: time.Hour})

	done := make(chan struct{})
	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				h.Push(ctx, started, nil)
			}
		}()
	}
	go func() { wg.Wait(); close(done) }()

	var cursor int64
	var seen []int64
	poll := func() {
		got, _ := h.List(ctx, cursor)
		for _, e := range got {
			seen = append(seen, e.ID)
			cursor = e.ID
		}
	}
	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
		}
		poll()
	}
	poll()

	if len(seen) != 800 {
		t.Fatalf("poller saw %d events, want 800", len(seen))
	}
	for i, id := range seen {
		if id != int64(i+1) {
			t.Fatalf("seen[%d] = %d, want %d", i, id, i+1)
		}
	}
}

func TestHub_CursorRules(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)
	h := newTestHub(t, Options{MaxCapacity: 3, Retention: time.Hour})
	for i := 0; i < 5; i++ {
		h.Push(ctx, started, nil)
	}

	tests := []struct {
		name  string
		since int64
		want  []int64
	}{
		{"zero returns all", 0, []int64{3, 4, 5}},
		{"cursor in log", 3, []int64{4, 5}},
		{"cursor at newest", 5, []int64{}},
		{"cursor evicted", 1, []int64{3, 4, 5}},
		{"cursor in future", 42, []int64{3, 4, 5}},
		{"negative cursor", -1, []int64{3, 4, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.List(ctx, tt.since)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if !equalIDs(ids(got), tt.want...) {
				t.Errorf("List(%d) = %v, want %v", tt.since, ids(got), tt.want)
			}
		})
	}
}

func TestHub_ClusteredMergesNodes(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)
	shared := &memShared{}
	a := newTestHub(t, Options{MaxCapacity: 100, Retention: time.Hour, Shared: shared})
	b := newTestHub(t, Options{MaxCapacity: 100, Retention: time.Hour, Shared: shared})

	a.Push(ctx, engine.Notification{Kind: engine.JobAdded, Key: "G.a"}, nil)
	b.Push(ctx, engine.Notification{Kind: engine.JobAdded, Key: "G.b"}, nil)
	a.Push(ctx, engine.Notification{Kind: engine.JobAdded, Key: "G.c"}, nil)

	got, err := b.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !equalIDs(ids(got), 1, 2, 3) || got[2].ItemKey != "G.c" {
		t.Errorf("b sees %+v", got)
	}

	got, _ = b.List(ctx, 2)
	if !equalIDs(ids(got), 3) {
		t.Errorf("b.List(2) = %v, want [3]", ids(got))
	}
	got, _ = b.List(ctx, 99)
	if !equalIDs(ids(got), 1, 2, 3) {
		t.Errorf("b.List(99) = %v, want full replay", ids(got))
	}
	if a.Mode() != "cluster" {
		t.Errorf("Mode = %q", a.Mode())
	}
}

func TestHub_ClusteredDegradedIngestion(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)
	shared := &memShared{}
	h := newTestHub(t, Options{MaxCapacity: 100, Retention: time.Hour, Shared: shared, Timeout: 50 * time.Millisecond})

	if _, err := h.Push(ctx, started, nil); err != nil {
		t.Fatalf("Push: %v", err)
	}
	shared.setFail(true)

	ev, err := h.Push(ctx, engine.Notification{Kind: engine.SchedulerStandby}, nil)
	if !errors.Is(err, ErrDegraded) {
		t.Fatalf("Push err = %v, want ErrDegraded", err)
	}
	if ev.ID != 2 {
		t.Errorf("degraded id = %d, want 2", ev.ID)
	}

	got, err := h.List(ctx, 0)
	if !errors.Is(err, ErrDegraded) {
		t.Fatalf("List err = %v, want ErrDegraded", err)
	}
	if !equalIDs(ids(got), 1, 2) {
		t.Errorf("local fallback = %v", ids(got))
	}

	// Notify swallows the error.
	h.Notify(ctx, started, nil)

	shared.setFail(false)
	got, err = h.List(ctx, 0)
	if err != nil {
		t.Fatalf("List after recovery: %v", err)
	}
	if !equalIDs(ids(got), 1, 2, 3) {
		t.Errorf("recovered list = %v, want [1 2 3]", ids(got))
	}
	if n := shared.len(); n != 3 {
		t.Errorf("shared store holds %d events, want the 2 queued ones appended", n)
	}
}

func TestHub_ClusteredDegradedEventSurvivesRecovery(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)
	shared := &memShared{}
	a := newTestHub(t, Options{MaxCapacity: 100, Retention: time.Hour, Shared: shared})
	b := newTestHub(t, Options{MaxCapacity: 100, Retention: time.Hour, Shared: shared})

	if _, err := a.Push(ctx, engine.Notification{Kind: engine.JobAdded, Key: "G.first"}, nil); err != nil {
		t.Fatalf("Push: %v", err)
	}
	shared.setFail(true)
	degraded, err := a.Push(ctx, engine.Notification{Kind: engine.JobAdded, Key: "G.degraded"}, nil)
	if !errors.Is(err, ErrDegraded) {
		t.Fatalf("Push err = %v, want ErrDegraded", err)
	}
	shared.setFail(false)

	// b takes the id a handed out while the store was down.
	fromB, err := b.Push(ctx, engine.Notification{Kind: engine.JobAdded, Key: "G.fromB"}, nil)
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if fromB.ID != degraded.ID {
		t.Fatalf("b got id %d, want it to reuse %d", fromB.ID, degraded.ID)
	}

	// A poller that saw the degraded event must still get both.
	got, err := a.List(ctx, degraded.ID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !hasKeys(got, "G.fromB", "G.degraded") {
		t.Errorf("a.List(%d) = %+v, want G.fromB and G.degraded", degraded.ID, got)
	}

	for name, h := range map[string]*Hub{"a": a, "b": b} {
		got, err := h.List(ctx, 0)
		if err != nil {
			t.Fatalf("%s.List: %v", name, err)
		}
		if !equalIDs(ids(got), 1, 2, 3) {
			t.Errorf("%s ids = %v, want [1 2 3]", name, ids(got))
		}
		if !hasKeys(got, "G.first", "G.fromB", "G.degraded") {
			t.Errorf("%s log = %+v", name, got)
		}
	}
}

func TestHub_ClusteredRespectsCapacity(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)
	shared := &memShared{}
	a := newTestHub(t, Options{MaxCapacity: 5, Retention: time.Hour, Shared: shared})
	b := newTestHub(t, Options{MaxCapacity: 5, Retention: time.Hour, Shared: shared})

	for i := 0; i < 50; i++ {
		h := a
		if i%2 == 1 {
			h = b
		}
		if _, err := h.Push(ctx, started, nil); err != nil {
			t.Fatalf("Push %d: %v", i, err)
		}
	}

	got, err := a.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !equalIDs(ids(got), 46, 47, 48, 49, 50) {
		t.Errorf("List(0) = %v, want the newest 5", ids(got))
	}
	if n := shared.len(); n > 5 {
		t.Errorf("shared store holds %d events, want at most 5", n)
	}
	got, _ = b.List(ctx, 47)
	if !equalIDs(ids(got), 48, 49, 50) {
		t.Errorf("List(47) = %v, want [48 49 50]", ids(got))
	}
	got, _ = b.List(ctx, 10)
	if !equalIDs(ids(got), 46, 47, 48, 49, 50) {
		t.Errorf("List(10) = %v, want full replay of the newest 5", ids(got))
	}
}

func TestHub_ClusteredDegradedQueueIsBounded(t *testing.T) {
	t.Parallel()
	ctx := testutil.TestContext(t)
	shared := &memShared{}
	h := newTestHub(t, Options{MaxCapacity: 3, Retention: time.Hour, Shared: shared})

	h.Push(ctx, engine.Notification{Kind: engine.JobAdded, Key: "G.first"}, nil)
	shared.setFail(true)
	for _, key := range []string{"G.d1", "G.d2", "G.d3", "G.d4"} {
		h.Push(ctx, engine.Notification{Kind: engine.JobAdded, Key: key}, nil)
	}

	got, err := h.List(ctx, 0)
	if !errors.Is(err, ErrDegraded) {
		t.Fatalf("List err = %v, want ErrDegraded", err)
	}
	if len(got) != 3 || !hasKeys(got, "G.d2", "G.d3", "G.d4") {
		t.Errorf("degraded list = %+v", got)
	}

	shared.setFail(false)
	got, err = h.List(ctx, 0)
	if err != nil {
		t.Fatalf("List after recovery: %v", err)
	}
	if len(got) != 3 || !hasKeys(got, "G.d2", "G.d3", "G.d4") {
		t.Errorf("recovered list = %+v", got)
	}
	if n := shared.len(); n != 4 {
		t.Errorf("shared store holds %d events, want G.first plus 3 queued", n)
	}
}

func hasKeys(events []models.Event, keys ...string) bool {
	seen := make(map[string]bool, len(events))
	for _, e := range events {
		seen[e.ItemKey] = true
	}
	for _, k := range keys {
		if !seen[k] {
			return false
		}
	}
	return true
}
