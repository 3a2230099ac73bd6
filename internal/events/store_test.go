package events

import (
	"testing"

	"github.com/isdelr/schedpanel/internal/models"
)

func ids(events []models.Event) []int64 {
	out := make([]int64, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

func equalIDs(got []int64, want ...int64) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestStore_AppendKeepsOrderAndIgnoresDuplicates(t *testing.T) {
	t.Parallel()
	s := NewStore(10)
	for _, id := range []int64{1, 3, 2, 5, 3, 4} {
		s.Append(models.Event{ID: id})
	}
	if got := ids(s.Snapshot()); !equalIDs(got, 1, 2, 3, 4, 5) {
		t.Errorf("ids = %v", got)
	}
}

func TestStore_IngestEvictsOldest(t *testing.T) {
	t.Parallel()
	s := NewStore(3)
	evicted := 0
	for id := int64(1); id <= 5; id++ {
		evicted += s.Ingest(models.Event{ID: id}, 3)
	}
	if evicted != 2 {
		t.Errorf("evicted = %d, want 2", evicted)
	}
	if got := ids(s.Snapshot()); !equalIDs(got, 3, 4, 5) {
		t.Errorf("ids = %v", got)
	}
}

func TestStore_EvictOlderThan(t *testing.T) {
	t.Parallel()
	s := NewStore(10)
	for i, date := range []int64{100, 200, 200, 300} {
		s.Append(models.Event{ID: int64(i + 1), Date: date})
	}
	if n := s.EvictOlderThan(200); n != 3 {
		t.Errorf("evicted = %d, want 3", n)
	}
	if got := ids(s.Snapshot()); !equalIDs(got, 4) {
		t.Errorf("ids = %v", got)
	}
	if n := s.EvictOlderThan(50); n != 0 {
		t.Errorf("second eviction = %d, want 0", n)
	}
}

func TestStore_SnapshotIsStable(t *testing.T) {
	t.Parallel()
	s := NewStore(2)
	s.Ingest(models.Event{ID: 1}, 2)
	s.Ingest(models.Event{ID: 2}, 2)
	snap := s.Snapshot()

	s.Ingest(models.Event{ID: 3}, 2)
	s.EvictOlderThan(1 << 40)

	if got := ids(snap); !equalIDs(got, 1, 2) {
		t.Errorf("snapshot changed: %v", got)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}
