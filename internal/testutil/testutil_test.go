package testutil

import (
	"testing"
	"time"
)

func TestFakeClock_Advance(t *testing.T) {
	fixed := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	clock := NewFakeClock(fixed)
	if got := clock.Now(); !got.Equal(fixed) {
		t.Fatalf("Now() = %v, want %v", got, fixed)
	}

	clock.Advance(90 * time.Second)

	want := fixed.Add(90 * time.Second)
	if got := clock.Now(); !got.Equal(want) {
		t.Errorf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestTestContext_HasDeadline(t *testing.T) {
	ctx := TestContext(t)
	if _, ok := ctx.Deadline(); !ok {
		t.Error("TestContext should carry a deadline")
	}
}
