package clock

import (
	"testing"
	"time"
)

func TestManualAdvanceAndSet(t *testing.T) {
	c := NewManual(10)
	if got := c.NowMs(); got != 10 {
		t.Fatalf("NowMs() = %d, want 10", got)
	}
	if got := c.Advance(25); got != 35 {
		t.Fatalf("Advance(25) = %d, want 35", got)
	}
	c.Set(20)
	if got := c.NowMs(); got != 35 {
		t.Errorf("Set backwards moved clock to %d", got)
	}
	c.Set(100)
	if got := c.NowMs(); got != 100 {
		t.Errorf("NowMs() = %d, want 100", got)
	}
}

func TestMonotonicMovesForward(t *testing.T) {
	c := NewMonotonic()
	first := c.NowMs()
	time.Sleep(5 * time.Millisecond)
	if second := c.NowMs(); second < first+1 {
		t.Errorf("monotonic clock did not advance: %d -> %d", first, second)
	}
}
