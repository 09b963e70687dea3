package indicator

import "testing"

type transition struct {
	at  uint64
	lit bool
}

func trace(ind *Indicator, from, to uint64, running func(uint64) bool) []transition {
	var out []transition
	prev := ind.Lit()
	for now := from; now < to; now++ {
		lit := ind.Tick(now, running(now))
		if lit != prev {
			out = append(out, transition{now, lit})
			prev = lit
		}
	}
	return out
}

func noBoot() Options {
	o := DefaultOptions()
	o.BootFlashes = 0
	return o
}

func TestSearchingCycle(t *testing.T) {
	ind := New(noBoot())
	got := trace(ind, 0, 3100, func(uint64) bool { return false })
	want := []transition{{1000, true}, {1500, false}, {2500, true}, {3000, false}}
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRunningCycle(t *testing.T) {
	ind := New(noBoot())
	got := trace(ind, 0, 12000, func(uint64) bool { return true })
	want := []transition{{5000, true}, {5500, false}, {10500, true}, {11000, false}}
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestStateChangeUsesNewPeriod(t *testing.T) {
	ind := New(noBoot())
	// Running from 1200: the off phase that starts at 1500 lasts 5000 ms.
	got := trace(ind, 0, 7000, func(now uint64) bool { return now >= 1200 })
	want := []transition{{1000, true}, {1500, false}, {6500, true}}
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestBootFlashes(t *testing.T) {
	ind := New(DefaultOptions())
	if !ind.Tick(100, false) {
		t.Fatalf("first tick should light the LED")
	}
	got := trace(ind, 101, 1600, func(uint64) bool { return false })
	want := []transition{{350, false}, {600, true}, {850, false}, {1100, true}, {1350, false}}
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, got[i], want[i])
		}
	}
	if ind.booting() {
		t.Errorf("still booting after all flashes")
	}
	// Regular cycle resumes one searching period after the last boot flash.
	if ind.Tick(2349, false) {
		t.Errorf("lit before searching period elapsed")
	}
	if !ind.Tick(2350, false) {
		t.Errorf("not lit after searching period")
	}
}
