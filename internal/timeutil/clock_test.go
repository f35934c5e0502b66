package timeutil

import (
	"sync"
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestRealClock_Since(t *testing.T) {
	clock := RealClock{}
	past := time.Now().Add(-time.Second)
	d := clock.Since(past)

	if d < time.Second {
		t.Errorf("Since() returned %v, expected >= 1s", d)
	}
}

func TestMockClock_Now(t *testing.T) {
	fixedTime := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	clock := NewMockClock(fixedTime)

	for i := 0; i < 3; i++ {
		if now := clock.Now(); !now.Equal(fixedTime) {
			t.Errorf("call %d: got %v, want %v", i, now, fixedTime)
		}
	}
}

func TestMockClock_Set(t *testing.T) {
	clock := NewMockClock(time.Time{})
	newTime := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	clock.Set(newTime)

	if !clock.Now().Equal(newTime) {
		t.Errorf("got %v, want %v", clock.Now(), newTime)
	}
}

func TestMockClock_AdvanceAndSince(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	clock.Advance(90 * time.Second)

	if d := clock.Since(start); d != 90*time.Second {
		t.Errorf("Since() = %v, want 90s", d)
	}
	if !clock.Now().Equal(start.Add(90 * time.Second)) {
		t.Errorf("Now() = %v after Advance", clock.Now())
	}
}

func TestSteppingClock(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewSteppingClock(start, time.Millisecond)

	t0 := clock.Now()
	t1 := clock.Now()
	if !t0.Equal(start) {
		t.Errorf("first Now() = %v, want %v", t0, start)
	}
	if d := t1.Sub(t0); d != time.Millisecond {
		t.Errorf("step = %v, want 1ms", d)
	}
	// Since reads without stepping.
	if d := clock.Since(t0); d != 2*time.Millisecond {
		t.Errorf("Since() = %v, want 2ms", d)
	}
	if d := clock.Since(t0); d != 2*time.Millisecond {
		t.Errorf("second Since() = %v, want 2ms", d)
	}
}

func TestMockClock_Concurrent(t *testing.T) {
	clock := NewSteppingClock(time.Time{}, time.Nanosecond)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				clock.Now()
			}
		}()
	}
	wg.Wait()

	if d := clock.Since(time.Time{}); d != 800*time.Nanosecond {
		t.Errorf("Since() = %v, want 800ns", d)
	}
}
