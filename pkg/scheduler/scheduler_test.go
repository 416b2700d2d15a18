package scheduler

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTickerFires(t *testing.T) {
	var ticks atomic.Int64
	ticker := New(time.Millisecond, func(time.Time) time.Duration {
		ticks.Add(1)
		return 0
	})

	if err := ticker.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer ticker.Stop()

	deadline := time.Now().Add(time.Second)
	for ticks.Load() < 5 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if ticks.Load() < 5 {
		t.Errorf("Expected at least 5 ticks, got %d", ticks.Load())
	}
}

func TestTickerStartTwice(t *testing.T) {
	ticker := New(time.Millisecond, func(time.Time) time.Duration { return 0 })
	if err := ticker.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer ticker.Stop()

	if err := ticker.Start(); err != ErrAlreadyStarted {
		t.Errorf("Expected ErrAlreadyStarted, got %v", err)
	}
}

func TestTickerStopDeregisters(t *testing.T) {
	var ticks atomic.Int64
	ticker := New(time.Millisecond, func(time.Time) time.Duration {
		ticks.Add(1)
		return 0
	})

	if err := ticker.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for ticks.Load() < 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	ticker.Stop()

	after := ticks.Load()
	time.Sleep(20 * time.Millisecond)
	if got := ticks.Load(); got != after {
		t.Errorf("Ticks fired after Stop: %d -> %d", after, got)
	}

	// A stopped ticker restarts cleanly.
	if err := ticker.Start(); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	deadline = time.Now().Add(time.Second)
	for ticks.Load() <= after && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	ticker.Stop()
	if ticks.Load() <= after {
		t.Errorf("Expected ticks after restart")
	}
}

func TestTickerDynamicInterval(t *testing.T) {
	var stamps []time.Time
	done := make(chan struct{})

	ticker := New(time.Millisecond, func(now time.Time) time.Duration {
		stamps = append(stamps, now)
		if len(stamps) == 2 {
			close(done)
			return -1 // deregister
		}
		return 50 * time.Millisecond
	})

	if err := ticker.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer ticker.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Expected 2 ticks, got %d", len(stamps))
	}

	// The second tick honored the interval returned by the first.
	if gap := stamps[1].Sub(stamps[0]); gap < 40*time.Millisecond {
		t.Errorf("Expected >=40ms between ticks, got %v", gap)
	}

	time.Sleep(20 * time.Millisecond)
	if len(stamps) != 2 {
		t.Errorf("Ticker kept firing after negative return: %d ticks", len(stamps))
	}
}
