// Package scheduler provides the fixed-interval update timer that drives
// scene updates independently of network arrival timing. Decoupling the two
// cadences bounds host-side work per tick: if the network pauses, the host
// keeps rendering the last known pose instead of blocking.
package scheduler

import (
	"errors"
	"sync"
	"time"
)

// ErrAlreadyStarted is returned when Start is called on a running ticker.
var ErrAlreadyStarted = errors.New("scheduler already started")

// TickFunc is invoked on every tick and returns the next desired interval.
// Returning 0 keeps the current interval; returning a negative duration
// stops the ticker (mirroring host timers that deregister by returning
// nothing). Tick functions must never block on I/O.
type TickFunc func(now time.Time) time.Duration

// Ticker is a cooperative fixed-interval timer with dynamic rate adjustment.
type Ticker struct {
	interval time.Duration
	fn       TickFunc

	mu      sync.Mutex
	done    chan struct{}
	running bool
	wg      sync.WaitGroup
}

// New creates a ticker firing fn every interval once started.
func New(interval time.Duration, fn TickFunc) *Ticker {
	return &Ticker{interval: interval, fn: fn}
}

// Start begins ticking on a dedicated goroutine.
func (t *Ticker) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return ErrAlreadyStarted
	}
	t.running = true
	t.done = make(chan struct{})

	t.wg.Add(1)
	go t.run(t.done)
	return nil
}

// Stop deregisters the timer: no further ticks fire after Stop returns.
// Safe to call on a stopped ticker, and the ticker can be started again.
func (t *Ticker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	close(t.done)
	t.mu.Unlock()

	t.wg.Wait()
}

func (t *Ticker) run(done chan struct{}) {
	defer t.wg.Done()

	interval := t.interval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-done:
			return
		case now := <-timer.C:
			next := t.fn(now)
			if next < 0 {
				t.mu.Lock()
				t.running = false
				t.mu.Unlock()
				return
			}
			if next > 0 {
				interval = next
			}
			timer.Reset(interval)
		}
	}
}
