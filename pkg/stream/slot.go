package stream

import (
	"sync/atomic"

	"github.com/open-handtrack/pipeline/pkg/hand"
)

// LatestSlot is a single shared cell holding the most recent decoded frame.
// The receiver goroutine writes, the update scheduler reads; old values are
// discarded on overwrite. There is deliberately no queue: only the newest
// pose matters, and backlog would reintroduce latency.
type LatestSlot struct {
	ptr atomic.Pointer[hand.Frame]
}

// Store replaces the slot value with f unless a frame with an equal or newer
// sequence number is already stored. Out-of-order arrivals are tolerated by
// discarding them. Returns whether f was stored.
func (s *LatestSlot) Store(f *hand.Frame) bool {
	for {
		cur := s.ptr.Load()
		if cur != nil && f.Seq <= cur.Seq {
			return false
		}
		if s.ptr.CompareAndSwap(cur, f) {
			return true
		}
	}
}

// Load returns the most recent frame without blocking, or nil if no frame
// has arrived yet.
func (s *LatestSlot) Load() *hand.Frame {
	return s.ptr.Load()
}

// Clear drops the stored frame so a restarted pipeline does not observe a
// pose from a previous session.
func (s *LatestSlot) Clear() {
	s.ptr.Store(nil)
}
