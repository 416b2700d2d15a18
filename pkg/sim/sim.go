// Package sim provides a synthetic frame source for demos and end-to-end
// tests when no vision-tracking process is attached.
package sim

import (
	"math"
	"sync"
	"time"

	"github.com/open-handtrack/pipeline/pkg/hand"
)

// Source generates two animated hands waving around the camera frame
// center. When AbsentPeriod is positive, the second hand disappears for
// AbsentPeriod frames out of every 2*AbsentPeriod, exercising the
// hide/debounce path downstream.
type Source struct {
	// AbsentPeriod controls the periodic absence of hand slot 1; zero keeps
	// both hands present.
	AbsentPeriod uint64

	mu    sync.Mutex
	seq   uint64
	start time.Time
}

// New returns a source with both hands always present.
func New() *Source {
	return &Source{start: time.Now()}
}

// NextFrame produces a fresh observation on every call; the server polls at
// its own cadence.
func (s *Source) NextFrame() *hand.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	t := time.Since(s.start).Seconds()

	f := &hand.Frame{Seq: s.seq, TimestampNs: time.Now().UnixNano()}
	f.Hands[0] = wave(t, 0)
	if s.AbsentPeriod == 0 || (s.seq/s.AbsentPeriod)%2 == 0 {
		f.Hands[1] = wave(t, math.Pi)
	}
	return f
}

// wave lays out a stylized hand: the wrist orbits the frame center and the
// five finger chains fan out above it. Coordinates stay in [0,1].
func wave(t, phase float64) []hand.Landmark {
	wristX := 0.5 + 0.15*math.Sin(t+phase)
	wristY := 0.6 + 0.05*math.Cos(t*1.3+phase)

	lms := make([]hand.Landmark, hand.LandmarkCount)
	lms[hand.Wrist] = hand.Landmark{X: wristX, Y: wristY, Z: 0}

	// Five chains of four segments each, fingers spread by angle.
	for finger := 0; finger < 5; finger++ {
		angle := (float64(finger) - 2) * 0.25
		curl := 0.3 + 0.2*math.Sin(t*2+phase+float64(finger))
		for seg := 1; seg <= 4; seg++ {
			idx := finger*4 + seg
			reach := curl * float64(seg) / 4
			lms[idx] = hand.Landmark{
				X: clamp01(wristX + reach*math.Sin(angle)),
				Y: clamp01(wristY - reach*math.Cos(angle)),
				Z: -0.02 * float64(seg),
			}
		}
	}
	return lms
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
