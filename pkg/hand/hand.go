package hand

import "fmt"

// MaxHands is the number of hand slots carried by a frame.
const MaxHands = 2

// LandmarkCount is the number of landmarks per tracked hand. The tracking
// model always emits the full set; anything else is a malformed frame.
const LandmarkCount = 21

// Landmark indices in the fixed joint order emitted by the tracking model.
const (
	Wrist = iota
	ThumbCMC
	ThumbMCP
	ThumbIP
	ThumbTip
	IndexMCP
	IndexPIP
	IndexDIP
	IndexTip
	MiddleMCP
	MiddlePIP
	MiddleDIP
	MiddleTip
	RingMCP
	RingPIP
	RingDIP
	RingTip
	PinkyMCP
	PinkyPIP
	PinkyDIP
	PinkyTip
)

// Connections lists the landmark index pairs that form the hand skeleton:
// the five finger chains from the wrist plus the palm edges.
var Connections = [][2]int{
	{Wrist, ThumbCMC}, {ThumbCMC, ThumbMCP}, {ThumbMCP, ThumbIP}, {ThumbIP, ThumbTip},
	{Wrist, IndexMCP}, {IndexMCP, IndexPIP}, {IndexPIP, IndexDIP}, {IndexDIP, IndexTip},
	{Wrist, MiddleMCP}, {MiddleMCP, MiddlePIP}, {MiddlePIP, MiddleDIP}, {MiddleDIP, MiddleTip},
	{Wrist, RingMCP}, {RingMCP, RingPIP}, {RingPIP, RingDIP}, {RingDIP, RingTip},
	{Wrist, PinkyMCP}, {PinkyMCP, PinkyPIP}, {PinkyPIP, PinkyDIP}, {PinkyDIP, PinkyTip},
	{IndexMCP, MiddleMCP}, {MiddleMCP, RingMCP}, {RingMCP, PinkyMCP},
}

// Landmark is a single tracked point. X and Y are normalized to [0,1]
// relative to the camera frame; Z is a camera-relative depth estimate.
type Landmark struct {
	X float64
	Y float64
	Z float64
}

// Frame is one complete observation instant covering up to MaxHands hands.
// A nil hand slot means the hand was not detected; a present slot holds
// exactly LandmarkCount landmarks.
type Frame struct {
	Seq         uint64
	TimestampNs int64
	Hands       [MaxHands][]Landmark
}

// PresentCount returns the number of detected hands in the frame.
func (f *Frame) PresentCount() int {
	n := 0
	for _, h := range f.Hands {
		if h != nil {
			n++
		}
	}
	return n
}

// Validate checks the per-hand landmark count invariant. Frames that fail
// validation are discarded whole; the previous pose is retained.
func (f *Frame) Validate() error {
	if f == nil {
		return fmt.Errorf("nil frame")
	}
	for i, h := range f.Hands {
		if h != nil && len(h) != LandmarkCount {
			return fmt.Errorf("hand %d has %d landmarks, want %d", i, len(h), LandmarkCount)
		}
	}
	return nil
}
