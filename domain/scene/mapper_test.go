package scene

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/open-handtrack/pipeline/pkg/hand"
)

func centeredHand() []hand.Landmark {
	lms := make([]hand.Landmark, hand.LandmarkCount)
	for i := range lms {
		lms[i] = hand.Landmark{X: 0.5, Y: 0.5, Z: 0}
	}
	return lms
}

func frameWithHands(seq uint64, left, right []hand.Landmark) *hand.Frame {
	return &hand.Frame{Seq: seq, Hands: [hand.MaxHands][]hand.Landmark{left, right}}
}

func vecNear(a, b mgl64.Vec3) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-9 {
			return false
		}
	}
	return true
}

func TestTransformIdentityMapsCenterToOrigin(t *testing.T) {
	tf := IdentityTransform()
	got := tf.Map(0, hand.Landmark{X: 0.5, Y: 0.5, Z: 0})
	if !vecNear(got, mgl64.Vec3{}) {
		t.Errorf("Expected origin, got %v", got)
	}
}

func TestTransformAxisConvention(t *testing.T) {
	// Half scale, inverted vertical, depth onto the scene's second axis,
	// one scene unit between hand slots.
	tf := Transform{Scale: 0.5, FlipY: true, FlipZ: true, SwapYZ: true, HandSpacing: 1.0}

	tests := []struct {
		name string
		slot int
		lm   hand.Landmark
		want mgl64.Vec3
	}{
		{name: "center", slot: 0, lm: hand.Landmark{X: 0.5, Y: 0.5, Z: 0}, want: mgl64.Vec3{0, 0, 0}},
		{name: "right edge", slot: 0, lm: hand.Landmark{X: 1, Y: 0.5, Z: 0}, want: mgl64.Vec3{0.5, 0, 0}},
		{name: "top edge is scene up", slot: 0, lm: hand.Landmark{X: 0.5, Y: 0, Z: 0}, want: mgl64.Vec3{0, 0, 0.5}},
		{name: "toward camera is scene forward", slot: 0, lm: hand.Landmark{X: 0.5, Y: 0.5, Z: -0.5}, want: mgl64.Vec3{0, 0.5, 0}},
		{name: "second hand offset", slot: 1, lm: hand.Landmark{X: 0.5, Y: 0.5, Z: 0}, want: mgl64.Vec3{1, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tf.Map(tt.slot, tt.lm)
			if !vecNear(got, tt.want) {
				t.Errorf("Map(%d, %+v) = %v, want %v", tt.slot, tt.lm, got, tt.want)
			}
		})
	}
}

func TestTransformOffset(t *testing.T) {
	tf := Transform{Scale: 1, Offset: mgl64.Vec3{1, 2, 3}}
	got := tf.Map(0, hand.Landmark{X: 0.5, Y: 0.5, Z: 0})
	if !vecNear(got, mgl64.Vec3{1, 2, 3}) {
		t.Errorf("Expected offset position, got %v", got)
	}
}

func TestMapperCreatesGeometryOnceAndMutatesInPlace(t *testing.T) {
	sc := NewMemoryScene()
	m := NewMapper(sc, IdentityTransform(), nil, 1)

	created := sc.ObjectCount()
	wantObjects := hand.MaxHands * (hand.LandmarkCount + len(hand.Connections))
	if created != wantObjects {
		t.Fatalf("Expected %d scene objects at construction, got %d", wantObjects, created)
	}

	for seq := uint64(1); seq <= 50; seq++ {
		lms := centeredHand()
		lms[hand.Wrist].X = 0.5 + float64(seq)*0.001
		if err := m.Apply(frameWithHands(seq, lms, centeredHand())); err != nil {
			t.Fatalf("Apply %d failed: %v", seq, err)
		}
	}

	if got := sc.ObjectCount(); got != created {
		t.Errorf("Steady-state operation created geometry: %d -> %d objects", created, got)
	}
}

func TestMapperWristPosition(t *testing.T) {
	sc := NewMemoryScene()
	m := NewMapper(sc, IdentityTransform(), nil, 1)

	if err := m.Apply(frameWithHands(1, centeredHand(), nil)); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	wrist := m.JointHandle(0, hand.Wrist)
	if got := sc.Position(wrist); !vecNear(got, mgl64.Vec3{}) {
		t.Errorf("Expected wrist at origin, got %v", got)
	}
	if !sc.Visible(wrist) {
		t.Errorf("Expected wrist visible after present frame")
	}
}

func TestMapperBonesFollowJoints(t *testing.T) {
	sc := NewMemoryScene()
	m := NewMapper(sc, IdentityTransform(), nil, 1)

	lms := centeredHand()
	lms[hand.IndexTip] = hand.Landmark{X: 0.75, Y: 0.25, Z: 0}
	if err := m.Apply(frameWithHands(1, lms, nil)); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	a := m.JointHandle(0, hand.IndexDIP)
	b := m.JointHandle(0, hand.IndexTip)
	pa, pb, ok := sc.BoneSegment(a, b)
	if !ok {
		t.Fatalf("Expected bone between index DIP and tip")
	}
	if !vecNear(pa, sc.Position(a)) || !vecNear(pb, sc.Position(b)) {
		t.Errorf("Bone endpoints %v-%v do not match joints %v-%v", pa, pb, sc.Position(a), sc.Position(b))
	}
}

func TestMapperDebounceRequiresExactRun(t *testing.T) {
	const debounce = 3
	sc := NewMemoryScene()
	m := NewMapper(sc, IdentityTransform(), nil, debounce)

	seq := uint64(0)
	next := func(present bool) {
		seq++
		var left []hand.Landmark
		if present {
			left = centeredHand()
		}
		if err := m.Apply(frameWithHands(seq, left, nil)); err != nil {
			t.Fatalf("Apply %d failed: %v", seq, err)
		}
	}

	next(true)
	if !m.SlotVisible(0) {
		t.Fatalf("Expected hand visible after present frame")
	}

	// debounce-1 absences are not enough.
	next(false)
	next(false)
	if !m.SlotVisible(0) {
		t.Errorf("Hand hidden after %d absences, want %d", debounce-1, debounce)
	}

	// A reappearance resets the run.
	next(true)
	next(false)
	next(false)
	if !m.SlotVisible(0) {
		t.Errorf("Absent run did not reset on reappearance")
	}

	next(false)
	if m.SlotVisible(0) {
		t.Errorf("Expected hand hidden after %d consecutive absences", debounce)
	}

	if sc.Visible(m.JointHandle(0, hand.Wrist)) {
		t.Errorf("Expected joint objects hidden with the hand")
	}

	// Reappearance is cheap: same objects, shown again.
	created := sc.ObjectCount()
	next(true)
	if !m.SlotVisible(0) {
		t.Errorf("Expected hand visible after reappearance")
	}
	if sc.ObjectCount() != created {
		t.Errorf("Reappearance created geometry")
	}
}

func TestMapperDiscardsMalformedFrame(t *testing.T) {
	sc := NewMemoryScene()
	m := NewMapper(sc, IdentityTransform(), nil, 1)

	lms := centeredHand()
	lms[hand.Wrist] = hand.Landmark{X: 0.75, Y: 0.5, Z: 0}
	if err := m.Apply(frameWithHands(1, lms, nil)); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	wrist := m.JointHandle(0, hand.Wrist)
	before := sc.Position(wrist)

	bad := frameWithHands(2, centeredHand()[:7], nil)
	if err := m.Apply(bad); err == nil {
		t.Fatalf("Expected error for malformed frame")
	}

	if got := sc.Position(wrist); !vecNear(got, before) {
		t.Errorf("Previous pose not retained: %v -> %v", before, got)
	}
	if !m.SlotVisible(0) {
		t.Errorf("Malformed frame must not change visibility")
	}
}

func TestMapperHideAll(t *testing.T) {
	sc := NewMemoryScene()
	m := NewMapper(sc, IdentityTransform(), []JointStyle{{Color: "#ff0000"}, {Color: "#0080ff"}}, 3)

	if err := m.Apply(frameWithHands(1, centeredHand(), centeredHand())); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	m.HideAll()
	for slot := 0; slot < hand.MaxHands; slot++ {
		if m.SlotVisible(slot) {
			t.Errorf("Slot %d still visible after HideAll", slot)
		}
	}
}
