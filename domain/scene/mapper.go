package scene

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/open-handtrack/pipeline/pkg/config"
	"github.com/open-handtrack/pipeline/pkg/hand"
)

// Transform converts a normalized camera-space landmark into scene space:
// scenePos = offset + remap(landmark) * scale, plus a per-hand spacing on
// the scene X axis so two hands never overlap. Camera space is not scene
// space: the vertical axis is typically inverted and, for Z-up hosts,
// camera depth maps onto the scene's second axis (SwapYZ).
type Transform struct {
	Scale       float64
	Offset      mgl64.Vec3
	FlipX       bool
	FlipY       bool
	FlipZ       bool
	SwapYZ      bool
	HandSpacing float64
}

// IdentityTransform maps the camera-frame center (0.5, 0.5, 0) to the scene
// origin with unit scale and no axis remapping. Used by tests and as a
// neutral baseline.
func IdentityTransform() Transform {
	return Transform{Scale: 1}
}

// TransformFromConfig builds a Transform from the mapper configuration.
func TransformFromConfig(cfg config.MapperConfig) Transform {
	return Transform{
		Scale:       cfg.Scale,
		Offset:      mgl64.Vec3{cfg.Offset[0], cfg.Offset[1], cfg.Offset[2]},
		FlipX:       cfg.FlipX,
		FlipY:       cfg.FlipY,
		FlipZ:       cfg.FlipZ,
		SwapYZ:      cfg.SwapYZ,
		HandSpacing: cfg.HandSpacing,
	}
}

// Map returns the scene-space position for a landmark of the given hand slot.
func (t Transform) Map(slot int, lm hand.Landmark) mgl64.Vec3 {
	// Center the normalized x/y around the camera frame midpoint; z is
	// already camera-relative. The factor 2 puts the frame edges at ±1.
	v := mgl64.Vec3{(lm.X - 0.5) * 2, (lm.Y - 0.5) * 2, lm.Z * 2}
	if t.FlipX {
		v[0] = -v[0]
	}
	if t.FlipY {
		v[1] = -v[1]
	}
	if t.FlipZ {
		v[2] = -v[2]
	}
	if t.SwapYZ {
		v[1], v[2] = v[2], v[1]
	}
	pos := t.Offset.Add(v.Mul(t.Scale))
	pos[0] += float64(slot) * t.HandSpacing
	return pos
}

// Mapper owns one persistent joint object per (hand slot, joint index) pair
// plus the bone connectors between them, all created once at construction
// and mutated in place for the pipeline's lifetime. Geometry is never
// destroyed or recreated during steady-state operation; absent hands are
// hidden so reappearance is cheap.
type Mapper struct {
	scene    Scene
	tf       Transform
	debounce int

	joints [hand.MaxHands][hand.LandmarkCount]Handle
	bones  [hand.MaxHands][]Handle

	visible    [hand.MaxHands]bool
	absentRuns [hand.MaxHands]int
}

// NewMapper creates all scene objects up front, hidden. styles supplies the
// per-hand joint style; missing entries fall back to the zero style.
func NewMapper(sc Scene, tf Transform, styles []JointStyle, debounce int) *Mapper {
	if debounce < 1 {
		debounce = 1
	}
	m := &Mapper{scene: sc, tf: tf, debounce: debounce}

	for slot := 0; slot < hand.MaxHands; slot++ {
		style := JointStyle{}
		if slot < len(styles) {
			style = styles[slot]
		}
		for j := 0; j < hand.LandmarkCount; j++ {
			h := sc.CreateJoint(fmt.Sprintf("hand%d/joint%02d", slot, j), style)
			sc.SetVisible(h, false)
			m.joints[slot][j] = h
		}
		m.bones[slot] = make([]Handle, len(hand.Connections))
		for i, c := range hand.Connections {
			b := sc.UpsertBone(m.joints[slot][c[0]], m.joints[slot][c[1]])
			sc.SetVisible(b, false)
			m.bones[slot][i] = b
		}
	}
	return m
}

// Apply maps one frame onto the scene. Frames with a malformed landmark
// count are discarded whole and the previous pose is retained. Bone
// connectors are recomputed strictly after both endpoint joints have been
// positioned within the same call.
func (m *Mapper) Apply(f *hand.Frame) error {
	if err := f.Validate(); err != nil {
		return fmt.Errorf("mapping: %w", err)
	}

	for slot := 0; slot < hand.MaxHands; slot++ {
		lms := f.Hands[slot]
		if lms == nil {
			m.observeAbsent(slot)
			continue
		}

		m.absentRuns[slot] = 0
		for j, lm := range lms {
			m.scene.SetPosition(m.joints[slot][j], m.tf.Map(slot, lm))
		}
		for i, c := range hand.Connections {
			m.bones[slot][i] = m.scene.UpsertBone(m.joints[slot][c[0]], m.joints[slot][c[1]])
		}
		if !m.visible[slot] {
			m.setSlotVisible(slot, true)
		}
	}
	return nil
}

// observeAbsent counts consecutive absent observations for a visible hand
// and hides it once the debounce threshold is reached. A single missed
// detection never causes flicker.
func (m *Mapper) observeAbsent(slot int) {
	if !m.visible[slot] {
		return
	}
	m.absentRuns[slot]++
	if m.absentRuns[slot] >= m.debounce {
		m.setSlotVisible(slot, false)
		m.absentRuns[slot] = 0
	}
}

func (m *Mapper) setSlotVisible(slot int, visible bool) {
	for _, h := range m.joints[slot] {
		m.scene.SetVisible(h, visible)
	}
	for _, b := range m.bones[slot] {
		m.scene.SetVisible(b, visible)
	}
	m.visible[slot] = visible
}

// SlotVisible reports whether the hand slot is currently shown.
func (m *Mapper) SlotVisible(slot int) bool {
	return m.visible[slot]
}

// JointHandle returns the persistent handle for a (slot, joint) pair.
func (m *Mapper) JointHandle(slot, joint int) Handle {
	return m.joints[slot][joint]
}

// HideAll parks every hand immediately, bypassing the debounce. Used by the
// pipeline's explicit clear operation; a plain Stop leaves the pose as is.
func (m *Mapper) HideAll() {
	for slot := 0; slot < hand.MaxHands; slot++ {
		if m.visible[slot] {
			m.setSlotVisible(slot, false)
		}
		m.absentRuns[slot] = 0
	}
}
