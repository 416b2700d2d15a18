// Package scene maps normalized camera-space landmarks onto persistent 3D
// scene objects. The host renderer sits behind the Scene interface; the
// mapper only depends on this capability set, never on a specific host.
package scene

import "github.com/go-gl/mathgl/mgl64"

// Handle identifies a scene object owned by the host.
type Handle int

// JointStyle carries per-hand presentation hints applied at creation time.
type JointStyle struct {
	Color  string
	Radius float64
}

// Scene is the host's rendering capability set. CreateJoint is called once
// per joint at mapper construction; everything afterwards is in-place
// mutation. UpsertBone creates a bone connector between two joints on first
// call and recomputes its segment from the joints' current positions on
// every later call with the same pair.
type Scene interface {
	CreateJoint(id string, style JointStyle) Handle
	SetPosition(h Handle, pos mgl64.Vec3)
	SetVisible(h Handle, visible bool)
	UpsertBone(a, b Handle) Handle
}
