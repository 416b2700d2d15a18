package scene

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// MemoryScene is an in-process Scene implementation backing tests and the
// websocket monitor. It tracks creation counts so the create-once invariant
// is checkable: steady-state operation must not grow the object table.
type MemoryScene struct {
	mu      sync.Mutex
	objects []*object
	bones   map[[2]Handle]Handle
}

type object struct {
	id      string
	style   JointStyle
	pos     mgl64.Vec3
	visible bool

	// bone endpoints; nil handles mean the object is a joint
	isBone bool
	a, b   Handle
}

// JointSnapshot is one object's state in a scene snapshot.
type JointSnapshot struct {
	ID      string     `json:"id"`
	Color   string     `json:"color,omitempty"`
	Pos     [3]float64 `json:"pos"`
	Visible bool       `json:"visible"`
}

// BoneSnapshot is one connector's state in a scene snapshot.
type BoneSnapshot struct {
	A       [3]float64 `json:"a"`
	B       [3]float64 `json:"b"`
	Visible bool       `json:"visible"`
}

// Snapshot is a JSON-friendly copy of the full scene state.
type Snapshot struct {
	Joints []JointSnapshot `json:"joints"`
	Bones  []BoneSnapshot  `json:"bones"`
}

func NewMemoryScene() *MemoryScene {
	return &MemoryScene{bones: make(map[[2]Handle]Handle)}
}

func (s *MemoryScene) CreateJoint(id string, style JointStyle) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects = append(s.objects, &object{id: id, style: style, visible: true})
	return Handle(len(s.objects) - 1)
}

func (s *MemoryScene) SetPosition(h Handle, pos mgl64.Vec3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o := s.object(h); o != nil {
		o.pos = pos
	}
}

func (s *MemoryScene) SetVisible(h Handle, visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o := s.object(h); o != nil {
		o.visible = visible
	}
}

func (s *MemoryScene) UpsertBone(a, b Handle) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := [2]Handle{a, b}
	if h, ok := s.bones[key]; ok {
		// Endpoints are read live at snapshot time, so an update is a no-op
		// beyond confirming the connector exists.
		return h
	}
	s.objects = append(s.objects, &object{isBone: true, a: a, b: b, visible: true})
	h := Handle(len(s.objects) - 1)
	s.bones[key] = h
	return h
}

func (s *MemoryScene) object(h Handle) *object {
	if int(h) < 0 || int(h) >= len(s.objects) {
		return nil
	}
	return s.objects[h]
}

// ObjectCount returns how many scene objects were ever created. Constant
// across Apply calls once the mapper is constructed.
func (s *MemoryScene) ObjectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// Position returns a joint's current position.
func (s *MemoryScene) Position(h Handle) mgl64.Vec3 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o := s.object(h); o != nil {
		return o.pos
	}
	return mgl64.Vec3{}
}

// Visible returns a scene object's visibility.
func (s *MemoryScene) Visible(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o := s.object(h); o != nil {
		return o.visible
	}
	return false
}

// BoneSegment returns the current endpoint positions of the connector
// between joints a and b.
func (s *MemoryScene) BoneSegment(a, b Handle) (mgl64.Vec3, mgl64.Vec3, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bones[[2]Handle{a, b}]; !ok {
		return mgl64.Vec3{}, mgl64.Vec3{}, false
	}
	oa, ob := s.object(a), s.object(b)
	if oa == nil || ob == nil {
		return mgl64.Vec3{}, mgl64.Vec3{}, false
	}
	return oa.pos, ob.pos, true
}

// Snapshot copies the scene state for serialization.
func (s *MemoryScene) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap Snapshot
	for _, o := range s.objects {
		if o.isBone {
			continue
		}
		snap.Joints = append(snap.Joints, JointSnapshot{
			ID:      o.id,
			Color:   o.style.Color,
			Pos:     [3]float64{o.pos[0], o.pos[1], o.pos[2]},
			Visible: o.visible,
		})
	}
	for _, h := range s.bones {
		o := s.objects[h]
		oa, ob := s.object(o.a), s.object(o.b)
		if oa == nil || ob == nil {
			continue
		}
		snap.Bones = append(snap.Bones, BoneSnapshot{
			A:       [3]float64{oa.pos[0], oa.pos[1], oa.pos[2]},
			B:       [3]float64{ob.pos[0], ob.pos[1], ob.pos[2]},
			Visible: o.visible,
		})
	}
	return snap
}
