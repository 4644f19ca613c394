package ember

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/ember3d/ember/render/core"
	"github.com/ember3d/ember/render/pipeline"
)

// RenderableIndex is a stable handle into the scene registry. The registry
// outlives any single frame; a handle goes stale when its object is
// destroyed and must be revalidated through Valid before reuse, since the
// slot may have been recycled under a new generation.
type RenderableIndex struct {
	index      uint32
	generation uint32
}

type sceneEntry struct {
	generation uint32
	live       bool

	transform core.Transform
	visible   bool
	mesh      *core.Mesh
	material  *core.Material
	overrides core.PropertyBlock
}

type lightEntry struct {
	light core.Light
	live  bool
}

// Scene is the retained registry of renderables and lights. Iteration
// order is registration order for both, and stays stable across frames
// for an unchanged scene. Not safe for concurrent use.
type Scene struct {
	entries []sceneEntry
	free    []uint32

	lights []lightEntry
}

func NewScene() *Scene {
	return &Scene{}
}

// Add registers a renderable and returns its handle. New objects start
// visible with an identity transform.
func (s *Scene) Add(mesh *core.Mesh, material *core.Material) RenderableIndex {
	entry := sceneEntry{
		live:      true,
		visible:   true,
		transform: *core.NewTransform(),
		mesh:      mesh,
		material:  material,
	}

	if n := len(s.free); n > 0 {
		idx := s.free[n-1]
		s.free = s.free[:n-1]
		entry.generation = s.entries[idx].generation
		s.entries[idx] = entry
		return RenderableIndex{index: idx, generation: entry.generation}
	}

	s.entries = append(s.entries, entry)
	return RenderableIndex{index: uint32(len(s.entries) - 1)}
}

// Valid reports whether the handle still refers to a live object.
func (s *Scene) Valid(h RenderableIndex) bool {
	if int(h.index) >= len(s.entries) {
		return false
	}
	e := &s.entries[h.index]
	return e.live && e.generation == h.generation
}

// Remove destroys the object. The slot is recycled under a bumped
// generation, so stale handles can never alias the new occupant.
func (s *Scene) Remove(h RenderableIndex) bool {
	if !s.Valid(h) {
		return false
	}
	e := &s.entries[h.index]
	e.live = false
	e.generation++
	e.mesh = nil
	e.material = nil
	s.free = append(s.free, h.index)
	return true
}

// Transform returns the object's transform for mutation, or nil for a
// stale handle.
func (s *Scene) Transform(h RenderableIndex) *core.Transform {
	if !s.Valid(h) {
		return nil
	}
	return &s.entries[h.index].transform
}

// SetVisible gates the object out of rendering without destroying it.
func (s *Scene) SetVisible(h RenderableIndex, visible bool) {
	if s.Valid(h) {
		s.entries[h.index].visible = visible
	}
}

// Overrides returns the object's per-draw property overrides, or nil for
// a stale handle.
func (s *Scene) Overrides(h RenderableIndex) *core.PropertyBlock {
	if !s.Valid(h) {
		return nil
	}
	return &s.entries[h.index].overrides
}

// AddLight registers a light; the returned id addresses it for updates.
// Light order is registration order.
func (s *Scene) AddLight(l core.Light) int {
	s.lights = append(s.lights, lightEntry{light: l, live: true})
	return len(s.lights) - 1
}

// Light returns the light for mutation, or nil for a removed light.
func (s *Scene) Light(id int) *core.Light {
	if id < 0 || id >= len(s.lights) || !s.lights[id].live {
		return nil
	}
	return &s.lights[id].light
}

// RemoveLight drops the light from iteration. Later lights keep their
// ids; registration order of the survivors is unchanged.
func (s *Scene) RemoveLight(id int) {
	if id >= 0 && id < len(s.lights) {
		s.lights[id].live = false
	}
}

// Renderables resolves the live set into the frame's draw snapshot:
// world transforms, world-space cull bounds and draw handles.
func (s *Scene) Renderables() []pipeline.Renderable {
	out := make([]pipeline.Renderable, 0, len(s.entries))
	for i := range s.entries {
		e := &s.entries[i]
		if !e.live {
			continue
		}
		world := e.transform.ObjectToWorld()
		var bounds core.Bounds
		if e.mesh != nil {
			bounds = e.mesh.Bounds.Transformed(world)
		}
		out = append(out, pipeline.Renderable{
			Visible:   e.visible,
			Transform: world,
			Inverse:   e.transform.WorldToObject(),
			Bounds:    bounds,
			Mesh:      e.mesh,
			Material:  e.material,
			Overrides: e.overrides,
		})
	}
	return out
}

// Lights returns the live lights in registration order.
func (s *Scene) Lights() []core.Light {
	out := make([]core.Light, 0, len(s.lights))
	for i := range s.lights {
		if s.lights[i].live {
			out = append(out, s.lights[i].light)
		}
	}
	return out
}

// OrbitLight circles a scene light around a center point, for demos and
// shadow debugging.
type OrbitLight struct {
	LightID int
	Center  mgl32.Vec3
	Radius  float32
	Speed   float32 // radians per second

	angle float32
}

// Tick advances the orbit by dt seconds and repositions the light, aiming
// it back at the center.
func (o *OrbitLight) Tick(s *Scene, dt float32) {
	l := s.Light(o.LightID)
	if l == nil {
		return
	}
	o.angle += o.Speed * dt
	sin, cos := math.Sincos(float64(o.angle))
	l.Position = o.Center.Add(mgl32.Vec3{
		o.Radius * float32(cos),
		0,
		o.Radius * float32(sin),
	})
	if d := o.Center.Sub(l.Position); d.Len() > 0 {
		l.Direction = d.Normalize()
	}
}
