package pipeline

import (
	"github.com/go-gl/mathgl/mgl32"
)

type gizmoKind int

const (
	gizmoLine gizmoKind = iota
	gizmoCube
	gizmoSphere
	gizmoBillboard
	gizmoLabel
)

type gizmoItem struct {
	kind  gizmoKind
	color [4]float32

	pos      mgl32.Vec3 // center, or line start
	end      mgl32.Vec3 // line end
	size     mgl32.Vec3
	rotation mgl32.Quat
	radius   float32

	text  string
	scale float32
}

// GizmoBuffer accumulates debug geometry over a frame. Systems push
// shapes during update; the pipeline drains the buffer in the overlay
// stage and resets it. Accumulation order is draw order.
type GizmoBuffer struct {
	items []gizmoItem
}

func NewGizmoBuffer() *GizmoBuffer { return &GizmoBuffer{} }

// Len returns the number of accumulated shapes.
func (g *GizmoBuffer) Len() int { return len(g.items) }

// Reset drops all accumulated shapes. Called by the pipeline after the
// overlay stage.
func (g *GizmoBuffer) Reset() { g.items = g.items[:0] }

// Line queues a world-space wireframe segment.
func (g *GizmoBuffer) Line(start, end mgl32.Vec3, color [4]float32) {
	g.items = append(g.items, gizmoItem{kind: gizmoLine, pos: start, end: end, color: color})
}

// Cube queues a wireframe box.
func (g *GizmoBuffer) Cube(center, size mgl32.Vec3, rotation mgl32.Quat, color [4]float32) {
	g.items = append(g.items, gizmoItem{
		kind: gizmoCube, pos: center, size: size, rotation: rotation, color: color,
	})
}

// Sphere queues a wireframe sphere.
func (g *GizmoBuffer) Sphere(center mgl32.Vec3, radius float32, color [4]float32) {
	g.items = append(g.items, gizmoItem{kind: gizmoSphere, pos: center, radius: radius, color: color})
}

// Billboard queues a camera-facing quad, size in world units.
func (g *GizmoBuffer) Billboard(center mgl32.Vec3, size float32, color [4]float32) {
	g.items = append(g.items, gizmoItem{
		kind: gizmoBillboard, pos: center, size: mgl32.Vec3{size, size, size}, color: color,
	})
}

// Label queues a camera-facing text label. Ignored when the pipeline has
// no glyph atlas (no font configured).
func (g *GizmoBuffer) Label(center mgl32.Vec3, text string, scale float32, color [4]float32) {
	g.items = append(g.items, gizmoItem{
		kind: gizmoLabel, pos: center, text: text, scale: scale, color: color,
	})
}

// lineMatrix maps the unit X segment (0,0,0)-(1,0,0) onto start..end.
func lineMatrix(start, end mgl32.Vec3) mgl32.Mat4 {
	d := end.Sub(start)
	return mgl32.Mat4{
		d.X(), d.Y(), d.Z(), 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		start.X(), start.Y(), start.Z(), 1,
	}
}

// billboardMatrix orients a unit quad toward the camera using the view's
// right and up axes.
func billboardMatrix(center mgl32.Vec3, right, up mgl32.Vec3, w, h float32) mgl32.Mat4 {
	r := right.Mul(w)
	u := up.Mul(h)
	fwd := right.Cross(up)
	return mgl32.Mat4{
		r.X(), r.Y(), r.Z(), 0,
		u.X(), u.Y(), u.Z(), 0,
		fwd.X(), fwd.Y(), fwd.Z(), 0,
		center.X(), center.Y(), center.Z(), 1,
	}
}
