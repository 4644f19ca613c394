package ember

import (
	"github.com/go-gl/mathgl/mgl32"
)

type GizmoType int

const (
	GizmoLine GizmoType = iota
	GizmoCube
	GizmoSphere
	GizmoBillboard
	GizmoLabel
)

// GizmoComponent visualizes a point of interest as debug geometry: lines,
// wireframe shapes, billboard icons or a text label.
type GizmoComponent struct {
	Type  GizmoType
	Color [4]float32

	// Position is the shape center; for GizmoLine it is the start point.
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3 // default {1,1,1}

	LineEnd mgl32.Vec3 // GizmoLine end point, world space
	Radius  float32    // GizmoSphere radius / GizmoBillboard size / label scale
	Text    string     // GizmoLabel content
}

func NewGizmoLine(start, end mgl32.Vec3, color [4]float32) GizmoComponent {
	return GizmoComponent{
		Type:     GizmoLine,
		Position: start,
		LineEnd:  end,
		Color:    color,
		Scale:    mgl32.Vec3{1, 1, 1},
		Rotation: mgl32.QuatIdent(),
	}
}

func NewGizmoCube(center, size mgl32.Vec3, color [4]float32) GizmoComponent {
	return GizmoComponent{
		Type:     GizmoCube,
		Position: center,
		Scale:    size,
		Color:    color,
		Rotation: mgl32.QuatIdent(),
	}
}

func NewGizmoSphere(center mgl32.Vec3, radius float32, color [4]float32) GizmoComponent {
	return GizmoComponent{
		Type:     GizmoSphere,
		Position: center,
		Radius:   radius,
		Scale:    mgl32.Vec3{1, 1, 1},
		Color:    color,
		Rotation: mgl32.QuatIdent(),
	}
}

func NewGizmoLabel(center mgl32.Vec3, text string, scale float32, color [4]float32) GizmoComponent {
	return GizmoComponent{
		Type:     GizmoLabel,
		Position: center,
		Text:     text,
		Radius:   scale,
		Color:    color,
		Scale:    mgl32.Vec3{1, 1, 1},
		Rotation: mgl32.QuatIdent(),
	}
}

// Gizmos is the retained set of debug shapes, installed by GizmoModule.
// Shapes persist across frames until removed, unlike the pipeline's
// per-frame accumulator they feed.
type Gizmos struct {
	items []GizmoComponent
}

func (g *Gizmos) Add(c GizmoComponent) {
	g.items = append(g.items, c)
}

func (g *Gizmos) Clear() {
	g.items = g.items[:0]
}

// GizmoModule feeds retained debug shapes into the renderer every frame.
type GizmoModule struct {
}

func (m GizmoModule) Install(app *App) {
	app.addResources(&Gizmos{})
	app.UseSystem(System(pushGizmos).InStage(PreRender))
}

func pushGizmos(gizmos *Gizmos, state *RenderState) {
	buf := state.Pipeline.Gizmos()
	for i := range gizmos.items {
		c := &gizmos.items[i]
		switch c.Type {
		case GizmoLine:
			buf.Line(c.Position, c.LineEnd, c.Color)
		case GizmoCube:
			buf.Cube(c.Position, c.Scale, c.Rotation, c.Color)
		case GizmoSphere:
			buf.Sphere(c.Position, c.Radius, c.Color)
		case GizmoBillboard:
			buf.Billboard(c.Position, c.Radius, c.Color)
		case GizmoLabel:
			buf.Label(c.Position, c.Text, c.Radius, c.Color)
		}
	}
}
