// Package pipeline sequences one rendered frame: shadow passes into the
// atlas, the main forward pass, grid and gizmo overlays, and the final
// tone-map blit. The whole frame is a single synchronous call chain on the
// render thread; all mutable per-frame state is reset or repopulated each
// frame.
package pipeline

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/ember3d/ember/render/core"
)

// Renderable is one frame's snapshot of a drawable object, resolved by the
// scene registry: world transform, cull bounds and draw-ready handles.
type Renderable struct {
	// Visible gates the object out of every pass without unregistering it.
	Visible bool

	Transform mgl32.Mat4 // object-to-world
	Inverse   mgl32.Mat4 // world-to-object

	// Bounds are world-space cull bounds, recomputed on transform change.
	Bounds core.Bounds

	Mesh     *core.Mesh
	Material *core.Material

	// Overrides are applied on top of the material's own properties,
	// immediately before the draw.
	Overrides core.PropertyBlock
}

// SceneSource is the scene/registry collaborator: stable iteration
// sequences of the live renderables and lights for the current frame.
type SceneSource interface {
	Renderables() []Renderable
	Lights() []core.Light
}

// Logger is the subset of the engine logger the pipeline reports through.
// The root shell's DefaultLogger satisfies it.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(format string, args ...any) {}
func (nopLogger) Warnf(format string, args ...any)  {}
