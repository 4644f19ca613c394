// Package cmdbuf records ordered GPU state-setting and draw operations for
// deferred submission. Recording is synchronous on the render thread; a
// Submitter hands the finished sequence to the device, which may execute
// asynchronously. The pipeline never inspects a buffer after recording.
package cmdbuf

import (
	"fmt"
	"image"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/ember3d/ember/render/core"
)

// Op is one recorded operation.
type Op interface {
	op()
}

type SetRenderTarget struct {
	Color *core.RenderTarget
	Depth *core.RenderTarget
}

type Clear struct {
	ClearColor bool
	ClearDepth bool
	Color      [4]float32
	Depth      float32
}

type SetViewport struct {
	X, Y          int
	Width, Height int
}

// SetMaterialPass activates one compiled pass of a material's variant.
// All uniform ops that follow apply to this program until the next
// SetMaterialPass or the end of the buffer.
type SetMaterialPass struct {
	Material *core.Material
	Variant  *core.Variant
	Pass     int
}

type SetFloat struct {
	Name  string
	Value float32
}

type SetVector struct {
	Name  string
	Value mgl32.Vec4
}

type SetMatrix struct {
	Name  string
	Value mgl32.Mat4
}

type SetTexture struct {
	Name    string
	Texture core.TextureID
	// View is the device texture view when the texture is a render
	// target rather than an asset.
	View any
	// Target, when set, names a render target whose view is resolved at
	// execution time. Recording can happen before the device texture
	// exists, so the op carries the target instead of a view snapshot.
	Target *core.RenderTarget
	// Image, when set, is CPU pixel data the device layer uploads on
	// first use (the glyph atlas).
	Image *image.Alpha
}

// SetBuffer binds raw GPU-readable data (for example the per-frame light
// buffer) under a named storage slot.
type SetBuffer struct {
	Name string
	Data []byte
}

type BindGeometry struct {
	Mesh *core.Mesh
}

type DrawIndexed struct {
	IndexCount    uint32
	InstanceCount uint32
}

func (SetRenderTarget) op() {}
func (Clear) op()           {}
func (SetViewport) op()     {}
func (SetMaterialPass) op() {}
func (SetFloat) op()        {}
func (SetVector) op()       {}
func (SetMatrix) op()       {}
func (SetTexture) op()      {}
func (SetBuffer) op()       {}
func (BindGeometry) op()    {}
func (DrawIndexed) op()     {}

// Submitter executes a recorded op sequence on a device.
type Submitter interface {
	Submit(ops []Op) error
}

// Buffer accumulates operations in record order.
type Buffer struct {
	name      string
	ops       []Op
	submitted bool
}

func NewBuffer(name string) *Buffer {
	return &Buffer{name: name}
}

func (b *Buffer) Name() string { return b.name }

// Ops returns the recorded sequence. Callers must treat it as read-only.
func (b *Buffer) Ops() []Op { return b.ops }

// Reset clears the recording so the buffer can be reused next frame.
func (b *Buffer) Reset() {
	b.ops = b.ops[:0]
	b.submitted = false
}

func (b *Buffer) record(op Op) {
	b.ops = append(b.ops, op)
}

func (b *Buffer) SetRenderTarget(color, depth *core.RenderTarget) {
	b.record(SetRenderTarget{Color: color, Depth: depth})
}

func (b *Buffer) Clear(clearColor, clearDepth bool, color [4]float32, depth float32) {
	b.record(Clear{ClearColor: clearColor, ClearDepth: clearDepth, Color: color, Depth: depth})
}

func (b *Buffer) SetViewport(x, y, width, height int) {
	b.record(SetViewport{X: x, Y: y, Width: width, Height: height})
}

func (b *Buffer) SetMaterialPass(mat *core.Material, variant *core.Variant, pass int) {
	b.record(SetMaterialPass{Material: mat, Variant: variant, Pass: pass})
}

func (b *Buffer) SetFloat(name string, v float32)             { b.record(SetFloat{Name: name, Value: v}) }
func (b *Buffer) SetVector(name string, v mgl32.Vec4)         { b.record(SetVector{Name: name, Value: v}) }
func (b *Buffer) SetMatrix(name string, v mgl32.Mat4)         { b.record(SetMatrix{Name: name, Value: v}) }
func (b *Buffer) SetBuffer(name string, data []byte)          { b.record(SetBuffer{Name: name, Data: data}) }
func (b *Buffer) BindGeometry(mesh *core.Mesh)                { b.record(BindGeometry{Mesh: mesh}) }
func (b *Buffer) DrawIndexed(indexCount, instances uint32)    { b.record(DrawIndexed{IndexCount: indexCount, InstanceCount: instances}) }

func (b *Buffer) SetTexture(name string, tex core.TextureID, view any) {
	b.record(SetTexture{Name: name, Texture: tex, View: view})
}

// SetTargetTexture binds a render target as a sampled texture. The view is
// looked up from the target when the op executes.
func (b *Buffer) SetTargetTexture(name string, rt *core.RenderTarget) {
	b.record(SetTexture{Name: name, Texture: rt.ID, Target: rt})
}

// SetImageTexture binds a CPU image as a sampled texture; the device layer
// uploads it once and caches the view under the texture ID.
func (b *Buffer) SetImageTexture(name string, tex core.TextureID, img *image.Alpha) {
	b.record(SetTexture{Name: name, Texture: tex, Image: img})
}

// DrawCount returns how many draw calls the buffer holds.
func (b *Buffer) DrawCount() int {
	n := 0
	for _, op := range b.ops {
		if _, ok := op.(DrawIndexed); ok {
			n++
		}
	}
	return n
}

// Submit hands the recorded sequence to the submitter. A buffer may be
// submitted once per recording; Reset re-arms it.
func (b *Buffer) Submit(s Submitter) error {
	if b.submitted {
		return fmt.Errorf("command buffer %q already submitted", b.name)
	}
	if err := s.Submit(b.ops); err != nil {
		return fmt.Errorf("submit %q: %w", b.name, err)
	}
	b.submitted = true
	return nil
}
