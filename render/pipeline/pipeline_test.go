package pipeline

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/ember3d/ember/render/cmdbuf"
	"github.com/ember3d/ember/render/core"
)

type stubCompiler struct {
	compiles int
}

func (c *stubCompiler) Compile(shader *core.Shader, keywords core.KeywordSet) (*core.Variant, error) {
	c.compiles++
	passes := make([]core.CompiledPass, len(shader.Passes))
	for i, p := range shader.Passes {
		passes[i] = core.CompiledPass{Name: p.Name, Program: struct{}{}, ParamIndex: map[string]int{}}
	}
	return &core.Variant{Passes: passes}, nil
}

type stubScene struct {
	renderables []Renderable
	lights      []core.Light
}

func (s *stubScene) Renderables() []Renderable { return s.renderables }
func (s *stubScene) Lights() []core.Light      { return s.lights }

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	return New(Options{Compiler: &stubCompiler{}})
}

// drawsInto counts DrawIndexed ops recorded while a target of the given
// format is bound as the color attachment.
func drawsInto(ops []cmdbuf.Op, format core.TargetFormat) int {
	n := 0
	active := false
	for _, op := range ops {
		switch o := op.(type) {
		case cmdbuf.SetRenderTarget:
			active = o.Color != nil && o.Color.Format == format
		case cmdbuf.DrawIndexed:
			if active {
				n++
			}
		}
	}
	return n
}

func lightBufferData(t *testing.T, ops []cmdbuf.Op) []byte {
	t.Helper()
	for _, op := range ops {
		if o, ok := op.(cmdbuf.SetBuffer); ok && o.Name == "lights" {
			return o.Data
		}
	}
	t.Fatal("no light buffer recorded")
	return nil
}

// slotParams decodes the (range, x, y, width) params vec4 of each encoded
// light record.
func slotParams(data []byte) [][4]float32 {
	var out [][4]float32
	for off := 0; off+GPULightSize <= len(data); off += GPULightSize {
		var p [4]float32
		for i := 0; i < 4; i++ {
			bits := binary.LittleEndian.Uint32(data[off+48+i*4:])
			p[i] = math.Float32frombits(bits)
		}
		out = append(out, p)
	}
	return out
}

func TestRenderSingleObjectSingleDirectionalLight(t *testing.T) {
	mesh := core.NewMesh("box", core.Bounds{Extents: mgl32.Vec3{0.5, 0.5, 0.5}}, 24, 36)

	// Camera far from the origin with rebasing on, so the test exercises
	// the world-to-upload boundary.
	cam := core.NewCamera()
	cam.Transform.Position = mgl32.Vec3{1000, 0, 0}
	cam.ClearMode = core.ClearDepthColor
	cam.RelativeRebase = true

	objPos := mgl32.Vec3{1000, 0, -5}
	scene := &stubScene{
		renderables: []Renderable{{
			Visible:   true,
			Transform: mgl32.Translate3D(objPos.X(), objPos.Y(), objPos.Z()),
			Inverse:   mgl32.Translate3D(-objPos.X(), -objPos.Y(), -objPos.Z()),
			Bounds:    core.Bounds{Center: objPos, Extents: mgl32.Vec3{0.5, 0.5, 0.5}},
			Mesh:      mesh,
		}},
		lights: []core.Light{{
			Type:        core.LightTypeDirectional,
			Direction:   mgl32.Vec3{0, -1, 0},
			Color:       [3]float32{1, 1, 1},
			Intensity:   1,
			CastShadows: true,
		}},
	}

	p := newTestPipeline(t)
	out := core.NewRenderTarget("out", 800, 600, core.FormatRGBA8)
	buf := cmdbuf.NewBuffer("frame")

	if err := p.Render(buf, scene, cam, out); err != nil {
		t.Fatal(err)
	}

	if got := drawsInto(buf.Ops(), core.FormatRGBA16Float); got != 1 {
		t.Errorf("main pass draws: want 1, got %d", got)
	}
	if got := drawsInto(buf.Ops(), core.FormatRGBA8); got != 1 {
		t.Errorf("tone-map draws into output: want 1, got %d", got)
	}

	// Rebasing must cancel out: the recorded MVP equals the plain
	// world-space projection within float tolerance.
	var mvp mgl32.Mat4
	found := false
	for _, op := range buf.Ops() {
		if o, ok := op.(cmdbuf.SetMatrix); ok && o.Name == "mvp" {
			mvp = o.Value
			found = true
		}
	}
	if !found {
		t.Fatal("no mvp uniform recorded")
	}
	want := cam.ViewProjection(800.0 / 600.0).Mul4(scene.renderables[0].Transform)
	for i := range want {
		if diff := math.Abs(float64(want[i] - mvp[i])); diff > 1e-2 {
			t.Fatalf("mvp[%d]: rebased %g vs world %g (diff %g)", i, mvp[i], want[i], diff)
		}
	}

	// The tone-map blit is the terminal draw.
	lastDraw := -1
	lastTarget := -1
	for i, op := range buf.Ops() {
		switch op.(type) {
		case cmdbuf.DrawIndexed:
			lastDraw = i
		case cmdbuf.SetRenderTarget:
			lastTarget = i
		}
	}
	if lastDraw < lastTarget {
		t.Error("no draw recorded after the final render-target switch")
	}
}

func TestRenderAtlasPressureDegradesLights(t *testing.T) {
	cam := core.NewCamera()
	cam.ClearMode = core.ClearDepthColor

	// 20 max-resolution point lights at the camera; a 2048 atlas fits
	// four 1024 slots, so most must degrade to unshadowed.
	var lights []core.Light
	for i := 0; i < 20; i++ {
		lights = append(lights, core.Light{
			Type:        core.LightTypePoint,
			Position:    cam.Transform.Position,
			Direction:   mgl32.Vec3{0, -1, 0},
			Range:       30,
			Intensity:   1,
			CastShadows: true,
		})
	}
	scene := &stubScene{lights: lights}

	p := newTestPipeline(t)
	buf := cmdbuf.NewBuffer("frame")
	out := core.NewRenderTarget("out", 640, 480, core.FormatRGBA8)
	if err := p.Render(buf, scene, cam, out); err != nil {
		t.Fatal(err)
	}

	params := slotParams(lightBufferData(t, buf.Ops()))
	if len(params) != 20 {
		t.Fatalf("want 20 light records, got %d", len(params))
	}

	degraded := 0
	type rect struct{ x, y, w float32 }
	var reserved []rect
	for _, pr := range params {
		if pr[3] == 0 {
			degraded++
			continue
		}
		reserved = append(reserved, rect{x: pr[1], y: pr[2], w: pr[3]})
	}
	if degraded == 0 {
		t.Error("expected at least one light degraded to unshadowed")
	}
	if len(reserved) == 0 {
		t.Error("expected at least one light to hold a slot")
	}
	for i := 0; i < len(reserved); i++ {
		for j := i + 1; j < len(reserved); j++ {
			a, b := reserved[i], reserved[j]
			if a.x < b.x+b.w && b.x < a.x+a.w && a.y < b.y+b.w && b.y < a.y+a.w {
				t.Fatalf("slots %d and %d overlap: %+v %+v", i, j, a, b)
			}
		}
	}
}

func TestRenderDeterministicAcrossFrames(t *testing.T) {
	mesh := core.NewMesh("box", core.Bounds{Extents: mgl32.Vec3{1, 1, 1}}, 24, 36)
	cam := core.NewCamera()
	cam.ClearMode = core.ClearDepthColor

	scene := &stubScene{
		renderables: []Renderable{{
			Visible:   true,
			Transform: mgl32.Translate3D(0, 0, -10),
			Inverse:   mgl32.Translate3D(0, 0, 10),
			Bounds:    core.Bounds{Center: mgl32.Vec3{0, 0, -10}, Extents: mgl32.Vec3{1, 1, 1}},
			Mesh:      mesh,
		}},
		lights: []core.Light{
			{Type: core.LightTypeDirectional, Direction: mgl32.Vec3{0, -1, 0}, CastShadows: true, Intensity: 1},
			{Type: core.LightTypePoint, Position: mgl32.Vec3{3, 1, -8}, Range: 15, CastShadows: true, Intensity: 1},
			{Type: core.LightTypeSpot, Position: mgl32.Vec3{-3, 4, -8}, Direction: mgl32.Vec3{0, -1, 0}, ConeAngle: 45, Range: 20, CastShadows: true, Intensity: 1},
		},
	}

	p := newTestPipeline(t)
	out := core.NewRenderTarget("out", 640, 480, core.FormatRGBA8)

	bufA := cmdbuf.NewBuffer("a")
	if err := p.Render(bufA, scene, cam, out); err != nil {
		t.Fatal(err)
	}
	bufB := cmdbuf.NewBuffer("b")
	if err := p.Render(bufB, scene, cam, out); err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(lightBufferData(t, bufA.Ops()), lightBufferData(t, bufB.Ops())) {
		t.Error("light buffer differs between identical frames")
	}
	if bufA.DrawCount() != bufB.DrawCount() {
		t.Errorf("draw count differs: %d vs %d", bufA.DrawCount(), bufB.DrawCount())
	}
}

func TestRenderCulledObjectEmitsNoDraw(t *testing.T) {
	mesh := core.NewMesh("box", core.Bounds{Extents: mgl32.Vec3{0.5, 0.5, 0.5}}, 24, 36)
	cam := core.NewCamera()
	cam.ClearMode = core.ClearDepthColor

	// Behind the camera.
	scene := &stubScene{
		renderables: []Renderable{{
			Visible:   true,
			Transform: mgl32.Translate3D(0, 0, 50),
			Inverse:   mgl32.Translate3D(0, 0, -50),
			Bounds:    core.Bounds{Center: mgl32.Vec3{0, 0, 50}, Extents: mgl32.Vec3{0.5, 0.5, 0.5}},
			Mesh:      mesh,
		}},
	}

	p := newTestPipeline(t)
	buf := cmdbuf.NewBuffer("frame")
	out := core.NewRenderTarget("out", 640, 480, core.FormatRGBA8)
	if err := p.Render(buf, scene, cam, out); err != nil {
		t.Fatal(err)
	}

	if got := drawsInto(buf.Ops(), core.FormatRGBA16Float); got != 0 {
		t.Errorf("culled object still drew %d times", got)
	}
}

func TestRenderSkyboxClearModeDrawsSkybox(t *testing.T) {
	cam := core.NewCamera() // default clear mode is ClearSkybox

	p := newTestPipeline(t)
	buf := cmdbuf.NewBuffer("frame")
	out := core.NewRenderTarget("out", 640, 480, core.FormatRGBA8)
	if err := p.Render(buf, &stubScene{}, cam, out); err != nil {
		t.Fatal(err)
	}

	if got := drawsInto(buf.Ops(), core.FormatRGBA16Float); got != 1 {
		t.Errorf("skybox clear mode: want 1 main-pass draw, got %d", got)
	}
}

// TestRenderClearFoldsIntoPassBegin holds every recorded stream to the
// submitter's contract: a Clear folds into the pass load ops, so it must
// precede the first pass-opening op (viewport, material, geometry, draw)
// after a target switch.
func TestRenderClearFoldsIntoPassBegin(t *testing.T) {
	mesh := core.NewMesh("box", core.Bounds{Extents: mgl32.Vec3{0.5, 0.5, 0.5}}, 24, 36)
	cam := core.NewCamera()
	cam.ClearMode = core.ClearDepthColor

	scene := &stubScene{
		renderables: []Renderable{{
			Visible:   true,
			Transform: mgl32.Translate3D(0, 0, -5),
			Inverse:   mgl32.Translate3D(0, 0, 5),
			Bounds:    core.Bounds{Center: mgl32.Vec3{0, 0, -5}, Extents: mgl32.Vec3{0.5, 0.5, 0.5}},
			Mesh:      mesh,
		}},
		lights: []core.Light{{
			Type: core.LightTypeDirectional, Direction: mgl32.Vec3{0, -1, 0},
			Intensity: 1, CastShadows: true,
		}},
	}

	p := newTestPipeline(t)
	buf := cmdbuf.NewBuffer("frame")
	out := core.NewRenderTarget("out", 640, 480, core.FormatRGBA8)
	if err := p.Render(buf, scene, cam, out); err != nil {
		t.Fatal(err)
	}

	passOpen := false
	for i, op := range buf.Ops() {
		switch op.(type) {
		case cmdbuf.SetRenderTarget:
			passOpen = false
		case cmdbuf.Clear:
			if passOpen {
				t.Fatalf("op %d: Clear recorded after the pass opened", i)
			}
		case cmdbuf.SetViewport, cmdbuf.SetMaterialPass, cmdbuf.BindGeometry, cmdbuf.DrawIndexed:
			passOpen = true
		}
	}
}

// Objects carrying no material fall back to the built-in forward material,
// which must shade white, not zero.
func TestRenderDefaultMaterialBaseColor(t *testing.T) {
	mesh := core.NewMesh("box", core.Bounds{Extents: mgl32.Vec3{0.5, 0.5, 0.5}}, 24, 36)
	cam := core.NewCamera()
	cam.ClearMode = core.ClearDepthColor

	scene := &stubScene{
		renderables: []Renderable{{
			Visible:   true,
			Transform: mgl32.Translate3D(0, 0, -5),
			Inverse:   mgl32.Translate3D(0, 0, 5),
			Bounds:    core.Bounds{Center: mgl32.Vec3{0, 0, -5}, Extents: mgl32.Vec3{0.5, 0.5, 0.5}},
			Mesh:      mesh,
		}},
	}

	p := newTestPipeline(t)
	buf := cmdbuf.NewBuffer("frame")
	out := core.NewRenderTarget("out", 640, 480, core.FormatRGBA8)
	if err := p.Render(buf, scene, cam, out); err != nil {
		t.Fatal(err)
	}

	inMain := false
	found := false
	for _, op := range buf.Ops() {
		switch o := op.(type) {
		case cmdbuf.SetRenderTarget:
			inMain = o.Color != nil && o.Color.Format == core.FormatRGBA16Float
		case cmdbuf.SetVector:
			if inMain && o.Name == "base_color" {
				found = true
				if o.Value != (mgl32.Vec4{1, 1, 1, 1}) {
					t.Errorf("base_color: got %v, want white", o.Value)
				}
			}
		case cmdbuf.DrawIndexed:
			if inMain && !found {
				t.Fatal("main-pass draw recorded before base_color was set")
			}
		}
	}
	if !found {
		t.Fatal("no base_color recorded for the default material")
	}
}

// Every built-in mesh must carry uploadable geometry whose counts agree
// with its draw counts.
func TestBuiltinMeshesCarryGeometry(t *testing.T) {
	p := newTestPipeline(t)
	if err := p.ctx.EnsureInitialized(p.opts); err != nil {
		t.Fatal(err)
	}

	meshes := []*core.Mesh{
		p.ctx.lineMesh, p.ctx.wireCubeMesh, p.ctx.wireSphereMesh,
		p.ctx.quadMesh, p.ctx.fullscreenTriMesh,
	}
	for _, m := range meshes {
		if m.VertexCount == 0 || m.IndexCount == 0 {
			t.Errorf("%s: empty mesh", m.Name)
		}
		if got := uint32(len(m.Vertices) / 8); got != m.VertexCount {
			t.Errorf("%s: %d vertices in geometry, VertexCount %d", m.Name, got, m.VertexCount)
		}
		if got := uint32(len(m.Indices)); got != m.IndexCount {
			t.Errorf("%s: %d indices in geometry, IndexCount %d", m.Name, got, m.IndexCount)
		}
		for _, idx := range m.Indices {
			if idx >= m.VertexCount {
				t.Errorf("%s: index %d out of range (%d vertices)", m.Name, idx, m.VertexCount)
			}
		}
	}
}

// Billboards rasterize triangles, so they must draw under the dedicated
// billboard sub-pass rather than the line-list gizmo pass.
func TestBillboardDrawsUnderTrianglePass(t *testing.T) {
	cam := core.NewCamera()
	cam.ClearMode = core.ClearDepthColor

	p := newTestPipeline(t)
	p.Gizmos().Line(mgl32.Vec3{}, mgl32.Vec3{0, 1, 0}, [4]float32{1, 0, 0, 1})
	p.Gizmos().Billboard(mgl32.Vec3{0, 2, 0}, 0.5, [4]float32{0, 1, 0, 1})

	buf := cmdbuf.NewBuffer("frame")
	out := core.NewRenderTarget("out", 640, 480, core.FormatRGBA8)
	if err := p.Render(buf, &stubScene{}, cam, out); err != nil {
		t.Fatal(err)
	}

	billboardPass := p.ctx.gizmoMat.Shader.PassIndex("billboard")
	if billboardPass < 0 {
		t.Fatal("gizmo shader has no billboard pass")
	}

	activePass := -1
	var passByMesh = map[string]int{}
	for _, op := range buf.Ops() {
		switch o := op.(type) {
		case cmdbuf.SetMaterialPass:
			if o.Material == p.ctx.gizmoMat {
				activePass = o.Pass
			} else {
				activePass = -1
			}
		case cmdbuf.BindGeometry:
			if activePass >= 0 {
				passByMesh[o.Mesh.Name] = activePass
			}
		}
	}

	if got, ok := passByMesh[p.ctx.lineMesh.Name]; !ok || got != 0 {
		t.Errorf("line gizmo pass: got %d (recorded %v), want 0", got, ok)
	}
	if got, ok := passByMesh[p.ctx.quadMesh.Name]; !ok || got != billboardPass {
		t.Errorf("billboard pass: got %d (recorded %v), want %d", got, ok, billboardPass)
	}
}

func TestPassTokenMisusePanics(t *testing.T) {
	p := newTestPipeline(t)

	t.Run("reentrant begin", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("expected panic on re-entrant BeginPass")
			}
			p.activePass = nil
		}()
		p.BeginPass("first")
		p.BeginPass("second")
	})

	t.Run("foreign token", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("expected panic on EndPass with a foreign token")
			}
			p.activePass = nil
		}()
		p.BeginPass("first")
		p.EndPass(&PassToken{name: "forged"})
	})
}

func TestVariantCacheReusedAcrossFrames(t *testing.T) {
	compiler := &stubCompiler{}
	p := New(Options{Compiler: compiler})
	cam := core.NewCamera()
	cam.ClearMode = core.ClearDepthColor

	mesh := core.NewMesh("box", core.Bounds{Extents: mgl32.Vec3{1, 1, 1}}, 24, 36)
	scene := &stubScene{
		renderables: []Renderable{{
			Visible:   true,
			Transform: mgl32.Translate3D(0, 0, -5),
			Inverse:   mgl32.Translate3D(0, 0, 5),
			Bounds:    core.Bounds{Center: mgl32.Vec3{0, 0, -5}, Extents: mgl32.Vec3{1, 1, 1}},
			Mesh:      mesh,
		}},
	}

	out := core.NewRenderTarget("out", 640, 480, core.FormatRGBA8)
	for i := 0; i < 3; i++ {
		buf := cmdbuf.NewBuffer("frame")
		if err := p.Render(buf, scene, cam, out); err != nil {
			t.Fatal(err)
		}
	}

	// One compile for the forward shader and one for tone-map, regardless
	// of frame count.
	if compiler.compiles != 2 {
		t.Errorf("want 2 compiles across 3 frames, got %d", compiler.compiles)
	}
}
