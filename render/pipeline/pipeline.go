package pipeline

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/ember3d/ember/render/atlas"
	"github.com/ember3d/ember/render/cmdbuf"
	"github.com/ember3d/ember/render/core"
)

// PassToken scopes one shader pass. BeginPass hands it out, EndPass
// requires it back; beginning a pass while another is active is a
// programmer error and panics rather than corrupting GPU state.
type PassToken struct {
	name string
}

// Pipeline renders frames. One instance per output surface; not safe for
// concurrent use.
type Pipeline struct {
	ctx    *Context
	opts   Options
	gizmos *GizmoBuffer

	activePass *PassToken

	// rebaseOffset is the camera world position while camera-relative
	// rebasing is on, zero otherwise. Applied once at the world-to-upload
	// boundary; every consumer (renderables, skybox, grid, gizmos,
	// lights) goes through rebasePoint/rebaseModel.
	rebaseOffset mgl32.Vec3
}

func New(opts Options) *Pipeline {
	return &Pipeline{
		ctx:    NewContext(opts),
		opts:   opts,
		gizmos: NewGizmoBuffer(),
	}
}

// Context exposes the pipeline-owned render state.
func (p *Pipeline) Context() *Context { return p.ctx }

// Gizmos is the frame's debug-shape accumulator, drained by Render.
func (p *Pipeline) Gizmos() *GizmoBuffer { return p.gizmos }

// BeginPass opens a pass scope. Panics when a pass is already active.
func (p *Pipeline) BeginPass(name string) *PassToken {
	if p.activePass != nil {
		panic(fmt.Sprintf("render: begin pass %q while pass %q is active", name, p.activePass.name))
	}
	t := &PassToken{name: name}
	p.activePass = t
	return t
}

// EndPass closes the pass scope opened by BeginPass. Panics on a stale or
// foreign token.
func (p *Pipeline) EndPass(t *PassToken) {
	if p.activePass != t {
		panic("render: end pass with a token that is not the active pass")
	}
	p.activePass = nil
}

// Render records one full frame into buf: shadow passes, the main forward
// pass into a temporary HDR target, overlays, and the tone-map blit into
// out. The caller submits the buffer.
func (p *Pipeline) Render(buf *cmdbuf.Buffer, scene SceneSource, cam *core.Camera, out *core.RenderTarget) error {
	if err := p.ctx.EnsureInitialized(p.opts); err != nil {
		return err
	}
	if out == nil || out.Width <= 0 || out.Height <= 0 {
		return fmt.Errorf("render: invalid output target")
	}
	aspect := float32(out.Width) / float32(out.Height)

	// Culling stays in world space; rebasing applies only at upload.
	worldVP := cam.ViewProjection(aspect)
	frustum, err := core.NewBoundingFrustum(worldVP)
	if err != nil {
		return fmt.Errorf("camera frustum: %w", err)
	}

	if cam.RelativeRebase {
		p.rebaseOffset = cam.Transform.Position
	} else {
		p.rebaseOffset = mgl32.Vec3{}
	}
	uploadVP := cam.ProjectionMatrix(aspect).Mul4(p.uploadView(cam))

	renderables := scene.Renderables()
	batches := EnumerateBatches(renderables, p.ctx.DefaultMaterial())
	lights := scene.Lights()

	records, sunDir := p.shadowStage(buf, lights, cam, renderables, batches)

	hdr := p.ctx.AcquireTarget(out.Width, out.Height, core.FormatRGBA16Float)
	depth := p.ctx.AcquireTarget(out.Width, out.Height, core.FormatDepth32)

	p.mainStage(buf, cam, hdr, depth, uploadVP, sunDir, records, renderables, batches, frustum)
	p.overlayStage(buf, cam, uploadVP)
	p.tonemapStage(buf, hdr, out)

	p.ctx.ReleaseTarget(hdr)
	p.ctx.ReleaseTarget(depth)
	p.gizmos.Reset()
	return nil
}

// uploadView is the camera view matrix in upload space: with rebasing on,
// the eye sits at the origin.
func (p *Pipeline) uploadView(cam *core.Camera) mgl32.Mat4 {
	eye := p.rebasePoint(cam.Transform.Position)
	return mgl32.LookAtV(eye, eye.Add(cam.Transform.Forward()), cam.Transform.Up())
}

func (p *Pipeline) rebasePoint(v mgl32.Vec3) mgl32.Vec3 {
	return v.Sub(p.rebaseOffset)
}

func (p *Pipeline) rebaseModel(m mgl32.Mat4) mgl32.Mat4 {
	m[12] -= p.rebaseOffset.X()
	m[13] -= p.rebaseOffset.Y()
	m[14] -= p.rebaseOffset.Z()
	return m
}

// shadowStage reserves atlas slots, renders every shadow-casting light's
// pass and encodes the frame's GPU light records. Lights are processed in
// registration order; atlas exhaustion degrades a light to unshadowed, it
// never fails the frame. The first directional light supplies the sun
// direction for skybox shading.
func (p *Pipeline) shadowStage(buf *cmdbuf.Buffer, lights []core.Light, cam *core.Camera, renderables []Renderable, batches []Batch) ([]GPULight, mgl32.Vec3) {
	p.ctx.Atlas.Clear()

	token := p.BeginPass("shadow")
	defer p.EndPass(token)

	buf.SetRenderTarget(nil, p.ctx.AtlasTarget())
	buf.Clear(false, true, [4]float32{}, 1)

	camPos := cam.Transform.Position
	sunDir := mgl32.Vec3{0, -1, 0}
	sunSet := false

	records := make([]GPULight, 0, len(lights))
	for i, l := range lights {
		if l.Type == core.LightTypeDirectional && !sunSet && l.Direction.Len() > 0 {
			sunDir = l.Direction.Normalize()
			sunSet = true
		}

		slot := atlas.InvalidSlot
		var shadowVP mgl32.Mat4

		if l.CastShadows {
			res := p.ctx.maxShadowSize
			if l.Type != core.LightTypeDirectional {
				dist := l.Position.Sub(camPos).Len()
				res = p.ctx.Atlas.ResolutionForDistance(dist, p.ctx.maxShadowSize)
			}

			if s, ok := p.ctx.Atlas.ReserveTiles(res, res, fmt.Sprintf("light-%d", i)); ok {
				// Cull in world space, draw in upload space.
				worldVP := LightViewProjection(l, camPos)
				lightFrustum, err := core.NewBoundingFrustum(worldVP)
				if err != nil {
					p.ctx.Log.Warnf("light %d: degenerate shadow frustum, degraded to unshadowed: %v", i, err)
				} else {
					slot = s
					ul := l
					ul.Position = p.rebasePoint(l.Position)
					shadowVP = LightViewProjection(ul, p.rebasePoint(camPos))
					p.renderShadowSlot(buf, slot, shadowVP, lightFrustum, renderables, batches)
				}
			} else {
				p.ctx.Log.Debugf("shadow atlas exhausted: light %d (%dpx) degraded to unshadowed", i, res)
			}
		}

		ul := l
		ul.Position = p.rebasePoint(l.Position)
		records = append(records, EncodeLight(ul, slot, shadowVP))
	}
	return records, sunDir
}

func (p *Pipeline) renderShadowSlot(buf *cmdbuf.Buffer, slot atlas.Slot, lightVP mgl32.Mat4, frustum *core.BoundingFrustum, renderables []Renderable, batches []Batch) {
	buf.SetViewport(slot.X, slot.Y, slot.Width, slot.Width)

	for bi := range batches {
		b := &batches[bi]
		items := CullItems(renderables, b.Items, frustum)
		if len(items) == 0 {
			continue
		}
		variant, ok := p.resolveVariant(b.Material)
		if !ok {
			continue
		}
		buf.SetMaterialPass(b.Material, variant, ShadowPassIndex(b.Material))

		for _, idx := range items {
			r := &renderables[idx]
			buf.SetMatrix("light_vp", lightVP)
			buf.SetMatrix("model", p.rebaseModel(r.Transform))
			buf.BindGeometry(r.Mesh)
			buf.DrawIndexed(r.Mesh.IndexCount, 1)
		}
	}
}

// mainStage clears per the camera's clear mode, binds the light buffer and
// shadow atlas globally, optionally draws the skybox, then draws every
// surviving batch item with its per-object transform uniforms.
func (p *Pipeline) mainStage(buf *cmdbuf.Buffer, cam *core.Camera, hdr, depth *core.RenderTarget, uploadVP mgl32.Mat4, sunDir mgl32.Vec3, records []GPULight, renderables []Renderable, batches []Batch, frustum *core.BoundingFrustum) {
	token := p.BeginPass("main")
	defer p.EndPass(token)

	// Clear must precede any pass-opening op (viewport, draws): the
	// submitter folds it into the pass load ops and rejects it afterwards.
	buf.SetRenderTarget(hdr, depth)
	switch cam.ClearMode {
	case core.ClearNothing:
	case core.ClearColorOnly:
		buf.Clear(true, false, cam.ClearColor, 1)
	case core.ClearDepthOnly:
		buf.Clear(false, true, cam.ClearColor, 1)
	default: // DepthColor and Skybox both clear everything
		buf.Clear(true, true, cam.ClearColor, 1)
	}
	buf.SetViewport(0, 0, hdr.Width, hdr.Height)

	atlasTarget := p.ctx.AtlasTarget()
	buf.SetBuffer("lights", MarshalLights(records))
	buf.SetTargetTexture("shadow_atlas", atlasTarget)

	if cam.ClearMode == core.ClearSkybox {
		p.drawSkybox(buf, uploadVP, sunDir)
	}

	camPos := p.rebasePoint(cam.Transform.Position)
	for bi := range batches {
		b := &batches[bi]
		items := CullItems(renderables, b.Items, frustum)
		if len(items) == 0 {
			continue
		}
		variant, ok := p.resolveVariant(b.Material)
		if !ok {
			continue
		}
		buf.SetMaterialPass(b.Material, variant, 0)
		applyProperties(buf, &b.Material.Properties)
		buf.SetVector("camera_pos", camPos.Vec4(1))

		for _, idx := range items {
			r := &renderables[idx]
			model := p.rebaseModel(r.Transform)
			buf.SetMatrix("model", model)
			buf.SetMatrix("inv_model", r.Inverse)
			buf.SetMatrix("mvp", uploadVP.Mul4(model))
			applyProperties(buf, &r.Overrides)
			buf.BindGeometry(r.Mesh)
			buf.DrawIndexed(r.Mesh.IndexCount, 1)
		}
	}
}

func (p *Pipeline) drawSkybox(buf *cmdbuf.Buffer, uploadVP mgl32.Mat4, sunDir mgl32.Vec3) {
	variant, ok := p.resolveVariant(p.ctx.skyboxMat)
	if !ok {
		return
	}
	buf.SetMaterialPass(p.ctx.skyboxMat, variant, 0)
	buf.SetMatrix("inv_view_proj", uploadVP.Inv())
	buf.SetVector("sun_dir", sunDir.Vec4(0))
	buf.BindGeometry(p.ctx.fullscreenTriMesh)
	buf.DrawIndexed(p.ctx.fullscreenTriMesh.IndexCount, 1)
}

// overlayStage draws the optional infinite grid and the accumulated debug
// gizmos, all in upload space.
func (p *Pipeline) overlayStage(buf *cmdbuf.Buffer, cam *core.Camera, uploadVP mgl32.Mat4) {
	if !p.opts.DrawGrid && p.gizmos.Len() == 0 {
		return
	}

	token := p.BeginPass("overlay")
	defer p.EndPass(token)

	if p.opts.DrawGrid {
		p.drawGrid(buf, cam, uploadVP)
	}
	if p.gizmos.Len() > 0 {
		p.drawGizmos(buf, cam, uploadVP)
	}
}

func (p *Pipeline) drawGrid(buf *cmdbuf.Buffer, cam *core.Camera, uploadVP mgl32.Mat4) {
	variant, ok := p.resolveVariant(p.ctx.gridMat)
	if !ok {
		return
	}
	grid := p.opts.Grid
	if grid == (GridOptions{}) {
		grid = DefaultGridOptions()
	}
	buf.SetMaterialPass(p.ctx.gridMat, variant, 0)
	buf.SetMatrix("inv_view_proj", uploadVP.Inv())
	buf.SetVector("camera_pos", p.rebasePoint(cam.Transform.Position).Vec4(1))
	buf.SetVector("params", grid.params())
	buf.BindGeometry(p.ctx.quadMesh)
	buf.DrawIndexed(p.ctx.quadMesh.IndexCount, 1)
}

func (p *Pipeline) drawGizmos(buf *cmdbuf.Buffer, cam *core.Camera, uploadVP mgl32.Mat4) {
	variant, ok := p.resolveVariant(p.ctx.gizmoMat)
	if !ok {
		return
	}
	right := cam.Transform.Rotation.Rotate(mgl32.Vec3{1, 0, 0})
	up := cam.Transform.Up()

	// Wireframe shapes first: the gizmo pass compiles with line-list
	// topology. Billboards and labels rasterize triangles and draw under
	// their own sub-passes.
	wireframes := false
	billboards := false
	for i := range p.gizmos.items {
		switch p.gizmos.items[i].kind {
		case gizmoLine, gizmoCube, gizmoSphere:
			wireframes = true
		case gizmoBillboard:
			billboards = true
		}
	}

	if wireframes {
		buf.SetMaterialPass(p.ctx.gizmoMat, variant, 0)
		buf.SetMatrix("view_proj", uploadVP)

		for i := range p.gizmos.items {
			item := &p.gizmos.items[i]

			var model mgl32.Mat4
			var mesh *core.Mesh

			switch item.kind {
			case gizmoLine:
				model = lineMatrix(p.rebasePoint(item.pos), p.rebasePoint(item.end))
				mesh = p.ctx.lineMesh
			case gizmoCube:
				t := core.Transform{
					Position: p.rebasePoint(item.pos),
					Rotation: item.rotation,
					Scale:    item.size,
				}
				model = t.ObjectToWorld()
				mesh = p.ctx.wireCubeMesh
			case gizmoSphere:
				t := core.Transform{
					Position: p.rebasePoint(item.pos),
					Rotation: mgl32.QuatIdent(),
					Scale:    mgl32.Vec3{item.radius, item.radius, item.radius},
				}
				model = t.ObjectToWorld()
				mesh = p.ctx.wireSphereMesh
			default:
				continue
			}

			buf.SetMatrix("model", model)
			buf.SetVector("color", mgl32.Vec4{item.color[0], item.color[1], item.color[2], item.color[3]})
			buf.BindGeometry(mesh)
			buf.DrawIndexed(mesh.IndexCount, 1)
		}
	}

	if billboards {
		buf.SetMaterialPass(p.ctx.gizmoMat, variant, p.ctx.gizmoMat.Shader.PassIndex("billboard"))
		buf.SetMatrix("view_proj", uploadVP)

		for i := range p.gizmos.items {
			item := &p.gizmos.items[i]
			if item.kind != gizmoBillboard {
				continue
			}
			model := billboardMatrix(p.rebasePoint(item.pos), right, up, item.size.X(), item.size.Y())
			buf.SetMatrix("model", model)
			buf.SetVector("color", mgl32.Vec4{item.color[0], item.color[1], item.color[2], item.color[3]})
			buf.BindGeometry(p.ctx.quadMesh)
			buf.DrawIndexed(p.ctx.quadMesh.IndexCount, 1)
		}
	}

	p.drawLabels(buf, variant, right, up)
}

func (p *Pipeline) drawLabels(buf *cmdbuf.Buffer, variant *core.Variant, right, up mgl32.Vec3) {
	hasLabels := false
	for i := range p.gizmos.items {
		if p.gizmos.items[i].kind == gizmoLabel {
			hasLabels = true
			break
		}
	}
	if !hasLabels {
		return
	}
	if p.ctx.glyphs == nil {
		p.ctx.Log.Debugf("gizmo labels skipped: no font configured")
		return
	}

	labelPass := p.ctx.gizmoMat.Shader.PassIndex("label")
	buf.SetMaterialPass(p.ctx.gizmoMat, variant, labelPass)
	buf.SetImageTexture("glyph_atlas", p.ctx.glyphs.Texture, p.ctx.glyphs.Image)

	for i := range p.gizmos.items {
		item := &p.gizmos.items[i]
		if item.kind != gizmoLabel {
			continue
		}
		anchor := p.rebasePoint(item.pos)
		buf.SetVector("color", mgl32.Vec4{item.color[0], item.color[1], item.color[2], item.color[3]})

		for _, q := range p.ctx.glyphs.Layout(item.text) {
			cx := (q.X0 + q.X1) * 0.5 * item.scale
			cy := (q.Y0 + q.Y1) * 0.5 * item.scale
			center := anchor.Add(right.Mul(cx)).Add(up.Mul(cy))
			w := (q.X1 - q.X0) * 0.5 * item.scale
			h := (q.Y1 - q.Y0) * 0.5 * item.scale

			buf.SetMatrix("model", billboardMatrix(center, right, up, w, h))
			buf.SetVector("uv_rect", mgl32.Vec4{q.UVMin[0], q.UVMin[1], q.UVMax[0], q.UVMax[1]})
			buf.BindGeometry(p.ctx.quadMesh)
			buf.DrawIndexed(p.ctx.quadMesh.IndexCount, 1)
		}
	}
}

// tonemapStage blits the HDR intermediate through the tone-map material
// into the caller's output target. Always the terminal stage.
func (p *Pipeline) tonemapStage(buf *cmdbuf.Buffer, hdr, out *core.RenderTarget) {
	token := p.BeginPass("tonemap")
	defer p.EndPass(token)

	variant, ok := p.resolveVariant(p.ctx.tonemapMat)
	if !ok {
		return
	}
	buf.SetRenderTarget(out, nil)
	buf.SetViewport(0, 0, out.Width, out.Height)
	buf.SetMaterialPass(p.ctx.tonemapMat, variant, 0)
	buf.SetFloat("exposure", p.ctx.exposure)
	buf.SetTargetTexture("hdr_tex", hdr)
	buf.BindGeometry(p.ctx.fullscreenTriMesh)
	buf.DrawIndexed(p.ctx.fullscreenTriMesh.IndexCount, 1)
}

// resolveVariant fetches or compiles the material's variant. A material
// with no shader, or one that fails to compile, has its draws skipped.
func (p *Pipeline) resolveVariant(mat *core.Material) (*core.Variant, bool) {
	variant, err := p.ctx.ResolveVariant(mat)
	if err != nil {
		p.ctx.Log.Warnf("material %q: %v, draws skipped", mat.Name, err)
		return nil, false
	}
	if variant == nil {
		p.ctx.Log.Debugf("material %q has no shader, draws skipped", mat.Name)
		return nil, false
	}
	return variant, true
}

// applyProperties records a property block's overrides in sorted name
// order so recorded streams are deterministic for an unchanged scene.
func applyProperties(buf *cmdbuf.Buffer, pb *core.PropertyBlock) {
	if pb.Empty() {
		return
	}
	for _, name := range sortedKeys(pb.Floats) {
		buf.SetFloat(name, pb.Floats[name])
	}
	for _, name := range sortedKeys(pb.Vectors) {
		buf.SetVector(name, pb.Vectors[name])
	}
	for _, name := range sortedKeys(pb.Matrices) {
		buf.SetMatrix(name, pb.Matrices[name])
	}
	for _, name := range sortedKeys(pb.Textures) {
		buf.SetTexture(name, pb.Textures[name], nil)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
