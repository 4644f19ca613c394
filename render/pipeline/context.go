package pipeline

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/ember3d/ember/render/atlas"
	"github.com/ember3d/ember/render/core"
	"github.com/ember3d/ember/render/shaders"
)

// Options configures a pipeline instance. Zero values fall back to the
// defaults below.
type Options struct {
	// Compiler resolves GPU programs for (shader, keyword set) pairs.
	// Required; the device layer supplies it.
	Compiler core.Compiler

	AtlasSize     int // shadow atlas texture width, default 2048
	TileSize      int // base tile width, default atlas.DefaultTileSize
	MaxShadowSize int // per-light resolution cap, default 1024
	VariantCap    int // variant cache capacity, default core.DefaultVariantCacheSize

	Exposure float32 // tone-map exposure, default 1

	DrawGrid bool
	Grid     GridOptions

	// FontData is an optional TTF blob for gizmo text labels. Labels are
	// disabled when nil.
	FontData []byte

	Logger Logger
}

const (
	defaultAtlasSize     = 2048
	defaultMaxShadowSize = 1024
)

// Context owns the process-lifetime render state the frame loop reads:
// default materials and meshes, the shader variant cache, the shadow atlas
// and its depth target, and the temporary render-target pool. All state is
// created eagerly by EnsureInitialized; nothing initializes lazily behind
// the frame loop's back.
//
// Not safe for concurrent use; the render thread is the single caller.
type Context struct {
	Compiler core.Compiler
	Variants *core.VariantCache
	Atlas    *atlas.ShadowAtlas
	Log      Logger

	// Globals are keyword flags merged into every variant resolution.
	Globals core.KeywordSet

	maxShadowSize int
	exposure      float32

	atlasTarget *core.RenderTarget

	forwardMat *core.Material
	skyboxMat  *core.Material
	gridMat    *core.Material
	gizmoMat   *core.Material
	tonemapMat *core.Material

	lineMesh          *core.Mesh
	wireCubeMesh      *core.Mesh
	wireSphereMesh    *core.Mesh
	quadMesh          *core.Mesh
	fullscreenTriMesh *core.Mesh

	glyphs *GlyphAtlas

	pool map[targetKey][]*core.RenderTarget

	initialized bool
}

type targetKey struct {
	width, height int
	format        core.TargetFormat
}

func NewContext(opts Options) *Context {
	if opts.AtlasSize <= 0 {
		opts.AtlasSize = defaultAtlasSize
	}
	if opts.MaxShadowSize <= 0 {
		opts.MaxShadowSize = defaultMaxShadowSize
	}
	if opts.Exposure <= 0 {
		opts.Exposure = 1
	}
	log := opts.Logger
	if log == nil {
		log = nopLogger{}
	}

	return &Context{
		Compiler:      opts.Compiler,
		Variants:      core.NewVariantCache(opts.VariantCap),
		Atlas:         atlas.NewShadowAtlas(opts.AtlasSize, opts.TileSize),
		Log:           log,
		Globals:       core.NewKeywordSet(),
		maxShadowSize: opts.MaxShadowSize,
		exposure:      opts.Exposure,
		pool:          make(map[targetKey][]*core.RenderTarget),
	}
}

// EnsureInitialized builds the built-in materials, meshes and the atlas
// depth target. Idempotent; called at the top of every frame so the first
// frame pays the one-time cost deterministically.
func (c *Context) EnsureInitialized(opts Options) error {
	if c.initialized {
		return nil
	}
	if c.Compiler == nil {
		return fmt.Errorf("pipeline context: no shader compiler")
	}

	c.forwardMat = core.NewMaterial("ember.forward", core.NewShader("ember/forward",
		core.ShaderPass{Name: "forward", Source: shaders.ForwardWGSL},
		core.ShaderPass{Name: "shadow", Source: shaders.ShadowWGSL},
	))
	c.forwardMat.ShadowPass = "shadow"
	// Objects without material overrides shade white, not black.
	c.forwardMat.Properties.SetVector("base_color", mgl32.Vec4{1, 1, 1, 1})

	c.skyboxMat = core.NewMaterial("ember.skybox", core.NewShader("ember/skybox",
		core.ShaderPass{Name: "skybox", Source: shaders.SkyboxWGSL}))
	c.gridMat = core.NewMaterial("ember.grid", core.NewShader("ember/grid",
		core.ShaderPass{Name: "grid", Source: shaders.GridWGSL}))
	c.gizmoMat = core.NewMaterial("ember.gizmo", core.NewShader("ember/gizmo",
		core.ShaderPass{Name: "gizmo", Source: shaders.GizmoWGSL},
		core.ShaderPass{Name: "billboard", Source: shaders.GizmoWGSL},
		core.ShaderPass{Name: "label", Source: shaders.GizmoWGSL}))
	c.tonemapMat = core.NewMaterial("ember.tonemap", core.NewShader("ember/tonemap",
		core.ShaderPass{Name: "tonemap", Source: shaders.TonemapWGSL}))

	c.lineMesh = meshFromGeometry("ember.line", lineGeometry)
	c.wireCubeMesh = meshFromGeometry("ember.wirecube", wireCubeGeometry)
	c.wireSphereMesh = meshFromGeometry("ember.wiresphere", wireSphereGeometry)
	c.quadMesh = meshFromGeometry("ember.quad", quadGeometry)
	c.fullscreenTriMesh = meshFromGeometry("ember.fullscreen", fullscreenTriGeometry)

	c.atlasTarget = core.NewRenderTarget("ember.shadowatlas",
		c.Atlas.Size(), c.Atlas.Size(), core.FormatDepth32)

	if opts.FontData != nil {
		glyphs, err := NewGlyphAtlas(opts.FontData, defaultLabelFontSize)
		if err != nil {
			return fmt.Errorf("glyph atlas: %w", err)
		}
		c.glyphs = glyphs
	}

	c.initialized = true
	return nil
}

func unitBounds() core.Bounds {
	return core.Bounds{Center: mgl32.Vec3{}, Extents: mgl32.Vec3{1, 1, 1}}
}

// DefaultMaterial is the fallback material for renderables that carry none.
func (c *Context) DefaultMaterial() *core.Material { return c.forwardMat }

// AtlasTarget is the depth texture backing the shadow atlas.
func (c *Context) AtlasTarget() *core.RenderTarget { return c.atlasTarget }

// AcquireTarget returns a render target of the requested shape, reusing a
// pooled one when available. Targets acquired during a frame must be
// released before the frame ends.
func (c *Context) AcquireTarget(width, height int, format core.TargetFormat) *core.RenderTarget {
	key := targetKey{width: width, height: height, format: format}
	if free := c.pool[key]; len(free) > 0 {
		rt := free[len(free)-1]
		c.pool[key] = free[:len(free)-1]
		return rt
	}
	return core.NewRenderTarget("ember.temp", width, height, format)
}

// ReleaseTarget returns a target to the pool for reuse next frame.
func (c *Context) ReleaseTarget(rt *core.RenderTarget) {
	if rt == nil {
		return
	}
	key := targetKey{width: rt.Width, height: rt.Height, format: rt.Format}
	c.pool[key] = append(c.pool[key], rt)
}

// ResolveVariant compiles or fetches the material's variant under the
// merged local+global keyword set. Returns nil (no error) for materials
// without a shader; their draws are skipped.
func (c *Context) ResolveVariant(mat *core.Material) (*core.Variant, error) {
	if mat.Shader == nil {
		return nil, nil
	}
	return c.Variants.Resolve(c.Compiler, mat.Shader, mat.Keywords, c.Globals)
}
