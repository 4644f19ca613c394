package ember

import (
	"fmt"

	"github.com/ember3d/ember/render/cmdbuf"
	"github.com/ember3d/ember/render/core"
	"github.com/ember3d/ember/render/pipeline"
)

// RenderModule installs the forward pipeline into the Render stage. With a
// GpuState resource present (WindowModule installed first) frames are
// encoded and presented through wgpu; without one the module renders
// headless into an offscreen target, which is how tests drive it.
type RenderModule struct {
	AtlasSize     int
	TileSize      int
	MaxShadowSize int
	Exposure      float32

	DrawGrid bool
	Grid     pipeline.GridOptions

	// FontData enables gizmo text labels.
	FontData []byte

	// Compiler overrides the device shader compiler; required for
	// headless use.
	Compiler core.Compiler

	// Offscreen output size for headless use.
	OffscreenWidth  int
	OffscreenHeight int
}

// RenderState is the installed renderer resource.
type RenderState struct {
	Pipeline  *pipeline.Pipeline
	Submitter cmdbuf.Submitter

	// FrameCount increments after every rendered frame.
	FrameCount uint64

	offscreen *core.RenderTarget
}

func (m RenderModule) Install(app *App) {
	ensureSingleRenderer(app, "ember.forward")

	compiler := m.Compiler
	var submitter cmdbuf.Submitter

	if gs, ok := app.Resource((*GpuState)(nil)).(*GpuState); ok && gs != nil {
		if compiler == nil {
			compiler = cmdbuf.NewWGPUCompiler(gs.Device, gs.SurfaceConfig.Format)
		}
		submitter = cmdbuf.NewWGPUSubmitter(gs.Device, gs.Queue)
	}
	if compiler == nil {
		panic("RenderModule: no GPU device and no Compiler override")
	}

	p := pipeline.New(pipeline.Options{
		Compiler:      compiler,
		AtlasSize:     m.AtlasSize,
		TileSize:      m.TileSize,
		MaxShadowSize: m.MaxShadowSize,
		Exposure:      m.Exposure,
		DrawGrid:      m.DrawGrid,
		Grid:          m.Grid,
		FontData:      m.FontData,
		Logger:        app.Logger(),
	})

	state := &RenderState{Pipeline: p, Submitter: submitter}
	if submitter == nil {
		w, h := m.OffscreenWidth, m.OffscreenHeight
		if w <= 0 {
			w = 1280
		}
		if h <= 0 {
			h = 720
		}
		state.offscreen = core.NewRenderTarget("ember.offscreen", w, h, core.FormatRGBA8)
	}
	app.addResources(state)

	app.UseSystem(System(renderFrame).InStage(RenderOp))
}

func renderFrame(app *App, state *RenderState, scene *Scene, cam *core.Camera) {
	out := state.offscreen
	gs, _ := app.Resource((*GpuState)(nil)).(*GpuState)

	if gs != nil {
		surfaceTex, err := gs.Surface.GetCurrentTexture()
		if err != nil {
			app.Logger().Errorf("GetCurrentTexture failed: %v", err)
			return
		}
		view, err := surfaceTex.CreateView(nil)
		if err != nil {
			app.Logger().Errorf("CreateView failed: %v", err)
			return
		}
		defer view.Release()

		out = &core.RenderTarget{
			ID:     core.NewTextureID(),
			Name:   "ember.surface",
			Width:  int(gs.SurfaceConfig.Width),
			Height: int(gs.SurfaceConfig.Height),
			Format: core.FormatRGBA8,
			View:   view,
		}
	}

	buf := cmdbuf.NewBuffer(fmt.Sprintf("frame-%d", state.FrameCount))
	if err := state.Pipeline.Render(buf, scene, cam, out); err != nil {
		app.Logger().Errorf("render frame %d: %v", state.FrameCount, err)
		return
	}

	if state.Submitter != nil {
		if err := buf.Submit(state.Submitter); err != nil {
			app.Logger().Errorf("submit frame %d: %v", state.FrameCount, err)
			return
		}
		gs.Surface.Present()
	}
	state.FrameCount++
}
