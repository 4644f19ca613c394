package cmdbuf

import (
	"fmt"
	"image"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/ember3d/ember/render/core"
)

// WGPUResources realizes device objects for the CPU-side resource
// descriptions the pipeline hands the submitter: textures and views for
// render targets, vertex and index buffers for meshes. Realization is
// lazy, on first use, because the pipeline creates pooled targets
// mid-frame; once created the handles live on the resource itself.
type WGPUResources struct {
	Device *wgpu.Device
	Queue  *wgpu.Queue

	imageViews map[core.TextureID]*wgpu.TextureView
}

func NewWGPUResources(device *wgpu.Device, queue *wgpu.Queue) *WGPUResources {
	return &WGPUResources{
		Device:     device,
		Queue:      queue,
		imageViews: make(map[core.TextureID]*wgpu.TextureView),
	}
}

// EnsureTarget creates the target's texture and view when it carries none.
// Targets that arrive with a view (the window surface) are left alone.
func (r *WGPUResources) EnsureTarget(rt *core.RenderTarget) error {
	if rt == nil || rt.View != nil {
		return nil
	}
	if rt.Width <= 0 || rt.Height <= 0 {
		return fmt.Errorf("target %q: invalid size %dx%d", rt.Name, rt.Width, rt.Height)
	}

	texture, err := r.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label: rt.Name,
		Size: wgpu.Extent3D{
			Width:              uint32(rt.Width),
			Height:             uint32(rt.Height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        textureFormat(rt.Format),
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
	})
	if err != nil {
		return fmt.Errorf("target %q: create texture: %w", rt.Name, err)
	}
	view, err := texture.CreateView(nil)
	if err != nil {
		texture.Release()
		return fmt.Errorf("target %q: create view: %w", rt.Name, err)
	}

	rt.Texture = texture
	rt.View = view
	return nil
}

// EnsureMesh uploads the mesh's CPU geometry into device buffers when it
// has not been uploaded yet.
func (r *WGPUResources) EnsureMesh(m *core.Mesh) error {
	if m == nil || m.VertexBuffer != nil {
		return nil
	}
	if len(m.Vertices) == 0 || len(m.Indices) == 0 {
		return fmt.Errorf("mesh %q has no geometry to upload", m.Name)
	}

	vbuf, err := r.Device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    m.Name + "/vertices",
		Contents: wgpu.ToBytes(m.Vertices),
		Usage:    wgpu.BufferUsageVertex,
	})
	if err != nil {
		return fmt.Errorf("mesh %q: create vertex buffer: %w", m.Name, err)
	}
	ibuf, err := r.Device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    m.Name + "/indices",
		Contents: wgpu.ToBytes(m.Indices),
		Usage:    wgpu.BufferUsageIndex,
	})
	if err != nil {
		vbuf.Release()
		return fmt.Errorf("mesh %q: create index buffer: %w", m.Name, err)
	}

	m.VertexBuffer = vbuf
	m.IndexBuffer = ibuf
	return nil
}

// EnsureAlphaTexture uploads a CPU alpha image (the glyph atlas) into an
// R8Unorm texture, caching the view under the texture ID so the upload
// happens once.
func (r *WGPUResources) EnsureAlphaTexture(id core.TextureID, img *image.Alpha) (*wgpu.TextureView, error) {
	if view, ok := r.imageViews[id]; ok {
		return view, nil
	}
	if img == nil {
		return nil, fmt.Errorf("texture %q has no image data", id)
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()

	texture, err := r.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "GlyphAtlas",
		Size: wgpu.Extent3D{
			Width:              uint32(w),
			Height:             uint32(h),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatR8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("texture %q: create texture: %w", id, err)
	}
	err = r.Queue.WriteTexture(
		&wgpu.ImageCopyTexture{Texture: texture},
		img.Pix,
		&wgpu.TextureDataLayout{BytesPerRow: uint32(img.Stride), RowsPerImage: uint32(h)},
		&wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
	)
	if err != nil {
		texture.Release()
		return nil, fmt.Errorf("texture %q: upload: %w", id, err)
	}
	view, err := texture.CreateView(nil)
	if err != nil {
		texture.Release()
		return nil, fmt.Errorf("texture %q: create view: %w", id, err)
	}

	r.imageViews[id] = view
	return view, nil
}

func textureFormat(f core.TargetFormat) wgpu.TextureFormat {
	switch f {
	case core.FormatRGBA16Float:
		return wgpu.TextureFormatRGBA16Float
	case core.FormatDepth32:
		return wgpu.TextureFormatDepth32Float
	default:
		return wgpu.TextureFormatRGBA8Unorm
	}
}
