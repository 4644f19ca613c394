package cmdbuf

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/ember3d/ember/render/core"
)

// uniformSlotBytes is the stride of one float4 uniform slot; ParamIndex
// values index these slots. A matrix occupies four consecutive slots.
const uniformSlotBytes = 16

// uniformBlockBytes is the per-draw uniform block size. 64 float4 slots
// covers the pipeline's per-object and per-pass parameters.
const uniformBlockBytes = 64 * uniformSlotBytes

// WGPUSubmitter executes recorded command buffers on a webgpu device.
// CPU recording and GPU execution overlap only past Queue.Submit; the
// submitter itself is synchronous and single-threaded.
type WGPUSubmitter struct {
	Device *wgpu.Device
	Queue  *wgpu.Queue

	res *WGPUResources

	// Ring of per-draw uniform block space, reallocated when a frame
	// outgrows it.
	uniformBuf    *wgpu.Buffer
	uniformBlocks int
	nextBlock     int

	// Light storage buffer and the samplers, created on first use and
	// reused across frames.
	lightsBuf     *wgpu.Buffer
	lightsCap     int
	linearSampler *wgpu.Sampler
	shadowSampler *wgpu.Sampler
}

func NewWGPUSubmitter(device *wgpu.Device, queue *wgpu.Queue) *WGPUSubmitter {
	return &WGPUSubmitter{
		Device: device,
		Queue:  queue,
		res:    NewWGPUResources(device, queue),
	}
}

// submitState is the decoder state for one op sequence.
type submitState struct {
	encoder *wgpu.CommandEncoder
	pass    *wgpu.RenderPassEncoder

	// Pass opening is deferred so Clear ops recorded right after
	// SetRenderTarget fold into the pass load ops.
	pendingColor *core.RenderTarget
	pendingDepth *core.RenderTarget
	clearColor   bool
	clearDepth   bool
	clearValue   [4]float32
	depthValue   float32

	pipeline *wgpu.RenderPipeline
	variant  *core.Variant
	passIdx  int

	uniforms [uniformBlockBytes]byte
	texViews []*wgpu.TextureView

	// Frame-global light state: the encoded light records and the shadow
	// atlas view, bound as group 1 for passes that shade with them.
	lights      []byte
	lightsDirty bool
	shadowView  *wgpu.TextureView

	geom      *core.Mesh
	dirtyBind bool
}

// Submit decodes the op sequence into one wgpu command buffer and hands it
// to the queue.
func (s *WGPUSubmitter) Submit(ops []Op) error {
	encoder, err := s.Device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	defer encoder.Release()

	st := &submitState{encoder: encoder, depthValue: 1.0}
	s.nextBlock = 0

	for _, op := range ops {
		if err := s.apply(st, op); err != nil {
			return err
		}
	}
	if st.pass != nil {
		if err := st.pass.End(); err != nil {
			return fmt.Errorf("end render pass: %w", err)
		}
		st.pass.Release()
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("finish encoder: %w", err)
	}
	defer cmd.Release()

	s.Queue.Submit(cmd)
	return nil
}

func (s *WGPUSubmitter) apply(st *submitState, op Op) error {
	switch o := op.(type) {
	case SetRenderTarget:
		if st.pass != nil {
			if err := st.pass.End(); err != nil {
				return fmt.Errorf("end render pass: %w", err)
			}
			st.pass.Release()
			st.pass = nil
		}
		st.pendingColor = o.Color
		st.pendingDepth = o.Depth
		st.clearColor = false
		st.clearDepth = false

	case Clear:
		if st.pass != nil {
			return fmt.Errorf("clear recorded after drawing began")
		}
		st.clearColor = st.clearColor || o.ClearColor
		st.clearDepth = st.clearDepth || o.ClearDepth
		st.clearValue = o.Color
		st.depthValue = o.Depth

	case SetViewport:
		if err := s.ensurePass(st); err != nil {
			return err
		}
		st.pass.SetViewport(float32(o.X), float32(o.Y), float32(o.Width), float32(o.Height), 0, 1)

	case SetMaterialPass:
		if err := s.ensurePass(st); err != nil {
			return err
		}
		if o.Variant == nil || o.Pass < 0 || o.Pass >= len(o.Variant.Passes) {
			return fmt.Errorf("material %q: invalid pass %d", o.Material.Name, o.Pass)
		}
		pipeline, ok := o.Variant.Passes[o.Pass].Program.(*wgpu.RenderPipeline)
		if !ok {
			return fmt.Errorf("material %q pass %d: program is not a wgpu pipeline", o.Material.Name, o.Pass)
		}
		st.pipeline = pipeline
		st.variant = o.Variant
		st.passIdx = o.Pass
		st.texViews = st.texViews[:0]
		st.pass.SetPipeline(pipeline)
		st.dirtyBind = true

	case SetFloat:
		st.writeSlot(o.Name, f32bytes(o.Value))
	case SetVector:
		st.writeSlot(o.Name, f32bytes(o.Value[0], o.Value[1], o.Value[2], o.Value[3]))
	case SetMatrix:
		st.writeSlot(o.Name, f32bytes(o.Value[:]...))

	case SetTexture:
		view, err := s.resolveTextureView(o)
		if err != nil {
			return err
		}
		// The shadow atlas is a frame global bound in the light bind
		// group, not a per-material texture.
		if o.Name == "shadow_atlas" {
			st.shadowView = view
			break
		}
		if view != nil {
			st.texViews = append(st.texViews, view)
			st.dirtyBind = true
		}

	case SetBuffer:
		st.lights = o.Data
		st.lightsDirty = true
		st.dirtyBind = true

	case BindGeometry:
		if err := s.ensurePass(st); err != nil {
			return err
		}
		if err := s.res.EnsureMesh(o.Mesh); err != nil {
			return err
		}
		st.geom = o.Mesh
		vbuf, _ := o.Mesh.VertexBuffer.(*wgpu.Buffer)
		ibuf, _ := o.Mesh.IndexBuffer.(*wgpu.Buffer)
		if vbuf == nil || ibuf == nil {
			return fmt.Errorf("mesh %q has no device buffers", o.Mesh.Name)
		}
		st.pass.SetVertexBuffer(0, vbuf, 0, wgpu.WholeSize)
		st.pass.SetIndexBuffer(ibuf, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)

	case DrawIndexed:
		if st.pass == nil || st.pipeline == nil || st.geom == nil {
			return fmt.Errorf("draw without pass, pipeline or geometry")
		}
		if err := s.flushBindings(st); err != nil {
			return err
		}
		st.pass.DrawIndexed(o.IndexCount, o.InstanceCount, 0, 0, 0)

	default:
		return fmt.Errorf("unknown op %T", op)
	}
	return nil
}

// resolveTextureView turns a SetTexture op into a device view. Target- and
// image-backed textures resolve lazily here; recording may predate the
// device resources.
func (s *WGPUSubmitter) resolveTextureView(o SetTexture) (*wgpu.TextureView, error) {
	switch {
	case o.Target != nil:
		if err := s.res.EnsureTarget(o.Target); err != nil {
			return nil, err
		}
		view, ok := o.Target.View.(*wgpu.TextureView)
		if !ok {
			return nil, fmt.Errorf("texture %q: target %q has no device view", o.Name, o.Target.Name)
		}
		return view, nil
	case o.Image != nil:
		return s.res.EnsureAlphaTexture(o.Texture, o.Image)
	default:
		view, _ := o.View.(*wgpu.TextureView)
		return view, nil
	}
}

func (s *WGPUSubmitter) ensurePass(st *submitState) error {
	if st.pass != nil {
		return nil
	}
	if st.pendingColor == nil && st.pendingDepth == nil {
		return fmt.Errorf("no render target set")
	}

	if err := s.res.EnsureTarget(st.pendingColor); err != nil {
		return err
	}
	if err := s.res.EnsureTarget(st.pendingDepth); err != nil {
		return err
	}

	desc := &wgpu.RenderPassDescriptor{}
	if st.pendingColor != nil {
		view, ok := st.pendingColor.View.(*wgpu.TextureView)
		if !ok {
			return fmt.Errorf("target %q has no device view", st.pendingColor.Name)
		}
		load := wgpu.LoadOpLoad
		if st.clearColor {
			load = wgpu.LoadOpClear
		}
		desc.ColorAttachments = []wgpu.RenderPassColorAttachment{{
			View:    view,
			LoadOp:  load,
			StoreOp: wgpu.StoreOpStore,
			ClearValue: wgpu.Color{
				R: float64(st.clearValue[0]),
				G: float64(st.clearValue[1]),
				B: float64(st.clearValue[2]),
				A: float64(st.clearValue[3]),
			},
		}}
	}
	if st.pendingDepth != nil {
		view, ok := st.pendingDepth.View.(*wgpu.TextureView)
		if !ok {
			return fmt.Errorf("depth target %q has no device view", st.pendingDepth.Name)
		}
		load := wgpu.LoadOpLoad
		if st.clearDepth {
			load = wgpu.LoadOpClear
		}
		desc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            view,
			DepthLoadOp:     load,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: st.depthValue,
		}
	}

	st.pass = st.encoder.BeginRenderPass(desc)
	return nil
}

// flushBindings uploads the current uniform block into the ring and binds
// group 0 for the pending draw; passes that shade with the light buffer
// additionally get the lights/shadow-atlas group 1.
func (s *WGPUSubmitter) flushBindings(st *submitState) error {
	if !st.dirtyBind {
		return nil
	}

	if err := s.growRing(); err != nil {
		return err
	}
	offset := uint64(s.nextBlock * uniformBlockBytes)
	s.nextBlock++
	if err := s.Queue.WriteBuffer(s.uniformBuf, offset, st.uniforms[:]); err != nil {
		return fmt.Errorf("write uniform block: %w", err)
	}

	entries := []wgpu.BindGroupEntry{{
		Binding: 0,
		Buffer:  s.uniformBuf,
		Offset:  offset,
		Size:    uniformBlockBytes,
	}}
	for i, view := range st.texViews {
		entries = append(entries, wgpu.BindGroupEntry{
			Binding:     uint32(1 + i),
			TextureView: view,
			Size:        wgpu.WholeSize,
		})
	}
	if len(st.texViews) > 0 {
		// Sampled textures pair with a filtering sampler at the next
		// binding, the layout every texture-reading pass declares.
		sampler, err := s.ensureLinearSampler()
		if err != nil {
			return err
		}
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: uint32(1 + len(st.texViews)),
			Sampler: sampler,
			Size:    wgpu.WholeSize,
		})
	}

	layout := st.pipeline.GetBindGroupLayout(0)
	defer layout.Release()

	group, err := s.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("create bind group: %w", err)
	}
	defer group.Release()

	st.pass.SetBindGroup(0, group, nil)

	if st.variant.Passes[st.passIdx].LightBuffer {
		if err := s.bindLightGroup(st); err != nil {
			return err
		}
	}

	st.dirtyBind = false
	return nil
}

// bindLightGroup uploads the frame's light records and binds them with the
// shadow atlas and its comparison sampler as group 1.
func (s *WGPUSubmitter) bindLightGroup(st *submitState) error {
	if st.shadowView == nil {
		return fmt.Errorf("light pass without a shadow atlas view")
	}

	data := st.lights
	if len(data) == 0 {
		// A storage binding cannot be empty; one zeroed record reads as
		// "no lights" (arrayLength still counts it, but a zero-intensity
		// record contributes nothing).
		data = make([]byte, 128)
	}
	if s.lightsBuf == nil || s.lightsCap < len(data) {
		if s.lightsBuf != nil {
			s.lightsBuf.Release()
		}
		capacity := 2 * len(data)
		buf, err := s.Device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "CmdBufLights",
			Size:  uint64(capacity),
			Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("create light buffer: %w", err)
		}
		s.lightsBuf = buf
		s.lightsCap = capacity
		st.lightsDirty = true
	}
	if st.lightsDirty {
		if err := s.Queue.WriteBuffer(s.lightsBuf, 0, data); err != nil {
			return fmt.Errorf("write light buffer: %w", err)
		}
		st.lightsDirty = false
	}

	sampler, err := s.ensureShadowSampler()
	if err != nil {
		return err
	}

	layout := st.pipeline.GetBindGroupLayout(1)
	defer layout.Release()

	group, err := s.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: s.lightsBuf, Size: uint64(len(data))},
			{Binding: 1, TextureView: st.shadowView, Size: wgpu.WholeSize},
			{Binding: 2, Sampler: sampler, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return fmt.Errorf("create light bind group: %w", err)
	}
	defer group.Release()

	st.pass.SetBindGroup(1, group, nil)
	return nil
}

func (s *WGPUSubmitter) ensureLinearSampler() (*wgpu.Sampler, error) {
	if s.linearSampler != nil {
		return s.linearSampler, nil
	}
	sampler, err := s.Device.CreateSampler(&wgpu.SamplerDescriptor{
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMinClamp:   0,
		LodMaxClamp:   1,
		Compare:       wgpu.CompareFunctionUndefined,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("create linear sampler: %w", err)
	}
	s.linearSampler = sampler
	return sampler, nil
}

func (s *WGPUSubmitter) ensureShadowSampler() (*wgpu.Sampler, error) {
	if s.shadowSampler != nil {
		return s.shadowSampler, nil
	}
	sampler, err := s.Device.CreateSampler(&wgpu.SamplerDescriptor{
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMinClamp:   0,
		LodMaxClamp:   1,
		Compare:       wgpu.CompareFunctionLessEqual,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("create shadow sampler: %w", err)
	}
	s.shadowSampler = sampler
	return sampler, nil
}

func (s *WGPUSubmitter) growRing() error {
	if s.uniformBuf != nil && s.nextBlock < s.uniformBlocks {
		return nil
	}
	blocks := s.uniformBlocks * 2
	if blocks < 256 {
		blocks = 256
	}
	if s.uniformBuf != nil {
		s.uniformBuf.Release()
	}
	buf, err := s.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "CmdBufUniformRing",
		Size:  uint64(blocks * uniformBlockBytes),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create uniform ring: %w", err)
	}
	s.uniformBuf = buf
	s.uniformBlocks = blocks
	return nil
}

// writeSlot packs values into the uniform block at the slot the compiled
// variant reports for the name. Unknown names are ignored; the variant
// simply does not consume them.
func (st *submitState) writeSlot(name string, data []byte) {
	if st.variant == nil {
		return
	}
	idx, ok := st.variant.Passes[st.passIdx].ParamIndex[name]
	if !ok || idx < 0 {
		return
	}
	off := idx * uniformSlotBytes
	if off+len(data) > len(st.uniforms) {
		return
	}
	copy(st.uniforms[off:], data)
	st.dirtyBind = true
}

func f32bytes(vals ...float32) []byte {
	out := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}
