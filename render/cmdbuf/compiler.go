package cmdbuf

import (
	"fmt"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/ember3d/ember/render/core"
)

// Vertex is the interleaved vertex layout every mesh uploads:
// position, normal, uv.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	UV       [2]float32
}

const vertexStride = 8 * 4

// WGPUCompiler builds wgpu render pipelines for shader passes. Pass
// conventions: entry points are vs_<pass>/fs_<pass> when the source
// defines them, vs_main/fs_main otherwise; a pass without a fragment
// entry is depth-only (shadow rendering); the "tonemap" pass targets the
// surface format, everything else the HDR intermediate.
type WGPUCompiler struct {
	Device        *wgpu.Device
	SurfaceFormat wgpu.TextureFormat
}

func NewWGPUCompiler(device *wgpu.Device, surfaceFormat wgpu.TextureFormat) *WGPUCompiler {
	return &WGPUCompiler{Device: device, SurfaceFormat: surfaceFormat}
}

func (c *WGPUCompiler) Compile(shader *core.Shader, keywords core.KeywordSet) (*core.Variant, error) {
	passes := make([]core.CompiledPass, 0, len(shader.Passes))
	for _, p := range shader.Passes {
		pipeline, err := c.buildPipeline(shader, p, keywords)
		if err != nil {
			return nil, fmt.Errorf("shader %q pass %q: %w", shader.Name, p.Name, err)
		}
		passes = append(passes, core.CompiledPass{
			Name:        p.Name,
			Program:     pipeline,
			ParamIndex:  UniformSlots(p.Source),
			LightBuffer: usesLightBuffer(p.Source),
		})
	}
	return &core.Variant{Passes: passes}, nil
}

func (c *WGPUCompiler) buildPipeline(shader *core.Shader, pass core.ShaderPass, keywords core.KeywordSet) (*wgpu.RenderPipeline, error) {
	source := pass.Source
	if kw := keywords.Sorted(); len(kw) > 0 {
		// Keyword flags are visible to the source as overridable consts.
		var sb strings.Builder
		for _, k := range kw {
			fmt.Fprintf(&sb, "const KW_%s: bool = true;\n", k)
		}
		source = sb.String() + source
	}

	module, err := c.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          shader.Name + "/" + pass.Name,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: source},
	})
	if err != nil {
		return nil, fmt.Errorf("create shader module: %w", err)
	}
	defer module.Release()

	vsEntry := "vs_main"
	if strings.Contains(source, "fn vs_"+pass.Name) {
		vsEntry = "vs_" + pass.Name
	}
	fsEntry := ""
	if strings.Contains(source, "fn fs_"+pass.Name) {
		fsEntry = "fs_" + pass.Name
	} else if strings.Contains(source, "fn fs_main") {
		fsEntry = "fs_main"
	}

	desc := &wgpu.RenderPipelineDescriptor{
		Label: shader.Name + "/" + pass.Name,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: vsEntry,
			Buffers: []wgpu.VertexBufferLayout{{
				ArrayStride: vertexStride,
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes: []wgpu.VertexAttribute{
					{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
					{Format: wgpu.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
					{Format: wgpu.VertexFormatFloat32x2, Offset: 24, ShaderLocation: 2},
				},
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  c.topologyFor(pass.Name),
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	}

	if fsEntry == "" {
		// Depth-only pass.
		desc.DepthStencil = &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth32Float,
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunctionLess,
		}
	} else {
		format := wgpu.TextureFormatRGBA16Float
		if pass.Name == "tonemap" {
			format = c.SurfaceFormat
		}
		target := wgpu.ColorTargetState{
			Format:    format,
			WriteMask: wgpu.ColorWriteMaskAll,
		}
		if overlayPass(pass.Name) {
			target.Blend = &wgpu.BlendState{
				Color: wgpu.BlendComponent{
					Operation: wgpu.BlendOperationAdd,
					SrcFactor: wgpu.BlendFactorSrcAlpha,
					DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				},
				Alpha: wgpu.BlendComponent{
					Operation: wgpu.BlendOperationAdd,
					SrcFactor: wgpu.BlendFactorOne,
					DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				},
			}
		}
		desc.Fragment = &wgpu.FragmentState{
			Module:     module,
			EntryPoint: fsEntry,
			Targets:    []wgpu.ColorTargetState{target},
		}
		if pass.Name != "tonemap" {
			desc.DepthStencil = &wgpu.DepthStencilState{
				Format:            wgpu.TextureFormatDepth32Float,
				DepthWriteEnabled: !overlayPass(pass.Name) && pass.Name != "skybox",
				DepthCompare:      wgpu.CompareFunctionLessEqual,
			}
		}
	}

	pipeline, err := c.Device.CreateRenderPipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("create render pipeline: %w", err)
	}
	return pipeline, nil
}

func (c *WGPUCompiler) topologyFor(passName string) wgpu.PrimitiveTopology {
	if passName == "gizmo" {
		return wgpu.PrimitiveTopologyLineList
	}
	return wgpu.PrimitiveTopologyTriangleList
}

// usesLightBuffer reports whether the pass source declares the light
// storage buffer binding.
func usesLightBuffer(source string) bool {
	return strings.Contains(source, "var<storage, read> lights")
}

func overlayPass(name string) bool {
	switch name {
	case "grid", "gizmo", "billboard", "label":
		return true
	}
	return false
}

// UniformSlots maps the fields of the pass's "struct Uniforms" block to
// their float4 slot offsets, the indices writeSlot packs by. Fields align
// to 16 bytes; a mat4x4 spans four slots.
func UniformSlots(source string) map[string]int {
	slots := make(map[string]int)

	idx := strings.Index(source, "struct Uniforms")
	if idx < 0 {
		return slots
	}
	body := source[idx:]
	open := strings.Index(body, "{")
	closing := strings.Index(body, "}")
	if open < 0 || closing < 0 || closing < open {
		return slots
	}

	next := 0
	for _, line := range strings.Split(body[open+1:closing], "\n") {
		line = strings.TrimSpace(line)
		if ci := strings.Index(line, "//"); ci >= 0 {
			line = strings.TrimSpace(line[:ci])
		}
		name, typ, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		typ = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(typ), ","))
		if name == "" || typ == "" {
			continue
		}

		slots[name] = next
		if strings.HasPrefix(typ, "mat4x4") {
			next += 4
		} else {
			next++
		}
	}
	return slots
}
