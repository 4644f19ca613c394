package cmdbuf

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/ember3d/ember/render/shaders"
)

func TestUniformSlots(t *testing.T) {
	source := `
struct Uniforms {
    model: mat4x4<f32>,
    inv_model: mat4x4<f32>,
    mvp: mat4x4<f32>,
    base_color: vec4<f32>, // trailing comment
    camera_pos: vec4<f32>,
    exposure: f32,
};

@group(0) @binding(0) var<uniform> u: Uniforms;
`
	slots := UniformSlots(source)

	want := map[string]int{
		"model":      0,
		"inv_model":  4,
		"mvp":        8,
		"base_color": 12,
		"camera_pos": 13,
		"exposure":   14,
	}
	for name, idx := range want {
		if got, ok := slots[name]; !ok || got != idx {
			t.Errorf("slot %q: want %d, got %d (present=%v)", name, idx, got, ok)
		}
	}
	if len(slots) != len(want) {
		t.Errorf("want %d slots, got %d: %v", len(want), len(slots), slots)
	}
}

func TestUniformSlotsNoBlock(t *testing.T) {
	if slots := UniformSlots("@vertex fn vs_main() {}"); len(slots) != 0 {
		t.Fatalf("source without a Uniforms block: want no slots, got %v", slots)
	}
}

func TestPassTopology(t *testing.T) {
	c := &WGPUCompiler{}

	tests := []struct {
		pass string
		want wgpu.PrimitiveTopology
	}{
		{"gizmo", wgpu.PrimitiveTopologyLineList},
		{"billboard", wgpu.PrimitiveTopologyTriangleList},
		{"label", wgpu.PrimitiveTopologyTriangleList},
		{"forward", wgpu.PrimitiveTopologyTriangleList},
	}
	for _, tc := range tests {
		if got := c.topologyFor(tc.pass); got != tc.want {
			t.Errorf("pass %q: topology %v, want %v", tc.pass, got, tc.want)
		}
	}
}

func TestLightBufferDetection(t *testing.T) {
	if !usesLightBuffer(shaders.ForwardWGSL) {
		t.Error("forward shader must be flagged as a light-buffer consumer")
	}
	for _, src := range []string{shaders.ShadowWGSL, shaders.SkyboxWGSL, shaders.TonemapWGSL, shaders.GizmoWGSL} {
		if usesLightBuffer(src) {
			t.Error("only the forward shader reads the light buffer")
		}
	}
}
