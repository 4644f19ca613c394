package pipeline

import (
	"github.com/ember3d/ember/render/core"
)

// Batch groups renderables sharing one material so they can be drawn with
// a single state switch. Batches are rebuilt every frame from the live
// renderable set; there is no persistent batch identity across frames.
type Batch struct {
	Material *core.Material

	// Items are indices into the frame's renderable slice, in
	// registration order within the batch.
	Items []int
}

// EnumerateBatches groups the frame's renderables by material identity.
// Batch order is first-appearance order of each material, so the result is
// deterministic for an unchanged scene. Renderables without a material
// fall back to defaultMat; a nil fallback leaves them unbatched (their
// draws are skipped).
func EnumerateBatches(renderables []Renderable, defaultMat *core.Material) []Batch {
	var batches []Batch
	byMaterial := make(map[core.MaterialID]int)

	for i := range renderables {
		mat := renderables[i].Material
		if mat == nil {
			mat = defaultMat
		}
		if mat == nil {
			continue
		}

		bi, ok := byMaterial[mat.ID]
		if !ok {
			bi = len(batches)
			byMaterial[mat.ID] = bi
			batches = append(batches, Batch{Material: mat})
		}
		batches[bi].Items = append(batches[bi].Items, i)
	}
	return batches
}

// CullItems filters a batch's items against a pass frustum: an item
// survives when it is visible, has geometry, and its bounds are not
// disjoint from the frustum. Order is preserved.
func CullItems(renderables []Renderable, items []int, frustum *core.BoundingFrustum) []int {
	out := items[:0:0]
	for _, idx := range items {
		r := &renderables[idx]
		if !r.Visible || r.Mesh == nil {
			continue
		}
		if frustum != nil && frustum.Contains(r.Bounds) == core.Disjoint {
			continue
		}
		out = append(out, idx)
	}
	return out
}

// ShadowPassIndex resolves the sub-pass a material uses during shadow
// rendering: the named shadow pass when the shader defines one, otherwise
// sub-pass 0.
func ShadowPassIndex(mat *core.Material) int {
	if mat.Shader == nil || mat.ShadowPass == "" {
		return 0
	}
	if idx := mat.Shader.PassIndex(mat.ShadowPass); idx >= 0 {
		return idx
	}
	return 0
}
