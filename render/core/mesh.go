package core

// Mesh is draw-ready geometry: an identity, counts, local-space bounds and
// opaque device buffer handles filled in by the device layer.
type Mesh struct {
	ID   MeshID
	Name string

	// Local-space bounds, transformed per frame by the owning renderable.
	Bounds Bounds

	VertexCount uint32
	IndexCount  uint32

	// CPU geometry: interleaved position/normal/uv, 8 floats per vertex.
	// The device layer uploads it on first bind.
	Vertices []float32
	Indices  []uint32

	// Device handles (wgpu buffers on the webgpu path); nil until uploaded.
	VertexBuffer any
	IndexBuffer  any
}

func NewMesh(name string, bounds Bounds, vertexCount, indexCount uint32) *Mesh {
	return &Mesh{
		ID:          NewMeshID(),
		Name:        name,
		Bounds:      bounds,
		VertexCount: vertexCount,
		IndexCount:  indexCount,
	}
}

// NewMeshData creates a mesh from interleaved vertex data (position,
// normal, uv; 8 floats per vertex) and a uint32 index list. Counts are
// derived from the slices.
func NewMeshData(name string, bounds Bounds, vertices []float32, indices []uint32) *Mesh {
	return &Mesh{
		ID:          NewMeshID(),
		Name:        name,
		Bounds:      bounds,
		VertexCount: uint32(len(vertices) / 8),
		IndexCount:  uint32(len(indices)),
		Vertices:    vertices,
		Indices:     indices,
	}
}
