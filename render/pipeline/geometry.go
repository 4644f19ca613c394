package pipeline

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/ember3d/ember/render/core"
)

// Built-in mesh geometry, interleaved position/normal/uv. Wireframe shapes
// are line lists; the quad and fullscreen triangle are triangle lists.

func vertex(out []float32, pos, normal mgl32.Vec3, u, v float32) []float32 {
	return append(out,
		pos.X(), pos.Y(), pos.Z(),
		normal.X(), normal.Y(), normal.Z(),
		u, v)
}

// lineGeometry is the unit X segment lineMatrix stretches between two
// world points.
func lineGeometry() ([]float32, []uint32) {
	var verts []float32
	verts = vertex(verts, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0}, 0, 0)
	verts = vertex(verts, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}, 1, 0)
	return verts, []uint32{0, 1}
}

// wireCubeGeometry spans [-0.5, 0.5] so a cube gizmo's scale is its full
// edge length. 8 corners, 12 edges.
func wireCubeGeometry() ([]float32, []uint32) {
	var verts []float32
	for _, z := range []float32{-0.5, 0.5} {
		for _, y := range []float32{-0.5, 0.5} {
			for _, x := range []float32{-0.5, 0.5} {
				p := mgl32.Vec3{x, y, z}
				verts = vertex(verts, p, p.Normalize(), x+0.5, y+0.5)
			}
		}
	}
	indices := []uint32{
		0, 1, 1, 3, 3, 2, 2, 0, // back face
		4, 5, 5, 7, 7, 6, 6, 4, // front face
		0, 4, 1, 5, 2, 6, 3, 7, // connecting edges
	}
	return verts, indices
}

// wireSphereGeometry is three unit-radius great circles (XY, XZ, YZ), 16
// segments each.
func wireSphereGeometry() ([]float32, []uint32) {
	const segments = 16
	var verts []float32
	var indices []uint32

	circle := func(point func(sin, cos float32) mgl32.Vec3) {
		base := uint32(len(verts) / 8)
		for i := 0; i < segments; i++ {
			a := 2 * math.Pi * float64(i) / segments
			sin, cos := math.Sincos(a)
			p := point(float32(sin), float32(cos))
			verts = vertex(verts, p, p, float32(i)/segments, 0)
		}
		for i := uint32(0); i < segments; i++ {
			indices = append(indices, base+i, base+(i+1)%segments)
		}
	}

	circle(func(sin, cos float32) mgl32.Vec3 { return mgl32.Vec3{cos, sin, 0} })
	circle(func(sin, cos float32) mgl32.Vec3 { return mgl32.Vec3{cos, 0, sin} })
	circle(func(sin, cos float32) mgl32.Vec3 { return mgl32.Vec3{0, cos, sin} })
	return verts, indices
}

// quadGeometry spans [-1, 1] in XY as two triangles with sequential
// indices, matching both the billboard basis (half-extent scaling) and the
// grid shader's vertex_index corner table.
func quadGeometry() ([]float32, []uint32) {
	corners := [][2]float32{
		{-1, -1}, {1, -1}, {-1, 1},
		{1, -1}, {1, 1}, {-1, 1},
	}
	var verts []float32
	for _, c := range corners {
		verts = vertex(verts, mgl32.Vec3{c[0], c[1], 0}, mgl32.Vec3{0, 0, 1},
			c[0]*0.5+0.5, c[1]*0.5+0.5)
	}
	return verts, []uint32{0, 1, 2, 3, 4, 5}
}

// fullscreenTriGeometry is the single oversized triangle covering clip
// space; the shaders that draw it derive positions from vertex_index, the
// buffer content only has to agree.
func fullscreenTriGeometry() ([]float32, []uint32) {
	var verts []float32
	verts = vertex(verts, mgl32.Vec3{-1, -1, 0}, mgl32.Vec3{0, 0, 1}, 0, 0)
	verts = vertex(verts, mgl32.Vec3{3, -1, 0}, mgl32.Vec3{0, 0, 1}, 2, 0)
	verts = vertex(verts, mgl32.Vec3{-1, 3, 0}, mgl32.Vec3{0, 0, 1}, 0, 2)
	return verts, []uint32{0, 1, 2}
}

func meshFromGeometry(name string, build func() ([]float32, []uint32)) *core.Mesh {
	verts, indices := build()
	return core.NewMeshData(name, unitBounds(), verts, indices)
}
