package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Plane represents a plane in 3D space using the equation n·p + d = 0,
// where n is the normal and d the signed distance from the origin.
// Containment tests assume the normal points toward the inside half-space.
type Plane struct {
	Normal   mgl32.Vec3
	Distance float32
}

// NewPlane returns a plane with the given coefficients, normalized so the
// normal has unit length. Every plane derived from a matrix must go through
// this normalization or containment tests are wrong.
func NewPlane(a, b, c, d float32) Plane {
	p := Plane{Normal: mgl32.Vec3{a, b, c}, Distance: d}
	p.Normalize()
	return p
}

// Normalize rescales the plane so the normal has unit length.
// A zero-length normal is left untouched.
func (p *Plane) Normalize() {
	length := float32(math.Sqrt(float64(
		p.Normal[0]*p.Normal[0] + p.Normal[1]*p.Normal[1] + p.Normal[2]*p.Normal[2],
	)))
	if length > 0 {
		inv := 1.0 / length
		p.Normal = p.Normal.Mul(inv)
		p.Distance *= inv
	}
}

// DistanceTo returns the signed distance from the point to the plane.
// Positive means the point is on the inside (normal) side.
func (p Plane) DistanceTo(point mgl32.Vec3) float32 {
	return p.Normal.Dot(point) + p.Distance
}
