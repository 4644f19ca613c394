package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Bounds is an axis-aligned box described by a center and half-extents.
// Depending on context it is expressed in world or camera-relative space.
type Bounds struct {
	Center  mgl32.Vec3
	Extents mgl32.Vec3
}

// NewBounds returns a box centered at center with the given half-extents.
func NewBounds(center, extents mgl32.Vec3) Bounds {
	return Bounds{Center: center, Extents: extents}
}

// BoundsFromMinMax builds a box from its minimum and maximum corners.
func BoundsFromMinMax(min, max mgl32.Vec3) Bounds {
	center := min.Add(max).Mul(0.5)
	return Bounds{Center: center, Extents: max.Sub(center)}
}

func (b Bounds) Min() mgl32.Vec3 { return b.Center.Sub(b.Extents) }
func (b Bounds) Max() mgl32.Vec3 { return b.Center.Add(b.Extents) }

// Corners returns the 8 corners of the box.
func (b Bounds) Corners() [8]mgl32.Vec3 {
	min, max := b.Min(), b.Max()
	return [8]mgl32.Vec3{
		{min.X(), min.Y(), min.Z()},
		{max.X(), min.Y(), min.Z()},
		{min.X(), max.Y(), min.Z()},
		{max.X(), max.Y(), min.Z()},
		{min.X(), min.Y(), max.Z()},
		{max.X(), min.Y(), max.Z()},
		{min.X(), max.Y(), max.Z()},
		{max.X(), max.Y(), max.Z()},
	}
}

// Transformed returns the conservative axis-aligned box that encloses this
// box after applying the matrix. All 8 corners are transformed and re-fitted.
func (b Bounds) Transformed(m mgl32.Mat4) Bounds {
	inf := float32(1e20)
	wMin := mgl32.Vec3{inf, inf, inf}
	wMax := mgl32.Vec3{-inf, -inf, -inf}

	for _, c := range b.Corners() {
		wc := m.Mul4x1(c.Vec4(1.0)).Vec3()
		wMin = mgl32.Vec3{min32(wMin.X(), wc.X()), min32(wMin.Y(), wc.Y()), min32(wMin.Z(), wc.Z())}
		wMax = mgl32.Vec3{max32(wMax.X(), wc.X()), max32(wMax.Y(), wc.Y()), max32(wMax.Z(), wc.Z())}
	}

	return BoundsFromMinMax(wMin, wMax)
}

// Translated returns the box shifted by offset.
func (b Bounds) Translated(offset mgl32.Vec3) Bounds {
	return Bounds{Center: b.Center.Add(offset), Extents: b.Extents}
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
