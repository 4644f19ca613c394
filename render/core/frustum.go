package core

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Containment classifies the result of a frustum containment test.
type Containment int

const (
	Disjoint Containment = iota
	Intersects
	Contains
)

func (c Containment) String() string {
	switch c {
	case Disjoint:
		return "Disjoint"
	case Intersects:
		return "Intersects"
	case Contains:
		return "Contains"
	}
	return fmt.Sprintf("Containment(%d)", int(c))
}

// Frustum plane indices. Containment tests walk the planes in this order;
// the ordering is a short-circuit policy only, every plane must agree for
// the Contains/Intersects distinction.
const (
	PlaneNear = iota
	PlaneFar
	PlaneLeft
	PlaneRight
	PlaneTop
	PlaneBottom
)

// Frustum corner indices, near fan first then far fan.
const (
	CornerNearTopLeft = iota
	CornerNearTopRight
	CornerNearBottomRight
	CornerNearBottomLeft
	CornerFarTopLeft
	CornerFarTopRight
	CornerFarBottomRight
	CornerFarBottomLeft
)

// BoundingFrustum is the truncated-pyramid volume visible through a
// view-projection matrix: 6 planes plus the 8 corner points. Planes and
// corners are always recomputed together from the last-assigned matrix,
// never independently, so they can never disagree.
type BoundingFrustum struct {
	matrix  mgl32.Mat4
	planes  [6]Plane
	corners [8]mgl32.Vec3
}

// NewBoundingFrustum derives a frustum from a combined view-projection
// matrix. Returns an error when the matrix is degenerate enough that a
// corner cannot be solved (three near-coplanar plane normals).
func NewBoundingFrustum(viewProj mgl32.Mat4) (*BoundingFrustum, error) {
	f := &BoundingFrustum{}
	if err := f.SetMatrix(viewProj); err != nil {
		return nil, err
	}
	return f, nil
}

// SetMatrix reassigns the source matrix and recomputes planes and corners.
// Uses the Gribb/Hartmann row combinations; every plane is renormalized
// immediately after extraction.
func (f *BoundingFrustum) SetMatrix(viewProj mgl32.Mat4) error {
	m := viewProj

	// Row 3 +/- row i of the clip matrix, for a column-vector convention.
	row := func(i int) [4]float32 {
		return [4]float32{m.At(i, 0), m.At(i, 1), m.At(i, 2), m.At(i, 3)}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	add := func(a, b [4]float32) Plane { return NewPlane(a[0]+b[0], a[1]+b[1], a[2]+b[2], a[3]+b[3]) }
	sub := func(a, b [4]float32) Plane { return NewPlane(a[0]-b[0], a[1]-b[1], a[2]-b[2], a[3]-b[3]) }

	planes := [6]Plane{
		PlaneNear:   add(r3, r2),
		PlaneFar:    sub(r3, r2),
		PlaneLeft:   add(r3, r0),
		PlaneRight:  sub(r3, r0),
		PlaneTop:    sub(r3, r1),
		PlaneBottom: add(r3, r1),
	}

	// Corner fan order: top-left, top-right, bottom-right, bottom-left,
	// first against the near plane then the far plane.
	corners := [8]mgl32.Vec3{}
	triples := [8][3]int{
		CornerNearTopLeft:     {PlaneNear, PlaneLeft, PlaneTop},
		CornerNearTopRight:    {PlaneNear, PlaneRight, PlaneTop},
		CornerNearBottomRight: {PlaneNear, PlaneRight, PlaneBottom},
		CornerNearBottomLeft:  {PlaneNear, PlaneLeft, PlaneBottom},
		CornerFarTopLeft:      {PlaneFar, PlaneLeft, PlaneTop},
		CornerFarTopRight:     {PlaneFar, PlaneRight, PlaneTop},
		CornerFarBottomRight:  {PlaneFar, PlaneRight, PlaneBottom},
		CornerFarBottomLeft:   {PlaneFar, PlaneLeft, PlaneBottom},
	}
	for i, t := range triples {
		p, err := IntersectPlanes(planes[t[0]], planes[t[1]], planes[t[2]])
		if err != nil {
			return fmt.Errorf("frustum corner %d: %w", i, err)
		}
		corners[i] = p
	}

	f.matrix = m
	f.planes = planes
	f.corners = corners
	return nil
}

// Matrix returns the view-projection matrix the frustum was derived from.
func (f *BoundingFrustum) Matrix() mgl32.Mat4 { return f.matrix }

// Planes returns the 6 planes in {Near, Far, Left, Right, Top, Bottom} order.
func (f *BoundingFrustum) Planes() [6]Plane { return f.planes }

// Corners returns the 8 corner points.
func (f *BoundingFrustum) Corners() [8]mgl32.Vec3 { return f.corners }

// Contains tests an axis-aligned box against all 6 planes, short-circuiting
// to Disjoint the instant the box lies entirely outside any plane.
func (f *BoundingFrustum) Contains(b Bounds) Containment {
	result := Contains
	for i := 0; i < 6; i++ {
		plane := f.planes[i]

		// p-vertex: corner furthest along the plane normal. If even that
		// corner is outside, the whole box is.
		p := b.Center
		n := b.Center
		for axis := 0; axis < 3; axis++ {
			if plane.Normal[axis] >= 0 {
				p[axis] += b.Extents[axis]
				n[axis] -= b.Extents[axis]
			} else {
				p[axis] -= b.Extents[axis]
				n[axis] += b.Extents[axis]
			}
		}

		if plane.DistanceTo(p) < 0 {
			return Disjoint
		}
		if plane.DistanceTo(n) < 0 {
			result = Intersects
		}
	}
	return result
}

// ContainsPoint reports whether the point lies on the inside half-space of
// every plane.
func (f *BoundingFrustum) ContainsPoint(p mgl32.Vec3) Containment {
	for i := 0; i < 6; i++ {
		if f.planes[i].DistanceTo(p) < 0 {
			return Disjoint
		}
	}
	return Contains
}

// planeIntersectEpsilon bounds the scalar triple product below which three
// plane normals are treated as coplanar and the intersection as undefined.
const planeIntersectEpsilon = 1e-8

// IntersectPlanes solves the single point shared by three planes using the
// standard cross-product formula. Returns an error when the normals are
// near-coplanar; the caller must not use the point in that case.
func IntersectPlanes(p1, p2, p3 Plane) (mgl32.Vec3, error) {
	n1, n2, n3 := p1.Normal, p2.Normal, p3.Normal

	denom := n1.Dot(n2.Cross(n3))
	if denom > -planeIntersectEpsilon && denom < planeIntersectEpsilon {
		return mgl32.Vec3{}, fmt.Errorf("plane normals are coplanar (denominator %g)", denom)
	}

	v := n2.Cross(n3).Mul(-p1.Distance).
		Add(n3.Cross(n1).Mul(-p2.Distance)).
		Add(n1.Cross(n2).Mul(-p3.Distance))
	return v.Mul(1.0 / denom), nil
}
