package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// ClearMode selects what the camera clears before drawing.
type ClearMode uint32

const (
	ClearNothing ClearMode = iota
	ClearColorOnly
	ClearDepthOnly
	ClearDepthColor
	// ClearSkybox clears depth and color, then draws the skybox.
	ClearSkybox
)

// Camera describes a viewpoint into the scene.
type Camera struct {
	Transform *Transform

	FOVDegrees float32
	Near       float32
	Far        float32

	ClearMode  ClearMode
	ClearColor [4]float32

	// RelativeRebase shifts all world-space uploads so the camera sits at
	// the origin, to reduce precision loss far from the world origin.
	RelativeRebase bool
}

func NewCamera() *Camera {
	return &Camera{
		Transform:  NewTransform(),
		FOVDegrees: 60,
		Near:       0.1,
		Far:        1000,
		ClearMode:  ClearSkybox,
		ClearColor: [4]float32{0, 0, 0, 1},
	}
}

// ViewMatrix returns the world-to-camera matrix.
func (c *Camera) ViewMatrix() mgl32.Mat4 {
	eye := c.Transform.Position
	target := eye.Add(c.Transform.Forward())
	return mgl32.LookAtV(eye, target, c.Transform.Up())
}

// ProjectionMatrix returns the perspective projection for the given aspect.
func (c *Camera) ProjectionMatrix(aspect float32) mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.FOVDegrees), aspect, c.Near, c.Far)
}

// ViewProjection combines projection and view for the given aspect ratio.
func (c *Camera) ViewProjection(aspect float32) mgl32.Mat4 {
	return c.ProjectionMatrix(aspect).Mul4(c.ViewMatrix())
}
