package pipeline

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/ember3d/ember/render/atlas"
	"github.com/ember3d/ember/render/core"
)

// GPULightSize is the byte size of one encoded light record. The layout
// must match the Light struct in forward.wgsl: four vec4s plus the shadow
// matrix.
const GPULightSize = 128

// Shadow projection constants. The directional box is centered on the
// camera so the shadowed region follows the view.
const (
	directionalShadowExtent float32 = 60  // half-width of the ortho box
	directionalShadowDepth  float32 = 200 // eye pullback along the light
	shadowNearPlane         float32 = 0.1
)

// GPULight is the fixed-layout record of one light, formatted for direct
// upload. Exactly one record per active light per frame; record order is
// the index shading code uses.
type GPULight struct {
	Position  mgl32.Vec4 // xyz world position, w = light type
	Direction mgl32.Vec4 // xyz normalized direction, w = cos(half cone angle)
	Color     mgl32.Vec4 // rgb color, w = intensity
	Params    mgl32.Vec4 // x = range, y/z = atlas slot origin, w = slot width (0 = unshadowed)
	Shadow    mgl32.Mat4 // world (upload space) to atlas-slot clip space
}

// Shadowed reports whether the record holds atlas space this frame.
func (l *GPULight) Shadowed() bool { return l.Params[3] > 0 }

// Marshal appends the record to dst in GPU byte order (little-endian f32).
func (l *GPULight) Marshal(dst []byte) []byte {
	dst = appendVec4(dst, l.Position)
	dst = appendVec4(dst, l.Direction)
	dst = appendVec4(dst, l.Color)
	dst = appendVec4(dst, l.Params)
	for i := 0; i < 16; i++ {
		dst = appendF32(dst, l.Shadow[i])
	}
	return dst
}

// MarshalLights packs the per-frame light records into one upload buffer.
func MarshalLights(lights []GPULight) []byte {
	buf := make([]byte, 0, len(lights)*GPULightSize)
	for i := range lights {
		buf = lights[i].Marshal(buf)
	}
	return buf
}

func appendF32(dst []byte, v float32) []byte {
	return binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
}

func appendVec4(dst []byte, v mgl32.Vec4) []byte {
	for i := 0; i < 4; i++ {
		dst = appendF32(dst, v[i])
	}
	return dst
}

// EncodeLight builds the GPU record for one light. Pass InvalidSlot and a
// zero matrix for unshadowed lights; the width-0 sentinel tells shading
// code to skip the shadow lookup.
func EncodeLight(l core.Light, slot atlas.Slot, shadow mgl32.Mat4) GPULight {
	dir := l.Direction
	if dir.Len() > 0 {
		dir = dir.Normalize()
	}

	halfCone := mgl32.DegToRad(l.ConeAngle) * 0.5
	cosCone := float32(math.Cos(float64(halfCone)))

	rec := GPULight{
		Position:  l.Position.Vec4(float32(l.Type)),
		Direction: dir.Vec4(cosCone),
		Color:     mgl32.Vec4{l.Color[0], l.Color[1], l.Color[2], l.Intensity},
		Params:    mgl32.Vec4{l.Range, 0, 0, 0},
	}
	if slot.Valid() {
		rec.Params[1] = float32(slot.X)
		rec.Params[2] = float32(slot.Y)
		rec.Params[3] = float32(slot.Width)
		rec.Shadow = shadow
	}
	return rec
}

// LightViewProjection builds the light-space view-projection used both to
// render the light's shadow pass and, via the GPU record, to sample it.
// focus is the camera position in upload space; directional shadows center
// their ortho box on it so precision follows the viewer.
func LightViewProjection(l core.Light, focus mgl32.Vec3) mgl32.Mat4 {
	dir := l.Direction
	if dir.Len() == 0 {
		dir = mgl32.Vec3{0, -1, 0}
	}
	dir = dir.Normalize()

	switch l.Type {
	case core.LightTypeDirectional:
		eye := focus.Sub(dir.Mul(directionalShadowDepth * 0.5))
		view := mgl32.LookAtV(eye, focus, lightUp(dir))
		proj := mgl32.Ortho(
			-directionalShadowExtent, directionalShadowExtent,
			-directionalShadowExtent, directionalShadowExtent,
			shadowNearPlane, directionalShadowDepth,
		)
		return proj.Mul4(view)

	case core.LightTypeSpot:
		far := l.Range
		if far <= shadowNearPlane {
			far = shadowNearPlane * 2
		}
		fov := mgl32.DegToRad(l.ConeAngle)
		if fov <= 0 {
			fov = mgl32.DegToRad(90)
		}
		view := mgl32.LookAtV(l.Position, l.Position.Add(dir), lightUp(dir))
		proj := mgl32.Perspective(fov, 1, shadowNearPlane, far)
		return proj.Mul4(view)

	default: // point: a single 90-degree map along the light's direction
		far := l.Range
		if far <= shadowNearPlane {
			far = shadowNearPlane * 2
		}
		view := mgl32.LookAtV(l.Position, l.Position.Add(dir), lightUp(dir))
		proj := mgl32.Perspective(mgl32.DegToRad(90), 1, shadowNearPlane, far)
		return proj.Mul4(view)
	}
}

// lightUp picks an up vector that cannot be collinear with the light
// direction, so LookAtV never degenerates.
func lightUp(dir mgl32.Vec3) mgl32.Vec3 {
	if dir.Y() > 0.99 || dir.Y() < -0.99 {
		return mgl32.Vec3{0, 0, 1}
	}
	return mgl32.Vec3{0, 1, 0}
}
