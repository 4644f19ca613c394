package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

type LightType uint32

const (
	LightTypePoint       LightType = 0
	LightTypeDirectional LightType = 1
	LightTypeSpot        LightType = 2
)

// Light is one active light as reported by the scene for the current frame.
type Light struct {
	Type      LightType
	Position  mgl32.Vec3
	Direction mgl32.Vec3
	Color     [3]float32
	Intensity float32
	Range     float32 // point/spot attenuation cutoff
	ConeAngle float32 // full cone angle in degrees (spot)

	CastShadows bool
}
