package pipeline

import (
	"github.com/go-gl/mathgl/mgl32"
)

// GridOptions drives the infinite ground-grid overlay shader.
type GridOptions struct {
	PrimaryCell   float32 // world units between major lines
	SecondaryCell float32 // world units between minor lines
	LineWidth     float32 // line width in pixels
	MaxDistance   float32 // fade-out distance from the camera
}

// DefaultGridOptions matches a 1m/10m editor grid.
func DefaultGridOptions() GridOptions {
	return GridOptions{
		PrimaryCell:   10,
		SecondaryCell: 1,
		LineWidth:     1.5,
		MaxDistance:   200,
	}
}

func (g GridOptions) params() mgl32.Vec4 {
	return mgl32.Vec4{g.PrimaryCell, g.SecondaryCell, g.LineWidth, g.MaxDistance}
}
