package core

// TargetFormat is the pixel format of a render target.
type TargetFormat uint32

const (
	FormatRGBA8 TargetFormat = iota
	// FormatRGBA16Float is the HDR intermediate format the main pass
	// renders into before tone-mapping.
	FormatRGBA16Float
	FormatDepth32
)

// RenderTarget is a drawable texture: either the final output surface, a
// temporary HDR color buffer, or the shadow atlas depth texture. Texture
// and View are opaque device handles, nil in device-less tests.
type RenderTarget struct {
	ID     TextureID
	Name   string
	Width  int
	Height int
	Format TargetFormat

	Texture any
	View    any
}

func NewRenderTarget(name string, width, height int, format TargetFormat) *RenderTarget {
	return &RenderTarget{
		ID:     NewTextureID(),
		Name:   name,
		Width:  width,
		Height: height,
		Format: format,
	}
}
