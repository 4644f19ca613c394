package pipeline

import (
	"fmt"
	"image"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/ember3d/ember/render/core"
)

const (
	defaultLabelFontSize = 32.0
	glyphAtlasSize       = 512
	glyphPadding         = 4
)

// Glyph holds one rasterized character's atlas placement and metrics.
type Glyph struct {
	UVMin   [2]float32
	UVMax   [2]float32
	Size    [2]float32 // pixels
	Offset  [2]float32 // bearing from the pen position
	Advance float32
}

// GlyphQuad is one character of a laid-out label: a local-space rectangle
// (label space, pixels, origin at the pen start) plus its atlas UVs. The
// overlay stage turns each quad into a billboarded draw.
type GlyphQuad struct {
	X0, Y0, X1, Y1 float32
	UVMin, UVMax   [2]float32
}

// GlyphAtlas rasterizes the printable ASCII range of a font into one
// alpha texture, CPU-side. The image is uploaded once by the device layer;
// label drawing only reads the metrics.
type GlyphAtlas struct {
	Image   *image.Alpha
	Texture core.TextureID

	glyphs     map[rune]Glyph
	ascent     float32
	lineHeight float32
}

// NewGlyphAtlas parses TTF data and packs glyphs 32..126 row by row into a
// fixed-size alpha atlas.
func NewGlyphAtlas(fontData []byte, size float64) (*GlyphAtlas, error) {
	parsed, err := opentype.Parse(fontData)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create face: %w", err)
	}

	img := image.NewAlpha(image.Rect(0, 0, glyphAtlasSize, glyphAtlasSize))
	glyphs := make(map[rune]Glyph)

	x, y := glyphPadding, glyphPadding
	rowHeight := 0

	for r := rune(32); r < 127; r++ {
		bounds, mask, _, adv, ok := face.Glyph(fixed.Point26_6{}, r)
		if !ok {
			continue
		}
		w := mask.Bounds().Dx()
		h := mask.Bounds().Dy()

		if x+w >= glyphAtlasSize {
			x = glyphPadding
			y += rowHeight + glyphPadding
			rowHeight = 0
		}
		if y+h >= glyphAtlasSize {
			return nil, fmt.Errorf("glyph atlas overflow at %q", r)
		}

		draw.Draw(img, image.Rect(x, y, x+w, y+h), mask, mask.Bounds().Min, draw.Src)

		glyphs[r] = Glyph{
			UVMin:   [2]float32{float32(x) / glyphAtlasSize, float32(y) / glyphAtlasSize},
			UVMax:   [2]float32{float32(x+w) / glyphAtlasSize, float32(y+h) / glyphAtlasSize},
			Size:    [2]float32{float32(w), float32(h)},
			Offset:  [2]float32{float32(bounds.Min.X), float32(bounds.Min.Y)},
			Advance: float32(adv) / 64.0,
		}

		x += w + glyphPadding
		if h > rowHeight {
			rowHeight = h
		}
	}

	metrics := face.Metrics()
	return &GlyphAtlas{
		Image:      img,
		Texture:    core.NewTextureID(),
		glyphs:     glyphs,
		ascent:     float32(metrics.Ascent.Ceil()),
		lineHeight: float32(metrics.Height.Ceil()),
	}, nil
}

// Layout produces one quad per drawable character of text, centered
// horizontally around the pen origin so billboarded labels sit centered on
// their anchor point.
func (a *GlyphAtlas) Layout(text string) []GlyphQuad {
	width, _ := a.Measure(text)

	quads := make([]GlyphQuad, 0, len(text))
	penX := -width / 2
	penY := float32(0)

	for _, r := range text {
		if r == '\n' {
			penX = -width / 2
			penY -= a.lineHeight
			continue
		}
		g, ok := a.glyphs[r]
		if !ok {
			continue
		}
		quads = append(quads, GlyphQuad{
			X0:    penX + g.Offset[0],
			Y0:    penY - g.Offset[1] - g.Size[1],
			X1:    penX + g.Offset[0] + g.Size[0],
			Y1:    penY - g.Offset[1],
			UVMin: g.UVMin,
			UVMax: g.UVMax,
		})
		penX += g.Advance
	}
	return quads
}

// Measure returns the pixel width and height of the laid-out text.
func (a *GlyphAtlas) Measure(text string) (float32, float32) {
	maxW, curW := float32(0), float32(0)
	lines := 1
	for _, r := range text {
		if r == '\n' {
			if curW > maxW {
				maxW = curW
			}
			curW = 0
			lines++
			continue
		}
		if g, ok := a.glyphs[r]; ok {
			curW += g.Advance
		}
	}
	if curW > maxW {
		maxW = curW
	}
	return maxW, a.lineHeight * float32(lines)
}
