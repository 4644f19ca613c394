// Package atlas arbitrates one shared shadow-map texture among the lights
// competing for it each frame. The texture is treated as a grid of square
// tiles; lights reserve square tile regions, and all reservations are
// frame-scoped.
package atlas

// DefaultTileSize is the base tile width in texels. Every reserved region
// is an integer multiple of this size.
const DefaultTileSize = 128

// ShadowDistanceFalloff is the light-to-camera distance in world units at
// which a light's requested shadow resolution bottoms out at a single tile.
const ShadowDistanceFalloff float32 = 16.0

// Slot is a reserved rectangular region of the atlas in texels.
type Slot struct {
	X, Y  int
	Width int
}

// InvalidSlot is the sentinel for a light that holds no atlas space this
// frame. Width 0 tells the shading side the light is unshadowed.
var InvalidSlot = Slot{X: -1, Y: -1, Width: 0}

// Valid reports whether the slot denotes reserved atlas space.
func (s Slot) Valid() bool { return s.Width > 0 }

// Reservation records who holds a slot this frame, for occupancy debugging.
type Reservation struct {
	Slot  Slot
	Owner string
}

// ShadowAtlas tracks per-frame tile occupancy of the shared shadow texture.
// Not safe for concurrent use; the render thread is the single caller.
type ShadowAtlas struct {
	size     int
	tileSize int
	tiles    int // tiles per row/column

	occupied []bool // row-major tile grid
	reserved []Reservation
}

// NewShadowAtlas creates an allocator for a size x size texture subdivided
// into tileSize tiles. Size must be a positive multiple of tileSize.
func NewShadowAtlas(size, tileSize int) *ShadowAtlas {
	if tileSize <= 0 {
		tileSize = DefaultTileSize
	}
	if size < tileSize {
		size = tileSize
	}
	tiles := size / tileSize
	return &ShadowAtlas{
		size:     tiles * tileSize,
		tileSize: tileSize,
		tiles:    tiles,
		occupied: make([]bool, tiles*tiles),
	}
}

// Size returns the atlas texture width in texels.
func (a *ShadowAtlas) Size() int { return a.size }

// TileSize returns the base tile width in texels.
func (a *ShadowAtlas) TileSize() int { return a.tileSize }

// Clear marks every tile free. Called exactly once before shadow-pass
// rendering begins each frame; reservations never persist across frames.
func (a *ShadowAtlas) Clear() {
	for i := range a.occupied {
		a.occupied[i] = false
	}
	a.reserved = a.reserved[:0]
}

// ReserveTiles requests a square region of at least width x height texels
// for the named owner, rounded up to the nearest tile multiple. The scan is
// first-fit over the tile grid in row-major order, so allocation is
// deterministic for a given request sequence. Returns false when no
// contiguous free block fits; the caller degrades the light to unshadowed
// rather than failing the frame.
func (a *ShadowAtlas) ReserveTiles(width, height int, owner string) (Slot, bool) {
	px := width
	if height > px {
		px = height
	}
	if px <= 0 {
		return InvalidSlot, false
	}

	span := (px + a.tileSize - 1) / a.tileSize
	if span > a.tiles {
		return InvalidSlot, false
	}

	for ty := 0; ty+span <= a.tiles; ty++ {
		for tx := 0; tx+span <= a.tiles; tx++ {
			if a.blockFree(tx, ty, span) {
				a.markBlock(tx, ty, span, true)
				slot := Slot{
					X:     tx * a.tileSize,
					Y:     ty * a.tileSize,
					Width: span * a.tileSize,
				}
				a.reserved = append(a.reserved, Reservation{Slot: slot, Owner: owner})
				return slot, true
			}
		}
	}
	return InvalidSlot, false
}

func (a *ShadowAtlas) blockFree(tx, ty, span int) bool {
	for y := ty; y < ty+span; y++ {
		for x := tx; x < tx+span; x++ {
			if a.occupied[y*a.tiles+x] {
				return false
			}
		}
	}
	return true
}

func (a *ShadowAtlas) markBlock(tx, ty, span int, v bool) {
	for y := ty; y < ty+span; y++ {
		for x := tx; x < tx+span; x++ {
			a.occupied[y*a.tiles+x] = v
		}
	}
}

// Reservations returns this frame's reservations in allocation order.
// Callers must treat the slice as read-only.
func (a *ShadowAtlas) Reservations() []Reservation {
	return a.reserved
}

// FreeTiles returns how many tiles are currently unreserved.
func (a *ShadowAtlas) FreeTiles() int {
	n := 0
	for _, o := range a.occupied {
		if !o {
			n++
		}
	}
	return n
}

// ResolutionForDistance computes the shadow-map resolution requested for a
// light at the given distance from the camera: linearly interpolated from
// maxSize at distance 0 down to one tile at ShadowDistanceFalloff and
// beyond, then floored to a tile multiple. Distant lights get cheaper
// shadow maps. The result is always a positive multiple of the tile size.
func (a *ShadowAtlas) ResolutionForDistance(distance float32, maxSize int) int {
	if maxSize > a.size {
		maxSize = a.size
	}
	if maxSize < a.tileSize {
		maxSize = a.tileSize
	}

	t := distance / ShadowDistanceFalloff
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}

	res := float32(maxSize) + t*float32(a.tileSize-maxSize)
	snapped := (int(res) / a.tileSize) * a.tileSize
	if snapped < a.tileSize {
		snapped = a.tileSize
	}
	return snapped
}
