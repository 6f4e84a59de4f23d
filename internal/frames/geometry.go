package frames

import (
	"fmt"
	"math"
)

// Geometry is the pixel layout both endpoints agree on out of band.
type Geometry struct {
	Width         uint32 `json:"width" toml:"width"`
	Height        uint32 `json:"height" toml:"height"`
	Pitch         uint32 `json:"pitch" toml:"pitch"`
	BytesPerPixel uint32 `json:"bytes_per_pixel" toml:"bytes_per_pixel"`
}

// DefaultGeometry is a 2560x1440 RGBA frame without row padding.
var DefaultGeometry = Geometry{
	Width:         2560,
	Height:        1440,
	Pitch:         2560 * 4,
	BytesPerPixel: 4,
}

// Validate checks that the geometry describes a mappable frame.
func (g Geometry) Validate() error {
	if g.Width == 0 || g.Height == 0 || g.Pitch == 0 || g.BytesPerPixel == 0 {
		return fmt.Errorf("invalid geometry %s: all fields must be non-zero", g)
	}
	if uint64(g.Pitch) < g.RowBytes() {
		return fmt.Errorf("invalid geometry %s: pitch %d < width*bpp %d", g, g.Pitch, g.RowBytes())
	}
	if g.Size() > math.MaxInt {
		return fmt.Errorf("invalid geometry %s: frame size %d overflows int", g, g.Size())
	}
	return nil
}

// RowBytes is the number of meaningful bytes in a row (width * bpp).
func (g Geometry) RowBytes() uint64 {
	return uint64(g.Width) * uint64(g.BytesPerPixel)
}

// Size is the mapped region size (pitch * height).
func (g Geometry) Size() uint64 {
	return uint64(g.Pitch) * uint64(g.Height)
}

// String implements fmt.Stringer.
func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d pitch=%d bpp=%d", g.Width, g.Height, g.Pitch, g.BytesPerPixel)
}
