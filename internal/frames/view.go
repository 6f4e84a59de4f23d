package frames

// View is a read-only window over one received frame. Data is only valid for
// the duration of the Visitor call; it is unmapped as soon as the call returns.
type View struct {
	Index    uint64
	Geometry Geometry
	Data     []byte
}

// Row returns the width*bpp meaningful bytes of row y, without pitch padding.
func (v View) Row(y int) []byte {
	start := y * int(v.Geometry.Pitch)
	return v.Data[start : start+int(v.Geometry.RowBytes())]
}

// Rows reports the number of rows in the view.
func (v View) Rows() int {
	return int(v.Geometry.Height)
}

// Visitor inspects or persists a frame. It must not retain v.Data.
type Visitor func(v View) error
