package nodeio

import (
	"encoding/binary"
	"math"

	"github.com/scigolib/irwi/internal/geo"
)

// encodeBBox packs a bounding box into its 24-byte on-disk layout:
// min.x, min.y, min.t, max.x, max.y, max.t, each 4 bytes (spec.md §6.2).
func encodeBBox(buf []byte, b geo.BoundingBox) {
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(b.Min.X))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(b.Min.Y))
	binary.LittleEndian.PutUint32(buf[8:12], b.Min.T)
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(b.Max.X))
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(b.Max.Y))
	binary.LittleEndian.PutUint32(buf[20:24], b.Max.T)
}

func decodeBBox(buf []byte) geo.BoundingBox {
	return geo.BoundingBox{
		Min: geo.Point{
			X: math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4])),
			Y: math.Float32frombits(binary.LittleEndian.Uint32(buf[4:8])),
			T: binary.LittleEndian.Uint32(buf[8:12]),
		},
		Max: geo.Point{
			X: math.Float32frombits(binary.LittleEndian.Uint32(buf[12:16])),
			Y: math.Float32frombits(binary.LittleEndian.Uint32(buf[16:20])),
			T: binary.LittleEndian.Uint32(buf[20:24]),
		},
	}
}
