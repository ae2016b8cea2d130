package geo

import (
	"encoding/binary"
	"math"
)

func float32bits(f float32) uint32    { return math.Float32bits(f) }
func float32frombits(b uint32) float32 { return math.Float32frombits(b) }

// EncodeEntry packs e into buf using the layout from spec.md §6.2:
// trajectory_id: u64 | unit_index: u32 | start: point | end: point | label: u32,
// all little-endian. buf must be at least EntrySize bytes.
func EncodeEntry(buf []byte, e LeafEntry) {
	binary.LittleEndian.PutUint64(buf[0:8], uint64(e.TrajectoryID))
	binary.LittleEndian.PutUint32(buf[8:12], e.UnitIndex)
	encodePoint(buf[12:24], e.Unit.Start)
	encodePoint(buf[24:36], e.Unit.End)
	binary.LittleEndian.PutUint32(buf[36:40], uint32(e.Unit.Label))
}

// DecodeEntry unpacks a LeafEntry from buf (must be at least EntrySize bytes).
func DecodeEntry(buf []byte) LeafEntry {
	return LeafEntry{
		TrajectoryID: TrajectoryID(binary.LittleEndian.Uint64(buf[0:8])),
		UnitIndex:    binary.LittleEndian.Uint32(buf[8:12]),
		Unit: TrajectoryUnit{
			Start: decodePoint(buf[12:24]),
			End:   decodePoint(buf[24:36]),
			Label: Label(binary.LittleEndian.Uint32(buf[36:40])),
		},
	}
}

func encodePoint(buf []byte, p Point) {
	binary.LittleEndian.PutUint32(buf[0:4], float32bits(p.X))
	binary.LittleEndian.PutUint32(buf[4:8], float32bits(p.Y))
	binary.LittleEndian.PutUint32(buf[8:12], p.T)
}

func decodePoint(buf []byte) Point {
	return Point{
		X: float32frombits(binary.LittleEndian.Uint32(buf[0:4])),
		Y: float32frombits(binary.LittleEndian.Uint32(buf[4:8])),
		T: binary.LittleEndian.Uint32(buf[8:12]),
	}
}
