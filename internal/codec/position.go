package codec

import "fmt"

// Position is a block coordinate. On the wire it is one big-endian int64:
// x in bits 38-63, z in bits 12-37, y in bits 0-11, each two's complement.
type Position struct {
	X, Y, Z int32
}

// Coordinate ranges representable by the packed form.
const (
	MinHorizontal = -1 << 25
	MaxHorizontal = 1<<25 - 1
	MinVertical   = -1 << 11
	MaxVertical   = 1<<11 - 1
)

// Pack encodes p. Coordinates outside the valid range are truncated.
func (p Position) Pack() int64 {
	return (int64(p.X)&0x3FFFFFF)<<38 | (int64(p.Z)&0x3FFFFFF)<<12 | int64(p.Y)&0xFFF
}

// UnpackPosition decodes a packed position, sign-extending every field.
func UnpackPosition(v int64) Position {
	return Position{
		X: int32(v >> 38),
		Y: int32(v << 52 >> 52),
		Z: int32(v << 26 >> 38),
	}
}

// Valid reports whether p survives a Pack/UnpackPosition round trip.
func (p Position) Valid() bool {
	return p.X >= MinHorizontal && p.X <= MaxHorizontal &&
		p.Z >= MinHorizontal && p.Z <= MaxHorizontal &&
		p.Y >= MinVertical && p.Y <= MaxVertical
}

// Offset returns p moved by the given deltas.
func (p Position) Offset(dx, dy, dz int32) Position {
	return Position{X: p.X + dx, Y: p.Y + dy, Z: p.Z + dz}
}

func (p Position) String() string {
	return fmt.Sprintf("(%d, %d, %d)", p.X, p.Y, p.Z)
}
