package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Limits bound the allocations a single decode may request. They guard
// against length prefixes that claim far more data than a packet carries.
type Limits struct {
	MaxSequence int // elements in one length-prefixed sequence
	MaxString   int // UTF-16 code units in one string
	MaxBytes    int // bytes in one length-prefixed byte array
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxSequence: 4096,
		MaxString:   32767,
		MaxBytes:    1 << 20,
	}
}

// Decoder reads protocol values from a byte slice.
type Decoder struct {
	buf    []byte
	pos    int
	limits Limits
}

// NewDecoder creates a decoder over buf with DefaultLimits.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf, limits: DefaultLimits()}
}

// NewDecoderWithLimits creates a decoder over buf with custom limits.
func NewDecoderWithLimits(buf []byte, limits Limits) *Decoder {
	return &Decoder{buf: buf, limits: limits}
}

// Limits returns the decoder's allocation limits.
func (d *Decoder) Limits() Limits {
	return d.limits
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.pos
}

// Offset returns the number of bytes consumed so far.
func (d *Decoder) Offset() int {
	return d.pos
}

// Done reports whether every byte has been consumed.
func (d *Decoder) Done() bool {
	return d.pos >= len(d.buf)
}

// ReadByte reads a single byte.
func (d *Decoder) ReadByte() (byte, error) {
	if d.pos >= len(d.buf) {
		return 0, ErrBufferTooShort
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

// ReadBytes reads exactly n bytes. The result aliases the decoder's buffer.
func (d *Decoder) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrNegativeLength
	}
	if n > d.Remaining() {
		return nil, ErrBufferTooShort
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// ReadRest returns every unread byte.
func (d *Decoder) ReadRest() []byte {
	b := d.buf[d.pos:]
	d.pos = len(d.buf)
	return b
}

// ReadVarInt reads a varint.
func (d *Decoder) ReadVarInt() (int32, error) {
	v, n, err := DecodeVarInt(d.buf[d.pos:])
	if err != nil {
		return 0, err
	}
	d.pos += n
	return v, nil
}

// ReadVarLong reads a varlong.
func (d *Decoder) ReadVarLong() (int64, error) {
	v, n, err := DecodeVarLong(d.buf[d.pos:])
	if err != nil {
		return 0, err
	}
	d.pos += n
	return v, nil
}

// ReadBool reads a boolean. Only 0x00 and 0x01 are accepted.
func (d *Decoder) ReadBool() (bool, error) {
	b, err := d.ReadByte()
	if err != nil {
		return false, err
	}
	switch b {
	case 0x00:
		return false, nil
	case 0x01:
		return true, nil
	default:
		return false, fmt.Errorf("%w: 0x%02x", ErrInvalidBool, b)
	}
}

// ReadUint8 reads an unsigned byte.
func (d *Decoder) ReadUint8() (uint8, error) {
	return d.ReadByte()
}

// ReadInt8 reads a signed byte.
func (d *Decoder) ReadInt8() (int8, error) {
	b, err := d.ReadByte()
	return int8(b), err
}

// ReadUint16 reads a big-endian uint16.
func (d *Decoder) ReadUint16() (uint16, error) {
	b, err := d.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// ReadInt16 reads a big-endian int16.
func (d *Decoder) ReadInt16() (int16, error) {
	v, err := d.ReadUint16()
	return int16(v), err
}

// ReadInt32 reads a big-endian int32.
func (d *Decoder) ReadInt32() (int32, error) {
	b, err := d.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

// ReadInt64 reads a big-endian int64.
func (d *Decoder) ReadInt64() (int64, error) {
	b, err := d.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// ReadFloat32 reads a big-endian IEEE 754 float32.
func (d *Decoder) ReadFloat32() (float32, error) {
	b, err := d.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.BigEndian.Uint32(b)), nil
}

// ReadFloat64 reads a big-endian IEEE 754 float64.
func (d *Decoder) ReadFloat64() (float64, error) {
	b, err := d.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

// ReadCount reads a varint element count for a length-prefixed sequence.
// The count is rejected when negative, when it exceeds max (or the
// decoder's MaxSequence when max <= 0), or when it exceeds the bytes left,
// since every element occupies at least one byte.
func (d *Decoder) ReadCount(max int) (int, error) {
	if max <= 0 || max > d.limits.MaxSequence {
		max = d.limits.MaxSequence
	}
	n, err := d.ReadVarInt()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %d", ErrNegativeLength, n)
	}
	if int(n) > max {
		return 0, fmt.Errorf("%w: %d > %d", ErrSequenceTooLong, n, max)
	}
	if int(n) > d.Remaining() {
		return 0, fmt.Errorf("%w: count %d, %d bytes left", ErrBufferTooShort, n, d.Remaining())
	}
	return int(n), nil
}

// ReadLenBytes reads a varint-prefixed byte array and returns a copy.
func (d *Decoder) ReadLenBytes() ([]byte, error) {
	n, err := d.ReadVarInt()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeLength, n)
	}
	if int(n) > d.limits.MaxBytes {
		return nil, fmt.Errorf("%w: %d > %d", ErrBytesTooLong, n, d.limits.MaxBytes)
	}
	raw, err := d.ReadBytes(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

// ReadString reads a varint-prefixed UTF-8 string holding at most max
// UTF-16 code units. A max <= 0 uses the decoder's MaxString.
func (d *Decoder) ReadString(max int) (string, error) {
	if max <= 0 || max > d.limits.MaxString {
		max = d.limits.MaxString
	}
	n, err := d.ReadVarInt()
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", fmt.Errorf("%w: %d", ErrNegativeLength, n)
	}
	// A UTF-16 code unit never needs more than three UTF-8 bytes.
	if int64(n) > int64(max)*3 {
		return "", fmt.Errorf("%w: %d bytes", ErrStringTooLong, n)
	}
	raw, err := d.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", ErrInvalidUTF8
	}
	s := string(raw)
	if units := utf16Len(s); units > max {
		return "", fmt.Errorf("%w: %d > %d", ErrStringTooLong, units, max)
	}
	return s, nil
}

// ReadUUID reads a 128-bit UUID as two big-endian int64 halves.
func (d *Decoder) ReadUUID() (uuid.UUID, error) {
	b, err := d.ReadBytes(16)
	if err != nil {
		return uuid.Nil, err
	}
	var id uuid.UUID
	copy(id[:], b)
	return id, nil
}

// ReadPosition reads a packed block position.
func (d *Decoder) ReadPosition() (Position, error) {
	v, err := d.ReadInt64()
	if err != nil {
		return Position{}, err
	}
	return UnpackPosition(v), nil
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if r > 0xFFFF {
			n += 2
		} else {
			n++
		}
	}
	return n
}
