package codec

import (
	"encoding/binary"
	"math"

	"github.com/google/uuid"
)

// Encoder appends protocol values to a growing buffer. Writes cannot fail;
// limits are a decoding concern.
type Encoder struct {
	buf []byte
}

// NewEncoder creates an encoder with a small initial capacity.
func NewEncoder() *Encoder {
	return &Encoder{buf: make([]byte, 0, 64)}
}

// NewEncoderWithCap creates an encoder with the given initial capacity.
func NewEncoderWithCap(n int) *Encoder {
	return &Encoder{buf: make([]byte, 0, n)}
}

// Reset empties the encoder, keeping the underlying buffer.
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
}

// Bytes returns the encoded bytes. The slice is valid until the next write
// or Reset.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Len returns the number of bytes written.
func (e *Encoder) Len() int {
	return len(e.buf)
}

// WriteByte appends a single byte.
func (e *Encoder) WriteByte(b byte) {
	e.buf = append(e.buf, b)
}

// WriteBytes appends raw bytes without a length prefix.
func (e *Encoder) WriteBytes(b []byte) {
	e.buf = append(e.buf, b...)
}

func (e *Encoder) WriteVarInt(v int32) {
	e.buf = AppendVarInt(e.buf, v)
}

func (e *Encoder) WriteVarLong(v int64) {
	e.buf = AppendVarLong(e.buf, v)
}

func (e *Encoder) WriteBool(v bool) {
	if v {
		e.buf = append(e.buf, 0x01)
		return
	}
	e.buf = append(e.buf, 0x00)
}

func (e *Encoder) WriteUint8(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *Encoder) WriteInt8(v int8) {
	e.buf = append(e.buf, byte(v))
}

func (e *Encoder) WriteUint16(v uint16) {
	e.buf = binary.BigEndian.AppendUint16(e.buf, v)
}

func (e *Encoder) WriteInt16(v int16) {
	e.WriteUint16(uint16(v))
}

func (e *Encoder) WriteInt32(v int32) {
	e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(v))
}

func (e *Encoder) WriteInt64(v int64) {
	e.buf = binary.BigEndian.AppendUint64(e.buf, uint64(v))
}

func (e *Encoder) WriteFloat32(v float32) {
	e.buf = binary.BigEndian.AppendUint32(e.buf, math.Float32bits(v))
}

func (e *Encoder) WriteFloat64(v float64) {
	e.buf = binary.BigEndian.AppendUint64(e.buf, math.Float64bits(v))
}

// WriteString appends a varint byte length followed by the UTF-8 bytes.
func (e *Encoder) WriteString(s string) {
	e.WriteVarInt(int32(len(s)))
	e.buf = append(e.buf, s...)
}

// WriteLenBytes appends a varint length followed by b.
func (e *Encoder) WriteLenBytes(b []byte) {
	e.WriteVarInt(int32(len(b)))
	e.buf = append(e.buf, b...)
}

func (e *Encoder) WriteUUID(id uuid.UUID) {
	e.buf = append(e.buf, id[:]...)
}

func (e *Encoder) WritePosition(p Position) {
	e.WriteInt64(p.Pack())
}

// AngleByte converts degrees to the protocol's 1/256-turn rotation byte.
func AngleByte(deg float32) byte {
	turns := math.Mod(float64(deg), 360)
	if turns < 0 {
		turns += 360
	}
	return byte(int(turns*256/360) & 0xFF)
}

// AngleDegrees converts a rotation byte back to degrees.
func AngleDegrees(b byte) float32 {
	return float32(b) * 360 / 256
}
