// Package codec implements the primitive binary encodings of the game
// protocol: variable-length integers, big-endian fixed-width numbers,
// length-prefixed strings and sequences, optionals and packed block
// positions.
//
// Decoding is total over the supplied slice. A Decoder never reads past its
// buffer and every failure is one of the sentinel errors in errors.go.
package codec

import "io"

const (
	// MaxVarIntLen is the longest legal encoding of a 32-bit varint.
	MaxVarIntLen = 5
	// MaxVarLongLen is the longest legal encoding of a 64-bit varlong.
	MaxVarLongLen = 10
)

// VarIntSize returns the number of bytes AppendVarInt writes for v.
// Negative values always take five bytes.
func VarIntSize(v int32) int {
	u := uint32(v)
	n := 1
	for u >= 0x80 {
		u >>= 7
		n++
	}
	return n
}

// AppendVarInt appends the minimal encoding of v to dst.
func AppendVarInt(dst []byte, v int32) []byte {
	u := uint32(v)
	for u >= 0x80 {
		dst = append(dst, byte(u)|0x80)
		u >>= 7
	}
	return append(dst, byte(u))
}

// DecodeVarInt decodes a varint from the front of buf and reports how many
// bytes it used. It fails with ErrMalformedVarInt when no terminating byte
// is found within MaxVarIntLen bytes or before buf runs out.
func DecodeVarInt(buf []byte) (int32, int, error) {
	var v uint32
	for i := 0; i < MaxVarIntLen; i++ {
		if i >= len(buf) {
			return 0, 0, ErrMalformedVarInt
		}
		b := buf[i]
		v |= uint32(b&0x7F) << (7 * uint(i))
		if b&0x80 == 0 {
			return int32(v), i + 1, nil
		}
	}
	return 0, 0, ErrMalformedVarInt
}

// ReadVarInt reads a varint from a byte stream. Errors from r are returned
// unchanged so callers can tell a closed socket (io.EOF) from bad input.
func ReadVarInt(r io.ByteReader) (int32, error) {
	var v uint32
	for i := 0; i < MaxVarIntLen; i++ {
		b, err := r.ReadByte()
		if err != nil {
			if i > 0 && err == io.EOF {
				return 0, io.ErrUnexpectedEOF
			}
			return 0, err
		}
		v |= uint32(b&0x7F) << (7 * uint(i))
		if b&0x80 == 0 {
			return int32(v), nil
		}
	}
	return 0, ErrMalformedVarInt
}

// VarLongSize returns the number of bytes AppendVarLong writes for v.
func VarLongSize(v int64) int {
	u := uint64(v)
	n := 1
	for u >= 0x80 {
		u >>= 7
		n++
	}
	return n
}

// AppendVarLong appends the minimal encoding of v to dst.
func AppendVarLong(dst []byte, v int64) []byte {
	u := uint64(v)
	for u >= 0x80 {
		dst = append(dst, byte(u)|0x80)
		u >>= 7
	}
	return append(dst, byte(u))
}

// DecodeVarLong is the 64-bit counterpart of DecodeVarInt.
func DecodeVarLong(buf []byte) (int64, int, error) {
	var v uint64
	for i := 0; i < MaxVarLongLen; i++ {
		if i >= len(buf) {
			return 0, 0, ErrMalformedVarLong
		}
		b := buf[i]
		v |= uint64(b&0x7F) << (7 * uint(i))
		if b&0x80 == 0 {
			return int64(v), i + 1, nil
		}
	}
	return 0, 0, ErrMalformedVarLong
}
