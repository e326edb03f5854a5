package codec

import (
	"bytes"
	"errors"
	"io"
	"math"
	"testing"
)

// TestVarIntRoundTrip verifies boundary values survive encode/decode with
// the expected canonical length
func TestVarIntRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value int32
		size  int
	}{
		{"zero", 0, 1},
		{"one", 1, 1},
		{"max_1byte", 127, 1},
		{"min_2byte", 128, 2},
		{"max_2byte", 16383, 2},
		{"min_3byte", 16384, 3},
		{"max_int32", math.MaxInt32, 5},
		{"neg_one", -1, 5},
		{"min_int32", math.MinInt32, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := AppendVarInt(nil, tt.value)
			if len(buf) != tt.size {
				t.Errorf("AppendVarInt(%d) = %d bytes, want %d", tt.value, len(buf), tt.size)
			}
			if VarIntSize(tt.value) != tt.size {
				t.Errorf("VarIntSize(%d) = %d, want %d", tt.value, VarIntSize(tt.value), tt.size)
			}

			got, n, err := DecodeVarInt(buf)
			if err != nil {
				t.Fatalf("DecodeVarInt: %v", err)
			}
			if n != tt.size {
				t.Errorf("DecodeVarInt consumed %d bytes, want %d", n, tt.size)
			}
			if got != tt.value {
				t.Errorf("DecodeVarInt = %d, want %d", got, tt.value)
			}
		})
	}
}

// TestVarIntKnownEncodings checks encodings against the published examples
func TestVarIntKnownEncodings(t *testing.T) {
	tests := []struct {
		value int32
		want  []byte
	}{
		{0, []byte{0x00}},
		{2, []byte{0x02}},
		{128, []byte{0x80, 0x01}},
		{255, []byte{0xff, 0x01}},
		{25565, []byte{0xdd, 0xc7, 0x01}},
		{2097151, []byte{0xff, 0xff, 0x7f}},
		{math.MaxInt32, []byte{0xff, 0xff, 0xff, 0xff, 0x07}},
		{-1, []byte{0xff, 0xff, 0xff, 0xff, 0x0f}},
	}

	for _, tt := range tests {
		if got := AppendVarInt(nil, tt.value); !bytes.Equal(got, tt.want) {
			t.Errorf("AppendVarInt(%d) = % x, want % x", tt.value, got, tt.want)
		}
	}
}

// TestDecodeVarIntMalformed verifies unterminated and overlong input fails
func TestDecodeVarIntMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated", []byte{0x80}},
		{"truncated_4", []byte{0xff, 0xff, 0xff, 0xff}},
		{"five_continuations", []byte{0x80, 0x80, 0x80, 0x80, 0x80}},
		{"six_bytes", []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeVarInt(tt.data)
			if !errors.Is(err, ErrMalformedVarInt) {
				t.Errorf("DecodeVarInt(% x) err = %v, want ErrMalformedVarInt", tt.data, err)
			}
		})
	}
}

// TestReadVarIntStream verifies stream reads distinguish EOF from bad input
func TestReadVarIntStream(t *testing.T) {
	v, err := ReadVarInt(bytes.NewReader([]byte{0xdd, 0xc7, 0x01, 0x42}))
	if err != nil || v != 25565 {
		t.Fatalf("ReadVarInt = %d, %v; want 25565", v, err)
	}

	if _, err := ReadVarInt(bytes.NewReader(nil)); err != io.EOF {
		t.Errorf("empty stream err = %v, want io.EOF", err)
	}
	if _, err := ReadVarInt(bytes.NewReader([]byte{0x80})); err != io.ErrUnexpectedEOF {
		t.Errorf("truncated stream err = %v, want io.ErrUnexpectedEOF", err)
	}
	if _, err := ReadVarInt(bytes.NewReader([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80})); !errors.Is(err, ErrMalformedVarInt) {
		t.Errorf("overlong stream err = %v, want ErrMalformedVarInt", err)
	}
}

// TestVarLongRoundTrip verifies 64-bit boundaries
func TestVarLongRoundTrip(t *testing.T) {
	values := []int64{0, 127, 128, math.MaxInt32, math.MaxInt64, -1, math.MinInt64}
	for _, v := range values {
		buf := AppendVarLong(nil, v)
		if len(buf) != VarLongSize(v) {
			t.Errorf("VarLongSize(%d) = %d, encoded %d", v, VarLongSize(v), len(buf))
		}
		got, n, err := DecodeVarLong(buf)
		if err != nil || got != v || n != len(buf) {
			t.Errorf("DecodeVarLong(%d) = %d, %d, %v", v, got, n, err)
		}
	}

	overlong := bytes.Repeat([]byte{0x80}, MaxVarLongLen)
	if _, _, err := DecodeVarLong(overlong); !errors.Is(err, ErrMalformedVarLong) {
		t.Errorf("overlong varlong err = %v", err)
	}
}
