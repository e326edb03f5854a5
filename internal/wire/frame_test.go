package wire

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"ionic/internal/codec"
	"ionic/internal/protocol"
)

func body(id int32, n int) []byte {
	b := codec.AppendVarInt(nil, id)
	for i := 0; i < n; i++ {
		b = append(b, byte(i%7))
	}
	return b
}

// TestFrameRoundTrip verifies plain framing
func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	frames := []Frame{
		{ID: 0x00, Payload: nil},
		{ID: 0x36, Payload: []byte{0x01}},
		{ID: 0x6C, Payload: bytes.Repeat([]byte{'x'}, 300)},
	}
	for _, f := range frames {
		if err := w.WriteFrame(f); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}

	r := NewReader(&buf)
	for i, want := range frames {
		got, err := r.ReadFrame()
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if got.ID != want.ID || !bytes.Equal(got.Payload, want.Payload) {
			t.Errorf("frame %d = %+v, want %+v", i, got, want)
		}
	}
	if _, err := r.ReadFrame(); err != io.EOF {
		t.Errorf("end of stream err = %v, want io.EOF", err)
	}
}

// TestCompressionThreshold verifies bodies at or above the threshold are
// compressed and smaller ones are sent raw with data length 0
func TestCompressionThreshold(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		compressed bool
	}{
		{"300 bytes", 300, true},
		{"100 bytes", 100, false},
		{"at threshold", 256, true},
		{"below threshold", 255, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := bytes.Repeat([]byte{0xAB}, tt.size)
			var buf bytes.Buffer
			w := NewWriter(&buf)
			w.SetCompression(256)
			if err := w.WriteBody(b); err != nil {
				t.Fatalf("WriteBody: %v", err)
			}

			raw := buf.Bytes()
			_, n, err := codec.DecodeVarInt(raw)
			if err != nil {
				t.Fatal(err)
			}
			dataLen, _, err := codec.DecodeVarInt(raw[n:])
			if err != nil {
				t.Fatal(err)
			}
			if tt.compressed && int(dataLen) != tt.size {
				t.Errorf("data length = %d, want %d", dataLen, tt.size)
			}
			if !tt.compressed && dataLen != 0 {
				t.Errorf("data length = %d, want 0", dataLen)
			}

			r := NewReader(&buf)
			r.SetCompression(256)
			got, err := r.ReadBody()
			if err != nil {
				t.Fatalf("ReadBody: %v", err)
			}
			if !bytes.Equal(got, b) {
				t.Errorf("body mismatch: %d bytes, want %d", len(got), len(b))
			}
		})
	}
}

// TestCompressionRejectsBadFrames verifies corrupt compressed frames are
// classified as compression errors
func TestCompressionRejectsBadFrames(t *testing.T) {
	frame := func(dataLen int32, rest []byte) []byte {
		inner := codec.AppendVarInt(nil, dataLen)
		inner = append(inner, rest...)
		return append(codec.AppendVarInt(nil, int32(len(inner))), inner...)
	}

	tests := []struct {
		name string
		raw  []byte
		kind protocol.Kind
	}{
		{"garbage", frame(300, []byte{1, 2, 3, 4}), protocol.KindCompression},
		{"below threshold", frame(10, []byte{0x78, 0x9c}), protocol.KindCompression},
		{"oversized", frame(MaxDataLen+1, []byte{0x78, 0x9c}), protocol.KindCompression},
		{"empty raw", frame(0, nil), protocol.KindMalformedFrame},
		{"raw at threshold", frame(0, bytes.Repeat([]byte{1}, 256)), protocol.KindCompression},
		{"raw above threshold", frame(0, bytes.Repeat([]byte{1}, 300)), protocol.KindCompression},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(bytes.NewReader(tt.raw))
			r.SetCompression(256)
			_, err := r.ReadBody()
			if k, _ := protocol.KindOf(err); k != tt.kind {
				t.Errorf("kind = %v, want %v (err %v)", k, tt.kind, err)
			}
		})
	}
}

// TestCompressionLengthMismatch verifies the declared size must match
func TestCompressionLengthMismatch(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.SetCompression(256)
	if err := w.WriteBody(body(1, 400)); err != nil {
		t.Fatal(err)
	}
	raw := buf.Bytes()
	_, n, _ := codec.DecodeVarInt(raw)
	dataLen, m, _ := codec.DecodeVarInt(raw[n:])
	compressed := raw[n+m:]

	// Claim one byte more than the stream holds.
	inner := codec.AppendVarInt(nil, dataLen+1)
	inner = append(inner, compressed...)
	bad := append(codec.AppendVarInt(nil, int32(len(inner))), inner...)

	r := NewReader(bytes.NewReader(bad))
	r.SetCompression(256)
	_, err := r.ReadBody()
	if k, _ := protocol.KindOf(err); k != protocol.KindCompression {
		t.Errorf("err = %v, want compression error", err)
	}
}

// TestMalformedLength verifies bad length prefixes
func TestMalformedLength(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"zero", []byte{0x00}},
		{"unterminated", []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x01}},
		{"too long", codec.AppendVarInt(nil, MaxFrameLen+1)},
		{"negative", codec.AppendVarInt(nil, -1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader(bytes.NewReader(tt.raw)).ReadFrame()
			if k, _ := protocol.KindOf(err); k != protocol.KindMalformedFrame {
				t.Errorf("err = %v, want malformed frame", err)
			}
		})
	}
}

// TestTruncatedFrame verifies a short body is an unexpected EOF
func TestTruncatedFrame(t *testing.T) {
	raw := []byte{0x05, 0x01, 0x02}
	_, err := NewReader(bytes.NewReader(raw)).ReadFrame()
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("err = %v, want io.ErrUnexpectedEOF", err)
	}
}

// TestCipherSwitchBetweenFrames verifies a cipher enabled after the first
// frame applies to exactly the frames that follow it
func TestCipherSwitchBetweenFrames(t *testing.T) {
	secret := []byte("0123456789abcdef")
	var buf bytes.Buffer
	w := NewWriter(&buf)

	if err := w.WriteBody(body(1, 10)); err != nil {
		t.Fatal(err)
	}
	enc, _, err := NewCipherPair(secret)
	if err != nil {
		t.Fatal(err)
	}
	w.SetCipher(enc)
	w.SetCompression(64)
	for _, n := range []int{10, 200} {
		if err := w.WriteBody(body(2, n)); err != nil {
			t.Fatal(err)
		}
	}

	r := NewReader(&buf)
	first, err := r.ReadBody()
	if err != nil || !bytes.Equal(first, body(1, 10)) {
		t.Fatalf("plain frame = %v, %v", first, err)
	}
	_, dec, _ := NewCipherPair(secret)
	r.SetCipher(dec)
	r.SetCompression(64)
	for _, n := range []int{10, 200} {
		got, err := r.ReadBody()
		if err != nil {
			t.Fatalf("encrypted frame %d: %v", n, err)
		}
		if !bytes.Equal(got, body(2, n)) {
			t.Errorf("encrypted frame %d mismatch", n)
		}
	}
}

// TestWriteBodyDoesNotModifyInput verifies shared broadcast bodies survive
// encryption and compression
func TestWriteBodyDoesNotModifyInput(t *testing.T) {
	shared := body(0x6C, 500)
	orig := append([]byte(nil), shared...)

	for i := 0; i < 3; i++ {
		w := NewWriter(io.Discard)
		enc, _, _ := NewCipherPair(bytes.Repeat([]byte{byte(i)}, 16))
		w.SetCipher(enc)
		w.SetCompression(256)
		if err := w.WriteBody(shared); err != nil {
			t.Fatal(err)
		}
	}
	if !bytes.Equal(shared, orig) {
		t.Error("WriteBody modified its input")
	}
}
