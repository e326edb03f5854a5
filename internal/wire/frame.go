// Package wire moves frames between a byte stream and the packet layer.
//
// Inbound bytes are decrypted, split into length-prefixed frames and
// decompressed. Outbound bodies go the other way. Cipher and compression
// may be switched on between frames and stay on for the rest of the stream.
package wire

import (
	"bufio"
	"bytes"
	"crypto/cipher"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"ionic/internal/codec"
	"ionic/internal/protocol"
)

const (
	// MaxFrameLen is the largest length a 3-byte varint prefix can carry.
	MaxFrameLen = 1<<21 - 1
	// MaxDataLen caps the declared uncompressed size of a frame.
	MaxDataLen = 8 << 20
	// CompressionOff disables compression when used as a threshold.
	CompressionOff = -1
)

var (
	ErrFrameLength    = errors.New("wire: invalid frame length")
	ErrEmptyFrame     = errors.New("wire: frame has no packet id")
	ErrDataLength     = errors.New("wire: invalid uncompressed length")
	ErrBelowThreshold = errors.New("wire: compressed frame below threshold")
	ErrAboveThreshold = errors.New("wire: uncompressed frame at or above threshold")
)

// Frame is one packet id with its undecoded payload.
type Frame struct {
	ID      int32
	Payload []byte
}

// ParseBody splits an [id][payload] body.
func ParseBody(body []byte) (Frame, error) {
	id, n, err := codec.DecodeVarInt(body)
	if err != nil {
		return Frame{}, protocol.NewError(protocol.KindMalformedFrame, fmt.Errorf("packet id: %w", err))
	}
	return Frame{ID: id, Payload: body[n:]}, nil
}

// Reader reads frames from a stream. It is used by one goroutine.
type Reader struct {
	src       *bufio.Reader
	stream    cipher.Stream
	threshold int
	inflater  io.ReadCloser
}

// NewReader creates a reader with compression and encryption off.
func NewReader(r io.Reader) *Reader {
	return &Reader{src: bufio.NewReaderSize(r, 4096), threshold: CompressionOff}
}

// SetCipher decrypts every byte read after the call.
func (r *Reader) SetCipher(s cipher.Stream) {
	r.stream = s
}

// SetCompression enables compressed framing for later frames. A negative
// threshold turns it off.
func (r *Reader) SetCompression(threshold int) {
	r.threshold = threshold
}

// Compression returns the current threshold.
func (r *Reader) Compression() int {
	return r.threshold
}

// ReadByte reads and decrypts one byte.
func (r *Reader) ReadByte() (byte, error) {
	b, err := r.src.ReadByte()
	if err != nil {
		return 0, err
	}
	if r.stream != nil {
		one := [1]byte{b}
		r.stream.XORKeyStream(one[:], one[:])
		b = one[0]
	}
	return b, nil
}

func (r *Reader) readFull(buf []byte) error {
	if _, err := io.ReadFull(r.src, buf); err != nil {
		if errors.Is(err, io.EOF) {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	if r.stream != nil {
		r.stream.XORKeyStream(buf, buf)
	}
	return nil
}

// ReadFrame reads the next frame. io.EOF is returned only for a clean end
// of stream between frames.
func (r *Reader) ReadFrame() (Frame, error) {
	body, err := r.ReadBody()
	if err != nil {
		return Frame{}, err
	}
	return ParseBody(body)
}

// ReadBody reads the next frame and returns its uncompressed [id][payload].
func (r *Reader) ReadBody() ([]byte, error) {
	length, err := codec.ReadVarInt(r)
	if err != nil {
		if errors.Is(err, codec.ErrMalformedVarInt) {
			return nil, protocol.NewError(protocol.KindMalformedFrame, fmt.Errorf("length: %w", err))
		}
		return nil, err
	}
	if length <= 0 || length > MaxFrameLen {
		return nil, protocol.NewError(protocol.KindMalformedFrame, fmt.Errorf("%w: %d", ErrFrameLength, length))
	}
	raw := make([]byte, length)
	if err := r.readFull(raw); err != nil {
		return nil, err
	}
	if r.threshold < 0 {
		return raw, nil
	}
	return r.inflate(raw)
}

func (r *Reader) inflate(raw []byte) ([]byte, error) {
	dataLen, n, err := codec.DecodeVarInt(raw)
	if err != nil {
		return nil, protocol.NewError(protocol.KindMalformedFrame, fmt.Errorf("data length: %w", err))
	}
	rest := raw[n:]
	if dataLen == 0 {
		if len(rest) == 0 {
			return nil, protocol.NewError(protocol.KindMalformedFrame, ErrEmptyFrame)
		}
		if len(rest) >= r.threshold {
			return nil, protocol.NewError(protocol.KindCompression,
				fmt.Errorf("%w: %d >= %d", ErrAboveThreshold, len(rest), r.threshold))
		}
		return rest, nil
	}
	if dataLen < 0 || dataLen > MaxDataLen {
		return nil, protocol.NewError(protocol.KindCompression, fmt.Errorf("%w: %d", ErrDataLength, dataLen))
	}
	if int(dataLen) < r.threshold {
		return nil, protocol.NewError(protocol.KindCompression,
			fmt.Errorf("%w: %d < %d", ErrBelowThreshold, dataLen, r.threshold))
	}

	if r.inflater == nil {
		r.inflater, err = zlib.NewReader(bytes.NewReader(rest))
	} else {
		err = r.inflater.(zlib.Resetter).Reset(bytes.NewReader(rest), nil)
	}
	if err != nil {
		r.inflater = nil
		return nil, protocol.NewError(protocol.KindCompression, err)
	}
	out := make([]byte, dataLen)
	if _, err := io.ReadFull(r.inflater, out); err != nil {
		return nil, protocol.NewError(protocol.KindCompression, fmt.Errorf("inflate: %w", err))
	}
	// The stream must end exactly at the declared length.
	var extra [1]byte
	n, err = r.inflater.Read(extra[:])
	if n != 0 {
		return nil, protocol.NewError(protocol.KindCompression,
			fmt.Errorf("%w: more than %d bytes", ErrDataLength, dataLen))
	}
	if err != nil && err != io.EOF {
		return nil, protocol.NewError(protocol.KindCompression, err)
	}
	return out, nil
}

// Writer writes frames to a stream. It is used by one goroutine.
type Writer struct {
	dst       io.Writer
	stream    cipher.Stream
	threshold int
	deflater  *zlib.Writer
	zbuf      bytes.Buffer
	out       []byte
}

// NewWriter creates a writer with compression and encryption off.
func NewWriter(w io.Writer) *Writer {
	return &Writer{dst: w, threshold: CompressionOff}
}

// SetCipher encrypts every byte written after the call.
func (w *Writer) SetCipher(s cipher.Stream) {
	w.stream = s
}

// SetCompression enables compressed framing for later frames.
func (w *Writer) SetCompression(threshold int) {
	w.threshold = threshold
}

// WriteFrame encodes and writes one frame.
func (w *Writer) WriteFrame(f Frame) error {
	body := codec.AppendVarInt(make([]byte, 0, codec.MaxVarIntLen+len(f.Payload)), f.ID)
	return w.WriteBody(append(body, f.Payload...))
}

// WriteBody writes an [id][payload] body. body is not modified, so one
// encoded packet may be written to many connections.
func (w *Writer) WriteBody(body []byte) error {
	out, err := w.AppendBody(w.out[:0], body)
	if err != nil {
		return err
	}
	w.out = out[:0]
	_, err = w.dst.Write(out)
	return err
}

// AppendBody appends the framed, compressed and encrypted form of body to
// dst. The cipher state advances, so the result must be written.
func (w *Writer) AppendBody(dst, body []byte) ([]byte, error) {
	if len(body) == 0 {
		return dst, protocol.NewError(protocol.KindMalformedFrame, ErrEmptyFrame)
	}
	start := len(dst)
	switch {
	case w.threshold < 0:
		if len(body) > MaxFrameLen {
			return dst, protocol.NewError(protocol.KindMalformedFrame, fmt.Errorf("%w: %d", ErrFrameLength, len(body)))
		}
		dst = codec.AppendVarInt(dst, int32(len(body)))
		dst = append(dst, body...)
	case len(body) < w.threshold:
		dst = codec.AppendVarInt(dst, int32(len(body)+1))
		dst = append(dst, 0)
		dst = append(dst, body...)
	default:
		compressed, err := w.deflate(body)
		if err != nil {
			return dst, protocol.NewError(protocol.KindCompression, err)
		}
		dataLen := int32(len(body))
		inner := codec.VarIntSize(dataLen) + len(compressed)
		if inner > MaxFrameLen {
			return dst, protocol.NewError(protocol.KindMalformedFrame, fmt.Errorf("%w: %d", ErrFrameLength, inner))
		}
		dst = codec.AppendVarInt(dst, int32(inner))
		dst = codec.AppendVarInt(dst, dataLen)
		dst = append(dst, compressed...)
	}
	if w.stream != nil {
		w.stream.XORKeyStream(dst[start:], dst[start:])
	}
	return dst, nil
}

func (w *Writer) deflate(body []byte) ([]byte, error) {
	w.zbuf.Reset()
	if w.deflater == nil {
		w.deflater = zlib.NewWriter(&w.zbuf)
	} else {
		w.deflater.Reset(&w.zbuf)
	}
	if _, err := w.deflater.Write(body); err != nil {
		return nil, err
	}
	if err := w.deflater.Close(); err != nil {
		return nil, err
	}
	return w.zbuf.Bytes(), nil
}

// WriteBodies frames every body and writes them with a single write.
func (w *Writer) WriteBodies(bodies [][]byte) error {
	out := w.out[:0]
	var err error
	for _, b := range bodies {
		if out, err = w.AppendBody(out, b); err != nil {
			return err
		}
	}
	w.out = out[:0]
	if len(out) == 0 {
		return nil
	}
	_, err = w.dst.Write(out)
	return err
}
