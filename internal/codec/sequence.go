package codec

import "fmt"

// DecodeSequence reads a varint count followed by that many elements.
// The count is validated by ReadCount before the first element is decoded.
// A max <= 0 falls back to the decoder's MaxSequence.
func DecodeSequence[T any](d *Decoder, max int, elem func(*Decoder) (T, error)) ([]T, error) {
	n, err := d.ReadCount(max)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, n)
	for i := 0; i < n; i++ {
		v, err := elem(d)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// EncodeSequence writes a varint count followed by each element in order.
func EncodeSequence[T any](e *Encoder, items []T, elem func(*Encoder, T)) {
	e.WriteVarInt(int32(len(items)))
	for _, v := range items {
		elem(e, v)
	}
}

// DecodeOptional reads a boolean presence flag and, when set, one element.
func DecodeOptional[T any](d *Decoder, elem func(*Decoder) (T, error)) (*T, error) {
	present, err := d.ReadBool()
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	v, err := elem(d)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// EncodeOptional writes the presence flag for v and, if non-nil, its value.
func EncodeOptional[T any](e *Encoder, v *T, elem func(*Encoder, T)) {
	if v == nil {
		e.WriteBool(false)
		return
	}
	e.WriteBool(true)
	elem(e, *v)
}

// VarIntElem and WriteVarIntElem adapt varints to the sequence helpers.
func VarIntElem(d *Decoder) (int32, error) { return d.ReadVarInt() }

func WriteVarIntElem(e *Encoder, v int32) { e.WriteVarInt(v) }

// ByteElem and WriteByteElem adapt single bytes to the sequence helpers.
func ByteElem(d *Decoder) (byte, error) { return d.ReadByte() }

func WriteByteElem(e *Encoder, v byte) { e.WriteByte(v) }
