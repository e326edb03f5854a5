// Package text models chat components. Play packets carry them as
// nameless network NBT compounds; login disconnects and the status response
// carry them as JSON.
package text

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf16"

	"ionic/internal/codec"
)

// MaxDepth bounds nesting of Extra when decoding.
const MaxDepth = 16

// NBT tag types used by components.
const (
	tagEnd      = 0x00
	tagByte     = 0x01
	tagShort    = 0x02
	tagInt      = 0x03
	tagLong     = 0x04
	tagFloat    = 0x05
	tagDouble   = 0x06
	tagByteArr  = 0x07
	tagString   = 0x08
	tagList     = 0x09
	tagCompound = 0x0A
	tagIntArr   = 0x0B
	tagLongArr  = 0x0C
)

var (
	ErrInvalidTag    = errors.New("text: invalid nbt tag")
	ErrTooDeep       = errors.New("text: component nesting too deep")
	ErrInvalidString = errors.New("text: invalid modified utf-8")
)

// Component is a chat component restricted to the fields the server uses.
type Component struct {
	Text   string      `json:"text"`
	Color  string      `json:"color,omitempty"`
	Bold   bool        `json:"bold,omitempty"`
	Italic bool        `json:"italic,omitempty"`
	Extra  []Component `json:"extra,omitempty"`
}

// Plain returns an unstyled component.
func Plain(s string) Component {
	return Component{Text: s}
}

// Colored returns a component with a named or #rrggbb color.
func Colored(s, color string) Component {
	return Component{Text: s, Color: color}
}

// Append returns c with children added to Extra.
func (c Component) Append(children ...Component) Component {
	c.Extra = append(append([]Component(nil), c.Extra...), children...)
	return c
}

// String flattens the component to its plain text.
func (c Component) String() string {
	if len(c.Extra) == 0 {
		return c.Text
	}
	var b strings.Builder
	c.flatten(&b)
	return b.String()
}

func (c Component) flatten(b *strings.Builder) {
	b.WriteString(c.Text)
	for _, child := range c.Extra {
		child.flatten(b)
	}
}

// JSON returns the JSON text form.
func (c Component) JSON() string {
	out, err := json.Marshal(c)
	if err != nil {
		// Component has no unmarshalable fields.
		return `{"text":""}`
	}
	return string(out)
}

// UnmarshalJSON accepts the object form and the bare string form some
// servers use for descriptions.
func (c *Component) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Plain(s)
		return nil
	}
	type plain Component
	return json.Unmarshal(data, (*plain)(c))
}

// Equal reports deep equality.
func (c Component) Equal(o Component) bool {
	if c.Text != o.Text || c.Color != o.Color || c.Bold != o.Bold || c.Italic != o.Italic {
		return false
	}
	if len(c.Extra) != len(o.Extra) {
		return false
	}
	for i := range c.Extra {
		if !c.Extra[i].Equal(o.Extra[i]) {
			return false
		}
	}
	return true
}

// Encode writes c as a nameless network NBT compound.
func (c Component) Encode(e *codec.Encoder) {
	e.WriteByte(tagCompound)
	c.encodeBody(e)
}

func (c Component) encodeBody(e *codec.Encoder) {
	writeNamed(e, tagString, "text")
	writeModifiedUTF8(e, c.Text)
	if c.Color != "" {
		writeNamed(e, tagString, "color")
		writeModifiedUTF8(e, c.Color)
	}
	if c.Bold {
		writeNamed(e, tagByte, "bold")
		e.WriteByte(1)
	}
	if c.Italic {
		writeNamed(e, tagByte, "italic")
		e.WriteByte(1)
	}
	if len(c.Extra) > 0 {
		writeNamed(e, tagList, "extra")
		e.WriteByte(tagCompound)
		e.WriteInt32(int32(len(c.Extra)))
		for _, child := range c.Extra {
			child.encodeBody(e)
		}
	}
	e.WriteByte(tagEnd)
}

// Decode reads a nameless network NBT component. A root string tag is
// accepted as plain text.
func Decode(d *codec.Decoder) (Component, error) {
	tag, err := d.ReadByte()
	if err != nil {
		return Component{}, err
	}
	switch tag {
	case tagString:
		s, err := readModifiedUTF8(d)
		if err != nil {
			return Component{}, err
		}
		return Plain(s), nil
	case tagCompound:
		return decodeBody(d, 0)
	default:
		return Component{}, fmt.Errorf("%w: root tag %d", ErrInvalidTag, tag)
	}
}

func decodeBody(d *codec.Decoder, depth int) (Component, error) {
	if depth > MaxDepth {
		return Component{}, ErrTooDeep
	}
	var c Component
	for {
		tag, err := d.ReadByte()
		if err != nil {
			return Component{}, err
		}
		if tag == tagEnd {
			return c, nil
		}
		name, err := readModifiedUTF8(d)
		if err != nil {
			return Component{}, err
		}
		switch {
		case name == "text" && tag == tagString:
			c.Text, err = readModifiedUTF8(d)
		case name == "color" && tag == tagString:
			c.Color, err = readModifiedUTF8(d)
		case name == "bold" && tag == tagByte:
			c.Bold, err = readFlag(d)
		case name == "italic" && tag == tagByte:
			c.Italic, err = readFlag(d)
		case name == "extra" && tag == tagList:
			c.Extra, err = decodeExtra(d, depth)
		default:
			err = skipPayload(d, tag, depth)
		}
		if err != nil {
			return Component{}, fmt.Errorf("field %q: %w", name, err)
		}
	}
}

func decodeExtra(d *codec.Decoder, depth int) ([]Component, error) {
	elem, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	n, err := d.ReadInt32()
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	if elem != tagCompound && elem != tagString {
		return nil, fmt.Errorf("%w: extra element tag %d", ErrInvalidTag, elem)
	}
	if int(n) > d.Remaining() || int(n) > d.Limits().MaxSequence {
		return nil, fmt.Errorf("%w: extra count %d", codec.ErrSequenceTooLong, n)
	}
	out := make([]Component, 0, n)
	for i := int32(0); i < n; i++ {
		var child Component
		if elem == tagString {
			s, err := readModifiedUTF8(d)
			if err != nil {
				return nil, err
			}
			child = Plain(s)
		} else {
			child, err = decodeBody(d, depth+1)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, child)
	}
	return out, nil
}

func readFlag(d *codec.Decoder) (bool, error) {
	b, err := d.ReadByte()
	return b != 0, err
}

func skipPayload(d *codec.Decoder, tag byte, depth int) error {
	if depth > MaxDepth {
		return ErrTooDeep
	}
	var fixed int
	switch tag {
	case tagByte:
		fixed = 1
	case tagShort:
		fixed = 2
	case tagInt, tagFloat:
		fixed = 4
	case tagLong, tagDouble:
		fixed = 8
	case tagString:
		_, err := readModifiedUTF8(d)
		return err
	case tagByteArr, tagIntArr, tagLongArr:
		n, err := d.ReadInt32()
		if err != nil {
			return err
		}
		width := map[byte]int{tagByteArr: 1, tagIntArr: 4, tagLongArr: 8}[tag]
		if n < 0 {
			return codec.ErrNegativeLength
		}
		_, err = d.ReadBytes(int(n) * width)
		return err
	case tagList:
		elem, err := d.ReadByte()
		if err != nil {
			return err
		}
		n, err := d.ReadInt32()
		if err != nil {
			return err
		}
		if n > 0 && int(n) > d.Remaining() {
			return codec.ErrBufferTooShort
		}
		for i := int32(0); i < n; i++ {
			if err := skipPayload(d, elem, depth+1); err != nil {
				return err
			}
		}
		return nil
	case tagCompound:
		for {
			inner, err := d.ReadByte()
			if err != nil {
				return err
			}
			if inner == tagEnd {
				return nil
			}
			if _, err := readModifiedUTF8(d); err != nil {
				return err
			}
			if err := skipPayload(d, inner, depth+1); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: %d", ErrInvalidTag, tag)
	}
	_, err := d.ReadBytes(fixed)
	return err
}

func writeNamed(e *codec.Encoder, tag byte, name string) {
	e.WriteByte(tag)
	writeModifiedUTF8(e, name)
}

// NBT strings use Java's modified UTF-8: NUL takes two bytes and
// supplementary characters are written as surrogate pairs.
func writeModifiedUTF8(e *codec.Encoder, s string) {
	units := utf16.Encode([]rune(s))
	buf := make([]byte, 0, len(s))
	for _, u := range units {
		switch {
		case u != 0 && u < 0x80:
			buf = append(buf, byte(u))
		case u < 0x800:
			buf = append(buf, 0xC0|byte(u>>6), 0x80|byte(u&0x3F))
		default:
			buf = append(buf, 0xE0|byte(u>>12), 0x80|byte((u>>6)&0x3F), 0x80|byte(u&0x3F))
		}
	}
	e.WriteUint16(uint16(len(buf)))
	e.WriteBytes(buf)
}

func readModifiedUTF8(d *codec.Decoder) (string, error) {
	n, err := d.ReadUint16()
	if err != nil {
		return "", err
	}
	raw, err := d.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	units := make([]uint16, 0, len(raw))
	for i := 0; i < len(raw); {
		b := raw[i]
		switch {
		case b < 0x80:
			units = append(units, uint16(b))
			i++
		case b&0xE0 == 0xC0:
			if i+1 >= len(raw) || raw[i+1]&0xC0 != 0x80 {
				return "", ErrInvalidString
			}
			units = append(units, uint16(b&0x1F)<<6|uint16(raw[i+1]&0x3F))
			i += 2
		case b&0xF0 == 0xE0:
			if i+2 >= len(raw) || raw[i+1]&0xC0 != 0x80 || raw[i+2]&0xC0 != 0x80 {
				return "", ErrInvalidString
			}
			units = append(units, uint16(b&0x0F)<<12|uint16(raw[i+1]&0x3F)<<6|uint16(raw[i+2]&0x3F))
			i += 3
		default:
			return "", ErrInvalidString
		}
	}
	return string(utf16.Decode(units)), nil
}
