package text

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"ionic/internal/codec"
)

// TestComponentRoundTrip verifies network NBT encode/decode
func TestComponentRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		c    Component
	}{
		{"plain", Plain("hello")},
		{"empty", Plain("")},
		{"styled", Component{Text: "warn", Color: "red", Bold: true, Italic: true}},
		{"nested", Plain("<Server> ").Append(Colored("hi", "gold"), Plain(" there").Append(Plain("!")))},
		{"unicode", Plain("héllo \x00 \U0001F600")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := codec.NewEncoder()
			tt.c.Encode(e)

			d := codec.NewDecoder(e.Bytes())
			got, err := Decode(d)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !got.Equal(tt.c) {
				t.Errorf("round trip = %+v, want %+v", got, tt.c)
			}
			if !d.Done() {
				t.Errorf("%d bytes left", d.Remaining())
			}
		})
	}
}

// TestEncodeLayout checks the exact bytes of a one-field compound
func TestEncodeLayout(t *testing.T) {
	e := codec.NewEncoder()
	Plain("hi").Encode(e)

	want := []byte{
		0x0A,                                 // compound, no name
		0x08, 0x00, 0x04, 't', 'e', 'x', 't', // string "text"
		0x00, 0x02, 'h', 'i',
		0x00, // end
	}
	if !bytes.Equal(e.Bytes(), want) {
		t.Errorf("Encode = % x, want % x", e.Bytes(), want)
	}
}

// TestDecodeRootString verifies the plain string shorthand
func TestDecodeRootString(t *testing.T) {
	data := []byte{0x08, 0x00, 0x02, 'o', 'k'}
	c, err := Decode(codec.NewDecoder(data))
	if err != nil || c.Text != "ok" {
		t.Fatalf("Decode = %+v, %v", c, err)
	}
}

// TestDecodeSkipsUnknownFields verifies foreign keys are skipped
func TestDecodeSkipsUnknownFields(t *testing.T) {
	e := codec.NewEncoder()
	e.WriteByte(tagCompound)
	writeNamed(e, tagInt, "font_size")
	e.WriteInt32(12)
	writeNamed(e, tagList, "with")
	e.WriteByte(tagString)
	e.WriteInt32(1)
	writeModifiedUTF8(e, "arg")
	writeNamed(e, tagString, "text")
	writeModifiedUTF8(e, "body")
	e.WriteByte(tagEnd)

	c, err := Decode(codec.NewDecoder(e.Bytes()))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if c.Text != "body" {
		t.Errorf("Text = %q, want body", c.Text)
	}
}

// TestDecodeRejectsBadInput verifies truncated and invalid payloads fail
func TestDecodeRejectsBadInput(t *testing.T) {
	if _, err := Decode(codec.NewDecoder([]byte{0x03})); !errors.Is(err, ErrInvalidTag) {
		t.Errorf("int root err = %v", err)
	}
	if _, err := Decode(codec.NewDecoder([]byte{0x0A, 0x08, 0x00})); err == nil {
		t.Error("truncated compound decoded")
	}
}

// TestJSONAndString verifies the JSON form and plain flattening
func TestJSONAndString(t *testing.T) {
	c := Colored("a", "red").Append(Plain("b"))
	if c.String() != "ab" {
		t.Errorf("String = %q", c.String())
	}

	var back Component
	if err := json.Unmarshal([]byte(c.JSON()), &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(c) {
		t.Errorf("json round trip = %+v", back)
	}
}

// TestUnmarshalBareString verifies descriptions sent as plain strings
func TestUnmarshalBareString(t *testing.T) {
	var c Component
	if err := json.Unmarshal([]byte(`"A Minecraft Server"`), &c); err != nil {
		t.Fatal(err)
	}
	if c.Text != "A Minecraft Server" || len(c.Extra) != 0 {
		t.Errorf("component = %+v", c)
	}
}
