package protocol

import (
	"errors"

	"ionic/internal/codec"
)

// ErrSlotComponents is returned for slots carrying item component patches,
// which the server does not model.
var ErrSlotComponents = errors.New("protocol: item components are not supported")

// Slot is an inventory slot. Item semantics live with the inventory; the
// protocol only carries the count and item id.
type Slot struct {
	Count  int32
	ItemID int32
}

// Empty reports whether the slot holds nothing.
func (s Slot) Empty() bool {
	return s.Count <= 0
}

// EncodeSlot writes s with empty component patches.
func EncodeSlot(e *codec.Encoder, s Slot) {
	if s.Empty() {
		e.WriteVarInt(0)
		return
	}
	e.WriteVarInt(s.Count)
	e.WriteVarInt(s.ItemID)
	e.WriteVarInt(0) // components to add
	e.WriteVarInt(0) // components to remove
}

// DecodeSlot reads a slot. Non-empty component patches are rejected.
func DecodeSlot(d *codec.Decoder) (Slot, error) {
	count, err := d.ReadVarInt()
	if err != nil {
		return Slot{}, err
	}
	if count <= 0 {
		return Slot{}, nil
	}
	s := Slot{Count: count}
	if s.ItemID, err = d.ReadVarInt(); err != nil {
		return Slot{}, err
	}
	add, err := d.ReadVarInt()
	if err != nil {
		return Slot{}, err
	}
	remove, err := d.ReadVarInt()
	if err != nil {
		return Slot{}, err
	}
	if add != 0 || remove != 0 {
		return Slot{}, ErrSlotComponents
	}
	return s, nil
}
