// Package protocol defines the packet catalogue for protocol 767 and the
// registry that maps (state, direction, id) to typed packet contracts.
//
// Packets are plain structs with hand-written Encode and Decode methods
// composed from the codec primitives. The registry is built once at startup
// and is read-only afterwards.
package protocol

import "ionic/internal/codec"

// Packet is a typed protocol message.
type Packet interface {
	// Name is the registry name, unique per (state, direction).
	Name() string
	Encode(e *codec.Encoder)
	Decode(d *codec.Decoder) error
}

// Descriptor binds a packet type to its key.
type Descriptor struct {
	State     State
	Direction Direction
	ID        int32
	Name      string
	New       func() Packet
}

func desc(state State, dir Direction, id int32, newFn func() Packet) Descriptor {
	return Descriptor{State: state, Direction: dir, ID: id, Name: newFn().Name(), New: newFn}
}
