package protocol

import (
	"fmt"
	"sort"

	"ionic/internal/codec"
)

type packetKey struct {
	state State
	dir   Direction
	id    int32
}

type nameKey struct {
	state State
	dir   Direction
	name  string
}

// Registry maps packet keys to descriptors. Register is not safe for
// concurrent use; lookups are once registration has finished.
type Registry struct {
	byID   map[packetKey]Descriptor
	byName map[nameKey]Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[packetKey]Descriptor),
		byName: make(map[nameKey]Descriptor),
	}
}

// Register adds a descriptor. Duplicate (state, direction, id) keys and
// duplicate names within a (state, direction) are rejected.
func (r *Registry) Register(d Descriptor) error {
	if d.New == nil {
		return fmt.Errorf("protocol: %s %s 0x%02X has no constructor", d.State, d.Direction, d.ID)
	}
	if d.State == StateClosed {
		return fmt.Errorf("protocol: cannot register %s in closed state", d.Name)
	}
	k := packetKey{d.State, d.Direction, d.ID}
	if prev, ok := r.byID[k]; ok {
		return fmt.Errorf("%w: %s %s 0x%02X used by %s and %s",
			ErrDuplicatePacket, d.State, d.Direction, d.ID, prev.Name, d.Name)
	}
	nk := nameKey{d.State, d.Direction, d.Name}
	if prev, ok := r.byName[nk]; ok {
		return fmt.Errorf("%w: %s %s name %q used by 0x%02X and 0x%02X",
			ErrDuplicatePacket, d.State, d.Direction, d.Name, prev.ID, d.ID)
	}
	r.byID[k] = d
	r.byName[nk] = d
	return nil
}

// MustRegister registers every descriptor and panics on the first error.
// Use it only while building a registry at startup.
func (r *Registry) MustRegister(ds ...Descriptor) {
	for _, d := range ds {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
}

// Lookup finds the descriptor for a key.
func (r *Registry) Lookup(state State, dir Direction, id int32) (Descriptor, bool) {
	d, ok := r.byID[packetKey{state, dir, id}]
	return d, ok
}

// LookupName finds the descriptor for a packet name.
func (r *Registry) LookupName(state State, dir Direction, name string) (Descriptor, bool) {
	d, ok := r.byName[nameKey{state, dir, name}]
	return d, ok
}

// Descriptors returns every descriptor ordered by state, direction and id.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.byID))
	for _, d := range r.byID {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.State != b.State {
			return a.State < b.State
		}
		if a.Direction != b.Direction {
			return a.Direction < b.Direction
		}
		return a.ID < b.ID
	})
	return out
}

// Allowed reports whether id may be received in state.
func (r *Registry) Allowed(state State, id int32) bool {
	_, ok := r.byID[packetKey{state, Serverbound, id}]
	return ok
}

// Decode decodes a serverbound payload for state. A missing key yields a
// KindUnknownPacket error; a field failure or unconsumed trailing bytes
// yield KindDecodeField.
func (r *Registry) Decode(state State, id int32, payload []byte, limits codec.Limits) (Packet, error) {
	d, ok := r.Lookup(state, Serverbound, id)
	if !ok {
		return nil, &Error{Kind: KindUnknownPacket, State: state, PacketID: id, Err: ErrUnknownPacket}
	}
	p := d.New()
	dec := codec.NewDecoderWithLimits(payload, limits)
	if err := p.Decode(dec); err != nil {
		return nil, &Error{Kind: KindDecodeField, State: state, PacketID: id, Packet: d.Name, Err: err}
	}
	if !dec.Done() {
		return nil, &Error{
			Kind: KindDecodeField, State: state, PacketID: id, Packet: d.Name,
			Err: fmt.Errorf("%w: %d bytes", ErrTrailingBytes, dec.Remaining()),
		}
	}
	return p, nil
}

// Marshal encodes a clientbound packet as [id varint][payload].
func (r *Registry) Marshal(state State, p Packet) ([]byte, error) {
	d, ok := r.LookupName(state, Clientbound, p.Name())
	if !ok {
		return nil, fmt.Errorf("%w: clientbound %s in %s", ErrUnknownPacket, p.Name(), state)
	}
	e := codec.NewEncoderWithCap(64)
	e.WriteVarInt(d.ID)
	p.Encode(e)
	return e.Bytes(), nil
}

// MarshalServerbound encodes a serverbound packet. Clients and tests use it.
func (r *Registry) MarshalServerbound(state State, p Packet) ([]byte, error) {
	d, ok := r.LookupName(state, Serverbound, p.Name())
	if !ok {
		return nil, fmt.Errorf("%w: serverbound %s in %s", ErrUnknownPacket, p.Name(), state)
	}
	e := codec.NewEncoderWithCap(64)
	e.WriteVarInt(d.ID)
	p.Encode(e)
	return e.Bytes(), nil
}

// DecodeClientbound decodes a clientbound payload. Clients and tests use it.
func (r *Registry) DecodeClientbound(state State, id int32, payload []byte) (Packet, error) {
	d, ok := r.Lookup(state, Clientbound, id)
	if !ok {
		return nil, &Error{Kind: KindUnknownPacket, State: state, PacketID: id, Err: ErrUnknownPacket}
	}
	p := d.New()
	dec := codec.NewDecoder(payload)
	if err := p.Decode(dec); err != nil {
		return nil, &Error{Kind: KindDecodeField, State: state, PacketID: id, Packet: d.Name, Err: err}
	}
	if !dec.Done() {
		return nil, &Error{Kind: KindDecodeField, State: state, PacketID: id, Packet: d.Name, Err: ErrTrailingBytes}
	}
	return p, nil
}
