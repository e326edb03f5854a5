package protocol

import "ionic/internal/codec"

// Intention opens every connection and selects the next state.
type Intention struct {
	ProtocolVersion int32
	Address         string
	Port            uint16
	NextState       int32
}

func (*Intention) Name() string { return "intention" }

func (p *Intention) Encode(e *codec.Encoder) {
	e.WriteVarInt(p.ProtocolVersion)
	e.WriteString(p.Address)
	e.WriteUint16(p.Port)
	e.WriteVarInt(p.NextState)
}

func (p *Intention) Decode(d *codec.Decoder) (err error) {
	if p.ProtocolVersion, err = d.ReadVarInt(); err != nil {
		return err
	}
	if p.Address, err = d.ReadString(255); err != nil {
		return err
	}
	if p.Port, err = d.ReadUint16(); err != nil {
		return err
	}
	p.NextState, err = d.ReadVarInt()
	return err
}
