package protocol

import "ionic/internal/codec"

type StatusRequest struct{}

func (*StatusRequest) Name() string                { return "status_request" }
func (*StatusRequest) Encode(*codec.Encoder)       {}
func (*StatusRequest) Decode(*codec.Decoder) error { return nil }

// PingRequest carries an opaque value the server echoes back.
type PingRequest struct {
	Payload int64
}

func (*PingRequest) Name() string              { return "ping_request" }
func (p *PingRequest) Encode(e *codec.Encoder) { e.WriteInt64(p.Payload) }
func (p *PingRequest) Decode(d *codec.Decoder) (err error) {
	p.Payload, err = d.ReadInt64()
	return err
}

// StatusResponse carries the server list JSON document.
type StatusResponse struct {
	JSON string
}

func (*StatusResponse) Name() string              { return "status_response" }
func (p *StatusResponse) Encode(e *codec.Encoder) { e.WriteString(p.JSON) }
func (p *StatusResponse) Decode(d *codec.Decoder) (err error) {
	p.JSON, err = d.ReadString(0)
	return err
}

type PongResponse struct {
	Payload int64
}

func (*PongResponse) Name() string              { return "pong_response" }
func (p *PongResponse) Encode(e *codec.Encoder) { e.WriteInt64(p.Payload) }
func (p *PongResponse) Decode(d *codec.Decoder) (err error) {
	p.Payload, err = d.ReadInt64()
	return err
}
