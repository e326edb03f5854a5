package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"ionic/internal/codec"
	"ionic/internal/text"
)

// Hello is the client's login start.
type Hello struct {
	Username string
	UUID     uuid.UUID
}

func (*Hello) Name() string { return "hello" }

func (p *Hello) Encode(e *codec.Encoder) {
	e.WriteString(p.Username)
	e.WriteUUID(p.UUID)
}

func (p *Hello) Decode(d *codec.Decoder) (err error) {
	if p.Username, err = d.ReadString(16); err != nil {
		return err
	}
	p.UUID, err = d.ReadUUID()
	return err
}

// Key is the encryption response: the shared secret and verify token, both
// encrypted with the server's public key.
type Key struct {
	SharedSecret []byte
	VerifyToken  []byte
}

func (*Key) Name() string { return "key" }

func (p *Key) Encode(e *codec.Encoder) {
	codec.EncodeSequence(e, p.SharedSecret, codec.WriteByteElem)
	codec.EncodeSequence(e, p.VerifyToken, codec.WriteByteElem)
}

func (p *Key) Decode(d *codec.Decoder) (err error) {
	// RSA-1024 ciphertexts are 128 bytes; allow up to a 4096-bit key.
	if p.SharedSecret, err = codec.DecodeSequence(d, 512, codec.ByteElem); err != nil {
		return fmt.Errorf("shared secret: %w", err)
	}
	if p.VerifyToken, err = codec.DecodeSequence(d, 512, codec.ByteElem); err != nil {
		return fmt.Errorf("verify token: %w", err)
	}
	return nil
}

// CustomQueryAnswer answers a login plugin request. The server never sends
// one, but clients may still answer with an empty payload.
type CustomQueryAnswer struct {
	MessageID int32
	Data      *[]byte
}

func (*CustomQueryAnswer) Name() string { return "custom_query_answer" }

func (p *CustomQueryAnswer) Encode(e *codec.Encoder) {
	e.WriteVarInt(p.MessageID)
	codec.EncodeOptional(e, p.Data, func(e *codec.Encoder, b []byte) { e.WriteBytes(b) })
}

func (p *CustomQueryAnswer) Decode(d *codec.Decoder) (err error) {
	if p.MessageID, err = d.ReadVarInt(); err != nil {
		return err
	}
	p.Data, err = codec.DecodeOptional(d, func(d *codec.Decoder) ([]byte, error) {
		rest := d.ReadRest()
		return append([]byte(nil), rest...), nil
	})
	return err
}

type LoginAcknowledged struct{}

func (*LoginAcknowledged) Name() string                { return "login_acknowledged" }
func (*LoginAcknowledged) Encode(*codec.Encoder)       {}
func (*LoginAcknowledged) Decode(*codec.Decoder) error { return nil }

// LoginDisconnect carries its reason as JSON text, unlike play disconnect.
type LoginDisconnect struct {
	Reason text.Component
}

func (*LoginDisconnect) Name() string { return "login_disconnect" }

func (p *LoginDisconnect) Encode(e *codec.Encoder) {
	e.WriteString(p.Reason.JSON())
}

func (p *LoginDisconnect) Decode(d *codec.Decoder) error {
	raw, err := d.ReadString(262144)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), &p.Reason)
}

// EncryptionRequest is the clientbound hello of the login state.
type EncryptionRequest struct {
	ServerID           string
	PublicKey          []byte
	VerifyToken        []byte
	ShouldAuthenticate bool
}

func (*EncryptionRequest) Name() string { return "encryption_request" }

func (p *EncryptionRequest) Encode(e *codec.Encoder) {
	e.WriteString(p.ServerID)
	e.WriteLenBytes(p.PublicKey)
	e.WriteLenBytes(p.VerifyToken)
	e.WriteBool(p.ShouldAuthenticate)
}

func (p *EncryptionRequest) Decode(d *codec.Decoder) (err error) {
	if p.ServerID, err = d.ReadString(20); err != nil {
		return err
	}
	if p.PublicKey, err = d.ReadLenBytes(); err != nil {
		return err
	}
	if p.VerifyToken, err = d.ReadLenBytes(); err != nil {
		return err
	}
	p.ShouldAuthenticate, err = d.ReadBool()
	return err
}

// Property is a signed profile property such as a skin texture.
type Property struct {
	Name      string
	Value     string
	Signature *string
}

// GameProfile is login success. Sending it moves the connection to play.
type GameProfile struct {
	UUID                uuid.UUID
	Username            string
	Properties          []Property
	StrictErrorHandling bool
}

func (*GameProfile) Name() string { return "game_profile" }

func (p *GameProfile) Encode(e *codec.Encoder) {
	e.WriteUUID(p.UUID)
	e.WriteString(p.Username)
	codec.EncodeSequence(e, p.Properties, func(e *codec.Encoder, prop Property) {
		e.WriteString(prop.Name)
		e.WriteString(prop.Value)
		codec.EncodeOptional(e, prop.Signature, func(e *codec.Encoder, s string) { e.WriteString(s) })
	})
	e.WriteBool(p.StrictErrorHandling)
}

func (p *GameProfile) Decode(d *codec.Decoder) (err error) {
	if p.UUID, err = d.ReadUUID(); err != nil {
		return err
	}
	if p.Username, err = d.ReadString(16); err != nil {
		return err
	}
	p.Properties, err = codec.DecodeSequence(d, 16, func(d *codec.Decoder) (Property, error) {
		var prop Property
		var err error
		if prop.Name, err = d.ReadString(64); err != nil {
			return prop, err
		}
		if prop.Value, err = d.ReadString(0); err != nil {
			return prop, err
		}
		prop.Signature, err = codec.DecodeOptional(d, func(d *codec.Decoder) (string, error) {
			return d.ReadString(1024)
		})
		return prop, err
	})
	if err != nil {
		return err
	}
	p.StrictErrorHandling, err = d.ReadBool()
	return err
}

// LoginCompression enables compression for every later frame.
type LoginCompression struct {
	Threshold int32
}

func (*LoginCompression) Name() string              { return "login_compression" }
func (p *LoginCompression) Encode(e *codec.Encoder) { e.WriteVarInt(p.Threshold) }
func (p *LoginCompression) Decode(d *codec.Decoder) (err error) {
	p.Threshold, err = d.ReadVarInt()
	return err
}
