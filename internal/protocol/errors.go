package protocol

import (
	"errors"
	"fmt"
)

// Kind classifies connection failures.
type Kind uint8

const (
	// KindMalformedFrame is a framing or varint violation.
	KindMalformedFrame Kind = iota + 1
	// KindUnknownPacket is an id not registered for the current state.
	KindUnknownPacket
	// KindDecodeField is a structurally invalid field.
	KindDecodeField
	// KindCrypto is an encryption handshake failure.
	KindCrypto
	// KindCompression is a corrupt or oversized compressed payload.
	KindCompression
	// KindHandler is a failure inside a packet handler.
	KindHandler
)

func (k Kind) String() string {
	switch k {
	case KindMalformedFrame:
		return "malformed_frame"
	case KindUnknownPacket:
		return "unknown_packet"
	case KindDecodeField:
		return "decode_field"
	case KindCrypto:
		return "crypto"
	case KindCompression:
		return "compression"
	case KindHandler:
		return "handler"
	default:
		return "unknown"
	}
}

// Fatal reports whether the kind terminates the connection. Only handler
// failures are survivable: every other kind leaves the byte stream
// desynchronized.
func (k Kind) Fatal() bool {
	return k != KindHandler
}

// Error is a classified protocol failure.
type Error struct {
	Kind     Kind
	State    State
	PacketID int32 // -1 when no packet id was read
	Packet   string
	Err      error
}

// NewError wraps err with a kind and no packet context.
func NewError(kind Kind, err error) *Error {
	return &Error{Kind: kind, PacketID: -1, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Packet != "":
		return fmt.Sprintf("%s: %s %s (0x%02X): %v", e.Kind, e.State, e.Packet, e.PacketID, e.Err)
	case e.PacketID >= 0:
		return fmt.Sprintf("%s: %s 0x%02X: %v", e.Kind, e.State, e.PacketID, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the kind of a protocol error.
func KindOf(err error) (Kind, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return 0, false
}

// IsFatal reports whether err must close the connection. Errors that are
// not protocol errors (socket failures) are fatal too.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if k, ok := KindOf(err); ok {
		return k.Fatal()
	}
	return true
}

// Registration errors.
var (
	ErrDuplicatePacket = errors.New("protocol: duplicate packet registration")
	ErrUnknownPacket   = errors.New("protocol: packet not registered for state")
	ErrTrailingBytes   = errors.New("protocol: trailing bytes after packet")
)
