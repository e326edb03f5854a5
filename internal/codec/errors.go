package codec

import "errors"

// Decoding errors. Every failure returned by a Decoder wraps one of these.
var (
	ErrMalformedVarInt  = errors.New("codec: malformed varint")
	ErrMalformedVarLong = errors.New("codec: malformed varlong")
	ErrBufferTooShort   = errors.New("codec: buffer too short")
	ErrNegativeLength   = errors.New("codec: negative length prefix")
	ErrSequenceTooLong  = errors.New("codec: sequence length exceeds limit")
	ErrBytesTooLong     = errors.New("codec: byte array exceeds limit")
	ErrStringTooLong    = errors.New("codec: string exceeds limit")
	ErrInvalidUTF8      = errors.New("codec: string is not valid utf-8")
	ErrInvalidBool      = errors.New("codec: invalid boolean value")
)
