package wire

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
)

// ErrSecretLength is returned for shared secrets that are not 16 bytes.
var ErrSecretLength = errors.New("wire: shared secret must be 16 bytes")

// cfb8 is CFB mode with an 8-bit segment size: one block encryption per
// byte, the shift register advancing by the ciphertext byte.
type cfb8 struct {
	block    cipher.Block
	register []byte
	out      []byte
	decrypt  bool
}

// NewCFB8Encrypter returns a CFB8 stream encrypting with block and iv.
func NewCFB8Encrypter(block cipher.Block, iv []byte) cipher.Stream {
	return newCFB8(block, iv, false)
}

// NewCFB8Decrypter returns a CFB8 stream decrypting with block and iv.
func NewCFB8Decrypter(block cipher.Block, iv []byte) cipher.Stream {
	return newCFB8(block, iv, true)
}

func newCFB8(block cipher.Block, iv []byte, decrypt bool) *cfb8 {
	if len(iv) != block.BlockSize() {
		panic("wire: cfb8 iv length must equal block size")
	}
	return &cfb8{
		block:    block,
		register: append([]byte(nil), iv...),
		out:      make([]byte, block.BlockSize()),
		decrypt:  decrypt,
	}
}

func (c *cfb8) XORKeyStream(dst, src []byte) {
	if len(dst) < len(src) {
		panic("wire: cfb8 output smaller than input")
	}
	last := len(c.register) - 1
	for i, b := range src {
		c.block.Encrypt(c.out, c.register)
		x := b ^ c.out[0]
		copy(c.register, c.register[1:])
		if c.decrypt {
			c.register[last] = b
		} else {
			c.register[last] = x
		}
		dst[i] = x
	}
}

// NewCipherPair builds the encrypt and decrypt streams for a connection.
// The shared secret is both the AES-128 key and the IV.
func NewCipherPair(secret []byte) (enc, dec cipher.Stream, err error) {
	if len(secret) != 16 {
		return nil, nil, ErrSecretLength
	}
	block, err := aes.NewCipher(secret)
	if err != nil {
		return nil, nil, err
	}
	return NewCFB8Encrypter(block, secret), NewCFB8Decrypter(block, secret), nil
}
