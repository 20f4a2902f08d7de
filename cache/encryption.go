package cache

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
)

var (
	ErrEncryptionKey = errors.New("cache: encryption key must be 16, 24, or 32 bytes")
	ErrDecryptFailed = errors.New("cache: decrypt failed")
)

// Sealed bodies are sealHeader, the GCM nonce, then the ciphertext. The cache
// key is bound as additional data, so a body copied under another key does
// not open.
var sealHeader = []byte("odmx")

type sealer struct {
	aead cipher.AEAD
}

func newSealer(key []byte) (valueCodec, error) {
	if len(key) == 0 {
		return nil, nil
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrEncryptionKey
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return sealer{aead: aead}, nil
}

func (s sealer) encode(key string, value []byte) ([]byte, error) {
	n := s.aead.NonceSize()
	out := make([]byte, len(sealHeader)+n, len(sealHeader)+n+len(value)+s.aead.Overhead())
	copy(out, sealHeader)
	nonce := out[len(sealHeader):]
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return s.aead.Seal(out, nonce, value, []byte(key)), nil
}

// decode refuses bodies that were not sealed.
func (s sealer) decode(key string, body []byte) ([]byte, error) {
	n := s.aead.NonceSize()
	if len(body) < len(sealHeader)+n || !bytes.HasPrefix(body, sealHeader) {
		return nil, ErrDecryptFailed
	}
	nonce := body[len(sealHeader) : len(sealHeader)+n]
	plain, err := s.aead.Open(nil, nonce, body[len(sealHeader)+n:], []byte(key))
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plain, nil
}
