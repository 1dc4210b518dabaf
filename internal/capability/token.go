// Package capability issues and verifies bearer tokens that scope an editor
// session to a single entry id. A token is the hex encoding of a random
// 12-byte nonce followed by the AES-256-GCM sealing of the id as 4
// little-endian bytes, keyed by the SHA-256 digest of the master secret.
//
// Tokens carry no expiry and there is no registry: a token is valid exactly
// while the secret that produced it is configured.
package capability

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
)

const (
	nonceSize = 12
	idSize    = 4
)

// ErrCrypto is returned when a token cannot be generated. It carries no
// detail about the cause.
var ErrCrypto = errors.New("capability: cryptographic failure")

// Codec seals and opens tokens under one secret. It is safe for concurrent
// use.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec derives the token key from secret.
func NewCodec(secret []byte) (*Codec, error) {
	key := sha256.Sum256(secret)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, ErrCrypto
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ErrCrypto
	}
	return &Codec{aead: aead}, nil
}

// Generate returns a fresh token for id. Two calls for the same id differ.
func (c *Codec) Generate(id int32) (string, error) {
	nonce := make([]byte, nonceSize, nonceSize+idSize+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", ErrCrypto
	}
	plaintext := binary.LittleEndian.AppendUint32(nil, uint32(id))
	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return hex.EncodeToString(sealed), nil
}

// Decrypt returns the id sealed in token. Any malformed, truncated, tampered
// or foreign token yields false.
func (c *Codec) Decrypt(token string) (int32, bool) {
	if len(token)%2 != 0 || len(token) < 2*nonceSize {
		return 0, false
	}
	raw, err := hex.DecodeString(token)
	if err != nil {
		return 0, false
	}
	plaintext, err := c.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil || len(plaintext) != idSize {
		return 0, false
	}
	return int32(binary.LittleEndian.Uint32(plaintext)), true
}

// GenerateKey issues a token for id under secret.
func GenerateKey(id int32, secret []byte) (string, error) {
	c, err := NewCodec(secret)
	if err != nil {
		return "", err
	}
	return c.Generate(id)
}

// TryDecryptKey recovers the id from token under secret.
func TryDecryptKey(token string, secret []byte) (int32, bool) {
	c, err := NewCodec(secret)
	if err != nil {
		return 0, false
	}
	return c.Decrypt(token)
}
