// Package crypto seals values the console keeps in durable client storage.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// ErrTooShort is returned when a sealed value is shorter than its nonce.
var ErrTooShort = errors.New("ciphertext too short")

// Cipher handles AES-256-GCM sealing with a key derived from a configured
// secret. A nil *Cipher passes values through unchanged.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives a 32-byte key for purpose from secret using HKDF-SHA256.
// Returns nil if secret is empty (sealing disabled). Distinct purposes yield
// independent keys from the same secret.
func NewCipher(secret, purpose string) (*Cipher, error) {
	if secret == "" {
		return nil, nil
	}

	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("ovpnadmin/"+purpose))
	key := make([]byte, 32)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

// Seal encrypts plaintext and returns base64 ciphertext with prepended nonce.
func (c *Cipher) Seal(plaintext []byte) ([]byte, error) {
	if c == nil {
		return plaintext, nil
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sealed)))
	base64.StdEncoding.Encode(out, sealed)
	return out, nil
}

// Open reverses Seal.
func (c *Cipher) Open(ciphertext []byte) ([]byte, error) {
	if c == nil {
		return ciphertext, nil
	}

	data := make([]byte, base64.StdEncoding.DecodedLen(len(ciphertext)))
	n, err := base64.StdEncoding.Decode(data, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decoding base64: %w", err)
	}
	data = data[:n]

	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize {
		return nil, ErrTooShort
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	return plaintext, nil
}
