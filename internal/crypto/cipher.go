// Package crypto provides the at-rest encryption primitives for the store:
// PBKDF2 key derivation from a passphrase plus a persisted salt, and
// AES-256-GCM sealing of record blobs with a per-call random nonce.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the derived AES-256 key length in bytes.
	KeySize = 32
	// SaltSize is the length of the random salt persisted on first open.
	SaltSize = 32

	kdfIterations = 100_000
)

var (
	ErrInvalidKeySize       = errors.New("crypto: invalid key size")
	ErrCiphertextTooShort   = errors.New("crypto: ciphertext too short")
	ErrAuthenticationFailed = errors.New("crypto: authentication failed")
)

// DeriveKey stretches a passphrase into a fixed-size key using
// PBKDF2-HMAC-SHA256 with a high iteration count.
func DeriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, kdfIterations, KeySize, sha256.New)
}

// NewSalt returns a fresh random salt.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// Cipher seals and opens record blobs. The zero value is unusable; construct
// with NewCipher. A nil *Cipher is treated by callers as encryption disabled.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds an AES-256-GCM cipher around a derived key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes", ErrInvalidKeySize, KeySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("construct aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("construct gcm: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext with a fresh random nonce and returns the nonce
// followed by the ciphertext and tag, so the blob decrypts given only the key.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a blob produced by Encrypt. A truncated blob fails with
// ErrCiphertextTooShort; a tampered or wrong-key blob fails with
// ErrAuthenticationFailed, never a garbled success.
func (c *Cipher) Decrypt(blob []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(blob) < nonceSize {
		return nil, fmt.Errorf("%w: need at least %d bytes", ErrCiphertextTooShort, nonceSize)
	}
	nonce, ciphertext := blob[:nonceSize], blob[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	return plaintext, nil
}
