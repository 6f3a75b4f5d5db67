package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/nash87/parkhub/internal/crypto"
)

// Codec serializes one record type to bytes, piping the result through the
// cipher when encryption is enabled. A nil cipher means plaintext storage.
type Codec[T any] struct {
	cipher *crypto.Cipher
}

// NewCodec builds a codec for T. Pass a nil cipher to store plaintext.
func NewCodec[T any](cipher *crypto.Cipher) Codec[T] {
	return Codec[T]{cipher: cipher}
}

// Encode marshals the record to JSON and encrypts it when configured.
func (c Codec[T]) Encode(record T) ([]byte, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	if c.cipher == nil {
		return data, nil
	}
	blob, err := c.cipher.Encrypt(data)
	if err != nil {
		return nil, fmt.Errorf("encrypt record: %w", err)
	}
	return blob, nil
}

// Decode inverts Encode. Decryption failures surface the crypto sentinels so
// callers can tell a wrong key or tampered blob from corrupt JSON, which is
// reported as ErrCorruptRecord.
func (c Codec[T]) Decode(data []byte) (T, error) {
	var record T
	if c.cipher != nil {
		plaintext, err := c.cipher.Decrypt(data)
		if err != nil {
			return record, err
		}
		data = plaintext
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return record, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return record, nil
}
