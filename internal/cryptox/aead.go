package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/praxisdoku/internal/common"
)

var (
	ErrAuthFailed   = errors.New("message authentication failed")
	ErrInvalidNonce = errors.New("nonce must be 12 bytes")
)

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext with AES-GCM under key and nonce. The returned
// slice is the ciphertext followed by the 16-byte tag.
//
// A nonce must never be used twice with the same key.
func Seal(key, nonce, plaintext []byte) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, ErrInvalidNonce
	}
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return aesgcm.Seal(nil, nonce, plaintext, nil), nil
}

// Open authenticates and decrypts ciphertext produced by Seal. Any tag
// mismatch, whether caused by a wrong key or by modified bytes, is reported
// as ErrAuthFailed.
func Open(key, nonce, ciphertext []byte) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, ErrInvalidNonce
	}
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

// EncryptJSON serializes v to JSON and seals it under key with a freshly
// generated random nonce. The ciphertext and nonce are returned separately.
//
// Example:
//
//	ciphertext, nonce, err := EncryptJSON(graph, key)
//	if err != nil {
//	    return err
//	}
func EncryptJSON(v any, key []byte) (ciphertext, nonce []byte, err error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	defer common.WipeByteArray(plaintext)

	nonce = common.GenerateRandByteArray(NonceSize)

	ciphertext, err = Seal(key, nonce, plaintext)
	if err != nil {
		return nil, nil, err
	}
	return ciphertext, nonce, nil
}

// DecryptJSON opens ciphertext with key and nonce and unmarshals the JSON
// plaintext into v. Authentication failures wrap ErrAuthFailed; a payload
// that authenticates but is not valid JSON returns the decoder error.
func DecryptJSON(ciphertext, nonce, key []byte, v any) error {
	plaintext, err := Open(key, nonce, ciphertext)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(plaintext)

	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("decode plaintext: %w", err)
	}
	return nil
}
