// Package cryptox holds the vault's cryptographic primitives: passphrase key
// derivation and AES-256-GCM sealing of JSON payloads.
//
// The constants below are part of the persisted format. A vault written with
// one set of values cannot be opened with another, so any change has to come
// with a new envelope version.
package cryptox

import (
	"crypto/sha256"
	"errors"

	"github.com/dmitrijs2005/praxisdoku/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// SaltSize is the length of the per-vault KDF salt.
	SaltSize = 16
	// KeySize is the derived key length (AES-256).
	KeySize = 32
	// NonceSize is the AES-GCM nonce length used for every save.
	NonceSize = 12
	// KDFIterations is the PBKDF2-HMAC-SHA256 work factor.
	KDFIterations = 120000
)

var ErrInvalidSalt = errors.New("salt must be 16 bytes")

// DeriveKey turns a passphrase and the vault salt into an AES-256 key using
// PBKDF2-HMAC-SHA256 with KDFIterations rounds.
//
// The result is deterministic for the same inputs. Rejecting an empty
// passphrase is the caller's job.
func DeriveKey(passphrase []byte, salt []byte) ([]byte, error) {
	if len(salt) != SaltSize {
		return nil, ErrInvalidSalt
	}
	return pbkdf2.Key(passphrase, salt, KDFIterations, KeySize, sha256.New), nil
}

// NewSalt returns a fresh random salt for a new vault.
func NewSalt() []byte {
	return common.GenerateRandByteArray(SaltSize)
}
