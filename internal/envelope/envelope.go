// Package envelope encodes and decodes the single persisted vault record:
//
//	{
//	  "salt": "<base64 of 16 bytes>",
//	  "payload": null | {"v": 1, "iv": "<base64 of 12 bytes>", "ct": "<base64 of ciphertext+tag>"}
//	}
//
// Binary fields use standard base64 with padding. The package is purely
// structural: it checks shapes and lengths but performs no cryptography.
package envelope

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/praxisdoku/internal/cryptox"
)

// Version is the payload format version written on every save.
const Version = 1

var ErrMalformedEnvelope = errors.New("malformed envelope")

type payloadJSON struct {
	V  int    `json:"v"`
	IV string `json:"iv"`
	CT string `json:"ct"`
}

type recordJSON struct {
	Salt    string       `json:"salt"`
	Payload *payloadJSON `json:"payload"`
}

// Record is a decoded vault record. IV and Ciphertext are nil when the vault
// was initialised but never saved (payload is null).
type Record struct {
	Salt       []byte
	IV         []byte
	Ciphertext []byte
}

// HasPayload reports whether the record carries an encrypted snapshot.
func (r *Record) HasPayload() bool {
	return r.Ciphertext != nil
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedEnvelope, fmt.Sprintf(format, args...))
}

func encodeB64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func checkSalt(salt []byte) error {
	if len(salt) != cryptox.SaltSize {
		return malformed("salt is %d bytes, want %d", len(salt), cryptox.SaltSize)
	}
	return nil
}

// Encode produces the persisted form of one encrypted snapshot.
func Encode(iv, ciphertext, salt []byte) ([]byte, error) {
	if err := checkSalt(salt); err != nil {
		return nil, err
	}
	if len(iv) != cryptox.NonceSize {
		return nil, malformed("iv is %d bytes, want %d", len(iv), cryptox.NonceSize)
	}
	if len(ciphertext) == 0 {
		return nil, malformed("empty ciphertext")
	}

	return json.Marshal(recordJSON{
		Salt: encodeB64(salt),
		Payload: &payloadJSON{
			V:  Version,
			IV: encodeB64(iv),
			CT: encodeB64(ciphertext),
		},
	})
}

// EncodeSaltOnly produces a record with a null payload. It marks a vault whose
// salt has been fixed but whose first snapshot has not been written yet.
func EncodeSaltOnly(salt []byte) ([]byte, error) {
	if err := checkSalt(salt); err != nil {
		return nil, err
	}
	return json.Marshal(recordJSON{Salt: encodeB64(salt)})
}

func decodeField(name, value string, wantLen int) ([]byte, error) {
	if value == "" {
		return nil, malformed("missing %s", name)
	}
	b, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, malformed("%s is not base64: %v", name, err)
	}
	if wantLen > 0 && len(b) != wantLen {
		return nil, malformed("%s is %d bytes, want %d", name, len(b), wantLen)
	}
	return b, nil
}

// Decode parses a persisted record. Every structural problem is reported as
// an error wrapping ErrMalformedEnvelope.
func Decode(data []byte) (*Record, error) {
	var rj recordJSON
	if err := json.Unmarshal(data, &rj); err != nil {
		return nil, malformed("invalid json: %v", err)
	}

	salt, err := decodeField("salt", rj.Salt, cryptox.SaltSize)
	if err != nil {
		return nil, err
	}

	rec := &Record{Salt: salt}
	if rj.Payload == nil {
		return rec, nil
	}

	if rj.Payload.V != Version {
		return nil, malformed("unsupported payload version %d", rj.Payload.V)
	}
	if rec.IV, err = decodeField("iv", rj.Payload.IV, cryptox.NonceSize); err != nil {
		return nil, err
	}
	if rec.Ciphertext, err = decodeField("ct", rj.Payload.CT, 0); err != nil {
		return nil, err
	}
	return rec, nil
}
