package vault

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/praxisdoku/internal/common"
	"github.com/dmitrijs2005/praxisdoku/internal/envelope"
)

var (
	// ErrDecryptionFailed is returned by Unlock when the stored payload does
	// not authenticate under the derived key. A wrong passphrase and a
	// tampered record are indistinguishable.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrMalformedEnvelope is returned when the stored record cannot be parsed.
	ErrMalformedEnvelope = envelope.ErrMalformedEnvelope

	ErrVaultLocked     = errors.New("vault is locked")
	ErrEmptyPassphrase = errors.New("passphrase must not be empty")
	ErrAlreadyUnlocked = errors.New("vault is already unlocked")

	ErrNotFound       = fmt.Errorf("vault: %w", common.ErrorNotFound)
	ErrInvalidImport  = fmt.Errorf("invalid import: %w", common.ErrorValidation)
	ErrUnknownPatient = fmt.Errorf("unknown patient: %w", common.ErrorValidation)

	// ErrInvalidDocument is returned by UpsertDocument for a body that is
	// not valid JSON.
	ErrInvalidDocument = fmt.Errorf("invalid document: %w", common.ErrorValidation)
)
