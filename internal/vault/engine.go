// Package vault implements the encrypted PraxisDoku vault: a single document
// graph sealed with a passphrase-derived key and persisted as one envelope
// record in a key/value store.
//
// Every mutation re-encrypts and rewrites the whole graph. Changes are built
// on a working copy that only replaces the in-memory graph once the store
// has accepted the new record, so a failed save leaves both memory and
// storage unchanged.
package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/praxisdoku/internal/common"
	"github.com/dmitrijs2005/praxisdoku/internal/cryptox"
	"github.com/dmitrijs2005/praxisdoku/internal/envelope"
	"github.com/dmitrijs2005/praxisdoku/internal/logging"
	"github.com/dmitrijs2005/praxisdoku/internal/models"
	"github.com/google/uuid"
)

// DefaultKey is the store key the vault record lives under.
const DefaultKey = "praxisdoku_vault_v1"

// Store is the key/value text store the vault record is persisted in.
// Get returns nil, nil when the key does not exist.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// State is the lifecycle state of an Engine.
type State int

const (
	StateLocked State = iota
	StateUnlocked
)

func (s State) String() string {
	switch s {
	case StateLocked:
		return "locked"
	case StateUnlocked:
		return "unlocked"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Option func(*Engine)

// WithKey overrides the store key of the vault record.
func WithKey(key string) Option {
	return func(e *Engine) { e.key = key }
}

// WithClock sets the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine owns the unlocked key and the decrypted graph. All methods are
// safe for concurrent use; operations are serialised.
type Engine struct {
	mu     sync.Mutex
	store  Store
	logger logging.Logger
	key    string
	now    func() time.Time

	aeadKey []byte
	salt    []byte
	graph   *models.Graph
}

func New(store Store, logger logging.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		logger: logger,
		key:    DefaultKey,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(e)
	}
	e.logger = e.logger.With("vault", e.key)
	return e
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state()
}

func (e *Engine) IsUnlocked() bool {
	return e.State() == StateUnlocked
}

func (e *Engine) state() State {
	if e.graph == nil {
		return StateLocked
	}
	return StateUnlocked
}

// Unlock derives the key from passphrase and opens the stored vault,
// creating an empty one when none exists yet.
func (e *Engine) Unlock(ctx context.Context, passphrase []byte) error {
	if len(passphrase) == 0 {
		return ErrEmptyPassphrase
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state() == StateUnlocked {
		return ErrAlreadyUnlocked
	}

	raw, err := e.store.Get(ctx, e.key)
	if err != nil {
		return fmt.Errorf("read vault record: %w", err)
	}

	var rec *envelope.Record
	if raw != nil {
		if rec, err = envelope.Decode(raw); err != nil {
			e.logger.Warn(ctx, "stored vault record is malformed")
			return err
		}
	}

	salt := cryptox.NewSalt()
	if rec != nil {
		salt = rec.Salt
	}

	key, err := cryptox.DeriveKey(passphrase, salt)
	if err != nil {
		return fmt.Errorf("derive key: %w", err)
	}

	if rec == nil || !rec.HasPayload() {
		g := models.NewGraph(e.now())
		if err := e.save(ctx, key, salt, g); err != nil {
			common.WipeByteArray(key)
			return err
		}
		e.aeadKey, e.salt, e.graph = key, salt, g
		e.logger.Info(ctx, "vault initialised")
		return nil
	}

	g := &models.Graph{}
	if err := cryptox.DecryptJSON(rec.Ciphertext, rec.IV, key, g); err != nil {
		common.WipeByteArray(key)
		if errors.Is(err, cryptox.ErrAuthFailed) {
			e.logger.Warn(ctx, "vault unlock failed")
			return ErrDecryptionFailed
		}
		return fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if err := g.Migrate(); err != nil {
		common.WipeByteArray(key)
		return err
	}

	e.aeadKey, e.salt, e.graph = key, salt, g
	e.logger.Info(ctx, "vault unlocked", "patients", len(g.Patients), "docs", len(g.Docs))
	return nil
}

// Lock wipes the key and drops the decrypted graph. The stored record is
// left untouched. Locking a locked engine does nothing.
func (e *Engine) Lock(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state() == StateLocked {
		return
	}
	common.WipeByteArray(e.aeadKey)
	e.aeadKey, e.salt, e.graph = nil, nil, nil
	e.logger.Info(ctx, "vault locked")
}

// save seals g under key and writes the envelope record.
func (e *Engine) save(ctx context.Context, key, salt []byte, g *models.Graph) error {
	g.UpdatedAt = e.now()

	ct, iv, err := cryptox.EncryptJSON(g, key)
	if err != nil {
		return fmt.Errorf("encrypt vault: %w", err)
	}
	rec, err := envelope.Encode(iv, ct, salt)
	if err != nil {
		return fmt.Errorf("encode vault: %w", err)
	}
	if err := e.store.Set(ctx, e.key, rec); err != nil {
		e.logger.Error(ctx, "vault save failed", "error", err)
		return fmt.Errorf("write vault record: %w", err)
	}
	return nil
}

// mutate applies fn to a copy of the graph and persists it. The copy
// replaces the live graph only after a successful save. fn returning an
// error aborts without touching storage.
func (e *Engine) mutate(ctx context.Context, fn func(g *models.Graph) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.graph == nil {
		return ErrVaultLocked
	}
	work := e.graph.Clone()
	if err := fn(work); err != nil {
		return err
	}
	if err := e.save(ctx, e.aeadKey, e.salt, work); err != nil {
		return err
	}
	e.graph = work
	return nil
}

// read runs fn against the live graph under the engine lock.
func (e *Engine) read(fn func(g *models.Graph) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.graph == nil {
		return ErrVaultLocked
	}
	return fn(e.graph)
}

// ListPatients returns all patients sorted by last name. The order is
// byte-wise and stable, so patients with equal last names keep their
// insertion order.
func (e *Engine) ListPatients() ([]models.Patient, error) {
	var out []models.Patient
	err := e.read(func(g *models.Graph) error {
		out = slices.Clone(g.Patients)
		if out == nil {
			out = []models.Patient{}
		}
		slices.SortStableFunc(out, func(a, b models.Patient) int {
			return strings.Compare(a.LastName, b.LastName)
		})
		return nil
	})
	return out, err
}

func (e *Engine) GetPatient(id string) (*models.Patient, error) {
	var out *models.Patient
	err := e.read(func(g *models.Graph) error {
		i := g.FindPatient(id)
		if i < 0 {
			return ErrNotFound
		}
		p := g.Patients[i]
		out = &p
		return nil
	})
	return out, err
}

// UpsertPatient inserts p or fully replaces the patient with the same id.
// A missing id and creation time are filled in. The stored patient is
// returned.
func (e *Engine) UpsertPatient(ctx context.Context, p models.Patient) (models.Patient, error) {
	err := e.mutate(ctx, func(g *models.Graph) error {
		now := e.now()
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		p.UpdatedAt = now

		if i := g.FindPatient(p.ID); i >= 0 {
			g.Patients[i] = p
		} else {
			g.Patients = append(g.Patients, p)
		}
		return nil
	})
	if err != nil {
		return models.Patient{}, err
	}
	e.logger.Debug(ctx, "patient saved", "id", p.ID)
	return p, nil
}

// DeletePatient removes the patient and all of its documents in one save.
func (e *Engine) DeletePatient(ctx context.Context, id string) error {
	removed := 0
	err := e.mutate(ctx, func(g *models.Graph) error {
		i := g.FindPatient(id)
		if i < 0 {
			return ErrNotFound
		}
		g.Patients = slices.Delete(g.Patients, i, i+1)
		before := len(g.Docs)
		g.Docs = slices.DeleteFunc(g.Docs, func(d models.Document) bool {
			return d.PatientID == id
		})
		removed = before - len(g.Docs)
		return nil
	})
	if err != nil {
		return err
	}
	e.logger.Debug(ctx, "patient deleted", "id", id, "docs", removed)
	return nil
}

// ListDocumentsForPatient returns the patient's documents in insertion order.
// An unknown patient yields an empty list.
func (e *Engine) ListDocumentsForPatient(patientID string) ([]models.Document, error) {
	out := []models.Document{}
	err := e.read(func(g *models.Graph) error {
		for _, d := range g.Docs {
			if d.PatientID == patientID {
				out = append(out, d.Clone())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) GetDocument(id string) (*models.Document, error) {
	var out *models.Document
	err := e.read(func(g *models.Graph) error {
		i := g.FindDocument(id)
		if i < 0 {
			return ErrNotFound
		}
		d := g.Docs[i].Clone()
		out = &d
		return nil
	})
	return out, err
}

// UpsertDocument inserts d or fully replaces the document with the same id.
// The owning patient must exist. New attachments get an id and timestamp.
func (e *Engine) UpsertDocument(ctx context.Context, d models.Document) (models.Document, error) {
	d = d.Clone()
	if err := d.NormalizeData(); err != nil {
		return models.Document{}, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	err := e.mutate(ctx, func(g *models.Graph) error {
		if g.FindPatient(d.PatientID) < 0 {
			return fmt.Errorf("%w: %q", ErrUnknownPatient, d.PatientID)
		}
		now := e.now()
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
		if d.Kind == "" {
			d.Kind = models.KindFreeText
		}
		if d.Attachments == nil {
			d.Attachments = []models.Attachment{}
		}
		for i := range d.Attachments {
			a := &d.Attachments[i]
			if a.ID == "" {
				a.ID = uuid.NewString()
			}
			if a.AddedAt.IsZero() {
				a.AddedAt = now
			}
			a.Size = int64(len(a.Data))
		}
		if d.CreatedAt.IsZero() {
			d.CreatedAt = now
		}
		d.UpdatedAt = now

		if i := g.FindDocument(d.ID); i >= 0 {
			g.Docs[i] = d.Clone()
		} else {
			g.Docs = append(g.Docs, d.Clone())
		}
		return nil
	})
	if err != nil {
		return models.Document{}, err
	}
	e.logger.Debug(ctx, "document saved", "id", d.ID, "attachments", len(d.Attachments))
	return d, nil
}

func (e *Engine) DeleteDocument(ctx context.Context, id string) error {
	return e.mutate(ctx, func(g *models.Graph) error {
		i := g.FindDocument(id)
		if i < 0 {
			return ErrNotFound
		}
		g.Docs = slices.Delete(g.Docs, i, i+1)
		return nil
	})
}

// ExportAll returns a deep copy of the whole graph.
func (e *Engine) ExportAll() (*models.Graph, error) {
	var out *models.Graph
	err := e.read(func(g *models.Graph) error {
		out = g.Clone()
		return nil
	})
	return out, err
}

// ExportJSON returns the graph as indented JSON, the format ImportJSON reads.
func (e *Engine) ExportJSON() ([]byte, error) {
	g, err := e.ExportAll()
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(g, "", "  ")
}

// ImportAll replaces the whole graph with g. Both collections must be
// present, ids must be unique, document bodies must be JSON and every
// document must reference an imported patient.
func (e *Engine) ImportAll(ctx context.Context, g *models.Graph) error {
	if !e.IsUnlocked() {
		return ErrVaultLocked
	}
	if g == nil || g.Patients == nil || g.Docs == nil {
		return fmt.Errorf("%w: patients and docs are required", ErrInvalidImport)
	}
	in := g.Clone()
	if err := in.Migrate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	patients := make(map[string]struct{}, len(in.Patients))
	for _, p := range in.Patients {
		if _, dup := patients[p.ID]; dup {
			return fmt.Errorf("%w: duplicate patient id %q", ErrInvalidImport, p.ID)
		}
		patients[p.ID] = struct{}{}
	}
	docs := make(map[string]struct{}, len(in.Docs))
	for _, d := range in.Docs {
		if _, dup := docs[d.ID]; dup {
			return fmt.Errorf("%w: duplicate document id %q", ErrInvalidImport, d.ID)
		}
		docs[d.ID] = struct{}{}
		if _, ok := patients[d.PatientID]; !ok {
			return fmt.Errorf("%w: document %q references unknown patient %q", ErrInvalidImport, d.ID, d.PatientID)
		}
	}

	err := e.mutate(ctx, func(work *models.Graph) error {
		*work = *in
		return nil
	})
	if err != nil {
		return err
	}
	e.logger.Info(ctx, "vault imported", "patients", len(in.Patients), "docs", len(in.Docs))
	return nil
}

// ImportJSON parses data as an exported graph and imports it.
func (e *Engine) ImportJSON(ctx context.Context, data []byte) error {
	if !e.IsUnlocked() {
		return ErrVaultLocked
	}
	var g models.Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	return e.ImportAll(ctx, &g)
}
