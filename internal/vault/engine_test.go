package vault

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/praxisdoku/internal/cryptox"
	"github.com/dmitrijs2005/praxisdoku/internal/envelope"
	"github.com/dmitrijs2005/praxisdoku/internal/logging"
	"github.com/dmitrijs2005/praxisdoku/internal/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMemStore() *memStore { return &memStore{data: map[string][]byte{}} }

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), value...)
	s.sets++
	return nil
}

func (s *memStore) snapshot() (string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.data[DefaultKey]), s.sets
}

type mockStore struct{ mock.Mock }

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

func (m *mockStore) Set(ctx context.Context, key string, value []byte) error {
	return m.Called(ctx, key, value).Error(0)
}

func newEngine(store Store) *Engine {
	return New(store, logging.Discard(), WithClock(func() time.Time { return testNow }))
}

func unlocked(t *testing.T, store Store, pass string) *Engine {
	t.Helper()
	e := newEngine(store)
	require.NoError(t, e.Unlock(context.Background(), []byte(pass)))
	return e
}

func decodeStored(t *testing.T, s *memStore) *envelope.Record {
	t.Helper()
	raw, _ := s.snapshot()
	rec, err := envelope.Decode([]byte(raw))
	require.NoError(t, err)
	return rec
}

func TestStateString(t *testing.T) {
	require.Equal(t, "locked", StateLocked.String())
	require.Equal(t, "unlocked", StateUnlocked.String())
	require.Equal(t, "State(7)", State(7).String())
}

func TestUnlock_CreatesVault(t *testing.T) {
	s := newMemStore()
	e := newEngine(s)
	require.Equal(t, StateLocked, e.State())

	require.NoError(t, e.Unlock(context.Background(), []byte("pw")))
	require.True(t, e.IsUnlocked())

	rec := decodeStored(t, s)
	require.Len(t, rec.Salt, cryptox.SaltSize)
	require.True(t, rec.HasPayload())

	g, err := e.ExportAll()
	require.NoError(t, err)
	require.Equal(t, models.NewGraph(testNow), g)
}

func TestUnlock_Guards(t *testing.T) {
	s := newMemStore()
	e := newEngine(s)
	ctx := context.Background()

	require.ErrorIs(t, e.Unlock(ctx, nil), ErrEmptyPassphrase)
	require.ErrorIs(t, e.Unlock(ctx, []byte{}), ErrEmptyPassphrase)
	require.Equal(t, StateLocked, e.State())
	_, sets := s.snapshot()
	require.Zero(t, sets)

	require.NoError(t, e.Unlock(ctx, []byte("pw")))
	require.ErrorIs(t, e.Unlock(ctx, []byte("pw")), ErrAlreadyUnlocked)
}

func TestUnlock_WrongPassphrase(t *testing.T) {
	s := newMemStore()
	e := unlocked(t, s, "right")
	e.Lock(context.Background())
	before, sets := s.snapshot()

	err := e.Unlock(context.Background(), []byte("wrong"))
	require.ErrorIs(t, err, ErrDecryptionFailed)
	require.Equal(t, StateLocked, e.State())

	after, setsAfter := s.snapshot()
	require.Equal(t, before, after)
	require.Equal(t, sets, setsAfter)
}

func TestUnlock_TamperedCiphertext(t *testing.T) {
	s := newMemStore()
	e := unlocked(t, s, "pw")
	e.Lock(context.Background())

	rec := decodeStored(t, s)
	rec.Ciphertext[0] ^= 0x01
	raw, err := envelope.Encode(rec.IV, rec.Ciphertext, rec.Salt)
	require.NoError(t, err)
	require.NoError(t, s.Set(context.Background(), DefaultKey, raw))

	require.ErrorIs(t, e.Unlock(context.Background(), []byte("pw")), ErrDecryptionFailed)
}

func TestUnlock_MalformedRecord(t *testing.T) {
	s := newMemStore()
	require.NoError(t, s.Set(context.Background(), DefaultKey, []byte("not json")))
	e := newEngine(s)

	require.ErrorIs(t, e.Unlock(context.Background(), []byte("pw")), ErrMalformedEnvelope)
	require.Equal(t, StateLocked, e.State())
	raw, _ := s.snapshot()
	require.Equal(t, "not json", raw)
}

func TestUnlock_AuthenticatedButNotAGraph(t *testing.T) {
	s := newMemStore()
	salt := cryptox.NewSalt()
	key, err := cryptox.DeriveKey([]byte("pw"), salt)
	require.NoError(t, err)
	iv := make([]byte, cryptox.NonceSize)
	ct, err := cryptox.Seal(key, iv, []byte("plain text"))
	require.NoError(t, err)
	raw, err := envelope.Encode(iv, ct, salt)
	require.NoError(t, err)
	require.NoError(t, s.Set(context.Background(), DefaultKey, raw))

	e := newEngine(s)
	err = e.Unlock(context.Background(), []byte("pw"))
	require.ErrorIs(t, err, ErrMalformedEnvelope)
	require.NotErrorIs(t, err, ErrDecryptionFailed)
	require.False(t, e.IsUnlocked())
}

func TestUnlock_NullPayloadReusesSalt(t *testing.T) {
	s := newMemStore()
	salt := cryptox.NewSalt()
	raw, err := envelope.EncodeSaltOnly(salt)
	require.NoError(t, err)
	require.NoError(t, s.Set(context.Background(), DefaultKey, raw))

	e := unlocked(t, s, "pw")
	require.True(t, e.IsUnlocked())

	rec := decodeStored(t, s)
	require.Equal(t, salt, rec.Salt)
	require.True(t, rec.HasPayload())
}

func TestUnlock_NewerGraphVersionRejected(t *testing.T) {
	s := newMemStore()
	salt := cryptox.NewSalt()
	key, err := cryptox.DeriveKey([]byte("pw"), salt)
	require.NoError(t, err)
	ct, iv, err := cryptox.EncryptJSON(map[string]any{"version": 99, "patients": []any{}, "docs": []any{}}, key)
	require.NoError(t, err)
	raw, err := envelope.Encode(iv, ct, salt)
	require.NoError(t, err)
	require.NoError(t, s.Set(context.Background(), DefaultKey, raw))

	e := newEngine(s)
	require.ErrorIs(t, e.Unlock(context.Background(), []byte("pw")), models.ErrUnsupportedVersion)
	require.False(t, e.IsUnlocked())
}

func TestUnlock_MissingCollectionsNormalised(t *testing.T) {
	s := newMemStore()
	salt := cryptox.NewSalt()
	key, err := cryptox.DeriveKey([]byte("pw"), salt)
	require.NoError(t, err)
	ct, iv, err := cryptox.EncryptJSON(map[string]any{"version": 1}, key)
	require.NoError(t, err)
	raw, err := envelope.Encode(iv, ct, salt)
	require.NoError(t, err)
	require.NoError(t, s.Set(context.Background(), DefaultKey, raw))

	e := unlocked(t, s, "pw")
	ps, err := e.ListPatients()
	require.NoError(t, err)
	require.NotNil(t, ps)
	require.Empty(t, ps)
}

func TestLock_WipesStateKeepsRecord(t *testing.T) {
	s := newMemStore()
	e := unlocked(t, s, "pw")
	before, sets := s.snapshot()

	e.Lock(context.Background())
	e.Lock(context.Background())
	require.Equal(t, StateLocked, e.State())
	require.Nil(t, e.aeadKey)
	require.Nil(t, e.graph)

	after, setsAfter := s.snapshot()
	require.Equal(t, before, after)
	require.Equal(t, sets, setsAfter)
}

func TestRoundTrip(t *testing.T) {
	s := newMemStore()
	ctx := context.Background()
	e := unlocked(t, s, "pw")

	p, err := e.UpsertPatient(ctx, models.Patient{LastName: "Huber", FirstName: "Anna", DOB: "1980-01-02"})
	require.NoError(t, err)
	doc, err := models.Wrap("Sitzung", p.ID, models.Verlaufsnotiz{Datum: "2025-03-14", Thema: "Schlaf"})
	require.NoError(t, err)
	doc.Attachments = []models.Attachment{{Name: "scan.png", Type: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}}
	_, err = e.UpsertDocument(ctx, doc)
	require.NoError(t, err)

	want, err := e.ExportAll()
	require.NoError(t, err)
	e.Lock(ctx)

	other := unlocked(t, s, "pw")
	got, err := other.ExportAll()
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("graph changed across lock/unlock (-want +got):\n%s", diff)
	}
}

func TestRoundTrip_AfterIndentedImport(t *testing.T) {
	s := newMemStore()
	ctx := context.Background()
	e := unlocked(t, s, "pw")

	p, err := e.UpsertPatient(ctx, models.Patient{LastName: "Huber"})
	require.NoError(t, err)
	d, err := e.UpsertDocument(ctx, models.Document{
		PatientID: p.ID,
		Data:      json.RawMessage("{\n  \"text\": \"Befund <vorläufig> & offen\"\n}"),
	})
	require.NoError(t, err)
	require.Equal(t, `{"text":"Befund \u003cvorläufig\u003e \u0026 offen"}`, string(d.Data))

	data, err := e.ExportJSON()
	require.NoError(t, err)
	require.NoError(t, e.ImportJSON(ctx, data))

	want, err := e.ExportAll()
	require.NoError(t, err)
	e.Lock(ctx)
	require.NoError(t, e.Unlock(ctx, []byte("pw")))
	got, err := e.ExportAll()
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("graph changed across import and lock/unlock (-want +got):\n%s", diff)
	}
}

func TestSave_FreshIVStableSalt(t *testing.T) {
	s := newMemStore()
	ctx := context.Background()
	e := unlocked(t, s, "pw")
	first := decodeStored(t, s)

	seen := map[string]bool{string(first.IV): true}
	for i := 0; i < 20; i++ {
		_, err := e.UpsertPatient(ctx, models.Patient{LastName: "P"})
		require.NoError(t, err)
		rec := decodeStored(t, s)
		require.Equal(t, first.Salt, rec.Salt)
		require.False(t, seen[string(rec.IV)], "IV reused on save %d", i)
		seen[string(rec.IV)] = true
	}
}

func TestListPatients_SortedByteWiseStable(t *testing.T) {
	ctx := context.Background()
	e := unlocked(t, newMemStore(), "pw")
	for _, p := range []models.Patient{
		{ID: "1", LastName: "Zeller"},
		{ID: "2", LastName: "abel"},
		{ID: "3", LastName: "Müller", FirstName: "A"},
		{ID: "4", LastName: "Abel"},
		{ID: "5", LastName: "Müller", FirstName: "B"},
		{ID: "6", LastName: ""},
	} {
		_, err := e.UpsertPatient(ctx, p)
		require.NoError(t, err)
	}

	ps, err := e.ListPatients()
	require.NoError(t, err)
	var ids []string
	for _, p := range ps {
		ids = append(ids, p.ID)
	}
	require.Equal(t, []string{"6", "4", "3", "5", "1", "2"}, ids)
}

func TestUpsertPatient_InsertAndReplace(t *testing.T) {
	ctx := context.Background()
	clock := testNow
	e := New(newMemStore(), logging.Discard(), WithClock(func() time.Time { return clock }))
	require.NoError(t, e.Unlock(ctx, []byte("pw")))

	p, err := e.UpsertPatient(ctx, models.Patient{LastName: "Huber"})
	require.NoError(t, err)
	require.NotEmpty(t, p.ID)
	require.Equal(t, testNow, p.CreatedAt)
	require.Equal(t, testNow, p.UpdatedAt)

	clock = testNow.Add(time.Hour)
	p.Notes = "neu"
	p.Contact = ""
	updated, err := e.UpsertPatient(ctx, p)
	require.NoError(t, err)
	require.Equal(t, testNow, updated.CreatedAt)
	require.Equal(t, clock, updated.UpdatedAt)

	got, err := e.GetPatient(p.ID)
	require.NoError(t, err)
	require.Equal(t, updated, *got)

	ps, err := e.ListPatients()
	require.NoError(t, err)
	require.Len(t, ps, 1)

	_, err = e.GetPatient("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReads_ReturnCopies(t *testing.T) {
	ctx := context.Background()
	e := unlocked(t, newMemStore(), "pw")
	p, err := e.UpsertPatient(ctx, models.Patient{LastName: "Huber"})
	require.NoError(t, err)
	d, err := e.UpsertDocument(ctx, models.Document{PatientID: p.ID, Data: json.RawMessage(`{"text":"a"}`)})
	require.NoError(t, err)

	gp, err := e.GetPatient(p.ID)
	require.NoError(t, err)
	gp.LastName = "changed"

	gd, err := e.GetDocument(d.ID)
	require.NoError(t, err)
	gd.Data[2] = 'X'

	again, err := e.GetPatient(p.ID)
	require.NoError(t, err)
	require.Equal(t, "Huber", again.LastName)
	doc, err := e.GetDocument(d.ID)
	require.NoError(t, err)
	require.Equal(t, `{"text":"a"}`, string(doc.Data))
}

func TestUpsertDocument(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	e := unlocked(t, s, "pw")
	p, err := e.UpsertPatient(ctx, models.Patient{LastName: "Huber"})
	require.NoError(t, err)

	t.Run("unknown patient", func(t *testing.T) {
		_, sets := s.snapshot()
		_, err := e.UpsertDocument(ctx, models.Document{PatientID: "ghost"})
		require.ErrorIs(t, err, ErrUnknownPatient)
		_, setsAfter := s.snapshot()
		require.Equal(t, sets, setsAfter)
	})

	t.Run("defaults and attachments", func(t *testing.T) {
		d, err := e.UpsertDocument(ctx, models.Document{
			PatientID:   p.ID,
			Attachments: []models.Attachment{{Name: "a.txt", Data: []byte("hello")}},
		})
		require.NoError(t, err)
		require.NotEmpty(t, d.ID)
		require.Equal(t, models.KindFreeText, d.Kind)
		require.JSONEq(t, `{}`, string(d.Data))
		require.Len(t, d.Attachments, 1)
		require.NotEmpty(t, d.Attachments[0].ID)
		require.EqualValues(t, 5, d.Attachments[0].Size)
		require.Equal(t, testNow, d.Attachments[0].AddedAt)
	})

	t.Run("invalid data", func(t *testing.T) {
		_, sets := s.snapshot()
		_, err := e.UpsertDocument(ctx, models.Document{PatientID: p.ID, Data: json.RawMessage(`{"text":`)})
		require.ErrorIs(t, err, ErrInvalidDocument)
		require.ErrorIs(t, err, models.ErrInvalidData)
		_, setsAfter := s.snapshot()
		require.Equal(t, sets, setsAfter)
	})

	t.Run("replace keeps single entry", func(t *testing.T) {
		d, err := e.UpsertDocument(ctx, models.Document{PatientID: p.ID, Title: "v1"})
		require.NoError(t, err)
		d.Title = "v2"
		_, err = e.UpsertDocument(ctx, d)
		require.NoError(t, err)

		got, err := e.GetDocument(d.ID)
		require.NoError(t, err)
		require.Equal(t, "v2", got.Title)

		docs, err := e.ListDocumentsForPatient(p.ID)
		require.NoError(t, err)
		require.Len(t, docs, 2)
		require.Equal(t, "v2", docs[1].Title)
	})

	t.Run("delete", func(t *testing.T) {
		d, err := e.UpsertDocument(ctx, models.Document{PatientID: p.ID})
		require.NoError(t, err)
		require.NoError(t, e.DeleteDocument(ctx, d.ID))
		_, err = e.GetDocument(d.ID)
		require.ErrorIs(t, err, ErrNotFound)
		require.ErrorIs(t, e.DeleteDocument(ctx, d.ID), ErrNotFound)
	})
}

func TestDeletePatient_Cascades(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	e := unlocked(t, s, "pw")

	keep, err := e.UpsertPatient(ctx, models.Patient{LastName: "Bauer"})
	require.NoError(t, err)
	gone, err := e.UpsertPatient(ctx, models.Patient{LastName: "Huber"})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := e.UpsertDocument(ctx, models.Document{PatientID: gone.ID})
		require.NoError(t, err)
	}
	kept, err := e.UpsertDocument(ctx, models.Document{PatientID: keep.ID})
	require.NoError(t, err)

	_, setsBefore := s.snapshot()
	require.NoError(t, e.DeletePatient(ctx, gone.ID))
	_, setsAfter := s.snapshot()
	require.Equal(t, setsBefore+1, setsAfter)

	docs, err := e.ListDocumentsForPatient(gone.ID)
	require.NoError(t, err)
	require.Empty(t, docs)
	_, err = e.GetPatient(gone.ID)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = e.GetDocument(kept.ID)
	require.NoError(t, err)

	require.ErrorIs(t, e.DeletePatient(ctx, gone.ID), ErrNotFound)
	_, setsFinal := s.snapshot()
	require.Equal(t, setsAfter, setsFinal)
}

func TestLockedGuard(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	e := unlocked(t, s, "pw")
	p, err := e.UpsertPatient(ctx, models.Patient{LastName: "Huber"})
	require.NoError(t, err)
	e.Lock(ctx)
	before, sets := s.snapshot()

	checks := map[string]func() error{
		"ListPatients": func() error { _, err := e.ListPatients(); return err },
		"GetPatient":   func() error { _, err := e.GetPatient(p.ID); return err },
		"UpsertPatient": func() error {
			_, err := e.UpsertPatient(ctx, models.Patient{LastName: "X"})
			return err
		},
		"DeletePatient":           func() error { return e.DeletePatient(ctx, p.ID) },
		"ListDocumentsForPatient": func() error { _, err := e.ListDocumentsForPatient(p.ID); return err },
		"GetDocument":             func() error { _, err := e.GetDocument("d"); return err },
		"UpsertDocument": func() error {
			_, err := e.UpsertDocument(ctx, models.Document{PatientID: p.ID})
			return err
		},
		"DeleteDocument": func() error { return e.DeleteDocument(ctx, "d") },
		"ExportAll":      func() error { _, err := e.ExportAll(); return err },
		"ExportJSON":     func() error { _, err := e.ExportJSON(); return err },
		"ImportAll":      func() error { return e.ImportAll(ctx, models.NewGraph(testNow)) },
		"ImportJSON":     func() error { return e.ImportJSON(ctx, []byte(`{"patients":[],"docs":[]}`)) },
	}
	for name, fn := range checks {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, fn(), ErrVaultLocked)
		})
	}

	after, setsAfter := s.snapshot()
	require.Equal(t, before, after)
	require.Equal(t, sets, setsAfter)
}

func TestImport_ReplacesGraph(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	e := unlocked(t, s, "pw")
	_, err := e.UpsertPatient(ctx, models.Patient{LastName: "Alt"})
	require.NoError(t, err)

	g2 := &models.Graph{
		Version:   1,
		Patients:  []models.Patient{{ID: "p9", LastName: "Neu", CreatedAt: testNow, UpdatedAt: testNow}},
		Docs:      []models.Document{{ID: "d9", PatientID: "p9", Kind: models.KindFreeText, Data: json.RawMessage(`{"text":"x"}`), Attachments: []models.Attachment{}, CreatedAt: testNow, UpdatedAt: testNow}},
		CreatedAt: testNow.Add(-24 * time.Hour),
		UpdatedAt: testNow,
	}
	require.NoError(t, e.ImportAll(ctx, g2))

	got, err := e.ExportAll()
	require.NoError(t, err)
	if diff := cmp.Diff(g2, got); diff != "" {
		t.Fatalf("import is not a replace (-want +got):\n%s", diff)
	}

	g2.Patients[0].LastName = "mutated after import"
	p, err := e.GetPatient("p9")
	require.NoError(t, err)
	require.Equal(t, "Neu", p.LastName)
}

func TestImport_Invalid(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	e := unlocked(t, s, "pw")
	_, err := e.UpsertPatient(ctx, models.Patient{ID: "p1", LastName: "Bleibt"})
	require.NoError(t, err)
	before, sets := s.snapshot()

	cases := map[string]func() error{
		"nil graph":       func() error { return e.ImportAll(ctx, nil) },
		"nil patients":    func() error { return e.ImportAll(ctx, &models.Graph{Docs: []models.Document{}}) },
		"nil docs":        func() error { return e.ImportAll(ctx, &models.Graph{Patients: []models.Patient{}}) },
		"dangling doc":    func() error { return e.ImportJSON(ctx, []byte(`{"patients":[],"docs":[{"id":"d","patientId":"p1"}]}`)) },
		"bad json":        func() error { return e.ImportJSON(ctx, []byte(`{"patients":`)) },
		"missing docs":    func() error { return e.ImportJSON(ctx, []byte(`{"patients":[]}`)) },
		"future version":  func() error { return e.ImportJSON(ctx, []byte(`{"version":5,"patients":[],"docs":[]}`)) },
		"docs not a list": func() error { return e.ImportJSON(ctx, []byte(`{"patients":[],"docs":{}}`)) },
		"doc data not json": func() error {
			return e.ImportAll(ctx, &models.Graph{
				Patients: []models.Patient{{ID: "p2"}},
				Docs:     []models.Document{{ID: "d", PatientID: "p2", Data: json.RawMessage(`{"text":`)}},
			})
		},
		"duplicate patient id": func() error {
			return e.ImportJSON(ctx, []byte(`{"patients":[{"id":"p2"},{"id":"p2"}],"docs":[]}`))
		},
		"duplicate document id": func() error {
			return e.ImportJSON(ctx, []byte(`{"patients":[{"id":"p2"}],"docs":[{"id":"d","patientId":"p2"},{"id":"d","patientId":"p2"}]}`))
		},
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, fn(), ErrInvalidImport)
		})
	}

	p, err := e.GetPatient("p1")
	require.NoError(t, err)
	require.Equal(t, "Bleibt", p.LastName)
	after, setsAfter := s.snapshot()
	require.Equal(t, before, after)
	require.Equal(t, sets, setsAfter)
}

func TestExportJSON_ImportJSON(t *testing.T) {
	ctx := context.Background()
	src := unlocked(t, newMemStore(), "a")
	p, err := src.UpsertPatient(ctx, models.Patient{LastName: "Huber"})
	require.NoError(t, err)
	_, err = src.UpsertDocument(ctx, models.Document{PatientID: p.ID, Attachments: []models.Attachment{{Name: "x", Data: []byte("abc")}}})
	require.NoError(t, err)

	data, err := src.ExportJSON()
	require.NoError(t, err)
	require.Contains(t, string(data), "\n  \"patients\"")
	require.Contains(t, string(data), `"b64": "YWJj"`)

	dst := unlocked(t, newMemStore(), "b")
	require.NoError(t, dst.ImportJSON(ctx, data))

	want, err := src.ExportAll()
	require.NoError(t, err)
	got, err := dst.ExportAll()
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestSaveFailure_LeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	ms := &mockStore{}
	diskFull := errors.New("disk full")
	ms.On("Get", mock.Anything, DefaultKey).Return(nil, nil).Once()
	ms.On("Set", mock.Anything, DefaultKey, mock.Anything).Return(nil).Once()
	ms.On("Set", mock.Anything, DefaultKey, mock.Anything).Return(diskFull).Once()
	ms.On("Set", mock.Anything, DefaultKey, mock.Anything).Return(nil).Once()

	e := newEngine(ms)
	require.NoError(t, e.Unlock(ctx, []byte("pw")))

	_, err := e.UpsertPatient(ctx, models.Patient{LastName: "Huber"})
	require.ErrorIs(t, err, diskFull)
	ps, err := e.ListPatients()
	require.NoError(t, err)
	require.Empty(t, ps)

	_, err = e.UpsertPatient(ctx, models.Patient{LastName: "Huber"})
	require.NoError(t, err)
	ps, err = e.ListPatients()
	require.NoError(t, err)
	require.Len(t, ps, 1)

	ms.AssertExpectations(t)
}

func TestUnlock_InitialSaveFailureStaysLocked(t *testing.T) {
	ms := &mockStore{}
	ms.On("Get", mock.Anything, DefaultKey).Return(nil, nil)
	ms.On("Set", mock.Anything, DefaultKey, mock.Anything).Return(errors.New("quota"))

	e := newEngine(ms)
	require.Error(t, e.Unlock(context.Background(), []byte("pw")))
	require.False(t, e.IsUnlocked())
}

func TestUnlock_StoreReadError(t *testing.T) {
	ms := &mockStore{}
	ms.On("Get", mock.Anything, "custom").Return(nil, errors.New("io"))

	e := New(ms, logging.Discard(), WithKey("custom"))
	require.Error(t, e.Unlock(context.Background(), []byte("pw")))
	require.False(t, e.IsUnlocked())
	ms.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
}

func TestEngines_AreIndependent(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	a := New(s, logging.Discard(), WithKey("a"))
	b := New(s, logging.Discard(), WithKey("b"))
	require.NoError(t, a.Unlock(ctx, []byte("one")))
	require.NoError(t, b.Unlock(ctx, []byte("two")))

	_, err := a.UpsertPatient(ctx, models.Patient{LastName: "A"})
	require.NoError(t, err)
	ps, err := b.ListPatients()
	require.NoError(t, err)
	require.Empty(t, ps)

	a.Lock(ctx)
	require.True(t, b.IsUnlocked())
}

func TestConcurrentUpserts_NoLostWrites(t *testing.T) {
	ctx := context.Background()
	e := unlocked(t, newMemStore(), "pw")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.UpsertPatient(ctx, models.Patient{LastName: "P"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	ps, err := e.ListPatients()
	require.NoError(t, err)
	require.Len(t, ps, 8)
}

func TestScenario_CorrectHorse(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	e := newEngine(s)

	require.NoError(t, e.Unlock(ctx, []byte("correct horse")))
	rec := decodeStored(t, s)
	require.True(t, rec.HasPayload())

	p, err := e.UpsertPatient(ctx, models.Patient{LastName: "Huber", FirstName: "Anna"})
	require.NoError(t, err)
	ps, err := e.ListPatients()
	require.NoError(t, err)
	require.Len(t, ps, 1)

	d, err := e.UpsertDocument(ctx, models.Document{Kind: models.KindVerlaufsnotiz, PatientID: p.ID})
	require.NoError(t, err)
	docs, err := e.ListDocumentsForPatient(p.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	e.Lock(ctx)
	require.ErrorIs(t, e.Unlock(ctx, []byte("wrong")), ErrDecryptionFailed)
	require.False(t, e.IsUnlocked())

	require.NoError(t, e.Unlock(ctx, []byte("correct horse")))
	gotP, err := e.GetPatient(p.ID)
	require.NoError(t, err)
	require.Equal(t, p, *gotP)
	gotD, err := e.GetDocument(d.ID)
	require.NoError(t, err)
	require.Equal(t, d, *gotD)
}
