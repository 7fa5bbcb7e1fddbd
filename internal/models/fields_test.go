package models

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFields_OrderAndNesting(t *testing.T) {
	doc := Document{Data: json.RawMessage(`{"z":"1","a":{"y":"2","b":"3"},"n":4,"flag":true,"none":null,"list":["x"]}`)}
	fields, err := doc.Fields()
	require.NoError(t, err)
	require.Equal(t, []Field{
		{Path: "z", Value: "1"},
		{Path: "a.y", Value: "2"},
		{Path: "a.b", Value: "3"},
		{Path: "n", Value: "4"},
		{Path: "flag", Value: "true"},
		{Path: "none", Value: ""},
		{Path: "list", Value: `["x"]`},
	}, fields)
}

func TestFields_Empty(t *testing.T) {
	fields, err := Document{}.Fields()
	require.NoError(t, err)
	require.Empty(t, fields)

	_, err = Document{Data: json.RawMessage(`{"a":`)}.Fields()
	require.Error(t, err)
}

func TestSetFields_TypedKeepsOrder(t *testing.T) {
	doc, err := NewDocument(KindBefund, "p1", fixedNow)
	require.NoError(t, err)

	require.NoError(t, doc.SetFields(map[string]string{
		"anlass":                "Schlafstörung",
		"diagnostik.verfahren":  "Interview",
		"diagnostik.ergebnisse": "unauffällig",
	}))

	out, err := doc.Unwrap()
	require.NoError(t, err)
	b := out.(Befund)
	require.Equal(t, "Schlafstörung", b.Anlass)
	require.Equal(t, "Interview", b.Diagnostik.Verfahren)
	require.Equal(t, "unauffällig", b.Diagnostik.Ergebnisse)
	require.Equal(t, "2025-03-14", b.Datum)

	fields, err := doc.Fields()
	require.NoError(t, err)
	require.Equal(t, "datum", fields[0].Path)
	require.Equal(t, "diagnostik.verfahren", fields[3].Path)
}

func TestSetFields_UnknownKindCreatesPath(t *testing.T) {
	doc := Document{Kind: "Eigene", Data: json.RawMessage(`{"a":"1"}`)}
	require.NoError(t, doc.SetFields(map[string]string{"b.c": "2"}))
	require.JSONEq(t, `{"a":"1","b":{"c":"2"}}`, string(doc.Data))
}

func TestSetFields_Errors(t *testing.T) {
	doc := Document{Kind: "Eigene", Data: json.RawMessage(`{"a":"1"}`)}
	require.ErrorIs(t, doc.SetFields(map[string]string{"a.b": "x"}), ErrInvalidField)
	require.ErrorIs(t, doc.SetFields(map[string]string{"a..b": "x"}), ErrInvalidField)

	typed, err := NewDocument(KindBefund, "p1", fixedNow)
	require.NoError(t, err)
	require.ErrorIs(t, typed.SetFields(map[string]string{"diagnostik": "flat"}), ErrInvalidField)
}

func TestAttachmentFromFile(t *testing.T) {
	dir := t.TempDir()

	txt := filepath.Join(dir, "brief.txt")
	require.NoError(t, os.WriteFile(txt, []byte("hallo"), 0o600))
	a, err := AttachmentFromFile(txt, fixedNow)
	require.NoError(t, err)
	require.Equal(t, "brief.txt", a.Name)
	require.Contains(t, a.Type, "text/plain")
	require.EqualValues(t, 5, a.Size)
	require.Equal(t, fixedNow, a.AddedAt)
	require.NotEmpty(t, a.ID)

	noext := filepath.Join(dir, "scan")
	require.NoError(t, os.WriteFile(noext, []byte("%PDF-1.4\n"), 0o600))
	a, err = AttachmentFromFile(noext, fixedNow)
	require.NoError(t, err)
	require.Equal(t, "application/pdf", a.Type)

	_, err = AttachmentFromFile(filepath.Join(dir, "missing"), fixedNow)
	require.Error(t, err)
}
