// Package models defines the PraxisDoku document graph: patients, their
// documents and attachments, and the root object that is encrypted as one
// unit inside the vault.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// GraphVersion is the current document graph schema version.
const GraphVersion = 1

var (
	ErrUnsupportedVersion = errors.New("unsupported graph version")
	ErrInvalidData        = errors.New("document data is not valid JSON")
)

// Graph is the decrypted vault content.
type Graph struct {
	Version   int        `json:"version"`
	Patients  []Patient  `json:"patients"`
	Docs      []Document `json:"docs"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Patient is owned by the graph and referenced from documents by ID.
type Patient struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	DOB       string    `json:"dob"`
	Contact   string    `json:"contact"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DisplayName returns "LastName, FirstName" with empty parts left out.
func (p Patient) DisplayName() string {
	switch {
	case p.LastName == "" && p.FirstName == "":
		return "(ohne Namen)"
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.LastName + ", " + p.FirstName
}

// Document belongs to exactly one patient. Data holds the kind-specific
// fields as a JSON object; see Wrap and Unwrap for typed access.
type Document struct {
	ID          string          `json:"id"`
	PatientID   string          `json:"patientId"`
	Kind        DocKind         `json:"kind"`
	Title       string          `json:"title"`
	Data        json.RawMessage `json:"data"`
	Attachments []Attachment    `json:"attachments"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Attachment is a binary file stored inline in its document.
// Data is serialized as standard base64 under the "b64" key.
type Attachment struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Type    string    `json:"type"`
	Size    int64     `json:"size"`
	AddedAt time.Time `json:"addedAt"`
	Data    []byte    `json:"b64"`
}

// NewGraph returns an empty graph stamped with now.
func NewGraph(now time.Time) *Graph {
	return &Graph{
		Version:   GraphVersion,
		Patients:  []Patient{},
		Docs:      []Document{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy of the document, including attachment bytes.
func (d Document) Clone() Document {
	out := d
	if d.Data != nil {
		out.Data = append(json.RawMessage(nil), d.Data...)
	}
	if d.Attachments != nil {
		out.Attachments = make([]Attachment, len(d.Attachments))
		for i, a := range d.Attachments {
			out.Attachments[i] = a
			if a.Data != nil {
				out.Attachments[i].Data = append([]byte(nil), a.Data...)
			}
		}
	}
	return out
}

// Clone returns a deep copy of g. Nothing in the copy shares memory with g.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		Version:   g.Version,
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}
	if g.Patients != nil {
		out.Patients = append([]Patient(nil), g.Patients...)
		if out.Patients == nil {
			out.Patients = []Patient{}
		}
	}
	if g.Docs != nil {
		out.Docs = make([]Document, len(g.Docs))
		for i, d := range g.Docs {
			out.Docs[i] = d.Clone()
		}
	}
	return out
}

// Migrate upgrades g in place to GraphVersion and fills missing collections.
// Graphs written by a newer release are rejected.
func (g *Graph) Migrate() error {
	switch {
	case g.Version > GraphVersion:
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, g.Version)
	case g.Version == 0:
		g.Version = GraphVersion
	}
	if g.Patients == nil {
		g.Patients = []Patient{}
	}
	if g.Docs == nil {
		g.Docs = []Document{}
	}
	for i := range g.Docs {
		if g.Docs[i].Attachments == nil {
			g.Docs[i].Attachments = []Attachment{}
		}
		if err := g.Docs[i].NormalizeData(); err != nil {
			return err
		}
	}
	return nil
}

// NormalizeData rewrites Data in the encoding it gets when the graph is
// sealed: compact, HTML-escaped JSON. Empty data becomes {}.
func (d *Document) NormalizeData() error {
	if len(d.Data) == 0 {
		d.Data = json.RawMessage("{}")
		return nil
	}
	b, err := json.Marshal(d.Data)
	if err != nil {
		return fmt.Errorf("%w: document %q", ErrInvalidData, d.ID)
	}
	d.Data = b
	return nil
}

// FindPatient returns the index of the patient with id, or -1.
func (g *Graph) FindPatient(id string) int {
	for i := range g.Patients {
		if g.Patients[i].ID == id {
			return i
		}
	}
	return -1
}

// FindDocument returns the index of the document with id, or -1.
func (g *Graph) FindDocument(id string) int {
	for i := range g.Docs {
		if g.Docs[i].ID == id {
			return i
		}
	}
	return -1
}
