package cli

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/dmitrijs2005/praxisdoku/internal/models"
)

// Kinds prints the document templates with their descriptions.
func (a *App) Kinds(ctx context.Context, _ []string) error {
	for i, k := range models.Kinds() {
		fmt.Fprintf(a.out, "%2d) %s\n    %s\n", i+1, k, models.Describe(k))
	}
	return nil
}

// Docs lists the documents of one patient in creation order.
func (a *App) Docs(ctx context.Context, args []string) error {
	ref, err := argOrPrompt(a, args, 0, "Patient ID")
	if err != nil {
		return err
	}
	pid, err := a.resolvePatient(ref)
	if err != nil {
		return err
	}
	docs, err := a.vault.ListDocumentsForPatient(pid)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Fprintln(a.out, "No documents for this patient. Use 'adddoc'.")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tKIND\tFILES\tUPDATED")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", shortID(d.ID), d.Title, d.Kind, len(d.Attachments), formatTime(d.UpdatedAt))
	}
	return tw.Flush()
}

// resolveDocument turns a (possibly shortened) document id into the stored
// document. Documents of all patients are searched.
func (a *App) resolveDocument(ref string) (*models.Document, error) {
	patients, err := a.vault.ListPatients()
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, p := range patients {
		docs, err := a.vault.ListDocumentsForPatient(p.ID)
		if err != nil {
			return nil, err
		}
		for _, d := range docs {
			ids = append(ids, d.ID)
		}
	}
	id, err := resolveID(ref, ids)
	if err != nil {
		return nil, err
	}
	return a.vault.GetDocument(id)
}

// chooseKind asks for a template by number or name. An empty answer
// selects free text.
func (a *App) chooseKind() (models.DocKind, error) {
	kinds := models.Kinds()
	for i, k := range kinds {
		fmt.Fprintf(a.out, "%2d) %s\n", i+1, k)
	}
	v, err := getSimpleText(a.reader, "Template number (empty for free text)", a.out)
	if err != nil {
		return "", err
	}
	if v == "" {
		return models.KindFreeText, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		if n < 1 || n > len(kinds) {
			return "", fmt.Errorf("template number must be between 1 and %d", len(kinds))
		}
		return kinds[n-1], nil
	}
	for _, k := range kinds {
		if string(k) == v {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown template %q", v)
}

// promptField asks for a single document field. Answering "+" switches to
// multi-line input.
func (a *App) promptField(label, current string) (string, error) {
	v, err := a.promptDefault(label, current)
	if err != nil {
		return "", err
	}
	if v != "+" {
		return v, nil
	}
	return GetMultiline(a.reader, label, a.out)
}

// editFields walks the document body and applies the changed leaves.
func (a *App) editFields(d *models.Document) error {
	title, err := a.promptDefault("Title", d.Title)
	if err != nil {
		return err
	}
	d.Title = title

	fields, err := d.Fields()
	if err != nil {
		return err
	}
	if len(fields) > 0 {
		fmt.Fprintln(a.out, "Enter keeps a value, '-' clears it, '+' starts multi-line input.")
	}
	changed := make(map[string]string)
	for _, f := range fields {
		v, err := a.promptField(f.Path, f.Value)
		if err != nil {
			return err
		}
		if v != f.Value {
			changed[f.Path] = v
		}
	}
	if len(changed) == 0 {
		return nil
	}
	return d.SetFields(changed)
}

// AddDoc creates a document from a template for a patient.
func (a *App) AddDoc(ctx context.Context, args []string) error {
	ref, err := argOrPrompt(a, args, 0, "Patient ID")
	if err != nil {
		return err
	}
	pid, err := a.resolvePatient(ref)
	if err != nil {
		return err
	}
	kind, err := a.chooseKind()
	if err != nil {
		return err
	}
	d, err := models.NewDocument(kind, pid, a.now())
	if err != nil {
		return err
	}
	if err := a.editFields(&d); err != nil {
		return err
	}
	saved, err := a.vault.UpsertDocument(ctx, d)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Document %q saved (%s).\n", saved.Title, shortID(saved.ID))
	return nil
}

// ShowDoc prints a document with its fields and attachments.
func (a *App) ShowDoc(ctx context.Context, args []string) error {
	ref, err := argOrPrompt(a, args, 0, "Document ID")
	if err != nil {
		return err
	}
	d, err := a.resolveDocument(ref)
	if err != nil {
		return err
	}
	patient := "?"
	if p, err := a.vault.GetPatient(d.PatientID); err == nil {
		patient = p.DisplayName()
	}

	fmt.Fprintf(a.out, "%s\n", d.Title)
	fmt.Fprintf(a.out, "  Kind:    %s\n", d.Kind)
	fmt.Fprintf(a.out, "  Patient: %s\n", patient)
	fmt.Fprintf(a.out, "  Created: %s  Updated: %s\n", formatTime(d.CreatedAt), formatTime(d.UpdatedAt))

	fields, err := d.Fields()
	if err != nil {
		return err
	}
	for _, f := range fields {
		fmt.Fprintf(a.out, "%s:\n  %s\n", f.Path, f.Value)
	}

	if len(d.Attachments) > 0 {
		fmt.Fprintln(a.out, "Attachments:")
		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		for _, att := range d.Attachments {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%d bytes\n", shortID(att.ID), att.Name, att.Type, att.Size)
		}
		return tw.Flush()
	}
	return nil
}

// EditDoc updates title and fields of a document.
func (a *App) EditDoc(ctx context.Context, args []string) error {
	ref, err := argOrPrompt(a, args, 0, "Document ID")
	if err != nil {
		return err
	}
	d, err := a.resolveDocument(ref)
	if err != nil {
		return err
	}
	if err := a.editFields(d); err != nil {
		return err
	}
	if _, err := a.vault.UpsertDocument(ctx, *d); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Document updated.")
	return nil
}

// DeleteDoc removes a document after confirmation.
func (a *App) DeleteDoc(ctx context.Context, args []string) error {
	ref, err := argOrPrompt(a, args, 0, "Document ID")
	if err != nil {
		return err
	}
	d, err := a.resolveDocument(ref)
	if err != nil {
		return err
	}
	ok, err := a.confirm(fmt.Sprintf("Delete document %q?", d.Title))
	if err != nil || !ok {
		return err
	}
	if err := a.vault.DeleteDocument(ctx, d.ID); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Document deleted.")
	return nil
}
