package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/dmitrijs2005/praxisdoku/internal/models"
)

// Patients lists all patients sorted by name.
func (a *App) Patients(ctx context.Context, _ []string) error {
	list, err := a.vault.ListPatients()
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No patients yet. Use 'addpatient'.")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDOB\tCODE")
	for _, p := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", shortID(p.ID), p.DisplayName(), p.DOB, p.Code)
	}
	return tw.Flush()
}

// resolvePatient turns a (possibly shortened) patient id into a full one.
func (a *App) resolvePatient(ref string) (string, error) {
	list, err := a.vault.ListPatients()
	if err != nil {
		return "", err
	}
	ids := make([]string, len(list))
	for i, p := range list {
		ids[i] = p.ID
	}
	return resolveID(ref, ids)
}

// editPatient prompts for every patient field, offering the current values.
func (a *App) editPatient(p *models.Patient) error {
	fields := []struct {
		label string
		dst   *string
	}{
		{"Last name", &p.LastName},
		{"First name", &p.FirstName},
		{"Date of birth (YYYY-MM-DD)", &p.DOB},
		{"Code", &p.Code},
		{"Contact", &p.Contact},
		{"Notes", &p.Notes},
	}
	for _, f := range fields {
		v, err := a.promptDefault(f.label, *f.dst)
		if err != nil {
			return err
		}
		*f.dst = v
	}
	return nil
}

// AddPatient collects patient fields and stores a new patient.
func (a *App) AddPatient(ctx context.Context, _ []string) error {
	var p models.Patient
	if err := a.editPatient(&p); err != nil {
		return err
	}
	saved, err := a.vault.UpsertPatient(ctx, p)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Patient %s saved (%s).\n", saved.DisplayName(), shortID(saved.ID))
	return nil
}

// EditPatient updates an existing patient.
func (a *App) EditPatient(ctx context.Context, args []string) error {
	ref, err := argOrPrompt(a, args, 0, "Patient ID")
	if err != nil {
		return err
	}
	id, err := a.resolvePatient(ref)
	if err != nil {
		return err
	}
	p, err := a.vault.GetPatient(id)
	if err != nil {
		return err
	}
	if err := a.editPatient(p); err != nil {
		return err
	}
	saved, err := a.vault.UpsertPatient(ctx, *p)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Patient %s updated.\n", saved.DisplayName())
	return nil
}

// DeletePatient removes a patient together with all their documents after
// confirmation.
func (a *App) DeletePatient(ctx context.Context, args []string) error {
	ref, err := argOrPrompt(a, args, 0, "Patient ID")
	if err != nil {
		return err
	}
	id, err := a.resolvePatient(ref)
	if err != nil {
		return err
	}
	p, err := a.vault.GetPatient(id)
	if err != nil {
		return err
	}
	docs, err := a.vault.ListDocumentsForPatient(id)
	if err != nil {
		return err
	}

	ok, err := a.confirm(fmt.Sprintf("Delete %s and %d document(s)?", p.DisplayName(), len(docs)))
	if err != nil || !ok {
		return err
	}
	if err := a.vault.DeletePatient(ctx, id); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Patient deleted.")
	return nil
}
