package cli

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/praxisdoku/internal/befund"
	"github.com/dmitrijs2005/praxisdoku/internal/filex"
)

// exportAllCasesName is the file name used for a full case export.
const exportAllCasesName = "befund_export_all.json"

// Cases lists saved cases, most recently updated first. Optional arguments
// form a search query over name, setting and date.
func (a *App) Cases(ctx context.Context, args []string) error {
	list, err := a.cases.List(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No cases found.")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCLIENT\tDATE\tSETTING\tUPDATED")
	for _, c := range list {
		name := c.ClientName
		if name == "" {
			name = "(ohne Namen)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", shortID(c.ID), name, c.Date, oneLine(c.Setting), formatTime(c.UpdatedAt))
	}
	return tw.Flush()
}

// resolveCase turns a (possibly shortened) case id into a full one.
func (a *App) resolveCase(ctx context.Context, ref string) (string, error) {
	list, err := a.cases.List(ctx, "")
	if err != nil {
		return "", err
	}
	ids := make([]string, len(list))
	for i, c := range list {
		ids[i] = c.ID
	}
	return resolveID(ref, ids)
}

// NewCase discards the current draft and starts an empty one.
func (a *App) NewCase(ctx context.Context, _ []string) error {
	if _, err := a.cases.ResetDraft(ctx); err != nil {
		return err
	}
	a.currentCaseID = ""
	fmt.Fprintln(a.out, "New case draft started. Use 'editcase' to fill it in.")
	return nil
}

// EditCase walks through the draft fields and stores the result as the
// new draft.
func (a *App) EditCase(ctx context.Context, _ []string) error {
	draft, err := a.cases.Draft(ctx)
	if err != nil {
		return err
	}

	fields := []struct {
		label string
		dst   *string
	}{
		{"Klient:in", &draft.ClientName},
		{"Geburtsdatum", &draft.DOB},
		{"Datum (YYYY-MM-DD)", &draft.Date},
		{"Setting", &draft.Setting},
		{"Fragestellung", &draft.Question},
		{"Methoden", &draft.Methods},
		{"DSDS", &draft.DSDS},
		{"DTIM", &draft.DTIM},
	}
	fmt.Fprintln(a.out, "Enter keeps a value, '-' clears it, '+' starts multi-line input.")
	for _, f := range fields {
		v, err := a.promptField(f.label, *f.dst)
		if err != nil {
			return err
		}
		*f.dst = v
	}

	for i := range draft.Domains {
		d := &draft.Domains[i]
		v, err := a.promptField(fmt.Sprintf("%d) %s", i+1, d.Title), d.Text)
		if err != nil {
			return err
		}
		d.Text = v
	}
	if draft.Domains, err = a.editDomainList(draft.Domains); err != nil {
		return err
	}

	for _, f := range []struct {
		label string
		dst   *string
	}{
		{"Zusammenfassung", &draft.Summary},
		{"Empfehlungen", &draft.Recommendations},
	} {
		v, err := a.promptField(f.label, *f.dst)
		if err != nil {
			return err
		}
		*f.dst = v
	}

	if err := a.cases.SaveDraft(ctx, draft); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Draft saved. Use 'savecase' to store it as a case.")
	return nil
}

// editDomainList offers removing areas by number and adding new ones.
func (a *App) editDomainList(domains []befund.Domain) ([]befund.Domain, error) {
	v, err := getSimpleText(a.reader, "Remove areas (numbers separated by spaces, empty for none)", a.out)
	if err != nil {
		return nil, err
	}
	var drop []int
	for _, tok := range strings.Fields(v) {
		n, err := strconv.Atoi(tok)
		if err != nil || n < 1 || n > len(domains) {
			return nil, fmt.Errorf("invalid area number %q", tok)
		}
		drop = append(drop, n-1)
	}
	kept := make([]befund.Domain, 0, len(domains))
	for i, d := range domains {
		if !slices.Contains(drop, i) {
			kept = append(kept, d)
		}
	}

	for {
		title, err := getSimpleText(a.reader, "New area title (empty to finish)", a.out)
		if err != nil {
			return nil, err
		}
		if title == "" {
			return kept, nil
		}
		d := befund.NewDomain()
		d.Title = title
		if d.Text, err = a.promptField(title, ""); err != nil {
			return nil, err
		}
		kept = append(kept, d)
	}
}

// SaveCase stores the draft as a case. A draft opened from a saved case
// updates that case, otherwise a new case is created.
func (a *App) SaveCase(ctx context.Context, _ []string) error {
	draft, err := a.cases.Draft(ctx)
	if err != nil {
		return err
	}
	draft.ID = a.currentCaseID
	saved, err := a.cases.Save(ctx, draft)
	if err != nil {
		return err
	}
	a.currentCaseID = saved.ID
	fmt.Fprintf(a.out, "Case saved (%s).\n", shortID(saved.ID))
	return nil
}

// OpenCase loads a saved case into the draft.
func (a *App) OpenCase(ctx context.Context, args []string) error {
	ref, err := argOrPrompt(a, args, 0, "Case ID")
	if err != nil {
		return err
	}
	id, err := a.resolveCase(ctx, ref)
	if err != nil {
		return err
	}
	c, err := a.cases.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := a.cases.SaveDraft(ctx, *c); err != nil {
		return err
	}
	a.currentCaseID = c.ID
	fmt.Fprintf(a.out, "Case %s loaded into the draft.\n", shortID(c.ID))
	return nil
}

// ShowCase prints the narrative of a saved case, or of the draft when no
// id is given.
func (a *App) ShowCase(ctx context.Context, args []string) error {
	var c befund.Case
	if len(args) == 0 {
		draft, err := a.cases.Draft(ctx)
		if err != nil {
			return err
		}
		c = draft
	} else {
		id, err := a.resolveCase(ctx, args[0])
		if err != nil {
			return err
		}
		saved, err := a.cases.Get(ctx, id)
		if err != nil {
			return err
		}
		c = *saved
	}
	fmt.Fprintln(a.out, befund.BuildNarrative(c))
	return nil
}

// DeleteCase removes a case, by default the one the draft was opened from.
func (a *App) DeleteCase(ctx context.Context, args []string) error {
	ref := a.currentCaseID
	if len(args) > 0 {
		ref = args[0]
	}
	if ref == "" {
		return errUsage
	}
	id, err := a.resolveCase(ctx, ref)
	if err != nil {
		return err
	}
	ok, err := a.confirm(fmt.Sprintf("Delete case %s?", shortID(id)))
	if err != nil || !ok {
		return err
	}
	if err := a.cases.Delete(ctx, id); err != nil {
		return err
	}
	a.currentCaseID = ""
	fmt.Fprintln(a.out, "Case deleted.")
	return nil
}

// DeleteAllCases removes every case and resets the draft.
func (a *App) DeleteAllCases(ctx context.Context, _ []string) error {
	ok, err := a.confirm("Delete ALL cases?")
	if err != nil || !ok {
		return err
	}
	if err := a.cases.DeleteAll(ctx); err != nil {
		return err
	}
	a.currentCaseID = ""
	fmt.Fprintln(a.out, "All cases deleted.")
	return nil
}

// ExportCases writes one case, or all cases when no id is given, to the
// export directory.
func (a *App) ExportCases(ctx context.Context, args []string) error {
	var (
		data []byte
		name = exportAllCasesName
		err  error
	)
	if len(args) > 0 {
		id, err := a.resolveCase(ctx, args[0])
		if err != nil {
			return err
		}
		data, name, err = a.cases.ExportCase(ctx, id)
		if err != nil {
			return err
		}
	} else if data, err = a.cases.ExportAll(ctx); err != nil {
		return err
	}

	path, err := filex.WriteFile(a.config.ExportDir, name, data)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Exported to %s\n", path)
	return nil
}

// ImportCases replaces all cases with the content of a file.
func (a *App) ImportCases(ctx context.Context, args []string) error {
	path, err := argOrPrompt(a, args, 0, "File to import")
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	ok, err := a.confirm("Replace ALL cases with the file content?")
	if err != nil || !ok {
		return err
	}
	n, err := a.cases.Import(ctx, data)
	if err != nil {
		return err
	}
	a.currentCaseID = ""
	fmt.Fprintf(a.out, "%d case(s) imported.\n", n)
	return nil
}
