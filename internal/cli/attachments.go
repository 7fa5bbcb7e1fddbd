package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dmitrijs2005/praxisdoku/internal/filex"
	"github.com/dmitrijs2005/praxisdoku/internal/models"
)

// Attach reads a local file into a document. The bytes are stored inside
// the vault and never written unencrypted by this command.
func (a *App) Attach(ctx context.Context, args []string) error {
	ref, err := argOrPrompt(a, args, 0, "Document ID")
	if err != nil {
		return err
	}
	d, err := a.resolveDocument(ref)
	if err != nil {
		return err
	}
	path, err := argOrPrompt(a, args, 1, "File path")
	if err != nil {
		return err
	}
	att, err := models.AttachmentFromFile(path, a.now())
	if err != nil {
		return err
	}
	d.Attachments = append(d.Attachments, att)
	if _, err := a.vault.UpsertDocument(ctx, *d); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Attached %s (%s, %d bytes).\n", att.Name, att.Type, att.Size)
	return nil
}

// attachmentArgs resolves the document and attachment named by args.
func (a *App) attachmentArgs(args []string) (*models.Document, int, error) {
	ref, err := argOrPrompt(a, args, 0, "Document ID")
	if err != nil {
		return nil, -1, err
	}
	d, err := a.resolveDocument(ref)
	if err != nil {
		return nil, -1, err
	}
	attRef, err := argOrPrompt(a, args, 1, "Attachment ID")
	if err != nil {
		return nil, -1, err
	}
	ids := make([]string, len(d.Attachments))
	for i, att := range d.Attachments {
		ids[i] = att.ID
	}
	id, err := resolveID(attRef, ids)
	if err != nil {
		return nil, -1, err
	}
	return d, d.FindAttachment(id), nil
}

// SaveAttachment writes an attachment to the export directory.
func (a *App) SaveAttachment(ctx context.Context, args []string) error {
	d, i, err := a.attachmentArgs(args)
	if err != nil {
		return err
	}
	att := d.Attachments[i]
	name := filepath.Base(att.Name)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = att.ID
	}
	path, err := filex.WriteFile(a.config.ExportDir, name, att.Data)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Saved to %s\n", path)
	return nil
}

// DeleteAttachment removes an attachment from its document.
func (a *App) DeleteAttachment(ctx context.Context, args []string) error {
	d, i, err := a.attachmentArgs(args)
	if err != nil {
		return err
	}
	ok, err := a.confirm(fmt.Sprintf("Remove attachment %s?", d.Attachments[i].Name))
	if err != nil || !ok {
		return err
	}
	d.Attachments = append(d.Attachments[:i], d.Attachments[i+1:]...)
	if _, err := a.vault.UpsertDocument(ctx, *d); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Attachment removed.")
	return nil
}
