package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/praxisdoku/internal/common"
	"github.com/dmitrijs2005/praxisdoku/internal/filex"
)

// exportName is the default file name for a full vault export.
func (a *App) exportName() string {
	return fmt.Sprintf("praxisdoku_export_%s.json", a.now().Format("2006-01-02"))
}

// Export writes the decrypted graph as JSON to the export directory.
// The file is a plaintext backup and should be handled accordingly.
func (a *App) Export(ctx context.Context, args []string) error {
	name := a.exportName()
	if len(args) > 0 {
		name = args[0]
	}
	data, err := a.vault.ExportJSON()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(data)

	path, err := filex.WriteFile(a.config.ExportDir, name, data)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Exported to %s (unencrypted).\n", path)
	return nil
}

// Import replaces the vault content with a previously exported graph.
func (a *App) Import(ctx context.Context, args []string) error {
	path, err := argOrPrompt(a, args, 0, "File to import")
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(data)

	ok, err := a.confirm("Replace ALL patients and documents with the file content?")
	if err != nil || !ok {
		return err
	}
	if err := a.vault.ImportJSON(ctx, data); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Import complete.")
	return nil
}
