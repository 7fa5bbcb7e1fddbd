package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/praxisdoku/internal/services"
	"github.com/dmitrijs2005/praxisdoku/internal/vault"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// handler is the signature shared by all REPL commands. args holds the
// tokens following the command name.
type handler func(ctx context.Context, args []string) error

// execIface defines the command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isUnlocked() bool

	Unlock(ctx context.Context, args []string) error
	Lock(ctx context.Context, args []string) error

	Patients(ctx context.Context, args []string) error
	AddPatient(ctx context.Context, args []string) error
	EditPatient(ctx context.Context, args []string) error
	DeletePatient(ctx context.Context, args []string) error

	Kinds(ctx context.Context, args []string) error
	Docs(ctx context.Context, args []string) error
	AddDoc(ctx context.Context, args []string) error
	ShowDoc(ctx context.Context, args []string) error
	EditDoc(ctx context.Context, args []string) error
	DeleteDoc(ctx context.Context, args []string) error
	Attach(ctx context.Context, args []string) error
	SaveAttachment(ctx context.Context, args []string) error
	DeleteAttachment(ctx context.Context, args []string) error

	Export(ctx context.Context, args []string) error
	Import(ctx context.Context, args []string) error

	Cases(ctx context.Context, args []string) error
	NewCase(ctx context.Context, args []string) error
	EditCase(ctx context.Context, args []string) error
	SaveCase(ctx context.Context, args []string) error
	OpenCase(ctx context.Context, args []string) error
	ShowCase(ctx context.Context, args []string) error
	DeleteCase(ctx context.Context, args []string) error
	DeleteAllCases(ctx context.Context, args []string) error
	ExportCases(ctx context.Context, args []string) error
	ImportCases(ctx context.Context, args []string) error
}

const helpLocked = `Vault is locked.
  unlock                      unlock (or create) the vault
  cases [query]               list Befund cases
  newcase | editcase          start or edit the case draft
  savecase | opencase <id>    save the draft / load a case into it
  showcase [id]               print the narrative
  delcase [id] | delallcases  delete one or all cases
  exportcases [id]            write cases to the export directory
  importcases <file>          replace all cases from a file
  exit | quit`

const helpUnlocked = `Vault is unlocked.
  patients                    list patients
  addpatient | editpatient <id> | delpatient <id>
  kinds                       list document templates
  docs <patient>              list documents of a patient
  adddoc <patient> | showdoc <doc> | editdoc <doc> | deldoc <doc>
  attach <doc> [file]         add a file to a document
  saveatt <doc> <att>         write an attachment to the export directory
  delatt <doc> <att>          remove an attachment
  export [file] | import <file>
  lock
  (all case commands from the locked state are available too)
  exit | quit`

// runREPL starts the read–eval–print loop for the PraxisDoku CLI.
//
// It reads a line from reader, parses the first token as the command and
// dispatches to methods on a with the remaining tokens. Vault commands are
// refused while the vault is locked. Handler errors are reported to the
// user and the loop continues. The loop exits on EOF or when the user
// types "exit" or "quit".
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	caseCmds := map[string]handler{
		"cases":       a.Cases,
		"newcase":     a.NewCase,
		"editcase":    a.EditCase,
		"savecase":    a.SaveCase,
		"opencase":    a.OpenCase,
		"showcase":    a.ShowCase,
		"delcase":     a.DeleteCase,
		"delallcases": a.DeleteAllCases,
		"exportcases": a.ExportCases,
		"importcases": a.ImportCases,
	}
	vaultCmds := map[string]handler{
		"lock":        a.Lock,
		"patients":    a.Patients,
		"p":           a.Patients,
		"addpatient":  a.AddPatient,
		"editpatient": a.EditPatient,
		"delpatient":  a.DeletePatient,
		"kinds":       a.Kinds,
		"docs":        a.Docs,
		"adddoc":      a.AddDoc,
		"showdoc":     a.ShowDoc,
		"editdoc":     a.EditDoc,
		"deldoc":      a.DeleteDoc,
		"attach":      a.Attach,
		"saveatt":     a.SaveAttachment,
		"delatt":      a.DeleteAttachment,
		"export":      a.Export,
		"import":      a.Import,
	}

	for {
		printlnFn(fmt.Sprintf("pd> %s > ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			if err != nil {
				return
			}
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help", "h", "?":
			if a.isUnlocked() {
				printlnFn(helpUnlocked)
			} else {
				printlnFn(helpLocked)
			}
			continue

		case "unlock":
			report(a.Unlock(ctx, args))
			continue

		case "exit", "quit":
			printlnFn("Bye!")
			return
		}

		if h, ok := caseCmds[cmd]; ok {
			report(h(ctx, args))
		} else if h, ok := vaultCmds[cmd]; ok {
			if !a.isUnlocked() {
				printlnFn("Vault is locked. Use 'unlock' first.")
				continue
			}
			report(h(ctx, args))
		} else {
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			return
		}
	}
}

// errUsage is returned by handlers invoked with missing arguments.
var errUsage = errors.New("missing argument, see 'help'")

// report prints a handler error in user terms.
func report(err error) {
	if err == nil {
		return
	}
	printlnFn("Error:", describeError(err))
}

// describeError maps domain errors to short messages. Secrets never reach
// this function.
func describeError(err error) string {
	switch {
	case errors.Is(err, vault.ErrDecryptionFailed):
		return "wrong passphrase or corrupted vault"
	case errors.Is(err, vault.ErrMalformedEnvelope):
		return "stored vault data is malformed"
	case errors.Is(err, vault.ErrVaultLocked):
		return "vault is locked"
	case errors.Is(err, vault.ErrEmptyPassphrase):
		return "passphrase must not be empty"
	case errors.Is(err, vault.ErrAlreadyUnlocked):
		return "vault is already unlocked"
	case errors.Is(err, vault.ErrInvalidImport), errors.Is(err, services.ErrInvalidCaseImport):
		return "import rejected: " + err.Error()
	}
	return err.Error()
}
