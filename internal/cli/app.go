package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/praxisdoku/internal/common"
	"github.com/dmitrijs2005/praxisdoku/internal/config"
	"github.com/dmitrijs2005/praxisdoku/internal/logging"
	"github.com/dmitrijs2005/praxisdoku/internal/models"
	"github.com/dmitrijs2005/praxisdoku/internal/repositories/kv"
	"github.com/dmitrijs2005/praxisdoku/internal/services"
	"github.com/dmitrijs2005/praxisdoku/internal/storage"
	"github.com/dmitrijs2005/praxisdoku/internal/vault"
)

// vaultEngine is the part of *vault.Engine used by the CLI.
type vaultEngine interface {
	IsUnlocked() bool
	Unlock(ctx context.Context, passphrase []byte) error
	Lock(ctx context.Context)

	ListPatients() ([]models.Patient, error)
	GetPatient(id string) (*models.Patient, error)
	UpsertPatient(ctx context.Context, p models.Patient) (models.Patient, error)
	DeletePatient(ctx context.Context, id string) error

	ListDocumentsForPatient(patientID string) ([]models.Document, error)
	GetDocument(id string) (*models.Document, error)
	UpsertDocument(ctx context.Context, d models.Document) (models.Document, error)
	DeleteDocument(ctx context.Context, id string) error

	ExportJSON() ([]byte, error)
	ImportJSON(ctx context.Context, data []byte) error
}

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	vault  vaultEngine
	cases  services.CaseService
	reader *bufio.Reader
	out    io.Writer
	now    func() time.Time

	// currentCaseID is the saved case the draft was opened from, if any.
	currentCaseID string
}

// NewApp opens the database named in c and wires the vault and the case
// service on top of it.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	db, err := storage.Open(ctx, c.DatabaseDSN)
	if err != nil {
		logger.Error(ctx, "error initializing database", "error", err)
		return nil, err
	}

	v := vault.New(kv.NewSQLiteRepository(db), logger, vault.WithKey(c.VaultKey))
	cs := services.NewCaseService(db, logger, nil)

	return &App{
		config: c,
		logger: logger,
		db:     db,
		vault:  v,
		cases:  cs,
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
		now:    time.Now,
	}, nil
}

// Run starts the REPL and blocks until the user leaves it. The vault is
// locked and the database closed on return.
func (a *App) Run(ctx context.Context) {
	defer a.Close(ctx)
	printlnFn("Welcome to PraxisDoku (type 'help' for commands)")
	runREPL(ctx, a, a.status, a.reader)
}

// Close locks the vault and releases the database.
func (a *App) Close(ctx context.Context) error {
	a.vault.Lock(ctx)
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *App) isUnlocked() bool {
	return a.vault.IsUnlocked()
}

func (a *App) status() string {
	if a.isUnlocked() {
		return "(unlocked)"
	}
	return "(locked)"
}

// Unlock asks for the passphrase and unlocks the vault. The first unlock
// against an empty database creates a new vault.
func (a *App) Unlock(ctx context.Context, _ []string) error {
	pw, err := getPassword("Passphrase", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	if err := a.vault.Unlock(ctx, pw); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Vault unlocked.")
	return nil
}

// Lock drops the key and all decrypted data from memory.
func (a *App) Lock(ctx context.Context, _ []string) error {
	a.vault.Lock(ctx)
	fmt.Fprintln(a.out, "Vault locked.")
	return nil
}

// shortID returns the leading part of id shown in listings.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// resolveID finds the single id in ids equal to or starting with ref.
func resolveID(ref string, ids []string) (string, error) {
	var match []string
	for _, id := range ids {
		if id == ref {
			return id, nil
		}
		if strings.HasPrefix(id, ref) {
			match = append(match, id)
		}
	}
	switch len(match) {
	case 0:
		return "", fmt.Errorf("%q: %w", ref, common.ErrorNotFound)
	case 1:
		return match[0], nil
	}
	return "", fmt.Errorf("%q is ambiguous (%d matches)", ref, len(match))
}

// formatTime renders timestamps in listings.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func argOrPrompt(a *App, args []string, i int, prompt string) (string, error) {
	if len(args) > i {
		return args[i], nil
	}
	v, err := getSimpleText(a.reader, prompt, a.out)
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", errUsage
	}
	return v, nil
}
