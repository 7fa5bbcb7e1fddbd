// Package services contains application services of the PraxisDoku CLI.
// This file defines the Befund case service: saved cases, the working
// draft, and JSON export/import. Cases are stored unencrypted in the local
// key/value table.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/praxisdoku/internal/befund"
	"github.com/dmitrijs2005/praxisdoku/internal/common"
	"github.com/dmitrijs2005/praxisdoku/internal/dbx"
	"github.com/dmitrijs2005/praxisdoku/internal/logging"
	"github.com/dmitrijs2005/praxisdoku/internal/repositories/kv"
	"github.com/google/uuid"
)

const (
	CasesKey = "befund_cases_v1"
	DraftKey = "befund_draft_v1"
)

var (
	ErrCaseNotFound      = fmt.Errorf("case: %w", common.ErrorNotFound)
	ErrInvalidCaseImport = fmt.Errorf("invalid case import: %w", common.ErrorValidation)
)

// CaseService manages Befund cases.
//
// Contract:
//   - List returns cases newest first, filtered by an optional query.
//   - Save inserts a case or updates the one with the same id.
//   - Delete and DeleteAll also reset the draft to an empty form.
//   - Import replaces all cases.
type CaseService interface {
	List(ctx context.Context, query string) ([]befund.Case, error)
	Get(ctx context.Context, id string) (*befund.Case, error)
	Save(ctx context.Context, c befund.Case) (befund.Case, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
	Draft(ctx context.Context) (befund.Case, error)
	SaveDraft(ctx context.Context, draft befund.Case) error
	ResetDraft(ctx context.Context) (befund.Case, error)
	ExportAll(ctx context.Context) ([]byte, error)
	ExportCase(ctx context.Context, id string) ([]byte, string, error)
	Import(ctx context.Context, data []byte) (int, error)
}

type caseService struct {
	db     *sql.DB
	logger logging.Logger
	now    func() time.Time
}

// NewCaseService constructs a CaseService over db. now may be nil.
func NewCaseService(db *sql.DB, logger logging.Logger, now func() time.Time) CaseService {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &caseService{db: db, logger: logger, now: now}
}

// exportFile is the format written by ExportAll.
type exportFile struct {
	ExportedAt time.Time     `json:"exportedAt"`
	Cases      []befund.Case `json:"cases"`
}

// load decodes key into v. Missing or unreadable values leave v untouched
// and report false.
func (s *caseService) load(ctx context.Context, repo kv.Repository, key string, v any) (bool, error) {
	raw, err := repo.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		s.logger.Warn(ctx, "ignoring unreadable stored value", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}

func (s *caseService) store(ctx context.Context, repo kv.Repository, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return repo.Set(ctx, key, b)
}

func (s *caseService) cases(ctx context.Context, repo kv.Repository) ([]befund.Case, error) {
	out := []befund.Case{}
	if _, err := s.load(ctx, repo, CasesKey, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []befund.Case{}
	}
	return out, nil
}

func (s *caseService) resetDraft(ctx context.Context, repo kv.Repository) (befund.Case, error) {
	d := befund.NewDraft(s.now())
	return d, s.store(ctx, repo, DraftKey, d)
}

func (s *caseService) List(ctx context.Context, query string) ([]befund.Case, error) {
	all, err := s.cases(ctx, kv.NewSQLiteRepository(s.db))
	if err != nil {
		return nil, err
	}
	befund.SortByUpdated(all)
	return befund.Filter(all, query), nil
}

func (s *caseService) Get(ctx context.Context, id string) (*befund.Case, error) {
	all, err := s.cases(ctx, kv.NewSQLiteRepository(s.db))
	if err != nil {
		return nil, err
	}
	i := slices.IndexFunc(all, func(c befund.Case) bool { return c.ID == id })
	if i < 0 {
		return nil, ErrCaseNotFound
	}
	return &all[i], nil
}

// Save stores the form fields of c. A case with a known id keeps its id and
// creation time; anything else is appended as a new case.
func (s *caseService) Save(ctx context.Context, c befund.Case) (befund.Case, error) {
	var saved befund.Case
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := kv.NewSQLiteRepository(tx)
		all, err := s.cases(ctx, repo)
		if err != nil {
			return err
		}

		now := s.now()
		saved = c
		saved.UpdatedAt = now
		if saved.Domains == nil {
			saved.Domains = []befund.Domain{}
		}
		if i := slices.IndexFunc(all, func(x befund.Case) bool { return c.ID != "" && x.ID == c.ID }); i >= 0 {
			saved.CreatedAt = all[i].CreatedAt
			all[i] = saved
		} else {
			if saved.ID == "" {
				saved.ID = uuid.NewString()
			}
			saved.CreatedAt = now
			all = append(all, saved)
		}
		return s.store(ctx, repo, CasesKey, all)
	})
	if err != nil {
		return befund.Case{}, fmt.Errorf("save case: %w", err)
	}
	s.logger.Debug(ctx, "case saved", "id", saved.ID)
	return saved, nil
}

func (s *caseService) Delete(ctx context.Context, id string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := kv.NewSQLiteRepository(tx)
		all, err := s.cases(ctx, repo)
		if err != nil {
			return err
		}
		i := slices.IndexFunc(all, func(c befund.Case) bool { return c.ID == id })
		if i < 0 {
			return ErrCaseNotFound
		}
		all = slices.Delete(all, i, i+1)
		if err := s.store(ctx, repo, CasesKey, all); err != nil {
			return err
		}
		_, err = s.resetDraft(ctx, repo)
		return err
	})
}

func (s *caseService) DeleteAll(ctx context.Context) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := kv.NewSQLiteRepository(tx)
		if err := s.store(ctx, repo, CasesKey, []befund.Case{}); err != nil {
			return err
		}
		_, err := s.resetDraft(ctx, repo)
		return err
	})
}

// Draft returns the stored working draft, or a fresh one dated today.
func (s *caseService) Draft(ctx context.Context) (befund.Case, error) {
	var d befund.Case
	ok, err := s.load(ctx, kv.NewSQLiteRepository(s.db), DraftKey, &d)
	if err != nil {
		return befund.Case{}, err
	}
	if !ok {
		return befund.NewDraft(s.now()), nil
	}
	return d, nil
}

func (s *caseService) SaveDraft(ctx context.Context, draft befund.Case) error {
	return s.store(ctx, kv.NewSQLiteRepository(s.db), DraftKey, draft.Form(s.now()))
}

func (s *caseService) ResetDraft(ctx context.Context) (befund.Case, error) {
	return s.resetDraft(ctx, kv.NewSQLiteRepository(s.db))
}

// ExportAll returns every case with an export timestamp as indented JSON.
func (s *caseService) ExportAll(ctx context.Context) ([]byte, error) {
	all, err := s.cases(ctx, kv.NewSQLiteRepository(s.db))
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(exportFile{ExportedAt: s.now(), Cases: all}, "", "  ")
}

// ExportCase returns one case as indented JSON together with its file name.
func (s *caseService) ExportCase(ctx context.Context, id string) ([]byte, string, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, "", err
	}
	return b, befund.FileName(*c), nil
}

// Import replaces all cases with those in data, which is either a bare
// array of cases or an object with a "cases" array. It returns the number
// of imported cases.
func (s *caseService) Import(ctx context.Context, data []byte) (int, error) {
	var imported []befund.Case
	if err := json.Unmarshal(data, &imported); err != nil {
		var file struct {
			Cases json.RawMessage `json:"cases"`
		}
		if err := json.Unmarshal(data, &file); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidCaseImport, err)
		}
		imported = []befund.Case{}
		if len(file.Cases) > 0 && string(file.Cases) != "null" {
			if err := json.Unmarshal(file.Cases, &imported); err != nil {
				return 0, fmt.Errorf("%w: cases must be a list", ErrInvalidCaseImport)
			}
		}
	}
	if imported == nil {
		return 0, fmt.Errorf("%w: expected a list of cases", ErrInvalidCaseImport)
	}

	now := s.now()
	for i := range imported {
		imported[i] = befund.Normalize(imported[i], now)
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.store(ctx, kv.NewSQLiteRepository(tx), CasesKey, imported)
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info(ctx, "cases imported", "count", len(imported))
	return len(imported), nil
}
