package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/99minutos/user-directory/internal/core/domain"
	"github.com/99minutos/user-directory/internal/core/ports"
	"github.com/99minutos/user-directory/internal/pkg/metrics"
)

const (
	defaultMaxImportRows = 10000
	bulkDoneMessage      = "Bulk upload completed."
)

var requiredColumns = []string{"first_name", "last_name", "email", "password"}

// RowDispatcher fans rows out to workers and reports one error per row, in
// input order.
type RowDispatcher interface {
	Run(ctx context.Context, processor ports.RowProcessor, rows []ports.ImportRow) []error
}

// BulkImportService creates users from CSV uploads. Each row succeeds or
// fails on its own; a malformed file is rejected before any row is processed.
type BulkImportService struct {
	identity   ports.IdentityService
	dispatcher RowDispatcher
	maxRows    int
	log        zerolog.Logger
}

func NewBulkImportService(identity ports.IdentityService, dispatcher RowDispatcher, maxRows int, log zerolog.Logger) *BulkImportService {
	if maxRows <= 0 {
		maxRows = defaultMaxImportRows
	}
	return &BulkImportService{
		identity:   identity,
		dispatcher: dispatcher,
		maxRows:    maxRows,
		log:        log.With().Str("component", "bulk_import").Logger(),
	}
}

// Import parses the whole file first, then creates one user per row.
func (s *BulkImportService) Import(ctx context.Context, filename string, r io.Reader) (*ports.BulkResult, error) {
	if !strings.EqualFold(filepath.Ext(filename), ".csv") {
		return nil, fmt.Errorf("%w: invalid file format, please upload a CSV file", domain.ErrInvalidInput)
	}

	rows, err := s.readRows(r)
	if err != nil {
		return nil, err
	}

	errs := s.dispatcher.Run(ctx, s, rows)

	result := &ports.BulkResult{
		Message:      bulkDoneMessage,
		CreatedUsers: []string{},
		FailedUsers:  []string{},
	}
	for i, row := range rows {
		if errs[i] != nil {
			s.log.Warn().Err(errs[i]).Int("line", row.Line).Str("email", row.Input.Email).Msg("bulk row failed")
			result.FailedUsers = append(result.FailedUsers, row.Input.Email)
			metrics.BulkRowsTotal.WithLabelValues("failed").Inc()
			continue
		}
		result.CreatedUsers = append(result.CreatedUsers, row.Input.Email)
		metrics.BulkRowsTotal.WithLabelValues("created").Inc()
	}

	s.log.Info().
		Str("file", filename).
		Int("created", len(result.CreatedUsers)).
		Int("failed", len(result.FailedUsers)).
		Msg("bulk upload completed")
	return result, nil
}

// ProcessRow satisfies ports.RowProcessor.
func (s *BulkImportService) ProcessRow(ctx context.Context, row ports.ImportRow) error {
	_, err := s.identity.CreateUser(ctx, row.Input)
	return err
}

func (s *BulkImportService) readRows(r io.Reader) ([]ports.ImportRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: CSV file is empty", domain.ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable CSV header", domain.ErrInvalidInput)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimPrefix(name, "\ufeff")
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: CSV file must contain the following columns: %s",
				domain.ErrInvalidInput, strings.Join(requiredColumns, ", "))
		}
	}
	orgCol, hasOrg := cols["org"]

	field := func(rec []string, idx int) string {
		return strings.TrimSpace(rawField(rec, idx))
	}

	var rows []ports.ImportRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: malformed CSV: %v", domain.ErrInvalidInput, err)
		}
		if len(rows) >= s.maxRows {
			return nil, fmt.Errorf("%w: CSV file exceeds %d rows", domain.ErrInvalidInput, s.maxRows)
		}

		line, _ := cr.FieldPos(0)
		in := ports.CreateUserInput{
			FirstName: field(rec, cols["first_name"]),
			LastName:  field(rec, cols["last_name"]),
			Email:     field(rec, cols["email"]),
			Password:  rawField(rec, cols["password"]),
		}
		if hasOrg {
			in.Org = field(rec, orgCol)
		}
		rows = append(rows, ports.ImportRow{Line: line, Input: in})
	}
	return rows, nil
}

func rawField(rec []string, idx int) string {
	if idx < len(rec) {
		return rec[idx]
	}
	return ""
}
