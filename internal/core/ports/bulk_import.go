package ports

import (
	"context"
	"io"
)

// BulkResult summarises a CSV import. Emails appear in file order.
type BulkResult struct {
	Message      string   `json:"message"`
	CreatedUsers []string `json:"created_users"`
	FailedUsers  []string `json:"failed_users"`
}

// BulkImporter creates users from an uploaded CSV file.
type BulkImporter interface {
	Import(ctx context.Context, filename string, r io.Reader) (*BulkResult, error)
}

// ImportRow is one data row of an uploaded CSV. Line is the 1-based file
// line, header included.
type ImportRow struct {
	Line  int
	Input CreateUserInput
}

// RowProcessor creates the user described by a single row.
type RowProcessor interface {
	ProcessRow(ctx context.Context, row ImportRow) error
}
