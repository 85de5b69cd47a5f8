// Package repository provides data access for statement imports.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/familia-financas/internal/domain/statement/model"
)

// Import job statuses.
const (
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
)

// ImportJob tracks the status of a statement import
type ImportJob struct {
	ID           uuid.UUID  `db:"id"`
	UserID       uuid.UUID  `db:"user_id"`
	FileID       uuid.UUID  `db:"file_id"`
	Kind         string     `db:"kind"`   // "pdf_statement", "text_statement"
	Status       string     `db:"status"` // "running", "succeeded", "failed"
	AccountID    *uuid.UUID `db:"account_id"`
	BankFormat   *string    `db:"bank_format"` // winning extraction strategy
	ErrorMessage *string    `db:"error_message"`
	RowsTotal    int        `db:"rows_total"`
	RowsImported int        `db:"rows_imported"`
	RowsFailed   int        `db:"rows_failed"`
	RequestedAt  time.Time  `db:"requested_at"`
	FinishedAt   *time.Time `db:"finished_at"`
}

// UserFile represents an uploaded statement
type UserFile struct {
	ID             uuid.UUID `db:"id"`
	UserID         uuid.UUID `db:"user_id"`
	Type           string    `db:"type"` // "pdf", "text"
	MimeType       string    `db:"mime_type"`
	FileName       string    `db:"file_name"`
	SizeBytes      int64     `db:"size_bytes"`
	ChecksumSHA256 string    `db:"checksum_sha256"`
	CreatedAt      time.Time `db:"created_at"`
}

// ImportedTransaction is an extracted transaction ready to be stored.
type ImportedTransaction struct {
	model.Transaction
	Category string
}

// StatementRepository defines data access operations for statement imports
type StatementRepository interface {
	// User Files
	CreateUserFile(ctx context.Context, file *UserFile) error
	// GetImportedFileByChecksum returns the newest file with this checksum whose
	// import succeeded, or nil. Files from failed imports do not count.
	GetImportedFileByChecksum(ctx context.Context, userID uuid.UUID, checksum string) (*UserFile, error)

	// Import Jobs
	CreateImportJob(ctx context.Context, job *ImportJob) error
	GetImportJobByID(ctx context.Context, id uuid.UUID) (*ImportJob, error)
	UpdateImportJobProgress(ctx context.Context, id uuid.UUID, rowsImported, rowsFailed int) error
	FinishImportJob(ctx context.Context, id uuid.UUID, status string, bankFormat *string, rowsImported, rowsFailed int, errorMessage *string) error

	// Transactions
	BulkInsertTransactions(ctx context.Context, job *ImportJob, txs []*ImportedTransaction) (int, error)
}
