package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxPool abstracts the subset of pgxpool.Pool used by the repository to allow mocking in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

var _ PgxPool = (*pgxpool.Pool)(nil)

const (
	createUserFileQuery = `
		INSERT INTO user_files (id, user_id, type, mime_type, file_name, size_bytes, checksum_sha256)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	getImportedFileByChecksumQuery = `
		SELECT f.id, f.user_id, f.type, f.mime_type, f.file_name, f.size_bytes, f.checksum_sha256, f.created_at
		FROM user_files f
		WHERE f.user_id = $1 AND f.checksum_sha256 = $2
		  AND EXISTS (
			SELECT 1 FROM import_jobs j
			WHERE j.file_id = f.id AND j.status = 'succeeded'
		  )
		ORDER BY f.created_at DESC
		LIMIT 1
	`

	createImportJobQuery = `
		INSERT INTO import_jobs (id, user_id, file_id, kind, status, account_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING requested_at
	`

	getImportJobQuery = `
		SELECT id, user_id, file_id, kind, status, account_id, bank_format,
		       error_message, rows_total, rows_imported, rows_failed,
		       requested_at, finished_at
		FROM import_jobs WHERE id = $1
	`

	updateImportJobProgressQuery = `UPDATE import_jobs SET rows_imported = $2, rows_failed = $3 WHERE id = $1`

	finishImportJobQuery = `
		UPDATE import_jobs SET
			status = $2, bank_format = $3, rows_imported = $4, rows_failed = $5,
			error_message = $6, finished_at = NOW(), rows_total = $4 + $5
		WHERE id = $1
	`
)

// Values written for every imported transaction row.
const (
	transactionStatus = "confirmed"
	transactionSource = "pdf_import"
	currencyCode      = "EUR"
)

var transactionColumns = []string{
	"id", "user_id", "account_id", "import_job_id", "posted_on", "description", "merchant",
	"amount_minor", "currency_code", "category", "transaction_type", "status", "source", "external_id",
}

// PostgresStatementRepository implements StatementRepository using PostgreSQL
type PostgresStatementRepository struct {
	pool PgxPool
}

// NewPostgresStatementRepository creates a new PostgreSQL-backed statement repository
func NewPostgresStatementRepository(pool PgxPool) *PostgresStatementRepository {
	return &PostgresStatementRepository{pool: pool}
}

// CreateUserFile inserts a new user file record
func (r *PostgresStatementRepository) CreateUserFile(ctx context.Context, file *UserFile) error {
	if file.ID == uuid.Nil {
		file.ID = uuid.New()
	}

	err := r.pool.QueryRow(ctx, createUserFileQuery,
		file.ID, file.UserID, file.Type, file.MimeType, file.FileName,
		file.SizeBytes, file.ChecksumSHA256,
	).Scan(&file.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user file: %w", err)
	}

	return nil
}

// GetImportedFileByChecksum returns the latest file a user uploaded with the given checksum
// that has a succeeded import job, or nil.
func (r *PostgresStatementRepository) GetImportedFileByChecksum(ctx context.Context, userID uuid.UUID, checksum string) (*UserFile, error) {
	var file UserFile
	err := r.pool.QueryRow(ctx, getImportedFileByChecksumQuery, userID, checksum).Scan(
		&file.ID, &file.UserID, &file.Type, &file.MimeType, &file.FileName,
		&file.SizeBytes, &file.ChecksumSHA256, &file.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get imported file by checksum: %w", err)
	}

	return &file, nil
}

// CreateImportJob creates a new import job
func (r *PostgresStatementRepository) CreateImportJob(ctx context.Context, job *ImportJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}

	err := r.pool.QueryRow(ctx, createImportJobQuery,
		job.ID, job.UserID, job.FileID, job.Kind, job.Status, job.AccountID,
	).Scan(&job.RequestedAt)
	if err != nil {
		return fmt.Errorf("failed to create import job: %w", err)
	}

	return nil
}

// GetImportJobByID retrieves an import job by ID, or nil when it does not exist
func (r *PostgresStatementRepository) GetImportJobByID(ctx context.Context, id uuid.UUID) (*ImportJob, error) {
	var job ImportJob
	err := r.pool.QueryRow(ctx, getImportJobQuery, id).Scan(
		&job.ID, &job.UserID, &job.FileID, &job.Kind, &job.Status,
		&job.AccountID, &job.BankFormat, &job.ErrorMessage,
		&job.RowsTotal, &job.RowsImported, &job.RowsFailed,
		&job.RequestedAt, &job.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import job: %w", err)
	}

	return &job, nil
}

// UpdateImportJobProgress updates the row counts for an import job
func (r *PostgresStatementRepository) UpdateImportJobProgress(ctx context.Context, id uuid.UUID, rowsImported, rowsFailed int) error {
	_, err := r.pool.Exec(ctx, updateImportJobProgressQuery, id, rowsImported, rowsFailed)
	if err != nil {
		return fmt.Errorf("failed to update import job progress: %w", err)
	}
	return nil
}

// FinishImportJob marks an import job as complete
func (r *PostgresStatementRepository) FinishImportJob(ctx context.Context, id uuid.UUID, status string, bankFormat *string, rowsImported, rowsFailed int, errorMessage *string) error {
	_, err := r.pool.Exec(ctx, finishImportJobQuery, id, status, bankFormat, rowsImported, rowsFailed, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to finish import job: %w", err)
	}
	return nil
}

// BulkInsertTransactions inserts the transactions of an import job with COPY
func (r *PostgresStatementRepository) BulkInsertTransactions(ctx context.Context, job *ImportJob, txs []*ImportedTransaction) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}

	copyCount, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"transactions"},
		transactionColumns,
		pgx.CopyFromSlice(len(txs), func(i int) ([]any, error) {
			tx := txs[i]
			postedOn, err := time.Parse(time.DateOnly, tx.Date)
			if err != nil {
				return nil, fmt.Errorf("invalid transaction date %q: %w", tx.Date, err)
			}
			return []any{
				uuid.New(),
				job.UserID,
				job.AccountID,
				job.ID,
				postedOn,
				tx.Description,
				tx.Merchant,
				tx.Amount.Shift(2).Round(0).IntPart(),
				currencyCode,
				tx.Category,
				transactionType(tx),
				transactionStatus,
				transactionSource,
				ExternalID(tx),
			}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk insert transactions: %w", err)
	}

	return int(copyCount), nil
}

func transactionType(tx *ImportedTransaction) string {
	if tx.IsIncome() {
		return "income"
	}
	return "expense"
}

// ExternalID derives a stable identifier from the deduplication key of a transaction.
func ExternalID(tx *ImportedTransaction) string {
	data := fmt.Sprintf("%s|%s|%s", tx.Date, tx.Description, tx.Amount.StringFixed(2))
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:16])
}
