// Package service orchestrates statement extraction and import.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/familia-financas/internal/domain/common"
	"github.com/FACorreiaa/familia-financas/internal/domain/statement/extractor"
	"github.com/FACorreiaa/familia-financas/internal/domain/statement/normalizer"
	"github.com/FACorreiaa/familia-financas/internal/domain/statement/repository"
	"github.com/FACorreiaa/familia-financas/pkg/observability"
)

var (
	// ErrExtractionFailed is returned when a document yields too little text to parse.
	ErrExtractionFailed = errors.New("could not extract text from statement")
	// ErrNoTransactions is returned by imports that find nothing to store.
	ErrNoTransactions = errors.New("no transactions found in statement")
	// ErrAlreadyImported is returned when the same file was imported before.
	ErrAlreadyImported = fmt.Errorf("statement already imported: %w", common.ErrConflict)
	// ErrNoRepository is returned by persistence operations on an extraction-only service.
	ErrNoRepository = fmt.Errorf("statement repository not configured: %w", common.ErrUnavailable)
)

const (
	importBatchSize      = 500
	previewSize          = 5
	defaultMinTextLength = 50
)

// TextExtractor pulls plain text out of a PDF document.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte, password string) (string, error)
}

// Config tunes the service.
type Config struct {
	// Workers bounds ExtractBatch parallelism. Zero means GOMAXPROCS.
	Workers int
	// MinTextLength is the shortest document text worth parsing, in runes.
	MinTextLength int
}

// ExtractResult is the extraction outcome for one statement.
type ExtractResult struct {
	extractor.Result
	TextLength int `json:"text_length"`
}

// Document is one input of ExtractBatch. Text wins over Data when both are set.
type Document struct {
	Name     string
	Data     []byte
	Password string
	Text     string
}

// BatchItem pairs a batch document with its outcome.
type BatchItem struct {
	Name   string
	Result *ExtractResult
	Err    error
}

// ImportRequest describes a statement to extract and store.
type ImportRequest struct {
	UserID    uuid.UUID
	AccountID *uuid.UUID
	FileName  string
	Data      []byte
	Password  string
	// Text imports already extracted statement text instead of a PDF.
	Text string
}

// ImportResult contains the result of an import operation
type ImportResult struct {
	JobID        uuid.UUID
	BankFormat   string
	RowsTotal    int
	RowsImported int
	Preview      []*repository.ImportedTransaction
	Stats        extractor.Stats
}

// StatementService runs extraction and persists imported statements
type StatementService struct {
	repo          repository.StatementRepository
	pdf           TextExtractor
	extractor     *extractor.Extractor
	logger        *slog.Logger
	tracer        trace.Tracer
	workers       int
	minTextLength int
}

// NewStatementService creates a new statement service. repo may be nil for
// extraction-only use.
func NewStatementService(repo repository.StatementRepository, pdf TextExtractor, ext *extractor.Extractor, cfg Config, logger *slog.Logger) *StatementService {
	workers := cfg.Workers
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	minLen := cfg.MinTextLength
	if minLen <= 0 {
		minLen = defaultMinTextLength
	}
	return &StatementService{
		repo:          repo,
		pdf:           pdf,
		extractor:     ext,
		logger:        logger,
		tracer:        otel.Tracer("familia/statement"),
		workers:       workers,
		minTextLength: minLen,
	}
}

// ExtractText runs the extractor over already extracted statement text.
func (s *StatementService) ExtractText(ctx context.Context, text string) (*ExtractResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l := s.logger.With(slog.String("method", "ExtractText"))

	start := time.Now()
	res := s.extractor.Extract(text)
	elapsed := time.Since(start)
	observability.RecordExtraction(res.Strategy, len(res.Transactions), res.Stats.Rejected, elapsed)

	l.InfoContext(ctx, "statement extracted",
		slog.String("strategy", res.Strategy),
		slog.Int("transactions", len(res.Transactions)),
		slog.Int("lines", res.Stats.LinesSeen),
		slog.Int("duplicates", res.Stats.Duplicates),
		slog.Duration("elapsed", elapsed),
	)
	l.DebugContext(ctx, "extraction stats",
		slog.Any("candidates", res.Stats.Candidates),
		slog.Any("rejected", res.Stats.Rejected),
	)

	return &ExtractResult{Result: res, TextLength: utf8.RuneCountInString(text)}, nil
}

// ExtractDocument pulls text out of a PDF and extracts its transactions.
func (s *StatementService) ExtractDocument(ctx context.Context, data []byte, password string) (*ExtractResult, error) {
	ctx, span := s.tracer.Start(ctx, "StatementService.ExtractDocument",
		trace.WithAttributes(attribute.Int("statement.size_bytes", len(data))))
	defer span.End()
	l := s.logger.With(slog.String("method", "ExtractDocument"))

	text, err := s.documentText(ctx, data, password)
	if err != nil {
		l.WarnContext(ctx, "failed to read statement text", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	res, err := s.ExtractText(ctx, text)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("statement.strategy", res.Strategy),
		attribute.Int("statement.transactions", len(res.Transactions)),
	)
	return res, nil
}

func (s *StatementService) documentText(ctx context.Context, data []byte, password string) (string, error) {
	if s.pdf == nil {
		return "", fmt.Errorf("%w: no pdf reader configured", ErrExtractionFailed)
	}
	text, err := s.pdf.ExtractText(ctx, data, password)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	if n := utf8.RuneCountInString(text); n < s.minTextLength {
		return "", fmt.Errorf("%w: only %d characters of text", ErrExtractionFailed, n)
	}
	return text, nil
}

// ExtractBatch extracts several documents in parallel. Items keep input order;
// per-document failures are reported on the item and only cancellation fails
// the whole batch.
func (s *StatementService) ExtractBatch(ctx context.Context, docs []Document) ([]BatchItem, error) {
	items := make([]BatchItem, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, doc := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var (
				res *ExtractResult
				err error
			)
			if doc.Text != "" {
				res, err = s.ExtractText(gctx, doc.Text)
			} else {
				res, err = s.ExtractDocument(gctx, doc.Data, doc.Password)
			}
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			items[i] = BatchItem{Name: doc.Name, Result: res, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch extraction aborted: %w", err)
	}
	return items, nil
}

// ImportStatement extracts a statement and stores its transactions under a new import job.
func (s *StatementService) ImportStatement(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	if s.repo == nil {
		return nil, ErrNoRepository
	}
	ctx, span := s.tracer.Start(ctx, "StatementService.ImportStatement")
	defer span.End()
	l := s.logger.With(slog.String("method", "ImportStatement"), slog.String("user_id", req.UserID.String()))

	file := newUserFile(req)
	existing, err := s.repo.GetImportedFileByChecksum(ctx, req.UserID, file.ChecksumSHA256)
	if err != nil {
		l.ErrorContext(ctx, "failed to look up statement checksum", slog.Any("error", err))
		return nil, fmt.Errorf("failed to look up file: %w", err)
	}
	if existing != nil {
		l.InfoContext(ctx, "statement already imported", slog.String("file_id", existing.ID.String()))
		return nil, ErrAlreadyImported
	}

	if err := s.repo.CreateUserFile(ctx, file); err != nil {
		l.ErrorContext(ctx, "failed to create file record", slog.Any("error", err))
		return nil, fmt.Errorf("failed to create file record: %w", err)
	}

	job := &repository.ImportJob{
		UserID:    req.UserID,
		FileID:    file.ID,
		Kind:      importKind(req),
		Status:    repository.JobStatusRunning,
		AccountID: req.AccountID,
	}
	if err := s.repo.CreateImportJob(ctx, job); err != nil {
		l.ErrorContext(ctx, "failed to create import job", slog.Any("error", err))
		return nil, fmt.Errorf("failed to create import job: %w", err)
	}
	l = l.With(slog.String("job_id", job.ID.String()))
	span.SetAttributes(attribute.String("import.job_id", job.ID.String()))

	var res *ExtractResult
	if req.Text != "" {
		res, err = s.ExtractText(ctx, req.Text)
	} else {
		res, err = s.ExtractDocument(ctx, req.Data, req.Password)
	}
	if err != nil {
		s.failJob(ctx, l, job.ID, nil, 0, err)
		return nil, err
	}

	bankFormat := res.Strategy
	if len(res.Transactions) == 0 {
		s.failJob(ctx, l, job.ID, nil, 0, ErrNoTransactions)
		return nil, ErrNoTransactions
	}

	txs := make([]*repository.ImportedTransaction, 0, len(res.Transactions))
	for _, tx := range res.Transactions {
		txs = append(txs, &repository.ImportedTransaction{
			Transaction: tx,
			Category:    normalizer.InferCategory(tx.Description),
		})
	}

	rowsImported := 0
	for start := 0; start < len(txs); start += importBatchSize {
		end := min(start+importBatchSize, len(txs))
		n, err := s.repo.BulkInsertTransactions(ctx, job, txs[start:end])
		if err != nil {
			l.ErrorContext(ctx, "failed to insert transactions", slog.Any("error", err), slog.Int("batch_start", start))
			s.failJob(ctx, l, job.ID, &bankFormat, rowsImported, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to insert transactions: %w", err)
		}
		rowsImported += n
		if err := s.repo.UpdateImportJobProgress(ctx, job.ID, rowsImported, 0); err != nil {
			l.WarnContext(ctx, "failed to update import job progress", slog.Any("error", err))
		}
	}

	if err := s.repo.FinishImportJob(ctx, job.ID, repository.JobStatusSucceeded, &bankFormat, rowsImported, 0, nil); err != nil {
		l.WarnContext(ctx, "failed to finish import job", slog.Any("error", err))
	}

	l.InfoContext(ctx, "statement imported",
		slog.String("bank_format", bankFormat),
		slog.Int("rows_imported", rowsImported),
	)

	return &ImportResult{
		JobID:        job.ID,
		BankFormat:   bankFormat,
		RowsTotal:    len(txs),
		RowsImported: rowsImported,
		Preview:      txs[:min(previewSize, len(txs))],
		Stats:        res.Stats,
	}, nil
}

// GetImportJob returns a job owned by userID.
func (s *StatementService) GetImportJob(ctx context.Context, userID, jobID uuid.UUID) (*repository.ImportJob, error) {
	if s.repo == nil {
		return nil, ErrNoRepository
	}
	job, err := s.repo.GetImportJobByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get import job: %w", err)
	}
	if job == nil || job.UserID != userID {
		return nil, common.ErrNotFound
	}
	return job, nil
}

func (s *StatementService) failJob(ctx context.Context, l *slog.Logger, jobID uuid.UUID, bankFormat *string, rowsImported int, cause error) {
	msg := cause.Error()
	if err := s.repo.FinishImportJob(ctx, jobID, repository.JobStatusFailed, bankFormat, rowsImported, 0, &msg); err != nil {
		l.WarnContext(ctx, "failed to mark import job as failed", slog.Any("error", err))
	}
}

func newUserFile(req ImportRequest) *repository.UserFile {
	content := req.Data
	fileType, mime, name := "pdf", "application/pdf", "statement.pdf"
	if req.Text != "" {
		content = []byte(req.Text)
		fileType, mime, name = "text", "text/plain", "statement.txt"
	}
	if req.FileName != "" {
		name = req.FileName
	}
	sum := sha256.Sum256(content)
	return &repository.UserFile{
		UserID:         req.UserID,
		Type:           fileType,
		MimeType:       mime,
		FileName:       name,
		SizeBytes:      int64(len(content)),
		ChecksumSHA256: hex.EncodeToString(sum[:]),
	}
}

func importKind(req ImportRequest) string {
	if req.Text != "" {
		return "text_statement"
	}
	return "pdf_statement"
}
