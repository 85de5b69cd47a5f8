package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/familia-financas/internal/domain/statement/extractor"
	"github.com/FACorreiaa/familia-financas/internal/domain/statement/model"
)

// ExtractStatementRequest carries either a PDF or already extracted text.
type ExtractStatementRequest struct {
	PdfBytes []byte `json:"pdf_bytes,omitempty"`
	Password string `json:"password,omitempty"`
	Text     string `json:"text,omitempty"`
}

type ExtractStatementResponse struct {
	Transactions []model.Transaction `json:"transactions"`
	BankFormat   string              `json:"bank_format,omitempty"`
	TextLength   int                 `json:"text_length"`
	Stats        extractor.Stats     `json:"stats"`
}

type ImportStatementRequest struct {
	PdfBytes  []byte  `json:"pdf_bytes,omitempty"`
	Password  string  `json:"password,omitempty"`
	Text      string  `json:"text,omitempty"`
	FileName  string  `json:"file_name,omitempty"`
	AccountID *string `json:"account_id,omitempty"`
}

// PreviewTransaction is a stored transaction echoed back after import.
type PreviewTransaction struct {
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Merchant    string          `json:"merchant,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Type        string          `json:"type"` // "income" or "expense"
}

type ImportStatementResponse struct {
	JobID             string               `json:"job_id"`
	BankFormat        string               `json:"bank_format"`
	TransactionsCount int                  `json:"transactions_count"`
	Preview           []PreviewTransaction `json:"preview"`
}

type GetImportJobRequest struct {
	JobID string `json:"job_id"`
}

type GetImportJobResponse struct {
	JobID        string     `json:"job_id"`
	Kind         string     `json:"kind"`
	Status       string     `json:"status"`
	BankFormat   string     `json:"bank_format,omitempty"`
	RowsImported int        `json:"rows_imported"`
	RowsFailed   int        `json:"rows_failed"`
	ErrorMessage string     `json:"error_message,omitempty"`
	RequestedAt  time.Time  `json:"requested_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}
