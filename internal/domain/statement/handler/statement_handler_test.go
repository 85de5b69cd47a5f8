package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/familia-financas/internal/domain/statement/extractor"
	"github.com/FACorreiaa/familia-financas/internal/domain/statement/repository"
	"github.com/FACorreiaa/familia-financas/internal/domain/statement/service"
	"github.com/FACorreiaa/familia-financas/pkg/interceptors"
)

const groceryStatement = "Movimentos da conta\n" +
	"03/02/2025 Pingo Doce Almada 23,10 EUR\n" +
	"05/02/2025 Transferência recebida Joana +150,00 EUR\n"

type memRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*repository.ImportJob
}

func (r *memRepo) CreateUserFile(_ context.Context, file *repository.UserFile) error {
	file.ID = uuid.New()
	return nil
}

func (r *memRepo) GetImportedFileByChecksum(context.Context, uuid.UUID, string) (*repository.UserFile, error) {
	return nil, nil
}

func (r *memRepo) CreateImportJob(_ context.Context, job *repository.ImportJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job.ID = uuid.New()
	r.jobs[job.ID] = job
	return nil
}

func (r *memRepo) GetImportJobByID(_ context.Context, id uuid.UUID) (*repository.ImportJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[id], nil
}

func (r *memRepo) UpdateImportJobProgress(context.Context, uuid.UUID, int, int) error { return nil }

func (r *memRepo) FinishImportJob(_ context.Context, id uuid.UUID, status string, bankFormat *string, rowsImported, rowsFailed int, errorMessage *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job := r.jobs[id]
	job.Status = status
	job.BankFormat = bankFormat
	job.RowsImported = rowsImported
	job.RowsFailed = rowsFailed
	job.ErrorMessage = errorMessage
	return nil
}

func (r *memRepo) BulkInsertTransactions(_ context.Context, _ *repository.ImportJob, txs []*repository.ImportedTransaction) (int, error) {
	return len(txs), nil
}

type staticPDF string

func (s staticPDF) ExtractText(context.Context, []byte, string) (string, error) {
	return string(s), nil
}

func newTestHandler(t *testing.T, pdfText string) *StatementHandler {
	t.Helper()
	ext, err := extractor.New(nil)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := &memRepo{jobs: make(map[uuid.UUID]*repository.ImportJob)}
	svc := service.NewStatementService(repo, staticPDF(pdfText), ext, service.Config{}, logger)
	return NewStatementHandler(svc)
}

func TestExtractStatement(t *testing.T) {
	h := newTestHandler(t, groceryStatement)
	ctx := context.Background()

	t.Run("text", func(t *testing.T) {
		resp, err := h.ExtractStatement(ctx, connect.NewRequest(&ExtractStatementRequest{Text: groceryStatement}))
		require.NoError(t, err)
		require.Len(t, resp.Msg.Transactions, 2)
		assert.Equal(t, "single_date_currency", resp.Msg.BankFormat)
		assert.Equal(t, "-23.1", resp.Msg.Transactions[0].Amount.String())
		assert.Equal(t, "150", resp.Msg.Transactions[1].Amount.String())
	})

	t.Run("pdf", func(t *testing.T) {
		resp, err := h.ExtractStatement(ctx, connect.NewRequest(&ExtractStatementRequest{PdfBytes: []byte("%PDF")}))
		require.NoError(t, err)
		assert.Len(t, resp.Msg.Transactions, 2)
	})

	t.Run("missing input", func(t *testing.T) {
		_, err := h.ExtractStatement(ctx, connect.NewRequest(&ExtractStatementRequest{}))
		assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	})

	t.Run("both inputs", func(t *testing.T) {
		_, err := h.ExtractStatement(ctx, connect.NewRequest(&ExtractStatementRequest{PdfBytes: []byte("%PDF"), Text: "x"}))
		assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	})
}

func TestExtractStatement_ShortDocument(t *testing.T) {
	h := newTestHandler(t, "Extrato")

	_, err := h.ExtractStatement(context.Background(), connect.NewRequest(&ExtractStatementRequest{PdfBytes: []byte("%PDF")}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestImportStatement(t *testing.T) {
	h := newTestHandler(t, groceryStatement)
	userID := uuid.New()
	ctx := interceptors.WithUserID(context.Background(), userID.String())

	t.Run("unauthenticated", func(t *testing.T) {
		_, err := h.ImportStatement(context.Background(), connect.NewRequest(&ImportStatementRequest{Text: groceryStatement}))
		assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	})

	t.Run("invalid account", func(t *testing.T) {
		bad := "not-a-uuid"
		_, err := h.ImportStatement(ctx, connect.NewRequest(&ImportStatementRequest{Text: groceryStatement, AccountID: &bad}))
		assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	})

	t.Run("no transactions", func(t *testing.T) {
		_, err := h.ImportStatement(ctx, connect.NewRequest(&ImportStatementRequest{Text: "Sem movimentos"}))
		assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))
	})

	t.Run("success", func(t *testing.T) {
		resp, err := h.ImportStatement(ctx, connect.NewRequest(&ImportStatementRequest{PdfBytes: []byte("%PDF")}))
		require.NoError(t, err)
		assert.Equal(t, 2, resp.Msg.TransactionsCount)
		assert.Equal(t, "single_date_currency", resp.Msg.BankFormat)
		require.Len(t, resp.Msg.Preview, 2)
		assert.Equal(t, "Alimentação", resp.Msg.Preview[0].Category)
		assert.Equal(t, "expense", resp.Msg.Preview[0].Type)
		assert.Equal(t, "income", resp.Msg.Preview[1].Type)

		job, err := h.GetImportJob(ctx, connect.NewRequest(&GetImportJobRequest{JobID: resp.Msg.JobID}))
		require.NoError(t, err)
		assert.Equal(t, repository.JobStatusSucceeded, job.Msg.Status)
		assert.Equal(t, "single_date_currency", job.Msg.BankFormat)
		assert.Equal(t, 2, job.Msg.RowsImported)

		otherCtx := interceptors.WithUserID(context.Background(), uuid.NewString())
		_, err = h.GetImportJob(otherCtx, connect.NewRequest(&GetImportJobRequest{JobID: resp.Msg.JobID}))
		assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
	})
}

func TestGetImportJob_InvalidID(t *testing.T) {
	h := newTestHandler(t, groceryStatement)
	ctx := interceptors.WithUserID(context.Background(), uuid.NewString())

	_, err := h.GetImportJob(ctx, connect.NewRequest(&GetImportJobRequest{JobID: "nope"}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestStatementServiceHandler_JSON(t *testing.T) {
	path, svcHandler := NewStatementServiceHandler(newTestHandler(t, groceryStatement))
	assert.Equal(t, "/familia.v1.StatementService/", path)

	mux := http.NewServeMux()
	mux.Handle(path, svcHandler)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	body, err := json.Marshal(ExtractStatementRequest{Text: groceryStatement})
	require.NoError(t, err)

	resp, err := srv.Client().Post(srv.URL+ExtractStatementProcedure, "application/json", strings.NewReader(string(body)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Transactions []struct {
			Date   string `json:"date"`
			Amount string `json:"amount"`
		} `json:"transactions"`
		BankFormat string `json:"bank_format"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Transactions, 2)
	assert.Equal(t, "2025-02-03", out.Transactions[0].Date)
	assert.Equal(t, "-23.1", out.Transactions[0].Amount)
	assert.Equal(t, "single_date_currency", out.BankFormat)
}

func TestStatementServiceHandler_Unauthenticated(t *testing.T) {
	_, svcHandler := NewStatementServiceHandler(
		newTestHandler(t, groceryStatement),
		connect.WithInterceptors(interceptors.NewAuthInterceptor([]byte("secret"), ExtractStatementProcedure)),
	)
	srv := httptest.NewServer(svcHandler)
	defer srv.Close()

	resp, err := srv.Client().Post(srv.URL+ImportStatementProcedure, "application/json", strings.NewReader(`{"text":"x"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestJSONCodec(t *testing.T) {
	var codec JSONCodec
	assert.Equal(t, "json", codec.Name())

	var req GetImportJobRequest
	require.NoError(t, codec.Unmarshal(nil, &req))
	assert.Empty(t, req.JobID)

	require.NoError(t, codec.Unmarshal([]byte(`{"job_id":"abc"}`), &req))
	assert.Equal(t, "abc", req.JobID)

	assert.Error(t, codec.Unmarshal([]byte(`{`), &req))
}
