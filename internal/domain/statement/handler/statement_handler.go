// Package handler implements the StatementService Connect RPC handlers.
package handler

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/FACorreiaa/familia-financas/internal/domain/common"
	"github.com/FACorreiaa/familia-financas/internal/domain/statement/service"
	"github.com/FACorreiaa/familia-financas/pkg/interceptors"
)

// StatementServiceName is the fully-qualified name of the statement service.
const StatementServiceName = "familia.v1.StatementService"

// Procedure paths served by the statement service.
const (
	ExtractStatementProcedure = "/" + StatementServiceName + "/ExtractStatement"
	ImportStatementProcedure  = "/" + StatementServiceName + "/ImportStatement"
	GetImportJobProcedure     = "/" + StatementServiceName + "/GetImportJob"
)

// StatementHandler implements the StatementService Connect handlers.
type StatementHandler struct {
	svc *service.StatementService
}

// NewStatementHandler constructs a new handler.
func NewStatementHandler(svc *service.StatementService) *StatementHandler {
	return &StatementHandler{svc: svc}
}

// NewStatementServiceHandler builds the HTTP handler for the service and the path
// prefix to mount it on.
func NewStatementServiceHandler(h *StatementHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(ExtractStatementProcedure, connect.NewUnaryHandler(ExtractStatementProcedure, h.ExtractStatement, opts...))
	mux.Handle(ImportStatementProcedure, connect.NewUnaryHandler(ImportStatementProcedure, h.ImportStatement, opts...))
	mux.Handle(GetImportJobProcedure, connect.NewUnaryHandler(GetImportJobProcedure, h.GetImportJob, opts...))
	return "/" + StatementServiceName + "/", mux
}

// ExtractStatement extracts transactions without storing them.
func (h *StatementHandler) ExtractStatement(
	ctx context.Context,
	req *connect.Request[ExtractStatementRequest],
) (*connect.Response[ExtractStatementResponse], error) {
	if err := validateSource(req.Msg.PdfBytes, req.Msg.Text); err != nil {
		return nil, err
	}

	var (
		result *service.ExtractResult
		err    error
	)
	if req.Msg.Text != "" {
		result, err = h.svc.ExtractText(ctx, req.Msg.Text)
	} else {
		result, err = h.svc.ExtractDocument(ctx, req.Msg.PdfBytes, req.Msg.Password)
	}
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&ExtractStatementResponse{
		Transactions: result.Transactions,
		BankFormat:   result.Strategy,
		TextLength:   result.TextLength,
		Stats:        result.Stats,
	}), nil
}

// ImportStatement extracts a statement and stores its transactions for the caller.
func (h *StatementHandler) ImportStatement(
	ctx context.Context,
	req *connect.Request[ImportStatementRequest],
) (*connect.Response[ImportStatementResponse], error) {
	userID, err := userFromContext(ctx)
	if err != nil {
		return nil, err
	}

	if err := validateSource(req.Msg.PdfBytes, req.Msg.Text); err != nil {
		return nil, err
	}

	// Parse optional account ID
	var accountID *uuid.UUID
	if req.Msg.AccountID != nil && *req.Msg.AccountID != "" {
		parsed, err := uuid.Parse(*req.Msg.AccountID)
		if err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("invalid account_id"))
		}
		accountID = &parsed
	}

	result, err := h.svc.ImportStatement(ctx, service.ImportRequest{
		UserID:    userID,
		AccountID: accountID,
		FileName:  req.Msg.FileName,
		Data:      req.Msg.PdfBytes,
		Password:  req.Msg.Password,
		Text:      req.Msg.Text,
	})
	if err != nil {
		return nil, toConnectError(err)
	}

	preview := make([]PreviewTransaction, 0, len(result.Preview))
	for _, tx := range result.Preview {
		kind := "expense"
		if tx.IsIncome() {
			kind = "income"
		}
		preview = append(preview, PreviewTransaction{
			Date:        tx.Date,
			Description: tx.Description,
			Merchant:    tx.Merchant,
			Amount:      tx.Amount,
			Category:    tx.Category,
			Type:        kind,
		})
	}

	return connect.NewResponse(&ImportStatementResponse{
		JobID:             result.JobID.String(),
		BankFormat:        result.BankFormat,
		TransactionsCount: result.RowsImported,
		Preview:           preview,
	}), nil
}

// GetImportJob reports the status of one of the caller's imports.
func (h *StatementHandler) GetImportJob(
	ctx context.Context,
	req *connect.Request[GetImportJobRequest],
) (*connect.Response[GetImportJobResponse], error) {
	userID, err := userFromContext(ctx)
	if err != nil {
		return nil, err
	}

	jobID, err := uuid.Parse(req.Msg.JobID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("invalid job_id"))
	}

	job, err := h.svc.GetImportJob(ctx, userID, jobID)
	if err != nil {
		return nil, toConnectError(err)
	}

	resp := &GetImportJobResponse{
		JobID:        job.ID.String(),
		Kind:         job.Kind,
		Status:       job.Status,
		RowsImported: job.RowsImported,
		RowsFailed:   job.RowsFailed,
		RequestedAt:  job.RequestedAt,
		FinishedAt:   job.FinishedAt,
	}
	if job.BankFormat != nil {
		resp.BankFormat = *job.BankFormat
	}
	if job.ErrorMessage != nil {
		resp.ErrorMessage = *job.ErrorMessage
	}
	return connect.NewResponse(resp), nil
}

func userFromContext(ctx context.Context) (uuid.UUID, error) {
	userIDStr, ok := interceptors.GetUserIDFromContext(ctx)
	if !ok || userIDStr == "" {
		return uuid.Nil, connect.NewError(connect.CodeUnauthenticated, errors.New("authentication required"))
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, connect.NewError(connect.CodeUnauthenticated, errors.New("invalid user ID in token"))
	}
	return userID, nil
}

func validateSource(pdf []byte, text string) error {
	switch {
	case len(pdf) == 0 && text == "":
		return connect.NewError(connect.CodeInvalidArgument, errors.New("pdf_bytes or text is required"))
	case len(pdf) > 0 && text != "":
		return connect.NewError(connect.CodeInvalidArgument, errors.New("set only one of pdf_bytes and text"))
	}
	return nil
}

func toConnectError(err error) error {
	switch {
	case errors.Is(err, service.ErrExtractionFailed):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, service.ErrNoTransactions):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, common.ErrConflict):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, common.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, common.ErrUnavailable):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
