package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"credit-engine/internal/api/handler/dto"
	"credit-engine/internal/domain/loan"
	"credit-engine/internal/pkg/apperrors"
	"credit-engine/internal/pkg/paging"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type LoanHandler struct {
	loans        loan.Service
	payments     loan.PaymentService
	installments loan.InstallmentService
	defaultRate  decimal.Decimal
	logger       *slog.Logger
}

func NewLoanHandler(loans loan.Service, payments loan.PaymentService, installments loan.InstallmentService, defaultRate decimal.Decimal, l *slog.Logger) *LoanHandler {
	if loans == nil || payments == nil || installments == nil {
		panic("loan handler dependencies cannot be nil")
	}
	return &LoanHandler{
		loans:        loans,
		payments:     payments,
		installments: installments,
		defaultRate:  defaultRate,
		logger:       l.With("component", "LoanHandler"),
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return fmt.Errorf("no request body")
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Default().Error("Failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":{"message":"Internal server error"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

func respondError(w http.ResponseWriter, err error) {
	status, message, field := http.StatusInternalServerError, "An unexpected error occurred.", ""
	var validationError *apperrors.ValidationError

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		status, message = http.StatusNotFound, apperrors.Message(err)
	case errors.Is(err, apperrors.ErrInvalidArgument):
		status, message = http.StatusBadRequest, apperrors.Message(err)
	case errors.Is(err, apperrors.ErrBusinessRule):
		status, message = http.StatusUnprocessableEntity, apperrors.Message(err)
	case errors.As(err, &validationError):
		status, message, field = http.StatusBadRequest, validationError.Message, validationError.Field
	case errors.Is(err, apperrors.ErrValidation):
		status, message = http.StatusBadRequest, apperrors.Message(err)
	case errors.Is(err, apperrors.ErrUnauthorized):
		status, message = http.StatusUnauthorized, "Unauthorized"
	default:
		slog.Default().Error("Unhandled internal error", "error", err)
	}

	resp := dto.ErrorResponse{
		Error: dto.ErrorDetail{
			Message: message,
			Field:   field,
		},
	}
	respondJSON(w, status, resp)
}

func getLoanIDFromURL(r *http.Request) (int64, error) {
	idStr := chi.URLParam(r, "loanID")
	if idStr == "" {
		return 0, fmt.Errorf("%w: loanID not found in URL path", apperrors.ErrInvalidArgument)
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid loanID format in URL path: %s", apperrors.ErrInvalidArgument, idStr)
	}
	return id, nil
}

func pagingFromQuery(r *http.Request) paging.Request {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	return paging.NewRequest(page, size)
}

// CreateLoan handles POST /loans
//
// @Summary Create a new loan
// @Description Creates a loan with an even installment schedule and reserves the customer's credit.
// @Tags Loans
// @Accept json
// @Produce json
// @Param request body dto.CreateLoanRequest true "Loan creation request payload"
// @Success 201 {object} dto.CreateLoanResponse "Loan successfully created"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload or installment count"
// @Failure 404 {object} dto.ErrorResponse "Customer not found"
// @Failure 422 {object} dto.ErrorResponse "Credit limit exceeded"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans [post]
// @Security BearerAuth
func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateLoanRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		h.logger.WarnContext(r.Context(), "Create loan request validation failed", slog.Any("error", err))
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	interestRate := req.InterestRate
	if interestRate.IsZero() {
		interestRate = h.defaultRate
	}

	createdLoan, err := h.loans.CreateLoan(r.Context(), req.CustomerID, req.LoanAmount, req.NumberOfInstallment, interestRate)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto.NewCreateLoanResponse(createdLoan))
}

// GetLoan handles GET /loans/{loanID}
//
// @Summary Retrieve loan details
// @Tags Loans
// @Produce json
// @Param loanID path int true "Loan ID"
// @Success 200 {object} dto.LoanResponse "Loan details successfully retrieved"
// @Failure 400 {object} dto.ErrorResponse "Invalid loan ID format"
// @Failure 404 {object} dto.ErrorResponse "Loan not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{loanID} [get]
// @Security BearerAuth
func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := getLoanIDFromURL(r)
	if err != nil {
		respondError(w, err)
		return
	}

	theLoan, err := h.loans.GetLoan(r.Context(), loanID)
	if err != nil {
		level := slog.LevelWarn
		if !errors.Is(err, apperrors.ErrNotFound) {
			level = slog.LevelError
		}
		h.logger.Log(r.Context(), level, "Service failed to get loan", slog.Any("error", err))
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewLoanResponse(theLoan))
}

// ListLoans handles GET /loans?customerId={customerID}
//
// @Summary List a customer's loans
// @Tags Loans
// @Produce json
// @Param customerId query int true "Customer ID" Minimum(1)
// @Param page query int false "Zero-based page index"
// @Param size query int false "Page size (max 100)"
// @Success 200 {object} dto.ListLoanResponse "Paged list of loans"
// @Failure 400 {object} dto.ErrorResponse "Invalid or missing customerId"
// @Failure 404 {object} dto.ErrorResponse "Customer not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans [get]
// @Security BearerAuth
func (h *LoanHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	customerIDStr := r.URL.Query().Get("customerId")
	if customerIDStr == "" {
		respondError(w, fmt.Errorf("%w: missing required query parameter 'customerId'", apperrors.ErrInvalidArgument))
		return
	}
	customerID, err := strconv.ParseInt(customerIDStr, 10, 64)
	if err != nil || customerID <= 0 {
		respondError(w, fmt.Errorf("%w: invalid customerId format: %s", apperrors.ErrInvalidArgument, customerIDStr))
		return
	}

	loans, page, err := h.loans.ListLoans(r.Context(), customerID, pagingFromQuery(r))
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewListLoanResponse(loans, page))
}

// ListInstallments handles GET /loans/{loanID}/installments
//
// @Summary List a loan's installments
// @Tags Loans
// @Produce json
// @Param loanID path int true "Loan ID"
// @Param page query int false "Zero-based page index"
// @Param size query int false "Page size (max 100)"
// @Success 200 {object} dto.ListLoanInstallmentsResponse "Paged installment schedule"
// @Failure 400 {object} dto.ErrorResponse "Invalid loan ID format"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{loanID}/installments [get]
// @Security BearerAuth
func (h *LoanHandler) ListInstallments(w http.ResponseWriter, r *http.Request) {
	loanID, err := getLoanIDFromURL(r)
	if err != nil {
		respondError(w, err)
		return
	}

	installments, page, err := h.installments.ListInstallments(r.Context(), loanID, pagingFromQuery(r))
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewListLoanInstallmentsResponse(loanID, installments, page))
}

// GetInstallment handles GET /installments/{installmentID}
//
// @Summary Retrieve a single installment
// @Tags Loans
// @Produce json
// @Param installmentID path int true "Installment ID"
// @Success 200 {object} dto.LoanInstallmentResponse "Installment details"
// @Failure 400 {object} dto.ErrorResponse "Invalid installment ID format"
// @Failure 404 {object} dto.ErrorResponse "Installment not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /installments/{installmentID} [get]
// @Security BearerAuth
func (h *LoanHandler) GetInstallment(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "installmentID")
	installmentID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || installmentID <= 0 {
		respondError(w, fmt.Errorf("%w: invalid installmentID format in URL path: %s", apperrors.ErrInvalidArgument, idStr))
		return
	}

	inst, err := h.installments.GetInstallment(r.Context(), installmentID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewLoanInstallmentResponse(inst))
}

// PayLoan handles POST /loans/{loanID}/pay
//
// @Summary Pay installments of a loan
// @Description Allocates the paid amount over the loan's due-date-ordered unpaid installments and settles whole installments only.
// @Tags Loans
// @Accept json
// @Produce json
// @Param loanID path int true "Loan ID"
// @Param request body dto.PayLoanRequest true "Payment amount"
// @Success 200 {object} dto.PayLoanResponse "Settlement summary"
// @Failure 400 {object} dto.ErrorResponse "Invalid payload or negative amount"
// @Failure 404 {object} dto.ErrorResponse "Loan or unpaid installments not found"
// @Failure 422 {object} dto.ErrorResponse "No eligible installments or amount below first installment"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /loans/{loanID}/pay [post]
// @Security BearerAuth
func (h *LoanHandler) PayLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := getLoanIDFromURL(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req dto.PayLoanRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode payment request body", slog.Any("error", err))
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	result, err := h.payments.PayLoan(r.Context(), loanID, req.Amount)
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, apperrors.ErrDatabase) || errors.Is(err, apperrors.ErrInternalServer) {
			level = slog.LevelError
		}
		h.logger.Log(r.Context(), level, "Payment failed", slog.Int64("loanID", loanID), slog.Any("error", err))
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewPayLoanResponse(result))
}
