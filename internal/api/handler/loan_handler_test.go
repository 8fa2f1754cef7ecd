package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"credit-engine/internal/api/handler/dto"
	"credit-engine/internal/domain/loan"
	"credit-engine/internal/pkg/apperrors"
	"credit-engine/internal/pkg/paging"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockLoanService struct {
	mock.Mock
}

func (m *MockLoanService) CreateLoan(ctx context.Context, customerID int64, loanAmount decimal.Decimal, numberOfInstallments int, interestRate decimal.Decimal) (*loan.Loan, error) {
	args := m.Called(ctx, customerID, loanAmount, numberOfInstallments, interestRate)
	if createdLoan, ok := args.Get(0).(*loan.Loan); ok {
		return createdLoan, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) GetLoan(ctx context.Context, loanID int64) (*loan.Loan, error) {
	args := m.Called(ctx, loanID)
	if theLoan, ok := args.Get(0).(*loan.Loan); ok {
		return theLoan, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) ListLoans(ctx context.Context, customerID int64, page paging.Request) ([]loan.Loan, paging.Page, error) {
	args := m.Called(ctx, customerID, page)
	var loans []loan.Loan
	if got, ok := args.Get(0).([]loan.Loan); ok {
		loans = got
	}
	return loans, args.Get(1).(paging.Page), args.Error(2)
}

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) PayLoan(ctx context.Context, loanID int64, paidAmount decimal.Decimal) (*loan.PaymentResult, error) {
	args := m.Called(ctx, loanID, paidAmount)
	if result, ok := args.Get(0).(*loan.PaymentResult); ok {
		return result, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockInstallmentService struct {
	mock.Mock
}

func (m *MockInstallmentService) GetInstallment(ctx context.Context, installmentID int64) (*loan.Installment, error) {
	args := m.Called(ctx, installmentID)
	if inst, ok := args.Get(0).(*loan.Installment); ok {
		return inst, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockInstallmentService) GetUnpaidInstallments(ctx context.Context, loanID int64) ([]loan.Installment, error) {
	args := m.Called(ctx, loanID)
	if installments, ok := args.Get(0).([]loan.Installment); ok {
		return installments, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockInstallmentService) ListInstallments(ctx context.Context, loanID int64, page paging.Request) ([]loan.Installment, paging.Page, error) {
	args := m.Called(ctx, loanID, page)
	var installments []loan.Installment
	if got, ok := args.Get(0).([]loan.Installment); ok {
		installments = got
	}
	return installments, args.Get(1).(paging.Page), args.Error(2)
}

func (m *MockInstallmentService) GetUnpaidInstallmentsForUpdate(ctx context.Context, tx pgx.Tx, loanID int64) ([]loan.Installment, error) {
	args := m.Called(ctx, tx, loanID)
	if installments, ok := args.Get(0).([]loan.Installment); ok {
		return installments, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockInstallmentService) PayMultipleLoanInstallments(ctx context.Context, tx pgx.Tx, installmentIDs []int64, paidAt time.Time) error {
	return m.Called(ctx, tx, installmentIDs, paidAt).Error(0)
}

var (
	errCreditLimit  = fmt.Errorf("%w: Customer does not have enough credit limit for this loan", apperrors.ErrBusinessRule)
	errLoanNotFound = fmt.Errorf("%w: Loan not found with id: 2", apperrors.ErrNotFound)
	errNotEligible  = fmt.Errorf("%w: No installments are eligible for payment for loanId: 42", apperrors.ErrBusinessRule)
)

func newTestLoanHandler(loans *MockLoanService, payments *MockPaymentService, installments *MockInstallmentService) *LoanHandler {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	return NewLoanHandler(loans, payments, installments, decimal.NewFromFloat(0.10), logger)
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, &chi.Context{
		URLParams: chi.RouteParams{Keys: []string{key}, Values: []string{value}},
	}))
}

func TestLoanHandlerCreateLoan(t *testing.T) {
	t.Run("creates a loan and returns 201", func(t *testing.T) {
		loans := new(MockLoanService)
		handler := newTestLoanHandler(loans, new(MockPaymentService), new(MockInstallmentService))

		created := &loan.Loan{
			ID:                   1,
			CustomerID:           7,
			LoanAmount:           decimal.NewFromInt(1000),
			NumberOfInstallments: 12,
			CreatedAt:            time.Date(2024, time.June, 1, 10, 30, 0, 0, time.UTC),
		}
		loans.On("CreateLoan", mock.Anything, int64(7), mock.Anything, 12, mock.Anything).Return(created, nil)

		body := `{"customerId":7,"loanAmount":"1000","interestRate":"0.2","numberOfInstallment":12}`
		req := httptest.NewRequest(http.MethodPost, "/loans", strings.NewReader(body))
		rec := httptest.NewRecorder()

		handler.CreateLoan(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		var resp dto.CreateLoanResponse
		assert.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, int64(1), resp.ID)
		assert.Equal(t, "2024-06-01 10:30:00", resp.InsertDate)
		loans.AssertExpectations(t)
	})

	t.Run("falls back to the default interest rate when omitted", func(t *testing.T) {
		loans := new(MockLoanService)
		handler := newTestLoanHandler(loans, new(MockPaymentService), new(MockInstallmentService))

		loans.On("CreateLoan", mock.Anything, int64(7), mock.Anything, 12, mock.MatchedBy(func(rate decimal.Decimal) bool {
			return rate.Equal(decimal.NewFromFloat(0.10))
		})).Return(&loan.Loan{ID: 1}, nil)

		body := `{"customerId":7,"loanAmount":"1000","numberOfInstallment":12}`
		req := httptest.NewRequest(http.MethodPost, "/loans", strings.NewReader(body))
		rec := httptest.NewRecorder()

		handler.CreateLoan(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		loans.AssertExpectations(t)
	})

	t.Run("invalid installment count maps to 400", func(t *testing.T) {
		loans := new(MockLoanService)
		handler := newTestLoanHandler(loans, new(MockPaymentService), new(MockInstallmentService))

		loans.On("CreateLoan", mock.Anything, int64(7), mock.Anything, 7, mock.Anything).
			Return(nil, loan.CheckNumberOfInstallments(7))

		body := `{"customerId":7,"loanAmount":"1000","numberOfInstallment":7}`
		req := httptest.NewRequest(http.MethodPost, "/loans", strings.NewReader(body))
		rec := httptest.NewRecorder()

		handler.CreateLoan(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var resp dto.ErrorResponse
		assert.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "Invalid number of installments. Must be: [6, 9, 12, 24]", resp.Error.Message)
	})

	t.Run("credit limit violation maps to 422", func(t *testing.T) {
		loans := new(MockLoanService)
		handler := newTestLoanHandler(loans, new(MockPaymentService), new(MockInstallmentService))

		loans.On("CreateLoan", mock.Anything, int64(7), mock.Anything, 12, mock.Anything).
			Return(nil, errCreditLimit)

		body := `{"customerId":7,"loanAmount":"1000","numberOfInstallment":12}`
		req := httptest.NewRequest(http.MethodPost, "/loans", strings.NewReader(body))
		rec := httptest.NewRecorder()

		handler.CreateLoan(rec, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		var resp dto.ErrorResponse
		assert.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "Customer does not have enough credit limit for this loan", resp.Error.Message)
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		handler := newTestLoanHandler(new(MockLoanService), new(MockPaymentService), new(MockInstallmentService))

		body := `{"customerId":7,"loanAmount":"1000","numberOfInstallment":12,"bogus":true}`
		req := httptest.NewRequest(http.MethodPost, "/loans", strings.NewReader(body))
		rec := httptest.NewRecorder()

		handler.CreateLoan(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLoanHandlerGetLoan(t *testing.T) {
	t.Run("returns loan details", func(t *testing.T) {
		loans := new(MockLoanService)
		handler := newTestLoanHandler(loans, new(MockPaymentService), new(MockInstallmentService))

		loans.On("GetLoan", mock.Anything, int64(123)).Return(&loan.Loan{ID: 123, CustomerID: 7}, nil)

		req := withURLParam(httptest.NewRequest(http.MethodGet, "/loans/123", nil), "loanID", "123")
		rec := httptest.NewRecorder()

		handler.GetLoan(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp dto.LoanResponse
		assert.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, int64(123), resp.ID)
	})

	t.Run("invalid loan id maps to 400", func(t *testing.T) {
		handler := newTestLoanHandler(new(MockLoanService), new(MockPaymentService), new(MockInstallmentService))

		req := withURLParam(httptest.NewRequest(http.MethodGet, "/loans/abc", nil), "loanID", "abc")
		rec := httptest.NewRecorder()

		handler.GetLoan(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing loan maps to 404 with the domain message", func(t *testing.T) {
		loans := new(MockLoanService)
		handler := newTestLoanHandler(loans, new(MockPaymentService), new(MockInstallmentService))

		loans.On("GetLoan", mock.Anything, int64(2)).Return(nil, errLoanNotFound)

		req := withURLParam(httptest.NewRequest(http.MethodGet, "/loans/2", nil), "loanID", "2")
		rec := httptest.NewRecorder()

		handler.GetLoan(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		var resp dto.ErrorResponse
		assert.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "Loan not found with id: 2", resp.Error.Message)
	})
}

func TestLoanHandlerListLoans(t *testing.T) {
	t.Run("requires customerId", func(t *testing.T) {
		handler := newTestLoanHandler(new(MockLoanService), new(MockPaymentService), new(MockInstallmentService))

		req := httptest.NewRequest(http.MethodGet, "/loans", nil)
		rec := httptest.NewRecorder()

		handler.ListLoans(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("returns paged loans", func(t *testing.T) {
		loans := new(MockLoanService)
		handler := newTestLoanHandler(loans, new(MockPaymentService), new(MockInstallmentService))

		page := paging.NewPage(paging.NewRequest(0, 10), 2)
		loans.On("ListLoans", mock.Anything, int64(7), paging.NewRequest(0, 10)).
			Return([]loan.Loan{{ID: 1, CustomerID: 7}, {ID: 2, CustomerID: 7}}, page, nil)

		req := httptest.NewRequest(http.MethodGet, "/loans?customerId=7", nil)
		rec := httptest.NewRecorder()

		handler.ListLoans(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp dto.ListLoanResponse
		assert.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Len(t, resp.Loans, 2)
		assert.Equal(t, int64(2), resp.Paging.TotalElements)
	})
}

func TestLoanHandlerPayLoan(t *testing.T) {
	t.Run("settles installments and returns the summary", func(t *testing.T) {
		payments := new(MockPaymentService)
		handler := newTestLoanHandler(new(MockLoanService), payments, new(MockInstallmentService))

		result := &loan.PaymentResult{
			LoanID:               42,
			PaidInstallmentCount: 2,
			TotalAmountSpent:     decimal.NewFromInt(1000),
			LoanPaidCompletely:   true,
		}
		payments.On("PayLoan", mock.Anything, int64(42), mock.MatchedBy(func(d decimal.Decimal) bool {
			return d.Equal(decimal.NewFromInt(1000))
		})).Return(result, nil)

		req := withURLParam(httptest.NewRequest(http.MethodPost, "/loans/42/pay", strings.NewReader(`{"amount":"1000"}`)), "loanID", "42")
		rec := httptest.NewRecorder()

		handler.PayLoan(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp dto.PayLoanResponse
		assert.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, 2, resp.PaidInstallmentCount)
		assert.True(t, resp.LoanPaidCompletely)
	})

	t.Run("ineligible payment maps to 422", func(t *testing.T) {
		payments := new(MockPaymentService)
		handler := newTestLoanHandler(new(MockLoanService), payments, new(MockInstallmentService))

		payments.On("PayLoan", mock.Anything, int64(42), mock.Anything).Return(nil, errNotEligible)

		req := withURLParam(httptest.NewRequest(http.MethodPost, "/loans/42/pay", strings.NewReader(`{"amount":"10"}`)), "loanID", "42")
		rec := httptest.NewRecorder()

		handler.PayLoan(rec, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		var resp dto.ErrorResponse
		assert.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "No installments are eligible for payment for loanId: 42", resp.Error.Message)
	})

	t.Run("malformed body maps to 400", func(t *testing.T) {
		handler := newTestLoanHandler(new(MockLoanService), new(MockPaymentService), new(MockInstallmentService))

		req := withURLParam(httptest.NewRequest(http.MethodPost, "/loans/42/pay", strings.NewReader(`{`)), "loanID", "42")
		rec := httptest.NewRecorder()

		handler.PayLoan(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLoanHandlerGetInstallment(t *testing.T) {
	installments := new(MockInstallmentService)
	handler := newTestLoanHandler(new(MockLoanService), new(MockPaymentService), installments)

	inst := &loan.Installment{ID: 5, LoanID: 42, Amount: decimal.NewFromInt(100)}
	installments.On("GetInstallment", mock.Anything, int64(5)).Return(inst, nil)

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/installments/5", nil), "installmentID", "5")
	rec := httptest.NewRecorder()

	handler.GetInstallment(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp dto.LoanInstallmentResponse
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, int64(42), resp.LoanID)
}
