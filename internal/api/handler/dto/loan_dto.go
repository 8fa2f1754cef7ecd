package dto

import (
	"fmt"
	"time"

	"credit-engine/internal/domain/loan"
	"credit-engine/internal/pkg/paging"

	"github.com/shopspring/decimal"
)

// insertDateLayout matches the timestamp format the public contract promises
// for loan creation responses.
const insertDateLayout = "2006-01-02 15:04:05"

type CreateLoanRequest struct {
	CustomerID          int64           `json:"customerId"`
	LoanAmount          decimal.Decimal `json:"loanAmount"`
	InterestRate        decimal.Decimal `json:"interestRate"`
	NumberOfInstallment int             `json:"numberOfInstallment"`
}

func (r *CreateLoanRequest) Validate() error {
	if r.CustomerID <= 0 {
		return fmt.Errorf("customerId must be a positive number")
	}
	if !r.LoanAmount.IsPositive() {
		return fmt.Errorf("loanAmount must be positive")
	}
	if r.InterestRate.IsNegative() {
		return fmt.Errorf("interestRate cannot be negative")
	}
	if r.NumberOfInstallment <= 0 {
		return fmt.Errorf("numberOfInstallment must be a positive number")
	}
	return nil
}

type CreateLoanResponse struct {
	ID                  int64           `json:"id"`
	InsertDate          string          `json:"insertDate"`
	CustomerID          int64           `json:"customerId"`
	LoanAmount          decimal.Decimal `json:"loanAmount"`
	NumberOfInstallment int             `json:"numberOfInstallment"`
}

func NewCreateLoanResponse(l *loan.Loan) CreateLoanResponse {
	if l == nil {
		return CreateLoanResponse{}
	}
	return CreateLoanResponse{
		ID:                  l.ID,
		InsertDate:          l.CreatedAt.Format(insertDateLayout),
		CustomerID:          l.CustomerID,
		LoanAmount:          l.LoanAmount,
		NumberOfInstallment: l.NumberOfInstallments,
	}
}

type LoanResponse struct {
	ID                  int64           `json:"id"`
	CustomerID          int64           `json:"customerId"`
	LoanAmount          decimal.Decimal `json:"loanAmount"`
	InterestRate        decimal.Decimal `json:"interestRate"`
	NumberOfInstallment int             `json:"numberOfInstallment"`
	IsPaid              bool            `json:"isPaid"`
	CreateDate          time.Time       `json:"createDate"`
}

func NewLoanResponse(l *loan.Loan) LoanResponse {
	if l == nil {
		return LoanResponse{}
	}
	return LoanResponse{
		ID:                  l.ID,
		CustomerID:          l.CustomerID,
		LoanAmount:          l.LoanAmount,
		InterestRate:        l.InterestRate,
		NumberOfInstallment: l.NumberOfInstallments,
		IsPaid:              l.Paid,
		CreateDate:          l.CreatedAt,
	}
}

type ListLoanResponse struct {
	Loans  []LoanResponse `json:"loans"`
	Paging paging.Page    `json:"paging"`
}

func NewListLoanResponse(loans []loan.Loan, page paging.Page) ListLoanResponse {
	resp := ListLoanResponse{
		Loans:  make([]LoanResponse, len(loans)),
		Paging: page,
	}
	for i := range loans {
		resp.Loans[i] = NewLoanResponse(&loans[i])
	}
	return resp
}

type LoanInstallmentResponse struct {
	ID         int64           `json:"id"`
	LoanID     int64           `json:"loanId"`
	Amount     decimal.Decimal `json:"amount"`
	PaidAmount decimal.Decimal `json:"paidAmount"`
	DueDate    time.Time       `json:"dueDate"`
	IsPaid     bool            `json:"isPaid"`
}

func NewLoanInstallmentResponse(inst *loan.Installment) LoanInstallmentResponse {
	if inst == nil {
		return LoanInstallmentResponse{}
	}
	return LoanInstallmentResponse{
		ID:         inst.ID,
		LoanID:     inst.LoanID,
		Amount:     inst.Amount,
		PaidAmount: inst.PaidAmount,
		DueDate:    inst.DueDate,
		IsPaid:     inst.Paid,
	}
}

type ListLoanInstallmentsResponse struct {
	LoanID           int64                     `json:"loanId"`
	LoanInstallments []LoanInstallmentResponse `json:"loanInstallments"`
	Paging           paging.Page               `json:"paging"`
}

func NewListLoanInstallmentsResponse(loanID int64, installments []loan.Installment, page paging.Page) ListLoanInstallmentsResponse {
	resp := ListLoanInstallmentsResponse{
		LoanID:           loanID,
		LoanInstallments: make([]LoanInstallmentResponse, len(installments)),
		Paging:           page,
	}
	for i := range installments {
		resp.LoanInstallments[i] = NewLoanInstallmentResponse(&installments[i])
	}
	return resp
}

type PayLoanRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type PayLoanResponse struct {
	LoanID               int64           `json:"loanId"`
	PaidInstallmentCount int             `json:"paidInstallmentCount"`
	TotalAmountSpent     decimal.Decimal `json:"totalAmountSpent"`
	LoanPaidCompletely   bool            `json:"loanPaidCompletely"`
}

func NewPayLoanResponse(result *loan.PaymentResult) PayLoanResponse {
	if result == nil {
		return PayLoanResponse{}
	}
	return PayLoanResponse{
		LoanID:               result.LoanID,
		PaidInstallmentCount: result.PaidInstallmentCount,
		TotalAmountSpent:     result.TotalAmountSpent,
		LoanPaidCompletely:   result.LoanPaidCompletely,
	}
}
