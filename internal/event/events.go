package event

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LoanCreatedEvent struct {
	EventID              string          `json:"eventId"`
	LoanID               int64           `json:"loanId"`
	CustomerID           int64           `json:"customerId"`
	LoanAmount           decimal.Decimal `json:"loanAmount"`
	NumberOfInstallments int             `json:"numberOfInstallments"`
	Timestamp            time.Time       `json:"timestamp"`
}

type PaymentReceivedEvent struct {
	EventID              string          `json:"eventId"`
	LoanID               int64           `json:"loanId"`
	CustomerID           int64           `json:"customerId"`
	PaidInstallmentCount int             `json:"paidInstallmentCount"`
	TotalAmountSpent     decimal.Decimal `json:"totalAmountSpent"`
	Timestamp            time.Time       `json:"timestamp"`
}

type LoanPaidOffEvent struct {
	EventID    string    `json:"eventId"`
	LoanID     int64     `json:"loanId"`
	CustomerID int64     `json:"customerId"`
	Timestamp  time.Time `json:"timestamp"`
}

type InstallmentDueSoonEvent struct {
	EventID       string          `json:"eventId"`
	InstallmentID int64           `json:"installmentId"`
	LoanID        int64           `json:"loanId"`
	Amount        decimal.Decimal `json:"amount"`
	DueDate       time.Time       `json:"dueDate"`
	Timestamp     time.Time       `json:"timestamp"`
}

func NewLoanCreatedEvent(loanID, customerID int64, loanAmount decimal.Decimal, numberOfInstallments int, at time.Time) LoanCreatedEvent {
	return LoanCreatedEvent{
		EventID:              uuid.NewString(),
		LoanID:               loanID,
		CustomerID:           customerID,
		LoanAmount:           loanAmount,
		NumberOfInstallments: numberOfInstallments,
		Timestamp:            at,
	}
}

func NewPaymentReceivedEvent(loanID, customerID int64, paidCount int, totalSpent decimal.Decimal, at time.Time) PaymentReceivedEvent {
	return PaymentReceivedEvent{
		EventID:              uuid.NewString(),
		LoanID:               loanID,
		CustomerID:           customerID,
		PaidInstallmentCount: paidCount,
		TotalAmountSpent:     totalSpent,
		Timestamp:            at,
	}
}

func NewLoanPaidOffEvent(loanID, customerID int64, at time.Time) LoanPaidOffEvent {
	return LoanPaidOffEvent{
		EventID:    uuid.NewString(),
		LoanID:     loanID,
		CustomerID: customerID,
		Timestamp:  at,
	}
}

func NewInstallmentDueSoonEvent(installmentID, loanID int64, amount decimal.Decimal, dueDate, at time.Time) InstallmentDueSoonEvent {
	return InstallmentDueSoonEvent{
		EventID:       uuid.NewString(),
		InstallmentID: installmentID,
		LoanID:        loanID,
		Amount:        amount,
		DueDate:       dueDate,
		Timestamp:     at,
	}
}
