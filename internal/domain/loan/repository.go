package loan

import (
	"context"
	"time"

	"credit-engine/internal/pkg/paging"

	"github.com/jackc/pgx/v5"
)

// Repository persists loans. Mutations that take part in the payment
// transaction accept the caller's pgx.Tx; the whole settlement (installment
// updates, loan flag, credit-limit decrement) must commit or roll back as
// one unit.
type Repository interface {
	// CreateLoanInTx inserts the loan and its full installment schedule in
	// one batch inside the caller's transaction.
	CreateLoanInTx(ctx context.Context, tx pgx.Tx, newLoan *Loan, installments []Installment) (*Loan, error)

	GetLoanByID(ctx context.Context, loanID int64) (*Loan, error)

	ListLoansByCustomerID(ctx context.Context, customerID int64, page paging.Request) ([]Loan, int64, error)

	UpdateLoanPaidStatusInTx(ctx context.Context, tx pgx.Tx, loanID int64, paid bool) error

	BeginTx(ctx context.Context) (pgx.Tx, error)

	CommitTx(ctx context.Context, tx pgx.Tx) error

	RollbackTx(ctx context.Context, tx pgx.Tx) error
}

// InstallmentRepository persists schedule entries. Installments are created
// only through Repository.CreateLoan and never deleted.
type InstallmentRepository interface {
	GetInstallmentByID(ctx context.Context, installmentID int64) (*Installment, error)

	// GetUnpaidInstallmentsByLoanID returns every unsettled installment of
	// the loan; callers re-order by due date, so no ordering is promised.
	GetUnpaidInstallmentsByLoanID(ctx context.Context, loanID int64) ([]Installment, error)

	ListInstallmentsByLoanID(ctx context.Context, loanID int64, page paging.Request) ([]Installment, int64, error)

	// FindUnpaidForUpdateInTx re-reads and row-locks the loan's unpaid
	// installments inside the settlement transaction.
	FindUnpaidForUpdateInTx(ctx context.Context, tx pgx.Tx, loanID int64) ([]Installment, error)

	// MarkInstallmentsPaidInTx settles the given installments in one batch:
	// paid = true, paid_amount = amount. Empty input issues no writes.
	MarkInstallmentsPaidInTx(ctx context.Context, tx pgx.Tx, installmentIDs []int64, paidAt time.Time) error

	// GetInstallmentsDueWithin lists unpaid installments falling due in the
	// window [now, now+within), for the reminder batch job.
	GetInstallmentsDueWithin(ctx context.Context, now time.Time, within time.Duration) ([]Installment, error)
}
