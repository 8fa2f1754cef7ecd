package loan

import (
	"fmt"
	"time"

	"credit-engine/internal/domain/money"
	"credit-engine/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
)

// AllowedInstallmentCounts is the fixed set of tenors the product offers.
var AllowedInstallmentCounts = []int{6, 9, 12, 24}

type Loan struct {
	ID                   int64
	CustomerID           int64
	LoanAmount           decimal.Decimal
	InterestRate         decimal.Decimal
	NumberOfInstallments int
	Paid                 bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Installment is one entry of a loan's repayment schedule. The set is
// materialized once at loan creation and its membership never changes; each
// entry mutates exactly once, when it is settled.
type Installment struct {
	ID         int64
	LoanID     int64
	Amount     decimal.Decimal
	PaidAmount decimal.Decimal
	DueDate    time.Time
	Paid       bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CheckNumberOfInstallments validates the requested tenor against the
// allowed set.
func CheckNumberOfInstallments(count int) error {
	for _, allowed := range AllowedInstallmentCounts {
		if count == allowed {
			return nil
		}
	}
	return fmt.Errorf("%w: Invalid number of installments. Must be: [6, 9, 12, 24]", apperrors.ErrInvalidArgument)
}

// CalculateTotalAmountToBePaid computes principal plus flat interest,
// rounded to cents. Interest is applied once against the principal, never
// compounded per installment.
func CalculateTotalAmountToBePaid(loanAmount decimal.Decimal, numberOfInstallments int, interestRate decimal.Decimal) decimal.Decimal {
	total := loanAmount.Mul(decimal.NewFromInt(1).Add(interestRate))
	return money.Round(total)
}

// CalculateInstallmentAmount computes the even per-installment share of the
// total, rounding up on inexact division so that the schedule never collects
// less than the total owed. 1001 over 3 installments is 333.67, not 333.33.
func CalculateInstallmentAmount(totalAmount decimal.Decimal, numberOfInstallments int) (decimal.Decimal, error) {
	if numberOfInstallments <= 0 {
		return decimal.Zero, fmt.Errorf("%w: number of installments must be positive", apperrors.ErrInvalidArgument)
	}
	share := totalAmount.Div(decimal.NewFromInt(int64(numberOfInstallments)))
	return money.RoundUp(share), nil
}
