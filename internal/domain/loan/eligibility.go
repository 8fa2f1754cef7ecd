package loan

import (
	"fmt"
	"sort"
	"time"

	"credit-engine/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
)

// PayableHorizonMonths is how far ahead an installment may be settled early:
// anything due more than this many calendar months out cannot be paid yet.
const PayableHorizonMonths = 3

// HasDueDateMoreThanMonthsAhead reports whether dueDate lies strictly beyond
// now plus the given number of calendar months. A due date landing exactly
// on the boundary is not "more than", so it stays payable.
func HasDueDateMoreThanMonthsAhead(dueDate, now time.Time, months int) bool {
	return dueDate.After(AddMonths(now, months))
}

// FindEligibleInstallments selects the prefix of unpaid installments a
// payment of paidAmount settles right now. Settlement order is earliest due
// date first; the walk stops at the payable horizon (due dates are sorted,
// so everything past the first too-distant installment is too distant as
// well) and at the first installment whose inclusion would push the running
// total over paidAmount. An installment that lands the total exactly on
// paidAmount is included. The result may be empty.
func FindEligibleInstallments(unpaidInstallments []Installment, paidAmount decimal.Decimal, now time.Time) []Installment {
	sorted := make([]Installment, len(unpaidInstallments))
	copy(sorted, unpaidInstallments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DueDate.Before(sorted[j].DueDate)
	})

	eligible := make([]Installment, 0, len(sorted))
	cumulative := decimal.Zero
	for _, inst := range sorted {
		if HasDueDateMoreThanMonthsAhead(inst.DueDate, now, PayableHorizonMonths) {
			break
		}
		next := cumulative.Add(inst.Amount)
		if next.GreaterThan(paidAmount) {
			break
		}
		cumulative = next
		eligible = append(eligible, inst)
	}
	return eligible
}

// CheckPaymentAmountMoreThanInstallmentAmount validates a payment against
// the first installment it must cover. Equality passes; partial installment
// payments are not supported.
func CheckPaymentAmountMoreThanInstallmentAmount(installmentAmount, paidAmount decimal.Decimal) error {
	if paidAmount.IsNegative() {
		return fmt.Errorf("%w: Payment amount cannot be negative", apperrors.ErrInvalidArgument)
	}
	if paidAmount.LessThan(installmentAmount) {
		return fmt.Errorf("%w: Installment amount exceeds paid amount: %s", apperrors.ErrBusinessRule, installmentAmount)
	}
	return nil
}
