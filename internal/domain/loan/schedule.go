package loan

import (
	"time"

	"github.com/shopspring/decimal"
)

// AddMonths advances t by whole calendar months, clamping the day-of-month
// to the last day of the target month (Jan 31 + 1 month = Feb 28/29).
// time.AddDate would normalize that overflow into March instead, which would
// let a due date slip past its calendar month.
func AddMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	firstOfTarget := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, 0, 0, 0, 0, t.Location())
}

// CreateInstallmentDatesByInstallmentCount produces the due dates for a new
// schedule: installment k falls due k calendar months after from, so the
// sequence is strictly increasing and every date is after from. The current
// date is an explicit parameter to keep the function deterministic.
func CreateInstallmentDatesByInstallmentCount(from time.Time, count int) []time.Time {
	dates := make([]time.Time, 0, count)
	for k := 1; k <= count; k++ {
		dates = append(dates, AddMonths(from, k))
	}
	return dates
}

// CreateLoanInstallments materializes the installment batch for a new loan:
// one unpaid installment per due date, each carrying the even rounded-up
// share of principal plus flat interest. The rounding surplus stays on every
// installment; it is deliberately not squeezed out of the last one, so the
// sum of shares may exceed the total by a few cents in the lender's favor.
// Pure: nothing is persisted, the caller stores the returned batch.
func CreateLoanInstallments(loanAmount decimal.Decimal, numberOfInstallments int, dates []time.Time, interestRate decimal.Decimal) ([]Installment, error) {
	total := CalculateTotalAmountToBePaid(loanAmount, numberOfInstallments, interestRate)
	share, err := CalculateInstallmentAmount(total, numberOfInstallments)
	if err != nil {
		return nil, err
	}

	installments := make([]Installment, 0, len(dates))
	for _, dueDate := range dates {
		installments = append(installments, Installment{
			Amount:     share,
			PaidAmount: decimal.Zero,
			DueDate:    dueDate,
			Paid:       false,
		})
	}
	return installments, nil
}
