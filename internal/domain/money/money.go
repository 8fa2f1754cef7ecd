// Package money centralizes the rounding policy for monetary values. Every
// computed amount (totals, per-installment shares) passes through here before
// it is persisted or compared, so rounding drift can never accumulate.
package money

import "github.com/shopspring/decimal"

// Scale is the number of fractional digits every stored amount carries.
const Scale = 2

// Round rounds to two fractional digits, half up.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// RoundUp rounds to two fractional digits away from zero. Used for the even
// per-installment share: an inexact division must never round down, otherwise
// share * count could fall short of the total owed.
func RoundUp(d decimal.Decimal) decimal.Decimal {
	return d.RoundUp(Scale)
}

// Sum adds a slice of amounts without intermediate rounding.
func Sum(amounts []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
