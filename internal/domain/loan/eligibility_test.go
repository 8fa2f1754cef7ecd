package loan_test

import (
	"testing"
	"time"

	"credit-engine/internal/domain/loan"
	"credit-engine/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unpaid(id int64, amount string, dueDate time.Time) loan.Installment {
	return loan.Installment{
		ID:         id,
		Amount:     decimal.RequireFromString(amount),
		PaidAmount: decimal.Zero,
		DueDate:    dueDate,
	}
}

func TestHasDueDateMoreThanMonthsAhead(t *testing.T) {
	now := date(2024, time.June, 15)

	t.Run("within horizon", func(t *testing.T) {
		assert.False(t, loan.HasDueDateMoreThanMonthsAhead(date(2024, time.July, 15), now, 3))
	})

	t.Run("exactly on the boundary stays payable", func(t *testing.T) {
		assert.False(t, loan.HasDueDateMoreThanMonthsAhead(date(2024, time.September, 15), now, 3))
	})

	t.Run("one day past the boundary", func(t *testing.T) {
		assert.True(t, loan.HasDueDateMoreThanMonthsAhead(date(2024, time.September, 16), now, 3))
	})
}

func TestFindEligibleInstallments(t *testing.T) {
	now := date(2024, time.June, 1)

	t.Run("selects earliest-due prefix the amount covers", func(t *testing.T) {
		installments := []loan.Installment{
			unpaid(3, "500", loan.AddMonths(now, 3)),
			unpaid(1, "500", loan.AddMonths(now, 1)),
			unpaid(2, "500", loan.AddMonths(now, 2)),
		}

		eligible := loan.FindEligibleInstallments(installments, decimal.NewFromInt(1000), now)
		require.Len(t, eligible, 2)
		assert.Equal(t, int64(1), eligible[0].ID)
		assert.Equal(t, int64(2), eligible[1].ID)
	})

	t.Run("exact cumulative match is included", func(t *testing.T) {
		installments := []loan.Installment{
			unpaid(1, "500", loan.AddMonths(now, 1)),
			unpaid(2, "500", loan.AddMonths(now, 2)),
			unpaid(3, "500", loan.AddMonths(now, 3)),
		}

		eligible := loan.FindEligibleInstallments(installments, decimal.NewFromInt(1500), now)
		assert.Len(t, eligible, 3)
	})

	t.Run("stops at the payable horizon even with budget left", func(t *testing.T) {
		installments := []loan.Installment{
			unpaid(1, "500", loan.AddMonths(now, 3)),
			unpaid(2, "500", loan.AddMonths(now, 4)),
		}

		eligible := loan.FindEligibleInstallments(installments, decimal.NewFromInt(5000), now)
		require.Len(t, eligible, 1)
		assert.Equal(t, int64(1), eligible[0].ID)
	})

	t.Run("empty when amount is below the first installment", func(t *testing.T) {
		installments := []loan.Installment{
			unpaid(1, "500", loan.AddMonths(now, 1)),
		}

		assert.Empty(t, loan.FindEligibleInstallments(installments, decimal.NewFromInt(499), now))
	})

	t.Run("empty input stays empty", func(t *testing.T) {
		assert.Empty(t, loan.FindEligibleInstallments(nil, decimal.NewFromInt(1000), now))
	})
}

func TestCheckPaymentAmountMoreThanInstallmentAmount(t *testing.T) {
	installmentAmount := decimal.RequireFromString("333.67")

	t.Run("equality passes", func(t *testing.T) {
		assert.NoError(t, loan.CheckPaymentAmountMoreThanInstallmentAmount(installmentAmount, installmentAmount))
	})

	t.Run("negative amount is rejected", func(t *testing.T) {
		err := loan.CheckPaymentAmountMoreThanInstallmentAmount(installmentAmount, decimal.NewFromInt(-1))
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
		assert.Equal(t, "Payment amount cannot be negative", apperrors.Message(err))
	})

	t.Run("amount below installment is rejected", func(t *testing.T) {
		err := loan.CheckPaymentAmountMoreThanInstallmentAmount(installmentAmount, decimal.NewFromInt(300))
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrBusinessRule)
		assert.Equal(t, "Installment amount exceeds paid amount: 333.67", apperrors.Message(err))
	})
}
