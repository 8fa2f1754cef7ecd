package customer

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = errors.New("customer not found")

	ErrUpdateConflict = errors.New("update conflict detected")
)

type Repository interface {
	Save(ctx context.Context, customer *Customer) error

	FindByID(ctx context.Context, customerID int64) (*Customer, error)

	// IncreaseUsedCreditLimitInTx reserves credit when a loan is created.
	IncreaseUsedCreditLimitInTx(ctx context.Context, tx pgx.Tx, customerID int64, amount decimal.Decimal) error

	// DecreaseUsedCreditLimitInTx releases credit as installments settle.
	DecreaseUsedCreditLimitInTx(ctx context.Context, tx pgx.Tx, customerID int64, amount decimal.Decimal) error
}
