package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"credit-engine/internal/domain/customer"
	"credit-engine/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const customerColumns = "id, name, surname, credit_limit, used_credit_limit, created_at, updated_at"

type CustomerRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ customer.Repository = (*CustomerRepository)(nil)

func NewCustomerRepository(db DBPool, logger *slog.Logger) *CustomerRepository {
	if db == nil {
		panic("DBPool cannot be nil for CustomerRepository")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewCustomerRepository, using default stderr handler")
	}
	return &CustomerRepository{
		db:     db,
		logger: logger.With("component", "CustomerRepository"),
	}
}

func (r *CustomerRepository) Save(ctx context.Context, cust *customer.Customer) error {
	if cust == nil {
		return fmt.Errorf("%w: customer cannot be nil", apperrors.ErrInvalidArgument)
	}

	if cust.CustomerID == 0 {
		return r.createCustomer(ctx, cust)
	}
	return r.updateCustomer(ctx, cust)
}

func (r *CustomerRepository) createCustomer(ctx context.Context, cust *customer.Customer) error {
	r.logger.InfoContext(ctx, "Attempting to insert new customer", slog.String("name", cust.Name))

	query := `
        INSERT INTO customers (name, surname, credit_limit, used_credit_limit, created_at, updated_at)
        VALUES ($1, $2, $3, $4, NOW(), NOW())
        RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		cust.Name,
		cust.Surname,
		cust.CreditLimit,
		cust.UsedCreditLimit,
	).Scan(
		&cust.CustomerID,
		&cust.CreateDate,
		&cust.UpdatedAt,
	)

	if err != nil {
		translatedErr := translateDBError(err, r.logger)
		if errors.Is(translatedErr, apperrors.ErrAlreadyExists) {
			r.logger.WarnContext(ctx, "Failed to insert customer due to unique constraint violation", slog.String("name", cust.Name))
			return translatedErr
		}
		r.logger.ErrorContext(ctx, "Failed to insert customer", slog.Any("error", err))
		return translatedErr
	}

	r.logger.InfoContext(ctx, "Customer created in DB", slog.Int64("customer_id", cust.CustomerID))
	return nil
}

func (r *CustomerRepository) updateCustomer(ctx context.Context, cust *customer.Customer) error {
	r.logger.InfoContext(ctx, "Attempting to update customer", slog.Int64("customer_id", cust.CustomerID))

	query := `
        UPDATE customers
        SET name = $1, surname = $2, credit_limit = $3, used_credit_limit = $4, updated_at = NOW()
        WHERE id = $5`

	cmdTag, err := r.db.Exec(ctx, query,
		cust.Name,
		cust.Surname,
		cust.CreditLimit,
		cust.UsedCreditLimit,
		cust.CustomerID,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update customer", slog.Int64("customer_id", cust.CustomerID), slog.Any("error", err))
		return translateDBError(err, r.logger)
	}
	if cmdTag.RowsAffected() == 0 {
		r.logger.WarnContext(ctx, "Customer update affected zero rows", slog.Int64("customer_id", cust.CustomerID))
		return customer.ErrNotFound
	}
	return nil
}

func (r *CustomerRepository) FindByID(ctx context.Context, customerID int64) (*customer.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`

	var cust customer.Customer
	err := r.db.QueryRow(ctx, query, customerID).Scan(
		&cust.CustomerID, &cust.Name, &cust.Surname,
		&cust.CreditLimit, &cust.UsedCreditLimit,
		&cust.CreateDate, &cust.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Customer not found", slog.Int64("customer_id", customerID))
			return nil, customer.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to find customer by ID", slog.Int64("customer_id", customerID), slog.Any("error", err))
		return nil, translateDBError(err, r.logger)
	}
	return &cust, nil
}

// IncreaseUsedCreditLimitInTx reserves credit. The guard predicate keeps the
// reservation inside the customer's limit even under concurrent loans.
func (r *CustomerRepository) IncreaseUsedCreditLimitInTx(ctx context.Context, tx pgx.Tx, customerID int64, amount decimal.Decimal) error {
	sql := `
        UPDATE customers
        SET used_credit_limit = used_credit_limit + $1, updated_at = NOW()
        WHERE id = $2 AND used_credit_limit + $1 <= credit_limit`

	cmdTag, err := tx.Exec(ctx, sql, amount, customerID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to increase used credit limit", slog.Int64("customer_id", customerID), slog.Any("error", err))
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() == 0 {
		r.logger.WarnContext(ctx, "Credit reservation rejected", slog.Int64("customer_id", customerID), slog.String("amount", amount.String()))
		return fmt.Errorf("%w: customer %d not found or credit limit exceeded", customer.ErrUpdateConflict, customerID)
	}
	return nil
}

// DecreaseUsedCreditLimitInTx releases credit as installments settle. The
// floor predicate keeps used credit from going negative.
func (r *CustomerRepository) DecreaseUsedCreditLimitInTx(ctx context.Context, tx pgx.Tx, customerID int64, amount decimal.Decimal) error {
	sql := `
        UPDATE customers
        SET used_credit_limit = GREATEST(used_credit_limit - $1, 0), updated_at = NOW()
        WHERE id = $2`

	cmdTag, err := tx.Exec(ctx, sql, amount, customerID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to decrease used credit limit", slog.Int64("customer_id", customerID), slog.Any("error", err))
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() == 0 {
		r.logger.WarnContext(ctx, "Credit release affected zero rows", slog.Int64("customer_id", customerID))
		return customer.ErrNotFound
	}
	return nil
}

func translateDBError(err error, contextLogger *slog.Logger) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" {
			contextLogger.Warn("Database unique constraint violation", "detail", pgErr.Detail, "constraint", pgErr.ConstraintName)
			return fmt.Errorf("%w: %s", apperrors.ErrAlreadyExists, pgErr.ConstraintName)
		}
		contextLogger.Error("PostgreSQL specific error", "code", pgErr.Code, "message", pgErr.Message, "detail", pgErr.Detail)
		return fmt.Errorf("%w: db error code %s", apperrors.ErrDatabase, pgErr.Code)
	}

	contextLogger.Error("Generic database error", "error", err)
	return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
}
