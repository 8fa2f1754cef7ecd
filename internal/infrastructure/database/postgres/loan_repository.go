package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"credit-engine/internal/domain/loan"
	"credit-engine/internal/infrastructure/monitoring"
	"credit-engine/internal/pkg/apperrors"
	"credit-engine/internal/pkg/paging"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pashagolub/pgxmock/v4"
)

type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
	Close()
}

var _ DBPool = (*pgxpool.Pool)(nil)

var _ DBPool = (pgxmock.PgxPoolIface)(nil)

var errMsgFormat = "%w: %w"

const loanColumns = "id, customer_id, loan_amount, interest_rate, number_of_installments, is_paid, created_at, updated_at"

type LoanRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ loan.Repository = (*LoanRepository)(nil)

func NewLoanRepository(db DBPool, logger *slog.Logger) *LoanRepository {
	return &LoanRepository{db: db, logger: logger.With("component", "LoanRepository")}
}

func (r *LoanRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to begin transaction", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return tx, nil
}

func (r *LoanRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Commit(ctx); err != nil {
		r.logger.ErrorContext(ctx, "Failed to commit transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *LoanRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	err := tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		r.logger.ErrorContext(ctx, "Failed to rollback transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *LoanRepository) CreateLoanInTx(ctx context.Context, tx pgx.Tx, newLoan *loan.Loan, installments []loan.Installment) (*loan.Loan, error) {
	loanSQL := `
        INSERT INTO loans (customer_id, loan_amount, interest_rate, number_of_installments, is_paid, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
        RETURNING ` + loanColumns

	var createdLoan loan.Loan
	err := tx.QueryRow(ctx, loanSQL,
		newLoan.CustomerID, newLoan.LoanAmount, newLoan.InterestRate,
		newLoan.NumberOfInstallments, newLoan.Paid,
	).Scan(
		&createdLoan.ID, &createdLoan.CustomerID, &createdLoan.LoanAmount, &createdLoan.InterestRate,
		&createdLoan.NumberOfInstallments, &createdLoan.Paid, &createdLoan.CreatedAt, &createdLoan.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert loan", "error", err)
		return nil, fmt.Errorf("%w: failed to insert loan: %w", apperrors.ErrDatabase, err)
	}
	r.logger.InfoContext(ctx, "Loan created in DB", "loan_id", createdLoan.ID)

	if len(installments) > 0 {
		installmentSQL := `
            INSERT INTO loan_installments (loan_id, amount, paid_amount, due_date, is_paid, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, NOW(), NOW())`

		batch := &pgx.Batch{}
		for _, inst := range installments {
			batch.Queue(installmentSQL, createdLoan.ID, inst.Amount, inst.PaidAmount, inst.DueDate, inst.Paid)
		}

		results := tx.SendBatch(ctx, batch)
		for i := 0; i < len(installments); i++ {
			if _, err = results.Exec(); err != nil {
				results.Close()
				r.logger.ErrorContext(ctx, "Failed executing installment batch insert", "error", err, "entry_index", i, "loan_id", createdLoan.ID)
				return nil, fmt.Errorf("%w: failed inserting installment %d: %w", apperrors.ErrDatabase, i+1, err)
			}
		}
		if err = results.Close(); err != nil {
			r.logger.ErrorContext(ctx, "Failed closing installment batch results", "error", err, "loan_id", createdLoan.ID)
			return nil, fmt.Errorf("%w: closing batch results failed: %w", apperrors.ErrDatabase, err)
		}
	}
	r.logger.InfoContext(ctx, "Loan installments created in DB", "loan_id", createdLoan.ID, "num_entries", len(installments))

	return &createdLoan, nil
}

func (r *LoanRepository) GetLoanByID(ctx context.Context, loanID int64) (*loan.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`
	status := "success"
	startTime := time.Now()

	var l loan.Loan
	err := r.db.QueryRow(ctx, query, loanID).Scan(
		&l.ID, &l.CustomerID, &l.LoanAmount, &l.InterestRate,
		&l.NumberOfInstallments, &l.Paid, &l.CreatedAt, &l.UpdatedAt,
	)

	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("GetLoanByID", status, time.Since(startTime))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Loan not found", "loan_id", loanID)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get loan by ID", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return &l, nil
}

func (r *LoanRepository) ListLoansByCustomerID(ctx context.Context, customerID int64, page paging.Request) ([]loan.Loan, int64, error) {
	page = page.Normalize()

	var total int64
	countSQL := `SELECT COUNT(*) FROM loans WHERE customer_id = $1`
	if err := r.db.QueryRow(ctx, countSQL, customerID).Scan(&total); err != nil {
		r.logger.ErrorContext(ctx, "Failed to count loans", "customer_id", customerID, "error", err)
		return nil, 0, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	query := `
        SELECT ` + loanColumns + `
        FROM loans
        WHERE customer_id = $1
        ORDER BY id ASC
        LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, customerID, page.Limit(), page.Offset())
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query loans", "customer_id", customerID, "error", err)
		return nil, 0, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	loans := make([]loan.Loan, 0)
	for rows.Next() {
		var l loan.Loan
		err := rows.Scan(
			&l.ID, &l.CustomerID, &l.LoanAmount, &l.InterestRate,
			&l.NumberOfInstallments, &l.Paid, &l.CreatedAt, &l.UpdatedAt,
		)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan loan row", "customer_id", customerID, "error", err)
			return nil, 0, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		loans = append(loans, l)
	}

	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating loan rows", "customer_id", customerID, "error", err)
		return nil, 0, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	return loans, total, nil
}

func (r *LoanRepository) UpdateLoanPaidStatusInTx(ctx context.Context, tx pgx.Tx, loanID int64, paid bool) error {
	sql := `UPDATE loans SET is_paid = $1, updated_at = NOW() WHERE id = $2`
	cmdTag, err := tx.Exec(ctx, sql, paid, loanID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update loan paid status", "loan_id", loanID, "is_paid", paid, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() != 1 {
		r.logger.ErrorContext(ctx, "Loan paid status update affected zero rows", "loan_id", loanID, "is_paid", paid)
		return fmt.Errorf("%w: loan paid status update affected zero rows", apperrors.ErrDatabase)
	}
	r.logger.InfoContext(ctx, "Loan paid status updated in DB", "loan_id", loanID, "is_paid", paid)
	return nil
}
