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
)

const installmentColumns = "id, loan_id, amount, paid_amount, due_date, is_paid, created_at, updated_at"

type InstallmentRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ loan.InstallmentRepository = (*InstallmentRepository)(nil)

func NewInstallmentRepository(db DBPool, logger *slog.Logger) *InstallmentRepository {
	return &InstallmentRepository{db: db, logger: logger.With("component", "InstallmentRepository")}
}

func scanInstallment(row pgx.Row, inst *loan.Installment) error {
	return row.Scan(
		&inst.ID, &inst.LoanID, &inst.Amount, &inst.PaidAmount,
		&inst.DueDate, &inst.Paid, &inst.CreatedAt, &inst.UpdatedAt,
	)
}

func (r *InstallmentRepository) collectInstallments(ctx context.Context, rows pgx.Rows, loanID int64) ([]loan.Installment, error) {
	defer rows.Close()

	installments := make([]loan.Installment, 0)
	for rows.Next() {
		var inst loan.Installment
		if err := scanInstallment(rows, &inst); err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan installment row", "loan_id", loanID, "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		installments = append(installments, inst)
	}

	if err := rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating installment rows", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return installments, nil
}

func (r *InstallmentRepository) GetInstallmentByID(ctx context.Context, installmentID int64) (*loan.Installment, error) {
	query := `SELECT ` + installmentColumns + ` FROM loan_installments WHERE id = $1`

	var inst loan.Installment
	err := scanInstallment(r.db.QueryRow(ctx, query, installmentID), &inst)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Installment not found", "installment_id", installmentID)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get installment by ID", "installment_id", installmentID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return &inst, nil
}

func (r *InstallmentRepository) GetUnpaidInstallmentsByLoanID(ctx context.Context, loanID int64) ([]loan.Installment, error) {
	query := `
        SELECT ` + installmentColumns + `
        FROM loan_installments
        WHERE loan_id = $1 AND is_paid = FALSE
        ORDER BY due_date ASC`
	status := "success"
	startTime := time.Now()

	rows, err := r.db.Query(ctx, query, loanID)
	if err != nil {
		monitoring.RecordDBQuery("GetUnpaidInstallmentsByLoanID", "error", time.Since(startTime))
		r.logger.ErrorContext(ctx, "Failed to query unpaid installments", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	installments, err := r.collectInstallments(ctx, rows, loanID)
	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("GetUnpaidInstallmentsByLoanID", status, time.Since(startTime))
	return installments, err
}

func (r *InstallmentRepository) ListInstallmentsByLoanID(ctx context.Context, loanID int64, page paging.Request) ([]loan.Installment, int64, error) {
	page = page.Normalize()

	var total int64
	countSQL := `SELECT COUNT(*) FROM loan_installments WHERE loan_id = $1`
	if err := r.db.QueryRow(ctx, countSQL, loanID).Scan(&total); err != nil {
		r.logger.ErrorContext(ctx, "Failed to count installments", "loan_id", loanID, "error", err)
		return nil, 0, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	query := `
        SELECT ` + installmentColumns + `
        FROM loan_installments
        WHERE loan_id = $1
        ORDER BY due_date ASC
        LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, loanID, page.Limit(), page.Offset())
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query installments", "loan_id", loanID, "error", err)
		return nil, 0, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	installments, err := r.collectInstallments(ctx, rows, loanID)
	if err != nil {
		return nil, 0, err
	}
	return installments, total, nil
}

func (r *InstallmentRepository) FindUnpaidForUpdateInTx(ctx context.Context, tx pgx.Tx, loanID int64) ([]loan.Installment, error) {
	query := `
        SELECT ` + installmentColumns + `
        FROM loan_installments
        WHERE loan_id = $1 AND is_paid = FALSE
        ORDER BY due_date ASC
        FOR UPDATE`

	rows, err := tx.Query(ctx, query, loanID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to lock unpaid installments", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return r.collectInstallments(ctx, rows, loanID)
}

func (r *InstallmentRepository) MarkInstallmentsPaidInTx(ctx context.Context, tx pgx.Tx, installmentIDs []int64, paidAt time.Time) error {
	if len(installmentIDs) == 0 {
		return nil
	}

	sql := `
        UPDATE loan_installments
        SET is_paid = TRUE, paid_amount = amount, updated_at = $1
        WHERE id = $2 AND is_paid = FALSE`

	batch := &pgx.Batch{}
	for _, id := range installmentIDs {
		batch.Queue(sql, paidAt, id)
	}

	results := tx.SendBatch(ctx, batch)
	for i, id := range installmentIDs {
		cmdTag, err := results.Exec()
		if err != nil {
			results.Close()
			r.logger.ErrorContext(ctx, "Failed executing installment settle batch", "error", err, "entry_index", i, "installment_id", id)
			return fmt.Errorf("%w: failed settling installment %d: %w", apperrors.ErrDatabase, id, err)
		}
		if cmdTag.RowsAffected() != 1 {
			results.Close()
			r.logger.ErrorContext(ctx, "Installment settle affected zero rows", "installment_id", id)
			return fmt.Errorf("%w: installment %d already settled or missing", apperrors.ErrDatabase, id)
		}
	}
	if err := results.Close(); err != nil {
		r.logger.ErrorContext(ctx, "Failed closing installment settle batch results", "error", err)
		return fmt.Errorf("%w: closing batch results failed: %w", apperrors.ErrDatabase, err)
	}

	r.logger.InfoContext(ctx, "Installments settled in DB", "count", len(installmentIDs))
	return nil
}

func (r *InstallmentRepository) GetInstallmentsDueWithin(ctx context.Context, now time.Time, within time.Duration) ([]loan.Installment, error) {
	query := `
        SELECT ` + installmentColumns + `
        FROM loan_installments
        WHERE is_paid = FALSE AND due_date >= $1 AND due_date < $2
        ORDER BY due_date ASC`

	rows, err := r.db.Query(ctx, query, now, now.Add(within))
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query installments due soon", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return r.collectInstallments(ctx, rows, 0)
}
