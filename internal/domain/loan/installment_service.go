package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"credit-engine/internal/pkg/apperrors"
	"credit-engine/internal/pkg/paging"

	"github.com/jackc/pgx/v5"
)

// InstallmentService exposes schedule lookups and the batch settlement
// write. It holds no domain logic of its own beyond not-found translation;
// eligibility and allocation live in the pure functions and PaymentService.
type InstallmentService interface {
	GetInstallment(ctx context.Context, installmentID int64) (*Installment, error)

	GetUnpaidInstallments(ctx context.Context, loanID int64) ([]Installment, error)

	ListInstallments(ctx context.Context, loanID int64, page paging.Request) ([]Installment, paging.Page, error)

	// GetUnpaidInstallmentsForUpdate row-locks the loan's unpaid installments
	// inside the caller's transaction so concurrent payments serialize.
	GetUnpaidInstallmentsForUpdate(ctx context.Context, tx pgx.Tx, loanID int64) ([]Installment, error)

	// PayMultipleLoanInstallments settles the given installments inside the
	// caller's transaction. An empty id list performs zero writes.
	PayMultipleLoanInstallments(ctx context.Context, tx pgx.Tx, installmentIDs []int64, paidAt time.Time) error
}

var _ InstallmentService = (*installmentService)(nil)

type installmentService struct {
	repo   InstallmentRepository
	logger *slog.Logger
}

func NewInstallmentService(repo InstallmentRepository, logger *slog.Logger) InstallmentService {
	if repo == nil {
		panic("installment repository cannot be nil")
	}
	return &installmentService{
		repo:   repo,
		logger: logger.With(slog.String("component", "installmentService")),
	}
}

func (s *installmentService) GetInstallment(ctx context.Context, installmentID int64) (*Installment, error) {
	inst, err := s.repo.GetInstallmentByID(ctx, installmentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, pgx.ErrNoRows) {
			s.logger.WarnContext(ctx, "Installment not found", slog.Int64("installmentID", installmentID))
			return nil, fmt.Errorf("%w: Loan installment not found with id: %d", apperrors.ErrNotFound, installmentID)
		}
		s.logger.ErrorContext(ctx, "Failed to get installment", slog.Int64("installmentID", installmentID), slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to get installment %d: %v", apperrors.ErrInternalServer, installmentID, err)
	}
	return inst, nil
}

func (s *installmentService) GetUnpaidInstallments(ctx context.Context, loanID int64) ([]Installment, error) {
	unpaid, err := s.repo.GetUnpaidInstallmentsByLoanID(ctx, loanID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to get unpaid installments", slog.Int64("loanID", loanID), slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to get unpaid installments for loan %d: %v", apperrors.ErrInternalServer, loanID, err)
	}
	return unpaid, nil
}

func (s *installmentService) ListInstallments(ctx context.Context, loanID int64, page paging.Request) ([]Installment, paging.Page, error) {
	page = page.Normalize()
	installments, total, err := s.repo.ListInstallmentsByLoanID(ctx, loanID, page)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list installments", slog.Int64("loanID", loanID), slog.Any("error", err))
		return nil, paging.Page{}, fmt.Errorf("%w: failed to list installments for loan %d: %v", apperrors.ErrInternalServer, loanID, err)
	}
	return installments, paging.NewPage(page, total), nil
}

func (s *installmentService) GetUnpaidInstallmentsForUpdate(ctx context.Context, tx pgx.Tx, loanID int64) ([]Installment, error) {
	locked, err := s.repo.FindUnpaidForUpdateInTx(ctx, tx, loanID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to lock unpaid installments", slog.Int64("loanID", loanID), slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to lock unpaid installments for loan %d: %v", apperrors.ErrInternalServer, loanID, err)
	}
	return locked, nil
}

func (s *installmentService) PayMultipleLoanInstallments(ctx context.Context, tx pgx.Tx, installmentIDs []int64, paidAt time.Time) error {
	if len(installmentIDs) == 0 {
		s.logger.InfoContext(ctx, "No installment ids given, nothing to settle")
		return nil
	}

	if err := s.repo.MarkInstallmentsPaidInTx(ctx, tx, installmentIDs, paidAt); err != nil {
		s.logger.ErrorContext(ctx, "Failed to settle installments", slog.Int("count", len(installmentIDs)), slog.Any("error", err))
		return fmt.Errorf("%w: failed to settle %d installments: %v", apperrors.ErrInternalServer, len(installmentIDs), err)
	}

	s.logger.InfoContext(ctx, "Installments settled", slog.Int("count", len(installmentIDs)))
	return nil
}
