package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"credit-engine/internal/domain/customer"
	"credit-engine/internal/domain/money"
	"credit-engine/internal/event"
	"credit-engine/internal/infrastructure/cache"
	"credit-engine/internal/infrastructure/monitoring"
	"credit-engine/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
)

// PaymentResult reports what a single PayLoan call settled.
type PaymentResult struct {
	LoanID               int64
	PaidInstallmentCount int
	TotalAmountSpent     decimal.Decimal
	LoanPaidCompletely   bool
}

// PaymentService allocates an incoming payment across a loan's outstanding
// installments and settles the eligible prefix.
type PaymentService interface {
	PayLoan(ctx context.Context, loanID int64, paidAmount decimal.Decimal) (*PaymentResult, error)
}

var _ PaymentService = (*paymentService)(nil)

type paymentService struct {
	loanRepo     Repository
	installments InstallmentService
	customerRepo customer.Repository
	publisher    event.Publisher
	store        cache.Store
	logger       *slog.Logger
	now          func() time.Time
}

// NewPaymentService wires the allocator. store may be nil when caching is
// disabled.
func NewPaymentService(
	loanRepo Repository,
	installments InstallmentService,
	customerRepo customer.Repository,
	publisher event.Publisher,
	store cache.Store,
	logger *slog.Logger,
) PaymentService {
	if loanRepo == nil || installments == nil || customerRepo == nil || publisher == nil {
		panic("paymentService dependencies cannot be nil")
	}
	return &paymentService{
		loanRepo:     loanRepo,
		installments: installments,
		customerRepo: customerRepo,
		publisher:    publisher,
		store:        store,
		logger:       logger.With(slog.String("component", "paymentService")),
		now:          time.Now,
	}
}

// PayLoan walks the allocation chain: locate unpaid installments, compute
// the eligible prefix, validate the amount, then settle everything inside a
// single transaction (installments, used-credit decrement, and the one-way
// loan paid flip when the last installment settles). Any failure before the
// transaction leaves every record untouched; a failure inside it rolls the
// whole settlement back.
func (s *paymentService) PayLoan(ctx context.Context, loanID int64, paidAmount decimal.Decimal) (result *PaymentResult, err error) {
	s.logger.InfoContext(ctx, "Processing loan payment", slog.Int64("loanID", loanID), slog.String("amount", paidAmount.String()))

	defer func() {
		if err != nil {
			monitoring.RecordPayment(paymentFailureStatus(err))
		}
	}()

	unpaid, err := s.installments.GetUnpaidInstallments(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if len(unpaid) == 0 {
		s.logger.WarnContext(ctx, "No unpaid installments for loan", slog.Int64("loanID", loanID))
		return nil, fmt.Errorf("%w: Unpaid installment could not found for given loan id: %d", apperrors.ErrNotFound, loanID)
	}

	eligible := FindEligibleInstallments(unpaid, paidAmount, s.now())
	if len(eligible) == 0 {
		s.logger.WarnContext(ctx, "No eligible installments for payment", slog.Int64("loanID", loanID))
		return nil, fmt.Errorf("%w: No installments are eligible for payment for loanId: %d", apperrors.ErrBusinessRule, loanID)
	}

	if err = CheckPaymentAmountMoreThanInstallmentAmount(eligible[0].Amount, paidAmount); err != nil {
		s.logger.WarnContext(ctx, "Payment amount validation failed", slog.Int64("loanID", loanID), slog.Any("error", err))
		return nil, err
	}

	theLoan, err := s.loanRepo.GetLoanByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: Loan not found with id: %d", apperrors.ErrNotFound, loanID)
		}
		return nil, fmt.Errorf("%w: failed to load loan %d: %v", apperrors.ErrInternalServer, loanID, err)
	}

	installmentIDs := make([]int64, 0, len(eligible))
	amounts := make([]decimal.Decimal, 0, len(eligible))
	for _, inst := range eligible {
		installmentIDs = append(installmentIDs, inst.ID)
		amounts = append(amounts, inst.Amount)
	}
	totalSpent := money.Sum(amounts)
	paidCompletely := len(eligible) == len(unpaid)

	tx, err := s.loanRepo.BeginTx(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin settlement transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%w: could not begin transaction: %v", apperrors.ErrInternalServer, err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = s.loanRepo.RollbackTx(ctx, tx)
			panic(p)
		}
		if err != nil {
			s.logger.ErrorContext(ctx, "Rolling back settlement transaction", slog.Any("error", err))
			_ = s.loanRepo.RollbackTx(ctx, tx)
		}
	}()

	// Row-lock the unpaid set and make sure a concurrent payment has not
	// settled any of the chosen installments between the read and the lock.
	locked, err := s.installments.GetUnpaidInstallmentsForUpdate(ctx, tx, loanID)
	if err != nil {
		return nil, err
	}
	stillUnpaid := make(map[int64]struct{}, len(locked))
	for _, inst := range locked {
		stillUnpaid[inst.ID] = struct{}{}
	}
	for _, id := range installmentIDs {
		if _, ok := stillUnpaid[id]; !ok {
			err = fmt.Errorf("%w: installment %d was settled by a concurrent payment", apperrors.ErrBusinessRule, id)
			return nil, err
		}
	}

	if err = s.installments.PayMultipleLoanInstallments(ctx, tx, installmentIDs, s.now()); err != nil {
		return nil, err
	}

	if err = s.customerRepo.DecreaseUsedCreditLimitInTx(ctx, tx, theLoan.CustomerID, totalSpent); err != nil {
		s.logger.ErrorContext(ctx, "Failed to decrease used credit limit", slog.Int64("customerID", theLoan.CustomerID), slog.Any("error", err))
		return nil, fmt.Errorf("%w: could not release customer credit: %v", apperrors.ErrInternalServer, err)
	}

	if paidCompletely {
		if err = s.loanRepo.UpdateLoanPaidStatusInTx(ctx, tx, loanID, true); err != nil {
			s.logger.ErrorContext(ctx, "Failed to mark loan paid", slog.Int64("loanID", loanID), slog.Any("error", err))
			return nil, fmt.Errorf("%w: could not mark loan as paid: %v", apperrors.ErrInternalServer, err)
		}
	}

	if err = s.loanRepo.CommitTx(ctx, tx); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit settlement transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%w: could not commit transaction: %v", apperrors.ErrInternalServer, err)
	}

	monitoring.RecordPayment("success")
	monitoring.RecordInstallmentsSettled(len(installmentIDs))

	if s.store != nil {
		if delErr := s.store.Del(ctx, cache.LoanKey(loanID)); delErr != nil {
			s.logger.WarnContext(ctx, "Failed to invalidate loan cache entry", slog.Any("error", delErr))
		}
	}
	s.publishPaymentEvents(ctx, theLoan, len(installmentIDs), totalSpent, paidCompletely)

	s.logger.InfoContext(ctx, "Payment processed successfully",
		slog.Int64("loanID", loanID),
		slog.Int("paidInstallments", len(installmentIDs)),
		slog.String("totalSpent", totalSpent.String()),
		slog.Bool("loanPaidCompletely", paidCompletely),
	)

	return &PaymentResult{
		LoanID:               loanID,
		PaidInstallmentCount: len(installmentIDs),
		TotalAmountSpent:     totalSpent,
		LoanPaidCompletely:   paidCompletely,
	}, nil
}

func (s *paymentService) publishPaymentEvents(ctx context.Context, theLoan *Loan, count int, totalSpent decimal.Decimal, paidCompletely bool) {
	now := s.now()
	paymentEvent := event.NewPaymentReceivedEvent(theLoan.ID, theLoan.CustomerID, count, totalSpent, now)
	if pubErr := s.publisher.PublishPaymentReceived(ctx, paymentEvent); pubErr != nil {
		s.logger.ErrorContext(ctx, "Payment settled, but FAILED to publish payment event", slog.Any("error", pubErr))
	}

	if !paidCompletely {
		return
	}
	paidOffEvent := event.NewLoanPaidOffEvent(theLoan.ID, theLoan.CustomerID, now)
	if pubErr := s.publisher.PublishLoanPaidOff(ctx, paidOffEvent); pubErr != nil {
		s.logger.ErrorContext(ctx, "Loan paid off, but FAILED to publish paid-off event", slog.Any("error", pubErr))
	}
}

func paymentFailureStatus(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return "failure_not_found"
	case errors.Is(err, apperrors.ErrInvalidArgument):
		return "failure_amount"
	case errors.Is(err, apperrors.ErrBusinessRule):
		return "failure_not_eligible"
	default:
		return "failure_internal"
	}
}
