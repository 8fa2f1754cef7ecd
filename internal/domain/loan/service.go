package loan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"credit-engine/internal/domain/customer"
	"credit-engine/internal/event"
	"credit-engine/internal/infrastructure/cache"
	"credit-engine/internal/infrastructure/monitoring"
	"credit-engine/internal/pkg/apperrors"
	"credit-engine/internal/pkg/paging"

	"github.com/shopspring/decimal"
)

// Service originates loans and answers loan lookups.
type Service interface {
	CreateLoan(ctx context.Context, customerID int64, loanAmount decimal.Decimal, numberOfInstallments int, interestRate decimal.Decimal) (*Loan, error)

	GetLoan(ctx context.Context, loanID int64) (*Loan, error)

	ListLoans(ctx context.Context, customerID int64, page paging.Request) ([]Loan, paging.Page, error)
}

var _ Service = (*service)(nil)

type service struct {
	loanRepo     Repository
	customerRepo customer.Repository
	publisher    event.Publisher
	store        cache.Store
	cacheTTL     time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// NewService wires loan origination. store may be nil when caching is
// disabled.
func NewService(
	loanRepo Repository,
	customerRepo customer.Repository,
	publisher event.Publisher,
	store cache.Store,
	cacheTTL time.Duration,
	logger *slog.Logger,
) Service {
	if loanRepo == nil || customerRepo == nil || publisher == nil {
		panic("loan service dependencies cannot be nil")
	}
	return &service{
		loanRepo:     loanRepo,
		customerRepo: customerRepo,
		publisher:    publisher,
		store:        store,
		cacheTTL:     cacheTTL,
		logger:       logger.With(slog.String("component", "loanService")),
		now:          time.Now,
	}
}

// CreateLoan validates the request, builds the full repayment schedule up
// front, and persists the loan, its installments, and the customer's credit
// reservation in one transaction.
func (s *service) CreateLoan(ctx context.Context, customerID int64, loanAmount decimal.Decimal, numberOfInstallments int, interestRate decimal.Decimal) (theLoan *Loan, err error) {
	s.logger.InfoContext(ctx, "Creating loan",
		slog.Int64("customerID", customerID),
		slog.String("loanAmount", loanAmount.String()),
		slog.Int("numberOfInstallments", numberOfInstallments),
	)

	if err = CheckNumberOfInstallments(numberOfInstallments); err != nil {
		s.logger.WarnContext(ctx, "Loan validation failed", slog.Any("error", err))
		return nil, err
	}
	if !loanAmount.IsPositive() {
		return nil, fmt.Errorf("%w: loan amount must be positive", apperrors.ErrInvalidArgument)
	}
	if interestRate.IsNegative() {
		return nil, fmt.Errorf("%w: interest rate cannot be negative", apperrors.ErrInvalidArgument)
	}

	cust, err := s.customerRepo.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) || errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: Customer not found with id: %d", apperrors.ErrNotFound, customerID)
		}
		return nil, fmt.Errorf("%w: failed to load customer %d: %v", apperrors.ErrInternalServer, customerID, err)
	}

	totalAmount := CalculateTotalAmountToBePaid(loanAmount, numberOfInstallments, interestRate)
	if !cust.CanBorrow(totalAmount) {
		s.logger.WarnContext(ctx, "Customer credit limit exceeded",
			slog.Int64("customerID", customerID),
			slog.String("totalAmount", totalAmount.String()),
			slog.String("availableCredit", cust.AvailableCredit().String()),
		)
		return nil, fmt.Errorf("%w: Customer does not have enough credit limit for this loan", apperrors.ErrBusinessRule)
	}

	createdAt := s.now()
	dueDates := CreateInstallmentDatesByInstallmentCount(createdAt, numberOfInstallments)
	installments, err := CreateLoanInstallments(loanAmount, numberOfInstallments, dueDates, interestRate)
	if err != nil {
		return nil, err
	}

	newLoan := &Loan{
		CustomerID:           customerID,
		LoanAmount:           loanAmount,
		InterestRate:         interestRate,
		NumberOfInstallments: numberOfInstallments,
		Paid:                 false,
		CreatedAt:            createdAt,
	}

	tx, err := s.loanRepo.BeginTx(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin loan creation transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%w: could not begin transaction: %v", apperrors.ErrInternalServer, err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = s.loanRepo.RollbackTx(ctx, tx)
			panic(p)
		}
		if err != nil {
			s.logger.ErrorContext(ctx, "Rolling back loan creation transaction", slog.Any("error", err))
			_ = s.loanRepo.RollbackTx(ctx, tx)
		}
	}()

	theLoan, err = s.loanRepo.CreateLoanInTx(ctx, tx, newLoan, installments)
	if err != nil {
		return nil, fmt.Errorf("%w: could not persist loan: %v", apperrors.ErrInternalServer, err)
	}

	if err = s.customerRepo.IncreaseUsedCreditLimitInTx(ctx, tx, customerID, totalAmount); err != nil {
		s.logger.ErrorContext(ctx, "Failed to reserve customer credit", slog.Int64("customerID", customerID), slog.Any("error", err))
		return nil, fmt.Errorf("%w: could not reserve customer credit: %v", apperrors.ErrInternalServer, err)
	}

	if err = s.loanRepo.CommitTx(ctx, tx); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit loan creation transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%w: could not commit transaction: %v", apperrors.ErrInternalServer, err)
	}

	monitoring.RecordLoanCreated()

	createdEvent := event.NewLoanCreatedEvent(theLoan.ID, customerID, loanAmount, numberOfInstallments, s.now())
	if pubErr := s.publisher.PublishLoanCreated(ctx, createdEvent); pubErr != nil {
		s.logger.ErrorContext(ctx, "Loan created, but FAILED to publish loan created event", slog.Any("error", pubErr))
	}

	s.logger.InfoContext(ctx, "Successfully created loan",
		slog.Int64("loanID", theLoan.ID),
		slog.Int64("customerID", customerID),
		slog.String("totalAmount", totalAmount.String()),
	)
	return theLoan, nil
}

// GetLoan serves reads through the cache when one is configured. Cache
// failures fall through to the database.
func (s *service) GetLoan(ctx context.Context, loanID int64) (*Loan, error) {
	if s.store != nil {
		cached, err := s.store.Get(ctx, cache.LoanKey(loanID))
		if err == nil {
			var theLoan Loan
			if unmarshalErr := json.Unmarshal(cached, &theLoan); unmarshalErr == nil {
				s.logger.DebugContext(ctx, "Loan served from cache", slog.Int64("loanID", loanID))
				return &theLoan, nil
			}
			s.logger.WarnContext(ctx, "Failed to decode cached loan, falling back to database", slog.Int64("loanID", loanID))
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.WarnContext(ctx, "Cache read failed, falling back to database", slog.Any("error", err))
		}
	}

	theLoan, err := s.loanRepo.GetLoanByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: Loan not found with id: %d", apperrors.ErrNotFound, loanID)
		}
		return nil, fmt.Errorf("failed to get loan %d: %w", loanID, err)
	}

	if s.store != nil {
		if encoded, marshalErr := json.Marshal(theLoan); marshalErr == nil {
			if setErr := s.store.Set(ctx, cache.LoanKey(loanID), encoded, s.cacheTTL); setErr != nil {
				s.logger.WarnContext(ctx, "Failed to cache loan", slog.Any("error", setErr))
			}
		}
	}
	return theLoan, nil
}

func (s *service) ListLoans(ctx context.Context, customerID int64, page paging.Request) ([]Loan, paging.Page, error) {
	page = page.Normalize()

	if _, err := s.customerRepo.FindByID(ctx, customerID); err != nil {
		if errors.Is(err, customer.ErrNotFound) || errors.Is(err, apperrors.ErrNotFound) {
			return nil, paging.Page{}, fmt.Errorf("%w: Customer not found with id: %d", apperrors.ErrNotFound, customerID)
		}
		return nil, paging.Page{}, fmt.Errorf("failed to load customer %d: %w", customerID, err)
	}

	loans, total, err := s.loanRepo.ListLoansByCustomerID(ctx, customerID, page)
	if err != nil {
		return nil, paging.Page{}, fmt.Errorf("failed to list loans for customer %d: %w", customerID, err)
	}
	return loans, paging.NewPage(page, total), nil
}
