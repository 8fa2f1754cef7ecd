package loan_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"credit-engine/internal/domain/customer"
	"credit-engine/internal/domain/loan"
	"credit-engine/internal/event"
	"credit-engine/internal/infrastructure/cache"
	"credit-engine/internal/pkg/paging"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// stubTx stands in for a live transaction; the services hand it to the
// repositories without calling into it.
type stubTx struct {
	pgx.Tx
}

type MockLoanRepository struct {
	mock.Mock
}

func (m *MockLoanRepository) CreateLoanInTx(ctx context.Context, tx pgx.Tx, newLoan *loan.Loan, installments []loan.Installment) (*loan.Loan, error) {
	args := m.Called(ctx, tx, newLoan, installments)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*loan.Loan), args.Error(1)
}

func (m *MockLoanRepository) GetLoanByID(ctx context.Context, loanID int64) (*loan.Loan, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*loan.Loan), args.Error(1)
}

func (m *MockLoanRepository) ListLoansByCustomerID(ctx context.Context, customerID int64, page paging.Request) ([]loan.Loan, int64, error) {
	args := m.Called(ctx, customerID, page)
	var loans []loan.Loan
	if args.Get(0) != nil {
		loans = args.Get(0).([]loan.Loan)
	}
	return loans, args.Get(1).(int64), args.Error(2)
}

func (m *MockLoanRepository) UpdateLoanPaidStatusInTx(ctx context.Context, tx pgx.Tx, loanID int64, paid bool) error {
	return m.Called(ctx, tx, loanID, paid).Error(0)
}

func (m *MockLoanRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pgx.Tx), args.Error(1)
}

func (m *MockLoanRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	return m.Called(ctx, tx).Error(0)
}

func (m *MockLoanRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	return m.Called(ctx, tx).Error(0)
}

type MockInstallmentRepository struct {
	mock.Mock
}

func (m *MockInstallmentRepository) GetInstallmentByID(ctx context.Context, installmentID int64) (*loan.Installment, error) {
	args := m.Called(ctx, installmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*loan.Installment), args.Error(1)
}

func (m *MockInstallmentRepository) GetUnpaidInstallmentsByLoanID(ctx context.Context, loanID int64) ([]loan.Installment, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]loan.Installment), args.Error(1)
}

func (m *MockInstallmentRepository) ListInstallmentsByLoanID(ctx context.Context, loanID int64, page paging.Request) ([]loan.Installment, int64, error) {
	args := m.Called(ctx, loanID, page)
	var installments []loan.Installment
	if args.Get(0) != nil {
		installments = args.Get(0).([]loan.Installment)
	}
	return installments, args.Get(1).(int64), args.Error(2)
}

func (m *MockInstallmentRepository) FindUnpaidForUpdateInTx(ctx context.Context, tx pgx.Tx, loanID int64) ([]loan.Installment, error) {
	args := m.Called(ctx, tx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]loan.Installment), args.Error(1)
}

func (m *MockInstallmentRepository) MarkInstallmentsPaidInTx(ctx context.Context, tx pgx.Tx, installmentIDs []int64, paidAt time.Time) error {
	return m.Called(ctx, tx, installmentIDs, paidAt).Error(0)
}

func (m *MockInstallmentRepository) GetInstallmentsDueWithin(ctx context.Context, now time.Time, within time.Duration) ([]loan.Installment, error) {
	args := m.Called(ctx, now, within)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]loan.Installment), args.Error(1)
}

type MockInstallmentService struct {
	mock.Mock
}

func (m *MockInstallmentService) GetInstallment(ctx context.Context, installmentID int64) (*loan.Installment, error) {
	args := m.Called(ctx, installmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*loan.Installment), args.Error(1)
}

func (m *MockInstallmentService) GetUnpaidInstallments(ctx context.Context, loanID int64) ([]loan.Installment, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]loan.Installment), args.Error(1)
}

func (m *MockInstallmentService) ListInstallments(ctx context.Context, loanID int64, page paging.Request) ([]loan.Installment, paging.Page, error) {
	args := m.Called(ctx, loanID, page)
	var installments []loan.Installment
	if args.Get(0) != nil {
		installments = args.Get(0).([]loan.Installment)
	}
	return installments, args.Get(1).(paging.Page), args.Error(2)
}

func (m *MockInstallmentService) GetUnpaidInstallmentsForUpdate(ctx context.Context, tx pgx.Tx, loanID int64) ([]loan.Installment, error) {
	args := m.Called(ctx, tx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]loan.Installment), args.Error(1)
}

func (m *MockInstallmentService) PayMultipleLoanInstallments(ctx context.Context, tx pgx.Tx, installmentIDs []int64, paidAt time.Time) error {
	return m.Called(ctx, tx, installmentIDs, paidAt).Error(0)
}

type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) Save(ctx context.Context, cust *customer.Customer) error {
	return m.Called(ctx, cust).Error(0)
}

func (m *MockCustomerRepository) FindByID(ctx context.Context, customerID int64) (*customer.Customer, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customer.Customer), args.Error(1)
}

func (m *MockCustomerRepository) IncreaseUsedCreditLimitInTx(ctx context.Context, tx pgx.Tx, customerID int64, amount decimal.Decimal) error {
	return m.Called(ctx, tx, customerID, amount).Error(0)
}

func (m *MockCustomerRepository) DecreaseUsedCreditLimitInTx(ctx context.Context, tx pgx.Tx, customerID int64, amount decimal.Decimal) error {
	return m.Called(ctx, tx, customerID, amount).Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishLoanCreated(ctx context.Context, evt event.LoanCreatedEvent) error {
	return m.Called(ctx, evt).Error(0)
}

func (m *MockPublisher) PublishPaymentReceived(ctx context.Context, evt event.PaymentReceivedEvent) error {
	return m.Called(ctx, evt).Error(0)
}

func (m *MockPublisher) PublishLoanPaidOff(ctx context.Context, evt event.LoanPaidOffEvent) error {
	return m.Called(ctx, evt).Error(0)
}

func (m *MockPublisher) PublishInstallmentDueSoon(ctx context.Context, evt event.InstallmentDueSoonEvent) error {
	return m.Called(ctx, evt).Error(0)
}

// memoryStore is a map-backed cache.Store for exercising the read-through
// and invalidation paths without redis.
type memoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string][]byte)}
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	val, ok := s.data[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return val, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *memoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func decimalEq(expected string) interface{} {
	want := decimal.RequireFromString(expected)
	return mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(want)
	})
}
