package customer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"credit-engine/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
)

type Service interface {
	CreateCustomer(ctx context.Context, name, surname string, creditLimit decimal.Decimal) (*Customer, error)

	GetCustomer(ctx context.Context, customerID int64) (*Customer, error)
}

var _ Service = (*service)(nil)

type service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) Service {
	if repo == nil {
		panic("customer repository cannot be nil")
	}
	return &service{
		repo:   repo,
		logger: logger.With(slog.String("component", "customerService")),
	}
}

func (s *service) CreateCustomer(ctx context.Context, name, surname string, creditLimit decimal.Decimal) (*Customer, error) {
	s.logger.InfoContext(ctx, "Attempting to create new customer")

	name = strings.TrimSpace(name)
	surname = strings.TrimSpace(surname)
	if name == "" {
		s.logger.WarnContext(ctx, "Validation failed: name is empty")
		return nil, fmt.Errorf("%w: customer name cannot be empty", apperrors.ErrInvalidArgument)
	}
	if surname == "" {
		s.logger.WarnContext(ctx, "Validation failed: surname is empty", slog.String("name", name))
		return nil, fmt.Errorf("%w: customer surname cannot be empty", apperrors.ErrInvalidArgument)
	}
	if creditLimit.IsNegative() {
		s.logger.WarnContext(ctx, "Validation failed: negative credit limit")
		return nil, fmt.Errorf("%w: credit limit cannot be negative", apperrors.ErrInvalidArgument)
	}

	cust := NewCustomer(name, surname, creditLimit)
	if err := s.repo.Save(ctx, cust); err != nil {
		s.logger.ErrorContext(ctx, "Repository failed to save new customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to save new customer: %w", err)
	}

	s.logger.InfoContext(ctx, "Successfully created new customer", slog.Int64("customerID", cust.CustomerID))
	return cust, nil
}

func (s *service) GetCustomer(ctx context.Context, customerID int64) (*Customer, error) {
	s.logger.InfoContext(ctx, "Attempting to get customer by ID", slog.Int64("customerID", customerID))

	cust, err := s.repo.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "Customer not found by repository")
			return nil, fmt.Errorf("%w: customer not found with id: %d", apperrors.ErrNotFound, customerID)
		}
		s.logger.ErrorContext(ctx, "Repository error finding customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to get customer %d: %w", customerID, err)
	}

	return cust, nil
}
