package dto

import (
	"fmt"
	"strings"
	"time"

	"credit-engine/internal/domain/customer"

	"github.com/shopspring/decimal"
)

type CreateCustomerRequest struct {
	Name        string          `json:"name"`
	Surname     string          `json:"surname"`
	CreditLimit decimal.Decimal `json:"creditLimit"`
}

func (r *CreateCustomerRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if strings.TrimSpace(r.Surname) == "" {
		return fmt.Errorf("surname cannot be empty")
	}
	if r.CreditLimit.IsNegative() {
		return fmt.Errorf("creditLimit cannot be negative")
	}
	return nil
}

type CustomerResponse struct {
	CustomerID      int64           `json:"customerId"`
	Name            string          `json:"name"`
	Surname         string          `json:"surname"`
	CreditLimit     decimal.Decimal `json:"creditLimit"`
	UsedCreditLimit decimal.Decimal `json:"usedCreditLimit"`
	CreateDate      time.Time       `json:"createDate"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func NewCustomerResponse(cust *customer.Customer) CustomerResponse {
	if cust == nil {
		return CustomerResponse{}
	}
	return CustomerResponse{
		CustomerID:      cust.CustomerID,
		Name:            cust.Name,
		Surname:         cust.Surname,
		CreditLimit:     cust.CreditLimit,
		UsedCreditLimit: cust.UsedCreditLimit,
		CreateDate:      cust.CreateDate,
		UpdatedAt:       cust.UpdatedAt,
	}
}
