package customer

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer owns zero or more loans and carries the credit ceiling the
// lending decisions are made against. usedCreditLimit is the portion of the
// ceiling currently consumed by open loans; it grows on loan creation and
// shrinks as installments are settled. Invariant at rest:
// 0 <= UsedCreditLimit <= CreditLimit.
type Customer struct {
	CustomerID      int64           `json:"customerId"`
	Name            string          `json:"name"`
	Surname         string          `json:"surname"`
	CreditLimit     decimal.Decimal `json:"creditLimit"`
	UsedCreditLimit decimal.Decimal `json:"usedCreditLimit"`
	CreateDate      time.Time       `json:"createDate"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func NewCustomer(name, surname string, creditLimit decimal.Decimal) *Customer {
	now := time.Now()
	return &Customer{
		Name:            name,
		Surname:         surname,
		CreditLimit:     creditLimit,
		UsedCreditLimit: decimal.Zero,
		CreateDate:      now,
		UpdatedAt:       now,
	}
}

// AvailableCredit is the headroom left under the ceiling.
func (c *Customer) AvailableCredit() decimal.Decimal {
	return c.CreditLimit.Sub(c.UsedCreditLimit)
}

// CanBorrow reports whether a loan consuming amount of credit fits under the
// customer's ceiling.
func (c *Customer) CanBorrow(amount decimal.Decimal) bool {
	return amount.LessThanOrEqual(c.AvailableCredit())
}
