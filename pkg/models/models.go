package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Customer struct {
	ID        string    `json:"customer_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type LoanStatus string

const (
	LoanStatusActive  LoanStatus = "ACTIVE"
	LoanStatusPaidOff LoanStatus = "PAID_OFF"
)

// Loan is written once at origination; only Status changes afterwards.
type Loan struct {
	ID           uuid.UUID       `json:"loan_id"`
	CustomerID   string          `json:"customer_id"`
	Principal    decimal.Decimal `json:"principal"`
	InterestRate decimal.Decimal `json:"interest_rate"` // Yearly, in percent
	PeriodYears  int             `json:"loan_period_years"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	MonthlyEMI   decimal.Decimal `json:"monthly_emi"` // Already rounded to cents
	Status       LoanStatus      `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
}

// TotalInterest is the simple interest charged over the life of the loan.
func (l *Loan) TotalInterest() decimal.Decimal {
	return l.TotalAmount.Sub(l.Principal)
}

func (l *Loan) IsPaidOff() bool {
	return l.Status == LoanStatusPaidOff
}

type PaymentType string

const (
	PaymentTypeLumpSum PaymentType = "LUMP_SUM"
)

type Payment struct {
	ID        uuid.UUID       `json:"payment_id"`
	LoanID    uuid.UUID       `json:"loan_id"`
	Amount    decimal.Decimal `json:"amount"`
	Type      PaymentType     `json:"payment_type"`
	Timestamp time.Time       `json:"payment_date"`
}

// LedgerView holds the figures derived from a loan and its payments.
// Values are kept at full precision; rounding is left to the presentation layer.
type LedgerView struct {
	Loan       Loan            `json:"loan"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
	Balance    decimal.Decimal `json:"balance"`
	EMIsLeft   int64           `json:"emis_left"`
	Payments   []*Payment      `json:"payments"`
}

// PaymentReceipt is the outcome of a successfully applied payment.
type PaymentReceipt struct {
	Payment          Payment         `json:"payment"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	EMIsLeft         int64           `json:"emis_left"`
	Status           LoanStatus      `json:"status"`
}

type CustomerOverview struct {
	CustomerID string        `json:"customer_id"`
	Loans      []*LedgerView `json:"loans"`
}
