package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/mcclellann/lendingLedger/pkg/models"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a customer or loan row does not exist.
var ErrNotFound = errors.New("record not found")

// Storage defines the interface for database operations related to customers, loans and payments.
type Storage interface {
	CreateCustomer(ctx context.Context, customer *models.Customer) error
	GetCustomer(ctx context.Context, id string) (*models.Customer, error)

	CreateLoan(ctx context.Context, loan *models.Loan) error
	GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error)
	GetAllLoans(ctx context.Context) ([]*models.Loan, error)
	GetLoansForCustomer(ctx context.Context, customerID string) ([]*models.Loan, error)
	UpdateLoanStatus(ctx context.Context, id uuid.UUID, status models.LoanStatus) error

	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPaymentsForLoan(ctx context.Context, loanID uuid.UUID) ([]*models.Payment, error)
	SumPaymentsForLoan(ctx context.Context, loanID uuid.UUID) (decimal.Decimal, error)

	// WithinTx runs fn against a Storage bound to a single transaction.
	// The transaction commits if fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(tx Storage) error) error

	Close() error
}
