package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/lendingLedger/pkg/cache"
	"github.com/mcclellann/lendingLedger/pkg/models"
	"github.com/mcclellann/lendingLedger/pkg/store"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Ledger handles the business logic for loans and payments.
type Ledger struct {
	storage  store.Storage
	cache    cache.Cache // Optional ledger view cache
	cacheTTL time.Duration
	locks    *loanLocks
	now      func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithCache caches ledger views for ttl.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(l *Ledger) {
		l.cache = c
		l.cacheTTL = ttl
	}
}

// WithClock overrides the clock used to timestamp loans and payments.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// NewLedger creates a new Ledger with a given Storage implementation.
func NewLedger(s store.Storage, opts ...Option) *Ledger {
	l := &Ledger{
		storage: s,
		locks:   newLoanLocks(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CreateLoan originates a new ACTIVE loan for an existing customer.
func (l *Ledger) CreateLoan(ctx context.Context, req LoanRequest) (*models.Loan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	terms, err := ComputeTerms(req.Principal, req.PeriodYears, req.YearlyRate)
	if err != nil {
		return nil, err
	}

	if _, err := l.storage.GetCustomer(ctx, req.CustomerID); err != nil {
		return nil, notFound(err, "customer %s", req.CustomerID)
	}

	loan := &models.Loan{
		ID:           uuid.New(),
		CustomerID:   req.CustomerID,
		Principal:    req.Principal,
		InterestRate: req.YearlyRate,
		PeriodYears:  req.PeriodYears,
		TotalAmount:  terms.TotalAmount,
		MonthlyEMI:   terms.MonthlyEMI,
		Status:       models.LoanStatusActive,
		CreatedAt:    l.now().UTC(),
	}
	if err := l.storage.CreateLoan(ctx, loan); err != nil {
		return nil, fmt.Errorf("failed to store loan: %w", err)
	}

	log.Info().
		Str("loan_id", loan.ID.String()).
		Str("customer_id", loan.CustomerID).
		Str("total_amount", loan.TotalAmount.StringFixed(moneyPlaces)).
		Str("monthly_emi", loan.MonthlyEMI.StringFixed(moneyPlaces)).
		Msg("Loan created")
	return loan, nil
}

// GetAllLoans retrieves all loans.
func (l *Ledger) GetAllLoans(ctx context.Context) ([]*models.Loan, error) {
	return l.storage.GetAllLoans(ctx)
}

// GetLedger returns the derived figures and payment history of a loan.
func (l *Ledger) GetLedger(ctx context.Context, loanID uuid.UUID) (*models.LedgerView, error) {
	// Holding the loan lock keeps a concurrent payment from landing between
	// computing the view and caching it.
	unlock := l.locks.lock(loanID)
	defer unlock()

	if view, ok := l.cachedLedger(ctx, loanID); ok {
		return view, nil
	}

	loan, err := l.storage.GetLoan(ctx, loanID)
	if err != nil {
		return nil, notFound(err, "loan %s", loanID)
	}
	payments, err := l.storage.GetPaymentsForLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	view := ComputeLedger(loan, payments)
	l.cacheLedger(ctx, view)
	return view, nil
}

// ApplyPayment records a lump-sum payment and pays off the loan once its
// balance reaches zero. Payments on the same loan are applied one at a time.
func (l *Ledger) ApplyPayment(ctx context.Context, loanID uuid.UUID, amount decimal.Decimal) (*models.PaymentReceipt, error) {
	if err := validatePaymentAmount(amount); err != nil {
		return nil, err
	}

	unlock := l.locks.lock(loanID)
	defer unlock()

	var receipt *models.PaymentReceipt
	err := l.storage.WithinTx(ctx, func(tx store.Storage) error {
		loan, err := tx.GetLoan(ctx, loanID)
		if err != nil {
			return notFound(err, "loan %s", loanID)
		}
		paid, err := tx.SumPaymentsForLoan(ctx, loanID)
		if err != nil {
			return err
		}

		remaining, status, err := settle(loan, paid, amount)
		if err != nil {
			return err
		}

		payment := models.Payment{
			ID:        uuid.New(),
			LoanID:    loanID,
			Amount:    amount,
			Type:      models.PaymentTypeLumpSum,
			Timestamp: l.now().UTC(),
		}
		if err := tx.CreatePayment(ctx, &payment); err != nil {
			return fmt.Errorf("failed to store payment: %w", err)
		}
		if status != loan.Status {
			if err := tx.UpdateLoanStatus(ctx, loanID, status); err != nil {
				return fmt.Errorf("failed to update loan status: %w", err)
			}
		}

		receipt = &models.PaymentReceipt{
			Payment:          payment,
			RemainingBalance: remaining,
			EMIsLeft:         EMIsLeft(status, remaining, loan.MonthlyEMI),
			Status:           status,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.invalidateLedger(ctx, loanID)

	event := log.Info().
		Str("loan_id", loanID.String()).
		Str("payment_id", receipt.Payment.ID.String()).
		Str("amount", amount.StringFixed(moneyPlaces)).
		Str("remaining_balance", receipt.RemainingBalance.StringFixed(moneyPlaces))
	if receipt.Status == models.LoanStatusPaidOff {
		event.Msg("Payment recorded, loan paid off")
	} else {
		event.Msg("Payment recorded")
	}
	return receipt, nil
}

// CustomerOverview returns the ledger figures of every loan a customer holds.
func (l *Ledger) CustomerOverview(ctx context.Context, customerID string) (*models.CustomerOverview, error) {
	if _, err := l.storage.GetCustomer(ctx, customerID); err != nil {
		return nil, notFound(err, "customer %s", customerID)
	}

	loans, err := l.storage.GetLoansForCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	overview := &models.CustomerOverview{
		CustomerID: customerID,
		Loans:      make([]*models.LedgerView, 0, len(loans)),
	}
	for _, loan := range loans {
		payments, err := l.storage.GetPaymentsForLoan(ctx, loan.ID)
		if err != nil {
			return nil, err
		}
		overview.Loans = append(overview.Loans, ComputeLedger(loan, payments))
	}
	return overview, nil
}

func ledgerKey(loanID uuid.UUID) string {
	return "ledger:" + loanID.String()
}

func (l *Ledger) cachedLedger(ctx context.Context, loanID uuid.UUID) (*models.LedgerView, bool) {
	if l.cache == nil {
		return nil, false
	}
	raw, ok, err := l.cache.Get(ctx, ledgerKey(loanID))
	if err != nil {
		log.Warn().Err(err).Str("loan_id", loanID.String()).Msg("Ledger cache read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var view models.LedgerView
	if err := json.Unmarshal([]byte(raw), &view); err != nil {
		log.Warn().Err(err).Str("loan_id", loanID.String()).Msg("Discarding undecodable ledger cache entry")
		return nil, false
	}
	return &view, true
}

func (l *Ledger) cacheLedger(ctx context.Context, view *models.LedgerView) {
	if l.cache == nil {
		return
	}
	raw, err := json.Marshal(view)
	if err != nil {
		log.Warn().Err(err).Str("loan_id", view.Loan.ID.String()).Msg("Ledger view not cacheable")
		return
	}
	if err := l.cache.Set(ctx, ledgerKey(view.Loan.ID), string(raw), l.cacheTTL); err != nil {
		log.Warn().Err(err).Str("loan_id", view.Loan.ID.String()).Msg("Ledger cache write failed")
	}
}

func (l *Ledger) invalidateLedger(ctx context.Context, loanID uuid.UUID) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Delete(ctx, ledgerKey(loanID)); err != nil {
		log.Warn().Err(err).Str("loan_id", loanID.String()).Msg("Ledger cache invalidation failed")
	}
}

// notFound converts a storage miss into ErrNotFound and passes other errors through.
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
	}
	return err
}
