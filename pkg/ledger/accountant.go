package ledger

import (
	"fmt"
	"math"

	"github.com/mcclellann/lendingLedger/pkg/models"
	"github.com/shopspring/decimal"
)

// ComputeLedger derives paid amount, balance and EMIs left from a loan and its payments.
// Every endpoint that reports these figures goes through here.
func ComputeLedger(loan *models.Loan, payments []*models.Payment) *models.LedgerView {
	paid := decimal.Zero
	for _, p := range payments {
		paid = paid.Add(p.Amount)
	}
	balance := loan.TotalAmount.Sub(paid)

	return &models.LedgerView{
		Loan:       *loan,
		AmountPaid: paid,
		Balance:    balance,
		EMIsLeft:   EMIsLeft(loan.Status, balance, loan.MonthlyEMI),
		Payments:   payments,
	}
}

// EMIsLeft is ceil(balance / emi) for an active loan and 0 for a paid off one.
// A non-positive balance on an active loan cannot be produced by ApplyPayment,
// which rejects over-payments; it still yields 0 rather than a negative count.
// A count beyond int64 saturates at math.MaxInt64.
func EMIsLeft(status models.LoanStatus, balance, emi decimal.Decimal) int64 {
	if status == models.LoanStatusPaidOff || !balance.IsPositive() || !emi.IsPositive() {
		return 0
	}
	q, r := balance.QuoRem(emi, 0)
	if !q.BigInt().IsInt64() {
		return math.MaxInt64
	}
	n := q.IntPart()
	if r.IsPositive() {
		n++
	}
	return n
}

// settle checks a payment of amount against a loan that has already received
// paid, and returns the balance left afterwards and the resulting status.
func settle(loan *models.Loan, paid, amount decimal.Decimal) (decimal.Decimal, models.LoanStatus, error) {
	if loan.IsPaidOff() {
		return decimal.Zero, loan.Status, fmt.Errorf("%w: loan already paid off", ErrInvalidState)
	}

	remainingBefore := loan.TotalAmount.Sub(paid)
	if amount.GreaterThan(remainingBefore) {
		return decimal.Zero, loan.Status, fmt.Errorf("%w: payment exceeds remaining balance of %s", ErrValidation, remainingBefore.StringFixed(moneyPlaces))
	}

	remainingAfter := remainingBefore.Sub(amount)
	if remainingAfter.LessThanOrEqual(decimal.Zero) {
		return remainingAfter, models.LoanStatusPaidOff, nil
	}
	return remainingAfter, models.LoanStatusActive, nil
}

func validatePaymentAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: payment amount must be greater than zero", ErrValidation)
	}
	return checkMoney("payment amount", amount)
}
