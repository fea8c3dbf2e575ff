package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// moneyPlaces is the number of decimal places money is stored and shown with.
	moneyPlaces = 2

	// Input bounds. Within them every derived figure fits an int64 of cents.
	maxAmountDigits = 13 // integer digits of a principal or payment
	maxRateDigits   = 3  // integer digits of a yearly rate in percent
	maxRatePlaces   = 4
	maxPeriodYears  = 100

	// maxInputScale caps the decimal places accepted before rounding is
	// attempted, trailing zeros included.
	maxInputScale = 18
)

var (
	monthsInYear = decimal.NewFromInt(12)
	hundred      = decimal.NewFromInt(100)
)

// LoanRequest carries the inputs of a new loan.
type LoanRequest struct {
	CustomerID  string
	Principal   decimal.Decimal
	PeriodYears int
	YearlyRate  decimal.Decimal // Percent, e.g. 5.5 for 5.5%
}

// Validate rejects requests whose figures are missing, non-positive or out of
// bounds. It runs before any arithmetic on the request.
func (r LoanRequest) Validate() error {
	if strings.TrimSpace(r.CustomerID) == "" {
		return fmt.Errorf("%w: customer_id is required", ErrValidation)
	}
	if !r.Principal.IsPositive() {
		return fmt.Errorf("%w: loan_amount must be greater than zero", ErrValidation)
	}
	if err := checkMoney("loan_amount", r.Principal); err != nil {
		return err
	}
	if r.PeriodYears <= 0 {
		return fmt.Errorf("%w: loan_period_years must be a positive integer", ErrValidation)
	}
	if r.PeriodYears > maxPeriodYears {
		return fmt.Errorf("%w: loan_period_years must not exceed %d", ErrValidation, maxPeriodYears)
	}
	if r.YearlyRate.IsNegative() {
		return fmt.Errorf("%w: interest_rate_yearly must not be negative", ErrValidation)
	}
	if !withinBounds(r.YearlyRate, maxRateDigits, maxRatePlaces) {
		return fmt.Errorf("%w: interest_rate_yearly must be below 1000 with at most %d decimal places", ErrValidation, maxRatePlaces)
	}
	return nil
}

// Terms are the repayment figures fixed at origination.
type Terms struct {
	Interest    decimal.Decimal
	TotalAmount decimal.Decimal
	MonthlyEMI  decimal.Decimal
}

// ComputeTerms applies simple interest over the whole period:
//
//	interest = principal * years * rate/100
//	total    = principal + interest
//	emi      = total / (years * 12)
//
// Total and EMI are rounded half away from zero to cents.
func ComputeTerms(principal decimal.Decimal, periodYears int, yearlyRate decimal.Decimal) (Terms, error) {
	years := decimal.NewFromInt(int64(periodYears))

	total := principal.Add(principal.Mul(years).Mul(yearlyRate.Div(hundred))).Round(moneyPlaces)
	emi := total.Div(years.Mul(monthsInYear)).Round(moneyPlaces)
	if !emi.IsPositive() {
		return Terms{}, fmt.Errorf("%w: loan_amount is too small for a %d year period", ErrValidation, periodYears)
	}

	return Terms{
		Interest:    total.Sub(principal),
		TotalAmount: total,
		MonthlyEMI:  emi,
	}, nil
}

// checkMoney validates an amount of money supplied by a caller.
func checkMoney(field string, d decimal.Decimal) error {
	if !withinBounds(d, maxAmountDigits, moneyPlaces) {
		return fmt.Errorf("%w: %s must be below 10^%d with at most %d decimal places", ErrValidation, field, maxAmountDigits, moneyPlaces)
	}
	return nil
}

// withinBounds reports whether d has at most intDigits digits before the
// decimal point and at most places significant digits after it. The exponent
// is checked first, so values like 1e50000000 are refused without ever being
// rescaled.
func withinBounds(d decimal.Decimal, intDigits, places int) bool {
	exp := int(d.Exponent())
	if exp > intDigits || exp < -maxInputScale {
		return false
	}
	if d.NumDigits()+exp > intDigits {
		return false
	}
	if exp >= -places {
		return true
	}
	// Trailing zeros such as 10.500 are fine.
	return d.Equal(d.Round(int32(places)))
}
