package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/mcclellann/lendingLedger/pkg/ledger"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

// createLoanRequest is the body of POST /api/v1/loans. Pointer fields tell a
// missing field apart from a zero value.
type createLoanRequest struct {
	CustomerID         *string          `json:"customer_id"`
	LoanAmount         *decimal.Decimal `json:"loan_amount"`
	LoanPeriodYears    *int             `json:"loan_period_years"`
	InterestRateYearly *decimal.Decimal `json:"interest_rate_yearly"`
}

func (r createLoanRequest) toLoanRequest() (ledger.LoanRequest, error) {
	var missing []string
	if r.CustomerID == nil {
		missing = append(missing, "customer_id")
	}
	if r.LoanAmount == nil {
		missing = append(missing, "loan_amount")
	}
	if r.LoanPeriodYears == nil {
		missing = append(missing, "loan_period_years")
	}
	if r.InterestRateYearly == nil {
		missing = append(missing, "interest_rate_yearly")
	}
	if len(missing) > 0 {
		return ledger.LoanRequest{}, fmt.Errorf("%w: missing required fields %v", ledger.ErrValidation, missing)
	}

	req := ledger.LoanRequest{
		CustomerID:  *r.CustomerID,
		Principal:   *r.LoanAmount,
		PeriodYears: *r.LoanPeriodYears,
		YearlyRate:  *r.InterestRateYearly,
	}
	if err := req.Validate(); err != nil {
		return ledger.LoanRequest{}, err
	}
	return req, nil
}

// paymentRequest is the body of POST /api/v1/loans/{loan_id}/payments.
type paymentRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

func (r paymentRequest) amount() (decimal.Decimal, error) {
	if r.Amount == nil {
		return decimal.Zero, fmt.Errorf("%w: missing required field amount", ledger.ErrValidation)
	}
	if !r.Amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: invalid payment amount", ledger.ErrValidation)
	}
	return *r.Amount, nil
}

// decodeJSON decodes a single JSON object from the request body. Malformed or
// non-numeric input is reported as a validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return fmt.Errorf("%w: request body is empty", ledger.ErrValidation)
		}
		return fmt.Errorf("%w: malformed request body: %v", ledger.ErrValidation, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: request body must contain a single JSON object", ledger.ErrValidation)
	}
	return nil
}
