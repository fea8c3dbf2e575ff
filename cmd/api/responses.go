package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/mcclellann/lendingLedger/pkg/ledger"
	"github.com/mcclellann/lendingLedger/pkg/models"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// money formats an amount the way every response shows it: exactly two decimals.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

type loanCreatedResponse struct {
	LoanID             string `json:"loan_id"`
	CustomerID         string `json:"customer_id"`
	TotalAmountPayable string `json:"total_amount_payable"`
	MonthlyEMI         string `json:"monthly_emi"`
}

type paymentResponse struct {
	PaymentID        string            `json:"payment_id"`
	Message          string            `json:"message"`
	RemainingBalance string            `json:"remaining_balance"`
	EMIsLeft         int64             `json:"emis_left"`
	Status           models.LoanStatus `json:"status"`
}

type transactionResponse struct {
	TransactionID string    `json:"transaction_id"`
	Date          time.Time `json:"date"`
	Amount        string    `json:"amount"`
	Type          string    `json:"type"`
}

type ledgerResponse struct {
	LoanID        string                `json:"loan_id"`
	CustomerID    string                `json:"customer_id"`
	Principal     string                `json:"principal"`
	TotalAmount   string                `json:"total_amount"`
	MonthlyEMI    string                `json:"monthly_emi"`
	AmountPaid    string                `json:"amount_paid"`
	BalanceAmount string                `json:"balance_amount"`
	EMIsLeft      int64                 `json:"emis_left"`
	Status        models.LoanStatus     `json:"status"`
	Transactions  []transactionResponse `json:"transactions"`
}

type loanSummaryResponse struct {
	LoanID        string            `json:"loan_id"`
	Principal     string            `json:"principal"`
	TotalAmount   string            `json:"total_amount"`
	TotalInterest string            `json:"total_interest"`
	EMIAmount     string            `json:"emi_amount"`
	AmountPaid    string            `json:"amount_paid"`
	EMIsLeft      int64             `json:"emis_left"`
	Status        models.LoanStatus `json:"status"`
}

type overviewResponse struct {
	CustomerID string                `json:"customer_id"`
	TotalLoans int                   `json:"total_loans"`
	Loans      []loanSummaryResponse `json:"loans"`
}

type loanResponse struct {
	LoanID          string            `json:"loan_id"`
	CustomerID      string            `json:"customer_id"`
	Principal       string            `json:"principal"`
	InterestRate    string            `json:"interest_rate"`
	LoanPeriodYears int               `json:"loan_period_years"`
	TotalAmount     string            `json:"total_amount"`
	MonthlyEMI      string            `json:"monthly_emi"`
	Status          models.LoanStatus `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
}

func newLoanResponse(loan *models.Loan) loanResponse {
	return loanResponse{
		LoanID:          loan.ID.String(),
		CustomerID:      loan.CustomerID,
		Principal:       money(loan.Principal),
		InterestRate:    loan.InterestRate.String(),
		LoanPeriodYears: loan.PeriodYears,
		TotalAmount:     money(loan.TotalAmount),
		MonthlyEMI:      money(loan.MonthlyEMI),
		Status:          loan.Status,
		CreatedAt:       loan.CreatedAt,
	}
}

func newLedgerResponse(view *models.LedgerView) ledgerResponse {
	txs := make([]transactionResponse, 0, len(view.Payments))
	for _, p := range view.Payments {
		txs = append(txs, transactionResponse{
			TransactionID: p.ID.String(),
			Date:          p.Timestamp,
			Amount:        money(p.Amount),
			Type:          string(p.Type),
		})
	}
	return ledgerResponse{
		LoanID:        view.Loan.ID.String(),
		CustomerID:    view.Loan.CustomerID,
		Principal:     money(view.Loan.Principal),
		TotalAmount:   money(view.Loan.TotalAmount),
		MonthlyEMI:    money(view.Loan.MonthlyEMI),
		AmountPaid:    money(view.AmountPaid),
		BalanceAmount: money(view.Balance),
		EMIsLeft:      view.EMIsLeft,
		Status:        view.Loan.Status,
		Transactions:  txs,
	}
}

func newOverviewResponse(overview *models.CustomerOverview) overviewResponse {
	loans := make([]loanSummaryResponse, 0, len(overview.Loans))
	for _, view := range overview.Loans {
		loans = append(loans, loanSummaryResponse{
			LoanID:        view.Loan.ID.String(),
			Principal:     money(view.Loan.Principal),
			TotalAmount:   money(view.Loan.TotalAmount),
			TotalInterest: money(view.Loan.TotalInterest()),
			EMIAmount:     money(view.Loan.MonthlyEMI),
			AmountPaid:    money(view.AmountPaid),
			EMIsLeft:      view.EMIsLeft,
			Status:        view.Loan.Status,
		})
	}
	return overviewResponse{
		CustomerID: overview.CustomerID,
		TotalLoans: len(loans),
		Loans:      loans,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeErrorMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrNotFound):
		writeErrorMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrInvalidState):
		writeErrorMessage(w, http.StatusConflict, err.Error())
	default:
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request failed")
		writeErrorMessage(w, http.StatusInternalServerError, "internal server error")
	}
}
