package main

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/mcclellann/lendingLedger/pkg/ledger"
	"github.com/mcclellann/lendingLedger/pkg/store"
)

// Server holds the ledger instance.
type Server struct {
	ledger  *ledger.Ledger
	storage store.Storage // Keep a reference to the storage to close it
	limiter *RateLimiter  // Optional
}

// NewServer creates a Server. A nil limiter disables rate limiting.
func NewServer(s store.Storage, l *ledger.Ledger, limiter *RateLimiter) *Server {
	return &Server{
		ledger:  l,
		storage: s,
		limiter: limiter,
	}
}

// routes builds the router with every endpoint and middleware attached.
func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.Use(requestIDMiddleware, loggingMiddleware, recoverMiddleware)

	router.HandleFunc("/health", s.healthHandler).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	if s.limiter != nil {
		api.Use(s.limiter.Middleware)
	}
	api.HandleFunc("/loans", s.listLoansHandler).Methods("GET")
	api.HandleFunc("/loans", s.createLoanHandler).Methods("POST")
	api.HandleFunc("/loans/{loan_id}/payments", s.recordPaymentHandler).Methods("POST")
	api.HandleFunc("/loans/{loan_id}/ledger", s.getLedgerHandler).Methods("GET")
	api.HandleFunc("/customers/{customer_id}/overview", s.customerOverviewHandler).Methods("GET")

	return router
}

// handler wraps the router with CORS so browser clients on allowedOrigins can
// call the API. Preflight requests are answered before routing.
func (s *Server) handler(allowedOrigins []string) http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins(allowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", headerRequestID}),
		handlers.ExposedHeaders([]string{headerRequestID}),
	)
	return cors(s.routes())
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) createLoanHandler(w http.ResponseWriter, r *http.Request) {
	var body createLoanRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	req, err := body.toLoanRequest()
	if err != nil {
		writeError(w, r, err)
		return
	}

	loan, err := s.ledger.CreateLoan(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, loanCreatedResponse{
		LoanID:             loan.ID.String(),
		CustomerID:         loan.CustomerID,
		TotalAmountPayable: money(loan.TotalAmount),
		MonthlyEMI:         money(loan.MonthlyEMI),
	})
}

func (s *Server) listLoansHandler(w http.ResponseWriter, r *http.Request) {
	loans, err := s.ledger.GetAllLoans(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]loanResponse, 0, len(loans))
	for _, loan := range loans {
		resp = append(resp, newLoanResponse(loan))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) recordPaymentHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := loanIDFromPath(w, r)
	if !ok {
		return
	}

	var body paymentRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := body.amount()
	if err != nil {
		writeError(w, r, err)
		return
	}

	receipt, err := s.ledger.ApplyPayment(r.Context(), loanID, amount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, paymentResponse{
		PaymentID:        receipt.Payment.ID.String(),
		Message:          "Payment recorded successfully.",
		RemainingBalance: money(receipt.RemainingBalance),
		EMIsLeft:         receipt.EMIsLeft,
		Status:           receipt.Status,
	})
}

func (s *Server) getLedgerHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := loanIDFromPath(w, r)
	if !ok {
		return
	}

	view, err := s.ledger.GetLedger(r.Context(), loanID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newLedgerResponse(view))
}

func (s *Server) customerOverviewHandler(w http.ResponseWriter, r *http.Request) {
	customerID := mux.Vars(r)["customer_id"]

	overview, err := s.ledger.CustomerOverview(r.Context(), customerID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newOverviewResponse(overview))
}

func loanIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	loanID, err := uuid.Parse(mux.Vars(r)["loan_id"])
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid loan id")
		return uuid.Nil, false
	}
	return loanID, true
}
