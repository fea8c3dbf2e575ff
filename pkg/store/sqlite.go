package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/lendingLedger/pkg/models"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	_ "github.com/mattn/go-sqlite3"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore manages the database connection and operations for SQLite.
type SQLiteStore struct {
	db   *sql.DB
	q    querier
	inTx bool
}

// NewSQLiteStore creates a new SQLiteStore and initializes the database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	source, err := dsn(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", source)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db, q: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	log.Info().Str("path", path).Msg("Database connection established and schema initialized")
	return s, nil
}

var (
	// Always enforced. Write transactions start with BEGIN IMMEDIATE so two
	// payment commits on the same file are serialized by SQLite's write lock.
	requiredPragmas = map[string]string{
		"_foreign_keys": "on",
		"_txlock":       "immediate",
	}
	defaultPragmas = map[string]string{
		"_journal_mode": "WAL",
		"_busy_timeout": "5000",
	}
	// Short spellings go-sqlite3 also accepts.
	pragmaAliases = map[string]string{
		"_fk":      "_foreign_keys",
		"_journal": "_journal_mode",
		"_timeout": "_busy_timeout",
	}
)

// dsn sets the connection pragmas through the DSN so every pooled connection
// gets them. Parameters already present on path are kept unless they would
// override a required pragma.
func dsn(path string) (string, error) {
	base, rawQuery, _ := strings.Cut(path, "?")
	params, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", fmt.Errorf("invalid database path parameters %q: %w", rawQuery, err)
	}

	for alias, name := range pragmaAliases {
		if v := params.Get(alias); v != "" && params.Get(name) == "" {
			params.Set(name, v)
		}
		params.Del(alias)
	}
	for name, v := range defaultPragmas {
		if params.Get(name) == "" {
			params.Set(name, v)
		}
	}
	for name, v := range requiredPragmas {
		params.Set(name, v)
	}

	if !strings.HasPrefix(base, "file:") {
		base = "file:" + base
	}
	return base + "?" + params.Encode(), nil
}

// initSchema creates the database tables if they don't already exist.
// Decimal fields are TEXT so no precision is lost.
func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS customers (
		customer_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS loans (
		loan_id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		principal_amount TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		interest_rate TEXT NOT NULL,
		loan_period_years INTEGER NOT NULL,
		monthly_emi TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY(customer_id) REFERENCES customers(customer_id)
	);
	CREATE INDEX IF NOT EXISTS idx_loans_customer ON loans(customer_id);
	CREATE TABLE IF NOT EXISTS payments (
		payment_id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		payment_type TEXT NOT NULL,
		payment_date DATETIME NOT NULL,
		FOREIGN KEY(loan_id) REFERENCES loans(loan_id)
	);
	CREATE INDEX IF NOT EXISTS idx_payments_loan ON payments(loan_id, payment_date);
	`
	_, err := s.db.Exec(schema)
	return err
}

// WithinTx runs fn inside a single database transaction.
// Nested calls reuse the outer transaction.
func (s *SQLiteStore) WithinTx(ctx context.Context, fn func(tx Storage) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&SQLiteStore{db: s.db, q: tx, inTx: true}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreateCustomer inserts a new customer.
func (s *SQLiteStore) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO customers (customer_id, name, created_at) VALUES (?, ?, ?)`,
		customer.ID, customer.Name, customer.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}
	return nil
}

// GetCustomer retrieves a customer by its ID.
func (s *SQLiteStore) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	var customer models.Customer
	row := s.q.QueryRowContext(ctx, `SELECT customer_id, name, created_at FROM customers WHERE customer_id = ?`, id)
	if err := row.Scan(&customer.ID, &customer.Name, &customer.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return &customer, nil
}

const loanColumns = `loan_id, customer_id, principal_amount, total_amount, interest_rate, loan_period_years, monthly_emi, status, created_at`

// CreateLoan inserts a new loan into the database.
func (s *SQLiteStore) CreateLoan(ctx context.Context, loan *models.Loan) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO loans (`+loanColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loan.ID.String(), loan.CustomerID, loan.Principal, loan.TotalAmount, loan.InterestRate, loan.PeriodYears, loan.MonthlyEMI, string(loan.Status), loan.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoan(row rowScanner) (*models.Loan, error) {
	var loan models.Loan
	var loanIDStr, status string
	if err := row.Scan(&loanIDStr, &loan.CustomerID, &loan.Principal, &loan.TotalAmount, &loan.InterestRate, &loan.PeriodYears, &loan.MonthlyEMI, &status, &loan.CreatedAt); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(loanIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid loan id %q: %w", loanIDStr, err)
	}
	loan.ID = id
	loan.Status = models.LoanStatus(status)
	return &loan, nil
}

// GetLoan retrieves a loan by its ID.
func (s *SQLiteStore) GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE loan_id = ?`, id.String())
	loan, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return loan, nil
}

// GetAllLoans retrieves all loans, oldest first.
func (s *SQLiteStore) GetAllLoans(ctx context.Context) ([]*models.Loan, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+loanColumns+` FROM loans ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all loans: %w", err)
	}
	defer rows.Close()

	return s.scanLoans(rows)
}

// GetLoansForCustomer retrieves the loans owned by a customer, oldest first.
func (s *SQLiteStore) GetLoansForCustomer(ctx context.Context, customerID string) ([]*models.Loan, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE customer_id = ? ORDER BY created_at ASC, rowid ASC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get loans for customer %s: %w", customerID, err)
	}
	defer rows.Close()

	return s.scanLoans(rows)
}

func (s *SQLiteStore) scanLoans(rows *sql.Rows) ([]*models.Loan, error) {
	loans := []*models.Loan{}
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan row: %w", err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return loans, nil
}

// UpdateLoanStatus sets the status of an existing loan.
func (s *SQLiteStore) UpdateLoanStatus(ctx context.Context, id uuid.UUID, status models.LoanStatus) error {
	result, err := s.q.ExecContext(ctx, `UPDATE loans SET status = ? WHERE loan_id = ?`, string(status), id.String())
	if err != nil {
		return fmt.Errorf("failed to update loan status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreatePayment appends a payment row.
func (s *SQLiteStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO payments (payment_id, loan_id, amount, payment_type, payment_date)
		VALUES (?, ?, ?, ?, ?)`,
		payment.ID.String(), payment.LoanID.String(), payment.Amount, string(payment.Type), payment.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// GetPaymentsForLoan retrieves all payments for a given loan ID in the order they were made.
func (s *SQLiteStore) GetPaymentsForLoan(ctx context.Context, loanID uuid.UUID) ([]*models.Payment, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT payment_id, loan_id, amount, payment_type, payment_date FROM payments WHERE loan_id = ? ORDER BY payment_date ASC, rowid ASC`,
		loanID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments for loan %s: %w", loanID, err)
	}
	defer rows.Close()

	payments := []*models.Payment{}
	for rows.Next() {
		var payment models.Payment
		var paymentIDStr, loanIDStr, paymentType string
		var timestamp time.Time
		if err := rows.Scan(&paymentIDStr, &loanIDStr, &payment.Amount, &paymentType, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan payment row: %w", err)
		}
		if payment.ID, err = uuid.Parse(paymentIDStr); err != nil {
			return nil, fmt.Errorf("invalid payment id %q: %w", paymentIDStr, err)
		}
		if payment.LoanID, err = uuid.Parse(loanIDStr); err != nil {
			return nil, fmt.Errorf("invalid loan id %q: %w", loanIDStr, err)
		}
		payment.Type = models.PaymentType(paymentType)
		payment.Timestamp = timestamp
		payments = append(payments, &payment)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration for loan payments: %w", err)
	}
	return payments, nil
}

// SumPaymentsForLoan totals the payments of a loan. The sum is taken in Go
// rather than with SQL SUM, which would coerce the TEXT amounts to floats.
func (s *SQLiteStore) SumPaymentsForLoan(ctx context.Context, loanID uuid.UUID) (decimal.Decimal, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT amount FROM payments WHERE loan_id = ?`, loanID.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum payments for loan %s: %w", loanID, err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amount decimal.Decimal
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan payment amount: %w", err)
		}
		total = total.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("error during rows iteration for payment sum: %w", err)
	}
	return total, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.inTx {
		return nil
	}
	return s.db.Close()
}
