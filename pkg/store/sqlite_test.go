package store

import (
	"context"
	"errors"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/lendingLedger/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test_store.db"))
	require.NoError(t, err, "Failed to create store")
	t.Cleanup(func() { s.Close() })
	return s
}

// eachStore runs fn against every Storage implementation.
func eachStore(t *testing.T, fn func(t *testing.T, s Storage)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, newSQLiteStore(t)) })
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
}

func seededLoan(t *testing.T, s Storage) *models.Loan {
	t.Helper()
	ctx := context.Background()
	_, err := SeedCustomers(ctx, s, DefaultCustomers)
	require.NoError(t, err)

	loan := &models.Loan{
		ID:           uuid.New(),
		CustomerID:   "cust_101",
		Principal:    decimal.RequireFromString("5000"),
		InterestRate: decimal.RequireFromString("5.5"),
		PeriodYears:  2,
		TotalAmount:  decimal.RequireFromString("5550.00"),
		MonthlyEMI:   decimal.RequireFromString("231.25"),
		Status:       models.LoanStatusActive,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, s.CreateLoan(ctx, loan))
	return loan
}

func TestStore_CreateAndGetLoan(t *testing.T) {
	eachStore(t, func(t *testing.T, s Storage) {
		ctx := context.Background()
		loan := seededLoan(t, s)

		fetched, err := s.GetLoan(ctx, loan.ID)
		require.NoError(t, err)
		assert.Equal(t, loan.CustomerID, fetched.CustomerID)
		assert.True(t, fetched.Principal.Equal(loan.Principal))
		assert.True(t, fetched.InterestRate.Equal(loan.InterestRate))
		assert.True(t, fetched.TotalAmount.Equal(loan.TotalAmount))
		assert.True(t, fetched.MonthlyEMI.Equal(loan.MonthlyEMI))
		assert.Equal(t, 2, fetched.PeriodYears)
		assert.Equal(t, models.LoanStatusActive, fetched.Status)
		assert.WithinDuration(t, loan.CreatedAt, fetched.CreatedAt, time.Millisecond)

		_, err = s.GetLoan(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_Customers(t *testing.T) {
	eachStore(t, func(t *testing.T, s Storage) {
		ctx := context.Background()

		added, err := SeedCustomers(ctx, s, DefaultCustomers)
		require.NoError(t, err)
		assert.Equal(t, 2, added)

		added, err = SeedCustomers(ctx, s, DefaultCustomers)
		require.NoError(t, err)
		assert.Equal(t, 0, added, "seeding twice must not duplicate customers")

		c, err := s.GetCustomer(ctx, "cust_102")
		require.NoError(t, err)
		assert.Equal(t, "Jane Smith", c.Name)

		_, err = s.GetCustomer(ctx, "cust_404")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_LoansForCustomer(t *testing.T) {
	eachStore(t, func(t *testing.T, s Storage) {
		ctx := context.Background()
		loan := seededLoan(t, s)

		loans, err := s.GetLoansForCustomer(ctx, "cust_101")
		require.NoError(t, err)
		require.Len(t, loans, 1)
		assert.Equal(t, loan.ID, loans[0].ID)

		loans, err = s.GetLoansForCustomer(ctx, "cust_102")
		require.NoError(t, err)
		assert.Empty(t, loans)

		all, err := s.GetAllLoans(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})
}

func TestStore_UpdateLoanStatus(t *testing.T) {
	eachStore(t, func(t *testing.T, s Storage) {
		ctx := context.Background()
		loan := seededLoan(t, s)

		require.NoError(t, s.UpdateLoanStatus(ctx, loan.ID, models.LoanStatusPaidOff))
		fetched, err := s.GetLoan(ctx, loan.ID)
		require.NoError(t, err)
		assert.Equal(t, models.LoanStatusPaidOff, fetched.Status)

		assert.ErrorIs(t, s.UpdateLoanStatus(ctx, uuid.New(), models.LoanStatusPaidOff), ErrNotFound)
	})
}

func TestStore_Payments(t *testing.T) {
	eachStore(t, func(t *testing.T, s Storage) {
		ctx := context.Background()
		loan := seededLoan(t, s)
		base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

		// Inserted out of order to check listing is by timestamp.
		amounts := map[int]string{2: "0.30", 0: "0.10", 1: "0.20"}
		for _, i := range []int{2, 0, 1} {
			require.NoError(t, s.CreatePayment(ctx, &models.Payment{
				ID:        uuid.New(),
				LoanID:    loan.ID,
				Amount:    decimal.RequireFromString(amounts[i]),
				Type:      models.PaymentTypeLumpSum,
				Timestamp: base.Add(time.Duration(i) * time.Minute),
			}))
		}

		payments, err := s.GetPaymentsForLoan(ctx, loan.ID)
		require.NoError(t, err)
		require.Len(t, payments, 3)
		for i, p := range payments {
			assert.Equal(t, amounts[i], p.Amount.StringFixed(2))
			assert.Equal(t, loan.ID, p.LoanID)
			assert.Equal(t, models.PaymentTypeLumpSum, p.Type)
		}

		sum, err := s.SumPaymentsForLoan(ctx, loan.ID)
		require.NoError(t, err)
		assert.True(t, sum.Equal(decimal.RequireFromString("0.6")), "sum should be exact, got %s", sum)

		empty, err := s.SumPaymentsForLoan(ctx, uuid.New())
		require.NoError(t, err)
		assert.True(t, empty.IsZero())
	})
}

func TestStore_WithinTxRollsBack(t *testing.T) {
	eachStore(t, func(t *testing.T, s Storage) {
		ctx := context.Background()
		loan := seededLoan(t, s)
		boom := errors.New("boom")

		err := s.WithinTx(ctx, func(tx Storage) error {
			require.NoError(t, tx.CreatePayment(ctx, &models.Payment{
				ID:        uuid.New(),
				LoanID:    loan.ID,
				Amount:    decimal.NewFromInt(100),
				Type:      models.PaymentTypeLumpSum,
				Timestamp: time.Now().UTC(),
			}))
			require.NoError(t, tx.UpdateLoanStatus(ctx, loan.ID, models.LoanStatusPaidOff))

			sum, err := tx.SumPaymentsForLoan(ctx, loan.ID)
			require.NoError(t, err)
			assert.True(t, sum.Equal(decimal.NewFromInt(100)), "tx should see its own writes")
			return boom
		})
		assert.ErrorIs(t, err, boom)

		sum, err := s.SumPaymentsForLoan(ctx, loan.ID)
		require.NoError(t, err)
		assert.True(t, sum.IsZero())

		fetched, err := s.GetLoan(ctx, loan.ID)
		require.NoError(t, err)
		assert.Equal(t, models.LoanStatusActive, fetched.Status)
	})
}

func TestStore_WithinTxCommits(t *testing.T) {
	eachStore(t, func(t *testing.T, s Storage) {
		ctx := context.Background()
		loan := seededLoan(t, s)

		err := s.WithinTx(ctx, func(tx Storage) error {
			if err := tx.CreatePayment(ctx, &models.Payment{
				ID:        uuid.New(),
				LoanID:    loan.ID,
				Amount:    decimal.RequireFromString("5550.00"),
				Type:      models.PaymentTypeLumpSum,
				Timestamp: time.Now().UTC(),
			}); err != nil {
				return err
			}
			return tx.UpdateLoanStatus(ctx, loan.ID, models.LoanStatusPaidOff)
		})
		require.NoError(t, err)

		fetched, err := s.GetLoan(ctx, loan.ID)
		require.NoError(t, err)
		assert.Equal(t, models.LoanStatusPaidOff, fetched.Status)

		payments, err := s.GetPaymentsForLoan(ctx, loan.ID)
		require.NoError(t, err)
		assert.Len(t, payments, 1)
	})
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	loan := seededLoan(t, s)
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	fetched, err := s.GetLoan(context.Background(), loan.ID)
	require.NoError(t, err)
	assert.True(t, fetched.TotalAmount.Equal(loan.TotalAmount))
}

func TestSQLiteStore_ForeignKeys(t *testing.T) {
	s := newSQLiteStore(t)

	err := s.CreatePayment(context.Background(), &models.Payment{
		ID:        uuid.New(),
		LoanID:    uuid.New(),
		Amount:    decimal.NewFromInt(1),
		Type:      models.PaymentTypeLumpSum,
		Timestamp: time.Now().UTC(),
	})
	assert.Error(t, err, "payments must reference an existing loan")
}

func TestDSN(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		prefix  string
		want    map[string]string
		dropped []string
	}{
		{
			name:   "plain path",
			path:   "ledger.db",
			prefix: "file:ledger.db?",
			want:   map[string]string{"_foreign_keys": "on", "_txlock": "immediate", "_journal_mode": "WAL", "_busy_timeout": "5000"},
		},
		{
			name:    "caller parameters kept, required pragmas enforced",
			path:    "ledger.db?cache=shared&_txlock=deferred&_fk=off&_timeout=100",
			prefix:  "file:ledger.db?",
			want:    map[string]string{"cache": "shared", "_foreign_keys": "on", "_txlock": "immediate", "_journal_mode": "WAL", "_busy_timeout": "100"},
			dropped: []string{"_fk", "_timeout"},
		},
		{
			name:   "file URI",
			path:   "file:ledger.db?mode=rwc",
			prefix: "file:ledger.db?",
			want:   map[string]string{"mode": "rwc", "_foreign_keys": "on", "_txlock": "immediate"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := dsn(tt.path)
			require.NoError(t, err)
			require.True(t, strings.HasPrefix(got, tt.prefix), got)

			params, err := url.ParseQuery(strings.TrimPrefix(got, tt.prefix))
			require.NoError(t, err)
			for k, v := range tt.want {
				assert.Equal(t, v, params.Get(k), k)
			}
			for _, k := range tt.dropped {
				assert.False(t, params.Has(k), k)
			}
		})
	}

	_, err := dsn("ledger.db?%zz")
	assert.Error(t, err)
}

func TestSQLiteStore_PathWithParametersKeepsForeignKeys(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "params.db") + "?cache=private&_fk=off")
	require.NoError(t, err)
	defer s.Close()

	err = s.CreatePayment(context.Background(), &models.Payment{
		ID:        uuid.New(),
		LoanID:    uuid.New(),
		Amount:    decimal.NewFromInt(1),
		Type:      models.PaymentTypeLumpSum,
		Timestamp: time.Now().UTC(),
	})
	assert.Error(t, err, "foreign keys stay on whatever the path says")
}
