package ledger

import (
	"math"
	"testing"

	"github.com/mcclellann/lendingLedger/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEMIsLeft(t *testing.T) {
	emi := dec("100")
	tests := []struct {
		name    string
		status  models.LoanStatus
		balance string
		want    int64
	}{
		{"exact multiple", models.LoanStatusActive, "700", 7},
		{"partial installment rounds up", models.LoanStatusActive, "700.01", 8},
		{"less than one installment", models.LoanStatusActive, "0.01", 1},
		{"zero balance while active", models.LoanStatusActive, "0", 0},
		{"negative balance while active is clamped", models.LoanStatusActive, "-50", 0},
		{"paid off", models.LoanStatusPaidOff, "700", 0},
		{"count beyond int64 saturates", models.LoanStatusActive, "1e30", math.MaxInt64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EMIsLeft(tt.status, dec(tt.balance), emi))
		})
	}
}

func TestComputeLedger(t *testing.T) {
	loan := &models.Loan{TotalAmount: dec("1344"), MonthlyEMI: dec("112"), Status: models.LoanStatusActive}

	view := ComputeLedger(loan, nil)
	assert.True(t, view.AmountPaid.IsZero())
	assert.Equal(t, "1344.00", view.Balance.StringFixed(2))
	assert.Equal(t, int64(12), view.EMIsLeft)

	// 0.1 added ten times stays exact.
	var payments []*models.Payment
	for i := 0; i < 10; i++ {
		payments = append(payments, &models.Payment{Amount: dec("0.1")})
	}
	view = ComputeLedger(loan, payments)
	assert.True(t, view.AmountPaid.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, "1343.00", view.Balance.StringFixed(2))
	assert.Equal(t, int64(12), view.EMIsLeft)
}

func TestSettle(t *testing.T) {
	loan := &models.Loan{TotalAmount: dec("1000"), MonthlyEMI: dec("100"), Status: models.LoanStatusActive}

	remaining, status, err := settle(loan, dec("300"), dec("700"))
	require.NoError(t, err)
	assert.True(t, remaining.IsZero())
	assert.Equal(t, models.LoanStatusPaidOff, status)

	remaining, status, err = settle(loan, dec("300"), dec("200"))
	require.NoError(t, err)
	assert.Equal(t, "500.00", remaining.StringFixed(2))
	assert.Equal(t, models.LoanStatusActive, status)

	_, _, err = settle(loan, dec("300"), dec("800"))
	assert.ErrorIs(t, err, ErrValidation)

	paidOff := *loan
	paidOff.Status = models.LoanStatusPaidOff
	_, _, err = settle(&paidOff, dec("1000"), dec("1"))
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestValidatePaymentAmount(t *testing.T) {
	for _, amount := range []string{"0.01", "100", "100.50", "100.500", "9999999999999.99"} {
		assert.NoError(t, validatePaymentAmount(dec(amount)), amount)
	}
	for _, amount := range []string{"0", "-1", "0.001", "10000000000000", "1e50000000", "1e-50000000", "1.0000000000000000001"} {
		assert.ErrorIs(t, validatePaymentAmount(dec(amount)), ErrValidation, amount)
	}
}
