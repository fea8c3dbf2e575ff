package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/mcclellann/lendingLedger/pkg/models"
	"github.com/shopspring/decimal"
)

type memData struct {
	customers map[string]models.Customer
	loans     map[uuid.UUID]models.Loan
	loanOrder []uuid.UUID
	payments  []models.Payment
}

func (d *memData) clone() *memData {
	c := &memData{
		customers: make(map[string]models.Customer, len(d.customers)),
		loans:     make(map[uuid.UUID]models.Loan, len(d.loans)),
		loanOrder: append([]uuid.UUID(nil), d.loanOrder...),
		payments:  append([]models.Payment(nil), d.payments...),
	}
	for k, v := range d.customers {
		c.customers[k] = v
	}
	for k, v := range d.loans {
		c.loans[k] = v
	}
	return c
}

// MemoryStore keeps everything in process memory. It backs tests and
// throwaway local runs when no database path is configured.
//
// Writers are serialized by writeMu; a transaction works on a private copy
// of the data that replaces the shared copy on commit.
type MemoryStore struct {
	writeMu sync.Mutex
	mu      sync.RWMutex
	data    *memData
	inTx    bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: &memData{
			customers: make(map[string]models.Customer),
			loans:     make(map[uuid.UUID]models.Loan),
		},
	}
}

func (m *MemoryStore) write(fn func(d *memData) error) error {
	if !m.inTx {
		m.writeMu.Lock()
		defer m.writeMu.Unlock()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.data)
}

func (m *MemoryStore) WithinTx(ctx context.Context, fn func(tx Storage) error) error {
	if m.inTx {
		return fn(m)
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mu.RLock()
	tx := &MemoryStore{data: m.data.clone(), inTx: true}
	m.mu.RUnlock()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	m.mu.Lock()
	m.data = tx.data
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) CreateCustomer(_ context.Context, customer *models.Customer) error {
	return m.write(func(d *memData) error {
		if _, ok := d.customers[customer.ID]; ok {
			return fmt.Errorf("failed to create customer: %s already exists", customer.ID)
		}
		d.customers[customer.ID] = *customer
		return nil
	})
}

func (m *MemoryStore) GetCustomer(_ context.Context, id string) (*models.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.data.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *MemoryStore) CreateLoan(_ context.Context, loan *models.Loan) error {
	return m.write(func(d *memData) error {
		if _, ok := d.customers[loan.CustomerID]; !ok {
			return fmt.Errorf("failed to create loan: unknown customer %s", loan.CustomerID)
		}
		if _, ok := d.loans[loan.ID]; ok {
			return fmt.Errorf("failed to create loan: %s already exists", loan.ID)
		}
		d.loans[loan.ID] = *loan
		d.loanOrder = append(d.loanOrder, loan.ID)
		return nil
	})
}

func (m *MemoryStore) GetLoan(_ context.Context, id uuid.UUID) (*models.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loan, ok := m.data.loans[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &loan, nil
}

func (m *MemoryStore) GetAllLoans(_ context.Context) ([]*models.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loans := make([]*models.Loan, 0, len(m.data.loanOrder))
	for _, id := range m.data.loanOrder {
		loan := m.data.loans[id]
		loans = append(loans, &loan)
	}
	return loans, nil
}

func (m *MemoryStore) GetLoansForCustomer(_ context.Context, customerID string) ([]*models.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loans := []*models.Loan{}
	for _, id := range m.data.loanOrder {
		loan := m.data.loans[id]
		if loan.CustomerID == customerID {
			loans = append(loans, &loan)
		}
	}
	return loans, nil
}

func (m *MemoryStore) UpdateLoanStatus(_ context.Context, id uuid.UUID, status models.LoanStatus) error {
	return m.write(func(d *memData) error {
		loan, ok := d.loans[id]
		if !ok {
			return ErrNotFound
		}
		loan.Status = status
		d.loans[id] = loan
		return nil
	})
}

func (m *MemoryStore) CreatePayment(_ context.Context, payment *models.Payment) error {
	return m.write(func(d *memData) error {
		if _, ok := d.loans[payment.LoanID]; !ok {
			return fmt.Errorf("failed to create payment: unknown loan %s", payment.LoanID)
		}
		d.payments = append(d.payments, *payment)
		return nil
	})
}

func (m *MemoryStore) GetPaymentsForLoan(_ context.Context, loanID uuid.UUID) ([]*models.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	payments := []*models.Payment{}
	for _, p := range m.data.payments {
		if p.LoanID == loanID {
			payment := p
			payments = append(payments, &payment)
		}
	}
	sort.SliceStable(payments, func(i, j int) bool {
		return payments[i].Timestamp.Before(payments[j].Timestamp)
	})
	return payments, nil
}

func (m *MemoryStore) SumPaymentsForLoan(_ context.Context, loanID uuid.UUID) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := decimal.Zero
	for _, p := range m.data.payments {
		if p.LoanID == loanID {
			total = total.Add(p.Amount)
		}
	}
	return total, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
