package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mcclellann/lendingLedger/pkg/models"
)

// DefaultCustomers are the customers available on a fresh database.
var DefaultCustomers = []models.Customer{
	{ID: "cust_101", Name: "John Doe"},
	{ID: "cust_102", Name: "Jane Smith"},
}

// SeedCustomers inserts every customer that does not exist yet and reports how many were added.
func SeedCustomers(ctx context.Context, s Storage, customers []models.Customer) (int, error) {
	added := 0
	err := s.WithinTx(ctx, func(tx Storage) error {
		for _, c := range customers {
			_, err := tx.GetCustomer(ctx, c.ID)
			if err == nil {
				continue
			}
			if !errors.Is(err, ErrNotFound) {
				return err
			}

			customer := c
			if customer.CreatedAt.IsZero() {
				customer.CreatedAt = time.Now().UTC()
			}
			if err := tx.CreateCustomer(ctx, &customer); err != nil {
				return err
			}
			added++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to seed customers: %w", err)
	}
	return added, nil
}
