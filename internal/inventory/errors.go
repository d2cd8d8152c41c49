package inventory

import (
	"errors"
	"fmt"
	"strings"
)

// Shortage reports one product line that could not be reserved.
type Shortage struct {
	ProductID string
	Requested int
	Available int
}

// InsufficientStockError aggregates every short line of a reserve attempt so
// the caller can show the whole picture, not just the first failure.
type InsufficientStockError struct {
	Shortages []Shortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		parts = append(parts, fmt.Sprintf("product %s requested %d available %d", s.ProductID, s.Requested, s.Available))
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}

// ErrReservationExpired means the hold lapsed before payment arrived; the
// order can no longer be confirmed and checkout must be retried.
var ErrReservationExpired = errors.New("stock reservation expired")

var ErrProductNotFound = errors.New("product not found")
