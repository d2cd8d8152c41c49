package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusPending, StatusPaid},
		{StatusPending, StatusCancelled},
		{StatusPaid, StatusShipped},
		{StatusPaid, StatusRefunded},
		{StatusShipped, StatusDelivered},
	}
	for _, tc := range allowed {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}

	rejected := []struct{ from, to Status }{
		{StatusPending, StatusShipped},   // must pay first
		{StatusPending, StatusRefunded},  // nothing to refund
		{StatusPaid, StatusCancelled},    // paid orders are refunded, not cancelled
		{StatusPaid, StatusDelivered},    // must ship first
		{StatusShipped, StatusPaid},      // backwards
		{StatusDelivered, StatusShipped}, // terminal
		{StatusCancelled, StatusPaid},    // terminal
		{StatusRefunded, StatusPending},  // terminal
	}
	for _, tc := range rejected {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}
