package orders

import (
	"fmt"
	"sort"
	"time"

	"github.com/safarshop/fulfillment/internal/inventory"
)

type Order struct {
	ID                 string
	ExternalID         string
	UserID             string
	Status             Status
	PaymentStatus      PaymentStatus
	PaymentRef         string
	SubtotalCents      int64
	PromoDiscountCents int64
	DeliveryCostCents  int64
	TotalCents         int64
	DeliveryAddress    string
	DeliveryPhone      string
	Items              []Item
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Item captures price at purchase time; it is never recomputed from the
// current product price.
type Item struct {
	ProductID  string
	Qty        int
	PriceCents int64
}

// CartLine is one (product, quantity) entry of the cart snapshot handed over
// by the cart service.
type CartLine struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

// ValidationError rejects bad input before any side effect.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

// NormalizeLines merges duplicate product lines, rejects non-positive
// quantities, and returns the lines in product-id order.
func NormalizeLines(items []CartLine) ([]inventory.Line, error) {
	if len(items) == 0 {
		return nil, ValidationError("cart snapshot is empty")
	}
	merged := map[string]int{}
	for _, it := range items {
		if it.ProductID == "" {
			return nil, ValidationError("cart line missing product id")
		}
		if it.Qty < 1 {
			return nil, ValidationError(fmt.Sprintf("invalid quantity %d for product %s", it.Qty, it.ProductID))
		}
		merged[it.ProductID] += it.Qty
	}
	out := make([]inventory.Line, 0, len(merged))
	for pid, qty := range merged {
		out = append(out, inventory.Line{ProductID: pid, Qty: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}
