package events

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated    = "OrderCreated"
	EventOrderPaid       = "OrderPaid"
	EventOrderCancelled  = "OrderCancelled"
	EventOrderRefunded   = "OrderRefunded"
	EventShipmentUpdated = "ShipmentUpdated"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type ItemLine struct {
	ProductID  string `json:"product_id"`
	Qty        int    `json:"qty"`
	PriceCents int64  `json:"price_cents"`
}

type OrderCreatedPayload struct {
	OrderID       string     `json:"order_id"`
	ExternalID    string     `json:"external_id"`
	UserID        string     `json:"user_id"`
	Items         []ItemLine `json:"items"`
	SubtotalCents int64      `json:"subtotal_cents"`
	DiscountCents int64      `json:"discount_cents"`
	TotalCents    int64      `json:"total_cents"`
	PromoCode     string     `json:"promo_code,omitempty"`
}

type OrderPaidPayload struct {
	OrderID        string `json:"order_id"`
	UserID         string `json:"user_id"`
	PaymentRef     string `json:"payment_ref"`
	TotalCents     int64  `json:"total_cents"`
	PointsAccrued  int64  `json:"points_accrued"`
	TrackingNumber string `json:"tracking_number"`
}

type OrderCancelledPayload struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

type OrderRefundedPayload struct {
	OrderID    string `json:"order_id"`
	TotalCents int64  `json:"total_cents"`
}

// ShipmentUpdatePayload is both emitted on outbound tracking changes and
// consumed from the delivery provider's inbound topic.
type ShipmentUpdatePayload struct {
	OrderID        string `json:"order_id,omitempty"`
	TrackingNumber string `json:"tracking_number"`
	Status         string `json:"status"`
}
