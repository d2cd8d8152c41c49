package redisx

import "time"

const (
	// Idempotent checkout: idem:checkout:{external_id} -> order_id
	KeyIdemCheckout = "idem:checkout:%s"

	// Cached order status: order_status:{order_id} -> {"status":"...","payment_status":"..."}
	KeyOrderStatus = "order_status:%s"

	// Payment callback dedup fast path: dedup:payment:{payment_ref}.
	// The order row is the source of truth; this only short-circuits retries.
	KeyDedupPayment = "dedup:payment:%s"

	// Shipment event dedup: dedup:shipment:{event_id}
	KeyDedupShipment = "dedup:shipment:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
