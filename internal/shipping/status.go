package shipping

import "fmt"

type Status string

const (
	StatusCreated   Status = "created"
	StatusPicked    Status = "picked"
	StatusInTransit Status = "in_transit"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

// Forward-only; failed is reachable from any non-terminal state.
var validNext = map[Status]map[Status]bool{
	StatusCreated:   {StatusPicked: true, StatusFailed: true},
	StatusPicked:    {StatusInTransit: true, StatusFailed: true},
	StatusInTransit: {StatusDelivered: true, StatusFailed: true},
	StatusDelivered: {},
	StatusFailed:    {},
}

func CanAdvance(from, to Status) bool {
	return validNext[from][to]
}

// InvalidTransitionError marks an out-of-order or terminal-state mutation; an
// integration bug, not a business condition.
type InvalidTransitionError struct {
	TrackingNumber string
	From, To       Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid shipment transition %s -> %s for %s", e.From, e.To, e.TrackingNumber)
}
