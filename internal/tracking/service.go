// Package tracking consumes delivery-provider tracking updates and applies
// them to shipments and their orders.
package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/safarshop/fulfillment/internal/events"
	kafkax "github.com/safarshop/fulfillment/internal/kafka"
	"github.com/safarshop/fulfillment/internal/orders"
	"github.com/safarshop/fulfillment/internal/redisx"
	"github.com/safarshop/fulfillment/internal/shipping"
)

// Advancer moves a shipment forward by tracking number; shipping.Tracker is
// the pgx implementation.
type Advancer interface {
	Advance(ctx context.Context, trackingNumber string, next shipping.Status) (shipping.Shipment, error)
}

// Applier reflects a shipment status onto its order; orders.Ledger is the
// implementation.
type Applier interface {
	ApplyShipmentStatus(ctx context.Context, orderID string, st shipping.Status) error
}

type Service struct {
	Tracker Advancer
	Orders  Applier
	Redis   *redis.Client
	Events  orders.Emitter
}

// HandleUpdate is wired as the consumer handler for the inbound tracking
// topic. Returning nil commits the offset, so malformed or stale events are
// logged and dropped rather than redelivered forever.
func (s *Service) HandleUpdate(ctx context.Context, m kafkago.Message) error {
	var env events.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		log.Printf("tracking: bad envelope: %v", err)
		return nil
	}
	if env.EventType != events.EventShipmentUpdated {
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedupShipment, env.EventID)
	if exists, _ := redisx.Exists(ctx, s.Redis, dkey); exists {
		return nil
	}

	p, err := kafkax.UnwrapPayload[events.ShipmentUpdatePayload](env.Payload)
	if err != nil {
		log.Printf("tracking: %v", err)
		return nil
	}

	shp, err := s.Tracker.Advance(ctx, p.TrackingNumber, shipping.Status(p.Status))
	var ite *shipping.InvalidTransitionError
	switch {
	case errors.Is(err, shipping.ErrShipmentNotFound):
		log.Printf("tracking: unknown shipment %s", p.TrackingNumber)
		return nil
	case errors.As(err, &ite):
		log.Printf("severe: %v", err)
		return nil
	case err != nil:
		return err // transient, retry via redelivery
	}

	if err := s.Orders.ApplyShipmentStatus(ctx, shp.OrderID, shp.Status); err != nil {
		// An order that cannot take the transition never will; committing
		// keeps the message from poisoning the partition.
		var oite *orders.InvalidTransitionError
		if errors.As(err, &oite) {
			log.Printf("severe: %v", err)
			return nil
		}
		return err
	}

	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	s.Events.Emit(events.TopicShipmentUpdated, events.EventShipmentUpdated, shp.OrderID, events.ShipmentUpdatePayload{
		OrderID:        shp.OrderID,
		TrackingNumber: shp.TrackingNumber,
		Status:         string(shp.Status),
	})
	return nil
}
