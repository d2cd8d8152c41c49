package orders

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/safarshop/fulfillment/internal/events"
	"github.com/safarshop/fulfillment/internal/inventory"
	"github.com/safarshop/fulfillment/internal/promo"
	"github.com/safarshop/fulfillment/internal/shipping"
)

// PriceFunc prices a subtotal, optionally against a promo code. Invoked
// mid-checkout so the resulting discount lands in the same transaction as the
// order rows.
type PriceFunc func(ctx context.Context, subtotalCents int64, code string) (promo.Pricing, error)

type CheckoutInput struct {
	ExternalID        string
	UserID            string
	Lines             []inventory.Line
	PromoCode         string
	DeliveryAddress   string
	DeliveryPhone     string
	DeliveryCostCents int64
	ReservationTTL    time.Duration
}

type ConfirmResult struct {
	Order          Order
	AlreadyPaid    bool
	PointsAccrued  int64
	TrackingNumber string
}

// Store is the atomic persistence behind the ledger: every method is
// all-or-nothing.
type Store interface {
	Checkout(ctx context.Context, in CheckoutInput, price PriceFunc) (Order, bool, error)
	ConfirmPayment(ctx context.Context, orderID, paymentRef string) (ConfirmResult, error)
	Cancel(ctx context.Context, orderID, reason string) (Order, error)
	Refund(ctx context.Context, orderID string) (Order, error)
	Advance(ctx context.Context, orderID string, to Status) (Order, error)
	Get(ctx context.Context, orderID string) (Order, error)
}

type Pricer interface {
	Price(ctx context.Context, subtotalCents int64, code string) (promo.Pricing, error)
}

// Emitter publishes domain events; see events.Bus.
type Emitter interface {
	Emit(topic, eventType, orderID string, payload any)
}

// Ledger drives the cart -> order -> payment -> fulfillment state machine.
type Ledger struct {
	Store  Store
	Pricer Pricer
	Events Emitter

	ReservationTTL    time.Duration
	DeliveryCostCents int64
}

type CheckoutRequest struct {
	ExternalID      string
	UserID          string
	Items           []CartLine
	PromoCode       string
	DeliveryAddress string
	DeliveryPhone   string
}

const txAttempts = 3

// Checkout turns a cart snapshot into a priced, stock-reserved pending order.
// Replays by external id return the existing order without new side effects.
func (s *Ledger) Checkout(ctx context.Context, req CheckoutRequest) (Order, bool, error) {
	if req.ExternalID == "" || req.UserID == "" {
		return Order{}, false, ValidationError("external_id and user_id are required")
	}
	lines, err := NormalizeLines(req.Items)
	if err != nil {
		return Order{}, false, err
	}
	in := CheckoutInput{
		ExternalID:        req.ExternalID,
		UserID:            req.UserID,
		Lines:             lines,
		PromoCode:         req.PromoCode,
		DeliveryAddress:   req.DeliveryAddress,
		DeliveryPhone:     req.DeliveryPhone,
		DeliveryCostCents: s.DeliveryCostCents,
		ReservationTTL:    s.ReservationTTL,
	}

	var (
		ord     Order
		existed bool
	)
	err = retryTransient(ctx, txAttempts, func() error {
		ord, existed, err = s.Store.Checkout(ctx, in, s.Pricer.Price)
		return err
	})
	if err != nil {
		return Order{}, false, err
	}
	if !existed {
		items := make([]events.ItemLine, 0, len(ord.Items))
		for _, it := range ord.Items {
			items = append(items, events.ItemLine{ProductID: it.ProductID, Qty: it.Qty, PriceCents: it.PriceCents})
		}
		s.Events.Emit(events.TopicOrderCreated, events.EventOrderCreated, ord.ID, events.OrderCreatedPayload{
			OrderID:       ord.ID,
			ExternalID:    ord.ExternalID,
			UserID:        ord.UserID,
			Items:         items,
			SubtotalCents: ord.SubtotalCents,
			DiscountCents: ord.PromoDiscountCents,
			TotalCents:    ord.TotalCents,
			PromoCode:     req.PromoCode,
		})
	}
	return ord, existed, nil
}

// ConfirmPayment commits reservations, credits loyalty, opens the shipment
// and marks the order paid, all in one transaction. A second confirmation for
// an already-paid order is a no-op so duplicate provider callbacks are safe.
func (s *Ledger) ConfirmPayment(ctx context.Context, orderID, paymentRef string) (ConfirmResult, error) {
	if orderID == "" || paymentRef == "" {
		return ConfirmResult{}, ValidationError("order_id and payment_ref are required")
	}
	var res ConfirmResult
	err := retryTransient(ctx, txAttempts, func() error {
		var err error
		res, err = s.Store.ConfirmPayment(ctx, orderID, paymentRef)
		return err
	})
	if err != nil {
		var ite *InvalidTransitionError
		if errors.As(err, &ite) {
			log.Printf("severe: payment confirmation for order %s: %v", orderID, err)
		}
		return ConfirmResult{}, err
	}
	if !res.AlreadyPaid {
		s.Events.Emit(events.TopicOrderPaid, events.EventOrderPaid, orderID, events.OrderPaidPayload{
			OrderID:        orderID,
			UserID:         res.Order.UserID,
			PaymentRef:     paymentRef,
			TotalCents:     res.Order.TotalCents,
			PointsAccrued:  res.PointsAccrued,
			TrackingNumber: res.TrackingNumber,
		})
	}
	return res, nil
}

// Cancel releases the order's reservations and marks it cancelled. Only legal
// from pending. The promo use, if any, stays consumed.
func (s *Ledger) Cancel(ctx context.Context, orderID, reason string) error {
	err := retryTransient(ctx, txAttempts, func() error {
		_, err := s.Store.Cancel(ctx, orderID, reason)
		return err
	})
	if err != nil {
		return err
	}
	s.Events.Emit(events.TopicOrderCancelled, events.EventOrderCancelled, orderID, events.OrderCancelledPayload{
		OrderID: orderID,
		Reason:  reason,
	})
	return nil
}

// Refund reverses a paid order: stock returns to inventory via refund
// movements and the order moves to refunded.
func (s *Ledger) Refund(ctx context.Context, orderID string) error {
	var ord Order
	err := retryTransient(ctx, txAttempts, func() error {
		var err error
		ord, err = s.Store.Refund(ctx, orderID)
		return err
	})
	if err != nil {
		return err
	}
	s.Events.Emit(events.TopicOrderRefunded, events.EventOrderRefunded, orderID, events.OrderRefundedPayload{
		OrderID:    orderID,
		TotalCents: ord.TotalCents,
	})
	return nil
}

// ApplyShipmentStatus advances the order when the shipment does. Repeated
// updates for a status the order already reflects are ignored.
func (s *Ledger) ApplyShipmentStatus(ctx context.Context, orderID string, st shipping.Status) error {
	var to Status
	switch st {
	case shipping.StatusInTransit:
		to = StatusShipped
	case shipping.StatusDelivered:
		to = StatusDelivered
	default:
		return nil // picked/failed do not move the order
	}
	ord, err := s.Store.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if ord.Status == to {
		return nil
	}
	if _, err := s.Store.Advance(ctx, orderID, to); err != nil {
		return err
	}
	return nil
}

func (s *Ledger) Get(ctx context.Context, orderID string) (Order, error) {
	return s.Store.Get(ctx, orderID)
}

func retryTransient(ctx context.Context, attempts int, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !IsTransient(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i+1) * 50 * time.Millisecond):
		}
	}
	return err
}
