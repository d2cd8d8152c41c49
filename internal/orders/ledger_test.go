package orders

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safarshop/fulfillment/internal/events"
	"github.com/safarshop/fulfillment/internal/inventory"
	"github.com/safarshop/fulfillment/internal/loyalty"
	"github.com/safarshop/fulfillment/internal/promo"
	"github.com/safarshop/fulfillment/internal/shipping"
)

// memStore mirrors the pgx Store's semantics in memory: one mutex plays the
// role of the row locks, so checkout's check-and-reserve is atomic exactly
// like the SQL implementation.
type memStore struct {
	mu        sync.Mutex
	prices    map[string]int64
	stock     map[string]int
	reserved  map[string]map[string]int // order id -> product -> qty
	expiry    map[string]time.Time      // order id -> hold expiry
	orders    map[string]*Order
	byExt     map[string]string
	saleMoves int // committed sale movement rows
	credits   map[string]int64
	creditOps int
	promoMax  int64
	promoUses atomic.Int64
	trackSeq  int
}

func newMemStore() *memStore {
	return &memStore{
		prices:   map[string]int64{},
		stock:    map[string]int{},
		reserved: map[string]map[string]int{},
		expiry:   map[string]time.Time{},
		orders:   map[string]*Order{},
		byExt:    map[string]string{},
		credits:  map[string]int64{},
	}
}

var _ inventory.Source = (*memStore)(nil)

// SweepExpired mirrors the SQL sweep: lapsed holds vanish, stock and the
// movement record stay untouched.
func (s *memStore) SweepExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, exp := range s.expiry {
		if exp.Before(now) {
			n += len(s.reserved[id])
			delete(s.reserved, id)
			delete(s.expiry, id)
		}
	}
	return n, nil
}

func (s *memStore) reservedFor(productID string) int {
	n := 0
	for _, m := range s.reserved {
		n += m[productID]
	}
	return n
}

func (s *memStore) Checkout(ctx context.Context, in CheckoutInput, price PriceFunc) (Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byExt[in.ExternalID]; ok {
		return *s.orders[id], true, nil
	}

	var subtotal int64
	items := make([]Item, 0, len(in.Lines))
	for _, ln := range in.Lines {
		p, ok := s.prices[ln.ProductID]
		if !ok {
			return Order{}, false, inventory.ErrProductNotFound
		}
		subtotal += p * int64(ln.Qty)
		items = append(items, Item{ProductID: ln.ProductID, Qty: ln.Qty, PriceCents: p})
	}

	pricing, err := price(ctx, subtotal, in.PromoCode)
	if err != nil {
		return Order{}, false, err
	}
	// Authoritative usage check, the analog of RedeemTx under the promo lock.
	if pricing.Promo != nil && s.promoMax > 0 && s.promoUses.Load() >= s.promoMax {
		return Order{}, false, promo.ErrPromoExhausted
	}

	var shorts []inventory.Shortage
	for _, ln := range in.Lines {
		avail := s.stock[ln.ProductID] - s.reservedFor(ln.ProductID)
		if ln.Qty > avail {
			shorts = append(shorts, inventory.Shortage{ProductID: ln.ProductID, Requested: ln.Qty, Available: avail})
		}
	}
	if len(shorts) > 0 {
		return Order{}, false, &inventory.InsufficientStockError{Shortages: shorts}
	}

	if pricing.Promo != nil {
		s.promoUses.Add(1)
	}
	ord := &Order{
		ID:                 fmt.Sprintf("ord-%d", len(s.orders)+1),
		ExternalID:         in.ExternalID,
		UserID:             in.UserID,
		Status:             StatusPending,
		PaymentStatus:      PaymentPending,
		SubtotalCents:      pricing.SubtotalCents,
		PromoDiscountCents: pricing.DiscountCents,
		DeliveryCostCents:  in.DeliveryCostCents,
		TotalCents:         pricing.TotalCents + in.DeliveryCostCents,
		Items:              items,
	}
	hold := map[string]int{}
	for _, ln := range in.Lines {
		hold[ln.ProductID] = ln.Qty
	}
	s.reserved[ord.ID] = hold
	s.expiry[ord.ID] = time.Now().Add(in.ReservationTTL)
	s.orders[ord.ID] = ord
	s.byExt[in.ExternalID] = ord.ID
	return *ord, false, nil
}

func (s *memStore) ConfirmPayment(ctx context.Context, orderID, paymentRef string) (ConfirmResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ord, ok := s.orders[orderID]
	if !ok {
		return ConfirmResult{}, ErrOrderNotFound
	}
	if ord.Status == StatusPaid {
		return ConfirmResult{Order: *ord, AlreadyPaid: true}, nil
	}
	if ord.Status != StatusPending {
		return ConfirmResult{}, &InvalidTransitionError{OrderID: orderID, From: ord.Status, To: StatusPaid}
	}
	hold := s.reserved[orderID]
	if len(hold) != len(ord.Items) {
		return ConfirmResult{}, inventory.ErrReservationExpired
	}
	for pid, qty := range hold {
		s.stock[pid] -= qty
		s.saleMoves++
	}
	delete(s.reserved, orderID)
	delete(s.expiry, orderID)

	points := loyalty.PointsFor(ord.TotalCents, 1)
	s.credits[ord.UserID] += points
	s.creditOps++

	ord.Status = StatusPaid
	ord.PaymentStatus = PaymentPaid
	ord.PaymentRef = paymentRef
	s.trackSeq++
	return ConfirmResult{
		Order:          *ord,
		PointsAccrued:  points,
		TrackingNumber: fmt.Sprintf("TRK-%04d", s.trackSeq),
	}, nil
}

func (s *memStore) Cancel(ctx context.Context, orderID, reason string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ord, ok := s.orders[orderID]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	if ord.Status != StatusPending {
		return Order{}, &InvalidTransitionError{OrderID: orderID, From: ord.Status, To: StatusCancelled}
	}
	delete(s.reserved, orderID)
	delete(s.expiry, orderID)
	ord.Status = StatusCancelled
	return *ord, nil
}

func (s *memStore) Refund(ctx context.Context, orderID string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ord, ok := s.orders[orderID]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	if ord.Status != StatusPaid {
		return Order{}, &InvalidTransitionError{OrderID: orderID, From: ord.Status, To: StatusRefunded}
	}
	for _, it := range ord.Items {
		s.stock[it.ProductID] += it.Qty
	}
	ord.Status = StatusRefunded
	ord.PaymentStatus = PaymentRefunded
	return *ord, nil
}

func (s *memStore) Advance(ctx context.Context, orderID string, to Status) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ord, ok := s.orders[orderID]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	if !CanTransition(ord.Status, to) {
		return Order{}, &InvalidTransitionError{OrderID: orderID, From: ord.Status, To: to}
	}
	ord.Status = to
	return *ord, nil
}

func (s *memStore) Get(ctx context.Context, orderID string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ord, ok := s.orders[orderID]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return *ord, nil
}

type stubPromos struct {
	codes map[string]promo.Code
	store *memStore
}

func (s *stubPromos) GetCode(_ context.Context, code string) (promo.Code, error) {
	c, ok := s.codes[code]
	if !ok {
		return promo.Code{}, promo.ErrPromoNotFound
	}
	return c, nil
}

func (s *stubPromos) CountUses(_ context.Context, _ string) (int, error) {
	return int(s.store.promoUses.Load()), nil
}

type fakeEmitter struct {
	mu     sync.Mutex
	topics []string
}

func (e *fakeEmitter) Emit(topic, eventType, orderID string, payload any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.topics = append(e.topics, topic)
}

func (e *fakeEmitter) count(topic string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, t := range e.topics {
		if t == topic {
			n++
		}
	}
	return n
}

func newTestLedger(store *memStore, codes map[string]promo.Code) (*Ledger, *fakeEmitter) {
	em := &fakeEmitter{}
	return &Ledger{
		Store:          store,
		Pricer:         &promo.Engine{Store: &stubPromos{codes: codes, store: store}},
		Events:         em,
		ReservationTTL: 10 * time.Minute,
	}, em
}

func checkoutReq(extID string, qty int) CheckoutRequest {
	return CheckoutRequest{
		ExternalID: extID,
		UserID:     "user-1",
		Items:      []CartLine{{ProductID: "p1", Qty: qty}},
	}
}

func TestCheckout(t *testing.T) {
	store := newMemStore()
	store.prices["p1"] = 10000
	store.stock["p1"] = 10
	ledger, em := newTestLedger(store, nil)
	ctx := context.Background()

	ord, existed, err := ledger.Checkout(ctx, checkoutReq("ext-1", 2))
	require.NoError(t, err)
	assert.False(t, existed)
	assert.Equal(t, StatusPending, ord.Status)
	assert.Equal(t, int64(20000), ord.TotalCents)
	assert.Equal(t, 2, store.reservedFor("p1"))
	assert.Equal(t, 1, em.count(events.TopicOrderCreated))

	// Replay by external id: same order back, no new side effects.
	again, existed, err := ledger.Checkout(ctx, checkoutReq("ext-1", 2))
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, ord.ID, again.ID)
	assert.Equal(t, 2, store.reservedFor("p1"))
	assert.Equal(t, 1, em.count(events.TopicOrderCreated))
}

func TestCheckoutValidation(t *testing.T) {
	store := newMemStore()
	ledger, em := newTestLedger(store, nil)
	ctx := context.Background()

	var ve ValidationError

	_, _, err := ledger.Checkout(ctx, CheckoutRequest{ExternalID: "e", UserID: "u"})
	assert.ErrorAs(t, err, &ve)

	_, _, err = ledger.Checkout(ctx, CheckoutRequest{
		ExternalID: "e", UserID: "u",
		Items: []CartLine{{ProductID: "p1", Qty: -1}},
	})
	assert.ErrorAs(t, err, &ve)

	_, _, err = ledger.Checkout(ctx, CheckoutRequest{
		UserID: "u",
		Items:  []CartLine{{ProductID: "p1", Qty: 1}},
	})
	assert.ErrorAs(t, err, &ve)

	assert.Empty(t, em.topics)
	assert.Empty(t, store.orders)
}

func TestCheckoutInsufficientStock(t *testing.T) {
	store := newMemStore()
	store.prices["p1"] = 1000
	store.stock["p1"] = 5
	ledger, em := newTestLedger(store, nil)

	_, _, err := ledger.Checkout(context.Background(), checkoutReq("ext-1", 6))
	var ise *inventory.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	require.Len(t, ise.Shortages, 1)
	assert.Equal(t, 6, ise.Shortages[0].Requested)
	assert.Equal(t, 5, ise.Shortages[0].Available)

	assert.Empty(t, store.orders)
	assert.Zero(t, store.reservedFor("p1"))
	assert.Empty(t, em.topics)
}

func TestConcurrentCheckoutLastUnits(t *testing.T) {
	store := newMemStore()
	store.prices["p1"] = 1000
	store.stock["p1"] = 5
	ledger, _ := newTestLedger(store, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = ledger.Checkout(ctx, checkoutReq(fmt.Sprintf("race-%d", i), 3))
		}(i)
	}
	wg.Wait()

	var failures int
	for _, err := range errs {
		if err == nil {
			continue
		}
		failures++
		var ise *inventory.InsufficientStockError
		require.ErrorAs(t, err, &ise)
		assert.Equal(t, 3, ise.Shortages[0].Requested)
		assert.Equal(t, 2, ise.Shortages[0].Available)
	}
	require.Equal(t, 1, failures, "exactly one of the two racing orders must fail")

	// Reserved never exceeds stock, and committing the winner never
	// drives stock negative.
	assert.Equal(t, 3, store.reservedFor("p1"))
	for id := range store.reserved {
		_, err := ledger.ConfirmPayment(ctx, id, "pay-race")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, store.stock["p1"])
}

func TestConfirmPaymentIdempotent(t *testing.T) {
	store := newMemStore()
	store.prices["p1"] = 10000
	store.stock["p1"] = 10
	ledger, em := newTestLedger(store, nil)
	ctx := context.Background()

	ord, _, err := ledger.Checkout(ctx, checkoutReq("ext-1", 2))
	require.NoError(t, err)

	res, err := ledger.ConfirmPayment(ctx, ord.ID, "pay-1")
	require.NoError(t, err)
	assert.False(t, res.AlreadyPaid)
	assert.Equal(t, int64(200), res.PointsAccrued)
	assert.NotEmpty(t, res.TrackingNumber)
	assert.Equal(t, 8, store.stock["p1"])
	assert.Equal(t, 1, store.saleMoves)
	assert.Equal(t, 1, store.creditOps)
	assert.Equal(t, 1, em.count(events.TopicOrderPaid))

	// Duplicate provider callback: no-op, nothing moves twice.
	res2, err := ledger.ConfirmPayment(ctx, ord.ID, "pay-1")
	require.NoError(t, err)
	assert.True(t, res2.AlreadyPaid)
	assert.Equal(t, 8, store.stock["p1"])
	assert.Equal(t, 1, store.saleMoves)
	assert.Equal(t, 1, store.creditOps)
	assert.Equal(t, int64(200), store.credits["user-1"])
	assert.Equal(t, 1, em.count(events.TopicOrderPaid))
}

func TestConfirmPaymentIllegalStates(t *testing.T) {
	store := newMemStore()
	store.prices["p1"] = 1000
	store.stock["p1"] = 5
	ledger, _ := newTestLedger(store, nil)
	ctx := context.Background()

	t.Run("unknown order", func(t *testing.T) {
		_, err := ledger.ConfirmPayment(ctx, "nope", "pay")
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("cancelled order", func(t *testing.T) {
		ord, _, err := ledger.Checkout(ctx, checkoutReq("ext-c", 1))
		require.NoError(t, err)
		require.NoError(t, ledger.Cancel(ctx, ord.ID, "changed my mind"))

		_, err = ledger.ConfirmPayment(ctx, ord.ID, "pay")
		var ite *InvalidTransitionError
		require.ErrorAs(t, err, &ite)
		assert.Equal(t, StatusCancelled, ite.From)
	})

	t.Run("reservation expired before payment", func(t *testing.T) {
		ord, _, err := ledger.Checkout(ctx, checkoutReq("ext-e", 1))
		require.NoError(t, err)
		// Simulate the sweep having released the hold.
		store.mu.Lock()
		delete(store.reserved, ord.ID)
		store.mu.Unlock()

		_, err = ledger.ConfirmPayment(ctx, ord.ID, "pay")
		assert.ErrorIs(t, err, inventory.ErrReservationExpired)
	})
}

func TestCancelFreesStockForNewOrders(t *testing.T) {
	store := newMemStore()
	store.prices["p1"] = 1000
	store.stock["p1"] = 5
	ledger, em := newTestLedger(store, nil)
	ctx := context.Background()

	first, _, err := ledger.Checkout(ctx, checkoutReq("ext-1", 3))
	require.NoError(t, err)

	_, _, err = ledger.Checkout(ctx, checkoutReq("ext-2", 3))
	var ise *inventory.InsufficientStockError
	require.ErrorAs(t, err, &ise)

	require.NoError(t, ledger.Cancel(ctx, first.ID, "abandoned"))
	assert.Equal(t, 1, em.count(events.TopicOrderCancelled))
	assert.Zero(t, store.reservedFor("p1"))

	// The freed hold is immediately reservable.
	_, _, err = ledger.Checkout(ctx, checkoutReq("ext-3", 3))
	require.NoError(t, err)
	assert.Equal(t, 3, store.reservedFor("p1"))
	// Stock itself was never touched by reserve/release.
	assert.Equal(t, 5, store.stock["p1"])
}

func TestSweepReleasesLapsedHolds(t *testing.T) {
	store := newMemStore()
	store.prices["p1"] = 1000
	store.stock["p1"] = 5
	ledger, _ := newTestLedger(store, nil)
	ledger.ReservationTTL = 10 * time.Minute
	ctx := context.Background()

	first, _, err := ledger.Checkout(ctx, checkoutReq("ext-1", 3))
	require.NoError(t, err)

	_, _, err = ledger.Checkout(ctx, checkoutReq("ext-2", 3))
	var ise *inventory.InsufficientStockError
	require.ErrorAs(t, err, &ise)

	// Ten minutes pass without a payment; the sweep releases the hold.
	var src inventory.Source = store
	released, err := src.SweepExpired(ctx, time.Now().Add(11*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, released)
	assert.Zero(t, store.reservedFor("p1"))

	// Release is not a stock change: no movement recorded, stock untouched.
	assert.Zero(t, store.saleMoves)
	assert.Equal(t, 5, store.stock["p1"])

	// The freed quantity is immediately reservable.
	_, _, err = ledger.Checkout(ctx, checkoutReq("ext-3", 3))
	require.NoError(t, err)

	// The lapsed order can no longer be paid.
	_, err = ledger.ConfirmPayment(ctx, first.ID, "pay-late")
	assert.ErrorIs(t, err, inventory.ErrReservationExpired)
}

func TestPromoPricingAtCheckout(t *testing.T) {
	codes := map[string]promo.Code{
		"SAVE10": {
			ID: "pc-1", Code: "SAVE10", Type: promo.DiscountPercent,
			Value: decimal.NewFromInt(10), MinOrderCents: 10000, Active: true,
		},
	}

	t.Run("discount applied", func(t *testing.T) {
		store := newMemStore()
		store.prices["p1"] = 10000
		store.stock["p1"] = 10
		ledger, _ := newTestLedger(store, codes)

		req := checkoutReq("ext-1", 2)
		req.PromoCode = "SAVE10"
		ord, _, err := ledger.Checkout(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, int64(20000), ord.SubtotalCents)
		assert.Equal(t, int64(2000), ord.PromoDiscountCents)
		assert.Equal(t, int64(18000), ord.TotalCents)
	})

	t.Run("below minimum rejected with no side effects", func(t *testing.T) {
		store := newMemStore()
		store.prices["p1"] = 5000
		store.stock["p1"] = 10
		ledger, em := newTestLedger(store, codes)

		req := checkoutReq("ext-1", 1)
		req.PromoCode = "SAVE10"
		_, _, err := ledger.Checkout(context.Background(), req)
		assert.ErrorIs(t, err, promo.ErrMinOrderNotMet)
		assert.Empty(t, store.orders)
		assert.Empty(t, em.topics)
	})
}

func TestPromoMaxUsesUnderConcurrency(t *testing.T) {
	codes := map[string]promo.Code{
		"LTD": {ID: "pc-2", Code: "LTD", Type: promo.DiscountFixed, Value: decimal.NewFromInt(5), Active: true},
	}
	store := newMemStore()
	store.prices["p1"] = 10000
	store.stock["p1"] = 100
	store.promoMax = 2
	ledger, _ := newTestLedger(store, codes)
	ctx := context.Background()

	const attempts = 5
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := checkoutReq(fmt.Sprintf("promo-%d", i), 1)
			req.PromoCode = "LTD"
			_, _, errs[i] = ledger.Checkout(ctx, req)
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, promo.ErrPromoExhausted)
	}
	assert.Equal(t, 2, ok)
	assert.Equal(t, int64(2), store.promoUses.Load())
}

func TestRefundReturnsStock(t *testing.T) {
	store := newMemStore()
	store.prices["p1"] = 10000
	store.stock["p1"] = 10
	ledger, em := newTestLedger(store, nil)
	ctx := context.Background()

	ord, _, err := ledger.Checkout(ctx, checkoutReq("ext-1", 4))
	require.NoError(t, err)
	_, err = ledger.ConfirmPayment(ctx, ord.ID, "pay-1")
	require.NoError(t, err)
	assert.Equal(t, 6, store.stock["p1"])

	require.NoError(t, ledger.Refund(ctx, ord.ID))
	assert.Equal(t, 10, store.stock["p1"])
	assert.Equal(t, 1, em.count(events.TopicOrderRefunded))

	got, err := ledger.Get(ctx, ord.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, got.Status)
	assert.Equal(t, PaymentRefunded, got.PaymentStatus)
}

// flakyStore fails each mutating call a set number of times with a lock
// conflict before letting it through.
type flakyStore struct {
	*memStore
	failures atomic.Int64
}

func (f *flakyStore) conflict() error {
	if f.failures.Add(-1) >= 0 {
		return &pgconn.PgError{Code: "40P01"}
	}
	return nil
}

func (f *flakyStore) Cancel(ctx context.Context, orderID, reason string) (Order, error) {
	if err := f.conflict(); err != nil {
		return Order{}, err
	}
	return f.memStore.Cancel(ctx, orderID, reason)
}

func (f *flakyStore) Refund(ctx context.Context, orderID string) (Order, error) {
	if err := f.conflict(); err != nil {
		return Order{}, err
	}
	return f.memStore.Refund(ctx, orderID)
}

func TestCancelAndRefundRetryLockConflicts(t *testing.T) {
	store := newMemStore()
	store.prices["p1"] = 10000
	store.stock["p1"] = 10
	flaky := &flakyStore{memStore: store}
	ledger, em := newTestLedger(store, nil)
	ledger.Store = flaky
	ctx := context.Background()

	ord, _, err := ledger.Checkout(ctx, checkoutReq("ext-1", 2))
	require.NoError(t, err)

	flaky.failures.Store(2)
	require.NoError(t, ledger.Cancel(ctx, ord.ID, "deadlocked twice first"))
	got, _ := ledger.Get(ctx, ord.ID)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, 1, em.count(events.TopicOrderCancelled))

	paid, _, err := ledger.Checkout(ctx, checkoutReq("ext-2", 2))
	require.NoError(t, err)
	_, err = ledger.ConfirmPayment(ctx, paid.ID, "pay-1")
	require.NoError(t, err)

	flaky.failures.Store(2)
	require.NoError(t, ledger.Refund(ctx, paid.ID))
	assert.Equal(t, 10, store.stock["p1"])
	assert.Equal(t, 1, em.count(events.TopicOrderRefunded))

	// A conflict that never clears still surfaces after the attempts run out.
	flaky.failures.Store(10)
	err = ledger.Cancel(ctx, ord.ID, "still locked")
	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "40P01", pgErr.Code)
}

func TestApplyShipmentStatus(t *testing.T) {
	store := newMemStore()
	store.prices["p1"] = 10000
	store.stock["p1"] = 10
	ledger, _ := newTestLedger(store, nil)
	ctx := context.Background()

	ord, _, err := ledger.Checkout(ctx, checkoutReq("ext-1", 1))
	require.NoError(t, err)
	_, err = ledger.ConfirmPayment(ctx, ord.ID, "pay-1")
	require.NoError(t, err)

	// picked does not move the order.
	require.NoError(t, ledger.ApplyShipmentStatus(ctx, ord.ID, shipping.StatusPicked))
	got, _ := ledger.Get(ctx, ord.ID)
	assert.Equal(t, StatusPaid, got.Status)

	require.NoError(t, ledger.ApplyShipmentStatus(ctx, ord.ID, shipping.StatusInTransit))
	got, _ = ledger.Get(ctx, ord.ID)
	assert.Equal(t, StatusShipped, got.Status)

	// Duplicate tracking event is a no-op.
	require.NoError(t, ledger.ApplyShipmentStatus(ctx, ord.ID, shipping.StatusInTransit))
	got, _ = ledger.Get(ctx, ord.ID)
	assert.Equal(t, StatusShipped, got.Status)

	require.NoError(t, ledger.ApplyShipmentStatus(ctx, ord.ID, shipping.StatusDelivered))
	got, _ = ledger.Get(ctx, ord.ID)
	assert.Equal(t, StatusDelivered, got.Status)
}
