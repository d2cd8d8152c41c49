package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/safarshop/fulfillment/internal/catalog"
	"github.com/safarshop/fulfillment/internal/inventory"
	"github.com/safarshop/fulfillment/internal/orders"
	"github.com/safarshop/fulfillment/internal/promo"
	"github.com/safarshop/fulfillment/internal/redisx"
	"github.com/safarshop/fulfillment/internal/shipping"
)

type Handler struct {
	Ledger   *orders.Ledger
	Catalog  *catalog.Repo
	Stock    *inventory.Ledger
	Shipping *shipping.Tracker
	Redis    *redis.Client
}

func (h *Handler) Register(r *chi.Mux) {
	r.Post("/checkout", h.checkout)
	r.Post("/payments/confirm", h.confirmPayment)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
	r.Post("/orders/{id}/refund", h.refundOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/shipment", h.getShipment)
	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)
	r.Post("/admin/restock", h.restock)
	r.Post("/admin/stocktake", h.stocktake)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the engine's error taxonomy onto HTTP statuses: validation
// 400, missing resources 404, business-rule rejections 422, state conflicts
// 409, everything else 500.
func writeError(w http.ResponseWriter, err error) {
	var (
		ve   orders.ValidationError
		ise  *inventory.InsufficientStockError
		iote *orders.InvalidTransitionError
		iste *shipping.InvalidTransitionError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.As(err, &ise):
		writeJSON(w, http.StatusConflict, map[string]any{"error": "insufficient stock", "shortages": ise.Shortages})
	case errors.Is(err, promo.ErrPromoNotFound),
		errors.Is(err, promo.ErrPromoExpired),
		errors.Is(err, promo.ErrPromoExhausted),
		errors.Is(err, promo.ErrMinOrderNotMet):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, orders.ErrOrderNotFound),
		errors.Is(err, inventory.ErrProductNotFound),
		errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, shipping.ErrShipmentNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.As(err, &iote), errors.As(err, &iste),
		errors.Is(err, inventory.ErrReservationExpired):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

type checkoutReq struct {
	ExternalID      string            `json:"external_id"`
	UserID          string            `json:"user_id"`
	Items           []orders.CartLine `json:"items"`
	PromoCode       string            `json:"promo_code,omitempty"`
	DeliveryAddress string            `json:"delivery_address,omitempty"`
	DeliveryPhone   string            `json:"delivery_phone,omitempty"`
}

type checkoutResp struct {
	OrderID       string `json:"order_id"`
	SubtotalCents int64  `json:"subtotal_cents"`
	DiscountCents int64  `json:"discount_cents"`
	TotalCents    int64  `json:"total_cents"`
	Idempotent    bool   `json:"idempotent"`
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// Redis shortcut for replays; on a miss or a Redis outage the orders
	// table answers, so the key is never load-bearing.
	idemKey := fmt.Sprintf(redisx.KeyIdemCheckout, req.ExternalID)
	if id, err := h.Redis.Get(ctx, idemKey).Result(); err == nil && id != "" {
		if ord, err := h.Ledger.Get(ctx, id); err == nil {
			writeJSON(w, http.StatusAccepted, checkoutResp{
				OrderID:       ord.ID,
				SubtotalCents: ord.SubtotalCents,
				DiscountCents: ord.PromoDiscountCents,
				TotalCents:    ord.TotalCents,
				Idempotent:    true,
			})
			return
		}
	}

	ord, existed, err := h.Ledger.Checkout(ctx, orders.CheckoutRequest{
		ExternalID:      req.ExternalID,
		UserID:          req.UserID,
		Items:           req.Items,
		PromoCode:       req.PromoCode,
		DeliveryAddress: req.DeliveryAddress,
		DeliveryPhone:   req.DeliveryPhone,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	_ = h.Redis.Set(ctx, idemKey, ord.ID, redisx.TTLIdempotency).Err()
	h.cacheStatus(ctx, ord)

	writeJSON(w, http.StatusAccepted, checkoutResp{
		OrderID:       ord.ID,
		SubtotalCents: ord.SubtotalCents,
		DiscountCents: ord.PromoDiscountCents,
		TotalCents:    ord.TotalCents,
		Idempotent:    existed,
	})
}

type confirmPaymentReq struct {
	OrderID    string `json:"order_id"`
	PaymentRef string `json:"payment_ref"`
}

func (h *Handler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	var req confirmPaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// Fast path for provider retries; ConfirmPayment itself is idempotent.
	dedupKey := fmt.Sprintf(redisx.KeyDedupPayment, req.PaymentRef)
	if ok, _ := redisx.Exists(ctx, h.Redis, dedupKey); ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	res, err := h.Ledger.ConfirmPayment(ctx, req.OrderID, req.PaymentRef)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = h.Redis.Set(ctx, dedupKey, "1", redisx.TTLDedup).Err()
	h.cacheStatus(ctx, res.Order)
	w.WriteHeader(http.StatusNoContent)
}

type cancelReq struct {
	Reason string `json:"reason"`
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var req cancelReq
	_ = json.NewDecoder(r.Body).Decode(&req)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Ledger.Cancel(ctx, orderID, req.Reason); err != nil {
		writeError(w, err)
		return
	}
	_ = h.Redis.Del(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID)).Err()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) refundOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Ledger.Refund(ctx, orderID); err != nil {
		writeError(w, err)
		return
	}
	_ = h.Redis.Del(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID)).Err()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(s))
		return
	}

	ord, err := h.Ledger.Get(ctx, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheStatus(ctx, ord)
	writeJSON(w, http.StatusOK, statusBody(ord))
}

func (h *Handler) getShipment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	s, err := h.Shipping.ByOrder(ctx, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"order_id":        s.OrderID,
		"tracking_number": s.TrackingNumber,
		"status":          string(s.Status),
	})
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Catalog.List(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Catalog.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	_ = h.Catalog.IncrementViews(ctx, p.ID)
	writeJSON(w, http.StatusOK, p)
}

type restockReq struct {
	ProductID  string  `json:"product_id"`
	Quantity   int     `json:"quantity"`
	SupplierID *string `json:"supplier_id,omitempty"`
	CostCents  *int64  `json:"cost_cents,omitempty"`
}

func (h *Handler) restock(w http.ResponseWriter, r *http.Request) {
	var req restockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Stock.Restock(ctx, req.ProductID, req.Quantity, req.SupplierID, req.CostCents); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type stocktakeReq struct {
	ProductID string `json:"product_id"`
	Counted   int    `json:"counted"`
	Reason    string `json:"reason,omitempty"`
}

func (h *Handler) stocktake(w http.ResponseWriter, r *http.Request) {
	var req stocktakeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	reason := req.Reason
	if reason == "" {
		reason = "stocktake reconciliation"
	}
	if err := h.Stock.Adjust(ctx, req.ProductID, req.Counted, reason); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func statusBody(ord orders.Order) map[string]string {
	return map[string]string{
		"order_id":       ord.ID,
		"status":         string(ord.Status),
		"payment_status": string(ord.PaymentStatus),
	}
}

func (h *Handler) cacheStatus(ctx context.Context, ord orders.Order) {
	b, _ := json.Marshal(statusBody(ord))
	_ = h.Redis.Set(ctx, fmt.Sprintf(redisx.KeyOrderStatus, ord.ID), b, redisx.TTLStatusCache).Err()
}
