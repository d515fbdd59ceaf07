package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/swiftcart/api/internal/platform/httpx"
	"github.com/swiftcart/api/internal/services"
)

const maxWebhookBodySize = 256 * 1024

// StorefrontWebhookHandlers accepts checkout handoffs from the storefront.
// Request authenticity is enforced by the HMAC middleware mounted on the
// webhook group.
type StorefrontWebhookHandlers struct {
	orders services.OrderService
}

// NewStorefrontWebhookHandlers constructs the storefront webhook handler set.
func NewStorefrontWebhookHandlers(orders services.OrderService) *StorefrontWebhookHandlers {
	return &StorefrontWebhookHandlers{orders: orders}
}

// Routes wires the storefront webhook endpoints onto the provided router.
func (h *StorefrontWebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/storefront/orders", h.receiveOrder)
}

func (h *StorefrontWebhookHandlers) receiveOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req createOrderRequest
	if err := decodeJSONBody(r, maxWebhookBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	order, err := h.orders.CreateOrder(ctx, req.toCommand())
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}
