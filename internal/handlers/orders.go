package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/swiftcart/api/internal/platform/auth"
	"github.com/swiftcart/api/internal/platform/httpx"
	"github.com/swiftcart/api/internal/services"
)

const (
	maxCancelBodySize = 4 * 1024

	cancelRateLimit  = 10
	cancelRateWindow = time.Minute
)

// MeOrderHandlers exposes the customer-facing order endpoints. Listings read
// the denormalized per-customer copies; cancellation goes through the full
// order service.
type MeOrderHandlers struct {
	authn   *auth.Authenticator
	orders  services.OrderService
	limiter rateLimiter
}

// NewMeOrderHandlers constructs handlers for the /me/orders endpoints.
func NewMeOrderHandlers(authn *auth.Authenticator, orders services.OrderService) *MeOrderHandlers {
	return &MeOrderHandlers{
		authn:   authn,
		orders:  orders,
		limiter: newSimpleRateLimiter(cancelRateLimit, cancelRateWindow, nil),
	}
}

// Routes wires the customer order endpoints onto the provided router.
func (h *MeOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/orders", func(sub chi.Router) {
		if h.authn != nil {
			sub.Use(h.authn.RequireFirebaseAuth())
		}
		sub.Get("/", h.listOrders)
		sub.Get("/{orderID}", h.getOrder)
		sub.Post("/{orderID}:cancel", h.cancelOrder)
	})
}

func (h *MeOrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	query := r.URL.Query()
	pageSize, err := parsePageSize(query.Get("page_size"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.orders.ListCustomerOrders(ctx, identity.UID, services.Pagination{
		PageSize:  pageSize,
		PageToken: strings.TrimSpace(query.Get("page_token")),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	items := make([]customerOrderPayload, 0, len(page.Items))
	for _, copy := range page.Items {
		items = append(items, buildCustomerOrderPayload(copy))
	}
	writeJSONResponse(w, http.StatusOK, customerOrderListResponse{
		Items:         items,
		NextPageToken: page.NextPageToken,
	})
}

func (h *MeOrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	copy, err := h.orders.GetCustomerOrder(ctx, identity.UID, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, customerOrderResponse{Order: buildCustomerOrderPayload(copy)})
}

func (h *MeOrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	if h.limiter != nil && !h.limiter.Allow(identity.UID) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many cancellation attempts", http.StatusTooManyRequests))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	var req cancelOrderRequest
	if err := decodeJSONBody(r, maxCancelBodySize, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeBodyError(ctx, w, err)
		return
	}

	order, err := h.orders.CancelOwnOrder(ctx, services.CancelOwnOrderCommand{
		OrderID:    orderID,
		CustomerID: identity.UID,
		Reason:     sanitizeFreeText(req.Reason),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type customerOrderListResponse struct {
	Items         []customerOrderPayload `json:"items"`
	NextPageToken string                 `json:"next_page_token,omitempty"`
}

type customerOrderResponse struct {
	Order customerOrderPayload `json:"order"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

func requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	code, message, status := orderErrorResponse(err)
	httpx.WriteError(ctx, w, httpx.NewError(code, message, status))
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}
