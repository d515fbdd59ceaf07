package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/swiftcart/api/internal/domain"
	"github.com/swiftcart/api/internal/platform/auth"
	"github.com/swiftcart/api/internal/platform/httpx"
	"github.com/swiftcart/api/internal/services"
)

const (
	maxOrderBodySize = 128 * 1024
	maxBulkBodySize  = 64 * 1024

	auditTargetOrder = "order"
)

// AdminOrderHandlers exposes the fulfillment team's order endpoints: the
// filtered listing, single-order reads, status transitions, shipping
// attachment, and the bulk coordinator.
type AdminOrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
	bulk   services.BulkService
	audit  services.AuditLogService

	// bulkGuard wraps the bulk endpoint, typically with the idempotency
	// middleware so retried submissions replay instead of re-applying.
	bulkGuard func(http.Handler) http.Handler
}

// AdminOrderOption customises the admin order handlers.
type AdminOrderOption func(*AdminOrderHandlers)

// WithBulkGuard wraps the bulk endpoint with the provided middleware.
func WithBulkGuard(mw func(http.Handler) http.Handler) AdminOrderOption {
	return func(h *AdminOrderHandlers) {
		h.bulkGuard = mw
	}
}

// NewAdminOrderHandlers constructs the admin order handler set.
func NewAdminOrderHandlers(authn *auth.Authenticator, orders services.OrderService, bulk services.BulkService, audit services.AuditLogService, opts ...AdminOrderOption) *AdminOrderHandlers {
	h := &AdminOrderHandlers{
		authn:  authn,
		orders: orders,
		bulk:   bulk,
		audit:  audit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the admin order endpoints onto the provided router.
func (h *AdminOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	requireStaff := h.requireStaff()

	r.Route("/orders", func(sub chi.Router) {
		if requireStaff != nil {
			sub.Use(requireStaff)
		}
		sub.Get("/", h.listOrders)
		sub.Post("/", h.createOrder)
		sub.Get("/{orderID}", h.getOrder)
		sub.Get("/{orderID}/audit", h.listOrderAudit)
		sub.Post("/{orderID}:transition", h.transitionOrder)
		sub.Post("/{orderID}:ship", h.shipOrder)
	})

	bulkRoute := r.With()
	if requireStaff != nil {
		bulkRoute = bulkRoute.With(requireStaff)
	}
	if h.bulkGuard != nil {
		bulkRoute = bulkRoute.With(h.bulkGuard)
	}
	bulkRoute.Post("/orders:bulk", h.applyBulk)
}

func (h *AdminOrderHandlers) requireStaff() func(http.Handler) http.Handler {
	if h.authn == nil {
		return nil
	}
	return h.authn.RequireFirebaseAuth(auth.RoleStaff, auth.RoleAdmin)
}

func (h *AdminOrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := parseOrderFilter(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	items := make([]orderSummaryPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, buildOrderSummary(order))
	}
	writeJSONResponse(w, http.StatusOK, orderListResponse{
		Items:         items,
		NextPageToken: page.NextPageToken,
	})
}

func (h *AdminOrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

// listOrderAudit returns the audit trail scoped to one order, newest first.
func (h *AdminOrderHandlers) listOrderAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}
	if h.audit == nil {
		httpx.WriteError(ctx, w, httpx.NewError("audit_unavailable", "audit log service unavailable", http.StatusServiceUnavailable))
		return
	}

	pageSize, err := parsePageSize(r.URL.Query().Get("page_size"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.audit.List(ctx, services.AuditLogQuery{
		TargetKind: auditTargetOrder,
		TargetID:   orderID,
		Pagination: services.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(r.URL.Query().Get("page_token")),
		},
	})
	if err != nil {
		writeAuditError(ctx, w, err)
		return
	}

	items := make([]auditEntryPayload, 0, len(page.Items))
	for _, entry := range page.Items {
		items = append(items, buildAuditEntryPayload(entry))
	}
	writeJSONResponse(w, http.StatusOK, auditListResponse{
		Items:         items,
		NextPageToken: page.NextPageToken,
	})
}

func (h *AdminOrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := decodeJSONBody(r, maxOrderBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	order, err := h.orders.CreateOrder(ctx, req.toCommand())
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	h.recordAudit(ctx, identity, "order.create", order.ID, fmt.Sprintf("created order %s", order.Number), nil)
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *AdminOrderHandlers) transitionOrder(w http.ResponseWriter, r *http.Request) {
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

	var req transitionOrderRequest
	if err := decodeJSONBody(r, maxOrderBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if strings.TrimSpace(req.Status) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status is required", http.StatusBadRequest))
		return
	}

	cmd := services.TransitionCommand{
		OrderID:       orderID,
		Target:        domain.OrderStatus(strings.TrimSpace(req.Status)),
		Note:          sanitizeFreeText(req.Note),
		ActorID:       identity.UID,
		DeclineReason: sanitizeFreeText(req.DeclineReason),
		CancelReason:  sanitizeFreeText(req.CancelReason),
		Metadata:      req.Metadata,
	}
	if raw := strings.TrimSpace(req.ExpectedStatus); raw != "" {
		expected := domain.OrderStatus(raw)
		if !domain.ValidStatus(expected) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "expected_status must be a valid order status", http.StatusBadRequest))
			return
		}
		cmd.ExpectedStatus = &expected
	}
	if req.Refund != nil {
		cmd.RefundAmount = req.Refund.Amount
		cmd.RefundReason = sanitizeFreeText(req.Refund.Reason)
		cmd.RefundMethod = strings.TrimSpace(req.Refund.Method)
	}

	order, err := h.orders.TransitionStatus(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	h.recordAudit(ctx, identity, "order.transition", order.ID,
		fmt.Sprintf("transitioned order %s to %s", order.Number, order.Status),
		map[string]string{"to": string(order.Status)})
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *AdminOrderHandlers) shipOrder(w http.ResponseWriter, r *http.Request) {
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

	var req shipOrderRequest
	if err := decodeJSONBody(r, maxOrderBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	confirmation, err := h.orders.AttachShipping(ctx, services.AttachShippingCommand{
		OrderID:     orderID,
		Carrier:     strings.TrimSpace(req.Carrier),
		Code:        strings.TrimSpace(req.Code),
		ServiceTier: strings.TrimSpace(req.ServiceTier),
		Note:        sanitizeFreeText(req.Note),
		ActorID:     identity.UID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	h.recordAudit(ctx, identity, "order.ship", confirmation.OrderID,
		fmt.Sprintf("attached %s tracking %s", confirmation.Carrier, confirmation.Code),
		map[string]string{"carrier": confirmation.Carrier, "code": confirmation.Code})
	writeJSONResponse(w, http.StatusOK, shipOrderResponse{
		OrderID:           confirmation.OrderID,
		Carrier:           confirmation.Carrier,
		Code:              confirmation.Code,
		URL:               confirmation.URL,
		EstimatedDelivery: formatTime(confirmation.EstimatedDelivery),
	})
}

func (h *AdminOrderHandlers) applyBulk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req bulkRequest
	if err := decodeJSONBody(r, maxBulkBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	result, err := h.bulk.Apply(ctx, services.BulkCommand{
		Kind:     domain.BulkOperationKind(strings.TrimSpace(req.Operation)),
		OrderIDs: req.OrderIDs,
		ActorID:  identity.UID,
		Status:   domain.OrderStatus(strings.TrimSpace(req.Status)),
		Priority: domain.OrderPriority(strings.TrimSpace(req.Priority)),
		Tag:      sanitizeFreeText(req.Tag),
		Note:     sanitizeFreeText(req.Note),
	})
	if err != nil {
		writeBulkError(ctx, w, err)
		return
	}

	h.recordAudit(ctx, identity, "order.bulk", "",
		fmt.Sprintf("bulk %s on %d orders (%d succeeded)", req.Operation, result.Total, result.Succeeded),
		map[string]string{"operation": req.Operation, "succeeded": strconv.Itoa(result.Succeeded), "failed": strconv.Itoa(result.Failed)})

	items := make([]bulkItemPayload, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, bulkItemPayload{OrderID: item.OrderID, OK: item.OK, Reason: item.Reason})
	}
	writeJSONResponse(w, http.StatusOK, bulkResponse{
		Total:     result.Total,
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Items:     items,
	})
}

// recordAudit writes the audit trail entry for a completed mutation. Audit
// failures must not fail the mutation that already happened.
func (h *AdminOrderHandlers) recordAudit(ctx context.Context, identity *auth.Identity, action, targetID, summary string, metadata map[string]string) {
	if h.audit == nil {
		return
	}
	_ = h.audit.Record(ctx, services.RecordAuditEntryCommand{
		Actor:      identity.UID,
		ActorEmail: identity.Email,
		Action:     action,
		TargetKind: auditTargetOrder,
		TargetID:   targetID,
		Summary:    summary,
		Metadata:   metadata,
	})
}

// Requests and responses ------------------------------------------------------

type createOrderRequest struct {
	Customer struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
	} `json:"customer"`
	Items []struct {
		ProductID string  `json:"product_id"`
		Name      string  `json:"name"`
		UnitPrice float64 `json:"unit_price"`
		Quantity  int     `json:"quantity"`
		ImageURL  string  `json:"image_url"`
	} `json:"items"`
	Totals struct {
		Subtotal float64 `json:"subtotal"`
		Tax      float64 `json:"tax"`
		Discount float64 `json:"discount"`
		Shipping float64 `json:"shipping"`
		Total    float64 `json:"total"`
	} `json:"totals"`
	ShippingAddress addressPayload `json:"shipping_address"`
	PaymentMethod   string         `json:"payment_method"`
	PaymentRef      string         `json:"payment_ref"`
	Tags            []string       `json:"tags"`
}

func (req createOrderRequest) toCommand() services.CreateOrderCommand {
	cmd := services.CreateOrderCommand{
		Customer: services.CustomerSnapshot{
			ID:    strings.TrimSpace(req.Customer.ID),
			Name:  sanitizeFreeText(req.Customer.Name),
			Email: strings.TrimSpace(req.Customer.Email),
			Phone: strings.TrimSpace(req.Customer.Phone),
		},
		Totals: services.OrderTotals{
			Subtotal: req.Totals.Subtotal,
			Tax:      req.Totals.Tax,
			Discount: req.Totals.Discount,
			Shipping: req.Totals.Shipping,
			Total:    req.Totals.Total,
		},
		ShippingAddr: services.Address{
			Line1:      sanitizeFreeText(req.ShippingAddress.Line1),
			Line2:      sanitizeFreeText(req.ShippingAddress.Line2),
			City:       sanitizeFreeText(req.ShippingAddress.City),
			State:      sanitizeFreeText(req.ShippingAddress.State),
			PostalCode: strings.TrimSpace(req.ShippingAddress.PostalCode),
			Country:    strings.ToUpper(strings.TrimSpace(req.ShippingAddress.Country)),
		},
		PaymentMethod: strings.TrimSpace(req.PaymentMethod),
		PaymentRef:    strings.TrimSpace(req.PaymentRef),
		Tags:          req.Tags,
	}
	for _, item := range req.Items {
		cmd.Items = append(cmd.Items, services.OrderLineItem{
			ProductID: strings.TrimSpace(item.ProductID),
			Name:      sanitizeFreeText(item.Name),
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			ImageURL:  strings.TrimSpace(item.ImageURL),
		})
	}
	return cmd
}

type transitionOrderRequest struct {
	Status         string            `json:"status"`
	Note           string            `json:"note"`
	ExpectedStatus string            `json:"expected_status"`
	DeclineReason  string            `json:"decline_reason"`
	CancelReason   string            `json:"cancel_reason"`
	Refund         *refundRequest    `json:"refund"`
	Metadata       map[string]string `json:"metadata"`
}

type refundRequest struct {
	Amount *float64 `json:"amount"`
	Reason string   `json:"reason"`
	Method string   `json:"method"`
}

type shipOrderRequest struct {
	Carrier     string `json:"carrier"`
	Code        string `json:"code"`
	ServiceTier string `json:"service_tier"`
	Note        string `json:"note"`
}

type shipOrderResponse struct {
	OrderID           string `json:"order_id"`
	Carrier           string `json:"carrier"`
	Code              string `json:"code"`
	URL               string `json:"url,omitempty"`
	EstimatedDelivery string `json:"estimated_delivery"`
}

type bulkRequest struct {
	Operation string   `json:"operation"`
	OrderIDs  []string `json:"order_ids"`
	Status    string   `json:"status"`
	Priority  string   `json:"priority"`
	Tag       string   `json:"tag"`
	Note      string   `json:"note"`
}

type bulkItemPayload struct {
	OrderID string `json:"order_id"`
	OK      bool   `json:"ok"`
	Reason  string `json:"reason,omitempty"`
}

type bulkResponse struct {
	Total     int               `json:"total"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Items     []bulkItemPayload `json:"items"`
}

type orderListResponse struct {
	Items         []orderSummaryPayload `json:"items"`
	NextPageToken string                `json:"next_page_token,omitempty"`
}

func parseOrderFilter(r *http.Request) (services.OrderFilter, error) {
	query := r.URL.Query()
	filter := services.OrderFilter{
		CustomerID: strings.TrimSpace(query.Get("customer_id")),
		Email:      strings.TrimSpace(query.Get("email")),
		Search:     strings.TrimSpace(query.Get("q")),
		Carrier:    strings.TrimSpace(query.Get("carrier")),
	}

	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status := domain.OrderStatus(raw)
		filter.Status = &status
	}
	if raw := strings.TrimSpace(query.Get("priority")); raw != "" {
		priority := domain.OrderPriority(raw)
		filter.Priority = &priority
	}
	if raw := strings.TrimSpace(query.Get("created_after")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			return services.OrderFilter{}, errors.New("created_after must be a valid RFC3339 timestamp or date")
		}
		filter.CreatedAt.From = &ts
	}
	if raw := strings.TrimSpace(query.Get("created_before")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			return services.OrderFilter{}, errors.New("created_before must be a valid RFC3339 timestamp or date")
		}
		filter.CreatedAt.To = &ts
	}
	if raw := strings.TrimSpace(query.Get("min_total")); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return services.OrderFilter{}, errors.New("min_total must be a number")
		}
		filter.MinTotal = &value
	}

	filter.SortField = domain.OrderSortField(strings.TrimSpace(query.Get("sort")))
	filter.SortOrder = domain.SortOrder(strings.TrimSpace(query.Get("order")))

	pageSize, err := parsePageSize(query.Get("page_size"))
	if err != nil {
		return services.OrderFilter{}, err
	}
	filter.Pagination = services.Pagination{
		PageSize:  pageSize,
		PageToken: strings.TrimSpace(query.Get("page_token")),
	}
	return filter, nil
}

func writeBulkError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrBulkLimitExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("bulk_limit_exceeded", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrBulkInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderStore):
		httpx.WriteError(ctx, w, httpx.NewError("order_store_unavailable", "order store unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("bulk_error", "failed to apply bulk operation", http.StatusInternalServerError))
	}
}
