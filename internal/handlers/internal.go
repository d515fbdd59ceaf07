package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/swiftcart/api/internal/platform/httpx"
	"github.com/swiftcart/api/internal/platform/textutil"
	"github.com/swiftcart/api/internal/services"
)

const maxPushBodySize = 128 * 1024

// InternalEventHandlers consumes Pub/Sub push deliveries of order events and
// repairs the denormalized customer copies that the best-effort sync missed.
// Caller authenticity is enforced by the OIDC middleware mounted on the
// internal group.
type InternalEventHandlers struct {
	orders services.OrderService
}

// NewInternalEventHandlers constructs the internal event handler set.
func NewInternalEventHandlers(orders services.OrderService) *InternalEventHandlers {
	return &InternalEventHandlers{orders: orders}
}

// Routes wires the internal endpoints onto the provided router.
func (h *InternalEventHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/events/orders", h.resyncFromEvent)
}

// pushEnvelope is the Pub/Sub push delivery wrapper.
type pushEnvelope struct {
	Message struct {
		Data       []byte            `json:"data"`
		MessageID  string            `json:"messageId"`
		Attributes map[string]string `json:"attributes"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type orderEventData struct {
	OrderID string `json:"orderId"`
}

func (h *InternalEventHandlers) resyncFromEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	var envelope pushEnvelope
	if err := decodeJSONBody(r, maxPushBodySize, &envelope); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	attrs := textutil.NormalizeStringMap(envelope.Message.Attributes)
	orderID := attrs["orderId"]
	if orderID == "" {
		var event orderEventData
		data := envelope.Message.Data
		if decoded, err := base64.StdEncoding.DecodeString(string(data)); err == nil {
			data = decoded
		}
		if err := json.Unmarshal(data, &event); err == nil {
			orderID = strings.TrimSpace(event.OrderID)
		}
	}
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "push message carries no order id", http.StatusBadRequest))
		return
	}

	if err := h.orders.SyncCustomerCopy(ctx, orderID); err != nil {
		// A missing order means it was purged after the event was published.
		// Ack the delivery instead of retrying forever.
		if errors.Is(err, services.ErrOrderNotFound) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeOrderError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
