package handlers

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/swiftcart/api/internal/services"
)

func registerInternalEvents(orders services.OrderService) func(chi.Router) {
	h := NewInternalEventHandlers(orders)
	return h.Routes
}

func pushBody(data string, attributes map[string]string) string {
	var sb strings.Builder
	sb.WriteString(`{"message":{"data":"`)
	sb.WriteString(base64.StdEncoding.EncodeToString([]byte(data)))
	sb.WriteString(`"`)
	if len(attributes) > 0 {
		sb.WriteString(`,"attributes":{`)
		first := true
		for k, v := range attributes {
			if !first {
				sb.WriteString(",")
			}
			first = false
			fmt.Fprintf(&sb, "%q:%q", k, v)
		}
		sb.WriteString("}")
	}
	sb.WriteString(`},"subscription":"projects/p/subscriptions/order-events"}`)
	return sb.String()
}

func TestInternalResyncUsesEventPayload(t *testing.T) {
	var gotOrderID string
	orders := &orderServiceStub{
		syncCustomer: func(ctx context.Context, orderID string) error {
			gotOrderID = orderID
			return nil
		},
	}

	body := pushBody(`{"orderId":"ord_01SAMPLE","type":"order.updated"}`, nil)
	rec := doRequest(t, registerInternalEvents(orders), nil, http.MethodPost, "/events/orders", strings.NewReader(body))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if gotOrderID != "ord_01SAMPLE" {
		t.Errorf("order id = %q", gotOrderID)
	}
}

func TestInternalResyncPrefersAttributeOrderID(t *testing.T) {
	var gotOrderID string
	orders := &orderServiceStub{
		syncCustomer: func(ctx context.Context, orderID string) error {
			gotOrderID = orderID
			return nil
		},
	}

	body := pushBody(`{}`, map[string]string{"orderId": "ord_from_attr"})
	rec := doRequest(t, registerInternalEvents(orders), nil, http.MethodPost, "/events/orders", strings.NewReader(body))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if gotOrderID != "ord_from_attr" {
		t.Errorf("order id = %q", gotOrderID)
	}
}

func TestInternalResyncRejectsEnvelopeWithoutOrderID(t *testing.T) {
	body := pushBody(`{"type":"order.updated"}`, nil)
	rec := doRequest(t, registerInternalEvents(&orderServiceStub{}), nil, http.MethodPost, "/events/orders", strings.NewReader(body))
	assertErrorCode(t, rec, http.StatusBadRequest, "invalid_request")
}

func TestInternalResyncAcksMissingOrder(t *testing.T) {
	orders := &orderServiceStub{
		syncCustomer: func(ctx context.Context, orderID string) error {
			return services.ErrOrderNotFound
		},
	}
	body := pushBody(`{"orderId":"ord_gone"}`, nil)
	rec := doRequest(t, registerInternalEvents(orders), nil, http.MethodPost, "/events/orders", strings.NewReader(body))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204 so delivery is acked", rec.Code)
	}
}

func TestInternalResyncSurfacesStoreFailureForRetry(t *testing.T) {
	orders := &orderServiceStub{
		syncCustomer: func(ctx context.Context, orderID string) error {
			return services.ErrOrderStore
		},
	}
	body := pushBody(`{"orderId":"ord_01SAMPLE"}`, nil)
	rec := doRequest(t, registerInternalEvents(orders), nil, http.MethodPost, "/events/orders", strings.NewReader(body))
	assertErrorCode(t, rec, http.StatusServiceUnavailable, "order_store_unavailable")
}
