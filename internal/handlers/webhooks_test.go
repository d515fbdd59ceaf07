package handlers

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/swiftcart/api/internal/services"
)

func registerWebhooks(orders services.OrderService) func(chi.Router) {
	h := NewStorefrontWebhookHandlers(orders)
	return h.Routes
}

func TestWebhookReceiveOrderCreates(t *testing.T) {
	var gotCmd services.CreateOrderCommand
	orders := &orderServiceStub{
		create: func(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
			gotCmd = cmd
			return sampleOrder(), nil
		},
	}

	body := strings.NewReader(`{
		"customer": {"id": "cust-1", "name": "Ada", "email": "shopper@swiftcart.test"},
		"items": [{"product_id": "prod-1", "name": "Field Jacket", "unit_price": 50, "quantity": 2}],
		"shipping_address": {"line1": "1 Main St", "city": "Berlin", "postal_code": "10115", "country": "de"},
		"payment_method": "card",
		"payment_ref": "pi_123"
	}`)
	rec := doRequest(t, registerWebhooks(orders), nil, http.MethodPost, "/storefront/orders", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	if gotCmd.Customer.ID != "cust-1" || gotCmd.PaymentRef != "pi_123" {
		t.Errorf("command = %+v", gotCmd)
	}
	if gotCmd.ShippingAddr.Country != "DE" {
		t.Errorf("country = %q, want DE", gotCmd.ShippingAddr.Country)
	}

	var resp struct {
		Order struct {
			ID     string `json:"id"`
			Number string `json:"number"`
		} `json:"order"`
	}
	decodeResponse(t, rec, &resp)
	if resp.Order.ID != "ord_01SAMPLE" || resp.Order.Number != "SC-2025-000042" {
		t.Errorf("order = %+v", resp.Order)
	}
}

func TestWebhookReceiveOrderRejectsMalformedBody(t *testing.T) {
	rec := doRequest(t, registerWebhooks(&orderServiceStub{}), nil, http.MethodPost, "/storefront/orders", strings.NewReader("{"))
	assertErrorCode(t, rec, http.StatusBadRequest, "invalid_request")
}

func TestWebhookReceiveOrderMapsValidationError(t *testing.T) {
	orders := &orderServiceStub{
		create: func(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
			return services.Order{}, services.ErrOrderInvalidInput
		},
	}
	rec := doRequest(t, registerWebhooks(orders), nil, http.MethodPost, "/storefront/orders", strings.NewReader(`{"payment_method":"card"}`))
	assertErrorCode(t, rec, http.StatusBadRequest, "invalid_request")
}
