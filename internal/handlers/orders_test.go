package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/swiftcart/api/internal/domain"
	"github.com/swiftcart/api/internal/services"
)

func registerMeOrders(orders services.OrderService) func(chi.Router) {
	h := NewMeOrderHandlers(nil, orders)
	return h.Routes
}

func TestMeListOrdersReturnsCustomerCopies(t *testing.T) {
	var gotCustomer string
	var gotPager services.Pagination
	orders := &orderServiceStub{
		listCustomer: func(ctx context.Context, customerID string, pager services.Pagination) (domain.CursorPage[services.CustomerOrder], error) {
			gotCustomer = customerID
			gotPager = pager
			return domain.CursorPage[services.CustomerOrder]{
				Items: []services.CustomerOrder{
					{OrderID: "ord_a", Number: "SC-2025-000001", Status: domain.OrderStatusShipped, Total: 118, ItemCount: 2, CreatedAt: handlerTestNow},
				},
				NextPageToken: "tok-2",
			}, nil
		},
	}

	rec := doRequest(t, registerMeOrders(orders), customerIdentity(), http.MethodGet, "/orders?page_size=5&page_token=tok-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if gotCustomer != "cust-1" {
		t.Errorf("customer id = %q, want cust-1", gotCustomer)
	}
	if gotPager.PageSize != 5 || gotPager.PageToken != "tok-1" {
		t.Errorf("pagination = %+v", gotPager)
	}

	var resp struct {
		Items []struct {
			OrderID string `json:"order_id"`
			Status  string `json:"status"`
		} `json:"items"`
		NextPageToken string `json:"next_page_token"`
	}
	decodeResponse(t, rec, &resp)
	if len(resp.Items) != 1 || resp.Items[0].OrderID != "ord_a" || resp.Items[0].Status != "Shipped" {
		t.Errorf("items = %+v", resp.Items)
	}
	if resp.NextPageToken != "tok-2" {
		t.Errorf("next page token = %q", resp.NextPageToken)
	}
}

func TestMeOrdersRequireIdentity(t *testing.T) {
	rec := doRequest(t, registerMeOrders(&orderServiceStub{}), nil, http.MethodGet, "/orders", nil)
	assertErrorCode(t, rec, http.StatusUnauthorized, "unauthenticated")
}

func TestMeGetOrderMapsNotFound(t *testing.T) {
	orders := &orderServiceStub{
		getCustomer: func(ctx context.Context, customerID, orderID string) (services.CustomerOrder, error) {
			return services.CustomerOrder{}, services.ErrOrderNotFound
		},
	}
	rec := doRequest(t, registerMeOrders(orders), customerIdentity(), http.MethodGet, "/orders/ord_missing", nil)
	assertErrorCode(t, rec, http.StatusNotFound, "order_not_found")
}

func TestMeCancelOrderPassesSanitizedReason(t *testing.T) {
	var gotCmd services.CancelOwnOrderCommand
	orders := &orderServiceStub{
		cancelOwn: func(ctx context.Context, cmd services.CancelOwnOrderCommand) (services.Order, error) {
			gotCmd = cmd
			order := sampleOrder()
			order.Status = domain.OrderStatusCancelled
			return order, nil
		},
	}

	body := strings.NewReader(`{"reason":"changed my <script>mind</script>"}`)
	rec := doRequest(t, registerMeOrders(orders), customerIdentity(), http.MethodPost, "/orders/ord_01SAMPLE:cancel", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if gotCmd.OrderID != "ord_01SAMPLE" || gotCmd.CustomerID != "cust-1" {
		t.Errorf("command = %+v", gotCmd)
	}
	if strings.Contains(gotCmd.Reason, "<script>") {
		t.Errorf("reason not sanitized: %q", gotCmd.Reason)
	}

	var resp struct {
		Order struct {
			Status string `json:"status"`
		} `json:"order"`
	}
	decodeResponse(t, rec, &resp)
	if resp.Order.Status != "Cancelled" {
		t.Errorf("status = %q, want Cancelled", resp.Order.Status)
	}
}

func TestMeCancelOrderToleratesEmptyBody(t *testing.T) {
	called := false
	orders := &orderServiceStub{
		cancelOwn: func(ctx context.Context, cmd services.CancelOwnOrderCommand) (services.Order, error) {
			called = true
			if cmd.Reason != "" {
				t.Errorf("reason = %q, want empty", cmd.Reason)
			}
			return sampleOrder(), nil
		},
	}
	rec := doRequest(t, registerMeOrders(orders), customerIdentity(), http.MethodPost, "/orders/ord_01SAMPLE:cancel", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !called {
		t.Error("expected CancelOwnOrder call")
	}
}

func TestMeCancelOrderRateLimited(t *testing.T) {
	orders := &orderServiceStub{
		cancelOwn: func(ctx context.Context, cmd services.CancelOwnOrderCommand) (services.Order, error) {
			return sampleOrder(), nil
		},
	}
	h := NewMeOrderHandlers(nil, orders)

	var rec *httptest.ResponseRecorder
	for i := 0; i <= cancelRateLimit; i++ {
		rec = doRequest(t, h.Routes, customerIdentity(), http.MethodPost, "/orders/ord_01SAMPLE:cancel", nil)
	}
	assertErrorCode(t, rec, http.StatusTooManyRequests, "rate_limited")
}

func TestMeCancelOrderForeignOrderHidden(t *testing.T) {
	orders := &orderServiceStub{
		cancelOwn: func(ctx context.Context, cmd services.CancelOwnOrderCommand) (services.Order, error) {
			return services.Order{}, services.ErrOrderNotFound
		},
	}
	rec := doRequest(t, registerMeOrders(orders), customerIdentity(), http.MethodPost, "/orders/ord_other:cancel", nil)
	assertErrorCode(t, rec, http.StatusNotFound, "order_not_found")
}
