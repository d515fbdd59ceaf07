package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/swiftcart/api/internal/domain"
	"github.com/swiftcart/api/internal/platform/auth"
	"github.com/swiftcart/api/internal/services"
)

var handlerTestNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

// orderServiceStub implements services.OrderService with function fields so
// each test overrides only what it exercises.
type orderServiceStub struct {
	create        func(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error)
	get           func(ctx context.Context, orderID string) (services.Order, error)
	list          func(ctx context.Context, filter services.OrderFilter) (domain.CursorPage[services.Order], error)
	transition    func(ctx context.Context, cmd services.TransitionCommand) (services.Order, error)
	attach        func(ctx context.Context, cmd services.AttachShippingCommand) (services.ShippingConfirmation, error)
	cancelOwn     func(ctx context.Context, cmd services.CancelOwnOrderCommand) (services.Order, error)
	getCustomer   func(ctx context.Context, customerID, orderID string) (services.CustomerOrder, error)
	listCustomer  func(ctx context.Context, customerID string, pager services.Pagination) (domain.CursorPage[services.CustomerOrder], error)
	syncCustomer  func(ctx context.Context, orderID string) error
}

func (s *orderServiceStub) CreateOrder(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
	if s.create == nil {
		return services.Order{}, errors.New("unexpected CreateOrder call")
	}
	return s.create(ctx, cmd)
}

func (s *orderServiceStub) GetOrder(ctx context.Context, orderID string) (services.Order, error) {
	if s.get == nil {
		return services.Order{}, errors.New("unexpected GetOrder call")
	}
	return s.get(ctx, orderID)
}

func (s *orderServiceStub) ListOrders(ctx context.Context, filter services.OrderFilter) (domain.CursorPage[services.Order], error) {
	if s.list == nil {
		return domain.CursorPage[services.Order]{}, errors.New("unexpected ListOrders call")
	}
	return s.list(ctx, filter)
}

func (s *orderServiceStub) TransitionStatus(ctx context.Context, cmd services.TransitionCommand) (services.Order, error) {
	if s.transition == nil {
		return services.Order{}, errors.New("unexpected TransitionStatus call")
	}
	return s.transition(ctx, cmd)
}

func (s *orderServiceStub) AttachShipping(ctx context.Context, cmd services.AttachShippingCommand) (services.ShippingConfirmation, error) {
	if s.attach == nil {
		return services.ShippingConfirmation{}, errors.New("unexpected AttachShipping call")
	}
	return s.attach(ctx, cmd)
}

func (s *orderServiceStub) CancelOwnOrder(ctx context.Context, cmd services.CancelOwnOrderCommand) (services.Order, error) {
	if s.cancelOwn == nil {
		return services.Order{}, errors.New("unexpected CancelOwnOrder call")
	}
	return s.cancelOwn(ctx, cmd)
}

func (s *orderServiceStub) GetCustomerOrder(ctx context.Context, customerID, orderID string) (services.CustomerOrder, error) {
	if s.getCustomer == nil {
		return services.CustomerOrder{}, errors.New("unexpected GetCustomerOrder call")
	}
	return s.getCustomer(ctx, customerID, orderID)
}

func (s *orderServiceStub) ListCustomerOrders(ctx context.Context, customerID string, pager services.Pagination) (domain.CursorPage[services.CustomerOrder], error) {
	if s.listCustomer == nil {
		return domain.CursorPage[services.CustomerOrder]{}, errors.New("unexpected ListCustomerOrders call")
	}
	return s.listCustomer(ctx, customerID, pager)
}

func (s *orderServiceStub) SyncCustomerCopy(ctx context.Context, orderID string) error {
	if s.syncCustomer == nil {
		return errors.New("unexpected SyncCustomerCopy call")
	}
	return s.syncCustomer(ctx, orderID)
}

type bulkServiceStub struct {
	apply func(ctx context.Context, cmd services.BulkCommand) (services.BulkResult, error)
}

func (s *bulkServiceStub) Apply(ctx context.Context, cmd services.BulkCommand) (services.BulkResult, error) {
	if s.apply == nil {
		return services.BulkResult{}, errors.New("unexpected Apply call")
	}
	return s.apply(ctx, cmd)
}

type analyticsServiceStub struct {
	summarize func(ctx context.Context, query services.AnalyticsQuery) (services.AnalyticsSummary, error)
	export    func(ctx context.Context, query services.AnalyticsQuery) (services.AnalyticsExport, error)
}

func (s *analyticsServiceStub) Summarize(ctx context.Context, query services.AnalyticsQuery) (services.AnalyticsSummary, error) {
	if s.summarize == nil {
		return services.AnalyticsSummary{}, errors.New("unexpected Summarize call")
	}
	return s.summarize(ctx, query)
}

func (s *analyticsServiceStub) Export(ctx context.Context, query services.AnalyticsQuery) (services.AnalyticsExport, error) {
	if s.export == nil {
		return services.AnalyticsExport{}, errors.New("unexpected Export call")
	}
	return s.export(ctx, query)
}

type auditServiceStub struct {
	record func(ctx context.Context, cmd services.RecordAuditEntryCommand) error
	list   func(ctx context.Context, query services.AuditLogQuery) (domain.CursorPage[services.AuditLogEntry], error)
}

func (s *auditServiceStub) Record(ctx context.Context, cmd services.RecordAuditEntryCommand) error {
	if s.record == nil {
		return nil
	}
	return s.record(ctx, cmd)
}

func (s *auditServiceStub) List(ctx context.Context, query services.AuditLogQuery) (domain.CursorPage[services.AuditLogEntry], error) {
	if s.list == nil {
		return domain.CursorPage[services.AuditLogEntry]{}, errors.New("unexpected List call")
	}
	return s.list(ctx, query)
}

type systemServiceStub struct {
	health func(ctx context.Context) (services.SystemHealthReport, error)
}

func (s *systemServiceStub) Health(ctx context.Context) (services.SystemHealthReport, error) {
	if s.health == nil {
		return services.SystemHealthReport{}, errors.New("unexpected Health call")
	}
	return s.health(ctx)
}

func staffIdentity() *auth.Identity {
	return &auth.Identity{UID: "staff-1", Email: "ops@swiftcart.test", Roles: []string{auth.RoleStaff}}
}

func customerIdentity() *auth.Identity {
	return &auth.Identity{UID: "cust-1", Email: "shopper@swiftcart.test", Roles: []string{auth.RoleUser}}
}

// doRequest routes the request through a fresh chi router carrying the given
// handler registration, optionally with an authenticated identity.
func doRequest(t *testing.T, register func(chi.Router), identity *auth.Identity, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()

	r := chi.NewRouter()
	register(r)

	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if identity != nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), identity))
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func assertErrorCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	var payload map[string]any
	decodeResponse(t, rec, &payload)
	if got, _ := payload["error"].(string); got != code {
		t.Errorf("error code = %q, want %q", got, code)
	}
}

func sampleOrder() services.Order {
	return services.Order{
		ID:     "ord_01SAMPLE",
		Number: "SC-2025-000042",
		Customer: services.CustomerSnapshot{
			ID:    "cust-1",
			Name:  "Ada Lovelace",
			Email: "shopper@swiftcart.test",
		},
		Items: []services.OrderLineItem{
			{ProductID: "prod-1", Name: "Field Jacket", UnitPrice: 50, Quantity: 2},
		},
		Totals:        services.OrderTotals{Subtotal: 100, Tax: 18, Total: 118},
		ShippingAddr:  services.Address{Line1: "1 Main St", City: "Berlin", PostalCode: "10115", Country: "DE"},
		PaymentMethod: "card",
		PaymentRef:    "pi_123",
		Status:        domain.OrderStatusPlaced,
		Priority:      domain.PriorityNormal,
		CreatedAt:     handlerTestNow,
		UpdatedAt:     handlerTestNow,
	}
}
