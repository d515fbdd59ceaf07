package di

import (
	"context"
	"testing"
	"time"

	domain "github.com/swiftcart/api/internal/domain"
	"github.com/swiftcart/api/internal/platform/config"
	"github.com/swiftcart/api/internal/repositories"
	"github.com/swiftcart/api/internal/services"
)

type stubOrderRepo struct{}

func (stubOrderRepo) Insert(context.Context, domain.Order) error { return nil }
func (stubOrderRepo) Update(context.Context, domain.Order) error { return nil }
func (stubOrderRepo) FindByID(context.Context, string) (domain.Order, error) {
	return domain.Order{}, nil
}
func (stubOrderRepo) List(context.Context, repositories.OrderQuery) (domain.CursorPage[domain.Order], error) {
	return domain.CursorPage[domain.Order]{}, nil
}
func (stubOrderRepo) ListAll(context.Context, domain.RangeQuery[time.Time]) ([]domain.Order, error) {
	return nil, nil
}
func (stubOrderRepo) BatchUpdate(context.Context, []repositories.OrderBatchUpdate) error { return nil }

type stubProductRepo struct{}

func (stubProductRepo) FindByID(context.Context, string) (domain.Product, error) {
	return domain.Product{}, nil
}
func (stubProductRepo) AdjustStock(context.Context, string, int) error { return nil }

type stubCustomerOrderRepo struct{}

func (stubCustomerOrderRepo) Upsert(context.Context, string, domain.CustomerOrder) error { return nil }
func (stubCustomerOrderRepo) FindByID(context.Context, string, string) (domain.CustomerOrder, error) {
	return domain.CustomerOrder{}, nil
}
func (stubCustomerOrderRepo) ListByCustomer(context.Context, string, domain.Pagination) (domain.CursorPage[domain.CustomerOrder], error) {
	return domain.CursorPage[domain.CustomerOrder]{}, nil
}

type stubAuditLogRepo struct{}

func (stubAuditLogRepo) Append(context.Context, domain.AuditLogEntry) error { return nil }
func (stubAuditLogRepo) List(context.Context, repositories.AuditLogFilter) (domain.CursorPage[domain.AuditLogEntry], error) {
	return domain.CursorPage[domain.AuditLogEntry]{}, nil
}

type stubCounterRepo struct{}

func (stubCounterRepo) Next(context.Context, string, int64) (int64, error) { return 1, nil }
func (stubCounterRepo) Configure(context.Context, string, repositories.CounterConfig) error {
	return nil
}

type stubHealthRepo struct{}

func (stubHealthRepo) Collect(context.Context) (domain.SystemHealthReport, error) {
	return domain.SystemHealthReport{Status: domain.HealthStatusOK}, nil
}

type stubRegistry struct {
	health repositories.HealthRepository
}

func (stubRegistry) Close(context.Context) error { return nil }
func (stubRegistry) Orders() repositories.OrderRepository {
	return stubOrderRepo{}
}
func (stubRegistry) Products() repositories.ProductRepository {
	return stubProductRepo{}
}
func (stubRegistry) CustomerOrders() repositories.CustomerOrderRepository {
	return stubCustomerOrderRepo{}
}
func (stubRegistry) AuditLogs() repositories.AuditLogRepository {
	return stubAuditLogRepo{}
}
func (stubRegistry) Counters() repositories.CounterRepository {
	return stubCounterRepo{}
}
func (r stubRegistry) Health() repositories.HealthRepository {
	return r.health
}
func (stubRegistry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func TestNewContainerWiresAllServices(t *testing.T) {
	cfg := config.Config{
		Orders: config.OrdersConfig{StrictTransitions: true},
		Shipping: config.ShippingConfig{
			HomeCountry:        "US",
			DomesticCarrier:    "usps",
			DefaultTransitDays: 4,
		},
	}

	container, err := NewContainer(context.Background(), cfg, stubRegistry{health: stubHealthRepo{}},
		WithBuildInfo(services.BuildInfo{Version: "1.0.0"}),
	)
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}

	if container.Services.Orders == nil {
		t.Error("order service not wired")
	}
	if container.Services.Bulk == nil {
		t.Error("bulk service not wired")
	}
	if container.Services.Analytics == nil {
		t.Error("analytics service not wired")
	}
	if container.Services.Audit == nil {
		t.Error("audit service not wired")
	}
	if container.Services.System == nil {
		t.Error("system service not wired")
	}
}

func TestNewContainerWithoutHealthRepoSkipsSystemService(t *testing.T) {
	container, err := NewContainer(context.Background(), config.Config{}, stubRegistry{})
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	if container.Services.System != nil {
		t.Error("system service should be nil without a health repository")
	}
}

func TestNewContainerRequiresRegistry(t *testing.T) {
	if _, err := NewContainer(context.Background(), config.Config{}, nil); err == nil {
		t.Fatal("expected error for nil registry")
	}
}

func TestShippingPolicyFromConfig(t *testing.T) {
	policy := ShippingPolicyFromConfig(config.ShippingConfig{
		HomeCountry:          "DE",
		DomesticCarrier:      "dpd",
		InternationalCarrier: "dhl",
		DefaultTransitDays:   7,
		Carriers: map[string]config.CarrierConfig{
			"dhl": {StandardDays: 5, Tier: "express", TrackingURLTemplate: "https://track.dhl.test/{code}"},
		},
	})

	if policy.HomeCountry != "DE" || policy.DomesticCarrier != "dpd" || policy.InternationalCarrier != "dhl" {
		t.Errorf("policy = %+v", policy)
	}
	if policy.DefaultTransitDays != 7 {
		t.Errorf("default transit days = %d", policy.DefaultTransitDays)
	}
	carrier, ok := policy.Resolve("dhl")
	if !ok {
		t.Fatal("dhl carrier not mapped")
	}
	if carrier.StandardDays != 5 || carrier.Tier != "express" {
		t.Errorf("carrier = %+v", carrier)
	}
	if carrier.TrackingURLTemplate != "https://track.dhl.test/{code}" {
		t.Errorf("tracking template = %q", carrier.TrackingURLTemplate)
	}
}
