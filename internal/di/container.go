package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/swiftcart/api/internal/platform/config"
	"github.com/swiftcart/api/internal/repositories"
	"github.com/swiftcart/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Orders    services.OrderService
	Bulk      services.BulkService
	Analytics services.AnalyticsService
	Audit     services.AuditLogService
	System    services.SystemService
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// ContainerOption injects optional collaborators that only exist in some
// deployments (event publishing, refunds, report exports).
type ContainerOption func(*containerDeps)

type containerDeps struct {
	refunds services.RefundProcessor
	events  services.OrderEventPublisher
	reports services.ReportStore
	build   services.BuildInfo
	clock   func() time.Time
	logger  func(ctx context.Context, event string, fields map[string]any)
}

// WithRefundProcessor wires the payment provider used for refund submissions.
func WithRefundProcessor(refunds services.RefundProcessor) ContainerOption {
	return func(d *containerDeps) { d.refunds = refunds }
}

// WithOrderEventPublisher wires the Pub/Sub publisher for order lifecycle events.
func WithOrderEventPublisher(events services.OrderEventPublisher) ContainerOption {
	return func(d *containerDeps) { d.events = events }
}

// WithReportStore wires the object store used for analytics exports.
func WithReportStore(reports services.ReportStore) ContainerOption {
	return func(d *containerDeps) { d.reports = reports }
}

// WithBuildInfo records build metadata surfaced by the health endpoints.
func WithBuildInfo(build services.BuildInfo) ContainerOption {
	return func(d *containerDeps) { d.build = build }
}

// WithClock overrides the clock shared by all services, primarily for tests.
func WithClock(clock func() time.Time) ContainerOption {
	return func(d *containerDeps) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// WithServiceLogger wires the structured event logger used by the services.
func WithServiceLogger(logger func(ctx context.Context, event string, fields map[string]any)) ContainerOption {
	return func(d *containerDeps) { d.logger = logger }
}

// NewContainer constructs the runtime dependencies. Production wiring provides Firestore-backed
// repositories, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, opts ...ContainerOption) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	deps := containerDeps{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&deps)
		}
	}

	svc, err := buildServices(reg, cfg, deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients, background workers, or caches.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(reg repositories.Registry, cfg config.Config, deps containerDeps) (Services, error) {
	var svc Services

	auditSvc, err := services.NewAuditLogService(services.AuditLogServiceDeps{
		Repository: reg.AuditLogs(),
		Clock:      deps.clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build audit log service: %w", err)
	}
	svc.Audit = auditSvc

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:            reg.Orders(),
		Products:          reg.Products(),
		CustomerOrders:    reg.CustomerOrders(),
		Counters:          reg.Counters(),
		UnitOfWork:        reg,
		Shipping:          ShippingPolicyFromConfig(cfg.Shipping),
		StrictTransitions: cfg.Orders.StrictTransitions,
		Refunds:           deps.refunds,
		Events:            deps.events,
		Clock:             deps.clock,
		Logger:            deps.logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	bulkSvc, err := services.NewBulkService(services.BulkServiceDeps{
		Orders: reg.Orders(),
		Events: deps.events,
		Clock:  deps.clock,
		Logger: deps.logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build bulk service: %w", err)
	}
	svc.Bulk = bulkSvc

	analyticsSvc, err := services.NewAnalyticsService(services.AnalyticsServiceDeps{
		Orders:  reg.Orders(),
		Reports: deps.reports,
		Clock:   deps.clock,
		Logger:  deps.logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build analytics service: %w", err)
	}
	svc.Analytics = analyticsSvc

	if healthRepo := reg.Health(); healthRepo != nil {
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            deps.clock,
			Build:            deps.build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}

// ShippingPolicyFromConfig translates the configured carrier table into the
// policy consumed by the order service.
func ShippingPolicyFromConfig(cfg config.ShippingConfig) services.ShippingPolicy {
	policy := services.ShippingPolicy{
		HomeCountry:          cfg.HomeCountry,
		DomesticCarrier:      cfg.DomesticCarrier,
		InternationalCarrier: cfg.InternationalCarrier,
		DefaultTransitDays:   cfg.DefaultTransitDays,
	}
	if len(cfg.Carriers) > 0 {
		policy.Carriers = make(map[string]services.Carrier, len(cfg.Carriers))
		for name, carrier := range cfg.Carriers {
			policy.Carriers[name] = services.Carrier{
				Name:                name,
				TrackingURLTemplate: carrier.TrackingURLTemplate,
				StandardDays:        carrier.StandardDays,
				Tier:                carrier.Tier,
			}
		}
	}
	return policy
}
