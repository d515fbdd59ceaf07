package repositories

import (
	"context"
	"time"

	domain "github.com/swiftcart/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Products() ProductRepository
	CustomerOrders() CustomerOrderRepository
	AuditLogs() AuditLogRepository
	Counters() CounterRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists order documents and provides the admin query surface.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	// List runs the store-side portion of the filter. Implementations must
	// surface sort failures as ErrUnsortable so callers can fall back to an
	// unsorted retrieval.
	List(ctx context.Context, query OrderQuery) (domain.CursorPage[domain.Order], error)
	// ListAll streams every order created inside the range, unpaginated, for
	// analytics scans.
	ListAll(ctx context.Context, created domain.RangeQuery[time.Time]) ([]domain.Order, error)
	// BatchUpdate commits a set of field updates across documents as one
	// batched write. All-or-nothing once the commit boundary is crossed.
	BatchUpdate(ctx context.Context, updates []OrderBatchUpdate) error
}

// ProductRepository reads and adjusts catalog stock counters.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	// AdjustStock atomically adds delta to the product stock counter.
	AdjustStock(ctx context.Context, productID string, delta int) error
}

// CustomerOrderRepository maintains the denormalized per-customer order copies.
type CustomerOrderRepository interface {
	Upsert(ctx context.Context, customerID string, copy domain.CustomerOrder) error
	FindByID(ctx context.Context, customerID string, orderID string) (domain.CustomerOrder, error)
	ListByCustomer(ctx context.Context, customerID string, pager domain.Pagination) (domain.CursorPage[domain.CustomerOrder], error)
}

// AuditLogRepository persists immutable audit trail entries.
type AuditLogRepository interface {
	Append(ctx context.Context, entry domain.AuditLogEntry) error
	List(ctx context.Context, filter AuditLogFilter) (domain.CursorPage[domain.AuditLogEntry], error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Filter DTOs shared across repositories ------------------------------------

// OrderQuery is the store-side portion of an order listing.
type OrderQuery struct {
	Status     *domain.OrderStatus
	CustomerID string
	Email      string
	CreatedAt  domain.RangeQuery[time.Time]
	Priority   *domain.OrderPriority
	MinTotal   *float64
	SortField  domain.OrderSortField
	SortOrder  domain.SortOrder
	// Unsorted suppresses the order-by clause; used on the fallback path
	// after a sort failure.
	Unsorted   bool
	Pagination domain.Pagination
}

// OrderBatchUpdate describes one document's field updates inside a batched
// write. Nil pointers leave the corresponding field untouched.
type OrderBatchUpdate struct {
	OrderID       string
	Status        *domain.OrderStatus
	Priority      *domain.OrderPriority
	Tags          *[]string
	Notes         *[]domain.OrderNote
	StatusHistory *[]domain.StatusHistoryEntry
	UpdatedAt     *time.Time
}

// AuditLogFilter narrows audit trail listings.
type AuditLogFilter struct {
	TargetKind string
	TargetID   string
	Actor      string
	Action     string
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

// CounterConfig customises increment behaviour and bounds for a counter.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}
