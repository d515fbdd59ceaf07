package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/swiftcart/api/internal/platform/firestore"
	"github.com/swiftcart/api/internal/repositories"
)

type txContextKey struct{}

// transactionFrom extracts the ambient Firestore transaction when the call
// runs inside Registry.RunInTx.
func transactionFrom(ctx context.Context) (*firestore.Transaction, bool) {
	if ctx == nil {
		return nil, false
	}
	tx, ok := ctx.Value(txContextKey{}).(*firestore.Transaction)
	return tx, ok && tx != nil
}

// Registry bundles the Firestore repository implementations and implements
// the unit-of-work boundary by threading the transaction through context.
type Registry struct {
	provider *pfirestore.Provider

	orders         *OrderRepository
	products       *ProductRepository
	customerOrders *CustomerOrderRepository
	auditLogs      *AuditLogRepository
	counters       *CounterRepository
	health         repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry wires every repository against the shared provider.
func NewRegistry(provider *pfirestore.Provider, health repositories.HealthRepository) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	products, err := NewProductRepository(provider)
	if err != nil {
		return nil, err
	}
	customerOrders, err := NewCustomerOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	auditLogs, err := NewAuditLogRepository(provider)
	if err != nil {
		return nil, err
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:       provider,
		orders:         orders,
		products:       products,
		customerOrders: customerOrders,
		auditLogs:      auditLogs,
		counters:       counters,
		health:         health,
	}, nil
}

// Close releases the shared Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

// Orders returns the order repository.
func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

// Products returns the product repository.
func (r *Registry) Products() repositories.ProductRepository { return r.products }

// CustomerOrders returns the denormalized customer-copy repository.
func (r *Registry) CustomerOrders() repositories.CustomerOrderRepository { return r.customerOrders }

// AuditLogs returns the audit trail repository.
func (r *Registry) AuditLogs() repositories.AuditLogRepository { return r.auditLogs }

// Counters returns the sequence counter repository.
func (r *Registry) Counters() repositories.CounterRepository { return r.counters }

// Health returns the dependency health repository.
func (r *Registry) Health() repositories.HealthRepository { return r.health }

// RunInTx executes fn inside a Firestore transaction. Repository calls made
// with the derived context join the transaction; Firestore requires every
// read to precede the first write.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil || r.provider == nil {
		return errors.New("registry not initialised")
	}
	if fn == nil {
		return errors.New("registry: transaction function is required")
	}
	return r.provider.RunTransaction(ctx, func(txCtx context.Context, tx *firestore.Transaction) error {
		return fn(context.WithValue(txCtx, txContextKey{}, tx))
	})
}
