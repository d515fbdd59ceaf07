package services

import (
	"context"
	"time"

	domain "github.com/swiftcart/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	SortOrder          = domain.SortOrder
	Order              = domain.Order
	OrderStatus        = domain.OrderStatus
	OrderPriority      = domain.OrderPriority
	OrderLineItem      = domain.OrderLineItem
	OrderTotals        = domain.OrderTotals
	OrderNote          = domain.OrderNote
	CustomerSnapshot   = domain.CustomerSnapshot
	CustomerOrder      = domain.CustomerOrder
	Address            = domain.Address
	Tracking           = domain.Tracking
	Refund             = domain.Refund
	StatusHistoryEntry = domain.StatusHistoryEntry
	Product            = domain.Product
	OrderFilter        = domain.OrderFilter
	BulkOperationKind  = domain.BulkOperationKind
	BulkResult         = domain.BulkResult
	BulkItemResult     = domain.BulkItemResult
	AnalyticsSummary   = domain.AnalyticsSummary
	AnalyticsExport    = domain.AnalyticsExport
	AuditLogEntry      = domain.AuditLogEntry
	SystemHealthReport = domain.SystemHealthReport
)

// OrderService owns the order lifecycle: intake, the status state machine,
// shipping attachment, the admin query surface, and the denormalized
// customer copies.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) (domain.CursorPage[Order], error)
	TransitionStatus(ctx context.Context, cmd TransitionCommand) (Order, error)
	AttachShipping(ctx context.Context, cmd AttachShippingCommand) (ShippingConfirmation, error)
	CancelOwnOrder(ctx context.Context, cmd CancelOwnOrderCommand) (Order, error)
	GetCustomerOrder(ctx context.Context, customerID string, orderID string) (CustomerOrder, error)
	ListCustomerOrders(ctx context.Context, customerID string, pager Pagination) (domain.CursorPage[CustomerOrder], error)
	SyncCustomerCopy(ctx context.Context, orderID string) error
}

// BulkService applies one operation across a bounded order batch with
// per-item accounting instead of all-or-nothing semantics.
type BulkService interface {
	Apply(ctx context.Context, cmd BulkCommand) (BulkResult, error)
}

// AnalyticsService reduces the order set into summary statistics and
// optionally renders them as downloadable reports.
type AnalyticsService interface {
	Summarize(ctx context.Context, query AnalyticsQuery) (AnalyticsSummary, error)
	Export(ctx context.Context, query AnalyticsQuery) (AnalyticsExport, error)
}

// AuditLogService records and lists admin mutations.
type AuditLogService interface {
	Record(ctx context.Context, cmd RecordAuditEntryCommand) error
	List(ctx context.Context, query AuditLogQuery) (domain.CursorPage[AuditLogEntry], error)
}

// SystemService aggregates operational health and build metadata.
type SystemService interface {
	Health(ctx context.Context) (SystemHealthReport, error)
}

// Command DTOs --------------------------------------------------------------

// CreateOrderCommand captures a storefront checkout handed over for fulfillment.
type CreateOrderCommand struct {
	Customer      CustomerSnapshot
	Items         []OrderLineItem
	Totals        OrderTotals
	ShippingAddr  Address
	PaymentMethod string
	PaymentRef    string
	Tags          []string
}

// TransitionCommand drives one status change on one order.
type TransitionCommand struct {
	OrderID string
	Target  OrderStatus
	Note    string
	ActorID string
	// ExpectedStatus rejects the transition when the stored status moved
	// underneath the admin's view.
	ExpectedStatus *OrderStatus

	DeclineReason string
	CancelReason  string

	RefundAmount *float64
	RefundReason string
	RefundMethod string

	Metadata map[string]string
}

// AttachShippingCommand attaches carrier tracking to a packed order.
type AttachShippingCommand struct {
	OrderID     string
	Carrier     string
	Code        string
	ServiceTier string
	Note        string
	ActorID     string
}

// ShippingConfirmation is returned after tracking attachment succeeds.
type ShippingConfirmation struct {
	OrderID           string
	Carrier           string
	Code              string
	URL               string
	EstimatedDelivery time.Time
}

// CancelOwnOrderCommand lets a customer cancel their own placed order.
type CancelOwnOrderCommand struct {
	OrderID    string
	CustomerID string
	Reason     string
}

// BulkCommand describes one operation applied to a batch of orders.
type BulkCommand struct {
	Kind     BulkOperationKind
	OrderIDs []string
	ActorID  string

	Status   OrderStatus
	Priority OrderPriority
	Tag      string
	Note     string
}

// AnalyticsQuery bounds the analytics scan to a creation-date window.
type AnalyticsQuery struct {
	From *time.Time
	To   *time.Time
	// TopN bounds the product/customer leaderboards; zero uses the default.
	TopN int
}

// RecordAuditEntryCommand captures one admin mutation for the audit trail.
type RecordAuditEntryCommand struct {
	Actor      string
	ActorEmail string
	Action     string
	TargetKind string
	TargetID   string
	Summary    string
	Metadata   map[string]string
}

// AuditLogQuery narrows audit listings.
type AuditLogQuery struct {
	TargetKind string
	TargetID   string
	Actor      string
	Action     string
	From       *time.Time
	To         *time.Time
	Pagination Pagination
}

// Shipping policy ------------------------------------------------------------

// Carrier describes one shipping carrier known to the fulfillment team.
type Carrier struct {
	Name                string
	TrackingURLTemplate string
	StandardDays        int
	Tier                string
}

// ShippingPolicy selects carriers and transit estimates for shipments.
type ShippingPolicy struct {
	HomeCountry          string
	DomesticCarrier      string
	InternationalCarrier string
	DefaultTransitDays   int
	Carriers             map[string]Carrier
}

// Resolve looks up a carrier by name, case-insensitively.
func (p ShippingPolicy) Resolve(name string) (Carrier, bool) {
	for key, carrier := range p.Carriers {
		if equalFoldTrim(key, name) || equalFoldTrim(carrier.Name, name) {
			return carrier, true
		}
	}
	return Carrier{}, false
}

// SelectFor picks the domestic carrier when the destination matches the
// seller's home country and the international carrier otherwise.
func (p ShippingPolicy) SelectFor(destinationCountry string) Carrier {
	name := p.InternationalCarrier
	if equalFoldTrim(destinationCountry, p.HomeCountry) {
		name = p.DomesticCarrier
	}
	if carrier, ok := p.Resolve(name); ok {
		return carrier
	}
	return Carrier{Name: name, StandardDays: p.DefaultTransitDays}
}

// TransitDays returns the carrier's standard transit time with the policy
// default as fallback.
func (p ShippingPolicy) TransitDays(carrierName string) int {
	if carrier, ok := p.Resolve(carrierName); ok && carrier.StandardDays > 0 {
		return carrier.StandardDays
	}
	if p.DefaultTransitDays > 0 {
		return p.DefaultTransitDays
	}
	return 5
}

// TrackingURL renders the carrier's tracking URL for a code, empty when the
// carrier has no template.
func (p ShippingPolicy) TrackingURL(carrierName string, code string) string {
	carrier, ok := p.Resolve(carrierName)
	if !ok || carrier.TrackingURLTemplate == "" {
		return ""
	}
	return expandTrackingTemplate(carrier.TrackingURLTemplate, code)
}
