package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// CursorPage wraps a page of results together with the token for the next page.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// OrderStatus enumerates the order lifecycle states. Values are part of the
// wire contract shared with the storefront and are case-sensitive.
type OrderStatus string

const (
	// OrderStatusPlaced is the initial status assigned at checkout.
	OrderStatusPlaced OrderStatus = "Placed"
	// OrderStatusApproved marks an order accepted for fulfillment.
	OrderStatusApproved OrderStatus = "Approved"
	// OrderStatusPacked marks an order packed and awaiting carrier pickup.
	OrderStatusPacked OrderStatus = "Packed"
	// OrderStatusShipped marks an order handed to the carrier.
	OrderStatusShipped OrderStatus = "Shipped"
	// OrderStatusDelivered marks an order received by the customer.
	OrderStatusDelivered OrderStatus = "Delivered"
	// OrderStatusDeclined is a terminal status for orders rejected before fulfillment.
	OrderStatusDeclined OrderStatus = "Declined"
	// OrderStatusCancelled marks an order cancelled before delivery.
	OrderStatusCancelled OrderStatus = "Cancelled"
	// OrderStatusRefunded is a terminal status for orders refunded after delivery or cancellation.
	OrderStatusRefunded OrderStatus = "Refunded"
)

// OrderStatuses lists every valid status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusPlaced,
	OrderStatusApproved,
	OrderStatusPacked,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusDeclined,
	OrderStatusCancelled,
	OrderStatusRefunded,
}

// ValidStatus reports whether the value is a member of the status enumeration.
func ValidStatus(value OrderStatus) bool {
	for _, status := range OrderStatuses {
		if status == value {
			return true
		}
	}
	return false
}

// TerminalStatus reports whether no further transitions leave the status.
func TerminalStatus(status OrderStatus) bool {
	return status == OrderStatusDeclined || status == OrderStatusRefunded
}

// OrderPriority enumerates fulfillment priority levels.
type OrderPriority string

const (
	// PriorityLow marks orders that may be deferred.
	PriorityLow OrderPriority = "Low"
	// PriorityNormal is the default priority assigned on approval.
	PriorityNormal OrderPriority = "Normal"
	// PriorityHigh marks orders to be fulfilled ahead of the queue.
	PriorityHigh OrderPriority = "High"
	// PriorityUrgent marks orders needing immediate handling.
	PriorityUrgent OrderPriority = "Urgent"
)

// ValidPriority reports whether the value is a recognised priority level.
func ValidPriority(value OrderPriority) bool {
	switch value {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// CustomerSnapshot captures customer contact details at order-creation time.
type CustomerSnapshot struct {
	ID    string
	Name  string
	Email string
	Phone string
}

// OrderLineItem is an immutable snapshot of a purchased catalog item.
// Product name, price, and image do not change retroactively when the
// catalog entry changes later.
type OrderLineItem struct {
	ProductID string
	Name      string
	UnitPrice float64
	Quantity  int
	ImageURL  string
}

// OrderTotals is the financial breakdown of an order.
type OrderTotals struct {
	Subtotal float64
	Tax      float64
	Discount float64
	Shipping float64
	Total    float64
}

// ComputedTotal reconstructs the grand total from the breakdown.
func (t OrderTotals) ComputedTotal() float64 {
	return t.Subtotal + t.Tax + t.Shipping - t.Discount
}

// Address is a shipping address snapshot.
type Address struct {
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// StatusHistoryEntry is an immutable audit record of one status change.
// Entries are appended exactly once per transition and never edited,
// removed, or reordered.
type StatusHistoryEntry struct {
	Status    OrderStatus
	At        time.Time
	Note      string
	UpdatedBy string
	Metadata  map[string]string
}

// Tracking describes shipment tracking attached no earlier than Packed.
type Tracking struct {
	Carrier           string
	Code              string
	URL               string
	ServiceTier       string
	EstimatedDelivery *time.Time
}

// Refund records the outcome of a refund transition.
type Refund struct {
	Amount      float64
	Reason      string
	Method      string
	ProviderRef string
	At          time.Time
}

// Order is the central entity tracked through the fulfillment lifecycle.
// Orders are created once at checkout in status Placed and mutated only
// through status transitions or shipping attachment; terminal statuses are
// statuses, not deletions.
type Order struct {
	ID            string
	Number        string
	Customer      CustomerSnapshot
	Items         []OrderLineItem
	Totals        OrderTotals
	ShippingAddr  Address
	PaymentMethod string
	PaymentRef    string

	Status   OrderStatus
	Priority OrderPriority
	Tags     []string
	Notes    []OrderNote

	Tracking *Tracking
	Refund   *Refund

	StatusHistory []StatusHistoryEntry

	DeclineReason     string
	CancelReason      string
	InventoryRestored bool

	ApprovedAt  *time.Time
	ApprovedBy  string
	PackedAt    *time.Time
	ShippedAt   *time.Time
	DeliveredAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderNote is a timestamped free-form admin note.
type OrderNote struct {
	Text      string
	Author    string
	CreatedAt time.Time
}

// Product is the referenced catalog entity. Only the stock counter is
// written by this system, as a side effect of decline and cancellation.
type Product struct {
	ID        string
	Name      string
	Price     float64
	Stock     int
	UpdatedAt time.Time
}

// CustomerOrder is the denormalized per-customer copy of an order's key
// fields, kept best-effort for fast customer-facing listings.
type CustomerOrder struct {
	OrderID   string
	Number    string
	Status    OrderStatus
	Total     float64
	ItemCount int
	Tracking  *Tracking
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AuditLogEntry records an admin mutation for compliance review.
type AuditLogEntry struct {
	ID         string
	Actor      string
	ActorEmail string
	Action     string
	TargetKind string
	TargetID   string
	Summary    string
	Metadata   map[string]string
	CreatedAt  time.Time
}

// BulkOperationKind enumerates the operations applicable to an order batch.
type BulkOperationKind string

const (
	// BulkStatusChange applies one status to every order in the batch.
	BulkStatusChange BulkOperationKind = "status-change"
	// BulkPriorityChange applies one priority to every order in the batch.
	BulkPriorityChange BulkOperationKind = "priority-change"
	// BulkTagAdd adds a tag to every order in the batch.
	BulkTagAdd BulkOperationKind = "tag-add"
	// BulkTagRemove removes a tag from every order in the batch.
	BulkTagRemove BulkOperationKind = "tag-remove"
	// BulkNoteAppend appends a note to every order in the batch.
	BulkNoteAppend BulkOperationKind = "note-append"
)

// ValidBulkOperationKind reports whether the kind is recognised.
func ValidBulkOperationKind(kind BulkOperationKind) bool {
	switch kind {
	case BulkStatusChange, BulkPriorityChange, BulkTagAdd, BulkTagRemove, BulkNoteAppend:
		return true
	default:
		return false
	}
}

// BulkItemResult reports the outcome for one order in a bulk operation.
type BulkItemResult struct {
	OrderID string
	OK      bool
	Reason  string
}

// BulkResult aggregates per-item outcomes of a bulk operation.
type BulkResult struct {
	Total     int
	Succeeded int
	Failed    int
	Items     []BulkItemResult
}

// OrderSortField enumerates fields the order listing can sort by.
type OrderSortField string

const (
	// OrderSortCreatedAt sorts by order creation time.
	OrderSortCreatedAt OrderSortField = "createdAt"
	// OrderSortUpdatedAt sorts by last update time.
	OrderSortUpdatedAt OrderSortField = "updatedAt"
	// OrderSortTotal sorts by grand total.
	OrderSortTotal OrderSortField = "total"
)

// ValidOrderSortField reports whether the field is sortable.
func ValidOrderSortField(field OrderSortField) bool {
	switch field {
	case OrderSortCreatedAt, OrderSortUpdatedAt, OrderSortTotal:
		return true
	default:
		return false
	}
}

// OrderFilter captures the declarative criteria of an order listing.
// Status, customer, date range, priority, and minimum total translate to
// store-side filters; free-text search and carrier match are applied after
// retrieval because the store cannot index them cheaply.
type OrderFilter struct {
	Status     *OrderStatus
	CustomerID string
	Email      string
	CreatedAt  RangeQuery[time.Time]
	Priority   *OrderPriority
	MinTotal   *float64

	Search  string
	Carrier string

	SortField OrderSortField
	SortOrder SortOrder

	Pagination Pagination
}

// StatusBucket is one row of a status distribution.
type StatusBucket struct {
	Status OrderStatus
	Count  int
	Amount float64
}

// ProductStat aggregates sales for a single product.
type ProductStat struct {
	ProductID string
	Name      string
	Quantity  int
	Revenue   float64
}

// CustomerStat aggregates spend for a single customer.
type CustomerStat struct {
	CustomerID string
	Name       string
	Email      string
	Orders     int
	Spend      float64
}

// DailyStat aggregates orders placed on one calendar day.
type DailyStat struct {
	Day     string
	Orders  int
	Revenue float64
}

// AnalyticsSummary is the read-only reduction over an order set.
type AnalyticsSummary struct {
	From         time.Time
	To           time.Time
	OrderCount   int
	Revenue      float64
	ByStatus     []StatusBucket
	TopProducts  []ProductStat
	TopCustomers []CustomerStat
	ByDay        []DailyStat
}

// AnalyticsExport describes a rendered report uploaded to object storage.
type AnalyticsExport struct {
	ObjectPath  string
	DownloadURL string
	ExpiresAt   time.Time
	RowCount    int
}
