package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sethvargo/go-retry"
	"golang.org/x/text/cases"

	domain "github.com/swiftcart/api/internal/domain"
	"github.com/swiftcart/api/internal/repositories"
)

const (
	orderEventCreated       = "order.created"
	orderEventStatusChanged = "order.status_changed"
	orderEventShipped       = "order.shipped"

	orderIDPrefix = "ord_"

	orderNumberCounter = "orders"

	projectionSyncAttempts = 3
	projectionSyncBackoff  = 100 * time.Millisecond
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order or a referenced product could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidStatus indicates a status outside the enumeration.
	ErrOrderInvalidStatus = errors.New("order: unknown status")
	// ErrOrderInvalidTransition indicates a transition the state machine does not allow.
	ErrOrderInvalidTransition = errors.New("order: transition not allowed")
	// ErrOrderConflict indicates the stored status moved underneath the caller.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderStore wraps record-store failures surfaced to callers.
	ErrOrderStore = errors.New("order: store failure")
)

// orderStateTransitions is the allowed-transition table. Out-of-table
// requests are either rejected or honored with a logged override depending
// on the strictTransitions setting.
var orderStateTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPlaced:    {domain.OrderStatusApproved, domain.OrderStatusDeclined, domain.OrderStatusCancelled},
	domain.OrderStatusApproved:  {domain.OrderStatusPacked, domain.OrderStatusCancelled},
	domain.OrderStatusPacked:    {domain.OrderStatusShipped, domain.OrderStatusCancelled},
	domain.OrderStatusShipped:   {domain.OrderStatusDelivered},
	domain.OrderStatusDelivered: {domain.OrderStatusRefunded},
	domain.OrderStatusCancelled: {domain.OrderStatusRefunded},
}

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string
	OrderID        string
	OrderNumber    string
	CustomerID     string
	PreviousStatus string
	CurrentStatus  string
	ActorID        string
	OccurredAt     time.Time
	Metadata       map[string]any
}

// RefundRequest asks the payment provider to return funds for an order.
type RefundRequest struct {
	PaymentRef string
	Amount     float64
	Reason     string
}

// RefundReceipt reports the provider-side reference of a submitted refund.
type RefundReceipt struct {
	ProviderRef string
}

// RefundProcessor submits refunds to the payment provider.
type RefundProcessor interface {
	SubmitRefund(ctx context.Context, req RefundRequest) (RefundReceipt, error)
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders         repositories.OrderRepository
	Products       repositories.ProductRepository
	CustomerOrders repositories.CustomerOrderRepository
	Counters       repositories.CounterRepository
	UnitOfWork     repositories.UnitOfWork

	Shipping ShippingPolicy
	// StrictTransitions rejects out-of-table transitions instead of
	// honoring them with a logged override.
	StrictTransitions bool

	Refunds     RefundProcessor
	Events      OrderEventPublisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders         repositories.OrderRepository
	products       repositories.ProductRepository
	customerOrders repositories.CustomerOrderRepository
	counters       repositories.CounterRepository
	unitOfWork     repositories.UnitOfWork

	shipping          ShippingPolicy
	strictTransitions bool

	refunds RefundProcessor
	events  OrderEventPublisher
	clock   func() time.Time
	newID   func() string
	logger  func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("order service: product repository is required")
	}
	if deps.CustomerOrders == nil {
		return nil, errors.New("order service: customer order repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:            deps.Orders,
		products:          deps.Products,
		customerOrders:    deps.CustomerOrders,
		counters:          deps.Counters,
		unitOfWork:        unit,
		shipping:          deps.Shipping,
		strictTransitions: deps.StrictTransitions,
		refunds:           deps.Refunds,
		events:            deps.Events,
		clock:             clock,
		newID:             idGen,
		logger:            logger,
	}, nil
}

func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	if strings.TrimSpace(cmd.Customer.ID) == "" {
		return Order{}, fmt.Errorf("%w: customer id is required", ErrOrderInvalidInput)
	}
	if len(cmd.Items) == 0 {
		return Order{}, fmt.Errorf("%w: at least one line item is required", ErrOrderInvalidInput)
	}
	for i, item := range cmd.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return Order{}, fmt.Errorf("%w: item %d is missing a product id", ErrOrderInvalidInput, i)
		}
		if item.Quantity <= 0 {
			return Order{}, fmt.Errorf("%w: item %d has a non-positive quantity", ErrOrderInvalidInput, i)
		}
		if item.UnitPrice < 0 {
			return Order{}, fmt.Errorf("%w: item %d has a negative unit price", ErrOrderInvalidInput, i)
		}
	}

	totals := cmd.Totals
	if totals.Total == 0 {
		totals.Total = totals.ComputedTotal()
	}
	if totals.Total < 0 || totals.ComputedTotal() < 0 {
		return Order{}, fmt.Errorf("%w: grand total must be non-negative", ErrOrderInvalidInput)
	}

	now := s.now()
	number, err := s.generateOrderNumber(ctx, now)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	order := Order{
		ID:            s.nextOrderID(),
		Number:        number,
		Customer:      cmd.Customer,
		Items:         cloneLineItems(cmd.Items),
		Totals:        totals,
		ShippingAddr:  cmd.ShippingAddr,
		PaymentMethod: strings.TrimSpace(cmd.PaymentMethod),
		PaymentRef:    strings.TrimSpace(cmd.PaymentRef),
		Status:        domain.OrderStatusPlaced,
		Tags:          normaliseTags(cmd.Tags),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.orders.Insert(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.syncCustomerCopyBestEffort(ctx, order)
	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCreated,
		OrderID:       order.ID,
		OrderNumber:   order.Number,
		CustomerID:    order.Customer.ID,
		CurrentStatus: string(order.Status),
		OccurredAt:    now,
	})

	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderFilter) (domain.CursorPage[Order], error) {
	if filter.Status != nil && !domain.ValidStatus(*filter.Status) {
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: %q", ErrOrderInvalidStatus, *filter.Status)
	}
	if filter.Priority != nil && !domain.ValidPriority(*filter.Priority) {
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: unknown priority %q", ErrOrderInvalidInput, *filter.Priority)
	}
	if filter.SortField == "" {
		filter.SortField = domain.OrderSortCreatedAt
	}
	if !domain.ValidOrderSortField(filter.SortField) {
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: unknown sort field %q", ErrOrderInvalidInput, filter.SortField)
	}
	if filter.SortOrder == "" {
		filter.SortOrder = domain.SortDesc
	}

	query := repositories.OrderQuery{
		Status:     filter.Status,
		CustomerID: strings.TrimSpace(filter.CustomerID),
		Email:      strings.TrimSpace(filter.Email),
		CreatedAt:  filter.CreatedAt,
		Priority:   filter.Priority,
		MinTotal:   filter.MinTotal,
		SortField:  filter.SortField,
		SortOrder:  filter.SortOrder,
	}

	clientSide := strings.TrimSpace(filter.Search) != "" || strings.TrimSpace(filter.Carrier) != ""
	if !clientSide {
		query.Pagination = filter.Pagination
	}

	page, err := s.orders.List(ctx, query)
	if errors.Is(err, repositories.ErrUnsortable) {
		// Heterogeneous documents can make the store reject the order-by
		// clause. Retry unsorted and sort the retrieved set in memory so the
		// listing stays available.
		s.logger(ctx, "order.list.sort.fallback", map[string]any{
			"sortField": string(filter.SortField),
			"error":     err.Error(),
		})
		query.Unsorted = true
		query.Pagination = Pagination{}
		page, err = s.orders.List(ctx, query)
		if err != nil {
			return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
		}
		sortOrders(page.Items, filter.SortField, filter.SortOrder)
		page.NextPageToken = ""
		page.Items = applyPageWindow(page.Items, filter.Pagination.PageSize, clientSide)
	} else if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}

	if clientSide {
		page.Items = filterOrdersClientSide(page.Items, filter)
		sortOrders(page.Items, filter.SortField, filter.SortOrder)
		page.NextPageToken = ""
		if size := filter.Pagination.PageSize; size > 0 && len(page.Items) > size {
			page.Items = page.Items[:size]
		}
	}

	return page, nil
}

func (s *orderService) TransitionStatus(ctx context.Context, cmd TransitionCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if !domain.ValidStatus(cmd.Target) {
		return Order{}, fmt.Errorf("%w: %q", ErrOrderInvalidStatus, cmd.Target)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if cmd.ExpectedStatus != nil && order.Status != *cmd.ExpectedStatus {
		return Order{}, fmt.Errorf("%w: expected status %q but was %q", ErrOrderConflict, *cmd.ExpectedStatus, order.Status)
	}

	prevStatus := order.Status
	now := s.now()

	if !canTransition(order.Status, cmd.Target) {
		if s.strictTransitions {
			return Order{}, fmt.Errorf("%w: %s to %s", ErrOrderInvalidTransition, order.Status, cmd.Target)
		}
		// Admin override escape valve: honor the request but leave a trace.
		s.logger(ctx, "order.transition.override", map[string]any{
			"order": order.ID,
			"from":  string(order.Status),
			"to":    string(cmd.Target),
			"actor": cmd.ActorID,
		})
	}

	s.applyTransition(&order, cmd, now)

	if cmd.Target == domain.OrderStatusRefunded {
		s.submitProviderRefund(ctx, &order, cmd)
	}

	restock := (cmd.Target == domain.OrderStatusDeclined || cmd.Target == domain.OrderStatusCancelled) && !order.InventoryRestored
	if restock {
		order.InventoryRestored = true
	}

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if restock {
			for _, item := range order.Items {
				if err := s.products.AdjustStock(txCtx, item.ProductID, item.Quantity); err != nil {
					return s.mapRepositoryError(err)
				}
			}
		}
		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.syncCustomerCopyBestEffort(ctx, order)
	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        order.ID,
		OrderNumber:    order.Number,
		CustomerID:     order.Customer.ID,
		PreviousStatus: string(prevStatus),
		CurrentStatus:  string(order.Status),
		ActorID:        cmd.ActorID,
		OccurredAt:     now,
	})

	return order, nil
}

func (s *orderService) AttachShipping(ctx context.Context, cmd AttachShippingCommand) (ShippingConfirmation, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return ShippingConfirmation{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	carrierName := strings.TrimSpace(cmd.Carrier)
	code := strings.TrimSpace(cmd.Code)
	if carrierName == "" {
		return ShippingConfirmation{}, fmt.Errorf("%w: carrier is required", ErrOrderInvalidInput)
	}
	if code == "" {
		return ShippingConfirmation{}, fmt.Errorf("%w: tracking code is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return ShippingConfirmation{}, s.mapRepositoryError(err)
	}
	if order.Status != domain.OrderStatusPacked && order.Status != domain.OrderStatusShipped {
		return ShippingConfirmation{}, fmt.Errorf("%w: shipping requires a packed or shipped order, status is %s", ErrOrderInvalidTransition, order.Status)
	}

	now := s.now()
	eta := now.AddDate(0, 0, s.shipping.TransitDays(carrierName))
	tier := strings.TrimSpace(cmd.ServiceTier)
	if tier == "" {
		if carrier, ok := s.shipping.Resolve(carrierName); ok {
			tier = carrier.Tier
		}
	}

	order.Tracking = &domain.Tracking{
		Carrier:           carrierName,
		Code:              code,
		URL:               s.shipping.TrackingURL(carrierName, code),
		ServiceTier:       tier,
		EstimatedDelivery: &eta,
	}
	if order.Status != domain.OrderStatusShipped {
		order.Status = domain.OrderStatusShipped
		order.ShippedAt = &now
	}
	note := strings.TrimSpace(cmd.Note)
	if note == "" {
		note = fmt.Sprintf("shipped via %s (%s)", carrierName, code)
	}
	order.StatusHistory = append(order.StatusHistory, domain.StatusHistoryEntry{
		Status:    domain.OrderStatusShipped,
		At:        now,
		Note:      note,
		UpdatedBy: strings.TrimSpace(cmd.ActorID),
	})
	order.UpdatedAt = now

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return ShippingConfirmation{}, err
	}

	s.syncCustomerCopyBestEffort(ctx, order)
	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventShipped,
		OrderID:       order.ID,
		OrderNumber:   order.Number,
		CustomerID:    order.Customer.ID,
		CurrentStatus: string(order.Status),
		ActorID:       cmd.ActorID,
		OccurredAt:    now,
		Metadata: map[string]any{
			"carrier": carrierName,
			"code":    code,
		},
	})

	return ShippingConfirmation{
		OrderID:           order.ID,
		Carrier:           carrierName,
		Code:              code,
		URL:               order.Tracking.URL,
		EstimatedDelivery: eta,
	}, nil
}

func (s *orderService) CancelOwnOrder(ctx context.Context, cmd CancelOwnOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	customerID := strings.TrimSpace(cmd.CustomerID)
	if orderID == "" || customerID == "" {
		return Order{}, fmt.Errorf("%w: order id and customer id are required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	// Treat a foreign order like a missing one so customers cannot probe ids.
	if order.Customer.ID != customerID {
		return Order{}, fmt.Errorf("%w: order %s", ErrOrderNotFound, orderID)
	}
	if order.Status != domain.OrderStatusPlaced {
		return Order{}, fmt.Errorf("%w: only placed orders can be cancelled by the customer", ErrOrderInvalidTransition)
	}

	return s.TransitionStatus(ctx, TransitionCommand{
		OrderID:      orderID,
		Target:       domain.OrderStatusCancelled,
		Note:         "cancelled by customer",
		ActorID:      customerID,
		CancelReason: strings.TrimSpace(cmd.Reason),
	})
}

func (s *orderService) GetCustomerOrder(ctx context.Context, customerID string, orderID string) (CustomerOrder, error) {
	if strings.TrimSpace(customerID) == "" || strings.TrimSpace(orderID) == "" {
		return CustomerOrder{}, fmt.Errorf("%w: customer id and order id are required", ErrOrderInvalidInput)
	}
	copy, err := s.customerOrders.FindByID(ctx, customerID, orderID)
	if err != nil {
		return CustomerOrder{}, s.mapRepositoryError(err)
	}
	return copy, nil
}

func (s *orderService) ListCustomerOrders(ctx context.Context, customerID string, pager Pagination) (domain.CursorPage[CustomerOrder], error) {
	if strings.TrimSpace(customerID) == "" {
		return domain.CursorPage[CustomerOrder]{}, fmt.Errorf("%w: customer id is required", ErrOrderInvalidInput)
	}
	page, err := s.customerOrders.ListByCustomer(ctx, customerID, pager)
	if err != nil {
		return domain.CursorPage[CustomerOrder]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

// SyncCustomerCopy rebuilds the denormalized copy for one order. Unlike the
// best-effort sync after writes, failures here surface to the caller; the
// internal resync endpoint uses this as the dead-letter path.
func (s *orderService) SyncCustomerCopy(ctx context.Context, orderID string) error {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return s.mapRepositoryError(err)
	}
	if err := s.customerOrders.Upsert(ctx, order.Customer.ID, buildCustomerCopy(order)); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

// applyTransition mutates the order for the target status: exactly one
// history entry, the status-specific timestamp and actor fields, and the
// side-channel records for decline, cancel, and refund.
func (s *orderService) applyTransition(order *Order, cmd TransitionCommand, now time.Time) {
	actor := strings.TrimSpace(cmd.ActorID)
	note := strings.TrimSpace(cmd.Note)
	if note == "" {
		note = fmt.Sprintf("status changed to %s", cmd.Target)
	}

	order.Status = cmd.Target
	order.UpdatedAt = now
	order.StatusHistory = append(order.StatusHistory, domain.StatusHistoryEntry{
		Status:    cmd.Target,
		At:        now,
		Note:      note,
		UpdatedBy: actor,
		Metadata:  cloneStringValues(cmd.Metadata),
	})

	switch cmd.Target {
	case domain.OrderStatusApproved:
		order.ApprovedAt = &now
		order.ApprovedBy = actor
		if order.Priority == "" {
			order.Priority = domain.PriorityNormal
		}
	case domain.OrderStatusPacked:
		order.PackedAt = &now
		if order.Tracking == nil {
			carrier := s.shipping.SelectFor(order.ShippingAddr.Country)
			order.Tracking = &domain.Tracking{
				Carrier:     carrier.Name,
				ServiceTier: carrier.Tier,
			}
		}
	case domain.OrderStatusShipped:
		order.ShippedAt = &now
	case domain.OrderStatusDelivered:
		order.DeliveredAt = &now
	case domain.OrderStatusDeclined:
		if reason := strings.TrimSpace(cmd.DeclineReason); reason != "" {
			order.DeclineReason = reason
		} else {
			order.DeclineReason = note
		}
	case domain.OrderStatusCancelled:
		if reason := strings.TrimSpace(cmd.CancelReason); reason != "" {
			order.CancelReason = reason
		} else {
			order.CancelReason = note
		}
	case domain.OrderStatusRefunded:
		amount := order.Totals.Total
		if cmd.RefundAmount != nil && *cmd.RefundAmount > 0 {
			amount = *cmd.RefundAmount
		}
		order.Refund = &domain.Refund{
			Amount: amount,
			Reason: strings.TrimSpace(cmd.RefundReason),
			Method: strings.TrimSpace(cmd.RefundMethod),
			At:     now,
		}
	}
}

// submitProviderRefund asks the payment provider to return funds. Failures
// are logged only; the refund stays recorded on the order for manual
// settlement.
func (s *orderService) submitProviderRefund(ctx context.Context, order *Order, cmd TransitionCommand) {
	if s.refunds == nil || order.Refund == nil || order.PaymentRef == "" {
		return
	}
	receipt, err := s.refunds.SubmitRefund(ctx, RefundRequest{
		PaymentRef: order.PaymentRef,
		Amount:     order.Refund.Amount,
		Reason:     order.Refund.Reason,
	})
	if err != nil {
		s.logger(ctx, "order.refund.provider.failed", map[string]any{
			"order": order.ID,
			"error": err.Error(),
		})
		return
	}
	order.Refund.ProviderRef = receipt.ProviderRef
}

// syncCustomerCopyBestEffort mirrors the order into the customer's own
// order list. The copy is eventually consistent: failures are retried with
// backoff and then logged, never surfaced.
func (s *orderService) syncCustomerCopyBestEffort(ctx context.Context, order Order) {
	if order.Customer.ID == "" {
		return
	}
	copy := buildCustomerCopy(order)
	backoff := retry.WithMaxRetries(projectionSyncAttempts, retry.NewExponential(projectionSyncBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := s.customerOrders.Upsert(ctx, order.Customer.ID, copy); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		s.logger(ctx, "order.customer_copy.sync.failed", map[string]any{
			"order":    order.ID,
			"customer": order.Customer.ID,
			"error":    err.Error(),
		})
	}
}

func buildCustomerCopy(order Order) CustomerOrder {
	itemCount := 0
	for _, item := range order.Items {
		itemCount += item.Quantity
	}
	copy := CustomerOrder{
		OrderID:   order.ID,
		Number:    order.Number,
		Status:    order.Status,
		Total:     order.Totals.Total,
		ItemCount: itemCount,
		CreatedAt: order.CreatedAt,
		UpdatedAt: order.UpdatedAt,
	}
	if order.Tracking != nil {
		tracking := *order.Tracking
		copy.Tracking = &tracking
	}
	return copy
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrOrderStore, err)
		}
	}

	return err
}

func (s *orderService) generateOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, orderNumberCounter, 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SC-%04d-%06d", now.Year(), seq), nil
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) nextOrderID() string {
	return orderIDPrefix + s.newID()
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if event.Metadata != nil {
		event.Metadata = maps.Clone(event.Metadata)
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": event.CurrentStatus,
		})
	}
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func canTransition(current, target domain.OrderStatus) bool {
	next, ok := orderStateTransitions[current]
	if !ok {
		return false
	}
	return slices.Contains(next, target)
}

// filterOrdersClientSide applies the criteria the store cannot index:
// folded free-text search and carrier match.
func filterOrdersClientSide(orders []Order, filter OrderFilter) []Order {
	search := strings.TrimSpace(filter.Search)
	carrier := strings.TrimSpace(filter.Carrier)
	if search == "" && carrier == "" {
		return orders
	}

	kept := make([]Order, 0, len(orders))
	for _, order := range orders {
		if carrier != "" {
			if order.Tracking == nil || !equalFoldTrim(order.Tracking.Carrier, carrier) {
				continue
			}
		}
		if search != "" && !orderMatchesSearch(order, search) {
			continue
		}
		kept = append(kept, order)
	}
	return kept
}

var searchFolder = cases.Fold()

func orderMatchesSearch(order Order, term string) bool {
	folded := searchFolder.String(term)
	if foldContains(order.Number, folded) ||
		foldContains(order.Customer.Name, folded) ||
		foldContains(order.Customer.Email, folded) {
		return true
	}
	for _, item := range order.Items {
		if foldContains(item.Name, folded) {
			return true
		}
	}
	return false
}

func foldContains(haystack, foldedNeedle string) bool {
	if haystack == "" {
		return false
	}
	return strings.Contains(searchFolder.String(haystack), foldedNeedle)
}

// sortOrders sorts in memory with a document-ID tiebreak so repeated
// queries over the same data return identical orderings.
func sortOrders(orders []Order, field domain.OrderSortField, direction SortOrder) {
	asc := direction == domain.SortAsc
	sort.SliceStable(orders, func(i, j int) bool {
		a, b := orders[i], orders[j]
		var less, equal bool
		switch field {
		case domain.OrderSortUpdatedAt:
			less = a.UpdatedAt.Before(b.UpdatedAt)
			equal = a.UpdatedAt.Equal(b.UpdatedAt)
		case domain.OrderSortTotal:
			less = a.Totals.Total < b.Totals.Total
			equal = a.Totals.Total == b.Totals.Total
		default:
			less = a.CreatedAt.Before(b.CreatedAt)
			equal = a.CreatedAt.Equal(b.CreatedAt)
		}
		if equal {
			if asc {
				return a.ID < b.ID
			}
			return a.ID > b.ID
		}
		if asc {
			return less
		}
		return !less
	})
}

func applyPageWindow(orders []Order, pageSize int, clientSide bool) []Order {
	if clientSide || pageSize <= 0 || len(orders) <= pageSize {
		return orders
	}
	return orders[:pageSize]
}

func cloneLineItems(items []OrderLineItem) []OrderLineItem {
	if items == nil {
		return nil
	}
	return slices.Clone(items)
}

func cloneStringValues(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	return maps.Clone(values)
}

func normaliseTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

func equalFoldTrim(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func expandTrackingTemplate(template string, code string) string {
	if strings.Contains(template, "{code}") {
		return strings.ReplaceAll(template, "{code}", code)
	}
	return template + code
}
