package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	domain "github.com/swiftcart/api/internal/domain"
	"github.com/swiftcart/api/internal/repositories"
)

// bulkMaxOrders bounds one bulk request; larger batches must be split by the
// caller.
const bulkMaxOrders = 50

var (
	// ErrBulkInvalidInput signals a malformed bulk request.
	ErrBulkInvalidInput = errors.New("bulk: invalid input")
	// ErrBulkLimitExceeded signals the batch is larger than the per-request cap.
	ErrBulkLimitExceeded = errors.New("bulk: too many orders in one request")
)

// BulkServiceDeps bundles collaborators for the bulk coordinator.
type BulkServiceDeps struct {
	Orders repositories.OrderRepository
	Events OrderEventPublisher

	Clock  func() time.Time
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type bulkService struct {
	orders repositories.OrderRepository
	events OrderEventPublisher
	clock  func() time.Time
	logger func(context.Context, string, map[string]any)
}

// NewBulkService wires dependencies into a concrete BulkService implementation.
func NewBulkService(deps BulkServiceDeps) (BulkService, error) {
	if deps.Orders == nil {
		return nil, errors.New("bulk service: order repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &bulkService{orders: deps.Orders, events: deps.Events, clock: clock, logger: logger}, nil
}

// Apply runs one operation across the batch. Every order is validated first;
// passing orders are then written in a single atomic commit, so a storage
// failure leaves the whole batch untouched. Validation failures never block
// the rest of the batch, they only mark their own item.
func (s *bulkService) Apply(ctx context.Context, cmd BulkCommand) (BulkResult, error) {
	if err := validateBulkCommand(cmd); err != nil {
		return BulkResult{}, err
	}
	if len(cmd.OrderIDs) > bulkMaxOrders {
		return BulkResult{}, fmt.Errorf("%w: %d orders exceeds the cap of %d", ErrBulkLimitExceeded, len(cmd.OrderIDs), bulkMaxOrders)
	}

	now := s.clock()
	result := BulkResult{Total: len(cmd.OrderIDs)}
	items := make([]domain.BulkItemResult, 0, len(cmd.OrderIDs))
	updates := make([]repositories.OrderBatchUpdate, 0, len(cmd.OrderIDs))
	seen := make(map[string]struct{}, len(cmd.OrderIDs))

	for _, rawID := range cmd.OrderIDs {
		orderID := strings.TrimSpace(rawID)
		if orderID == "" {
			items = append(items, domain.BulkItemResult{OrderID: rawID, Reason: "empty order id"})
			continue
		}
		if _, dup := seen[orderID]; dup {
			items = append(items, domain.BulkItemResult{OrderID: orderID, Reason: "duplicate order id in batch"})
			continue
		}
		seen[orderID] = struct{}{}

		order, err := s.orders.FindByID(ctx, orderID)
		if err != nil {
			if isRepoNotFound(err) {
				items = append(items, domain.BulkItemResult{OrderID: orderID, Reason: "order not found"})
				continue
			}
			return BulkResult{}, fmt.Errorf("%w: %v", ErrOrderStore, err)
		}

		update, reason := buildBulkUpdate(order, cmd, now)
		if reason != "" {
			items = append(items, domain.BulkItemResult{OrderID: orderID, Reason: reason})
			continue
		}
		// A zero OrderID marks an already-satisfied item with nothing to write.
		if update.OrderID != "" {
			updates = append(updates, update)
		}
		items = append(items, domain.BulkItemResult{OrderID: orderID, OK: true})
	}

	if len(updates) > 0 {
		if err := s.orders.BatchUpdate(ctx, updates); err != nil {
			return BulkResult{}, fmt.Errorf("%w: %v", ErrOrderStore, err)
		}
	}

	for _, item := range items {
		if item.OK {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}
	result.Items = items

	s.logger(ctx, "bulk.applied", map[string]any{
		"kind":      string(cmd.Kind),
		"total":     result.Total,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
		"actor":     cmd.ActorID,
	})
	s.publishSummary(ctx, cmd, result, now)
	return result, nil
}

// publishSummary emits one best-effort event per batch so downstream consumers
// see bulk mutations without an event per order.
func (s *bulkService) publishSummary(ctx context.Context, cmd BulkCommand, result BulkResult, now time.Time) {
	if s.events == nil {
		return
	}
	event := OrderEvent{
		Type:       "orders.bulk_applied",
		ActorID:    strings.TrimSpace(cmd.ActorID),
		OccurredAt: now,
		Metadata: map[string]any{
			"kind":      string(cmd.Kind),
			"total":     result.Total,
			"succeeded": result.Succeeded,
			"failed":    result.Failed,
		},
	}
	if cmd.Kind == domain.BulkStatusChange && domain.ValidStatus(cmd.Status) {
		event.CurrentStatus = string(cmd.Status)
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "bulk.event.publish.failed", map[string]any{
			"kind":  string(cmd.Kind),
			"error": err.Error(),
		})
	}
}

// validateBulkCommand guards only the command shape. Payload values are
// checked per item so a bad value fails each order individually instead of
// rejecting the whole batch.
func validateBulkCommand(cmd BulkCommand) error {
	if !domain.ValidBulkOperationKind(cmd.Kind) {
		return fmt.Errorf("%w: unknown operation %q", ErrBulkInvalidInput, cmd.Kind)
	}
	if len(cmd.OrderIDs) == 0 {
		return fmt.Errorf("%w: at least one order id is required", ErrBulkInvalidInput)
	}
	return nil
}

// buildBulkUpdate validates one order against the operation and, when it
// passes, produces its share of the batched write. A non-empty reason marks
// the item failed.
func buildBulkUpdate(order domain.Order, cmd BulkCommand, now time.Time) (repositories.OrderBatchUpdate, string) {
	update := repositories.OrderBatchUpdate{OrderID: order.ID, UpdatedAt: &now}
	actor := strings.TrimSpace(cmd.ActorID)

	switch cmd.Kind {
	case domain.BulkStatusChange:
		if !domain.ValidStatus(cmd.Status) {
			return repositories.OrderBatchUpdate{}, fmt.Sprintf("unknown status %q", cmd.Status)
		}
		if order.Status == cmd.Status {
			return repositories.OrderBatchUpdate{}, fmt.Sprintf("order already %s", order.Status)
		}
		if !canTransition(order.Status, cmd.Status) {
			return repositories.OrderBatchUpdate{}, fmt.Sprintf("transition from %s to %s is not allowed", order.Status, cmd.Status)
		}
		status := cmd.Status
		history := append(slices.Clone(order.StatusHistory), domain.StatusHistoryEntry{
			Status:    status,
			At:        now,
			Note:      bulkHistoryNote(cmd),
			UpdatedBy: actor,
		})
		update.Status = &status
		update.StatusHistory = &history

	case domain.BulkPriorityChange:
		if !domain.ValidPriority(cmd.Priority) {
			return repositories.OrderBatchUpdate{}, fmt.Sprintf("unknown priority %q", cmd.Priority)
		}
		priority := cmd.Priority
		update.Priority = &priority

	case domain.BulkTagAdd:
		tag := strings.TrimSpace(cmd.Tag)
		if tag == "" {
			return repositories.OrderBatchUpdate{}, "tag is required"
		}
		if slices.Contains(order.Tags, tag) {
			// Idempotent: the tag is already there.
			return repositories.OrderBatchUpdate{}, ""
		}
		tags := append(slices.Clone(order.Tags), tag)
		update.Tags = &tags

	case domain.BulkTagRemove:
		tag := strings.TrimSpace(cmd.Tag)
		if tag == "" {
			return repositories.OrderBatchUpdate{}, "tag is required"
		}
		tags := slices.Clone(order.Tags)
		tags = slices.DeleteFunc(tags, func(existing string) bool { return existing == tag })
		update.Tags = &tags

	case domain.BulkNoteAppend:
		if strings.TrimSpace(cmd.Note) == "" {
			return repositories.OrderBatchUpdate{}, "note text is required"
		}
		notes := append(slices.Clone(order.Notes), domain.OrderNote{
			Text:      strings.TrimSpace(cmd.Note),
			Author:    actor,
			CreatedAt: now,
		})
		update.Notes = &notes
	}

	return update, ""
}

func bulkHistoryNote(cmd BulkCommand) string {
	if note := strings.TrimSpace(cmd.Note); note != "" {
		return note
	}
	return fmt.Sprintf("status changed to %s (bulk)", cmd.Status)
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
