package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/swiftcart/api/internal/domain"
	pfirestore "github.com/swiftcart/api/internal/platform/firestore"
	"github.com/swiftcart/api/internal/platform/pagination"
	"github.com/swiftcart/api/internal/repositories"
)

const (
	customersCollection      = "customers"
	customerOrdersCollection = "orders"
)

type customerOrderDocument struct {
	Number    string            `firestore:"number"`
	Status    string            `firestore:"status"`
	Total     float64           `firestore:"total"`
	ItemCount int               `firestore:"itemCount"`
	Tracking  *trackingDocument `firestore:"tracking,omitempty"`
	CreatedAt time.Time         `firestore:"createdAt"`
	UpdatedAt time.Time         `firestore:"updatedAt"`
}

// CustomerOrderRepository maintains the denormalized per-customer order
// copies under customers/{id}/orders.
type CustomerOrderRepository struct {
	provider *pfirestore.Provider
}

var _ repositories.CustomerOrderRepository = (*CustomerOrderRepository)(nil)

// NewCustomerOrderRepository constructs a Firestore-backed projection repository.
func NewCustomerOrderRepository(provider *pfirestore.Provider) (*CustomerOrderRepository, error) {
	if provider == nil {
		return nil, errors.New("customer order repository requires firestore provider")
	}
	return &CustomerOrderRepository{provider: provider}, nil
}

// Upsert writes the customer copy, replacing any previous version.
func (r *CustomerOrderRepository) Upsert(ctx context.Context, customerID string, copy domain.CustomerOrder) error {
	ref, err := r.documentRef(ctx, customerID, copy.OrderID)
	if err != nil {
		return err
	}

	doc := customerOrderDocument{
		Number:    copy.Number,
		Status:    string(copy.Status),
		Total:     copy.Total,
		ItemCount: copy.ItemCount,
		CreatedAt: copy.CreatedAt.UTC(),
		UpdatedAt: copy.UpdatedAt.UTC(),
	}
	if copy.Tracking != nil {
		doc.Tracking = &trackingDocument{
			Carrier:           copy.Tracking.Carrier,
			Code:              copy.Tracking.Code,
			URL:               copy.Tracking.URL,
			ServiceTier:       copy.Tracking.ServiceTier,
			EstimatedDelivery: cloneTimePtr(copy.Tracking.EstimatedDelivery),
		}
	}

	if tx, ok := transactionFrom(ctx); ok {
		if err := tx.Set(ref, doc); err != nil {
			return pfirestore.WrapError("customerOrders.upsert", err)
		}
		return nil
	}
	if _, err := ref.Set(ctx, doc); err != nil {
		return pfirestore.WrapError("customerOrders.upsert", err)
	}
	return nil
}

// FindByID loads one customer copy.
func (r *CustomerOrderRepository) FindByID(ctx context.Context, customerID string, orderID string) (domain.CustomerOrder, error) {
	ref, err := r.documentRef(ctx, customerID, orderID)
	if err != nil {
		return domain.CustomerOrder{}, err
	}

	snap, err := ref.Get(ctx)
	if err != nil {
		return domain.CustomerOrder{}, pfirestore.WrapError("customerOrders.get", err)
	}
	var doc customerOrderDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.CustomerOrder{}, fmt.Errorf("customer orders decode %s: %w", orderID, err)
	}
	return decodeCustomerOrderDocument(snap.Ref.ID, doc), nil
}

// ListByCustomer pages through the customer's copies, newest first.
func (r *CustomerOrderRepository) ListByCustomer(ctx context.Context, customerID string, pager domain.Pagination) (domain.CursorPage[domain.CustomerOrder], error) {
	coll, err := r.collectionRef(ctx, customerID)
	if err != nil {
		return domain.CursorPage[domain.CustomerOrder]{}, err
	}

	limit := pager.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	query := coll.Query.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
	if token := strings.TrimSpace(pager.PageToken); token != "" {
		createdAt, docID, err := decodeTimeCursorToken(token)
		if err != nil {
			return domain.CursorPage[domain.CustomerOrder]{}, fmt.Errorf("customer order repository: invalid page token: %w", err)
		}
		query = query.StartAfter(createdAt, docID)
	}
	if fetchLimit > 0 {
		query = query.Limit(fetchLimit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	type fetched struct {
		id  string
		doc customerOrderDocument
	}
	var rows []fetched
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.CustomerOrder]{}, pfirestore.WrapError("customerOrders.list", err)
		}
		var doc customerOrderDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.CustomerOrder]{}, fmt.Errorf("customer orders decode %s: %w", snap.Ref.ID, err)
		}
		rows = append(rows, fetched{id: snap.Ref.ID, doc: doc})
	}

	nextToken := ""
	if limit > 0 && len(rows) == fetchLimit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		nextToken = encodeTimeCursorToken(last.doc.CreatedAt, last.id)
	}

	items := make([]domain.CustomerOrder, 0, len(rows))
	for _, row := range rows {
		items = append(items, decodeCustomerOrderDocument(row.id, row.doc))
	}
	return domain.CursorPage[domain.CustomerOrder]{Items: items, NextPageToken: nextToken}, nil
}

func (r *CustomerOrderRepository) collectionRef(ctx context.Context, customerID string) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("customer order repository not initialised")
	}
	id := strings.TrimSpace(customerID)
	if id == "" {
		return nil, errors.New("customer order repository: customer id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(customersCollection).Doc(id).Collection(customerOrdersCollection), nil
}

func (r *CustomerOrderRepository) documentRef(ctx context.Context, customerID string, orderID string) (*firestore.DocumentRef, error) {
	coll, err := r.collectionRef(ctx, customerID)
	if err != nil {
		return nil, err
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return nil, errors.New("customer order repository: order id is required")
	}
	return coll.Doc(id), nil
}

func decodeCustomerOrderDocument(id string, doc customerOrderDocument) domain.CustomerOrder {
	copy := domain.CustomerOrder{
		OrderID:   id,
		Number:    doc.Number,
		Status:    domain.OrderStatus(doc.Status),
		Total:     doc.Total,
		ItemCount: doc.ItemCount,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	if doc.Tracking != nil {
		copy.Tracking = &domain.Tracking{
			Carrier:           doc.Tracking.Carrier,
			Code:              doc.Tracking.Code,
			URL:               doc.Tracking.URL,
			ServiceTier:       doc.Tracking.ServiceTier,
			EstimatedDelivery: cloneTimePtr(doc.Tracking.EstimatedDelivery),
		}
	}
	return copy
}

// encodeTimeCursorToken packs a createdAt ordering position into an opaque
// page token. Shared with the audit log repository, which pages the same way.
func encodeTimeCursorToken(createdAt time.Time, docID string) string {
	token, err := pagination.EncodeToken(pagination.Cursor{
		StartAfter: []any{createdAt.UTC().Format(time.RFC3339Nano), docID},
	})
	if err != nil {
		return ""
	}
	return token
}

func decodeTimeCursorToken(token string) (time.Time, string, error) {
	cursor, err := pagination.DecodeToken(token)
	if err != nil {
		return time.Time{}, "", err
	}
	if len(cursor.StartAfter) != 2 {
		return time.Time{}, "", errors.New("invalid token structure")
	}
	raw, ok := cursor.StartAfter[0].(string)
	if !ok {
		return time.Time{}, "", errors.New("invalid token timestamp")
	}
	createdAt, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, "", err
	}
	docID, ok := cursor.StartAfter[1].(string)
	if !ok || docID == "" {
		return time.Time{}, "", errors.New("invalid token document id")
	}
	return createdAt, docID, nil
}
