package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/swiftcart/api/internal/domain"
	pfirestore "github.com/swiftcart/api/internal/platform/firestore"
	"github.com/swiftcart/api/internal/platform/pagination"
	"github.com/swiftcart/api/internal/repositories"
)

const ordersCollection = "orders"

type orderCustomerDocument struct {
	ID    string `firestore:"id"`
	Name  string `firestore:"name"`
	Email string `firestore:"email"`
	Phone string `firestore:"phone,omitempty"`
}

type orderLineItemDocument struct {
	ProductID string  `firestore:"productId"`
	Name      string  `firestore:"name"`
	UnitPrice float64 `firestore:"unitPrice"`
	Quantity  int     `firestore:"quantity"`
	ImageURL  string  `firestore:"imageUrl,omitempty"`
}

type orderTotalsDocument struct {
	Subtotal float64 `firestore:"subtotal"`
	Tax      float64 `firestore:"tax"`
	Discount float64 `firestore:"discount"`
	Shipping float64 `firestore:"shipping"`
	Total    float64 `firestore:"total"`
}

type orderAddressDocument struct {
	Line1      string `firestore:"line1"`
	Line2      string `firestore:"line2,omitempty"`
	City       string `firestore:"city"`
	State      string `firestore:"state,omitempty"`
	PostalCode string `firestore:"postalCode"`
	Country    string `firestore:"country"`
}

type statusHistoryDocument struct {
	Status    string            `firestore:"status"`
	At        time.Time         `firestore:"at"`
	Note      string            `firestore:"note,omitempty"`
	UpdatedBy string            `firestore:"updatedBy"`
	Metadata  map[string]string `firestore:"metadata,omitempty"`
}

type trackingDocument struct {
	Carrier           string     `firestore:"carrier"`
	Code              string     `firestore:"code"`
	URL               string     `firestore:"url,omitempty"`
	ServiceTier       string     `firestore:"serviceTier,omitempty"`
	EstimatedDelivery *time.Time `firestore:"estimatedDelivery,omitempty"`
}

type refundDocument struct {
	Amount      float64   `firestore:"amount"`
	Reason      string    `firestore:"reason,omitempty"`
	Method      string    `firestore:"method,omitempty"`
	ProviderRef string    `firestore:"providerRef,omitempty"`
	At          time.Time `firestore:"at"`
}

type orderNoteDocument struct {
	Text      string    `firestore:"text"`
	Author    string    `firestore:"author"`
	CreatedAt time.Time `firestore:"createdAt"`
}

type orderDocument struct {
	Number        string                  `firestore:"number"`
	Customer      orderCustomerDocument   `firestore:"customer"`
	Items         []orderLineItemDocument `firestore:"items"`
	Totals        orderTotalsDocument     `firestore:"totals"`
	ShippingAddr  orderAddressDocument    `firestore:"shippingAddress"`
	PaymentMethod string                  `firestore:"paymentMethod,omitempty"`
	PaymentRef    string                  `firestore:"paymentRef,omitempty"`

	Status   string   `firestore:"status"`
	Priority string   `firestore:"priority,omitempty"`
	Tags     []string `firestore:"tags,omitempty"`

	Notes         []orderNoteDocument     `firestore:"notes,omitempty"`
	Tracking      *trackingDocument       `firestore:"tracking,omitempty"`
	Refund        *refundDocument         `firestore:"refund,omitempty"`
	StatusHistory []statusHistoryDocument `firestore:"statusHistory"`

	DeclineReason     string `firestore:"declineReason,omitempty"`
	CancelReason      string `firestore:"cancelReason,omitempty"`
	InventoryRestored bool   `firestore:"inventoryRestored"`

	ApprovedAt  *time.Time `firestore:"approvedAt,omitempty"`
	ApprovedBy  string     `firestore:"approvedBy,omitempty"`
	PackedAt    *time.Time `firestore:"packedAt,omitempty"`
	ShippedAt   *time.Time `firestore:"shippedAt,omitempty"`
	DeliveredAt *time.Time `firestore:"deliveredAt,omitempty"`

	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// OrderRepository implements repositories.OrderRepository on Firestore.
type OrderRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[orderDocument]
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil)
	return &OrderRepository{provider: provider, base: base}, nil
}

// Insert creates the order document, failing when the ID already exists.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return errors.New("order repository: order id is required")
	}

	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, encodeOrderDocument(order)); err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

// Update replaces the stored document with the given order state.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return errors.New("order repository: order id is required")
	}

	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}

	// Orders travel through the service layer whole, so a full replace keeps
	// removed optional fields (for example a cleared tracking block) from
	// lingering in the document.
	if tx, ok := transactionFrom(ctx); ok {
		if err := tx.Set(ref, encodeOrderDocument(order)); err != nil {
			return pfirestore.WrapError("orders.update", err)
		}
		return nil
	}
	if _, err := ref.Set(ctx, encodeOrderDocument(order)); err != nil {
		return pfirestore.WrapError("orders.update", err)
	}
	return nil
}

// FindByID loads one order by document ID.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	if tx, ok := transactionFrom(ctx); ok {
		ref, err := r.base.DocumentRef(ctx, id)
		if err != nil {
			return domain.Order{}, err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return domain.Order{}, pfirestore.WrapError("orders.get", err)
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.Order{}, fmt.Errorf("orders decode %s: %w", id, err)
		}
		return decodeOrderDocument(id, doc), nil
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrderDocument(doc.ID, doc.Data), nil
}

// List executes the store-side filter portion of an order listing.
func (r *OrderRepository) List(ctx context.Context, query repositories.OrderQuery) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	limit := query.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	sortPath, sortDir := orderSortClause(query)

	var startAfter []any
	if token := strings.TrimSpace(query.Pagination.PageToken); token != "" && !query.Unsorted {
		value, docID, err := decodeOrderListToken(token, query.SortField)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("order repository: invalid page token: %w", err)
		}
		startAfter = []any{value, docID}
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if query.Status != nil {
			q = q.Where("status", "==", string(*query.Status))
		}
		if customerID := strings.TrimSpace(query.CustomerID); customerID != "" {
			q = q.Where("customer.id", "==", customerID)
		}
		if email := strings.TrimSpace(query.Email); email != "" {
			q = q.Where("customer.email", "==", email)
		}
		if query.Priority != nil {
			q = q.Where("priority", "==", string(*query.Priority))
		}
		if query.CreatedAt.From != nil {
			q = q.Where("createdAt", ">=", query.CreatedAt.From.UTC())
		}
		if query.CreatedAt.To != nil {
			q = q.Where("createdAt", "<=", query.CreatedAt.To.UTC())
		}
		if query.MinTotal != nil {
			q = q.Where("totals.total", ">=", *query.MinTotal)
		}

		if !query.Unsorted {
			q = q.OrderBy(sortPath, sortDir).OrderBy(firestore.DocumentID, sortDir)
			if len(startAfter) == 2 {
				q = q.StartAfter(startAfter...)
			}
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		if !query.Unsorted && sortRejected(err) {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("%w: %v", repositories.ErrUnsortable, err)
		}
		return domain.CursorPage[domain.Order]{}, err
	}

	nextToken := ""
	if limit > 0 && len(docs) == fetchLimit {
		docs = docs[:limit]
		last := docs[len(docs)-1]
		nextToken = encodeOrderListToken(query.SortField, last.Data, last.ID)
	}

	items := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		items = append(items, decodeOrderDocument(doc.ID, doc.Data))
	}
	return domain.CursorPage[domain.Order]{Items: items, NextPageToken: nextToken}, nil
}

// ListAll streams every order created inside the range for analytics scans.
func (r *OrderRepository) ListAll(ctx context.Context, created domain.RangeQuery[time.Time]) ([]domain.Order, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if created.From != nil {
			q = q.Where("createdAt", ">=", created.From.UTC())
		}
		if created.To != nil {
			q = q.Where("createdAt", "<=", created.To.UTC())
		}
		return q.OrderBy("createdAt", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, decodeOrderDocument(doc.ID, doc.Data))
	}
	return orders, nil
}

// BatchUpdate commits field updates across documents as one atomic batched write.
func (r *OrderRepository) BatchUpdate(ctx context.Context, updates []repositories.OrderBatchUpdate) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	if len(updates) == 0 {
		return nil
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	batch := client.Batch()
	for _, update := range updates {
		id := strings.TrimSpace(update.OrderID)
		if id == "" {
			return errors.New("order repository: batch update without order id")
		}
		fields := encodeBatchUpdateFields(update)
		if len(fields) == 0 {
			return fmt.Errorf("order repository: batch update for %s carries no fields", id)
		}
		batch.Update(client.Collection(ordersCollection).Doc(id), fields)
	}
	if _, err := batch.Commit(ctx); err != nil {
		return pfirestore.WrapError("orders.batch", err)
	}
	return nil
}

func encodeBatchUpdateFields(update repositories.OrderBatchUpdate) []firestore.Update {
	var fields []firestore.Update
	if update.Status != nil {
		fields = append(fields, firestore.Update{Path: "status", Value: string(*update.Status)})
	}
	if update.Priority != nil {
		fields = append(fields, firestore.Update{Path: "priority", Value: string(*update.Priority)})
	}
	if update.Tags != nil {
		fields = append(fields, firestore.Update{Path: "tags", Value: append([]string(nil), (*update.Tags)...)})
	}
	if update.Notes != nil {
		notes := make([]orderNoteDocument, 0, len(*update.Notes))
		for _, note := range *update.Notes {
			notes = append(notes, orderNoteDocument{
				Text:      note.Text,
				Author:    note.Author,
				CreatedAt: note.CreatedAt.UTC(),
			})
		}
		fields = append(fields, firestore.Update{Path: "notes", Value: notes})
	}
	if update.StatusHistory != nil {
		history := make([]statusHistoryDocument, 0, len(*update.StatusHistory))
		for _, entry := range *update.StatusHistory {
			history = append(history, statusHistoryDocument{
				Status:    string(entry.Status),
				At:        entry.At.UTC(),
				Note:      entry.Note,
				UpdatedBy: entry.UpdatedBy,
				Metadata:  cloneStringMap(entry.Metadata),
			})
		}
		fields = append(fields, firestore.Update{Path: "statusHistory", Value: history})
	}
	if update.UpdatedAt != nil {
		fields = append(fields, firestore.Update{Path: "updatedAt", Value: update.UpdatedAt.UTC()})
	}
	return fields
}

func orderSortClause(query repositories.OrderQuery) (string, firestore.Direction) {
	path := "createdAt"
	switch query.SortField {
	case domain.OrderSortUpdatedAt:
		path = "updatedAt"
	case domain.OrderSortTotal:
		path = "totals.total"
	}
	dir := firestore.Desc
	if query.SortOrder == domain.SortAsc {
		dir = firestore.Asc
	}
	return path, dir
}

// sortRejected detects store refusals tied to the order-by clause, such as a
// missing composite index or a field absent on older documents.
func sortRejected(err error) bool {
	switch status.Code(err) {
	case codes.FailedPrecondition, codes.InvalidArgument:
		return true
	}
	var repoErr *pfirestore.Error
	if errors.As(err, &repoErr) {
		return repoErr.IsConflict()
	}
	return false
}

// encodeOrderListToken records the sort field alongside the resume values so
// a token minted under one ordering cannot silently continue another.
func encodeOrderListToken(field domain.OrderSortField, doc orderDocument, docID string) string {
	var value any
	switch field {
	case domain.OrderSortUpdatedAt:
		value = doc.UpdatedAt.UTC().Format(time.RFC3339Nano)
	case domain.OrderSortTotal:
		value = doc.Totals.Total
	default:
		value = doc.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	token, err := pagination.EncodeToken(pagination.Cursor{
		StartAfter: []any{string(field), value, docID},
	})
	if err != nil {
		return ""
	}
	return token
}

func decodeOrderListToken(token string, field domain.OrderSortField) (any, string, error) {
	cursor, err := pagination.DecodeToken(token)
	if err != nil {
		return nil, "", err
	}
	if len(cursor.StartAfter) != 3 {
		return nil, "", errors.New("invalid token structure")
	}
	tokenField, ok := cursor.StartAfter[0].(string)
	if !ok {
		return nil, "", errors.New("invalid token sort field")
	}
	if tokenField != string(field) && !(tokenField == "" && field == domain.OrderSortCreatedAt) {
		return nil, "", errors.New("token sort field mismatch")
	}
	docID, ok := cursor.StartAfter[2].(string)
	if !ok || docID == "" {
		return nil, "", errors.New("invalid token document id")
	}
	switch field {
	case domain.OrderSortTotal:
		value, ok := cursor.StartAfter[1].(float64)
		if !ok {
			return nil, "", errors.New("invalid token total value")
		}
		return value, docID, nil
	default:
		raw, ok := cursor.StartAfter[1].(string)
		if !ok {
			return nil, "", errors.New("invalid token timestamp")
		}
		value, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, "", err
		}
		return value, docID, nil
	}
}

func encodeOrderDocument(order domain.Order) orderDocument {
	doc := orderDocument{
		Number: strings.TrimSpace(order.Number),
		Customer: orderCustomerDocument{
			ID:    strings.TrimSpace(order.Customer.ID),
			Name:  strings.TrimSpace(order.Customer.Name),
			Email: strings.TrimSpace(order.Customer.Email),
			Phone: strings.TrimSpace(order.Customer.Phone),
		},
		Totals: orderTotalsDocument{
			Subtotal: order.Totals.Subtotal,
			Tax:      order.Totals.Tax,
			Discount: order.Totals.Discount,
			Shipping: order.Totals.Shipping,
			Total:    order.Totals.Total,
		},
		ShippingAddr: orderAddressDocument{
			Line1:      order.ShippingAddr.Line1,
			Line2:      order.ShippingAddr.Line2,
			City:       order.ShippingAddr.City,
			State:      order.ShippingAddr.State,
			PostalCode: order.ShippingAddr.PostalCode,
			Country:    order.ShippingAddr.Country,
		},
		PaymentMethod:     strings.TrimSpace(order.PaymentMethod),
		PaymentRef:        strings.TrimSpace(order.PaymentRef),
		Status:            string(order.Status),
		Priority:          string(order.Priority),
		Tags:              append([]string(nil), order.Tags...),
		DeclineReason:     order.DeclineReason,
		CancelReason:      order.CancelReason,
		InventoryRestored: order.InventoryRestored,
		ApprovedAt:        cloneTimePtr(order.ApprovedAt),
		ApprovedBy:        order.ApprovedBy,
		PackedAt:          cloneTimePtr(order.PackedAt),
		ShippedAt:         cloneTimePtr(order.ShippedAt),
		DeliveredAt:       cloneTimePtr(order.DeliveredAt),
		CreatedAt:         order.CreatedAt.UTC(),
		UpdatedAt:         order.UpdatedAt.UTC(),
	}

	doc.Items = make([]orderLineItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		doc.Items = append(doc.Items, orderLineItemDocument{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			ImageURL:  item.ImageURL,
		})
	}

	doc.Notes = make([]orderNoteDocument, 0, len(order.Notes))
	for _, note := range order.Notes {
		doc.Notes = append(doc.Notes, orderNoteDocument{
			Text:      note.Text,
			Author:    note.Author,
			CreatedAt: note.CreatedAt.UTC(),
		})
	}

	doc.StatusHistory = make([]statusHistoryDocument, 0, len(order.StatusHistory))
	for _, entry := range order.StatusHistory {
		doc.StatusHistory = append(doc.StatusHistory, statusHistoryDocument{
			Status:    string(entry.Status),
			At:        entry.At.UTC(),
			Note:      entry.Note,
			UpdatedBy: entry.UpdatedBy,
			Metadata:  cloneStringMap(entry.Metadata),
		})
	}

	if order.Tracking != nil {
		doc.Tracking = &trackingDocument{
			Carrier:           order.Tracking.Carrier,
			Code:              order.Tracking.Code,
			URL:               order.Tracking.URL,
			ServiceTier:       order.Tracking.ServiceTier,
			EstimatedDelivery: cloneTimePtr(order.Tracking.EstimatedDelivery),
		}
	}
	if order.Refund != nil {
		doc.Refund = &refundDocument{
			Amount:      order.Refund.Amount,
			Reason:      order.Refund.Reason,
			Method:      order.Refund.Method,
			ProviderRef: order.Refund.ProviderRef,
			At:          order.Refund.At.UTC(),
		}
	}

	return doc
}

func decodeOrderDocument(id string, doc orderDocument) domain.Order {
	order := domain.Order{
		ID:     id,
		Number: doc.Number,
		Customer: domain.CustomerSnapshot{
			ID:    doc.Customer.ID,
			Name:  doc.Customer.Name,
			Email: doc.Customer.Email,
			Phone: doc.Customer.Phone,
		},
		Totals: domain.OrderTotals{
			Subtotal: doc.Totals.Subtotal,
			Tax:      doc.Totals.Tax,
			Discount: doc.Totals.Discount,
			Shipping: doc.Totals.Shipping,
			Total:    doc.Totals.Total,
		},
		ShippingAddr: domain.Address{
			Line1:      doc.ShippingAddr.Line1,
			Line2:      doc.ShippingAddr.Line2,
			City:       doc.ShippingAddr.City,
			State:      doc.ShippingAddr.State,
			PostalCode: doc.ShippingAddr.PostalCode,
			Country:    doc.ShippingAddr.Country,
		},
		PaymentMethod:     doc.PaymentMethod,
		PaymentRef:        doc.PaymentRef,
		Status:            domain.OrderStatus(doc.Status),
		Priority:          domain.OrderPriority(doc.Priority),
		Tags:              append([]string(nil), doc.Tags...),
		DeclineReason:     doc.DeclineReason,
		CancelReason:      doc.CancelReason,
		InventoryRestored: doc.InventoryRestored,
		ApprovedAt:        cloneTimePtr(doc.ApprovedAt),
		ApprovedBy:        doc.ApprovedBy,
		PackedAt:          cloneTimePtr(doc.PackedAt),
		ShippedAt:         cloneTimePtr(doc.ShippedAt),
		DeliveredAt:       cloneTimePtr(doc.DeliveredAt),
		CreatedAt:         doc.CreatedAt,
		UpdatedAt:         doc.UpdatedAt,
	}

	order.Items = make([]domain.OrderLineItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		order.Items = append(order.Items, domain.OrderLineItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			ImageURL:  item.ImageURL,
		})
	}

	order.Notes = make([]domain.OrderNote, 0, len(doc.Notes))
	for _, note := range doc.Notes {
		order.Notes = append(order.Notes, domain.OrderNote{
			Text:      note.Text,
			Author:    note.Author,
			CreatedAt: note.CreatedAt,
		})
	}

	order.StatusHistory = make([]domain.StatusHistoryEntry, 0, len(doc.StatusHistory))
	for _, entry := range doc.StatusHistory {
		order.StatusHistory = append(order.StatusHistory, domain.StatusHistoryEntry{
			Status:    domain.OrderStatus(entry.Status),
			At:        entry.At,
			Note:      entry.Note,
			UpdatedBy: entry.UpdatedBy,
			Metadata:  cloneStringMap(entry.Metadata),
		})
	}

	if doc.Tracking != nil {
		order.Tracking = &domain.Tracking{
			Carrier:           doc.Tracking.Carrier,
			Code:              doc.Tracking.Code,
			URL:               doc.Tracking.URL,
			ServiceTier:       doc.Tracking.ServiceTier,
			EstimatedDelivery: cloneTimePtr(doc.Tracking.EstimatedDelivery),
		}
	}
	if doc.Refund != nil {
		order.Refund = &domain.Refund{
			Amount:      doc.Refund.Amount,
			Reason:      doc.Refund.Reason,
			Method:      doc.Refund.Method,
			ProviderRef: doc.Refund.ProviderRef,
			At:          doc.Refund.At,
		}
	}

	return order
}

func cloneTimePtr(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	cloned := value.UTC()
	return &cloned
}

func cloneStringMap(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	cloned := make(map[string]string, len(values))
	for key, value := range values {
		cloned[key] = value
	}
	return cloned
}
