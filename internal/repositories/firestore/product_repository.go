package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/swiftcart/api/internal/domain"
	pfirestore "github.com/swiftcart/api/internal/platform/firestore"
	"github.com/swiftcart/api/internal/repositories"
)

const productsCollection = "products"

type productDocument struct {
	Name      string    `firestore:"name"`
	Price     float64   `firestore:"price"`
	Stock     int       `firestore:"stock"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// ProductRepository reads catalog products and adjusts their stock counters.
type ProductRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[productDocument]
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil, nil)
	return &ProductRepository{provider: provider, base: base}, nil
}

// FindByID loads one product by document ID.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return domain.Product{}, errors.New("product repository: product id is required")
	}

	if tx, ok := transactionFrom(ctx); ok {
		ref, err := r.base.DocumentRef(ctx, id)
		if err != nil {
			return domain.Product{}, err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return domain.Product{}, pfirestore.WrapError("products.get", err)
		}
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.Product{}, fmt.Errorf("products decode %s: %w", id, err)
		}
		return decodeProductDocument(id, doc), nil
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return decodeProductDocument(doc.ID, doc.Data), nil
}

// AdjustStock adds delta to the stock counter with an atomic field
// increment. The increment transform needs no prior read, which keeps the
// call legal at any point inside an ambient Registry.RunInTx transaction.
func (r *ProductRepository) AdjustStock(ctx context.Context, productID string, delta int) error {
	if r == nil || r.provider == nil {
		return errors.New("product repository not initialised")
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return errors.New("product repository: product id is required")
	}

	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	updates := []firestore.Update{
		{Path: "stock", Value: firestore.Increment(delta)},
		{Path: "updatedAt", Value: time.Now().UTC()},
	}

	if tx, ok := transactionFrom(ctx); ok {
		if err := tx.Update(ref, updates); err != nil {
			return pfirestore.WrapError("products.adjust", err)
		}
		return nil
	}
	if _, err := ref.Update(ctx, updates); err != nil {
		return pfirestore.WrapError("products.adjust", err)
	}
	return nil
}

func decodeProductDocument(id string, doc productDocument) domain.Product {
	return domain.Product{
		ID:        id,
		Name:      doc.Name,
		Price:     doc.Price,
		Stock:     doc.Stock,
		UpdatedAt: doc.UpdatedAt,
	}
}
