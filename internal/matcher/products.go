package matcher

import (
	"context"
	"fmt"

	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/models"
)

// ProductView is a product with its current offers.
type ProductView struct {
	models.Product
	Offers []models.Offer `json:"offers"`
}

// CreateProduct adds a catalog product and makes it searchable immediately.
func (e *Engine) CreateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	if err := e.store.CreateProduct(ctx, &p); err != nil {
		return models.Product{}, fmt.Errorf("create product: %w", err)
	}
	e.index.Upsert(p)
	return p, nil
}

// Product loads a product with its offers, cheapest first.
func (e *Engine) Product(ctx context.Context, id uint) (ProductView, error) {
	p, err := e.store.GetProduct(ctx, id)
	if err != nil {
		return ProductView{}, fmt.Errorf("product %d: %w", id, err)
	}
	offers, err := e.store.OffersByProduct(ctx, id)
	if err != nil {
		return ProductView{}, fmt.Errorf("offers of product %d: %w", id, err)
	}
	return ProductView{Product: p, Offers: offers}, nil
}

// RefreshIndex rebuilds the candidate index from storage.
func (e *Engine) RefreshIndex(ctx context.Context) error {
	return e.index.Refresh(ctx, e.store)
}

// Stats summarizes the queue and the catalog.
type Stats struct {
	Queue    map[models.PendingStatus]int64 `json:"queue"`
	Products int                            `json:"products"`
}

// Stats counts queued listings per status and indexed products.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	counts, err := e.store.CountPending(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count pending: %w", err)
	}
	return Stats{Queue: counts, Products: e.index.Len()}, nil
}

// OfferHistory lists the decisions that touched an offer, oldest first.
func (e *Engine) OfferHistory(ctx context.Context, offerID uint) ([]models.MatchHistoryEntry, error) {
	return e.store.HistoryForOffer(ctx, offerID)
}
