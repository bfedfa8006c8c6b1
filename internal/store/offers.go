package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/models"
)

// CreateOffer inserts an offer. The unique pending_offer_id column makes a
// second insert for the same listing fail.
func (s *Store) CreateOffer(ctx context.Context, o *models.Offer) error {
	return s.with(ctx).Create(o).Error
}

// GetOffer loads an offer by id.
func (s *Store) GetOffer(ctx context.Context, id uint) (models.Offer, error) {
	var o models.Offer
	err := s.with(ctx).First(&o, id).Error
	return o, notFound(err)
}

// OfferByPending returns the offer created from a queued listing.
func (s *Store) OfferByPending(ctx context.Context, pendingID uint) (models.Offer, error) {
	var o models.Offer
	err := s.with(ctx).Where("pending_offer_id = ?", pendingID).First(&o).Error
	return o, notFound(err)
}

// OffersByURL returns existing offers keyed by URL.
func (s *Store) OffersByURL(ctx context.Context, urls []string) (map[string]models.Offer, error) {
	out := make(map[string]models.Offer, len(urls))
	if len(urls) == 0 {
		return out, nil
	}
	var rows []models.Offer
	if err := s.with(ctx).Where("url IN ?", urls).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		if _, seen := out[r.URL]; !seen {
			out[r.URL] = r
		}
	}
	return out, nil
}

// OffersByProduct lists a product's offers, cheapest first.
func (s *Store) OffersByProduct(ctx context.Context, productID uint) ([]models.Offer, error) {
	var out []models.Offer
	err := s.with(ctx).Where("product_id = ?", productID).Order("price").Order("id").Find(&out).Error
	return out, err
}

// DeleteOffer removes an offer. It reports false if the row was already gone.
func (s *Store) DeleteOffer(ctx context.Context, id uint) (bool, error) {
	res := s.with(ctx).Delete(&models.Offer{}, id)
	return res.RowsAffected == 1, res.Error
}

// MoveOffer points an offer at another product and records the decision that
// placed it there.
func (s *Store) MoveOffer(ctx context.Context, id, productID uint, action models.HistoryAction, historyID uint) error {
	return s.with(ctx).Model(&models.Offer{}).Where("id = ?", id).Updates(map[string]interface{}{
		"product_id":      productID,
		"link_action":     action,
		"link_history_id": historyID,
		"updated_at":      time.Now().UTC(),
	}).Error
}

// SetLinkHistory stores the history entry that created an offer.
func (s *Store) SetLinkHistory(ctx context.Context, id, historyID uint) error {
	return s.with(ctx).Model(&models.Offer{}).Where("id = ?", id).
		Update("link_history_id", historyID).Error
}

// ReassignOffers moves every offer of one product to another in a single
// statement and returns how many moved.
func (s *Store) ReassignOffers(ctx context.Context, fromProductID, toProductID uint) (int64, error) {
	res := s.with(ctx).Model(&models.Offer{}).
		Where("product_id = ?", fromProductID).
		Updates(map[string]interface{}{"product_id": toProductID, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

// OfferIDsByLinkAction pages through offers placed by the given decision kind.
func (s *Store) OfferIDsByLinkAction(ctx context.Context, action models.HistoryAction, afterID uint, limit int) ([]uint, error) {
	var ids []uint
	err := s.with(ctx).Model(&models.Offer{}).
		Where("link_action = ? AND id > ?", action, afterID).
		Order("id").Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

// RefreshOfferPrice records a new sighting of an offer. A price change is
// appended to the price history and widens the min/max band.
//
// Returns:
//   - bool: true when the price moved
func (s *Store) RefreshOfferPrice(ctx context.Context, o models.Offer, price float64, available bool, seenAt time.Time) (bool, error) {
	changed := price > 0 && absDiff(price, o.Price) > 0.01
	updates := map[string]interface{}{
		"last_seen":    seenAt,
		"is_available": available,
		"updated_at":   seenAt,
	}
	if changed {
		updates["price"] = price
		if o.MinPrice == 0 || price < o.MinPrice {
			updates["min_price"] = price
		}
		if price > o.MaxPrice {
			updates["max_price"] = price
		}
	}

	err := s.with(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Offer{}).Where("id = ?", o.ID).Updates(updates).Error; err != nil {
			return err
		}
		if !changed {
			return nil
		}
		return tx.Create(&models.PriceHistory{OfferID: o.ID, Price: price, RecordedAt: seenAt}).Error
	})
	return changed, err
}

// PriceHistory lists the recorded prices of an offer, oldest first.
func (s *Store) PriceHistory(ctx context.Context, offerID uint) ([]models.PriceHistory, error) {
	var out []models.PriceHistory
	err := s.with(ctx).Where("offer_id = ?", offerID).Order("recorded_at").Order("id").Find(&out).Error
	return out, err
}

// RecomputeBest flags the cheapest available offer of a product as best.
func (s *Store) RecomputeBest(ctx context.Context, productID uint) error {
	db := s.with(ctx)
	if err := db.Model(&models.Offer{}).Where("product_id = ?", productID).Update("is_best", false).Error; err != nil {
		return err
	}
	var best models.Offer
	err := db.Where("product_id = ? AND is_available = ? AND price > 0", productID, true).
		Order("price").Order("id").First(&best).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	return db.Model(&models.Offer{}).Where("id = ?", best.ID).Update("is_best", true).Error
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
