package matcher

import (
	"context"
	"fmt"

	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/models"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/store"
)

// BulkResult reports the outcome of every id in a bulk request.
type BulkResult struct {
	Succeeded []uint          `json:"succeeded"`
	Failed    map[uint]string `json:"failed"`
}

// Discard rejects a queued listing and blacklists its URL. Discarding an
// already discarded listing is a no-op; a matched listing yields
// ErrAlreadyResolved.
func (e *Engine) Discard(ctx context.Context, pendingID uint, reason string) error {
	unlock := e.locks.Lock(pendingKey(pendingID))
	defer unlock()

	var (
		entry   models.MatchHistoryEntry
		changed bool
	)
	err := e.store.Transaction(ctx, func(tx *store.Store) error {
		p, err := tx.GetPending(ctx, pendingID)
		if err != nil {
			return fmt.Errorf("pending offer %d: %w", pendingID, err)
		}
		switch p.Status {
		case models.StatusDiscarded:
			return nil
		case models.StatusMatched:
			return fmt.Errorf("pending offer %d is matched: %w", p.ID, ErrAlreadyResolved)
		}

		entry, err = e.discardTx(ctx, tx, p, reason, nil)
		changed = err == nil
		return err
	})
	if err != nil {
		return err
	}
	if changed {
		e.emit(ctx, entry)
	}
	return nil
}

// Requeue returns a discarded listing to the queue when its URL is scraped
// again after the blacklist entry was lifted. The listing keeps its id, takes
// the fresh scrape data and a RESTORED entry records the move.
func (e *Engine) Requeue(ctx context.Context, pendingID uint, fresh models.PendingOffer) error {
	unlock := e.locks.Lock(pendingKey(pendingID))
	defer unlock()

	var entry models.MatchHistoryEntry
	err := e.store.Transaction(ctx, func(tx *store.Store) error {
		p, err := tx.GetPending(ctx, pendingID)
		if err != nil {
			return fmt.Errorf("pending offer %d: %w", pendingID, err)
		}
		ok, err := tx.RequeuePending(ctx, p.ID, map[string]interface{}{
			"scraped_name":       fresh.ScrapedName,
			"normalized_name":    fresh.NormalizedName,
			"ean":                fresh.EAN,
			"price":              fresh.Price,
			"price_parse_failed": fresh.PriceParseFailed,
			"currency":           fresh.Currency,
			"shop_name":          fresh.ShopName,
			"found_at":           fresh.FoundAt,
		})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("pending offer %d is %s: %w", p.ID, p.Status, ErrAlreadyResolved)
		}

		entry = e.newEntry(models.ActionRestored)
		entry.PendingOfferID = uintPtr(p.ID)
		entry.ShopName = fresh.ShopName
		entry.OfferURL = p.URL
		entry.Price = fresh.Price
		entry.Reason = "re-ingested"
		entry.Details = models.EncodeDetails(models.HistoryDetails{PriorStatus: models.StatusDiscarded})
		if err := tx.AppendHistory(ctx, &entry); err != nil {
			return historyError(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.emit(ctx, entry)
	return nil
}

// LiftBlacklist lets a discarded URL back in on its next scrape.
func (e *Engine) LiftBlacklist(ctx context.Context, url string) error {
	return e.store.Unblacklist(ctx, url)
}

func (e *Engine) discardTx(ctx context.Context, tx *store.Store, p models.PendingOffer, reason string, revertsID *uint) (models.MatchHistoryEntry, error) {
	ok, err := tx.TransitionPending(ctx, p.ID, models.StatusPending, models.StatusDiscarded)
	if err != nil {
		return models.MatchHistoryEntry{}, err
	}
	if !ok {
		return models.MatchHistoryEntry{}, fmt.Errorf("pending offer %d: %w", p.ID, ErrAlreadyResolved)
	}
	if err := tx.Blacklist(ctx, models.BlacklistedItem{URL: p.URL, ScrapedName: p.ScrapedName, Reason: reason}); err != nil {
		return models.MatchHistoryEntry{}, fmt.Errorf("blacklist url: %w", err)
	}

	entry := e.newEntry(models.ActionDiscarded)
	entry.PendingOfferID = uintPtr(p.ID)
	entry.ShopName = p.ShopName
	entry.OfferURL = p.URL
	entry.Price = p.Price
	entry.Reason = reason
	entry.RevertsID = revertsID
	entry.Details = models.EncodeDetails(models.HistoryDetails{PriorStatus: models.StatusPending})
	if err := tx.AppendHistory(ctx, &entry); err != nil {
		return models.MatchHistoryEntry{}, historyError(err)
	}
	return entry, nil
}

// DiscardBulk discards each listing independently. A failure on one id never
// aborts the others.
func (e *Engine) DiscardBulk(ctx context.Context, pendingIDs []uint, reason string) BulkResult {
	res := BulkResult{Succeeded: []uint{}, Failed: map[uint]string{}}

	seen := make(map[uint]struct{}, len(pendingIDs))
	n := 0
	for _, id := range pendingIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if err := ctx.Err(); err != nil {
			res.Failed[id] = err.Error()
			continue
		}
		if id == 0 {
			res.Failed[id] = fmt.Errorf("pending offer %d: %w", id, ErrNotFound).Error()
			continue
		}
		if err := e.Discard(ctx, id, reason); err != nil {
			res.Failed[id] = err.Error()
		} else {
			res.Succeeded = append(res.Succeeded, id)
		}

		n++
		if n%e.cfg.BatchSize == 0 {
			// cancellation surfaces through ctx.Err on the next id
			_ = e.pace(ctx)
		}
	}
	return res
}
