package matcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/models"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/store"
)

// Revert applies the inverse of a history entry and appends a compensating
// entry pointing back at it. The inverse is derived from the prior state
// recorded on the entry:
//   - a link is undone by unlinking the offer it created
//   - an unlink is undone by recreating the offer on its former product
//   - a discard is undone by restoring the listing to pending
//   - a restore is undone by discarding the listing again
//
// Merges cannot be reverted.
func (e *Engine) Revert(ctx context.Context, historyID uint) (models.MatchHistoryEntry, error) {
	unlockHistory := e.locks.Lock(historyKey(historyID))
	defer unlockHistory()

	entry, err := e.store.GetHistory(ctx, historyID)
	if errors.Is(err, store.ErrNotFound) {
		return models.MatchHistoryEntry{}, fmt.Errorf("history %d: %w", historyID, ErrHistoryNotFound)
	}
	if err != nil {
		return models.MatchHistoryEntry{}, err
	}
	if _, reverted, err := e.store.RevertOf(ctx, entry.ID); err != nil {
		return models.MatchHistoryEntry{}, err
	} else if reverted {
		return models.MatchHistoryEntry{}, fmt.Errorf("history %d: %w", historyID, ErrAlreadyReverted)
	}

	details, err := entry.DecodeDetails()
	if err != nil {
		return models.MatchHistoryEntry{}, fmt.Errorf("history %d details: %w", historyID, err)
	}

	switch entry.ActionType {
	case models.ActionLinkedAuto, models.ActionLinkedManual:
		return e.revertLink(ctx, entry)
	case models.ActionUnlinked:
		return e.revertUnlink(ctx, entry, details)
	case models.ActionDiscarded:
		return e.revertDiscard(ctx, entry)
	case models.ActionRestored:
		return e.revertRestore(ctx, entry)
	}
	return models.MatchHistoryEntry{}, fmt.Errorf("history %d (%s): %w", historyID, entry.ActionType, ErrNotRevertible)
}

func (e *Engine) revertLink(ctx context.Context, entry models.MatchHistoryEntry) (models.MatchHistoryEntry, error) {
	if entry.OfferID == nil || entry.ProductID == nil {
		return models.MatchHistoryEntry{}, fmt.Errorf("history %d has no offer: %w", entry.ID, ErrNotRevertible)
	}
	out, err := e.unlink(ctx, *entry.OfferID, unlinkOpts{
		expectProduct: entry.ProductID,
		revertsID:     uintPtr(entry.ID),
		info:          fmt.Sprintf("revert of history %d", entry.ID),
	})
	if errors.Is(err, ErrNotFound) {
		return models.MatchHistoryEntry{}, fmt.Errorf("offer of history %d is gone: %w", entry.ID, ErrAlreadyResolved)
	}
	return out, err
}

func (e *Engine) revertUnlink(ctx context.Context, entry models.MatchHistoryEntry, details models.HistoryDetails) (models.MatchHistoryEntry, error) {
	productID := entry.ProductID
	if details.PriorProductID != nil {
		productID = details.PriorProductID
	}
	if productID == nil || details.Offer == nil {
		return models.MatchHistoryEntry{}, fmt.Errorf("history %d has no offer snapshot: %w", entry.ID, ErrNotRevertible)
	}

	keys := []string{productKey(*productID)}
	if entry.PendingOfferID != nil {
		keys = append(keys, pendingKey(*entry.PendingOfferID))
	}
	unlock := e.locks.Lock(keys...)
	defer unlock()

	var linked linkResult
	err := e.store.Transaction(ctx, func(tx *store.Store) error {
		product, err := tx.GetProduct(ctx, *productID)
		if err != nil {
			return fmt.Errorf("product %d: %w", *productID, err)
		}
		req := linkRequest{
			product:   product,
			action:    models.ActionLinkedManual,
			score:     entry.Score,
			reason:    fmt.Sprintf("revert of history %d", entry.ID),
			snapshot:  details.Offer,
			revertsID: uintPtr(entry.ID),
		}
		if entry.PendingOfferID != nil {
			p, err := tx.GetPending(ctx, *entry.PendingOfferID)
			if err != nil {
				return fmt.Errorf("pending offer %d: %w", *entry.PendingOfferID, err)
			}
			if p.Status != models.StatusPending {
				return fmt.Errorf("pending offer %d is %s: %w", p.ID, p.Status, ErrAlreadyResolved)
			}
			req.pending = &p
		}
		linked, err = e.linkTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return models.MatchHistoryEntry{}, err
	}

	e.emit(ctx, linked.entry)
	return linked.entry, nil
}

func (e *Engine) revertDiscard(ctx context.Context, entry models.MatchHistoryEntry) (models.MatchHistoryEntry, error) {
	if entry.PendingOfferID == nil {
		return models.MatchHistoryEntry{}, fmt.Errorf("history %d has no listing: %w", entry.ID, ErrNotRevertible)
	}
	pendingID := *entry.PendingOfferID

	unlock := e.locks.Lock(pendingKey(pendingID))
	defer unlock()

	var restored models.MatchHistoryEntry
	err := e.store.Transaction(ctx, func(tx *store.Store) error {
		p, err := tx.GetPending(ctx, pendingID)
		if err != nil {
			return fmt.Errorf("pending offer %d: %w", pendingID, err)
		}
		ok, err := tx.TransitionPending(ctx, p.ID, models.StatusDiscarded, models.StatusPending)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("pending offer %d is %s: %w", p.ID, p.Status, ErrAlreadyResolved)
		}
		if err := tx.Unblacklist(ctx, p.URL); err != nil {
			return fmt.Errorf("unblacklist url: %w", err)
		}

		restored = e.newEntry(models.ActionRestored)
		restored.PendingOfferID = uintPtr(p.ID)
		restored.ShopName = p.ShopName
		restored.OfferURL = p.URL
		restored.Price = p.Price
		restored.Reason = fmt.Sprintf("revert of history %d", entry.ID)
		restored.RevertsID = uintPtr(entry.ID)
		restored.Details = models.EncodeDetails(models.HistoryDetails{PriorStatus: models.StatusDiscarded})
		if err := tx.AppendHistory(ctx, &restored); err != nil {
			return historyError(err)
		}
		return nil
	})
	if err != nil {
		return models.MatchHistoryEntry{}, err
	}

	e.emit(ctx, restored)
	return restored, nil
}

func (e *Engine) revertRestore(ctx context.Context, entry models.MatchHistoryEntry) (models.MatchHistoryEntry, error) {
	if entry.PendingOfferID == nil {
		return models.MatchHistoryEntry{}, fmt.Errorf("history %d has no listing: %w", entry.ID, ErrNotRevertible)
	}
	pendingID := *entry.PendingOfferID

	unlock := e.locks.Lock(pendingKey(pendingID))
	defer unlock()

	var discarded models.MatchHistoryEntry
	err := e.store.Transaction(ctx, func(tx *store.Store) error {
		p, err := tx.GetPending(ctx, pendingID)
		if err != nil {
			return fmt.Errorf("pending offer %d: %w", pendingID, err)
		}
		discarded, err = e.discardTx(ctx, tx, p, fmt.Sprintf("revert of history %d", entry.ID), uintPtr(entry.ID))
		return err
	})
	if err != nil {
		return models.MatchHistoryEntry{}, err
	}

	e.emit(ctx, discarded)
	return discarded, nil
}

// History returns the most recent history entries.
func (e *Engine) History(ctx context.Context, limit int) ([]models.MatchHistoryEntry, error) {
	return e.store.ListHistory(ctx, limit)
}
