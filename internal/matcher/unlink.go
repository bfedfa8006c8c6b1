package matcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/models"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/store"
)

// lockAttempts bounds retries when an offer changes product between being
// read and being locked.
const lockAttempts = 3

type unlinkOpts struct {
	onlyAction    models.HistoryAction
	expectProduct *uint
	revertsID     *uint
	info          string
}

// Unlink removes an offer from its product and returns the listing it came
// from, if any, to the pending queue.
func (e *Engine) Unlink(ctx context.Context, offerID uint) error {
	_, err := e.unlink(ctx, offerID, unlinkOpts{info: "manual unlink"})
	return err
}

// Relink moves an offer to another product in one transaction. The listing
// behind the offer stays matched throughout.
func (e *Engine) Relink(ctx context.Context, offerID, productID uint) (models.Offer, error) {
	for attempt := 0; attempt < lockAttempts; attempt++ {
		o, err := e.store.GetOffer(ctx, offerID)
		if err != nil {
			return models.Offer{}, fmt.Errorf("offer %d: %w", offerID, err)
		}
		moved, err := e.relinkLocked(ctx, o, productID)
		if errors.Is(err, errOfferMoved) {
			continue
		}
		return moved, err
	}
	return models.Offer{}, fmt.Errorf("offer %d kept moving: %w", offerID, ErrAlreadyResolved)
}

// ResetSmartMatches unlinks every offer whose link was decided automatically.
// Offers a human confirmed or relinked are left alone. Work proceeds in paced
// batches with per-offer locks.
func (e *Engine) ResetSmartMatches(ctx context.Context) (int, error) {
	var (
		total int
		after uint
	)
	for {
		ids, err := e.store.OfferIDsByLinkAction(ctx, models.ActionLinkedAuto, after, e.cfg.BatchSize)
		if err != nil {
			return total, fmt.Errorf("page auto-linked offers: %w", err)
		}
		if len(ids) == 0 {
			break
		}
		for _, id := range ids {
			_, err := e.unlink(ctx, id, unlinkOpts{onlyAction: models.ActionLinkedAuto, info: "reset smart matches"})
			switch {
			case err == nil:
				total++
			case errors.Is(err, errSkipped), errors.Is(err, ErrNotFound), errors.Is(err, ErrAlreadyResolved):
			default:
				return total, err
			}
		}
		after = ids[len(ids)-1]
		if err := e.pace(ctx); err != nil {
			return total, err
		}
	}

	logrus.WithField("unlinked", total).Info("Smart matches reset")
	return total, nil
}

func (e *Engine) unlink(ctx context.Context, offerID uint, opts unlinkOpts) (models.MatchHistoryEntry, error) {
	for attempt := 0; attempt < lockAttempts; attempt++ {
		o, err := e.store.GetOffer(ctx, offerID)
		if err != nil {
			return models.MatchHistoryEntry{}, fmt.Errorf("offer %d: %w", offerID, err)
		}
		entry, err := e.unlinkLocked(ctx, o, opts)
		if errors.Is(err, errOfferMoved) {
			continue
		}
		return entry, err
	}
	return models.MatchHistoryEntry{}, fmt.Errorf("offer %d kept moving: %w", offerID, ErrAlreadyResolved)
}

func offerLockKeys(o models.Offer) []string {
	keys := []string{offerKey(o.ID), productKey(o.ProductID)}
	if o.PendingOfferID != nil {
		keys = append(keys, pendingKey(*o.PendingOfferID))
	}
	return keys
}

func (e *Engine) unlinkLocked(ctx context.Context, seen models.Offer, opts unlinkOpts) (models.MatchHistoryEntry, error) {
	unlock := e.locks.Lock(offerLockKeys(seen)...)
	defer unlock()

	var entry models.MatchHistoryEntry
	err := e.store.Transaction(ctx, func(tx *store.Store) error {
		cur, err := tx.GetOffer(ctx, seen.ID)
		if err != nil {
			return fmt.Errorf("offer %d: %w", seen.ID, err)
		}
		if opts.expectProduct != nil && cur.ProductID != *opts.expectProduct {
			return fmt.Errorf("offer %d now belongs to product %d: %w", cur.ID, cur.ProductID, ErrAlreadyResolved)
		}
		if cur.ProductID != seen.ProductID || derefUint(cur.PendingOfferID) != derefUint(seen.PendingOfferID) {
			return errOfferMoved
		}
		if opts.onlyAction != "" && cur.LinkAction != opts.onlyAction {
			return errSkipped
		}
		entry, err = e.unlinkTx(ctx, tx, cur, opts)
		return err
	})
	if err != nil {
		return models.MatchHistoryEntry{}, err
	}

	e.emit(ctx, entry)
	return entry, nil
}

func (e *Engine) unlinkTx(ctx context.Context, tx *store.Store, o models.Offer, opts unlinkOpts) (models.MatchHistoryEntry, error) {
	if _, err := tx.DeleteOffer(ctx, o.ID); err != nil {
		return models.MatchHistoryEntry{}, fmt.Errorf("delete offer: %w", err)
	}

	details := models.HistoryDetails{
		Info:           opts.info,
		PriorProductID: uintPtr(o.ProductID),
		Offer:          o.Snapshot(),
	}
	if o.PendingOfferID != nil {
		details.PriorStatus = models.StatusMatched
		ok, err := tx.TransitionPending(ctx, *o.PendingOfferID, models.StatusMatched, models.StatusPending)
		if err != nil {
			return models.MatchHistoryEntry{}, err
		}
		if !ok {
			logrus.WithFields(logrus.Fields{
				"offer_id":   o.ID,
				"pending_id": *o.PendingOfferID,
			}).Warn("Listing behind unlinked offer was not matched")
		}
	}

	entry := e.newEntry(models.ActionUnlinked)
	entry.PendingOfferID = o.PendingOfferID
	entry.OfferID = uintPtr(o.ID)
	entry.ProductID = uintPtr(o.ProductID)
	entry.ShopName = o.ShopName
	entry.OfferURL = o.URL
	entry.Price = o.Price
	entry.Reason = opts.info
	entry.RevertsID = opts.revertsID
	entry.Details = models.EncodeDetails(details)
	if err := tx.AppendHistory(ctx, &entry); err != nil {
		return models.MatchHistoryEntry{}, historyError(err)
	}
	if err := tx.RecomputeBest(ctx, o.ProductID); err != nil {
		return models.MatchHistoryEntry{}, fmt.Errorf("recompute best offer: %w", err)
	}
	return entry, nil
}

func (e *Engine) relinkLocked(ctx context.Context, seen models.Offer, productID uint) (models.Offer, error) {
	unlock := e.locks.Lock(append(offerLockKeys(seen), productKey(productID))...)
	defer unlock()

	var (
		moved   models.Offer
		entries []models.MatchHistoryEntry
	)
	err := e.store.Transaction(ctx, func(tx *store.Store) error {
		cur, err := tx.GetOffer(ctx, seen.ID)
		if err != nil {
			return fmt.Errorf("offer %d: %w", seen.ID, err)
		}
		if cur.ProductID != seen.ProductID {
			return errOfferMoved
		}
		target, err := tx.GetProduct(ctx, productID)
		if err != nil {
			return fmt.Errorf("product %d: %w", productID, err)
		}
		if cur.ProductID == target.ID {
			moved = cur
			return nil
		}

		from := cur.ProductID
		snapshot := cur.Snapshot()

		unlinked := e.newEntry(models.ActionUnlinked)
		unlinked.PendingOfferID = cur.PendingOfferID
		unlinked.OfferID = uintPtr(cur.ID)
		unlinked.ProductID = uintPtr(from)
		unlinked.ShopName = cur.ShopName
		unlinked.OfferURL = cur.URL
		unlinked.Price = cur.Price
		unlinked.Reason = "relink"
		unlinked.Details = models.EncodeDetails(models.HistoryDetails{
			Info:           fmt.Sprintf("moved to product %d", target.ID),
			PriorStatus:    models.StatusMatched,
			PriorProductID: uintPtr(from),
			Offer:          snapshot,
		})
		if err := tx.AppendHistory(ctx, &unlinked); err != nil {
			return fmt.Errorf("append history: %w", err)
		}

		linked := e.newEntry(models.ActionLinkedManual)
		linked.PendingOfferID = cur.PendingOfferID
		linked.OfferID = uintPtr(cur.ID)
		linked.ProductID = uintPtr(target.ID)
		linked.ShopName = cur.ShopName
		linked.OfferURL = cur.URL
		linked.Price = cur.Price
		linked.Reason = "relink"
		linked.Details = models.EncodeDetails(models.HistoryDetails{
			Info:           fmt.Sprintf("moved from product %d", from),
			PriorStatus:    models.StatusMatched,
			PriorProductID: uintPtr(from),
			Offer:          snapshot,
		})
		if err := tx.AppendHistory(ctx, &linked); err != nil {
			return fmt.Errorf("append history: %w", err)
		}

		if err := tx.MoveOffer(ctx, cur.ID, target.ID, models.ActionLinkedManual, linked.ID); err != nil {
			return fmt.Errorf("move offer: %w", err)
		}
		for _, pid := range []uint{from, target.ID} {
			if err := tx.RecomputeBest(ctx, pid); err != nil {
				return fmt.Errorf("recompute best offer: %w", err)
			}
		}

		moved, err = tx.GetOffer(ctx, cur.ID)
		entries = []models.MatchHistoryEntry{unlinked, linked}
		return err
	})
	if err != nil {
		return models.Offer{}, err
	}

	e.emit(ctx, entries...)
	return moved, nil
}
