package matcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/models"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/normalize"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/scoring"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/store"
)

// AutoDecision is the outcome of the auto-match policy for one listing.
type AutoDecision string

const (
	AutoLinked         AutoDecision = "linked"
	AutoAmbiguous      AutoDecision = "ambiguous"
	AutoBelowThreshold AutoDecision = "below_threshold"
	AutoNoCandidates   AutoDecision = "no_candidates"
	AutoSkipped        AutoDecision = "skipped"
)

// SweepResult summarizes an auto-match pass over the queue.
type SweepResult struct {
	Scanned   int `json:"scanned"`
	Linked    int `json:"linked"`
	Ambiguous int `json:"ambiguous"`
	Unmatched int `json:"unmatched"`
}

// ConfirmMatch links a queued listing to a product on a human's behalf. If
// the listing was already matched the existing offer is returned together
// with ErrAlreadyResolved.
func (e *Engine) ConfirmMatch(ctx context.Context, pendingID, productID uint) (models.Offer, error) {
	score, reason := 0.0, "manual"
	if p, err := e.store.GetPending(ctx, pendingID); err == nil {
		if entry, ok := e.index.Get(productID); ok {
			o := NormalizePending(p)
			r := scoring.Score(offerSubject(p, o), entry.Subject())
			score, reason = r.Score, string(r.Reason)
		}
	}
	return e.confirm(ctx, pendingID, productID, models.ActionLinkedManual, score, reason)
}

// AutoMatch applies the auto-link policy to one listing: the top suggestion
// is linked when it reaches the threshold and the runner-up trails it by more
// than the margin.
func (e *Engine) AutoMatch(ctx context.Context, pendingID uint) (AutoDecision, error) {
	p, err := e.store.GetPending(ctx, pendingID)
	if err != nil {
		return "", fmt.Errorf("pending offer %d: %w", pendingID, err)
	}
	if p.Status != models.StatusPending {
		return AutoSkipped, nil
	}

	suggestions := e.SuggestFor(p)
	decision := e.decide(suggestions)
	if decision != AutoLinked {
		return decision, nil
	}

	top := suggestions[0]
	_, err = e.confirm(ctx, p.ID, top.ProductID, models.ActionLinkedAuto, top.MatchScore, string(top.Reason))
	switch {
	case errors.Is(err, ErrAlreadyResolved), errors.Is(err, ErrNotFound):
		return AutoSkipped, nil
	case err != nil:
		return "", err
	}
	return AutoLinked, nil
}

func (e *Engine) decide(s []Suggestion) AutoDecision {
	if len(s) == 0 {
		return AutoNoCandidates
	}
	if s[0].MatchScore < e.cfg.AutoLinkThreshold {
		return AutoBelowThreshold
	}
	if len(s) > 1 && s[0].MatchScore-s[1].MatchScore <= e.cfg.AutoLinkMargin {
		return AutoAmbiguous
	}
	return AutoLinked
}

// SweepPending runs the auto-match policy over the whole queue in paced batches.
func (e *Engine) SweepPending(ctx context.Context) (SweepResult, error) {
	var (
		res   SweepResult
		after uint
	)
	for {
		ids, err := e.store.PendingIDsAfter(ctx, models.StatusPending, after, e.cfg.BatchSize)
		if err != nil {
			return res, fmt.Errorf("page pending: %w", err)
		}
		if len(ids) == 0 {
			break
		}
		for _, id := range ids {
			decision, err := e.AutoMatch(ctx, id)
			if err != nil {
				return res, err
			}
			res.Scanned++
			switch decision {
			case AutoLinked:
				res.Linked++
			case AutoAmbiguous:
				res.Ambiguous++
			case AutoBelowThreshold, AutoNoCandidates:
				res.Unmatched++
			}
		}
		after = ids[len(ids)-1]
		if err := e.pace(ctx); err != nil {
			return res, err
		}
	}

	logrus.WithFields(logrus.Fields{
		"scanned":   res.Scanned,
		"linked":    res.Linked,
		"ambiguous": res.Ambiguous,
	}).Info("Auto-match sweep finished")
	return res, nil
}

func (e *Engine) confirm(ctx context.Context, pendingID, productID uint, action models.HistoryAction, score float64, reason string) (models.Offer, error) {
	unlock := e.locks.Lock(pendingKey(pendingID), productKey(productID))
	defer unlock()

	var (
		offer  models.Offer
		linked linkResult
	)
	err := e.store.Transaction(ctx, func(tx *store.Store) error {
		p, err := tx.GetPending(ctx, pendingID)
		if err != nil {
			return fmt.Errorf("pending offer %d: %w", pendingID, err)
		}
		product, err := tx.GetProduct(ctx, productID)
		if err != nil {
			return fmt.Errorf("product %d: %w", productID, err)
		}
		if p.Status != models.StatusPending {
			if existing, err := tx.OfferByPending(ctx, p.ID); err == nil {
				offer = existing
			}
			return fmt.Errorf("pending offer %d is %s: %w", p.ID, p.Status, ErrAlreadyResolved)
		}

		linked, err = e.linkTx(ctx, tx, linkRequest{
			pending: &p,
			product: product,
			action:  action,
			score:   score,
			reason:  reason,
		})
		if err != nil {
			return err
		}
		offer = linked.offer
		return nil
	})
	if err != nil {
		return offer, err
	}

	if linked.backfilled {
		e.index.Upsert(linked.product)
	}
	e.emit(ctx, linked.entry)
	return offer, nil
}

type linkRequest struct {
	pending   *models.PendingOffer
	product   models.Product
	action    models.HistoryAction
	score     float64
	reason    string
	snapshot  *models.OfferSnapshot
	revertsID *uint
}

type linkResult struct {
	offer      models.Offer
	entry      models.MatchHistoryEntry
	product    models.Product
	backfilled bool
}

// linkTx creates the offer for a link decision and records it. The listing,
// when present, must still be pending.
func (e *Engine) linkTx(ctx context.Context, tx *store.Store, req linkRequest) (linkResult, error) {
	var res linkResult
	now := e.now()

	offer := models.Offer{
		ProductID:   req.product.ID,
		IsAvailable: true,
		LinkAction:  req.action,
		LastSeen:    now,
	}
	if p := req.pending; p != nil {
		ok, err := tx.TransitionPending(ctx, p.ID, models.StatusPending, models.StatusMatched)
		if err != nil {
			return res, err
		}
		if !ok {
			return res, fmt.Errorf("pending offer %d: %w", p.ID, ErrAlreadyResolved)
		}
		offer.PendingOfferID = uintPtr(p.ID)
		offer.ShopName = p.ShopName
		offer.Price = p.Price
		offer.Currency = p.Currency
		offer.URL = p.URL
		offer.SaleType = saleTypeFor(p.OriginCategory)
		offer.SourceType = p.SourceType
		offer.MinPrice, offer.MaxPrice = p.Price, p.Price
		offer.FirstSeenAt = p.FoundAt
	}
	if s := req.snapshot; s != nil {
		offer.ShopName = s.ShopName
		offer.Price = s.Price
		offer.Currency = s.Currency
		offer.URL = s.URL
		offer.SaleType = s.SaleType
		offer.SourceType = s.SourceType
		offer.IsAvailable = s.IsAvailable
		offer.MinPrice, offer.MaxPrice = s.MinPrice, s.MaxPrice
		offer.FirstSeenAt = s.FirstSeenAt
	}
	if offer.FirstSeenAt.IsZero() {
		offer.FirstSeenAt = now
	}
	if err := tx.CreateOffer(ctx, &offer); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return res, fmt.Errorf("offer for pending %d exists: %w", derefUint(offer.PendingOfferID), ErrAlreadyResolved)
		}
		return res, fmt.Errorf("create offer: %w", err)
	}

	entry := e.newEntry(req.action)
	entry.PendingOfferID = offer.PendingOfferID
	entry.OfferID = uintPtr(offer.ID)
	entry.ProductID = uintPtr(req.product.ID)
	entry.ShopName = offer.ShopName
	entry.OfferURL = offer.URL
	entry.Price = offer.Price
	entry.Score = req.score
	entry.Reason = req.reason
	entry.RevertsID = req.revertsID
	entry.Details = models.EncodeDetails(models.HistoryDetails{
		PriorStatus: models.StatusPending,
		Offer:       offer.Snapshot(),
	})
	if err := tx.AppendHistory(ctx, &entry); err != nil {
		return res, historyError(err)
	}
	if err := tx.SetLinkHistory(ctx, offer.ID, entry.ID); err != nil {
		return res, err
	}
	offer.LinkHistoryID = uintPtr(entry.ID)
	if err := tx.RecomputeBest(ctx, req.product.ID); err != nil {
		return res, fmt.Errorf("recompute best offer: %w", err)
	}

	res.product = req.product
	if req.action == models.ActionLinkedManual && req.pending != nil && req.product.EAN == nil && req.pending.EAN != nil {
		if code := normalize.CleanCode(*req.pending.EAN); code != "" {
			if err := tx.UpdateProductFields(ctx, req.product.ID, map[string]interface{}{"ean": code}); err != nil {
				return res, fmt.Errorf("backfill ean: %w", err)
			}
			res.product.EAN = &code
			res.backfilled = true
		}
	}

	if fresh, err := tx.GetOffer(ctx, offer.ID); err == nil {
		offer = fresh
	}
	res.offer = offer
	res.entry = entry
	return res, nil
}

// historyError maps a unique violation on reverts_id to ErrAlreadyReverted.
func historyError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("append history: %w", ErrAlreadyReverted)
	}
	return fmt.Errorf("append history: %w", err)
}
