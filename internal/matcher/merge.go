package matcher

import (
	"context"
	"fmt"

	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/models"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/store"
)

// MergeResult describes a completed merge.
type MergeResult struct {
	SourceID    uint           `json:"source_id"`
	TargetID    uint           `json:"target_id"`
	MovedOffers int64          `json:"moved_offers"`
	Target      models.Product `json:"target"`
}

// Merge folds the source product into the target: every offer moves to the
// target and the source is deleted, all in one transaction. Identifiers the
// target lacks are copied from the source.
func (e *Engine) Merge(ctx context.Context, sourceID, targetID uint) (MergeResult, error) {
	if sourceID == targetID {
		return MergeResult{}, fmt.Errorf("product %d: %w", sourceID, ErrSelfMergeRejected)
	}

	unlock := e.locks.Lock(productKey(sourceID), productKey(targetID))
	defer unlock()

	res := MergeResult{SourceID: sourceID, TargetID: targetID}
	var entry models.MatchHistoryEntry
	err := e.store.Transaction(ctx, func(tx *store.Store) error {
		source, err := tx.GetProduct(ctx, sourceID)
		if err != nil {
			return fmt.Errorf("source product %d: %w", sourceID, err)
		}
		target, err := tx.GetProduct(ctx, targetID)
		if err != nil {
			return fmt.Errorf("target product %d: %w", targetID, err)
		}

		moved, err := tx.ReassignOffers(ctx, source.ID, target.ID)
		if err != nil {
			return fmt.Errorf("reassign offers: %w", err)
		}
		res.MovedOffers = moved

		// the source goes first so its unique identifiers can move to the target
		if err := tx.DeleteProduct(ctx, source.ID); err != nil {
			return fmt.Errorf("delete source product: %w", err)
		}
		if err := tx.UpdateProductFields(ctx, target.ID, inheritedFields(source, target)); err != nil {
			return fmt.Errorf("update target product: %w", err)
		}
		if err := tx.RecomputeBest(ctx, target.ID); err != nil {
			return fmt.Errorf("recompute best offer: %w", err)
		}

		entry = e.newEntry(models.ActionMerged)
		entry.ProductID = uintPtr(target.ID)
		entry.Reason = "merge"
		entry.Details = models.EncodeDetails(models.HistoryDetails{
			Info:           fmt.Sprintf("merged %q into %q, %d offers moved", source.Name, target.Name, moved),
			PriorProductID: uintPtr(source.ID),
		})
		if err := tx.AppendHistory(ctx, &entry); err != nil {
			return fmt.Errorf("append history: %w", err)
		}

		res.Target, err = tx.GetProduct(ctx, target.ID)
		return err
	})
	if err != nil {
		return MergeResult{}, err
	}

	e.index.Remove(sourceID)
	e.index.Upsert(res.Target)
	e.emit(ctx, entry)
	return res, nil
}

func inheritedFields(source, target models.Product) map[string]interface{} {
	fields := map[string]interface{}{}
	if target.EAN == nil && source.EAN != nil {
		fields["ean"] = *source.EAN
	}
	if target.UPC == nil && source.UPC != nil {
		fields["upc"] = *source.UPC
	}
	if target.ASIN == nil && source.ASIN != nil {
		fields["asin"] = *source.ASIN
	}
	if target.FigureID == nil && source.FigureID != nil {
		fields["figure_id"] = *source.FigureID
	}
	if target.ImageURL == "" && source.ImageURL != "" {
		fields["image_url"] = source.ImageURL
	}
	return fields
}
