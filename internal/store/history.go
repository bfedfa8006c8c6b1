package store

import (
	"context"

	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/models"
)

// AppendHistory inserts an audit entry. Entries are never updated.
func (s *Store) AppendHistory(ctx context.Context, e *models.MatchHistoryEntry) error {
	return s.with(ctx).Create(e).Error
}

// GetHistory loads an audit entry by id.
func (s *Store) GetHistory(ctx context.Context, id uint) (models.MatchHistoryEntry, error) {
	var e models.MatchHistoryEntry
	err := s.with(ctx).First(&e, id).Error
	return e, notFound(err)
}

// RevertOf returns the entry that reverted id, if any.
func (s *Store) RevertOf(ctx context.Context, id uint) (models.MatchHistoryEntry, bool, error) {
	var e models.MatchHistoryEntry
	res := s.with(ctx).Where("reverts_id = ?", id).Limit(1).Find(&e)
	if res.Error != nil {
		return e, false, res.Error
	}
	return e, res.RowsAffected > 0, nil
}

// ListHistory returns the most recent entries first.
func (s *Store) ListHistory(ctx context.Context, limit int) ([]models.MatchHistoryEntry, error) {
	var out []models.MatchHistoryEntry
	q := s.with(ctx).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// HistoryForOffer lists entries touching an offer, oldest first.
func (s *Store) HistoryForOffer(ctx context.Context, offerID uint) ([]models.MatchHistoryEntry, error) {
	var out []models.MatchHistoryEntry
	err := s.with(ctx).Where("offer_id = ?", offerID).Order("id").Find(&out).Error
	return out, err
}
