package store

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/models"
)

// CreatePending queues a listing unless its URL is already queued.
//
// Returns:
//   - bool: true when a new row was inserted
func (s *Store) CreatePending(ctx context.Context, p *models.PendingOffer) (bool, error) {
	res := s.with(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "url"}}, DoNothing: true}).
		Create(p)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetPending loads a queued listing by id.
func (s *Store) GetPending(ctx context.Context, id uint) (models.PendingOffer, error) {
	var p models.PendingOffer
	err := s.with(ctx).First(&p, id).Error
	return p, notFound(err)
}

// ListPending returns listings in the given status, newest first.
func (s *Store) ListPending(ctx context.Context, status models.PendingStatus, limit int) ([]models.PendingOffer, error) {
	var out []models.PendingOffer
	q := s.with(ctx).Where("status = ?", status).Order("found_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// PendingIDsAfter pages through ids of listings in status, ascending.
func (s *Store) PendingIDsAfter(ctx context.Context, status models.PendingStatus, afterID uint, limit int) ([]uint, error) {
	var ids []uint
	err := s.with(ctx).Model(&models.PendingOffer{}).
		Where("status = ? AND id > ?", status, afterID).
		Order("id").Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

// QueuedURLs returns which of urls already have a queue row, in any status.
func (s *Store) QueuedURLs(ctx context.Context, urls []string) (map[string]models.PendingStatus, error) {
	out := make(map[string]models.PendingStatus, len(urls))
	if len(urls) == 0 {
		return out, nil
	}
	var rows []models.PendingOffer
	if err := s.with(ctx).Select("url", "status").Where("url IN ?", urls).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.URL] = r.Status
	}
	return out, nil
}

// TransitionPending moves a listing from one status to another only if it is
// still in the expected status. Losing a race yields false, not an error.
func (s *Store) TransitionPending(ctx context.Context, id uint, from, to models.PendingStatus) (bool, error) {
	updates := map[string]interface{}{"status": to, "updated_at": time.Now().UTC()}
	if to == models.StatusPending {
		updates["resolved_at"] = nil
	} else {
		updates["resolved_at"] = time.Now().UTC()
	}
	res := s.with(ctx).Model(&models.PendingOffer{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RequeuePending moves a discarded listing back to pending with fresh scrape
// data. It reports false when the listing is no longer discarded.
func (s *Store) RequeuePending(ctx context.Context, id uint, fields map[string]interface{}) (bool, error) {
	fields["status"] = models.StatusPending
	fields["resolved_at"] = nil
	fields["updated_at"] = time.Now().UTC()
	res := s.with(ctx).Model(&models.PendingOffer{}).
		Where("id = ? AND status = ?", id, models.StatusDiscarded).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CountPending returns the number of listings per status.
func (s *Store) CountPending(ctx context.Context) (map[models.PendingStatus]int64, error) {
	type row struct {
		Status models.PendingStatus
		N      int64
	}
	var rows []row
	err := s.with(ctx).Model(&models.PendingOffer{}).
		Select("status, count(*) as n").Group("status").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[models.PendingStatus]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}

// PendingIDsByURL maps each queued URL to its row id.
func (s *Store) PendingIDsByURL(ctx context.Context, urls []string) (map[string]uint, error) {
	out := make(map[string]uint, len(urls))
	if len(urls) == 0 {
		return out, nil
	}
	var rows []models.PendingOffer
	if err := s.with(ctx).Select("id", "url").Where("url IN ?", urls).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.URL] = r.ID
	}
	return out, nil
}
