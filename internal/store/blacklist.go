package store

import (
	"context"

	"gorm.io/gorm/clause"

	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/models"
)

// Blacklist remembers a discarded listing URL. Repeated calls keep the first reason.
func (s *Store) Blacklist(ctx context.Context, item models.BlacklistedItem) error {
	return s.with(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "url"}}, DoNothing: true}).
		Create(&item).Error
}

// Unblacklist forgets a URL.
func (s *Store) Unblacklist(ctx context.Context, url string) error {
	return s.with(ctx).Where("url = ?", url).Delete(&models.BlacklistedItem{}).Error
}

// BlacklistedURLs returns which of urls are blacklisted.
func (s *Store) BlacklistedURLs(ctx context.Context, urls []string) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(urls))
	if len(urls) == 0 {
		return out, nil
	}
	var found []string
	err := s.with(ctx).Model(&models.BlacklistedItem{}).Where("url IN ?", urls).Pluck("url", &found).Error
	if err != nil {
		return nil, err
	}
	for _, u := range found {
		out[u] = struct{}{}
	}
	return out, nil
}
