package store

import (
	"context"

	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/models"
)

// CreateProduct inserts a catalog product.
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	return s.with(ctx).Create(p).Error
}

// GetProduct loads a product by id.
//
// Returns:
//   - ErrNotFound when no product has that id
func (s *Store) GetProduct(ctx context.Context, id uint) (models.Product, error) {
	var p models.Product
	err := s.with(ctx).First(&p, id).Error
	return p, notFound(err)
}

// ListProducts returns the whole catalog ordered by id.
func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.with(ctx).Order("id").Find(&products).Error
	return products, err
}

// UpdateProductFields applies a partial update to a product.
func (s *Store) UpdateProductFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	return s.with(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(fields).Error
}

// DeleteProduct removes a product row.
func (s *Store) DeleteProduct(ctx context.Context, id uint) error {
	res := s.with(ctx).Delete(&models.Product{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
