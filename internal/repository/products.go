package repository

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/olliezdai13/SmartFridge/constants"
	"github.com/olliezdai13/SmartFridge/internal/entity"
)

type ProductRepository interface {
	ListUncategorized(ctx context.Context, limit int) ([]*entity.Product, error)
	// ApplyCategories assigns categories in one transaction. A product whose
	// category was set since the scan is skipped rather than overwritten.
	ApplyCategories(ctx context.Context, updates map[string]constants.Category) (int, error)
}

type productRepo struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewProductRepository(db *gorm.DB, logger *slog.Logger) ProductRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &productRepo{db: db, logger: logger}
}

func (r *productRepo) ListUncategorized(ctx context.Context, limit int) ([]*entity.Product, error) {
	var products []*entity.Product
	q := r.db.WithContext(ctx).
		Where("category IS NULL OR category = ''").
		Order("name ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&products).Error; err != nil {
		r.logger.Error("products.list_uncategorized.failed", "error", err)
		return nil, err
	}
	return products, nil
}

func (r *productRepo) ApplyCategories(ctx context.Context, updates map[string]constants.Category) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	updated := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for name, category := range updates {
			var product entity.Product
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("name = ?", name).First(&product).Error
			if err != nil {
				return fmt.Errorf("load product %q: %w", name, err)
			}
			if product.Category != nil && *product.Category != "" {
				// Assigned by a concurrent run; leave it alone.
				continue
			}
			cat := string(category)
			if err := tx.Model(&entity.Product{}).
				Where("id = ?", product.ID).
				Update("category", cat).Error; err != nil {
				return fmt.Errorf("update product %q: %w", name, err)
			}
			updated++
		}
		return nil
	})
	if err != nil {
		r.logger.Error("products.apply_categories.failed", "error", err)
		return 0, err
	}
	r.logger.Info("products.apply_categories.ok", "updated", updated, "batch", len(updates))
	return updated, nil
}
