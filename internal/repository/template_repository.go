package repository

import (
	"context"
	"errors"

	"github.com/noah-isme/lms-platform/internal/models"
	"github.com/noah-isme/lms-platform/pkg/store"
)

// TemplateRepository persists the router's template configuration cell.
type TemplateRepository struct {
	store *store.Store
}

// NewTemplateRepository constructs a TemplateRepository.
func NewTemplateRepository(s *store.Store) *TemplateRepository {
	return &TemplateRepository{store: s}
}

// Get returns the stored configuration, or the default when none was saved.
func (r *TemplateRepository) Get(ctx context.Context) (models.TemplateConfig, error) {
	cfg := models.DefaultTemplateConfig()
	err := r.store.View(ctx, func(tx *store.Tx) error {
		raw, err := tx.Cell(CellTemplate)
		if err != nil {
			if errors.Is(err, store.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		cfg, err = templateSchema.Decode(raw)
		return err
	})
	return cfg, err
}

// Save replaces the configuration.
func (r *TemplateRepository) Save(ctx context.Context, cfg models.TemplateConfig) error {
	raw, err := templateSchema.Encode(cfg)
	if err != nil {
		return err
	}
	return r.store.Update(ctx, func(tx *store.Tx) error {
		return tx.SetCell(CellTemplate, raw)
	})
}
