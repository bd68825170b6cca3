package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/noah-isme/lms-platform/internal/models"
	"github.com/noah-isme/lms-platform/pkg/store"
)

// ErrTenantMismatch is returned when a store already belongs to another tenant.
var ErrTenantMismatch = errors.New("store initialized for a different tenant")

// TenantStateRepository persists the initialization cell of a tenant instance.
type TenantStateRepository struct {
	store *store.Store
}

// NewTenantStateRepository constructs a TenantStateRepository.
func NewTenantStateRepository(s *store.Store) *TenantStateRepository {
	return &TenantStateRepository{store: s}
}

// Get returns the stored state or ErrNotFound before initialization.
func (r *TenantStateRepository) Get(ctx context.Context) (*models.TenantState, error) {
	var state models.TenantState
	err := r.store.View(ctx, func(tx *store.Tx) error {
		raw, err := tx.Cell(CellTenantState)
		if err != nil {
			if errors.Is(err, store.ErrKeyNotFound) {
				return fmt.Errorf("tenant state: %w", ErrNotFound)
			}
			return err
		}
		state, err = tenantStateSchema.Decode(raw)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// Initialize stores state and the bootstrap user unless the instance was
// already initialized. Re-initializing with the same tenant id returns the
// existing state and created=false; a different tenant id fails with
// ErrTenantMismatch.
func (r *TenantStateRepository) Initialize(ctx context.Context, state models.TenantState, admin models.User) (*models.TenantState, bool, error) {
	users := recordMap[models.User]{bucket: BucketUsers, schema: userSchema}

	var (
		current models.TenantState
		created bool
	)
	err := r.store.Update(ctx, func(tx *store.Tx) error {
		raw, err := tx.Cell(CellTenantState)
		switch {
		case err == nil:
			current, err = tenantStateSchema.Decode(raw)
			if err != nil {
				return err
			}
			if current.TenantID != state.TenantID {
				return fmt.Errorf("%w: have %s, got %s", ErrTenantMismatch, current.TenantID, state.TenantID)
			}
			return nil
		case !errors.Is(err, store.ErrKeyNotFound):
			return err
		}

		raw, err = tenantStateSchema.Encode(state)
		if err != nil {
			return err
		}
		if err := tx.SetCell(CellTenantState, raw); err != nil {
			return err
		}
		exists, err := users.has(tx, admin.ID)
		if err != nil {
			return err
		}
		if !exists {
			if err := users.put(tx, admin.ID, admin); err != nil {
				return err
			}
		}
		current = state
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &current, created, nil
}
