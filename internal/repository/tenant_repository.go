package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/noah-isme/lms-platform/internal/models"
	"github.com/noah-isme/lms-platform/pkg/codec"
	"github.com/noah-isme/lms-platform/pkg/store"
)

var (
	// ErrSubdomainTaken is returned when a subdomain already has a route.
	ErrSubdomainTaken = errors.New("subdomain already registered")
	// ErrInstanceTaken is returned when another tenant already owns the instance.
	ErrInstanceTaken = errors.New("instance already owned by a tenant")
)

// TenantRepository owns the tenant registry and the routing table. Both maps
// live in one store so registration and removal commit together.
type TenantRepository struct {
	store   *store.Store
	tenants recordMap[models.TenantRecord]
	routes  recordMap[models.RoutingEntry]
}

// NewTenantRepository constructs a TenantRepository.
func NewTenantRepository(s *store.Store) *TenantRepository {
	return &TenantRepository{
		store:   s,
		tenants: recordMap[models.TenantRecord]{bucket: BucketTenants, schema: tenantSchema},
		routes:  recordMap[models.RoutingEntry]{bucket: BucketRoutes, schema: routeSchema},
	}
}

// Register writes the tenant and its route. The subdomain, tenant id and
// instance ownership are re-checked inside the transaction.
func (r *TenantRepository) Register(ctx context.Context, tenant *models.TenantRecord) error {
	return r.store.Update(ctx, func(tx *store.Tx) error {
		taken, err := r.routes.has(tx, tenant.Subdomain)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%s: %w", tenant.Subdomain, ErrSubdomainTaken)
		}
		exists, err := r.tenants.has(tx, tenant.TenantID)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("tenant %s: %w", tenant.TenantID, ErrDuplicate)
		}
		owners, err := r.tenants.filter(tx, func(t models.TenantRecord) bool { return t.InstanceID == tenant.InstanceID })
		if err != nil {
			return err
		}
		if len(owners) > 0 {
			return fmt.Errorf("instance %s owned by %s: %w", tenant.InstanceID, owners[0].TenantID, ErrInstanceTaken)
		}

		if err := r.tenants.put(tx, tenant.TenantID, *tenant); err != nil {
			return fmt.Errorf("put tenant: %w", err)
		}
		entry := models.RoutingEntry{Subdomain: tenant.Subdomain, InstanceID: tenant.InstanceID}
		if err := r.routes.put(tx, tenant.Subdomain, entry); err != nil {
			return fmt.Errorf("put route: %w", err)
		}
		return nil
	})
}

// SubdomainTaken reports whether a route exists for subdomain.
func (r *TenantRepository) SubdomainTaken(ctx context.Context, subdomain string) (bool, error) {
	var taken bool
	err := r.store.View(ctx, func(tx *store.Tx) error {
		var err error
		taken, err = r.routes.has(tx, subdomain)
		return err
	})
	return taken, err
}

// FindByID returns the tenant with id.
func (r *TenantRepository) FindByID(ctx context.Context, id string) (*models.TenantRecord, error) {
	var tenant models.TenantRecord
	err := r.store.View(ctx, func(tx *store.Tx) error {
		var err error
		tenant, err = r.tenants.get(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

// List returns every tenant in tenant id order.
func (r *TenantRepository) List(ctx context.Context) ([]models.TenantRecord, error) {
	var tenants []models.TenantRecord
	err := r.store.View(ctx, func(tx *store.Tx) error {
		var err error
		tenants, err = r.tenants.list(tx)
		return err
	})
	return tenants, err
}

// Oldest returns the earliest created tenant.
func (r *TenantRepository) Oldest(ctx context.Context) (*models.TenantRecord, error) {
	tenants, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(tenants) == 0 {
		return nil, fmt.Errorf("tenants: %w", ErrNotFound)
	}
	sort.SliceStable(tenants, func(i, j int) bool {
		return tenants[i].CreatedAt.Before(tenants[j].CreatedAt)
	})
	return &tenants[0], nil
}

// Update replaces a stored tenant record. The routing entry is unchanged.
func (r *TenantRepository) Update(ctx context.Context, tenant *models.TenantRecord) error {
	return r.store.Update(ctx, func(tx *store.Tx) error {
		exists, err := r.tenants.has(tx, tenant.TenantID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("tenant %s: %w", tenant.TenantID, ErrNotFound)
		}
		return r.tenants.put(tx, tenant.TenantID, *tenant)
	})
}

// Remove deletes the tenant and every route pointing at its instance. It
// returns the removed record and the subdomains unrouted.
func (r *TenantRepository) Remove(ctx context.Context, id string) (*models.TenantRecord, []string, error) {
	var (
		tenant   models.TenantRecord
		unrouted []string
	)
	err := r.store.Update(ctx, func(tx *store.Tx) error {
		var err error
		tenant, err = r.tenants.get(tx, id)
		if err != nil {
			return err
		}
		routes, err := r.routes.list(tx)
		if err != nil {
			return err
		}
		for _, route := range routes {
			if route.InstanceID != tenant.InstanceID {
				continue
			}
			if err := r.routes.delete(tx, route.Subdomain); err != nil {
				return err
			}
			unrouted = append(unrouted, route.Subdomain)
		}
		return r.tenants.delete(tx, id)
	})
	if err != nil {
		return nil, nil, err
	}
	return &tenant, unrouted, nil
}

// ClearAll empties both maps.
func (r *TenantRepository) ClearAll(ctx context.Context) (models.ClearResult, error) {
	var result models.ClearResult
	err := r.store.Update(ctx, func(tx *store.Tx) error {
		var err error
		if result.TenantsRemoved, err = r.tenants.clear(tx); err != nil {
			return err
		}
		result.RoutesRemoved, err = r.routes.clear(tx)
		return err
	})
	return result, err
}

// FindRoute returns the instance serving subdomain.
func (r *TenantRepository) FindRoute(ctx context.Context, subdomain string) (*models.RoutingEntry, error) {
	var entry models.RoutingEntry
	err := r.store.View(ctx, func(tx *store.Tx) error {
		var err error
		entry, err = r.routes.get(tx, subdomain)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListRoutes returns the routing table in subdomain order.
func (r *TenantRepository) ListRoutes(ctx context.Context) ([]models.RoutingEntry, error) {
	var routes []models.RoutingEntry
	err := r.store.View(ctx, func(tx *store.Tx) error {
		var err error
		routes, err = r.routes.list(tx)
		return err
	})
	return routes, err
}

// Snapshot reads both maps in one transaction.
func (r *TenantRepository) Snapshot(ctx context.Context) ([]models.TenantRecord, []models.RoutingEntry, error) {
	var (
		tenants []models.TenantRecord
		routes  []models.RoutingEntry
	)
	err := r.store.View(ctx, func(tx *store.Tx) error {
		var err error
		if tenants, err = r.tenants.list(tx); err != nil {
			return err
		}
		routes, err = r.routes.list(tx)
		return err
	})
	return tenants, routes, err
}

// PutRoute writes a routing entry on its own. It exists for repair tooling;
// normal registration goes through Register.
func (r *TenantRepository) PutRoute(ctx context.Context, entry models.RoutingEntry) error {
	return r.store.Update(ctx, func(tx *store.Tx) error {
		return r.routes.put(tx, entry.Subdomain, entry)
	})
}

// DeleteRoute removes a routing entry on its own. Repair tooling only.
func (r *TenantRepository) DeleteRoute(ctx context.Context, subdomain string) error {
	return r.store.Update(ctx, func(tx *store.Tx) error {
		exists, err := r.routes.has(tx, subdomain)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("route %s: %w", subdomain, ErrNotFound)
		}
		return r.routes.delete(tx, subdomain)
	})
}

// MigrateRecords rewrites tenant records stored at an older schema version
// and returns how many were upgraded.
func (r *TenantRepository) MigrateRecords(ctx context.Context) (int, error) {
	migrated := 0
	err := r.store.Update(ctx, func(tx *store.Tx) error {
		b, err := tx.Bucket(BucketTenants)
		if err != nil {
			return err
		}
		upgraded := make(map[string]models.TenantRecord)
		err = b.ForEach(func(key string, raw []byte) error {
			tenant, version, err := tenantSchema.DecodeVersion(raw)
			if err != nil {
				return fmt.Errorf("tenant %s: %w", key, err)
			}
			if version != tenantSchema.Version {
				upgraded[key] = tenant
			}
			return nil
		})
		if err != nil {
			return err
		}
		for key, tenant := range upgraded {
			if err := r.tenants.put(tx, key, tenant); err != nil {
				return err
			}
		}
		migrated = len(upgraded)
		return nil
	})
	return migrated, err
}

// putLegacy stores a tenant payload at an explicit schema version.
func (r *TenantRepository) putLegacy(ctx context.Context, key string, version uint16, payload any) error {
	raw, err := codec.EncodeAt(tenantSchema.Kind, version, payload)
	if err != nil {
		return err
	}
	return r.store.Update(ctx, func(tx *store.Tx) error {
		b, err := tx.Bucket(BucketTenants)
		if err != nil {
			return err
		}
		return b.Put(key, raw)
	})
}
