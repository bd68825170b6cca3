package server

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-platform/internal/repository"
	"github.com/noah-isme/lms-platform/internal/service"
	"github.com/noah-isme/lms-platform/pkg/cache"
	"github.com/noah-isme/lms-platform/pkg/config"
	"github.com/noah-isme/lms-platform/pkg/database"
)

// OpenAudit builds the audit service. With AUDIT_DB_ENABLED the entries are
// also written to Postgres; the returned db is nil otherwise.
func OpenAudit(ctx context.Context, cfg *config.Config, logr *zap.Logger, tenantID string) (*service.AuditService, *sqlx.DB, error) {
	if !cfg.Database.Enabled {
		return service.NewAuditService(nil, logr, tenantID), nil, nil
	}
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit database: %w", err)
	}
	return service.NewAuditService(repository.NewAuditRepository(db), logr, tenantID), db, nil
}

// OpenCache builds the report cache. With CACHE_ENABLED off the service is a
// pass-through and the returned client is nil.
func OpenCache(ctx context.Context, cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger, namespace string) (*service.CacheService, *redis.Client, error) {
	if !cfg.Redis.Enabled {
		return service.NewCacheService(nil, metrics, cfg.Redis.CacheTTL, logr, false), nil, nil
	}
	client, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("open cache: %w", err)
	}
	repo := repository.NewCacheRepository(client, namespace)
	return service.NewCacheService(repo, metrics, cfg.Redis.CacheTTL, logr, true), client, nil
}

// IdentityFrom builds the token validator from JWT settings.
func IdentityFrom(cfg *config.Config) *service.IdentityService {
	return service.NewIdentityService(service.IdentityConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		Expiry: cfg.JWT.Expiration,
	})
}
