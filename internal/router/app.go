// Package router wires the control plane: provisioning, the tenant registry,
// the routing table and consistency inspection.
package router

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-platform/internal/handler"
	"github.com/noah-isme/lms-platform/internal/instance"
	"github.com/noah-isme/lms-platform/internal/middleware"
	"github.com/noah-isme/lms-platform/internal/repository"
	"github.com/noah-isme/lms-platform/internal/server"
	"github.com/noah-isme/lms-platform/internal/service"
	"github.com/noah-isme/lms-platform/pkg/config"
	"github.com/noah-isme/lms-platform/pkg/jobs"
	"github.com/noah-isme/lms-platform/pkg/scheduler"
	"github.com/noah-isme/lms-platform/pkg/store"
)

const (
	jobInspection   = "consistency-inspection"
	defaultTemplate = "1.0.0"
)

// Options override collaborators, mainly for tests.
type Options struct {
	Substrate instance.Client
	Clock     clock.Clock
}

// App is the router process state. Handlers receive it explicitly.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	store     *store.Store
	auditDB   *sqlx.DB
	substrate instance.Client
	queue     *jobs.Queue
	scheduler *scheduler.Scheduler

	Metrics      *service.MetricsService
	Identities   *service.IdentityService
	Access       *service.RouterAccess
	Provisioning *service.ProvisioningService
	Registry     *service.RegistryService
	Templates    *service.TemplateService
	Inspection   *service.InspectionService
}

// New opens the router store and builds its services. Stored tenant records
// in an older layout are rewritten before the app is returned.
func New(ctx context.Context, cfg *config.Config, logr *zap.Logger, opts Options) (_ *App, err error) {
	if logr == nil {
		logr = zap.NewNop()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}

	app := &App{cfg: cfg, logger: logr, Metrics: service.NewMetricsService()}
	defer func() {
		if err != nil {
			err = multierr.Append(err, app.Close())
		}
	}()

	app.store = store.New(cfg.Store.Path, logr, repository.RouterBuckets()...)
	if err = app.store.Open(ctx); err != nil {
		return nil, fmt.Errorf("open router store: %w", err)
	}

	var audit *service.AuditService
	audit, app.auditDB, err = server.OpenAudit(ctx, cfg, logr, "")
	if err != nil {
		return nil, err
	}

	tenants := repository.NewTenantRepository(app.store)
	templates := repository.NewTemplateRepository(app.store)

	app.substrate = opts.Substrate
	if app.substrate == nil {
		local := instance.NewLocalSubstrate(clk, logr)
		if err = seedLocalTemplate(ctx, templates, local, clk); err != nil {
			return nil, err
		}
		app.substrate = local
	}

	app.Identities = server.IdentityFrom(cfg)
	app.Access = service.NewRouterAccess(cfg.Router.Admins)
	app.Templates = service.NewTemplateService(templates, app.Access, clk, logr)
	app.Registry = service.NewRegistryService(tenants, templates, app.Access, audit, nil, clk, logr)
	app.Inspection = service.NewInspectionService(tenants, app.Metrics, clk, logr)
	app.Provisioning = service.NewProvisioningService(tenants, templates, app.substrate, app.Access, audit, app.Metrics,
		service.ProvisioningConfig{RouterIdentity: cfg.Router.Identity, InstanceBudget: cfg.Router.InstanceBudget},
		nil, clk, logr)

	app.queue = jobs.NewQueue("compensation", app.Provisioning.HandleCompensation, jobs.QueueConfig{
		Workers:    cfg.Router.CompensationWorkers,
		MaxRetries: cfg.Router.CompensationRetries,
		RetryDelay: cfg.Router.CompensationDelay,
		OnGiveUp:   app.Provisioning.CompensationAbandoned,
		Logger:     logr,
	})
	app.Provisioning.SetCompensationQueue(app.queue)

	if app.scheduler, err = scheduler.New(logr); err != nil {
		return nil, err
	}
	if err = app.scheduler.Every(jobInspection, cfg.Router.InspectionInterval, app.Inspection.Sweep); err != nil {
		return nil, err
	}

	migrated, err := app.Registry.MigrateTenantRecords(ctx)
	if err != nil {
		return nil, err
	}
	if migrated > 0 {
		logr.Info("tenant records migrated", zap.Int("count", migrated))
	}
	return app, nil
}

// seedLocalTemplate gives the in-process substrate a template instance when
// none is configured yet, so provisioning works out of the box.
func seedLocalTemplate(ctx context.Context, templates *repository.TemplateRepository, local *instance.LocalSubstrate, clk clock.Clock) error {
	cfg, err := templates.Get(ctx)
	if err != nil {
		return fmt.Errorf("load template config: %w", err)
	}
	if cfg.TemplateInstanceID != nil {
		if _, ok := local.Instance(*cfg.TemplateInstanceID); ok {
			return nil
		}
	}
	version := cfg.TemplateVersion
	if version == "" {
		version = defaultTemplate
	}
	id := local.SeedTemplate(version)
	cfg.TemplateInstanceID = &id
	cfg.TemplateVersion = version
	cfg.LastUpdated = clk.Now().UTC()
	return templates.Save(ctx, cfg)
}

// Start launches the compensation workers and the inspection schedule.
func (a *App) Start(ctx context.Context) {
	a.queue.Start(ctx)
	a.scheduler.Start()
}

// Engine builds the HTTP surface under the configured API prefix.
func (a *App) Engine() *gin.Engine {
	r := server.NewEngine(a.cfg, a.logger, a.Metrics, a.Identities, map[string]handler.ReadinessCheck{
		"store": func(ctx context.Context) error {
			_, err := a.Registry.Stats(ctx)
			return err
		},
	})
	h := handler.NewRouterHandler(a.Provisioning, a.Registry, a.Templates, a.Inspection)

	api := r.Group(a.cfg.APIPrefix)
	api.GET("/tenants", h.ListTenants)
	api.GET("/tenants/:id", h.GetTenant)
	api.GET("/routes", h.RoutingTable)
	api.GET("/routes/:subdomain", h.ResolveRoute)
	api.GET("/template", h.GetTemplate)
	api.GET("/stats", h.Stats)
	api.GET("/inspect/registry", h.InspectRegistry)
	api.GET("/inspect/routing", h.InspectRouting)
	api.GET("/inspect/system", h.InspectSystem)

	admin := api.Group("", middleware.RequireRouterAccess(a.Access))
	admin.POST("/universities", h.RegisterUniversity)
	admin.POST("/tenants", h.RegisterTenant)
	admin.PATCH("/tenants/:id", h.UpdateTenant)
	admin.DELETE("/tenants/:id", h.RemoveTenant)
	admin.DELETE("/tenants", h.ClearTenants)
	admin.PUT("/template", h.ConfigureTemplate)
	return r
}

// Close stops background work and releases the store and audit sink.
func (a *App) Close() error {
	var err error
	if a.scheduler != nil {
		err = multierr.Append(err, a.scheduler.Stop())
	}
	if a.queue != nil {
		a.queue.Stop()
	}
	if a.auditDB != nil {
		err = multierr.Append(err, a.auditDB.Close())
	}
	if a.store != nil {
		err = multierr.Append(err, a.store.Close())
	}
	return err
}

// CompensationStats reports the compensation queue outcomes.
func (a *App) CompensationStats() jobs.Stats {
	return a.queue.Stats()
}
