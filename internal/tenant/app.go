// Package tenant wires a single university instance: RBAC, users, courses,
// quizzes, grades and roster pre-provisioning.
package tenant

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-platform/internal/handler"
	"github.com/noah-isme/lms-platform/internal/middleware"
	"github.com/noah-isme/lms-platform/internal/models"
	"github.com/noah-isme/lms-platform/internal/repository"
	"github.com/noah-isme/lms-platform/internal/server"
	"github.com/noah-isme/lms-platform/internal/service"
	"github.com/noah-isme/lms-platform/pkg/config"
	"github.com/noah-isme/lms-platform/pkg/scheduler"
	"github.com/noah-isme/lms-platform/pkg/store"
)

const jobExpireVerifications = "expire-verifications"

// Options override collaborators, mainly for tests.
type Options struct {
	Clock    clock.Clock
	Delivery handler.CodeDelivery
}

// App is the tenant process state. Handlers receive it explicitly.
type App struct {
	cfg      *config.Config
	logger   *zap.Logger
	delivery handler.CodeDelivery

	store     *store.Store
	auditDB   *sqlx.DB
	redis     *redis.Client
	scheduler *scheduler.Scheduler

	State        *models.TenantState
	Metrics      *service.MetricsService
	Identities   *service.IdentityService
	Authz        *service.AuthzService
	Users        *service.UserService
	Courses      *service.CourseService
	Quizzes      *service.QuizService
	Grades       *service.GradeService
	Exports      *service.ExportService
	PreProvision *service.PreProvisionService
}

// New opens the tenant store, runs the one-time initialization and builds the
// services. Initializing an existing store for a different tenant fails.
func New(ctx context.Context, cfg *config.Config, logr *zap.Logger, opts Options) (_ *App, err error) {
	if logr == nil {
		logr = zap.NewNop()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}

	app := &App{cfg: cfg, logger: logr, delivery: opts.Delivery, Metrics: service.NewMetricsService()}
	defer func() {
		if err != nil {
			err = multierr.Append(err, app.Close())
		}
	}()

	app.store = store.New(cfg.Store.Path, logr, repository.TenantBuckets()...)
	if err = app.store.Open(ctx); err != nil {
		return nil, fmt.Errorf("open tenant store: %w", err)
	}

	stateRepo := repository.NewTenantStateRepository(app.store)
	if app.State, err = service.NewTenantService(stateRepo, clk, logr).Initialize(ctx, cfg.Tenant.ID, cfg.Tenant.AdminPrincipal); err != nil {
		return nil, err
	}

	var audit *service.AuditService
	if audit, app.auditDB, err = server.OpenAudit(ctx, cfg, logr, cfg.Tenant.ID); err != nil {
		return nil, err
	}
	var cache *service.CacheService
	if cache, app.redis, err = server.OpenCache(ctx, cfg, app.Metrics, logr, "lms:"+cfg.Tenant.ID); err != nil {
		return nil, err
	}

	users := repository.NewUserRepository(app.store)
	courses := repository.NewCourseRepository(app.store)
	quizzes := repository.NewQuizRepository(app.store)
	grades := repository.NewGradeRepository(app.store)
	records := repository.NewPreProvisionRepository(app.store)
	validate := validator.New()

	app.Identities = server.IdentityFrom(cfg)
	app.Authz = service.NewAuthzService(users, stateRepo, audit, app.Metrics, logr)
	app.Users = service.NewUserService(users, stateRepo, app.Authz, audit, validate, clk, logr)
	app.Courses = service.NewCourseService(courses, stateRepo, app.Authz, validate, clk, logr)
	app.Quizzes = service.NewQuizService(quizzes, courses, app.Authz, validate, clk, logr)
	app.Grades = service.NewGradeService(grades, courses, users, quizzes, app.Authz, audit, cache, app.Metrics, validate, clk, logr)
	app.Exports = service.NewExportService(app.Grades, logr)
	app.PreProvision = service.NewPreProvisionService(records, stateRepo, app.Authz, audit, app.Metrics, clk, cfg.Tenant.VerificationTTL, logr)

	if app.scheduler, err = scheduler.New(logr); err != nil {
		return nil, err
	}
	err = app.scheduler.Every(jobExpireVerifications, cfg.Tenant.ExpirySweepInterval, func(ctx context.Context) error {
		_, err := app.PreProvision.ExpirePending(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// Start launches the verification expiry schedule.
func (a *App) Start(context.Context) {
	a.scheduler.Start()
}

// Engine builds the HTTP surface under the configured API prefix.
func (a *App) Engine() *gin.Engine {
	checks := map[string]handler.ReadinessCheck{
		"store": func(ctx context.Context) error {
			_, err := repository.NewTenantStateRepository(a.store).Get(ctx)
			return err
		},
	}
	if a.redis != nil {
		checks["cache"] = func(ctx context.Context) error { return a.redis.Ping(ctx).Err() }
	}
	if a.auditDB != nil {
		checks["audit"] = func(ctx context.Context) error { return a.auditDB.PingContext(ctx) }
	}
	r := server.NewEngine(a.cfg, a.logger, a.Metrics, a.Identities, checks)
	api := r.Group(a.cfg.APIPrefix)

	users := handler.NewUserHandler(a.Users, a.Authz)
	api.GET("/me", users.Me)
	api.GET("/authz/summary", users.Summary)
	api.GET("/authz/actions/:action", users.CanPerform)
	api.GET("/authz/users/:id", users.CanAccessUser)
	api.POST("/users", users.Register)
	api.GET("/users", users.List)
	api.GET("/users/names", users.Names)
	api.GET("/users/:id", users.Get)
	api.PATCH("/users/:id", users.Update)
	api.PUT("/users/:id/role", users.UpdateRole)
	api.POST("/users/:id/deactivate", users.Deactivate)
	api.POST("/users/:id/reactivate", users.Reactivate)

	courses := handler.NewCourseHandler(a.Courses, a.Quizzes)
	api.POST("/courses", courses.Create)
	api.GET("/courses", courses.List)
	api.GET("/courses/:id", courses.Get)
	api.PATCH("/courses/:id", courses.Update)
	api.POST("/courses/:id/students", courses.Enroll)
	api.GET("/courses/:id/instructors", courses.Instructors)
	api.POST("/courses/:id/instructors", courses.AddInstructor)
	api.DELETE("/courses/:id/instructors/:instructorId", courses.RemoveInstructor)
	api.GET("/courses/:id/quizzes", courses.CourseQuizzes)
	api.GET("/instructors/:id/courses", courses.InstructorCourses)
	api.GET("/students/:id/courses", courses.StudentCourses)
	api.POST("/quizzes", courses.CreateQuiz)
	api.GET("/quizzes/:id", courses.GetQuiz)
	api.DELETE("/quizzes/:id", courses.DeleteQuiz)

	grades := handler.NewGradeHandler(a.Grades, a.Exports)
	api.POST("/grades", grades.Record)
	api.POST("/grades/quiz", grades.RecordQuiz)
	api.POST("/grades/bulk", grades.Bulk)
	api.GET("/grades/:id", grades.Get)
	api.PATCH("/grades/:id", grades.Update)
	api.DELETE("/grades/:id", grades.Delete)
	api.GET("/courses/:id/grades", grades.CourseGrades)
	api.GET("/courses/:id/grades/stats", grades.CourseReport)
	api.GET("/courses/:id/grades/export", grades.Export)
	api.GET("/students/:id/grades", grades.StudentGrades)
	api.GET("/students/:id/courses/:courseId/average", grades.Average)
	api.GET("/students/:id/courses/:courseId/average/weighted", grades.WeightedAverage)
	api.POST("/students/:id/courses/:courseId/average/weighted", grades.WeightedAverage)

	records := handler.NewPreProvisionHandler(a.PreProvision, a.codeDelivery())
	pre := api.Group("/preprovision")
	pre.POST("/verification", records.RequestVerification)
	pre.POST("/verify", records.Verify)
	pre.GET("/check/:universityId", records.Check)
	pre.GET("/status/:universityId", records.LinkingStatus)
	pre.POST("/link", middleware.RequireIdentity(), records.Link)

	staff := pre.Group("", middleware.RequireRole(a.Authz, models.RoleAdmin))
	staff.POST("/import", records.Import)
	staff.POST("/records", records.Create)
	staff.GET("/records", records.List)
	staff.GET("/records/:universityId", records.Get)
	staff.DELETE("/records/:universityId", records.Delete)
	staff.GET("/stats", records.Statistics)
	return r
}

func (a *App) codeDelivery() handler.CodeDelivery {
	if a.delivery != nil {
		return a.delivery
	}
	return handler.NewLogCodeDelivery(a.logger)
}

// Close stops background work and releases the store and external sinks.
func (a *App) Close() error {
	var err error
	if a.scheduler != nil {
		err = multierr.Append(err, a.scheduler.Stop())
	}
	if a.redis != nil {
		err = multierr.Append(err, a.redis.Close())
	}
	if a.auditDB != nil {
		err = multierr.Append(err, a.auditDB.Close())
	}
	if a.store != nil {
		err = multierr.Append(err, a.store.Close())
	}
	return err
}
