package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-platform/internal/models"
	"github.com/noah-isme/lms-platform/internal/service"
	"github.com/noah-isme/lms-platform/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Env:       "test",
		APIPrefix: "/api/v1",
		Store:     config.StoreConfig{Path: filepath.Join(t.TempDir(), "router.db")},
		JWT:       config.JWTConfig{Secret: "test-secret", Issuer: "lms-test", Expiration: time.Hour},
		Router: config.RouterConfig{
			Identity:            "router",
			Admins:              []string{"ops"},
			InstanceBudget:      config.MinInstanceBudget * 2,
			InspectionInterval:  time.Hour,
			CompensationWorkers: 1,
			CompensationRetries: 2,
			CompensationDelay:   10 * time.Millisecond,
		},
	}
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *struct{ Code string } `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

type client struct {
	t      *testing.T
	engine *gin.Engine
	token  string
}

func (c client) do(method, path string, body interface{}) (int, envelope) {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(c.t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	w := httptest.NewRecorder()
	c.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w.Code, env
}

func newTestApp(t *testing.T) (*App, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	app, err := New(context.Background(), testConfig(t), nil, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, app.Close()) })
	return app, app.Engine()
}

func (a *App) clientFor(t *testing.T, engine *gin.Engine, identity string) client {
	t.Helper()
	c := client{t: t, engine: engine}
	if identity != "" {
		token, _, err := a.Identities.IssueToken(identity, identity)
		require.NoError(t, err)
		c.token = token
	}
	return c
}

func TestRouterProvisionsAndRoutes(t *testing.T) {
	app, engine := newTestApp(t)
	ops := app.clientFor(t, engine, "ops")

	status, env := ops.do(http.MethodPost, "/api/v1/universities", map[string]string{
		"subdomain":       "mit",
		"university_name": "MIT",
		"admin_identity":  "dean",
	})
	require.Equal(t, http.StatusCreated, status)
	var tenant models.TenantRecord
	require.NoError(t, json.Unmarshal(env.Data, &tenant))
	assert.Equal(t, "mit", tenant.Subdomain)
	assert.Equal(t, []string{"dean"}, tenant.AdminIDs)

	anonymous := app.clientFor(t, engine, "")
	status, env = anonymous.do(http.MethodGet, "/api/v1/routes/mit", nil)
	require.Equal(t, http.StatusOK, status)
	var route models.RoutingEntry
	require.NoError(t, json.Unmarshal(env.Data, &route))
	assert.Equal(t, tenant.InstanceID, route.InstanceID)

	status, env = anonymous.do(http.MethodGet, "/api/v1/inspect/system", nil)
	require.Equal(t, http.StatusOK, status)
	var report models.SystemInspection
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.True(t, report.DataConsistency)
	assert.Equal(t, 1, report.Registry.TotalTenants)

	status, env = anonymous.do(http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, status)
	var stats models.RouterStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.True(t, stats.HasTemplate)
	assert.Equal(t, 1, stats.TenantCount)

	status, _ = ops.do(http.MethodPost, "/api/v1/universities", map[string]string{
		"subdomain":       "mit",
		"university_name": "Again",
		"admin_identity":  "dean",
	})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = ops.do(http.MethodDelete, "/api/v1/tenants/"+tenant.TenantID, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, env = anonymous.do(http.MethodGet, "/api/v1/routes/mit", nil)
	assert.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestRouterMutationsRequireAdmin(t *testing.T) {
	app, engine := newTestApp(t)
	body := map[string]string{"subdomain": "yale", "university_name": "Yale", "admin_identity": "dean"}

	status, env := app.clientFor(t, engine, "").do(http.MethodPost, "/api/v1/universities", body)
	assert.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "USER_NOT_AUTHENTICATED", env.Error.Code)

	status, _ = app.clientFor(t, engine, "visitor").do(http.MethodPost, "/api/v1/universities", body)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = app.clientFor(t, engine, "visitor").do(http.MethodDelete, "/api/v1/tenants", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = app.clientFor(t, engine, "ops").do(http.MethodPost, "/api/v1/universities", map[string]string{"subdomain": "-bad"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRouterLegacyRegistrationAndClear(t *testing.T) {
	app, engine := newTestApp(t)
	ops := app.clientFor(t, engine, "ops")

	status, _ := ops.do(http.MethodPost, "/api/v1/tenants", map[string]string{
		"id": "t1", "name": "One", "domain": "one.lms.example", "instance_id": "inst-1",
	})
	require.Equal(t, http.StatusCreated, status)

	inactive := false
	status, env := ops.do(http.MethodPatch, "/api/v1/tenants/t1", map[string]interface{}{"is_active": inactive})
	require.Equal(t, http.StatusOK, status)
	var tenant models.TenantRecord
	require.NoError(t, json.Unmarshal(env.Data, &tenant))
	assert.False(t, tenant.IsActive)

	status, env = ops.do(http.MethodGet, "/api/v1/tenants", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, env.Meta["total"])

	status, env = ops.do(http.MethodDelete, "/api/v1/tenants", nil)
	require.Equal(t, http.StatusOK, status)
	var cleared models.ClearResult
	require.NoError(t, json.Unmarshal(env.Data, &cleared))
	assert.Equal(t, models.ClearResult{TenantsRemoved: 1, RoutesRemoved: 1}, cleared)
}

func TestRouterTemplateEndpoints(t *testing.T) {
	app, engine := newTestApp(t)

	status, env := app.clientFor(t, engine, "").do(http.MethodGet, "/api/v1/template", nil)
	require.Equal(t, http.StatusOK, status)
	var cfg models.TemplateConfig
	require.NoError(t, json.Unmarshal(env.Data, &cfg))
	require.NotNil(t, cfg.TemplateInstanceID, "local substrate seeds a template")

	status, env = app.clientFor(t, engine, "ops").do(http.MethodPut, "/api/v1/template", map[string]string{
		"template_instance_id": "inst-new",
		"template_version":     "2.0.0",
	})
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &cfg))
	assert.Equal(t, "2.0.0", cfg.TemplateVersion)
}

func TestRouterObservabilityRoutes(t *testing.T) {
	_, engine := newTestApp(t)

	for _, path := range []string{"/health", "/ready", "/metrics"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer garbage")
		engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRouterReopensExistingStore(t *testing.T) {
	cfg := testConfig(t)
	app, err := New(context.Background(), cfg, nil, Options{})
	require.NoError(t, err)
	_, err = app.Registry.RegisterTenant(context.Background(), "ops", registerReq("t1", "one.lms.example"))
	require.NoError(t, err)
	require.NoError(t, app.Close())

	app, err = New(context.Background(), cfg, nil, Options{})
	require.NoError(t, err)
	defer app.Close()
	tenants, err := app.Registry.ListTenants(context.Background())
	require.NoError(t, err)
	assert.Len(t, tenants, 1)
}

func registerReq(id, domain string) service.RegisterTenantRequest {
	return service.RegisterTenantRequest{ID: id, Name: id, Domain: domain, InstanceID: "inst-" + id}
}
