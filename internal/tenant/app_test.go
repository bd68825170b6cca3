package tenant

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-platform/internal/models"
	"github.com/noah-isme/lms-platform/pkg/config"
	appErrors "github.com/noah-isme/lms-platform/pkg/errors"
)

const (
	tenantID = "tenant_mit"
	root     = "root-principal"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Env:       "test",
		APIPrefix: "/api/v1",
		Store:     config.StoreConfig{Path: filepath.Join(t.TempDir(), "tenant.db")},
		JWT:       config.JWTConfig{Secret: "test-secret", Issuer: "lms-test", Expiration: time.Hour},
		Tenant: config.TenantConfig{
			ID:                  tenantID,
			AdminPrincipal:      root,
			VerificationTTL:     time.Hour,
			ExpirySweepInterval: time.Hour,
		},
	}
}

// capturedCodes records delivered verification tickets.
type capturedCodes struct {
	mu      sync.Mutex
	tickets map[string]string
}

func (d *capturedCodes) Deliver(_ context.Context, ticket *models.VerificationTicket) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tickets[ticket.UniversityID] = ticket.Code
	return nil
}

func (d *capturedCodes) code(id string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tickets[id]
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *struct{ Code string } `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

type harness struct {
	t      *testing.T
	app    *App
	engine *gin.Engine
	codes  *capturedCodes
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	codes := &capturedCodes{tickets: map[string]string{}}
	app, err := New(context.Background(), testConfig(t), nil, Options{Delivery: codes})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, app.Close()) })
	return &harness{t: t, app: app, engine: app.Engine(), codes: codes}
}

func (h *harness) raw(identity, method, path string, body interface{}) *httptest.ResponseRecorder {
	h.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(h.t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if identity != "" {
		token, _, err := h.app.Identities.IssueToken(identity, identity)
		require.NoError(h.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)
	return w
}

func (h *harness) do(identity, method, path string, body interface{}) (int, envelope) {
	h.t.Helper()
	w := h.raw(identity, method, "/api/v1"+path, body)
	var env envelope
	if w.Body.Len() > 0 && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w.Code, env
}

func (h *harness) registerUser(id string, role models.Role) {
	h.t.Helper()
	status, _ := h.do(root, http.MethodPost, "/users", map[string]interface{}{
		"id": id, "name": "User " + id, "email": id + "@mit.edu", "role": role, "tenant_id": tenantID,
	})
	require.Equal(h.t, http.StatusCreated, status, id)
}

func TestTenantInitializationCreatesRoot(t *testing.T) {
	h := newHarness(t)

	status, env := h.do(root, http.MethodGet, "/me", nil)
	require.Equal(t, http.StatusOK, status)
	var me models.User
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, models.RoleTenantAdmin, me.Role)
	assert.Equal(t, "admin@tenant_mit.edu", me.Email)

	status, env = h.do("", http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "USER_NOT_AUTHENTICATED", env.Error.Code)
}

func TestTenantRejectsSecondInitializationForOtherTenant(t *testing.T) {
	cfg := testConfig(t)
	app, err := New(context.Background(), cfg, nil, Options{})
	require.NoError(t, err)
	require.NoError(t, app.Close())

	app, err = New(context.Background(), cfg, nil, Options{})
	require.NoError(t, err)
	require.NoError(t, app.Close())

	cfg.Tenant.ID = "tenant_other"
	_, err = New(context.Background(), cfg, nil, Options{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInitialization))
}

func TestTenantCourseAndGradeFlow(t *testing.T) {
	h := newHarness(t)
	h.registerUser("prof", models.RoleInstructor)
	h.registerUser("stu", models.RoleStudent)

	status, _ := h.do("prof", http.MethodPost, "/courses", map[string]string{"id": "cs101", "title": "Intro to CS"})
	require.Equal(t, http.StatusCreated, status)
	status, _ = h.do("prof", http.MethodPost, "/courses/cs101/students", map[string]string{"student_id": "stu"})
	require.Equal(t, http.StatusOK, status)

	for _, g := range []map[string]interface{}{
		{"student_id": "stu", "course_id": "cs101", "score": 70, "max_score": 100, "grade_type": "QUIZ"},
		{"student_id": "stu", "course_id": "cs101", "score": 90, "max_score": 100, "grade_type": "QUIZ"},
		{"student_id": "stu", "course_id": "cs101", "score": 45, "max_score": 50, "grade_type": "ASSIGNMENT"},
	} {
		status, _ = h.do("prof", http.MethodPost, "/grades", g)
		require.Equal(t, http.StatusCreated, status)
	}

	status, _ = h.do("stu", http.MethodPost, "/grades", map[string]interface{}{
		"student_id": "stu", "course_id": "cs101", "score": 100, "max_score": 100, "grade_type": "QUIZ",
	})
	assert.Equal(t, http.StatusForbidden, status)

	status, env := h.do("stu", http.MethodGet, "/students/stu/grades", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 3, env.Meta["total"])

	status, _ = h.do("stu", http.MethodGet, "/courses/cs101/grades", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env = h.do("stu", http.MethodGet, "/students/stu/courses/cs101/average/weighted", nil)
	require.Equal(t, http.StatusOK, status)
	var weighted models.WeightedGradeResult
	require.NoError(t, json.Unmarshal(env.Data, &weighted))
	assert.InDelta(t, 86.0, weighted.FinalAverage, 0.001)
	assert.Equal(t, "B", weighted.LetterGrade)

	status, _ = h.do("stu", http.MethodPost, "/students/stu/courses/cs101/average/weighted", map[string]float64{"quiz_weight": 0.9})
	assert.Equal(t, http.StatusBadRequest, status)

	w := h.raw("prof", http.MethodGet, "/api/v1/courses/cs101/grades/export?format=csv", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "grades_cs101_")

	status, _ = h.do("prof", http.MethodGet, "/courses/cs101/grades/export?format=xlsx", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestTenantQuizEndpoints(t *testing.T) {
	h := newHarness(t)
	h.registerUser("prof", models.RoleInstructor)

	status, _ := h.do("prof", http.MethodPost, "/courses", map[string]string{"id": "cs101", "title": "Intro"})
	require.Equal(t, http.StatusCreated, status)

	status, env := h.do("prof", http.MethodPost, "/quizzes", map[string]interface{}{
		"course_id":    "cs101",
		"title":        "Week 1",
		"max_attempts": 1,
		"questions": []map[string]interface{}{
			{"text": "2+2?", "type": "SHORT_ANSWER", "points": 2},
		},
	})
	require.Equal(t, http.StatusCreated, status)
	var quiz models.Quiz
	require.NoError(t, json.Unmarshal(env.Data, &quiz))

	status, env = h.do("prof", http.MethodGet, "/courses/cs101/quizzes", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, env.Meta["total"])

	status, _ = h.do("prof", http.MethodDelete, "/quizzes/"+quiz.ID, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = h.do("prof", http.MethodGet, "/quizzes/"+quiz.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestTenantPreProvisionFlow(t *testing.T) {
	h := newHarness(t)
	h.registerUser("prof", models.RoleInstructor)
	status, _ := h.do("prof", http.MethodPost, "/courses", map[string]string{"id": "CS101", "title": "Intro"})
	require.Equal(t, http.StatusCreated, status)

	status, _ = h.do("prof", http.MethodPost, "/preprovision/import", map[string]interface{}{"records": []interface{}{}})
	assert.Equal(t, http.StatusForbidden, status)

	status, env := h.do(root, http.MethodPost, "/preprovision/import", map[string]interface{}{
		"records": []map[string]string{
			{"university_id": "S-1", "email": "ada@mit.edu", "name": "Ada", "role": "student", "course_codes": "CS101"},
		},
	})
	require.Equal(t, http.StatusOK, status)
	var stats models.ImportStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 1, stats.TotalImported)

	status, env = h.do("", http.MethodPost, "/preprovision/verification", map[string]string{"university_id": "S-1", "email": "ada@mit.edu"})
	require.Equal(t, http.StatusAccepted, status)
	var issued map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &issued))
	assert.NotContains(t, issued, "code")
	require.Len(t, h.codes.code("S-1"), 6)

	status, _ = h.do("", http.MethodPost, "/preprovision/verify", map[string]string{
		"university_id": "S-1", "email": "ada@mit.edu", "verification_code": h.codes.code("S-1"),
	})
	require.Equal(t, http.StatusOK, status)

	status, _ = h.do("", http.MethodPost, "/preprovision/link", map[string]string{"university_id": "S-1", "email": "ada@mit.edu"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = h.do("ada", http.MethodPost, "/preprovision/link", map[string]string{"university_id": "S-1", "email": "ada@mit.edu"})
	require.Equal(t, http.StatusCreated, status)

	status, env = h.do("ada", http.MethodGet, "/students/ada/courses", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, env.Meta["total"])

	status, env = h.do("", http.MethodGet, "/preprovision/status/S-1", nil)
	require.Equal(t, http.StatusOK, status)
	var linking models.LinkingStatus
	require.NoError(t, json.Unmarshal(env.Data, &linking))
	assert.Equal(t, models.PreProvisionLinked, linking.Status)
}

func TestTenantUserAdministration(t *testing.T) {
	h := newHarness(t)
	h.registerUser("stu", models.RoleStudent)

	status, _ := h.do("stu", http.MethodPut, "/users/stu/role", map[string]string{"role": "admin"})
	assert.Equal(t, http.StatusForbidden, status)

	status, env := h.do(root, http.MethodPut, "/users/stu/role", map[string]string{"role": "instructor"})
	require.Equal(t, http.StatusOK, status)
	var user models.User
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, models.RoleInstructor, user.Role)

	status, _ = h.do(root, http.MethodPut, "/users/stu/role", map[string]string{"role": "janitor"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = h.do("stu", http.MethodGet, "/authz/actions/create_course", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"action":"create_course","allowed":true}`, string(env.Data))

	status, _ = h.do(root, http.MethodPost, "/users/stu/deactivate", nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = h.do("stu", http.MethodGet, "/authz/summary", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env = h.do(root, http.MethodGet, "/users/names?ids=stu,ghost", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"stu":"User stu"}`, string(env.Data))
}
