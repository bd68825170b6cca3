package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-platform/internal/models"
	"github.com/noah-isme/lms-platform/internal/repository"
	"github.com/noah-isme/lms-platform/pkg/store"
)

const (
	testTenantID = "tenant_test"
	testRoot     = "root-principal"
)

// tenantFixture is an initialized tenant backed by a temporary bbolt file.
type tenantFixture struct {
	ctx     context.Context
	clock   *clock.Mock
	store   *store.Store
	users   *repository.UserRepository
	courses *repository.CourseRepository
	grades  *repository.GradeRepository
	quizzes *repository.QuizRepository
	records *repository.PreProvisionRepository
	state   *repository.TenantStateRepository
	metrics *MetricsService
	authz   *AuthzService
}

func newTenantFixture(t *testing.T) *tenantFixture {
	t.Helper()
	s := store.New(filepath.Join(t.TempDir(), "tenant.db"), nil, repository.TenantBuckets()...)
	require.NoError(t, s.Open(context.Background()))
	t.Cleanup(func() { _ = s.Close() })

	clk := clock.NewMock()
	clk.Set(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))

	f := &tenantFixture{
		ctx:     context.Background(),
		clock:   clk,
		store:   s,
		users:   repository.NewUserRepository(s),
		courses: repository.NewCourseRepository(s),
		grades:  repository.NewGradeRepository(s),
		quizzes: repository.NewQuizRepository(s),
		records: repository.NewPreProvisionRepository(s),
		state:   repository.NewTenantStateRepository(s),
		metrics: NewMetricsService(),
	}
	_, err := NewTenantService(f.state, clk, nil).Initialize(f.ctx, testTenantID, testRoot)
	require.NoError(t, err)

	f.authz = NewAuthzService(f.users, f.state, NewAuditService(nil, nil, testTenantID), f.metrics, nil)
	return f
}

func (f *tenantFixture) addUser(t *testing.T, id string, role models.Role, active bool) models.User {
	t.Helper()
	user := models.User{
		ID:        id,
		Name:      id,
		Email:     id + "@uni.edu",
		Role:      role,
		TenantID:  testTenantID,
		CreatedAt: f.clock.Now(),
		UpdatedAt: f.clock.Now(),
		IsActive:  active,
	}
	require.NoError(t, f.users.Create(f.ctx, &user))
	return user
}

func (f *tenantFixture) addCourse(t *testing.T, id string, instructors ...string) models.Course {
	t.Helper()
	course := models.Course{
		ID:               id,
		Title:            id,
		InstructorIDs:    instructors,
		TenantID:         testTenantID,
		Lessons:          []string{},
		EnrolledStudents: []string{},
		CreatedAt:        f.clock.Now(),
		UpdatedAt:        f.clock.Now(),
	}
	require.NoError(t, f.courses.Create(f.ctx, &course))
	return course
}

func (f *tenantFixture) gradeService() *GradeService {
	return NewGradeService(f.grades, f.courses, f.users, f.quizzes, f.authz, nil, nil, f.metrics, nil, f.clock, nil)
}
