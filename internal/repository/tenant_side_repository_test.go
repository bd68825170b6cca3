package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-platform/internal/models"
)

func TestTenantStateInitializeOnce(t *testing.T) {
	s := newTestStore(t, TenantBuckets())
	repo := NewTenantStateRepository(s)
	users := NewUserRepository(s)
	ctx := context.Background()

	_, err := repo.Get(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	state := models.TenantState{TenantID: "tenant_a", AdminPrincipal: "root", InitializedAt: time.Now().UTC()}
	admin := models.User{ID: "root", Name: "TenantAdmin", Role: models.RoleTenantAdmin, IsActive: true}

	got, created, err := repo.Initialize(ctx, state, admin)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "tenant_a", got.TenantID)

	user, err := users.FindByID(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, models.RoleTenantAdmin, user.Role)

	_, created, err = repo.Initialize(ctx, state, admin)
	require.NoError(t, err)
	assert.False(t, created)

	state.TenantID = "tenant_b"
	_, _, err = repo.Initialize(ctx, state, admin)
	assert.ErrorIs(t, err, ErrTenantMismatch)
}

func TestGradeFinalUniqueness(t *testing.T) {
	repo := NewGradeRepository(newTestStore(t, TenantBuckets()))
	ctx := context.Background()

	final := &models.Grade{ID: "g1", StudentID: "s1", CourseID: "c1", Score: 90, MaxScore: 100, GradeType: models.GradeFinal}
	require.NoError(t, repo.Create(ctx, final))

	again := *final
	again.ID = "g2"
	assert.ErrorIs(t, repo.Create(ctx, &again), ErrDuplicateFinal)

	otherCourse := *final
	otherCourse.ID = "g3"
	otherCourse.CourseID = "c2"
	require.NoError(t, repo.Create(ctx, &otherCourse))

	for _, id := range []string{"a1", "a2"} {
		require.NoError(t, repo.Create(ctx, &models.Grade{ID: id, StudentID: "s1", CourseID: "c1", Score: 5, MaxScore: 10, GradeType: models.GradeAssignment}))
	}

	grades, err := repo.ListByStudent(ctx, "s1", "c1")
	require.NoError(t, err)
	assert.Len(t, grades, 3)

	has, err := repo.HasFinal(ctx, "s1", "c1")
	require.NoError(t, err)
	assert.True(t, has)

	deleted, err := repo.Delete(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, models.GradeFinal, deleted.GradeType)

	has, err = repo.HasFinal(ctx, "s1", "c1")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestCourseMutateRollsBackOnError(t *testing.T) {
	repo := NewCourseRepository(newTestStore(t, TenantBuckets()))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Course{ID: "CS101", Title: "Intro", InstructorIDs: []string{"prof"}}))
	assert.ErrorIs(t, repo.Create(ctx, &models.Course{ID: "CS101"}), ErrDuplicate)

	boom := errors.New("boom")
	_, err := repo.Mutate(ctx, "CS101", func(c *models.Course) error {
		c.Title = "changed"
		return boom
	})
	assert.ErrorIs(t, err, boom)

	course, err := repo.FindByID(ctx, "CS101")
	require.NoError(t, err)
	assert.Equal(t, "Intro", course.Title)
}

func TestPreProvisionInsertBatchDuplicates(t *testing.T) {
	repo := NewPreProvisionRepository(newTestStore(t, TenantBuckets()))
	ctx := context.Background()

	results, err := repo.InsertBatch(ctx, []models.PreProvisionedUser{
		{UniversityID: "U1", Email: "a@uni.edu", Status: models.PreProvisionImported},
		{UniversityID: "U1", Email: "b@uni.edu", Status: models.PreProvisionImported},
		{UniversityID: "U2", Email: "a@uni.edu", Status: models.PreProvisionImported},
		{UniversityID: "U3", Email: "c@uni.edu", Status: models.PreProvisionImported},
	})
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.NoError(t, results[0])
	assert.ErrorIs(t, results[1], ErrDuplicate)
	assert.ErrorIs(t, results[2], ErrEmailTaken)
	assert.NoError(t, results[3])

	recs, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestPreProvisionExpirePending(t *testing.T) {
	repo := NewPreProvisionRepository(newTestStore(t, TenantBuckets()))
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	_, err := repo.InsertBatch(ctx, []models.PreProvisionedUser{
		{UniversityID: "old", Email: "old@uni.edu", Status: models.PreProvisionPendingVerification, VerificationExpires: &past},
		{UniversityID: "fresh", Email: "fresh@uni.edu", Status: models.PreProvisionPendingVerification, VerificationExpires: &future},
		{UniversityID: "new", Email: "new@uni.edu", Status: models.PreProvisionImported},
	})
	require.NoError(t, err)

	n, err := repo.ExpirePending(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec, err := repo.FindByID(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, models.PreProvisionExpired, rec.Status)

	rec, err = repo.FindByID(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, models.PreProvisionPendingVerification, rec.Status)
}

func TestPreProvisionMutatePersistsOnRequest(t *testing.T) {
	repo := NewPreProvisionRepository(newTestStore(t, TenantBuckets()))
	ctx := context.Background()
	_, err := repo.InsertBatch(ctx, []models.PreProvisionedUser{{UniversityID: "U1", Email: "a@uni.edu", Status: models.PreProvisionPendingVerification}})
	require.NoError(t, err)

	expired := errors.New("expired")
	_, err = repo.Mutate(ctx, "U1", func(rec *models.PreProvisionedUser) (bool, error) {
		rec.Status = models.PreProvisionExpired
		return true, expired
	})
	assert.ErrorIs(t, err, expired)

	rec, err := repo.FindByID(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, models.PreProvisionExpired, rec.Status)

	_, err = repo.Mutate(ctx, "U1", func(rec *models.PreProvisionedUser) (bool, error) {
		rec.Status = models.PreProvisionVerified
		return false, expired
	})
	assert.ErrorIs(t, err, expired)
	rec, err = repo.FindByID(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, models.PreProvisionExpired, rec.Status)
}

func TestPreProvisionLinkEnrollsKnownCourses(t *testing.T) {
	s := newTestStore(t, TenantBuckets())
	repo := NewPreProvisionRepository(s)
	courses := NewCourseRepository(s)
	ctx := context.Background()

	require.NoError(t, courses.Create(ctx, &models.Course{ID: "CS101", InstructorIDs: []string{"prof"}}))
	_, err := repo.InsertBatch(ctx, []models.PreProvisionedUser{{
		UniversityID: "U1", Email: "a@uni.edu", Name: "Ada", Role: models.RoleStudent,
		CourseCodes: []string{"CS101", "MATH9"}, IsVerified: true, Status: models.PreProvisionVerified,
	}})
	require.NoError(t, err)

	result, err := repo.Link(ctx, "U1", "ident-1", func(rec *models.PreProvisionedUser, callerIsUser bool) (*models.User, error) {
		assert.False(t, callerIsUser)
		id := "ident-1"
		rec.LinkedIdentity = &id
		rec.Status = models.PreProvisionLinked
		return &models.User{ID: id, Name: rec.Name, Email: rec.Email, Role: rec.Role, IsActive: true}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"CS101"}, result.Enrolled)
	assert.Equal(t, []string{"MATH9"}, result.MissingCourses)

	course, err := courses.FindByID(ctx, "CS101")
	require.NoError(t, err)
	assert.True(t, course.HasStudent("ident-1"))

	rec, err := repo.FindByID(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, models.PreProvisionLinked, rec.Status)
}
