package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-platform/internal/models"
	appErrors "github.com/noah-isme/lms-platform/pkg/errors"
)

func TestTenantInitializeIsIdempotentPerTenant(t *testing.T) {
	f := newTenantFixture(t)
	svc := NewTenantService(f.state, f.clock, nil)

	state, err := svc.Initialize(f.ctx, testTenantID, "someone-else")
	require.NoError(t, err)
	assert.Equal(t, testRoot, state.AdminPrincipal)

	_, err = svc.Initialize(f.ctx, "tenant_other", testRoot)
	assert.True(t, appErrors.Is(err, appErrors.ErrInitialization))

	_, err = svc.Initialize(f.ctx, "", testRoot)
	assert.True(t, appErrors.Is(err, appErrors.ErrInitialization))

	admin, err := f.users.FindByID(f.ctx, testRoot)
	require.NoError(t, err)
	assert.Equal(t, models.RoleTenantAdmin, admin.Role)
	assert.Equal(t, "admin@"+testTenantID+".edu", admin.Email)
}

func TestUserServiceRegisterUser(t *testing.T) {
	f := newTenantFixture(t)
	f.addUser(t, "adm", models.RoleAdmin, true)
	f.addUser(t, "ins", models.RoleInstructor, true)
	svc := NewUserService(f.users, f.state, f.authz, nil, nil, f.clock, nil)

	req := RegisterUserRequest{ID: "new", Name: " New Person ", Email: "New@Uni.edu", Role: models.RoleStudent, TenantID: testTenantID}
	user, err := svc.RegisterUser(f.ctx, "adm", req)
	require.NoError(t, err)
	assert.Equal(t, "New Person", user.Name)
	assert.Equal(t, "new@uni.edu", user.Email)
	assert.True(t, user.IsActive)

	_, err = svc.RegisterUser(f.ctx, "adm", req)
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyExists))

	_, err = svc.RegisterUser(f.ctx, "ins", RegisterUserRequest{ID: "x", Name: "X", Email: "x@uni.edu", Role: models.RoleStudent, TenantID: testTenantID})
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	_, err = svc.RegisterUser(f.ctx, "adm", RegisterUserRequest{ID: "y", Name: "Y", Email: "y@uni.edu", Role: models.RoleTenantAdmin, TenantID: testTenantID})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidRoleAssignment))

	_, err = svc.RegisterUser(f.ctx, "adm", RegisterUserRequest{ID: "z", Name: "Z", Email: "z@uni.edu", Role: models.RoleStudent, TenantID: "tenant_elsewhere"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.RegisterUser(f.ctx, "adm", RegisterUserRequest{ID: "w", Name: "W", Email: "not-an-email", Role: models.RoleStudent, TenantID: testTenantID})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestUserServiceListAndRead(t *testing.T) {
	f := newTenantFixture(t)
	f.addUser(t, "ins", models.RoleInstructor, true)
	f.addUser(t, "stu", models.RoleStudent, true)
	svc := NewUserService(f.users, f.state, f.authz, nil, nil, f.clock, nil)

	all, err := svc.ListUsers(f.ctx, "ins")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	self, err := svc.ListUsers(f.ctx, "stu")
	require.NoError(t, err)
	require.Len(t, self, 1)
	assert.Equal(t, "stu", self[0].ID)

	none, err := svc.ListUsers(f.ctx, models.AnonymousIdentity)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = svc.GetUser(f.ctx, "stu", "ins")
	assert.True(t, appErrors.Is(err, appErrors.ErrAccessDenied))

	names, err := svc.PublicUserNames(f.ctx, "stu", []string{"ins", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"ins": "ins"}, names)

	names, err = svc.PublicUserNames(f.ctx, models.AnonymousIdentity, []string{"ins"})
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestUserServiceModifications(t *testing.T) {
	f := newTenantFixture(t)
	f.addUser(t, "adm", models.RoleAdmin, true)
	f.addUser(t, "stu", models.RoleStudent, true)
	svc := NewUserService(f.users, f.state, f.authz, nil, nil, f.clock, nil)

	bad := "nope"
	_, err := svc.UpdateUser(f.ctx, "adm", "stu", UpdateUserRequest{Email: &bad})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	name := "Renamed"
	user, err := svc.UpdateUser(f.ctx, "adm", "stu", UpdateUserRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", user.Name)

	user, err = svc.UpdateUserRole(f.ctx, "adm", "stu", models.RoleInstructor)
	require.NoError(t, err)
	assert.Equal(t, models.RoleInstructor, user.Role)

	_, err = svc.UpdateUserRole(f.ctx, "adm", testRoot, models.RoleStudent)
	assert.True(t, appErrors.Is(err, appErrors.ErrInsufficientPermissions))

	_, err = svc.DeactivateUser(f.ctx, "adm", "stu")
	require.NoError(t, err)
	_, err = f.authz.Resolve(f.ctx, "stu")
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	user, err = svc.ReactivateUser(f.ctx, testRoot, "stu")
	require.NoError(t, err)
	assert.True(t, user.IsActive)

	_, err = svc.DeactivateUser(f.ctx, "stu", "adm")
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestCourseServiceLifecycle(t *testing.T) {
	f := newTenantFixture(t)
	f.addUser(t, "prof", models.RoleInstructor, true)
	f.addUser(t, "prof2", models.RoleInstructor, true)
	f.addUser(t, "stu", models.RoleStudent, true)
	svc := NewCourseService(f.courses, f.state, f.authz, nil, f.clock, nil)

	_, err := svc.CreateCourse(f.ctx, "stu", CreateCourseRequest{Title: "Nope"})
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	course, err := svc.CreateCourse(f.ctx, "prof", CreateCourseRequest{Title: "Algorithms"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(course.ID, "course_"))
	assert.Equal(t, []string{"prof"}, course.InstructorIDs)
	assert.Equal(t, testTenantID, course.TenantID)
	assert.False(t, course.IsPublished)

	_, err = svc.CreateCourse(f.ctx, "prof", CreateCourseRequest{ID: course.ID, Title: "Again"})
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyExists))

	_, err = svc.EnrollStudent(f.ctx, "prof2", course.ID, "stu")
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	course, err = svc.EnrollStudent(f.ctx, "prof", course.ID, "stu")
	require.NoError(t, err)
	assert.Equal(t, []string{"stu"}, course.EnrolledStudents)
	_, err = svc.EnrollStudent(f.ctx, "prof", course.ID, "stu")
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyExists))

	_, err = svc.RemoveInstructor(f.ctx, "prof", course.ID, "prof")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	_, err = svc.RemoveInstructor(f.ctx, "prof", course.ID, "nobody")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	course, err = svc.AddInstructor(f.ctx, "prof", course.ID, "prof2")
	require.NoError(t, err)
	assert.Equal(t, []string{"prof", "prof2"}, course.InstructorIDs)

	_, err = svc.RemoveInstructor(f.ctx, "prof", course.ID, "nobody")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	course, err = svc.RemoveInstructor(f.ctx, "prof2", course.ID, "prof")
	require.NoError(t, err)
	assert.Equal(t, []string{"prof2"}, course.InstructorIDs)

	published := true
	title := "Algorithms II"
	course, err = svc.UpdateCourse(f.ctx, "prof2", course.ID, UpdateCourseRequest{Title: &title, IsPublished: &published})
	require.NoError(t, err)
	assert.Equal(t, "Algorithms II", course.Title)
	assert.True(t, course.IsPublished)

	taught, err := svc.InstructorCourses(f.ctx, "stu", "prof2")
	require.NoError(t, err)
	assert.Len(t, taught, 1)

	taking, err := svc.StudentCourses(f.ctx, "stu", "stu")
	require.NoError(t, err)
	assert.Len(t, taking, 1)

	instructors, err := svc.CourseInstructors(f.ctx, "stu", course.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"prof2"}, instructors)

	_, err = svc.GetCourse(f.ctx, "stu", "course_missing")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = svc.ListCourses(f.ctx, models.AnonymousIdentity)
	assert.True(t, appErrors.Is(err, appErrors.ErrUserNotAuthenticated))
}

func TestQuizServiceAccess(t *testing.T) {
	f := newTenantFixture(t)
	f.addUser(t, "prof", models.RoleInstructor, true)
	f.addUser(t, "prof2", models.RoleInstructor, true)
	f.addUser(t, "stu", models.RoleStudent, true)
	f.addUser(t, "outsider", models.RoleStudent, true)
	course := f.addCourse(t, "cs101", "prof")
	_, err := f.courses.Mutate(f.ctx, course.ID, func(c *models.Course) error {
		c.EnrolledStudents = append(c.EnrolledStudents, "stu")
		return nil
	})
	require.NoError(t, err)
	svc := NewQuizService(f.quizzes, f.courses, f.authz, nil, f.clock, nil)

	req := CreateQuizRequest{
		CourseID:    "cs101",
		Title:       "Week 1",
		MaxAttempts: 2,
		Questions: []QuestionInput{
			{Text: "2+2?", Type: models.QuestionShortAnswer, Points: 2},
			{Text: "Is P=NP?", Type: models.QuestionTrueFalse, Points: 3},
		},
	}
	_, err = svc.CreateQuiz(f.ctx, "stu", req)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	_, err = svc.CreateQuiz(f.ctx, "prof2", req)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	invalid := req
	invalid.Questions = nil
	_, err = svc.CreateQuiz(f.ctx, "prof", invalid)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	quiz, err := svc.CreateQuiz(f.ctx, "prof", req)
	require.NoError(t, err)
	assert.Equal(t, "q1", quiz.Questions[0].ID)
	assert.Equal(t, "q2", quiz.Questions[1].ID)
	assert.Equal(t, uint32(5), quiz.TotalPoints())

	got, err := svc.GetQuiz(f.ctx, "stu", quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, quiz.Title, got.Title)

	_, err = svc.GetQuiz(f.ctx, "outsider", quiz.ID)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	list, err := svc.ListCourseQuizzes(f.ctx, testRoot, "cs101")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.True(t, appErrors.Is(svc.DeleteQuiz(f.ctx, "prof2", quiz.ID), appErrors.ErrUnauthorized))
	require.NoError(t, svc.DeleteQuiz(f.ctx, "prof", quiz.ID))
	_, err = svc.GetQuiz(f.ctx, "prof", quiz.ID)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestExportServiceRendersCourseGrades(t *testing.T) {
	f, grades := gradeFixture(t)
	for _, score := range []float64{72, 91} {
		_, err := grades.RecordGrade(f.ctx, "prof", recordReq("stu", score, 100, models.GradeProject))
		require.NoError(t, err)
	}
	svc := NewExportService(grades, nil)

	file, err := svc.ExportCourseGrades(f.ctx, "prof", "cs101", "")
	require.NoError(t, err)
	assert.Equal(t, "grades_cs101_20250310_090000.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)
	body := string(file.Data)
	assert.Contains(t, body, "student_id,grade_type,score,max_score,percentage,letter_grade,graded_by,graded_at")
	assert.Contains(t, body, "stu,PROJECT")

	pdf, err := svc.ExportCourseGrades(f.ctx, "prof", "cs101", "PDF")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf.Data), "%PDF"))

	_, err = svc.ExportCourseGrades(f.ctx, "prof", "cs101", "xlsx")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.ExportCourseGrades(f.ctx, "stu", "cs101", "csv")
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}
