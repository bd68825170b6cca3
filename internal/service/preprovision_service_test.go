package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/lms-platform/internal/models"
	appErrors "github.com/noah-isme/lms-platform/pkg/errors"
)

func preProvisionFixture(t *testing.T) (*tenantFixture, *PreProvisionService) {
	t.Helper()
	f := newTenantFixture(t)
	svc := NewPreProvisionService(f.records, f.state, f.authz, nil, f.metrics, f.clock, 30*time.Minute, nil)
	svc.hashCost = bcrypt.MinCost
	return f, svc
}

func importOne(t *testing.T, f *tenantFixture, svc *PreProvisionService, id, email, role, courses string) {
	t.Helper()
	_, err := svc.ImportSingleRecord(f.ctx, testRoot, models.UniversityImportRecord{
		UniversityID: id,
		Email:        email,
		Name:         "Student " + id,
		Role:         role,
		CourseCodes:  courses,
	})
	require.NoError(t, err)
}

func TestPreProvisionLifecycle(t *testing.T) {
	f, svc := preProvisionFixture(t)
	f.addCourse(t, "CS101", testRoot)
	importOne(t, f, svc, "S-1", "Ada@Uni.edu", "student", "CS101, MATH9")

	rec, err := svc.GetPreProvisioned(f.ctx, testRoot, "S-1")
	require.NoError(t, err)
	assert.Equal(t, models.PreProvisionImported, rec.Status)
	assert.Equal(t, "ada@uni.edu", rec.Email)
	assert.Equal(t, []string{"CS101", "MATH9"}, rec.CourseCodes)

	_, err = svc.LinkIdentity(f.ctx, "ada-principal", "S-1", "ada@uni.edu")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	ticket, err := svc.RequestVerification(f.ctx, "S-1", "ada@uni.edu")
	require.NoError(t, err)
	assert.Len(t, ticket.Code, 6)
	assert.Equal(t, f.clock.Now().UTC().Add(30*time.Minute), ticket.ExpiresAt)

	status, err := svc.GetLinkingStatus(f.ctx, "S-1")
	require.NoError(t, err)
	assert.Equal(t, models.PreProvisionPendingVerification, status.Status)

	wrong := "000000"
	if ticket.Code == wrong {
		wrong = "111111"
	}
	_, err = svc.VerifyEmail(f.ctx, VerifyEmailRequest{UniversityID: "S-1", Email: "ada@uni.edu", Code: wrong})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	status, err = svc.GetLinkingStatus(f.ctx, "S-1")
	require.NoError(t, err)
	assert.Equal(t, models.PreProvisionPendingVerification, status.Status)

	verified, err := svc.VerifyEmail(f.ctx, VerifyEmailRequest{UniversityID: "S-1", Email: "ada@uni.edu", Code: ticket.Code})
	require.NoError(t, err)
	assert.Equal(t, models.PreProvisionVerified, verified.Status)
	assert.True(t, verified.IsVerified)
	assert.Empty(t, verified.VerificationHash)
	assert.Nil(t, verified.VerificationExpires)

	user, err := svc.LinkIdentity(f.ctx, "ada-principal", "S-1", "ada@uni.edu")
	require.NoError(t, err)
	assert.Equal(t, "ada-principal", user.ID)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.Equal(t, testTenantID, user.TenantID)

	course, err := f.courses.FindByID(f.ctx, "CS101")
	require.NoError(t, err)
	assert.Contains(t, course.EnrolledStudents, "ada-principal")

	_, err = svc.LinkIdentity(f.ctx, "someone-else", "S-1", "ada@uni.edu")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.LinkIdentity(f.ctx, "ada-principal", "S-1", "ada@uni.edu")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.CheckUniversityID(f.ctx, "S-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestPreProvisionVerificationExpiry(t *testing.T) {
	f, svc := preProvisionFixture(t)
	importOne(t, f, svc, "S-2", "bo@uni.edu", "student", "")
	importOne(t, f, svc, "S-3", "cy@uni.edu", "student", "")

	ticket, err := svc.RequestVerification(f.ctx, "S-2", "bo@uni.edu")
	require.NoError(t, err)
	_, err = svc.RequestVerification(f.ctx, "S-3", "cy@uni.edu")
	require.NoError(t, err)

	f.clock.Add(31 * time.Minute)

	_, err = svc.VerifyEmail(f.ctx, VerifyEmailRequest{UniversityID: "S-2", Email: "bo@uni.edu", Code: ticket.Code})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
	status, err := svc.CheckUniversityID(f.ctx, "S-2")
	require.NoError(t, err)
	assert.Equal(t, models.PreProvisionExpired, status.Status)

	n, err := svc.ExpirePending(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	status, err = svc.CheckUniversityID(f.ctx, "S-3")
	require.NoError(t, err)
	assert.Equal(t, models.PreProvisionExpired, status.Status)

	ticket, err = svc.RequestVerification(f.ctx, "S-3", "cy@uni.edu")
	require.NoError(t, err)
	_, err = svc.VerifyEmail(f.ctx, VerifyEmailRequest{UniversityID: "S-3", Email: "cy@uni.edu", Code: ticket.Code})
	assert.NoError(t, err)
}

func TestPreProvisionRequestVerificationErrors(t *testing.T) {
	f, svc := preProvisionFixture(t)
	importOne(t, f, svc, "S-4", "di@uni.edu", "student", "")

	_, err := svc.RequestVerification(f.ctx, "S-4", "other@uni.edu")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.RequestVerification(f.ctx, "S-404", "di@uni.edu")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = svc.VerifyEmail(f.ctx, VerifyEmailRequest{UniversityID: "S-4", Email: "di@uni.edu", Code: "123456"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no verification code found")
}

func TestPreProvisionImportRecords(t *testing.T) {
	f, svc := preProvisionFixture(t)
	importOne(t, f, svc, "EXISTING", "taken@uni.edu", "faculty", "")

	stats, err := svc.ImportRecords(f.ctx, testRoot, []models.UniversityImportRecord{
		{Email: "a@uni.edu", Name: "A", Role: "student"},
		{UniversityID: "EXISTING", Email: "b@uni.edu", Name: "B", Role: "student"},
		{UniversityID: "C", Email: "taken@uni.edu", Name: "C", Role: "student"},
		{UniversityID: "D", Email: "d@uni.edu", Name: "D", Role: "janitor"},
		{Email: "e@uni.edu", Name: "E", Role: "faculty"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalImported)
	assert.Equal(t, 1, stats.StudentsImported)
	assert.Equal(t, 1, stats.StaffImported)
	require.Len(t, stats.Errors, 3)
	assert.Equal(t, "Duplicate university ID: EXISTING", stats.Errors[0])
	assert.Equal(t, "Email already exists: taken@uni.edu", stats.Errors[1])
	assert.Contains(t, stats.Errors[2], "Failed to import D")

	_, err = svc.GetPreProvisioned(f.ctx, testRoot, testTenantID+"_STU001")
	assert.NoError(t, err)
	_, err = svc.GetPreProvisioned(f.ctx, testRoot, testTenantID+"_FAC005")
	assert.NoError(t, err)

	counts, err := svc.ImportStatistics(f.ctx, testRoot)
	require.NoError(t, err)
	assert.Equal(t, &models.PreProvisionStatistics{Total: 3, Students: 1, Staff: 2}, counts)

	f.addUser(t, "ins", models.RoleInstructor, true)
	_, err = svc.ImportRecords(f.ctx, "ins", nil)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	msg, err := svc.DeletePreProvisioned(f.ctx, testRoot, "EXISTING")
	require.NoError(t, err)
	assert.Equal(t, "Pre-provisioned user EXISTING deleted", msg)
	_, err = svc.DeletePreProvisioned(f.ctx, testRoot, "EXISTING")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestPreProvisionLinkRejectsIdentityWithAccount(t *testing.T) {
	f, svc := preProvisionFixture(t)
	f.addUser(t, "already", models.RoleStudent, true)
	importOne(t, f, svc, "S-5", "ed@uni.edu", "student", "")

	ticket, err := svc.RequestVerification(f.ctx, "S-5", "ed@uni.edu")
	require.NoError(t, err)
	_, err = svc.VerifyEmail(f.ctx, VerifyEmailRequest{UniversityID: "S-5", Email: "ed@uni.edu", Code: ticket.Code})
	require.NoError(t, err)

	_, err = svc.LinkIdentity(f.ctx, "already", "S-5", "ed@uni.edu")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already linked to an account")

	_, err = svc.LinkIdentity(f.ctx, models.AnonymousIdentity, "S-5", "ed@uni.edu")
	assert.True(t, appErrors.Is(err, appErrors.ErrUserNotAuthenticated))
}
