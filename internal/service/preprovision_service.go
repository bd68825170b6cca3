package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/lms-platform/internal/models"
	"github.com/noah-isme/lms-platform/internal/repository"
	appErrors "github.com/noah-isme/lms-platform/pkg/errors"
)

type preProvisionStore interface {
	InsertBatch(ctx context.Context, records []models.PreProvisionedUser) ([]error, error)
	FindByID(ctx context.Context, universityID string) (*models.PreProvisionedUser, error)
	List(ctx context.Context) ([]models.PreProvisionedUser, error)
	Delete(ctx context.Context, universityID string) error
	Mutate(ctx context.Context, universityID string, fn func(*models.PreProvisionedUser) (bool, error)) (*models.PreProvisionedUser, error)
	ExpirePending(ctx context.Context, now time.Time) (int, error)
	Link(ctx context.Context, universityID, identity string, decide func(rec *models.PreProvisionedUser, callerIsUser bool) (*models.User, error)) (*repository.LinkResult, error)
}

// VerifyEmailRequest carries a verification code back for checking.
type VerifyEmailRequest struct {
	UniversityID string `json:"university_id" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Code         string `json:"verification_code" validate:"required,len=6,numeric"`
}

// PreProvisionService imports university rosters and walks imported records
// through email verification to a linked user account.
type PreProvisionService struct {
	records  preProvisionStore
	state    tenantStateReader
	authz    *AuthzService
	audit    *AuditService
	metrics  *MetricsService
	clock    clock.Clock
	logger   *zap.Logger
	codeTTL  time.Duration
	hashCost int
}

// NewPreProvisionService constructs a PreProvisionService. codeTTL defaults to one hour.
func NewPreProvisionService(records preProvisionStore, state tenantStateReader, authz *AuthzService, audit *AuditService, metrics *MetricsService, clk clock.Clock, codeTTL time.Duration, logger *zap.Logger) *PreProvisionService {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if codeTTL <= 0 {
		codeTTL = time.Hour
	}
	return &PreProvisionService{
		records:  records,
		state:    state,
		authz:    authz,
		audit:    audit,
		metrics:  metrics,
		clock:    clk,
		logger:   logger,
		codeTTL:  codeTTL,
		hashCost: bcrypt.DefaultCost,
	}
}

// ImportRecords imports a roster. Rows without a university id get one
// generated from the tenant id, role and row position. Invalid or duplicate
// rows are reported in the stats and skipped.
func (s *PreProvisionService) ImportRecords(ctx context.Context, caller string, records []models.UniversityImportRecord) (*models.ImportStats, error) {
	if _, err := s.authz.RequireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	tenantID, err := s.tenantID(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	rowErrors := make([]string, len(records))
	parsed := make([]models.PreProvisionedUser, 0, len(records))
	rows := make([]int, 0, len(records))
	for i, record := range records {
		if strings.TrimSpace(record.UniversityID) == "" {
			record.UniversityID = fmt.Sprintf("%s_%s%03d", tenantID, rolePrefix(record.Role), i+1)
		}
		user, err := parseImportRecord(record, now)
		if err != nil {
			rowErrors[i] = fmt.Sprintf("Failed to import %s: %s", record.UniversityID, errorMessage(err))
			continue
		}
		parsed = append(parsed, user)
		rows = append(rows, i)
	}

	results, err := s.records.InsertBatch(ctx, parsed)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to import records")
	}

	stats := &models.ImportStats{Errors: []string{}, Timestamp: now}
	for j, insertErr := range results {
		rec := parsed[j]
		switch {
		case errors.Is(insertErr, repository.ErrDuplicate):
			rowErrors[rows[j]] = "Duplicate university ID: " + rec.UniversityID
		case errors.Is(insertErr, repository.ErrEmailTaken):
			rowErrors[rows[j]] = "Email already exists: " + rec.Email
		case insertErr != nil:
			rowErrors[rows[j]] = fmt.Sprintf("Failed to import %s: %v", rec.UniversityID, insertErr)
		default:
			stats.TotalImported++
			if rec.Role == models.RoleStudent {
				stats.StudentsImported++
			} else {
				stats.StaffImported++
			}
		}
	}
	for _, msg := range rowErrors {
		if msg != "" {
			stats.Errors = append(stats.Errors, msg)
		}
	}

	s.logger.Info("roster import completed",
		zap.Int("imported", stats.TotalImported),
		zap.Int("errors", len(stats.Errors)),
		zap.String("imported_by", caller),
	)
	return stats, nil
}

// ImportSingleRecord imports one row. A generated university id uses a
// clock derived suffix.
func (s *PreProvisionService) ImportSingleRecord(ctx context.Context, caller string, record models.UniversityImportRecord) (*models.PreProvisionedUser, error) {
	if _, err := s.authz.RequireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	tenantID, err := s.tenantID(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	if strings.TrimSpace(record.UniversityID) == "" {
		record.UniversityID = fmt.Sprintf("%s_%s%d", tenantID, rolePrefix(record.Role), now.UnixNano()%10000)
	}
	user, err := parseImportRecord(record, now)
	if err != nil {
		return nil, err
	}

	results, err := s.records.InsertBatch(ctx, []models.PreProvisionedUser{user})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to import record")
	}
	switch {
	case errors.Is(results[0], repository.ErrDuplicate):
		return nil, appErrors.Clone(appErrors.ErrValidation, "University ID already exists: "+user.UniversityID)
	case errors.Is(results[0], repository.ErrEmailTaken):
		return nil, appErrors.Clone(appErrors.ErrValidation, "Email already exists: "+user.Email)
	case results[0] != nil:
		return nil, appErrors.Internal(results[0], "failed to import record")
	}
	s.logger.Info("pre-provisioned user imported", zap.String("university_id", user.UniversityID))
	return &user, nil
}

// ListPreProvisioned returns every imported record.
func (s *PreProvisionService) ListPreProvisioned(ctx context.Context, caller string) ([]models.PreProvisionedUser, error) {
	if _, err := s.authz.RequireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	recs, err := s.records.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list pre-provisioned users")
	}
	return recs, nil
}

// GetPreProvisioned returns one imported record.
func (s *PreProvisionService) GetPreProvisioned(ctx context.Context, caller, universityID string) (*models.PreProvisionedUser, error) {
	if _, err := s.authz.RequireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	rec, err := s.records.FindByID(ctx, universityID)
	if err != nil {
		return nil, notFoundOr(err, "pre-provisioned user not found: "+universityID, "failed to load pre-provisioned user")
	}
	return rec, nil
}

// DeletePreProvisioned removes an imported record.
func (s *PreProvisionService) DeletePreProvisioned(ctx context.Context, caller, universityID string) (string, error) {
	if _, err := s.authz.RequireAdmin(ctx, caller); err != nil {
		return "", err
	}
	if err := s.records.Delete(ctx, universityID); err != nil {
		return "", notFoundOr(err, "pre-provisioned user not found", "failed to delete pre-provisioned user")
	}
	s.logger.Info("pre-provisioned user deleted", zap.String("university_id", universityID), zap.String("deleted_by", caller))
	return fmt.Sprintf("Pre-provisioned user %s deleted", universityID), nil
}

// ImportStatistics counts records by role and progress.
func (s *PreProvisionService) ImportStatistics(ctx context.Context, caller string) (*models.PreProvisionStatistics, error) {
	if _, err := s.authz.RequireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	recs, err := s.records.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list pre-provisioned users")
	}
	stats := &models.PreProvisionStatistics{Total: len(recs)}
	for _, rec := range recs {
		if rec.Role == models.RoleStudent {
			stats.Students++
		} else {
			stats.Staff++
		}
		if rec.IsVerified {
			stats.Verified++
		}
		if rec.Status == models.PreProvisionLinked {
			stats.Linked++
		}
	}
	return stats, nil
}

// RequestVerification issues a fresh six digit code for an unverified record.
// Only the bcrypt hash is stored; the code is returned once for delivery.
func (s *PreProvisionService) RequestVerification(ctx context.Context, universityID, email string) (*models.VerificationTicket, error) {
	code, err := generateVerificationCode()
	if err != nil {
		return nil, appErrors.Internal(err, "failed to generate verification code")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.hashCost)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash verification code")
	}
	expires := s.clock.Now().UTC().Add(s.codeTTL)

	rec, err := s.records.Mutate(ctx, universityID, func(rec *models.PreProvisionedUser) (bool, error) {
		if !strings.EqualFold(rec.Email, strings.TrimSpace(email)) {
			return false, appErrors.Clone(appErrors.ErrValidation, "email does not match university records")
		}
		if rec.IsVerified {
			return false, appErrors.Clone(appErrors.ErrValidation, "email already verified")
		}
		rec.VerificationHash = hash
		rec.VerificationExpires = &expires
		rec.Status = models.PreProvisionPendingVerification
		return true, nil
	})
	if err != nil {
		return nil, notFoundOr(err, "university ID not found in pre-provisioned records", "failed to issue verification code")
	}

	s.logger.Info("verification code issued", zap.String("university_id", universityID), zap.Time("expires_at", expires))
	return &models.VerificationTicket{
		UniversityID: rec.UniversityID,
		Email:        rec.Email,
		Code:         code,
		ExpiresAt:    expires,
	}, nil
}

// VerifyEmail checks a code. An expired code moves the record to Expired; a
// wrong code leaves it unchanged; a correct code verifies it and clears the code.
func (s *PreProvisionService) VerifyEmail(ctx context.Context, req VerifyEmailRequest) (*models.PreProvisionedUser, error) {
	now := s.clock.Now().UTC()
	rec, err := s.records.Mutate(ctx, req.UniversityID, func(rec *models.PreProvisionedUser) (bool, error) {
		if !strings.EqualFold(rec.Email, strings.TrimSpace(req.Email)) {
			return false, appErrors.Clone(appErrors.ErrValidation, "email does not match")
		}
		if len(rec.VerificationHash) == 0 || rec.VerificationExpires == nil {
			return false, appErrors.Clone(appErrors.ErrValidation, "no verification code found")
		}
		if now.After(*rec.VerificationExpires) {
			rec.Status = models.PreProvisionExpired
			return true, appErrors.Clone(appErrors.ErrValidation, "verification code has expired")
		}
		if bcrypt.CompareHashAndPassword(rec.VerificationHash, []byte(req.Code)) != nil {
			return false, appErrors.Clone(appErrors.ErrValidation, "invalid verification code")
		}
		rec.IsVerified = true
		rec.Status = models.PreProvisionVerified
		rec.VerificationHash = nil
		rec.VerificationExpires = nil
		return true, nil
	})
	if err != nil {
		return nil, notFoundOr(err, "university ID not found", "failed to verify email")
	}
	s.logger.Info("email verified", zap.String("university_id", req.UniversityID))
	return rec, nil
}

// LinkIdentity turns a verified record into a user account owned by caller
// and enrolls it into the record's known course codes. A record links once
// and an identity owns at most one account.
func (s *PreProvisionService) LinkIdentity(ctx context.Context, caller, universityID, email string) (*models.User, error) {
	caller = strings.TrimSpace(caller)
	if caller == "" || caller == models.AnonymousIdentity {
		return nil, appErrors.Clone(appErrors.ErrUserNotAuthenticated, "anonymous access not allowed")
	}
	tenantID, err := s.tenantID(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()

	result, err := s.records.Link(ctx, universityID, caller, func(rec *models.PreProvisionedUser, callerIsUser bool) (*models.User, error) {
		if callerIsUser {
			return nil, appErrors.Clone(appErrors.ErrValidation, "this identity is already linked to an account")
		}
		if !strings.EqualFold(rec.Email, strings.TrimSpace(email)) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "email does not match")
		}
		if !rec.IsVerified {
			return nil, appErrors.Clone(appErrors.ErrValidation, "email must be verified before linking an identity")
		}
		if rec.LinkedIdentity != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "university ID already linked to another identity")
		}
		identity := caller
		rec.LinkedIdentity = &identity
		rec.Status = models.PreProvisionLinked
		return &models.User{
			ID:        caller,
			Name:      rec.Name,
			Email:     rec.Email,
			Role:      rec.Role,
			TenantID:  tenantID,
			CreatedAt: now,
			UpdatedAt: now,
			IsActive:  true,
		}, nil
	})
	if err != nil {
		s.audit.Record(ctx, AuditEntry{Caller: caller, Action: models.AuditActionIdentityLink, Resource: "preprovisioned_user", ResourceID: universityID})
		return nil, notFoundOr(err, "university ID not found", "failed to link identity")
	}

	for _, code := range result.MissingCourses {
		s.logger.Warn("course not found for auto-enrollment", zap.String("course_code", code), zap.String("user_id", caller))
	}
	s.audit.Record(ctx, AuditEntry{
		Caller:     caller,
		Action:     models.AuditActionIdentityLink,
		Resource:   "preprovisioned_user",
		ResourceID: universityID,
		Success:    true,
		NewValues:  map[string]any{"user_id": caller, "enrolled": result.Enrolled},
	})
	s.logger.Info("identity linked",
		zap.String("university_id", universityID),
		zap.String("user_id", caller),
		zap.Strings("enrolled", result.Enrolled),
	)
	user := result.User
	return &user, nil
}

// CheckUniversityID describes what a holder of universityID should do next.
func (s *PreProvisionService) CheckUniversityID(ctx context.Context, universityID string) (*models.UniversityIDStatus, error) {
	rec, err := s.records.FindByID(ctx, universityID)
	if err != nil {
		return nil, notFoundOr(err, "university ID not found in records", "failed to load university ID")
	}
	status := &models.UniversityIDStatus{UniversityID: rec.UniversityID, Status: rec.Status}
	switch rec.Status {
	case models.PreProvisionImported:
		status.Message = "Available for verification"
	case models.PreProvisionPendingVerification:
		status.Message = "Verification code sent, please check email"
	case models.PreProvisionVerified:
		status.Message = "Email verified, ready for identity linking"
	case models.PreProvisionLinked:
		return nil, appErrors.Clone(appErrors.ErrValidation, "university ID already linked")
	case models.PreProvisionExpired:
		status.Message = "Verification expired, please request new code"
	}
	return status, nil
}

// GetLinkingStatus reports a record's status and verification flag.
func (s *PreProvisionService) GetLinkingStatus(ctx context.Context, universityID string) (*models.LinkingStatus, error) {
	rec, err := s.records.FindByID(ctx, universityID)
	if err != nil {
		return nil, notFoundOr(err, "university ID not found", "failed to load university ID")
	}
	return &models.LinkingStatus{UniversityID: rec.UniversityID, Status: rec.Status, IsVerified: rec.IsVerified}, nil
}

// ExpirePending marks pending verifications past their expiry as Expired.
func (s *PreProvisionService) ExpirePending(ctx context.Context) (int, error) {
	n, err := s.records.ExpirePending(ctx, s.clock.Now().UTC())
	if err != nil {
		return 0, appErrors.Internal(err, "failed to expire verification codes")
	}
	s.metrics.RecordExpiredVerifications(n)
	if n > 0 {
		s.logger.Info("expired pending verifications", zap.Int("count", n))
	}
	return n, nil
}

func (s *PreProvisionService) tenantID(ctx context.Context) (string, error) {
	state, err := s.state.Get(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", appErrors.Clone(appErrors.ErrInitialization, "tenant not initialized")
		}
		return "", appErrors.Internal(err, "failed to load tenant state")
	}
	return state.TenantID, nil
}

func parseImportRecord(record models.UniversityImportRecord, now time.Time) (models.PreProvisionedUser, error) {
	universityID := strings.TrimSpace(record.UniversityID)
	if universityID == "" {
		return models.PreProvisionedUser{}, appErrors.Clone(appErrors.ErrValidation, "university ID cannot be empty")
	}
	email := strings.ToLower(strings.TrimSpace(record.Email))
	if email == "" || !strings.Contains(email, "@") {
		return models.PreProvisionedUser{}, appErrors.Clone(appErrors.ErrValidation, "valid email is required")
	}
	name := strings.TrimSpace(record.Name)
	if name == "" {
		return models.PreProvisionedUser{}, appErrors.Clone(appErrors.ErrValidation, "name cannot be empty")
	}
	role, err := models.ParseRole(record.Role)
	if err != nil {
		return models.PreProvisionedUser{}, err
	}

	codes := []string{}
	for _, code := range strings.Split(record.CourseCodes, ",") {
		if code = strings.TrimSpace(code); code != "" {
			codes = append(codes, code)
		}
	}
	var department *string
	if record.Department != nil {
		d := strings.TrimSpace(*record.Department)
		department = &d
	}

	return models.PreProvisionedUser{
		UniversityID: universityID,
		Email:        email,
		Name:         name,
		Role:         role,
		Department:   department,
		YearOfStudy:  record.YearOfStudy,
		CourseCodes:  codes,
		CreatedAt:    now,
		Status:       models.PreProvisionImported,
	}, nil
}

func rolePrefix(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "student":
		return "STU"
	case "instructor", "faculty", "teacher":
		return "FAC"
	case "admin", "administrator":
		return "ADM"
	}
	return "USR"
}

func generateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// notFoundOr keeps typed errors, maps repository.ErrNotFound to NotFound and
// wraps anything else as internal.
func notFoundOr(err error, notFoundMsg, internalMsg string) error {
	var typed *appErrors.Error
	if errors.As(err, &typed) {
		return typed
	}
	if errors.Is(err, repository.ErrNotFound) {
		return appErrors.Clone(appErrors.ErrNotFound, notFoundMsg)
	}
	return appErrors.Internal(err, internalMsg)
}

func errorMessage(err error) string {
	var typed *appErrors.Error
	if errors.As(err, &typed) {
		return typed.Message
	}
	return err.Error()
}
