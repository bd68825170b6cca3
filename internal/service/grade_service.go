package service

import (
	"context"
	"errors"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-platform/internal/models"
	"github.com/noah-isme/lms-platform/internal/repository"
	appErrors "github.com/noah-isme/lms-platform/pkg/errors"
)

// extraCreditAllowance is the share of max_score a score may exceed it by.
const extraCreditAllowance = 1.1

type gradeStore interface {
	Create(ctx context.Context, grade *models.Grade) error
	FindByID(ctx context.Context, id string) (*models.Grade, error)
	ListByStudent(ctx context.Context, studentID, courseID string) ([]models.Grade, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Grade, error)
	Update(ctx context.Context, grade *models.Grade) error
	Delete(ctx context.Context, id string) (*models.Grade, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type userReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type quizReader interface {
	FindByID(ctx context.Context, id string) (*models.Quiz, error)
}

// RecordGradeRequest is the payload of a single grade entry.
type RecordGradeRequest struct {
	StudentID string           `json:"student_id" validate:"required"`
	CourseID  string           `json:"course_id" validate:"required"`
	Score     float64          `json:"score"`
	MaxScore  float64          `json:"max_score"`
	GradeType models.GradeType `json:"grade_type" validate:"required"`
	Feedback  *string          `json:"feedback,omitempty"`
}

// RecordQuizGradeRequest grades a quiz taken in a course.
type RecordQuizGradeRequest struct {
	StudentID string  `json:"student_id" validate:"required"`
	CourseID  string  `json:"course_id" validate:"required"`
	QuizID    string  `json:"quiz_id" validate:"required"`
	Score     float64 `json:"score"`
	MaxScore  float64 `json:"max_score"`
	Feedback  *string `json:"feedback,omitempty"`
}

// UpdateGradeRequest changes a stored grade. Nil fields are left untouched.
type UpdateGradeRequest struct {
	Score    *float64 `json:"score,omitempty"`
	Feedback *string  `json:"feedback,omitempty"`
	Reason   *string  `json:"reason,omitempty"`
}

// GradeService records, reads and aggregates grades.
type GradeService struct {
	grades    gradeStore
	courses   courseReader
	users     userReader
	quizzes   quizReader
	authz     *AuthzService
	audit     *AuditService
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	clock     clock.Clock
	logger    *zap.Logger
}

// NewGradeService constructs GradeService.
func NewGradeService(grades gradeStore, courses courseReader, users userReader, quizzes quizReader, authz *AuthzService, audit *AuditService, cache *CacheService, metrics *MetricsService, validate *validator.Validate, clk clock.Clock, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{
		grades:    grades,
		courses:   courses,
		users:     users,
		quizzes:   quizzes,
		authz:     authz,
		audit:     audit,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		clock:     clk,
		logger:    logger,
	}
}

// ValidateScoreRange allows up to 10% extra credit over a positive max score.
func ValidateScoreRange(score, maxScore float64) error {
	if maxScore <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "max score must be greater than 0")
	}
	if score < 0 {
		return appErrors.Clone(appErrors.ErrValidation, "score cannot be negative")
	}
	if score > maxScore*extraCreditAllowance {
		return appErrors.Clone(appErrors.ErrValidation, "score exceeds maximum allowed (including extra credit)")
	}
	return nil
}

// RecordGrade stores a grade after checking grading permission, the student,
// the course, the score range and Final uniqueness.
func (s *GradeService) RecordGrade(ctx context.Context, caller string, req RecordGradeRequest) (*models.Grade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	if !req.GradeType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown grade type: "+string(req.GradeType))
	}
	if err := s.checkGradingPermission(ctx, caller, req.CourseID); err != nil {
		return nil, err
	}
	if err := s.validateGradeInput(ctx, req.StudentID, req.CourseID, req.Score, req.MaxScore); err != nil {
		return nil, err
	}

	grade := &models.Grade{
		ID:        "grade_" + uuid.NewString(),
		StudentID: req.StudentID,
		CourseID:  req.CourseID,
		Score:     req.Score,
		MaxScore:  req.MaxScore,
		GradeType: req.GradeType,
		Feedback:  req.Feedback,
		GradedBy:  caller,
		GradedAt:  s.clock.Now().UTC(),
	}
	if err := s.persist(ctx, grade); err != nil {
		return nil, err
	}
	s.logger.Info("grade recorded",
		zap.String("grade_id", grade.ID),
		zap.String("student_id", grade.StudentID),
		zap.String("course_id", grade.CourseID),
		zap.String("graded_by", caller),
		zap.Float64("score", grade.Score),
		zap.Float64("max_score", grade.MaxScore),
	)
	return grade, nil
}

// RecordQuizGrade stores a Quiz grade for a quiz that belongs to the course.
func (s *GradeService) RecordQuizGrade(ctx context.Context, caller string, req RecordQuizGradeRequest) (*models.Grade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid quiz grade payload")
	}
	if err := s.checkGradingPermission(ctx, caller, req.CourseID); err != nil {
		return nil, err
	}
	quiz, err := s.quizzes.FindByID(ctx, req.QuizID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return nil, appErrors.Internal(err, "failed to load quiz")
	}
	if quiz.CourseID != req.CourseID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "quiz does not belong to this course")
	}
	if err := s.validateGradeInput(ctx, req.StudentID, req.CourseID, req.Score, req.MaxScore); err != nil {
		return nil, err
	}

	quizID := quiz.ID
	grade := &models.Grade{
		ID:        "grade_" + uuid.NewString(),
		StudentID: req.StudentID,
		QuizID:    &quizID,
		LessonID:  quiz.LessonID,
		CourseID:  req.CourseID,
		Score:     req.Score,
		MaxScore:  req.MaxScore,
		GradeType: models.GradeQuiz,
		Feedback:  req.Feedback,
		GradedBy:  caller,
		GradedAt:  s.clock.Now().UTC(),
	}
	if err := s.persist(ctx, grade); err != nil {
		return nil, err
	}
	s.logger.Info("quiz grade recorded",
		zap.String("grade_id", grade.ID),
		zap.String("quiz_id", quizID),
		zap.String("student_id", grade.StudentID),
	)
	return grade, nil
}

func (s *GradeService) persist(ctx context.Context, grade *models.Grade) error {
	if err := s.grades.Create(ctx, grade); err != nil {
		if errors.Is(err, repository.ErrDuplicateFinal) {
			return appErrors.Clone(appErrors.ErrValidation, "final grade already exists for this student")
		}
		return appErrors.Internal(err, "failed to record grade")
	}
	s.metrics.RecordGradeMutation("record")
	s.audit.Record(ctx, AuditEntry{
		Caller:     grade.GradedBy,
		Action:     models.AuditActionGradeRecord,
		Resource:   "grade",
		ResourceID: grade.ID,
		Success:    true,
		NewValues:  grade,
	})
	s.cache.InvalidateCourse(ctx, grade.CourseID)
	return nil
}

// UpdateGrade changes score and feedback. Permission is re-checked against
// the stored course and the new score against the stored max score.
func (s *GradeService) UpdateGrade(ctx context.Context, caller, gradeID string, req UpdateGradeRequest) (*models.Grade, error) {
	grade, err := s.findGrade(ctx, gradeID)
	if err != nil {
		return nil, err
	}
	if err := s.checkGradingPermission(ctx, caller, grade.CourseID); err != nil {
		return nil, err
	}

	previous := *grade
	if req.Score != nil {
		if err := ValidateScoreRange(*req.Score, grade.MaxScore); err != nil {
			return nil, err
		}
		grade.Score = *req.Score
	}
	if req.Feedback != nil {
		feedback := *req.Feedback
		grade.Feedback = &feedback
	}
	grade.GradedBy = caller
	grade.GradedAt = s.clock.Now().UTC()

	if err := s.grades.Update(ctx, grade); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade not found")
		}
		return nil, appErrors.Internal(err, "failed to update grade")
	}

	reason := ""
	if req.Reason != nil {
		reason = *req.Reason
	}
	s.metrics.RecordGradeMutation("update")
	s.audit.Record(ctx, AuditEntry{
		Caller:     caller,
		Action:     models.AuditActionGradeUpdate,
		Resource:   "grade",
		ResourceID: grade.ID,
		Success:    true,
		OldValues:  map[string]any{"score": previous.Score},
		NewValues:  map[string]any{"score": grade.Score, "reason": reason},
	})
	s.cache.InvalidateCourse(ctx, grade.CourseID)
	s.logger.Info("grade updated",
		zap.String("grade_id", grade.ID),
		zap.String("graded_by", caller),
		zap.Float64("old_score", previous.Score),
		zap.Float64("new_score", grade.Score),
		zap.String("reason", reason),
	)
	return grade, nil
}

// DeleteGrade removes a grade. Admins only; a reason is required.
func (s *GradeService) DeleteGrade(ctx context.Context, caller, gradeID, reason string) error {
	if _, err := s.authz.RequireAdmin(ctx, caller); err != nil {
		return err
	}
	if strings.TrimSpace(reason) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "a reason is required to delete a grade")
	}
	grade, err := s.grades.Delete(ctx, gradeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return appErrors.Clone(appErrors.ErrNotFound, "grade not found")
		}
		return appErrors.Internal(err, "failed to delete grade")
	}
	s.metrics.RecordGradeMutation("delete")
	s.audit.Record(ctx, AuditEntry{
		Caller:     caller,
		Action:     models.AuditActionGradeDelete,
		Resource:   "grade",
		ResourceID: grade.ID,
		Success:    true,
		OldValues:  grade,
		NewValues:  map[string]any{"reason": reason},
	})
	s.cache.InvalidateCourse(ctx, grade.CourseID)
	s.logger.Info("grade deleted",
		zap.String("grade_id", grade.ID),
		zap.String("student_id", grade.StudentID),
		zap.String("deleted_by", caller),
		zap.String("reason", reason),
	)
	return nil
}

// BulkImportGrades validates every row first and applies nothing when any
// row fails. Valid batches are recorded in input order; rows failing at that
// stage, such as a second Final for the same student and course, are reported
// without undoing earlier rows.
func (s *GradeService) BulkImportGrades(ctx context.Context, caller string, entries []models.BulkGradeEntry) (*models.BulkImportResult, error) {
	var validationErrors []models.BulkImportError
	for i, entry := range entries {
		if err := s.validateBulkEntry(ctx, caller, entry); err != nil {
			validationErrors = append(validationErrors, models.BulkImportError{RowIndex: i, Error: err.Error()})
		}
	}
	if len(validationErrors) > 0 {
		return &models.BulkImportResult{ErrorCount: len(validationErrors), Errors: validationErrors}, nil
	}

	result := &models.BulkImportResult{Errors: []models.BulkImportError{}}
	for i, entry := range entries {
		_, err := s.RecordGrade(ctx, caller, RecordGradeRequest{
			StudentID: entry.StudentID,
			CourseID:  entry.CourseID,
			Score:     entry.Score,
			MaxScore:  entry.MaxScore,
			GradeType: entry.GradeType,
			Feedback:  entry.Feedback,
		})
		if err != nil {
			result.Errors = append(result.Errors, models.BulkImportError{RowIndex: i, Error: err.Error()})
			continue
		}
		result.SuccessCount++
	}
	result.ErrorCount = len(result.Errors)
	return result, nil
}

func (s *GradeService) validateBulkEntry(ctx context.Context, caller string, entry models.BulkGradeEntry) error {
	if err := s.validator.Struct(entry); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade row")
	}
	if !entry.GradeType.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "unknown grade type: "+string(entry.GradeType))
	}
	if err := s.checkGradingPermission(ctx, caller, entry.CourseID); err != nil {
		return err
	}
	return s.validateGradeInput(ctx, entry.StudentID, entry.CourseID, entry.Score, entry.MaxScore)
}

// GetGrade returns a grade to its course's graders and to callers who may see the student's data.
func (s *GradeService) GetGrade(ctx context.Context, caller, gradeID string) (*models.Grade, error) {
	grade, err := s.findGrade(ctx, gradeID)
	if err != nil {
		return nil, err
	}
	if s.checkGradingPermission(ctx, caller, grade.CourseID) == nil {
		return grade, nil
	}
	if err := s.authz.CanAccessUserData(ctx, caller, grade.StudentID); err != nil {
		return nil, err
	}
	return grade, nil
}

// GetStudentGrades lists a student's grades. Zero scores are drafts and are
// left out unless IncludeDraft is set.
func (s *GradeService) GetStudentGrades(ctx context.Context, caller, studentID string, filter models.GradeFilter) ([]models.Grade, error) {
	if err := s.authz.CanAccessUserData(ctx, caller, studentID); err != nil {
		return nil, err
	}
	return s.studentGrades(ctx, studentID, filter)
}

func (s *GradeService) studentGrades(ctx context.Context, studentID string, filter models.GradeFilter) ([]models.Grade, error) {
	grades, err := s.grades.ListByStudent(ctx, studentID, filter.CourseID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list grades")
	}
	result := make([]models.Grade, 0, len(grades))
	for _, g := range grades {
		if filter.GradeType != "" && g.GradeType != filter.GradeType {
			continue
		}
		if !filter.IncludeDraft && g.Score == 0 {
			continue
		}
		result = append(result, g)
	}
	return result, nil
}

// GetCourseGrades lists every grade of a course for its graders.
func (s *GradeService) GetCourseGrades(ctx context.Context, caller, courseID string) ([]models.Grade, error) {
	if err := s.checkGradingPermission(ctx, caller, courseID); err != nil {
		return nil, err
	}
	if _, err := s.findCourse(ctx, courseID); err != nil {
		return nil, err
	}
	grades, err := s.grades.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list course grades")
	}
	return grades, nil
}

// GetCourseGradesWithStats builds the course report, serving it from the
// cache while no grade of the course has changed.
func (s *GradeService) GetCourseGradesWithStats(ctx context.Context, caller, courseID string) (*models.CourseGradeReport, error) {
	if err := s.checkGradingPermission(ctx, caller, courseID); err != nil {
		return nil, err
	}
	if _, err := s.findCourse(ctx, courseID); err != nil {
		return nil, err
	}

	key := CourseReportKey(courseID)
	var cached models.CourseGradeReport
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	grades, err := s.grades.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list course grades")
	}
	report := &models.CourseGradeReport{
		CourseID:           courseID,
		TotalGrades:        len(grades),
		Grades:             grades,
		Statistics:         CalculateGradeStatistics(grades),
		LetterDistribution: LetterGradeDistribution(grades),
		GeneratedAt:        s.clock.Now().UTC(),
	}
	_ = s.cache.Set(ctx, key, report, 0)
	return report, nil
}

// CalculateCourseAverage is the simple mean of a student's non-draft grade percentages.
func (s *GradeService) CalculateCourseAverage(ctx context.Context, caller, studentID, courseID string) (*models.CourseAverage, error) {
	if err := s.authz.CanAccessUserData(ctx, caller, studentID); err != nil {
		return nil, err
	}
	grades, err := s.studentGrades(ctx, studentID, models.GradeFilter{CourseID: courseID})
	if err != nil {
		return nil, err
	}
	average, ok := CourseAverageOf(grades)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no grades found for student in this course")
	}
	return &models.CourseAverage{
		StudentID:   studentID,
		CourseID:    courseID,
		Average:     average,
		LetterGrade: CalculateLetterGrade(average),
		GradeCount:  len(grades),
	}, nil
}

// CalculateWeightedCourseAverage weighs a student's per-type averages. Nil
// weights mean the defaults; supplied weights must validate.
func (s *GradeService) CalculateWeightedCourseAverage(ctx context.Context, caller, studentID, courseID string, weights *GradeWeights) (*models.WeightedGradeResult, error) {
	w := DefaultGradeWeights()
	if weights != nil {
		if err := weights.Validate(); err != nil {
			return nil, err
		}
		w = *weights
	}
	if err := s.authz.CanAccessUserData(ctx, caller, studentID); err != nil {
		return nil, err
	}
	grades, err := s.studentGrades(ctx, studentID, models.GradeFilter{CourseID: courseID})
	if err != nil {
		return nil, err
	}
	if len(grades) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no grades found for student in this course")
	}

	average, used, breakdown := WeightedAverageOf(grades, w)
	return &models.WeightedGradeResult{
		StudentID:       studentID,
		CourseID:        courseID,
		FinalAverage:    average,
		LetterGrade:     CalculateLetterGrade(average),
		Breakdown:       breakdown,
		TotalWeightUsed: used,
	}, nil
}

// checkGradingPermission admits admins and the course's instructors. A
// missing course is NotFound for everyone else.
func (s *GradeService) checkGradingPermission(ctx context.Context, caller, courseID string) error {
	user, err := s.authz.Resolve(ctx, caller)
	if err != nil {
		return err
	}
	if user.Role.HasPermissionLevel(models.RoleAdmin) {
		return nil
	}
	course, err := s.findCourse(ctx, courseID)
	if err != nil {
		return err
	}
	if err := s.authz.CanModifyCourse(ctx, caller, course); err != nil {
		if appErrors.Is(err, appErrors.ErrUnauthorized) {
			return appErrors.Clone(appErrors.ErrUnauthorized, "only course instructors or admins can manage grades")
		}
		return err
	}
	return nil
}

func (s *GradeService) validateGradeInput(ctx context.Context, studentID, courseID string, score, maxScore float64) error {
	student, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Internal(err, "failed to load student")
	}
	if !student.IsActive {
		return appErrors.Clone(appErrors.ErrValidation, "student account is inactive")
	}
	if _, err := s.findCourse(ctx, courseID); err != nil {
		return err
	}
	return ValidateScoreRange(score, maxScore)
}

func (s *GradeService) findCourse(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Internal(err, "failed to load course")
	}
	return course, nil
}

func (s *GradeService) findGrade(ctx context.Context, gradeID string) (*models.Grade, error) {
	grade, err := s.grades.FindByID(ctx, gradeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade not found")
		}
		return nil, appErrors.Internal(err, "failed to load grade")
	}
	return grade, nil
}
