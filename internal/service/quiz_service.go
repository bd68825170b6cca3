package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-platform/internal/models"
	"github.com/noah-isme/lms-platform/internal/repository"
	appErrors "github.com/noah-isme/lms-platform/pkg/errors"
)

type quizRepository interface {
	Create(ctx context.Context, quiz *models.Quiz) error
	FindByID(ctx context.Context, id string) (*models.Quiz, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Quiz, error)
	Delete(ctx context.Context, id string) error
}

// QuestionInput is one question of a CreateQuizRequest.
type QuestionInput struct {
	Text   string              `json:"text" validate:"required"`
	Type   models.QuestionType `json:"type" validate:"required,oneof=MULTIPLE_CHOICE TRUE_FALSE SHORT_ANSWER ESSAY"`
	Points uint32              `json:"points" validate:"min=1"`
}

// CreateQuizRequest is the payload for a new quiz.
type CreateQuizRequest struct {
	CourseID         string          `json:"course_id" validate:"required"`
	LessonID         *string         `json:"lesson_id,omitempty"`
	Title            string          `json:"title" validate:"required,max=200"`
	Description      string          `json:"description" validate:"max=2000"`
	Questions        []QuestionInput `json:"questions" validate:"min=1,max=100,dive"`
	TimeLimitMinutes *uint32         `json:"time_limit_minutes,omitempty"`
	MaxAttempts      uint32          `json:"max_attempts" validate:"min=1"`
}

// QuizService manages quizzes attached to courses.
type QuizService struct {
	repo      quizRepository
	courses   courseReader
	authz     *AuthzService
	validator *validator.Validate
	clock     clock.Clock
	logger    *zap.Logger
}

// NewQuizService constructs QuizService.
func NewQuizService(repo quizRepository, courses courseReader, authz *AuthzService, validate *validator.Validate, clk clock.Clock, logger *zap.Logger) *QuizService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &QuizService{repo: repo, courses: courses, authz: authz, validator: validate, clock: clk, logger: logger}
}

// CreateQuiz adds a quiz to a course the caller teaches or administers.
func (s *QuizService) CreateQuiz(ctx context.Context, caller string, req CreateQuizRequest) (*models.Quiz, error) {
	if _, err := s.authz.RequireTeacher(ctx, caller); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid quiz payload")
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "quiz title cannot be empty")
	}
	if _, err := s.courseForModification(ctx, caller, req.CourseID); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	quiz := &models.Quiz{
		ID:               "quiz_" + uuid.NewString(),
		CourseID:         req.CourseID,
		LessonID:         req.LessonID,
		Title:            strings.TrimSpace(req.Title),
		Description:      req.Description,
		Questions:        make([]models.Question, 0, len(req.Questions)),
		TimeLimitMinutes: req.TimeLimitMinutes,
		MaxAttempts:      req.MaxAttempts,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	for i, q := range req.Questions {
		if strings.TrimSpace(q.Text) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("question %d text cannot be empty", i+1))
		}
		quiz.Questions = append(quiz.Questions, models.Question{
			ID:     fmt.Sprintf("q%d", i+1),
			Text:   strings.TrimSpace(q.Text),
			Type:   q.Type,
			Points: q.Points,
		})
	}

	if err := s.repo.Create(ctx, quiz); err != nil {
		return nil, appErrors.Internal(err, "failed to create quiz")
	}
	s.logger.Info("quiz created",
		zap.String("quiz_id", quiz.ID),
		zap.String("course_id", quiz.CourseID),
		zap.Int("questions", len(quiz.Questions)),
	)
	return quiz, nil
}

// GetQuiz returns a quiz to the course's staff and enrolled students.
func (s *QuizService) GetQuiz(ctx context.Context, caller, id string) (*models.Quiz, error) {
	quiz, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return nil, appErrors.Internal(err, "failed to load quiz")
	}
	if err := s.checkQuizAccess(ctx, caller, quiz.CourseID); err != nil {
		return nil, err
	}
	return quiz, nil
}

// ListCourseQuizzes lists a course's quizzes for its staff and enrolled students.
func (s *QuizService) ListCourseQuizzes(ctx context.Context, caller, courseID string) ([]models.Quiz, error) {
	if err := s.checkQuizAccess(ctx, caller, courseID); err != nil {
		return nil, err
	}
	quizzes, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list quizzes")
	}
	return quizzes, nil
}

// DeleteQuiz removes a quiz from a course the caller may modify.
func (s *QuizService) DeleteQuiz(ctx context.Context, caller, id string) error {
	quiz, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return appErrors.Internal(err, "failed to load quiz")
	}
	if _, err := s.courseForModification(ctx, caller, quiz.CourseID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return notFoundOr(err, "quiz not found", "failed to delete quiz")
	}
	s.logger.Info("quiz deleted", zap.String("quiz_id", id), zap.String("deleted_by", caller))
	return nil
}

func (s *QuizService) courseForModification(ctx context.Context, caller, courseID string) (*models.Course, error) {
	course, err := s.findCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.CanModifyCourse(ctx, caller, course); err != nil {
		if appErrors.Is(err, appErrors.ErrUnauthorized) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "no access to this course")
		}
		return nil, err
	}
	return course, nil
}

// checkQuizAccess admits course staff, admins and enrolled students.
func (s *QuizService) checkQuizAccess(ctx context.Context, caller, courseID string) error {
	user, err := s.authz.RequireAuthenticated(ctx, caller)
	if err != nil {
		return err
	}
	course, err := s.findCourse(ctx, courseID)
	if err != nil {
		return err
	}
	if user.Role.HasPermissionLevel(models.RoleAdmin) || course.HasInstructor(user.ID) || course.HasStudent(user.ID) {
		return nil
	}
	return appErrors.Clone(appErrors.ErrUnauthorized, "you must be enrolled in this course to access its quizzes")
}

func (s *QuizService) findCourse(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Internal(err, "failed to load course")
	}
	return course, nil
}
