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

type courseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	List(ctx context.Context) ([]models.Course, error)
	Filter(ctx context.Context, keep func(models.Course) bool) ([]models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Mutate(ctx context.Context, id string, fn func(*models.Course) error) (*models.Course, error)
}

// CreateCourseRequest is the payload for a new course. An empty ID is generated.
type CreateCourseRequest struct {
	ID          string `json:"id"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
}

// UpdateCourseRequest changes course fields. Nil fields are left untouched.
type UpdateCourseRequest struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,min=1"`
	Description *string `json:"description,omitempty"`
	IsPublished *bool   `json:"is_published,omitempty"`
}

// CourseService manages courses, their instructors and enrollments.
type CourseService struct {
	repo      courseRepository
	state     tenantStateReader
	authz     *AuthzService
	validator *validator.Validate
	clock     clock.Clock
	logger    *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(repo courseRepository, state tenantStateReader, authz *AuthzService, validate *validator.Validate, clk clock.Clock, logger *zap.Logger) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &CourseService{repo: repo, state: state, authz: authz, validator: validate, clock: clk, logger: logger}
}

// CreateCourse stores a new unpublished course with the caller as its first instructor.
func (s *CourseService) CreateCourse(ctx context.Context, caller string, req CreateCourseRequest) (*models.Course, error) {
	if err := s.authz.CanPerformAction(ctx, caller, ActionCreateCourse); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	state, err := s.state.Get(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrInitialization, "tenant not initialized")
		}
		return nil, appErrors.Internal(err, "failed to load tenant state")
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = "course_" + uuid.NewString()
	}
	now := s.clock.Now().UTC()
	course := &models.Course{
		ID:               id,
		Title:            strings.TrimSpace(req.Title),
		Description:      req.Description,
		InstructorIDs:    []string{caller},
		TenantID:         state.TenantID,
		Lessons:          []string{},
		EnrolledStudents: []string{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyExists, "course already exists")
		}
		return nil, appErrors.Internal(err, "failed to create course")
	}
	s.logger.Info("course created", zap.String("course_id", course.ID), zap.String("created_by", caller))
	return course, nil
}

// ListCourses returns every course to any authenticated caller.
func (s *CourseService) ListCourses(ctx context.Context, caller string) ([]models.Course, error) {
	if _, err := s.authz.RequireAuthenticated(ctx, caller); err != nil {
		return nil, err
	}
	courses, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list courses")
	}
	return courses, nil
}

// GetCourse returns one course.
func (s *CourseService) GetCourse(ctx context.Context, caller, id string) (*models.Course, error) {
	if _, err := s.authz.RequireAuthenticated(ctx, caller); err != nil {
		return nil, err
	}
	return s.find(ctx, id)
}

// UpdateCourse changes title, description or publication.
func (s *CourseService) UpdateCourse(ctx context.Context, caller, id string, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	return s.modify(ctx, caller, id, "only course instructors or admin can update course", func(c *models.Course) error {
		if req.Title != nil {
			c.Title = strings.TrimSpace(*req.Title)
		}
		if req.Description != nil {
			c.Description = *req.Description
		}
		if req.IsPublished != nil {
			c.IsPublished = *req.IsPublished
		}
		return nil
	})
}

// EnrollStudent adds studentID to the course roster.
func (s *CourseService) EnrollStudent(ctx context.Context, caller, courseID, studentID string) (*models.Course, error) {
	if strings.TrimSpace(studentID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student id is required")
	}
	course, err := s.modify(ctx, caller, courseID, "only course instructors or admin can enroll students", func(c *models.Course) error {
		if c.HasStudent(studentID) {
			return appErrors.Clone(appErrors.ErrAlreadyExists, "student already enrolled")
		}
		c.EnrolledStudents = append(c.EnrolledStudents, studentID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("student enrolled", zap.String("course_id", courseID), zap.String("student_id", studentID))
	return course, nil
}

// AddInstructor adds a co-instructor.
func (s *CourseService) AddInstructor(ctx context.Context, caller, courseID, instructorID string) (*models.Course, error) {
	if strings.TrimSpace(instructorID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "instructor id is required")
	}
	return s.modify(ctx, caller, courseID, "only current instructors or admin can add new instructors", func(c *models.Course) error {
		if c.HasInstructor(instructorID) {
			return appErrors.Clone(appErrors.ErrAlreadyExists, "instructor already assigned to this course")
		}
		c.InstructorIDs = append(c.InstructorIDs, instructorID)
		return nil
	})
}

// RemoveInstructor drops an instructor. The last instructor cannot be removed.
func (s *CourseService) RemoveInstructor(ctx context.Context, caller, courseID, instructorID string) (*models.Course, error) {
	return s.modify(ctx, caller, courseID, "only current instructors or admin can remove instructors", func(c *models.Course) error {
		for i, id := range c.InstructorIDs {
			if id != instructorID {
				continue
			}
			if len(c.InstructorIDs) <= 1 {
				return appErrors.Clone(appErrors.ErrValidation, "course must have at least one instructor")
			}
			c.InstructorIDs = append(c.InstructorIDs[:i], c.InstructorIDs[i+1:]...)
			return nil
		}
		return appErrors.Clone(appErrors.ErrNotFound, "instructor not found in this course")
	})
}

// InstructorCourses lists courses taught by instructorID.
func (s *CourseService) InstructorCourses(ctx context.Context, caller, instructorID string) ([]models.Course, error) {
	if _, err := s.authz.RequireAuthenticated(ctx, caller); err != nil {
		return nil, err
	}
	courses, err := s.repo.Filter(ctx, func(c models.Course) bool { return c.HasInstructor(instructorID) })
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list courses")
	}
	return courses, nil
}

// StudentCourses lists courses studentID is enrolled in.
func (s *CourseService) StudentCourses(ctx context.Context, caller, studentID string) ([]models.Course, error) {
	if err := s.authz.CanAccessUserData(ctx, caller, studentID); err != nil {
		return nil, err
	}
	courses, err := s.repo.Filter(ctx, func(c models.Course) bool { return c.HasStudent(studentID) })
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list courses")
	}
	return courses, nil
}

// CourseInstructors returns the instructor ids of a course.
func (s *CourseService) CourseInstructors(ctx context.Context, caller, courseID string) ([]string, error) {
	course, err := s.GetCourse(ctx, caller, courseID)
	if err != nil {
		return nil, err
	}
	return course.InstructorIDs, nil
}

// modify checks course ownership against the stored course and then applies
// fn to a fresh copy inside the write transaction.
func (s *CourseService) modify(ctx context.Context, caller, id, deniedMsg string, fn func(*models.Course) error) (*models.Course, error) {
	current, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authz.CanModifyCourse(ctx, caller, current); err != nil {
		if appErrors.Is(err, appErrors.ErrUnauthorized) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, deniedMsg)
		}
		return nil, err
	}

	now := s.clock.Now().UTC()
	course, err := s.repo.Mutate(ctx, id, func(c *models.Course) error {
		if err := fn(c); err != nil {
			return err
		}
		c.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, notFoundOr(err, "course not found", "failed to update course")
	}
	return course, nil
}

func (s *CourseService) find(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Internal(err, "failed to load course")
	}
	return course, nil
}
