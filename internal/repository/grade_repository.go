package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/noah-isme/lms-platform/internal/models"
	"github.com/noah-isme/lms-platform/pkg/store"
)

// ErrDuplicateFinal is returned when a student already has a final grade in a course.
var ErrDuplicateFinal = errors.New("final grade already exists")

// GradeRepository stores grades keyed by grade id.
type GradeRepository struct {
	store  *store.Store
	grades recordMap[models.Grade]
}

// NewGradeRepository constructs a GradeRepository.
func NewGradeRepository(s *store.Store) *GradeRepository {
	return &GradeRepository{store: s, grades: recordMap[models.Grade]{bucket: BucketGrades, schema: gradeSchema}}
}

// Create inserts a grade. A final grade is rejected with ErrDuplicateFinal
// when the student already has one for the course.
func (r *GradeRepository) Create(ctx context.Context, grade *models.Grade) error {
	return r.store.Update(ctx, func(tx *store.Tx) error {
		exists, err := r.grades.has(tx, grade.ID)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("grade %s: %w", grade.ID, ErrDuplicate)
		}
		if grade.GradeType == models.GradeFinal {
			finals, err := r.grades.filter(tx, finalFor(grade.StudentID, grade.CourseID))
			if err != nil {
				return err
			}
			if len(finals) > 0 {
				return ErrDuplicateFinal
			}
		}
		return r.grades.put(tx, grade.ID, *grade)
	})
}

// HasFinal reports whether the student has a final grade in the course.
func (r *GradeRepository) HasFinal(ctx context.Context, studentID, courseID string) (bool, error) {
	grades, err := r.filter(ctx, finalFor(studentID, courseID))
	if err != nil {
		return false, err
	}
	return len(grades) > 0, nil
}

// FindByID returns the grade with id.
func (r *GradeRepository) FindByID(ctx context.Context, id string) (*models.Grade, error) {
	var grade models.Grade
	err := r.store.View(ctx, func(tx *store.Tx) error {
		var err error
		grade, err = r.grades.get(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &grade, nil
}

// ListByStudent returns a student's grades, optionally within one course.
func (r *GradeRepository) ListByStudent(ctx context.Context, studentID, courseID string) ([]models.Grade, error) {
	return r.filter(ctx, func(g models.Grade) bool {
		return g.StudentID == studentID && (courseID == "" || g.CourseID == courseID)
	})
}

// ListByCourse returns every grade in a course.
func (r *GradeRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Grade, error) {
	return r.filter(ctx, func(g models.Grade) bool { return g.CourseID == courseID })
}

// Update replaces a stored grade.
func (r *GradeRepository) Update(ctx context.Context, grade *models.Grade) error {
	return r.store.Update(ctx, func(tx *store.Tx) error {
		exists, err := r.grades.has(tx, grade.ID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("grade %s: %w", grade.ID, ErrNotFound)
		}
		return r.grades.put(tx, grade.ID, *grade)
	})
}

// Delete removes a grade and returns it.
func (r *GradeRepository) Delete(ctx context.Context, id string) (*models.Grade, error) {
	var grade models.Grade
	err := r.store.Update(ctx, func(tx *store.Tx) error {
		var err error
		grade, err = r.grades.get(tx, id)
		if err != nil {
			return err
		}
		return r.grades.delete(tx, id)
	})
	if err != nil {
		return nil, err
	}
	return &grade, nil
}

func (r *GradeRepository) filter(ctx context.Context, keep func(models.Grade) bool) ([]models.Grade, error) {
	var grades []models.Grade
	err := r.store.View(ctx, func(tx *store.Tx) error {
		var err error
		grades, err = r.grades.filter(tx, keep)
		return err
	})
	return grades, err
}

func finalFor(studentID, courseID string) func(models.Grade) bool {
	return func(g models.Grade) bool {
		return g.GradeType == models.GradeFinal && g.StudentID == studentID && g.CourseID == courseID
	}
}
