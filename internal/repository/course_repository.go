package repository

import (
	"context"
	"fmt"

	"github.com/noah-isme/lms-platform/internal/models"
	"github.com/noah-isme/lms-platform/pkg/store"
)

// CourseRepository stores courses keyed by course id (the course code).
type CourseRepository struct {
	store   *store.Store
	courses recordMap[models.Course]
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(s *store.Store) *CourseRepository {
	return &CourseRepository{store: s, courses: recordMap[models.Course]{bucket: BucketCourses, schema: courseSchema}}
}

// FindByID returns the course with id.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	var course models.Course
	err := r.store.View(ctx, func(tx *store.Tx) error {
		var err error
		course, err = r.courses.get(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// List returns every course in id order.
func (r *CourseRepository) List(ctx context.Context) ([]models.Course, error) {
	return r.Filter(ctx, func(models.Course) bool { return true })
}

// Filter returns the courses for which keep reports true.
func (r *CourseRepository) Filter(ctx context.Context, keep func(models.Course) bool) ([]models.Course, error) {
	var courses []models.Course
	err := r.store.View(ctx, func(tx *store.Tx) error {
		var err error
		courses, err = r.courses.filter(tx, keep)
		return err
	})
	return courses, err
}

// Count returns the number of courses.
func (r *CourseRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.store.View(ctx, func(tx *store.Tx) error {
		var err error
		n, err = r.courses.count(tx)
		return err
	})
	return n, err
}

// Create inserts a new course; ErrDuplicate when the id is taken.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	return r.store.Update(ctx, func(tx *store.Tx) error {
		exists, err := r.courses.has(tx, course.ID)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("course %s: %w", course.ID, ErrDuplicate)
		}
		return r.courses.put(tx, course.ID, *course)
	})
}

// Mutate applies fn to the stored course and saves the result atomically.
func (r *CourseRepository) Mutate(ctx context.Context, id string, fn func(*models.Course) error) (*models.Course, error) {
	var course models.Course
	err := r.store.Update(ctx, func(tx *store.Tx) error {
		var err error
		course, err = r.courses.get(tx, id)
		if err != nil {
			return err
		}
		if err := fn(&course); err != nil {
			return err
		}
		return r.courses.put(tx, id, course)
	})
	if err != nil {
		return nil, err
	}
	return &course, nil
}
