package repository

import (
	"context"
	"fmt"

	"github.com/noah-isme/lms-platform/internal/models"
	"github.com/noah-isme/lms-platform/pkg/store"
)

// QuizRepository stores quizzes keyed by quiz id.
type QuizRepository struct {
	store   *store.Store
	quizzes recordMap[models.Quiz]
}

// NewQuizRepository constructs a QuizRepository.
func NewQuizRepository(s *store.Store) *QuizRepository {
	return &QuizRepository{store: s, quizzes: recordMap[models.Quiz]{bucket: BucketQuizzes, schema: quizSchema}}
}

// Create inserts a quiz.
func (r *QuizRepository) Create(ctx context.Context, quiz *models.Quiz) error {
	return r.store.Update(ctx, func(tx *store.Tx) error {
		exists, err := r.quizzes.has(tx, quiz.ID)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("quiz %s: %w", quiz.ID, ErrDuplicate)
		}
		return r.quizzes.put(tx, quiz.ID, *quiz)
	})
}

// FindByID returns the quiz with id.
func (r *QuizRepository) FindByID(ctx context.Context, id string) (*models.Quiz, error) {
	var quiz models.Quiz
	err := r.store.View(ctx, func(tx *store.Tx) error {
		var err error
		quiz, err = r.quizzes.get(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

// ListByCourse returns the quizzes of a course.
func (r *QuizRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Quiz, error) {
	var quizzes []models.Quiz
	err := r.store.View(ctx, func(tx *store.Tx) error {
		var err error
		quizzes, err = r.quizzes.filter(tx, func(q models.Quiz) bool { return q.CourseID == courseID })
		return err
	})
	return quizzes, err
}

// Delete removes a quiz.
func (r *QuizRepository) Delete(ctx context.Context, id string) error {
	return r.store.Update(ctx, func(tx *store.Tx) error {
		exists, err := r.quizzes.has(tx, id)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("quiz %s: %w", id, ErrNotFound)
		}
		return r.quizzes.delete(tx, id)
	})
}
