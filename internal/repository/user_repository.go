package repository

import (
	"context"
	"fmt"

	"github.com/noah-isme/lms-platform/internal/models"
	"github.com/noah-isme/lms-platform/pkg/store"
)

// UserRepository stores tenant users keyed by identity.
type UserRepository struct {
	store *store.Store
	users recordMap[models.User]
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(s *store.Store) *UserRepository {
	return &UserRepository{store: s, users: recordMap[models.User]{bucket: BucketUsers, schema: userSchema}}
}

// FindByID returns the user with identity id.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.store.View(ctx, func(tx *store.Tx) error {
		var err error
		user, err = r.users.get(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Exists reports whether id is a registered user.
func (r *UserRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.store.View(ctx, func(tx *store.Tx) error {
		var err error
		exists, err = r.users.has(tx, id)
		return err
	})
	return exists, err
}

// List returns every user in id order.
func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.store.View(ctx, func(tx *store.Tx) error {
		var err error
		users, err = r.users.list(tx)
		return err
	})
	return users, err
}

// Create inserts a new user; ErrDuplicate when the id is taken.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return r.store.Update(ctx, func(tx *store.Tx) error {
		exists, err := r.users.has(tx, user.ID)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("user %s: %w", user.ID, ErrDuplicate)
		}
		return r.users.put(tx, user.ID, *user)
	})
}

// Mutate applies fn to the stored user and saves the result atomically.
func (r *UserRepository) Mutate(ctx context.Context, id string, fn func(*models.User) error) (*models.User, error) {
	var user models.User
	err := r.store.Update(ctx, func(tx *store.Tx) error {
		var err error
		user, err = r.users.get(tx, id)
		if err != nil {
			return err
		}
		if err := fn(&user); err != nil {
			return err
		}
		return r.users.put(tx, id, user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}
