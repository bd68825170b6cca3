package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/lms-platform/internal/models"
	"github.com/noah-isme/lms-platform/pkg/store"
)

// ErrEmailTaken is returned when another pre-provisioned record uses the email.
var ErrEmailTaken = errors.New("email already exists")

// PreProvisionRepository stores imported university records keyed by university id.
type PreProvisionRepository struct {
	store   *store.Store
	records recordMap[models.PreProvisionedUser]
	users   recordMap[models.User]
	courses recordMap[models.Course]
}

// NewPreProvisionRepository constructs a PreProvisionRepository.
func NewPreProvisionRepository(s *store.Store) *PreProvisionRepository {
	return &PreProvisionRepository{
		store:   s,
		records: recordMap[models.PreProvisionedUser]{bucket: BucketPreProvision, schema: preProvisionSchema},
		users:   recordMap[models.User]{bucket: BucketUsers, schema: userSchema},
		courses: recordMap[models.Course]{bucket: BucketCourses, schema: courseSchema},
	}
}

// InsertBatch stores records in input order inside one transaction. The
// returned slice holds one entry per input: nil on success, otherwise
// ErrDuplicate or ErrEmailTaken. Earlier rows of the batch count as existing.
func (r *PreProvisionRepository) InsertBatch(ctx context.Context, records []models.PreProvisionedUser) ([]error, error) {
	results := make([]error, len(records))
	err := r.store.Update(ctx, func(tx *store.Tx) error {
		existing, err := r.records.list(tx)
		if err != nil {
			return err
		}
		emails := make(map[string]struct{}, len(existing))
		for _, rec := range existing {
			emails[rec.Email] = struct{}{}
		}

		for i, rec := range records {
			taken, err := r.records.has(tx, rec.UniversityID)
			if err != nil {
				return err
			}
			if taken {
				results[i] = fmt.Errorf("%s: %w", rec.UniversityID, ErrDuplicate)
				continue
			}
			if _, ok := emails[rec.Email]; ok {
				results[i] = fmt.Errorf("%s: %w", rec.Email, ErrEmailTaken)
				continue
			}
			if err := r.records.put(tx, rec.UniversityID, rec); err != nil {
				return err
			}
			emails[rec.Email] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// FindByID returns the record for universityID.
func (r *PreProvisionRepository) FindByID(ctx context.Context, universityID string) (*models.PreProvisionedUser, error) {
	var rec models.PreProvisionedUser
	err := r.store.View(ctx, func(tx *store.Tx) error {
		var err error
		rec, err = r.records.get(tx, universityID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns every record in university id order.
func (r *PreProvisionRepository) List(ctx context.Context) ([]models.PreProvisionedUser, error) {
	var recs []models.PreProvisionedUser
	err := r.store.View(ctx, func(tx *store.Tx) error {
		var err error
		recs, err = r.records.list(tx)
		return err
	})
	return recs, err
}

// Delete removes a record.
func (r *PreProvisionRepository) Delete(ctx context.Context, universityID string) error {
	return r.store.Update(ctx, func(tx *store.Tx) error {
		exists, err := r.records.has(tx, universityID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("preprovisioned user %s: %w", universityID, ErrNotFound)
		}
		return r.records.delete(tx, universityID)
	})
}

// Mutate applies fn to the stored record and saves it. When fn returns an
// error the record is saved anyway if persist is true, so that state
// transitions caused by a failed attempt (expiry) are kept.
func (r *PreProvisionRepository) Mutate(ctx context.Context, universityID string, fn func(*models.PreProvisionedUser) (persist bool, err error)) (*models.PreProvisionedUser, error) {
	var (
		rec    models.PreProvisionedUser
		result error
	)
	err := r.store.Update(ctx, func(tx *store.Tx) error {
		var err error
		rec, err = r.records.get(tx, universityID)
		if err != nil {
			return err
		}
		persist, fnErr := fn(&rec)
		result = fnErr
		if !persist {
			return fnErr
		}
		return r.records.put(tx, universityID, rec)
	})
	if err != nil {
		return nil, err
	}
	if result != nil {
		return &rec, result
	}
	return &rec, nil
}

// ExpirePending marks records still pending verification after now as expired.
func (r *PreProvisionRepository) ExpirePending(ctx context.Context, now time.Time) (int, error) {
	expired := 0
	err := r.store.Update(ctx, func(tx *store.Tx) error {
		recs, err := r.records.filter(tx, func(rec models.PreProvisionedUser) bool {
			return rec.Status == models.PreProvisionPendingVerification &&
				rec.VerificationExpires != nil && now.After(*rec.VerificationExpires)
		})
		if err != nil {
			return err
		}
		for _, rec := range recs {
			rec.Status = models.PreProvisionExpired
			if err := r.records.put(tx, rec.UniversityID, rec); err != nil {
				return err
			}
		}
		expired = len(recs)
		return nil
	})
	return expired, err
}

// LinkResult reports what a successful link changed.
type LinkResult struct {
	User           models.User
	Enrolled       []string
	MissingCourses []string
}

// Link converts a verified record into a user in one transaction. decide
// validates the record and builds the user; callerIsUser tells it whether the
// identity already has an account. Known course codes are enrolled.
func (r *PreProvisionRepository) Link(ctx context.Context, universityID, identity string, decide func(rec *models.PreProvisionedUser, callerIsUser bool) (*models.User, error)) (*LinkResult, error) {
	var result LinkResult
	err := r.store.Update(ctx, func(tx *store.Tx) error {
		callerIsUser, err := r.users.has(tx, identity)
		if err != nil {
			return err
		}
		rec, err := r.records.get(tx, universityID)
		if err != nil {
			return err
		}
		user, err := decide(&rec, callerIsUser)
		if err != nil {
			return err
		}

		if err := r.users.put(tx, user.ID, *user); err != nil {
			return err
		}
		if err := r.records.put(tx, universityID, rec); err != nil {
			return err
		}

		for _, code := range rec.CourseCodes {
			course, err := r.courses.get(tx, code)
			if errors.Is(err, ErrNotFound) {
				result.MissingCourses = append(result.MissingCourses, code)
				continue
			}
			if err != nil {
				return err
			}
			if course.HasStudent(user.ID) {
				continue
			}
			course.EnrolledStudents = append(course.EnrolledStudents, user.ID)
			course.UpdatedAt = user.CreatedAt
			if err := r.courses.put(tx, code, course); err != nil {
				return err
			}
			result.Enrolled = append(result.Enrolled, code)
		}
		result.User = *user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
