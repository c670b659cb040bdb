// File: internal/user/repository.go
package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"mabel_auth_backend/internal/common"

	"gorm.io/gorm"
)

// Repository defines the interface for user data operations.
type Repository interface {
	Create(ctx context.Context, user *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	SetEmailVerifiedAt(ctx context.Context, id int64, at time.Time) (bool, error)
	SetLastSignedInAt(ctx context.Context, id int64, at time.Time) error
	ListUnverifiedByProvider(ctx context.Context, provider string, limit int) ([]User, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewGORMRepository creates a new GORM user repository.
func NewGORMRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// Create inserts a new user record into the database.
// A unique violation on email is reported as common.ErrConflict and never retried.
func (r *gormRepository) Create(ctx context.Context, user *User) error {
	user.Email = NormalizeEmail(user.Email)
	err := r.db.WithContext(ctx).Create(user).Error
	if err != nil {
		if isUniqueViolation(err) {
			return common.ErrConflict.WithDetails("User with this email already exists.")
		}
		return err
	}
	return nil
}

// FindByEmail retrieves a user by their email address.
func (r *gormRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var userModel User
	err := r.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&userModel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("User not found with this email.")
		}
		return nil, err
	}
	return &userModel, nil
}

// FindByID retrieves a user by their ID.
func (r *gormRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	var userModel User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&userModel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("User not found with this ID.")
		}
		return nil, err
	}
	return &userModel, nil
}

// SetEmailVerifiedAt stamps email_verified_at only when it is still NULL.
// The boolean reports whether a row was changed.
func (r *gormRepository) SetEmailVerifiedAt(ctx context.Context, id int64, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&User{}).
		Where("id = ? AND email_verified_at IS NULL", id).
		Updates(map[string]interface{}{"email_verified_at": at, "updated_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SetLastSignedInAt records the most recent sign-in.
func (r *gormRepository) SetLastSignedInAt(ctx context.Context, id int64, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"last_signed_in_at": at, "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return common.ErrNotFound.WithDetails("User not found with this ID.")
	}
	return nil
}

// ListUnverifiedByProvider returns up to limit users of the given provider
// whose email_verified_at is NULL, oldest first.
func (r *gormRepository) ListUnverifiedByProvider(ctx context.Context, provider string, limit int) ([]User, error) {
	var users []User
	err := r.db.WithContext(ctx).
		Where("identity_provider = ? AND email_verified_at IS NULL", provider).
		Order("id ASC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
