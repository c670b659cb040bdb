package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mabel_auth_backend/internal/common"
	"mabel_auth_backend/internal/shared"

	"go.uber.org/zap"
)

// touchTimeout bounds best-effort sign-in timestamp writes.
const touchTimeout = 5 * time.Second

// DirectoryWriteFailure reports a failed best-effort write. Callers log it;
// it never fails an authorization or session read.
type DirectoryWriteFailure struct {
	Op     string
	UserID int64
	Err    error
}

func (e *DirectoryWriteFailure) Error() string {
	return fmt.Sprintf("directory write %s for user %d failed: %v", e.Op, e.UserID, e.Err)
}

func (e *DirectoryWriteFailure) Unwrap() error {
	return e.Err
}

// ServiceImplementation implements the shared.Directory interface.
type ServiceImplementation struct {
	repo   Repository
	logger *zap.Logger
}

var _ shared.Directory = (*ServiceImplementation)(nil)

// NewService creates a new user service.
func NewService(repo Repository, logger *zap.Logger) *ServiceImplementation {
	return &ServiceImplementation{
		repo:   repo,
		logger: logger.Named("UserDirectory"),
	}
}

// FindByEmail resolves a user by case-insensitive email. It returns
// common.ErrNotFound when no account exists.
func (s *ServiceImplementation) FindByEmail(ctx context.Context, email string) (*shared.User, error) {
	dbUser, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			s.logger.Error("Error finding user by email", zap.Error(err), zap.String("email", NormalizeEmail(email)))
		}
		return nil, err
	}
	return DBToShared(dbUser), nil
}

func (s *ServiceImplementation) FindByID(ctx context.Context, id int64) (*shared.User, error) {
	dbUser, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.logger.Info("User not found by ID", zap.Int64("userID", id))
		} else {
			s.logger.Error("Error finding user by ID", zap.Error(err), zap.Int64("userID", id))
		}
		return nil, err
	}
	return DBToShared(dbUser), nil
}

// CreateExternal provisions a new EXTERNAL account from a gateway profile.
// A lost email race comes back as common.ErrConflict.
func (s *ServiceImplementation) CreateExternal(ctx context.Context, profile shared.ExternalProfile, now time.Time) (*shared.User, error) {
	dbUser := ExternalProfileToDB(profile, now)
	if err := s.repo.Create(ctx, dbUser); err != nil {
		if errors.Is(err, common.ErrConflict) {
			s.logger.Warn("External user creation lost an email race", zap.String("email", dbUser.Email))
			return nil, err
		}
		s.logger.Error("Failed to create external user", zap.Error(err), zap.String("email", dbUser.Email))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.logger.Info("External user created", zap.Int64("userID", dbUser.ID), zap.Int64("externalID", profile.ExternalID))
	return DBToShared(dbUser), nil
}

// CreateLocal provisions a LOCAL password account.
func (s *ServiceImplementation) CreateLocal(ctx context.Context, name, email, password string) (*shared.User, error) {
	if strings.TrimSpace(password) == "" {
		return nil, common.ErrBadRequest.WithDetails("Password must not be empty.")
	}
	hash, err := common.HashPassword(password)
	if err != nil {
		s.logger.Error("Failed to hash password", zap.Error(err))
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	now := time.Now().UTC()
	dbUser := &User{
		BaseModel:        common.BaseModel{CreatedAt: now, UpdatedAt: now},
		Name:             strings.TrimSpace(name),
		Email:            NormalizeEmail(email),
		PasswordHash:     &hash,
		IdentityProvider: string(shared.IdentityProviderLocal),
	}
	if err := s.repo.Create(ctx, dbUser); err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.logger.Info("Local user created", zap.Int64("userID", dbUser.ID))
	return DBToShared(dbUser), nil
}

// MarkVerifiedNow stamps EmailVerifiedAt. It is a no-op for verified users.
// A failed write is returned as *DirectoryWriteFailure.
func (s *ServiceImplementation) MarkVerifiedNow(ctx context.Context, usr *shared.User, now time.Time) (*shared.User, error) {
	if usr.IsVerified() {
		return usr, nil
	}
	if _, err := s.repo.SetEmailVerifiedAt(ctx, usr.ID, now); err != nil {
		return nil, &DirectoryWriteFailure{Op: "mark_verified", UserID: usr.ID, Err: err}
	}
	stamped := *usr
	stamped.EmailVerifiedAt = &now
	s.logger.Info("User email marked verified", zap.Int64("userID", usr.ID))
	return &stamped, nil
}

// TouchLastSignedIn records a sign-in timestamp. Failures are logged, never returned.
func (s *ServiceImplementation) TouchLastSignedIn(ctx context.Context, id int64, at time.Time) {
	ctx, cancel := context.WithTimeout(ctx, touchTimeout)
	defer cancel()

	if err := s.repo.SetLastSignedInAt(ctx, id, at); err != nil {
		failure := &DirectoryWriteFailure{Op: "touch_last_signed_in", UserID: id, Err: err}
		s.logger.Warn("Best-effort directory write failed", zap.Error(failure))
	}
}

// Login verifies email and password for LOCAL accounts.
func (s *ServiceImplementation) Login(ctx context.Context, email, password string) (*shared.User, error) {
	dbUser, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.logger.Info("User not found during login", zap.String("email", NormalizeEmail(email)))
			return nil, common.ErrInvalidCredentials
		}
		s.logger.Error("Error finding user by email during login", zap.Error(err))
		return nil, common.ErrInternalServer.WithDetails("Login failed due to an internal error.")
	}

	if dbUser.PasswordHash == nil || *dbUser.PasswordHash == "" {
		s.logger.Warn("Password login attempted on account without password", zap.Int64("userID", dbUser.ID))
		return nil, common.ErrUserMissingPassword
	}

	if !common.CheckPasswordHash(password, *dbUser.PasswordHash) {
		s.logger.Warn("Invalid password attempt", zap.Int64("userID", dbUser.ID))
		return nil, common.ErrInvalidCredentials
	}

	return DBToShared(dbUser), nil
}

// StampUnverifiedExternal stamps EmailVerifiedAt on EXTERNAL accounts that are
// missing it, in batches. It returns how many accounts were stamped. Per-user
// write failures are logged and skipped.
func (s *ServiceImplementation) StampUnverifiedExternal(ctx context.Context, now time.Time, batchSize int) (int, error) {
	stamped := 0
	skipped := map[int64]struct{}{}
	for {
		limit := batchSize + len(skipped)
		users, err := s.repo.ListUnverifiedByProvider(ctx, string(shared.IdentityProviderExternal), limit)
		if err != nil {
			return stamped, fmt.Errorf("failed to list unverified external users: %w", err)
		}
		progressed := false
		for i := range users {
			if _, seen := skipped[users[i].ID]; seen {
				continue
			}
			if _, err := s.MarkVerifiedNow(ctx, DBToShared(&users[i]), now); err != nil {
				s.logger.Warn("Verification sweep could not stamp user", zap.Error(err))
				skipped[users[i].ID] = struct{}{}
				continue
			}
			stamped++
			progressed = true
		}
		if !progressed || len(users) < limit {
			return stamped, nil
		}
	}
}
