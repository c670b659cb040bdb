package auth

import (
	"context"
	"errors"
	"time"

	"mabel_auth_backend/internal/common"
	"mabel_auth_backend/internal/shared"

	"go.uber.org/zap"
)

// Reconciler maps an external profile onto exactly one local account, using
// the email address as the only merge key.
type Reconciler struct {
	directory shared.Directory
	logger    *zap.Logger
}

func NewReconciler(directory shared.Directory, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		directory: directory,
		logger:    logger.Named("Reconciler"),
	}
}

// Reconcile returns the local account for profile, creating it if needed. The
// returned user always has EmailVerifiedAt set.
//
// Errors are common.ErrAccountAlreadyExists when another flow created the
// email concurrently, or common.ErrInternalServer for directory failures.
func (r *Reconciler) Reconcile(ctx context.Context, profile shared.ExternalProfile, now time.Time) (*shared.User, error) {
	now = now.UTC()

	usr, err := r.lookup(ctx, profile.Email)
	if err != nil {
		return nil, err
	}

	if usr == nil {
		// Something may have created the account since the first lookup.
		raced, err := r.lookup(ctx, profile.Email)
		if err != nil {
			return nil, err
		}
		if raced != nil {
			r.logger.Warn("Account appeared between lookup and create", zap.Int64("userID", raced.ID))
			return nil, common.ErrAccountAlreadyExists
		}

		usr, err = r.directory.CreateExternal(ctx, profile, now)
		if err != nil {
			if errors.Is(err, common.ErrConflict) {
				return nil, common.ErrAccountAlreadyExists
			}
			r.logger.Error("Failed to create external account", zap.Error(err))
			return nil, common.ErrInternalServer
		}
	}

	if !usr.IsVerified() {
		stamped, err := r.directory.MarkVerifiedNow(ctx, usr, now)
		if err != nil {
			r.logger.Warn("Could not persist email verification", zap.Int64("userID", usr.ID), zap.Error(err))
			cp := *usr
			cp.EmailVerifiedAt = &now
			stamped = &cp
		}
		usr = stamped
	}
	return usr, nil
}

// lookup returns (nil, nil) when no account has the email.
func (r *Reconciler) lookup(ctx context.Context, email string) (*shared.User, error) {
	usr, err := r.directory.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil
		}
		r.logger.Error("Directory lookup failed", zap.Error(err))
		return nil, common.ErrInternalServer
	}
	return usr, nil
}
