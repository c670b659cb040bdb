package shared

import (
	"context"
	"time"
)

// IdentityProvider records how a local account was first provisioned.
type IdentityProvider string

const (
	IdentityProviderLocal    IdentityProvider = "LOCAL"
	IdentityProviderExternal IdentityProvider = "EXTERNAL"
)

// User is the service-level view of a local account. It never carries the
// password hash.
type User struct {
	ID               int64
	Name             string
	Email            string
	EmailVerifiedAt  *time.Time
	LastSignedInAt   *time.Time
	IdentityProvider IdentityProvider
	HasPassword      bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsVerified reports whether the account's email has been verified.
func (u *User) IsVerified() bool {
	return u.EmailVerifiedAt != nil
}

// ExternalProfile is the normalized profile returned by the external identity
// gateway. It is transient and never persisted as-is.
type ExternalProfile struct {
	ExternalID int64
	Email      string
	FirstName  string
	LastName   string
	Role       string
}

// Directory defines the user operations needed by the auth package.
// It is implemented by user.ServiceImplementation.
type Directory interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	CreateExternal(ctx context.Context, profile ExternalProfile, now time.Time) (*User, error)
	MarkVerifiedNow(ctx context.Context, usr *User, now time.Time) (*User, error)
	TouchLastSignedIn(ctx context.Context, id int64, at time.Time)
	Login(ctx context.Context, email, password string) (*User, error)
}
