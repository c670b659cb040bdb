package user

import (
	"strings"
	"time"

	"mabel_auth_backend/internal/common"
	"mabel_auth_backend/internal/shared"
)

// DBToShared converts a GORM user.User model to a shared.User DTO.
func DBToShared(dbUser *User) *shared.User {
	if dbUser == nil {
		return nil
	}
	return &shared.User{
		ID:               dbUser.ID,
		Name:             dbUser.Name,
		Email:            dbUser.Email,
		EmailVerifiedAt:  dbUser.EmailVerifiedAt,
		LastSignedInAt:   dbUser.LastSignedInAt,
		IdentityProvider: shared.IdentityProvider(dbUser.IdentityProvider),
		HasPassword:      dbUser.PasswordHash != nil && *dbUser.PasswordHash != "",
		CreatedAt:        dbUser.CreatedAt,
		UpdatedAt:        dbUser.UpdatedAt,
	}
}

// ExternalProfileToDB builds a new EXTERNAL user row from a gateway profile.
// External identity counts as proof of email ownership, so the row is created verified.
func ExternalProfileToDB(profile shared.ExternalProfile, now time.Time) *User {
	verifiedAt := now
	signedInAt := now
	return &User{
		BaseModel:        common.BaseModel{CreatedAt: now, UpdatedAt: now},
		Name:             strings.TrimSpace(profile.FirstName + " " + profile.LastName),
		Email:            NormalizeEmail(profile.Email),
		EmailVerifiedAt:  &verifiedAt,
		LastSignedInAt:   &signedInAt,
		IdentityProvider: string(shared.IdentityProviderExternal),
	}
}

// NormalizeEmail is the single place emails are canonicalised before they
// reach the store.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
