// File: internal/user/model.go
package user

import (
	"time"

	"mabel_auth_backend/internal/common"
)

// User represents the user model in the database.
type User struct {
	common.BaseModel
	Name             string     `gorm:"type:varchar(255);not null;default:''"`
	Email            string     `gorm:"type:varchar(255);not null;uniqueIndex:idx_users_email"` // always stored lowercased
	EmailVerifiedAt  *time.Time `gorm:"column:email_verified_at"`
	PasswordHash     *string    `gorm:"type:varchar(255)"`
	LastSignedInAt   *time.Time `gorm:"column:last_signed_in_at"`
	IdentityProvider string     `gorm:"type:varchar(20);not null;default:'LOCAL';index"`
}

// TableName specifies the table name for the User model.
func (User) TableName() string {
	return "users"
}
