// File: internal/auth/model.go
package auth

// ExternalAuthorizeRequest carries a bearer token issued by the Mabel gateway.
type ExternalAuthorizeRequest struct {
	Token string `json:"token" binding:"required"`
}

// LoginRequest defines the structure for login requests.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}
