// File: internal/common/context_keys.go
package common

const (
	// AuthorizationHeader is the header name for authorization token
	AuthorizationHeader = "Authorization"
	// AuthorizationTypeBearer is the prefix for Bearer tokens
	AuthorizationTypeBearer = "Bearer"
	// SessionTokenHeader carries a freshly issued session token back to API clients.
	SessionTokenHeader = "X-Session-Token"
	// SessionViewKey is the context key for storing the authenticated session view
	SessionViewKey = "sessionView"
	// LoggerKey is the context key for the request-scoped logger
	LoggerKey = "logger"
)
