// File: internal/middleware/auth.go
package middleware

import (
	"mabel_auth_backend/internal/auth"
	"mabel_auth_backend/internal/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequireSession creates a Gin middleware that resolves the request's session.
// The SessionView is stored under common.SessionViewKey. A reissued token is
// written back to the response before the handler runs.
func RequireSession(authorizer *auth.Authorizer, transport *auth.SessionTransport, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := transport.Read(c)
		if token == "" {
			logger.Debug("Session token missing")
			common.RespondWithError(c, transport.Unauthenticated(common.ErrUnauthenticated))
			return
		}

		view, reissued, err := authorizer.ReadSession(c.Request.Context(), token)
		if err != nil {
			if apiErr, ok := common.IsAPIError(err); ok && apiErr.Code == common.ErrUnauthenticated.Code {
				transport.Clear(c)
			}
			common.RespondWithError(c, transport.Unauthenticated(err))
			return
		}
		if reissued != nil {
			transport.Write(c, reissued)
		}

		c.Set(common.SessionViewKey, view)
		logger.Debug("Session resolved", zap.Int64("userID", view.UserID), zap.Bool("reissued", reissued != nil))
		c.Next()
	}
}

// GetSessionViewFromContext retrieves the session resolved by RequireSession.
func GetSessionViewFromContext(c *gin.Context) *auth.SessionView {
	val, exists := c.Get(common.SessionViewKey)
	if !exists {
		return nil
	}
	view, ok := val.(*auth.SessionView)
	if !ok {
		return nil
	}
	return view
}
