// File: internal/auth/handler.go
package auth

import (
	"errors"

	"mabel_auth_backend/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Handler struct holds dependencies for auth handlers.
type Handler struct {
	authorizer *Authorizer
	transport  *SessionTransport
	logger     *zap.Logger
}

// NewHandler creates a new auth handler.
func NewHandler(authorizer *Authorizer, transport *SessionTransport, logger *zap.Logger) *Handler {
	return &Handler{
		authorizer: authorizer,
		transport:  transport,
		logger:     logger.Named("AuthHandler"),
	}
}

// RegisterRoutes sets up the routes for authentication operations.
// requireSession guards the session read and must store the SessionView under
// common.SessionViewKey.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, requireSession gin.HandlerFunc) {
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/authorize-external", h.authorizeExternal)
		authGroup.POST("/login", h.login)
		authGroup.GET("/session", requireSession, h.session)
		authGroup.POST("/signout", h.signOut)
	}
}

func (h *Handler) authorizeExternal(c *gin.Context) {
	var req ExternalAuthorizeRequest
	if !h.bind(c, &req) {
		return
	}

	issued, err := h.authorizer.AuthorizeExternal(c.Request.Context(), req.Token)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	h.transport.Write(c, issued)
	common.RespondCreatedEmpty(c)
}

func (h *Handler) login(c *gin.Context) {
	var req LoginRequest
	if !h.bind(c, &req) {
		return
	}

	issued, err := h.authorizer.AuthorizePassword(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	h.transport.Write(c, issued)
	common.RespondCreatedEmpty(c)
}

func (h *Handler) session(c *gin.Context) {
	val, exists := c.Get(common.SessionViewKey)
	view, ok := val.(*SessionView)
	if !exists || !ok {
		common.RespondWithError(c, h.transport.Unauthenticated(common.ErrUnauthenticated))
		return
	}
	common.RespondOK(c, "", view)
}

func (h *Handler) signOut(c *gin.Context) {
	if token := h.transport.Read(c); token != "" {
		if err := h.authorizer.SignOut(c.Request.Context(), token); err != nil {
			common.RespondWithError(c, err)
			return
		}
	}
	h.transport.Clear(c)
	common.RespondNoContent(c)
}

func (h *Handler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.logger.Warn("Invalid request body", zap.String("path", c.FullPath()), zap.Error(err))
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			common.RespondWithError(c, common.NewValidationAPIError(common.FormatValidationErrors(ve)))
			return false
		}
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Request body must be valid JSON."))
		return false
	}
	return true
}
