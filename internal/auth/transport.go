package auth

import (
	"net/http"
	"strings"
	"time"

	"mabel_auth_backend/internal/common"
	"mabel_auth_backend/internal/config"

	"github.com/gin-gonic/gin"
)

// SessionTransport moves session tokens between HTTP requests and responses:
// an HttpOnly cookie, with the Authorization header as fallback on reads and
// the X-Session-Token header on writes.
type SessionTransport struct {
	CookieName string
	Domain     string
	Secure     bool
	SameSite   http.SameSite
	LoginPath  string
}

// NewSessionTransport takes cookie attributes from cfg and the login path from opts.
func NewSessionTransport(cfg *config.Config, opts Options) *SessionTransport {
	name := cfg.SessionCookieName
	if name == "" {
		name = "session_token"
	}
	return &SessionTransport{
		CookieName: name,
		Domain:     cfg.SessionCookieDomain,
		Secure:     cfg.SessionCookieSecure,
		SameSite:   parseSameSite(cfg.SessionCookieSameSite),
		LoginPath:  opts.LoginRedirectPath,
	}
}

// Read returns the request's session token, or "".
func (t *SessionTransport) Read(c *gin.Context) string {
	return common.GetSessionToken(c, t.CookieName)
}

// Write attaches s to the response.
func (t *SessionTransport) Write(c *gin.Context, s *IssuedSession) {
	maxAge := int(time.Until(s.ExpiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	c.SetSameSite(t.SameSite)
	c.SetCookie(t.CookieName, s.Token, maxAge, "/", t.Domain, t.Secure, true)
	c.Header(common.SessionTokenHeader, s.Token)
}

// Clear expires the session cookie.
func (t *SessionTransport) Clear(c *gin.Context) {
	c.SetSameSite(t.SameSite)
	c.SetCookie(t.CookieName, "", -1, "/", t.Domain, t.Secure, true)
}

// Unauthenticated is the error returned when a request carries no usable
// session. It tells the client where to sign in.
func (t *SessionTransport) Unauthenticated(err error) error {
	apiErr, ok := common.IsAPIError(err)
	if !ok || apiErr.Code != common.ErrUnauthenticated.Code {
		return err
	}
	return apiErr.WithDetails(gin.H{"login_path": t.LoginPath})
}

func parseSameSite(raw string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
