package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"mabel_auth_backend/internal/shared"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer is stamped into and required on every session token.
const Issuer = "mabel_auth_backend"

// DefaultSessionMaxAge is used when no max age is configured.
const DefaultSessionMaxAge = 30 * 24 * time.Hour

// NumericID is a user id that may arrive as a JSON number or a numeric string.
// It always marshals as a number.
type NumericID int64

func (n *NumericID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(strings.TrimSpace(s))
	}
	id, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("user id %s is not an integer", data)
	}
	*n = NumericID(id)
	return nil
}

// SessionClaims is the snapshot of a user carried inside a session token.
// An empty Email marks an orphaned session that must be rebuilt from the directory.
type SessionClaims struct {
	UserID          NumericID  `json:"uid"`
	Name            string     `json:"name"`
	Email           string     `json:"email,omitempty"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	LastSignedInAt  *time.Time `json:"last_signed_in_at,omitempty"`
}

// ClaimsFromUser builds a full claims snapshot from a directory user.
func ClaimsFromUser(u *shared.User) SessionClaims {
	return SessionClaims{
		UserID:          NumericID(u.ID),
		Name:            u.Name,
		Email:           u.Email,
		EmailVerifiedAt: utcPtr(u.EmailVerifiedAt),
		LastSignedInAt:  utcPtr(u.LastSignedInAt),
	}
}

// SessionView is the read-only projection of a session handed to callers.
type SessionView struct {
	UserID          int64      `json:"user_id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	LastSignedInAt  *time.Time `json:"last_signed_in_at,omitempty"`
	ExpiresAt       time.Time  `json:"expires_at"`
}

// View projects claims for callers.
func (c SessionClaims) View(expiresAt time.Time) SessionView {
	return SessionView{
		UserID:          int64(c.UserID),
		Name:            c.Name,
		Email:           c.Email,
		EmailVerifiedAt: c.EmailVerifiedAt,
		LastSignedInAt:  c.LastSignedInAt,
		ExpiresAt:       expiresAt.UTC(),
	}
}

// DecodeFailure means a session token could not be trusted. It is never
// partially decoded.
type DecodeFailure struct {
	Reason string
	Err    error
}

func (e *DecodeFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session token rejected: %s: %v", e.Reason, e.Err)
	}
	return "session token rejected: " + e.Reason
}

func (e *DecodeFailure) Unwrap() error {
	return e.Err
}

// DecodedToken carries the claims together with the token metadata needed for
// revocation.
type DecodedToken struct {
	Claims    SessionClaims
	TokenID   string
	ExpiresAt time.Time
}

type tokenClaims struct {
	SessionClaims
	jwt.RegisteredClaims
}

// Codec signs and verifies session tokens with HS256.
type Codec struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewCodec returns an error when no signing secret is available; sessions are
// never issued with an empty key.
func NewCodec(opts Options) (*Codec, error) {
	if strings.TrimSpace(opts.SigningSecret) == "" {
		return nil, errors.New("session codec requires a signing secret")
	}
	maxAge := opts.SessionMaxAge
	if maxAge <= 0 {
		maxAge = DefaultSessionMaxAge
	}
	return &Codec{
		secret: []byte(opts.SigningSecret),
		maxAge: maxAge,
		now:    time.Now,
	}, nil
}

// EncodeUser signs a fresh snapshot of u.
func (c *Codec) EncodeUser(u *shared.User) (string, time.Time, error) {
	return c.Encode(ClaimsFromUser(u))
}

// Encode signs claims into a token and returns it with its expiry.
func (c *Codec) Encode(claims SessionClaims) (string, time.Time, error) {
	if claims.UserID <= 0 {
		return "", time.Time{}, errors.New("session claims require a positive user id")
	}
	now := c.now().UTC()
	expiresAt := now.Add(c.maxAge).Truncate(time.Second)

	claims.EmailVerifiedAt = utcPtr(claims.EmailVerifiedAt)
	claims.LastSignedInAt = utcPtr(claims.LastSignedInAt)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &tokenClaims{
		SessionClaims: claims,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   strconv.FormatInt(int64(claims.UserID), 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("could not sign session token: %w", err)
	}
	return signed, expiresAt, nil
}

// Decode verifies token and returns its claims. It never touches the directory.
func (c *Codec) Decode(token string) (*SessionClaims, error) {
	decoded, err := c.DecodeToken(token)
	if err != nil {
		return nil, err
	}
	return &decoded.Claims, nil
}

// DecodeToken is Decode plus the token id and expiry.
func (c *Codec) DecodeToken(token string) (*DecodedToken, error) {
	if strings.TrimSpace(token) == "" {
		return nil, &DecodeFailure{Reason: "empty token"}
	}

	var tc tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &tc, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, &DecodeFailure{Reason: "invalid token", Err: err}
	}
	if !parsed.Valid {
		return nil, &DecodeFailure{Reason: "invalid token"}
	}
	if tc.UserID <= 0 {
		return nil, &DecodeFailure{Reason: "missing user id"}
	}
	if tc.Subject != "" && tc.Subject != strconv.FormatInt(int64(tc.UserID), 10) {
		return nil, &DecodeFailure{Reason: "subject does not match user id"}
	}

	claims := tc.SessionClaims
	claims.EmailVerifiedAt = utcPtr(claims.EmailVerifiedAt)
	claims.LastSignedInAt = utcPtr(claims.LastSignedInAt)
	return &DecodedToken{
		Claims:    claims,
		TokenID:   tc.ID,
		ExpiresAt: tc.ExpiresAt.Time.UTC(),
	}, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
