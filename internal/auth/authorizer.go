package auth

import (
	"context"
	"errors"
	"time"

	"mabel_auth_backend/internal/common"
	"mabel_auth_backend/internal/mabel"
	"mabel_auth_backend/internal/shared"

	"go.uber.org/zap"
)

// IssuedSession is a signed session token handed back to the caller.
type IssuedSession struct {
	Token     string
	ExpiresAt time.Time
	Claims    SessionClaims
}

// Authorizer is the boundary of the auth core: it exchanges credentials for
// sessions and reads sessions back.
type Authorizer struct {
	gateway    mabel.ProfileFetcher
	directory  shared.Directory
	reconciler *Reconciler
	codec      *Codec
	policy     *RefreshPolicy
	blocklist  TokenBlocklistService
	logger     *zap.Logger
	now        func() time.Time
}

func NewAuthorizer(
	gateway mabel.ProfileFetcher,
	directory shared.Directory,
	reconciler *Reconciler,
	codec *Codec,
	policy *RefreshPolicy,
	blocklist TokenBlocklistService,
	logger *zap.Logger,
) *Authorizer {
	return &Authorizer{
		gateway:    gateway,
		directory:  directory,
		reconciler: reconciler,
		codec:      codec,
		policy:     policy,
		blocklist:  blocklist,
		logger:     logger.Named("Authorizer"),
		now:        time.Now,
	}
}

// AuthorizeExternal exchanges a Mabel bearer token for a session. Any gateway
// failure is reported as common.ErrInvalidCredentials.
func (a *Authorizer) AuthorizeExternal(ctx context.Context, token string) (*IssuedSession, error) {
	profile, err := a.gateway.FetchProfile(ctx, token)
	if err != nil {
		var gf *mabel.GatewayFailure
		if !errors.As(err, &gf) {
			a.logger.Error("Unexpected gateway error", zap.Error(err))
		}
		return nil, common.ErrInvalidCredentials
	}

	now := a.now().UTC()
	usr, err := a.reconciler.Reconcile(ctx, *profile, now)
	if err != nil {
		return nil, err
	}
	return a.issue(ctx, usr, now)
}

// AuthorizePassword is the password sibling of AuthorizeExternal.
func (a *Authorizer) AuthorizePassword(ctx context.Context, email, password string) (*IssuedSession, error) {
	usr, err := a.directory.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return a.issue(ctx, usr, a.now().UTC())
}

func (a *Authorizer) issue(ctx context.Context, usr *shared.User, now time.Time) (*IssuedSession, error) {
	if usr.LastSignedInAt == nil || !usr.LastSignedInAt.Equal(now) {
		a.directory.TouchLastSignedIn(ctx, usr.ID, now)
	}
	signedIn := *usr
	signedIn.LastSignedInAt = &now

	claims := ClaimsFromUser(&signedIn)
	token, expiresAt, err := a.codec.Encode(claims)
	if err != nil {
		a.logger.Error("Failed to encode session", zap.Int64("userID", usr.ID), zap.Error(err))
		return nil, common.ErrInternalServer
	}
	a.logger.Info("Session issued", zap.Int64("userID", usr.ID))
	return &IssuedSession{Token: token, ExpiresAt: expiresAt, Claims: claims}, nil
}

// ReadSession decodes token and applies the refresh policy. The returned
// IssuedSession is non-nil only when the token had to be rewritten.
// Undecodable, revoked and orphaned sessions yield common.ErrUnauthenticated.
func (a *Authorizer) ReadSession(ctx context.Context, token string) (*SessionView, *IssuedSession, error) {
	decoded, err := a.codec.DecodeToken(token)
	if err != nil {
		a.logger.Debug("Session token rejected", zap.Error(err))
		return nil, nil, common.ErrUnauthenticated
	}

	revoked, err := a.blocklist.IsBlocklisted(ctx, decoded.TokenID)
	if err != nil {
		a.logger.Error("Blocklist lookup failed", zap.Error(err))
		return nil, nil, common.ErrServiceUnavailable
	}
	if revoked {
		return nil, nil, common.ErrUnauthenticated.WithDetails("Session has been signed out.")
	}

	outcome, err := a.policy.Apply(ctx, decoded.Claims, a.now())
	if err != nil {
		return nil, nil, err
	}

	expiresAt := decoded.ExpiresAt
	var reissued *IssuedSession
	if outcome.Reissue {
		newToken, newExpiry, err := a.codec.Encode(outcome.Claims)
		if err != nil {
			a.logger.Error("Failed to reissue session", zap.Int64("userID", int64(outcome.Claims.UserID)), zap.Error(err))
			return nil, nil, common.ErrInternalServer
		}
		reissued = &IssuedSession{Token: newToken, ExpiresAt: newExpiry, Claims: outcome.Claims}
		expiresAt = newExpiry
		a.logger.Debug("Session reissued",
			zap.Int64("userID", int64(outcome.Claims.UserID)),
			zap.String("state", string(outcome.States[0])),
		)
	}

	view := outcome.Claims.View(expiresAt)
	return &view, reissued, nil
}

// SignOut revokes token until it expires. Tokens that do not decode are
// already unusable and are ignored.
func (a *Authorizer) SignOut(ctx context.Context, token string) error {
	decoded, err := a.codec.DecodeToken(token)
	if err != nil {
		return nil
	}
	if err := a.blocklist.AddToBlocklist(ctx, decoded.TokenID, decoded.ExpiresAt); err != nil {
		a.logger.Error("Failed to revoke session", zap.Error(err))
		return common.ErrServiceUnavailable
	}
	a.logger.Info("Session signed out", zap.Int64("userID", int64(decoded.Claims.UserID)))
	return nil
}

// Drain waits for background session writes to finish.
func (a *Authorizer) Drain() {
	a.policy.Drain()
}
