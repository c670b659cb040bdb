package auth

import (
	"context"
	"testing"
	"time"

	"mabel_auth_backend/internal/common"
	"mabel_auth_backend/internal/mabel"
	"mabel_auth_backend/internal/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type authorizerFixture struct {
	gateway   *MockProfileFetcher
	dir       *MockDirectory
	codec     *Codec
	authz     *Authorizer
	blocklist *InMemoryBlocklistService
	now       time.Time
}

func newAuthorizerFixture(t *testing.T) *authorizerFixture {
	t.Helper()
	f := &authorizerFixture{
		gateway:   new(MockProfileFetcher),
		dir:       new(MockDirectory),
		codec:     newTestCodec(t),
		blocklist: NewInMemoryBlocklistService(InMemoryBlocklistConfig{DefaultExpiration: time.Hour, CleanupInterval: time.Minute}),
		now:       time.Now().UTC(),
	}
	opts := Options{SigningSecret: testSecret, RefreshThreshold: time.Hour}
	f.authz = NewAuthorizer(
		f.gateway,
		f.dir,
		NewReconciler(f.dir, zap.NewNop()),
		f.codec,
		NewRefreshPolicy(f.dir, opts, zap.NewNop()),
		f.blocklist,
		zap.NewNop(),
	)
	f.authz.now = func() time.Time { return f.now }
	return f
}

func TestAuthorizeExternal_GatewayFailureIsInvalidCredentials(t *testing.T) {
	f := newAuthorizerFixture(t)
	f.gateway.On("FetchProfile", mock.Anything, "bad").
		Return(nil, &mabel.GatewayFailure{StatusCode: 401, Reason: "unexpected status"}).Once()

	issued, err := f.authz.AuthorizeExternal(context.Background(), "bad")

	assert.Nil(t, issued)
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	f.dir.AssertNotCalled(t, "FindByEmail", mock.Anything, mock.Anything)
	f.dir.AssertNotCalled(t, "CreateExternal", mock.Anything, mock.Anything, mock.Anything)
	f.dir.AssertNotCalled(t, "TouchLastSignedIn", mock.Anything, mock.Anything, mock.Anything)
}

func TestAuthorizeExternal_ExistingUserGetsSession(t *testing.T) {
	f := newAuthorizerFixture(t)
	verified := f.now.Add(-48 * time.Hour)
	existing := &shared.User{ID: 3, Name: "A B", Email: "a@x.com", EmailVerifiedAt: &verified}

	f.gateway.On("FetchProfile", mock.Anything, "T1").Return(&testProfile, nil).Once()
	f.dir.On("FindByEmail", mock.Anything, "a@x.com").Return(existing, nil).Once()
	f.dir.On("TouchLastSignedIn", mock.Anything, int64(3), f.now).Return().Once()

	issued, err := f.authz.AuthorizeExternal(context.Background(), "T1")
	require.NoError(t, err)

	claims, err := f.codec.Decode(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, issued.Claims, *claims)
	assert.Equal(t, NumericID(3), claims.UserID)
	require.NotNil(t, claims.LastSignedInAt)
	assert.True(t, claims.LastSignedInAt.Equal(f.now))
	f.dir.AssertExpectations(t)
}

func TestAuthorizeExternal_NewUserSkipsRedundantTouch(t *testing.T) {
	f := newAuthorizerFixture(t)
	created := &shared.User{ID: 1, Name: "A B", Email: "a@x.com", EmailVerifiedAt: &f.now, LastSignedInAt: &f.now}

	f.gateway.On("FetchProfile", mock.Anything, "T1").Return(&testProfile, nil).Once()
	f.dir.On("FindByEmail", mock.Anything, "a@x.com").Return(nil, common.ErrNotFound).Twice()
	f.dir.On("CreateExternal", mock.Anything, testProfile, f.now).Return(created, nil).Once()

	issued, err := f.authz.AuthorizeExternal(context.Background(), "T1")

	require.NoError(t, err)
	assert.Equal(t, NumericID(1), issued.Claims.UserID)
	f.dir.AssertNotCalled(t, "TouchLastSignedIn", mock.Anything, mock.Anything, mock.Anything)
}

func TestAuthorizePassword(t *testing.T) {
	f := newAuthorizerFixture(t)
	usr := &shared.User{ID: 8, Name: "P", Email: "p@x.com", HasPassword: true}

	f.dir.On("Login", mock.Anything, "p@x.com", "right").Return(usr, nil).Once()
	f.dir.On("Login", mock.Anything, "p@x.com", "wrong").Return(nil, common.ErrInvalidCredentials).Once()
	f.dir.On("TouchLastSignedIn", mock.Anything, int64(8), f.now).Return().Once()

	issued, err := f.authz.AuthorizePassword(context.Background(), "p@x.com", "right")
	require.NoError(t, err)
	assert.Equal(t, NumericID(8), issued.Claims.UserID)

	_, err = f.authz.AuthorizePassword(context.Background(), "p@x.com", "wrong")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestReadSession_FreshTokenIsNotReissued(t *testing.T) {
	f := newAuthorizerFixture(t)
	token, _, err := f.codec.Encode(SessionClaims{UserID: 2, Name: "A", Email: "a@x.com", LastSignedInAt: timePtr(f.now.Add(-30 * time.Minute))})
	require.NoError(t, err)

	view, reissued, err := f.authz.ReadSession(context.Background(), token)
	f.authz.Drain()

	require.NoError(t, err)
	assert.Nil(t, reissued)
	assert.Equal(t, int64(2), view.UserID)
	assert.Equal(t, "a@x.com", view.Email)
	f.dir.AssertNotCalled(t, "TouchLastSignedIn", mock.Anything, mock.Anything, mock.Anything)
}

func TestReadSession_StaleTokenIsReissued(t *testing.T) {
	f := newAuthorizerFixture(t)
	token, _, err := f.codec.Encode(SessionClaims{UserID: 2, Name: "A", Email: "a@x.com", LastSignedInAt: timePtr(f.now.Add(-61 * time.Minute))})
	require.NoError(t, err)
	f.dir.On("TouchLastSignedIn", mock.Anything, int64(2), f.now).Return().Once()

	view, reissued, err := f.authz.ReadSession(context.Background(), token)
	f.authz.Drain()

	require.NoError(t, err)
	require.NotNil(t, reissued)
	assert.NotEqual(t, token, reissued.Token)
	claims, err := f.codec.Decode(reissued.Token)
	require.NoError(t, err)
	assert.WithinDuration(t, f.now, *claims.LastSignedInAt, time.Second)
	assert.WithinDuration(t, f.now, *view.LastSignedInAt, time.Second)
	f.dir.AssertNumberOfCalls(t, "TouchLastSignedIn", 1)
}

func TestReadSession_InvalidTokenIsUnauthenticated(t *testing.T) {
	f := newAuthorizerFixture(t)

	view, reissued, err := f.authz.ReadSession(context.Background(), "garbage.token.value")

	assert.Nil(t, view)
	assert.Nil(t, reissued)
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
}

func TestSignOut_RevokesToken(t *testing.T) {
	f := newAuthorizerFixture(t)
	token, _, err := f.codec.Encode(SessionClaims{UserID: 2, Name: "A", Email: "a@x.com", LastSignedInAt: timePtr(f.now)})
	require.NoError(t, err)

	_, _, err = f.authz.ReadSession(context.Background(), token)
	require.NoError(t, err)

	require.NoError(t, f.authz.SignOut(context.Background(), token))

	_, _, err = f.authz.ReadSession(context.Background(), token)
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
}

func TestSignOut_IgnoresUndecodableToken(t *testing.T) {
	f := newAuthorizerFixture(t)
	assert.NoError(t, f.authz.SignOut(context.Background(), "not-a-token"))
}
