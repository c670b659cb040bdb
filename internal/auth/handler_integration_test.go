package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mabel_auth_backend/internal/auth"
	"mabel_auth_backend/internal/common"
	"mabel_auth_backend/internal/config"
	"mabel_auth_backend/internal/mabel"
	"mabel_auth_backend/internal/middleware"
	"mabel_auth_backend/internal/shared"
	"mabel_auth_backend/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type gatewayUser struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

// IntegrationTestSuite runs the auth routes against sqlite and a fake gateway.
type IntegrationTestSuite struct {
	suite.Suite
	Router     *gin.Engine
	DB         *gorm.DB
	Cfg        *config.Config
	UserSvc    *user.ServiceImplementation
	Codec      *auth.Codec
	Authorizer *auth.Authorizer

	gateway      *httptest.Server
	gatewayCalls int32
	mu           sync.Mutex
	profiles     map[string]gatewayUser
}

func (s *IntegrationTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	s.profiles = map[string]gatewayUser{}
	atomic.StoreInt32(&s.gatewayCalls, 0)
	s.gateway = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&s.gatewayCalls, 1)
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		profile, ok := s.profiles[token]
		s.mu.Unlock()
		if r.URL.Path != mabel.CurrentUserPath || !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(profile)
	}))

	s.Cfg = &config.Config{
		AppEnv:                  config.EnvDevelopment,
		GinMode:                 gin.TestMode,
		MabelGatewayURL:         s.gateway.URL,
		MabelGatewayTimeout:     2 * time.Second,
		SessionSigningSecret:    "integration-test-secret",
		SessionMaxAge:           time.Hour,
		SessionRefreshThreshold: time.Hour,
		SessionCookieName:       "session_token",
		LoginRedirectPath:       "/signin",
	}

	var err error
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	s.DB, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	s.Require().NoError(err, "Failed to connect to test database")
	s.Require().NoError(s.DB.AutoMigrate(&user.User{}))

	s.UserSvc = user.NewService(user.NewGORMRepository(s.DB), logger)
	opts, err := auth.NewOptions(s.Cfg, logger)
	s.Require().NoError(err)
	s.Codec, err = auth.NewCodec(opts)
	s.Require().NoError(err)

	s.Authorizer = auth.NewAuthorizer(
		mabel.NewClient(opts.ExternalGatewayURL, opts.GatewayTimeout, logger),
		s.UserSvc,
		auth.NewReconciler(s.UserSvc, logger),
		s.Codec,
		auth.NewRefreshPolicy(s.UserSvc, opts, logger),
		auth.NewInMemoryBlocklistService(auth.InMemoryBlocklistConfig{DefaultExpiration: time.Hour, CleanupInterval: time.Minute}),
		logger,
	)
	transport := auth.NewSessionTransport(s.Cfg, opts)

	router := gin.New()
	router.Use(middleware.ErrorHandler(logger))
	apiV1 := router.Group("/api/v1")
	auth.NewHandler(s.Authorizer, transport, logger).
		RegisterRoutes(apiV1, middleware.RequireSession(s.Authorizer, transport, logger))
	s.Router = router
}

func (s *IntegrationTestSuite) TearDownTest() {
	s.Authorizer.Drain()
	s.gateway.Close()
	if sqlDB, err := s.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func TestIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(IntegrationTestSuite))
}

func (s *IntegrationTestSuite) registerToken(token string, profile gatewayUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[token] = profile
}

func (s *IntegrationTestSuite) do(method, path string, body interface{}, sessionToken string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, reader)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if sessionToken != "" {
		req.AddCookie(&http.Cookie{Name: s.Cfg.SessionCookieName, Value: sessionToken})
	}
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	return w
}

func (s *IntegrationTestSuite) authorize(token string) *httptest.ResponseRecorder {
	return s.do(http.MethodPost, "/api/v1/auth/authorize-external", gin.H{"token": token}, "")
}

func (s *IntegrationTestSuite) countUsers() int64 {
	var n int64
	s.Require().NoError(s.DB.Model(&user.User{}).Count(&n).Error)
	return n
}

func (s *IntegrationTestSuite) errorCode(w *httptest.ResponseRecorder) string {
	var body common.APIError
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	return body.Code
}

func (s *IntegrationTestSuite) TestAuthorizeExternal_NewUserThenReauthorize() {
	s.registerToken("T1", gatewayUser{ID: 501, Email: "a@x.com", FirstName: "A", LastName: "B", Role: "member"})

	w := s.authorize("T1")
	s.Equal(http.StatusCreated, w.Code)
	s.Empty(w.Body.String())
	first := w.Header().Get(common.SessionTokenHeader)
	s.Require().NotEmpty(first)
	s.Contains(w.Header().Get("Set-Cookie"), "session_token=")

	u1, err := s.UserSvc.FindByEmail(context.Background(), "a@x.com")
	s.Require().NoError(err)
	s.Equal("A B", u1.Name)
	s.Equal(shared.IdentityProviderExternal, u1.IdentityProvider)
	s.True(u1.IsVerified())
	s.NotNil(u1.LastSignedInAt)

	w = s.authorize("T1")
	s.Equal(http.StatusCreated, w.Code)
	claims, err := s.Codec.Decode(w.Header().Get(common.SessionTokenHeader))
	s.Require().NoError(err)
	s.Equal(u1.ID, int64(claims.UserID))
	s.Equal(int64(1), s.countUsers())
}

func (s *IntegrationTestSuite) TestAuthorizeExternal_ReusesPasswordAccount() {
	local, err := s.UserSvc.CreateLocal(context.Background(), "Local Person", "A@x.com", "s3cret-pass")
	s.Require().NoError(err)
	s.False(local.IsVerified())
	var before user.User
	s.Require().NoError(s.DB.First(&before, local.ID).Error)

	s.registerToken("T2", gatewayUser{ID: 502, Email: "a@x.com", FirstName: "A", LastName: "B"})
	w := s.authorize("T2")
	s.Equal(http.StatusCreated, w.Code)

	claims, err := s.Codec.Decode(w.Header().Get(common.SessionTokenHeader))
	s.Require().NoError(err)
	s.Equal(local.ID, int64(claims.UserID))
	s.NotNil(claims.EmailVerifiedAt)

	var after user.User
	s.Require().NoError(s.DB.First(&after, local.ID).Error)
	s.NotNil(after.EmailVerifiedAt)
	s.Equal(*before.PasswordHash, *after.PasswordHash)
	s.Equal(string(shared.IdentityProviderLocal), after.IdentityProvider)
	s.Equal("Local Person", after.Name)
	s.Equal(int64(1), s.countUsers())
}

func (s *IntegrationTestSuite) TestAuthorizeExternal_GatewayRejectsToken() {
	w := s.authorize("unknown-token")

	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("INVALID_CREDENTIALS", s.errorCode(w))
	s.Empty(w.Header().Get("Set-Cookie"))
	s.Equal(int64(0), s.countUsers())
	s.Equal(int32(1), atomic.LoadInt32(&s.gatewayCalls))
}

func (s *IntegrationTestSuite) TestAuthorizeExternal_MissingTokenIsValidationError() {
	w := s.do(http.MethodPost, "/api/v1/auth/authorize-external", gin.H{}, "")

	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Equal("VALIDATION_ERROR", s.errorCode(w))
	s.Equal(int32(0), atomic.LoadInt32(&s.gatewayCalls))
}

func (s *IntegrationTestSuite) TestSession_ReadAndSignOut() {
	s.registerToken("T3", gatewayUser{ID: 503, Email: "s@x.com", FirstName: "S", LastName: "T"})
	token := s.authorize("T3").Header().Get(common.SessionTokenHeader)
	s.Require().NotEmpty(token)

	w := s.do(http.MethodGet, "/api/v1/auth/session", nil, token)
	s.Equal(http.StatusOK, w.Code)
	var body struct {
		Status string           `json:"status"`
		Data   auth.SessionView `json:"data"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Equal("success", body.Status)
	s.Equal("s@x.com", body.Data.Email)
	s.Equal("S T", body.Data.Name)
	s.Empty(w.Header().Get(common.SessionTokenHeader), "fresh sessions are not reissued")

	w = s.do(http.MethodPost, "/api/v1/auth/signout", nil, token)
	s.Equal(http.StatusNoContent, w.Code)

	w = s.do(http.MethodGet, "/api/v1/auth/session", nil, token)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *IntegrationTestSuite) TestSession_NoTokenPointsToLogin() {
	w := s.do(http.MethodGet, "/api/v1/auth/session", nil, "")

	s.Equal(http.StatusUnauthorized, w.Code)
	var body struct {
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Equal("UNAUTHENTICATED", body.Code)
	s.Equal("/signin", body.Details["login_path"])
}

func (s *IntegrationTestSuite) TestSession_StaleSessionBumpsDirectory() {
	local, err := s.UserSvc.CreateLocal(context.Background(), "Bumped", "b@x.com", "pw-123456")
	s.Require().NoError(err)
	stale := time.Now().UTC().Add(-61 * time.Minute)
	token, _, err := s.Codec.Encode(auth.SessionClaims{
		UserID: auth.NumericID(local.ID), Name: "Bumped", Email: "b@x.com", LastSignedInAt: &stale,
	})
	s.Require().NoError(err)

	w := s.do(http.MethodGet, "/api/v1/auth/session", nil, token)
	s.Equal(http.StatusOK, w.Code)
	s.Authorizer.Drain()

	reissued := w.Header().Get(common.SessionTokenHeader)
	s.Require().NotEmpty(reissued)
	claims, err := s.Codec.Decode(reissued)
	s.Require().NoError(err)
	s.WithinDuration(time.Now(), *claims.LastSignedInAt, 5*time.Second)

	stored, err := s.UserSvc.FindByID(context.Background(), local.ID)
	s.Require().NoError(err)
	s.Require().NotNil(stored.LastSignedInAt)
	s.WithinDuration(*claims.LastSignedInAt, *stored.LastSignedInAt, time.Second)
}

func (s *IntegrationTestSuite) TestSession_OrphanedSessionForDeletedUser() {
	token, _, err := s.Codec.Encode(auth.SessionClaims{UserID: 9999, Name: "ghost"})
	s.Require().NoError(err)

	w := s.do(http.MethodGet, "/api/v1/auth/session", nil, token)

	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("UNAUTHENTICATED", s.errorCode(w))
}

func (s *IntegrationTestSuite) TestLogin_PasswordSibling() {
	_, err := s.UserSvc.CreateLocal(context.Background(), "P", "p@x.com", "correct-horse")
	s.Require().NoError(err)
	s.registerToken("T4", gatewayUser{ID: 504, Email: "ext@x.com", FirstName: "E", LastName: "X"})
	s.Equal(http.StatusCreated, s.authorize("T4").Code)

	w := s.do(http.MethodPost, "/api/v1/auth/login", gin.H{"email": "P@x.com", "password": "correct-horse"}, "")
	s.Equal(http.StatusCreated, w.Code)
	s.NotEmpty(w.Header().Get(common.SessionTokenHeader))

	w = s.do(http.MethodPost, "/api/v1/auth/login", gin.H{"email": "p@x.com", "password": "wrong"}, "")
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("INVALID_CREDENTIALS", s.errorCode(w))

	w = s.do(http.MethodPost, "/api/v1/auth/login", gin.H{"email": "ext@x.com", "password": "anything"}, "")
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("USER_MISSING_PASSWORD", s.errorCode(w))
}
