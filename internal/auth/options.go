package auth

import (
	"strings"
	"time"

	"mabel_auth_backend/internal/config"
	"mabel_auth_backend/internal/platform/crypto"

	"go.uber.org/zap"
)

// DefaultLoginRedirectPath is where unauthenticated clients are sent.
const DefaultLoginRedirectPath = "/signin"

// Options is the explicit configuration every auth component is built from.
type Options struct {
	ExternalGatewayURL string
	GatewayTimeout     time.Duration
	SigningSecret      string
	RefreshThreshold   time.Duration
	SessionMaxAge      time.Duration
	LoginRedirectPath  string
}

// NewOptions derives Options from the loaded configuration. Outside
// development a missing signing secret is an error. In development a random
// per-process secret is generated, so sessions do not survive restarts.
func NewOptions(cfg *config.Config, logger *zap.Logger) (Options, error) {
	opts := Options{
		ExternalGatewayURL: cfg.MabelGatewayURL,
		GatewayTimeout:     cfg.MabelGatewayTimeout,
		SigningSecret:      cfg.SessionSigningSecret,
		RefreshThreshold:   cfg.SessionRefreshThreshold,
		SessionMaxAge:      cfg.SessionMaxAge,
		LoginRedirectPath:  cfg.LoginRedirectPath,
	}
	if opts.RefreshThreshold <= 0 {
		opts.RefreshThreshold = DefaultRefreshThreshold
	}
	if opts.LoginRedirectPath == "" {
		opts.LoginRedirectPath = DefaultLoginRedirectPath
	}
	if opts.SessionMaxAge <= 0 {
		opts.SessionMaxAge = DefaultSessionMaxAge
	}

	if strings.TrimSpace(opts.SigningSecret) == "" {
		if !cfg.IsDevelopment() {
			return Options{}, config.ErrMissingSigningSecret
		}
		secret, err := crypto.GenerateSigningSecret(crypto.MinSecretBytes)
		if err != nil {
			return Options{}, err
		}
		opts.SigningSecret = secret
		logger.Warn("SESSION_SIGNING_SECRET is not set; using a random per-process secret. Sessions will not survive a restart.")
	}
	return opts, nil
}
