// Package mabel talks to the Mabel identity gateway, which vouches for bearer
// tokens issued to Mabel users.
package mabel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mabel_auth_backend/internal/shared"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// CurrentUserPath is the gateway endpoint that resolves a bearer token to its user.
const CurrentUserPath = "/users/current"

// maxProfileBytes caps how much of a gateway response is read.
const maxProfileBytes = 1 << 20

// GatewayFailure is returned for every unsuccessful gateway call: transport
// errors, timeouts, non-2xx statuses and malformed payloads alike.
type GatewayFailure struct {
	StatusCode int
	Reason     string
	Err        error
}

func (e *GatewayFailure) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("mabel gateway: %s (status %d)", e.Reason, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("mabel gateway: %s: %v", e.Reason, e.Err)
	}
	return "mabel gateway: " + e.Reason
}

func (e *GatewayFailure) Unwrap() error {
	return e.Err
}

// ProfileFetcher resolves an external bearer token to a profile.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, token string) (*shared.ExternalProfile, error)
}

// currentUserResponse mirrors the gateway payload.
type currentUserResponse struct {
	ID        int64  `json:"id" validate:"gt=0"`
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

// Client is the HTTP client for the gateway.
type Client struct {
	baseURL    string
	httpClient *http.Client
	validate   *validator.Validate
	logger     *zap.Logger
}

var _ ProfileFetcher = (*Client)(nil)

// NewClient builds a gateway client for baseURL. Every call is bounded by timeout.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return NewClientWithHTTP(baseURL, &http.Client{Timeout: timeout}, logger)
}

// NewClientWithHTTP allows callers (tests mostly) to supply the base HTTP client.
func NewClientWithHTTP(baseURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		validate:   validator.New(),
		logger:     logger.Named("MabelGateway"),
	}
}

// FetchProfile makes exactly one call to the gateway. It never retries.
// Any failure is a *GatewayFailure.
func (c *Client) FetchProfile(ctx context.Context, token string) (*shared.ExternalProfile, error) {
	if strings.TrimSpace(token) == "" {
		return nil, &GatewayFailure{Reason: "empty token"}
	}

	// oauth2 attaches the bearer credential; its base transport keeps our timeout.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))
	client.Timeout = c.httpClient.Timeout

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+CurrentUserPath, nil)
	if err != nil {
		return nil, c.fail(&GatewayFailure{Reason: "could not build request", Err: err})
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, c.fail(&GatewayFailure{Reason: "request failed", Err: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxProfileBytes))
		return nil, c.fail(&GatewayFailure{StatusCode: resp.StatusCode, Reason: "unexpected status"})
	}

	var payload currentUserResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProfileBytes)).Decode(&payload); err != nil {
		return nil, c.fail(&GatewayFailure{Reason: "malformed payload", Err: err})
	}
	payload.Email = strings.ToLower(strings.TrimSpace(payload.Email))
	if err := c.validate.Struct(payload); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			err = fmt.Errorf("invalid fields: %v", fieldNames(ve))
		}
		return nil, c.fail(&GatewayFailure{Reason: "incomplete payload", Err: err})
	}

	c.logger.Debug("Gateway profile fetched",
		zap.Int64("externalID", payload.ID),
		zap.Duration("latency", time.Since(start)),
	)
	return &shared.ExternalProfile{
		ExternalID: payload.ID,
		Email:      payload.Email,
		FirstName:  strings.TrimSpace(payload.FirstName),
		LastName:   strings.TrimSpace(payload.LastName),
		Role:       payload.Role,
	}, nil
}

func (c *Client) fail(f *GatewayFailure) error {
	c.logger.Warn("Gateway call failed",
		zap.String("reason", f.Reason),
		zap.Int("status", f.StatusCode),
		zap.NamedError("cause", f.Err),
	)
	return f
}

func fieldNames(errs validator.ValidationErrors) []string {
	names := make([]string, 0, len(errs))
	for _, e := range errs {
		names = append(names, e.Field())
	}
	return names
}
