package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"mabel_auth_backend/internal/common"
	"mabel_auth_backend/internal/shared"

	"go.uber.org/zap"
)

// DefaultRefreshThreshold bounds how often a session bumps LastSignedInAt.
const DefaultRefreshThreshold = time.Hour

// SessionState is the freshness state of a decoded session.
type SessionState string

const (
	StateFresh                SessionState = "FRESH"
	StateNeedsIdentityRefresh SessionState = "NEEDS_IDENTITY_REFRESH"
	StateNeedsTimestampBump   SessionState = "NEEDS_TIMESTAMP_BUMP"
	StateOrphaned             SessionState = "ORPHANED"
)

// Evaluate is the transition function of the refresh policy. It is pure.
func Evaluate(claims SessionClaims, now time.Time, threshold time.Duration) SessionState {
	if claims.Email == "" {
		return StateOrphaned
	}
	if claims.LastSignedInAt == nil || now.Sub(*claims.LastSignedInAt) > threshold {
		return StateNeedsTimestampBump
	}
	return StateFresh
}

// RefreshOutcome is the result of applying the policy to one request.
type RefreshOutcome struct {
	Claims SessionClaims
	// States lists every state the session passed through, in order.
	States  []SessionState
	Reissue bool
}

// Final returns the state the session settled in.
func (o *RefreshOutcome) Final() SessionState {
	return o.States[len(o.States)-1]
}

// RefreshPolicy applies Evaluate and performs the side effects of each state.
type RefreshPolicy struct {
	directory shared.Directory
	threshold time.Duration
	logger    *zap.Logger

	// bumps tracks in-flight timestamp writes. Once draining is set no new
	// bump is dispatched.
	mu       sync.Mutex
	draining bool
	bumps    sync.WaitGroup
}

func NewRefreshPolicy(directory shared.Directory, opts Options, logger *zap.Logger) *RefreshPolicy {
	threshold := opts.RefreshThreshold
	if threshold <= 0 {
		threshold = DefaultRefreshThreshold
	}
	return &RefreshPolicy{
		directory: directory,
		threshold: threshold,
		logger:    logger.Named("RefreshPolicy"),
	}
}

// Apply runs one pass of the state machine. An orphaned session whose user is
// gone yields common.ErrUnauthenticated.
func (p *RefreshPolicy) Apply(ctx context.Context, claims SessionClaims, now time.Time) (*RefreshOutcome, error) {
	now = now.UTC()
	out := &RefreshOutcome{Claims: claims}

	state := Evaluate(claims, now, p.threshold)
	out.States = append(out.States, state)

	switch state {
	case StateOrphaned:
		usr, err := p.directory.FindByID(ctx, int64(claims.UserID))
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				p.logger.Info("Orphaned session references a missing user", zap.Int64("userID", int64(claims.UserID)))
				return nil, common.ErrUnauthenticated.WithDetails("Session user no longer exists.")
			}
			return nil, common.ErrInternalServer
		}
		// Rebuilt claims count as fresh for the rest of this pass.
		out.Claims = ClaimsFromUser(usr)
		out.States = append(out.States, StateNeedsIdentityRefresh, StateFresh)
		out.Reissue = true

	case StateNeedsTimestampBump:
		out.Claims.LastSignedInAt = &now
		out.Reissue = true
		p.bump(ctx, int64(claims.UserID), now)
	}
	return out, nil
}

func (p *RefreshPolicy) bump(ctx context.Context, userID int64, at time.Time) {
	p.mu.Lock()
	if p.draining {
		p.mu.Unlock()
		p.logger.Debug("Skipping timestamp bump during shutdown", zap.Int64("userID", userID))
		return
	}
	p.bumps.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.bumps.Done()
		// Detached so the write outlives the request; the directory bounds it.
		p.directory.TouchLastSignedIn(context.WithoutCancel(ctx), userID, at)
	}()
}

// Drain stops new bumps and blocks until every dispatched one has finished.
func (p *RefreshPolicy) Drain() {
	p.mu.Lock()
	p.draining = true
	p.mu.Unlock()
	p.bumps.Wait()
}
