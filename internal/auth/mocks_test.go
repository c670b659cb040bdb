package auth

import (
	"context"
	"time"

	"mabel_auth_backend/internal/shared"

	"github.com/stretchr/testify/mock"
)

// MockDirectory is a mock type for shared.Directory
type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) FindByEmail(ctx context.Context, email string) (*shared.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.User), args.Error(1)
}

func (m *MockDirectory) FindByID(ctx context.Context, id int64) (*shared.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.User), args.Error(1)
}

func (m *MockDirectory) CreateExternal(ctx context.Context, profile shared.ExternalProfile, now time.Time) (*shared.User, error) {
	args := m.Called(ctx, profile, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.User), args.Error(1)
}

func (m *MockDirectory) MarkVerifiedNow(ctx context.Context, usr *shared.User, now time.Time) (*shared.User, error) {
	args := m.Called(ctx, usr, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.User), args.Error(1)
}

func (m *MockDirectory) TouchLastSignedIn(ctx context.Context, id int64, at time.Time) {
	m.Called(ctx, id, at)
}

func (m *MockDirectory) Login(ctx context.Context, email, password string) (*shared.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.User), args.Error(1)
}

// MockProfileFetcher is a mock type for mabel.ProfileFetcher
type MockProfileFetcher struct {
	mock.Mock
}

func (m *MockProfileFetcher) FetchProfile(ctx context.Context, token string) (*shared.ExternalProfile, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.ExternalProfile), args.Error(1)
}

func timePtr(t time.Time) *time.Time {
	return &t
}
