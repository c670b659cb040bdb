// File: cmd/server/wire.go
//go:build wireinject
// +build wireinject

package main

import (
	"mabel_auth_backend/internal/app"
	"mabel_auth_backend/internal/auth"
	"mabel_auth_backend/internal/config"
	"mabel_auth_backend/internal/jobs"
	"mabel_auth_backend/internal/mabel"
	"mabel_auth_backend/internal/platform/logger"
	"mabel_auth_backend/internal/shared"
	"mabel_auth_backend/internal/user"

	"github.com/google/wire"
)

// initializeServer is the main Wire injector.
func initializeServer(cfg *config.Config) (*app.Server, func(), error) {
	wire.Build(
		// Platform Layer
		logger.New,
		provideDatabase,
		provideBlocklist,

		// User Directory
		user.NewGORMRepository,
		user.NewService,
		wire.Bind(new(shared.Directory), new(*user.ServiceImplementation)),
		wire.Bind(new(jobs.VerificationStamper), new(*user.ServiceImplementation)),

		// External identity gateway
		provideGatewayClient,
		wire.Bind(new(mabel.ProfileFetcher), new(*mabel.Client)),

		// Sessions
		auth.NewOptions,
		auth.NewCodec,
		auth.NewReconciler,
		auth.NewRefreshPolicy,
		auth.NewAuthorizer,
		auth.NewSessionTransport,
		auth.NewHandler,

		jobs.NewVerificationSweepJob,

		// Application Layer
		app.NewServer,
	)
	return nil, nil, nil
}
