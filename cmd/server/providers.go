package main

import (
	"log"
	"time"

	"mabel_auth_backend/internal/auth"
	"mabel_auth_backend/internal/config"
	"mabel_auth_backend/internal/mabel"
	"mabel_auth_backend/internal/platform/database"
	platformRedis "mabel_auth_backend/internal/platform/redis"
	"mabel_auth_backend/internal/user"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// provideDatabase opens the database. Schema migrations are managed outside
// this service, except for the local sqlite driver which is auto-migrated.
func provideDatabase(cfg *config.Config, logger *zap.Logger) (*gorm.DB, func(), error) {
	db, err := database.NewGORM(cfg)
	if err != nil {
		return nil, nil, err
	}
	if cfg.DBDriver == config.DBDriverSQLite {
		if err := db.AutoMigrate(&user.User{}); err != nil {
			database.CloseGORMDB(db)
			return nil, nil, err
		}
	}
	cleanup := func() {
		logger.Info("Executing cleanup tasks...")
		database.CloseGORMDB(db)
		if err := logger.Sync(); err != nil {
			log.Printf("ERROR: Failed to sync logger during cleanup: %v", err)
		}
	}
	return db, cleanup, nil
}

// provideGatewayClient builds the gateway client from the auth options.
func provideGatewayClient(opts auth.Options, logger *zap.Logger) *mabel.Client {
	return mabel.NewClient(opts.ExternalGatewayURL, opts.GatewayTimeout, logger)
}

// provideBlocklist uses Redis when REDIS_ADDR is set so that sign-outs are
// shared between instances. Otherwise revocations stay in process memory.
func provideBlocklist(cfg *config.Config, logger *zap.Logger) (auth.TokenBlocklistService, func(), error) {
	if cfg.RedisAddr == "" {
		logger.Info("REDIS_ADDR not set; using in-memory session blocklist.")
		return auth.NewInMemoryBlocklistService(auth.InMemoryBlocklistConfig{
			DefaultExpiration: cfg.SessionMaxAge,
			CleanupInterval:   10 * time.Minute,
		}), func() {}, nil
	}
	client, err := platformRedis.New(cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Using Redis session blocklist", zap.String("addr", cfg.RedisAddr))
	return auth.NewRedisBlocklistService(client), func() { _ = client.Close() }, nil
}
