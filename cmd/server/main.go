// File: cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log" // Standard log for critical startup/shutdown messages before/after zap is active
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"mabel_auth_backend/internal/config"
	"mabel_auth_backend/internal/platform/logger"
	"mabel_auth_backend/internal/user"

	"go.uber.org/zap"
)

func main() {
	createUserCmd := flag.NewFlagSet("create-user", flag.ExitOnError)
	name := createUserCmd.String("name", "", "Display name of the new user")
	email := createUserCmd.String("email", "", "Email address of the new user (required)")
	password := createUserCmd.String("password", "", "Password of the new user (required)")

	if len(os.Args) > 1 && os.Args[1] == "create-user" {
		_ = createUserCmd.Parse(os.Args[2:])
		if *email == "" || *password == "" {
			createUserCmd.Usage()
			os.Exit(2)
		}
		if err := runCreateUser(*name, *email, *password); err != nil {
			log.Fatalf("FATAL: create-user failed: %v", err)
		}
		return
	}

	// Default: Start server
	startServer()
}

func startServer() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	server, cleanup, err := initializeServer(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize server: %v", err)
	}
	defer cleanup()

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: Server failed to start or crashed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("INFO: Received signal '%s'. Shutting down server...", sig)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ServerTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: Server forced to shutdown due to error: %v", err)
	} else {
		log.Println("INFO: Server shutdown complete.")
	}
	log.Println("INFO: Application exiting.")
}

// runCreateUser provisions a LOCAL password account from the command line.
func runCreateUser(name, email, password string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	appLogger, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	db, cleanup, err := provideDatabase(cfg, appLogger)
	if err != nil {
		return err
	}
	defer cleanup()

	svc := user.NewService(user.NewGORMRepository(db), appLogger)
	created, err := svc.CreateLocal(context.Background(), name, email, password)
	if err != nil {
		return err
	}
	appLogger.Info("User created", zap.Int64("userID", created.ID), zap.String("email", created.Email))
	return nil
}
