// Package main initializes and starts the vaultkeeper HTTP server, setting
// up configuration, logging, the persistence backend, services and handlers.
package main

import (
	"cmp"
	"context"
	"fmt"
	"time"

	nethttp "net/http"

	"go.uber.org/zap"

	"github.com/ayermolov/vaultkeeper/internal/config"
	"github.com/ayermolov/vaultkeeper/internal/db"
	"github.com/ayermolov/vaultkeeper/internal/logger"
	"github.com/ayermolov/vaultkeeper/internal/server/handler/http"
	"github.com/ayermolov/vaultkeeper/internal/service"
	"github.com/ayermolov/vaultkeeper/internal/storage"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	zapLogger, err := logger.New("info")
	if err != nil {
		panic(err)
	}
	defer func() { _ = zapLogger.Sync() }()

	// Select the persistence backend.
	var store storage.Store
	switch options.Backend {
	case "postgres":
		postgresDB, err := db.InitPostgres(options.DatabaseDSN)
		if err != nil {
			zapLogger.Fatal("cannot init database", zap.Error(err))
		}
		store = storage.NewPostgresStore(postgresDB)
	case "file":
		fileStore, err := storage.NewFileStore(options.DataDir)
		if err != nil {
			zapLogger.Fatal("cannot init file store", zap.Error(err))
		}
		store = fileStore
	default:
		zapLogger.Fatal("unknown backend", zap.String("backend", options.Backend))
	}

	// Initialize business-logic services.
	credentials, err := service.NewCredentialService(store)
	if err != nil {
		zapLogger.Fatal("cannot init credential service", zap.Error(err))
	}
	sessionStore := service.NewMemorySessionStore()
	sessions := service.NewSessionService(sessionStore)
	vault := service.NewVaultService(store)

	// Optionally reclaim abandoned expired sessions in the background.
	if options.SessionSweepMinutes > 0 {
		service.StartSessionSweeper(context.Background(), sessionStore,
			time.Duration(options.SessionSweepMinutes)*time.Minute, zapLogger)
	}

	// Create HTTP handlers for auth and vault endpoints.
	authHandler := &http.AuthHandler{Credentials: credentials, Sessions: sessions, Log: zapLogger}
	vaultHandler := &http.VaultHandler{Vault: vault, Log: zapLogger}

	// Build the router with middleware and routes.
	router := http.NewRouter(authHandler, vaultHandler, sessions, zapLogger)

	// Create and start the HTTP server.
	server := &nethttp.Server{
		Addr:    options.Addr,
		Handler: router,
	}

	zapLogger.Info("starting HTTP server",
		zap.String("addr", options.Addr),
		zap.String("backend", options.Backend),
	)
	if err := server.ListenAndServe(); err != nil {
		zapLogger.Fatal("failed to start HTTP server", zap.Error(err))
	}
}
