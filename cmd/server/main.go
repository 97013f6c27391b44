// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/claimdesk-backend/internal/cache"
	"github.com/javajoker/claimdesk-backend/internal/config"
	"github.com/javajoker/claimdesk-backend/internal/database"
	"github.com/javajoker/claimdesk-backend/internal/logger"
	"github.com/javajoker/claimdesk-backend/internal/router"
	"github.com/javajoker/claimdesk-backend/internal/services"
	"github.com/javajoker/claimdesk-backend/internal/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log, "claimdesk-api", cfg.Environment)
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize database
	db, err := database.Initialize(cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}
	defer database.Close(db, log)

	// Run database migrations
	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db, log); err != nil {
			log.WithError(err).Fatal("Failed to run migrations")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	store, err := cache.NewStore(ctx, cfg.Cache, cfg.Redis)
	cancel()
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize cache")
	}
	log.WithField("driver", cfg.Cache.Driver).Info("Cache ready")

	objects, err := services.NewStorageService(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize document storage")
	}

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	r := router.Initialize(router.Dependencies{
		DB:       db,
		Config:   cfg,
		Cache:    store,
		Objects:  objects,
		Notifier: services.NewNotificationService(cfg, log),
		Log:      log,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Create a deadline for shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	log.Info("Server exited")
}
