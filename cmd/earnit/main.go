package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/earnit-app/earnit/internal/backup"
	"github.com/earnit-app/earnit/internal/database"
	"github.com/earnit-app/earnit/internal/logging"
	"github.com/earnit-app/earnit/internal/server"
)

func main() {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := logging.Setup(os.Getenv("EARNIT_LOG_LEVEL"), os.Getenv("EARNIT_LOG_FORMAT"))

	port := os.Getenv("EARNIT_PORT")
	if port == "" {
		port = "8080"
	}
	dbPath := os.Getenv("EARNIT_DB_PATH")
	if dbPath == "" {
		dbPath = "earnit.db"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Error("failed to open database", "path", dbPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	backupCfg := backup.Config{
		Endpoint:   os.Getenv("EARNIT_S3_ENDPOINT"),
		Bucket:     os.Getenv("EARNIT_S3_BUCKET"),
		Region:     os.Getenv("EARNIT_S3_REGION"),
		AccessKey:  os.Getenv("EARNIT_S3_ACCESS_KEY"),
		SecretKey:  os.Getenv("EARNIT_S3_SECRET_KEY"),
		Passphrase: os.Getenv("EARNIT_BACKUP_PASSPHRASE"),
	}

	srv := server.New(db, backupCfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Hourly housekeeping: expired sessions and stale rate-limit entries.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(time.Now()); err != nil {
					logger.Error("session cleanup failed", "error", err)
				} else if n > 0 {
					logger.Info("pruned expired sessions", "count", n)
				}
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	if interval := os.Getenv("EARNIT_BACKUP_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			logger.Error("invalid EARNIT_BACKUP_INTERVAL", "value", interval, "error", err)
			os.Exit(1)
		}
		srv.BackupManager().Start(ctx, d)
	}

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("earnit running at http://localhost:%s\n", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
