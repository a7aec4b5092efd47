package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/choreward/choreward/internal/backup"
	"github.com/choreward/choreward/internal/database"
	"github.com/choreward/choreward/internal/logging"
	"github.com/choreward/choreward/internal/server"
)

func main() {
	logger := logging.Setup(os.Getenv("CHOREWARD_LOG_LEVEL"))

	port := os.Getenv("CHOREWARD_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("CHOREWARD_DB_PATH")
	if dbPath == "" {
		dbPath = "choreward.db"
	}

	inviteSecret := os.Getenv("CHOREWARD_INVITE_SECRET")
	if inviteSecret == "" {
		logger.Error("CHOREWARD_INVITE_SECRET is required")
		os.Exit(1)
	}

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Error("open database", "path", dbPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	srv := server.New(db, inviteSecret, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Expired sessions and stale rate limiter entries get swept hourly.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					logger.Error("session cleanup", "error", err)
				} else if n > 0 {
					logger.Info("session cleanup", "deleted", n)
				}
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	if mgr := newBackupManager(ctx, db, dbPath, logger.With("component", "backup")); mgr != nil {
		mgr.Start(ctx)
		defer mgr.Stop()
	}

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("choreward listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

// newBackupManager wires the encrypted backup loop when object storage is
// configured via environment. Returns nil when the bucket or passphrase is
// unset.
func newBackupManager(ctx context.Context, db *sql.DB, dbPath string, logger *slog.Logger) *backup.Manager {
	bucket := os.Getenv("CHOREWARD_BACKUP_BUCKET")
	passphrase := os.Getenv("CHOREWARD_BACKUP_PASSPHRASE")
	if bucket == "" || passphrase == "" {
		return nil
	}

	uploader, err := backup.NewS3Uploader(ctx, backup.S3Config{
		Endpoint:  os.Getenv("CHOREWARD_BACKUP_S3_ENDPOINT"),
		Bucket:    bucket,
		Region:    os.Getenv("CHOREWARD_BACKUP_S3_REGION"),
		AccessKey: os.Getenv("CHOREWARD_BACKUP_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("CHOREWARD_BACKUP_S3_SECRET_KEY"),
	})
	if err != nil {
		logger.Error("backup disabled", "error", err)
		return nil
	}

	intervalHours, _ := strconv.Atoi(os.Getenv("CHOREWARD_BACKUP_INTERVAL_HOURS"))
	if intervalHours <= 0 {
		intervalHours = 24
	}

	cfg := backup.Config{
		DBPath:     dbPath,
		Passphrase: passphrase,
		Prefix:     "choreward",
		Interval:   time.Duration(intervalHours) * time.Hour,
	}
	return backup.NewManager(cfg, db, uploader, logger)
}
