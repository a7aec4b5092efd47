package backup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

// Config holds backup manager settings. Interval of zero disables the
// periodic loop; BackupNow still works.
type Config struct {
	DBPath     string
	Passphrase string
	Prefix     string
	Interval   time.Duration
}

// Manager takes consistent SQLite snapshots, seals them, and ships them to an
// Uploader.
type Manager struct {
	cfg      Config
	db       *sql.DB
	uploader Uploader
	logger   *slog.Logger

	mu         sync.Mutex
	lastBackup time.Time
	lastKey    string

	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(cfg Config, db *sql.DB, uploader Uploader, logger *slog.Logger) *Manager {
	return &Manager{cfg: cfg, db: db, uploader: uploader, logger: logger}
}

// Start launches the periodic backup loop. No-op when the interval is zero.
func (m *Manager) Start(ctx context.Context) {
	if m.cfg.Interval <= 0 {
		return
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.BackupNow(ctx); err != nil {
					m.logger.Error("scheduled backup failed", "error", err)
				}
			}
		}
	}()
}

// Stop halts the periodic loop and waits for an in-flight run to finish.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.done != nil {
		<-m.done
	}
}

// LastBackup reports the time and object key of the most recent successful
// backup. Zero values mean none has completed yet.
func (m *Manager) LastBackup() (time.Time, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastBackup, m.lastKey
}

// BackupNow snapshots the database, encrypts the copy, and uploads it.
// Returns the object key. Transient upload failures are retried with backoff.
func (m *Manager) BackupNow(ctx context.Context) (string, error) {
	snapshot, err := m.snapshot(ctx)
	if err != nil {
		return "", err
	}

	sealed, err := Seal(snapshot, m.cfg.Passphrase)
	if err != nil {
		return "", fmt.Errorf("seal snapshot: %w", err)
	}

	key := fmt.Sprintf("%s/backup-%s.db.enc", m.cfg.Prefix, time.Now().UTC().Format("2006-01-02T150405Z"))

	backoff := retry.WithMaxRetries(4, retry.NewExponential(time.Second))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := m.uploader.Put(ctx, key, sealed); err != nil {
			m.logger.Warn("backup upload failed, retrying", "key", key, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("upload backup: %w", err)
	}

	m.mu.Lock()
	m.lastBackup = time.Now().UTC()
	m.lastKey = key
	m.mu.Unlock()

	m.logger.Info("backup complete", "key", key, "bytes", len(sealed))
	return key, nil
}

// Restore fetches a sealed snapshot, decrypts it, and verifies SQLite
// integrity. The verified database file path is returned; swapping it in for
// the live file is the operator's call.
func (m *Manager) Restore(ctx context.Context, key string) (string, error) {
	sealed, err := m.uploader.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("download backup: %w", err)
	}

	plain, err := Open(sealed, m.cfg.Passphrase)
	if err != nil {
		return "", fmt.Errorf("open backup: %w", err)
	}

	restored := filepath.Join(os.TempDir(), fmt.Sprintf("choreward-restore-%d.db", time.Now().UnixNano()))
	if err := os.WriteFile(restored, plain, 0600); err != nil {
		return "", fmt.Errorf("write restored db: %w", err)
	}

	if err := checkIntegrity(restored); err != nil {
		os.Remove(restored)
		return "", err
	}
	return restored, nil
}

// snapshot produces a consistent point-in-time copy of the live database via
// VACUUM INTO, which works under WAL without blocking writers.
func (m *Manager) snapshot(ctx context.Context) ([]byte, error) {
	tmp := filepath.Join(os.TempDir(), fmt.Sprintf("choreward-backup-%d.db", time.Now().UnixNano()))
	defer os.Remove(tmp)

	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, tmp); err != nil {
		return nil, fmt.Errorf("vacuum into: %w", err)
	}

	data, err := os.ReadFile(tmp)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}

func checkIntegrity(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow(`PRAGMA integrity_check`).Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}
