package backup

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/choreward/choreward/internal/database"
)

type fakeUploader struct {
	mu       sync.Mutex
	objects  map[string][]byte
	failPuts int
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{objects: make(map[string][]byte)}
}

func (f *fakeUploader) Put(ctx context.Context, key string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPuts > 0 {
		f.failPuts--
		return errors.New("transient upload failure")
	}
	f.objects[key] = append([]byte(nil), data...)
	return nil
}

func (f *fakeUploader) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

func setupManager(t *testing.T, uploader Uploader) *Manager {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	cfg := Config{Passphrase: "correct horse battery staple", Prefix: "test"}
	return NewManager(cfg, db, uploader, logger)
}

func TestBackupNow(t *testing.T) {
	uploader := newFakeUploader()
	m := setupManager(t, uploader)

	key, err := m.BackupNow(context.Background())
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	if key == "" {
		t.Fatal("empty key")
	}

	sealed, err := uploader.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get uploaded object: %v", err)
	}

	plain, err := Open(sealed, "correct horse battery staple")
	if err != nil {
		t.Fatalf("open backup: %v", err)
	}
	if !bytes.HasPrefix(plain, []byte("SQLite format 3\x00")) {
		t.Error("decrypted snapshot is not a SQLite database")
	}

	last, lastKey := m.LastBackup()
	if last.IsZero() || lastKey != key {
		t.Errorf("LastBackup = (%v, %q), want recent time and %q", last, lastKey, key)
	}
}

func TestBackupNowRetriesUpload(t *testing.T) {
	uploader := newFakeUploader()
	uploader.failPuts = 2
	m := setupManager(t, uploader)

	key, err := m.BackupNow(context.Background())
	if err != nil {
		t.Fatalf("backup should survive transient failures: %v", err)
	}
	if _, err := uploader.Get(context.Background(), key); err != nil {
		t.Errorf("object missing after retries: %v", err)
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	uploader := newFakeUploader()
	m := setupManager(t, uploader)

	key, err := m.BackupNow(context.Background())
	if err != nil {
		t.Fatalf("backup: %v", err)
	}

	path, err := m.Restore(context.Background(), key)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	t.Cleanup(func() { os.Remove(path) })

	restored, err := database.Open(path)
	if err != nil {
		t.Fatalf("open restored db: %v", err)
	}
	defer restored.Close()

	var n int
	if err := restored.QueryRow(`SELECT COUNT(*) FROM chores`).Scan(&n); err != nil {
		t.Errorf("restored db missing chores table: %v", err)
	}
}

func TestRestoreUnknownKey(t *testing.T) {
	m := setupManager(t, newFakeUploader())

	if _, err := m.Restore(context.Background(), "test/nope"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestStartStop(t *testing.T) {
	uploader := newFakeUploader()
	m := setupManager(t, uploader)
	m.cfg.Interval = 10 * time.Millisecond

	m.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	m.Stop()

	uploader.mu.Lock()
	defer uploader.mu.Unlock()
	if len(uploader.objects) == 0 {
		t.Error("periodic loop produced no backups")
	}
}
