package index

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/aishow/internal/apperr"
	"github.com/starford/aishow/internal/models"
	"github.com/starford/aishow/internal/storage"
)

// libraryTestEnv sets up a library dir, storage, and DB.
func libraryTestEnv(t *testing.T) (string, *storage.FS, *DB) {
	t.Helper()
	libDir := t.TempDir()
	store, err := storage.NewFS(libDir)
	if err != nil {
		t.Fatal(err)
	}
	return libDir, store, testDB(t)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func seedUpload(t *testing.T, libDir string, db *DB, name string) int64 {
	t.Helper()
	for _, sub := range []string{storage.UploadsDir, storage.ThumbnailsDir} {
		if err := os.WriteFile(filepath.Join(libDir, sub, name), []byte("img"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return insertImage(t, db, models.Image{Filename: name}, "cat")
}

func gone(db *DB, id int64) bool {
	_, err := db.GetImage(context.Background(), id)
	return errors.Is(err, apperr.ErrNotFound)
}

func TestWatcher_DeleteRemovesImage(t *testing.T) {
	libDir, store, db := libraryTestEnv(t)
	id := seedUpload(t, libDir, db, "del.png")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string
	go Watch(ctx, db, store, quietLogger(), func(kind string, img models.Image) {
		mu.Lock()
		events = append(events, kind+":"+img.Filename)
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(libDir, storage.UploadsDir, "del.png"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool { return gone(db, id) },
		"deleted upload still indexed")
	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		_, err := os.Stat(filepath.Join(libDir, storage.ThumbnailsDir, "del.png"))
		return os.IsNotExist(err)
	}, "thumbnail not removed")
	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 1 && events[0] == "deleted:del.png"
	}, "expected deleted:del.png callback")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	libDir, store, db := libraryTestEnv(t)
	id := seedUpload(t, libDir, db, "old.png")
	keep := seedUpload(t, libDir, db, "keep.png")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(filepath.Join(libDir, storage.UploadsDir, "old.png"), filepath.Join(libDir, "moved-away.png"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool { return gone(db, id) },
		"renamed upload still indexed")
	if gone(db, keep) {
		t.Error("untouched image removed")
	}
}

func TestWatcher_IgnoresTempFiles(t *testing.T) {
	libDir, store, db := libraryTestEnv(t)
	id := seedUpload(t, libDir, db, "temp_abc_x.png")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(libDir, storage.UploadsDir, "temp_abc_x.png"))
	time.Sleep(300 * time.Millisecond)
	if gone(db, id) {
		t.Error("temp file removal should be ignored")
	}
}
