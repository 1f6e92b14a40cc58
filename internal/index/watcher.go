package index

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/aishow/internal/apperr"
	"github.com/starford/aishow/internal/models"
	"github.com/starford/aishow/internal/storage"
)

const reconcileDelay = 200 * time.Millisecond

// EventCallback is called after a watcher-driven index change.
// kind is currently always "deleted".
type EventCallback func(kind string, img models.Image)

// Watch starts an fsnotify watcher on the uploads directory and drops image
// rows whose file was removed outside the application, until ctx is
// cancelled. It calls cb (if non-nil) after each removal.
//
// Rename events trigger a debounced reconciliation pass that removes every
// row whose upload no longer exists on disk.
func Watch(ctx context.Context, db ImageIndex, store storage.Provider, logger *slog.Logger, cb EventCallback) error {
	dir, err := store.Abs(storage.UploadsDir)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("dir", dir))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcileMissing(ctx, db, store, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(ev.Name)
			if storage.IsInFlight(name) || storage.IsPlaceholder(name) {
				continue
			}

			switch {
			case ev.Op&fsnotify.Remove != 0:
				dropImage(ctx, db, store, name, logger, cb)

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify reports only the old name; the reconcile pass
				// catches anything else that went missing meanwhile.
				dropImage(ctx, db, store, name, logger, cb)
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// dropImage removes the row and thumbnail of the image stored as filename.
func dropImage(ctx context.Context, db ImageIndex, store storage.Provider, filename string, logger *slog.Logger, cb EventCallback) {
	img, err := db.ImageByFilename(ctx, filename)
	if errors.Is(err, apperr.ErrNotFound) {
		return
	}
	if err != nil {
		logger.Warn("watcher: lookup failed", slog.String("file", filename), slog.String("error", err.Error()))
		return
	}
	if err := db.DeleteImage(ctx, img.ID); err != nil {
		logger.Warn("watcher: delete failed", slog.String("file", filename), slog.String("error", err.Error()))
		return
	}
	_ = store.Delete(path.Join(storage.ThumbnailsDir, filename))
	logger.Debug("watcher: removed image", slog.Int64("id", img.ID), slog.String("file", filename))
	if cb != nil {
		cb("deleted", *img)
	}
}

// reconcileMissing removes every image row whose upload file is gone.
func reconcileMissing(ctx context.Context, db ImageIndex, store storage.Provider, logger *slog.Logger, cb EventCallback) {
	images, err := db.ListImages(ctx, ImageFilter{Visibility: ShowAll})
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}
	for _, img := range images {
		ok, err := store.Exists(path.Join(storage.UploadsDir, img.Filename))
		if err != nil || ok {
			continue
		}
		dropImage(ctx, db, store, img.Filename, logger, cb)
	}
}
