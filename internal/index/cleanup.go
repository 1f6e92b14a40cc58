package index

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/starford/aishow/internal/storage"
)

// CleanupReport summarises a reconciliation pass.
type CleanupReport struct {
	Removed      int    `json:"removed"`
	RemovedBytes int64  `json:"removed_bytes"`
	RemovedSize  string `json:"removed_size"`
	Skipped      int    `json:"skipped"`
}

// Cleanup compares the uploads and thumbnails directories against the image
// rows and deletes files no row references. Files that are still being
// written are skipped until they are older than maxAge; placeholder files are
// always kept.
func Cleanup(ctx context.Context, db ImageIndex, store storage.Provider, logger *slog.Logger, maxAge time.Duration) (CleanupReport, error) {
	var report CleanupReport

	known, err := db.AllImageFilenames(ctx)
	if err != nil {
		return report, err
	}

	now := time.Now()
	for _, dir := range []string{storage.UploadsDir, storage.ThumbnailsDir} {
		files, err := store.List(dir)
		if err != nil {
			return report, fmt.Errorf("index: cleanup: %w", err)
		}
		for _, f := range files {
			if storage.IsPlaceholder(f.Name) {
				continue
			}
			if _, ok := known[f.Name]; ok {
				continue
			}
			if storage.IsInFlight(f.Name) && now.Sub(f.ModTime) < maxAge {
				report.Skipped++
				continue
			}
			rel := path.Join(dir, f.Name)
			if err := store.Delete(rel); err != nil {
				logger.Warn("cleanup: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
				continue
			}
			logger.Debug("cleanup: removed orphan", slog.String("path", rel))
			report.Removed++
			report.RemovedBytes += f.Size
		}
	}

	report.RemovedSize = humanize.Bytes(uint64(report.RemovedBytes))
	logger.Info("cleanup: done",
		slog.Int("removed", report.Removed),
		slog.String("size", report.RemovedSize),
		slog.Int("skipped", report.Skipped))
	return report, nil
}
