// Package imageservice coordinates storage, metadata analysis, thumbnails
// and the image index.
package imageservice

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/aishow/internal/apperr"
	"github.com/starford/aishow/internal/index"
	"github.com/starford/aishow/internal/keyword"
	"github.com/starford/aishow/internal/metadata"
	"github.com/starford/aishow/internal/models"
	"github.com/starford/aishow/internal/storage"
	"github.com/starford/aishow/internal/thumbnail"
)

// Event kinds reported through the event hook.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

const uploadTimeLayout = "20060102_150405"

// EventFunc is notified after an image is created, updated or deleted.
type EventFunc func(kind string, img models.Image)

// Options tunes a Service.
type Options struct {
	ThumbnailSize int
	TempMaxAge    time.Duration
}

// UploadInput describes a new image.
type UploadInput struct {
	Filename string
	Type     string
	Details  string
	Hidden   bool
	Keywords string // comma-separated
}

// EditInput describes changes to an existing image. A blank Keywords leaves
// the current keywords in place.
type EditInput struct {
	Type     string
	Details  string
	Hidden   bool
	Keywords string
}

// CleanupResult reports a reconciliation pass.
type CleanupResult struct {
	index.CleanupReport
	PrunedKeywords int64 `json:"pruned_keywords"`
}

// Service coordinates storage and index operations.
type Service struct {
	store    storage.Provider
	db       index.ImageIndex
	analyzer *metadata.Analyzer
	matcher  *keyword.Matcher
	logger   *slog.Logger
	opts     Options
	now      func() time.Time
	onEvent  EventFunc
}

// NewService creates a new image service.
func NewService(store storage.Provider, db index.ImageIndex, analyzer *metadata.Analyzer, logger *slog.Logger, opts Options) *Service {
	if opts.ThumbnailSize <= 0 {
		opts.ThumbnailSize = thumbnail.DefaultSize
	}
	if opts.TempMaxAge <= 0 {
		opts.TempMaxAge = 24 * time.Hour
	}
	return &Service{
		store:    store,
		db:       db,
		analyzer: analyzer,
		matcher:  keyword.NewMatcher(db),
		logger:   logger,
		opts:     opts,
		now:      time.Now,
	}
}

// OnEvent installs the change hook. It must be called before serving.
func (s *Service) OnEvent(fn EventFunc) {
	s.onEvent = fn
}

func (s *Service) emit(kind string, img models.Image) {
	if s.onEvent != nil {
		s.onEvent(kind, img)
	}
}

// Analyze stores r in a single-use temp file, classifies its embedded
// metadata and removes the temp file again.
func (s *Service) Analyze(_ context.Context, filename string, r io.Reader) (metadata.Result, error) {
	tmp := s.tempPath(filename)
	if _, err := s.store.WriteStream(tmp, r); err != nil {
		return metadata.Result{}, fmt.Errorf("imageservice: stage upload: %w", err)
	}
	defer s.removeQuietly(tmp)

	abs, err := s.store.Abs(tmp)
	if err != nil {
		return metadata.Result{}, err
	}
	return s.analyzer.AnalyzeFile(abs), nil
}

// Upload stores a new image, records it with its keywords and renders its
// thumbnail. The file is staged under a temp name until the row is committed.
func (s *Service) Upload(ctx context.Context, in UploadInput, r io.Reader) (*models.Image, error) {
	if strings.TrimSpace(in.Filename) == "" {
		return nil, fmt.Errorf("imageservice: missing filename: %w", apperr.ErrInvalidInput)
	}
	br := bufio.NewReader(r)
	head, _ := br.Peek(512)
	if _, ok := DetectImage(head); !ok {
		return nil, fmt.Errorf("imageservice: not an image (%s): %w", http.DetectContentType(head), apperr.ErrInvalidInput)
	}

	name := storage.SanitizeFilename(in.Filename)
	tmp := s.tempPath(name)
	res, err := s.store.WriteStream(tmp, br)
	if err != nil {
		return nil, fmt.Errorf("imageservice: stage upload: %w", err)
	}

	final, err := s.finalName(name)
	if err != nil {
		s.removeQuietly(tmp)
		return nil, err
	}
	id, err := s.db.InsertImage(ctx, models.Image{
		Filename:  final,
		Type:      strings.TrimSpace(in.Type),
		Details:   in.Details,
		Hidden:    in.Hidden,
		Checksum:  res.Checksum,
		CreatedAt: s.now(),
	}, keyword.ParseList(in.Keywords))
	if err != nil {
		s.removeQuietly(tmp)
		return nil, err
	}
	if err := s.store.Move(tmp, path.Join(storage.UploadsDir, final)); err != nil {
		s.removeQuietly(tmp)
		_ = s.db.DeleteImage(ctx, id)
		return nil, fmt.Errorf("imageservice: publish upload: %w", err)
	}

	s.writeThumbnail(final)

	img, err := s.db.GetImage(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("image uploaded", slog.Int64("id", id), slog.String("file", final), slog.Int64("size", res.Size))
	s.emit(EventCreated, *img)
	return img, nil
}

// GetImage returns a single image.
func (s *Service) GetImage(ctx context.Context, id int64) (*models.Image, error) {
	return s.db.GetImage(ctx, id)
}

// ListImages returns images matching filter, newest first.
func (s *Service) ListImages(ctx context.Context, filter index.ImageFilter) ([]models.Image, error) {
	return s.db.ListImages(ctx, filter)
}

// UpdateImage applies an edit.
func (s *Service) UpdateImage(ctx context.Context, id int64, in EditInput) (*models.Image, error) {
	upd := index.ImageUpdate{
		ID:      id,
		Type:    strings.TrimSpace(in.Type),
		Details: in.Details,
		Hidden:  in.Hidden,
	}
	if err := s.db.UpdateImage(ctx, upd, keyword.ParseList(in.Keywords)); err != nil {
		return nil, err
	}
	img, err := s.db.GetImage(ctx, id)
	if err != nil {
		return nil, err
	}
	s.emit(EventUpdated, *img)
	return img, nil
}

// DeleteImage removes an image's files and then its row.
func (s *Service) DeleteImage(ctx context.Context, id int64) error {
	img, err := s.db.GetImage(ctx, id)
	if err != nil {
		return err
	}
	for _, dir := range []string{storage.UploadsDir, storage.ThumbnailsDir} {
		if err := s.store.Delete(path.Join(dir, img.Filename)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("imageservice: delete file: %w", err)
		}
	}
	if err := s.db.DeleteImage(ctx, id); err != nil {
		return err
	}
	s.logger.Info("image deleted", slog.Int64("id", id), slog.String("file", img.Filename))
	s.emit(EventDeleted, *img)
	return nil
}

// SuggestKeywords returns autocomplete candidates for query.
func (s *Service) SuggestKeywords(ctx context.Context, query string) ([]string, error) {
	return s.db.SuggestKeywords(ctx, query, keyword.SuggestLimit)
}

// AddKeyword adds a keyword to the vocabulary.
func (s *Service) AddKeyword(ctx context.Context, text string) error {
	return s.db.AddKeyword(ctx, text)
}

// ListKeywords returns the whole vocabulary.
func (s *Service) ListKeywords(ctx context.Context) ([]string, error) {
	return s.db.ListKeywords(ctx)
}

// MatchKeywords returns vocabulary keywords found in prompt.
func (s *Service) MatchKeywords(ctx context.Context, prompt string) ([]string, error) {
	return s.matcher.Match(ctx, prompt)
}

// Cleanup removes orphaned files and, when pruneKeywords is set, keywords
// no image uses.
func (s *Service) Cleanup(ctx context.Context, pruneKeywords bool) (CleanupResult, error) {
	report, err := index.Cleanup(ctx, s.db, s.store, s.logger, s.opts.TempMaxAge)
	if err != nil {
		return CleanupResult{}, err
	}
	out := CleanupResult{CleanupReport: report}
	if pruneKeywords {
		n, err := s.db.PruneKeywords(ctx)
		if err != nil {
			return out, err
		}
		out.PrunedKeywords = n
		s.logger.Info("keywords pruned", slog.Int64("count", n))
	}
	return out, nil
}

func (s *Service) tempPath(name string) string {
	return path.Join(storage.UploadsDir, storage.TempPrefix+uuid.NewString()+"_"+storage.SanitizeFilename(name))
}

// finalName returns a timestamped upload name that is not taken yet.
func (s *Service) finalName(name string) (string, error) {
	final := s.now().Format(uploadTimeLayout) + "_" + name
	exists, err := s.store.Exists(path.Join(storage.UploadsDir, final))
	if err != nil {
		return "", err
	}
	if exists {
		final = s.now().Format(uploadTimeLayout) + "_" + uuid.NewString()[:8] + "_" + name
	}
	return final, nil
}

func (s *Service) writeThumbnail(filename string) {
	src := path.Join(storage.UploadsDir, filename)
	data, err := s.store.Read(src)
	if err == nil {
		data, err = thumbnail.Render(bytes.NewReader(data), filename, s.opts.ThumbnailSize)
	}
	if err == nil {
		err = s.store.Write(path.Join(storage.ThumbnailsDir, filename), data)
	}
	if err != nil {
		s.logger.Warn("thumbnail failed", slog.String("file", filename), slog.String("error", err.Error()))
	}
}

func (s *Service) removeQuietly(rel string) {
	if err := s.store.Delete(rel); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("temp file cleanup failed", slog.String("path", rel), slog.String("error", err.Error()))
	}
}

// DetectImage sniffs head and reports the canonical extension of a
// supported image format.
func DetectImage(head []byte) (string, bool) {
	switch strings.SplitN(http.DetectContentType(head), ";", 2)[0] {
	case "image/png":
		return ".png", true
	case "image/jpeg":
		return ".jpg", true
	case "image/gif":
		return ".gif", true
	case "image/webp":
		return ".webp", true
	}
	return "", false
}
