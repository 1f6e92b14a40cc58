package index

import (
	"context"

	"github.com/starford/aishow/internal/models"
)

// ImageIndex defines the catalogue operations the service layer needs.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type ImageIndex interface {
	InsertImage(ctx context.Context, img models.Image, keywords []string) (int64, error)
	UpdateImage(ctx context.Context, upd ImageUpdate, keywords []string) error
	DeleteImage(ctx context.Context, id int64) error
	GetImage(ctx context.Context, id int64) (*models.Image, error)
	ImageByFilename(ctx context.Context, filename string) (*models.Image, error)
	ListImages(ctx context.Context, filter ImageFilter) ([]models.Image, error)
	AllImageFilenames(ctx context.Context) (map[string]struct{}, error)

	SetImageKeywords(ctx context.Context, imageID int64, keywords []string) error
	ImageKeywords(ctx context.Context, imageID int64) ([]string, error)

	GetOrCreateKeyword(ctx context.Context, text string) (int64, error)
	AddKeyword(ctx context.Context, text string) error
	SuggestKeywords(ctx context.Context, query string, limit int) ([]string, error)
	ListKeywords(ctx context.Context) ([]string, error)
	PruneKeywords(ctx context.Context) (int64, error)

	Close() error
}

// Verify *DB satisfies ImageIndex at compile time.
var _ ImageIndex = (*DB)(nil)
