package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/starford/aishow/internal/apperr"
	"github.com/starford/aishow/internal/models"
)

// DefaultImageType is stored when an image is created without a type.
const DefaultImageType = "SD"

const imageColumns = "id, filename, type, details, is_hidden, checksum, created_at"

// ImageUpdate carries the user-editable attributes of an image.
type ImageUpdate struct {
	ID      int64
	Type    string
	Details string
	Hidden  bool
}

// InsertImage stores a new image row together with its keyword links in one
// transaction and returns the new id. A zero CreatedAt is set to now.
func (db *DB) InsertImage(ctx context.Context, img models.Image, keywords []string) (int64, error) {
	if img.Filename == "" {
		return 0, fmt.Errorf("index: insert image: empty filename: %w", apperr.ErrInvalidInput)
	}
	if img.Type == "" {
		img.Type = DefaultImageType
	}
	if img.CreatedAt.IsZero() {
		img.CreatedAt = db.now()
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	res, err := tx.ExecContext(ctx, `
		INSERT INTO images (filename, type, details, is_hidden, checksum, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		img.Filename, img.Type, img.Details, img.Hidden, img.Checksum, formatTime(img.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("index: insert image %s: %w", img.Filename, apperr.ErrConflict)
		}
		return 0, fmt.Errorf("index: insert image: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("index: insert image id: %w", err)
	}
	if err := replaceLinks(ctx, tx, id, keywords); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("index: commit: %w", err)
	}
	return id, nil
}

// UpdateImage overwrites the editable attributes of an image. When keywords
// is non-empty the link set is replaced in the same transaction; an empty
// list leaves existing links untouched.
func (db *DB) UpdateImage(ctx context.Context, upd ImageUpdate, keywords []string) error {
	if upd.Type == "" {
		upd.Type = DefaultImageType
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE images SET type = ?, details = ?, is_hidden = ? WHERE id = ?`,
		upd.Type, upd.Details, upd.Hidden, upd.ID)
	if err != nil {
		return fmt.Errorf("index: update image: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("index: update image %d: %w", upd.ID, apperr.ErrNotFound)
	}
	if len(keywords) > 0 {
		if err := replaceLinks(ctx, tx, upd.ID, keywords); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteImage removes an image row. Its links go with it via ON DELETE CASCADE.
func (db *DB) DeleteImage(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM images WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("index: delete image: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("index: delete image %d: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// GetImage returns one image with its keywords.
func (db *DB) GetImage(ctx context.Context, id int64) (*models.Image, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+imageColumns+` FROM images WHERE id = ?`, id)
	return db.loadImage(ctx, row, fmt.Sprintf("%d", id))
}

// ImageByFilename returns the image stored under filename.
func (db *DB) ImageByFilename(ctx context.Context, filename string) (*models.Image, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+imageColumns+` FROM images WHERE filename = ?`, filename)
	return db.loadImage(ctx, row, filename)
}

func (db *DB) loadImage(ctx context.Context, row *sql.Row, ref string) (*models.Image, error) {
	img, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: image %s: %w", ref, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get image: %w", err)
	}
	img.Keywords, err = db.ImageKeywords(ctx, img.ID)
	if err != nil {
		return nil, err
	}
	return &img, nil
}

// SetImageKeywords replaces the full link set of an image with keywords,
// creating vocabulary entries as needed. Duplicate tokens collapse to one
// link. An empty list is a no-op.
func (db *DB) SetImageKeywords(ctx context.Context, imageID int64, keywords []string) error {
	if len(keywords) == 0 {
		return nil
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM images WHERE id = ?`, imageID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("index: set keywords for image %d: %w", imageID, apperr.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("index: check image: %w", err)
	}
	if err := replaceLinks(ctx, tx, imageID, keywords); err != nil {
		return err
	}
	return tx.Commit()
}

// replaceLinks deletes every link of imageID and inserts one per keyword.
func replaceLinks(ctx context.Context, tx *sql.Tx, imageID int64, keywords []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM image_keywords WHERE image_id = ?`, imageID); err != nil {
		return fmt.Errorf("index: clear links: %w", err)
	}
	if len(keywords) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO image_keywords (image_id, keyword_id) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare link insert: %w", err)
	}
	defer stmt.Close()
	for _, kw := range keywords {
		kid, err := getOrCreateKeyword(ctx, tx, kw)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, imageID, kid); err != nil {
			return fmt.Errorf("index: insert link: %w", err)
		}
	}
	return nil
}

// ImageKeywords returns the keywords linked to an image in link order.
func (db *DB) ImageKeywords(ctx context.Context, imageID int64) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT k.keyword FROM image_keywords ik
		JOIN keywords k ON k.id = ik.keyword_id
		WHERE ik.image_id = ?
		ORDER BY ik.rowid`, imageID)
	if err != nil {
		return nil, fmt.Errorf("index: image keywords: %w", err)
	}
	return scanStrings(rows)
}

// KeywordsForImages batch-loads keywords for many images.
func (db *DB) KeywordsForImages(ctx context.Context, ids []int64) (map[int64][]string, error) {
	out := make(map[int64][]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT ik.image_id, k.keyword FROM image_keywords ik
		JOIN keywords k ON k.id = ik.keyword_id
		WHERE ik.image_id IN (`+placeholders(len(ids))+`)
		ORDER BY ik.rowid`, args...)
	if err != nil {
		return nil, fmt.Errorf("index: keywords for images: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var kw string
		if err := rows.Scan(&id, &kw); err != nil {
			return nil, err
		}
		out[id] = append(out[id], kw)
	}
	return out, rows.Err()
}

// AllImageFilenames returns the stored filename of every image.
func (db *DB) AllImageFilenames(ctx context.Context) (map[string]struct{}, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT filename FROM images`)
	if err != nil {
		return nil, fmt.Errorf("index: all filenames: %w", err)
	}
	names, err := scanStrings(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImage(s rowScanner) (models.Image, error) {
	var img models.Image
	var created time.Time
	if err := s.Scan(&img.ID, &img.Filename, &img.Type, &img.Details, &img.Hidden, &img.Checksum, &created); err != nil {
		return models.Image{}, err
	}
	img.CreatedAt = created.UTC()
	img.Keywords = []string{}
	return img, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}
