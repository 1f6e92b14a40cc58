package index

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/aishow/internal/apperr"
	"github.com/starford/aishow/internal/models"
)

// Visibility selects images by their hidden flag.
type Visibility string

const (
	HideRestricted Visibility = "hide_restricted"
	OnlyRestricted Visibility = "only_restricted"
	ShowAll        Visibility = "show_all"
)

// ParseVisibility validates a visibility mode. Blank input means
// HideRestricted.
func ParseVisibility(s string) (Visibility, error) {
	switch v := Visibility(strings.TrimSpace(s)); v {
	case "":
		return HideRestricted, nil
	case HideRestricted, OnlyRestricted, ShowAll:
		return v, nil
	default:
		return "", fmt.Errorf("index: unknown visibility %q: %w", s, apperr.ErrInvalidInput)
	}
}

// ImageFilter narrows ListImages. Images linked to ANY of Keywords match;
// visibility, type and keyword conditions must all hold.
type ImageFilter struct {
	Visibility Visibility
	Type       string
	Keywords   []string
	Limit      int
	Offset     int
}

type imageQueryBuilder struct {
	filter ImageFilter
	query  string
	args   []any
	where  []string
}

func buildImageQuery(filter ImageFilter) (string, []any) {
	b := &imageQueryBuilder{filter: filter}
	b.query = "SELECT " + imageColumns + " FROM images"
	b.buildWhere()
	b.query += " ORDER BY created_at DESC, id DESC"
	b.buildPagination()
	return b.query, b.args
}

func (b *imageQueryBuilder) buildWhere() {
	b.appendVisibility()
	b.appendType()
	b.appendKeywords()

	if len(b.where) == 0 {
		return
	}
	b.query += " WHERE " + strings.Join(b.where, " AND ")
}

func (b *imageQueryBuilder) appendVisibility() {
	switch b.filter.Visibility {
	case "", HideRestricted:
		b.where = append(b.where, "is_hidden = 0")
	case OnlyRestricted:
		b.where = append(b.where, "is_hidden = 1")
	}
}

func (b *imageQueryBuilder) appendType() {
	if b.filter.Type == "" {
		return
	}
	b.where = append(b.where, "type = ?")
	b.args = append(b.args, b.filter.Type)
}

func (b *imageQueryBuilder) appendKeywords() {
	if len(b.filter.Keywords) == 0 {
		return
	}
	exists := make([]string, len(b.filter.Keywords))
	for i, kw := range b.filter.Keywords {
		exists[i] = `EXISTS (SELECT 1 FROM image_keywords ik JOIN keywords k ON k.id = ik.keyword_id
			WHERE ik.image_id = images.id AND k.keyword = ?)`
		b.args = append(b.args, kw)
	}
	b.where = append(b.where, "("+strings.Join(exists, " OR ")+")")
}

func (b *imageQueryBuilder) buildPagination() {
	hasLimit := false
	if b.filter.Limit > 0 {
		b.query += " LIMIT ?"
		b.args = append(b.args, b.filter.Limit)
		hasLimit = true
	}
	if b.filter.Offset > 0 {
		if !hasLimit {
			b.query += " LIMIT -1"
		}
		b.query += " OFFSET ?"
		b.args = append(b.args, b.filter.Offset)
	}
}

// ListImages returns the images matching filter, newest first, with their
// keywords attached.
func (db *DB) ListImages(ctx context.Context, filter ImageFilter) ([]models.Image, error) {
	query, args := buildImageQuery(filter)
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: list images: %w", err)
	}
	defer rows.Close()

	out := []models.Image{}
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("index: scan image: %w", err)
		}
		out = append(out, img)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	ids := make([]int64, len(out))
	for i, img := range out {
		ids[i] = img.ID
	}
	kws, err := db.KeywordsForImages(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if k, ok := kws[out[i].ID]; ok {
			out[i].Keywords = k
		}
	}
	return out, nil
}
