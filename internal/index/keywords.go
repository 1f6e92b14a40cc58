package index

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/aishow/internal/apperr"
)

// execQuerier is satisfied by both *sql.DB and *sql.Tx.
type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// GetOrCreateKeyword returns the id of the keyword with exactly this text,
// inserting it first when missing. A concurrent insert of the same text
// resolves to the surviving row.
func (db *DB) GetOrCreateKeyword(ctx context.Context, text string) (int64, error) {
	return getOrCreateKeyword(ctx, db.conn, text)
}

func getOrCreateKeyword(ctx context.Context, q execQuerier, text string) (int64, error) {
	if _, err := q.ExecContext(ctx,
		`INSERT INTO keywords (keyword) VALUES (?) ON CONFLICT(keyword) DO NOTHING`, text); err != nil {
		return 0, fmt.Errorf("index: insert keyword: %w", err)
	}
	var id int64
	if err := q.QueryRowContext(ctx, `SELECT id FROM keywords WHERE keyword = ?`, text).Scan(&id); err != nil {
		return 0, fmt.Errorf("index: lookup keyword: %w", err)
	}
	return id, nil
}

// AddKeyword adds text to the vocabulary. Adding an existing keyword succeeds.
func (db *DB) AddKeyword(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("index: add keyword: %w", apperr.ErrInvalidInput)
	}
	_, err := db.GetOrCreateKeyword(ctx, text)
	return err
}

// SuggestKeywords returns up to limit keywords containing query, compared
// case-insensitively, in lexicographic order.
func (db *DB) SuggestKeywords(ctx context.Context, query string, limit int) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return []string{}, nil
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT keyword FROM keywords
		WHERE keyword LIKE '%' || ? || '%' ESCAPE '\'
		ORDER BY keyword
		LIMIT ?`, likeEscaper.Replace(query), limit)
	if err != nil {
		return nil, fmt.Errorf("index: suggest keywords: %w", err)
	}
	return scanStrings(rows)
}

// ListKeywords returns the whole vocabulary in insertion order.
func (db *DB) ListKeywords(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT keyword FROM keywords ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("index: list keywords: %w", err)
	}
	return scanStrings(rows)
}

// PruneKeywords deletes keywords no image links to and reports how many were
// removed. Nothing calls it implicitly.
func (db *DB) PruneKeywords(ctx context.Context) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `
		DELETE FROM keywords
		WHERE id NOT IN (SELECT DISTINCT keyword_id FROM image_keywords)`)
	if err != nil {
		return 0, fmt.Errorf("index: prune keywords: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
