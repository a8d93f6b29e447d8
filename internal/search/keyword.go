package search

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Ryno2390/Co-Lab/internal/fusion"
)

// keywordQuerier is the subset of pgxpool.Pool the keyword backend needs.
type keywordQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// KeywordBackend ranks indexed content with PostgreSQL full-text search.
type KeywordBackend struct {
	db keywordQuerier
}

// NewKeywordBackend creates a keyword backend over the given pool.
func NewKeywordBackend(db keywordQuerier) *KeywordBackend {
	return &KeywordBackend{db: db}
}

const keywordSearchSQL = `
SELECT content_key, ts_rank(tsv, q) AS rank, LEFT(content, 240) AS snippet, metadata
FROM content_index, plainto_tsquery('english', $1) AS q
WHERE tsv @@ q
ORDER BY rank DESC
LIMIT $2`

// Search returns the topK best matches for the query, ranked by ts_rank.
// No matches is an empty list, not an error.
func (b *KeywordBackend) Search(ctx context.Context, query string, topK int) ([]fusion.RankedItem, error) {
	rows, err := b.db.Query(ctx, keywordSearchSQL, query, topK)
	if err != nil {
		return nil, fmt.Errorf("keyword search query: %w", err)
	}
	defer rows.Close()

	var items []fusion.RankedItem
	for rows.Next() {
		var item fusion.RankedItem
		var rank float32
		if err := rows.Scan(&item.Key, &rank, &item.Snippet, &item.Metadata); err != nil {
			return nil, fmt.Errorf("scanning keyword result: %w", err)
		}
		item.Score = float64(rank)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading keyword results: %w", err)
	}

	return items, nil
}
