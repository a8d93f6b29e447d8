package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Ryno2390/Co-Lab/internal/embedder"
	"github.com/Ryno2390/Co-Lab/internal/ipfs"
	"github.com/Ryno2390/Co-Lab/internal/vectorindex"
)

// maxEmbedBytes caps how much of a document is embedded. Embedding models
// truncate long inputs anyway; this keeps request bodies bounded.
const maxEmbedBytes = 8192

// indexExecer is the subset of pgxpool.Pool the indexer needs.
type indexExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// IndexerConfig holds the content indexer dependencies.
type IndexerConfig struct {
	Store      ipfs.Store
	Embedder   embedder.Embedder
	Index      vectorindex.Index
	DB         indexExecer
	Collection string
	Logger     *slog.Logger
}

// Indexer makes newly stored content searchable: it fetches the bytes from
// the content store, indexes the text for keyword search, and upserts an
// embedding into the vector index.
type Indexer struct {
	store      ipfs.Store
	embedder   embedder.Embedder
	index      vectorindex.Index
	db         indexExecer
	collection string
	logger     *slog.Logger
}

// NewIndexer creates a content indexer.
func NewIndexer(cfg IndexerConfig) *Indexer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		store:      cfg.Store,
		embedder:   cfg.Embedder,
		index:      cfg.Index,
		db:         cfg.DB,
		collection: cfg.Collection,
		logger:     logger,
	}
}

const upsertContentSQL = `
INSERT INTO content_index (content_key, content, metadata)
VALUES ($1, $2, $3)
ON CONFLICT (content_key) DO UPDATE
SET content = EXCLUDED.content, metadata = EXCLUDED.metadata, indexed_at = now()`

// Announce fetches the content for key from the store and indexes it.
func (ix *Indexer) Announce(ctx context.Context, key string, metadata map[string]string) error {
	content, err := ix.store.Cat(ctx, key)
	if err != nil {
		return fmt.Errorf("fetching content %s: %w", key, err)
	}
	return ix.IndexContent(ctx, key, content, metadata)
}

// IndexContent indexes already-fetched content bytes under key. Binary
// content falls back to its metadata description as the indexable text;
// content with no usable text at all is skipped.
func (ix *Indexer) IndexContent(ctx context.Context, key string, content []byte, metadata map[string]string) error {
	text := extractText(content, metadata)
	if text == "" {
		ix.logger.Warn("skipping content with no indexable text", "content_key", key)
		return nil
	}
	if metadata == nil {
		metadata = map[string]string{}
	}

	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata for %s: %w", key, err)
	}
	if _, err := ix.db.Exec(ctx, upsertContentSQL, key, text, metaJSON); err != nil {
		return fmt.Errorf("indexing content %s for keyword search: %w", key, err)
	}

	embedText := text
	if len(embedText) > maxEmbedBytes {
		embedText = truncateUTF8(embedText, maxEmbedBytes)
	}
	vector, err := ix.embedder.Embed(ctx, embedText)
	if err != nil {
		return fmt.Errorf("embedding content %s: %w", key, err)
	}

	point := vectorindex.Point{Key: key, Vector: vector, Payload: metadata}
	if err := ix.index.Upsert(ctx, ix.collection, []vectorindex.Point{point}); err != nil {
		return fmt.Errorf("upserting content %s into vector index: %w", key, err)
	}

	ix.logger.Info("content indexed", "content_key", key, "bytes", len(content))
	return nil
}

// extractText returns the indexable text for a piece of content. Valid UTF-8
// is indexed as-is; anything else falls back to the metadata description.
func extractText(content []byte, metadata map[string]string) string {
	if len(content) > 0 && utf8.Valid(content) {
		return string(content)
	}
	return metadata["description"]
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
