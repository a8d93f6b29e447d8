// Package search answers content queries by fanning out to a vector index
// and a keyword index in parallel and merging the two rankings with
// reciprocal rank fusion.
package search

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Ryno2390/Co-Lab/internal/embedder"
	"github.com/Ryno2390/Co-Lab/internal/fusion"
	"github.com/Ryno2390/Co-Lab/internal/vectorindex"
)

// DefaultTopK is the result count used when the caller does not ask for one.
const DefaultTopK = 10

// Keyword is the lexical retrieval backend.
type Keyword interface {
	Search(ctx context.Context, query string, topK int) ([]fusion.RankedItem, error)
}

// Config holds the search service dependencies.
type Config struct {
	Embedder   embedder.Embedder
	Index      vectorindex.Index
	Keyword    Keyword
	Collection string
	KConstant  int
	Logger     *slog.Logger
}

// Service runs hybrid search over the content collection.
type Service struct {
	embedder   embedder.Embedder
	index      vectorindex.Index
	keyword    Keyword
	collection string
	kConstant  int
	logger     *slog.Logger
}

// NewService creates a search service.
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	kConstant := cfg.KConstant
	if kConstant <= 0 {
		kConstant = fusion.DefaultKConstant
	}
	return &Service{
		embedder:   cfg.Embedder,
		index:      cfg.Index,
		keyword:    cfg.Keyword,
		collection: cfg.Collection,
		kConstant:  kConstant,
		logger:     logger,
	}
}

// Search queries both backends concurrently and fuses their rankings. One
// backend failing degrades the result to the surviving backend; both failing
// is an error.
func (s *Service) Search(ctx context.Context, query string, topK int) ([]fusion.FusedItem, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	lists := make([][]fusion.RankedItem, 2)
	errs := make([]error, 2)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		lists[0], errs[0] = s.vectorSearch(gctx, query, topK)
		return nil
	})
	g.Go(func() error {
		lists[1], errs[1] = s.keyword.Search(gctx, query, topK)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if errs[0] != nil && errs[1] != nil {
		return nil, fmt.Errorf("all search backends failed: vector: %v; keyword: %v", errs[0], errs[1])
	}
	if errs[0] != nil {
		s.logger.Warn("vector search failed, using keyword results only", "error", errs[0])
	}
	if errs[1] != nil {
		s.logger.Warn("keyword search failed, using vector results only", "error", errs[1])
	}

	return fusion.Fuse(lists, topK, s.kConstant), nil
}

func (s *Service) vectorSearch(ctx context.Context, query string, topK int) ([]fusion.RankedItem, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	matches, err := s.index.Query(ctx, s.collection, vector, topK, nil)
	if err != nil {
		return nil, fmt.Errorf("querying vector index: %w", err)
	}

	items := make([]fusion.RankedItem, 0, len(matches))
	for _, m := range matches {
		items = append(items, fusion.RankedItem{
			Key:      m.Key,
			Score:    float64(m.Score),
			Metadata: m.Metadata,
		})
	}
	return items, nil
}
