package search

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"

	"github.com/Ryno2390/Co-Lab/internal/fusion"
	"github.com/Ryno2390/Co-Lab/internal/vectorindex"
)

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *fakeEmbedder) Dimension() int { return len(f.vector) }

type fakeIndex struct {
	matches          []vectorindex.Match
	queryErr         error
	upserted         []vectorindex.Point
	upsertCollection string
}

func (f *fakeIndex) EnsureCollection(ctx context.Context, collection string, dimension int) error {
	return nil
}

func (f *fakeIndex) Upsert(ctx context.Context, collection string, points []vectorindex.Point) error {
	f.upsertCollection = collection
	f.upserted = append(f.upserted, points...)
	return nil
}

func (f *fakeIndex) Query(ctx context.Context, collection string, vector []float32, topK int, filter map[string]string) ([]vectorindex.Match, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.matches, nil
}

type fakeKeyword struct {
	items []fusion.RankedItem
	err   error
}

func (f *fakeKeyword) Search(ctx context.Context, query string, topK int) ([]fusion.RankedItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

func newTestService(emb *fakeEmbedder, idx *fakeIndex, kw *fakeKeyword) *Service {
	return NewService(Config{
		Embedder:   emb,
		Index:      idx,
		Keyword:    kw,
		Collection: "content",
	})
}

func TestServiceSearch_FusesBothBackends(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{0.1, 0.2}}
	idx := &fakeIndex{matches: []vectorindex.Match{
		{Key: "a", Score: 0.9},
		{Key: "b", Score: 0.8},
	}}
	kw := &fakeKeyword{items: []fusion.RankedItem{
		{Key: "b", Score: 12.0, Snippet: "about b"},
		{Key: "c", Score: 4.0},
	}}

	svc := newTestService(emb, idx, kw)
	results, err := svc.Search(context.Background(), "query", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].Key != "b" {
		t.Errorf("top result = %q, want %q (present in both backends)", results[0].Key, "b")
	}
	if results[0].Sources != 2 {
		t.Errorf("top result sources = %d, want 2", results[0].Sources)
	}
	if results[0].Snippet != "about b" {
		t.Errorf("fused result lost keyword snippet: got %q", results[0].Snippet)
	}
}

func TestServiceSearch_VectorFailureFallsBackToKeyword(t *testing.T) {
	emb := &fakeEmbedder{err: errors.New("embedder down")}
	idx := &fakeIndex{}
	kw := &fakeKeyword{items: []fusion.RankedItem{{Key: "k1", Score: 1.0}}}

	svc := newTestService(emb, idx, kw)
	results, err := svc.Search(context.Background(), "query", 10)
	if err != nil {
		t.Fatalf("Search() error = %v, want degraded success", err)
	}
	if len(results) != 1 || results[0].Key != "k1" {
		t.Fatalf("got %v, want keyword-only result k1", results)
	}
}

func TestServiceSearch_KeywordFailureFallsBackToVector(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{0.1}}
	idx := &fakeIndex{matches: []vectorindex.Match{{Key: "v1", Score: 0.5}}}
	kw := &fakeKeyword{err: errors.New("database down")}

	svc := newTestService(emb, idx, kw)
	results, err := svc.Search(context.Background(), "query", 10)
	if err != nil {
		t.Fatalf("Search() error = %v, want degraded success", err)
	}
	if len(results) != 1 || results[0].Key != "v1" {
		t.Fatalf("got %v, want vector-only result v1", results)
	}
}

func TestServiceSearch_AllBackendsFailed(t *testing.T) {
	emb := &fakeEmbedder{err: errors.New("embedder down")}
	idx := &fakeIndex{}
	kw := &fakeKeyword{err: errors.New("database down")}

	svc := newTestService(emb, idx, kw)
	if _, err := svc.Search(context.Background(), "query", 10); err == nil {
		t.Fatal("Search() error = nil, want error when every backend fails")
	}
}

func TestKeywordBackendSearch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("creating mock pool: %v", err)
	}
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"content_key", "rank", "snippet", "metadata"}).
		AddRow("cid1", float32(0.61), "first snippet", map[string]string{"filename": "a.txt"}).
		AddRow("cid2", float32(0.23), "second snippet", map[string]string{})
	mock.ExpectQuery("SELECT content_key, ts_rank").
		WithArgs("solar panels", 5).
		WillReturnRows(rows)

	backend := NewKeywordBackend(mock)
	items, err := backend.Search(context.Background(), "solar panels", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].Key != "cid1" || items[0].Snippet != "first snippet" {
		t.Errorf("unexpected first item: %+v", items[0])
	}
	if items[0].Score <= items[1].Score {
		t.Errorf("results not ordered by rank: %v then %v", items[0].Score, items[1].Score)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

type fakeStore struct {
	content map[string][]byte
	added   [][]byte
}

func (f *fakeStore) Add(ctx context.Context, content []byte) (string, error) {
	f.added = append(f.added, content)
	return "cid-added", nil
}

func (f *fakeStore) Cat(ctx context.Context, key string) ([]byte, error) {
	content, ok := f.content[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return content, nil
}

func TestIndexerAnnounce(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("creating mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("INSERT INTO content_index").
		WithArgs("cid1", "solar panel efficiency report", []byte(`{"filename":"report.txt"}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	emb := &fakeEmbedder{vector: []float32{0.1, 0.2}}
	idx := &fakeIndex{}
	store := &fakeStore{content: map[string][]byte{
		"cid1": []byte("solar panel efficiency report"),
	}}

	indexer := NewIndexer(IndexerConfig{
		Store:      store,
		Embedder:   emb,
		Index:      idx,
		DB:         mock,
		Collection: "content",
	})

	metadata := map[string]string{"filename": "report.txt"}
	if err := indexer.Announce(context.Background(), "cid1", metadata); err != nil {
		t.Fatalf("Announce() error = %v", err)
	}

	if len(idx.upserted) != 1 {
		t.Fatalf("got %d upserted points, want 1", len(idx.upserted))
	}
	if idx.upserted[0].Key != "cid1" {
		t.Errorf("upserted key = %q, want %q", idx.upserted[0].Key, "cid1")
	}
	if idx.upsertCollection != "content" {
		t.Errorf("upsert collection = %q, want %q", idx.upsertCollection, "content")
	}
	if emb.calls != 1 {
		t.Errorf("embedder called %d times, want 1", emb.calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestIndexerSkipsContentWithNoText(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("creating mock pool: %v", err)
	}
	defer mock.Close()

	emb := &fakeEmbedder{vector: []float32{0.1}}
	idx := &fakeIndex{}
	indexer := NewIndexer(IndexerConfig{
		Embedder:   emb,
		Index:      idx,
		DB:         mock,
		Collection: "content",
	})

	// Invalid UTF-8 and no description metadata: nothing to index.
	binary := []byte{0xff, 0xfe, 0x00}
	if err := indexer.IndexContent(context.Background(), "cid2", binary, nil); err != nil {
		t.Fatalf("IndexContent() error = %v", err)
	}
	if len(idx.upserted) != 0 {
		t.Errorf("binary content without description was indexed: %v", idx.upserted)
	}
	if emb.calls != 0 {
		t.Errorf("embedder called %d times, want 0", emb.calls)
	}
}

func TestIndexerBinaryContentUsesDescription(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("creating mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("INSERT INTO content_index").
		WithArgs("cid3", "a zip of climate data", []byte(`{"description":"a zip of climate data"}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	emb := &fakeEmbedder{vector: []float32{0.1}}
	idx := &fakeIndex{}
	indexer := NewIndexer(IndexerConfig{
		Embedder:   emb,
		Index:      idx,
		DB:         mock,
		Collection: "content",
	})

	binary := []byte{0xff, 0xfe, 0x00}
	metadata := map[string]string{"description": "a zip of climate data"}
	if err := indexer.IndexContent(context.Background(), "cid3", binary, metadata); err != nil {
		t.Fatalf("IndexContent() error = %v", err)
	}
	if len(idx.upserted) != 1 {
		t.Fatalf("got %d upserted points, want 1", len(idx.upserted))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
