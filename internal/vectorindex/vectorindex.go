// Package vectorindex provides interfaces and implementations for vector similarity search.
package vectorindex

import "context"

// Point is one entry to store in a collection, keyed by a caller-chosen string.
type Point struct {
	Key     string
	Vector  []float32
	Payload map[string]string
}

// Match is a single similarity search hit.
type Match struct {
	Key      string
	Score    float32
	Metadata map[string]string
}

// Index defines the interface for vector index operations. Collections keep
// specialist registrations and indexed content separate.
type Index interface {
	// EnsureCollection creates the collection if it does not exist.
	EnsureCollection(ctx context.Context, collection string, dimension int) error

	// Upsert inserts or updates points in a collection.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Query returns the topK nearest points, restricted to points whose
	// payload matches every key/value pair in filter. A nil filter matches
	// everything. An empty result is not an error.
	Query(ctx context.Context, collection string, vector []float32, topK int, filter map[string]string) ([]Match, error)
}
