package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Ryno2390/Co-Lab/internal/embedder"
	"github.com/Ryno2390/Co-Lab/internal/vectorindex"
)

// StatusActive marks a specialist as routable. The router filters on it.
const StatusActive = "active"

// SpecialistRegistry maintains the specialist registrations the router
// matches sub-tasks against. A registration embeds the specialist's
// capability description.
type SpecialistRegistry struct {
	embedder   embedder.Embedder
	index      vectorindex.Index
	collection string
	logger     *slog.Logger
}

// NewSpecialistRegistry creates a registry over the given collection.
func NewSpecialistRegistry(emb embedder.Embedder, index vectorindex.Index, collection string, logger *slog.Logger) *SpecialistRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &SpecialistRegistry{
		embedder:   emb,
		index:      index,
		collection: collection,
		logger:     logger,
	}
}

// Register upserts a specialist registration keyed by specialist id.
// Re-registering replaces the previous description and metadata.
func (r *SpecialistRegistry) Register(ctx context.Context, specialistID, description string, metadata map[string]string) error {
	if specialistID == "" {
		return errors.New("missing specialist id")
	}
	if description == "" {
		return errors.New("missing specialist description")
	}

	vector, err := r.embedder.Embed(ctx, description)
	if err != nil {
		return fmt.Errorf("embedding specialist description: %w", err)
	}

	payload := map[string]string{
		"specialist_id": specialistID,
		"description":   description,
		"status":        StatusActive,
	}
	for k, v := range metadata {
		payload[k] = v
	}

	point := vectorindex.Point{Key: specialistID, Vector: vector, Payload: payload}
	if err := r.index.Upsert(ctx, r.collection, []vectorindex.Point{point}); err != nil {
		return fmt.Errorf("registering specialist %s: %w", specialistID, err)
	}

	r.logger.Info("specialist registered", "specialist_id", specialistID)
	return nil
}
