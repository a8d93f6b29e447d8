// Package router matches sub-tasks to registered specialist sub-AIs by
// embedding similarity, falling back to a generic dynamic instance when no
// confident match exists.
package router

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Ryno2390/Co-Lab/internal/embedder"
	"github.com/Ryno2390/Co-Lab/internal/model"
	"github.com/Ryno2390/Co-Lab/internal/vectorindex"
)

// Kind is the closed set of routing targets.
type Kind int

const (
	// KindDynamic routes to the generic fallback executor.
	KindDynamic Kind = iota

	// KindFixed routes to a specific registered specialist.
	KindFixed
)

// String returns the kind's wire name.
func (k Kind) String() string {
	if k == KindFixed {
		return "fixed_specialist"
	}
	return "dynamic_instance"
}

// Decision is the routing outcome for one sub-task. TargetID is set if and
// only if Kind is KindFixed. Confidence is valid only when Evaluated is true,
// i.e. a candidate specialist was actually scored.
type Decision struct {
	SubTask    model.SubTask
	Kind       Kind
	TargetID   string
	Metadata   map[string]string
	Confidence float64
	Evaluated  bool
	Category   string
}

// Classifier assigns a coarse category to an instruction. Implementations
// are best-effort; the router never fails a sub-task on classification.
type Classifier interface {
	Classify(ctx context.Context, text string) (string, error)
}

// CategoryOther is the fallback category when classification fails or is
// ambiguous.
const CategoryOther = "other"

// DefaultConcurrency bounds parallel per-task embedding work.
const DefaultConcurrency = 4

// Config holds the router's construction parameters.
type Config struct {
	// Collection is the vector index collection holding specialist
	// registrations.
	Collection string

	// ConfidenceThreshold is the minimum similarity for a fixed route.
	// A score exactly equal to the threshold routes fixed.
	ConfidenceThreshold float64

	// Concurrency bounds parallel per-task work (default 4).
	Concurrency int

	// Classifier is optional; nil disables categorization.
	Classifier Classifier

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Router routes sub-tasks to specialists via the vector index.
type Router struct {
	embedder    embedder.Embedder
	index       vectorindex.Index
	classifier  Classifier
	collection  string
	threshold   float64
	concurrency int
	logger      *slog.Logger
}

// New creates a Router with explicit collaborator handles.
func New(embed embedder.Embedder, index vectorindex.Index, cfg Config) *Router {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Router{
		embedder:    embed,
		index:       index,
		classifier:  cfg.Classifier,
		collection:  cfg.Collection,
		threshold:   cfg.ConfidenceThreshold,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Route produces one Decision per sub-task, in input order. Per-task work
// runs concurrently; embedding or index failures degrade that task to a
// dynamic route instead of failing the batch. The only batch-level error is
// context cancellation.
func (r *Router) Route(ctx context.Context, subTasks []model.SubTask) ([]Decision, error) {
	decisions := make([]Decision, len(subTasks))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, r.concurrency)

	for i, task := range subTasks {
		wg.Add(1)
		go func(idx int, t model.SubTask) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-ctx.Done():
				decisions[idx] = Decision{SubTask: t, Kind: KindDynamic, Category: CategoryOther}
				return
			}

			decisions[idx] = r.routeOne(ctx, t)
		}(i, task)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return decisions, nil
}

// routeOne decides a single sub-task. The default is a dynamic route; a
// fixed route requires an embedding, an active specialist match, and a
// similarity at or above the threshold.
func (r *Router) routeOne(ctx context.Context, task model.SubTask) Decision {
	decision := Decision{
		SubTask:  task,
		Kind:     KindDynamic,
		Category: r.classify(ctx, task.Instruction),
	}

	vector, err := r.embedder.Embed(ctx, task.Instruction)
	if err != nil {
		r.logger.Warn("embedding failed, routing dynamic",
			"sub_task_id", task.ID,
			"error", err,
		)
		return decision
	}

	matches, err := r.index.Query(ctx, r.collection, vector, 1, map[string]string{"status": "active"})
	if err != nil {
		r.logger.Warn("specialist index query failed, routing dynamic",
			"sub_task_id", task.ID,
			"error", err,
		)
		return decision
	}
	if len(matches) == 0 {
		return decision
	}

	best := matches[0]
	decision.Confidence = float64(best.Score)
	decision.Evaluated = true

	if decision.Confidence >= r.threshold {
		decision.Kind = KindFixed
		decision.TargetID = best.Key
		decision.Metadata = best.Metadata
	} else {
		r.logger.Debug("best match below confidence threshold",
			"sub_task_id", task.ID,
			"specialist", best.Key,
			"score", decision.Confidence,
			"threshold", r.threshold,
		)
	}

	return decision
}

// classify is best-effort and never blocks the routing decision on failure.
func (r *Router) classify(ctx context.Context, instruction string) string {
	if r.classifier == nil {
		return CategoryOther
	}

	category, err := r.classifier.Classify(ctx, instruction)
	if err != nil {
		return CategoryOther
	}

	switch category {
	case "math", "code", "reasoning":
		return category
	default:
		return CategoryOther
	}
}
