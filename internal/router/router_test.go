package router

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Ryno2390/Co-Lab/internal/model"
	"github.com/Ryno2390/Co-Lab/internal/vectorindex"
)

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2}, nil
}

func (f *fakeEmbedder) Dimension() int { return 2 }

type fakeIndex struct {
	matches []vectorindex.Match
	err     error
	filter  map[string]string
}

func (f *fakeIndex) EnsureCollection(ctx context.Context, collection string, dimension int) error {
	return nil
}

func (f *fakeIndex) Upsert(ctx context.Context, collection string, points []vectorindex.Point) error {
	return nil
}

func (f *fakeIndex) Query(ctx context.Context, collection string, vector []float32, topK int, filter map[string]string) ([]vectorindex.Match, error) {
	f.filter = filter
	if f.err != nil {
		return nil, f.err
	}
	return f.matches, nil
}

func subTasks(n int) []model.SubTask {
	tasks := make([]model.SubTask, n)
	for i := range tasks {
		tasks[i] = model.SubTask{
			ID:          fmt.Sprintf("task-%d", i),
			Instruction: fmt.Sprintf("instruction %d", i),
		}
	}
	return tasks
}

func TestRoute_FixedAboveThreshold(t *testing.T) {
	idx := &fakeIndex{matches: []vectorindex.Match{
		{Key: "SummarizationAI", Score: 0.9, Metadata: map[string]string{"tier": "simple"}},
	}}
	r := New(&fakeEmbedder{}, idx, Config{Collection: "specialists", ConfidenceThreshold: 0.75})

	decisions, err := r.Route(context.Background(), subTasks(1))
	if err != nil {
		t.Fatalf("route failed: %v", err)
	}

	d := decisions[0]
	if d.Kind != KindFixed {
		t.Fatalf("expected fixed route, got %s", d.Kind)
	}
	if d.TargetID != "SummarizationAI" {
		t.Errorf("expected target SummarizationAI, got %s", d.TargetID)
	}
	if !d.Evaluated || d.Confidence != 0.9 {
		t.Errorf("expected evaluated confidence 0.9, got %v %v", d.Evaluated, d.Confidence)
	}
	if idx.filter["status"] != "active" {
		t.Errorf("expected active-specialist filter, got %v", idx.filter)
	}
}

func TestRoute_ThresholdBoundary(t *testing.T) {
	// A similarity exactly at the threshold routes fixed; strictly below
	// routes dynamic.
	cases := []struct {
		name  string
		score float32
		want  Kind
	}{
		{"exactly at threshold", 0.75, KindFixed},
		{"just below threshold", 0.7499, KindDynamic},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			idx := &fakeIndex{matches: []vectorindex.Match{{Key: "QA", Score: tc.score}}}
			r := New(&fakeEmbedder{}, idx, Config{ConfidenceThreshold: 0.75})

			decisions, err := r.Route(context.Background(), subTasks(1))
			if err != nil {
				t.Fatalf("route failed: %v", err)
			}
			if decisions[0].Kind != tc.want {
				t.Errorf("score %v: expected %s, got %s", tc.score, tc.want, decisions[0].Kind)
			}
			if !decisions[0].Evaluated {
				t.Error("expected decision to carry an evaluated confidence")
			}
		})
	}
}

func TestRoute_EmbeddingFailureFallsBackDynamic(t *testing.T) {
	r := New(
		&fakeEmbedder{err: errors.New("embedding service down")},
		&fakeIndex{matches: []vectorindex.Match{{Key: "QA", Score: 0.99}}},
		Config{ConfidenceThreshold: 0.5},
	)

	decisions, err := r.Route(context.Background(), subTasks(1))
	if err != nil {
		t.Fatalf("route failed: %v", err)
	}

	d := decisions[0]
	if d.Kind != KindDynamic {
		t.Errorf("expected dynamic fallback, got %s", d.Kind)
	}
	if d.Evaluated {
		t.Error("expected no confidence when embedding failed")
	}
	if d.TargetID != "" {
		t.Errorf("dynamic decision must not carry a target, got %s", d.TargetID)
	}
}

func TestRoute_IndexFailureFallsBackDynamic(t *testing.T) {
	r := New(
		&fakeEmbedder{},
		&fakeIndex{err: errors.New("index unavailable")},
		Config{ConfidenceThreshold: 0.5},
	)

	decisions, err := r.Route(context.Background(), subTasks(1))
	if err != nil {
		t.Fatalf("route failed: %v", err)
	}
	if decisions[0].Kind != KindDynamic {
		t.Errorf("expected dynamic fallback, got %s", decisions[0].Kind)
	}
}

func TestRoute_NoMatchRoutesDynamic(t *testing.T) {
	r := New(&fakeEmbedder{}, &fakeIndex{}, Config{ConfidenceThreshold: 0.5})

	decisions, err := r.Route(context.Background(), subTasks(1))
	if err != nil {
		t.Fatalf("route failed: %v", err)
	}
	if decisions[0].Kind != KindDynamic || decisions[0].Evaluated {
		t.Errorf("expected unevaluated dynamic decision, got %+v", decisions[0])
	}
}

func TestRoute_OutputOrderMatchesInput(t *testing.T) {
	r := New(&fakeEmbedder{}, &fakeIndex{}, Config{ConfidenceThreshold: 0.5, Concurrency: 8})

	tasks := subTasks(16)
	decisions, err := r.Route(context.Background(), tasks)
	if err != nil {
		t.Fatalf("route failed: %v", err)
	}
	if len(decisions) != len(tasks) {
		t.Fatalf("expected %d decisions, got %d", len(tasks), len(decisions))
	}
	for i, d := range decisions {
		if d.SubTask.ID != tasks[i].ID {
			t.Errorf("position %d: expected %s, got %s", i, tasks[i].ID, d.SubTask.ID)
		}
	}
}

type fixedClassifier struct {
	category string
	err      error
}

func (f *fixedClassifier) Classify(ctx context.Context, text string) (string, error) {
	return f.category, f.err
}

func TestRoute_Classification(t *testing.T) {
	cases := []struct {
		name       string
		classifier Classifier
		want       string
	}{
		{"nil classifier", nil, CategoryOther},
		{"known category", &fixedClassifier{category: "math"}, "math"},
		{"unknown output", &fixedClassifier{category: "poetry"}, CategoryOther},
		{"classifier error", &fixedClassifier{err: errors.New("timeout")}, CategoryOther},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := New(&fakeEmbedder{}, &fakeIndex{}, Config{
				ConfidenceThreshold: 0.5,
				Classifier:          tc.classifier,
			})

			decisions, err := r.Route(context.Background(), subTasks(1))
			if err != nil {
				t.Fatalf("route failed: %v", err)
			}
			if decisions[0].Category != tc.want {
				t.Errorf("expected category %q, got %q", tc.want, decisions[0].Category)
			}
		})
	}
}
