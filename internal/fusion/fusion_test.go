package fusion

import (
	"math"
	"testing"
)

func item(key string, score float64) RankedItem {
	return RankedItem{Key: key, Score: score}
}

func keys(items []FusedItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Key
	}
	return out
}

func TestFuse_Empty(t *testing.T) {
	if got := Fuse(nil, 10, 60); len(got) != 0 {
		t.Errorf("expected empty result for nil input, got %v", got)
	}

	got := Fuse([][]RankedItem{{}, {}}, 10, 60)
	if len(got) != 0 {
		t.Errorf("expected empty result for empty lists, got %v", got)
	}
}

func TestFuse_SingleList(t *testing.T) {
	list := []RankedItem{item("a", 0.9), item("b", 0.8), item("c", 0.7)}

	got := Fuse([][]RankedItem{list}, 10, 60)
	if len(got) != 3 {
		t.Fatalf("expected 3 items, got %d", len(got))
	}

	want := []string{"a", "b", "c"}
	for i, k := range want {
		if got[i].Key != k {
			t.Errorf("position %d: expected %s, got %s", i, k, got[i].Key)
		}
	}

	if expected := 1.0 / 61.0; math.Abs(got[0].Fused-expected) > 1e-12 {
		t.Errorf("expected fused score %f for rank 1, got %f", expected, got[0].Fused)
	}
}

func TestFuse_TwoBackends(t *testing.T) {
	// Worked example: scores on disjoint scales, one shared key.
	listA := []RankedItem{item("x", 0.9), item("y", 0.8), item("z", 0.7)}
	listB := []RankedItem{item("w", 20.5), item("y", 15.0), item("v", 10.1)}

	got := Fuse([][]RankedItem{listA, listB}, 5, 60)
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}

	// y appears at rank 2 in both lists: 1/62 + 1/62.
	if got[0].Key != "y" {
		t.Fatalf("expected y first, got %s (order %v)", got[0].Key, keys(got))
	}
	if expected := 2.0 / 62.0; math.Abs(got[0].Fused-expected) > 1e-12 {
		t.Errorf("expected y fused score %f, got %f", expected, got[0].Fused)
	}
	if got[0].Sources != 2 {
		t.Errorf("expected y to come from 2 sources, got %d", got[0].Sources)
	}

	// x and w are tied at 1/61, z and v at 1/63; ties break by lexical key.
	want := []string{"y", "w", "x", "v", "z"}
	for i, k := range want {
		if got[i].Key != k {
			t.Errorf("position %d: expected %s, got %s (order %v)", i, k, got[i].Key, keys(got))
		}
	}
}

func TestFuse_DeterministicUnderArgumentSwap(t *testing.T) {
	listA := []RankedItem{item("x", 0.9), item("y", 0.8), item("z", 0.7)}
	listB := []RankedItem{item("w", 20.5), item("y", 15.0), item("v", 10.1)}

	ab := Fuse([][]RankedItem{listA, listB}, 5, 60)
	ba := Fuse([][]RankedItem{listB, listA}, 5, 60)

	if len(ab) != len(ba) {
		t.Fatalf("length mismatch: %d vs %d", len(ab), len(ba))
	}
	for i := range ab {
		if ab[i].Key != ba[i].Key {
			t.Errorf("position %d: %s vs %s", i, ab[i].Key, ba[i].Key)
		}
		if math.Abs(ab[i].Fused-ba[i].Fused) > 1e-12 {
			t.Errorf("position %d: fused score %f vs %f", i, ab[i].Fused, ba[i].Fused)
		}
	}
}

func TestFuse_TopKTruncation(t *testing.T) {
	list := []RankedItem{item("a", 0.9), item("b", 0.8), item("c", 0.7)}

	got := Fuse([][]RankedItem{list}, 2, 60)
	if len(got) != 2 {
		t.Errorf("expected 2 items after truncation, got %d", len(got))
	}

	// topK larger than the distinct key count returns everything.
	got = Fuse([][]RankedItem{list}, 100, 60)
	if len(got) != 3 {
		t.Errorf("expected all 3 items, got %d", len(got))
	}
}

func TestFuse_KeepsSnippetAndMetadata(t *testing.T) {
	listA := []RankedItem{{Key: "a", Score: 0.9}}
	listB := []RankedItem{{Key: "a", Score: 5.0, Snippet: "text", Metadata: map[string]string{"title": "t"}}}

	got := Fuse([][]RankedItem{listA, listB}, 10, 60)
	if len(got) != 1 {
		t.Fatalf("expected 1 item, got %d", len(got))
	}
	if got[0].Snippet != "text" {
		t.Errorf("expected snippet to be backfilled, got %q", got[0].Snippet)
	}
	if got[0].Metadata["title"] != "t" {
		t.Errorf("expected metadata to be backfilled, got %v", got[0].Metadata)
	}
}

func TestFuse_DefaultKConstant(t *testing.T) {
	list := []RankedItem{item("a", 1.0)}

	got := Fuse([][]RankedItem{list}, 1, 0)
	if expected := 1.0 / 61.0; math.Abs(got[0].Fused-expected) > 1e-12 {
		t.Errorf("expected default k=60 contribution %f, got %f", expected, got[0].Fused)
	}
}
