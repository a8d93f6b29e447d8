// Package fusion merges ranked result lists from independent retrieval
// backends into a single ordered list using reciprocal rank fusion.
package fusion

import "sort"

// DefaultKConstant is the standard RRF smoothing constant.
const DefaultKConstant = 60

// RankedItem is one result as returned by a retrieval backend.
type RankedItem struct {
	Key      string
	Score    float64
	Metadata map[string]string
	Snippet  string
}

// FusedItem is a deduplicated result merged across backends.
type FusedItem struct {
	RankedItem

	// Fused is the summed reciprocal-rank contribution across all lists.
	Fused float64

	// BestRank is the lowest rank the key held in any input list.
	BestRank int

	// Sources is the number of input lists the key appeared in.
	Sources int
}

// Fuse merges the input lists with reciprocal rank fusion and deduplicates
// by key. Within each list items are ranked 1..N by descending native score
// (equal scores keep their input order); each appearance contributes
// 1/(kConstant+rank) to the key's fused score.
//
// Ordering is fully deterministic and independent of the order the lists are
// passed in: items sort by fused score descending, then by lowest best rank,
// then by lexical key order. The result is truncated to topK; topK <= 0
// means no truncation.
func Fuse(lists [][]RankedItem, topK, kConstant int) []FusedItem {
	if kConstant <= 0 {
		kConstant = DefaultKConstant
	}

	merged := make(map[string]*FusedItem)

	for _, list := range lists {
		if len(list) == 0 {
			continue
		}

		ranked := make([]RankedItem, len(list))
		copy(ranked, list)
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].Score > ranked[j].Score
		})

		for idx, item := range ranked {
			rank := idx + 1
			contribution := 1.0 / float64(kConstant+rank)

			agg, ok := merged[item.Key]
			if !ok {
				agg = &FusedItem{
					RankedItem: item,
					BestRank:   rank,
				}
				merged[item.Key] = agg
			} else {
				if rank < agg.BestRank {
					agg.BestRank = rank
				}
				// Prefer the first non-empty snippet and metadata seen.
				if agg.Snippet == "" && item.Snippet != "" {
					agg.Snippet = item.Snippet
				}
				if agg.Metadata == nil && item.Metadata != nil {
					agg.Metadata = item.Metadata
				}
			}

			agg.Fused += contribution
			agg.Sources++
		}
	}

	fused := make([]FusedItem, 0, len(merged))
	for _, item := range merged {
		fused = append(fused, *item)
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Fused != fused[j].Fused {
			return fused[i].Fused > fused[j].Fused
		}
		if fused[i].BestRank != fused[j].BestRank {
			return fused[i].BestRank < fused[j].BestRank
		}
		return fused[i].Key < fused[j].Key
	})

	if topK > 0 && len(fused) > topK {
		fused = fused[:topK]
	}

	return fused
}
