package services

import (
	"math"
	"sort"

	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/core/ports/driven"
)

// fusedChunk holds a candidate's per-side scores before hydration.
type fusedChunk struct {
	chunkID string
	vector  float64 // clipped similarity, 0 when absent
	keyword float64 // min-max normalised, 0 when absent
	fused   float64
}

// clipSimilarity maps a raw cosine similarity onto [0,1].
// Negative similarity carries no relevance, so it clips to 0.
func clipSimilarity(s float64) float64 {
	if math.IsNaN(s) {
		return 0
	}
	return math.Max(0, math.Min(1, s))
}

// normaliseVectorHits clips each similarity. Duplicate ids keep their best score.
func normaliseVectorHits(hits []driven.VectorHit) map[string]float64 {
	out := make(map[string]float64, len(hits))
	for _, h := range hits {
		s := clipSimilarity(h.Similarity)
		if prev, ok := out[h.ChunkID]; !ok || s > prev {
			out[h.ChunkID] = s
		}
	}
	return out
}

// normaliseKeywordHits applies min-max normalisation over the returned set.
// When every score is equal each hit maps to 1.0. An empty set stays empty.
func normaliseKeywordHits(hits []driven.KeywordHit) map[string]float64 {
	if len(hits) == 0 {
		return map[string]float64{}
	}

	best := make(map[string]float64, len(hits))
	for _, h := range hits {
		if prev, ok := best[h.ChunkID]; !ok || h.Score > prev {
			best[h.ChunkID] = h.Score
		}
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range best {
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
	}

	out := make(map[string]float64, len(best))
	for id, s := range best {
		if hi == lo {
			out[id] = 1.0
			continue
		}
		out[id] = (s - lo) / (hi - lo)
	}
	return out
}

// fuseScores combines both sides over the union of their candidates.
// A chunk missing from one side scores 0 there. The result is sorted by
// fused score, then vector similarity, then chunk id.
func fuseScores(vector, keyword map[string]float64, w domain.HybridWeights) []fusedChunk {
	out := make([]fusedChunk, 0, len(vector)+len(keyword))
	seen := make(map[string]struct{}, len(vector)+len(keyword))

	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		v, k := vector[id], keyword[id]
		out = append(out, fusedChunk{
			chunkID: id,
			vector:  v,
			keyword: k,
			fused:   w.Vector*v + w.Keyword*k,
		})
	}
	for id := range vector {
		add(id)
	}
	for id := range keyword {
		add(id)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].fused != out[j].fused {
			return out[i].fused > out[j].fused
		}
		if out[i].vector != out[j].vector {
			return out[i].vector > out[j].vector
		}
		return out[i].chunkID < out[j].chunkID
	})
	return out
}
