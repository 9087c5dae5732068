// Package lexical reranks results by query-term coverage and proximity.
package lexical

import (
	"context"
	"sort"

	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/core/ports/driven"
	"github.com/custodia-labs/plancite/internal/textutil"
)

// Ensure Reranker implements the interface.
var _ driven.Reranker = (*Reranker)(nil)

// Signal weights. The fused score keeps a share so semantic matches
// without literal overlap are not buried.
const (
	coverageWeight  = 0.45
	proximityWeight = 0.15
	fusedWeight     = 0.40
)

// Reranker is a deterministic, dependency-free reranker.
type Reranker struct{}

// New creates a lexical reranker.
func New() *Reranker {
	return &Reranker{}
}

// Name identifies the reranker in logs.
func (r *Reranker) Name() string {
	return "lexical"
}

// Rerank scores each result and sorts by the new score. Equal scores
// keep their fused order.
func (r *Reranker) Rerank(ctx context.Context, query string, results []domain.SearchResult) ([]domain.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := textutil.UniqueTerms(query)
	out := make([]domain.SearchResult, len(results))
	copy(out, results)
	if len(terms) == 0 {
		return out, nil
	}

	for i := range out {
		tokens := textutil.Tokenize(out[i].Content + " " + out[i].SectionTitle)
		out[i].Score = coverageWeight*Coverage(terms, tokens) +
			proximityWeight*Proximity(terms, tokens) +
			fusedWeight*out[i].Score
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	return out, nil
}

// Coverage is the fraction of distinct query terms present in tokens.
func Coverage(terms, tokens []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	present := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		present[t] = struct{}{}
	}
	hit := 0
	for _, t := range terms {
		if _, ok := present[t]; ok {
			hit++
		}
	}
	return float64(hit) / float64(len(terms))
}

// Proximity rewards the smallest token window that holds every query term
// found in tokens. It is 1 when those terms are adjacent and 0 when fewer
// than two terms match.
func Proximity(terms, tokens []string) float64 {
	want := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		want[t] = struct{}{}
	}
	found := map[string]struct{}{}
	for _, t := range tokens {
		if _, ok := want[t]; ok {
			found[t] = struct{}{}
		}
	}
	k := len(found)
	if k < 2 {
		return 0
	}

	// Sliding window over tokens for the shortest span covering all k terms.
	counts := map[string]int{}
	have, best, left := 0, len(tokens)+1, 0
	for right, t := range tokens {
		if _, ok := found[t]; !ok {
			continue
		}
		if counts[t] == 0 {
			have++
		}
		counts[t]++
		for have == k {
			if span := right - left + 1; span < best {
				best = span
			}
			lt := tokens[left]
			if _, ok := found[lt]; ok {
				counts[lt]--
				if counts[lt] == 0 {
					have--
				}
			}
			left++
		}
	}
	return float64(k) / float64(best)
}
