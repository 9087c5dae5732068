package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/core/ports/driven"
	"github.com/custodia-labs/plancite/internal/core/ports/driving"
	"github.com/custodia-labs/plancite/internal/logger"
)

// Ensure Clusterer implements the interface.
var _ driving.StructureService = (*Clusterer)(nil)

// Clusterer groups a corpus into wiki-page candidates by agglomerative
// centroid-cosine clustering.
type Clusterer struct {
	docStore  driven.DocumentStore
	vectors   driven.VectorStore
	threshold float64
}

// NewClusterer creates a clusterer. vectors may be nil, in which case
// every chunk is unembedded. threshold <= 0 uses the default τ.
func NewClusterer(docStore driven.DocumentStore, vectors driven.VectorStore, threshold float64) *Clusterer {
	if threshold <= 0 {
		threshold = domain.DefaultClusterThreshold
	}
	return &Clusterer{docStore: docStore, vectors: vectors, threshold: threshold}
}

// group is a cluster under construction.
type group struct {
	members []string // sorted
	sum     []float64
}

// Cluster assigns every chunk of the selected documents to a cluster.
// An empty corpus is not an error; it sets InsufficientContent.
func (c *Clusterer) Cluster(ctx context.Context, documentIDs []string, threshold float64) (*domain.ClusterResult, error) {
	logger.Section("Clustering")
	if threshold <= 0 {
		threshold = c.threshold
	}
	if threshold > 1 {
		return nil, fmt.Errorf("%w: threshold %.2f exceeds 1", domain.ErrInvalidInput, threshold)
	}

	filter := domain.MetadataFilter{DocumentIDs: documentIDs}
	chunks, err := c.docStore.ListChunks(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}

	result := &domain.ClusterResult{
		Threshold:   threshold,
		Clusters:    []domain.Cluster{},
		Assignments: []domain.ClusterAssignment{},
	}
	if len(chunks) == 0 {
		logger.Info("No chunks to cluster")
		result.InsufficientContent = true
		return result, nil
	}

	vectors := map[string][]float32{}
	if c.vectors != nil {
		vectors, err = c.vectors.Vectors(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("load vectors: %w", err)
		}
	}

	sort.Slice(chunks, func(i, j int) bool { return chunks[i].ID < chunks[j].ID })
	byID := make(map[string]*domain.Chunk, len(chunks))
	for i := range chunks {
		byID[chunks[i].ID] = &chunks[i]
	}

	var groups []*group
	dims := 0
	for _, ch := range chunks {
		v := vectors[ch.ID]
		if len(v) == 0 || (dims > 0 && len(v) != dims) {
			result.Unembedded = append(result.Unembedded, ch.ID)
			groups = append(groups, &group{members: []string{ch.ID}})
			continue
		}
		dims = len(v)
		sum := make([]float64, len(v))
		for i, x := range v {
			sum[i] = float64(x)
		}
		groups = append(groups, &group{members: []string{ch.ID}, sum: sum})
	}

	embedded := make([]*group, 0, len(groups))
	singles := make([]*group, 0, len(result.Unembedded))
	for _, g := range groups {
		if g.sum == nil {
			singles = append(singles, g)
		} else {
			embedded = append(embedded, g)
		}
	}
	logger.Debug("Clustering %d embedded chunks (%d unembedded) at τ=%.2f", len(embedded), len(singles), threshold)

	merged, err := agglomerate(ctx, embedded, threshold)
	if err != nil {
		return nil, err
	}

	all := append(merged, singles...)
	sort.Slice(all, func(i, j int) bool { return all[i].members[0] < all[j].members[0] })

	for n, g := range all {
		id := fmt.Sprintf("cluster-%03d", n+1)
		result.Clusters = append(result.Clusters, describe(id, g, byID))

		centroid := g.centroid()
		for _, m := range g.members {
			sim := 0.0
			if centroid != nil {
				sim = cosine64(toFloat64(vectors[m]), centroid)
			}
			result.Assignments = append(result.Assignments, domain.ClusterAssignment{
				ChunkID:              m,
				ClusterID:            id,
				SimilarityToCentroid: sim,
			})
		}
	}
	sort.Slice(result.Assignments, func(i, j int) bool {
		return result.Assignments[i].ChunkID < result.Assignments[j].ChunkID
	})

	logger.Info("Clustered %d chunks into %d clusters", len(chunks), len(result.Clusters))
	return result, nil
}

// agglomerate repeatedly merges the most similar pair of groups while
// their centroid similarity is at least threshold. groups must be sorted
// by smallest member id; ties go to the pair whose smallest ids sort first.
// Only each group's best later neighbour is kept, so memory stays linear.
func agglomerate(ctx context.Context, groups []*group, threshold float64) ([]*group, error) {
	n := len(groups)
	alive := make([]bool, n)
	for i := range alive {
		alive[i] = true
	}

	// next[i] is the most similar live group after i, ties to the lower
	// index, or -1 when none is left.
	next := make([]int, n)
	nextSim := make([]float64, n)
	scan := func(i int) {
		next[i], nextSim[i] = -1, math.Inf(-1)
		for j := i + 1; j < n; j++ {
			if !alive[j] {
				continue
			}
			if s := cosine64(groups[i].sum, groups[j].sum); s > nextSim[i] {
				next[i], nextSim[i] = j, s
			}
		}
	}
	for i := range n {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		scan(i)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		bi := -1
		for i := range n {
			if alive[i] && next[i] >= 0 && (bi < 0 || nextSim[i] > nextSim[bi]) {
				bi = i
			}
		}
		if bi < 0 || nextSim[bi] < threshold {
			break
		}
		bj := next[bi]

		a, b := groups[bi], groups[bj]
		a.members = mergeSorted(a.members, b.members)
		for k := range a.sum {
			a.sum[k] += b.sum[k]
		}
		alive[bj] = false

		// Rows after bj never see bi or bj.
		for r := 0; r < bj; r++ {
			switch {
			case !alive[r] || r == bi:
			case next[r] == bi || next[r] == bj:
				scan(r)
			case r < bi:
				s := cosine64(groups[r].sum, a.sum)
				if s > nextSim[r] || (s == nextSim[r] && bi < next[r]) {
					next[r], nextSim[r] = bi, s
				}
			}
		}
		scan(bi)
	}

	out := make([]*group, 0, n)
	for i, g := range groups {
		if alive[i] {
			out = append(out, g)
		}
	}
	return out, nil
}

func (g *group) centroid() []float64 {
	if g.sum == nil {
		return nil
	}
	out := make([]float64, len(g.sum))
	for i, x := range g.sum {
		out[i] = x / float64(len(g.members))
	}
	return out
}

// describe builds the cluster summary: the most frequent section title
// (ties to the alphabetically first) and the distinct pages.
func describe(id string, g *group, byID map[string]*domain.Chunk) domain.Cluster {
	counts := map[string]int{}
	pageSet := map[int]struct{}{}
	for _, m := range g.members {
		ch := byID[m]
		if t := ch.Metadata.SectionTitle; t != "" {
			counts[t]++
		}
		pageSet[ch.PageNumber] = struct{}{}
	}

	title, best := "", 0
	for t, n := range counts {
		if n > best || (n == best && t < title) {
			title, best = t, n
		}
	}

	pages := make([]int, 0, len(pageSet))
	for p := range pageSet {
		pages = append(pages, p)
	}
	sort.Ints(pages)

	return domain.Cluster{
		ID:       id,
		ChunkIDs: append([]string(nil), g.members...),
		Title:    title,
		Pages:    pages,
	}
}

func mergeSorted(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] < b[j] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func cosine64(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
