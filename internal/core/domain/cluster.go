package domain

// DefaultClusterThreshold is the default merge similarity τ.
const DefaultClusterThreshold = 0.85

// ClusterAssignment places one chunk in one cluster.
type ClusterAssignment struct {
	ChunkID              string  `json:"chunk_id"`
	ClusterID            string  `json:"cluster_id"`
	SimilarityToCentroid float64 `json:"similarity_to_centroid"`
}

// Cluster is a wiki-page candidate.
type Cluster struct {
	ID string `json:"id"`

	// ChunkIDs are sorted ascending.
	ChunkIDs []string `json:"chunk_ids"`

	// Title is the most frequent inherited section title, if any.
	Title string `json:"title,omitempty"`

	// Pages lists distinct page numbers in ascending order.
	Pages []int `json:"pages"`
}

// ClusterResult is the clusterer's output for one corpus.
type ClusterResult struct {
	Threshold   float64             `json:"threshold"`
	Clusters    []Cluster           `json:"clusters"`
	Assignments []ClusterAssignment `json:"assignments"`

	// InsufficientContent is set when the corpus was empty.
	InsufficientContent bool `json:"insufficient_content,omitempty"`

	// Unembedded lists chunks without a vector. Each sits alone in a cluster.
	Unembedded []string `json:"unembedded,omitempty"`
}
