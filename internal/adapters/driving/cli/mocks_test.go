package cli

import (
	"context"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/core/ports/driving"
)

type mockRetrieval struct {
	resp  *domain.SearchResponse
	err   error
	query string
	opts  domain.SearchOptions
}

func (m *mockRetrieval) Retrieve(_ context.Context, query string, opts domain.SearchOptions) (*domain.SearchResponse, error) {
	m.query = query
	m.opts = opts
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

type mockAnswer struct {
	answer *domain.Answer
	err    error
	opts   domain.AnswerOptions
}

func (m *mockAnswer) Answer(_ context.Context, _ string, opts domain.AnswerOptions) (*domain.Answer, error) {
	m.opts = opts
	if m.err != nil {
		return nil, m.err
	}
	return m.answer, nil
}

type mockHighlight struct {
	scale float64
	err   error
}

func (m *mockHighlight) Highlight(_ context.Context, chunkID string, scale float64) (*domain.Highlight, error) {
	m.scale = scale
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Highlight{
		ChunkID:    chunkID,
		DocumentID: "a-101",
		PageNumber: 2,
		BBox:       domain.BoundingBox{X0: 72, Y0: 700, X1: 300, Y1: 720},
		PageHeight: 792,
		Scale:      scale,
		Rect:       domain.MapToRender(domain.BoundingBox{X0: 72, Y0: 700, X1: 300, Y1: 720}, 792, scale),
	}, nil
}

type mockStructure struct {
	result    *domain.ClusterResult
	docs      []string
	threshold float64
}

func (m *mockStructure) Cluster(_ context.Context, docs []string, threshold float64) (*domain.ClusterResult, error) {
	m.docs = docs
	m.threshold = threshold
	return m.result, nil
}

// mockIndexing records calls. It is safe for the watcher goroutines.
type mockIndexing struct {
	mu      sync.Mutex
	docs    []domain.Document
	indexed []domain.SourcePDF
	deleted []string
	opts    driving.IndexOptions
	runIDs  []string
	status  domain.IndexStatus
}

func (m *mockIndexing) IndexDocument(
	_ context.Context, runID string, pdf domain.SourcePDF, opts driving.IndexOptions,
) (*domain.IndexResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexed = append(m.indexed, pdf)
	m.runIDs = append(m.runIDs, runID)
	m.opts = opts
	return &domain.IndexResult{RunID: runID, DocumentID: pdf.DocumentID, Status: m.statusOr()}, nil
}

func (m *mockIndexing) IndexBatch(
	ctx context.Context, runID string, pdfs []domain.SourcePDF, opts driving.IndexOptions,
) []domain.IndexResult {
	out := make([]domain.IndexResult, len(pdfs))
	for i, pdf := range pdfs {
		res, _ := m.IndexDocument(ctx, runID, pdf, opts)
		out[i] = *res
		out[i].Pages, out[i].Chunks = 1, 3
	}
	return out
}

func (m *mockIndexing) DeleteDocument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockIndexing) ListDocuments(_ context.Context) ([]domain.Document, error) {
	return m.docs, nil
}

func (m *mockIndexing) statusOr() domain.IndexStatus {
	if m.status != "" {
		return m.status
	}
	return domain.IndexSucceeded
}

func (m *mockIndexing) indexedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, len(m.indexed))
	for i, p := range m.indexed {
		ids[i] = p.DocumentID
	}
	return ids
}

func (m *mockIndexing) deletedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

// testServices are the mocks installed by setupTestServices.
type testServices struct {
	retrieval *mockRetrieval
	answer    *mockAnswer
	highlight *mockHighlight
	structure *mockStructure
	indexing  *mockIndexing
}

func sampleResults() []domain.SearchResult {
	return []domain.SearchResult{
		{
			ChunkID:        "a-101#0001",
			DocumentID:     "a-101",
			Content:        "Hardware set 4: surface closer, lever trim.",
			Score:          0.91,
			SourceFilename: "A-101.pdf",
			PageNumber:     3,
			BBox:           domain.BoundingBox{X0: 72, Y0: 600, X1: 540, Y1: 640},
			SectionTitle:   "DOOR HARDWARE",
		},
	}
}

// setupTestServices installs mock services and returns a cleanup func
// that restores the previous state and resets every flag.
func setupTestServices() func() {
	s := newTestServices()
	return s.install()
}

func newTestServices() *testServices {
	return &testServices{
		retrieval: &mockRetrieval{resp: &domain.SearchResponse{Results: sampleResults(), Method: domain.SearchMethodHybrid}},
		answer: &mockAnswer{answer: &domain.Answer{
			Answer: "Stair doors use hardware set 4 [1].",
			Citations: []domain.Citation{{
				ChunkID: "a-101#0001", Confidence: 0.8, PageNumber: 3,
				BBox: domain.BoundingBox{X0: 72, Y0: 600, X1: 540, Y1: 640}, SourceFilename: "A-101.pdf",
			}},
			Metadata: domain.AnswerMetadata{SearchMethod: domain.SearchMethodHybrid, ResultsConsidered: 1, ResultsCited: 1},
		}},
		highlight: &mockHighlight{},
		structure: &mockStructure{result: &domain.ClusterResult{
			Threshold: 0.85,
			Clusters: []domain.Cluster{
				{ID: "c1", ChunkIDs: []string{"a-101#0001", "a-101#0002"}, Title: "DOOR HARDWARE", Pages: []int{3, 4}},
				{ID: "c2", ChunkIDs: []string{"a-101#0003"}, Pages: []int{7}},
			},
		}},
		indexing: &mockIndexing{},
	}
}

func (s *testServices) install() func() {
	old := []any{indexingService, retrievalService, answerService, highlightService, structureService}
	indexingService = s.indexing
	retrievalService = s.retrieval
	answerService = s.answer
	highlightService = s.highlight
	structureService = s.structure

	return func() {
		indexingService, _ = old[0].(driving.IndexingService)
		retrievalService, _ = old[1].(driving.RetrievalService)
		answerService, _ = old[2].(driving.AnswerService)
		highlightService, _ = old[3].(driving.HighlightService)
		structureService, _ = old[4].(driving.StructureService)
		resetFlags(rootCmd)
		rootCmd.SetArgs(nil)
	}
}

// resetFlags restores defaults on cmd and its children, since flag
// variables are package globals shared by every Execute.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
