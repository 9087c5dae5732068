package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/core/ports/driven"
	"github.com/custodia-labs/plancite/internal/core/ports/driving"
	"github.com/custodia-labs/plancite/internal/core/prompts"
	"github.com/custodia-labs/plancite/internal/logger"
	"github.com/custodia-labs/plancite/internal/textutil"
)

// Ensure AnswerService implements the interfaces.
var (
	_ driving.AnswerService   = (*AnswerService)(nil)
	_ driven.PromptStoreAware = (*AnswerService)(nil)
)

const (
	// DefaultAnswerTopK is used when the caller leaves TopK unset.
	DefaultAnswerTopK = 8

	// DefaultMaxContextTokens bounds the packed context.
	DefaultMaxContextTokens = 3000

	// fallbackConfidence is assigned to citations recovered from [n] markers.
	fallbackConfidence = 0.5

	snippetRunes = 200
)

// noContextAnswer is returned without an LLM call when retrieval finds nothing.
const noContextAnswer = "No indexed content matched the question."

var markerPattern = regexp.MustCompile(`\[(\d+)\]`)

// AnswerService generates cited answers over retrieved chunks.
type AnswerService struct {
	retriever   driving.RetrievalService
	llm         driven.LLMService
	promptStore driven.PromptStore
	count       textutil.TokenCounter
	maxContext  int
}

// AnswerOption configures an AnswerService.
type AnswerOption func(*AnswerService)

// WithAnswerTokenCounter replaces the tiktoken counter used for packing.
func WithAnswerTokenCounter(c textutil.TokenCounter) AnswerOption {
	return func(s *AnswerService) {
		if c != nil {
			s.count = c
		}
	}
}

// WithMaxContextTokens sets the default context budget.
func WithMaxContextTokens(n int) AnswerOption {
	return func(s *AnswerService) {
		if n > 0 {
			s.maxContext = n
		}
	}
}

// NewAnswerService creates an answer service. llm may be nil, in which
// case every call fails with domain.ErrLLMUnavailable.
func NewAnswerService(retriever driving.RetrievalService, llm driven.LLMService, opts ...AnswerOption) *AnswerService {
	s := &AnswerService{
		retriever:  retriever,
		llm:        llm,
		count:      textutil.DefaultTokenCounter(),
		maxContext: DefaultMaxContextTokens,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetPromptStore implements driven.PromptStoreAware.
func (s *AnswerService) SetPromptStore(store driven.PromptStore) {
	s.promptStore = store
}

// Answer retrieves context for question and asks the LLM for a cited answer.
func (s *AnswerService) Answer(ctx context.Context, question string, opts domain.AnswerOptions) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", domain.ErrInvalidInput)
	}
	if s.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}

	search := opts.Search
	if search.TopK <= 0 {
		search.TopK = DefaultAnswerTopK
	}
	resp, err := s.retriever.Retrieve(ctx, question, search)
	if err != nil {
		return nil, err
	}

	if len(resp.Results) == 0 {
		return &domain.Answer{
			Answer:    noContextAnswer,
			Citations: []domain.Citation{},
			Metadata:  domain.AnswerMetadata{SearchMethod: resp.Method},
		}, nil
	}

	budget := opts.MaxContextTokens
	if budget <= 0 {
		budget = s.maxContext
	}
	packed, contextText := s.pack(resp.Results, budget)

	messages := []driven.ChatMessage{
		{Role: driven.RoleSystem, Content: prompts.Load(s.promptStore, driven.PromptAnswerSystem)},
		{Role: driven.RoleUser, Content: fmt.Sprintf("Context:\n\n%s\nQuestion: %s", contextText, question)},
	}
	raw, err := s.llm.Chat(ctx, messages, driven.ChatOptions{MaxTokens: 1024, Temperature: 0.1, JSON: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}

	answer, citations := parseAnswer(raw, packed)
	return &domain.Answer{
		Answer:    answer,
		Citations: citations,
		Metadata: domain.AnswerMetadata{
			SearchMethod:      resp.Method,
			ResultsConsidered: len(packed),
			ResultsCited:      len(citations),
		},
	}, nil
}

// pack takes results in rank order until the token budget is spent.
// The first result is always included.
func (s *AnswerService) pack(results []domain.SearchResult, budget int) ([]domain.SearchResult, string) {
	var (
		b      strings.Builder
		used   int
		packed []domain.SearchResult
	)
	for i, r := range results {
		block := contextBlock(i+1, r)
		cost := s.count(block)
		if len(packed) > 0 && used+cost > budget {
			logger.Debug("answer: context budget %d reached after %d of %d results", budget, len(packed), len(results))
			break
		}
		used += cost
		packed = append(packed, r)
		b.WriteString(block)
	}
	return packed, b.String()
}

func contextBlock(n int, r domain.SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] chunk_id=%s source=%s page=%d", n, r.ChunkID, r.SourceFilename, r.PageNumber)
	if r.SectionTitle != "" {
		fmt.Fprintf(&b, " section=%q", r.SectionTitle)
	}
	b.WriteString("\n")
	b.WriteString(r.Content)
	b.WriteString("\n\n")
	return b.String()
}

type llmAnswer struct {
	Answer    string `json:"answer"`
	Citations []struct {
		ChunkID    json.RawMessage `json:"chunk_id"`
		Confidence float64         `json:"confidence"`
	} `json:"citations"`
}

// parseAnswer decodes the model reply. A reply that is not the expected
// JSON becomes the answer verbatim, with citations taken from [n] markers.
func parseAnswer(raw string, packed []domain.SearchResult) (string, []domain.Citation) {
	byID := make(map[string]int, len(packed))
	for i, r := range packed {
		byID[r.ChunkID] = i
	}

	var parsed llmAnswer
	if err := json.Unmarshal([]byte(stripFences(raw)), &parsed); err != nil || strings.TrimSpace(parsed.Answer) == "" {
		logger.Debug("answer: reply is not structured JSON, using citation markers")
		text := strings.TrimSpace(raw)
		var refs []citationRef
		for _, m := range markerPattern.FindAllStringSubmatch(text, -1) {
			if idx, ok := resolveRef(m[1], byID, len(packed)); ok {
				refs = append(refs, citationRef{idx, fallbackConfidence})
			}
		}
		return text, buildCitations(refs, packed)
	}

	var refs []citationRef
	for _, c := range parsed.Citations {
		idx, ok := resolveRef(rawRef(c.ChunkID), byID, len(packed))
		if !ok {
			logger.Debug("answer: dropping citation %s not present in context", string(c.ChunkID))
			continue
		}
		refs = append(refs, citationRef{idx, clamp01(c.Confidence)})
	}
	return strings.TrimSpace(parsed.Answer), buildCitations(refs, packed)
}

type citationRef struct {
	index      int
	confidence float64
}

// buildCitations dedupes refs, keeping the highest confidence and first
// mention order, and copies location from the retrieved chunk.
func buildCitations(refs []citationRef, packed []domain.SearchResult) []domain.Citation {
	out := []domain.Citation{}
	pos := make(map[int]int, len(refs))
	for _, ref := range refs {
		if at, ok := pos[ref.index]; ok {
			if ref.confidence > out[at].Confidence {
				out[at].Confidence = ref.confidence
			}
			continue
		}
		r := packed[ref.index]
		pos[ref.index] = len(out)
		out = append(out, domain.Citation{
			ChunkID:        r.ChunkID,
			Confidence:     ref.confidence,
			PageNumber:     r.PageNumber,
			BBox:           r.BBox,
			SourceFilename: r.SourceFilename,
			Snippet:        textutil.Snippet(r.Content, snippetRunes),
		})
	}
	return out
}

// resolveRef accepts a chunk id from the context or a block number such
// as "2" or "[2]".
func resolveRef(ref string, byID map[string]int, n int) (int, bool) {
	ref = strings.TrimSpace(ref)
	if idx, ok := byID[ref]; ok {
		return idx, true
	}
	num, err := strconv.Atoi(strings.Trim(ref, "[]"))
	if err != nil || num < 1 || num > n {
		return 0, false
	}
	return num - 1, true
}

// rawRef renders a chunk_id that may be a JSON string or number.
func rawRef(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return string(v)
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
