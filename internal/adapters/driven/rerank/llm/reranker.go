// Package llm reranks results by asking a language model for relevance scores.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/core/ports/driven"
	"github.com/custodia-labs/plancite/internal/core/prompts"
	"github.com/custodia-labs/plancite/internal/textutil"
)

// Ensure Reranker implements the interfaces.
var (
	_ driven.Reranker         = (*Reranker)(nil)
	_ driven.PromptStoreAware = (*Reranker)(nil)
)

// passageRunes bounds each passage in the prompt.
const passageRunes = 600

// Reranker scores candidates with one LLM call.
type Reranker struct {
	llm         driven.LLMService
	promptStore driven.PromptStore
}

// New creates an LLM reranker.
func New(llm driven.LLMService) *Reranker {
	return &Reranker{llm: llm}
}

// SetPromptStore implements driven.PromptStoreAware.
func (r *Reranker) SetPromptStore(store driven.PromptStore) {
	r.promptStore = store
}

// Name identifies the reranker in logs.
func (r *Reranker) Name() string {
	return "llm"
}

type scoreReply struct {
	Scores []struct {
		Index int     `json:"index"`
		Score float64 `json:"score"`
	} `json:"scores"`
}

// Rerank replaces each Score with the model's relevance in [0,1].
// Passages the model skips score 0. Equal scores keep their fused order.
func (r *Reranker) Rerank(ctx context.Context, query string, results []domain.SearchResult) ([]domain.SearchResult, error) {
	if r.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}
	if len(results) == 0 {
		return results, nil
	}

	var passages strings.Builder
	for i, res := range results {
		fmt.Fprintf(&passages, "[%d] %s\n", i+1, textutil.Snippet(res.Content, passageRunes))
	}
	prompt := fmt.Sprintf(prompts.Load(r.promptStore, driven.PromptRerank), query, passages.String())

	raw, err := r.llm.Chat(ctx, []driven.ChatMessage{{Role: driven.RoleUser, Content: prompt}},
		driven.ChatOptions{MaxTokens: 32 + 16*len(results), JSON: true})
	if err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}

	var reply scoreReply
	if err := json.Unmarshal([]byte(trimFences(raw)), &reply); err != nil {
		return nil, fmt.Errorf("rerank: decode scores: %w", err)
	}
	if len(reply.Scores) == 0 {
		return nil, fmt.Errorf("rerank: model returned no scores")
	}

	scores := make([]float64, len(results))
	for _, s := range reply.Scores {
		if s.Index < 1 || s.Index > len(results) {
			continue
		}
		scores[s.Index-1] = min(max(s.Score, 0), 1)
	}

	order := make([]int, len(results))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	out := make([]domain.SearchResult, len(results))
	for i, idx := range order {
		out[i] = results[idx]
		out[i].Score = scores[idx]
	}
	return out, nil
}

func trimFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
