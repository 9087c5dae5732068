package driving

import (
	"context"

	"github.com/custodia-labs/plancite/internal/core/domain"
)

// AnswerService answers questions with citations.
type AnswerService interface {
	// Answer retrieves context and asks the LLM for a cited answer.
	Answer(ctx context.Context, question string, opts domain.AnswerOptions) (*domain.Answer, error)
}
