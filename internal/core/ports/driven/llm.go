package driven

import "context"

// LLMService is the chat model used to write cited answers and, when
// the llm reranker is selected, to score candidates. It is optional:
// without one, retrieval still works and answers report
// domain.ErrLLMUnavailable.
type LLMService interface {
	// Chat sends the conversation and returns the assistant reply.
	// Provider failures are *domain.LLMProviderError.
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error)

	// ModelName returns the configured model.
	ModelName() string

	// Ping checks the provider is reachable without running inference.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role    string
	Content string
}

// ChatOptions tunes a single Chat call.
type ChatOptions struct {
	// MaxTokens caps the reply length. Zero uses the provider default.
	MaxTokens int

	// Temperature is passed through when positive.
	Temperature float64

	// JSON asks for a single JSON object as the reply.
	JSON bool
}
