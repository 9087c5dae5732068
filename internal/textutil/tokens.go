package textutil

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/custodia-labs/plancite/internal/logger"
)

// DefaultEncoding is the tiktoken encoding used for chunk sizing and
// prompt budgets.
const DefaultEncoding = "cl100k_base"

// TokenCounter returns the number of tokens in text.
type TokenCounter func(text string) int

var (
	defaultOnce    sync.Once
	defaultCounter TokenCounter
)

// DefaultTokenCounter returns a cl100k_base counter. The encoding is
// loaded once; when it cannot be loaded (no network on first use) the
// counter falls back to EstimateTokens.
func DefaultTokenCounter() TokenCounter {
	defaultOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(DefaultEncoding)
		if err != nil {
			logger.Warn("tiktoken %s unavailable, estimating token counts: %v", DefaultEncoding, err)
			defaultCounter = EstimateTokens
			return
		}
		var mu sync.Mutex
		defaultCounter = func(text string) int {
			mu.Lock()
			defer mu.Unlock()
			return len(enc.Encode(text, nil, nil))
		}
	})
	return defaultCounter
}

// EstimateTokens approximates cl100k_base at four bytes of English per
// token, never fewer than the word count.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	est := (utf8.RuneCountInString(text) + 3) / 4
	return max(est, len(Tokenize(text)))
}
