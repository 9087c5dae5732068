package postprocessors

import (
	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/postprocessors/chunker"
	"github.com/custodia-labs/plancite/internal/postprocessors/metadata"
)

// NewDefaultPipeline builds the standard chunker then metadata pipeline
// from chunking settings. Extra chunker options (a token counter in
// tests) are applied after the settings.
func NewDefaultPipeline(settings domain.ChunkingSettings, opts ...chunker.Option) *Pipeline {
	chunkerOpts := []chunker.Option{
		chunker.WithMaxTokens(settings.MaxTokens),
		chunker.WithOverlap(settings.OverlapTokens),
	}
	chunkerOpts = append(chunkerOpts, opts...)

	return NewPipeline(
		chunker.New(chunkerOpts...),
		metadata.New(),
	)
}
