// Package chunker groups positioned elements into token-bounded chunks
// that keep their page and bounding box.
package chunker

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/core/ports/driven"
	"github.com/custodia-labs/plancite/internal/logger"
	"github.com/custodia-labs/plancite/internal/textutil"
)

// DefaultMaxTokens is the default chunk size in tokens.
const DefaultMaxTokens = 512

// DefaultOverlap is the default token overlap between split pieces.
const DefaultOverlap = 32

var _ driven.PostProcessor = (*Processor)(nil)

// Processor merges consecutive elements on a page into chunks.
// It implements the PostProcessor interface.
type Processor struct {
	maxTokens int
	overlap   int
	count     textutil.TokenCounter
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithMaxTokens sets the chunk size in tokens.
func WithMaxTokens(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxTokens = n
		}
	}
}

// WithOverlap sets the overlap between split pieces in tokens.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// WithTokenCounter replaces the tiktoken counter.
func WithTokenCounter(c textutil.TokenCounter) Option {
	return func(p *Processor) {
		if c != nil {
			p.count = c
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		maxTokens: DefaultMaxTokens,
		overlap:   DefaultOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.count == nil {
		p.count = textutil.DefaultTokenCounter()
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.maxTokens {
		p.overlap = p.maxTokens / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process groups elements into chunks. Input chunks are ignored.
//
// Consecutive elements on one page merge while the running token count
// fits, and the chunk bbox is their exact union. A title starts a new
// chunk and is inherited as the section title by following chunks.
// Tables, images and elements with invalid geometry stand alone. An
// element larger than the window is split at text boundaries and every
// piece reuses the element's bbox.
func (p *Processor) Process(
	ctx context.Context, src *domain.SourcePDF, elements []domain.Element, _ []domain.Chunk,
) ([]domain.Chunk, error) {
	b := &builder{p: p, src: src}

	for i := range elements {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := b.add(&elements[i]); err != nil {
			return nil, err
		}
	}
	b.flush()

	logger.Debug("Chunked %d elements of %s into %d chunks", len(elements), src.DocumentID, len(b.chunks))
	return b.chunks, nil
}

type builder struct {
	p       *Processor
	src     *domain.SourcePDF
	section string

	pending []*domain.Element
	texts   []string
	tokens  int

	chunks []domain.Chunk
}

func (b *builder) add(e *domain.Element) error {
	text := strings.TrimSpace(e.Text)
	if text == "" {
		return nil
	}

	if e.Category == domain.CategoryTitle {
		b.flush()
		b.section = text
	}

	n := b.p.count(text)
	if n > b.p.maxTokens {
		b.flush()
		return b.split(e, text)
	}
	if e.InvalidBBox || e.Category == domain.CategoryTable || e.Category == domain.CategoryImage {
		b.flush()
		b.emit([]*domain.Element{e}, text, e.BBox)
		return nil
	}

	if len(b.pending) > 0 && (b.pending[0].PageNumber != e.PageNumber || b.tokens+n > b.p.maxTokens) {
		b.flush()
	}
	b.pending = append(b.pending, e)
	b.texts = append(b.texts, text)
	b.tokens += n
	return nil
}

func (b *builder) flush() {
	if len(b.pending) == 0 {
		return
	}
	boxes := make([]domain.BoundingBox, len(b.pending))
	for i, e := range b.pending {
		boxes[i] = e.BBox
	}
	box, _ := domain.UnionAll(boxes...)
	b.emit(b.pending, strings.Join(b.texts, "\n"), box)

	b.pending = nil
	b.texts = nil
	b.tokens = 0
}

func (b *builder) split(e *domain.Element, text string) error {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(b.p.maxTokens),
		textsplitter.WithChunkOverlap(b.p.overlap),
		textsplitter.WithLenFunc(b.p.count),
	)
	pieces, err := splitter.SplitText(text)
	if err != nil {
		return fmt.Errorf("split element %s: %w", e.ID, err)
	}
	logger.Debug("Split oversized element %s into %d pieces", e.ID, len(pieces))

	for _, piece := range pieces {
		if piece = strings.TrimSpace(piece); piece != "" {
			b.emit([]*domain.Element{e}, piece, e.BBox)
		}
	}
	return nil
}

func (b *builder) emit(elements []*domain.Element, content string, box domain.BoundingBox) {
	first := elements[0]
	invalid := !box.Valid()
	for _, e := range elements {
		invalid = invalid || e.InvalidBBox
	}

	filename := b.src.Filename
	if filename == "" {
		filename = b.src.DocumentID
	}

	ordinal := len(b.chunks)
	b.chunks = append(b.chunks, domain.Chunk{
		ID:         domain.ChunkID(b.src.DocumentID, ordinal),
		DocumentID: b.src.DocumentID,
		Ordinal:    ordinal,
		Content:    content,
		PageNumber: first.PageNumber,
		BBox:       box,
		Metadata: domain.ChunkMetadata{
			SchemaVersion:    domain.MetadataSchemaVersion,
			SourceFilename:   filename,
			PageNumber:       first.PageNumber,
			BBox:             box,
			ElementCategory:  first.Category,
			SectionTitle:     b.section,
			ExtractionMethod: first.Method,
			BBoxInvalid:      invalid,
		},
	})
}
