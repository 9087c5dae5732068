// Package native extracts positioned text from a PDF's text layer.
package native

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/plancite/internal/core/domain"
	"github.com/custodia-labs/plancite/internal/core/ports/driven"
	"github.com/custodia-labs/plancite/internal/logger"
)

var _ driven.PageExtractor = (*NativeTextExtractor)(nil)

// Layout thresholds, as fractions of the font size.
const (
	lineTolerance  = 0.5
	wordGap        = 0.2
	blockGap       = 0.6
	descent        = 0.2
	ascent         = 0.8
	titleSizeRatio = 1.25
	titleMaxLines  = 2

	readerCacheSize = 8
)

// NativeTextExtractor groups text-layer glyphs into line blocks. PDF
// user space is already bottom-left points, so boxes need no mapping.
type NativeTextExtractor struct {
	readers *lru.Cache[readerKey, *document]
}

type readerKey struct {
	id    string
	first *byte
	size  int
}

// document serialises access to one parsed reader.
type document struct {
	mu     sync.Mutex
	reader *pdf.Reader
}

// New creates a native extractor.
func New() *NativeTextExtractor {
	cache, err := lru.New[readerKey, *document](readerCacheSize)
	if err != nil {
		panic(err)
	}
	return &NativeTextExtractor{readers: cache}
}

// Method implements driven.PageExtractor.
func (e *NativeTextExtractor) Method() domain.ExtractionMethod {
	return domain.MethodNative
}

// ExtractPage implements driven.PageExtractor. A page without a text
// layer returns no elements.
func (e *NativeTextExtractor) ExtractPage(ctx context.Context, src *domain.SourcePDF, page int) (elements []domain.Element, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := e.open(src)
	if err != nil {
		return nil, err
	}

	doc.mu.Lock()
	defer doc.mu.Unlock()

	if page < 1 || page > doc.reader.NumPage() {
		return nil, fmt.Errorf("%w: page %d outside 1..%d", domain.ErrInvalidInput, page, doc.reader.NumPage())
	}
	p := doc.reader.Page(page)
	if p.V.IsNull() {
		return nil, fmt.Errorf("native: page %d has no page object", page)
	}

	// The content parser panics on malformed operators.
	defer func() {
		if r := recover(); r != nil {
			elements, err = nil, fmt.Errorf("native: page %d content: %v", page, r)
		}
	}()

	glyphs := p.Content().Text
	if len(glyphs) == 0 {
		return nil, nil
	}
	lines := groupLines(glyphs)
	blocks := groupBlocks(lines)
	body := bodySize(lines)

	for _, b := range blocks {
		text := strings.TrimSpace(b.text())
		if text == "" {
			continue
		}
		category := domain.CategoryText
		if b.size() >= body*titleSizeRatio && len(b.lines) <= titleMaxLines {
			category = domain.CategoryTitle
		}
		elements = append(elements, domain.Element{
			Category: category,
			Text:     text,
			BBox:     b.bbox(),
			Method:   domain.MethodNative,
		})
	}
	logger.Debug("native: page %d: %d glyph runs, %d lines, %d elements", page, len(glyphs), len(lines), len(elements))
	return elements, nil
}

func (e *NativeTextExtractor) open(src *domain.SourcePDF) (*document, error) {
	if src == nil || len(src.Data) == 0 {
		return nil, fmt.Errorf("%w: empty pdf", domain.ErrInvalidInput)
	}
	key := readerKey{id: src.DocumentID, first: &src.Data[0], size: len(src.Data)}
	if doc, ok := e.readers.Get(key); ok {
		return doc, nil
	}
	r, err := pdf.NewReader(bytes.NewReader(src.Data), int64(len(src.Data)))
	if err != nil {
		return nil, fmt.Errorf("native: open %s: %w", src.DocumentID, err)
	}
	doc := &document{reader: r}
	e.readers.Add(key, doc)
	return doc, nil
}

type line struct {
	b        strings.Builder
	x0, x1   float64
	baseline float64
	fontSize float64
	chars    int
}

func (l *line) add(t pdf.Text) {
	if l.chars > 0 && t.X-l.x1 > wordGap*t.FontSize && !strings.HasSuffix(l.b.String(), " ") && t.S != " " {
		l.b.WriteByte(' ')
	}
	l.b.WriteString(t.S)
	l.x0 = math.Min(l.x0, t.X)
	l.x1 = math.Max(l.x1, t.X+t.W)
	l.fontSize = math.Max(l.fontSize, t.FontSize)
	l.chars += len([]rune(t.S))
}

func (l *line) bbox() domain.BoundingBox {
	return domain.NewBoundingBox(l.x0, l.baseline-descent*l.fontSize, l.x1, l.baseline+ascent*l.fontSize)
}

// groupLines walks glyph runs in content order and starts a new line on
// a baseline change or a jump back to the left.
func groupLines(glyphs []pdf.Text) []*line {
	var (
		lines []*line
		cur   *line
	)
	for _, t := range glyphs {
		if t.S == "" {
			continue
		}
		if cur != nil {
			tol := lineTolerance * math.Max(cur.fontSize, t.FontSize)
			if math.Abs(t.Y-cur.baseline) > tol || t.X < cur.x1-t.FontSize {
				cur = nil
			}
		}
		if cur == nil {
			if t.S == " " {
				continue
			}
			cur = &line{x0: t.X, x1: t.X, baseline: t.Y}
			lines = append(lines, cur)
		}
		cur.add(t)
	}
	return lines
}

type block struct {
	lines []*line
}

func (b *block) size() float64 {
	var s float64
	for _, l := range b.lines {
		s = math.Max(s, l.fontSize)
	}
	return s
}

func (b *block) text() string {
	parts := make([]string, len(b.lines))
	for i, l := range b.lines {
		parts[i] = strings.TrimSpace(l.b.String())
	}
	return strings.Join(parts, "\n")
}

func (b *block) bbox() domain.BoundingBox {
	boxes := make([]domain.BoundingBox, len(b.lines))
	for i, l := range b.lines {
		boxes[i] = l.bbox()
	}
	box, _ := domain.UnionAll(boxes...)
	return box
}

// groupBlocks joins vertically adjacent lines of similar size that
// overlap horizontally.
func groupBlocks(lines []*line) []*block {
	var blocks []*block
	for _, l := range lines {
		if n := len(blocks); n > 0 {
			last := blocks[n-1]
			prev := last.lines[len(last.lines)-1]
			pb, lb := prev.bbox(), l.bbox()
			gap := pb.Y0 - lb.Y1
			similar := math.Abs(prev.fontSize-l.fontSize) <= 0.2*prev.fontSize
			overlaps := lb.X0 < pb.X1 && lb.X1 > pb.X0
			if gap >= -descent*l.fontSize && gap <= blockGap*l.fontSize && similar && overlaps {
				last.lines = append(last.lines, l)
				continue
			}
		}
		blocks = append(blocks, &block{lines: []*line{l}})
	}
	return blocks
}

// bodySize is the character-weighted median font size on the page.
func bodySize(lines []*line) float64 {
	type weighted struct {
		size  float64
		chars int
	}
	ws := make([]weighted, 0, len(lines))
	total := 0
	for _, l := range lines {
		ws = append(ws, weighted{l.fontSize, l.chars})
		total += l.chars
	}
	sort.Slice(ws, func(i, j int) bool { return ws[i].size < ws[j].size })
	seen := 0
	for _, w := range ws {
		seen += w.chars
		if seen*2 >= total {
			return w.size
		}
	}
	return 0
}
