// Package pdftest writes small, valid PDFs for adapter tests.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
)

// Line is one run of Helvetica text placed with its baseline at (X, Y).
type Line struct {
	X, Y float64
	Size float64
	Text string
}

// Page is a page of the given point size. A page with no lines has an
// empty content stream, which reads as having no text layer. OriginX and
// OriginY move the MediaBox lower-left corner; Rotate is written as /Rotate.
type Page struct {
	Width, Height    float64
	OriginX, OriginY float64
	Rotate           int
	Lines            []Line
}

// Letter is a US Letter page with the given lines.
func Letter(lines ...Line) Page {
	return Page{Width: 612, Height: 792, Lines: lines}
}

// Build renders pages into a PDF 1.4 file with a correct xref table.
func Build(pages ...Page) []byte {
	// Objects: 1 catalog, 2 pages, 3 font, then a page and a content
	// stream per page.
	var objects []string
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}

	widths := strings.TrimSpace(strings.Repeat("500 ", 95))
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding"+
			" /FirstChar 32 /LastChar 126 /Widths ["+widths+"] >>",
	)

	for i, p := range pages {
		content := contentStream(p.Lines)
		rotate := ""
		if p.Rotate != 0 {
			rotate = fmt.Sprintf(" /Rotate %d", p.Rotate)
		}
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [%s %s %s %s]%s"+
				" /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
				num(p.OriginX), num(p.OriginY), num(p.OriginX+p.Width), num(p.OriginY+p.Height),
				rotate, 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func contentStream(lines []Line) string {
	var b strings.Builder
	for _, l := range lines {
		size := l.Size
		if size <= 0 {
			size = 10
		}
		fmt.Fprintf(&b, "BT /F1 %s Tf %s %s Td (%s) Tj ET\n", num(size), num(l.X), num(l.Y), escape(l.Text))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

func num(v float64) string {
	s := strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}
