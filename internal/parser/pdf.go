package parser

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docrank/internal/doctree"
	pdflib "github.com/ledongthuc/pdf"
)

const (
	// rowTolerance is how far apart two glyph baselines may be and still share a row.
	rowTolerance = 2.0
	// wordGapRatio is the horizontal gap, relative to font size, that separates words
	// when glyph widths are known.
	wordGapRatio = 0.15
	// advanceRatio estimates a glyph's advance when the font carries no widths.
	advanceRatio = 0.6
)

// PDFParser extracts per-page fragments and lines from PDF files. It tries the
// Go library first, then optionally falls back to pdftotext (lines only).
type PDFParser struct {
	MinFragmentChars  int
	FallbackPdftotext bool
	Log               *slog.Logger
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	doc, err := p.extract(data, filename)
	if err != nil && p.FallbackPdftotext {
		p.logger().Warn("go pdf reader failed, trying pdftotext", "file", filename, "error", err)
		doc, err = extractPdftotext(data, filename)
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}
	return doc, nil
}

func (p *PDFParser) extract(data []byte, filename string) (doc *doctree.Document, err error) {
	// The reader panics on some malformed files instead of returning an error.
	defer func() {
		if rec := recover(); rec != nil {
			doc, err = nil, fmt.Errorf("open pdf: %v", rec)
		}
	}()

	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	doc = &doctree.Document{Name: filename}
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page, err := p.extractPage(reader, i)
		if err != nil {
			p.logger().Warn("could not extract text from page", "file", filename, "page", i, "error", err)
			continue
		}
		doc.Pages = append(doc.Pages, page)
	}
	return doc, nil
}

func (p *PDFParser) extractPage(reader *pdflib.Reader, num int) (page doctree.Page, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("page %d: %v", num, rec)
		}
	}()

	page.Number = num
	pg := reader.Page(num)
	if pg.V.IsNull() {
		return page, nil
	}
	page.Fragments, page.Lines = assemblePage(pg.Content().Text, num, p.MinFragmentChars)
	return page, nil
}

func (p *PDFParser) logger() *slog.Logger {
	if p.Log != nil {
		return p.Log
	}
	return slog.New(slog.DiscardHandler)
}

type glyphRow struct {
	y      float64
	glyphs []pdflib.Text
}

// assemblePage turns the glyphs of one page into fragments (runs sharing font
// and size) and line strings, both ordered top to bottom, left to right.
func assemblePage(texts []pdflib.Text, pageNum, minChars int) ([]doctree.Fragment, []string) {
	var frags []doctree.Fragment
	var lines []string
	for _, row := range groupRows(texts) {
		line, rowFrags := assembleRow(row, pageNum)
		if line != "" {
			lines = append(lines, line)
		}
		for _, f := range rowFrags {
			if utf8.RuneCountInString(f.Text) < minChars {
				continue
			}
			frags = append(frags, f)
		}
	}
	return frags, lines
}

// groupRows buckets glyphs by baseline. Rows come back top to bottom (PDF
// y grows upward) with glyphs sorted by x. The sort is stable, so glyphs
// reported at one x (fonts without widths) keep their content order.
func groupRows(texts []pdflib.Text) []glyphRow {
	var rows []glyphRow
	for _, t := range texts {
		if t.S == "" {
			continue
		}
		placed := false
		for i := range rows {
			if math.Abs(rows[i].y-t.Y) <= rowTolerance {
				rows[i].glyphs = append(rows[i].glyphs, t)
				placed = true
				break
			}
		}
		if !placed {
			rows = append(rows, glyphRow{y: t.Y, glyphs: []pdflib.Text{t}})
		}
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].y > rows[j].y })
	for _, row := range rows {
		sort.SliceStable(row.glyphs, func(i, j int) bool { return row.glyphs[i].X < row.glyphs[j].X })
	}
	return rows
}

type span struct {
	font string
	size float64
	text strings.Builder
	bbox doctree.BBox
}

func newSpan(g pdflib.Text) *span {
	s := &span{
		font: g.Font,
		size: g.FontSize,
		bbox: doctree.BBox{X0: g.X, Y0: g.Y, X1: g.X + g.W, Y1: g.Y + g.FontSize},
	}
	s.text.WriteString(g.S)
	return s
}

func (s *span) add(g pdflib.Text, space bool) {
	if space {
		s.text.WriteByte(' ')
	}
	s.text.WriteString(g.S)
	s.bbox.X1 = math.Max(s.bbox.X1, g.X+g.W)
	s.bbox.Y0 = math.Min(s.bbox.Y0, g.Y)
	s.bbox.Y1 = math.Max(s.bbox.Y1, g.Y+g.FontSize)
}

func (s *span) fragment(pageNum int) doctree.Fragment {
	return doctree.Fragment{
		Text:     strings.TrimSpace(s.text.String()),
		Font:     s.font,
		FontSize: s.size,
		Page:     pageNum,
		BBox:     s.bbox,
	}
}

func assembleRow(row glyphRow, pageNum int) (string, []doctree.Fragment) {
	var line strings.Builder
	var frags []doctree.Fragment
	var cur *span
	var prev *pdflib.Text
	pendingSpace := false

	for i := range row.glyphs {
		g := row.glyphs[i]
		// Space glyphs mark word breaks; they never start or extend a span.
		if strings.TrimSpace(g.S) == "" {
			pendingSpace = prev != nil
			continue
		}
		space := prev != nil && (pendingSpace || wordBreak(*prev, g))
		pendingSpace = false
		prev = &row.glyphs[i]
		if space {
			line.WriteByte(' ')
		}
		line.WriteString(g.S)

		if cur != nil && cur.font == g.Font && cur.size == g.FontSize {
			cur.add(g, space)
			continue
		}
		if cur != nil {
			frags = append(frags, cur.fragment(pageNum))
		}
		cur = newSpan(g)
	}
	if cur != nil {
		frags = append(frags, cur.fragment(pageNum))
	}
	return line.String(), frags
}

// wordBreak reports whether a gap between two adjacent glyphs separates
// words. It covers writers that position words instead of drawing spaces.
func wordBreak(prev, next pdflib.Text) bool {
	size := prev.FontSize
	if size <= 0 {
		size = 10
	}
	if prev.W > 0 {
		return next.X-(prev.X+prev.W) > size*wordGapRatio
	}
	return next.X-prev.X > size*advanceRatio
}

// extractPdftotext shells out to poppler's pdftotext. Pages are separated by
// form feeds; no font metadata is available, so fragments stay empty.
func extractPdftotext(data []byte, filename string) (*doctree.Document, error) {
	tmp, err := os.CreateTemp("", "docrank-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	cmd := exec.Command("pdftotext", "-layout", tmpPath, "-")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}
	return splitPages(filename, string(out)), nil
}

func splitPages(filename, text string) *doctree.Document {
	doc := &doctree.Document{Name: filename}
	pages := strings.Split(text, "\f")
	// pdftotext terminates the last page with a form feed too.
	if n := len(pages); n > 1 && strings.TrimSpace(pages[n-1]) == "" {
		pages = pages[:n-1]
	}
	for i, page := range pages {
		doc.Pages = append(doc.Pages, doctree.Page{
			Number: i + 1,
			Lines:  appendLines(nil, page),
		})
	}
	return doc
}
