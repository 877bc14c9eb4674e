package doctree

import "strings"

// BBox is a fragment's bounding box in PDF user space (origin bottom-left).
type BBox struct {
	X0, Y0, X1, Y1 float64
}

// Fragment is the smallest extracted text unit: a run of glyphs on one line
// sharing a font and size.
type Fragment struct {
	Text     string
	Font     string
	FontSize float64
	Page     int // 1-indexed
	BBox     BBox
}

// Page holds everything extracted from a single page.
type Page struct {
	Number    int        // 1-indexed
	Fragments []Fragment // Empty for formats without font metadata
	Lines     []string   // Page text, top to bottom
}

// Text returns the page text with one line per row.
func (p Page) Text() string {
	return strings.Join(p.Lines, "\n")
}

// Document is a parsed input file.
type Document struct {
	Name  string // Source file name; doubles as the document id
	Pages []Page
}

// Fragments flattens all page fragments in page order.
func (d *Document) Fragments() []Fragment {
	var out []Fragment
	for _, p := range d.Pages {
		out = append(out, p.Fragments...)
	}
	return out
}

// HasText reports whether any page produced text.
func (d *Document) HasText() bool {
	for _, p := range d.Pages {
		if len(p.Fragments) > 0 {
			return true
		}
		for _, l := range p.Lines {
			if strings.TrimSpace(l) != "" {
				return true
			}
		}
	}
	return false
}

// Section is a detected heading plus its context window.
type Section struct {
	Document string
	Title    string
	Page     int
	Context  string
	Rank     int     // 1..N once ranked, 0 before
	Score    float64 // Boosted similarity; not serialized
}

// Level is an outline heading level.
type Level string

const (
	LevelNone  Level = ""
	LevelTitle Level = "title"
	LevelH1    Level = "H1"
	LevelH2    Level = "H2"
	LevelH3    Level = "H3"
)

// OutlineEntry is one heading in a document outline.
type OutlineEntry struct {
	Level Level  `json:"level"`
	Text  string `json:"text"`
	Page  int    `json:"page"`
}

// Outline is the outline-mode result for one document.
type Outline struct {
	Title   string         `json:"title"`
	Outline []OutlineEntry `json:"outline"`
}

// EmptyOutline is returned for unreadable documents or documents without text.
func EmptyOutline() Outline {
	return Outline{Outline: []OutlineEntry{}}
}
