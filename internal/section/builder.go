package section

import (
	"strings"

	"github.com/dgallion1/docrank/internal/doctree"
	"github.com/dgallion1/docrank/internal/heading"
)

// Config controls section detection and context windows.
type Config struct {
	Rules         heading.LineRules // Word bounds for candidate heading lines.
	ContextLines  int               // Lines in a context window, heading included.
	FallbackChars int               // Page prefix used when the heading is not found.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Rules:         heading.DefaultLineRules(),
		ContextLines:  15,
		FallbackChars: 1000,
	}
}

// Builder groups detected headings with a bounded window of following text.
type Builder struct {
	cfg Config
}

func NewBuilder(cfg Config) *Builder {
	def := DefaultConfig()
	if cfg.Rules.MinWords <= 0 {
		cfg.Rules.MinWords = def.Rules.MinWords
	}
	if cfg.Rules.MaxWords <= 0 {
		cfg.Rules.MaxWords = def.Rules.MaxWords
	}
	if cfg.ContextLines <= 0 {
		cfg.ContextLines = def.ContextLines
	}
	if cfg.FallbackChars <= 0 {
		cfg.FallbackChars = def.FallbackChars
	}
	return &Builder{cfg: cfg}
}

// Build detects the sections of a document and fills in their context.
func (b *Builder) Build(doc *doctree.Document) []doctree.Section {
	sections := b.Detect(doc)
	pages := make(map[int]doctree.Page, len(doc.Pages))
	for _, p := range doc.Pages {
		pages[p.Number] = p
	}
	for i := range sections {
		sections[i].Context = b.Context(pages[sections[i].Page], sections[i].Title)
	}
	return sections
}

// Detect returns one section per candidate heading line, in page order.
func (b *Builder) Detect(doc *doctree.Document) []doctree.Section {
	var sections []doctree.Section
	for _, page := range doc.Pages {
		for _, line := range page.Lines {
			if !heading.ClassifyLine(line, b.cfg.Rules).IsHeading() {
				continue
			}
			sections = append(sections, doctree.Section{
				Document: doc.Name,
				Title:    strings.TrimSpace(line),
				Page:     page.Number,
			})
		}
	}
	return sections
}

// Context returns the heading's line and the lines after it, up to the
// configured window. The window starts at the first line equal to the title
// after trimming; only when no line is equal does it start at the first line
// containing the title, so an earlier body line quoting a heading does not
// capture its window. If the title is not on the page at all, the first
// FallbackChars characters (runes) of the page text are used.
func (b *Builder) Context(page doctree.Page, title string) string {
	idx := findLine(page.Lines, title)
	if idx < 0 {
		return truncateRunes(page.Text(), b.cfg.FallbackChars)
	}
	end := idx + b.cfg.ContextLines
	if end > len(page.Lines) {
		end = len(page.Lines)
	}
	return strings.Join(page.Lines[idx:end], "\n")
}

func findLine(lines []string, title string) int {
	if title == "" {
		return -1
	}
	for i, line := range lines {
		if strings.TrimSpace(line) == title {
			return i
		}
	}
	for i, line := range lines {
		if strings.Contains(line, title) {
			return i
		}
	}
	return -1
}

func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
