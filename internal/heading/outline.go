// Package heading classifies text as headings: by font-size rank for
// document outlines, and by a syntactic line heuristic for section ranking.
package heading

import (
	"sort"

	"github.com/dgallion1/docrank/internal/doctree"
)

// levelOrder is the bucket each distinct font size falls into, largest first.
var levelOrder = []doctree.Level{
	doctree.LevelTitle,
	doctree.LevelH1,
	doctree.LevelH2,
	doctree.LevelH3,
}

// LevelSizes maps the largest distinct font sizes to title, H1, H2 and H3.
// With fewer than four sizes the lower levels repeat the last size, so they
// never claim a fragment of their own.
func LevelSizes(fragments []doctree.Fragment) map[float64]doctree.Level {
	seen := make(map[float64]bool)
	var sizes []float64
	for _, f := range fragments {
		if !seen[f.FontSize] {
			seen[f.FontSize] = true
			sizes = append(sizes, f.FontSize)
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(sizes)))

	levels := make(map[float64]doctree.Level, len(levelOrder))
	for i, lvl := range levelOrder {
		if i >= len(sizes) {
			break
		}
		levels[sizes[i]] = lvl
	}
	return levels
}

// ClassifyFragment returns the level a fragment's size maps to, or LevelNone.
// Sizes must match exactly.
func ClassifyFragment(f doctree.Fragment, levels map[float64]doctree.Level) doctree.Level {
	return levels[f.FontSize]
}

// BuildOutline classifies fragments in encounter order. The first title-size
// fragment becomes the title; later ones are dropped. H1-H3 fragments become
// outline entries.
func BuildOutline(fragments []doctree.Fragment) doctree.Outline {
	out := doctree.EmptyOutline()
	levels := LevelSizes(fragments)

	titleSet := false
	for _, f := range fragments {
		switch lvl := ClassifyFragment(f, levels); lvl {
		case doctree.LevelTitle:
			if !titleSet {
				out.Title = f.Text
				titleSet = true
			}
		case doctree.LevelH1, doctree.LevelH2, doctree.LevelH3:
			out.Outline = append(out.Outline, doctree.OutlineEntry{
				Level: lvl,
				Text:  f.Text,
				Page:  f.Page,
			})
		}
	}
	return out
}
