package heading

import (
	"strings"
	"unicode"
)

// LineKind is the ranking-mode classification of a single line of page text.
type LineKind int

const (
	LineBlank LineKind = iota
	LineTooShort
	LineTooLong
	LineSymbols
	LineBody
	LineUpperHeading
	LineTitleHeading
)

func (k LineKind) String() string {
	switch k {
	case LineBlank:
		return "blank"
	case LineTooShort:
		return "too_short"
	case LineTooLong:
		return "too_long"
	case LineSymbols:
		return "symbols"
	case LineBody:
		return "body"
	case LineUpperHeading:
		return "upper_heading"
	case LineTitleHeading:
		return "title_heading"
	default:
		return "unknown"
	}
}

// IsHeading reports whether the kind marks a candidate section heading.
func (k LineKind) IsHeading() bool {
	return k == LineUpperHeading || k == LineTitleHeading
}

// LineRules bounds the word count of a candidate heading.
type LineRules struct {
	MinWords int
	MaxWords int
}

// DefaultLineRules accepts headings of 3 to 20 words.
func DefaultLineRules() LineRules {
	return LineRules{MinWords: 3, MaxWords: 20}
}

// ClassifyLine decides whether a line looks like a heading: the right number
// of words, not only punctuation, and either all upper case or title case.
func ClassifyLine(line string, rules LineRules) LineKind {
	line = strings.TrimSpace(line)
	if line == "" {
		return LineBlank
	}
	words := len(strings.Fields(line))
	if words < rules.MinWords {
		return LineTooShort
	}
	if words > rules.MaxWords {
		return LineTooLong
	}
	if onlySymbols(line) {
		return LineSymbols
	}
	if isUpper(line) {
		return LineUpperHeading
	}
	if isTitle(line) {
		return LineTitleHeading
	}
	return LineBody
}

// onlySymbols is true when the line has no letters, digits or underscores.
func onlySymbols(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return false
		}
	}
	return true
}

// isUpper: at least one cased rune and no lower-case runes.
func isUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) || unicode.IsTitle(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}

// isTitle: at least one cased rune; upper-case runes only follow uncased
// runes and lower-case runes only follow cased ones.
func isTitle(s string) bool {
	cased := false
	prevCased := false
	for _, r := range s {
		switch {
		case unicode.IsUpper(r) || unicode.IsTitle(r):
			if prevCased {
				return false
			}
			prevCased = true
			cased = true
		case unicode.IsLower(r):
			if !prevCased {
				return false
			}
			prevCased = true
			cased = true
		default:
			prevCased = false
		}
	}
	return cased
}
