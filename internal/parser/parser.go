package parser

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docrank/internal/doctree"
)

// Parser converts raw document bytes into a Document.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.Document, error)
}

// Options tune the parsers returned by ForFile.
type Options struct {
	MinFragmentChars  int  // Fragments shorter than this (after trimming) are dropped.
	FallbackPdftotext bool // Retry with pdftotext when the Go PDF reader fails.
	Log               *slog.Logger
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".pdf":      true,
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return &PDFParser{
			MinFragmentChars:  opts.MinFragmentChars,
			FallbackPdftotext: opts.FallbackPdftotext,
			Log:               opts.Log,
		}, nil
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// singlePage wraps lines from a format without pagination.
func singlePage(filename string, lines []string) *doctree.Document {
	return &doctree.Document{
		Name:  filename,
		Pages: []doctree.Page{{Number: 1, Lines: lines}},
	}
}

// appendLines splits text on newlines and appends the non-blank lines.
func appendLines(dst []string, text string) []string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			dst = append(dst, line)
		}
	}
	return dst
}
