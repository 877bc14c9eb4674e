package parser

import (
	"bytes"
	"io"

	"github.com/dgallion1/docrank/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark. Each block becomes
// one or more page lines; headings keep their own line so the line
// classifier can see them.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))

	var lines []string
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		lines = markdownLines(n, src, lines)
	}
	return singlePage(filename, lines), nil
}

func markdownLines(n ast.Node, src []byte, lines []string) []string {
	switch n.(type) {
	case *ast.Heading, *ast.Paragraph, *ast.TextBlock:
		return appendLines(lines, inlineText(n, src))
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		return appendLines(lines, blockText(n, src))
	case *ast.ThematicBreak, *ast.HTMLBlock:
		return lines
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		lines = markdownLines(c, src, lines)
	}
	return lines
}

// inlineText gets the text content of a block's inline children. Soft and
// hard line breaks are kept as newlines.
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(t.Value)
		default:
			buf.WriteString(inlineText(c, src))
		}
	}
	return buf.String()
}

// blockText returns the raw source lines of a code block.
func blockText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(src))
	}
	return buf.String()
}
