// Package output renders outline and ranking results as JSON files.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/docrank/internal/doctree"
)

// TimestampLayout is ISO-8601 local time with microseconds and no zone.
const TimestampLayout = "2006-01-02T15:04:05.000000"

const (
	OutlineIndent = "  "
	RankingIndent = "    "
)

type Metadata struct {
	InputDocuments      []string `json:"input_documents"`
	Persona             string   `json:"persona"`
	JobToBeDone         string   `json:"job_to_be_done"`
	ProcessingTimestamp string   `json:"processing_timestamp"`
}

type ExtractedSection struct {
	Document       string `json:"document"`
	SectionTitle   string `json:"section_title"`
	ImportanceRank int    `json:"importance_rank"`
	PageNumber     int    `json:"page_number"`
}

type SubsectionAnalysis struct {
	Document    string `json:"document"`
	RefinedText string `json:"refined_text"`
	PageNumber  int    `json:"page_number"`
}

// Ranking is the ranking-mode result for a whole collection.
type Ranking struct {
	Metadata           Metadata             `json:"metadata"`
	ExtractedSections  []ExtractedSection   `json:"extracted_sections"`
	SubsectionAnalysis []SubsectionAnalysis `json:"subsection_analysis"`
}

// NewRanking builds the ranking document from sections already in rank order.
func NewRanking(docs []string, persona, task string, ranked []doctree.Section, at time.Time) Ranking {
	if docs == nil {
		docs = []string{}
	}
	out := Ranking{
		Metadata: Metadata{
			InputDocuments:      docs,
			Persona:             persona,
			JobToBeDone:         task,
			ProcessingTimestamp: at.Local().Format(TimestampLayout),
		},
		ExtractedSections:  make([]ExtractedSection, 0, len(ranked)),
		SubsectionAnalysis: make([]SubsectionAnalysis, 0, len(ranked)),
	}
	for _, s := range ranked {
		out.ExtractedSections = append(out.ExtractedSections, ExtractedSection{
			Document:       s.Document,
			SectionTitle:   s.Title,
			ImportanceRank: s.Rank,
			PageNumber:     s.Page,
		})
		out.SubsectionAnalysis = append(out.SubsectionAnalysis, SubsectionAnalysis{
			Document:    s.Document,
			RefinedText: RefineText(s.Context),
			PageNumber:  s.Page,
		})
	}
	return out
}

// RefineText flattens a context window onto one line.
func RefineText(context string) string {
	return strings.TrimSpace(strings.ReplaceAll(context, "\n", " "))
}

// OutlineFileName maps "report.pdf" to "report.json".
func OutlineFileName(pdfName string) string {
	base := filepath.Base(pdfName)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".json"
}

// Marshal encodes v with the given indent, leaving non-ASCII and HTML
// characters unescaped.
func Marshal(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indent)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// WriteJSON writes v to path, creating parent directories as needed.
func WriteJSON(path string, v any, indent string) error {
	data, err := Marshal(v, indent)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func WriteOutline(path string, o doctree.Outline) error {
	if o.Outline == nil {
		o.Outline = []doctree.OutlineEntry{}
	}
	return WriteJSON(path, o, OutlineIndent)
}

func WriteRanking(path string, r Ranking) error {
	return WriteJSON(path, r, RankingIndent)
}

func ReadOutline(path string) (doctree.Outline, error) {
	var o doctree.Outline
	if err := readJSON(path, &o); err != nil {
		return doctree.Outline{}, err
	}
	return o, nil
}

func ReadRanking(path string) (Ranking, error) {
	var r Ranking
	if err := readJSON(path, &r); err != nil {
		return Ranking{}, err
	}
	return r, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
