// Package rank scores sections against a persona and task query and orders
// them by relevance.
package rank

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/tmc/langchaingo/embeddings"

	"github.com/dgallion1/docrank/internal/doctree"
)

// DefaultBoost is added to the similarity of sections mentioning a keyword.
const DefaultBoost = 0.1

// Options tunes a Ranker.
type Options struct {
	Keywords []string
	Boost    float64
	TopK     int // 0 keeps every section
}

// Ranker scores sections with an embedding model plus a keyword boost.
type Ranker struct {
	embedder embeddings.Embedder
	keywords []string
	boost    float64
	topK     int
}

func New(embedder embeddings.Embedder, opts Options) *Ranker {
	kw := make([]string, 0, len(opts.Keywords))
	for _, k := range opts.Keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			kw = append(kw, k)
		}
	}
	return &Ranker{
		embedder: embedder,
		keywords: kw,
		boost:    opts.Boost,
		topK:     opts.TopK,
	}
}

// Query builds the text the sections are compared against.
func Query(persona, task string) string {
	return persona + " - " + task
}

// SectionText is the text embedded for a section.
func SectionText(s doctree.Section) string {
	return s.Title + " " + s.Context
}

// Rank returns the sections sorted by descending score with dense ranks
// 1..N. Equal scores keep their input order. The input slice is not modified.
func (r *Ranker) Rank(ctx context.Context, sections []doctree.Section, query string) ([]doctree.Section, error) {
	if len(sections) == 0 {
		return []doctree.Section{}, nil
	}

	texts := make([]string, len(sections))
	for i, s := range sections {
		texts[i] = SectionText(s)
	}

	vecs, err := r.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed sections: %w", err)
	}
	if len(vecs) != len(sections) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d sections", len(vecs), len(sections))
	}
	qvec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	ranked := make([]doctree.Section, len(sections))
	copy(ranked, sections)
	for i := range ranked {
		ranked[i].Score = Cosine(vecs[i], qvec)
		if r.mentionsKeyword(texts[i]) {
			ranked[i].Score += r.boost
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if r.topK > 0 && len(ranked) > r.topK {
		ranked = ranked[:r.topK]
	}
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked, nil
}

func (r *Ranker) mentionsKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, k := range r.keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
