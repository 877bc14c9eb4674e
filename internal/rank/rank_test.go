package rank

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docrank/internal/doctree"
)

// tableEmbedder returns fixed vectors keyed by the first word of the text.
type tableEmbedder struct {
	vecs   map[string][]float32
	calls  int
	drop   bool
	docErr error
}

func (e *tableEmbedder) lookup(text string) []float32 {
	word, _, _ := strings.Cut(text, " ")
	if v, ok := e.vecs[word]; ok {
		return v
	}
	return []float32{0, 0, 1}
}

func (e *tableEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.docErr != nil {
		return nil, e.docErr
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, e.lookup(t))
	}
	if e.drop {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (e *tableEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.calls++
	return e.lookup(text), nil
}

func sec(title, context string) doctree.Section {
	return doctree.Section{Document: "doc.pdf", Title: title, Page: 1, Context: context}
}

func TestQuery(t *testing.T) {
	assert.Equal(t, "Travel Planner - Plan a trip", Query("Travel Planner", "Plan a trip"))
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-3, 0}), 1e-9)
	assert.Zero(t, Cosine([]float32{0, 0}, []float32{1, 1}))
	assert.Zero(t, Cosine([]float32{1}, []float32{1, 1}))
	assert.Zero(t, Cosine(nil, nil))
}

func TestRank_OrderAndDenseRanks(t *testing.T) {
	emb := &tableEmbedder{vecs: map[string][]float32{
		"Query":  {1, 0, 0},
		"Close":  {0.9, 0.1, 0},
		"Middle": {0.5, 0.5, 0},
		"Far":    {0, 1, 0},
	}}
	r := New(emb, Options{})

	in := []doctree.Section{sec("Far Away Section", ""), sec("Close Match Here", ""), sec("Middle Ground Topic", "")}
	out, err := r.Rank(context.Background(), in, "Query text")
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, "Close Match Here", out[0].Title)
	assert.Equal(t, "Middle Ground Topic", out[1].Title)
	assert.Equal(t, "Far Away Section", out[2].Title)
	for i, s := range out {
		assert.Equal(t, i+1, s.Rank)
		if i > 0 {
			assert.LessOrEqual(t, s.Score, out[i-1].Score)
		}
	}
	assert.Zero(t, in[0].Rank, "input is not modified")
}

func TestRank_KeywordBoost(t *testing.T) {
	emb := &tableEmbedder{vecs: map[string][]float32{
		"Query": {1, 0, 0},
		"Same":  {0.6, 0.8, 0},
	}}
	r := New(emb, Options{Keywords: []string{"Packing"}, Boost: DefaultBoost})

	plain := sec("Same Heading Text", "bring a towel")
	boosted := sec("Same Heading Text", "PACKING list: bring a towel")
	out, err := r.Rank(context.Background(), []doctree.Section{plain, boosted}, "Query")
	require.NoError(t, err)

	require.Len(t, out, 2)
	assert.Equal(t, boosted.Context, out[0].Context)
	assert.InDelta(t, 0.7, out[0].Score, 1e-6)
	assert.InDelta(t, 0.6, out[1].Score, 1e-6)
	assert.GreaterOrEqual(t, out[0].Score, out[1].Score)
}

func TestRank_TiesKeepDetectionOrder(t *testing.T) {
	emb := &tableEmbedder{vecs: map[string][]float32{"Query": {1, 0, 0}}}
	r := New(emb, Options{})

	in := []doctree.Section{sec("Alpha One Two", ""), sec("Beta One Two", ""), sec("Gamma One Two", "")}
	out, err := r.Rank(context.Background(), in, "Query")
	require.NoError(t, err)
	for i := range in {
		assert.Equal(t, in[i].Title, out[i].Title)
		assert.Equal(t, i+1, out[i].Rank)
	}
}

func TestRank_TopK(t *testing.T) {
	emb := &tableEmbedder{vecs: map[string][]float32{"Query": {1, 0, 0}, "Best": {1, 0, 0}}}
	r := New(emb, Options{TopK: 1})

	out, err := r.Rank(context.Background(), []doctree.Section{sec("Other One Two", ""), sec("Best One Two", "")}, "Query")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Best One Two", out[0].Title)
	assert.Equal(t, 1, out[0].Rank)
}

func TestRank_EmptyInputSkipsEmbedder(t *testing.T) {
	emb := &tableEmbedder{}
	out, err := New(emb, Options{}).Rank(context.Background(), nil, "Query")
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
	assert.Zero(t, emb.calls)
}

func TestRank_Errors(t *testing.T) {
	_, err := New(&tableEmbedder{drop: true}, Options{}).Rank(context.Background(), []doctree.Section{sec("A B C", "")}, "Q")
	assert.ErrorContains(t, err, "returned 0 vectors for 1 sections")

	boom := errors.New("boom")
	_, err = New(&tableEmbedder{docErr: boom}, Options{}).Rank(context.Background(), []doctree.Section{sec("A B C", "")}, "Q")
	assert.ErrorIs(t, err, boom)
}
