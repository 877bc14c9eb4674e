package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docrank/internal/config"
	"github.com/dgallion1/docrank/internal/doctree"
	"github.com/dgallion1/docrank/internal/embed"
	"github.com/dgallion1/docrank/internal/output"
	"github.com/dgallion1/docrank/internal/testutil"
)

type failingEmbedder struct{ err error }

func (f failingEmbedder) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, f.err
}

func (f failingEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, f.err
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

func testConfig() config.Config {
	cfg := config.Load()
	cfg.Embedder = "hash"
	cfg.RankExtensions = []string{".txt", ".md"}
	return cfg
}

func TestRunOutline_UnreadablePDFStillWritesEmptyOutline(t *testing.T) {
	in, out := t.TempDir(), filepath.Join(t.TempDir(), "out")
	writeFiles(t, in, map[string]string{
		"broken.pdf": "this is not a pdf",
		"UPPER.PDF":  "%PDF-1.4 truncated",
		"notes.txt":  "ignored in outline mode",
	})

	p := New(testConfig(), nil, nil)
	var progress []string
	p.OnProgress = func(done, total int, file string) {
		assert.Equal(t, 2, total)
		progress = append(progress, file)
	}

	run, err := p.RunOutline(context.Background(), in, out)
	require.NoError(t, err)

	assert.Equal(t, []string{"UPPER.PDF", "broken.pdf"}, progress, "files are processed in lexical order")
	require.Len(t, run.Files, 2)
	ok, empty, failed := run.Counts()
	assert.Equal(t, [3]int{0, 2, 0}, [3]int{ok, empty, failed})
	assert.Len(t, run.ID, 26)

	for _, name := range []string{"broken.json", "UPPER.json"} {
		data, err := os.ReadFile(filepath.Join(out, name))
		require.NoError(t, err)
		assert.JSONEq(t, `{"title":"","outline":[]}`, string(data))
	}
	_, err = os.Stat(filepath.Join(out, "notes.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunOutline_EmptyDirectory(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out")
	run, err := New(testConfig(), nil, nil).RunOutline(context.Background(), t.TempDir(), out)
	require.NoError(t, err)
	assert.Empty(t, run.Files)

	entries, err := os.ReadDir(out)
	require.NoError(t, err, "the output directory is created even when there is nothing to write")
	assert.Empty(t, entries)
}

func travelGuidePDF(t *testing.T) []byte {
	return testutil.SimplePDF(t,
		[]testutil.PDFLine{
			{Bold: true, Size: 24, X: 72, Y: 720, Text: "Annual Travel Report"},
			{Bold: true, Size: 18, X: 72, Y: 680, Text: "Packing Tips And Tricks"},
			{Bold: true, Size: 14, X: 72, Y: 650, Text: "Beach Gear"},
			{Size: 10, X: 72, Y: 620, Text: "Bring light clothes and plenty of sunscreen."},
		},
		[]testutil.PDFLine{
			{Bold: true, Size: 12, X: 72, Y: 720, Text: "Sunscreen Choices For Kids"},
			{Bold: true, Size: 18, X: 72, Y: 690, Text: "Things To Do In Nice"},
			{Size: 10, X: 72, Y: 660, Text: "Walk the promenade at sunset."},
		},
	)
}

func TestRunOutline_PDF(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "guide.pdf"), travelGuidePDF(t), 0o644))

	run, err := New(testConfig(), nil, nil).RunOutline(context.Background(), in, out)
	require.NoError(t, err)
	require.Len(t, run.Files, 1)
	assert.Equal(t, FileOK, run.Files[0].Status)

	got, err := output.ReadOutline(filepath.Join(out, "guide.json"))
	require.NoError(t, err)
	assert.Equal(t, doctree.Outline{
		Title: "Annual Travel Report",
		Outline: []doctree.OutlineEntry{
			{Level: doctree.LevelH1, Text: "Packing Tips And Tricks", Page: 1},
			{Level: doctree.LevelH2, Text: "Beach Gear", Page: 1},
			{Level: doctree.LevelH3, Text: "Sunscreen Choices For Kids", Page: 2},
			{Level: doctree.LevelH1, Text: "Things To Do In Nice", Page: 2},
		},
	}, got)
}

func TestRunRanking_PDF(t *testing.T) {
	in := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "guide.pdf"), travelGuidePDF(t), 0o644))
	cfg := testConfig()
	cfg.RankExtensions = []string{".pdf"}
	outPath := filepath.Join(t.TempDir(), "travel_planner.json")

	_, err := New(cfg, embed.NewHash(128), nil).RunRanking(context.Background(), in, outPath, "Travel Planner", "Plan a trip")
	require.NoError(t, err)

	got, err := output.ReadRanking(outPath)
	require.NoError(t, err)
	require.Len(t, got.ExtractedSections, 4)
	titles := map[string]int{}
	for i, s := range got.ExtractedSections {
		assert.Equal(t, "guide.pdf", s.Document)
		assert.Equal(t, i+1, s.ImportanceRank)
		titles[s.SectionTitle] = s.PageNumber
		assert.True(t, strings.HasPrefix(got.SubsectionAnalysis[i].RefinedText, s.SectionTitle))
	}
	assert.Equal(t, map[string]int{
		"Annual Travel Report":       1,
		"Packing Tips And Tricks":    1,
		"Sunscreen Choices For Kids": 2,
		"Things To Do In Nice":       2,
	}, titles)
}

func TestRunOutline_MissingDirectory(t *testing.T) {
	_, err := New(testConfig(), nil, nil).RunOutline(context.Background(), filepath.Join(t.TempDir(), "nope"), t.TempDir())
	assert.Error(t, err)
}

func TestOutline_NeverFails(t *testing.T) {
	p := New(testConfig(), nil, nil)
	o := p.Outline(strings.NewReader("garbage"), "x.pdf")
	assert.Equal(t, doctree.EmptyOutline(), o)
	assert.NotNil(t, o.Outline)
}

const beachText = `Packing List For Beach Trips
Bring sunscreen and towels.
Nightlife And Evening Fun
Clubs stay open late.
`

const cuisineMarkdown = `# Local Cuisine Of Provence

Try the bouillabaisse in Marseille.
`

func TestRunRanking_MixedCollection(t *testing.T) {
	in := t.TempDir()
	writeFiles(t, in, map[string]string{
		"b_beach.txt":   beachText,
		"a_cuisine.md":  cuisineMarkdown,
		"c_ignored.csv": "a,b,c",
	})
	outPath := filepath.Join(t.TempDir(), "output", "travel_planner.json")

	p := New(testConfig(), embed.NewHash(128), nil)
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 6000, time.Local)
	p.now = func() time.Time { return fixed }

	run, err := p.RunRanking(context.Background(), in, outPath, "Travel Planner", "Plan a trip")
	require.NoError(t, err)
	require.Len(t, run.Files, 2)
	assert.Equal(t, 1, run.Files[0].Items)
	assert.Equal(t, 2, run.Files[1].Items)

	got, err := output.ReadRanking(outPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"a_cuisine.md", "b_beach.txt"}, got.Metadata.InputDocuments)
	assert.Equal(t, "Travel Planner", got.Metadata.Persona)
	assert.Equal(t, "Plan a trip", got.Metadata.JobToBeDone)
	assert.Equal(t, "2025-01-02T03:04:05.000006", got.Metadata.ProcessingTimestamp)

	require.Len(t, got.ExtractedSections, 3)
	require.Len(t, got.SubsectionAnalysis, 3)
	seen := map[int]bool{}
	for i, s := range got.ExtractedSections {
		seen[s.ImportanceRank] = true
		assert.Equal(t, i+1, s.ImportanceRank)
		assert.Equal(t, 1, s.PageNumber)
		assert.True(t, strings.HasPrefix(got.SubsectionAnalysis[i].RefinedText, s.SectionTitle))
		assert.NotContains(t, got.SubsectionAnalysis[i].RefinedText, "\n")
	}
	assert.Len(t, seen, 3)
}

func TestRunRanking_EmbedderErrorAborts(t *testing.T) {
	in := t.TempDir()
	writeFiles(t, in, map[string]string{"doc.txt": beachText})
	outPath := filepath.Join(t.TempDir(), "ranking.json")

	boom := errors.New("model unavailable")
	_, err := New(testConfig(), failingEmbedder{err: boom}, nil).RunRanking(context.Background(), in, outPath, "P", "T")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	_, statErr := os.Stat(outPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunRanking_ParseErrorAborts(t *testing.T) {
	in := t.TempDir()
	cfg := testConfig()
	cfg.RankExtensions = []string{".pdf"}
	writeFiles(t, in, map[string]string{"bad.pdf": "not a pdf"})

	_, err := New(cfg, embed.NewHash(16), nil).RunRanking(context.Background(), in, filepath.Join(t.TempDir(), "r.json"), "P", "T")
	assert.ErrorContains(t, err, "bad.pdf")
}

func TestRunRanking_Canceled(t *testing.T) {
	in := t.TempDir()
	writeFiles(t, in, map[string]string{"doc.txt": beachText})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(testConfig(), embed.NewHash(16), nil).RunRanking(ctx, in, filepath.Join(t.TempDir(), "r.json"), "P", "T")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRank_RequiresEmbedder(t *testing.T) {
	_, err := New(testConfig(), nil, nil).Rank(context.Background(), nil, "P", "T")
	assert.Error(t, err)
}

func TestRunIDsAreOrdered(t *testing.T) {
	t0 := time.UnixMilli(1_700_000_000_000)
	a := newRunID(t0)
	b := newRunID(t0)
	c := newRunID(t0.Add(time.Millisecond))

	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)
	assert.Less(t, a, b)
	assert.Less(t, b, c)
	assert.Equal(t, "01HF", a[:4])
}
