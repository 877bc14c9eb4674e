// Package pipeline runs the outline and ranking batches over a directory of
// documents, one file at a time.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tmc/langchaingo/embeddings"

	"github.com/dgallion1/docrank/internal/config"
	"github.com/dgallion1/docrank/internal/doctree"
	"github.com/dgallion1/docrank/internal/embed"
	"github.com/dgallion1/docrank/internal/heading"
	"github.com/dgallion1/docrank/internal/output"
	"github.com/dgallion1/docrank/internal/parser"
	"github.com/dgallion1/docrank/internal/rank"
	"github.com/dgallion1/docrank/internal/section"
)

// Pipeline wires the parser, classifiers, section builder and ranker.
type Pipeline struct {
	cfg       config.Config
	log       *slog.Logger
	parseOpts parser.Options
	sections  *section.Builder
	ranker    *rank.Ranker
	embedder  embeddings.Embedder
	now       func() time.Time

	// OnProgress, if set, is called after each file of a batch.
	OnProgress func(done, total int, file string)
}

// New builds a pipeline. embedder may be nil when only outlines are needed.
func New(cfg config.Config, embedder embeddings.Embedder, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	p := &Pipeline{
		cfg: cfg,
		log: log,
		parseOpts: parser.Options{
			MinFragmentChars:  cfg.MinFragmentChars,
			FallbackPdftotext: cfg.PDFFallbackPdftotext,
			Log:               log,
		},
		sections: section.NewBuilder(section.Config{
			Rules:         heading.LineRules{MinWords: cfg.MinHeadingWords, MaxWords: cfg.MaxHeadingWords},
			ContextLines:  cfg.ContextLines,
			FallbackChars: cfg.FallbackChars,
		}),
		embedder: embedder,
		now:      time.Now,
	}
	if embedder != nil {
		p.ranker = rank.New(embedder, rank.Options{
			Keywords: cfg.BoostKeywords,
			Boost:    cfg.Boost,
			TopK:     cfg.TopK,
		})
	}
	return p
}

// Outline extracts the outline of one PDF. Unreadable documents and documents
// without text yield the empty outline; the failure is only logged.
func (p *Pipeline) Outline(r io.Reader, name string) doctree.Outline {
	o, _ := p.outline(r, name, p.log.With("file", name))
	return o
}

func (p *Pipeline) outline(r io.Reader, name string, log *slog.Logger) (doctree.Outline, error) {
	doc, err := p.ParseDocument(r, name)
	if err != nil {
		log.Error("could not read document", "error", err)
		return doctree.EmptyOutline(), err
	}
	frags := doc.Fragments()
	if len(frags) == 0 {
		log.Warn("no extractable text", "pages", len(doc.Pages))
		return doctree.EmptyOutline(), errNoText
	}
	return heading.BuildOutline(frags), nil
}

var errNoText = errors.New("no extractable text")

// ParseDocument parses one file with the parser its extension selects.
func (p *Pipeline) ParseDocument(r io.Reader, name string) (*doctree.Document, error) {
	prs, err := parser.ForFile(name, p.parseOpts)
	if err != nil {
		return nil, err
	}
	doc, err := prs.Parse(r, name)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return doc, nil
}

// RunOutline writes one outline JSON per PDF in inDir to outDir. A failing
// file is recorded and the batch moves on.
func (p *Pipeline) RunOutline(ctx context.Context, inDir, outDir string) (*Run, error) {
	run := newRun(ModeOutline, inDir, outDir, p.now())
	log := p.log.With("run_id", run.ID, "mode", ModeOutline)

	files, err := listFiles(inDir, []string{".pdf"})
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	if len(files) == 0 {
		log.Warn("no PDF files found", "dir", inDir)
		run.FinishedAt = p.now()
		return run, nil
	}

	log.Info("outline run started", "files", len(files), "input", inDir, "output", outDir)
	for i, name := range files {
		if err := ctx.Err(); err != nil {
			return run, err
		}
		run.add(p.outlineFile(inDir, outDir, name, log.With("file", name)))
		p.progress(i+1, len(files), name)
	}
	run.FinishedAt = p.now()

	ok, empty, failed := run.Counts()
	log.Info("outline run finished", "ok", ok, "empty", empty, "failed", failed, "elapsed", run.Elapsed())
	return run, nil
}

func (p *Pipeline) outlineFile(inDir, outDir, name string, log *slog.Logger) FileResult {
	start := time.Now()
	fr := FileResult{Name: name, Status: FileOK}

	data, err := os.ReadFile(filepath.Join(inDir, name))
	if err != nil {
		log.Error("read failed", "error", err)
		fr.Status, fr.Error = FileFailed, err.Error()
		fr.Duration = time.Since(start)
		return fr
	}

	o, err := p.outline(bytes.NewReader(data), name, log)
	if err != nil {
		fr.Status, fr.Error = FileEmpty, err.Error()
	}
	fr.Items = len(o.Outline)

	outPath := filepath.Join(outDir, output.OutlineFileName(name))
	if err := output.WriteOutline(outPath, o); err != nil {
		log.Error("write failed", "error", err)
		fr.Status, fr.Error = FileFailed, err.Error()
		fr.Duration = time.Since(start)
		return fr
	}
	fr.Output = outPath
	fr.Duration = time.Since(start)
	log.Info("outline written", "title", o.Title, "entries", fr.Items, "output", outPath)
	return fr
}

// Rank detects sections in every document and ranks them for the persona's
// task.
func (p *Pipeline) Rank(ctx context.Context, docs []*doctree.Document, persona, task string) (output.Ranking, error) {
	if p.ranker == nil {
		return output.Ranking{}, errors.New("ranking requires an embedder")
	}
	names := make([]string, 0, len(docs))
	var all []doctree.Section
	for _, doc := range docs {
		names = append(names, doc.Name)
		all = append(all, p.sections.Build(doc)...)
	}

	ranked, err := p.ranker.Rank(ctx, all, rank.Query(persona, task))
	if err != nil {
		return output.Ranking{}, err
	}
	return output.NewRanking(names, persona, task, ranked, p.now()), nil
}

// RunRanking ranks the sections of every matching document in inDir and
// writes a single JSON file to outPath. Any error aborts the run.
func (p *Pipeline) RunRanking(ctx context.Context, inDir, outPath, persona, task string) (*Run, error) {
	run := newRun(ModeRank, inDir, outPath, p.now())
	log := p.log.With("run_id", run.ID, "mode", ModeRank)

	files, err := listFiles(inDir, p.cfg.RankExtensions)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		log.Warn("no input documents found", "dir", inDir, "extensions", p.cfg.RankExtensions)
	}
	log.Info("ranking run started", "files", len(files), "persona", persona)

	docs := make([]*doctree.Document, 0, len(files))
	for i, name := range files {
		if err := ctx.Err(); err != nil {
			return run, err
		}
		start := time.Now()
		data, err := os.ReadFile(filepath.Join(inDir, name))
		if err != nil {
			return run, fmt.Errorf("read %s: %w", name, err)
		}
		doc, err := p.ParseDocument(bytes.NewReader(data), name)
		if err != nil {
			return run, err
		}
		status := FileOK
		if !doc.HasText() {
			log.Warn("no extractable text", "file", name)
			status = FileEmpty
		}
		docs = append(docs, doc)
		run.add(FileResult{Name: name, Status: status, Items: len(p.sections.Detect(doc)), Duration: time.Since(start)})
		p.progress(i+1, len(files), name)
	}

	result, err := p.Rank(ctx, docs, persona, task)
	if err != nil {
		return run, fmt.Errorf("rank sections: %w", err)
	}
	if err := output.WriteRanking(outPath, result); err != nil {
		return run, err
	}
	run.FinishedAt = p.now()

	log.Info("ranking written", "sections", len(result.ExtractedSections), "output", outPath, "elapsed", run.Elapsed())
	p.logEmbedderStats(log)
	return run, nil
}

func (p *Pipeline) logEmbedderStats(log *slog.Logger) {
	s, ok := p.embedder.(interface{ Stats() *embed.Stats })
	if !ok {
		return
	}
	snap := s.Stats().Snapshot()
	log.Info("embedder stats",
		"calls", snap.Calls, "failures", snap.Failures, "texts", snap.Texts,
		"p50_ms", snap.P50Ms, "p95_ms", snap.P95Ms)
}

func (p *Pipeline) progress(done, total int, file string) {
	if p.OnProgress != nil {
		p.OnProgress(done, total, file)
	}
}

// listFiles returns the regular files in dir whose extension is in exts
// (case-insensitive), in lexical order.
func listFiles(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input dir: %w", err)
	}
	want := make(map[string]bool, len(exts))
	for _, e := range exts {
		want[strings.ToLower(e)] = true
	}
	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if want[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
