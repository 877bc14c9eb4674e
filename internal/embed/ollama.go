// Package embed provides the text embedders used by the relevance ranker.
// Both implement langchaingo's embeddings.Embedder.
package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"golang.org/x/time/rate"
)

// Client is the part of an LLM client the embedder needs.
type Client interface {
	CreateEmbedding(ctx context.Context, inputTexts []string) ([][]float32, error)
}

// OllamaConfig configures an OllamaEmbedder.
type OllamaConfig struct {
	BaseURL    string
	Model      string
	BatchSize  int     // Texts per request.
	RateLimit  float64 // Requests per second; 0 means unlimited.
	MaxRetries int
}

// OllamaEmbedder embeds texts through an Ollama server, batching requests,
// rate limiting them and retrying transient failures.
type OllamaEmbedder struct {
	client  Client
	cfg     OllamaConfig
	limiter *rate.Limiter
	stats   *Stats
	log     *slog.Logger
	backoff func(attempt int) time.Duration
}

var _ embeddings.Embedder = (*OllamaEmbedder)(nil)

// NewOllama connects to the Ollama server described by cfg.
func NewOllama(cfg OllamaConfig, stats *Stats, log *slog.Logger) (*OllamaEmbedder, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "all-minilm"
	}
	llm, err := ollama.New(ollama.WithModel(cfg.Model), ollama.WithServerURL(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("initialize ollama client: %w", err)
	}
	return NewWithClient(llm, cfg, stats, log), nil
}

// NewWithClient builds an embedder around an existing client.
func NewWithClient(client Client, cfg OllamaConfig, stats *Stats, log *slog.Logger) *OllamaEmbedder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if stats == nil {
		stats = NewStats(time.Hour)
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	return &OllamaEmbedder{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		stats:   stats,
		log:     log.With("embedder", "ollama", "model", cfg.Model),
		backoff: Backoff,
	}
}

// Stats returns the embedder's call statistics.
func (e *OllamaEmbedder) Stats() *Stats {
	return e.stats
}

// Model returns the embedding model name.
func (e *OllamaEmbedder) Model() string {
	return e.cfg.Model
}

// EmbedDocuments embeds texts in order, one request per batch.
func (e *OllamaEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.cfg.BatchSize {
		end := start + e.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := e.embedWithRetry(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed texts %d-%d: %w", start, end-1, err)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// EmbedQuery embeds a single query string.
func (e *OllamaEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *OllamaEmbedder) embedWithRetry(ctx context.Context, batch []string) ([][]float32, error) {
	var vecs [][]float32
	var lastErr error
	for attempt := range e.cfg.MaxRetries {
		vecs, lastErr = e.embedBatch(ctx, batch)
		if lastErr == nil || !IsRetryable(lastErr) || attempt == e.cfg.MaxRetries-1 {
			break
		}
		e.log.Warn("retryable embedding error", "texts", len(batch), "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(e.backoff(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return vecs, lastErr
}

func (e *OllamaEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	vecs, err := e.client.CreateEmbedding(ctx, batch)
	e.stats.Record(time.Since(start), len(batch), err != nil)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Join(ctxErr, err)
		}
		return nil, &RetryableError{Texts: len(batch), Err: err}
	}
	if len(vecs) != len(batch) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(batch), len(vecs))
	}
	return vecs, nil
}
