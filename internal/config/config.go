package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultBoostKeywords are the terms that earn a section the flat relevance boost.
var DefaultBoostKeywords = []string{
	"packing", "cuisine", "food", "activities", "things to do",
	"entertainment", "nightlife", "tips", "tricks", "guide",
	"plan", "water sports", "coastal", "restaurants", "cities",
	"checklist", "hotel", "transport", "local",
}

type Config struct {
	// Outline mode
	OutlineInputDir  string `yaml:"outline_input_dir"`
	OutlineOutputDir string `yaml:"outline_output_dir"`

	// Ranking mode
	RankInputDir   string   `yaml:"rank_input_dir"`
	RankOutputDir  string   `yaml:"rank_output_dir"`
	RankOutputFile string   `yaml:"rank_output_file"`
	RankExtensions []string `yaml:"rank_extensions"`
	Persona        string   `yaml:"persona"`
	Task           string   `yaml:"task"`

	// Ranking heuristics
	BoostKeywords    []string `yaml:"boost_keywords"`
	Boost            float64  `yaml:"boost"`
	TopK             int      `yaml:"top_k"`
	MinHeadingWords  int      `yaml:"min_heading_words"`
	MaxHeadingWords  int      `yaml:"max_heading_words"`
	ContextLines     int      `yaml:"context_lines"`
	FallbackChars    int      `yaml:"fallback_chars"`
	MinFragmentChars int      `yaml:"min_fragment_chars"`

	// PDF
	PDFFallbackPdftotext bool `yaml:"pdf_fallback_pdftotext"`

	// Embeddings
	Embedder        string        `yaml:"embedder"`
	OllamaURL       string        `yaml:"ollama_url"`
	EmbedModel      string        `yaml:"embed_model"`
	EmbedBatchSize  int           `yaml:"embed_batch_size"`
	EmbedRateLimit  float64       `yaml:"embed_rate_limit"`
	EmbedMaxRetries int           `yaml:"embed_max_retries"`
	HashDim         int           `yaml:"hash_dim"`
	StatsWindow     time.Duration `yaml:"stats_window"`

	// Serve mode
	Port           string `yaml:"port"`
	APIKey         string `yaml:"api_key"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

func Load() Config {
	cfg := Config{
		OutlineInputDir:  envOr("DOCRANK_OUTLINE_INPUT_DIR", "/app/input"),
		OutlineOutputDir: envOr("DOCRANK_OUTLINE_OUTPUT_DIR", "/app/output"),

		RankInputDir:   envOr("DOCRANK_RANK_INPUT_DIR", "./input"),
		RankOutputDir:  envOr("DOCRANK_RANK_OUTPUT_DIR", "./output"),
		RankOutputFile: envOr("DOCRANK_RANK_OUTPUT_FILE", "travel_planner.json"),
		RankExtensions: envList("DOCRANK_RANK_EXTENSIONS", []string{".pdf"}),
		Persona:        envOr("DOCRANK_PERSONA", "Travel Planner"),
		Task:           envOr("DOCRANK_TASK", "Plan a trip of 4 days for a group of 10 college friends."),

		BoostKeywords:    envList("DOCRANK_BOOST_KEYWORDS", DefaultBoostKeywords),
		Boost:            envFloat("DOCRANK_BOOST", 0.1),
		TopK:             envInt("DOCRANK_TOP_K", 0),
		MinHeadingWords:  envInt("DOCRANK_MIN_HEADING_WORDS", 3),
		MaxHeadingWords:  envInt("DOCRANK_MAX_HEADING_WORDS", 20),
		ContextLines:     envInt("DOCRANK_CONTEXT_LINES", 15),
		FallbackChars:    envInt("DOCRANK_FALLBACK_CHARS", 1000),
		MinFragmentChars: envInt("DOCRANK_MIN_FRAGMENT_CHARS", 3),

		PDFFallbackPdftotext: envBool("DOCRANK_PDF_FALLBACK_PDFTOTEXT", false),

		Embedder:        envOr("DOCRANK_EMBEDDER", "ollama"),
		OllamaURL:       envOr("OLLAMA_BASE_URL", "http://localhost:11434"),
		EmbedModel:      envOr("DOCRANK_EMBED_MODEL", "all-minilm"),
		EmbedBatchSize:  envInt("DOCRANK_EMBED_BATCH_SIZE", 32),
		EmbedRateLimit:  envFloat("DOCRANK_EMBED_RATE_LIMIT", 0),
		EmbedMaxRetries: envInt("DOCRANK_EMBED_MAX_RETRIES", 3),
		HashDim:         envInt("DOCRANK_HASH_DIM", 384),
		StatsWindow:     envDuration("DOCRANK_STATS_WINDOW", 1*time.Hour),

		Port:           envOr("PORT", "8090"),
		APIKey:         os.Getenv("DOCRANK_API_KEY"),
		MaxUploadBytes: envInt64("DOCRANK_MAX_UPLOAD_BYTES", 52428800), // 50MB
	}

	cfg.applyDefaults()
	return cfg
}

// LoadFile overlays the YAML file at path onto base. Keys absent from the
// file keep their base values.
func LoadFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read config file: %w", err)
	}
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return base, fmt.Errorf("parse config file: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.MinHeadingWords <= 0 {
		c.MinHeadingWords = 3
	}
	if c.MaxHeadingWords <= 0 {
		c.MaxHeadingWords = 20
	}
	if c.ContextLines <= 0 {
		c.ContextLines = 15
	}
	if c.FallbackChars <= 0 {
		c.FallbackChars = 1000
	}
	if c.MinFragmentChars < 0 {
		c.MinFragmentChars = 0
	}
	if c.TopK < 0 {
		c.TopK = 0
	}
	if c.EmbedBatchSize <= 0 {
		c.EmbedBatchSize = 32
	}
	if c.EmbedMaxRetries <= 0 {
		c.EmbedMaxRetries = 3
	}
	if c.HashDim <= 0 {
		c.HashDim = 384
	}
	if c.StatsWindow <= 0 {
		c.StatsWindow = 1 * time.Hour
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 52428800
	}
	if len(c.RankExtensions) == 0 {
		c.RankExtensions = []string{".pdf"}
	}
	for i, ext := range c.RankExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.RankExtensions[i] = ext
	}
}

func (c Config) Validate() error {
	if c.MinHeadingWords > c.MaxHeadingWords {
		return fmt.Errorf("min heading words (%d) exceeds max heading words (%d)", c.MinHeadingWords, c.MaxHeadingWords)
	}
	if c.Boost < 0 {
		return fmt.Errorf("boost must be non-negative, got %v", c.Boost)
	}
	if c.EmbedRateLimit < 0 {
		return fmt.Errorf("embed rate limit must be non-negative, got %v", c.EmbedRateLimit)
	}
	switch c.Embedder {
	case "ollama":
		if c.OllamaURL == "" {
			return fmt.Errorf("OLLAMA_BASE_URL is required for the ollama embedder")
		}
		if c.EmbedModel == "" {
			return fmt.Errorf("DOCRANK_EMBED_MODEL is required for the ollama embedder")
		}
	case "hash":
	default:
		return fmt.Errorf("unknown embedder %q (want ollama or hash)", c.Embedder)
	}
	if c.RankOutputFile == "" {
		return fmt.Errorf("rank output file name is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envList reads a comma-separated list.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		out := make([]string, len(fallback))
		copy(out, fallback)
		return out
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
