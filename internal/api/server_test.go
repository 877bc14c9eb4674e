package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docrank/internal/config"
	"github.com/dgallion1/docrank/internal/doctree"
	"github.com/dgallion1/docrank/internal/embed"
	"github.com/dgallion1/docrank/internal/output"
	"github.com/dgallion1/docrank/internal/pipeline"
)

type upload struct {
	field, name, content string
}

func multipartBody(t *testing.T, fields map[string]string, files ...upload) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func newTestServer(t *testing.T, apiKey string) (*Server, *embed.Stats) {
	t.Helper()
	cfg := config.Load()
	cfg.Embedder = "hash"
	cfg.APIKey = apiKey
	cfg.MaxUploadBytes = 1024

	log := slog.New(slog.DiscardHandler)
	stats := embed.NewStats(time.Hour)
	p := pipeline.New(cfg, embed.NewHash(64), log)
	return NewServer(p, stats, log, cfg), stats
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, "secret")
	rec := do(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuth(t *testing.T) {
	s, _ := newTestServer(t, "secret")

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/stats/embedder", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/stats/embedder", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, do(s, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/stats/embedder", nil)
	req.Header.Set("Authorization", "Bearer secret")
	assert.Equal(t, http.StatusOK, do(s, req).Code)
}

func TestAuthDisabledWithoutKey(t *testing.T) {
	s, _ := newTestServer(t, "")
	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/stats/embedder", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEmbedderStats(t *testing.T) {
	s, stats := newTestServer(t, "")
	stats.Record(20*time.Millisecond, 4, false)
	stats.Record(40*time.Millisecond, 2, true)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/stats/embedder", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Model string              `json:"model"`
		Stats embed.StatsSnapshot `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "hash", body.Model)
	assert.Equal(t, 2, body.Stats.Calls)
	assert.Equal(t, 1, body.Stats.Failures)
	assert.Equal(t, 6, body.Stats.Texts)
}

func TestEmbedderStatsUnavailable(t *testing.T) {
	cfg := config.Load()
	log := slog.New(slog.DiscardHandler)
	s := NewServer(pipeline.New(cfg, nil, log), nil, log, cfg)
	req := httptest.NewRequest(http.MethodGet, "/api/stats/embedder", nil)
	assert.Equal(t, http.StatusServiceUnavailable, do(s, req).Code)
}

func TestOutline_UnreadablePDF(t *testing.T) {
	s, _ := newTestServer(t, "")
	body, ct := multipartBody(t, nil, upload{"file", "broken.pdf", "not a pdf"})
	req := httptest.NewRequest(http.MethodPost, "/api/outline", body)
	req.Header.Set("Content-Type", ct)

	rec := do(s, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var got doctree.Outline
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, doctree.EmptyOutline(), got)
}

func TestOutline_Validation(t *testing.T) {
	s, _ := newTestServer(t, "")

	body, ct := multipartBody(t, nil, upload{"file", "notes.txt", "text"})
	req := httptest.NewRequest(http.MethodPost, "/api/outline", body)
	req.Header.Set("Content-Type", ct)
	assert.Equal(t, http.StatusBadRequest, do(s, req).Code)

	body, ct = multipartBody(t, map[string]string{"x": "y"})
	req = httptest.NewRequest(http.MethodPost, "/api/outline", body)
	req.Header.Set("Content-Type", ct)
	assert.Equal(t, http.StatusBadRequest, do(s, req).Code)

	body, ct = multipartBody(t, nil, upload{"file", "big.pdf", string(make([]byte, 2048))})
	req = httptest.NewRequest(http.MethodPost, "/api/outline", body)
	req.Header.Set("Content-Type", ct)
	assert.Equal(t, http.StatusRequestEntityTooLarge, do(s, req).Code)
}

func TestRank(t *testing.T) {
	s, _ := newTestServer(t, "")
	body, ct := multipartBody(t,
		map[string]string{"persona": "Food Critic", "job_to_be_done": "Find great restaurants"},
		upload{"files", "guide.md", "# Best Seafood Restaurants Nearby\n\nThe harbour has many options.\n"},
		upload{"files", "notes.txt", "Coastal Walks And Views\nWalk along the cliffs.\n"},
	)
	req := httptest.NewRequest(http.MethodPost, "/api/rank", body)
	req.Header.Set("Content-Type", ct)

	rec := do(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got output.Ranking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []string{"guide.md", "notes.txt"}, got.Metadata.InputDocuments)
	assert.Equal(t, "Food Critic", got.Metadata.Persona)
	assert.Equal(t, "Find great restaurants", got.Metadata.JobToBeDone)
	require.Len(t, got.ExtractedSections, 2)
	assert.Equal(t, 1, got.ExtractedSections[0].ImportanceRank)
	assert.Equal(t, 2, got.ExtractedSections[1].ImportanceRank)
}

func TestRank_Validation(t *testing.T) {
	s, _ := newTestServer(t, "")

	body, ct := multipartBody(t, map[string]string{"persona": "P"})
	req := httptest.NewRequest(http.MethodPost, "/api/rank", body)
	req.Header.Set("Content-Type", ct)
	assert.Equal(t, http.StatusBadRequest, do(s, req).Code)

	body, ct = multipartBody(t, nil, upload{"files", "data.csv", "a,b"})
	req = httptest.NewRequest(http.MethodPost, "/api/rank", body)
	req.Header.Set("Content-Type", ct)
	assert.Equal(t, http.StatusBadRequest, do(s, req).Code)

	body, ct = multipartBody(t, nil, upload{"files", "bad.pdf", "not a pdf"})
	req = httptest.NewRequest(http.MethodPost, "/api/rank", body)
	req.Header.Set("Content-Type", ct)
	assert.Equal(t, http.StatusUnprocessableEntity, do(s, req).Code)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "report.pdf", sanitizeFilename("../../etc/report.pdf"))
	assert.Equal(t, "report.pdf", sanitizeFilename(`C:\docs\report.pdf`))
	assert.Equal(t, "unnamed", sanitizeFilename(""))
	assert.Equal(t, "_", sanitizeFilename(".."))
}
