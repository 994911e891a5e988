package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/study-notes/internal/core/job"
	"github.com/jinford/study-notes/internal/platform/config"
	"github.com/jinford/study-notes/internal/platform/container"
)

const testToken = "secret-token"

type wordCounter struct{}

func (wordCounter) CountTokens(text string) int {
	return len(strings.Fields(text))
}

func (wordCounter) TrimToTokenLimit(text string, maxTokens int) string {
	fields := strings.Fields(text)
	if len(fields) <= maxTokens {
		return text
	}
	return strings.Join(fields[:maxTokens], " ")
}

type testEnv struct {
	server *Server
	c      *container.Container
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.Config{
		Providers: config.ProvidersConfig{
			LLM:            "mock",
			Embedder:       "mock",
			VectorStore:    "memory",
			JobStore:       "memory",
			ScraperSources: []string{"mock"},
		},
		Pipeline: config.PipelineConfig{
			JobTimeout:         time.Minute,
			MaxConcurrentJobs:  2,
			MaxTopics:          3,
			ResourcesPerTopic:  2,
			RetrievalTopK:      3,
			RetrievalMinScore:  0.01,
			GenerationWorkers:  2,
			QualityMinScore:    0.5,
			HashEmbedDimension: 128,
		},
		OutputDir: t.TempDir(),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	c, err := container.New(context.Background(), cfg,
		container.WithContainerLogger(logger),
		container.WithContainerTokenCounter(wordCounter{}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Shutdown(context.Background()) })

	return &testEnv{
		c: c,
		server: NewServer(Options{
			APIToken:       testToken,
			Orchestrator:   c.Orchestrator,
			Catalog:        c.Catalog,
			Notes:          c.Notes,
			Artifacts:      c.Artifacts,
			Logger:         logger,
			DisableReqLogs: true,
		}),
	}
}

func (e *testEnv) do(method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+testToken)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestServer_Auth(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{name: "healthzは認証不要", path: "/healthz", want: http.StatusOK},
		{name: "トークンなし", path: "/api/catalog/boards", want: http.StatusUnauthorized},
		{name: "不正なトークン", path: "/api/catalog/boards", header: "Bearer wrong", want: http.StatusUnauthorized},
		{name: "正しいトークン", path: "/api/catalog/boards", header: "Bearer " + testToken, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			env.server.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestServer_Catalog(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/catalog/boards", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"CBSE"`)

	rec = env.do(http.MethodGet, "/api/catalog/subjects?board=CBSE&class=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Science"`)

	rec = env.do(http.MethodGet, "/api/catalog/chapters?board=CBSE&class=10&subject=Mathematics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Real Numbers")

	rec = env.do(http.MethodGet, "/api/catalog/subjects?board=CBSE", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, map[string]any{"class": "invalid value"}, decode(t, rec)["fields"])
}

func TestServer_CreateJobRejectsInvalidRequest(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/jobs", `{"class": 13, "board": "CBSE", "subject": "Science", "chapter": "Motion"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decode(t, rec)
	fields, ok := body["fields"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, fields, "class")

	jobs, err := env.c.Orchestrator.Jobs().List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	rec = env.do(http.MethodPost, "/api/jobs", `{"class": `)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_JobLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/jobs", `{"class": 10, "board": "cbse", "subject": "mathematics", "chapter": "Real Numbers"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var created job.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "/api/jobs/"+created.ID.String(), rec.Header().Get(echo.HeaderLocation))
	assert.Equal(t, "CBSE", created.Request.Board)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	finished, err := env.c.Orchestrator.Wait(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, job.StateCompleted, finished.State, finished.Error)

	rec = env.do(http.MethodGet, "/api/jobs/"+created.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(job.StateCompleted), decode(t, rec)["state"])

	rec = env.do(http.MethodGet, "/api/jobs/"+created.ID.String()+"/events?since=0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode(t, rec)
	assert.NotEmpty(t, events["events"])
	next := events["nextSeq"].(float64)
	assert.Positive(t, next)

	rec = env.do(http.MethodGet, "/api/jobs/"+created.ID.String()+"/events?since="+strings.TrimSpace(jsonNumber(next)), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec)["events"])

	rec = env.do(http.MethodGet, "/api/jobs/"+created.ID.String()+"/notes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Euclid")

	rec = env.do(http.MethodGet, "/api/jobs/"+created.ID.String()+"/notes.md", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "# "))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/markdown")

	rec = env.do(http.MethodGet, "/api/jobs/"+created.ID.String()+"/pdf", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get(echo.HeaderContentType))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), ".pdf")

	rec = env.do(http.MethodGet, "/api/jobs?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["jobs"], 1)

	// 完了済みジョブはキャンセルできない
	rec = env.do(http.MethodPost, "/api/jobs/"+created.ID.String()+"/cancel", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_JobNotFound(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		path string
		want int
	}{
		{name: "存在しないジョブ", path: "/api/jobs/" + uuid.NewString(), want: http.StatusNotFound},
		{name: "存在しないジョブのノート", path: "/api/jobs/" + uuid.NewString() + "/notes", want: http.StatusNotFound},
		{name: "不正なID", path: "/api/jobs/not-a-uuid", want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodGet, tt.path, "")
			assert.Equal(t, tt.want, rec.Code)
			assert.NotEmpty(t, decode(t, rec)["error"])
		})
	}
}

func jsonNumber(f float64) string {
	b, _ := json.Marshal(int64(f))
	return string(b)
}
