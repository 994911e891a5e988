package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/study-notes/internal/core/catalog"
	"github.com/jinford/study-notes/internal/core/job"
	"github.com/jinford/study-notes/internal/platform/config"
	"github.com/jinford/study-notes/internal/platform/container"
)

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

func newMockContainer(t *testing.T) *container.Container {
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
			MaxConcurrentJobs:  1,
			MaxTopics:          2,
			ResourcesPerTopic:  2,
			RetrievalTopK:      3,
			RetrievalMinScore:  0.01,
			GenerationWorkers:  2,
			QualityMinScore:    0.5,
			HashEmbedDimension: 64,
		},
		OutputDir: t.TempDir(),
	}
	c, err := container.New(context.Background(), cfg,
		container.WithContainerLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		container.WithContainerTokenCounter(wordCounter{}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Shutdown(context.Background()) })
	return c
}

func TestGenerateNotes_PrintsProgressAndWritesMarkdown(t *testing.T) {
	c := newMockContainer(t)
	mdPath := filepath.Join(t.TempDir(), "out", "notes.md")
	var out bytes.Buffer

	finished, err := generateNotes(context.Background(), c, catalog.Request{
		Class:   10,
		Board:   "CBSE",
		Subject: "Science",
		Chapter: "Motion",
	}, mdPath, &out)
	require.NoError(t, err)
	assert.Equal(t, job.StateCompleted, finished.State)

	printed := out.String()
	assert.Contains(t, printed, "ジョブ "+finished.ID.String())
	assert.Contains(t, printed, "[100%]")
	assert.Contains(t, printed, "Markdown: "+mdPath)

	md, err := os.ReadFile(mdPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(md), "# "))

	_, err = os.Stat(finished.ArtifactPath)
	assert.NoError(t, err)
}

func TestGenerateNotes_ReportsFailedJob(t *testing.T) {
	c := newMockContainer(t)
	var out bytes.Buffer

	_, err := generateNotes(context.Background(), c, catalog.Request{
		Class:   10,
		Board:   "XYZ",
		Subject: "Science",
		Chapter: "Motion",
	}, "", &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(job.StateFailed))
	assert.Contains(t, out.String(), "エラー")
}

func TestPrintCatalog(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)

	tests := []struct {
		name    string
		board   string
		class   int
		subject string
		want    string
		wantErr bool
	}{
		{name: "委員会一覧", want: "CBSE"},
		{name: "学年一覧", board: "CBSE", want: "classes: 1,"},
		{name: "教科一覧", board: "CBSE", class: 10, want: "Science"},
		{name: "単元一覧", board: "CBSE", class: 10, subject: "Mathematics", want: "Real Numbers"},
		{name: "該当なし", board: "ICSE", class: 8, subject: "Social Science", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := printCatalog(&out, cat, tt.board, tt.class, tt.subject)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, out.String(), tt.want)
		})
	}
}

func TestPrintJobs(t *testing.T) {
	var out bytes.Buffer
	id := uuid.New()
	printJobs(&out, []job.Job{{
		ID:       id,
		State:    job.StateGeneratingContent,
		Progress: 70,
		Request:  catalog.Request{Class: 9, Board: "ICSE", Subject: "Physics", Chapter: "Force"},
	}})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], id.String())
	assert.Contains(t, lines[1], " 70%")
	assert.Contains(t, lines[1], "Class 9 ICSE Physics / Force")
}
