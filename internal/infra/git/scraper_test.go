package git

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/study-notes/internal/core/catalog"
	"github.com/jinford/study-notes/internal/core/ingestion"
)

// initMaterialRepo は教材ファイルをコミットしたローカルリポジトリを作る
func initMaterialRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	files := map[string]string{
		"science/class-9/motion.md":       "# Speed and Velocity\n\nSpeed is the distance travelled per unit time. Velocity is speed in a given direction.\n",
		"science/class-9/acceleration.md": "# Acceleration\n\nAcceleration is the rate of change of velocity.\n",
		"drafts/speed.md":                 "# Speed draft\n\nSpeed velocity notes.\n",
		"README.md":                       "# Materials\n\nShared notes.\n",
		".notesignore":                    "drafts/\n",
	}
	for name, content := range files {
		full := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
		_, err := wt.Add(name)
		require.NoError(t, err)
	}

	_, err = wt.Commit("add materials", &gogit.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return dir
}

func newTestScraper(t *testing.T) *Scraper {
	t.Helper()
	s, err := NewScraper(NewClient("", ""), "https://example.com/org/materials.git", t.TempDir(),
		WithScraperLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)
	return s
}

func TestNewScraper_RequiresRepository(t *testing.T) {
	_, err := NewScraper(NewClient("", ""), "", t.TempDir())
	require.ErrorIs(t, err, ErrRepositoryNotConfigured)
}

func TestScraper_LoadDocuments(t *testing.T) {
	dir := initMaterialRepo(t)
	s := newTestScraper(t)
	ctx := context.Background()

	docs, err := s.loadDocuments(ctx, dir, "HEAD")
	require.NoError(t, err)

	paths := make([]string, 0, len(docs))
	for _, d := range docs {
		paths = append(paths, d.path)
	}
	assert.ElementsMatch(t, []string{
		"science/class-9/motion.md",
		"science/class-9/acceleration.md",
		"README.md",
	}, paths)

	again, err := s.loadDocuments(ctx, dir, "HEAD")
	require.NoError(t, err)
	require.NotEmpty(t, again)
	assert.Same(t, docs[0], again[0])
}

func TestScraper_Match(t *testing.T) {
	dir := initMaterialRepo(t)
	s := newTestScraper(t)

	docs, err := s.loadDocuments(context.Background(), dir, "HEAD")
	require.NoError(t, err)

	jobID := uuid.New()
	resources := s.match(ingestion.ScrapeRequest{
		JobID:   jobID,
		Request: catalog.Request{Class: 9, Board: "CBSE", Subject: "Science", Chapter: "Motion"},
		Topics: []catalog.Topic{
			{Title: "Speed and Velocity", Keywords: []string{"speed", "velocity"}},
			{Title: "Acceleration", Keywords: []string{"acceleration"}},
			{Title: "Photosynthesis"},
		},
		PerTopic: 1,
	}, docs)

	require.Len(t, resources, 2)

	assert.Equal(t, "Speed and Velocity", resources[0].Topic)
	assert.Equal(t, "Speed and Velocity", resources[0].Title)
	assert.Equal(t, "https://example.com/org/materials.git#science/class-9/motion.md", resources[0].URL)
	assert.Equal(t, ingestion.SourceGit, resources[0].Source)
	assert.Equal(t, jobID, resources[0].JobID)
	assert.NotEmpty(t, resources[0].ContentHash)

	assert.Equal(t, "Acceleration", resources[1].Topic)
	assert.Contains(t, resources[1].Content, "rate of change of velocity")
}

func TestTopicScore(t *testing.T) {
	doc := &document{terms: termSet("Life processes: nutrition and respiration")}

	assert.InDelta(t, 1.0, topicScore(catalog.Topic{Title: "Life Process"}, doc), 1e-9)
	assert.InDelta(t, 0.5, topicScore(catalog.Topic{Title: "Nutrition", Keywords: []string{"photosynthesis", "enzymes"}}, doc), 1e-9)
	assert.Zero(t, topicScore(catalog.Topic{Title: "a"}, doc))
}

func TestDocumentTitle(t *testing.T) {
	assert.Equal(t, "Real Numbers", documentTitle("maths/real.md", "intro\n## Real Numbers\n"))
	assert.Equal(t, "euclid division lemma", documentTitle("maths/euclid_division-lemma.txt", "plain text"))
}

func TestClient_URLToDirectoryName(t *testing.T) {
	c := NewClient("", "")

	tests := []struct {
		url  string
		want string
	}{
		{"https://github.com/org/materials.git", filepath.Join("github.com", "org", "materials")},
		{"git@github.com:org/materials.git", filepath.Join("github.com", "org", "materials")},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := c.URLToDirectoryName(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_Open(t *testing.T) {
	dir := initMaterialRepo(t)
	c := NewClient("", "")

	snap, err := c.Open(dir, "")
	require.NoError(t, err)
	assert.Len(t, snap.Commit, 40)

	var walked []string
	require.NoError(t, snap.Walk(context.Background(), func(path string, size int64, read func() (string, error)) error {
		walked = append(walked, path)
		return nil
	}))
	assert.Contains(t, walked, "science/class-9/motion.md")
	assert.Len(t, walked, 5)

	_, err = c.Open(dir, "no-such-branch")
	assert.Error(t, err)
}
