package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/jinford/study-notes/internal/core/catalog"
	"github.com/jinford/study-notes/internal/core/ingestion"
	"github.com/jinford/study-notes/internal/infra/git/filter"
)

const (
	defaultRef      = "main"
	defaultMinMatch = 0.5
	maxFileSize     = 256 * 1024
	maxContentChars = 20000
)

// ErrRepositoryNotConfigured は教材リポジトリのURLが未設定の場合に返される
var ErrRepositoryNotConfigured = errors.New("study material repository is not configured")

// Scraper はGitリポジトリに置かれた教材ファイルをトピックに対応付けて取得する
type Scraper struct {
	client   *Client
	repoURL  string
	ref      string
	cloneDir string
	minMatch float64
	detector *ingestion.ContentTypeDetector
	logger   *slog.Logger

	mu       sync.Mutex
	commit   string
	docCache []*document
}

var _ ingestion.Scraper = (*Scraper)(nil)

// ScraperOption はScraperの設定オプション
type ScraperOption func(*Scraper)

// WithRef は取得するブランチ・タグを設定する
func WithRef(ref string) ScraperOption {
	return func(s *Scraper) {
		if ref != "" {
			s.ref = ref
		}
	}
}

// WithMinMatch はトピックとの一致度の下限を設定する
func WithMinMatch(score float64) ScraperOption {
	return func(s *Scraper) {
		if score > 0 {
			s.minMatch = score
		}
	}
}

// WithScraperLogger はロガーを設定する
func WithScraperLogger(logger *slog.Logger) ScraperOption {
	return func(s *Scraper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScraper は新しいScraperを作成する
func NewScraper(client *Client, repoURL, cloneDir string, opts ...ScraperOption) (*Scraper, error) {
	if repoURL == "" {
		return nil, ErrRepositoryNotConfigured
	}
	s := &Scraper{
		client:   client,
		repoURL:  repoURL,
		ref:      defaultRef,
		cloneDir: cloneDir,
		minMatch: defaultMinMatch,
		detector: ingestion.NewContentTypeDetector(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Name は取得元の名前を返す
func (s *Scraper) Name() string {
	return string(ingestion.SourceGit)
}

// Scrape はリポジトリを同期し、各トピックに一致する教材ファイルを返す
func (s *Scraper) Scrape(ctx context.Context, req ingestion.ScrapeRequest) ([]*ingestion.Resource, error) {
	dirName, err := s.client.URLToDirectoryName(s.repoURL)
	if err != nil {
		return nil, err
	}
	repoPath := filepath.Join(s.cloneDir, dirName)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.client.Sync(ctx, s.repoURL, repoPath, s.ref); err != nil {
		return nil, fmt.Errorf("failed to sync repository: %w", err)
	}

	docs, err := s.loadDocuments(ctx, repoPath, s.ref)
	if err != nil {
		return nil, err
	}

	resources := s.match(req, docs)
	s.logger.Info("リポジトリから教材を取得しました",
		"repository", s.repoURL,
		"commit", s.commit,
		"documents", len(docs),
		"resources", len(resources),
	)
	return resources, nil
}

// document はトピック照合用に読み込んだ教材ファイル
type document struct {
	path        string
	title       string
	content     string
	contentType string
	terms       map[string]struct{}
}

// loadDocuments は ref のテキストファイルを読み込む
// 同じコミットであれば前回の読み込み結果を再利用する
func (s *Scraper) loadDocuments(ctx context.Context, repoPath, ref string) ([]*document, error) {
	snap, err := s.client.Open(repoPath, ref)
	if err != nil {
		return nil, err
	}
	if snap.Commit == s.commit && s.docCache != nil {
		return s.docCache, nil
	}

	ignore, err := filter.NewIgnoreFilter(repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load ignore filter: %w", err)
	}

	var docs []*document
	err = snap.Walk(ctx, func(filePath string, size int64, read func() (string, error)) error {
		if ignore.ShouldIgnore(filePath) || size == 0 || size > maxFileSize {
			return nil
		}

		content, err := read()
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", filePath, err)
		}

		contentType := s.detector.DetectContentType(filePath, []byte(content))
		if !s.detector.IsText(contentType) {
			return nil
		}
		if len(content) > maxContentChars {
			content = content[:maxContentChars]
		}

		title := documentTitle(filePath, content)
		docs = append(docs, &document{
			path:        filePath,
			title:       title,
			content:     content,
			contentType: contentType,
			terms:       termSet(filePath + " " + title + " " + content),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.commit = snap.Commit
	s.docCache = docs
	return docs, nil
}

type scoredDocument struct {
	doc   *document
	score float64
}

// match は各トピックについて一致度の高い順に PerTopic 件を選ぶ
func (s *Scraper) match(req ingestion.ScrapeRequest, docs []*document) []*ingestion.Resource {
	subjectTerms := termSet(req.Request.Subject)

	var resources []*ingestion.Resource
	for _, topic := range req.Topics {
		var candidates []scoredDocument
		for _, doc := range docs {
			score := topicScore(topic, doc)
			if score < s.minMatch {
				continue
			}
			// 教科名がパスに含まれる資料を優先する
			if containsAll(termSet(doc.path), subjectTerms) {
				score += 0.1
			}
			candidates = append(candidates, scoredDocument{doc: doc, score: score})
		}

		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].score != candidates[j].score {
				return candidates[i].score > candidates[j].score
			}
			return candidates[i].doc.path < candidates[j].doc.path
		})

		for i, c := range candidates {
			if req.PerTopic > 0 && i >= req.PerTopic {
				break
			}
			resources = append(resources, &ingestion.Resource{
				JobID:       req.JobID,
				Topic:       topic.Title,
				Title:       c.doc.title,
				URL:         s.repoURL + "#" + c.doc.path,
				Source:      ingestion.SourceGit,
				ContentType: c.doc.contentType,
				Content:     c.doc.content,
				ContentHash: ingestion.ComputeContentHash(c.doc.content),
			})
		}
	}
	return resources
}

// topicScore はトピック名（重み2）とキーワード（重み1）の語が資料に含まれる割合を返す
func topicScore(topic catalog.Topic, doc *document) float64 {
	weights := make(map[string]float64)
	for term := range termSet(topic.Title) {
		weights[term] = 2
	}
	for _, kw := range topic.Keywords {
		for term := range termSet(kw) {
			if _, ok := weights[term]; !ok {
				weights[term] = 1
			}
		}
	}
	if len(weights) == 0 {
		return 0
	}

	var total, hit float64
	for term, w := range weights {
		total += w
		if _, ok := doc.terms[term]; ok {
			hit += w
		}
	}
	return hit / total
}

// documentTitle は最初のMarkdown見出し、なければファイル名から題名を作る
func documentTitle(filePath, content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			if title := strings.TrimSpace(strings.TrimLeft(line, "#")); title != "" {
				return title
			}
		}
	}
	base := strings.TrimSuffix(path.Base(filePath), path.Ext(filePath))
	return strings.Join(strings.FieldsFunc(base, func(r rune) bool { return r == '-' || r == '_' }), " ")
}

var stopWords = map[string]struct{}{
	"and": {}, "the": {}, "for": {}, "with": {}, "from": {}, "into": {},
	"its": {}, "their": {}, "our": {}, "are": {}, "was": {}, "this": {}, "that": {},
}

// termSet は英数字の語を小文字化し、複数形の s を落とした集合を返す
func termSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, f := range fields {
		if len(f) < 3 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		set[stem(f)] = struct{}{}
	}
	return set
}

func stem(word string) string {
	switch {
	case len(word) > 4 && strings.HasSuffix(word, "sses"):
		return strings.TrimSuffix(word, "es")
	case len(word) > 3 && strings.HasSuffix(word, "s") && !strings.HasSuffix(word, "ss"):
		return strings.TrimSuffix(word, "s")
	}
	return word
}

func containsAll(set, sub map[string]struct{}) bool {
	if len(sub) == 0 {
		return false
	}
	for term := range sub {
		if _, ok := set[term]; !ok {
			return false
		}
	}
	return true
}
