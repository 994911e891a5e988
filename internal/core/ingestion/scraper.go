package ingestion

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jinford/study-notes/internal/core/catalog"
	"golang.org/x/sync/errgroup"
)

// ErrNoResources は全ての取得元が失敗、または教材が0件の場合に返される
var ErrNoResources = errors.New("no study resources found")

// ScrapeRequest は教材取得のパラメータ
type ScrapeRequest struct {
	JobID    uuid.UUID
	Request  catalog.Request
	Topics   []catalog.Topic
	PerTopic int // トピックあたりの最大件数
}

// Scraper は教材の取得元ごとの実装を提供するインターフェース
type Scraper interface {
	// Name は取得元の名前を返す
	Name() string

	// Scrape はトピックごとの教材を取得する
	Scrape(ctx context.Context, req ScrapeRequest) ([]*Resource, error)
}

// MultiScraper は複数の取得元へ並行に問い合わせ、結果を統合する
type MultiScraper struct {
	scrapers []Scraper
	detector *ContentTypeDetector
	logger   *slog.Logger
	now      func() time.Time
}

// MultiScraperOption はMultiScraperの設定オプション
type MultiScraperOption func(*MultiScraper)

// WithScraperLogger はロガーを設定する
func WithScraperLogger(logger *slog.Logger) MultiScraperOption {
	return func(m *MultiScraper) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMultiScraper は新しいMultiScraperを作成する
func NewMultiScraper(scrapers []Scraper, opts ...MultiScraperOption) *MultiScraper {
	m := &MultiScraper{
		scrapers: scrapers,
		detector: NewContentTypeDetector(),
		logger:   slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name は取得元の名前を返す
func (m *MultiScraper) Name() string {
	names := make([]string, 0, len(m.scrapers))
	for _, s := range m.scrapers {
		names = append(names, s.Name())
	}
	return strings.Join(names, "+")
}

// Scrape は全取得元の結果を統合する
// 一部の取得元の失敗は許容し、全て失敗した場合のみエラーを返す
// 内容ハッシュで重複を除外し、トピックあたり PerTopic 件に制限する
func (m *MultiScraper) Scrape(ctx context.Context, req ScrapeRequest) ([]*Resource, error) {
	if len(m.scrapers) == 0 {
		return nil, fmt.Errorf("%w: no scraper configured", ErrNoResources)
	}

	results := make([][]*Resource, len(m.scrapers))
	errs := make([]error, len(m.scrapers))

	// 個々の失敗で他の取得元を止めないため、エラーはgoroutineからは返さない
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range m.scrapers {
		g.Go(func() error {
			resources, err := s.Scrape(gctx, req)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", s.Name(), err)
				m.logger.Warn("教材の取得に失敗しました",
					"source", s.Name(),
					"jobID", req.JobID,
					"error", err,
				)
				return nil
			}
			results[i] = resources
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == len(m.scrapers) {
		return nil, fmt.Errorf("%w: %w", ErrNoResources, errors.Join(errs...))
	}

	var merged []*Resource
	seenHash := make(map[string]struct{})
	perTopic := make(map[string]int)
	for _, resources := range results {
		for _, r := range resources {
			if r == nil || strings.TrimSpace(r.Content) == "" {
				continue
			}
			m.normalize(req.JobID, r)

			if _, dup := seenHash[r.ContentHash]; dup {
				continue
			}
			key := strings.ToLower(r.Topic)
			if req.PerTopic > 0 && perTopic[key] >= req.PerTopic {
				continue
			}
			seenHash[r.ContentHash] = struct{}{}
			perTopic[key]++
			merged = append(merged, r)
		}
	}

	if len(merged) == 0 {
		return nil, ErrNoResources
	}

	m.logger.Info("教材を取得しました",
		"jobID", req.JobID,
		"resources", len(merged),
		"failedSources", failed,
	)
	return merged, nil
}

// normalize はID・ハッシュ・コンテンツタイプなどの欠損を補う
func (m *MultiScraper) normalize(jobID uuid.UUID, r *Resource) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.JobID = jobID
	if r.ContentHash == "" {
		r.ContentHash = ComputeContentHash(r.Content)
	}
	if r.ContentType == "" {
		r.ContentType = m.detector.DetectContentType(r.URL, []byte(r.Content))
	}
	if r.FetchedAt.IsZero() {
		r.FetchedAt = m.now()
	}
}

// ComputeContentHash はコンテンツのSHA256ハッシュを計算する
func ComputeContentHash(content string) string {
	hash := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", hash)
}
