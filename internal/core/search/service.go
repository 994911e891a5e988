package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jinford/study-notes/internal/core/catalog"
)

const (
	// DefaultLimit は検索件数のデフォルト値
	DefaultLimit = 10
	// DefaultTopK はトピックあたりの取得件数のデフォルト値
	DefaultTopK = 5
)

// Embedder はテキストのEmbedding生成インターフェース
type Embedder interface {
	// Embed は単一テキストのEmbeddingを生成する
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SearchService は検索のビジネスロジックを提供する
type SearchService struct {
	repo     Repository
	embedder Embedder
	logger   *slog.Logger
}

// SearchServiceOption はSearchServiceの設定オプション
type SearchServiceOption func(*SearchService)

// WithSearchLogger はロガーを設定する
func WithSearchLogger(logger *slog.Logger) SearchServiceOption {
	return func(s *SearchService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSearchService は新しいSearchServiceを作成する
func NewSearchService(repo Repository, embedder Embedder, opts ...SearchServiceOption) *SearchService {
	s := &SearchService{
		repo:     repo,
		embedder: embedder,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SearchParams は検索パラメータを表す
type SearchParams struct {
	JobID  uuid.UUID
	Query  string
	Limit  int
	Filter *SearchFilter
}

// Search はクエリに基づいてベクトル検索を実行する
func (s *SearchService) Search(ctx context.Context, params SearchParams) ([]*SearchResult, error) {
	// バリデーション
	if strings.TrimSpace(params.Query) == "" {
		return nil, fmt.Errorf("query is required")
	}
	if params.JobID == uuid.Nil {
		return nil, fmt.Errorf("jobID is required")
	}

	// クエリをEmbeddingに変換
	queryVector, err := s.embedder.Embed(ctx, params.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// デフォルトのLimit設定
	limit := params.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	// フィルタの準備
	filter := SearchFilter{}
	if params.Filter != nil {
		filter = *params.Filter
	}

	results, err := s.repo.SearchChunks(ctx, params.JobID, queryVector, limit, filter)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	return results, nil
}

// RetrieveParams はトピック別取得のパラメータ
type RetrieveParams struct {
	JobID    uuid.UUID
	Subject  string
	Chapter  string
	Topics   []catalog.Topic
	TopK     int
	MinScore float64
}

// RetrieveForTopics はトピックごとに関連チャンクを取得する
// クエリはトピック名・キーワード・教科・単元から組み立てる
func (s *SearchService) RetrieveForTopics(ctx context.Context, params RetrieveParams) ([]*TopicContext, error) {
	if params.JobID == uuid.Nil {
		return nil, fmt.Errorf("jobID is required")
	}
	topK := params.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	contexts := make([]*TopicContext, 0, len(params.Topics))
	for _, topic := range params.Topics {
		query := BuildTopicQuery(topic, params.Subject, params.Chapter)
		results, err := s.Search(ctx, SearchParams{
			JobID:  params.JobID,
			Query:  query,
			Limit:  topK,
			Filter: &SearchFilter{MinScore: params.MinScore},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to retrieve context for topic %q: %w", topic.Title, err)
		}

		if len(results) == 0 {
			s.logger.Warn("トピックに関連するチャンクが見つかりません",
				"jobID", params.JobID,
				"topic", topic.Title,
			)
		}

		contexts = append(contexts, &TopicContext{
			Topic:   topic,
			Query:   query,
			Results: results,
		})
	}

	return contexts, nil
}

// BuildTopicQuery はトピックの検索クエリを組み立てる
func BuildTopicQuery(topic catalog.Topic, subject, chapter string) string {
	parts := []string{topic.Title}
	parts = append(parts, topic.Keywords...)
	parts = append(parts, topic.Subtopics...)
	if chapter != "" {
		parts = append(parts, chapter)
	}
	if subject != "" {
		parts = append(parts, subject)
	}
	return strings.Join(parts, " ")
}
