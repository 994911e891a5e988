package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jinford/study-notes/internal/core/ingestion/chunk"
)

// ErrNothingIndexed は教材から1件もチャンクを作成できなかった場合に返される
var ErrNothingIndexed = errors.New("no chunks were indexed")

// IndexResult はインデックス化の結果
type IndexResult struct {
	JobID            uuid.UUID
	SkippedResources int
	Stats            *PipelineStats
}

// IndexService は教材のインデックス化を提供する
type IndexService struct {
	pipeline *IndexPipeline
	detector *ContentTypeDetector
	logger   *slog.Logger
}

type indexServiceOptions struct {
	logger         *slog.Logger
	pipelineConfig *PipelineConfig
}

// IndexServiceOption はIndexServiceの設定オプション
type IndexServiceOption func(*indexServiceOptions)

// WithIndexLogger はロガーを設定する
func WithIndexLogger(logger *slog.Logger) IndexServiceOption {
	return func(o *indexServiceOptions) {
		o.logger = logger
	}
}

// WithIndexPipelineConfig はパイプライン設定を上書きする
func WithIndexPipelineConfig(cfg *PipelineConfig) IndexServiceOption {
	return func(o *indexServiceOptions) {
		o.pipelineConfig = cfg
	}
}

// NewIndexService は新しいIndexServiceを作成する
func NewIndexService(repo Repository, embedder Embedder, chunker chunk.Chunker, opts ...IndexServiceOption) *IndexService {
	options := &indexServiceOptions{}
	for _, opt := range opts {
		opt(options)
	}
	logger := options.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &IndexService{
		pipeline: NewIndexPipeline(repo, embedder, chunker, options.pipelineConfig, logger),
		detector: NewContentTypeDetector(),
		logger:   logger,
	}
}

// IndexResources は教材をチャンク化・Embeddingしてジョブ単位で保存する
// テキストとして扱えない教材はスキップする
func (s *IndexService) IndexResources(ctx context.Context, jobID uuid.UUID, resources []*Resource) (*IndexResult, error) {
	if jobID == uuid.Nil {
		return nil, fmt.Errorf("jobID is required")
	}

	targets := make([]*Resource, 0, len(resources))
	skipped := 0
	for _, r := range resources {
		if !s.detector.IsText(r.ContentType) {
			s.logger.Debug("テキスト以外の教材をスキップ", "title", r.Title, "contentType", r.ContentType)
			skipped++
			continue
		}
		targets = append(targets, r)
	}

	stats, err := s.pipeline.Process(ctx, jobID, targets)
	if err != nil {
		return nil, fmt.Errorf("failed to index resources: %w", err)
	}

	indexed := stats.TotalChunks - stats.FailedEmbeddings
	if indexed <= 0 {
		return nil, fmt.Errorf("%w: %d resources, %d failed embeddings", ErrNothingIndexed, len(targets), stats.FailedEmbeddings)
	}

	s.logger.Info("教材のインデックス化が完了しました",
		"jobID", jobID,
		"resources", stats.ProcessedResources,
		"chunks", stats.TotalChunks,
		"skipped", skipped,
	)

	return &IndexResult{
		JobID:            jobID,
		SkippedResources: skipped,
		Stats:            stats,
	}, nil
}
