package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinford/study-notes/internal/core/ingestion/chunk"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultChunkWorkerCount はデフォルトのチャンク分割ワーカー数（CPU バウンド）
	DefaultChunkWorkerCount = 2
	// DefaultEmbeddingWorkerCount はデフォルトのEmbeddingワーカー数（I/O バウンド）
	DefaultEmbeddingWorkerCount = 4
	// DefaultEmbeddingBatchSize はEmbedding APIのデフォルトバッチサイズ
	DefaultEmbeddingBatchSize = 100
	// DefaultFailOnEmbeddingError はEmbeddingエラー時にパイプラインを停止するかのデフォルト値
	DefaultFailOnEmbeddingError = false
	// MinBatchSize は最小バッチサイズ（MaxBatchSize()が0を返した場合のフォールバック）
	MinBatchSize = 1
)

// PipelineConfig はパイプライン処理の設定
type PipelineConfig struct {
	// ChunkWorkerCount はチャンク分割ワーカー数（CPU バウンド処理用）
	ChunkWorkerCount int
	// EmbeddingWorkerCount はEmbedding生成ワーカー数（I/O バウンド処理用）
	EmbeddingWorkerCount int
	// EmbeddingBatchSize はEmbeddingバッチサイズ（Embedder.MaxBatchSize()でクリップされる）
	EmbeddingBatchSize int
	// FailOnEmbeddingError はEmbeddingエラー時にパイプラインを停止するかどうか
	FailOnEmbeddingError bool
}

// DefaultPipelineConfig はデフォルトのパイプライン設定を返す
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		ChunkWorkerCount:     DefaultChunkWorkerCount,
		EmbeddingWorkerCount: DefaultEmbeddingWorkerCount,
		EmbeddingBatchSize:   DefaultEmbeddingBatchSize,
		FailOnEmbeddingError: DefaultFailOnEmbeddingError,
	}
}

// PipelineStats はパイプライン処理の統計情報
type PipelineStats struct {
	ProcessedResources  int
	TotalChunks         int // Embeddingステージへ渡したチャンク数
	ExpectedChunks      int // チャンク化で得たチャンク数
	FailedResources     int // チャンク化または保存に失敗した教材数
	FailedChunks        int
	FailedEmbeddings    int
	EmbeddingMismatches int // Embedderが入力と異なる数のベクトルを返した回数
}

// statsRecorder はワーカーから統計を更新する
type statsRecorder struct {
	mu    sync.Mutex
	stats PipelineStats
}

func (r *statsRecorder) update(fn func(*PipelineStats)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.stats)
}

func (r *statsRecorder) snapshot() *PipelineStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.stats
	return &s
}

// IndexPipeline は教材をチャンク化し、Embeddingを付けて保存する
type IndexPipeline struct {
	repository Repository
	embedder   Embedder
	chunker    chunk.Chunker
	config     *PipelineConfig
	logger     *slog.Logger
	now        func() time.Time

	// 実際に使用するバッチサイズ（Embedder.MaxBatchSize()でクリップ済み）
	effectiveBatchSize int
}

// NewIndexPipeline は新しいIndexPipelineを作成する
func NewIndexPipeline(
	repository Repository,
	embedder Embedder,
	chunker chunk.Chunker,
	config *PipelineConfig,
	logger *slog.Logger,
) *IndexPipeline {
	if config == nil {
		config = DefaultPipelineConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	// バッチサイズをEmbedderの最大値でクリップ
	effectiveBatchSize := config.EmbeddingBatchSize
	maxBatchSize := embedder.MaxBatchSize()

	// MaxBatchSize が0以下の場合はフォールバック
	if maxBatchSize <= 0 {
		logger.Warn("Embedder.MaxBatchSize()が無効な値を返しました。フォールバック値を使用します",
			"returned", maxBatchSize,
			"fallback", MinBatchSize,
		)
		maxBatchSize = MinBatchSize
	}

	if effectiveBatchSize > maxBatchSize {
		logger.Info("EmbeddingBatchSizeをEmbedderの最大値でクリップ",
			"configured", effectiveBatchSize,
			"max", maxBatchSize,
		)
		effectiveBatchSize = maxBatchSize
	}

	// effectiveBatchSizeも0以下の場合はフォールバック
	if effectiveBatchSize <= 0 {
		effectiveBatchSize = MinBatchSize
	}

	return &IndexPipeline{
		repository:         repository,
		embedder:           embedder,
		chunker:            chunker,
		config:             config,
		logger:             logger,
		now:                func() time.Time { return time.Now().UTC() },
		effectiveBatchSize: effectiveBatchSize,
	}
}

// Process は教材をチャンク化・保存し、バッチ単位でEmbeddingを付与する
// 教材単位の失敗は統計に数えて続行し、FailOnEmbeddingError の場合のみ全体を中断する
func (p *IndexPipeline) Process(ctx context.Context, jobID uuid.UUID, resources []*Resource) (*PipelineStats, error) {
	rec := &statsRecorder{}
	g, gctx := errgroup.WithContext(ctx)

	queue := make(chan *Resource)
	chunks := make(chan *Chunk, p.config.EmbeddingWorkerCount*p.effectiveBatchSize)

	g.Go(func() error {
		defer close(queue)
		for _, r := range resources {
			select {
			case queue <- r:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	var chunkers sync.WaitGroup
	for range p.config.ChunkWorkerCount {
		chunkers.Add(1)
		g.Go(func() error {
			defer chunkers.Done()
			for r := range queue {
				if gctx.Err() != nil {
					return nil
				}
				p.chunkResource(gctx, jobID, r, chunks, rec)
			}
			return nil
		})
	}
	g.Go(func() error {
		chunkers.Wait()
		close(chunks)
		return nil
	})

	for range p.config.EmbeddingWorkerCount {
		g.Go(func() error {
			return p.embedChunks(gctx, chunks, rec)
		})
	}

	err := g.Wait()
	stats := rec.snapshot()
	if err != nil {
		return stats, fmt.Errorf("indexing aborted: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("indexing interrupted: %w", err)
	}

	if stats.FailedResources > 0 || stats.FailedChunks > 0 || stats.FailedEmbeddings > 0 || stats.EmbeddingMismatches > 0 {
		p.logger.Warn("インデックス化が一部失敗しました",
			"jobID", jobID,
			"processedResources", stats.ProcessedResources,
			"totalChunks", stats.TotalChunks,
			"failedResources", stats.FailedResources,
			"failedChunks", stats.FailedChunks,
			"failedEmbeddings", stats.FailedEmbeddings,
			"embeddingMismatches", stats.EmbeddingMismatches,
		)
	}
	return stats, nil
}

// chunkResource は教材1件をチャンク化して保存し、Embeddingステージへ送る
func (p *IndexPipeline) chunkResource(ctx context.Context, jobID uuid.UUID, r *Resource, out chan<- *Chunk, rec *statsRecorder) {
	pieces, err := p.chunker.Chunk(ctx, r.Content, r.ContentType)
	if err != nil {
		p.logger.Warn("チャンク化に失敗", "jobID", jobID, "title", r.Title, "error", err)
		rec.update(func(s *PipelineStats) { s.FailedResources++ })
		return
	}

	now := p.now()
	chunks := make([]*Chunk, 0, len(pieces))
	for _, piece := range pieces {
		chunks = append(chunks, &Chunk{
			ID:          uuid.New(),
			JobID:       jobID,
			ResourceID:  r.ID,
			Topic:       r.Topic,
			Ordinal:     piece.Ordinal,
			Heading:     piece.Heading,
			Content:     piece.Content,
			ContentHash: ComputeContentHash(piece.Content),
			TokenCount:  piece.Tokens,
			SourceTitle: r.Title,
			SourceURL:   r.URL,
			CreatedAt:   now,
		})
	}
	if len(chunks) == 0 {
		rec.update(func(s *PipelineStats) { s.ProcessedResources++ })
		return
	}

	if err := p.repository.BatchCreateChunks(ctx, chunks); err != nil {
		p.logger.Warn("チャンクの保存に失敗", "jobID", jobID, "title", r.Title, "error", err)
		rec.update(func(s *PipelineStats) {
			s.FailedResources++
			s.ExpectedChunks += len(chunks)
			s.FailedChunks += len(chunks)
		})
		return
	}

	for _, ch := range chunks {
		select {
		case out <- ch:
		case <-ctx.Done():
			return
		}
	}
	rec.update(func(s *PipelineStats) {
		s.ProcessedResources++
		s.TotalChunks += len(chunks)
		s.ExpectedChunks += len(chunks)
	})
}

// embedChunks はチャンクをバッチにまとめてEmbeddingを生成・保存する
func (p *IndexPipeline) embedChunks(ctx context.Context, in <-chan *Chunk, rec *statsRecorder) error {
	batch := make([]*Chunk, 0, p.effectiveBatchSize)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ch, ok := <-in:
			if !ok {
				return p.embedBatch(ctx, batch, rec)
			}
			batch = append(batch, ch)
			if len(batch) < p.effectiveBatchSize {
				continue
			}
			if err := p.embedBatch(ctx, batch, rec); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
}

// embedBatch は FailOnEmbeddingError の場合のみエラーを返す
func (p *IndexPipeline) embedBatch(ctx context.Context, batch []*Chunk, rec *statsRecorder) error {
	if len(batch) == 0 {
		return nil
	}

	texts := make([]string, len(batch))
	for i, ch := range batch {
		texts[i] = ch.Content
	}

	vectors, err := p.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		p.logger.Error("Embedding生成に失敗", "batchSize", len(batch), "error", err)
		rec.update(func(s *PipelineStats) { s.FailedEmbeddings += len(batch) })
		return p.embeddingFailure(fmt.Errorf("failed to embed batch: %w", err))
	}

	if len(vectors) != len(batch) {
		p.logger.Error("Embeddingのベクトル数が一致しません", "expected", len(batch), "actual", len(vectors))
		// 余分なベクトルは捨てるだけなので不足分のみ失敗に数える
		missing := max(len(batch)-len(vectors), 0)
		rec.update(func(s *PipelineStats) {
			s.EmbeddingMismatches++
			s.FailedEmbeddings += missing
		})
		if err := p.embeddingFailure(fmt.Errorf("embedder returned %d vectors for %d inputs", len(vectors), len(batch))); err != nil {
			return err
		}
	}

	n := min(len(vectors), len(batch))
	embeddings := make([]*Embedding, n)
	for i := range n {
		embeddings[i] = &Embedding{
			ChunkID: batch[i].ID,
			Vector:  vectors[i],
			Model:   p.embedder.ModelName(),
		}
	}
	if err := p.repository.BatchCreateEmbeddings(ctx, embeddings); err != nil {
		p.logger.Error("Embeddingの保存に失敗", "count", n, "error", err)
		rec.update(func(s *PipelineStats) { s.FailedEmbeddings += n })
		return p.embeddingFailure(fmt.Errorf("failed to store embeddings: %w", err))
	}
	return nil
}

func (p *IndexPipeline) embeddingFailure(err error) error {
	if p.config.FailOnEmbeddingError {
		return err
	}
	return nil
}
