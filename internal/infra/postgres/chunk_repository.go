package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/jinford/study-notes/internal/core/ingestion"
	"github.com/jinford/study-notes/internal/core/search"
	"github.com/jinford/study-notes/internal/infra/postgres/sqlc"
)

// ChunkRepository はチャンクとEmbeddingをpgvectorで保持し、コサイン距離で検索する
type ChunkRepository struct {
	q sqlc.Querier
}

// NewChunkRepository は新しい ChunkRepository を返す
func NewChunkRepository(q sqlc.Querier) *ChunkRepository {
	return &ChunkRepository{q: q}
}

var (
	_ ingestion.Repository = (*ChunkRepository)(nil)
	_ search.Repository    = (*ChunkRepository)(nil)
)

// BatchCreateChunks はチャンクをCOPYで一括作成する
func (r *ChunkRepository) BatchCreateChunks(ctx context.Context, chunks []*ingestion.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	rows := make([]sqlc.CreateChunkBatchParams, 0, len(chunks))
	for _, chunk := range chunks {
		rows = append(rows, sqlc.CreateChunkBatchParams{
			ID:          UUIDToPgtype(chunk.ID),
			JobID:       UUIDToPgtype(chunk.JobID),
			ResourceID:  UUIDToPgtype(chunk.ResourceID),
			Topic:       chunk.Topic,
			Ordinal:     int32(chunk.Ordinal),
			Heading:     chunk.Heading,
			Content:     chunk.Content,
			ContentHash: chunk.ContentHash,
			TokenCount:  int32(chunk.TokenCount),
			SourceTitle: chunk.SourceTitle,
			SourceUrl:   chunk.SourceURL,
			CreatedAt:   TimeToPgtype(chunk.CreatedAt),
		})
	}

	if _, err := r.q.CreateChunkBatch(ctx, rows); err != nil {
		return fmt.Errorf("failed to batch create chunks: %w", err)
	}
	return nil
}

// BatchCreateEmbeddings はEmbeddingをバッチで一括作成する
func (r *ChunkRepository) BatchCreateEmbeddings(ctx context.Context, embeddings []*ingestion.Embedding) error {
	if len(embeddings) == 0 {
		return nil
	}

	rows := make([]sqlc.CreateEmbeddingBatchParams, 0, len(embeddings))
	for _, embedding := range embeddings {
		rows = append(rows, sqlc.CreateEmbeddingBatchParams{
			ChunkID: UUIDToPgtype(embedding.ChunkID),
			Vector:  pgvector.NewVector(embedding.Vector),
			Model:   embedding.Model,
		})
	}

	var batchErr error
	results := r.q.CreateEmbeddingBatch(ctx, rows)
	results.Exec(func(i int, err error) {
		if err != nil && batchErr == nil {
			batchErr = fmt.Errorf("failed to insert embedding at index %d: %w", i, err)
		}
	})

	if batchErr != nil {
		return fmt.Errorf("failed to batch create embeddings: %w", batchErr)
	}
	return nil
}

// SearchChunks はジョブ内でベクトル検索を実行する（スコア降順）
func (r *ChunkRepository) SearchChunks(ctx context.Context, jobID uuid.UUID, queryVector []float32, limit int, filter search.SearchFilter) ([]*search.SearchResult, error) {
	rows, err := r.q.SearchChunksByJob(ctx, sqlc.SearchChunksByJobParams{
		QueryVector: pgvector.NewVector(queryVector),
		JobID:       UUIDToPgtype(jobID),
		Topic:       StringToNullableText(filter.Topic.OrEmpty()),
		MinScore:    filter.MinScore,
		RowLimit:    int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	results := make([]*search.SearchResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, &search.SearchResult{
			ChunkID:     PgtypeToUUID(row.ChunkID),
			ResourceID:  PgtypeToUUID(row.ResourceID),
			Topic:       row.Topic,
			Heading:     row.Heading,
			Content:     row.Content,
			SourceTitle: row.SourceTitle,
			SourceURL:   row.SourceUrl,
			Score:       row.Score,
		})
	}
	return results, nil
}

// DeleteChunksByJob はジョブのチャンクを削除する（Embeddingはカスケード削除）
func (r *ChunkRepository) DeleteChunksByJob(ctx context.Context, jobID uuid.UUID) error {
	if err := r.q.DeleteChunksByJob(ctx, UUIDToPgtype(jobID)); err != nil {
		return fmt.Errorf("failed to delete chunks by job: %w", err)
	}
	return nil
}

// CountChunks はジョブのチャンク数を返す
func (r *ChunkRepository) CountChunks(ctx context.Context, jobID uuid.UUID) (int, error) {
	count, err := r.q.CountChunksByJob(ctx, UUIDToPgtype(jobID))
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return int(count), nil
}
