package search

import (
	"context"

	"github.com/google/uuid"
)

// Repository は検索関連のデータアクセスインターフェース
type Repository interface {
	// SearchChunks はジョブ内でベクトル検索を実行する（スコア降順）
	SearchChunks(ctx context.Context, jobID uuid.UUID, queryVector []float32, limit int, filter SearchFilter) ([]*SearchResult, error)

	// DeleteChunksByJob はジョブのチャンクとEmbeddingを削除する
	DeleteChunksByJob(ctx context.Context, jobID uuid.UUID) error
}
