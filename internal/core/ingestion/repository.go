package ingestion

import (
	"context"
)

// Repository はチャンクとEmbeddingの書き込みインターフェース
// テスト時のモック用に消費者側で定義
type Repository interface {
	// BatchCreateChunks はチャンクを一括作成する
	BatchCreateChunks(ctx context.Context, chunks []*Chunk) error

	// BatchCreateEmbeddings はEmbeddingを一括作成する
	BatchCreateEmbeddings(ctx context.Context, embeddings []*Embedding) error
}

// Embedder はテキストのEmbedding生成インターフェース
type Embedder interface {
	// Embed は単一テキストのEmbeddingを生成する
	Embed(ctx context.Context, text string) ([]float32, error)

	// BatchEmbed は複数テキストのEmbeddingを一括生成する
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)

	// ModelName は使用するモデル名を返す
	ModelName() string

	// Dimension はベクトルの次元数を返す
	Dimension() int

	// MaxBatchSize は1回のBatchEmbedで処理できる最大件数を返す
	MaxBatchSize() int
}
