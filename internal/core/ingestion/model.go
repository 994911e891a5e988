package ingestion

import (
	"time"

	"github.com/google/uuid"
)

// Source は教材の取得元
type Source string

const (
	SourceMock Source = "mock"
	SourceWeb  Source = "web"
	SourceGit  Source = "git"
)

// Resource はスクレイピングで取得した教材テキスト
type Resource struct {
	ID          uuid.UUID `json:"id"`
	JobID       uuid.UUID `json:"jobId"`
	Topic       string    `json:"topic"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      Source    `json:"source"`
	ContentType string    `json:"contentType"`
	Content     string    `json:"-"`
	ContentHash string    `json:"contentHash"`
	FetchedAt   time.Time `json:"fetchedAt"`
}

// Chunk は類似検索用に保存されるテキスト片とメタデータ
type Chunk struct {
	ID          uuid.UUID
	JobID       uuid.UUID
	ResourceID  uuid.UUID
	Topic       string
	Ordinal     int
	Heading     string
	Content     string
	ContentHash string
	TokenCount  int
	SourceTitle string
	SourceURL   string
	CreatedAt   time.Time
}

// Embedding はチャンクのベクトル表現
type Embedding struct {
	ChunkID uuid.UUID
	Vector  []float32
	Model   string
}
