package search

import (
	"github.com/google/uuid"
	"github.com/jinford/study-notes/internal/core/catalog"
	"github.com/samber/mo"
)

// SearchResult はベクトル検索の結果を表す
type SearchResult struct {
	ChunkID     uuid.UUID `json:"chunkID"`
	ResourceID  uuid.UUID `json:"resourceID"`
	Topic       string    `json:"topic"`
	Heading     string    `json:"heading,omitempty"`
	Content     string    `json:"content"`
	SourceTitle string    `json:"sourceTitle"`
	SourceURL   string    `json:"sourceURL"`
	Score       float64   `json:"score"`
}

// SearchFilter は検索時の任意フィルタを表す
type SearchFilter struct {
	Topic    mo.Option[string]
	MinScore float64
}

// TopicContext はトピックごとに取得した関連チャンク
type TopicContext struct {
	Topic   catalog.Topic   `json:"topic"`
	Query   string          `json:"query"`
	Results []*SearchResult `json:"results"`
}
