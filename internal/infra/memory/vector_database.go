package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jinford/study-notes/internal/core/ingestion"
	"github.com/jinford/study-notes/internal/core/search"
)

// VectorDatabase はジョブ単位でチャンクとベクトルを保持するインメモリ実装
// 検索はコサイン類似度の全件走査で行う
type VectorDatabase struct {
	mu      sync.RWMutex
	chunks  map[uuid.UUID]*ingestion.Chunk
	vectors map[uuid.UUID][]float32
	byJob   map[uuid.UUID][]uuid.UUID
}

// NewVectorDatabase は空の VectorDatabase を作成する
func NewVectorDatabase() *VectorDatabase {
	return &VectorDatabase{
		chunks:  make(map[uuid.UUID]*ingestion.Chunk),
		vectors: make(map[uuid.UUID][]float32),
		byJob:   make(map[uuid.UUID][]uuid.UUID),
	}
}

// BatchCreateChunks はチャンクを保存する
func (db *VectorDatabase) BatchCreateChunks(ctx context.Context, chunks []*ingestion.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	for _, c := range chunks {
		if c.ID == uuid.Nil {
			return fmt.Errorf("chunk id is required")
		}
		if _, exists := db.chunks[c.ID]; !exists {
			db.byJob[c.JobID] = append(db.byJob[c.JobID], c.ID)
		}
		copied := *c
		db.chunks[c.ID] = &copied
	}
	return nil
}

// BatchCreateEmbeddings はチャンクのベクトルを保存する
func (db *VectorDatabase) BatchCreateEmbeddings(ctx context.Context, embeddings []*ingestion.Embedding) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	for _, e := range embeddings {
		if _, ok := db.chunks[e.ChunkID]; !ok {
			return fmt.Errorf("chunk %s not found", e.ChunkID)
		}
		db.vectors[e.ChunkID] = append([]float32(nil), e.Vector...)
	}
	return nil
}

// SearchChunks はジョブ内のチャンクをコサイン類似度の降順で返す
func (db *VectorDatabase) SearchChunks(ctx context.Context, jobID uuid.UUID, queryVector []float32, limit int, filter search.SearchFilter) ([]*search.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	topic, hasTopic := filter.Topic.Get()
	var results []*search.SearchResult
	for _, id := range db.byJob[jobID] {
		vec, ok := db.vectors[id]
		if !ok {
			continue
		}
		c := db.chunks[id]
		if hasTopic && !strings.EqualFold(c.Topic, topic) {
			continue
		}
		score := CosineSimilarity(queryVector, vec)
		if score < filter.MinScore {
			continue
		}
		results = append(results, &search.SearchResult{
			ChunkID:     c.ID,
			ResourceID:  c.ResourceID,
			Topic:       c.Topic,
			Heading:     c.Heading,
			Content:     c.Content,
			SourceTitle: c.SourceTitle,
			SourceURL:   c.SourceURL,
			Score:       score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// DeleteChunksByJob はジョブのチャンクとベクトルを削除する
func (db *VectorDatabase) DeleteChunksByJob(ctx context.Context, jobID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	for _, id := range db.byJob[jobID] {
		delete(db.chunks, id)
		delete(db.vectors, id)
	}
	delete(db.byJob, jobID)
	return nil
}

// CountChunks はジョブのチャンク数を返す
func (db *VectorDatabase) CountChunks(jobID uuid.UUID) int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.byJob[jobID])
}

// CosineSimilarity は2つのベクトルのコサイン類似度を返す
// 次元が異なる場合やゼロベクトルの場合は0
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var (
	_ ingestion.Repository = (*VectorDatabase)(nil)
	_ search.Repository    = (*VectorDatabase)(nil)
)
