package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/jinford/study-notes/internal/core/ingestion"
	"github.com/jinford/study-notes/internal/core/search"
)

const (
	// DefaultHashDimension はハッシュ埋め込みのデフォルト次元
	DefaultHashDimension = 256
	hashMaxBatchSize     = 256
)

// HashEmbedder は語の特徴ハッシュによる疑似Embedding
// 外部APIなしで決定的なベクトルを生成する
type HashEmbedder struct {
	dimension int
}

// NewHashEmbedder は HashEmbedder を作成する
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = DefaultHashDimension
	}
	return &HashEmbedder{dimension: dimension}
}

// Embed は単一テキストのベクトルを返す
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.vector(text), nil
}

// BatchEmbed は複数テキストのベクトルを返す
func (e *HashEmbedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) > hashMaxBatchSize {
		return nil, fmt.Errorf("batch size exceeds maximum of %d", hashMaxBatchSize)
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, e.vector(t))
	}
	return out, nil
}

// ModelName はモデル名を返す
func (e *HashEmbedder) ModelName() string {
	return fmt.Sprintf("hash-%d", e.dimension)
}

// Dimension は次元数を返す
func (e *HashEmbedder) Dimension() int {
	return e.dimension
}

// MaxBatchSize は1回のバッチの最大件数を返す
func (e *HashEmbedder) MaxBatchSize() int {
	return hashMaxBatchSize
}

// vector は単語とbigramをハッシュして加算し、L2正規化する
func (e *HashEmbedder) vector(text string) []float32 {
	vec := make([]float32, e.dimension)
	tokens := tokenize(text)
	for i, tok := range tokens {
		e.add(vec, tok, 1)
		if i > 0 {
			e.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func (e *HashEmbedder) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(e.dimension))
	// 衝突の偏りを打ち消すため符号もハッシュで決める
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

// tokenize は小文字化した英数字の語に分割する（1文字の語は除く）
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) > 1 {
			out = append(out, f)
		}
	}
	return out
}

var (
	_ ingestion.Embedder = (*HashEmbedder)(nil)
	_ search.Embedder    = (*HashEmbedder)(nil)
)
