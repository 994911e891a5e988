package chunk

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordCounter は単語数をトークン数とみなすテスト用カウンタ
type wordCounter struct{}

func (wordCounter) CountTokens(text string) int {
	return len(strings.Fields(text))
}

func (wordCounter) TrimToTokenLimit(text string, maxTokens int) string {
	words := strings.Fields(text)
	if len(words) <= maxTokens {
		return text
	}
	return strings.Join(words[:maxTokens], " ")
}

func words(prefix string, n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = prefix
	}
	return strings.Join(out, " ")
}

func TestTextChunker_SplitsAtParagraphs(t *testing.T) {
	c := NewTextChunker(wordCounter{}, Config{TargetTokens: 15, MaxTokens: 30})
	content := words("a", 10) + "\n\n" + words("b", 10) + "\n\n\n" + words("c", 10)

	chunks, err := c.Chunk(context.Background(), content, "text/plain")
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Ordinal)
		assert.Equal(t, 10, ch.Tokens)
	}
	assert.True(t, strings.HasPrefix(chunks[1].Content, "b"))
}

func TestTextChunker_Overlap(t *testing.T) {
	c := NewTextChunker(wordCounter{}, Config{TargetTokens: 15, MaxTokens: 30, Overlap: 10})
	p1, p2, p3 := words("a", 10), words("b", 10), words("c", 10)

	chunks, err := c.Chunk(context.Background(), p1+"\n\n"+p2+"\n\n"+p3, "text/plain")
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, p1, chunks[0].Content)
	assert.Equal(t, p1+"\n\n"+p2, chunks[1].Content)
	assert.Equal(t, p2+"\n\n"+p3, chunks[2].Content)
}

func TestTextChunker_MarkdownHeadings(t *testing.T) {
	c := NewTextChunker(wordCounter{}, Config{TargetTokens: 50, MaxTokens: 100})
	content := "# Intro\nalpha beta\n\n## Details\ngamma delta\n```\n# not heading\n```\n"

	chunks, err := c.Chunk(context.Background(), content, "text/markdown")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Intro", chunks[0].Heading)
	assert.Equal(t, "Intro\n\nalpha beta", chunks[0].Content)
	assert.Equal(t, "Details", chunks[1].Heading)
	assert.Contains(t, chunks[1].Content, "# not heading")
}

func TestTextChunker_SplitsOversizedParagraph(t *testing.T) {
	c := NewTextChunker(wordCounter{}, Config{TargetTokens: 5, MaxTokens: 10})
	content := "one two three four five six. seven eight nine ten eleven twelve. " + words("x", 15)

	chunks, err := c.Chunk(context.Background(), content, "text/plain")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	total := 0
	for _, ch := range chunks {
		assert.LessOrEqual(t, ch.Tokens, 10)
		total += ch.Tokens
	}
	assert.Equal(t, 27, total)
}

func TestTextChunker_MergesSmallTrailingChunk(t *testing.T) {
	c := NewTextChunker(wordCounter{}, Config{TargetTokens: 10, MaxTokens: 20, MinTokens: 5})

	chunks, err := c.Chunk(context.Background(), words("a", 10)+"\n\n"+words("b", 2), "text/plain")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 12, chunks[0].Tokens)
}

func TestTextChunker_EmptyContent(t *testing.T) {
	c := NewTextChunker(wordCounter{}, DefaultConfig())
	chunks, err := c.Chunk(context.Background(), " \n\n ", "text/plain")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestTextChunker_CancelledContext(t *testing.T) {
	c := NewTextChunker(wordCounter{}, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Chunk(ctx, "some text", "text/plain")
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewTextChunker_NormalisesConfig(t *testing.T) {
	c := NewTextChunker(wordCounter{}, Config{TargetTokens: 10, MaxTokens: 5, Overlap: 10})
	assert.Equal(t, 20, c.cfg.MaxTokens)
	assert.Equal(t, 0, c.cfg.Overlap)
}
