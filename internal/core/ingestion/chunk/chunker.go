package chunk

import (
	"context"
	"strings"
)

// Chunk は分割されたテキスト片
type Chunk struct {
	Content string
	Ordinal int
	Heading string // Markdownの場合の所属見出し
	Tokens  int
}

// Config はチャンクサイズ設定
type Config struct {
	TargetTokens int // 目標トークン数
	MaxTokens    int // 最大トークン数
	MinTokens    int // これ未満のチャンクは直前のチャンクへ結合する
	Overlap      int // 前チャンク末尾から持ち越すトークン数
}

// DefaultConfig は教材テキスト向けのデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		TargetTokens: 300,
		MaxTokens:    600,
		MinTokens:    30,
		Overlap:      60,
	}
}

// Chunker はテキストをチャンクに分割する
type Chunker interface {
	Chunk(ctx context.Context, content, contentType string) ([]*Chunk, error)
}

// TextChunker は見出し・段落境界でテキストを分割する
type TextChunker struct {
	counter TokenCounter
	cfg     Config
}

var _ Chunker = (*TextChunker)(nil)

// NewTextChunker は新しいTextChunkerを作成する
func NewTextChunker(counter TokenCounter, cfg Config) *TextChunker {
	def := DefaultConfig()
	if cfg.TargetTokens <= 0 {
		cfg.TargetTokens = def.TargetTokens
	}
	if cfg.MaxTokens < cfg.TargetTokens {
		cfg.MaxTokens = cfg.TargetTokens * 2
	}
	if cfg.MinTokens < 0 {
		cfg.MinTokens = 0
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.TargetTokens {
		cfg.Overlap = 0
	}
	return &TextChunker{counter: counter, cfg: cfg}
}

// section は見出し単位のテキストブロック
type section struct {
	heading string
	body    []string
}

// Chunk はテキストをチャンク化する
// text/markdown は見出しで区切り、それ以外は段落境界で区切る
func (c *TextChunker) Chunk(ctx context.Context, content, contentType string) ([]*Chunk, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	var sections []section
	if contentType == "text/markdown" {
		sections = splitMarkdownSections(content)
	} else {
		sections = []section{{body: strings.Split(content, "\n")}}
	}

	var chunks []*Chunk
	for _, sec := range sections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunks = append(chunks, c.chunkSection(sec)...)
	}

	for i, ch := range chunks {
		ch.Ordinal = i
	}
	return chunks, nil
}

// splitMarkdownSections は見出し行（コードブロック外の # 行）で分割する
func splitMarkdownSections(content string) []section {
	var sections []section
	current := section{}
	inCodeBlock := false

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inCodeBlock = !inCodeBlock
		}

		if !inCodeBlock && strings.HasPrefix(trimmed, "#") {
			if current.heading != "" || hasText(current.body) {
				sections = append(sections, current)
			}
			current = section{heading: strings.TrimSpace(strings.TrimLeft(trimmed, "#"))}
			continue
		}
		current.body = append(current.body, line)
	}
	if current.heading != "" || hasText(current.body) {
		sections = append(sections, current)
	}
	return sections
}

func (c *TextChunker) chunkSection(sec section) []*Chunk {
	paragraphs := c.expandOversized(splitParagraphs(sec.body))
	if len(paragraphs) == 0 {
		return nil
	}

	var chunks []*Chunk
	var current []string
	fresh := false // current に前チャンクから持ち越していない段落があるか

	emit := func() {
		if !fresh {
			return
		}
		chunks = append(chunks, c.newChunk(sec.heading, current))
		current = c.overlapTail(current)
		fresh = false
	}

	for _, p := range paragraphs {
		if len(current) > 0 && c.counter.CountTokens(joinParagraphs(append(current, p))) > c.cfg.TargetTokens {
			emit()
			// 持ち越し分と合わせて最大値を超える場合は持ち越さない
			if c.counter.CountTokens(joinParagraphs(append(current, p))) > c.cfg.MaxTokens {
				current = nil
			}
		}
		current = append(current, p)
		fresh = true
	}
	emit()

	return c.mergeSmall(chunks)
}

// expandOversized は最大トークン数を超える段落を文・単語単位で分割する
func (c *TextChunker) expandOversized(paragraphs []string) []string {
	out := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		if c.counter.CountTokens(p) <= c.cfg.MaxTokens {
			out = append(out, p)
			continue
		}
		out = append(out, c.pack(splitSentences(p), " ")...)
	}
	return out
}

// pack は片を最大トークン数以内にまとめる
func (c *TextChunker) pack(pieces []string, sep string) []string {
	var out []string
	var buf []string
	for _, piece := range pieces {
		if c.counter.CountTokens(piece) > c.cfg.MaxTokens {
			if len(buf) > 0 {
				out = append(out, strings.Join(buf, sep))
				buf = nil
			}
			if sep == " " && strings.Contains(piece, " ") {
				out = append(out, c.pack(strings.Fields(piece), " ")...)
			} else {
				out = append(out, c.counter.TrimToTokenLimit(piece, c.cfg.MaxTokens))
			}
			continue
		}
		if len(buf) > 0 && c.counter.CountTokens(strings.Join(append(buf, piece), sep)) > c.cfg.MaxTokens {
			out = append(out, strings.Join(buf, sep))
			buf = nil
		}
		buf = append(buf, piece)
	}
	if len(buf) > 0 {
		out = append(out, strings.Join(buf, sep))
	}
	return out
}

// overlapTail は末尾からオーバーラップトークン数に収まる段落を返す
func (c *TextChunker) overlapTail(paragraphs []string) []string {
	if c.cfg.Overlap <= 0 {
		return nil
	}
	total := 0
	start := len(paragraphs)
	for i := len(paragraphs) - 1; i >= 0; i-- {
		total += c.counter.CountTokens(paragraphs[i])
		if total > c.cfg.Overlap {
			break
		}
		start = i
	}
	if start == len(paragraphs) {
		return nil
	}
	return append([]string(nil), paragraphs[start:]...)
}

// mergeSmall は最小トークン数未満のチャンクを直前のチャンクへ結合する
func (c *TextChunker) mergeSmall(chunks []*Chunk) []*Chunk {
	if len(chunks) < 2 {
		return chunks
	}
	merged := []*Chunk{chunks[0]}
	for _, ch := range chunks[1:] {
		prev := merged[len(merged)-1]
		if ch.Tokens < c.cfg.MinTokens {
			combined := prev.Content + "\n\n" + stripHeading(ch.Content, ch.Heading)
			if tokens := c.counter.CountTokens(combined); tokens <= c.cfg.MaxTokens {
				prev.Content = combined
				prev.Tokens = tokens
				continue
			}
		}
		merged = append(merged, ch)
	}
	return merged
}

func (c *TextChunker) newChunk(heading string, paragraphs []string) *Chunk {
	content := joinParagraphs(paragraphs)
	if heading != "" {
		content = heading + "\n\n" + content
	}
	return &Chunk{
		Content: content,
		Heading: heading,
		Tokens:  c.counter.CountTokens(content),
	}
}

func stripHeading(content, heading string) string {
	if heading == "" {
		return content
	}
	return strings.TrimPrefix(content, heading+"\n\n")
}

// splitParagraphs は空行区切りで段落に分割する
func splitParagraphs(lines []string) []string {
	var paragraphs []string
	var buf []string
	flush := func() {
		if text := strings.TrimSpace(strings.Join(buf, "\n")); text != "" {
			paragraphs = append(paragraphs, text)
		}
		buf = nil
	}
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		buf = append(buf, line)
	}
	flush()
	return paragraphs
}

// splitSentences は文末記号の直後で分割する
func splitSentences(text string) []string {
	var sentences []string
	var b strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		b.WriteRune(r)
		end := r == '.' || r == '?' || r == '!' || r == '。' || r == '\n'
		if end && (i+1 == len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' || r == '。') {
			if s := strings.TrimSpace(b.String()); s != "" {
				sentences = append(sentences, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func joinParagraphs(paragraphs []string) string {
	return strings.Join(paragraphs, "\n\n")
}

func hasText(lines []string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			return true
		}
	}
	return false
}
