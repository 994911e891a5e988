package catalog

import (
	"context"
	"fmt"
	"strings"
)

// DefaultMaxTopics は1ジョブで扱うトピック数のデフォルト上限
const DefaultMaxTopics = 8

// SyllabusProvider は単元のシラバスを提供する
type SyllabusProvider struct {
	catalog *Catalog
}

// NewSyllabusProvider は新しいSyllabusProviderを作成する
func NewSyllabusProvider(c *Catalog) *SyllabusProvider {
	return &SyllabusProvider{catalog: c}
}

// FetchSyllabus はリクエストに対応するシラバスを返す
// カタログに単元が無い場合は汎用トピックで構成したシラバスを返す
func (p *SyllabusProvider) FetchSyllabus(ctx context.Context, req Request) (*Syllabus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	board, ok := p.catalog.FindBoard(req.Board).Get()
	if !ok {
		return nil, fmt.Errorf("unknown board: %s", req.Board)
	}

	if chapter, found := p.catalog.FindChapter(board.Code, req.Class, req.Subject, req.Chapter).Get(); found {
		topics := make([]Topic, len(chapter.Topics))
		copy(topics, chapter.Topics)
		return &Syllabus{
			Request:   req,
			BoardName: board.Name,
			Topics:    topics,
		}, nil
	}

	return &Syllabus{
		Request:   req,
		BoardName: board.Name,
		Topics:    genericTopics(req),
		Generated: true,
	}, nil
}

func genericTopics(req Request) []Topic {
	chapter := normalizeTitle(req.Chapter)
	subject := strings.ToLower(req.Subject)
	return []Topic{
		{Title: "Introduction to " + chapter, Keywords: []string{chapter, "overview", "definition"}},
		{Title: "Key Concepts of " + chapter, Keywords: []string{chapter, "concepts", subject}},
		{Title: "Important Terms and Principles", Keywords: []string{chapter, "terms", "principles"}},
		{Title: "Worked Problems in " + chapter, Keywords: []string{chapter, "problems", "solutions"}},
		{Title: "Applications of " + chapter, Keywords: []string{chapter, "applications", "real life"}},
		{Title: "Common Mistakes and Exam Tips", Keywords: []string{chapter, "mistakes", "exam"}},
	}
}

// ExtractTopics はシラバスからトピックを抽出する
// タイトルを正規化し、空・重複（大文字小文字を区別しない）を除外し、limit件に制限する
func ExtractTopics(s *Syllabus, limit int) []Topic {
	if s == nil {
		return nil
	}
	if limit <= 0 {
		limit = DefaultMaxTopics
	}

	topics := make([]Topic, 0, len(s.Topics))
	index := make(map[string]int, len(s.Topics))
	for _, t := range s.Topics {
		title := normalizeTitle(t.Title)
		if title == "" {
			continue
		}
		key := strings.ToLower(title)
		if i, dup := index[key]; dup {
			// 重複トピックはキーワードとサブトピックをマージ
			topics[i].Keywords = mergeUnique(topics[i].Keywords, t.Keywords)
			topics[i].Subtopics = mergeUnique(topics[i].Subtopics, t.Subtopics)
			continue
		}
		if len(topics) >= limit {
			continue
		}
		index[key] = len(topics)
		topics = append(topics, Topic{
			Title:     title,
			Keywords:  mergeUnique(nil, t.Keywords),
			Subtopics: mergeUnique(nil, t.Subtopics),
		})
	}
	return topics
}

// normalizeTitle は連続する空白を1つにまとめ前後の空白を除去する
func normalizeTitle(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func mergeUnique(dst, src []string) []string {
	seen := make(map[string]struct{}, len(dst)+len(src))
	for _, v := range dst {
		seen[strings.ToLower(v)] = struct{}{}
	}
	for _, v := range src {
		v = normalizeTitle(v)
		if v == "" {
			continue
		}
		k := strings.ToLower(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		dst = append(dst, v)
	}
	return dst
}
