package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jinford/study-notes/internal/core/notes"
)

// ModelName はモック応答に付与するモデル名
const ModelName = "mock-template-v1"

// LLM はプロンプト変数からテンプレートで応答を組み立てるLLM実装
// 同じ入力には常に同じ出力を返す
type LLM struct {
	latency time.Duration
}

// LLMOption はLLMの設定オプション
type LLMOption func(*LLM)

// WithLatency は応答ごとの擬似的な待ち時間を設定する
func WithLatency(d time.Duration) LLMOption {
	return func(l *LLM) {
		l.latency = d
	}
}

// NewLLM は新しいモックLLMを作成する
func NewLLM(opts ...LLMOption) *LLM {
	l := &LLM{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// GenerateCompletion はプロンプトの種類に応じたJSONを返す
func (l *LLM) GenerateCompletion(ctx context.Context, req notes.CompletionRequest) (notes.CompletionResponse, error) {
	if l.latency > 0 {
		timer := time.NewTimer(l.latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return notes.CompletionResponse{}, ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return notes.CompletionResponse{}, err
	}

	id := req.PromptID
	if id == notes.PromptRepair {
		id = notes.PromptID(req.Variables[notes.VarRepairTarget])
	}

	var payload any
	switch id {
	case notes.PromptOverview:
		payload = overview(req.Variables)
	case notes.PromptTopicPage:
		payload = topicPage(req.Variables)
	case notes.PromptSummary:
		payload = summary(req.Variables)
	default:
		return notes.CompletionResponse{}, fmt.Errorf("unsupported prompt id %q", req.PromptID)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return notes.CompletionResponse{}, fmt.Errorf("failed to encode mock response: %w", err)
	}
	content := string(data)
	return notes.CompletionResponse{
		Content:       content,
		TokensUsed:    len(strings.Fields(req.Prompt)) + len(strings.Fields(content)),
		PromptVersion: notes.PromptVersion,
		Model:         ModelName,
	}, nil
}

func overview(vars map[string]string) map[string]string {
	topics := splitList(vars[notes.VarTopics])
	text := fmt.Sprintf("The chapter \"%s\" is part of Class %s %s for the %s syllabus.",
		vars[notes.VarChapter], vars[notes.VarClass], vars[notes.VarSubject], vars[notes.VarBoard])
	if len(topics) > 0 {
		text += fmt.Sprintf(" It covers %d topics: %s.", len(topics), strings.Join(topics, ", "))
	}
	text += " Each topic builds on the previous one, so study them in order and attempt the practice questions after every section."
	return map[string]string{"overview": text}
}

type mockExample struct {
	Title    string `json:"title"`
	Problem  string `json:"problem"`
	Solution string `json:"solution"`
}

type mockQuestion struct {
	Kind    string   `json:"kind"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options,omitempty"`
	Answer  string   `json:"answer"`
}

type mockTopicPage struct {
	Definition  string         `json:"definition"`
	Explanation string         `json:"explanation"`
	KeyPoints   []string       `json:"keyPoints"`
	Examples    []mockExample  `json:"examples"`
	Questions   []mockQuestion `json:"questions"`
}

func topicPage(vars map[string]string) mockTopicPage {
	topic := vars[notes.VarTopic]
	chapter := vars[notes.VarChapter]
	subject := vars[notes.VarSubject]
	keywords := splitComma(vars[notes.VarKeywords])

	definition := fmt.Sprintf("%s is a core idea of the chapter \"%s\" in %s.", topic, chapter, subject)
	if excerpt := firstSentence(vars[notes.VarContext]); excerpt != "" {
		definition += " " + excerpt
	}

	var explanation strings.Builder
	explanation.WriteString(fmt.Sprintf("To understand %s, start from what you already know about %s and connect it to the ideas in this chapter. ", topic, chapter))
	if len(keywords) > 0 {
		explanation.WriteString(fmt.Sprintf("The important terms are %s; learn what each one means and how they relate to one another. ", strings.Join(keywords, ", ")))
	}
	explanation.WriteString(fmt.Sprintf("Class %s examinations usually test %s through definitions, short explanations and applications to everyday situations, ", vars[notes.VarClass], topic))
	explanation.WriteString("so practise writing answers in your own words and support them with a labelled diagram or a worked example where possible.")

	page := mockTopicPage{
		Definition:  definition,
		Explanation: explanation.String(),
		KeyPoints: []string{
			fmt.Sprintf("Know the definition of %s", topic),
			fmt.Sprintf("Relate %s to the rest of %s", topic, chapter),
			"Revise the key terms before attempting questions",
		},
		Examples:  []mockExample{},
		Questions: []mockQuestion{},
	}
	for _, kw := range keywords {
		page.KeyPoints = append(page.KeyPoints, fmt.Sprintf("Explain the term \"%s\"", kw))
	}

	if vars[notes.VarIncludeExamples] == "true" {
		page.Examples = append(page.Examples, mockExample{
			Title:    fmt.Sprintf("Applying %s", topic),
			Problem:  fmt.Sprintf("Describe a real-life situation that illustrates %s.", topic),
			Solution: fmt.Sprintf("Identify the situation, name the idea involved (%s), and explain step by step how it applies.", topic),
		})
	}
	if vars[notes.VarIncludeQuestions] == "true" {
		page.Questions = append(page.Questions,
			mockQuestion{
				Kind:    string(notes.QuestionMCQ),
				Prompt:  fmt.Sprintf("Which chapter does %s belong to?", topic),
				Options: []string{chapter, "None of these", "All of these", "Cannot be determined"},
				Answer:  chapter,
			},
			mockQuestion{
				Kind:   string(notes.QuestionShort),
				Prompt: fmt.Sprintf("Define %s in one or two sentences.", topic),
				Answer: definition,
			},
			mockQuestion{
				Kind:   string(notes.QuestionLong),
				Prompt: fmt.Sprintf("Explain %s with an example.", topic),
				Answer: fmt.Sprintf("A complete answer defines %s, explains it and gives one example.", topic),
			},
		)
	}
	return page
}

type mockKeyTerm struct {
	Term    string `json:"term"`
	Meaning string `json:"meaning"`
}

func summary(vars map[string]string) map[string]any {
	topics := splitList(vars[notes.VarTopics])
	terms := make([]mockKeyTerm, 0, len(topics))
	for _, t := range topics {
		terms = append(terms, mockKeyTerm{
			Term:    t,
			Meaning: fmt.Sprintf("A topic of %s covered in this chapter", vars[notes.VarChapter]),
		})
	}
	return map[string]any{
		"summary": fmt.Sprintf("In \"%s\" you studied %d topics: %s. Revise the definitions and key points, then attempt the practice questions.",
			vars[notes.VarChapter], len(topics), strings.Join(topics, ", ")),
		"keyTerms": terms,
	}
}

func splitList(s string) []string {
	return splitOn(s, ";")
}

func splitComma(s string) []string {
	return splitOn(s, ",")
}

func splitOn(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// firstSentence は参考資料の本文から最初の文を取り出す
// 見出し行と句点のない行は飛ばす
func firstSentence(context string) string {
	for _, line := range strings.Split(context, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || !strings.Contains(line, ".") {
			continue
		}
		if i := strings.Index(line, ". "); i >= 0 {
			return line[:i+1]
		}
		return line
	}
	return ""
}

var _ notes.Client = (*LLM)(nil)
