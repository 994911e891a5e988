package notes

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jinford/study-notes/internal/core/catalog"
	"github.com/jinford/study-notes/internal/core/search"
)

// PromptVersion はプロンプトのバージョン
const PromptVersion = "notes-v1"

// PromptID はプロンプトの種類
type PromptID string

const (
	PromptOverview  PromptID = "overview"
	PromptTopicPage PromptID = "topic_page"
	PromptSummary   PromptID = "summary"
	PromptRepair    PromptID = "repair"
)

// プロンプト変数のキー
const (
	VarClass            = "class"
	VarBoard            = "board"
	VarSubject          = "subject"
	VarChapter          = "chapter"
	VarTopic            = "topic"
	VarKeywords         = "keywords"
	VarTopics           = "topics"
	VarContext          = "context"
	VarIncludeExamples  = "include_examples"
	VarIncludeQuestions = "include_questions"
	VarRepairTarget     = "repair_target"
	VarInvalidOutput    = "invalid_output"
)

// maxContextChars はプロンプトに含める参考資料の最大文字数
const maxContextChars = 6000

func baseVariables(req catalog.Request, boardName string) map[string]string {
	board := req.Board
	if boardName != "" {
		board = boardName
	}
	return map[string]string{
		VarClass:            strconv.Itoa(req.Class),
		VarBoard:            board,
		VarSubject:          req.Subject,
		VarChapter:          req.Chapter,
		VarIncludeExamples:  strconv.FormatBool(req.WantsExamples()),
		VarIncludeQuestions: strconv.FormatBool(req.WantsQuestions()),
	}
}

func writeAudience(sb *strings.Builder, vars map[string]string) {
	sb.WriteString("You are an experienced school teacher writing exam-oriented study notes.\n")
	sb.WriteString(fmt.Sprintf("Audience: Class %s students following the %s syllabus.\n", vars[VarClass], vars[VarBoard]))
	sb.WriteString(fmt.Sprintf("Subject: %s\nChapter: %s\n\n", vars[VarSubject], vars[VarChapter]))
}

// BuildOverviewPrompt は単元概要のプロンプトを構築する
func BuildOverviewPrompt(req catalog.Request, boardName string, topics []catalog.Topic) (string, map[string]string) {
	vars := baseVariables(req, boardName)
	titles := make([]string, 0, len(topics))
	for _, t := range topics {
		titles = append(titles, t.Title)
	}
	vars[VarTopics] = strings.Join(titles, "; ")

	var sb strings.Builder
	writeAudience(&sb, vars)
	sb.WriteString("## Task\nWrite a short overview (3-5 sentences) introducing the chapter and how its topics connect.\n\n")
	sb.WriteString("## Topics\n")
	for _, t := range titles {
		sb.WriteString("- " + t + "\n")
	}
	sb.WriteString("\n## Output format\nRespond with JSON only: {\"overview\": string}\n")
	return sb.String(), vars
}

// BuildTopicPrompt はトピックページのプロンプトを構築する
func BuildTopicPrompt(req catalog.Request, boardName string, tc *search.TopicContext) (string, map[string]string) {
	vars := baseVariables(req, boardName)
	vars[VarTopic] = tc.Topic.Title
	vars[VarKeywords] = strings.Join(tc.Topic.Keywords, ", ")
	vars[VarContext] = buildContext(tc.Results)

	var sb strings.Builder
	writeAudience(&sb, vars)
	sb.WriteString(fmt.Sprintf("## Task\nWrite the study page for the topic \"%s\".\n", tc.Topic.Title))
	if vars[VarKeywords] != "" {
		sb.WriteString(fmt.Sprintf("Cover these keywords: %s.\n", vars[VarKeywords]))
	}
	sb.WriteString("\n## Guidelines\n")
	sb.WriteString("- Use only facts supported by the reference material below; do not invent data\n")
	sb.WriteString("- Keep the language simple and suited to the class level\n")
	if req.WantsExamples() {
		sb.WriteString("- Include 1-2 worked examples with step-by-step solutions\n")
	} else {
		sb.WriteString("- Do not include worked examples (return an empty list)\n")
	}
	if req.WantsQuestions() {
		sb.WriteString("- Include 3 practice questions: one mcq with 4 options, one short, one long\n")
	} else {
		sb.WriteString("- Do not include practice questions (return an empty list)\n")
	}

	sb.WriteString("\n## Reference material\n")
	if vars[VarContext] != "" {
		sb.WriteString(vars[VarContext])
		sb.WriteString("\n")
	} else {
		sb.WriteString("(no reference material found; rely on the standard syllabus)\n")
	}

	sb.WriteString("\n## Output format\nRespond with JSON only:\n")
	sb.WriteString(`{"definition": string, "explanation": string, "keyPoints": [string], ` +
		`"examples": [{"title": string, "problem": string, "solution": string}], ` +
		`"questions": [{"kind": "mcq"|"short"|"long", "prompt": string, "options": [string], "answer": string}]}`)
	sb.WriteString("\n")
	return sb.String(), vars
}

// BuildSummaryPrompt はまとめと重要語句のプロンプトを構築する
func BuildSummaryPrompt(req catalog.Request, boardName string, pages []*TopicPage) (string, map[string]string) {
	vars := baseVariables(req, boardName)
	titles := make([]string, 0, len(pages))
	for _, p := range pages {
		titles = append(titles, p.Topic)
	}
	vars[VarTopics] = strings.Join(titles, "; ")

	var sb strings.Builder
	writeAudience(&sb, vars)
	sb.WriteString("## Task\nWrite a revision summary of the chapter and list its key terms.\n\n")
	sb.WriteString("## Topic definitions\n")
	for _, p := range pages {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", p.Topic, p.Definition))
	}
	sb.WriteString("\n## Output format\nRespond with JSON only: {\"summary\": string, \"keyTerms\": [{\"term\": string, \"meaning\": string}]}\n")
	return sb.String(), vars
}

// BuildRepairPrompt は不正なJSON出力の修正を依頼するプロンプトを構築する
func BuildRepairPrompt(target PromptID, invalid string, cause error) (string, map[string]string) {
	vars := map[string]string{
		VarRepairTarget:  string(target),
		VarInvalidOutput: invalid,
	}

	var sb strings.Builder
	sb.WriteString("The previous response could not be parsed as the required JSON.\n")
	if cause != nil {
		sb.WriteString(fmt.Sprintf("Parser error: %s\n", cause))
	}
	sb.WriteString("Return the same content as a single valid JSON object with no prose and no code fences.\n\n")
	sb.WriteString("## Previous response\n")
	sb.WriteString(invalid)
	sb.WriteString("\n")
	return sb.String(), vars
}

// buildContext は検索結果を参考資料テキストに整形する
func buildContext(results []*search.SearchResult) string {
	var sb strings.Builder
	for i, r := range results {
		block := fmt.Sprintf("### [Source %d] %s (relevance %.2f)\n%s\n\n", i+1, r.SourceTitle, r.Score, strings.TrimSpace(r.Content))
		if sb.Len()+len(block) > maxContextChars {
			break
		}
		sb.WriteString(block)
	}
	return strings.TrimSpace(sb.String())
}
