package notes

import (
	"time"

	"github.com/google/uuid"
	"github.com/jinford/study-notes/internal/core/catalog"
)

// Notes は1ジョブで生成された学習ノート
type Notes struct {
	ID            uuid.UUID       `json:"id"`
	JobID         uuid.UUID       `json:"jobId"`
	Title         string          `json:"title"`
	Request       catalog.Request `json:"request"`
	BoardName     string          `json:"boardName"`
	Overview      string          `json:"overview"`
	Topics        []*TopicPage    `json:"topics"`
	Summary       string          `json:"summary"`
	KeyTerms      []KeyTerm       `json:"keyTerms"`
	References    []Reference     `json:"references"`
	Quality       *QualityReport  `json:"quality,omitempty"`
	Model         string          `json:"model"`
	PromptVersion string          `json:"promptVersion"`
	GeneratedAt   time.Time       `json:"generatedAt"`
}

// TopicPage はシラバスの1トピック分のページ（定義・解説・例題・練習問題）
type TopicPage struct {
	Topic       string      `json:"topic"`
	Definition  string      `json:"definition"`
	Explanation string      `json:"explanation"`
	KeyPoints   []string    `json:"keyPoints"`
	Examples    []Example   `json:"examples"`
	Questions   []Question  `json:"questions"`
	Sources     []Reference `json:"sources"`
}

// Example は例題
type Example struct {
	Title    string `json:"title"`
	Problem  string `json:"problem"`
	Solution string `json:"solution"`
}

// QuestionKind は練習問題の形式
type QuestionKind string

const (
	QuestionMCQ   QuestionKind = "mcq"
	QuestionShort QuestionKind = "short"
	QuestionLong  QuestionKind = "long"
)

// Question は練習問題
type Question struct {
	Kind    QuestionKind `json:"kind"`
	Prompt  string       `json:"prompt"`
	Options []string     `json:"options,omitempty"`
	Answer  string       `json:"answer"`
}

// KeyTerm は重要語句
type KeyTerm struct {
	Term    string `json:"term"`
	Meaning string `json:"meaning"`
}

// Reference は参照した教材
type Reference struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Severity は品質チェックの指摘の重要度
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// QualityIssue は品質チェックの指摘
type QualityIssue struct {
	Topic    string   `json:"topic,omitempty"`
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// QualityReport は品質チェックの結果
type QualityReport struct {
	Score     float64        `json:"score"`
	MinScore  float64        `json:"minScore"`
	Passed    bool           `json:"passed"`
	Checks    int            `json:"checks"`
	Issues    []QualityIssue `json:"issues"`
	CheckedAt time.Time      `json:"checkedAt"`
}
