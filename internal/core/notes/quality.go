package notes

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// 品質チェックのルール名
const (
	RuleDefinition   = "definition_present"
	RuleExplanation  = "explanation_length"
	RuleExamples     = "examples_present"
	RuleQuestions    = "questions_count"
	RuleSources      = "sources_cited"
	RuleUniqueTopics = "unique_topics"
	RuleHasTopics    = "has_topics"
)

// TokenCounter はトークン数のカウントを提供する
type TokenCounter interface {
	CountTokens(text string) int
}

// QualityConfig は品質チェックの閾値
type QualityConfig struct {
	MinExplanationTokens int
	MinQuestions         int
	MinScore             float64
	RequireSources       bool
}

// DefaultQualityConfig はデフォルトの閾値を返す
func DefaultQualityConfig() QualityConfig {
	return QualityConfig{
		MinExplanationTokens: 40,
		MinQuestions:         2,
		MinScore:             0.5,
		RequireSources:       true,
	}
}

// QualityChecker はノートの品質をルールベースで採点する
type QualityChecker struct {
	counter TokenCounter
	cfg     QualityConfig
	now     func() time.Time
}

// NewQualityChecker は新しいQualityCheckerを作成する
func NewQualityChecker(counter TokenCounter, cfg QualityConfig) *QualityChecker {
	return &QualityChecker{
		counter: counter,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Check はノートを採点する
// スコアは合格したチェック数 / 全チェック数、MinScore 以上で合格
func (c *QualityChecker) Check(n *Notes) *QualityReport {
	report := &QualityReport{
		MinScore:  c.cfg.MinScore,
		CheckedAt: c.now(),
	}
	passed := 0
	check := func(ok bool, issue QualityIssue) {
		report.Checks++
		if ok {
			passed++
			return
		}
		report.Issues = append(report.Issues, issue)
	}

	check(len(n.Topics) > 0, QualityIssue{
		Rule:     RuleHasTopics,
		Severity: SeverityError,
		Message:  "notes contain no topic pages",
	})

	seen := make(map[string]struct{}, len(n.Topics))
	duplicates := 0
	for _, page := range n.Topics {
		key := strings.ToLower(strings.TrimSpace(page.Topic))
		if _, dup := seen[key]; dup {
			duplicates++
		}
		seen[key] = struct{}{}
		c.checkPage(n, page, check)
	}
	check(duplicates == 0, QualityIssue{
		Rule:     RuleUniqueTopics,
		Severity: SeverityError,
		Message:  fmt.Sprintf("%d duplicate topic pages", duplicates),
	})

	if report.Checks > 0 {
		report.Score = math.Round(float64(passed)/float64(report.Checks)*1000) / 1000
	}
	report.Passed = len(n.Topics) > 0 && report.Score >= c.cfg.MinScore
	return report
}

func (c *QualityChecker) checkPage(n *Notes, page *TopicPage, check func(bool, QualityIssue)) {
	check(strings.TrimSpace(page.Definition) != "", QualityIssue{
		Topic:    page.Topic,
		Rule:     RuleDefinition,
		Severity: SeverityError,
		Message:  "definition is missing",
	})

	tokens := c.counter.CountTokens(page.Explanation)
	check(tokens >= c.cfg.MinExplanationTokens, QualityIssue{
		Topic:    page.Topic,
		Rule:     RuleExplanation,
		Severity: SeverityWarning,
		Message:  fmt.Sprintf("explanation has %d tokens, want at least %d", tokens, c.cfg.MinExplanationTokens),
	})

	if n.Request.WantsExamples() {
		check(len(page.Examples) > 0, QualityIssue{
			Topic:    page.Topic,
			Rule:     RuleExamples,
			Severity: SeverityWarning,
			Message:  "no worked examples",
		})
	}

	if n.Request.WantsQuestions() {
		check(len(page.Questions) >= c.cfg.MinQuestions, QualityIssue{
			Topic:    page.Topic,
			Rule:     RuleQuestions,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("%d practice questions, want at least %d", len(page.Questions), c.cfg.MinQuestions),
		})
	}

	if c.cfg.RequireSources {
		check(len(page.Sources) > 0, QualityIssue{
			Topic:    page.Topic,
			Rule:     RuleSources,
			Severity: SeverityWarning,
			Message:  "no sources cited",
		})
	}
}
