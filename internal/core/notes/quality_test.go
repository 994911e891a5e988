package notes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wordCounter struct{}

func (wordCounter) CountTokens(text string) int {
	return len(strings.Fields(text))
}

func goodPage(topic string) *TopicPage {
	return &TopicPage{
		Topic:       topic,
		Definition:  "A short definition.",
		Explanation: strings.Repeat("word ", 50),
		Examples:    []Example{{Problem: "p", Solution: "s"}},
		Questions:   []Question{{Kind: QuestionShort, Prompt: "a"}, {Kind: QuestionLong, Prompt: "b"}},
		Sources:     []Reference{{Title: "src", URL: "mock://src"}},
	}
}

func TestQualityChecker_PassesCompleteNotes(t *testing.T) {
	c := NewQualityChecker(wordCounter{}, DefaultQualityConfig())
	report := c.Check(&Notes{Request: testRequest(), Topics: []*TopicPage{goodPage("Speed"), goodPage("Acceleration")}})

	assert.True(t, report.Passed)
	assert.Equal(t, 1.0, report.Score)
	assert.Empty(t, report.Issues)
	// has_topics + unique_topics + 5ルール×2ページ
	assert.Equal(t, 12, report.Checks)
}

func TestQualityChecker_ReportsIssues(t *testing.T) {
	c := NewQualityChecker(wordCounter{}, DefaultQualityConfig())
	weak := &TopicPage{Topic: "speed", Explanation: "too short"}
	report := c.Check(&Notes{Request: testRequest(), Topics: []*TopicPage{goodPage("Speed"), weak}})

	rules := map[string]bool{}
	for _, issue := range report.Issues {
		rules[issue.Rule] = true
	}
	assert.True(t, rules[RuleDefinition])
	assert.True(t, rules[RuleExplanation])
	assert.True(t, rules[RuleExamples])
	assert.True(t, rules[RuleQuestions])
	assert.True(t, rules[RuleSources])
	assert.True(t, rules[RuleUniqueTopics])

	// 12チェック中6合格
	assert.Equal(t, 0.5, report.Score)
	assert.True(t, report.Passed)
}

func TestQualityChecker_SkipsUnwantedSections(t *testing.T) {
	no := false
	req := testRequest()
	req.IncludeExamples = &no
	req.IncludeQuestions = &no

	page := goodPage("Speed")
	page.Examples = nil
	page.Questions = nil

	c := NewQualityChecker(wordCounter{}, DefaultQualityConfig())
	report := c.Check(&Notes{Request: req, Topics: []*TopicPage{page}})
	assert.Equal(t, 5, report.Checks)
	assert.Equal(t, 1.0, report.Score)
}

func TestQualityChecker_FailsWithoutTopics(t *testing.T) {
	c := NewQualityChecker(wordCounter{}, DefaultQualityConfig())
	report := c.Check(&Notes{Request: testRequest()})

	assert.False(t, report.Passed)
	require.NotEmpty(t, report.Issues)
	assert.Equal(t, RuleHasTopics, report.Issues[0].Rule)
}
