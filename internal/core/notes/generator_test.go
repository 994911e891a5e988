package notes

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jinford/study-notes/internal/core/catalog"
	"github.com/jinford/study-notes/internal/core/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubClient はPromptIDごとに固定の応答を返すLLMスタブ
type stubClient struct {
	mu        sync.Mutex
	responses map[PromptID][]string
	err       error
	calls     []CompletionRequest
}

func (s *stubClient) GenerateCompletion(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	if s.err != nil {
		return CompletionResponse{}, s.err
	}
	queue := s.responses[req.PromptID]
	if len(queue) == 0 {
		return CompletionResponse{}, errors.New("no stub response")
	}
	content := queue[0]
	if len(queue) > 1 {
		s.responses[req.PromptID] = queue[1:]
	}
	return CompletionResponse{Content: content, Model: "stub-model"}, nil
}

func (s *stubClient) countCalls(id PromptID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.PromptID == id {
			n++
		}
	}
	return n
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const topicJSON = `{"definition": "A definition.", "explanation": "An explanation.", "keyPoints": ["one"],
"examples": [{"title": "Ex", "problem": "p", "solution": "s"}],
"questions": [{"kind": "mcq", "prompt": "q?", "options": ["a","b"], "answer": "a"}, {"prompt": "why?", "answer": "because"}]}`

func testContexts() []*search.TopicContext {
	return []*search.TopicContext{
		{
			Topic: catalog.Topic{Title: "Speed"},
			Results: []*search.SearchResult{
				{SourceTitle: "Motion notes", SourceURL: "mock://motion", Content: "speed is distance over time", Score: 0.9},
				{SourceTitle: "Motion notes", SourceURL: "mock://motion", Content: "units", Score: 0.5},
			},
		},
		{
			Topic: catalog.Topic{Title: "Acceleration"},
			Results: []*search.SearchResult{
				{SourceTitle: "Motion notes", SourceURL: "mock://motion", Content: "rate of change", Score: 0.8},
				{SourceTitle: "Kinematics", SourceURL: "mock://kinematics", Content: "v = u + at", Score: 0.7},
			},
		},
	}
}

func testRequest() catalog.Request {
	return catalog.Request{Class: 9, Board: "CBSE", Subject: "Science", Chapter: "Motion"}
}

func TestGenerator_Generate(t *testing.T) {
	client := &stubClient{responses: map[PromptID][]string{
		PromptOverview:  {"```json\n{\"overview\": \"Motion overview.\"}\n```"},
		PromptTopicPage: {topicJSON},
		PromptSummary:   {`Here you go: {"summary": "Recap.", "keyTerms": [{"term": "speed", "meaning": "distance per time"}]}`},
	}}
	g := NewGenerator(client, WithGeneratorLogger(discardLogger()), WithGenerationWorkers(2))

	jobID := uuid.New()
	n, err := g.Generate(context.Background(), GenerateParams{
		JobID:     jobID,
		Request:   testRequest(),
		BoardName: "Central Board of Secondary Education",
		Contexts:  testContexts(),
	})
	require.NoError(t, err)

	assert.Equal(t, jobID, n.JobID)
	assert.Equal(t, "Science: Motion (Class 9, CBSE)", n.Title)
	assert.Equal(t, "Motion overview.", n.Overview)
	assert.Equal(t, "Recap.", n.Summary)
	assert.Equal(t, "stub-model", n.Model)
	assert.Equal(t, PromptVersion, n.PromptVersion)
	require.Len(t, n.KeyTerms, 1)

	// トピックの順序はシラバス順
	require.Len(t, n.Topics, 2)
	assert.Equal(t, "Speed", n.Topics[0].Topic)
	assert.Equal(t, "Acceleration", n.Topics[1].Topic)

	// 出典はURL単位で重複排除
	assert.Len(t, n.Topics[0].Sources, 1)
	assert.Len(t, n.Topics[1].Sources, 2)
	assert.Len(t, n.References, 2)

	// 種別未指定の問題は short として扱う
	require.Len(t, n.Topics[0].Questions, 2)
	assert.Equal(t, QuestionShort, n.Topics[0].Questions[1].Kind)

	assert.Equal(t, 0, client.countCalls(PromptRepair))
}

func TestGenerator_GenerateOmitsUnwantedSections(t *testing.T) {
	client := &stubClient{responses: map[PromptID][]string{
		PromptOverview:  {`{"overview": "o"}`},
		PromptTopicPage: {topicJSON},
		PromptSummary:   {`{"summary": "s"}`},
	}}
	g := NewGenerator(client, WithGeneratorLogger(discardLogger()))

	no := false
	req := testRequest()
	req.IncludeExamples = &no
	req.IncludeQuestions = &no

	n, err := g.Generate(context.Background(), GenerateParams{Request: req, Contexts: testContexts()[:1]})
	require.NoError(t, err)
	assert.Empty(t, n.Topics[0].Examples)
	assert.Empty(t, n.Topics[0].Questions)
}

func TestGenerator_RepairsInvalidOutput(t *testing.T) {
	client := &stubClient{responses: map[PromptID][]string{
		PromptOverview:  {"I cannot produce JSON today"},
		PromptRepair:    {`{"overview": "Fixed overview."}`, topicJSON, `{"summary": "s"}`},
		PromptTopicPage: {topicJSON},
		PromptSummary:   {`{"summary": "s"}`},
	}}
	g := NewGenerator(client, WithGeneratorLogger(discardLogger()))

	n, err := g.Generate(context.Background(), GenerateParams{Request: testRequest(), Contexts: testContexts()[:1]})
	require.NoError(t, err)
	assert.Equal(t, "Fixed overview.", n.Overview)
	assert.Equal(t, 1, client.countCalls(PromptRepair))

	// 修正依頼には元の変数も引き継ぐ
	client.mu.Lock()
	defer client.mu.Unlock()
	for _, c := range client.calls {
		if c.PromptID == PromptRepair {
			assert.Equal(t, string(PromptOverview), c.Variables[VarRepairTarget])
			assert.Equal(t, "Motion", c.Variables[VarChapter])
		}
	}
}

func TestGenerator_RepairDiscardsRejectedFields(t *testing.T) {
	client := &stubClient{responses: map[PromptID][]string{
		PromptOverview:  {`{"overview": "o"}`},
		PromptTopicPage: {`{"keyPoints": ["stale point"], "examples": [{"title": "stale"}]}`},
		PromptRepair:    {`{"definition": "Fixed definition."}`},
		PromptSummary:   {`{"summary": "s"}`},
	}}
	g := NewGenerator(client, WithGeneratorLogger(discardLogger()))

	n, err := g.Generate(context.Background(), GenerateParams{Request: testRequest(), Contexts: testContexts()[:1]})
	require.NoError(t, err)
	require.Len(t, n.Topics, 1)
	assert.Equal(t, "Fixed definition.", n.Topics[0].Definition)
	assert.Empty(t, n.Topics[0].KeyPoints)
	assert.Empty(t, n.Topics[0].Examples)
}

func TestGenerator_FailsWhenRepairIsInvalid(t *testing.T) {
	client := &stubClient{responses: map[PromptID][]string{
		PromptOverview: {"nope"},
		PromptRepair:   {"still nope"},
	}}
	g := NewGenerator(client, WithGeneratorLogger(discardLogger()))

	_, err := g.Generate(context.Background(), GenerateParams{Request: testRequest(), Contexts: testContexts()})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidLLMOutput)
}

func TestGenerator_PropagatesClientError(t *testing.T) {
	boom := errors.New("llm down")
	g := NewGenerator(&stubClient{err: boom}, WithGeneratorLogger(discardLogger()))

	_, err := g.Generate(context.Background(), GenerateParams{Request: testRequest(), Contexts: testContexts()})
	assert.ErrorIs(t, err, boom)
}

func TestGenerator_RequiresTopics(t *testing.T) {
	g := NewGenerator(&stubClient{}, WithGeneratorLogger(discardLogger()))
	_, err := g.Generate(context.Background(), GenerateParams{Request: testRequest()})
	assert.Error(t, err)
}
