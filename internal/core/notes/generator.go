package notes

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jinford/study-notes/internal/core/catalog"
	"github.com/jinford/study-notes/internal/core/search"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultGenerationWorkers はトピックページを並行生成する数のデフォルト値
	DefaultGenerationWorkers = 4
	defaultTemperature       = 0.3
	defaultMaxTokens         = 2048
)

// Generator はLLMを使って学習ノートを生成する
type Generator struct {
	client      Client
	logger      *slog.Logger
	workers     int
	temperature float64
	maxTokens   int
	model       string
	now         func() time.Time
}

// GeneratorOption はGeneratorの設定オプション
type GeneratorOption func(*Generator)

// WithGeneratorLogger はロガーを設定する
func WithGeneratorLogger(logger *slog.Logger) GeneratorOption {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithGenerationWorkers は並行生成数を設定する
func WithGenerationWorkers(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.workers = n
		}
	}
}

// WithSampling は温度と最大トークン数を設定する
func WithSampling(temperature float64, maxTokens int) GeneratorOption {
	return func(g *Generator) {
		g.temperature = temperature
		if maxTokens > 0 {
			g.maxTokens = maxTokens
		}
	}
}

// WithModel はLLMモデル名を設定する
func WithModel(model string) GeneratorOption {
	return func(g *Generator) {
		g.model = model
	}
}

// NewGenerator は新しいGeneratorを作成する
func NewGenerator(client Client, opts ...GeneratorOption) *Generator {
	g := &Generator{
		client:      client,
		logger:      slog.Default(),
		workers:     DefaultGenerationWorkers,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GenerateParams はノート生成のパラメータ
type GenerateParams struct {
	JobID     uuid.UUID
	Request   catalog.Request
	BoardName string
	Contexts  []*search.TopicContext
}

// Generate は概要・トピックページ・まとめを生成してノートを組み立てる
func (g *Generator) Generate(ctx context.Context, params GenerateParams) (*Notes, error) {
	if len(params.Contexts) == 0 {
		return nil, fmt.Errorf("no topics to generate")
	}

	topics := make([]catalog.Topic, 0, len(params.Contexts))
	for _, tc := range params.Contexts {
		topics = append(topics, tc.Topic)
	}

	// 概要
	overviewPrompt, overviewVars := BuildOverviewPrompt(params.Request, params.BoardName, topics)
	var overview overviewPayload
	model, err := g.complete(ctx, PromptOverview, overviewPrompt, overviewVars, &overview)
	if err != nil {
		return nil, fmt.Errorf("failed to generate overview: %w", err)
	}

	// トピックページ（並行生成、順序はシラバス順を維持）
	pages := make([]*TopicPage, len(params.Contexts))
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for i, tc := range params.Contexts {
		eg.Go(func() error {
			page, err := g.generateTopicPage(egctx, params, tc)
			if err != nil {
				return fmt.Errorf("failed to generate topic %q: %w", tc.Topic.Title, err)
			}
			pages[i] = page
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	// まとめ
	summaryPrompt, summaryVars := BuildSummaryPrompt(params.Request, params.BoardName, pages)
	var summary summaryPayload
	if _, err := g.complete(ctx, PromptSummary, summaryPrompt, summaryVars, &summary); err != nil {
		return nil, fmt.Errorf("failed to generate summary: %w", err)
	}

	notes := &Notes{
		ID:            uuid.New(),
		JobID:         params.JobID,
		Title:         fmt.Sprintf("%s: %s (Class %d, %s)", params.Request.Subject, params.Request.Chapter, params.Request.Class, params.Request.Board),
		Request:       params.Request,
		BoardName:     params.BoardName,
		Overview:      strings.TrimSpace(overview.Overview),
		Topics:        pages,
		Summary:       strings.TrimSpace(summary.Summary),
		KeyTerms:      summary.KeyTerms,
		References:    collectReferences(pages),
		Model:         model,
		PromptVersion: PromptVersion,
		GeneratedAt:   g.now(),
	}

	g.logger.Info("ノートを生成しました",
		"jobID", params.JobID,
		"topics", len(pages),
		"model", model,
	)
	return notes, nil
}

func (g *Generator) generateTopicPage(ctx context.Context, params GenerateParams, tc *search.TopicContext) (*TopicPage, error) {
	prompt, vars := BuildTopicPrompt(params.Request, params.BoardName, tc)
	var payload topicPayload
	if _, err := g.complete(ctx, PromptTopicPage, prompt, vars, &payload); err != nil {
		return nil, err
	}

	page := &TopicPage{
		Topic:       tc.Topic.Title,
		Definition:  strings.TrimSpace(payload.Definition),
		Explanation: strings.TrimSpace(payload.Explanation),
		KeyPoints:   payload.KeyPoints,
		Sources:     referencesFromResults(tc.Results),
	}
	if params.Request.WantsExamples() {
		page.Examples = payload.Examples
	}
	if params.Request.WantsQuestions() {
		page.Questions = payload.Questions
	}
	return page, nil
}

// complete はLLMを呼び出して out にデコードする
// 解釈できない出力の場合は1回だけ修正を依頼する
func (g *Generator) complete(ctx context.Context, id PromptID, prompt string, vars map[string]string, out validator) (string, error) {
	resp, err := g.client.GenerateCompletion(ctx, g.request(id, prompt, vars))
	if err != nil {
		return "", err
	}

	parseErr := decodeJSON(resp.Content, out)
	if parseErr == nil {
		parseErr = out.validate()
	}
	if parseErr == nil {
		return resp.Model, nil
	}

	g.logger.Warn("LLM出力の解釈に失敗したため修正を依頼します",
		"promptID", id,
		"error", parseErr,
	)

	repairPrompt, repairVars := BuildRepairPrompt(id, resp.Content, parseErr)
	for k, v := range vars {
		if _, exists := repairVars[k]; !exists {
			repairVars[k] = v
		}
	}
	repaired, err := g.client.GenerateCompletion(ctx, g.request(PromptRepair, repairPrompt, repairVars))
	if err != nil {
		return "", fmt.Errorf("repair request failed: %w", err)
	}
	out.reset()
	if err := decodeJSON(repaired.Content, out); err != nil {
		return "", err
	}
	if err := out.validate(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidLLMOutput, err)
	}
	return repaired.Model, nil
}

func (g *Generator) request(id PromptID, prompt string, vars map[string]string) CompletionRequest {
	return CompletionRequest{
		PromptID:       id,
		Prompt:         prompt,
		Variables:      vars,
		Temperature:    g.temperature,
		MaxTokens:      g.maxTokens,
		ResponseFormat: "json",
		Model:          g.model,
	}
}

func referencesFromResults(results []*search.SearchResult) []Reference {
	seen := make(map[string]struct{})
	var refs []Reference
	for _, r := range results {
		key := r.SourceURL
		if key == "" {
			key = r.SourceTitle
		}
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		refs = append(refs, Reference{Title: r.SourceTitle, URL: r.SourceURL})
	}
	return refs
}

func collectReferences(pages []*TopicPage) []Reference {
	seen := make(map[Reference]struct{})
	var refs []Reference
	for _, p := range pages {
		for _, ref := range p.Sources {
			if _, dup := seen[ref]; dup {
				continue
			}
			seen[ref] = struct{}{}
			refs = append(refs, ref)
		}
	}
	return refs
}
