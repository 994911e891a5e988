package container

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jinford/study-notes/internal/core/catalog"
	"github.com/jinford/study-notes/internal/core/generation"
	"github.com/jinford/study-notes/internal/core/ingestion"
	"github.com/jinford/study-notes/internal/core/ingestion/chunk"
	"github.com/jinford/study-notes/internal/core/job"
	"github.com/jinford/study-notes/internal/core/notes"
	"github.com/jinford/study-notes/internal/core/search"
	"github.com/jinford/study-notes/internal/infra/git"
	"github.com/jinford/study-notes/internal/infra/memory"
	"github.com/jinford/study-notes/internal/infra/mock"
	"github.com/jinford/study-notes/internal/infra/openai"
	"github.com/jinford/study-notes/internal/infra/pdf"
	"github.com/jinford/study-notes/internal/infra/postgres"
	"github.com/jinford/study-notes/internal/infra/postgres/sqlc"
	"github.com/jinford/study-notes/internal/infra/web"
	"github.com/jinford/study-notes/internal/platform/config"
	"github.com/jinford/study-notes/internal/platform/database"
)

const (
	providerMock     = "mock"
	providerOpenAI   = "openai"
	providerMemory   = "memory"
	providerPostgres = "postgres"

	sourceMock = "mock"
	sourceWeb  = "web"
	sourceGit  = "git"
)

// vectorStore はインデックスの書き込みと検索・削除を両方提供するストア
type vectorStore interface {
	ingestion.Repository
	search.Repository
}

// Container はアプリケーションの依存関係を保持する
type Container struct {
	Config       *config.Config
	Catalog      *catalog.Catalog
	Jobs         *job.Manager
	Orchestrator *generation.Orchestrator
	Notes        notes.Repository
	Artifacts    *pdf.FileStore

	logger *slog.Logger
	db     *database.DB
	ownsDB bool
}

type containerOptions struct {
	logger       *slog.Logger
	db           *database.DB
	llm          notes.Client
	embedder     ingestion.Embedder
	scraper      ingestion.Scraper
	tokenCounter chunk.TokenCounter
}

// ContainerOption は Container 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithContainerDatabase は既存のデータベース接続を使う
func WithContainerDatabase(db *database.DB) ContainerOption {
	return func(opts *containerOptions) {
		opts.db = db
	}
}

// WithContainerLLM は LLM クライアントを差し替える
func WithContainerLLM(client notes.Client) ContainerOption {
	return func(opts *containerOptions) {
		opts.llm = client
	}
}

// WithContainerEmbedder はカスタム Embedder を注入する
func WithContainerEmbedder(embedder ingestion.Embedder) ContainerOption {
	return func(opts *containerOptions) {
		opts.embedder = embedder
	}
}

// WithContainerScraper は教材の取得元を差し替える
func WithContainerScraper(scraper ingestion.Scraper) ContainerOption {
	return func(opts *containerOptions) {
		opts.scraper = scraper
	}
}

// WithContainerTokenCounter は TokenCounter を差し替える
func WithContainerTokenCounter(counter chunk.TokenCounter) ContainerOption {
	return func(opts *containerOptions) {
		opts.tokenCounter = counter
	}
}

// New は設定からコンテナを生成する
func New(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*Container, error) {
	options := containerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	logger := options.logger

	c := &Container{Config: cfg, logger: logger, db: options.db}

	if c.db == nil && cfg.Database.Enabled {
		db, err := database.Open(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("データベース初期化に失敗しました: %w", err)
		}
		c.db = db
		c.ownsDB = true
	}

	if err := c.build(cfg, options); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) build(cfg *config.Config, options containerOptions) error {
	logger := c.logger

	cat, err := catalog.Default()
	if err != nil {
		return fmt.Errorf("カタログの読み込みに失敗しました: %w", err)
	}
	c.Catalog = cat

	// ジョブ・ノートの永続化先
	managerOpts := []job.ManagerOption{
		job.WithEventBus(job.NewEventBus(job.DefaultMaxEvents)),
		job.WithManagerLogger(logger),
		job.WithRetention(cfg.Pipeline.JobRetention),
	}
	switch cfg.Providers.JobStore {
	case providerPostgres:
		queries, err := c.queries()
		if err != nil {
			return err
		}
		managerOpts = append(managerOpts, job.WithStore(postgres.NewJobRepository(queries)))
		c.Notes = postgres.NewNotesRepository(queries)
	case providerMemory, "":
		c.Notes = memory.NewNotesRepository()
	default:
		return fmt.Errorf("未知のジョブストアです: %s", cfg.Providers.JobStore)
	}
	c.Jobs = job.NewManager(managerOpts...)

	// TokenCounter
	counter := options.tokenCounter
	if counter == nil {
		tc, err := chunk.NewTiktokenCounter()
		if err != nil {
			return fmt.Errorf("TokenCounter 初期化に失敗しました: %w", err)
		}
		counter = tc
	}

	embedder, err := c.embedder(cfg, options)
	if err != nil {
		return err
	}

	store, err := c.vectorStore(cfg)
	if err != nil {
		return err
	}

	llm, err := c.llm(cfg, options)
	if err != nil {
		return err
	}

	scraper, err := c.scraper(cfg, options)
	if err != nil {
		return err
	}

	artifacts, err := pdf.NewFileStore(cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("出力先の初期化に失敗しました: %w", err)
	}
	c.Artifacts = artifacts

	pipelineCfg := ingestion.DefaultPipelineConfig()
	indexService := ingestion.NewIndexService(
		store,
		embedder,
		chunk.NewTextChunker(counter, chunk.DefaultConfig()),
		ingestion.WithIndexLogger(logger),
		ingestion.WithIndexPipelineConfig(pipelineCfg),
	)
	searchService := search.NewSearchService(store, embedder, search.WithSearchLogger(logger))

	generatorOpts := []notes.GeneratorOption{
		notes.WithGeneratorLogger(logger),
		notes.WithGenerationWorkers(cfg.Pipeline.GenerationWorkers),
		notes.WithSampling(cfg.OpenAI.Temperature, cfg.OpenAI.MaxTokens),
	}
	if cfg.Providers.LLM == providerOpenAI {
		generatorOpts = append(generatorOpts, notes.WithModel(cfg.OpenAI.LLMModel))
	}

	qualityCfg := notes.DefaultQualityConfig()
	if cfg.Pipeline.QualityMinScore > 0 {
		qualityCfg.MinScore = cfg.Pipeline.QualityMinScore
	}

	orchestrator, err := generation.NewOrchestrator(generation.Dependencies{
		Jobs:      c.Jobs,
		Validator: catalog.NewValidator(cat),
		Syllabus:  catalog.NewSyllabusProvider(cat),
		Scraper:   scraper,
		Indexer:   indexService,
		Retriever: searchService,
		Cleaner:   store,
		Generator: notes.NewGenerator(llm, generatorOpts...),
		Quality:   notes.NewQualityChecker(counter, qualityCfg),
		Notes:     c.Notes,
		Compiler:  pdf.NewCompiler(),
		Artifacts: artifacts,
	},
		generation.WithOrchestratorLogger(logger),
		generation.WithConfig(pipelineConfig(cfg)),
	)
	if err != nil {
		return fmt.Errorf("オーケストレーターの初期化に失敗しました: %w", err)
	}
	c.Orchestrator = orchestrator

	logger.Info("コンテナを初期化しました",
		"llm", cfg.Providers.LLM,
		"embedder", embedder.ModelName(),
		"vectorStore", cfg.Providers.VectorStore,
		"jobStore", cfg.Providers.JobStore,
		"scraper", scraper.Name(),
	)
	return nil
}

func (c *Container) queries() (*sqlc.Queries, error) {
	if c.db == nil {
		return nil, fmt.Errorf("postgres ストアにはデータベース接続が必要です（DB_ENABLED=true）")
	}
	return sqlc.New(c.db.Pool), nil
}

func (c *Container) embedder(cfg *config.Config, options containerOptions) (ingestion.Embedder, error) {
	if options.embedder != nil {
		return options.embedder, nil
	}
	switch cfg.Providers.Embedder {
	case providerOpenAI:
		embedder, err := openai.NewEmbedder(
			cfg.OpenAI.APIKey,
			openai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
			openai.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension),
			openai.WithEmbeddingRequestsPerMinute(cfg.OpenAI.RequestsPerMinute),
		)
		if err != nil {
			return nil, fmt.Errorf("OpenAI Embedder 初期化に失敗しました: %w", err)
		}
		return embedder, nil
	case providerMock, "":
		return memory.NewHashEmbedder(cfg.Pipeline.HashEmbedDimension), nil
	default:
		return nil, fmt.Errorf("未知の Embedder です: %s", cfg.Providers.Embedder)
	}
}

func (c *Container) vectorStore(cfg *config.Config) (vectorStore, error) {
	switch cfg.Providers.VectorStore {
	case providerPostgres:
		queries, err := c.queries()
		if err != nil {
			return nil, err
		}
		return postgres.NewChunkRepository(queries), nil
	case providerMemory, "":
		return memory.NewVectorDatabase(), nil
	default:
		return nil, fmt.Errorf("未知のベクトルストアです: %s", cfg.Providers.VectorStore)
	}
}

func (c *Container) llm(cfg *config.Config, options containerOptions) (notes.Client, error) {
	if options.llm != nil {
		return options.llm, nil
	}
	switch cfg.Providers.LLM {
	case providerOpenAI:
		client, err := openai.NewClient(
			cfg.OpenAI.APIKey,
			openai.WithModel(cfg.OpenAI.LLMModel),
			openai.WithRequestsPerMinute(cfg.OpenAI.RequestsPerMinute),
		)
		if err != nil {
			return nil, fmt.Errorf("OpenAI LLMクライアント初期化に失敗しました: %w", err)
		}
		return client, nil
	case providerMock, "":
		return mock.NewLLM(), nil
	default:
		return nil, fmt.Errorf("未知の LLM プロバイダです: %s", cfg.Providers.LLM)
	}
}

func (c *Container) scraper(cfg *config.Config, options containerOptions) (ingestion.Scraper, error) {
	if options.scraper != nil {
		return options.scraper, nil
	}

	var scrapers []ingestion.Scraper
	for _, source := range cfg.Providers.ScraperSources {
		switch strings.ToLower(strings.TrimSpace(source)) {
		case sourceMock:
			scrapers = append(scrapers, mock.NewScraper())
		case sourceWeb:
			s, err := web.NewScraper(cfg.Scraper.URLTemplates,
				web.WithUserAgent(cfg.Scraper.UserAgent),
				web.WithTimeout(cfg.Scraper.Timeout),
				web.WithRequestsPerSecond(cfg.Scraper.RequestsPerSecond),
				web.WithLogger(c.logger),
			)
			if err != nil {
				return nil, fmt.Errorf("Webスクレイパー初期化に失敗しました: %w", err)
			}
			scrapers = append(scrapers, s)
		case sourceGit:
			client := git.NewClient(cfg.Git.SSHKeyPath, cfg.Git.SSHPassword)
			s, err := git.NewScraper(client, cfg.Git.RepositoryURL, cfg.Git.CloneDir,
				git.WithRef(cfg.Git.Ref),
				git.WithScraperLogger(c.logger),
			)
			if err != nil {
				return nil, fmt.Errorf("Git教材リポジトリ初期化に失敗しました: %w", err)
			}
			scrapers = append(scrapers, s)
		default:
			return nil, fmt.Errorf("未知の教材取得元です: %s", source)
		}
	}
	if len(scrapers) == 0 {
		return nil, fmt.Errorf("教材の取得元が設定されていません（SCRAPER_SOURCES）")
	}

	return ingestion.NewMultiScraper(scrapers, ingestion.WithScraperLogger(c.logger)), nil
}

func pipelineConfig(cfg *config.Config) generation.Config {
	pc := generation.DefaultConfig()
	pc.StepDelay = cfg.Pipeline.StepDelay
	if cfg.Pipeline.JobTimeout > 0 {
		pc.JobTimeout = cfg.Pipeline.JobTimeout
	}
	if cfg.Pipeline.MaxConcurrentJobs > 0 {
		pc.MaxConcurrentJobs = cfg.Pipeline.MaxConcurrentJobs
	}
	if cfg.Pipeline.MaxTopics > 0 {
		pc.MaxTopics = cfg.Pipeline.MaxTopics
	}
	if cfg.Pipeline.ResourcesPerTopic > 0 {
		pc.ResourcesPerTopic = cfg.Pipeline.ResourcesPerTopic
	}
	if cfg.Pipeline.RetrievalTopK > 0 {
		pc.RetrievalTopK = cfg.Pipeline.RetrievalTopK
	}
	pc.RetrievalMinScore = cfg.Pipeline.RetrievalMinScore
	pc.KeepIndex = cfg.Pipeline.KeepIndex
	return pc
}

// Shutdown は実行中のジョブを止めてから内部リソースを解放する
func (c *Container) Shutdown(ctx context.Context) error {
	var err error
	if c != nil && c.Orchestrator != nil {
		err = c.Orchestrator.Shutdown(ctx)
	}
	c.Close()
	return err
}

// Close は内部リソースを解放する
func (c *Container) Close() {
	if c != nil && c.db != nil && c.ownsDB {
		c.db.Close()
		c.db = nil
	}
}

// Logger はロガーを返す
func (c *Container) Logger() *slog.Logger {
	if c == nil || c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

// Database はデータベースを返す（未使用の場合は nil）
func (c *Container) Database() *database.DB {
	if c == nil {
		return nil
	}
	return c.db
}
