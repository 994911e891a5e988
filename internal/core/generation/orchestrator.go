package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinford/study-notes/internal/core/catalog"
	"github.com/jinford/study-notes/internal/core/ingestion"
	"github.com/jinford/study-notes/internal/core/job"
	"github.com/jinford/study-notes/internal/core/notes"
	"github.com/jinford/study-notes/internal/core/search"
)

// ErrJobCancelled は利用者の操作でジョブが中断されたことを表す
var ErrJobCancelled = errors.New("job cancelled")

const cleanupTimeout = 30 * time.Second

// Validator はリクエストの検証と正規化を行う
type Validator interface {
	Validate(req catalog.Request) (catalog.Request, error)
}

// SyllabusFetcher はシラバスを取得する
type SyllabusFetcher interface {
	FetchSyllabus(ctx context.Context, req catalog.Request) (*catalog.Syllabus, error)
}

// Indexer は教材をインデックス化する
type Indexer interface {
	IndexResources(ctx context.Context, jobID uuid.UUID, resources []*ingestion.Resource) (*ingestion.IndexResult, error)
}

// Retriever はトピックごとの関連チャンクを取得する
type Retriever interface {
	RetrieveForTopics(ctx context.Context, params search.RetrieveParams) ([]*search.TopicContext, error)
}

// IndexCleaner はジョブのインデックスを削除する
type IndexCleaner interface {
	DeleteChunksByJob(ctx context.Context, jobID uuid.UUID) error
}

// NotesGenerator はノート本文を生成する
type NotesGenerator interface {
	Generate(ctx context.Context, params notes.GenerateParams) (*notes.Notes, error)
}

// QualityChecker はノートを採点する
type QualityChecker interface {
	Check(n *notes.Notes) *notes.QualityReport
}

// Dependencies はパイプラインの各ステップが使う協調オブジェクト
type Dependencies struct {
	Jobs      *job.Manager
	Validator Validator
	Syllabus  SyllabusFetcher
	Scraper   ingestion.Scraper
	Indexer   Indexer
	Retriever Retriever
	Cleaner   IndexCleaner
	Generator NotesGenerator
	Quality   QualityChecker
	Notes     notes.Repository
	Compiler  notes.Compiler
	Artifacts notes.ArtifactStore
}

func (d Dependencies) validate() error {
	switch {
	case d.Jobs == nil:
		return errors.New("job manager is required")
	case d.Validator == nil, d.Syllabus == nil:
		return errors.New("validator and syllabus provider are required")
	case d.Scraper == nil, d.Indexer == nil, d.Retriever == nil:
		return errors.New("scraper, indexer and retriever are required")
	case d.Generator == nil, d.Quality == nil, d.Notes == nil:
		return errors.New("generator, quality checker and notes repository are required")
	case d.Compiler == nil, d.Artifacts == nil:
		return errors.New("compiler and artifact store are required")
	}
	return nil
}

// Config はパイプラインの実行設定
type Config struct {
	StepDelay         time.Duration // 各ステップ前の待機（進捗表示の確認用）
	JobTimeout        time.Duration
	MaxConcurrentJobs int
	MaxTopics         int
	ResourcesPerTopic int
	RetrievalTopK     int
	RetrievalMinScore float64
	KeepIndex         bool
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		JobTimeout:        10 * time.Minute,
		MaxConcurrentJobs: 4,
		MaxTopics:         catalog.DefaultMaxTopics,
		ResourcesPerTopic: 3,
		RetrievalTopK:     search.DefaultTopK,
		RetrievalMinScore: 0.05,
	}
}

// Orchestrator はノート生成ジョブを非同期に実行する
type Orchestrator struct {
	deps   Dependencies
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running map[uuid.UUID]*run
	wg      sync.WaitGroup
}

type run struct {
	cancel context.CancelCauseFunc
	done   chan struct{}
}

// OrchestratorOption はOrchestratorの設定オプション
type OrchestratorOption func(*Orchestrator)

// WithOrchestratorLogger はロガーを設定する
func WithOrchestratorLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithConfig は実行設定を上書きする
func WithConfig(cfg Config) OrchestratorOption {
	return func(o *Orchestrator) {
		o.cfg = cfg
	}
}

// NewOrchestrator は新しいOrchestratorを作成する
func NewOrchestrator(deps Dependencies, opts ...OrchestratorOption) (*Orchestrator, error) {
	if err := deps.validate(); err != nil {
		return nil, fmt.Errorf("invalid orchestrator dependencies: %w", err)
	}
	o := &Orchestrator{
		deps:    deps,
		cfg:     DefaultConfig(),
		logger:  slog.Default(),
		running: make(map[uuid.UUID]*run),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.cfg.MaxConcurrentJobs <= 0 {
		o.cfg.MaxConcurrentJobs = DefaultConfig().MaxConcurrentJobs
	}
	return o, nil
}

// Jobs はジョブマネージャを返す
func (o *Orchestrator) Jobs() *job.Manager {
	return o.deps.Jobs
}

// Running は実行中のジョブ数を返す
func (o *Orchestrator) Running() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.running)
}

// Submit はジョブを作成し、パイプラインをバックグラウンドで開始する
// 実行中のジョブが上限に達している場合は job.ErrTooManyJobs を返す
func (o *Orchestrator) Submit(ctx context.Context, req catalog.Request) (job.Job, error) {
	o.mu.Lock()
	if len(o.running) >= o.cfg.MaxConcurrentJobs {
		o.mu.Unlock()
		return job.Job{}, fmt.Errorf("%w: limit is %d", job.ErrTooManyJobs, o.cfg.MaxConcurrentJobs)
	}

	created, err := o.deps.Jobs.Create(ctx, req)
	if err != nil {
		o.mu.Unlock()
		return job.Job{}, fmt.Errorf("failed to create job: %w", err)
	}

	// リクエストのコンテキストが終わってもジョブは継続する
	runCtx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	r := &run{cancel: cancel, done: make(chan struct{})}
	o.running[created.ID] = r
	o.wg.Add(1)
	o.mu.Unlock()

	go func() {
		defer o.wg.Done()
		defer func() {
			o.mu.Lock()
			delete(o.running, created.ID)
			o.mu.Unlock()
			cancel(nil)
			close(r.done)
		}()
		o.run(runCtx, created.ID, req)
	}()

	return created, nil
}

// Wait はジョブが終端状態になるまで待機し、最終的なジョブを返す
func (o *Orchestrator) Wait(ctx context.Context, id uuid.UUID) (job.Job, error) {
	o.mu.Lock()
	r, ok := o.running[id]
	o.mu.Unlock()

	if ok {
		select {
		case <-r.done:
		case <-ctx.Done():
			return job.Job{}, ctx.Err()
		}
	}

	found, err := o.deps.Jobs.Get(ctx, id)
	if err != nil {
		return job.Job{}, err
	}
	j, exists := found.Get()
	if !exists {
		return job.Job{}, fmt.Errorf("%w: %s", job.ErrJobNotFound, id)
	}
	return j, nil
}

// Cancel は実行中のジョブを中断する
// 実行中でなく終端でもないジョブは直接 cancelled にする
func (o *Orchestrator) Cancel(ctx context.Context, id uuid.UUID) (job.Job, error) {
	o.mu.Lock()
	r, ok := o.running[id]
	o.mu.Unlock()

	if !ok {
		return o.deps.Jobs.Cancel(ctx, id)
	}

	r.cancel(ErrJobCancelled)
	select {
	case <-r.done:
	case <-ctx.Done():
		return job.Job{}, ctx.Err()
	}
	return o.Wait(ctx, id)
}

// Shutdown は実行中の全ジョブを中断し、終了を待つ
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	for _, r := range o.running {
		r.cancel(ErrJobCancelled)
	}
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
