package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jinford/study-notes/internal/core/catalog"
	"github.com/jinford/study-notes/internal/core/ingestion"
	"github.com/jinford/study-notes/internal/core/job"
	"github.com/jinford/study-notes/internal/core/notes"
	"github.com/jinford/study-notes/internal/core/search"
)

var (
	// ErrJobTimedOut はジョブが制限時間内に終わらなかったことを表す
	ErrJobTimedOut = errors.New("job timed out")
	// ErrNoTopics はシラバスからトピックを1件も抽出できなかった場合に返される
	ErrNoTopics = errors.New("no topics extracted from syllabus")
)

// runState はステップ間で受け渡す途中結果
type runState struct {
	jobID     uuid.UUID
	request   catalog.Request
	syllabus  *catalog.Syllabus
	topics    []catalog.Topic
	resources []*ingestion.Resource
	index     *ingestion.IndexResult
	contexts  []*search.TopicContext
	notes     *notes.Notes
	artifact  string
}

type step struct {
	state job.State
	fn    func(ctx context.Context, rs *runState) error
}

func (o *Orchestrator) steps() []step {
	return []step{
		{job.StateValidating, o.validate},
		{job.StateFetchingSyllabus, o.fetchSyllabus},
		{job.StateExtractingTopics, o.extractTopics},
		{job.StateScrapingResources, o.scrapeResources},
		{job.StateIndexing, o.indexResources},
		{job.StateRetrieving, o.retrieve},
		{job.StateGeneratingContent, o.generate},
		{job.StateQualityCheck, o.checkQuality},
		{job.StateCompilingPDF, o.compile},
	}
}

// run はステップを順に実行し、結果に応じてジョブを終端状態にする
func (o *Orchestrator) run(ctx context.Context, jobID uuid.UUID, req catalog.Request) {
	if o.cfg.JobTimeout > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeoutCause(ctx, o.cfg.JobTimeout, ErrJobTimedOut)
		defer stop()
	}

	rs := &runState{jobID: jobID, request: req}
	defer o.cleanup(ctx, rs)

	started := time.Now()
	for _, s := range o.steps() {
		if err := o.sleep(ctx); err != nil {
			o.finishWithError(ctx, jobID, s.state, err)
			return
		}
		if _, err := o.deps.Jobs.Advance(ctx, jobID, s.state, ""); err != nil {
			// 外部から終端にされた場合など
			o.logger.Warn("ジョブの状態遷移に失敗したため中断します",
				"jobID", jobID,
				"state", s.state,
				"error", err,
			)
			return
		}
		if err := s.fn(ctx, rs); err != nil {
			o.finishWithError(ctx, jobID, s.state, err)
			return
		}
	}

	if _, err := o.deps.Jobs.Complete(ctx, jobID, job.Result{
		NotesID:      rs.notes.ID,
		ArtifactPath: rs.artifact,
	}); err != nil {
		o.logger.Error("ジョブの完了処理に失敗しました", "jobID", jobID, "error", err)
		return
	}

	o.logger.Info("ジョブが完了しました",
		"jobID", jobID,
		"duration", time.Since(started),
		"artifact", rs.artifact,
	)
}

// finishWithError は中断理由に応じて cancelled または failed にする
func (o *Orchestrator) finishWithError(ctx context.Context, jobID uuid.UUID, state job.State, err error) {
	if cause := context.Cause(ctx); cause != nil {
		if errors.Is(cause, ErrJobCancelled) {
			if _, cerr := o.deps.Jobs.Cancel(ctx, jobID); cerr != nil {
				o.logger.Warn("ジョブのキャンセルに失敗しました", "jobID", jobID, "error", cerr)
			}
			o.logger.Info("ジョブをキャンセルしました", "jobID", jobID, "state", state)
			return
		}
		if errors.Is(cause, ErrJobTimedOut) {
			err = fmt.Errorf("%w after %s during %s", ErrJobTimedOut, o.cfg.JobTimeout, state)
		}
	}

	o.logger.Error("ジョブが失敗しました",
		"jobID", jobID,
		"state", state,
		"error", err,
	)
	if _, ferr := o.deps.Jobs.Fail(ctx, jobID, err); ferr != nil {
		o.logger.Warn("ジョブの失敗記録に失敗しました", "jobID", jobID, "error", ferr)
	}
}

func (o *Orchestrator) sleep(ctx context.Context) error {
	if o.cfg.StepDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(o.cfg.StepDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cleanup はインデックスを削除する（KeepIndex 指定時は残す）
func (o *Orchestrator) cleanup(ctx context.Context, rs *runState) {
	if rs.index == nil || o.cfg.KeepIndex || o.deps.Cleaner == nil {
		return
	}
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := o.deps.Cleaner.DeleteChunksByJob(cleanupCtx, rs.jobID); err != nil {
		o.logger.Warn("インデックスの削除に失敗しました", "jobID", rs.jobID, "error", err)
	}
}

func (o *Orchestrator) validate(_ context.Context, rs *runState) error {
	req, err := o.deps.Validator.Validate(rs.request)
	if err != nil {
		return err
	}
	rs.request = req
	return nil
}

func (o *Orchestrator) fetchSyllabus(ctx context.Context, rs *runState) error {
	syllabus, err := o.deps.Syllabus.FetchSyllabus(ctx, rs.request)
	if err != nil {
		return fmt.Errorf("failed to fetch syllabus: %w", err)
	}
	rs.syllabus = syllabus
	if syllabus.Generated {
		o.deps.Jobs.Log(rs.jobID, "Chapter not found in catalog; using a generic syllabus")
	}
	return nil
}

func (o *Orchestrator) extractTopics(_ context.Context, rs *runState) error {
	limit := o.cfg.MaxTopics
	if rs.request.MaxTopics > 0 {
		limit = rs.request.MaxTopics
	}
	rs.topics = catalog.ExtractTopics(rs.syllabus, limit)
	if len(rs.topics) == 0 {
		return ErrNoTopics
	}
	o.deps.Jobs.Log(rs.jobID, fmt.Sprintf("Extracted %d topics", len(rs.topics)))
	return nil
}

func (o *Orchestrator) scrapeResources(ctx context.Context, rs *runState) error {
	resources, err := o.deps.Scraper.Scrape(ctx, ingestion.ScrapeRequest{
		JobID:    rs.jobID,
		Request:  rs.request,
		Topics:   rs.topics,
		PerTopic: o.cfg.ResourcesPerTopic,
	})
	if err != nil {
		return fmt.Errorf("failed to scrape resources: %w", err)
	}
	rs.resources = resources
	o.deps.Jobs.Log(rs.jobID, fmt.Sprintf("Collected %d resources from %s", len(resources), o.deps.Scraper.Name()))
	return nil
}

func (o *Orchestrator) indexResources(ctx context.Context, rs *runState) error {
	result, err := o.deps.Indexer.IndexResources(ctx, rs.jobID, rs.resources)
	if err != nil {
		return err
	}
	rs.index = result
	o.deps.Jobs.Log(rs.jobID, fmt.Sprintf("Indexed %d chunks", result.Stats.TotalChunks))
	return nil
}

func (o *Orchestrator) retrieve(ctx context.Context, rs *runState) error {
	contexts, err := o.deps.Retriever.RetrieveForTopics(ctx, search.RetrieveParams{
		JobID:    rs.jobID,
		Subject:  rs.request.Subject,
		Chapter:  rs.request.Chapter,
		Topics:   rs.topics,
		TopK:     o.cfg.RetrievalTopK,
		MinScore: o.cfg.RetrievalMinScore,
	})
	if err != nil {
		return err
	}
	rs.contexts = contexts
	return nil
}

func (o *Orchestrator) generate(ctx context.Context, rs *runState) error {
	boardName := ""
	if rs.syllabus != nil {
		boardName = rs.syllabus.BoardName
	}
	n, err := o.deps.Generator.Generate(ctx, notes.GenerateParams{
		JobID:     rs.jobID,
		Request:   rs.request,
		BoardName: boardName,
		Contexts:  rs.contexts,
	})
	if err != nil {
		return err
	}
	rs.notes = n
	o.deps.Jobs.Log(rs.jobID, fmt.Sprintf("Generated %d topic pages", len(n.Topics)))
	return nil
}

// checkQuality は採点結果をノートに添えて保存し、不合格ならエラーにする
// 不合格でもノートは保存するため、利用者は指摘内容を確認できる
func (o *Orchestrator) checkQuality(ctx context.Context, rs *runState) error {
	report := o.deps.Quality.Check(rs.notes)
	rs.notes.Quality = report

	if err := o.deps.Notes.SaveNotes(ctx, rs.notes); err != nil {
		return fmt.Errorf("failed to save notes: %w", err)
	}

	o.deps.Jobs.Log(rs.jobID, fmt.Sprintf("Quality score %.2f (%d issues)", report.Score, len(report.Issues)))
	if !report.Passed {
		return fmt.Errorf("%w: score %.2f below %.2f", notes.ErrQualityGateFailed, report.Score, report.MinScore)
	}
	return nil
}

func (o *Orchestrator) compile(ctx context.Context, rs *runState) error {
	data, err := o.deps.Compiler.Compile(ctx, rs.notes)
	if err != nil {
		return fmt.Errorf("failed to compile notes: %w", err)
	}
	name := rs.jobID.String() + o.deps.Compiler.Extension()
	path, err := o.deps.Artifacts.Save(ctx, name, data)
	if err != nil {
		return fmt.Errorf("failed to save artifact: %w", err)
	}
	rs.artifact = path
	return nil
}
