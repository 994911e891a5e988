package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/jinford/study-notes/internal/core/catalog"
	"github.com/jinford/study-notes/internal/core/job"
	"github.com/jinford/study-notes/internal/core/notes"
	"github.com/jinford/study-notes/internal/platform/container"
)

const eventBuffer = 256

// NotesGenerateAction はノートを同期的に生成するコマンドのアクション
func NotesGenerateAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	req := catalog.Request{
		Class:     cmd.Int("class"),
		Board:     cmd.String("board"),
		Subject:   cmd.String("subject"),
		Chapter:   cmd.String("chapter"),
		MaxTopics: cmd.Int("max-topics"),
	}
	if cmd.Bool("no-examples") {
		req.IncludeExamples = boolPtr(false)
	}
	if cmd.Bool("no-questions") {
		req.IncludeQuestions = boolPtr(false)
	}

	slog.Info("ノート生成を開始",
		"class", req.Class,
		"board", req.Board,
		"subject", req.Subject,
		"chapter", req.Chapter,
	)

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	finished, err := generateNotes(ctx, appCtx.Container, req, cmd.String("markdown"), os.Stdout)
	if err != nil {
		slog.Error("ノート生成に失敗しました", "error", err)
		return err
	}

	fmt.Printf("PDF: %s\n", finished.ArtifactPath)
	return nil
}

// generateNotes はジョブを投入し、終了まで進捗を w に出力する
func generateNotes(ctx context.Context, c *container.Container, req catalog.Request, markdownPath string, w io.Writer) (job.Job, error) {
	events, unsubscribe := c.Jobs.Events().Subscribe(eventBuffer)
	defer unsubscribe()

	submitted, err := c.Orchestrator.Submit(ctx, req)
	if err != nil {
		return job.Job{}, fmt.Errorf("ジョブの投入に失敗: %w", err)
	}
	fmt.Fprintf(w, "ジョブ %s を開始しました\n", submitted.ID)

	type waitResult struct {
		job job.Job
		err error
	}
	done := make(chan waitResult, 1)
	go func() {
		j, err := c.Orchestrator.Wait(ctx, submitted.ID)
		done <- waitResult{job: j, err: err}
	}()

	var result waitResult
loop:
	for {
		select {
		case ev := <-events:
			printEvent(w, submitted.ID, ev)
		case result = <-done:
			break loop
		}
	}
	// 終了前に発行済みのイベントを出し切る
	for drained := false; !drained; {
		select {
		case ev := <-events:
			printEvent(w, submitted.ID, ev)
		default:
			drained = true
		}
	}

	if result.err != nil {
		if errors.Is(result.err, context.Canceled) || errors.Is(result.err, context.DeadlineExceeded) {
			cancelCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if _, err := c.Orchestrator.Cancel(cancelCtx, submitted.ID); err != nil {
				slog.Warn("ジョブのキャンセルに失敗しました", "jobID", submitted.ID, "error", err)
			}
		}
		return job.Job{}, result.err
	}

	finished := result.job
	if finished.State != job.StateCompleted {
		return finished, fmt.Errorf("ジョブが %s で終了しました: %s", finished.State, finished.Error)
	}

	if markdownPath != "" {
		if err := writeMarkdown(ctx, c.Notes, finished, markdownPath); err != nil {
			return finished, err
		}
		fmt.Fprintf(w, "Markdown: %s\n", markdownPath)
	}
	return finished, nil
}

func printEvent(w io.Writer, id uuid.UUID, ev job.Event) {
	if ev.JobID != id {
		return
	}
	switch ev.Type {
	case job.EventTypeError:
		fmt.Fprintf(w, "[%3d%%] エラー: %s\n", ev.Progress, ev.Message)
	default:
		fmt.Fprintf(w, "[%3d%%] %s\n", ev.Progress, ev.Message)
	}
}

func writeMarkdown(ctx context.Context, repo notes.Repository, j job.Job, path string) error {
	found, err := repo.GetNotesByJob(ctx, j.ID)
	if err != nil {
		return fmt.Errorf("ノートの取得に失敗: %w", err)
	}
	n, ok := found.Get()
	if !ok {
		return fmt.Errorf("%w: job %s", notes.ErrNotesNotFound, j.ID)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("出力ディレクトリの作成に失敗: %w", err)
	}
	if err := os.WriteFile(path, []byte(notes.RenderMarkdown(n)), 0644); err != nil {
		return fmt.Errorf("Markdownの書き込みに失敗: %w", err)
	}
	return nil
}

func boolPtr(b bool) *bool {
	return &b
}
