package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/jinford/study-notes/internal/core/job"
	"github.com/jinford/study-notes/internal/platform/database"
)

// JobListAction はジョブ一覧を表示するコマンドのアクション
// メモリストアの場合は同一プロセス内のジョブのみ対象になる
func JobListAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	limit := cmd.Int("limit")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	jobs, err := appCtx.Container.Jobs.List(ctx, limit)
	if err != nil {
		return fmt.Errorf("ジョブ一覧の取得に失敗: %w", err)
	}
	if len(jobs) == 0 {
		slog.Info("ジョブはありません")
		return nil
	}
	printJobs(os.Stdout, jobs)
	return nil
}

// JobShowAction はジョブ詳細と直近のイベントを表示するコマンドのアクション
func JobShowAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	id, err := uuid.Parse(cmd.String("id"))
	if err != nil {
		return fmt.Errorf("ジョブIDが不正です: %w", err)
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	// DB利用時はノートとチャンク数も合わせて表示する
	if db := appCtx.Container.Database(); db != nil {
		report, err := database.LoadJobReport(ctx, database.NewTransactionProvider(db.Pool), id)
		if err != nil {
			return fmt.Errorf("ジョブの取得に失敗: %w", err)
		}
		return enc.Encode(report)
	}

	found, err := appCtx.Container.Jobs.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("ジョブの取得に失敗: %w", err)
	}
	j, ok := found.Get()
	if !ok {
		return fmt.Errorf("%w: %s", job.ErrJobNotFound, id)
	}
	return enc.Encode(j)
}

func printJobs(w io.Writer, jobs []job.Job) {
	fmt.Fprintf(w, "%-36s  %-20s  %4s  %s\n", "ID", "STATE", "PCT", "REQUEST")
	for _, j := range jobs {
		fmt.Fprintf(w, "%-36s  %-20s  %3d%%  Class %d %s %s / %s\n",
			j.ID, j.State, j.Progress,
			j.Request.Class, j.Request.Board, j.Request.Subject, j.Request.Chapter,
		)
	}
}
