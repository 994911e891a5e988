package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/jinford/study-notes/internal/app/api"
)

const shutdownTimeout = 30 * time.Second

// ServerStartAction はHTTP APIサーバーを起動するコマンドのアクション
// シグナルを受けるとリクエストとジョブの終了を待って停止する
func ServerStartAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	port := appCtx.Config.Server.Port
	if cmd.IsSet("port") {
		port = cmd.Int("port")
	}

	c := appCtx.Container
	server := api.NewServer(api.Options{
		Address:      fmt.Sprintf(":%d", port),
		APIToken:     appCtx.Config.Server.APIToken,
		Orchestrator: c.Orchestrator,
		Catalog:      c.Catalog,
		Notes:        c.Notes,
		Artifacts:    c.Artifacts,
		Logger:       c.Logger(),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTPサーバーの起動に失敗: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("HTTPサーバーを停止します")
	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Stop(stopCtx); err != nil {
		return fmt.Errorf("HTTPサーバーの停止に失敗: %w", err)
	}
	if err := c.Orchestrator.Shutdown(stopCtx); err != nil {
		slog.Warn("実行中のジョブの停止を待てませんでした", "error", err)
	}
	return <-errCh
}
