package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/jinford/study-notes/internal/platform/config"
	"github.com/jinford/study-notes/internal/platform/database"
)

// DBMigrateAction はスキーマを適用するコマンドのアクション
func DBMigrateAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("env"))
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗: %w", err)
	}
	if !cfg.Database.Enabled {
		return fmt.Errorf("データベースが無効です（DB_ENABLED=true を設定してください）")
	}

	db, err := database.Open(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("データベース接続に失敗: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, database.NewTransactionProvider(db.Pool)); err != nil {
		return fmt.Errorf("マイグレーションに失敗: %w", err)
	}

	slog.Info("マイグレーションが完了しました", "database", cfg.Database.DBName)
	return nil
}
