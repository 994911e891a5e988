package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed schema/schema.sql
var schemaSQL string

// Execer はスキーマ適用に必要な最小限のインターフェース
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Migrate はスキーマを適用する
// 全ての文は IF NOT EXISTS で書かれているため繰り返し実行できる
func Migrate(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Schema は適用されるスキーマSQLを返す
func Schema() string {
	return schemaSQL
}
