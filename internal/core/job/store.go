package job

import (
	"context"

	"github.com/google/uuid"
	"github.com/samber/mo"
)

// Store はジョブ記録の永続化インターフェース
// Manager はベストエフォートで書き込み、失敗してもジョブの遷移は失敗させない
type Store interface {
	// SaveJob はジョブ記録を作成または更新する
	SaveJob(ctx context.Context, job *Job) error

	// GetJob はIDでジョブ記録を取得する
	GetJob(ctx context.Context, id uuid.UUID) (mo.Option[*Job], error)

	// ListJobs は作成日時の降順でジョブ記録を取得する
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
}
