package notes

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
	"github.com/samber/mo"
)

var (
	// ErrNotesNotFound はジョブのノートが存在しない場合に返される
	ErrNotesNotFound = errors.New("notes not found")
	// ErrQualityGateFailed は品質チェックに合格しなかった場合に返される
	ErrQualityGateFailed = errors.New("notes did not pass the quality gate")
)

// Repository はノートの永続化インターフェース
type Repository interface {
	// SaveNotes はノートを保存する（同一ジョブのノートは置き換える）
	SaveNotes(ctx context.Context, notes *Notes) error

	// GetNotesByJob はジョブIDでノートを取得する
	GetNotesByJob(ctx context.Context, jobID uuid.UUID) (mo.Option[*Notes], error)
}

// Compiler はノートを配布用のドキュメントに変換する
type Compiler interface {
	// Compile はノートをPDFなどのバイト列に変換する
	Compile(ctx context.Context, notes *Notes) ([]byte, error)

	// Extension は成果物の拡張子を返す（例: ".pdf"）
	Extension() string
}

// ArtifactStore は成果物の保存先
type ArtifactStore interface {
	// Save は成果物を保存し、参照用のパスを返す
	Save(ctx context.Context, name string, data []byte) (string, error)

	// Open は保存済みの成果物を開く
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}
