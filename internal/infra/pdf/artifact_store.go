package pdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jinford/study-notes/internal/core/notes"
)

// ErrInvalidArtifactPath は保存先ディレクトリ外のパスが指定された場合に返される
var ErrInvalidArtifactPath = errors.New("invalid artifact path")

// FileStore は成果物をローカルディレクトリに保存する
type FileStore struct {
	dir string
}

var _ notes.ArtifactStore = (*FileStore)(nil)

// NewFileStore は新しいFileStoreを作成する
func NewFileStore(dir string) (*FileStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	return &FileStore{dir: abs}, nil
}

// Dir は保存先ディレクトリを返す
func (s *FileStore) Dir() string {
	return s.dir
}

// Save はデータを name で保存し、保存先のパスを返す
// 一時ファイルへ書き込んでからリネームする
func (s *FileStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" || filepath.Base(name) != name || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidArtifactPath, name)
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+".*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close artifact: %w", err)
	}

	dest := filepath.Join(s.dir, name)
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("failed to move artifact: %w", err)
	}
	return dest, nil
}

// Open は Save が返したパスの成果物を開く
func (s *FileStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rel, err := filepath.Rel(s.dir, filepath.Clean(path))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidArtifactPath, path)
	}

	f, err := os.Open(filepath.Join(s.dir, rel))
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	return f, nil
}
