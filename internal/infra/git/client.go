package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	giturls "github.com/whilp/git-urls"
)

// Client は教材リポジトリのミラーを手元に保つ
type Client struct {
	sshKeyPath  string
	sshPassword string
}

// NewClient は新しい Client を作成する
// 鍵ファイルが存在しない場合は認証なしで接続する
func NewClient(sshKeyPath, sshPassword string) *Client {
	return &Client{
		sshKeyPath:  sshKeyPath,
		sshPassword: sshPassword,
	}
}

// URLToDirectoryName はGit URLを "host/owner/repo" 形式のディレクトリ名に変換する
func (c *Client) URLToDirectoryName(gitURL string) (string, error) {
	u, err := giturls.Parse(gitURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse git URL: %w", err)
	}

	host := u.Hostname()
	if host == "" {
		host = u.Host
	}
	repoPath := strings.TrimSuffix(strings.TrimPrefix(u.Path, "/"), ".git")
	if repoPath == "" {
		return "", fmt.Errorf("git URL has no repository path: %s", gitURL)
	}
	return filepath.Join(host, repoPath), nil
}

// Sync は destDir にミラーが無ければ clone し、あれば ref を fetch してチェックアウトする
func (c *Client) Sync(ctx context.Context, url, destDir, ref string) error {
	auth, err := c.auth()
	if err != nil {
		return err
	}

	if _, err := os.Stat(filepath.Join(destDir, ".git")); os.IsNotExist(err) {
		if _, err := git.PlainCloneContext(ctx, destDir, false, &git.CloneOptions{
			URL:  url,
			Auth: auth,
		}); err != nil {
			return fmt.Errorf("failed to clone %s: %w", url, err)
		}
		return nil
	}

	repo, err := git.PlainOpen(destDir)
	if err != nil {
		return fmt.Errorf("failed to open mirror: %w", err)
	}
	err = repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: git.DefaultRemoteName,
		Auth:       auth,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to fetch %s: %w", url, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewRemoteReferenceName(git.DefaultRemoteName, ref),
		Force:  true,
	}); err != nil {
		return fmt.Errorf("failed to checkout %s: %w", ref, err)
	}
	return nil
}

// Snapshot はある ref が指すコミットのファイルツリー
type Snapshot struct {
	Commit string
	tree   *object.Tree
}

// Open はミラーの ref を解決してスナップショットを返す
func (c *Client) Open(repoPath, ref string) (*Snapshot, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open mirror: %w", err)
	}

	hash, err := resolve(repo, ref)
	if err != nil {
		return nil, err
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("failed to load commit %s: %w", hash, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to load tree of %s: %w", hash, err)
	}
	return &Snapshot{Commit: hash.String(), tree: tree}, nil
}

// Walk はスナップショット内の全ファイルを fn に渡す
// read を呼んだときだけ内容を読み出す
func (s *Snapshot) Walk(ctx context.Context, fn func(path string, size int64, read func() (string, error)) error) error {
	err := s.tree.Files().ForEach(func(f *object.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(f.Name, f.Size, f.Contents)
	})
	if err != nil {
		return fmt.Errorf("failed to walk tree: %w", err)
	}
	return nil
}

// resolve は ref をブランチ・タグ・コミットハッシュ・origin のリモートブランチの順に解決する
func resolve(repo *git.Repository, ref string) (*plumbing.Hash, error) {
	if ref == "" {
		ref = string(plumbing.HEAD)
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err == nil {
		return hash, nil
	}
	remote, rerr := repo.ResolveRevision(plumbing.Revision(git.DefaultRemoteName + "/" + ref))
	if rerr == nil {
		return remote, nil
	}
	return nil, fmt.Errorf("failed to resolve ref %q: %w", ref, err)
}

func (c *Client) auth() (transport.AuthMethod, error) {
	if c.sshKeyPath == "" {
		return nil, nil
	}
	if _, err := os.Stat(c.sshKeyPath); os.IsNotExist(err) {
		return nil, nil
	}

	keys, err := ssh.NewPublicKeysFromFile("git", c.sshKeyPath, c.sshPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to load SSH key %s: %w", c.sshKeyPath, err)
	}
	return keys, nil
}
