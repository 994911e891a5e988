package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jinford/study-notes/internal/infra/postgres"
	"github.com/jinford/study-notes/internal/infra/postgres/sqlc"
)

// TransactionProvider はトランザクション内で使うリポジトリ一式を払い出す
// 呼び出し側は pgx.Tx を直接扱わずに Transact のコールバックで処理を書く
type TransactionProvider struct {
	pool *pgxpool.Pool
}

// NewTransactionProvider は新しいTransactionProviderを作成します
func NewTransactionProvider(pool *pgxpool.Pool) *TransactionProvider {
	return &TransactionProvider{pool: pool}
}

// Adapter は1つのトランザクションを共有するリポジトリの組
type Adapter struct {
	Tx     pgx.Tx
	Jobs   *postgres.JobRepository
	Notes  *postgres.NotesRepository
	Chunks *postgres.ChunkRepository
}

func newAdapter(tx pgx.Tx) *Adapter {
	queries := sqlc.New(tx)
	return &Adapter{
		Tx:     tx,
		Jobs:   postgres.NewJobRepository(queries),
		Notes:  postgres.NewNotesRepository(queries),
		Chunks: postgres.NewChunkRepository(queries),
	}
}

// Transact は fn が成功すればコミットし、エラーならロールバックする
func Transact[T any](ctx context.Context, p *TransactionProvider, fn func(*Adapter) (T, error)) (T, error) {
	var zero T
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return zero, fmt.Errorf("failed to begin transaction: %w", err)
	}

	adapters := newAdapter(tx)

	result, err := fn(adapters)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return zero, fmt.Errorf("tx rollback failed: %v (original err: %w)", rbErr, err)
		}
		return zero, err
	}

	if err := tx.Commit(ctx); err != nil {
		return zero, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return result, nil
}

// Migrate はスキーマを1トランザクションで適用します
// 複数プロセスから同時に実行された場合はアドバイザリロックで直列化します
func Migrate(ctx context.Context, p *TransactionProvider) error {
	_, err := Transact(ctx, p, func(a *Adapter) (struct{}, error) {
		if err := AcquireXactLock(ctx, a.Tx, LockID("study-notes", "migrate")); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, postgres.Migrate(ctx, a.Tx)
	})
	return err
}
