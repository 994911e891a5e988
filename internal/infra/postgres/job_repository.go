package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/samber/mo"

	"github.com/jinford/study-notes/internal/core/catalog"
	"github.com/jinford/study-notes/internal/core/job"
	"github.com/jinford/study-notes/internal/infra/postgres/sqlc"
)

// JobRepository は job.Store を実装する PostgreSQL リポジトリ
type JobRepository struct {
	q sqlc.Querier
}

// NewJobRepository は新しい JobRepository を返す
func NewJobRepository(q sqlc.Querier) *JobRepository {
	return &JobRepository{q: q}
}

var _ job.Store = (*JobRepository)(nil)

// SaveJob はジョブ記録を作成または更新する
func (r *JobRepository) SaveJob(ctx context.Context, j *job.Job) error {
	request, err := json.Marshal(j.Request)
	if err != nil {
		return fmt.Errorf("failed to encode job request: %w", err)
	}

	err = r.q.UpsertJob(ctx, sqlc.UpsertJobParams{
		ID:           UUIDToPgtype(j.ID),
		Request:      request,
		State:        string(j.State),
		Progress:     int32(j.Progress),
		Message:      j.Message,
		Error:        StringToNullableText(j.Error),
		NotesID:      UUIDPtrToPgtype(j.NotesID),
		ArtifactPath: StringToNullableText(j.ArtifactPath),
		CreatedAt:    TimeToPgtype(j.CreatedAt),
		UpdatedAt:    TimeToPgtype(j.UpdatedAt),
		StartedAt:    TimePtrToPgtype(j.StartedAt),
		CompletedAt:  TimePtrToPgtype(j.CompletedAt),
	})
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

// GetJob はIDでジョブ記録を取得する
func (r *JobRepository) GetJob(ctx context.Context, id uuid.UUID) (mo.Option[*job.Job], error) {
	row, err := r.q.GetJob(ctx, UUIDToPgtype(id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mo.None[*job.Job](), nil
		}
		return mo.None[*job.Job](), fmt.Errorf("failed to get job: %w", err)
	}

	j, err := convertSQLCJob(row)
	if err != nil {
		return mo.None[*job.Job](), err
	}
	return mo.Some(j), nil
}

// ListJobs は作成日時の降順でジョブ記録を取得する
func (r *JobRepository) ListJobs(ctx context.Context, limit int) ([]*job.Job, error) {
	rows, err := r.q.ListJobs(ctx, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	jobs := make([]*job.Job, 0, len(rows))
	for _, row := range rows {
		j, err := convertSQLCJob(row)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func convertSQLCJob(row sqlc.Job) (*job.Job, error) {
	var req catalog.Request
	if err := json.Unmarshal(row.Request, &req); err != nil {
		return nil, fmt.Errorf("failed to decode job request: %w", err)
	}

	return &job.Job{
		ID:           PgtypeToUUID(row.ID),
		Request:      req,
		State:        job.State(row.State),
		Progress:     int(row.Progress),
		Message:      row.Message,
		Error:        PgtextToString(row.Error),
		NotesID:      PgtypeToUUIDPtr(row.NotesID),
		ArtifactPath: PgtextToString(row.ArtifactPath),
		CreatedAt:    PgtypeToTime(row.CreatedAt),
		UpdatedAt:    PgtypeToTime(row.UpdatedAt),
		StartedAt:    PgtypeToTimePtr(row.StartedAt),
		CompletedAt:  PgtypeToTimePtr(row.CompletedAt),
	}, nil
}
