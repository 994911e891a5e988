package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/study-notes/internal/core/catalog"
	"github.com/jinford/study-notes/internal/core/job"
	"github.com/jinford/study-notes/internal/core/notes"
	"github.com/jinford/study-notes/internal/infra/postgres/sqlc"
)

// stubQuerier はジョブとノートのクエリだけをメモリ上で再現する
type stubQuerier struct {
	sqlc.Querier
	jobs  map[pgtype.UUID]sqlc.Job
	notes map[pgtype.UUID]sqlc.Note
	err   error
}

func newStubQuerier() *stubQuerier {
	return &stubQuerier{
		jobs:  make(map[pgtype.UUID]sqlc.Job),
		notes: make(map[pgtype.UUID]sqlc.Note),
	}
}

func (s *stubQuerier) UpsertJob(ctx context.Context, arg sqlc.UpsertJobParams) error {
	if s.err != nil {
		return s.err
	}
	s.jobs[arg.ID] = sqlc.Job(arg)
	return nil
}

func (s *stubQuerier) GetJob(ctx context.Context, id pgtype.UUID) (sqlc.Job, error) {
	j, ok := s.jobs[id]
	if !ok {
		return sqlc.Job{}, pgx.ErrNoRows
	}
	return j, nil
}

func (s *stubQuerier) UpsertNotes(ctx context.Context, arg sqlc.UpsertNotesParams) error {
	s.notes[arg.JobID] = sqlc.Note(arg)
	return nil
}

func (s *stubQuerier) GetNotesByJob(ctx context.Context, jobID pgtype.UUID) (sqlc.Note, error) {
	n, ok := s.notes[jobID]
	if !ok {
		return sqlc.Note{}, pgx.ErrNoRows
	}
	return n, nil
}

func TestJobRepository_SaveAndGet(t *testing.T) {
	q := newStubQuerier()
	repo := NewJobRepository(q)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	notesID := uuid.New()
	j := &job.Job{
		ID:           uuid.New(),
		Request:      catalog.Request{Class: 10, Board: "CBSE", Subject: "Science", Chapter: "Light"},
		State:        job.StateCompleted,
		Progress:     100,
		Message:      "Notes ready",
		NotesID:      &notesID,
		ArtifactPath: "/out/notes.pdf",
		CreatedAt:    now,
		UpdatedAt:    now.Add(time.Minute),
		StartedAt:    &now,
	}
	require.NoError(t, repo.SaveJob(ctx, j))

	stored := q.jobs[UUIDToPgtype(j.ID)]
	assert.False(t, stored.Error.Valid)
	assert.False(t, stored.CompletedAt.Valid)

	got, err := repo.GetJob(ctx, j.ID)
	require.NoError(t, err)
	require.True(t, got.IsPresent())
	assert.Equal(t, j, got.MustGet())

	missing, err := repo.GetJob(ctx, uuid.New())
	require.NoError(t, err)
	assert.True(t, missing.IsAbsent())
}

func TestJobRepository_SaveError(t *testing.T) {
	q := newStubQuerier()
	q.err = errors.New("connection refused")

	err := NewJobRepository(q).SaveJob(context.Background(), &job.Job{ID: uuid.New()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save job")
}

func TestNotesRepository_SaveAndGet(t *testing.T) {
	q := newStubQuerier()
	repo := NewNotesRepository(q)
	ctx := context.Background()

	n := &notes.Notes{
		ID:      uuid.New(),
		JobID:   uuid.New(),
		Title:   "Science: Light",
		Request: catalog.Request{Class: 10, Board: "CBSE", Subject: "Science", Chapter: "Light"},
		Topics:  []*notes.TopicPage{{Topic: "Reflection", Definition: "Bouncing back of light."}},
		Quality: &notes.QualityReport{Score: 0.75, Passed: true},
		Model:   "mock-template-v1",
	}
	require.NoError(t, repo.SaveNotes(ctx, n))

	stored := q.notes[UUIDToPgtype(n.JobID)]
	assert.Equal(t, 0.75, stored.QualityScore.Float64)
	assert.True(t, stored.QualityPassed.Bool)

	got, err := repo.GetNotesByJob(ctx, n.JobID)
	require.NoError(t, err)
	require.True(t, got.IsPresent())
	assert.Equal(t, "Reflection", got.MustGet().Topics[0].Topic)

	missing, err := repo.GetNotesByJob(ctx, uuid.New())
	require.NoError(t, err)
	assert.True(t, missing.IsAbsent())
}

func TestConverters(t *testing.T) {
	assert.Nil(t, PgtypeToUUIDPtr(UUIDPtrToPgtype(nil)))
	assert.Nil(t, PgtypeToTimePtr(TimePtrToPgtype(nil)))
	assert.False(t, StringToNullableText("").Valid)
	assert.Equal(t, "", PgtextToString(pgtype.Text{}))

	local := time.Date(2026, 1, 1, 9, 0, 0, 0, time.FixedZone("IST", 5*3600+1800))
	assert.Equal(t, time.UTC, PgtypeToTime(TimeToPgtype(local)).Location())
}

func TestSchemaIsEmbedded(t *testing.T) {
	assert.Contains(t, Schema(), "CREATE TABLE IF NOT EXISTS embeddings")
}
