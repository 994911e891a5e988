package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/samber/mo"

	"github.com/jinford/study-notes/internal/core/notes"
	"github.com/jinford/study-notes/internal/infra/postgres/sqlc"
)

// NotesRepository は notes.Repository を実装する PostgreSQL リポジトリ
// ノート本文はJSONBで保存し、品質スコアは一覧・集計用に列へも書き出す
type NotesRepository struct {
	q sqlc.Querier
}

// NewNotesRepository は新しい NotesRepository を返す
func NewNotesRepository(q sqlc.Querier) *NotesRepository {
	return &NotesRepository{q: q}
}

var _ notes.Repository = (*NotesRepository)(nil)

// SaveNotes はノートを作成または更新する
func (r *NotesRepository) SaveNotes(ctx context.Context, n *notes.Notes) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notes: %w", err)
	}

	var score *float64
	var passed *bool
	if n.Quality != nil {
		score = &n.Quality.Score
		passed = &n.Quality.Passed
	}

	err = r.q.UpsertNotes(ctx, sqlc.UpsertNotesParams{
		ID:            UUIDToPgtype(n.ID),
		JobID:         UUIDToPgtype(n.JobID),
		Title:         n.Title,
		Body:          body,
		QualityScore:  Float64PtrToPgtype(score),
		QualityPassed: BoolPtrToPgtype(passed),
		Model:         n.Model,
		PromptVersion: n.PromptVersion,
		GeneratedAt:   TimeToPgtype(n.GeneratedAt),
	})
	if err != nil {
		return fmt.Errorf("failed to save notes: %w", err)
	}
	return nil
}

// GetNotesByJob はジョブIDでノートを取得する
func (r *NotesRepository) GetNotesByJob(ctx context.Context, jobID uuid.UUID) (mo.Option[*notes.Notes], error) {
	row, err := r.q.GetNotesByJob(ctx, UUIDToPgtype(jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mo.None[*notes.Notes](), nil
		}
		return mo.None[*notes.Notes](), fmt.Errorf("failed to get notes: %w", err)
	}

	var n notes.Notes
	if err := json.Unmarshal(row.Body, &n); err != nil {
		return mo.None[*notes.Notes](), fmt.Errorf("failed to decode notes: %w", err)
	}
	return mo.Some(&n), nil
}
