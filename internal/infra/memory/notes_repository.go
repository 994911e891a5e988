package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jinford/study-notes/internal/core/notes"
	"github.com/samber/mo"
)

// NotesRepository はノートをメモリ上に保持する
type NotesRepository struct {
	mu    sync.RWMutex
	byJob map[uuid.UUID]*notes.Notes
}

// NewNotesRepository は空の NotesRepository を作成する
func NewNotesRepository() *NotesRepository {
	return &NotesRepository{byJob: make(map[uuid.UUID]*notes.Notes)}
}

// SaveNotes はジョブのノートを保存する（既存は置き換える）
func (r *NotesRepository) SaveNotes(ctx context.Context, n *notes.Notes) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byJob[n.JobID] = n
	return nil
}

// GetNotesByJob はジョブのノートを返す
func (r *NotesRepository) GetNotesByJob(ctx context.Context, jobID uuid.UUID) (mo.Option[*notes.Notes], error) {
	if err := ctx.Err(); err != nil {
		return mo.None[*notes.Notes](), err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n, ok := r.byJob[jobID]; ok {
		return mo.Some(n), nil
	}
	return mo.None[*notes.Notes](), nil
}

var _ notes.Repository = (*NotesRepository)(nil)
