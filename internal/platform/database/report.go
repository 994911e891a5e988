package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jinford/study-notes/internal/core/job"
	"github.com/jinford/study-notes/internal/core/notes"
)

// JobReport はジョブと生成物の状態を同一スナップショットで集めたもの
type JobReport struct {
	Job     *job.Job             `json:"job"`
	Quality *notes.QualityReport `json:"quality,omitempty"`
	Topics  int                  `json:"topics"`
	Chunks  int                  `json:"chunks"`
}

// LoadJobReport はジョブ・ノート・チャンク数を1つのトランザクションで取得する
func LoadJobReport(ctx context.Context, p *TransactionProvider, id uuid.UUID) (*JobReport, error) {
	return Transact(ctx, p, func(a *Adapter) (*JobReport, error) {
		found, err := a.Jobs.GetJob(ctx, id)
		if err != nil {
			return nil, err
		}
		j, ok := found.Get()
		if !ok {
			return nil, fmt.Errorf("%w: %s", job.ErrJobNotFound, id)
		}
		report := &JobReport{Job: j}

		n, err := a.Notes.GetNotesByJob(ctx, id)
		if err != nil {
			return nil, err
		}
		if generated, ok := n.Get(); ok {
			report.Quality = generated.Quality
			report.Topics = len(generated.Topics)
		}

		if report.Chunks, err = a.Chunks.CountChunks(ctx, id); err != nil {
			return nil, err
		}
		return report, nil
	})
}
