package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/quatton/qsmr/pkg/db/models"
	"github.com/quatton/qsmr/pkg/smr"
	"github.com/uptrace/bun"
)

// DBStore keeps reports in the smr.batches and smr.invocations tables.
type DBStore struct {
	db *bun.DB
}

func NewDBStore(db *bun.DB) *DBStore {
	return &DBStore{db: db}
}

func (s *DBStore) Save(ctx context.Context, r *Report) error {
	batch, err := toModel(r)
	if err != nil {
		return err
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(batch).
			On("CONFLICT (id) DO UPDATE").
			Set("finished_at = EXCLUDED.finished_at").
			Set("error = EXCLUDED.error").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to save batch: %w", err)
		}

		_, err = tx.NewDelete().
			Model((*models.Invocation)(nil)).
			Where("batch_id = ?", batch.ID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to clear invocations: %w", err)
		}

		if len(batch.Invocations) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&batch.Invocations).Exec(ctx); err != nil {
			return fmt.Errorf("failed to save invocations: %w", err)
		}
		return nil
	})
}

func (s *DBStore) Get(ctx context.Context, id string) (*Report, error) {
	batchID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}

	batch := new(models.Batch)
	err = s.db.NewSelect().
		Model(batch).
		Relation("Invocations", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("i.seq ASC")
		}).
		Where("b.id = ?", batchID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load batch: %w", err)
	}
	return fromModel(batch), nil
}

func (s *DBStore) List(ctx context.Context, f Filter) ([]*Report, error) {
	var batches []*models.Batch
	q := s.db.NewSelect().
		Model(&batches).
		Relation("Invocations", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("i.seq ASC")
		}).
		Order("b.started_at DESC")
	if f.Label != "" {
		q = q.Where("b.label = ?", f.Label)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}

	reports := make([]*Report, 0, len(batches))
	for _, b := range batches {
		reports = append(reports, fromModel(b))
	}
	return reports, nil
}

func toModel(r *Report) (*models.Batch, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid report id %q: %w", r.ID, err)
	}

	batch := &models.Batch{
		ID:         id,
		Label:      r.Job.Label,
		Gene:       r.Job.Gene,
		BFile:      r.Job.BFile,
		Probe:      r.Job.Probe,
		EQTL:       r.Job.EQTL,
		SNPs:       r.Job.SNPs,
		Backend:    r.Backend,
		Policy:     r.Policy,
		OutputDir:  r.OutputDir,
		Error:      r.Error,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
	for _, inv := range r.Invocations {
		batch.Invocations = append(batch.Invocations, &models.Invocation{
			BatchID:    id,
			Seq:        inv.Seq,
			SNP:        inv.SNP,
			Outcome:    inv.Outcome,
			OutPrefix:  inv.OutPrefix,
			Command:    inv.Command,
			Status:     inv.Status,
			ExitCode:   inv.ExitCode,
			Attempts:   inv.Attempts,
			StartedAt:  inv.StartedAt,
			DurationMs: inv.Duration.Milliseconds(),
			Error:      inv.Error,
			Stderr:     inv.Stderr,
		})
	}
	return batch, nil
}

func fromModel(b *models.Batch) *Report {
	r := &Report{
		ID: b.ID.String(),
		Job: smr.Job{
			Gene:  b.Gene,
			BFile: b.BFile,
			SNPs:  b.SNPs,
			Probe: b.Probe,
			EQTL:  b.EQTL,
			Label: b.Label,
		},
		Backend:     b.Backend,
		Policy:      b.Policy,
		OutputDir:   b.OutputDir,
		StartedAt:   b.StartedAt,
		FinishedAt:  b.FinishedAt,
		Error:       b.Error,
		Invocations: make([]Invocation, 0, len(b.Invocations)),
	}
	for _, inv := range b.Invocations {
		r.Invocations = append(r.Invocations, Invocation{
			Seq:       inv.Seq,
			SNP:       inv.SNP,
			Outcome:   inv.Outcome,
			OutPrefix: inv.OutPrefix,
			Command:   inv.Command,
			Status:    inv.Status,
			ExitCode:  inv.ExitCode,
			Attempts:  inv.Attempts,
			StartedAt: inv.StartedAt,
			Duration:  time.Duration(inv.DurationMs) * time.Millisecond,
			Error:     inv.Error,
			Stderr:    inv.Stderr,
		})
	}
	return r
}

var _ Store = (*DBStore)(nil)
