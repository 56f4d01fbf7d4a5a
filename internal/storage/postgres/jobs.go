package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/platewise/printd/internal/printer"
)

// JobJournal implements printer.Journal on PostgreSQL.
type JobJournal struct {
	pool *pgxpool.Pool
}

// NewJobJournal creates a JobJournal over the given pool.
func NewJobJournal(pool *pgxpool.Pool) *JobJournal {
	return &JobJournal{pool: pool}
}

// Record inserts one print outcome.
func (j *JobJournal) Record(ctx context.Context, rec printer.JobRecord) error {
	_, err := j.pool.Exec(ctx, `
		INSERT INTO print_jobs
			(id, kind, ref, channel, copies, success, error, total, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, string(rec.Kind), rec.Ref, rec.Channel, rec.Copies,
		rec.Success, rec.Error, rec.Total, rec.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "insert print job")
	}
	return nil
}
