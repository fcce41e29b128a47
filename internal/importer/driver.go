// Package importer turns uploaded sales spreadsheets into CRM records. The
// service parses and validates the upload, filters the paid rows and hands
// them to the driver, which walks them strictly in order, one upsert at a
// time, checkpointing progress to the job store so the run survives restarts.
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vendaops/console/internal/crm"
	"github.com/vendaops/console/internal/csvio"
	"github.com/vendaops/console/internal/jobstore"
	"github.com/vendaops/console/internal/mapping"
	"github.com/vendaops/console/internal/sales"
)

// leaseTTL is how long the import lock survives between refreshes. The
// driver refreshes it at every checkpoint, so it only expires when the
// process dies mid-run.
const leaseTTL = 2 * time.Minute

// RowResolver lands one normalized sale in the CRM.
type RowResolver interface {
	UpsertSale(ctx context.Context, row sales.NormalizedRow, stageID, source string) (crm.Outcome, error)
}

// JobStore is the slice of the job store the driver needs.
type JobStore interface {
	Update(ctx context.Context, id string, mutate func(*jobstore.Job) error) (jobstore.Job, error)
	CancelRequested(ctx context.Context, id string) (bool, error)
	ClearCancel(ctx context.Context, id string) error
	RefreshLease(ctx context.Context, lease *jobstore.Lease, ttl time.Duration) error
}

// Batch is one run of rows for a job. Rows holds only the paid rows, in
// file order. StartAfter is the last row index a previous run already
// finished; -1 starts from the first row.
type Batch struct {
	JobID      string
	StageID    string
	Source     string
	Mapping    mapping.ColumnMapping
	Rows       []csvio.Row
	Delay      time.Duration
	StartAfter int
	Lease      *jobstore.Lease
}

type Driver struct {
	store    JobStore
	resolver RowResolver
	logger   *zap.Logger
}

func NewDriver(store JobStore, resolver RowResolver, logger *zap.Logger) *Driver {
	return &Driver{store: store, resolver: resolver, logger: logger}
}

// Run walks the batch strictly in order, one row at a time. Progress is
// checkpointed whenever the integer percentage advances or every
// checkpointInterval rows, and the lease is refreshed at each checkpoint.
// A context cancellation stops the run but leaves the job processing so it
// can be resumed; the Redis cancel marker moves it to cancelled instead.
func (d *Driver) Run(ctx context.Context, batch Batch) error {
	job, err := d.store.Update(ctx, batch.JobID, func(j *jobstore.Job) error {
		if !j.Status.CanTransition(jobstore.StatusProcessing) {
			return fmt.Errorf("importacao nao pode iniciar no status %q", j.Status)
		}
		j.Status = jobstore.StatusProcessing
		j.TotalRows = len(batch.Rows)
		j.LastMessage = "processando vendas"
		return nil
	})
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panico durante a importacao",
				zap.String("job_id", batch.JobID),
				zap.Any("panic", r))
			d.store.Update(context.Background(), batch.JobID, func(j *jobstore.Job) error {
				j.Status = jobstore.StatusError
				j.LastMessage = "falha inesperada durante a importacao"
				return nil
			})
		}
	}()

	total := len(batch.Rows)
	interval := checkpointInterval(total)
	lastPercent := percentOf(job.Processed, total)

	for i, row := range batch.Rows {
		if i <= batch.StartAfter {
			continue
		}

		select {
		case <-ctx.Done():
			// shutdown mid-run: leave the job processing so a resume can pick it up
			return ctx.Err()
		default:
		}

		cancelled, err := d.store.CancelRequested(ctx, batch.JobID)
		if err != nil {
			d.logger.Warn("erro ao checar cancelamento", zap.String("job_id", batch.JobID), zap.Error(err))
		}
		if cancelled {
			if err := d.checkpoint(ctx, batch, &job, jobstore.StatusCancelled, "importacao cancelada pelo usuario"); err != nil {
				return err
			}
			if err := d.store.ClearCancel(ctx, batch.JobID); err != nil {
				d.logger.Warn("erro ao limpar marcador de cancelamento", zap.String("job_id", batch.JobID), zap.Error(err))
			}
			d.logger.Info("importacao cancelada", zap.String("job_id", batch.JobID), zap.Int("processed", job.Processed))
			return nil
		}

		d.processRow(ctx, batch, &job, i, row)

		if pct := percentOf(job.Processed, total); pct != lastPercent || job.Processed%interval == 0 {
			lastPercent = pct
			message := fmt.Sprintf("processando vendas (%d%%)", pct)
			if err := d.checkpoint(ctx, batch, &job, jobstore.StatusProcessing, message); err != nil {
				if errors.Is(err, jobstore.ErrLeaseLost) {
					// another instance may own the job now, stop writing
					return err
				}
				d.logger.Warn("erro ao salvar progresso", zap.String("job_id", batch.JobID), zap.Error(err))
			}
		}

		if batch.Delay > 0 && i < total-1 {
			select {
			case <-time.After(batch.Delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	summary := fmt.Sprintf("importacao concluida: %d criados, %d existentes, %d erros, %d ignorados",
		job.Created, job.Existing, job.Errors, job.Skipped)
	if err := d.checkpoint(ctx, batch, &job, jobstore.StatusCompleted, summary); err != nil {
		return err
	}
	d.logger.Info("importacao concluida",
		zap.String("job_id", batch.JobID),
		zap.Int("created", job.Created),
		zap.Int("existing", job.Existing),
		zap.Int("errors", job.Errors),
		zap.Int("skipped", job.Skipped))
	return nil
}

// processRow normalizes one row and lands it in the CRM, folding the result
// into the working copy of the job. Row failures never stop the run; they
// are counted and kept in the bounded error tail.
func (d *Driver) processRow(ctx context.Context, batch Batch, job *jobstore.Job, index int, row csvio.Row) {
	normalized, skip := sales.Normalize(row, batch.Mapping)
	job.Processed++
	job.LastProcessedIndex = index

	if skip != sales.SkipNone {
		job.Skipped++
		d.logger.Debug("venda ignorada", zap.Int("row", index), zap.String("reason", string(skip)))
		return
	}

	outcome, err := d.resolver.UpsertSale(ctx, normalized, batch.StageID, batch.Source)
	switch {
	case err != nil:
		job.Errors++
		job.AppendError(jobstore.ErrorDetail{Email: normalized.Email, Name: normalized.Name, Error: err.Error()})
		d.logger.Warn("erro ao importar venda",
			zap.Int("row", index),
			zap.String("email", normalized.Email),
			zap.Error(err))
	case outcome == crm.OutcomeCreated:
		job.Created++
	case outcome == crm.OutcomeExists:
		job.Existing++
	default:
		job.Skipped++
	}
}

// checkpoint refreshes the lease and persists the working copy.
// jobstore.ErrLeaseLost aborts the run without touching the document.
func (d *Driver) checkpoint(ctx context.Context, batch Batch, snap *jobstore.Job, status jobstore.Status, message string) error {
	if err := d.store.RefreshLease(ctx, batch.Lease, leaseTTL); err != nil {
		return err
	}

	updated, err := d.store.Update(ctx, batch.JobID, func(j *jobstore.Job) error {
		j.Status = status
		j.TotalRows = snap.TotalRows
		j.Processed = snap.Processed
		j.Created = snap.Created
		j.Existing = snap.Existing
		j.Errors = snap.Errors
		j.Skipped = snap.Skipped
		j.LastProcessedIndex = snap.LastProcessedIndex
		j.ErrorDetails = snap.ErrorDetails
		j.LastMessage = message
		return nil
	})
	if err != nil {
		return err
	}
	*snap = updated
	return nil
}

// checkpointInterval spaces the row-count checkpoints: roughly one per
// percent of the file, never tighter than every 10 rows nor looser than
// every 500.
func checkpointInterval(total int) int {
	n := total / 100
	if n < 10 {
		return 10
	}
	if n > 500 {
		return 500
	}
	return n
}

func percentOf(processed, total int) int {
	if total == 0 {
		return 100
	}
	return processed * 100 / total
}
