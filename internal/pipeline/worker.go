package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/olliezdai13/SmartFridge/internal/common"
	"github.com/olliezdai13/SmartFridge/internal/queue"
	"github.com/olliezdai13/SmartFridge/internal/repository"
)

// Pool polls the job queue with a fixed number of workers and applies the
// retry policy around the processor: transient failures are redelivered with
// exponential backoff until the attempt budget runs out, then the snapshot is
// failed and the job acked.
type Pool struct {
	queue     queue.Queue
	processor *Processor
	snapshots repository.SnapshotRepository
	cfg       common.WorkerConfig
	logger    *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPool(
	q queue.Queue,
	processor *Processor,
	snapshots repository.SnapshotRepository,
	cfg common.WorkerConfig,
	logger *slog.Logger,
) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		queue:     q,
		processor: processor,
		snapshots: snapshots,
		cfg:       cfg,
		logger:    logger,
	}
}

// Start launches the worker goroutines. They run until Stop or until the
// given context is cancelled.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.cfg.Concurrency; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
	p.logger.Info("worker.pool.started", "concurrency", p.cfg.Concurrency, "poll_interval", p.cfg.PollInterval.String())
}

// Stop cancels the workers and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.logger.Info("worker.pool.stopped")
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		// drain available jobs before sleeping
		for {
			if ctx.Err() != nil {
				return
			}
			worked, err := p.runOne(ctx)
			if err != nil {
				p.logger.Error("worker.poll.failed", "worker", id, "error", err)
				break
			}
			if !worked {
				break
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runOne claims and processes at most one job. Returns false when the queue
// was empty.
func (p *Pool) runOne(ctx context.Context) (bool, error) {
	job, token, err := p.queue.Dequeue(ctx, p.cfg.LeaseDuration)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	procCtx, cancel := context.WithTimeout(ctx, p.cfg.ProcessTimeout)
	defer cancel()

	leaseCheck := func(c context.Context) error {
		return p.queue.ExtendLease(c, token, p.cfg.LeaseDuration)
	}

	err = p.processor.ProcessSnapshot(procCtx, job.SnapshotID, leaseCheck)
	p.settle(ctx, job, token, err)
	return true, nil
}

// settle maps the processing outcome onto the queue.
func (p *Pool) settle(ctx context.Context, job *queue.Job, token string, procErr error) {
	switch {
	case procErr == nil:
		p.ack(ctx, job, token)

	case errors.Is(procErr, common.ErrLeaseLost):
		// Another worker owns the job now. Touch nothing.
		p.logger.Warn("worker.job.lease_lost", "job_id", job.ID, "snapshot_id", job.SnapshotID)

	case errors.Is(procErr, common.ErrSnapshotTerminal):
		// Duplicate delivery of an already-settled snapshot.
		p.logger.Info("worker.job.already_settled", "job_id", job.ID, "snapshot_id", job.SnapshotID)
		p.ack(ctx, job, token)

	case common.IsValidation(procErr):
		// Processor already failed the snapshot with the raw output attached.
		p.ack(ctx, job, token)

	case common.IsConfiguration(procErr):
		// Retrying cannot fix a deployment mistake.
		p.logger.Error("worker.job.configuration_error",
			"job_id", job.ID, "snapshot_id", job.SnapshotID, "error", procErr)
		p.failAndAck(ctx, job, token, procErr)

	case job.Deliveries >= p.cfg.MaxAttempts:
		p.logger.Error("worker.job.attempts_exhausted",
			"job_id", job.ID, "snapshot_id", job.SnapshotID,
			"deliveries", job.Deliveries, "error", procErr)
		p.failAndAck(ctx, job, token, procErr)

	default:
		delay := queue.Backoff(p.cfg.InitialBackoff, job.Deliveries)
		p.logger.Warn("worker.job.retrying",
			"job_id", job.ID, "snapshot_id", job.SnapshotID,
			"delivery", job.Deliveries, "delay", delay.String(), "error", procErr)
		if err := p.queue.Nack(ctx, token, procErr.Error(), delay); err != nil {
			p.logger.Warn("worker.job.nack_failed", "job_id", job.ID, "error", err)
		}
	}
}

func (p *Pool) ack(ctx context.Context, job *queue.Job, token string) {
	if err := p.queue.Ack(ctx, token); err != nil {
		p.logger.Warn("worker.job.ack_failed", "job_id", job.ID, "error", err)
	}
}

func (p *Pool) failAndAck(ctx context.Context, job *queue.Job, token string, cause error) {
	if err := p.snapshots.MarkFailed(ctx, job.SnapshotID, cause.Error(), nil); err != nil &&
		!errors.Is(err, common.ErrSnapshotTerminal) {
		p.logger.Error("worker.job.mark_failed_error", "snapshot_id", job.SnapshotID, "error", err)
	}
	p.ack(ctx, job, token)
}
