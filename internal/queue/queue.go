// Package queue implements a Postgres-backed job queue with at-least-once
// delivery. Jobs are claimed with FOR UPDATE SKIP LOCKED inside a
// transaction; a claim carries a lease token, and a lease that expires makes
// the job reclaimable by any worker. Delivery counts above the configured
// ceiling route a job to a terminal dead status instead of redelivery.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/olliezdai13/SmartFridge/constants"
	"github.com/olliezdai13/SmartFridge/internal/common"
	"github.com/olliezdai13/SmartFridge/internal/entity"
)

// Job is the dequeued unit of work handed to a worker.
type Job struct {
	ID         uuid.UUID
	SnapshotID uuid.UUID
	// Deliveries counts how many times this job has been handed out,
	// including the current delivery.
	Deliveries int
}

type Queue interface {
	// Enqueue makes the snapshot's job visible. Re-enqueueing an existing
	// job (manual retry) resets its delivery count; a job currently leased
	// by a worker is left untouched.
	Enqueue(ctx context.Context, snapshotID uuid.UUID) error
	// Dequeue claims the oldest visible job and returns it with a lease
	// token. Returns (nil, "", nil) when no job is available.
	Dequeue(ctx context.Context, lease time.Duration) (*Job, string, error)
	// Ack deletes the job. Only the lease holder may ack.
	Ack(ctx context.Context, token string) error
	// Nack returns the job to the visible state after the given delay,
	// recording the cause for diagnosis.
	Nack(ctx context.Context, token string, cause string, delay time.Duration) error
	// ExtendLease pushes the lease expiry out. Returns ErrLeaseLost when
	// the lease already expired or was claimed by someone else.
	ExtendLease(ctx context.Context, token string, lease time.Duration) error
}

type dbQueue struct {
	db            *gorm.DB
	logger        *slog.Logger
	maxDeliveries int
}

func New(db *gorm.DB, logger *slog.Logger, maxDeliveries int) Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &dbQueue{db: db, logger: logger, maxDeliveries: maxDeliveries}
}

func (q *dbQueue) Enqueue(ctx context.Context, snapshotID uuid.UUID) error {
	now := time.Now().UTC()
	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job entity.Job
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("job_type = ? AND snapshot_id = ?", entity.ProcessSnapshotJobType, snapshotID).
			First(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			job = entity.Job{
				ID:         uuid.New(),
				JobType:    entity.ProcessSnapshotJobType,
				SnapshotID: snapshotID,
				Status:     constants.JobQueued,
				RunAt:      now,
			}
			return tx.Create(&job).Error
		}
		if err != nil {
			return err
		}
		if job.Status == constants.JobRunning {
			return nil
		}
		return tx.Model(&entity.Job{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
			"status":           constants.JobQueued,
			"attempts":         0,
			"run_at":           now,
			"last_error":       nil,
			"locked_by":        nil,
			"locked_at":        nil,
			"lease_expires_at": nil,
			"updated_at":       now,
		}).Error
	})
	if err != nil {
		q.logger.Error("queue.enqueue.failed", "snapshot_id", snapshotID, "error", err)
		return err
	}
	q.logger.Info("queue.enqueued", "snapshot_id", snapshotID)
	return nil
}

func (q *dbQueue) Dequeue(ctx context.Context, lease time.Duration) (*Job, string, error) {
	now := time.Now().UTC()
	token := uuid.NewString()
	var claimed *entity.Job

	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job entity.Job
		// Visible: queued and due, or running with an expired lease
		// (worker crashed mid-flight).
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("job_type = ?", entity.ProcessSnapshotJobType).
			Where(`(status = ? AND run_at <= ?) OR (status = ? AND lease_expires_at <= ?)`,
				constants.JobQueued, now, constants.JobRunning, now).
			Order("created_at ASC").
			First(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if q.maxDeliveries > 0 && job.Attempts >= q.maxDeliveries {
			msg := "max deliveries exceeded"
			q.logger.Warn("queue.job.dead", "job_id", job.ID, "snapshot_id", job.SnapshotID, "deliveries", job.Attempts)
			if err := tx.Model(&entity.Job{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
				"status":           constants.JobDead,
				"last_error":       msg,
				"locked_by":        nil,
				"locked_at":        nil,
				"lease_expires_at": nil,
				"updated_at":       now,
			}).Error; err != nil {
				return err
			}
			// A poisoned job must not leave its snapshot in limbo.
			return tx.Model(&entity.Snapshot{}).
				Where("id = ? AND status <> ?", job.SnapshotID, constants.SnapshotComplete).
				Updates(map[string]interface{}{
					"status":     constants.SnapshotFailed,
					"error":      msg,
					"updated_at": now,
				}).Error
		}

		expires := now.Add(lease)
		if err := tx.Model(&entity.Job{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
			"status":           constants.JobRunning,
			"attempts":         job.Attempts + 1,
			"locked_by":        token,
			"locked_at":        now,
			"lease_expires_at": expires,
			"updated_at":       now,
		}).Error; err != nil {
			return err
		}
		job.Attempts++
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	if claimed == nil {
		return nil, "", nil
	}

	q.logger.Info("queue.job.locked",
		"job_id", claimed.ID,
		"snapshot_id", claimed.SnapshotID,
		"delivery", claimed.Attempts,
	)
	return &Job{ID: claimed.ID, SnapshotID: claimed.SnapshotID, Deliveries: claimed.Attempts}, token, nil
}

func (q *dbQueue) Ack(ctx context.Context, token string) error {
	res := q.db.WithContext(ctx).
		Where("locked_by = ? AND status = ?", token, constants.JobRunning).
		Delete(&entity.Job{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return common.ErrLeaseLost
	}
	return nil
}

func (q *dbQueue) Nack(ctx context.Context, token string, cause string, delay time.Duration) error {
	now := time.Now().UTC()
	res := q.db.WithContext(ctx).Model(&entity.Job{}).
		Where("locked_by = ? AND status = ?", token, constants.JobRunning).
		Updates(map[string]interface{}{
			"status":           constants.JobQueued,
			"run_at":           now.Add(delay),
			"last_error":       cause,
			"locked_by":        nil,
			"locked_at":        nil,
			"lease_expires_at": nil,
			"updated_at":       now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return common.ErrLeaseLost
	}
	return nil
}

func (q *dbQueue) ExtendLease(ctx context.Context, token string, lease time.Duration) error {
	now := time.Now().UTC()
	res := q.db.WithContext(ctx).Model(&entity.Job{}).
		Where("locked_by = ? AND status = ? AND lease_expires_at > ?", token, constants.JobRunning, now).
		Updates(map[string]interface{}{
			"lease_expires_at": now.Add(lease),
			"updated_at":       now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return common.ErrLeaseLost
	}
	return nil
}

// Backoff returns the delay before the given attempt is retried: the initial
// delay doubled per prior attempt, capped at ten minutes.
func Backoff(initial time.Duration, attempt int) time.Duration {
	if initial <= 0 {
		initial = time.Second
	}
	if attempt < 1 {
		attempt = 1
	}
	d := initial
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= 10*time.Minute {
			return 10 * time.Minute
		}
	}
	return d
}
