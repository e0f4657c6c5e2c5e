package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/olliezdai13/SmartFridge/constants"
)

// ProcessSnapshotJobType is the only job type the snapshot pipeline queues.
const ProcessSnapshotJobType = "process_snapshot"

// Job is the durable unit of work queued for a snapshot. At most one worker
// holds the lease (locked_by + lease_expires_at) at a time; an expired lease
// makes the row reclaimable.
type Job struct {
	ID             uuid.UUID           `gorm:"type:uuid;primaryKey"`
	JobType        string              `gorm:"size:64;not null;uniqueIndex:uq_jobs_snapshot_job_type"`
	SnapshotID     uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:uq_jobs_snapshot_job_type"`
	Status         constants.JobStatus `gorm:"size:32;not null;default:queued;index:idx_jobs_status_run_at"`
	Attempts       int                 `gorm:"not null;default:0"`
	LastError      *string             `gorm:"type:text"`
	RunAt          time.Time           `gorm:"not null;index:idx_jobs_status_run_at"`
	LockedBy       *string             `gorm:"size:64"`
	LockedAt       *time.Time
	LeaseExpiresAt *time.Time
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

func (Job) TableName() string { return "jobs" }
