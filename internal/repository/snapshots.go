package repository

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

// ItemInput is one parsed inventory line waiting to be committed.
type ItemInput struct {
	Name       string
	Quantity   int
	RawPayload []byte
}

// SnapshotRepository owns every mutation of a snapshot's status and item set.
// Terminal states never regress: MarkProcessing, CompleteWithItems and
// MarkFailed all re-check the stored status inside a row-locked transaction
// and return ErrSnapshotTerminal when another worker already finished.
type SnapshotRepository interface {
	CreateAndEnqueue(ctx context.Context, snap *entity.Snapshot) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Snapshot, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*entity.Snapshot, error)
	LatestComplete(ctx context.Context, userID uuid.UUID) (*entity.Snapshot, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) (*entity.Snapshot, error)
	CompleteWithItems(ctx context.Context, id uuid.UUID, rawOutput string, items []ItemInput) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, rawOutput *string) error
	Requeue(ctx context.Context, id uuid.UUID) error
}

type snapshotRepo struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewSnapshotRepository(db *gorm.DB, logger *slog.Logger) SnapshotRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &snapshotRepo{db: db, logger: logger}
}

// CreateAndEnqueue inserts the pending snapshot row and exactly one queued
// job in a single transaction, so an accepted upload is never left without
// a job or vice versa.
func (r *snapshotRepo) CreateAndEnqueue(ctx context.Context, snap *entity.Snapshot) error {
	if snap.ID == uuid.Nil {
		snap.ID = uuid.New()
	}
	snap.Status = constants.SnapshotPending

	now := time.Now().UTC()
	job := entity.Job{
		ID:         uuid.New(),
		JobType:    entity.ProcessSnapshotJobType,
		SnapshotID: snap.ID,
		Status:     constants.JobQueued,
		RunAt:      now,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(snap).Error; err != nil {
			return err
		}
		return tx.Create(&job).Error
	})
	if err != nil {
		r.logger.Error("snapshot.create.failed", "user_id", snap.UserID, "error", err)
		return err
	}
	r.logger.Info("snapshot.created", "snapshot_id", snap.ID, "user_id", snap.UserID, "key", snap.ImageKey)
	return nil
}

func (r *snapshotRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Snapshot, error) {
	var snap entity.Snapshot
	err := r.db.WithContext(ctx).
		Preload("Items.Product").
		First(&snap, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (r *snapshotRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*entity.Snapshot, error) {
	var snaps []*entity.Snapshot
	err := r.db.WithContext(ctx).
		Preload("Items.Product").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&snaps).Error
	if err != nil {
		r.logger.Error("snapshot.list.failed", "user_id", userID, "error", err)
		return nil, err
	}
	return snaps, nil
}

// LatestComplete returns the newest complete snapshot for the user, ordered
// by capture time so an older snapshot that finished processing later does
// not win.
func (r *snapshotRepo) LatestComplete(ctx context.Context, userID uuid.UUID) (*entity.Snapshot, error) {
	var snap entity.Snapshot
	err := r.db.WithContext(ctx).
		Preload("Items.Product").
		Where("user_id = ? AND status = ?", userID, constants.SnapshotComplete).
		Order("created_at DESC").
		First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// MarkProcessing moves pending -> processing, or re-enters processing for a
// redelivered job, and increments the attempt counter.
func (r *snapshotRepo) MarkProcessing(ctx context.Context, id uuid.UUID) (*entity.Snapshot, error) {
	var snap entity.Snapshot
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&snap, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return common.ErrNotFound
			}
			return err
		}
		if snap.Status.Terminal() {
			return common.ErrSnapshotTerminal
		}
		snap.Status = constants.SnapshotProcessing
		snap.Attempts++
		snap.UpdatedAt = time.Now().UTC()
		return tx.Model(&entity.Snapshot{}).Where("id = ?", id).Updates(map[string]interface{}{
			"status":     snap.Status,
			"attempts":   snap.Attempts,
			"updated_at": snap.UpdatedAt,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("snapshot.processing", "snapshot_id", id, "attempt", snap.Attempts)
	return &snap, nil
}

// CompleteWithItems is the single commit point of the pipeline: inside one
// transaction it re-validates the status, replaces any prior item set,
// upserts products, stores the truncated raw model output, and flips the
// snapshot to complete. Partial item sets are never observable.
func (r *snapshotRepo) CompleteWithItems(ctx context.Context, id uuid.UUID, rawOutput string, items []ItemInput) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var snap entity.Snapshot
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&snap, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return common.ErrNotFound
			}
			return err
		}
		if snap.Status.Terminal() {
			return common.ErrSnapshotTerminal
		}

		// Reprocessing replaces, never appends.
		if err := tx.Where("snapshot_id = ?", id).Delete(&entity.SnapshotItem{}).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, in := range items {
			product, err := getOrCreateProduct(tx, in.Name)
			if err != nil {
				return err
			}
			row := entity.SnapshotItem{
				ID:         uuid.New(),
				SnapshotID: id,
				ProductID:  product.ID,
				UserID:     snap.UserID,
				Quantity:   in.Quantity,
				RawPayload: in.RawPayload,
				CreatedAt:  now,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}

		truncated := TruncateRawOutput(rawOutput)
		updates := map[string]interface{}{
			"status":     constants.SnapshotComplete,
			"error":      nil,
			"updated_at": now,
		}
		if truncated != "" {
			updates["raw_model_output"] = truncated
		}
		return tx.Model(&entity.Snapshot{}).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		return err
	}
	r.logger.Info("snapshot.complete", "snapshot_id", id, "items", len(items))
	return nil
}

// MarkFailed records a terminal failure with a human-readable reason and,
// when available, the offending raw model output for diagnosis.
func (r *snapshotRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string, rawOutput *string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var snap entity.Snapshot
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&snap, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return common.ErrNotFound
			}
			return err
		}
		if snap.Status == constants.SnapshotComplete {
			return common.ErrSnapshotTerminal
		}
		updates := map[string]interface{}{
			"status":     constants.SnapshotFailed,
			"error":      reason,
			"updated_at": time.Now().UTC(),
		}
		if rawOutput != nil {
			updates["raw_model_output"] = TruncateRawOutput(*rawOutput)
		}
		return tx.Model(&entity.Snapshot{}).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		return err
	}
	r.logger.Warn("snapshot.failed", "snapshot_id", id, "reason", reason)
	return nil
}

// Requeue is the one sanctioned exit from the failed status: a deliberate
// operator action resets the snapshot to pending with a fresh attempt
// budget. Callers must also re-enqueue the job.
func (r *snapshotRepo) Requeue(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var snap entity.Snapshot
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&snap, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return common.ErrNotFound
			}
			return err
		}
		if snap.Status != constants.SnapshotFailed {
			return common.ValidationError("only failed snapshots can be reprocessed", nil)
		}
		return tx.Model(&entity.Snapshot{}).Where("id = ?", id).Updates(map[string]interface{}{
			"status":     constants.SnapshotPending,
			"attempts":   0,
			"error":      nil,
			"updated_at": time.Now().UTC(),
		}).Error
	})
	if err != nil {
		return err
	}
	r.logger.Info("snapshot.requeued", "snapshot_id", id)
	return nil
}

func getOrCreateProduct(tx *gorm.DB, name string) (*entity.Product, error) {
	var product entity.Product
	err := tx.Where("name = ?", name).First(&product).Error
	if err == nil {
		return &product, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	product = entity.Product{ID: uuid.New(), Name: name}
	if err := tx.Create(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// MaxRawOutputBytes bounds how much raw model text is retained per snapshot.
const MaxRawOutputBytes = 16_000

const truncationSuffix = " [truncated]"

// TruncateRawOutput trims oversized model responses for storage without
// splitting a UTF-8 sequence.
func TruncateRawOutput(raw string) string {
	if raw == "" {
		return ""
	}
	if len(raw) <= MaxRawOutputBytes {
		return raw
	}
	cut := MaxRawOutputBytes - len(truncationSuffix)
	for cut > 0 && (raw[cut]&0xC0) == 0x80 {
		cut--
	}
	return raw[:cut] + truncationSuffix
}
