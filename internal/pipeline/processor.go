// Package pipeline turns a queued snapshot into committed inventory: fetch
// the image, ask the vision model, parse, normalize, commit. The worker pool
// in this package drives it off the job queue with lease-based retries.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/olliezdai13/SmartFridge/internal/common"
	"github.com/olliezdai13/SmartFridge/internal/inventory"
	"github.com/olliezdai13/SmartFridge/internal/llm"
	"github.com/olliezdai13/SmartFridge/internal/repository"
	"github.com/olliezdai13/SmartFridge/internal/storage"
)

// LeaseCheck confirms the caller still owns the job lease. The processor
// calls it right before the commit so a worker that lost its lease cannot
// overwrite another worker's result.
type LeaseCheck func(ctx context.Context) error

type Processor struct {
	snapshots     repository.SnapshotRepository
	store         storage.ObjectStore
	vision        llm.VisionClient
	defaultPrompt string
	logger        *slog.Logger
}

func NewProcessor(
	snapshots repository.SnapshotRepository,
	store storage.ObjectStore,
	vision llm.VisionClient,
	defaultPrompt string,
	logger *slog.Logger,
) *Processor {
	if defaultPrompt == "" {
		defaultPrompt = llm.DefaultSystemPrompt
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		snapshots:     snapshots,
		store:         store,
		vision:        vision,
		defaultPrompt: defaultPrompt,
		logger:        logger,
	}
}

// ProcessSnapshot runs one extraction attempt end to end.
//
// Validation failures (garbage model output, refusals) are terminal: the
// snapshot is marked failed here, with the raw reply retained for diagnosis,
// and the validation error is returned so the caller acks. Transient and
// configuration errors are returned unhandled; retry policy lives in the
// worker.
func (p *Processor) ProcessSnapshot(ctx context.Context, snapshotID uuid.UUID, leaseCheck LeaseCheck) error {
	start := time.Now()

	snap, err := p.snapshots.MarkProcessing(ctx, snapshotID)
	if err != nil {
		return err
	}

	p.logger.Info("pipeline.process.start",
		"snapshot_id", snap.ID,
		"user_id", snap.UserID,
		"attempt", snap.Attempts,
		"image_key", snap.ImageKey,
	)

	imageBytes, contentType, err := p.store.Get(ctx, snap.ImageKey)
	if err != nil {
		return err
	}

	prompt := p.defaultPrompt
	if snap.Prompt != nil && *snap.Prompt != "" {
		prompt = *snap.Prompt
	}

	raw, err := p.vision.AnalyzeImage(ctx, llm.VisionRequest{
		ImageBytes:  imageBytes,
		ContentType: contentType,
		Prompt:      prompt,
	})
	if err != nil {
		if common.IsValidation(err) {
			return p.failValidation(ctx, snap.ID, err, nil)
		}
		return err
	}

	parsed, err := llm.ParseItems(raw, p.logger)
	if err != nil {
		return p.failValidation(ctx, snap.ID, err, &raw)
	}

	items := mergeNormalized(parsed)
	if len(items) == 0 {
		err := common.ValidationError("no usable items after normalization", nil)
		return p.failValidation(ctx, snap.ID, err, &raw)
	}

	if leaseCheck != nil {
		if err := leaseCheck(ctx); err != nil {
			return err
		}
	}

	if err := p.snapshots.CompleteWithItems(ctx, snap.ID, raw, items); err != nil {
		return err
	}

	p.logger.Info("pipeline.process.ok",
		"snapshot_id", snap.ID,
		"items", len(items),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (p *Processor) failValidation(ctx context.Context, id uuid.UUID, cause error, raw *string) error {
	p.logger.Warn("pipeline.process.validation_failed", "snapshot_id", id, "error", cause)
	if err := p.snapshots.MarkFailed(ctx, id, cause.Error(), raw); err != nil {
		// let the worker's retry policy see the storage failure instead
		return err
	}
	return cause
}

// mergeNormalized canonicalizes item names and folds duplicates that collapse
// onto the same product, summing their quantities.
func mergeNormalized(parsed []llm.ParsedItem) []repository.ItemInput {
	index := make(map[string]int, len(parsed))
	out := make([]repository.ItemInput, 0, len(parsed))
	for _, it := range parsed {
		name := inventory.NormalizeProductName(it.Name)
		if name == "" {
			continue
		}
		if i, ok := index[name]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		index[name] = len(out)
		out = append(out, repository.ItemInput{
			Name:       name,
			Quantity:   it.Quantity,
			RawPayload: it.RawPayload,
		})
	}
	return out
}
