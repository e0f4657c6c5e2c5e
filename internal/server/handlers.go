package server

import (
	"errors"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/olliezdai13/SmartFridge/internal/common"
	"github.com/olliezdai13/SmartFridge/internal/entity"
	"github.com/olliezdai13/SmartFridge/internal/llm"
	"github.com/olliezdai13/SmartFridge/internal/repository"
	"github.com/olliezdai13/SmartFridge/internal/storage"
)

var allowedImageExts = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// UploadSnapshot accepts a multipart fridge photo, stores it durably, and
// creates the pending snapshot plus its queue job in one transaction. The
// photo is accepted (202) before any model work happens.
func (s *Server) UploadSnapshot(c *fiber.Ctx) error {
	userID := currentUser(c)

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "multipart field 'image' is required", err)
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	contentType, ok := allowedImageExts[ext]
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "unsupported image type "+ext, nil)
	}

	body, err := readMultipartFile(fileHeader)
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "read upload", err)
	}
	if len(body) == 0 {
		return errorResponse(c, fiber.StatusBadRequest, "uploaded image is empty", nil)
	}

	filename := storage.UniqueFilename(fileHeader.Filename, time.Now())
	key := storage.BuildKey(s.cfg.Storage.BasePrefix, userID, filename)

	if err := s.store.Put(c.Context(), key, contentType, body); err != nil {
		return s.mapError(c, err, "store image")
	}

	snap := &entity.Snapshot{
		UserID:        userID,
		ImageBucket:   s.cfg.Storage.Bucket,
		ImageKey:      key,
		ImageFilename: fileHeader.Filename,
	}
	if prompt := strings.TrimSpace(c.FormValue("prompt")); prompt != "" {
		snap.Prompt = &prompt
	}

	if err := s.snapshots.CreateAndEnqueue(c.Context(), snap); err != nil {
		return s.mapError(c, err, "create snapshot")
	}

	s.logger.Info("server.snapshot.accepted",
		"snapshot_id", snap.ID, "user_id", userID, "key", key, "bytes", len(body))
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"snapshot_id": snap.ID,
		"status":      snap.Status,
	})
}

func (s *Server) GetSnapshot(c *fiber.Ctx) error {
	snap, err := s.ownedSnapshot(c)
	if snap == nil {
		return err
	}
	return c.JSON(toSnapshotResponse(snap))
}

func (s *Server) ListSnapshots(c *fiber.Ctx) error {
	userID := currentUser(c)
	snaps, err := s.snapshots.ListByUser(c.Context(), userID)
	if err != nil {
		return s.mapError(c, err, "list snapshots")
	}
	out := make([]snapshotResponse, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, toSnapshotResponse(snap))
	}
	return c.JSON(fiber.Map{"snapshots": out})
}

// RetrySnapshot gives a failed snapshot a fresh attempt budget and makes its
// job visible again.
func (s *Server) RetrySnapshot(c *fiber.Ctx) error {
	snap, err := s.ownedSnapshot(c)
	if snap == nil {
		return err
	}
	if err := s.snapshots.Requeue(c.Context(), snap.ID); err != nil {
		return s.mapError(c, err, "requeue snapshot")
	}
	if err := s.queue.Enqueue(c.Context(), snap.ID); err != nil {
		return s.mapError(c, err, "enqueue job")
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"snapshot_id": snap.ID,
		"status":      "pending",
	})
}

// LatestInventory returns the item list of the newest complete snapshot.
// A user with no complete snapshot gets an empty list, not an error.
func (s *Server) LatestInventory(c *fiber.Ctx) error {
	userID := currentUser(c)
	snap, err := s.snapshots.LatestComplete(c.Context(), userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return c.JSON(fiber.Map{"items": []itemResponse{}})
		}
		return s.mapError(c, err, "latest inventory")
	}
	items := make([]itemResponse, 0, len(snap.Items))
	for _, item := range snap.Items {
		items = append(items, toItemResponse(item))
	}
	return c.JSON(fiber.Map{
		"snapshot_id": snap.ID,
		"captured_at": snap.CreatedAt,
		"items":       items,
	})
}

func (s *Server) ExportInventory(c *fiber.Ctx) error {
	userID := currentUser(c)
	data, err := s.exporter.ExportInventoryXLSX(c.Context(), userID)
	if err != nil {
		return s.mapError(c, err, "export inventory")
	}
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="inventory.xlsx"`)
	return c.Send(data)
}

// Categorize runs one categorization batch synchronously.
func (s *Server) Categorize(c *fiber.Ctx) error {
	updated, total, err := s.categorizer.Run(c.Context())
	if err != nil {
		return s.mapError(c, err, "categorize products")
	}
	return c.JSON(fiber.Map{"updated": updated, "total": total})
}

// Probe sends a stored snapshot image straight to the model and returns the
// raw reply next to a best-effort parse. Operator tooling, not a user path.
func (s *Server) Probe(c *fiber.Ctx) error {
	var req probeRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "invalid request body", err)
	}
	if err := s.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "invalid request", err)
	}

	snapshotID, err := uuid.Parse(req.SnapshotID)
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "snapshot_id must be a UUID", err)
	}
	snap, err := s.loadOwned(c, snapshotID)
	if snap == nil {
		return err
	}

	imageBytes, contentType, err := s.store.Get(c.Context(), snap.ImageKey)
	if err != nil {
		return s.mapError(c, err, "fetch image")
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		prompt = llm.DefaultSystemPrompt
	}
	raw, err := s.vision.AnalyzeImage(c.Context(), llm.VisionRequest{
		ImageBytes:  imageBytes,
		ContentType: contentType,
		Prompt:      prompt,
	})
	if err != nil {
		return s.mapError(c, err, "model call")
	}

	out := probeResponse{Raw: raw}
	if parsed, perr := llm.ParseItems(raw, s.logger); perr == nil {
		for _, item := range parsed {
			out.Items = append(out.Items, itemResponse{Name: item.Name, Quantity: item.Quantity})
		}
	}
	return c.JSON(out)
}

func (s *Server) Healthz(c *fiber.Ctx) error {
	if err := repository.HealthCheck(c.Context(), s.db, 2*time.Second); err != nil {
		return errorResponse(c, fiber.StatusServiceUnavailable, "database unreachable", err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// ownedSnapshot loads the :id path param and enforces ownership. A snapshot
// belonging to someone else is indistinguishable from a missing one.
func (s *Server) ownedSnapshot(c *fiber.Ctx) (*entity.Snapshot, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, errorResponse(c, fiber.StatusBadRequest, "snapshot id must be a UUID", err)
	}
	return s.loadOwned(c, id)
}

func (s *Server) loadOwned(c *fiber.Ctx, id uuid.UUID) (*entity.Snapshot, error) {
	snap, err := s.snapshots.GetByID(c.Context(), id)
	if err != nil {
		return nil, s.mapError(c, err, "load snapshot")
	}
	if snap.UserID != currentUser(c) {
		return nil, errorResponse(c, fiber.StatusNotFound, "not found", nil)
	}
	return snap, nil
}

func readMultipartFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
