// Package server exposes the HTTP surface: uploads, status reads, inventory
// queries and operator endpoints. It stays thin; all semantics live in the
// repositories, the storage layer and the pipeline.
package server

import (
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/olliezdai13/SmartFridge/internal/common"
	"github.com/olliezdai13/SmartFridge/internal/export"
	"github.com/olliezdai13/SmartFridge/internal/llm"
	"github.com/olliezdai13/SmartFridge/internal/pipeline"
	"github.com/olliezdai13/SmartFridge/internal/queue"
	"github.com/olliezdai13/SmartFridge/internal/repository"
	"github.com/olliezdai13/SmartFridge/internal/storage"
)

type Server struct {
	app         *fiber.App
	db          *gorm.DB
	snapshots   repository.SnapshotRepository
	store       storage.ObjectStore
	queue       queue.Queue
	categorizer *pipeline.Categorizer
	exporter    *export.Service
	vision      llm.VisionClient
	cfg         common.Config
	validator   *validator.Validate
	logger      *slog.Logger
}

func New(
	db *gorm.DB,
	snapshots repository.SnapshotRepository,
	store storage.ObjectStore,
	q queue.Queue,
	categorizer *pipeline.Categorizer,
	exporter *export.Service,
	vision llm.VisionClient,
	cfg common.Config,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		db:          db,
		snapshots:   snapshots,
		store:       store,
		queue:       q,
		categorizer: categorizer,
		exporter:    exporter,
		vision:      vision,
		cfg:         cfg,
		validator:   validator.New(),
		logger:      logger,
	}
	s.app = fiber.New(fiber.Config{
		BodyLimit:             cfg.Server.BodyLimit,
		DisableStartupMessage: true,
	})
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/healthz", s.Healthz)

	api := s.app.Group("/api", s.requireUser)
	api.Post("/snapshots", s.UploadSnapshot)
	api.Get("/snapshots", s.ListSnapshots)
	api.Get("/snapshots/:id", s.GetSnapshot)
	api.Post("/snapshots/:id/retry", s.RetrySnapshot)
	api.Get("/inventory/latest", s.LatestInventory)
	api.Get("/inventory/export", s.ExportInventory)
	api.Post("/products/categorize", s.Categorize)
	api.Post("/llm/probe", s.Probe)
}

// Listen blocks serving HTTP until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info("server.listening", "addr", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(10 * time.Second)
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// requireUser resolves the owner identity from the X-User-ID header.
// Authentication itself is an upstream concern.
func (s *Server) requireUser(c *fiber.Ctx) error {
	raw := c.Get("X-User-ID")
	if raw == "" {
		return errorResponse(c, fiber.StatusUnauthorized, "X-User-ID header is required", nil)
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "X-User-ID must be a UUID", err)
	}
	c.Locals("user_id", userID)
	return c.Next()
}

func currentUser(c *fiber.Ctx) uuid.UUID {
	return c.Locals("user_id").(uuid.UUID)
}

func errorResponse(c *fiber.Ctx, status int, message string, err error) error {
	body := fiber.Map{"error": message}
	if err != nil {
		body["detail"] = err.Error()
	}
	return c.Status(status).JSON(body)
}

// mapError translates the pipeline taxonomy onto HTTP statuses.
func (s *Server) mapError(c *fiber.Ctx, err error, message string) error {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return errorResponse(c, fiber.StatusNotFound, "not found", nil)
	case common.IsValidation(err):
		return errorResponse(c, fiber.StatusBadRequest, message, err)
	case common.IsTransient(err):
		return errorResponse(c, fiber.StatusBadGateway, message, err)
	default:
		s.logger.Error("server.internal_error", "path", c.Path(), "error", err)
		return errorResponse(c, fiber.StatusInternalServerError, message, nil)
	}
}
