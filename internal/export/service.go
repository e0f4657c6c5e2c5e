// Package export produces XLSX workbooks from committed inventory.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/olliezdai13/SmartFridge/internal/common"
	"github.com/olliezdai13/SmartFridge/internal/repository"
)

// Service is a tiny façade over the snapshot repository that produces XLSX bytes.
type Service struct {
	snapshots repository.SnapshotRepository
	logger    *slog.Logger
}

func NewService(snapshots repository.SnapshotRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{snapshots: snapshots, logger: logger}
}

// ExportInventoryXLSX returns a workbook of the user's latest complete
// inventory: one row per product with quantity and category.
func (s *Service) ExportInventoryXLSX(ctx context.Context, userID uuid.UUID) ([]byte, error) {
	start := time.Now()

	snap, err := s.snapshots.LatestComplete(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("query latest inventory: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Inventory"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	// drop the default sheet excelize creates
	if index, _ := f.GetSheetIndex("Sheet1"); index != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	headers := []string{"Product", "Quantity", "Category", "Captured At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	captured := snap.CreatedAt.UTC().Format("2006-01-02 15:04")
	row := 2
	for _, item := range snap.Items {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, item.Product.Name)
		write(2, item.Quantity)
		category := ""
		if item.Product.Category != nil {
			category = *item.Product.Category
		}
		write(3, category)
		write(4, captured)
		row++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	s.logger.Info("export.inventory.ok",
		"user_id", userID,
		"snapshot_id", snap.ID,
		"rows", row-2,
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
