package server

import (
	"time"

	"github.com/google/uuid"

	"github.com/olliezdai13/SmartFridge/internal/entity"
)

type snapshotResponse struct {
	ID        uuid.UUID      `json:"id"`
	Status    string         `json:"status"`
	Error     *string        `json:"error,omitempty"`
	Attempts  int            `json:"attempts"`
	Filename  string         `json:"filename"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Items     []itemResponse `json:"items,omitempty"`
}

type itemResponse struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Category *string `json:"category,omitempty"`
}

type probeRequest struct {
	SnapshotID string `json:"snapshot_id" validate:"required,uuid4"`
	Prompt     string `json:"prompt" validate:"omitempty,max=8000"`
}

type probeResponse struct {
	Raw   string         `json:"raw"`
	Items []itemResponse `json:"items,omitempty"`
}

func toSnapshotResponse(snap *entity.Snapshot) snapshotResponse {
	out := snapshotResponse{
		ID:        snap.ID,
		Status:    string(snap.Status),
		Error:     snap.Error,
		Attempts:  snap.Attempts,
		Filename:  snap.ImageFilename,
		CreatedAt: snap.CreatedAt,
		UpdatedAt: snap.UpdatedAt,
	}
	for _, item := range snap.Items {
		out.Items = append(out.Items, toItemResponse(item))
	}
	return out
}

func toItemResponse(item entity.SnapshotItem) itemResponse {
	return itemResponse{
		Name:     item.Product.Name,
		Quantity: item.Quantity,
		Category: item.Product.Category,
	}
}
