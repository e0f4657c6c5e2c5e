package export

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/olliezdai13/SmartFridge/constants"
	"github.com/olliezdai13/SmartFridge/internal/common"
	"github.com/olliezdai13/SmartFridge/internal/entity"
	"github.com/olliezdai13/SmartFridge/internal/repository"
)

type stubSnapshots struct {
	latest *entity.Snapshot
}

func (s *stubSnapshots) CreateAndEnqueue(ctx context.Context, snap *entity.Snapshot) error {
	return nil
}
func (s *stubSnapshots) GetByID(ctx context.Context, id uuid.UUID) (*entity.Snapshot, error) {
	return nil, common.ErrNotFound
}
func (s *stubSnapshots) ListByUser(ctx context.Context, userID uuid.UUID) ([]*entity.Snapshot, error) {
	return nil, nil
}
func (s *stubSnapshots) LatestComplete(ctx context.Context, userID uuid.UUID) (*entity.Snapshot, error) {
	if s.latest == nil {
		return nil, common.ErrNotFound
	}
	return s.latest, nil
}
func (s *stubSnapshots) MarkProcessing(ctx context.Context, id uuid.UUID) (*entity.Snapshot, error) {
	return nil, common.ErrNotFound
}
func (s *stubSnapshots) CompleteWithItems(ctx context.Context, id uuid.UUID, rawOutput string, items []repository.ItemInput) error {
	return nil
}
func (s *stubSnapshots) MarkFailed(ctx context.Context, id uuid.UUID, reason string, rawOutput *string) error {
	return nil
}
func (s *stubSnapshots) Requeue(ctx context.Context, id uuid.UUID) error { return nil }

func TestExportInventoryXLSX(t *testing.T) {
	category := "dairy_and_alternatives"
	repo := &stubSnapshots{latest: &entity.Snapshot{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Status: constants.SnapshotComplete,
		Items: []entity.SnapshotItem{
			{Quantity: 2, Product: entity.Product{Name: "milk", Category: &category}},
			{Quantity: 6, Product: entity.Product{Name: "egg"}},
		},
	}}

	svc := NewService(repo, nil)
	data, err := svc.ExportInventoryXLSX(context.Background(), repo.latest.UserID)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Inventory")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Product", "Quantity", "Category", "Captured At"}, rows[0])
	assert.Equal(t, "milk", rows[1][0])
	assert.Equal(t, "2", rows[1][1])
	assert.Equal(t, category, rows[1][2])
	assert.Equal(t, "egg", rows[2][0])
}

func TestExportInventoryXLSX_NoInventory(t *testing.T) {
	svc := NewService(&stubSnapshots{}, nil)
	_, err := svc.ExportInventoryXLSX(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}
