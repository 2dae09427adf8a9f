package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/omarkhalifa/laundryops-backend/pkg/db/models"
	"github.com/omarkhalifa/laundryops-backend/pkg/enums"
	"github.com/omarkhalifa/laundryops-backend/pkg/pagination"
)

// Repository defines persistence operations for deliveries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Delivery, error)
	FindByIDInBranch(ctx context.Context, id, branchID uuid.UUID) (*models.Delivery, error)
	ListByBranch(ctx context.Context, branchID uuid.UUID, params pagination.Params, filters ListFilters) (*DeliveryList, error)
	ListPendingByBranch(ctx context.Context, branchID uuid.UUID) ([]models.Delivery, error)
	FindPendingRequestedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Delivery, error)
	Create(ctx context.Context, delivery *models.Delivery) (*models.Delivery, error)
	// UpdateStatusIf performs a conditional update: the row moves to the
	// new status only when it is still in expected. It reports whether a
	// row was actually changed so callers can detect lost races.
	UpdateStatusIf(ctx context.Context, id uuid.UUID, expected, next enums.DeliveryStatus, extra map[string]any) (bool, error)
	UpdateDriver(ctx context.Context, id uuid.UUID, driverID uuid.UUID) error
	FindDriver(ctx context.Context, driverID, branchID uuid.UUID) (*models.User, error)
	ListActiveDrivers(ctx context.Context, branchID uuid.UUID) ([]models.User, error)
}

// ListFilters narrows branch-scoped delivery listings.
type ListFilters struct {
	Statuses []enums.DeliveryStatus
	DriverID *uuid.UUID
}

// DeliveryList is one page of deliveries with a cursor for the next.
type DeliveryList struct {
	Items      []models.Delivery
	NextCursor string
}
