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

type repository struct {
	db *gorm.DB
}

// NewRepository builds a deliveries repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	var delivery models.Delivery
	err := r.db.WithContext(ctx).
		Preload("Order").
		Preload("Customer").
		Preload("Driver").
		Preload("Address").
		Where("id = ?", id).
		First(&delivery).Error
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (r *repository) FindByIDInBranch(ctx context.Context, id, branchID uuid.UUID) (*models.Delivery, error) {
	var delivery models.Delivery
	err := r.db.WithContext(ctx).
		Preload("Order").
		Preload("Customer").
		Preload("Driver").
		Preload("Address").
		Where("id = ? AND branch_id = ?", id, branchID).
		First(&delivery).Error
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (r *repository) ListByBranch(ctx context.Context, branchID uuid.UUID, params pagination.Params, filters ListFilters) (*DeliveryList, error) {
	query := r.db.WithContext(ctx).
		Preload("Order").
		Preload("Customer").
		Preload("Driver").
		Preload("Address").
		Where("branch_id = ?", branchID)

	if len(filters.Statuses) > 0 {
		query = query.Where("status IN ?", filters.Statuses)
	}
	if filters.DriverID != nil {
		query = query.Where("driver_id = ?", *filters.DriverID)
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at, id) < (?, ?)",
			cursor.CreatedAt, cursor.ID,
		)
	}

	limit := pagination.NormalizeLimit(params.Limit)
	var rows []models.Delivery
	err = query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit + 1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	list := &DeliveryList{Items: rows}
	if len(rows) > limit {
		list.Items = rows[:limit]
		last := list.Items[len(list.Items)-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return list, nil
}

func (r *repository) ListPendingByBranch(ctx context.Context, branchID uuid.UUID) ([]models.Delivery, error) {
	var rows []models.Delivery
	err := r.db.WithContext(ctx).
		Where("branch_id = ? AND status = ?", branchID, enums.DeliveryStatusPending).
		Order("requested_at ASC").
		Find(&rows).Error
	return rows, err
}

// FindPendingRequestedBefore returns pending requests across all branches
// whose requested_at is older than the cutoff, oldest first.
func (r *repository) FindPendingRequestedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Delivery, error) {
	var rows []models.Delivery
	query := r.db.WithContext(ctx).
		Preload("Order").
		Where("status = ? AND requested_at < ?", enums.DeliveryStatusPending, cutoff).
		Order("requested_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&rows).Error
	return rows, err
}

func (r *repository) Create(ctx context.Context, delivery *models.Delivery) (*models.Delivery, error) {
	if err := r.db.WithContext(ctx).Create(delivery).Error; err != nil {
		return nil, err
	}
	return delivery, nil
}

func (r *repository) UpdateStatusIf(ctx context.Context, id uuid.UUID, expected, next enums.DeliveryStatus, extra map[string]any) (bool, error) {
	updates := map[string]any{
		"status":     next,
		"updated_at": time.Now(),
	}
	for k, v := range extra {
		updates[k] = v
	}

	result := r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) UpdateDriver(ctx context.Context, id uuid.UUID, driverID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"driver_id":  driverID,
			"updated_at": time.Now(),
		}).Error
}

func (r *repository) FindDriver(ctx context.Context, driverID, branchID uuid.UUID) (*models.User, error) {
	var driver models.User
	err := r.db.WithContext(ctx).
		Where("id = ? AND branch_id = ? AND role = ? AND active", driverID, branchID, enums.MemberRoleDriver).
		First(&driver).Error
	if err != nil {
		return nil, err
	}
	return &driver, nil
}

func (r *repository) ListActiveDrivers(ctx context.Context, branchID uuid.UUID) ([]models.User, error) {
	var drivers []models.User
	err := r.db.WithContext(ctx).
		Where("branch_id = ? AND role = ? AND active", branchID, enums.MemberRoleDriver).
		Order("first_name ASC").
		Find(&drivers).Error
	return drivers, err
}
