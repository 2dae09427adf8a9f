package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/omarkhalifa/laundryops-backend/pkg/db/models"
)

// Repository persists orders and the catalog reads that price them.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindBranchByCode(ctx context.Context, code string) (*models.Branch, error)
	FindCatalogItems(ctx context.Context, branchID uuid.UUID, ids []uuid.UUID) ([]models.CatalogItem, error)
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateDelivery(ctx context.Context, delivery *models.Delivery) (*models.Delivery, error)
	FindOrderByIDInBranch(ctx context.Context, branchID, id uuid.UUID) (*models.Order, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindBranchByCode(ctx context.Context, code string) (*models.Branch, error) {
	var branch models.Branch
	err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&branch).Error
	if err != nil {
		return nil, err
	}
	return &branch, nil
}

func (r *repository) FindCatalogItems(ctx context.Context, branchID uuid.UUID, ids []uuid.UUID) ([]models.CatalogItem, error) {
	var items []models.CatalogItem
	err := r.db.WithContext(ctx).
		Where("branch_id = ? AND id IN ? AND active", branchID, ids).
		Find(&items).Error
	return items, err
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) CreateDelivery(ctx context.Context, delivery *models.Delivery) (*models.Delivery, error) {
	if err := r.db.WithContext(ctx).Create(delivery).Error; err != nil {
		return nil, err
	}
	return delivery, nil
}

func (r *repository) FindOrderByIDInBranch(ctx context.Context, branchID, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ? AND branch_id = ?", id, branchID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}
