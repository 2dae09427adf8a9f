package messaging

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/omarkhalifa/laundryops-backend/pkg/db/models"
)

// Repository persists delivery message threads. Threads are append-only;
// there is no update or delete.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, message *models.Message) (*models.Message, error)
	ListByDelivery(ctx context.Context, deliveryID uuid.UUID) ([]models.Message, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a message repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, message *models.Message) (*models.Message, error) {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return nil, err
	}
	return message, nil
}

func (r *repository) ListByDelivery(ctx context.Context, deliveryID uuid.UUID) ([]models.Message, error) {
	var rows []models.Message
	err := r.db.WithContext(ctx).
		Where("delivery_id = ?", deliveryID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}
