// Package orders implements customer order intake: catalog-priced line
// items, money kept in decimals end to end, and the pending delivery
// request that puts an order on the dispatch queue.
package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/omarkhalifa/laundryops-backend/internal/lifecycle"
	"github.com/omarkhalifa/laundryops-backend/pkg/db/models"
	"github.com/omarkhalifa/laundryops-backend/pkg/enums"
	pkgerrors "github.com/omarkhalifa/laundryops-backend/pkg/errors"
	"github.com/omarkhalifa/laundryops-backend/pkg/logger"
	"github.com/omarkhalifa/laundryops-backend/pkg/outbox"
)

const maxLineItems = 50

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// LineInput is one requested catalog line.
type LineInput struct {
	CatalogItemID uuid.UUID
	Quantity      int
}

// DeliveryRequestInput describes the transport leg of a new order. When nil
// the customer handles drop-off and collection themselves. Scheduled times
// are customer wishes, not commitments.
type DeliveryRequestInput struct {
	Mode                enums.DeliveryMode
	AddressID           *uuid.UUID
	DropoffLat          *float64
	DropoffLng          *float64
	ContactPhone        *string
	ContactEmail        *string
	Notes               *string
	ScheduledPickupAt   *time.Time
	ScheduledDeliveryAt *time.Time
}

// CreateInput places a customer order against a branch.
type CreateInput struct {
	BranchCode string
	CustomerID uuid.UUID
	Items      []LineInput
	Delivery   *DeliveryRequestInput
	Notes      *string
}

// CreateResult is the stored order plus the delivery request, when one was made.
type CreateResult struct {
	Order    *models.Order    `json:"order"`
	Delivery *models.Delivery `json:"delivery,omitempty"`
}

// Service defines order intake operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*CreateResult, error)
	Get(ctx context.Context, branchID, orderID uuid.UUID) (*models.Order, error)
}

type service struct {
	repo        Repository
	tx          txRunner
	outbox      outboxPublisher
	deliveryFee decimal.Decimal
	logg        *logger.Logger
}

// NewService builds the order intake service.
func NewService(repo Repository, tx txRunner, ob outboxPublisher, deliveryFee decimal.Decimal, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if deliveryFee.IsNegative() {
		return nil, fmt.Errorf("delivery fee must not be negative")
	}
	return &service{
		repo:        repo,
		tx:          tx,
		outbox:      ob,
		deliveryFee: deliveryFee,
		logg:        logg,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*CreateResult, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity required")
	}
	if strings.TrimSpace(input.BranchCode) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "branch code required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order needs at least one item")
	}
	if len(input.Items) > maxLineItems {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("order exceeds %d line items", maxLineItems))
	}
	for _, line := range input.Items {
		if line.CatalogItemID == uuid.Nil || line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "each line needs a catalog item and a positive quantity")
		}
	}
	if input.Delivery != nil {
		if !input.Delivery.Mode.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("invalid delivery mode %q", input.Delivery.Mode))
		}
		if input.Delivery.ScheduledPickupAt != nil && input.Delivery.ScheduledDeliveryAt != nil &&
			input.Delivery.ScheduledDeliveryAt.Before(*input.Delivery.ScheduledPickupAt) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "scheduled delivery must not precede scheduled pickup")
		}
	}

	branch, err := s.repo.FindBranchByCode(ctx, input.BranchCode)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "branch not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load branch")
	}

	order, err := s.priceOrder(ctx, branch.ID, input)
	if err != nil {
		return nil, err
	}

	result := &CreateResult{}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		stored, err := repo.CreateOrder(ctx, order)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store order")
		}
		result.Order = stored

		var delivery *models.Delivery
		if input.Delivery != nil {
			delivery = &models.Delivery{
				ID:                  uuid.New(),
				BranchID:            branch.ID,
				OrderID:             stored.ID,
				CustomerID:          input.CustomerID,
				Status:              enums.DeliveryStatusPending,
				Mode:                input.Delivery.Mode,
				AddressID:           input.Delivery.AddressID,
				DropoffLat:          input.Delivery.DropoffLat,
				DropoffLng:          input.Delivery.DropoffLng,
				ContactPhone:        input.Delivery.ContactPhone,
				ContactEmail:        input.Delivery.ContactEmail,
				Notes:               input.Delivery.Notes,
				RequestedAt:         time.Now().UTC(),
				ScheduledPickupAt:   input.Delivery.ScheduledPickupAt,
				ScheduledDeliveryAt: input.Delivery.ScheduledDeliveryAt,
			}
			if _, err := repo.CreateDelivery(ctx, delivery); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store delivery request")
			}
			result.Delivery = delivery
		}

		actor := outbox.ActorRef{ID: &input.CustomerID, Type: "customer"}
		orderEvent := lifecycle.OrderCreatedEvent{
			OrderID:     stored.ID,
			BranchID:    branch.ID,
			CustomerID:  input.CustomerID,
			Number:      stored.Number,
			Subtotal:    stored.Subtotal,
			DeliveryFee: stored.DeliveryFee,
			Total:       stored.Total,
			ItemCount:   len(stored.Items),
		}
		if delivery != nil {
			orderEvent.DeliveryID = &delivery.ID
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   stored.ID,
			BranchID:      &branch.ID,
			Actor:         &actor,
			Data:          orderEvent,
		}); err != nil {
			return err
		}

		if delivery == nil {
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDeliveryCreated,
			AggregateType: enums.AggregateDelivery,
			AggregateID:   delivery.ID,
			BranchID:      &branch.ID,
			Actor:         &actor,
			Data: lifecycle.DeliveryCreatedEvent{
				DeliveryID:  delivery.ID,
				OrderID:     stored.ID,
				BranchID:    branch.ID,
				CustomerID:  input.CustomerID,
				Mode:        delivery.Mode,
				Status:      delivery.Status,
				RequestedAt: delivery.RequestedAt,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithBranchID(ctx, branch.ID.String())
		s.logg.Info(s.logg.WithField(logCtx, "order_number", result.Order.Number), "order created")
	}
	return result, nil
}

// Get loads one order within the caller's branch scope. Orders of other
// branches come back as not found, never as data.
func (s *service) Get(ctx context.Context, branchID, orderID uuid.UUID) (*models.Order, error) {
	if branchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "branch scope required")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindOrderByIDInBranch(ctx, branchID, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// priceOrder snapshots catalog prices into line items and totals them.
// Unknown or inactive catalog references fail the whole order.
func (s *service) priceOrder(ctx context.Context, branchID uuid.UUID, input CreateInput) (*models.Order, error) {
	ids := make([]uuid.UUID, 0, len(input.Items))
	for _, line := range input.Items {
		ids = append(ids, line.CatalogItemID)
	}
	catalog, err := s.repo.FindCatalogItems(ctx, branchID, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load catalog")
	}
	byID := make(map[uuid.UUID]models.CatalogItem, len(catalog))
	for _, item := range catalog {
		byID[item.ID] = item
	}

	orderID := uuid.New()
	subtotal := decimal.Zero
	items := make([]models.OrderItem, 0, len(input.Items))
	for _, line := range input.Items {
		item, ok := byID[line.CatalogItemID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("catalog item %s not available at this branch", line.CatalogItemID)).
				WithDetails(map[string]any{"catalog_item_id": line.CatalogItemID})
		}
		lineTotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		subtotal = subtotal.Add(lineTotal)
		items = append(items, models.OrderItem{
			ID:            uuid.New(),
			OrderID:       orderID,
			CatalogItemID: item.ID,
			Name:          item.Name,
			Quantity:      line.Quantity,
			UnitPrice:     item.UnitPrice,
			LineTotal:     lineTotal,
		})
	}

	fee := decimal.Zero
	if input.Delivery != nil {
		fee = s.deliveryFee
	}
	return &models.Order{
		ID:          orderID,
		BranchID:    branchID,
		CustomerID:  input.CustomerID,
		Number:      newOrderNumber(),
		Subtotal:    subtotal,
		DeliveryFee: fee,
		Total:       subtotal.Add(fee),
		Notes:       input.Notes,
		Items:       items,
	}, nil
}

// newOrderNumber yields a short human-readable reference. Uniqueness is
// enforced by the database index; collisions at this length are not a
// practical concern.
func newOrderNumber() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "LO-" + strings.ToUpper(raw[:10])
}
