// Package messaging implements the append-only message thread attached to
// each delivery, shared by branch staff and portal customers.
package messaging

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/omarkhalifa/laundryops-backend/internal/broadcast"
	"github.com/omarkhalifa/laundryops-backend/internal/lifecycle"
	"github.com/omarkhalifa/laundryops-backend/pkg/db/models"
	"github.com/omarkhalifa/laundryops-backend/pkg/enums"
	pkgerrors "github.com/omarkhalifa/laundryops-backend/pkg/errors"
	"github.com/omarkhalifa/laundryops-backend/pkg/logger"
	"github.com/omarkhalifa/laundryops-backend/pkg/outbox"
)

const maxBodyLength = 4000

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type deliverySource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Delivery, error)
}

type broadcaster interface {
	Publish(event broadcast.Event)
}

// PostInput appends one message to a delivery thread. ActorBranch is the
// branch scope of a staff caller; nil means the caller is not branch-bound
// (a portal session already pinned to the delivery, or a super admin).
type PostInput struct {
	DeliveryID  uuid.UUID
	ActorBranch *uuid.UUID
	SenderType  enums.MessageSender
	SenderID    *uuid.UUID
	SenderName  string
	Body        string
	Attachments []string
}

// Service exposes the messaging operations.
type Service interface {
	Post(ctx context.Context, input PostInput) (*models.Message, error)
	List(ctx context.Context, deliveryID uuid.UUID, actorBranch *uuid.UUID) ([]models.Message, error)
}

type service struct {
	repo       Repository
	deliveries deliverySource
	tx         txRunner
	outbox     outboxPublisher
	hub        broadcaster
	logg       *logger.Logger
}

// NewService builds the messaging service. Hub and logger are optional.
func NewService(repo Repository, deliveries deliverySource, tx txRunner, ob outboxPublisher, hub broadcaster, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("message repository required")
	}
	if deliveries == nil {
		return nil, fmt.Errorf("delivery source required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:       repo,
		deliveries: deliveries,
		tx:         tx,
		outbox:     ob,
		hub:        hub,
		logg:       logg,
	}, nil
}

func (s *service) Post(ctx context.Context, input PostInput) (*models.Message, error) {
	if input.DeliveryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id required")
	}
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message body must not be empty")
	}
	if len(body) > maxBodyLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("message body exceeds %d characters", maxBodyLength))
	}
	if !input.SenderType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid sender type %q", input.SenderType))
	}
	if input.SenderName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sender name required")
	}

	delivery, err := s.deliveries.FindByID(ctx, input.DeliveryID)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
	}
	if err := requireBranch(delivery, input.ActorBranch); err != nil {
		return nil, err
	}

	message := &models.Message{
		ID:         uuid.New(),
		DeliveryID: delivery.ID,
		SenderType: input.SenderType,
		SenderID:   input.SenderID,
		SenderName: input.SenderName,
		Body:       body,
	}
	if len(input.Attachments) > 0 {
		message.Attachments = pq.StringArray(input.Attachments)
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).Insert(ctx, message); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store message")
		}
		actor := outbox.ActorRef{ID: input.SenderID, Type: input.SenderType.String(), Name: input.SenderName}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMessageSent,
			AggregateType: enums.AggregateDelivery,
			AggregateID:   delivery.ID,
			BranchID:      &delivery.BranchID,
			Actor:         &actor,
			Data: lifecycle.MessageSentEvent{
				MessageID:  message.ID,
				DeliveryID: delivery.ID,
				BranchID:   delivery.BranchID,
				SenderType: input.SenderType,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if s.hub != nil {
		s.hub.Publish(broadcast.Event{
			Kind:       broadcast.KindMessagePosted,
			BranchID:   delivery.BranchID,
			DeliveryID: delivery.ID,
			Payload: map[string]any{
				"message_id":  message.ID,
				"sender_type": message.SenderType,
				"sender_name": message.SenderName,
			},
		})
	}
	if s.logg != nil {
		logCtx := s.logg.WithDeliveryID(ctx, delivery.ID.String())
		s.logg.Info(s.logg.WithField(logCtx, "sender_type", input.SenderType.String()), "message posted")
	}
	return message, nil
}

func (s *service) List(ctx context.Context, deliveryID uuid.UUID, actorBranch *uuid.UUID) ([]models.Message, error) {
	if deliveryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id required")
	}
	delivery, err := s.deliveries.FindByID(ctx, deliveryID)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
	}
	if err := requireBranch(delivery, actorBranch); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByDelivery(ctx, deliveryID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list messages")
	}
	return rows, nil
}

// requireBranch rejects branch-bound actors reading or writing another
// branch's thread.
func requireBranch(delivery *models.Delivery, actorBranch *uuid.UUID) error {
	if actorBranch != nil && *actorBranch != delivery.BranchID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "delivery belongs to another branch")
	}
	return nil
}
