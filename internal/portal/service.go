// Package portal implements the customer-facing delivery portal: one-time
// access codes delivered out of band, and the short delivery-scoped
// sessions minted after a successful verification.
package portal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/omarkhalifa/laundryops-backend/internal/drivers"
	"github.com/omarkhalifa/laundryops-backend/pkg/auth"
	"github.com/omarkhalifa/laundryops-backend/pkg/config"
	"github.com/omarkhalifa/laundryops-backend/pkg/db/models"
	"github.com/omarkhalifa/laundryops-backend/pkg/enums"
	pkgerrors "github.com/omarkhalifa/laundryops-backend/pkg/errors"
	"github.com/omarkhalifa/laundryops-backend/pkg/geo"
	"github.com/omarkhalifa/laundryops-backend/pkg/logger"
	"github.com/omarkhalifa/laundryops-backend/pkg/metrics"
	"github.com/omarkhalifa/laundryops-backend/pkg/notify"
	"github.com/omarkhalifa/laundryops-backend/pkg/redis"
	"github.com/omarkhalifa/laundryops-backend/pkg/security"
)

type deliverySource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Delivery, error)
}

// codeStore is the slice of the redis client the portal needs.
type codeStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	OTPKey(deliveryID, contact string) string
}

// RequestCodeInput asks for a one-time code on a delivery's registered
// contact. RemoteIP feeds the per-IP rate limit.
type RequestCodeInput struct {
	DeliveryID uuid.UUID
	Channel    enums.PortalChannel
	RemoteIP   string
}

// RequestCodeResult tells the caller where the code went without leaking
// the full contact.
type RequestCodeResult struct {
	Channel   enums.PortalChannel `json:"channel"`
	Contact   string              `json:"contact"`
	ExpiresIn int                 `json:"expires_in_seconds"`
}

// VerifyCodeInput exchanges a one-time code for a portal session.
type VerifyCodeInput struct {
	DeliveryID uuid.UUID
	Channel    enums.PortalChannel
	Code       string
}

// Session is the minted delivery-scoped portal session.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DeliverySummary is the read-only view a portal session may see.
type DeliverySummary struct {
	DeliveryID   uuid.UUID              `json:"delivery_id"`
	Status       enums.DeliveryStatus   `json:"status"`
	OrderNumber  string                 `json:"order_number"`
	DriverName   *string                `json:"driver_name,omitempty"`
	Estimate     *geo.Estimate          `json:"estimate,omitempty"`
	RequestedAt  time.Time              `json:"requested_at"`
	CancelReason *string                `json:"cancel_reason,omitempty"`
	NextStatuses []enums.DeliveryStatus `json:"-"`
}

// Service exposes the portal code and session operations.
type Service interface {
	RequestCode(ctx context.Context, input RequestCodeInput) (*RequestCodeResult, error)
	VerifyCode(ctx context.Context, input VerifyCodeInput) (*Session, error)
	Summary(ctx context.Context, deliveryID uuid.UUID, actorBranch *uuid.UUID) (*DeliverySummary, error)
}

type service struct {
	deliveries deliverySource
	store      codeStore
	sender     notify.Sender
	estimator  *geo.Estimator
	locations  drivers.LocationStore
	jwtCfg     config.JWTConfig
	portalCfg  config.PortalConfig
	pwCfg      config.PasswordConfig
	metrics    *metrics.DispatchMetrics
	logg       *logger.Logger
}

// ServiceParams bundles the portal service dependencies.
type ServiceParams struct {
	Deliveries deliverySource
	Store      codeStore
	Sender     notify.Sender
	Estimator  *geo.Estimator
	Locations  drivers.LocationStore
	JWT        config.JWTConfig
	Portal     config.PortalConfig
	Password   config.PasswordConfig
	Metrics    *metrics.DispatchMetrics
	Logger     *logger.Logger
}

// NewService builds the portal service.
func NewService(params ServiceParams) (Service, error) {
	if params.Deliveries == nil {
		return nil, fmt.Errorf("delivery source required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("code store required")
	}
	if params.Sender == nil {
		return nil, fmt.Errorf("code sender required")
	}
	return &service{
		deliveries: params.Deliveries,
		store:      params.Store,
		sender:     params.Sender,
		estimator:  params.Estimator,
		locations:  params.Locations,
		jwtCfg:     params.JWT,
		portalCfg:  params.Portal,
		pwCfg:      params.Password,
		metrics:    params.Metrics,
		logg:       params.Logger,
	}, nil
}

func (s *service) RequestCode(ctx context.Context, input RequestCodeInput) (*RequestCodeResult, error) {
	if input.DeliveryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id required")
	}
	if !input.Channel.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported channel %q", input.Channel))
	}

	delivery, err := s.deliveries.FindByID(ctx, input.DeliveryID)
	if err != nil {
		s.metrics.IncPortalCode(input.Channel.String(), "not_found")
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
	}

	contact, err := registeredContact(delivery, input.Channel)
	if err != nil {
		return nil, err
	}

	if err := s.enforceRateLimits(ctx, contact, input.RemoteIP); err != nil {
		s.metrics.IncPortalCode(input.Channel.String(), "rate_limited")
		return nil, err
	}

	code, err := security.GenerateNumericCode(s.portalCfg.CodeLength)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate access code")
	}
	encoded, err := security.HashCode(code, s.pwCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash access code")
	}

	// A fresh request overwrites any earlier unconsumed code for the same
	// delivery and contact.
	key := s.store.OTPKey(delivery.ID.String(), contact)
	if err := s.store.Set(ctx, key, encoded, s.portalCfg.CodeTTL); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store access code")
	}

	displayName := ""
	if delivery.Customer != nil {
		displayName = delivery.Customer.FullName()
	}
	sendCtx, cancel := context.WithTimeout(ctx, s.portalCfg.DispatchTimeout)
	defer cancel()
	if err := s.sender.SendAccessCode(sendCtx, input.Channel, contact, displayName, code); err != nil {
		// The code is stored and valid; the customer can retry the send.
		s.metrics.IncPortalCode(input.Channel.String(), "send_failed")
		if s.logg != nil {
			logCtx := s.logg.WithDeliveryID(ctx, delivery.ID.String())
			s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "access code dispatch failed")
		}
	} else {
		s.metrics.IncPortalCode(input.Channel.String(), "sent")
	}

	return &RequestCodeResult{
		Channel:   input.Channel,
		Contact:   maskContact(contact, input.Channel),
		ExpiresIn: int(s.portalCfg.CodeTTL.Seconds()),
	}, nil
}

func (s *service) VerifyCode(ctx context.Context, input VerifyCodeInput) (*Session, error) {
	if input.DeliveryID == uuid.Nil || input.Code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id and code required")
	}
	if !input.Channel.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported channel %q", input.Channel))
	}

	delivery, err := s.deliveries.FindByID(ctx, input.DeliveryID)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid or expired code")
	}
	contact, err := registeredContact(delivery, input.Channel)
	if err != nil {
		return nil, err
	}

	key := s.store.OTPKey(delivery.ID.String(), contact)
	encoded, err := s.store.Get(ctx, key)
	if err != nil {
		if redis.IsNil(err) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid or expired code")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load access code")
	}

	ok, err := security.VerifyCode(input.Code, encoded)
	if err != nil || !ok {
		// A wrong guess must not consume the stored code.
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid or expired code")
	}

	// Consume exactly the hash that was verified. Concurrent verifications
	// race here and only one wins; a code reissued after the read above
	// survives untouched because the stored value no longer matches.
	consumed, err := s.store.CompareAndDelete(ctx, key, encoded)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume access code")
	}
	if !consumed {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid or expired code")
	}

	displayName := ""
	if delivery.Customer != nil {
		displayName = delivery.Customer.FullName()
	}
	now := time.Now().UTC()
	token, err := auth.MintPortalToken(s.jwtCfg, now, s.portalCfg.SessionTTL, auth.PortalClaims{
		DeliveryID:  delivery.ID,
		OrderID:     delivery.OrderID,
		Contact:     contact,
		DisplayName: displayName,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint portal session")
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithDeliveryID(ctx, delivery.ID.String()), "portal session opened")
	}
	return &Session{Token: token, ExpiresAt: now.Add(s.portalCfg.SessionTTL)}, nil
}

// Summary returns the read-only portal view. A branch-bound staff caller
// may only see deliveries of their own branch; portal sessions arrive with
// a nil actorBranch because the middleware already pinned them.
func (s *service) Summary(ctx context.Context, deliveryID uuid.UUID, actorBranch *uuid.UUID) (*DeliverySummary, error) {
	if deliveryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id required")
	}

	delivery, err := s.deliveries.FindByID(ctx, deliveryID)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
	}
	if actorBranch != nil && *actorBranch != delivery.BranchID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "delivery belongs to another branch")
	}

	summary := &DeliverySummary{
		DeliveryID:   delivery.ID,
		Status:       delivery.Status,
		RequestedAt:  delivery.RequestedAt,
		CancelReason: delivery.CancelReason,
	}
	if delivery.Order != nil {
		summary.OrderNumber = delivery.Order.Number
	}
	if delivery.Driver != nil {
		name := delivery.Driver.FullName()
		summary.DriverName = &name
	}
	s.attachEstimate(ctx, delivery, summary)
	return summary, nil
}

// attachEstimate is best effort; a portal summary never fails because the
// driver's location is stale or the dropoff lacks coordinates.
func (s *service) attachEstimate(ctx context.Context, delivery *models.Delivery, summary *DeliverySummary) {
	if s.estimator == nil || s.locations == nil || delivery.DriverID == nil {
		return
	}
	lat, lng, ok := delivery.DropoffCoordinates()
	if !ok {
		return
	}
	located, err := s.locations.Latest(ctx, []uuid.UUID{*delivery.DriverID})
	if err != nil {
		return
	}
	loc, ok := located[*delivery.DriverID]
	if !ok {
		return
	}
	est, err := s.estimator.Estimate(loc.Lat, loc.Lng, lat, lng)
	if err != nil {
		return
	}
	summary.Estimate = &est
}

func (s *service) enforceRateLimits(ctx context.Context, contact, remoteIP string) error {
	allowed, _, err := s.store.FixedWindowAllow(ctx, "portal:contact:"+contact,
		int64(s.portalCfg.ContactLimit), s.portalCfg.RequestWindow)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "contact rate limit")
	}
	if !allowed {
		return pkgerrors.New(pkgerrors.CodeRateLimit, "too many code requests for this contact")
	}

	if remoteIP != "" {
		allowed, _, err = s.store.FixedWindowAllow(ctx, "portal:ip:"+remoteIP,
			int64(s.portalCfg.IPLimit), s.portalCfg.RequestWindow)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ip rate limit")
		}
		if !allowed {
			return pkgerrors.New(pkgerrors.CodeRateLimit, "too many code requests from this address")
		}
	}
	return nil
}

// registeredContact resolves the channel to the contact stored on the
// delivery. Customers never supply an arbitrary destination.
func registeredContact(delivery *models.Delivery, channel enums.PortalChannel) (string, error) {
	switch channel {
	case enums.PortalChannelEmail:
		if delivery.ContactEmail == nil || *delivery.ContactEmail == "" {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "delivery has no email on record")
		}
		return *delivery.ContactEmail, nil
	case enums.PortalChannelSMS:
		if delivery.ContactPhone == nil || *delivery.ContactPhone == "" {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "delivery has no phone on record")
		}
		return *delivery.ContactPhone, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported channel %q", channel))
}

// maskContact hides most of the contact in responses, keeping just enough
// for the customer to recognize where the code went.
func maskContact(contact string, channel enums.PortalChannel) string {
	if channel == enums.PortalChannelSMS {
		if len(contact) <= 4 {
			return "****"
		}
		return "****" + contact[len(contact)-4:]
	}
	at := -1
	for i, r := range contact {
		if r == '@' {
			at = i
			break
		}
	}
	if at <= 1 {
		return "****"
	}
	return contact[:1] + "****" + contact[at:]
}
