package subscriptions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bizvistar/billing-backend/internal/catalog"
	"github.com/bizvistar/billing-backend/internal/eligibility"
	"github.com/bizvistar/billing-backend/internal/pricing"
	dbpkg "github.com/bizvistar/billing-backend/pkg/db"
	"github.com/bizvistar/billing-backend/pkg/db/models"
	"github.com/bizvistar/billing-backend/pkg/enums"
	pkgerrors "github.com/bizvistar/billing-backend/pkg/errors"
	"github.com/bizvistar/billing-backend/pkg/logger"
	"github.com/bizvistar/billing-backend/pkg/metrics"
	"github.com/bizvistar/billing-backend/pkg/outbox"
	"github.com/bizvistar/billing-backend/pkg/outbox/payloads"
	"github.com/bizvistar/billing-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type attemptLimiter interface {
	Allow(ctx context.Context, userID uuid.UUID) bool
	Record(ctx context.Context, userID uuid.UUID, ip string)
}

type couponEvaluator interface {
	Check(ctx context.Context, coupon catalog.Coupon, userID uuid.UUID) (eligibility.Result, error)
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	Catalog           *catalog.Catalog
	Resolver          *pricing.Resolver
	Evaluator         couponEvaluator
	Limiter           attemptLimiter
	Gateway           GatewayClient
	Repository        *Repository
	Outbox            outbox.Emitter
	TransactionRunner txRunner
	Metrics           *metrics.CheckoutMetrics
	Logger            *logger.Logger
	Now               func() time.Time
}

// CreateInput is the client's checkout selection. Prices are never accepted.
type CreateInput struct {
	PlanName     string
	BillingCycle string
	CouponCode   string
}

// CreateResult is what the browser needs to open the gateway checkout.
type CreateResult struct {
	SubscriptionID string
	KeyID          string
	PlanID         string
	OfferID        string
	PlanName       string
	BillingCycle   enums.BillingCycle
	CouponUsed     string
	DisplayPrice   decimal.Decimal
	StruckPrice    decimal.Decimal
	TotalCount     int
	StartAt        *time.Time
	Currency       string
}

// Service creates gateway subscriptions and tracks their local status.
type Service struct {
	catalog   *catalog.Catalog
	resolver  *pricing.Resolver
	evaluator couponEvaluator
	limiter   attemptLimiter
	gateway   GatewayClient
	repo      *Repository
	outbox    outbox.Emitter
	tx        txRunner
	metrics   *metrics.CheckoutMetrics
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds a subscription service with the required dependencies.
func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Catalog == nil:
		return nil, fmt.Errorf("catalog required")
	case params.Resolver == nil:
		return nil, fmt.Errorf("price resolver required")
	case params.Evaluator == nil:
		return nil, fmt.Errorf("eligibility evaluator required")
	case params.Limiter == nil:
		return nil, fmt.Errorf("rate limiter required")
	case params.Gateway == nil:
		return nil, fmt.Errorf("gateway client required")
	case params.Repository == nil:
		return nil, fmt.Errorf("subscription repository required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.TransactionRunner == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		catalog:   params.Catalog,
		resolver:  params.Resolver,
		evaluator: params.Evaluator,
		limiter:   params.Limiter,
		gateway:   params.Gateway,
		repo:      params.Repository,
		outbox:    params.Outbox,
		tx:        params.TransactionRunner,
		metrics:   params.Metrics,
		logg:      params.Logger,
		now:       now,
	}, nil
}

// Create runs the full checkout: rate limit, attempt log, plan and coupon
// resolution, authoritative eligibility, gateway create and local persistence.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, ip string, input CreateInput) (*CreateResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if strings.TrimSpace(input.PlanName) == "" || strings.TrimSpace(input.BillingCycle) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid plan details")
	}
	ctx = s.logg.WithUserID(ctx, userID.String())

	if !s.limiter.Allow(ctx, userID) {
		s.metrics.RateLimited()
		s.logg.Warn(ctx, "subscription attempt rate limited")
		return nil, pkgerrors.New(pkgerrors.CodeRateLimit, "too many subscription attempts")
	}
	s.limiter.Record(ctx, userID, ip)

	plan, cycle, err := s.resolver.ResolvePlan(input.PlanName, input.BillingCycle)
	if err != nil {
		return nil, err
	}

	coupon, err := s.lookupCoupon(input.CouponCode)
	if err != nil {
		return nil, err
	}
	if coupon != nil {
		result, err := s.evaluator.Check(ctx, coupon, userID)
		if err != nil {
			return nil, err
		}
		if !result.Eligible {
			return nil, eligibility.Rejection(coupon.Code(), result)
		}
	}

	now := s.now().UTC()
	mode := s.gateway.Mode()
	req, err := Build(plan, cycle, coupon, userID, mode, now)
	if err != nil {
		return nil, err
	}
	quote := s.resolver.ApplyCoupon(pricing.BasePrice(plan, cycle), plan.Name, cycle, coupon)

	gwSub, err := s.gateway.CreateSubscription(ctx, req)
	if err != nil {
		s.logg.Error(ctx, "gateway subscription create failed", err)
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "gateway subscription create failed")
		}
		return nil, err
	}
	ctx = s.logg.WithSubscriptionID(ctx, gwSub.ID)

	row := &models.Subscription{
		ID:                    uuid.New(),
		UserID:                userID,
		GatewaySubscriptionID: gwSub.ID,
		GatewayMode:           mode,
		PlanID:                req.PlanID,
		PlanName:              plan.Name,
		BillingCycle:          cycle,
		Status:                enums.SubscriptionStatusCreated,
		CouponUsed:            req.Notes.CouponUsed,
		TotalBillingCycles:    req.TotalCount,
		StartAt:               req.StartAt,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if req.OfferID != "" {
		offerID := req.OfferID
		row.OfferID = &offerID
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, row); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSubscriptionCreated,
			AggregateType: enums.AggregateSubscription,
			AggregateID:   row.ID,
			Actor:         &outbox.ActorRef{UserID: userID},
			Data:          subscriptionPayload(row, "", "checkout", now),
			OccurredAt:    now,
		})
	})
	if err != nil {
		s.logg.Error(ctx, "persist created subscription failed", err)
		if dbpkg.IsUniqueViolation(err, "subscriptions_gateway_subscription_id_key") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "subscription already recorded")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist subscription")
	}

	couponType := catalog.NoCoupon
	if coupon != nil {
		couponType = string(coupon.Type())
	}
	s.metrics.SubscriptionCreated(plan.Name, string(cycle), couponType)
	s.logg.Info(ctx, "subscription created")

	return &CreateResult{
		SubscriptionID: gwSub.ID,
		KeyID:          s.gateway.KeyID(),
		PlanID:         req.PlanID,
		OfferID:        req.OfferID,
		PlanName:       plan.Name,
		BillingCycle:   cycle,
		CouponUsed:     req.Notes.CouponUsed,
		DisplayPrice:   quote.DisplayPrice,
		StruckPrice:    quote.StruckPrice,
		TotalCount:     req.TotalCount,
		StartAt:        req.StartAt,
		Currency:       s.catalog.Currency(),
	}, nil
}

// Get returns the caller's subscription by gateway id.
func (s *Service) Get(ctx context.Context, userID uuid.UUID, gatewaySubscriptionID string) (*models.Subscription, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	sub, err := s.repo.FindByGatewayID(ctx, strings.TrimSpace(gatewaySubscriptionID))
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
	}
	if sub.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	return sub, nil
}

// ListResult is one page of a subscriber's history.
type ListResult struct {
	Subscriptions []models.Subscription
	NextCursor    string
}

// List pages through the caller's subscriptions, newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*ListResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	cursor, err := params.Decode()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.ListByUser(ctx, userID, cursor, params.Fetch())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list subscriptions")
	}

	subs, more := pagination.Trim(rows, params.Size())
	out := &ListResult{Subscriptions: subs}
	if more {
		last := subs[len(subs)-1]
		out.NextCursor = pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}.Encode()
	}
	return out, nil
}

func (s *Service) lookupCoupon(raw string) (catalog.Coupon, error) {
	code := catalog.NormalizeCode(raw)
	if code == "" || strings.EqualFold(code, catalog.NoCoupon) {
		return nil, nil
	}
	coupon, ok := s.catalog.Coupon(code)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, eligibility.ReasonInvalid.Message()).
			WithDetails(map[string]any{"coupon": code, "reason": string(eligibility.ReasonInvalid)})
	}
	return coupon, nil
}

func subscriptionPayload(sub *models.Subscription, previous enums.SubscriptionStatus, source string, at time.Time) payloads.SubscriptionEvent {
	return payloads.SubscriptionEvent{
		SubscriptionID:        sub.ID,
		GatewaySubscriptionID: sub.GatewaySubscriptionID,
		UserID:                sub.UserID,
		PlanName:              sub.PlanName,
		BillingCycle:          sub.BillingCycle,
		CouponUsed:            sub.CouponUsed,
		Status:                sub.Status,
		PreviousStatus:        previous,
		Source:                source,
		ChangedAt:             at,
	}
}
