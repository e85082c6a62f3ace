package checkout

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bizvistar/billing-backend/api/controllers/usercontext"
	"github.com/bizvistar/billing-backend/api/middleware"
	"github.com/bizvistar/billing-backend/api/responses"
	"github.com/bizvistar/billing-backend/api/validators"
	subsvc "github.com/bizvistar/billing-backend/internal/subscriptions"
	"github.com/bizvistar/billing-backend/pkg/db/models"
	pkgerrors "github.com/bizvistar/billing-backend/pkg/errors"
	"github.com/bizvistar/billing-backend/pkg/logger"
	"github.com/bizvistar/billing-backend/pkg/pagination"
)

// SubscriptionService is the subscription surface the checkout routes use.
type SubscriptionService interface {
	Create(ctx context.Context, userID uuid.UUID, ip string, input subsvc.CreateInput) (*subsvc.CreateResult, error)
	Get(ctx context.Context, userID uuid.UUID, gatewaySubscriptionID string) (*models.Subscription, error)
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*subsvc.ListResult, error)
}

type createSubscriptionRequest struct {
	PlanName     string `json:"planName" validate:"required,max=64"`
	BillingCycle string `json:"billingCycle" validate:"required,oneof=monthly yearly"`
	CouponCode   string `json:"couponCode,omitempty" validate:"max=64"`
}

type createSubscriptionResponse struct {
	SubscriptionID string     `json:"subscriptionId"`
	KeyID          string     `json:"keyId"`
	PlanID         string     `json:"planId"`
	OfferID        string     `json:"offerId,omitempty"`
	PlanName       string     `json:"planName"`
	BillingCycle   string     `json:"billingCycle"`
	CouponUsed     string     `json:"couponUsed"`
	DisplayPrice   string     `json:"displayPrice"`
	StruckPrice    string     `json:"struckPrice"`
	TotalCount     int        `json:"totalCount"`
	StartAt        *time.Time `json:"startAt,omitempty"`
	Currency       string     `json:"currency"`
}

type subscriptionResponse struct {
	SubscriptionID string     `json:"subscriptionId"`
	Status         string     `json:"status"`
	PlanID         string     `json:"planId"`
	PlanName       string     `json:"planName"`
	BillingCycle   string     `json:"billingCycle"`
	CouponUsed     string     `json:"couponUsed"`
	OfferID        *string    `json:"offerId,omitempty"`
	StartAt        *time.Time `json:"startAt,omitempty"`
	ActivatedAt    *time.Time `json:"activatedAt,omitempty"`
	CanceledAt     *time.Time `json:"canceledAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// CreateSubscription opens a gateway subscription for the selected plan.
func CreateSubscription(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		userID, err := usercontext.ResolveUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createSubscriptionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		res, err := svc.Create(r.Context(), userID, middleware.ClientIP(r), subsvc.CreateInput{
			PlanName:     payload.PlanName,
			BillingCycle: payload.BillingCycle,
			CouponCode:   payload.CouponCode,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, createSubscriptionResponse{
			SubscriptionID: res.SubscriptionID,
			KeyID:          res.KeyID,
			PlanID:         res.PlanID,
			OfferID:        res.OfferID,
			PlanName:       res.PlanName,
			BillingCycle:   string(res.BillingCycle),
			CouponUsed:     res.CouponUsed,
			DisplayPrice:   money(res.DisplayPrice),
			StruckPrice:    money(res.StruckPrice),
			TotalCount:     res.TotalCount,
			StartAt:        res.StartAt,
			Currency:       res.Currency,
		})
	}
}

// GetSubscription returns one of the caller's subscriptions.
func GetSubscription(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		userID, err := usercontext.ResolveUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		gatewayID := strings.TrimSpace(chi.URLParam(r, "subscriptionId"))
		if gatewayID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required"))
			return
		}

		sub, err := svc.Get(r.Context(), userID, gatewayID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSubscriptionResponse(sub))
	}
}

type subscriptionListResponse struct {
	Subscriptions []subscriptionResponse `json:"subscriptions"`
	NextCursor    string                 `json:"nextCursor,omitempty"`
}

// ListSubscriptions pages through the caller's subscription history.
func ListSubscriptions(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		userID, err := usercontext.ResolveUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := pagination.Params{Cursor: strings.TrimSpace(r.URL.Query().Get("cursor"))}
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit < 1 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "limit must be a positive integer"))
				return
			}
			params.Limit = limit
		}

		page, err := svc.List(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := subscriptionListResponse{
			Subscriptions: make([]subscriptionResponse, 0, len(page.Subscriptions)),
			NextCursor:    page.NextCursor,
		}
		for i := range page.Subscriptions {
			out.Subscriptions = append(out.Subscriptions, newSubscriptionResponse(&page.Subscriptions[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

func newSubscriptionResponse(sub *models.Subscription) subscriptionResponse {
	return subscriptionResponse{
		SubscriptionID: sub.GatewaySubscriptionID,
		Status:         string(sub.Status),
		PlanID:         sub.PlanID,
		PlanName:       sub.PlanName,
		BillingCycle:   string(sub.BillingCycle),
		CouponUsed:     sub.CouponUsed,
		OfferID:        sub.OfferID,
		StartAt:        sub.StartAt,
		ActivatedAt:    sub.ActivatedAt,
		CanceledAt:     sub.CanceledAt,
		CreatedAt:      sub.CreatedAt,
	}
}
