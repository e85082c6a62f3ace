package checkout

import (
	"net/http"
	"time"

	"github.com/bizvistar/billing-backend/api/responses"
	"github.com/bizvistar/billing-backend/api/validators"
	checkoutsvc "github.com/bizvistar/billing-backend/internal/checkout"
	"github.com/bizvistar/billing-backend/internal/pricing"
	pkgerrors "github.com/bizvistar/billing-backend/pkg/errors"
	"github.com/bizvistar/billing-backend/pkg/logger"
)

type freeItemResponse struct {
	Name          string `json:"name"`
	OriginalPrice string `json:"originalPrice"`
}

type checkoutDetailsResponse struct {
	PlanName         string             `json:"planName"`
	BillingCycle     string             `json:"billingCycle"`
	PlanLabel        string             `json:"planLabel"`
	BasePrice        string             `json:"basePrice"`
	FreeItems        []freeItemResponse `json:"freeItems"`
	FreeItemsValue   string             `json:"freeItemsValue"`
	TotalStruckPrice string             `json:"totalStruckPrice"`
	RenewalDate      time.Time          `json:"renewalDate"`
	Currency         string             `json:"currency"`
	EMandateLimit    string             `json:"eMandateLimit"`
}

// CheckoutDetails prices the selected plan for the checkout page.
func CheckoutDetails(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		query, err := validators.RequiredQuery(r, "plan", "billing")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		details, err := svc.Details(r.Context(), query["plan"], query["billing"])
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCheckoutDetailsResponse(details))
	}
}

func newCheckoutDetailsResponse(d pricing.CheckoutDetails) checkoutDetailsResponse {
	items := make([]freeItemResponse, 0, len(d.FreeItems))
	for _, item := range d.FreeItems {
		items = append(items, freeItemResponse{Name: item.Name, OriginalPrice: money(item.OriginalPrice)})
	}
	return checkoutDetailsResponse{
		PlanName:         d.PlanName,
		BillingCycle:     string(d.BillingCycle),
		PlanLabel:        d.PlanLabel,
		BasePrice:        money(d.BasePrice),
		FreeItems:        items,
		FreeItemsValue:   money(d.FreeItemsValue),
		TotalStruckPrice: money(d.TotalStruckPrice),
		RenewalDate:      d.RenewalDate,
		Currency:         d.Currency,
		EMandateLimit:    money(d.EMandateLimit),
	}
}
