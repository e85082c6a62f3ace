package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bizvistar/billing-backend/internal/catalog"
	"github.com/bizvistar/billing-backend/pkg/enums"
)

// CheckoutDetails is everything the checkout page renders before a coupon is applied.
type CheckoutDetails struct {
	PlanName         string
	BillingCycle     enums.BillingCycle
	PlanLabel        string
	BasePrice        decimal.Decimal
	FreeItems        []catalog.FreeItem
	FreeItemsValue   decimal.Decimal
	TotalStruckPrice decimal.Decimal
	RenewalDate      time.Time
	Currency         string
	EMandateLimit    decimal.Decimal
}

// CheckoutDetails resolves the plan and the bundled extras for the checkout page.
func (r *Resolver) CheckoutDetails(planName, cycle string, now time.Time) (CheckoutDetails, error) {
	plan, parsedCycle, err := r.ResolvePlan(planName, cycle)
	if err != nil {
		return CheckoutDetails{}, err
	}
	base := basePrice(plan.MonthlyPrice, parsedCycle)
	freeValue := r.catalog.FreeItemsValue()

	return CheckoutDetails{
		PlanName:         plan.Name,
		BillingCycle:     parsedCycle,
		PlanLabel:        PlanLabel(parsedCycle),
		BasePrice:        base,
		FreeItems:        r.catalog.FreeItems(),
		FreeItemsValue:   freeValue,
		TotalStruckPrice: base.Add(freeValue),
		RenewalDate:      RenewalDate(parsedCycle, now),
		Currency:         r.catalog.Currency(),
		EMandateLimit:    r.catalog.EMandateLimit(),
	}, nil
}

// PlanLabel is the human readable term shown next to the price.
func PlanLabel(cycle enums.BillingCycle) string {
	if cycle == enums.BillingCycleYearly {
		return "12-month plan"
	}
	return "Monthly plan"
}

// RenewalDate is when the first paid term ends.
func RenewalDate(cycle enums.BillingCycle, now time.Time) time.Time {
	if cycle == enums.BillingCycleYearly {
		return now.AddDate(1, 0, 0)
	}
	return now.AddDate(0, 1, 0)
}
