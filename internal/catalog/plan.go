package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/bizvistar/billing-backend/pkg/enums"
)

// Plan is a purchasable subscription tier.
type Plan struct {
	Name           string
	MonthlyPrice   decimal.Decimal
	GatewayPlanIDs map[enums.GatewayMode]map[enums.BillingCycle]string
}

// GatewayPlanID returns the standard gateway plan for mode and cycle.
func (p Plan) GatewayPlanID(mode enums.GatewayMode, cycle enums.BillingCycle) (string, bool) {
	id, ok := p.GatewayPlanIDs[mode][cycle]
	return id, ok && id != ""
}

// FreeItem is a bundled extra shown at checkout with its list value.
type FreeItem struct {
	Name          string
	OriginalPrice decimal.Decimal
}
