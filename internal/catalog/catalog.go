package catalog

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Catalog is the immutable set of plans, coupons and checkout extras.
// Build it once at startup and share it; nothing mutates it afterwards.
type Catalog struct {
	currency      string
	eMandateLimit decimal.Decimal
	plans         map[string]Plan
	planOrder     []string
	coupons       map[string]Coupon
	freeItems     []FreeItem
}

// Plan looks up a plan by name, case-insensitively.
func (c *Catalog) Plan(name string) (Plan, bool) {
	plan, ok := c.plans[strings.ToLower(strings.TrimSpace(name))]
	return plan, ok
}

// Plans returns the plans in catalog order.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, 0, len(c.planOrder))
	for _, key := range c.planOrder {
		out = append(out, c.plans[key])
	}
	return out
}

// Coupon looks up a coupon by code after normalization.
func (c *Catalog) Coupon(code string) (Coupon, bool) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, false
	}
	coupon, ok := c.coupons[normalized]
	return coupon, ok
}

// CouponCodes returns every registered code, sorted.
func (c *Catalog) CouponCodes() []string {
	codes := make([]string, 0, len(c.coupons))
	for code := range c.coupons {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// FreeItems returns a copy of the bundled checkout extras.
func (c *Catalog) FreeItems() []FreeItem {
	out := make([]FreeItem, len(c.freeItems))
	copy(out, c.freeItems)
	return out
}

// FreeItemsValue sums the list value of the bundled extras.
func (c *Catalog) FreeItemsValue() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.freeItems {
		total = total.Add(item.OriginalPrice)
	}
	return total
}

func (c *Catalog) Currency() string {
	return c.currency
}

// EMandateLimit is the maximum recurring debit the subscriber authorizes.
func (c *Catalog) EMandateLimit() decimal.Decimal {
	return c.eMandateLimit
}
