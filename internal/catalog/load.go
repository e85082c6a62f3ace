package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/bizvistar/billing-backend/pkg/enums"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Options describes a catalog before validation.
type Options struct {
	Currency      string
	EMandateLimit decimal.Decimal
	Plans         []Plan
	Coupons       []Coupon
	FreeItems     []FreeItem
}

// New validates opts and builds an immutable catalog.
func New(opts Options) (*Catalog, error) {
	if len(opts.Plans) == 0 {
		return nil, fmt.Errorf("catalog requires at least one plan")
	}
	c := &Catalog{
		currency:      strings.ToUpper(strings.TrimSpace(opts.Currency)),
		eMandateLimit: opts.EMandateLimit,
		plans:         make(map[string]Plan, len(opts.Plans)),
		coupons:       make(map[string]Coupon, len(opts.Coupons)),
		freeItems:     append([]FreeItem(nil), opts.FreeItems...),
	}
	if c.currency == "" {
		c.currency = "INR"
	}

	for _, plan := range opts.Plans {
		key := strings.ToLower(strings.TrimSpace(plan.Name))
		if key == "" {
			return nil, fmt.Errorf("plan name is required")
		}
		if _, dup := c.plans[key]; dup {
			return nil, fmt.Errorf("duplicate plan %q", plan.Name)
		}
		if !plan.MonthlyPrice.IsPositive() {
			return nil, fmt.Errorf("plan %q monthly price must be positive", plan.Name)
		}
		c.plans[key] = plan
		c.planOrder = append(c.planOrder, key)
	}

	for _, coupon := range opts.Coupons {
		if err := c.addCoupon(coupon); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) addCoupon(coupon Coupon) error {
	if coupon == nil {
		return fmt.Errorf("nil coupon")
	}
	code := coupon.Code()
	if code == "" {
		return fmt.Errorf("coupon code is required")
	}
	if _, dup := c.coupons[code]; dup {
		return fmt.Errorf("duplicate coupon %q", code)
	}
	if limit := coupon.Rules().UsageLimit; limit != nil && *limit < 0 {
		return fmt.Errorf("coupon %q usage limit must not be negative", code)
	}

	switch v := coupon.(type) {
	case *PercentDiscount:
		if !v.PercentOff.IsPositive() || v.PercentOff.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("coupon %q percent off must be in (0, 100]", code)
		}
		if len(v.OfferIDs) == 0 {
			return fmt.Errorf("coupon %q requires at least one offer id", code)
		}
	case *TrialPeriod:
		if v.TrialDays <= 0 {
			return fmt.Errorf("coupon %q trial days must be positive", code)
		}
	case *OfferApply:
		if len(v.OfferIDs) == 0 {
			return fmt.Errorf("coupon %q requires at least one offer id", code)
		}
	case *FixedOverride:
		for planName := range v.MonthlyPrices {
			if _, ok := c.Plan(planName); !ok {
				return fmt.Errorf("coupon %q overrides unknown plan %q", code, planName)
			}
		}
	default:
		return fmt.Errorf("coupon %q has unsupported type %T", code, coupon)
	}

	c.coupons[code] = coupon
	return nil
}

// Default parses the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Load(bytes.NewReader(defaultCatalogYAML))
}

// MustDefault is Default for process start-up, panicking on a malformed embedded catalog.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

type catalogFile struct {
	Currency      string          `yaml:"currency"`
	EMandateLimit string          `yaml:"e_mandate_limit"`
	Plans         []planEntry     `yaml:"plans"`
	FreeItems     []freeItemEntry `yaml:"free_items"`
	Coupons       []couponEntry   `yaml:"coupons"`
}

type planEntry struct {
	Name           string                       `yaml:"name"`
	MonthlyPrice   string                       `yaml:"monthly_price"`
	GatewayPlanIDs map[string]map[string]string `yaml:"gateway_plan_ids"`
}

type freeItemEntry struct {
	Name          string `yaml:"name"`
	OriginalPrice string `yaml:"original_price"`
}

type couponEntry struct {
	Code        string                                  `yaml:"code"`
	Type        string                                  `yaml:"type"`
	Active      *bool                                   `yaml:"active"`
	ExpiresAt   string                                  `yaml:"expires_at"`
	UsageLimit  *int                                    `yaml:"usage_limit"`
	UsageScope  string                                  `yaml:"usage_scope"`
	PercentOff  string                                  `yaml:"percent_off"`
	MaxDiscount string                                  `yaml:"max_discount"`
	TrialDays   int                                     `yaml:"trial_days"`
	OfferIDs    map[string]string                       `yaml:"offer_ids"`
	Prices      map[string]string                       `yaml:"prices"`
	OneYearTerm bool                                    `yaml:"one_year_term"`
	PlanIDs     map[string]map[string]map[string]string `yaml:"gateway_plan_ids"`
}

// Load parses a YAML catalog definition.
func Load(r io.Reader) (*Catalog, error) {
	var file catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	opts := Options{Currency: file.Currency}
	if file.EMandateLimit != "" {
		limit, err := decimal.NewFromString(file.EMandateLimit)
		if err != nil {
			return nil, fmt.Errorf("e_mandate_limit: %w", err)
		}
		opts.EMandateLimit = limit
	}

	for _, entry := range file.Plans {
		plan, err := entry.toPlan()
		if err != nil {
			return nil, err
		}
		opts.Plans = append(opts.Plans, plan)
	}
	for _, entry := range file.FreeItems {
		price, err := decimal.NewFromString(entry.OriginalPrice)
		if err != nil {
			return nil, fmt.Errorf("free item %q price: %w", entry.Name, err)
		}
		opts.FreeItems = append(opts.FreeItems, FreeItem{Name: entry.Name, OriginalPrice: price})
	}

	// Canonical plan names let coupon price maps use any casing.
	canonical := map[string]string{}
	for _, plan := range opts.Plans {
		canonical[strings.ToLower(plan.Name)] = plan.Name
	}
	for _, entry := range file.Coupons {
		coupon, err := entry.toCoupon(canonical)
		if err != nil {
			return nil, err
		}
		opts.Coupons = append(opts.Coupons, coupon)
	}

	return New(opts)
}

func (e planEntry) toPlan() (Plan, error) {
	price, err := decimal.NewFromString(e.MonthlyPrice)
	if err != nil {
		return Plan{}, fmt.Errorf("plan %q monthly price: %w", e.Name, err)
	}
	ids, err := parseCycleIDs(e.GatewayPlanIDs)
	if err != nil {
		return Plan{}, fmt.Errorf("plan %q: %w", e.Name, err)
	}
	return Plan{Name: e.Name, MonthlyPrice: price, GatewayPlanIDs: ids}, nil
}

func parseCycleIDs(raw map[string]map[string]string) (map[enums.GatewayMode]map[enums.BillingCycle]string, error) {
	out := make(map[enums.GatewayMode]map[enums.BillingCycle]string, len(raw))
	for modeKey, byCycle := range raw {
		mode, err := enums.ParseGatewayMode(modeKey)
		if err != nil {
			return nil, err
		}
		out[mode] = make(map[enums.BillingCycle]string, len(byCycle))
		for cycleKey, id := range byCycle {
			cycle, err := enums.ParseBillingCycle(cycleKey)
			if err != nil {
				return nil, err
			}
			out[mode][cycle] = id
		}
	}
	return out, nil
}

func (e couponEntry) toCoupon(canonicalPlans map[string]string) (Coupon, error) {
	code := NormalizeCode(e.Code)
	wrap := func(field string, err error) error {
		return fmt.Errorf("coupon %q %s: %w", code, field, err)
	}

	couponType, err := enums.ParseCouponType(e.Type)
	if err != nil {
		return nil, wrap("type", err)
	}
	scope, err := enums.ParseUsageScope(e.UsageScope)
	if err != nil {
		return nil, wrap("usage_scope", err)
	}
	rules := Rules{Active: true, UsageLimit: e.UsageLimit, UsageScope: scope}
	if e.Active != nil {
		rules.Active = *e.Active
	}
	if e.ExpiresAt != "" {
		expires, err := time.Parse(time.RFC3339, e.ExpiresAt)
		if err != nil {
			return nil, wrap("expires_at", err)
		}
		rules.ExpiresAt = &expires
	}

	percentOff, err := optionalDecimal(e.PercentOff)
	if err != nil {
		return nil, wrap("percent_off", err)
	}
	maxDiscount, err := optionalDecimal(e.MaxDiscount)
	if err != nil {
		return nil, wrap("max_discount", err)
	}

	offers := make(map[enums.GatewayMode]string, len(e.OfferIDs))
	for modeKey, id := range e.OfferIDs {
		mode, err := enums.ParseGatewayMode(modeKey)
		if err != nil {
			return nil, wrap("offer_ids", err)
		}
		offers[mode] = id
	}

	switch couponType {
	case enums.CouponTypePercentDiscount:
		if percentOff == nil {
			return nil, wrap("percent_off", fmt.Errorf("required"))
		}
		return NewPercentDiscount(code, rules, *percentOff, maxDiscount, offers), nil

	case enums.CouponTypeTrialPeriod:
		return NewTrialPeriod(code, rules, e.TrialDays), nil

	case enums.CouponTypeOfferApply:
		return NewOfferApply(code, rules, offers, percentOff, maxDiscount), nil

	case enums.CouponTypeFixedOverride:
		prices := make(map[string]decimal.Decimal, len(e.Prices))
		for planName, raw := range e.Prices {
			price, err := decimal.NewFromString(raw)
			if err != nil {
				return nil, wrap("prices", err)
			}
			prices[canonicalName(canonicalPlans, planName)] = price
		}
		override := NewFixedOverride(code, rules, prices, e.OneYearTerm)
		if len(e.PlanIDs) > 0 {
			override.GatewayPlanIDs = make(map[enums.GatewayMode]map[string]map[enums.BillingCycle]string, len(e.PlanIDs))
			for modeKey, byPlan := range e.PlanIDs {
				mode, err := enums.ParseGatewayMode(modeKey)
				if err != nil {
					return nil, wrap("gateway_plan_ids", err)
				}
				override.GatewayPlanIDs[mode] = make(map[string]map[enums.BillingCycle]string, len(byPlan))
				for planName, byCycle := range byPlan {
					cycles, err := parseCycleIDs(map[string]map[string]string{modeKey: byCycle})
					if err != nil {
						return nil, wrap("gateway_plan_ids", err)
					}
					override.GatewayPlanIDs[mode][canonicalName(canonicalPlans, planName)] = cycles[mode]
				}
			}
		}
		return override, nil
	}
	return nil, wrap("type", fmt.Errorf("unsupported coupon type %q", couponType))
}

func canonicalName(canonical map[string]string, name string) string {
	if c, ok := canonical[strings.ToLower(strings.TrimSpace(name))]; ok {
		return c
	}
	return name
}

func optionalDecimal(raw string) (*decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	return &d, nil
}
