package enums

import (
	"fmt"
	"strings"
)

// BillingCycle is the cadence a subscriber picks at checkout.
type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleYearly  BillingCycle = "yearly"
)

var validBillingCycles = []BillingCycle{
	BillingCycleMonthly,
	BillingCycleYearly,
}

// String implements fmt.Stringer.
func (b BillingCycle) String() string {
	return string(b)
}

func (b BillingCycle) IsValid() bool { return known(b, validBillingCycles) }

// Months returns the number of months billed per cycle.
func (b BillingCycle) Months() int {
	if b == BillingCycleYearly {
		return 12
	}
	return 1
}

// ParseBillingCycle converts raw input into a BillingCycle. Matching is case-insensitive.
func ParseBillingCycle(value string) (BillingCycle, error) {
	cycle, err := parse("billing cycle", strings.ToLower(strings.TrimSpace(value)), validBillingCycles)
	if err != nil {
		return "", fmt.Errorf("invalid billing cycle %q", value)
	}
	return cycle, nil
}
