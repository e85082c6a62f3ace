package enums

import (
	"fmt"
	"strings"
)

// GatewayMode selects which gateway credential set and identifiers are in play.
type GatewayMode string

const (
	GatewayModeTest GatewayMode = "test"
	GatewayModeLive GatewayMode = "live"
)

// IsValid reports whether the value is a known GatewayMode.
func (m GatewayMode) IsValid() bool {
	return m == GatewayModeTest || m == GatewayModeLive
}

// String implements fmt.Stringer.
func (m GatewayMode) String() string {
	return string(m)
}

// ParseGatewayMode converts raw input into a GatewayMode.
func ParseGatewayMode(value string) (GatewayMode, error) {
	mode := GatewayMode(strings.ToLower(strings.TrimSpace(value)))
	if !mode.IsValid() {
		return "", fmt.Errorf("invalid gateway mode %q", value)
	}
	return mode, nil
}
