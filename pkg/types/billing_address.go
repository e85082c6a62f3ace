package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// BillingAddress is the billing identity captured at checkout, stored as jsonb
// on the profile.
type BillingAddress struct {
	FullName    string  `json:"fullName"`
	Address     string  `json:"address"`
	City        *string `json:"city,omitempty"`
	State       string  `json:"state"`
	ZipCode     string  `json:"zipCode"`
	Country     string  `json:"country"`
	Phone       *string `json:"phone,omitempty"`
	CompanyName *string `json:"companyName,omitempty"`
	GSTNumber   *string `json:"gstNumber,omitempty"`
}

// Value implements driver.Valuer.
func (b BillingAddress) Value() (driver.Value, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("billing address: %w", err)
	}
	return string(raw), nil
}

// Scan implements sql.Scanner for jsonb and text columns.
func (b *BillingAddress) Scan(value interface{}) error {
	if value == nil {
		*b = BillingAddress{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("billing address: unsupported scan type %T", value)
	}
	if len(raw) == 0 {
		*b = BillingAddress{}
		return nil
	}
	return json.Unmarshal(raw, b)
}
