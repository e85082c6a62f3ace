package profiles

import (
	"strings"

	"github.com/bizvistar/billing-backend/pkg/types"
)

// BillingDetailsDTO is the billing form submitted before checkout.
type BillingDetailsDTO struct {
	FullName    string
	Address     string
	City        string
	State       string
	ZipCode     string
	Country     string
	Phone       string
	CompanyName string
	GSTNumber   string
}

// ToBillingAddress trims the form and drops empty optional fields.
func (d BillingDetailsDTO) ToBillingAddress() types.BillingAddress {
	return types.BillingAddress{
		FullName:    strings.TrimSpace(d.FullName),
		Address:     strings.TrimSpace(d.Address),
		City:        optional(d.City),
		State:       strings.TrimSpace(d.State),
		ZipCode:     strings.TrimSpace(d.ZipCode),
		Country:     strings.TrimSpace(d.Country),
		Phone:       optional(d.Phone),
		CompanyName: optional(d.CompanyName),
		GSTNumber:   optional(d.GSTNumber),
	}
}

func (d BillingDetailsDTO) missingFields() []string {
	required := []struct {
		name  string
		value string
	}{
		{"fullName", d.FullName},
		{"address", d.Address},
		{"state", d.State},
		{"zipCode", d.ZipCode},
		{"country", d.Country},
	}
	var missing []string
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	return missing
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
