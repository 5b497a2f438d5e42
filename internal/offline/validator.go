// Package offline validates phone numbers locally using libphonenumber metadata.
package offline

import (
	"strings"

	"github.com/nyaruka/phonenumbers"

	"github.com/rshade/phonecheck/internal/contact"
)

// DefaultRegion is the region assumed for numbers without a country prefix.
const DefaultRegion = "US"

// Validator checks phone numbers against a default region.
type Validator struct {
	region string
}

// NewValidator creates a validator for region. An empty region means DefaultRegion.
func NewValidator(region string) *Validator {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		region = DefaultRegion
	}
	return &Validator{region: region}
}

// Region returns the region numbers are parsed against.
func (v *Validator) Region() string {
	return v.region
}

// IsValidNumber reports whether phone parses and is a valid number for region.
// Unparseable input is invalid, never an error.
func IsValidNumber(phone, region string) bool {
	num, err := phonenumbers.Parse(phone, region)
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(num)
}

// IsValid reports whether phone is valid in the validator's region.
func (v *Validator) IsValid(phone string) bool {
	return IsValidNumber(phone, v.region)
}

// InvalidRows returns the rows whose phone is non-empty and fails validation,
// each annotated with contact.PhoneTypeInvalid. Only rows with an empty phone
// field are skipped; a blank phone such as "   " is emitted as invalid. Input order is preserved and the input slice is not modified.
func (v *Validator) InvalidRows(rows []contact.Row) []contact.Row {
	invalid := make([]contact.Row, 0)
	for _, row := range rows {
		if !row.HasPhone() || v.IsValid(row.Phone) {
			continue
		}
		invalid = append(invalid, row.WithPhoneType(contact.PhoneTypeInvalid))
	}
	return invalid
}
