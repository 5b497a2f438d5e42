// Package contact defines the contact row model and its CSV representation.
//
// A Row is one record from the input file. Rows are treated as values: every
// component that annotates a row works on its own copy and hands it back,
// so the only mutable field, PhoneType, is written by exactly one owner.
package contact

import "strings"

// PhoneTypeInvalid is the phone type written for rows that fail offline validation.
const PhoneTypeInvalid = "Invalid"

// extensionDelimiter separates the dialable number from an extension ("5551234567x89").
const extensionDelimiter = "x"

// Row is one contact record.
type Row struct {
	// InternalID is the caller's opaque identifier for the record.
	InternalID string `csv:"internal_id"`

	// Phone is the raw phone number, possibly carrying an extension suffix.
	Phone string `csv:"phone"`

	// PhoneType is the resolved line type. Empty means unset.
	PhoneType string `csv:"phone_type"`
}

// WithPhoneType returns a copy of the row with its phone type set.
func (r Row) WithPhoneType(phoneType string) Row {
	r.PhoneType = phoneType
	return r
}

// DialableNumber returns the phone number with any extension stripped and
// surrounding whitespace removed.
func (r Row) DialableNumber() string {
	return StripExtension(r.Phone)
}

// HasPhone reports whether the phone field is non-empty. A phone made only of
// whitespace counts.
func (r Row) HasPhone() bool {
	return r.Phone != ""
}

// Summary renders the row for progress output, e.g. "5551234567 (mobile)".
func (r Row) Summary() string {
	if r.PhoneType == "" {
		return r.Phone
	}
	return r.Phone + " (" + r.PhoneType + ")"
}

// StripExtension drops everything from the first extension delimiter onward.
// "5551234567x89" becomes "5551234567".
func StripExtension(phone string) string {
	number, _, _ := strings.Cut(phone, extensionDelimiter)
	return strings.TrimSpace(number)
}
