package cache

import (
	"time"
)

// Entry is one cached lookup result.
type Entry struct {
	// Phone is the dialable number the line type was resolved for.
	Phone string `json:"phone"`

	// LineType is the provider's line classification, possibly empty.
	LineType string `json:"line_type"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// newEntry creates an entry created at now that lives for ttl.
func newEntry(phone, lineType string, now time.Time, ttl time.Duration) *Entry {
	return &Entry{
		Phone:     phone,
		LineType:  lineType,
		CreatedAt: now.UTC(),
		ExpiresAt: now.Add(ttl).UTC(),
	}
}

// IsExpired reports whether the entry has expired at now.
func (e *Entry) IsExpired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Age returns how long ago the entry was created.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}
