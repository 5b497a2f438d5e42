// Package cache keeps resolved phone line types on disk so repeated online
// runs over the same contacts do not pay for the same lookups twice.
//
// Each entry is a small JSON file named after the SHA256 of the dialable
// number, stored under ~/.phonecheck/cache/ by default. Entries expire after
// a configurable TTL; expired entries are treated as misses and removed.
package cache
