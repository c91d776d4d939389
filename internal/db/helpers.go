package db

import "time"

// nilIfEmpty converts an empty string to nil for nullable columns.
func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nilIfZeroTime converts a zero time to nil so the DB default (NOW()) applies.
func nilIfZeroTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
