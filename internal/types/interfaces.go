package types

import "time"

// Clock abstracts time.Now for deterministic testing of recency ordering
// and intent timestamps.
type Clock interface {
	Now() time.Time
}

// RealClock is the production Clock backed by time.Now (UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// TokenSource produces opaque, cryptographically unguessable tokens used as
// purchase external identifiers and pet QR tokens. Implementations must not
// return an error for transient entropy exhaustion; they should block.
type TokenSource interface {
	NewToken() string
}
