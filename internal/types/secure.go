package types

// SecretString wraps sensitive configuration values (API keys, DSNs) so
// they cannot leak through logging or JSON encoding. The raw value is only
// reachable through Reveal().
type SecretString string

const redacted = "[REDACTED]"

// String implements fmt.Stringer and always redacts.
func (s SecretString) String() string { return redacted }

// GoString redacts %#v formatting as well.
func (s SecretString) GoString() string { return redacted }

// MarshalJSON always encodes the redaction marker.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// Reveal returns the underlying secret value.
func (s SecretString) Reveal() string { return string(s) }

// IsZero reports whether the secret is unset.
func (s SecretString) IsZero() bool { return s == "" }
