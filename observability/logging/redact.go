package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces sensitive values in log output.
const RedactedValue = "[REDACTED]"

// Keys that always pass through MaskField unchanged.
var plainKeys = map[string]struct{}{
	"service":   {},
	"env":       {},
	"message":   {},
	"severity":  {},
	"timestamp": {},
	"error":     {},
	"reason":    {},
	"method":    {},
	"bookingid": {},
	"listingid": {},
}

// Keys the handler masks wherever they appear, including nested groups.
var secretKeys = map[string]struct{}{
	"authorization": {},
	"token":         {},
	"jwtsecret":     {},
	"secret":        {},
	"passphrase":    {},
	"password":      {},
	"dsn":           {},
}

func normaliseKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// IsPlain reports whether key is exempt from MaskField redaction.
func IsPlain(key string) bool {
	_, ok := plainKeys[normaliseKey(key)]
	return ok
}

// IsSecret reports whether the handler masks values logged under key.
func IsSecret(key string) bool {
	_, ok := secretKeys[normaliseKey(key)]
	return ok
}

// MaskValue returns RedactedValue for non-empty values.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// MaskField redacts value unless key is plain. Key casing is preserved.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsPlain(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

func redactSecret(attr slog.Attr) slog.Attr {
	if !IsSecret(attr.Key) || attr.Value.Kind() == slog.KindGroup {
		return attr
	}
	return slog.String(attr.Key, MaskValue(attr.Value.String()))
}
