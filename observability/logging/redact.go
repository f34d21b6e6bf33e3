package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue is the placeholder written in place of credential material.
const RedactedValue = "[REDACTED]"

// MaskValue replaces non-empty credential values with the redaction
// placeholder. Empty values pass through unchanged to keep logs quiet.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// MaskField builds a slog.Attr whose value is always redacted. Callers use it
// for bearer tokens and signatures that must never reach log storage.
func MaskField(key, value string) slog.Attr {
	return slog.String(key, MaskValue(value))
}
