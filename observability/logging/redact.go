package logging

import (
	"log/slog"
	"sort"
	"strings"
)

// RedactedValue is the placeholder written in place of sensitive values.
const RedactedValue = "[REDACTED]"

var redactionAllowlist = map[string]struct{}{
	"service":  {},
	"env":      {},
	"message":  {},
	"severity": {},
	"error":    {},
	"stage":    {},
	"account":  {},
	"endpoint": {},
	"config":   {},
	"listen":   {},
}

// IsAllowlisted reports whether key may be logged verbatim.
func IsAllowlisted(key string) bool {
	_, ok := redactionAllowlist[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// RedactionAllowlist returns the allowlisted keys, sorted.
func RedactionAllowlist() []string {
	keys := make([]string, 0, len(redactionAllowlist))
	for key := range redactionAllowlist {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MaskField redacts value unless key is allowlisted. Empty values are kept
// so missing settings stay visible.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}
