// Package masking redacts bearer-like values, such as referral codes, before
// they reach logs or audit metadata.
package masking

import "strings"

const (
	maskToken     = "****"
	visibleSuffix = 4
	// Below this length a visible suffix would give away too much of the value.
	minRevealLength = 12
)

// MaskSecret keeps the last four characters of long values and hides short ones entirely.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) < minRevealLength {
		return maskToken
	}
	return maskToken + trimmed[len(trimmed)-visibleSuffix:]
}
