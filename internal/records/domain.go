package records

import (
	"strings"
	"unicode"
)

// MaxDomainLength is the longest hostname accepted in strict mode.
const MaxDomainLength = 253

// NormalizeDomain trims surrounding whitespace and lower-cases s.
func NormalizeDomain(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidateDomain reports whether s looks like a hostname after
// normalization: at least 3 characters, at least one dot and a final label
// of 2 or more characters. Strict mode also caps the length at 253 and
// rejects inner whitespace.
func ValidateDomain(s string, strict bool) bool {
	d := NormalizeDomain(s)
	if len(d) < 3 {
		return false
	}
	if strict {
		if len(d) > MaxDomainLength {
			return false
		}
		if strings.IndexFunc(d, unicode.IsSpace) >= 0 {
			return false
		}
	}

	dot := strings.LastIndexByte(d, '.')
	if dot < 0 {
		return false
	}
	return len(d)-dot-1 >= 2
}
