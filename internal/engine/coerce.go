package engine

import (
	"strconv"
	"strings"
)

var numericStripper = strings.NewReplacer("%", "", "£", "", "$", "", ",", "")

// ToNumber parses a raw cell value as a float after stripping currency and
// percent symbols and thousands separators. Non-numeric input coerces to 0
// so that malformed cells never abort rule evaluation.
func ToNumber(raw string) float64 {
	s := strings.TrimSpace(numericStripper.Replace(raw))
	if s == "" {
		return 0
	}
	// Tolerate trailing text after the number ("12 days", "8min"): take the
	// longest numeric prefix, the way a permissive float parse would.
	end := len(s)
	for i := range s {
		c := s[i]
		if (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '+' || c == 'e' || c == 'E' {
			continue
		}
		end = i
		break
	}
	n, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0
	}
	return n
}

// IsYes reports whether a raw value is the token "yes", case-insensitively.
func IsYes(raw string) bool {
	return strings.EqualFold(strings.TrimSpace(raw), "yes")
}
