// Package analyzer provides the factory-default analysis for each pillar.
// These are hardcoded domain checks, not generic rules: they run when no
// user-authored rule set resolves for a pillar, so the dashboard never shows
// an empty state purely because nothing has been configured.
package analyzer

import "strconv"

// formatNum renders a threshold or cell figure the way it appears in the
// source data: no trailing zeros, no forced decimals.
func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
