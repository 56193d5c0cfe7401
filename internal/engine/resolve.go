// Package engine implements the rule evaluation core: field resolution,
// value coercion, condition matching, template rendering and per-dataset
// evaluation. Every function here is pure and total; malformed input
// degrades to a non-match or an empty value, never an error.
package engine

import (
	"github.com/dutylens/dutylens/internal/pillar"
	"github.com/dutylens/dutylens/internal/rules"
)

// Resolve maps a logical field name to the first matching column present in
// the row, following the pillar's alias priority order. Unknown logical
// fields fall back to a literal column lookup. Presence means the key
// exists, even with an empty value.
func Resolve(row rules.Row, p pillar.Pillar, logical string) (string, bool) {
	if list, ok := pillar.LookupAliases(p, logical); ok {
		for _, label := range list {
			if v, present := row[label]; present {
				return v, true
			}
		}
		return "", false
	}
	v, present := row[logical]
	return v, present
}
