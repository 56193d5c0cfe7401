package engine

import (
	"regexp"

	"github.com/dutylens/dutylens/internal/pillar"
	"github.com/dutylens/dutylens/internal/rules"
)

var templateToken = regexp.MustCompile(`\$\{([^}]+)\}`)

// RenderTemplate substitutes ${field} tokens with the raw value resolved
// from the row through the pillar alias map. Unknown or absent fields render
// as the empty string; repeated tokens are fine.
func RenderTemplate(tpl string, row rules.Row, p pillar.Pillar) string {
	return templateToken.ReplaceAllStringFunc(tpl, func(tok string) string {
		field := tok[2 : len(tok)-1]
		v, _ := Resolve(row, p, field)
		return v
	})
}

// RuleResult is the outcome of evaluating one rule against one row.
type RuleResult struct {
	Matched bool
	Text    string
	Extra   string
}

// EvaluateRule combines a rule's conditions with ALL/ANY semantics and, on a
// match, renders its message templates against the row.
func EvaluateRule(row rules.Row, p pillar.Pillar, r rules.Rule) RuleResult {
	if len(r.Conditions) == 0 {
		return RuleResult{}
	}

	matched := r.All
	for _, c := range r.Conditions {
		ok := MatchCondition(row, p, c)
		if r.All {
			matched = matched && ok
			if !matched {
				break
			}
		} else if ok {
			matched = true
			break
		}
	}
	if !matched {
		return RuleResult{}
	}

	res := RuleResult{Matched: true, Text: RenderTemplate(r.Message, row, p)}
	if r.Extra != "" {
		res.Extra = RenderTemplate(r.Extra, row, p)
	}
	return res
}
