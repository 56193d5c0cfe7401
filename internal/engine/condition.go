package engine

import (
	"regexp"
	"strings"

	"github.com/dutylens/dutylens/internal/pillar"
	"github.com/dutylens/dutylens/internal/rules"
)

// MatchCondition evaluates one condition against a row. It is total: an
// unknown operator or an invalid regex pattern evaluates to false rather
// than returning an error, so one malformed condition can never abort
// evaluation of a dataset.
func MatchCondition(row rules.Row, p pillar.Pillar, c rules.Condition) bool {
	left, _ := Resolve(row, p, c.Left)

	switch c.Op {
	case rules.OpGT:
		return ToNumber(left) > ToNumber(c.Right)
	case rules.OpGTE:
		return ToNumber(left) >= ToNumber(c.Right)
	case rules.OpLT:
		return ToNumber(left) < ToNumber(c.Right)
	case rules.OpLTE:
		return ToNumber(left) <= ToNumber(c.Right)
	case rules.OpEQ:
		return left == c.Right
	case rules.OpNEQ:
		return left != c.Right
	case rules.OpContains:
		return strings.Contains(strings.ToLower(left), strings.ToLower(c.Right))
	case rules.OpNotContains:
		return !strings.Contains(strings.ToLower(left), strings.ToLower(c.Right))
	case rules.OpRegex:
		return matchRegex(c.Right, left)
	case rules.OpDeltaGT:
		right, _ := Resolve(row, p, c.RightField)
		return ToNumber(left)-ToNumber(right) > ToNumber(c.Right)
	case rules.OpDeltaLT:
		right, _ := Resolve(row, p, c.RightField)
		return ToNumber(left)-ToNumber(right) < ToNumber(c.Right)
	case rules.OpLagDaysGT:
		return ToNumber(left) > ToNumber(c.Right)
	case rules.OpIsYes:
		return IsYes(left)
	case rules.OpIsNo:
		// Deliberately "not yes" rather than "equals no": an absent field
		// satisfies is_no. See the rule authoring docs.
		return !IsYes(left)
	default:
		return false
	}
}

// matchRegex compiles the pattern case-insensitively and tests the value.
// Compilation failure is swallowed into a non-match at this boundary so the
// public contract stays error-free.
func matchRegex(pattern, value string) bool {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return false
	}
	return re.MatchString(value)
}
