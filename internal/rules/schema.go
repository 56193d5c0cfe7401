// Package rules defines the editable compliance rule schema and the finding
// shape produced by evaluation.
package rules

import (
	"errors"
	"fmt"
	"time"

	"github.com/dutylens/dutylens/internal/pillar"
)

// Severity is the author-facing severity of a rule.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Valid reports whether s is a known rule severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// FindingSeverity is the aggregated severity of a finding, ordered
// critical > high > medium > low.
type FindingSeverity string

const (
	FindingCritical FindingSeverity = "critical"
	FindingHigh     FindingSeverity = "high"
	FindingMedium   FindingSeverity = "medium"
	FindingLow      FindingSeverity = "low"
)

// Operator identifies a condition comparison.
type Operator string

const (
	OpGT          Operator = ">"
	OpGTE         Operator = ">="
	OpLT          Operator = "<"
	OpLTE         Operator = "<="
	OpEQ          Operator = "=="
	OpNEQ         Operator = "!="
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpRegex       Operator = "regex"
	OpDeltaGT     Operator = "delta_gt"
	OpDeltaLT     Operator = "delta_lt"
	OpLagDaysGT   Operator = "lag_days_gt"
	OpIsYes       Operator = "is_yes"
	OpIsNo        Operator = "is_no"
)

// Valid reports whether op is a known operator.
func (op Operator) Valid() bool {
	switch op {
	case OpGT, OpGTE, OpLT, OpLTE, OpEQ, OpNEQ,
		OpContains, OpNotContains, OpRegex,
		OpDeltaGT, OpDeltaLT, OpLagDaysGT, OpIsYes, OpIsNo:
		return true
	}
	return false
}

// Row is one record of a tabular dataset: column label to raw cell value.
// Presence of a key counts as presence of the field even when the value is
// an empty string.
type Row map[string]string

// Condition is a single typed comparison against a row. Left names a
// logical field resolved through the pillar alias map. Right is the literal
// operand; RightField names a second logical field for the delta operators.
type Condition struct {
	Left       string   `json:"left" yaml:"left"`
	Op         Operator `json:"op" yaml:"op"`
	Right      string   `json:"right,omitempty" yaml:"right,omitempty"`
	RightField string   `json:"rightField,omitempty" yaml:"rightField,omitempty"`
}

// Rule is a named, severity-tagged predicate with message templates.
// All selects ALL-combinator semantics; false means ANY.
type Rule struct {
	ID         string      `json:"id" yaml:"id"`
	Code       string      `json:"code" yaml:"code"`
	Name       string      `json:"name" yaml:"name"`
	Severity   Severity    `json:"severity" yaml:"severity"`
	All        bool        `json:"all,omitempty" yaml:"all,omitempty"`
	Conditions []Condition `json:"conditions" yaml:"conditions"`
	Message    string      `json:"message" yaml:"message"`
	Extra      string      `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// RuleSet is the ordered collection of rules active for a pillar.
type RuleSet struct {
	Pillar pillar.Pillar `json:"pillar" yaml:"pillar"`
	Rules  []Rule        `json:"rules" yaml:"rules"`
}

// Message is one rendered rule message within a finding.
type Message struct {
	Text  string `json:"text"`
	Extra string `json:"extra,omitempty"`
}

// Finding is the per-row output of evaluation: an identity, an aggregated
// severity, and the rendered messages of every matched rule.
type Finding struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Severity FindingSeverity `json:"severity"`
	Messages []Message       `json:"messages"`
}

// PromptDocument is a free-text prompt library entry. Category is matched
// against pillar labels by substring; Rules, when present, is treated as an
// informally-attached rule set for that category.
type PromptDocument struct {
	ID           string    `json:"id"`
	Category     string    `json:"category"`
	Text         string    `json:"text"`
	Rules        []Rule    `json:"rules,omitempty"`
	LastModified time.Time `json:"lastModified"`
}

var (
	ErrNoConditions    = errors.New("rule has no conditions")
	ErrUnknownOperator = errors.New("unknown operator")
	ErrUnknownSeverity = errors.New("unknown severity")
)

// Validate checks a rule for structural problems before it is persisted.
// The evaluator itself never calls this: malformed conditions simply fail
// to match at evaluation time.
func (r Rule) Validate() error {
	if len(r.Conditions) == 0 {
		return fmt.Errorf("rule %q: %w", r.Code, ErrNoConditions)
	}
	if !r.Severity.Valid() {
		return fmt.Errorf("rule %q: %w: %q", r.Code, ErrUnknownSeverity, r.Severity)
	}
	for i, c := range r.Conditions {
		if !c.Op.Valid() {
			return fmt.Errorf("rule %q condition %d: %w: %q", r.Code, i, ErrUnknownOperator, c.Op)
		}
		if c.Left == "" {
			return fmt.Errorf("rule %q condition %d: left field is empty", r.Code, i)
		}
	}
	return nil
}

// Validate checks every rule in the set.
func (rs RuleSet) Validate() error {
	if !rs.Pillar.Valid() {
		return fmt.Errorf("unknown pillar %q", rs.Pillar)
	}
	for _, r := range rs.Rules {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}
