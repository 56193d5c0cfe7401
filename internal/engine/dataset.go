package engine

import (
	"fmt"
	"strings"

	"github.com/dutylens/dutylens/internal/pillar"
	"github.com/dutylens/dutylens/internal/rules"
)

// EvaluateDataset applies every rule of the set to every row and emits one
// finding per row that matched at least one rule. Output preserves input row
// order; the finding severity is the highest severity among the row's
// matched rules. A nil or empty rule set yields an empty slice, signalling
// the caller to fall back to the pillar's default analyzer.
func EvaluateDataset(p pillar.Pillar, rows []rules.Row, rs *rules.RuleSet) []rules.Finding {
	findings := []rules.Finding{}
	if rs == nil || len(rs.Rules) == 0 {
		return findings
	}

	for idx, row := range rows {
		var messages []rules.Message
		var hasCritical, hasHigh, hasMedium bool

		for _, r := range rs.Rules {
			res := EvaluateRule(row, p, r)
			if !res.Matched {
				continue
			}
			messages = append(messages, rules.Message{Text: res.Text, Extra: res.Extra})
			switch r.Severity {
			case rules.SeverityCritical:
				hasCritical = true
			case rules.SeverityHigh:
				hasHigh = true
			case rules.SeverityMedium:
				hasMedium = true
			}
		}

		if len(messages) == 0 {
			continue
		}

		severity := rules.FindingLow
		switch {
		case hasCritical:
			severity = rules.FindingCritical
		case hasHigh:
			severity = rules.FindingHigh
		case hasMedium:
			severity = rules.FindingMedium
		}

		findings = append(findings, rules.Finding{
			ID:       DeriveID(p, row, idx),
			Title:    DeriveTitle(p, row),
			Severity: severity,
			Messages: messages,
		})
	}

	return findings
}

// DeriveID picks the row's identity field for the pillar, falling back to a
// positional placeholder when the column is missing.
func DeriveID(p pillar.Pillar, row rules.Row, idx int) string {
	switch p {
	case pillar.ProductsServices, pillar.PriceValue:
		if v, ok := Resolve(row, p, "Product_ID"); ok {
			return v
		}
		return fmt.Sprintf("P%d", idx+1)
	case pillar.ConsumerUnderstanding:
		if v, ok := Resolve(row, p, "communication_ID"); ok {
			return v
		}
		return fmt.Sprintf("COM%d", idx+1)
	case pillar.ConsumerSupport:
		if v, ok := Resolve(row, p, "Support_ID"); ok {
			return v
		}
		return fmt.Sprintf("S%d", idx+1)
	}
	return fmt.Sprintf("R%d", idx+1)
}

// DeriveTitle picks the row's display title for the pillar.
func DeriveTitle(p pillar.Pillar, row rules.Row) string {
	switch p {
	case pillar.ProductsServices, pillar.PriceValue:
		if v, ok := Resolve(row, p, "Product_Name"); ok {
			return v
		}
		return "Unknown Product"
	case pillar.ConsumerUnderstanding:
		id, _ := Resolve(row, p, "communication_ID")
		return strings.TrimSpace("Communication " + id)
	case pillar.ConsumerSupport:
		id, _ := Resolve(row, p, "Support_ID")
		return strings.TrimSpace("Support Interaction " + id)
	}
	return ""
}
