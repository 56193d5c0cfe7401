package analyzer

import (
	"github.com/dutylens/dutylens/internal/engine"
	"github.com/dutylens/dutylens/internal/pillar"
	"github.com/dutylens/dutylens/internal/rules"
	"github.com/dutylens/dutylens/internal/thresholds"
)

// AnalyzeConsumerUnderstanding flags communications where a miscommunication
// occurred without a compliance review, and communications whose readability
// falls below the configured minimum.
func AnalyzeConsumerUnderstanding(rows []rules.Row, t thresholds.ConsumerUnderstanding) []rules.Finding {
	p := pillar.ConsumerUnderstanding
	findings := []rules.Finding{}

	for idx, row := range rows {
		readabilityRaw, _ := engine.Resolve(row, p, "Readability_Score")
		misRaw, _ := engine.Resolve(row, p, "Miscommunication_Flag")
		reviewedRaw, _ := engine.Resolve(row, p, "Reviewed_By_Compliance")

		readability := engine.ToNumber(readabilityRaw)
		miscommunicated := engine.IsYes(misRaw)
		reviewed := engine.IsYes(reviewedRaw)

		var messages []rules.Message
		var hasHigh bool

		if t.RequireComplianceOnMiscomm && miscommunicated && !reviewed {
			hasHigh = true
			messages = append(messages, rules.Message{
				Text: "Miscommunication occurred but communication was not reviewed by compliance",
			})
		}

		// A zero score means the column was absent or unparsable; skip rather
		// than flag every unscored communication.
		if readability != 0 && readability < t.ReadabilityMin {
			messages = append(messages, rules.Message{
				Text: "Low readability score indicates overly complex language for customers",
			})
		}

		if len(messages) == 0 {
			continue
		}

		severity := rules.FindingMedium
		if hasHigh {
			severity = rules.FindingHigh
		}

		findings = append(findings, rules.Finding{
			ID:       engine.DeriveID(p, row, idx),
			Title:    engine.DeriveTitle(p, row),
			Severity: severity,
			Messages: messages,
		})
	}

	return findings
}
