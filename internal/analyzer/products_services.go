package analyzer

import (
	"fmt"
	"strings"

	"github.com/dutylens/dutylens/internal/engine"
	"github.com/dutylens/dutylens/internal/pillar"
	"github.com/dutylens/dutylens/internal/rules"
	"github.com/dutylens/dutylens/internal/thresholds"
)

// AnalyzeProductsServices flags products whose actual customer base departs
// from the target market, whose early closure or complaint figures breach
// thresholds, and escalates to critical when a high vulnerable-customer
// proportion coincides with any other issue.
func AnalyzeProductsServices(rows []rules.Row, t thresholds.ProductsServices) []rules.Finding {
	p := pillar.ProductsServices
	findings := []rules.Finding{}

	for idx, row := range rows {
		target, _ := engine.Resolve(row, p, "Target_Market_Profile")
		actual, _ := engine.Resolve(row, p, "Actual_Customer_Profile")
		closureRaw, _ := engine.Resolve(row, p, "Early_Closure_Rate")
		complaintsRaw, _ := engine.Resolve(row, p, "Complaint_Count")
		vulnerableRaw, _ := engine.Resolve(row, p, "Vulnerable_Customer_proportion")

		earlyClosure := engine.ToNumber(closureRaw)
		complaints := engine.ToNumber(complaintsRaw)
		vulnerable := engine.ToNumber(vulnerableRaw)

		var messages []rules.Message

		// Naive case-insensitive inequality; profile taxonomies vary too
		// much between providers for anything stricter.
		if target != "" && actual != "" && !strings.EqualFold(target, actual) {
			messages = append(messages, rules.Message{
				Text: fmt.Sprintf("Market profile mismatch: Target %q vs Actual %q", target, actual),
			})
		}

		if earlyClosure > t.EarlyClosureRate {
			messages = append(messages, rules.Message{
				Text: fmt.Sprintf("High early closure rate: %s%% (potential mis-sale or dissatisfaction)", formatNum(earlyClosure)),
			})
		}

		if complaints > t.ComplaintCount {
			messages = append(messages, rules.Message{
				Text: fmt.Sprintf("High complaint count: %s complaints (customer satisfaction issue)", formatNum(complaints)),
			})
		}

		// Critical only when the vulnerable proportion compounds another issue.
		critical := vulnerable > t.VulnerableProportion && len(messages) > 0
		if critical {
			messages = append(messages, rules.Message{
				Text: fmt.Sprintf("Critical: High vulnerable customer proportion (%s%%) with identified issues", formatNum(vulnerable)),
			})
		}

		if len(messages) == 0 {
			continue
		}

		severity := rules.FindingHigh
		if critical {
			severity = rules.FindingCritical
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
