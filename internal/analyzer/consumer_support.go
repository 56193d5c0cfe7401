package analyzer

import (
	"fmt"

	"github.com/dutylens/dutylens/internal/engine"
	"github.com/dutylens/dutylens/internal/pillar"
	"github.com/dutylens/dutylens/internal/rules"
	"github.com/dutylens/dutylens/internal/thresholds"
)

// AnalyzeConsumerSupport flags support interactions with long waits that
// also failed first contact resolution, poor satisfaction scores, and SLA
// breaches on complaint resolution.
func AnalyzeConsumerSupport(rows []rules.Row, t thresholds.ConsumerSupport) []rules.Finding {
	p := pillar.ConsumerSupport
	findings := []rules.Finding{}

	for idx, row := range rows {
		csatRaw, _ := engine.Resolve(row, p, "CSAT_Score")
		waitRaw, _ := engine.Resolve(row, p, "Avg_Wait_Time_Min")
		fcrRaw, _ := engine.Resolve(row, p, "First_Contact_Resolution")
		slaRaw, present := engine.Resolve(row, p, "SLA_Compliance_Flag")
		resolutionRaw, _ := engine.Resolve(row, p, "Complaint_Resolution_Time")

		csat := engine.ToNumber(csatRaw)
		wait := engine.ToNumber(waitRaw)
		fcr := engine.IsYes(fcrRaw)
		// An absent SLA flag is treated as compliant; only an explicit "No"
		// combined with a slow resolution counts as a breach.
		slaCompliant := !present || engine.IsYes(slaRaw)
		resolutionHours := engine.ToNumber(resolutionRaw)

		var messages []rules.Message

		if wait > t.WaitMinutesHigh && !fcr {
			messages = append(messages, rules.Message{
				Text:  fmt.Sprintf("Long wait time (%s min) combined with failed first contact resolution", formatNum(wait)),
				Extra: fmt.Sprintf("Wait: %smin, First Contact Resolution: No", formatNum(wait)),
			})
		}

		if csat != 0 && csat <= t.CSATPoorMax {
			messages = append(messages, rules.Message{
				Text:  "Customer satisfaction score indicates poor service experience",
				Extra: fmt.Sprintf("CSAT Score: %s/5", formatNum(csat)),
			})
		}

		if resolutionHours > t.SLABreachHours && !slaCompliant {
			messages = append(messages, rules.Message{
				Text:  fmt.Sprintf("SLA breach with complaint resolution taking %s hours", formatNum(resolutionHours)),
				Extra: fmt.Sprintf("Resolution Time: %shrs, SLA Compliant: No", formatNum(resolutionHours)),
			})
		}

		if len(messages) == 0 {
			continue
		}

		findings = append(findings, rules.Finding{
			ID:       engine.DeriveID(p, row, idx),
			Title:    engine.DeriveTitle(p, row),
			Severity: rules.FindingHigh,
			Messages: messages,
		})
	}

	return findings
}
