package analyzer

import (
	"fmt"
	"math"

	"github.com/dutylens/dutylens/internal/engine"
	"github.com/dutylens/dutylens/internal/pillar"
	"github.com/dutylens/dutylens/internal/rules"
	"github.com/dutylens/dutylens/internal/thresholds"
)

// AnalyzePriceValue checks each product for rate and fee positioning against
// the market, a loyalty penalty between legacy and new customers, and slow
// repricing after base rate changes.
func AnalyzePriceValue(rows []rules.Row, t thresholds.PriceValue) []rules.Finding {
	p := pillar.PriceValue
	findings := []rules.Finding{}

	for idx, row := range rows {
		num := func(field string) float64 {
			v, _ := engine.Resolve(row, p, field)
			return engine.ToNumber(v)
		}

		rate := num("Rate")
		market := num("Market_Rate")
		fee := num("Fee")
		marketFee := num("Market_Fee")
		legacy := num("Legacy_Rate")
		newer := num("New_Rate")
		lagDays := num("Rate_Change_Lag_Days")

		var messages []rules.Message
		var hasHigh bool

		// Rounded to 2dp before comparison so a 0.001% sliver doesn't flag.
		delta := math.Round((rate-market)*100) / 100
		if market > 0 && delta > t.OverpricedDeltaPct {
			hasHigh = true
			messages = append(messages, rules.Message{
				Text:  fmt.Sprintf("Interest rate %s%% exceeds market average %s%% by %.2f%%", formatNum(rate), formatNum(market), delta),
				Extra: fmt.Sprintf("Rate: %s%% vs Market: %s%%", formatNum(rate), formatNum(market)),
			})
		}

		if marketFee >= 0 && fee-marketFee > t.FeeExcessAbs {
			messages = append(messages, rules.Message{
				Text:  fmt.Sprintf("Fee £%s exceeds market average £%s", formatNum(fee), formatNum(marketFee)),
				Extra: fmt.Sprintf("Fee: £%s vs Market: £%s", formatNum(fee), formatNum(marketFee)),
			})
		}

		if legacy > 0 && newer > 0 && legacy-newer > t.LoyaltyPenaltyDeltaPct {
			hasHigh = true
			messages = append(messages, rules.Message{
				Text:  fmt.Sprintf("Existing customers pay higher rate (%s%%) than new customers (%s%%)", formatNum(legacy), formatNum(newer)),
				Extra: fmt.Sprintf("Legacy: %s%% vs New: %s%%", formatNum(legacy), formatNum(newer)),
			})
		}

		if lagDays > t.ResponseLagDays {
			messages = append(messages, rules.Message{
				Text:  fmt.Sprintf("Rate change delayed %s days after BoE base rate change", formatNum(lagDays)),
				Extra: fmt.Sprintf("Lag: %s days", formatNum(lagDays)),
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
