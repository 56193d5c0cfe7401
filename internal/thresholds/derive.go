package thresholds

import (
	"regexp"
	"strconv"
	"strings"
)

// Phrase patterns scraped out of prompt text. These mirror the wording
// business users actually write ("flag products whose early closure rate
// exceeds 12%"); anything that doesn't match silently keeps the default.
var (
	reEarlyClosure = regexp.MustCompile(`(?i)early[ _-]?closure[ _-]?rate[^\d]*(\d+(?:\.\d+)?)%`)
	reComplaints   = regexp.MustCompile(`(?i)complaint[ _-]?count[^\d]*(\d+)`)
	reVulnerable   = regexp.MustCompile(`(?i)vulnerable[ _-]?customer[ _-]?proportion[^\d]*(\d+(?:\.\d+)?)%`)

	reOverpriced = regexp.MustCompile(`(?i)exceed[s]?\s+market\s+rates?\s+by\s+more\s+than\s+(\d+(?:\.\d+)?)%`)
	reFee        = regexp.MustCompile(`(?i)fee[s]?[^\d]*(£?\$?\d+(?:\.\d+)?)`)
	reLoyalty    = regexp.MustCompile(`(?i)legacy[^\d]*(\d+(?:\.\d+)?)%|loyalty[^\d]*(\d+(?:\.\d+)?)%`)
	reLag        = regexp.MustCompile(`(?i)(lag|delayed|delay|response)[^\d]*(\d+)\s*day`)

	reReadability      = regexp.MustCompile(`(?i)readability[^\d]*(\d+(?:\.\d+)?)`)
	reMiscommReview    = regexp.MustCompile(`(?i)miscommunication[\s\S]*?reviewed?\s+by\s+compliance`)
	reComplianceReview = regexp.MustCompile(`(?i)compliance\s+review`)

	reWait       = regexp.MustCompile(`(?i)wait[^\d]*(\d+)\s*min`)
	reCSAT       = regexp.MustCompile(`(?i)csat[^\d]*(\d+(?:\.\d+)?)`)
	reResolution = regexp.MustCompile(`(?i)resolution[^\d]*(\d+)\s*hour`)
	reSLA        = regexp.MustCompile(`(?i)sla[^\d]*(\d+)\s*hour`)
)

// parseNum parses a matched threshold figure, tolerating currency symbols.
// Returns ok=false when the capture is absent or non-numeric.
func parseNum(s string) (float64, bool) {
	s = strings.TrimSpace(strings.NewReplacer("%", "", "£", "", "$", "", ",", "").Replace(s))
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func firstGroup(re *regexp.Regexp, text string) (float64, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	// Alternation patterns carry the figure in whichever group matched.
	for _, g := range m[1:] {
		if g != "" {
			return parseNum(g)
		}
	}
	return 0, false
}

// DeriveProductsServices resolves products-services thresholds with the
// precedence structured override > prompt text > default.
func DeriveProductsServices(o *ProductsServicesOverride, promptText string) ProductsServices {
	t := DefaultProductsServices()
	if o.any() {
		t.Source = SourceStructured
		if o.EarlyClosureRate != nil {
			t.EarlyClosureRate = *o.EarlyClosureRate
		}
		if o.ComplaintCount != nil {
			t.ComplaintCount = *o.ComplaintCount
		}
		if o.VulnerableProportion != nil {
			t.VulnerableProportion = *o.VulnerableProportion
		}
		return t
	}
	if promptText == "" {
		return t
	}
	t.Source = SourcePromptLibrary
	if n, ok := firstGroup(reEarlyClosure, promptText); ok {
		t.EarlyClosureRate = n
	}
	if n, ok := firstGroup(reComplaints, promptText); ok {
		t.ComplaintCount = n
	}
	if n, ok := firstGroup(reVulnerable, promptText); ok {
		t.VulnerableProportion = n
	}
	return t
}

// DerivePriceValue resolves price-value thresholds.
func DerivePriceValue(o *PriceValueOverride, promptText string) PriceValue {
	t := DefaultPriceValue()
	if o.any() {
		t.Source = SourceStructured
		if o.OverpricedDeltaPct != nil {
			t.OverpricedDeltaPct = *o.OverpricedDeltaPct
		}
		if o.FeeExcessAbs != nil {
			t.FeeExcessAbs = *o.FeeExcessAbs
		}
		if o.LoyaltyPenaltyDeltaPct != nil {
			t.LoyaltyPenaltyDeltaPct = *o.LoyaltyPenaltyDeltaPct
		}
		if o.ResponseLagDays != nil {
			t.ResponseLagDays = *o.ResponseLagDays
		}
		return t
	}
	if promptText == "" {
		return t
	}
	t.Source = SourcePromptLibrary
	if n, ok := firstGroup(reOverpriced, promptText); ok {
		t.OverpricedDeltaPct = n
	}
	if n, ok := firstGroup(reFee, promptText); ok {
		t.FeeExcessAbs = n
	}
	if n, ok := firstGroup(reLoyalty, promptText); ok {
		t.LoyaltyPenaltyDeltaPct = n
	}
	if m := reLag.FindStringSubmatch(promptText); m != nil {
		if n, ok := parseNum(m[2]); ok {
			t.ResponseLagDays = n
		}
	}
	return t
}

// DeriveConsumerUnderstanding resolves consumer-understanding thresholds.
func DeriveConsumerUnderstanding(o *ConsumerUnderstandingOverride, promptText string) ConsumerUnderstanding {
	t := DefaultConsumerUnderstanding()
	if o.any() {
		t.Source = SourceStructured
		if o.ReadabilityMin != nil {
			t.ReadabilityMin = *o.ReadabilityMin
		}
		if o.RequireComplianceOnMiscomm != nil {
			t.RequireComplianceOnMiscomm = *o.RequireComplianceOnMiscomm
		}
		return t
	}
	if promptText == "" {
		return t
	}
	t.Source = SourcePromptLibrary
	if n, ok := firstGroup(reReadability, promptText); ok {
		t.ReadabilityMin = n
	}
	if reMiscommReview.MatchString(promptText) || reComplianceReview.MatchString(promptText) {
		t.RequireComplianceOnMiscomm = true
	}
	return t
}

// DeriveConsumerSupport resolves consumer-support thresholds.
func DeriveConsumerSupport(o *ConsumerSupportOverride, promptText string) ConsumerSupport {
	t := DefaultConsumerSupport()
	if o.any() {
		t.Source = SourceStructured
		if o.WaitMinutesHigh != nil {
			t.WaitMinutesHigh = *o.WaitMinutesHigh
		}
		if o.CSATPoorMax != nil {
			t.CSATPoorMax = *o.CSATPoorMax
		}
		if o.SLABreachHours != nil {
			t.SLABreachHours = *o.SLABreachHours
		}
		return t
	}
	if promptText == "" {
		return t
	}
	t.Source = SourcePromptLibrary
	if n, ok := firstGroup(reWait, promptText); ok {
		t.WaitMinutesHigh = n
	}
	if n, ok := firstGroup(reCSAT, promptText); ok {
		t.CSATPoorMax = n
	}
	if n, ok := firstGroup(reResolution, promptText); ok {
		t.SLABreachHours = n
	} else if n, ok := firstGroup(reSLA, promptText); ok {
		t.SLABreachHours = n
	}
	return t
}
