// Package thresholds holds the per-pillar numeric thresholds the fallback
// analyzers run against, and the best-effort derivation of those thresholds
// from free-text prompt documents. Derivation is isolated here so its
// imprecision can never leak into the deterministic rule engine.
package thresholds

import "fmt"

// Source records where a threshold set came from.
type Source string

const (
	SourceDefault       Source = "default"
	SourcePromptLibrary Source = "prompt-library"
	SourceStructured    Source = "structured"
)

// ProductsServices thresholds.
type ProductsServices struct {
	EarlyClosureRate     float64 `json:"earlyClosureRateThreshold"`
	ComplaintCount       float64 `json:"complaintCountThreshold"`
	VulnerableProportion float64 `json:"vulnerableProportionThreshold"`
	Source               Source  `json:"source"`
}

// PriceValue thresholds.
type PriceValue struct {
	OverpricedDeltaPct     float64 `json:"overpricedDeltaPct"`
	FeeExcessAbs           float64 `json:"feeExcessAbs"`
	LoyaltyPenaltyDeltaPct float64 `json:"loyaltyPenaltyDeltaPct"`
	ResponseLagDays        float64 `json:"responseLagDays"`
	Source                 Source  `json:"source"`
}

// ConsumerUnderstanding thresholds.
type ConsumerUnderstanding struct {
	ReadabilityMin             float64 `json:"readabilityMin"`
	RequireComplianceOnMiscomm bool    `json:"requireComplianceOnMiscomm"`
	Source                     Source  `json:"source"`
}

// ConsumerSupport thresholds.
type ConsumerSupport struct {
	WaitMinutesHigh float64 `json:"waitMinutesHigh"`
	CSATPoorMax     float64 `json:"csatPoorMax"`
	SLABreachHours  float64 `json:"slaBreachHours"`
	Source          Source  `json:"source"`
}

// Factory defaults, used when neither structured overrides nor prompt text
// yield a value.
func DefaultProductsServices() ProductsServices {
	return ProductsServices{EarlyClosureRate: 10, ComplaintCount: 5, VulnerableProportion: 10, Source: SourceDefault}
}

func DefaultPriceValue() PriceValue {
	return PriceValue{OverpricedDeltaPct: 0.3, FeeExcessAbs: 50, LoyaltyPenaltyDeltaPct: 0.1, ResponseLagDays: 90, Source: SourceDefault}
}

func DefaultConsumerUnderstanding() ConsumerUnderstanding {
	return ConsumerUnderstanding{ReadabilityMin: 55, RequireComplianceOnMiscomm: true, Source: SourceDefault}
}

func DefaultConsumerSupport() ConsumerSupport {
	return ConsumerSupport{WaitMinutesHigh: 8, CSATPoorMax: 2, SLABreachHours: 72, Source: SourceDefault}
}

// Overrides is the partial, explicitly-edited threshold set persisted per
// pillar. Nil fields mean "not overridden". An override set with at least
// one field present takes precedence over prompt-text derivation.
type Overrides struct {
	ProductsServices      *ProductsServicesOverride      `json:"ps,omitempty"`
	PriceValue            *PriceValueOverride            `json:"pv,omitempty"`
	ConsumerUnderstanding *ConsumerUnderstandingOverride `json:"cu,omitempty"`
	ConsumerSupport       *ConsumerSupportOverride       `json:"cs,omitempty"`
}

// Any reports whether any pillar carries at least one overridden field.
func (o *Overrides) Any() bool {
	return o != nil && (o.ProductsServices.any() || o.PriceValue.any() ||
		o.ConsumerUnderstanding.any() || o.ConsumerSupport.any())
}

type ProductsServicesOverride struct {
	EarlyClosureRate     *float64 `json:"earlyClosureRateThreshold,omitempty"`
	ComplaintCount       *float64 `json:"complaintCountThreshold,omitempty"`
	VulnerableProportion *float64 `json:"vulnerableProportionThreshold,omitempty"`
}

func (o *ProductsServicesOverride) any() bool {
	return o != nil && (o.EarlyClosureRate != nil || o.ComplaintCount != nil || o.VulnerableProportion != nil)
}

type PriceValueOverride struct {
	OverpricedDeltaPct     *float64 `json:"overpricedDeltaPct,omitempty"`
	FeeExcessAbs           *float64 `json:"feeExcessAbs,omitempty"`
	LoyaltyPenaltyDeltaPct *float64 `json:"loyaltyPenaltyDeltaPct,omitempty"`
	ResponseLagDays        *float64 `json:"responseLagDays,omitempty"`
}

func (o *PriceValueOverride) any() bool {
	return o != nil && (o.OverpricedDeltaPct != nil || o.FeeExcessAbs != nil || o.LoyaltyPenaltyDeltaPct != nil || o.ResponseLagDays != nil)
}

type ConsumerUnderstandingOverride struct {
	ReadabilityMin             *float64 `json:"readabilityMin,omitempty"`
	RequireComplianceOnMiscomm *bool    `json:"requireComplianceOnMiscomm,omitempty"`
}

func (o *ConsumerUnderstandingOverride) any() bool {
	return o != nil && (o.ReadabilityMin != nil || o.RequireComplianceOnMiscomm != nil)
}

type ConsumerSupportOverride struct {
	WaitMinutesHigh *float64 `json:"waitMinutesHigh,omitempty"`
	CSATPoorMax     *float64 `json:"csatPoorMax,omitempty"`
	SLABreachHours  *float64 `json:"slaBreachHours,omitempty"`
}

func (o *ConsumerSupportOverride) any() bool {
	return o != nil && (o.WaitMinutesHigh != nil || o.CSATPoorMax != nil || o.SLABreachHours != nil)
}

// Summary strings shown next to findings so reviewers can see which
// thresholds produced them.

func (t ProductsServices) Summary() string {
	return fmt.Sprintf("Early closure > %v%% · Complaints > %v · Vulnerable > %v%% (%s)",
		t.EarlyClosureRate, t.ComplaintCount, t.VulnerableProportion, t.Source)
}

func (t PriceValue) Summary() string {
	return fmt.Sprintf("Overpriced Δ > %v%% · Excess fee > £%v · Loyalty Δ > %v%% · Lag > %vd (%s)",
		t.OverpricedDeltaPct, t.FeeExcessAbs, t.LoyaltyPenaltyDeltaPct, t.ResponseLagDays, t.Source)
}

func (t ConsumerUnderstanding) Summary() string {
	review := "No"
	if t.RequireComplianceOnMiscomm {
		review = "Yes"
	}
	return fmt.Sprintf("Readability < %v · Compliance review on miscommunication: %s (%s)",
		t.ReadabilityMin, review, t.Source)
}

func (t ConsumerSupport) Summary() string {
	return fmt.Sprintf("Wait > %vm · CSAT ≤ %v · SLA breach > %vh (%s)",
		t.WaitMinutesHigh, t.CSATPoorMax, t.SLABreachHours, t.Source)
}
