// Package pillar defines the four Consumer Duty outcome categories the
// monitoring service reports against, and the column alias maps that make
// rules portable across inconsistently-labelled source datasets.
package pillar

import "strings"

// Pillar is one of the four fixed compliance categories. The set is closed;
// callers switch over it exhaustively.
type Pillar string

const (
	ProductsServices      Pillar = "products-services"
	PriceValue            Pillar = "price-value"
	ConsumerUnderstanding Pillar = "consumer-understanding"
	ConsumerSupport       Pillar = "consumer-support"
)

// All lists every pillar in display order.
func All() []Pillar {
	return []Pillar{ProductsServices, PriceValue, ConsumerUnderstanding, ConsumerSupport}
}

// Valid reports whether p is one of the four known pillars.
func (p Pillar) Valid() bool {
	switch p {
	case ProductsServices, PriceValue, ConsumerUnderstanding, ConsumerSupport:
		return true
	}
	return false
}

// CategoryLabel returns the free-text category label used by prompt
// documents for this pillar.
func (p Pillar) CategoryLabel() string {
	switch p {
	case ProductsServices:
		return "products & services"
	case PriceValue:
		return "price & value"
	case ConsumerUnderstanding:
		return "consumer understanding"
	case ConsumerSupport:
		return "consumer support"
	}
	return ""
}

// Parse converts a pillar identifier string to a Pillar.
func Parse(s string) (Pillar, bool) {
	p := Pillar(s)
	return p, p.Valid()
}

// ParseCategory maps a free-text category label to a pillar by
// case-insensitive substring match. Returns ok=false when no pillar's
// label appears in the category.
func ParseCategory(category string) (Pillar, bool) {
	c := strings.ToLower(category)
	for _, p := range All() {
		if strings.Contains(c, p.CategoryLabel()) {
			return p, true
		}
	}
	return "", false
}

// AliasMap maps a logical field name to the ordered list of literal column
// labels that may carry that field's value. Order is priority: the first
// alias present in a row wins.
type AliasMap map[string][]string

var aliases = map[Pillar]AliasMap{
	ProductsServices: {
		"Product_ID":                    {"Product_ID", "Product Id", "ProductID", "ID"},
		"Product_Name":                  {"Product_Name", "Product Name", "Name"},
		"Target_Market_Profile":         {"Target_Market_Profile", "Target Market Profile", "Target_Profile"},
		"Actual_Customer_Profile":       {"Actual_Customer_Profile", "Actual Customer Profile", "Actual_Profile"},
		"Early_Closure_Rate":            {"Early_Closure_Rate", "Early Closure Rate", "EarlyClosureRate"},
		"Complaint_Count":               {"Complaint_Count", "Complaints", "Complaint Count"},
		"Vulnerable_Customer_proportion": {"Vulnerable_Customer_proportion", "Vulnerable Customer proportion", "Vulnerable%"},
	},
	PriceValue: {
		"Product_ID":           {"Product_ID", "Product Id", "ProductID", "ID"},
		"Product_Name":         {"Product_Name", "Product Name", "Name"},
		"Rate":                 {"Rate", "Interest_Rate", "Interest Rate"},
		"Market_Rate":          {"Market_Rate", "Market Rate", "Market"},
		"Fee":                  {"Fee", "Product_Fee", "Upfront_Fee"},
		"Market_Fee":           {"Market_Fee", "Market Fee"},
		"Legacy_Rate":          {"Legacy_Rate", "Legacy Rate"},
		"New_Rate":             {"New_Rate", "New Rate"},
		"Rate_Change_Lag_Days": {"Rate_Change_Lag_Days", "Rate Change Lag Days", "Lag_Days"},
	},
	ConsumerUnderstanding: {
		"communication_ID":         {"communication_ID", "Communication_ID", "ID"},
		"Product_ID":               {"Product_ID", "Product Id", "ProductID", "PID"},
		"Channel":                  {"Channel"},
		"Readability_Score":        {"Readability_Score", "Readability Score"},
		"Miscommunication_Flag":    {"Miscommunication_Flag", "Miscommunication Flag"},
		"Reviewed_By_Compliance":   {"Reviewed_By_Compliance", "Reviewed By Compliance"},
		"Theme":                    {"Theme", "Complaint_Theme"},
		"Complaint_Count_Per_Theme": {"Complaint_Count_Per_Theme", "Complaint Count Per Theme"},
		"Example_Complaint":        {"Example_Complaint", "Example Complaint"},
	},
	ConsumerSupport: {
		"Support_ID":                {"Support_ID", "Interaction_ID", "Support Interaction ID", "Support_Interaction_ID", "Interaction Id", "SupportID", "Support Ref", "SID", "ID"},
		"Product_ID":                {"Product_ID", "Product Id", "ProductID", "PID", "Product"},
		"Channel":                   {"Channel"},
		"Complaint_ID":              {"Complaint_ID", "Complaint Id", "CID", "Complaint"},
		"CSAT_Score":                {"CSAT_Score", "CSAT Score", "CSAT"},
		"Avg_Wait_Time_Min":         {"Avg_Wait_Time_Min", "Avg Wait Time Min", "Wait_Min", "Wait (min)", "WaitMinutes"},
		"First_Contact_Resolution":  {"First_Contact_Resolution", "First Contact Resolution", "FCR"},
		"SLA_Compliance_Flag":       {"SLA_Compliance_Flag", "SLA Compliance Flag", "SLA"},
		"Complaint_Resolution_Time": {"Complaint_Resolution_Time", "Resolution_Time_Hours", "Resolution Hours", "Resolution (hrs)"},
	},
}

// Aliases returns the alias map for a pillar.
func Aliases(p Pillar) AliasMap {
	return aliases[p]
}

// LookupAliases returns the alias list for a logical field. The pillar's
// own map takes priority; rules routinely reference fields from other
// pillars' datasets, so the remaining maps are consulted as a fallback.
func LookupAliases(p Pillar, logical string) ([]string, bool) {
	if list, ok := aliases[p][logical]; ok {
		return list, true
	}
	for _, other := range All() {
		if other == p {
			continue
		}
		if list, ok := aliases[other][logical]; ok {
			return list, true
		}
	}
	return nil, false
}
