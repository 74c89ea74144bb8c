package model

import (
	"strings"
	"time"
)

// Category identifies which level of government (or a utility) funds a program.
type Category string

const (
	CategoryFederal Category = "federal"
	CategoryState   Category = "state"
	CategoryLocal   Category = "local"
	CategoryUtility Category = "utility"
)

// AmountType identifies how a program's dollar value is computed.
type AmountType string

const (
	AmountFixed   AmountType = "fixed"    // flat dollar amount
	AmountPercent AmountType = "percent"  // percent of total development cost
	AmountPerUnit AmountType = "per_unit" // dollars per housing unit
	AmountPerKW   AmountType = "per_kw"   // dollars per kW of capacity
	AmountPerSqFt AmountType = "per_sqft" // dollars per square foot
)

// AmountFormula describes a program's award computation. Min/Max of zero
// mean unbounded on that side.
type AmountFormula struct {
	Type  AmountType `json:"type" yaml:"type"`
	Value float64    `json:"value" yaml:"value"` // dollars, rate, or percent (0-100)
	Min   float64    `json:"min,omitempty" yaml:"min,omitempty"`
	Max   float64    `json:"max,omitempty" yaml:"max,omitempty"`
}

// Operator is the comparison applied by an eligibility criterion.
type Operator string

const (
	OpEq      Operator = "eq"       // string equality on the field
	OpIn      Operator = "in"       // field value in Values
	OpGte     Operator = "gte"      // numeric field >= Number
	OpLte     Operator = "lte"      // numeric field <= Number
	OpHasCert Operator = "has_cert" // project holds the named certification
)

// EligibilityCriterion is one structured predicate a project must satisfy.
// Field names the project attribute: applicant_type, sector, project_type,
// technology, state, units, square_footage, capacity_kw,
// total_development_cost.
type EligibilityCriterion struct {
	Field       string   `json:"field" yaml:"field"`
	Operator    Operator `json:"operator" yaml:"operator"`
	Value       string   `json:"value,omitempty" yaml:"value,omitempty"`
	Values      []string `json:"values,omitempty" yaml:"values,omitempty"`
	Number      float64  `json:"number,omitempty" yaml:"number,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// IRAFlags carries the Inflation Reduction Act monetization and bonus
// availability flags for a program.
type IRAFlags struct {
	DirectPayEligible    bool `json:"direct_pay_eligible,omitempty" yaml:"direct_pay_eligible,omitempty"`
	Transferable         bool `json:"transferable,omitempty" yaml:"transferable,omitempty"`
	DomesticContentBonus bool `json:"domestic_content_bonus,omitempty" yaml:"domestic_content_bonus,omitempty"`
	EnergyCommunityBonus bool `json:"energy_community_bonus,omitempty" yaml:"energy_community_bonus,omitempty"`
	PrevailingWageBonus  bool `json:"prevailing_wage_bonus,omitempty" yaml:"prevailing_wage_bonus,omitempty"`
	LowIncomeBonus       bool `json:"low_income_bonus,omitempty" yaml:"low_income_bonus,omitempty"`
}

// Any reports whether at least one IRA flag is set.
func (f IRAFlags) Any() bool {
	return f.DirectPayEligible || f.Transferable || f.DomesticContentBonus ||
		f.EnergyCommunityBonus || f.PrevailingWageBonus || f.LowIncomeBonus
}

// IncentiveProgram is a government or utility incentive program as stored
// by the program catalog. The engine consumes it read-only.
type IncentiveProgram struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Provider string   `json:"provider,omitempty" yaml:"provider,omitempty"`
	Category Category `json:"category" yaml:"category"`

	// Jurisdiction scope. Empty state means federal/nationwide.
	State        string `json:"state,omitempty" yaml:"state,omitempty"`
	County       string `json:"county,omitempty" yaml:"county,omitempty"`
	Municipality string `json:"municipality,omitempty" yaml:"municipality,omitempty"`

	// Applicability lists. The wildcard "all" matches everything; an empty
	// list is treated as not constraining.
	Sectors       []string `json:"sectors,omitempty" yaml:"sectors,omitempty"`
	Technologies  []string `json:"technologies,omitempty" yaml:"technologies,omitempty"`
	BuildingTypes []string `json:"building_types,omitempty" yaml:"building_types,omitempty"`

	Amount      AmountFormula          `json:"amount" yaml:"amount"`
	IRA         IRAFlags               `json:"ira,omitempty" yaml:"ira,omitempty"`
	Eligibility []EligibilityCriterion `json:"eligibility,omitempty" yaml:"eligibility,omitempty"`

	Deadline *time.Time `json:"deadline,omitempty" yaml:"deadline,omitempty"`
}

// IsFederal reports whether the program has nationwide scope.
func (p *IncentiveProgram) IsFederal() bool {
	return p.State == ""
}

// greenSectors are the sector/technology names treated as clean-energy
// for the green subset of a matching result.
var greenSectors = map[string]bool{
	"clean_energy":      true,
	"renewable_energy":  true,
	"solar":             true,
	"wind":              true,
	"geothermal":        true,
	"storage":           true,
	"ev_charging":       true,
	"energy_efficiency": true,
}

// IsGreen reports whether the program targets clean-energy work, either by
// sector/technology or by carrying any IRA flag.
func (p *IncentiveProgram) IsGreen() bool {
	if p.IRA.Any() {
		return true
	}
	for _, s := range p.Sectors {
		if greenSectors[strings.ToLower(s)] {
			return true
		}
	}
	for _, t := range p.Technologies {
		if greenSectors[strings.ToLower(t)] {
			return true
		}
	}
	return false
}
