// Package model defines the domain types shared by the matcher, the
// probability scorer and the store.
package model

// ApplicantType classifies the entity applying for an incentive.
type ApplicantType string

const (
	ApplicantNonprofit  ApplicantType = "nonprofit"
	ApplicantForProfit  ApplicantType = "for_profit"
	ApplicantMunicipal  ApplicantType = "municipal"
	ApplicantTribal     ApplicantType = "tribal"
	ApplicantIndividual ApplicantType = "individual"
)

// TDCRange buckets total development cost for historical comparison.
type TDCRange string

const (
	TDCUnder1M   TDCRange = "under_1m"
	TDC1MTo10M   TDCRange = "1m_10m"
	TDC10MTo50M  TDCRange = "10m_50m"
	TDC50MTo100M TDCRange = "50m_100m"
	TDCOver100M  TDCRange = "over_100m"
)

// BucketTDC maps a total development cost in dollars to its TDCRange.
func BucketTDC(tdc float64) TDCRange {
	switch {
	case tdc < 1_000_000:
		return TDCUnder1M
	case tdc < 10_000_000:
		return TDC1MTo10M
	case tdc < 50_000_000:
		return TDC10MTo50M
	case tdc < 100_000_000:
		return TDC50MTo100M
	default:
		return TDCOver100M
	}
}

// Project is a development project as hydrated by the surrounding CRUD
// system. The engine consumes it read-only.
type Project struct {
	ID            string        `json:"id" yaml:"id"`
	Name          string        `json:"name" yaml:"name"`
	Sector        string        `json:"sector" yaml:"sector"`             // e.g. "clean_energy", "affordable_housing"
	ProjectType   string        `json:"project_type" yaml:"project_type"` // e.g. "multifamily", "solar"
	Technology    string        `json:"technology,omitempty" yaml:"technology,omitempty"`
	State         string        `json:"state" yaml:"state"` // 2-letter
	County        string        `json:"county,omitempty" yaml:"county,omitempty"`
	Municipality  string        `json:"municipality,omitempty" yaml:"municipality,omitempty"`
	ApplicantType ApplicantType `json:"applicant_type" yaml:"applicant_type"`

	TotalDevelopmentCost float64  `json:"total_development_cost" yaml:"total_development_cost"`
	TDCRange             TDCRange `json:"tdc_range,omitempty" yaml:"tdc_range,omitempty"`

	// Scale metrics used by amount formulas.
	Units         int     `json:"units,omitempty" yaml:"units,omitempty"`
	SquareFootage float64 `json:"square_footage,omitempty" yaml:"square_footage,omitempty"`
	CapacityKW    float64 `json:"capacity_kw,omitempty" yaml:"capacity_kw,omitempty"`

	Certifications []string `json:"certifications,omitempty" yaml:"certifications,omitempty"` // e.g. "LEED Gold", "Passive House"
}

// EffectiveTDCRange returns the explicit bucket when set, otherwise the
// bucket derived from TotalDevelopmentCost.
func (p *Project) EffectiveTDCRange() TDCRange {
	if p.TDCRange != "" {
		return p.TDCRange
	}
	return BucketTDC(p.TotalDevelopmentCost)
}

// HasCertification reports whether the project carries the named
// sustainability certification (case-sensitive match on the stored name).
func (p *Project) HasCertification(name string) bool {
	for _, c := range p.Certifications {
		if c == name {
			return true
		}
	}
	return false
}
