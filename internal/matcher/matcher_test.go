package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/incentedge/match-engine/internal/model"
)

func solarProject() *model.Project {
	return &model.Project{
		ID:                   "proj-1",
		Name:                 "Hudson Solar",
		Sector:               "clean_energy",
		ProjectType:          "solar",
		Technology:           "solar",
		State:                "NY",
		County:               "Westchester",
		ApplicantType:        model.ApplicantNonprofit,
		TotalDevelopmentCost: 12_000_000,
		Units:                100,
		SquareFootage:        80_000,
		CapacityKW:           800,
		Certifications:       []string{"LEED Gold"},
	}
}

func federalITC() model.IncentiveProgram {
	return model.IncentiveProgram{
		ID:       "prog-itc",
		Name:     "Investment Tax Credit",
		Category: model.CategoryFederal,
		Sectors:  []string{"clean_energy"},
		Amount:   model.AmountFormula{Type: model.AmountPercent, Value: 30},
		IRA:      model.IRAFlags{DirectPayEligible: true},
	}
}

func nyStateProgram() model.IncentiveProgram {
	return model.IncentiveProgram{
		ID:           "prog-ny",
		Name:         "NY-Sun",
		Category:     model.CategoryState,
		State:        "NY",
		Technologies: []string{"solar"},
		Amount:       model.AmountFormula{Type: model.AmountPerKW, Value: 200, Max: 100_000},
	}
}

func TestMatchPerfectScore(t *testing.T) {
	m := New(DefaultConfig())
	result := m.Match(solarProject(), []model.IncentiveProgram{federalITC()}, Options{})

	require.Len(t, result.Matches, 1)
	match := result.Matches[0]
	assert.Equal(t, 1.0, match.CategoryScore)
	assert.Equal(t, 1.0, match.LocationScore)
	assert.Equal(t, 1.0, match.EligibilityScore)
	assert.Equal(t, 1.0, match.MatchScore)
	assert.Equal(t, model.TierHigh, match.Tier)
	// 30% of 12M.
	assert.InDelta(t, 3_600_000, match.EstimatedValue, 1e-9)
}

func TestMatchWeightedScore(t *testing.T) {
	project := solarProject()
	program := federalITC()
	program.Eligibility = []model.EligibilityCriterion{
		{Field: "units", Operator: model.OpGte, Number: 50},
		{Field: "applicant_type", Operator: model.OpEq, Value: "for_profit"},
	}

	m := New(DefaultConfig())
	result := m.Match(project, []model.IncentiveProgram{program}, Options{})

	require.Len(t, result.Matches, 1)
	match := result.Matches[0]
	assert.Equal(t, 0.5, match.EligibilityScore)
	// 0.40*1 + 0.35*1 + 0.25*0.5 = 0.875
	assert.InDelta(t, 0.875, match.MatchScore, 1e-9)
	assert.Equal(t, model.TierHigh, match.Tier)

	require.Len(t, match.EligibilityDetails, 2)
	assert.True(t, match.EligibilityDetails[0].Met)
	assert.False(t, match.EligibilityDetails[1].Met)
	assert.Contains(t, match.EligibilityDetails[1].Description, "Does not meet requirement")
}

func TestMatchHardLocationDisqualifier(t *testing.T) {
	project := solarProject()
	caProgram := nyStateProgram()
	caProgram.ID = "prog-ca"
	caProgram.Name = "CA-Sun"
	caProgram.State = "CA"

	m := New(DefaultConfig())
	result := m.Match(project, []model.IncentiveProgram{caProgram, federalITC()}, Options{})

	// The out-of-state program is excluded entirely, not tiered down.
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "prog-itc", result.Matches[0].Incentive.ID)
}

func TestMatchCountyScopeRequiresContainment(t *testing.T) {
	project := solarProject()
	local := nyStateProgram()
	local.ID = "prog-westchester"
	local.Category = model.CategoryLocal
	local.County = "Westchester"

	other := local
	other.ID = "prog-nassau"
	other.County = "Nassau"

	m := New(DefaultConfig())
	result := m.Match(project, []model.IncentiveProgram{local, other}, Options{})

	require.Len(t, result.Matches, 1)
	assert.Equal(t, "prog-westchester", result.Matches[0].Incentive.ID)
}

func TestMatchTierBoundaries(t *testing.T) {
	// TierForScore is the single tiering path; exercise the exact
	// threshold edges through it.
	assert.Equal(t, model.TierHigh, model.TierForScore(0.80, false))
	assert.Equal(t, model.TierMedium, model.TierForScore(0.7999, false))
	assert.Equal(t, model.TierMedium, model.TierForScore(0.60, false))
	assert.Equal(t, model.TierPotential, model.TierForScore(0.5999, false))
	assert.Equal(t, model.TierLow, model.TierForScore(0.5999, true))
}

func TestMatchTieBreakValueThenName(t *testing.T) {
	project := solarProject()

	a := federalITC()
	a.ID = "prog-a"
	a.Name = "Beta Credit"
	a.Amount = model.AmountFormula{Type: model.AmountFixed, Value: 50_000}

	b := federalITC()
	b.ID = "prog-b"
	b.Name = "Alpha Credit"
	b.Amount = model.AmountFormula{Type: model.AmountFixed, Value: 50_000}

	c := federalITC()
	c.ID = "prog-c"
	c.Name = "Gamma Credit"
	c.Amount = model.AmountFormula{Type: model.AmountFixed, Value: 75_000}

	m := New(DefaultConfig())
	result := m.Match(project, []model.IncentiveProgram{a, b, c}, Options{})

	require.Len(t, result.Matches, 3)
	// Equal scores: higher value first, then name ascending.
	assert.Equal(t, "prog-c", result.Matches[0].Incentive.ID)
	assert.Equal(t, "prog-b", result.Matches[1].Incentive.ID)
	assert.Equal(t, "prog-a", result.Matches[2].Incentive.ID)
}

func TestMatchEmptyProgramList(t *testing.T) {
	m := New(DefaultConfig())
	result := m.Match(solarProject(), nil, Options{})

	assert.Empty(t, result.Matches)
	assert.Empty(t, result.TopMatches)
	assert.Zero(t, result.Summary.TotalMatches)
	assert.Zero(t, result.Summary.AverageScore)
}

func TestMatchDeterministic(t *testing.T) {
	project := solarProject()
	programs := []model.IncentiveProgram{federalITC(), nyStateProgram()}

	m := New(DefaultConfig())
	first := m.Match(project, programs, Options{})
	second := m.Match(project, programs, Options{})
	assert.Equal(t, first, second)
}

func TestMatchPartitionsAndSummary(t *testing.T) {
	project := solarProject()
	programs := []model.IncentiveProgram{federalITC(), nyStateProgram()}

	m := New(DefaultConfig())
	result := m.Match(project, programs, Options{})

	require.Len(t, result.Matches, 2)
	assert.Len(t, result.Federal, 1)
	assert.Len(t, result.State, 1)
	assert.Empty(t, result.Local)
	assert.Len(t, result.GreenIncentives, 2)
	assert.Len(t, result.IRAEligible, 1)

	assert.Equal(t, 2, result.Summary.TotalMatches)
	assert.Equal(t, 2, result.Summary.ByTier[model.TierHigh])
	assert.Equal(t, 1, result.Summary.ByCategory[model.CategoryFederal])
	// 3.6M ITC + clamped 100k NY-Sun.
	assert.InDelta(t, 3_700_000, result.Summary.TotalPotentialValue, 1e-9)
}

func TestMatchPrioritizeGreen(t *testing.T) {
	project := solarProject()
	plain := nyStateProgram() // green by technology, no IRA flags
	ira := federalITC()       // IRA-flagged
	// Keep the IRA program lower in score order so the reordering is
	// observable.
	ira.Amount = model.AmountFormula{Type: model.AmountFixed, Value: 1_000}

	m := New(DefaultConfig())
	result := m.Match(project, []model.IncentiveProgram{plain, ira}, Options{PrioritizeGreen: true})

	require.Len(t, result.GreenIncentives, 2)
	assert.Equal(t, "prog-itc", result.GreenIncentives[0].Incentive.ID)
}

func TestMatchTopMatchesLimit(t *testing.T) {
	project := solarProject()
	var programs []model.IncentiveProgram
	for _, id := range []string{"a", "b", "c"} {
		p := federalITC()
		p.ID = "prog-" + id
		p.Name = "Program " + id
		programs = append(programs, p)
	}

	m := New(DefaultConfig())
	result := m.Match(project, programs, Options{MaxResults: 2})
	assert.Len(t, result.TopMatches, 2)
	assert.Len(t, result.Matches, 3)
}

func TestMatchWildcardList(t *testing.T) {
	project := solarProject()
	program := federalITC()
	program.Sectors = []string{"all"}
	program.BuildingTypes = []string{"multifamily"} // does not cover solar

	m := New(DefaultConfig())
	result := m.Match(project, []model.IncentiveProgram{program}, Options{})

	require.Len(t, result.Matches, 1)
	assert.InDelta(t, 0.5, result.Matches[0].CategoryScore, 1e-9)
}

func TestMatchReasonsIncludeDirectPay(t *testing.T) {
	project := solarProject()
	m := New(DefaultConfig())
	result := m.Match(project, []model.IncentiveProgram{federalITC()}, Options{})

	require.Len(t, result.Matches, 1)
	assert.Contains(t, result.Matches[0].MatchReasons, "Direct pay available for tax-exempt applicants")
	assert.Contains(t, result.Matches[0].MatchReasons, "Federal program available nationwide")
}

func TestEstimateValue(t *testing.T) {
	project := solarProject()

	cases := []struct {
		name    string
		formula model.AmountFormula
		want    float64
	}{
		{"fixed", model.AmountFormula{Type: model.AmountFixed, Value: 25_000}, 25_000},
		{"percent of TDC", model.AmountFormula{Type: model.AmountPercent, Value: 30}, 3_600_000},
		{"per unit", model.AmountFormula{Type: model.AmountPerUnit, Value: 1_500}, 150_000},
		{"per kw", model.AmountFormula{Type: model.AmountPerKW, Value: 200}, 160_000},
		{"per sqft", model.AmountFormula{Type: model.AmountPerSqFt, Value: 2.5}, 200_000},
		{"max clamp", model.AmountFormula{Type: model.AmountPercent, Value: 30, Max: 1_000_000}, 1_000_000},
		{"min clamp", model.AmountFormula{Type: model.AmountFixed, Value: 500, Min: 10_000}, 10_000},
		{"unknown type", model.AmountFormula{Type: "lottery", Value: 9_999}, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			program := model.IncentiveProgram{Amount: tc.formula}
			assert.InDelta(t, tc.want, EstimateValue(project, &program), 1e-9)
		})
	}
}

func TestEvalCriterionOperators(t *testing.T) {
	project := solarProject()

	cases := []struct {
		name string
		crit model.EligibilityCriterion
		want bool
	}{
		{"eq match", model.EligibilityCriterion{Field: "sector", Operator: model.OpEq, Value: "clean_energy"}, true},
		{"eq case insensitive", model.EligibilityCriterion{Field: "state", Operator: model.OpEq, Value: "ny"}, true},
		{"in match", model.EligibilityCriterion{Field: "applicant_type", Operator: model.OpIn, Values: []string{"nonprofit", "municipal"}}, true},
		{"in miss", model.EligibilityCriterion{Field: "applicant_type", Operator: model.OpIn, Values: []string{"for_profit"}}, false},
		{"gte boundary", model.EligibilityCriterion{Field: "capacity_kw", Operator: model.OpGte, Number: 800}, true},
		{"lte miss", model.EligibilityCriterion{Field: "total_development_cost", Operator: model.OpLte, Number: 10_000_000}, false},
		{"has_cert", model.EligibilityCriterion{Field: "certifications", Operator: model.OpHasCert, Value: "LEED Gold"}, true},
		{"tdc_range", model.EligibilityCriterion{Field: "tdc_range", Operator: model.OpEq, Value: "10m_50m"}, true},
		{"unknown field", model.EligibilityCriterion{Field: "zoning", Operator: model.OpEq, Value: "R1"}, false},
		{"unknown operator", model.EligibilityCriterion{Field: "sector", Operator: "regex", Value: ".*"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, evalCriterion(project, tc.crit))
		})
	}
}

func TestFormatCurrency(t *testing.T) {
	assert.Equal(t, "$3,600,000", FormatCurrency(3_600_000))
	assert.Equal(t, "$500", FormatCurrency(500))
}
