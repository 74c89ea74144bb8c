package matcher

import (
	"fmt"
	"strings"

	"github.com/incentedge/match-engine/internal/model"
)

// Wildcard is the applicability-list entry that matches every project
// attribute.
const Wildcard = "all"

// listMatches reports whether an applicability list accepts the given
// value. An empty list is not constraining.
func listMatches(list []string, value string) bool {
	if len(list) == 0 {
		return true
	}
	for _, entry := range list {
		if strings.EqualFold(entry, Wildcard) || strings.EqualFold(entry, value) {
			return true
		}
	}
	return false
}

// categoryScore measures how well the program's sector/technology/building
// type lists cover the project. Each non-empty list scores 0 or 1, and the
// result is the mean over the lists that constrain anything. A program with
// no applicability lists scores 1.0.
func categoryScore(project *model.Project, program *model.IncentiveProgram) float64 {
	type pair struct {
		list  []string
		value string
	}
	checks := []pair{
		{program.Sectors, project.Sector},
		{program.BuildingTypes, project.ProjectType},
		{program.Technologies, project.Technology},
	}

	var considered, matched int
	for _, c := range checks {
		if len(c.list) == 0 {
			continue
		}
		considered++
		if listMatches(c.list, c.value) {
			matched++
		}
	}
	if considered == 0 {
		return 1.0
	}
	return float64(matched) / float64(considered)
}

// locationScore is jurisdiction containment: federal programs always match;
// state/county/municipality programs match only when the project's location
// chain contains the program's scope. The score is binary, a partial
// geographic match is no match.
func locationScore(project *model.Project, program *model.IncentiveProgram) float64 {
	if program.IsFederal() {
		return 1.0
	}
	if !strings.EqualFold(program.State, project.State) {
		return 0
	}
	if program.County != "" && !strings.EqualFold(program.County, project.County) {
		return 0
	}
	if program.Municipality != "" && !strings.EqualFold(program.Municipality, project.Municipality) {
		return 0
	}
	return 1.0
}

// eligibilityScore evaluates each structured criterion independently and
// returns the fraction satisfied, along with per-criterion detail rows.
// A program with no criteria scores 1.0.
func eligibilityScore(project *model.Project, program *model.IncentiveProgram) (float64, []model.EligibilityDetail) {
	if len(program.Eligibility) == 0 {
		return 1.0, nil
	}

	details := make([]model.EligibilityDetail, 0, len(program.Eligibility))
	var met int
	for _, crit := range program.Eligibility {
		ok := evalCriterion(project, crit)
		if ok {
			met++
		}
		details = append(details, model.EligibilityDetail{
			Criterion:   criterionLabel(crit),
			Met:         ok,
			Description: criterionDescription(crit, ok),
		})
	}
	return float64(met) / float64(len(program.Eligibility)), details
}

// evalCriterion applies one structured predicate to the project.
// Unknown fields or operators evaluate to false rather than erroring:
// a criterion the engine cannot interpret is treated as unmet.
func evalCriterion(project *model.Project, crit model.EligibilityCriterion) bool {
	switch crit.Operator {
	case model.OpEq:
		v, ok := stringField(project, crit.Field)
		return ok && strings.EqualFold(v, crit.Value)
	case model.OpIn:
		v, ok := stringField(project, crit.Field)
		if !ok {
			return false
		}
		for _, want := range crit.Values {
			if strings.EqualFold(v, want) {
				return true
			}
		}
		return false
	case model.OpGte:
		n, ok := numericField(project, crit.Field)
		return ok && n >= crit.Number
	case model.OpLte:
		n, ok := numericField(project, crit.Field)
		return ok && n <= crit.Number
	case model.OpHasCert:
		for _, c := range project.Certifications {
			if strings.EqualFold(c, crit.Value) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// stringField resolves a categorical project attribute by criterion field name.
func stringField(p *model.Project, field string) (string, bool) {
	switch field {
	case "applicant_type":
		return string(p.ApplicantType), true
	case "sector":
		return p.Sector, true
	case "project_type":
		return p.ProjectType, true
	case "technology":
		return p.Technology, true
	case "state":
		return p.State, true
	case "tdc_range":
		return string(p.EffectiveTDCRange()), true
	default:
		return "", false
	}
}

// numericField resolves a numeric project attribute by criterion field name.
func numericField(p *model.Project, field string) (float64, bool) {
	switch field {
	case "units":
		return float64(p.Units), true
	case "square_footage":
		return p.SquareFootage, true
	case "capacity_kw":
		return p.CapacityKW, true
	case "total_development_cost":
		return p.TotalDevelopmentCost, true
	default:
		return 0, false
	}
}

// criterionLabel returns a short identifier for an eligibility detail row.
func criterionLabel(crit model.EligibilityCriterion) string {
	switch crit.Operator {
	case model.OpGte:
		return fmt.Sprintf("%s >= %g", crit.Field, crit.Number)
	case model.OpLte:
		return fmt.Sprintf("%s <= %g", crit.Field, crit.Number)
	case model.OpIn:
		return fmt.Sprintf("%s in [%s]", crit.Field, strings.Join(crit.Values, ", "))
	case model.OpHasCert:
		return fmt.Sprintf("certification %s", crit.Value)
	default:
		return fmt.Sprintf("%s = %s", crit.Field, crit.Value)
	}
}

// criterionDescription renders the met/not-met explanation shown to users.
func criterionDescription(crit model.EligibilityCriterion, met bool) string {
	desc := crit.Description
	if desc == "" {
		desc = criterionLabel(crit)
	}
	if met {
		return "Meets requirement: " + desc
	}
	return "Does not meet requirement: " + desc
}
