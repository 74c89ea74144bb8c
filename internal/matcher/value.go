package matcher

import (
	"math"

	"github.com/incentedge/match-engine/internal/model"
)

// EstimateValue evaluates a program's amount formula against the project's
// scale metrics, clamped to the formula's min/max bounds when present.
// Percentage programs multiply against total development cost; per-sqft
// programs against square footage; per-kW against capacity.
func EstimateValue(project *model.Project, program *model.IncentiveProgram) float64 {
	f := program.Amount

	var value float64
	switch f.Type {
	case model.AmountFixed:
		value = f.Value
	case model.AmountPercent:
		value = f.Value / 100 * project.TotalDevelopmentCost
	case model.AmountPerUnit:
		value = f.Value * float64(project.Units)
	case model.AmountPerKW:
		value = f.Value * project.CapacityKW
	case model.AmountPerSqFt:
		value = f.Value * project.SquareFootage
	default:
		return 0
	}

	if f.Min > 0 {
		value = math.Max(value, f.Min)
	}
	if f.Max > 0 {
		value = math.Min(value, f.Max)
	}
	return math.Max(0, math.Round(value*100)/100)
}
