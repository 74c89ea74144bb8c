package probability

import (
	"github.com/incentedge/match-engine/internal/model"
	"github.com/incentedge/match-engine/internal/store"
)

// relaxLevel describes one step of the progressive relaxation against the
// historical aggregate: which join-key dimensions are kept, the
// specificity discount applied to the base rate, and the partial credit
// given to factor dimensions the returned rows do not exactly match.
type relaxLevel struct {
	level      int
	name       string
	multiplier float64 // broader match = weaker predictor
	partial    float64 // factor credit for unmatched dimensions
	filter     func(in model.ProbabilityInput) store.AwardStatFilter
}

// relaxLevels is evaluated strictly in order; the first level returning at
// least one row wins and later levels are never queried.
var relaxLevels = []relaxLevel{
	{
		level:      1,
		name:       "exact",
		multiplier: 1.0,
		partial:    0.6,
		filter: func(in model.ProbabilityInput) store.AwardStatFilter {
			return store.AwardStatFilter{
				ProgramID:     in.ProgramID,
				State:         in.State,
				ProjectType:   in.ProjectType,
				ApplicantType: in.ApplicantType,
			}
		},
	},
	{
		level:      2,
		name:       "any_applicant",
		multiplier: 0.9,
		partial:    0.5,
		filter: func(in model.ProbabilityInput) store.AwardStatFilter {
			return store.AwardStatFilter{
				ProgramID:   in.ProgramID,
				State:       in.State,
				ProjectType: in.ProjectType,
			}
		},
	},
	{
		level:      3,
		name:       "state_only",
		multiplier: 0.75,
		partial:    0.3,
		filter: func(in model.ProbabilityInput) store.AwardStatFilter {
			return store.AwardStatFilter{
				ProgramID: in.ProgramID,
				State:     in.State,
			}
		},
	},
	{
		level:      4,
		name:       "program_wide",
		multiplier: 0.6,
		partial:    0.2,
		filter: func(in model.ProbabilityInput) store.AwardStatFilter {
			return store.AwardStatFilter{ProgramID: in.ProgramID}
		},
	},
}
