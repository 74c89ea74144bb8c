package model

// Tier buckets a program's match score for display.
type Tier string

const (
	TierHigh      Tier = "high"
	TierMedium    Tier = "medium"
	TierLow       Tier = "low"
	TierPotential Tier = "potential"
)

// Tier score thresholds (inclusive lower bounds). Single source of truth
// for tiering; TierForScore is the only place they are compared.
const (
	TierHighThreshold   = 0.80
	TierMediumThreshold = 0.60
)

// TierForScore maps a match score to its display tier. Scores below the
// medium threshold are "low" when partial matches are included, otherwise
// "potential" (kept as a stretch option rather than filtered).
func TierForScore(score float64, includePartial bool) Tier {
	switch {
	case score >= TierHighThreshold:
		return TierHigh
	case score >= TierMediumThreshold:
		return TierMedium
	case includePartial:
		return TierLow
	default:
		return TierPotential
	}
}

// EligibilityDetail records one criterion evaluation for display.
type EligibilityDetail struct {
	Criterion   string `json:"criterion"`
	Met         bool   `json:"met"`
	Description string `json:"description"`
}

// MatchedIncentive is one program scored against a project. Computed fresh
// on every matcher invocation; never persisted.
type MatchedIncentive struct {
	Incentive          IncentiveProgram    `json:"incentive"`
	MatchScore         float64             `json:"match_score"`
	CategoryScore      float64             `json:"category_score"`
	LocationScore      float64             `json:"location_score"`
	EligibilityScore   float64             `json:"eligibility_score"`
	Tier               Tier                `json:"tier"`
	EstimatedValue     float64             `json:"estimated_value"`
	MatchReasons       []string            `json:"match_reasons"`
	EligibilityDetails []EligibilityDetail `json:"eligibility_details,omitempty"`
}

// MatchSummary aggregates a matching result for dashboard display.
type MatchSummary struct {
	TotalMatches        int              `json:"total_matches"`
	ByTier              map[Tier]int     `json:"by_tier"`
	ByCategory          map[Category]int `json:"by_category"`
	AverageScore        float64          `json:"average_score"`
	TotalPotentialValue float64          `json:"total_potential_value"`
}

// MatchingResult is the full output of one matcher invocation: all matches
// sorted by score descending, plus category and thematic subsets.
type MatchingResult struct {
	Matches         []MatchedIncentive `json:"matches"`
	Federal         []MatchedIncentive `json:"federal"`
	State           []MatchedIncentive `json:"state"`
	Local           []MatchedIncentive `json:"local"`
	Utility         []MatchedIncentive `json:"utility"`
	GreenIncentives []MatchedIncentive `json:"green_incentives"`
	IRAEligible     []MatchedIncentive `json:"ira_eligible"`
	TopMatches      []MatchedIncentive `json:"top_matches"`
	Summary         MatchSummary       `json:"summary"`
}
