// Package matcher scores incentive programs against a project using a
// deterministic weighted-feature model. It has no I/O: given the same
// project and program list it always produces the same MatchingResult.
package matcher

import (
	"math"
	"sort"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/incentedge/match-engine/internal/config"
	"github.com/incentedge/match-engine/internal/model"
)

// Options controls a single matcher invocation.
type Options struct {
	// IncludePartialMatches keeps sub-threshold programs as tier "low".
	// When false they are shown as tier "potential" stretch options instead.
	IncludePartialMatches bool
	// PrioritizeGreen moves IRA-flagged programs to the front of the
	// green subset. It never changes match scores.
	PrioritizeGreen bool
	// MaxResults bounds the TopMatches subset. Zero means the configured
	// default.
	MaxResults int
}

// Matcher computes match scores for incentive programs.
type Matcher struct {
	cfg config.MatcherConfig
}

// New creates a Matcher from the given config. Weights are expected to be
// validated at config load.
func New(cfg config.MatcherConfig) *Matcher {
	return &Matcher{cfg: cfg}
}

// DefaultConfig returns the production weighting: category dominates
// because a category mismatch is a hard disqualifier in practice, then
// geography, then fine-grained eligibility.
func DefaultConfig() config.MatcherConfig {
	return config.MatcherConfig{
		CategoryWeight:    0.40,
		LocationWeight:    0.35,
		EligibilityWeight: 0.25,
		MaxResults:        10,
	}
}

// Match scores every candidate program against the project and returns the
// grouped, summarized result. Programs failing the hard location
// disqualifier (non-federal with zero location score) are excluded
// entirely regardless of options.
func (m *Matcher) Match(project *model.Project, programs []model.IncentiveProgram, opts Options) *model.MatchingResult {
	matches := make([]model.MatchedIncentive, 0, len(programs))

	for i := range programs {
		program := &programs[i]

		locScore := locationScore(project, program)
		if locScore == 0 && !program.IsFederal() {
			continue
		}

		catScore := categoryScore(project, program)
		eligScore, details := eligibilityScore(project, program)

		score := m.cfg.CategoryWeight*catScore +
			m.cfg.LocationWeight*locScore +
			m.cfg.EligibilityWeight*eligScore
		score = math.Round(score*10000) / 10000

		value := EstimateValue(project, program)

		matches = append(matches, model.MatchedIncentive{
			Incentive:          *program,
			MatchScore:         score,
			CategoryScore:      catScore,
			LocationScore:      locScore,
			EligibilityScore:   eligScore,
			Tier:               model.TierForScore(score, opts.IncludePartialMatches),
			EstimatedValue:     value,
			MatchReasons:       matchReasons(project, program, catScore, locScore, eligScore, value),
			EligibilityDetails: details,
		})
	}

	sortMatches(matches)

	result := &model.MatchingResult{Matches: matches}
	m.partition(result, opts)
	result.Summary = summarize(matches)
	return result
}

// sortMatches orders by score descending, breaking ties by higher
// estimated value, then by program name ascending. Stable and free of
// randomness so repeated calls produce identical ordering.
func sortMatches(matches []model.MatchedIncentive) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].MatchScore != matches[j].MatchScore {
			return matches[i].MatchScore > matches[j].MatchScore
		}
		if matches[i].EstimatedValue != matches[j].EstimatedValue {
			return matches[i].EstimatedValue > matches[j].EstimatedValue
		}
		return matches[i].Incentive.Name < matches[j].Incentive.Name
	})
}

// partition fills the category and thematic subsets from the sorted match
// list.
func (m *Matcher) partition(result *model.MatchingResult, opts Options) {
	for _, match := range result.Matches {
		switch match.Incentive.Category {
		case model.CategoryFederal:
			result.Federal = append(result.Federal, match)
		case model.CategoryState:
			result.State = append(result.State, match)
		case model.CategoryLocal:
			result.Local = append(result.Local, match)
		case model.CategoryUtility:
			result.Utility = append(result.Utility, match)
		}

		if match.Incentive.IsGreen() {
			result.GreenIncentives = append(result.GreenIncentives, match)
		}
		if match.Incentive.IRA.Any() {
			result.IRAEligible = append(result.IRAEligible, match)
		}
	}

	if opts.PrioritizeGreen {
		// Stable: IRA-flagged programs first, score order preserved within
		// each group.
		sort.SliceStable(result.GreenIncentives, func(i, j int) bool {
			return result.GreenIncentives[i].Incentive.IRA.Any() &&
				!result.GreenIncentives[j].Incentive.IRA.Any()
		})
	}

	limit := opts.MaxResults
	if limit <= 0 {
		limit = m.cfg.MaxResults
	}
	if limit > len(result.Matches) {
		limit = len(result.Matches)
	}
	result.TopMatches = result.Matches[:limit]
}

// summarize computes the aggregate counts for dashboard display.
func summarize(matches []model.MatchedIncentive) model.MatchSummary {
	summary := model.MatchSummary{
		TotalMatches: len(matches),
		ByTier:       make(map[model.Tier]int),
		ByCategory:   make(map[model.Category]int),
	}

	var scoreSum float64
	for _, match := range matches {
		summary.ByTier[match.Tier]++
		summary.ByCategory[match.Incentive.Category]++
		scoreSum += match.MatchScore
		summary.TotalPotentialValue += match.EstimatedValue
	}
	if len(matches) > 0 {
		avg := scoreSum / float64(len(matches))
		summary.AverageScore = math.Round(avg*10000) / 10000
	}
	return summary
}

// matchReasons builds the ordered, human-readable explanation list.
func matchReasons(project *model.Project, program *model.IncentiveProgram, catScore, locScore, eligScore, value float64) []string {
	var reasons []string

	switch {
	case catScore >= 1.0:
		reasons = append(reasons, "Program covers "+project.Sector+" projects")
	case catScore > 0:
		reasons = append(reasons, "Program partially covers this project type")
	}

	if program.IsFederal() {
		reasons = append(reasons, "Federal program available nationwide")
	} else if locScore > 0 {
		reasons = append(reasons, "Project is within the program jurisdiction ("+program.State+")")
	}

	if n := len(program.Eligibility); n > 0 {
		met := int(math.Round(eligScore * float64(n)))
		reasons = append(reasons, messagePrinter.Sprintf("Meets %d of %d eligibility criteria", met, n))
	}

	if value > 0 {
		reasons = append(reasons, "Estimated value "+FormatCurrency(value))
	}

	if program.IRA.DirectPayEligible && project.ApplicantType == model.ApplicantNonprofit {
		reasons = append(reasons, "Direct pay available for tax-exempt applicants")
	}

	return reasons
}

var messagePrinter = message.NewPrinter(language.AmericanEnglish)

// FormatCurrency renders a dollar amount with thousands separators.
func FormatCurrency(amount float64) string {
	return messagePrinter.Sprintf("$%.0f", amount)
}
