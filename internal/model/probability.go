package model

import (
	"fmt"
	"time"
)

// ConfidenceLevel labels how much historical volume backs a probability
// estimate.
type ConfidenceLevel string

const (
	ConfidenceVeryHigh         ConfidenceLevel = "very_high"
	ConfidenceHigh             ConfidenceLevel = "high"
	ConfidenceMedium           ConfidenceLevel = "medium"
	ConfidenceLow              ConfidenceLevel = "low"
	ConfidenceInsufficientData ConfidenceLevel = "insufficient_data"
)

// ConfidenceForSampleSize maps a raw application count to its confidence
// level. Thresholds are on observed volume, independent of how specific
// the historical match was.
func ConfidenceForSampleSize(sampleSize int) ConfidenceLevel {
	switch {
	case sampleSize >= 500:
		return ConfidenceVeryHigh
	case sampleSize >= 100:
		return ConfidenceHigh
	case sampleSize >= 25:
		return ConfidenceMedium
	case sampleSize >= 5:
		return ConfidenceLow
	default:
		return ConfidenceInsufficientData
	}
}

// ProbabilityInput carries the categorical dimensions joined against the
// historical aggregate. Constructed fresh per call; immutable.
type ProbabilityInput struct {
	ProjectID     string        `json:"project_id"`
	ProgramID     string        `json:"program_id"`
	ProjectType   string        `json:"project_type"`
	Sector        string        `json:"sector"`
	State         string        `json:"state"` // 2-letter
	TDCRange      TDCRange      `json:"tdc_range"`
	ApplicantType ApplicantType `json:"applicant_type"`
}

// InputForPair builds a ProbabilityInput from a hydrated project and program.
func InputForPair(project *Project, programID string) ProbabilityInput {
	return ProbabilityInput{
		ProjectID:     project.ID,
		ProgramID:     programID,
		ProjectType:   project.ProjectType,
		Sector:        project.Sector,
		State:         project.State,
		TDCRange:      project.EffectiveTDCRange(),
		ApplicantType: project.ApplicantType,
	}
}

// AwardStatRow is one row of the externally maintained historical
// aggregate, pre-grouped by (program_id, project_type, jurisdiction_state,
// applicant_type). Invariant: TotalFunded <= TotalApplications.
type AwardStatRow struct {
	ProgramID         string        `json:"program_id"`
	ProjectType       string        `json:"project_type"`
	JurisdictionState string        `json:"jurisdiction_state"`
	ApplicantType     ApplicantType `json:"applicant_type"`
	TotalApplications int           `json:"total_applications"`
	TotalFunded       int           `json:"total_funded"`
	ApprovalRatePct   float64       `json:"approval_rate_pct"`
	AvgAwardAmount    float64       `json:"avg_award_amount"`
	MedianAwardAmount float64       `json:"median_award_amount"`
	AvgProcessingDays float64       `json:"avg_processing_days"`
}

// ProbabilityFactors are diagnostic per-dimension scores in [0,1]. They are
// never folded back into the approval probability.
type ProbabilityFactors struct {
	LocationMatch      float64 `json:"location_match"`
	SectorMatch        float64 `json:"sector_match"`
	ProjectTypeMatch   float64 `json:"project_type_match"`
	ApplicantTypeMatch float64 `json:"applicant_type_match"`
	TDCRangeMatch      float64 `json:"tdc_range_match"`
}

// ProbabilityResult is the scorer's answer for one (project, program) pair.
type ProbabilityResult struct {
	ApprovalProbability   float64            `json:"approval_probability"` // 0-100, 2 decimals
	ConfidenceLevel       ConfidenceLevel    `json:"confidence_level"`
	SampleSize            int                `json:"sample_size"`             // total applications observed
	ComparableAwardsCount int                `json:"comparable_awards_count"` // total funded awards observed
	AvgComparableAward    float64            `json:"avg_comparable_award"`
	Factors               ProbabilityFactors `json:"factors"`
	BasedOn               string             `json:"based_on"`
	Cached                bool               `json:"cached"`
	ComputedAt            time.Time          `json:"computed_at"`
}

// BasedOnLabel renders the human-readable provenance string from the
// comparable (funded) award count.
func BasedOnLabel(comparableAwards int) string {
	switch comparableAwards {
	case 0:
		return "Insufficient historical data"
	case 1:
		return "Based on 1 comparable award"
	default:
		return fmt.Sprintf("Based on %d comparable awards", comparableAwards)
	}
}

// ProbabilityCacheRecord is the persisted form of a ProbabilityResult,
// keyed uniquely by (project_id, program_id). TTL governs freshness, not
// existence; the engine never deletes cache rows.
type ProbabilityCacheRecord struct {
	ID        string            `json:"id"`
	ProjectID string            `json:"project_id"`
	ProgramID string            `json:"program_id"`
	Result    ProbabilityResult `json:"result"`
	ExpiresAt time.Time         `json:"expires_at"`
	IsStale   bool              `json:"is_stale"`
}
