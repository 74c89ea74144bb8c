// Package store persists the probability cache and serves the historical
// award-statistics aggregate.
package store

import (
	"context"

	"github.com/incentedge/match-engine/internal/model"
)

// AwardStatFilter selects rows from the historical aggregate. Empty fields
// are not filtered on, which is how the scorer drops join-key dimensions
// at broader relaxation levels.
type AwardStatFilter struct {
	ProgramID     string              `json:"program_id"`
	State         string              `json:"state,omitempty"`
	ProjectType   string              `json:"project_type,omitempty"`
	ApplicantType model.ApplicantType `json:"applicant_type,omitempty"`
}

// Store is the persistence interface consumed by the probability scorer
// and the stats loader.
type Store interface {
	// Probability cache. GetFreshProbability returns (nil, nil) when no
	// fresh, non-stale record exists; PutProbability upserts on
	// (project_id, program_id).
	GetFreshProbability(ctx context.Context, projectID, programID string) (*model.ProbabilityCacheRecord, error)
	PutProbability(ctx context.Context, rec *model.ProbabilityCacheRecord) error
	// MarkProbabilitiesStale flags cache rows for recomputation after an
	// aggregate refresh. Empty programID marks every row.
	MarkProbabilitiesStale(ctx context.Context, programID string) (int, error)

	// Historical aggregate (read side + loader write side).
	AwardStats(ctx context.Context, filter AwardStatFilter) ([]model.AwardStatRow, error)
	UpsertAwardStats(ctx context.Context, rows []model.AwardStatRow) (int64, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
