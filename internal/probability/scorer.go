// Package probability estimates approval probability for a (project,
// program) pair from pre-aggregated historical award outcomes. It is a
// read-through cache over a progressive relaxation of the aggregate join
// key: exact match first, then broader cohorts with a specificity discount.
package probability

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/incentedge/match-engine/internal/model"
	"github.com/incentedge/match-engine/internal/monitoring"
	"github.com/incentedge/match-engine/internal/resilience"
	"github.com/incentedge/match-engine/internal/store"
)

const (
	defaultCacheTTL  = 7 * 24 * time.Hour
	writeQueueSize   = 64
	writeBackTimeout = 10 * time.Second
)

// Scorer computes approval probabilities. Cache writes happen on a
// background goroutine so a slow or failing cache never delays scoring;
// call Close when done to drain pending writes.
type Scorer struct {
	store   store.Store
	ttl     time.Duration
	metrics *monitoring.Collector
	now     func() time.Time

	writes chan *model.ProbabilityCacheRecord
	wg     sync.WaitGroup
	once   sync.Once
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithTTL overrides the cache freshness window.
func WithTTL(ttl time.Duration) Option {
	return func(s *Scorer) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithMetrics attaches a counter collector.
func WithMetrics(m *monitoring.Collector) Option {
	return func(s *Scorer) { s.metrics = m }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) { s.now = now }
}

// NewScorer creates a Scorer and starts its write-back worker.
func NewScorer(st store.Store, opts ...Option) *Scorer {
	s := &Scorer{
		store:  st,
		ttl:    defaultCacheTTL,
		now:    time.Now,
		writes: make(chan *model.ProbabilityCacheRecord, writeQueueSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.writeLoop()
	return s
}

// Score returns the approval probability for the input pair. A fresh cache
// hit is returned as-is with Cached set; otherwise the estimate is
// recomputed from the historical aggregate and written back
// asynchronously. Only aggregate query failures are returned as errors;
// cache read failures degrade to a recompute.
func (s *Scorer) Score(ctx context.Context, input model.ProbabilityInput) (*model.ProbabilityResult, error) {
	if cached := s.lookup(ctx, input); cached != nil {
		return cached, nil
	}

	result, level, err := s.compute(ctx, input)
	if err != nil {
		return nil, err
	}
	s.metrics.LevelHit(level)

	s.enqueueWrite(input, result)
	return result, nil
}

// lookup checks the cache, treating read errors as misses.
func (s *Scorer) lookup(ctx context.Context, input model.ProbabilityInput) *model.ProbabilityResult {
	rec, err := s.store.GetFreshProbability(ctx, input.ProjectID, input.ProgramID)
	if err != nil {
		zap.L().Warn("probability cache read failed, recomputing",
			zap.String("project_id", input.ProjectID),
			zap.String("program_id", input.ProgramID),
			zap.Error(err))
		s.metrics.CacheBypass()
		return nil
	}
	if rec == nil {
		s.metrics.CacheMiss()
		return nil
	}

	s.metrics.CacheHit()
	result := rec.Result
	result.Cached = true
	return &result
}

// compute walks the relaxation ladder and scores the first non-empty
// level. Returns the level used (0 when no level had rows).
func (s *Scorer) compute(ctx context.Context, input model.ProbabilityInput) (*model.ProbabilityResult, int, error) {
	for _, lvl := range relaxLevels {
		rows, err := s.store.AwardStats(ctx, lvl.filter(input))
		if err != nil {
			return nil, 0, eris.Wrapf(err, "probability: award stats query at level %d (%s)", lvl.level, lvl.name)
		}
		if len(rows) == 0 {
			continue
		}
		return scoreRows(input, rows, lvl, s.now().UTC()), lvl.level, nil
	}
	return insufficientResult(s.now().UTC()), 0, nil
}

// scoreRows folds the matched aggregate rows into a result. The base rate
// is total funded over total applications across every returned row,
// discounted by the level's specificity multiplier.
func scoreRows(input model.ProbabilityInput, rows []model.AwardStatRow, lvl relaxLevel, computedAt time.Time) *model.ProbabilityResult {
	var apps, funded int
	var awardSum float64
	var awardWeight int
	for _, r := range rows {
		apps += r.TotalApplications
		funded += r.TotalFunded
		awardSum += r.AvgAwardAmount * float64(r.TotalFunded)
		awardWeight += r.TotalFunded
	}

	var baseRate float64
	if apps > 0 {
		baseRate = float64(funded) / float64(apps) * 100
	}
	probability := round2(clamp(baseRate*lvl.multiplier, 0, 100))

	var avgAward float64
	if awardWeight > 0 {
		avgAward = round2(awardSum / float64(awardWeight))
	}

	return &model.ProbabilityResult{
		ApprovalProbability:   probability,
		ConfidenceLevel:       model.ConfidenceForSampleSize(apps),
		SampleSize:            apps,
		ComparableAwardsCount: funded,
		AvgComparableAward:    avgAward,
		Factors:               factorsFor(input, rows, lvl),
		BasedOn:               model.BasedOnLabel(funded),
		ComputedAt:            computedAt,
	}
}

// factorsFor scores each project dimension against the matched rows. A
// dimension present in the aggregate key scores 1.0 when some row matches
// it exactly, otherwise the level's partial credit. Sector and TDC range
// are absent from the aggregate key and always receive the partial credit:
// some generalization is still informative, so factors never drop to zero
// once rows exist.
func factorsFor(input model.ProbabilityInput, rows []model.AwardStatRow, lvl relaxLevel) model.ProbabilityFactors {
	f := model.ProbabilityFactors{
		LocationMatch:      lvl.partial,
		SectorMatch:        lvl.partial,
		ProjectTypeMatch:   lvl.partial,
		ApplicantTypeMatch: lvl.partial,
		TDCRangeMatch:      lvl.partial,
	}
	for _, r := range rows {
		if r.JurisdictionState == input.State {
			f.LocationMatch = 1.0
		}
		if r.ProjectType == input.ProjectType {
			f.ProjectTypeMatch = 1.0
		}
		if r.ApplicantType == input.ApplicantType {
			f.ApplicantTypeMatch = 1.0
		}
	}
	return f
}

// insufficientResult is the zero-probability answer when no historical
// rows exist even program-wide.
func insufficientResult(computedAt time.Time) *model.ProbabilityResult {
	return &model.ProbabilityResult{
		ApprovalProbability: 0,
		ConfidenceLevel:     model.ConfidenceInsufficientData,
		BasedOn:             model.BasedOnLabel(0),
		ComputedAt:          computedAt,
	}
}

// enqueueWrite hands a freshly computed result to the write-back worker.
// The queue never blocks scoring: when full the write is dropped and the
// next request recomputes.
func (s *Scorer) enqueueWrite(input model.ProbabilityInput, result *model.ProbabilityResult) {
	rec := &model.ProbabilityCacheRecord{
		ProjectID: input.ProjectID,
		ProgramID: input.ProgramID,
		Result:    *result,
		ExpiresAt: s.now().UTC().Add(s.ttl),
	}

	s.wg.Add(1)
	select {
	case s.writes <- rec:
		s.metrics.WriteQueued()
	default:
		s.wg.Done()
		s.metrics.WriteDropped()
		zap.L().Warn("probability cache write queue full, dropping write",
			zap.String("project_id", rec.ProjectID),
			zap.String("program_id", rec.ProgramID))
	}
}

// writeLoop persists queued records, retrying transient database failures.
// Failures are logged and counted but never surfaced to callers.
func (s *Scorer) writeLoop() {
	retryCfg := resilience.DefaultRetryConfig()
	for rec := range s.writes {
		ctx, cancel := context.WithTimeout(context.Background(), writeBackTimeout)
		err := resilience.Do(ctx, retryCfg, func(ctx context.Context) error {
			return s.store.PutProbability(ctx, rec)
		})
		if err != nil {
			s.metrics.WriteFailure()
			zap.L().Warn("probability cache write failed",
				zap.String("project_id", rec.ProjectID),
				zap.String("program_id", rec.ProgramID),
				zap.Error(err))
		}
		cancel()
		s.wg.Done()
	}
}

// Flush blocks until every queued cache write has been attempted.
func (s *Scorer) Flush() {
	s.wg.Wait()
}

// Close drains pending writes and stops the worker. The Scorer must not be
// used after Close.
func (s *Scorer) Close() {
	s.once.Do(func() {
		s.wg.Wait()
		close(s.writes)
	})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
